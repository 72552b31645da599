package trace

import (
	"flag"
	"io"
	"os"
)

// Config represents configuration for trace.
type Config struct {
	// Edges includes every bus level change.
	Edges bool
	// MaxEdges limits edges reported per loop iteration, 0 for unlimited.
	MaxEdges int
}

var defaultConfig = Config{
	MaxEdges: 1024,
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.BoolVar(&defaultConfig.Edges, "trace-edges", defaultConfig.Edges, "Trace bus level changes")
	flag.IntVar(&defaultConfig.MaxEdges, "trace-max-edges", defaultConfig.MaxEdges, "Max edges traced per iteration")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a default config.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// NewTracer creates a Tracer writing to stdout.
func (c *Config) NewTracer() *Tracer {
	return NewTracer(c, os.Stdout)
}

// NewTracerTo creates a Tracer writing to w.
func (c *Config) NewTracerTo(w io.Writer) *Tracer {
	return NewTracer(c, w)
}
