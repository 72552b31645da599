// Package env sets up the configuration and registrars shared by the DALI
// daemons: defaults, then an optional YAML file, then environment variables,
// then command line flags.
package env

import (
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/robotalks/dali.go/pkg/dali"
	"github.com/robotalks/dali.go/pkg/device"
)

// Environment variables.
const (
	EnvMQTTURL  = "DALI_MQTT_URL"
	EnvDeviceID = "DALI_DEVICE_ID"
	EnvConfig   = "DALI_CONFIG"
)

// Rule is one answer table entry: a forward frame address/data and the
// answer byte.
type Rule struct {
	Address uint8 `yaml:"address"`
	Data    uint8 `yaml:"data"`
	Answer  uint8 `yaml:"answer"`
}

// SlaveConfig configures one slave.
type SlaveConfig struct {
	Name string `yaml:"name"`
	// Inverting attaches the slave through an inverting transceiver.
	Inverting bool   `yaml:"inverting"`
	Answers   []Rule `yaml:"answers"`
}

// LineConfig selects the GPIO pins of a hardware line.
type LineConfig struct {
	Output       string `yaml:"output"`
	InvertOutput bool   `yaml:"invert_output"`
	Input        string `yaml:"input"`
	InvertInput  bool   `yaml:"invert_input"`
}

// SerialConfig selects a serial port to a slave running the firmware.
type SerialConfig struct {
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
}

// Config provides common options to setup DALI daemons.
type Config struct {
	Info device.Info `yaml:"-"`

	// ID overrides Info.Ref.ID.
	ID string `yaml:"id"`
	// MQTTBrokerURL specifies the MQTT broker to use.
	// e.g. mqtt://host:port/topic-prefix
	MQTTBrokerURL string `yaml:"mqtt_url"`
	// TickFrequency is the sampling frequency of the line in Hz.
	TickFrequency uint32 `yaml:"tick_frequency"`
	// Pace runs the simulated clock in real time, otherwise free running.
	Pace                bool   `yaml:"pace"`
	ReportFramingErrors bool   `yaml:"report_framing_errors"`
	Database            string `yaml:"database"`
	FeedAddr            string `yaml:"feed_addr"`
	Capture             string `yaml:"capture"`

	Line   LineConfig    `yaml:"line"`
	Serial SerialConfig  `yaml:"serial"`
	Slaves []SlaveConfig `yaml:"slaves"`

	path string
}

var brokerSchemes = map[string]bool{"mqtt": true, "tcp": true, "ssl": true, "ws": true, "wss": true}

// DefaultBaudRate is the serial baud rate to the firmware.
const DefaultBaudRate = 115200

var defaultConfig = Config{
	MQTTBrokerURL: "mqtt://localhost:1883/dali/",
	TickFrequency: dali.DefaultTickFrequency,
	Pace:          true,
	Serial:        SerialConfig{BaudRate: DefaultBaudRate},
}

func init() {
	defaultConfig.Info.Ref.ID = MachineID()
	applyEnv(&defaultConfig)
}

func applyEnv(c *Config) {
	if val := os.Getenv(EnvMQTTURL); val != "" {
		c.MQTTBrokerURL = val
	}
	if val := os.Getenv(EnvDeviceID); val != "" {
		c.Info.Ref.ID = val
	}
	if val := os.Getenv(EnvConfig); val != "" {
		c.path = val
	}
}

// SetupFlags sets command line flags.
func SetupFlags() {
	setupFlags(flag.CommandLine, &defaultConfig)
}

func setupFlags(fs *flag.FlagSet, c *Config) {
	fs.StringVar(&c.path, "config", c.path, "YAML config file")
	fs.StringVar(&c.Info.Ref.ID, "id", c.Info.Ref.ID, "Device ID")
	fs.StringVar(&c.MQTTBrokerURL, "mqtt", c.MQTTBrokerURL, "MQTT broker URL, empty to disable")
	fs.Var((*uint32Value)(&c.TickFrequency), "tick-frequency", "Line sampling frequency in Hz")
	fs.BoolVar(&c.Pace, "pace", c.Pace, "Run the simulated clock in real time")
	fs.BoolVar(&c.ReportFramingErrors, "framing-errors", c.ReportFramingErrors, "Report framing errors as faults")
	fs.StringVar(&c.Database, "db", c.Database, "SQLite event journal")
	fs.StringVar(&c.FeedAddr, "feed", c.FeedAddr, "Listen address of the websocket event feed")
	fs.StringVar(&c.Capture, "capture", c.Capture, "Capture events into the file")
	fs.StringVar(&c.Serial.Port, "serial", c.Serial.Port, "Serial port of the slave firmware")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// SetDeviceType should be called in init with basic info about the device.
func SetDeviceType(typ string, meta device.Meta) {
	defaultConfig.Info.Ref.Type = typ
	defaultConfig.Info.Meta = meta
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// Path returns the config file selected by flag or environment.
func (c *Config) Path() string {
	return c.path
}

// Resolve loads the config file if selected, then re-applies environment
// variables and the flags set on the command line so they take precedence.
func Resolve() (*Config, error) {
	return resolve(flag.CommandLine, &defaultConfig)
}

func resolve(fs *flag.FlagSet, c *Config) (*Config, error) {
	conf := *c
	if conf.path != "" {
		if err := conf.LoadFile(conf.path); err != nil {
			return nil, err
		}
		applyEnv(&conf)
		rebind := flag.NewFlagSet(fs.Name(), flag.ContinueOnError)
		setupFlags(rebind, &conf)
		fs.Visit(func(f *flag.Flag) {
			if rebind.Lookup(f.Name) != nil {
				rebind.Set(f.Name, f.Value.String())
			}
		})
	}
	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &conf, nil
}

// LoadFile merges a YAML file into the config.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	if c.ID != "" {
		c.Info.Ref.ID = c.ID
	}
	c.path = path
	return nil
}

// Load reads a config file on top of the defaults, applies environment
// variables and validates.
func Load(path string) (*Config, error) {
	conf := NewConfig()
	if err := conf.LoadFile(path); err != nil {
		return nil, err
	}
	applyEnv(conf)
	conf.path = path
	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return conf, nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	var errs []string
	if _, err := dali.NewTiming(c.TickFrequency); err != nil {
		errs = append(errs, err.Error())
	}
	if c.MQTTBrokerURL != "" {
		if u, err := url.Parse(c.MQTTBrokerURL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid mqtt_url: %v", err))
		} else if !brokerSchemes[u.Scheme] {
			errs = append(errs, fmt.Sprintf("unknown mqtt_url scheme: %q", u.Scheme))
		}
	}
	names := make(map[string]bool)
	for n, s := range c.Slaves {
		if s.Name == "" {
			errs = append(errs, fmt.Sprintf("slaves[%d].name is required", n))
		} else if names[s.Name] {
			errs = append(errs, fmt.Sprintf("duplicated slave %q", s.Name))
		}
		names[s.Name] = true
	}
	if c.Serial.Port != "" && c.Serial.BaudRate <= 0 {
		errs = append(errs, "serial.baud_rate must be positive")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// AnswerTable builds the lookup table of a slave from its rules.
func (s *SlaveConfig) AnswerTable() map[uint16]byte {
	table := make(map[uint16]byte, len(s.Answers))
	for _, r := range s.Answers {
		table[uint16(r.Address)<<8|uint16(r.Data)] = r.Answer
	}
	return table
}

type uint32Value uint32

func (v *uint32Value) String() string {
	if v == nil {
		return "0"
	}
	return fmt.Sprintf("%d", uint32(*v))
}

func (v *uint32Value) Set(s string) error {
	var n uint32
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
		return fmt.Errorf("invalid number %q", s)
	}
	*v = uint32Value(n)
	return nil
}
