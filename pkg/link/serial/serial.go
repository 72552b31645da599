// Package serial opens serial ports for the link.
package serial

import (
	"errors"
	"io"
	"time"

	"github.com/goburrow/serial"

	"github.com/robotalks/dali.go/pkg/link"
)

// Defaults.
const (
	DefaultBaudRate = 115200
	DefaultTimeout  = link.DefaultTimeout
)

// Config configures a serial port.
type Config struct {
	Device   string
	BaudRate int
	// Parity is one of "N", "E" or "O".
	Parity  string
	Timeout time.Duration
}

// Port is an opened serial port. Read timeouts are reported as errors
// satisfying os.IsTimeout, so the port can be used with Link.PollRead.
type Port struct {
	port serial.Port
}

// Open opens a serial port.
func Open(conf Config) (*Port, error) {
	if conf.Device == "" {
		return nil, errors.New("serial: device required")
	}
	c := &serial.Config{
		Address:  conf.Device,
		BaudRate: conf.BaudRate,
		DataBits: 8,
		StopBits: 1,
		Parity:   conf.Parity,
		Timeout:  conf.Timeout,
	}
	if c.BaudRate == 0 {
		c.BaudRate = DefaultBaudRate
	}
	if c.Parity == "" {
		c.Parity = "N"
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	p, err := serial.Open(c)
	if err != nil {
		return nil, err
	}
	return &Port{port: p}, nil
}

// NewLink opens the port and creates a Link polling it.
func NewLink(conf Config) (*link.Link, io.Closer, error) {
	p, err := Open(conf)
	if err != nil {
		return nil, nil, err
	}
	l := link.New(p)
	l.PollRead = true
	if conf.Timeout > 0 {
		l.Timeout = conf.Timeout
	}
	return l, p, nil
}

// Read implements io.Reader.
func (p *Port) Read(b []byte) (int, error) {
	return wrap(p.port.Read(b))
}

// Write implements io.Writer.
func (p *Port) Write(b []byte) (int, error) {
	return p.port.Write(b)
}

// Close implements io.Closer.
func (p *Port) Close() error {
	return p.port.Close()
}

type timeoutError struct{}

func (timeoutError) Error() string   { return serial.ErrTimeout.Error() }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func wrap(n int, err error) (int, error) {
	if err == serial.ErrTimeout {
		return n, timeoutError{}
	}
	return n, err
}
