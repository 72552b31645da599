// Package periph connects a DALI slave to Linux GPIO pins through
// periph.io. Edge interrupts are emulated by a goroutine blocking in
// WaitForEdge, and ticks come from a time.Ticker, so timing jitter of the
// host applies: this is meant for bench setups, not certified devices.
// Clock counts the ticks the host failed to deliver.
package periph

import (
	"context"
	"fmt"
	"math/bits"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/robotalks/dali.go/pkg/clock"
)

// Pin is the part of gpio.PinIO used by a Line.
type Pin interface {
	Out(l gpio.Level) error
	In(pull gpio.Pull, edge gpio.Edge) error
	Read() gpio.Level
	WaitForEdge(timeout time.Duration) bool
}

// Config names the pins.
type Config struct {
	Output string
	Input  string
	// InvertInput selects the rising edge as the start of a frame.
	InvertInput bool
}

// Line drives the output pin and watches the input pin. It implements
// dali.OutputPin, dali.InputPin and dali.EdgeInterrupt.
type Line struct {
	out   Pin
	in    Pin
	edge  gpio.Edge
	armed atomic.Bool

	handler func()
	lock    sync.Mutex
}

var hostInit sync.Once

// Open initializes the host drivers and opens the named pins.
func Open(conf Config) (*Line, error) {
	var err error
	hostInit.Do(func() {
		_, err = host.Init()
	})
	if err != nil {
		return nil, err
	}
	out := gpioreg.ByName(conf.Output)
	if out == nil {
		return nil, fmt.Errorf("unknown output pin %q", conf.Output)
	}
	in := gpioreg.ByName(conf.Input)
	if in == nil {
		return nil, fmt.Errorf("unknown input pin %q", conf.Input)
	}
	return NewLine(out, in, conf.InvertInput)
}

// NewLine creates a Line from pins. The input edge is the physical edge
// starting a frame.
func NewLine(out, in Pin, invertInput bool) (*Line, error) {
	l := &Line{out: out, in: in, edge: gpio.FallingEdge}
	if invertInput {
		l.edge = gpio.RisingEdge
	}
	if err := in.In(gpio.PullUp, l.edge); err != nil {
		return nil, err
	}
	return l, nil
}

// Set implements dali.OutputPin.
func (l *Line) Set(high bool) {
	if err := l.out.Out(gpio.Level(high)); err != nil {
		glog.Errorf("gpio out: %v", err)
	}
}

// Get implements dali.InputPin.
func (l *Line) Get() bool {
	return bool(l.in.Read())
}

// Enable implements dali.EdgeInterrupt.
func (l *Line) Enable() {
	l.armed.Store(true)
}

// Disable implements dali.EdgeInterrupt.
func (l *Line) Disable() {
	l.armed.Store(false)
}

// Bind sets the edge handler, usually Slave.OnEdge.
func (l *Line) Bind(handler func()) {
	l.lock.Lock()
	l.handler = handler
	l.lock.Unlock()
}

// Watch waits for input edges until ctx is done and calls the handler
// while the interrupt is armed.
func (l *Line) Watch(ctx context.Context) error {
	l.lock.Lock()
	handler := l.handler
	l.lock.Unlock()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if !l.in.WaitForEdge(100 * time.Millisecond) {
			continue
		}
		if handler != nil && l.armed.Load() {
			handler()
		}
	}
}

// Clock calls Ticker at Frequency ticks per second from a time.Ticker.
// Ticks missed by the scheduler are skipped, not caught up. A skipped tick
// shortens the bit cell the slave measures, so edges land before the
// receive window and frames fail with missing-edge errors: watch Missed
// when framing errors show up.
type Clock struct {
	Frequency uint32
	Ticker    clock.Ticker

	missed atomic.Uint64
}

// NewClock creates a Clock.
func NewClock(frequency uint32, t clock.Ticker) *Clock {
	return &Clock{Frequency: frequency, Ticker: t}
}

// Missed returns the number of ticks skipped so far.
func (c *Clock) Missed() uint64 {
	return c.missed.Load()
}

// Run implements framework.Runnable.
func (c *Clock) Run(ctx context.Context) error {
	if c.Frequency == 0 {
		return fmt.Errorf("invalid tick frequency %d", c.Frequency)
	}
	ticker := time.NewTicker(time.Second / time.Duration(c.Frequency))
	defer ticker.Stop()
	start := time.Now()
	var issued uint64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			// one tick of slack for the ticker channel.
			if due := clock.Due(c.Frequency, now.Sub(start)); due > issued+1 {
				c.skip(due - issued - 1)
				issued = due - 1
			}
			issued++
			c.Ticker.OnTick()
		}
	}
}

func (c *Clock) skip(n uint64) {
	total := c.missed.Add(n)
	if prev := total - n; bits.Len64(prev) != bits.Len64(total) {
		glog.Warningf("%d ticks missed at %d Hz", total, c.Frequency)
	}
}
