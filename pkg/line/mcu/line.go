//go:build tinygo

package mcu

import (
	"machine"
	"sync/atomic"
)

// Line drives the output pin and watches the input pin. It implements
// dali.OutputPin, dali.InputPin and dali.EdgeInterrupt. The pin interrupt
// stays registered, arming only gates the handler.
type Line struct {
	out   machine.Pin
	in    machine.Pin
	edge  machine.PinChange
	armed atomic.Bool
}

// NewLine configures the pins. invertInput selects the rising edge as the
// start of a frame.
func NewLine(out, in machine.Pin, invertInput bool) *Line {
	out.Configure(machine.PinConfig{Mode: machine.PinOutput})
	in.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	l := &Line{out: out, in: in, edge: machine.PinFalling}
	if invertInput {
		l.edge = machine.PinRising
	}
	return l
}

// Bind registers the edge handler, usually Slave.OnEdge.
func (l *Line) Bind(handler func()) error {
	return l.in.SetInterrupt(l.edge, func(machine.Pin) {
		if l.armed.Load() {
			handler()
		}
	})
}

// Set implements dali.OutputPin.
func (l *Line) Set(high bool) {
	l.out.Set(high)
}

// Get implements dali.InputPin.
func (l *Line) Get() bool {
	return l.in.Get()
}

// Enable implements dali.EdgeInterrupt.
func (l *Line) Enable() {
	l.armed.Store(true)
}

// Disable implements dali.EdgeInterrupt.
func (l *Line) Disable() {
	l.armed.Store(false)
}
