package wire

import (
	"sync"
	"sync/atomic"
)

// Endpoint is the attachment of a device to the bus. Its Get, Set, Enable
// and Disable work on the physical pin levels of the device: an inverting
// endpoint models the usual interface circuit where the receive amplifier
// negates the bus level and a high output pin shorts the bus.
type Endpoint struct {
	bus       *Bus
	name      string
	inverting bool

	out   atomic.Bool
	armed atomic.Bool

	lock   sync.Mutex
	edge   Edge
	onEdge func()
}

// Name returns the endpoint name.
func (e *Endpoint) Name() string {
	return e.name
}

// Bind sets the edge interrupt handler. The interrupt starts disarmed.
func (e *Endpoint) Bind(edge Edge, handler func()) *Endpoint {
	e.lock.Lock()
	e.edge, e.onEdge = edge, handler
	e.lock.Unlock()
	return e
}

// Get reads the input pin.
func (e *Endpoint) Get() bool {
	return e.bus.Level() != e.inverting
}

// Set drives the output pin.
func (e *Endpoint) Set(high bool) {
	e.out.Store(high)
}

// Output returns the output pin level.
func (e *Endpoint) Output() bool {
	return e.out.Load()
}

// Enable arms the edge interrupt.
func (e *Endpoint) Enable() {
	e.armed.Store(true)
}

// Disable disarms the edge interrupt.
func (e *Endpoint) Disable() {
	e.armed.Store(false)
}

// Armed indicates the edge interrupt is armed.
func (e *Endpoint) Armed() bool {
	return e.armed.Load()
}

func (e *Endpoint) released() bool {
	return e.out.Load() != e.inverting
}

func (e *Endpoint) levelChanged(level bool) {
	if !e.armed.Load() {
		return
	}
	e.lock.Lock()
	edge, handler := e.edge, e.onEdge
	e.lock.Unlock()
	if handler == nil {
		return
	}
	pin := level != e.inverting
	switch edge {
	case EdgeBoth:
	case EdgeRising:
		if !pin {
			return
		}
	case EdgeFalling:
		if pin {
			return
		}
	default:
		return
	}
	handler()
}
