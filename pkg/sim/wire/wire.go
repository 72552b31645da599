// Package wire simulates the two-wire DALI bus.
//
// The bus is a wired-AND: it idles at the high (mark) level provided by the
// bus power supply and any attached device pulls it low. Devices attach
// through an Endpoint which models the device's transceiver and exposes the
// physical pins the device firmware sees.
//
// The simulation is lock-step. In every Step all devices tick reading the
// bus level resolved by the previous Step, then the new level is resolved
// from all outputs and edge interrupts fire on the endpoints.
package wire

import (
	"sync"
	"sync/atomic"
)

// Edge selects the pin edges an interrupt fires on.
type Edge int

// Edges.
const (
	EdgeNone Edge = iota
	EdgeFalling
	EdgeRising
	EdgeBoth
)

// Device is ticked once per Step.
type Device interface {
	OnTick()
}

// DeviceFunc is the func form of Device.
type DeviceFunc func()

// OnTick implements Device.
func (f DeviceFunc) OnTick() {
	f()
}

// Observer is notified about every bus level change.
type Observer interface {
	BusChanged(step uint64, level bool)
}

// ObserverFunc is the func form of Observer.
type ObserverFunc func(step uint64, level bool)

// BusChanged implements Observer.
func (f ObserverFunc) BusChanged(step uint64, level bool) {
	f(step, level)
}

// Bus is the simulated bus. Attach endpoints, devices and observers before
// stepping; Step must be called from a single goroutine.
type Bus struct {
	endpoints []*Endpoint
	devices   []Device
	observers []Observer

	level atomic.Bool
	short atomic.Bool
	steps atomic.Uint64
	edges atomic.Uint64

	lock sync.Mutex
}

// New creates a powered bus at idle level.
func New() *Bus {
	b := &Bus{}
	b.level.Store(true)
	return b
}

// Attach creates a new Endpoint on the bus.
func (b *Bus) Attach(name string, inverting bool) *Endpoint {
	ep := &Endpoint{bus: b, name: name, inverting: inverting}
	ep.out.Store(!inverting)
	b.lock.Lock()
	b.endpoints = append(b.endpoints, ep)
	b.lock.Unlock()
	return ep
}

// AddDevices registers devices ticked by Step.
func (b *Bus) AddDevices(devices ...Device) *Bus {
	b.lock.Lock()
	b.devices = append(b.devices, devices...)
	b.lock.Unlock()
	return b
}

// AddObservers registers observers of level changes.
func (b *Bus) AddObservers(observers ...Observer) *Bus {
	b.lock.Lock()
	b.observers = append(b.observers, observers...)
	b.lock.Unlock()
	return b
}

// Short holds the bus at space level, simulating a short circuit or loss of
// bus power, until released.
func (b *Bus) Short(on bool) {
	b.short.Store(on)
}

// Level returns the resolved bus level: true is mark.
func (b *Bus) Level() bool {
	return b.level.Load()
}

// Steps returns the number of steps simulated.
func (b *Bus) Steps() uint64 {
	return b.steps.Load()
}

// Edges returns the number of level changes.
func (b *Bus) Edges() uint64 {
	return b.edges.Load()
}

// Step advances the bus by one tick.
func (b *Bus) Step() {
	b.lock.Lock()
	devices, endpoints, observers := b.devices, b.endpoints, b.observers
	b.lock.Unlock()

	for _, dev := range devices {
		dev.OnTick()
	}

	level := !b.short.Load()
	for _, ep := range endpoints {
		level = level && ep.released()
	}
	step := b.steps.Add(1)
	if level == b.level.Swap(level) {
		return
	}
	b.edges.Add(1)
	for _, ep := range endpoints {
		ep.levelChanged(level)
	}
	for _, ob := range observers {
		ob.BusChanged(step, level)
	}
}

// Run performs n steps.
func (b *Bus) Run(n int) {
	for i := 0; i < n; i++ {
		b.Step()
	}
}
