// Package device defines how a DALI device (a slave node, a simulated bus or
// a serial gateway) is exposed to the outside: it registers itself, sends
// events and processes commands; clients discover and connect to it.
package device

import (
	"context"
	"strings"

	fx "github.com/robotalks/dali.go/pkg/framework"
)

// Registrar registers a device to a registry and delivers its events.
type Registrar interface {
	// SendEvent publishes an event.
	SendEvent(context.Context, fx.Message) error
}

// Command represents a received command to be processed.
type Command interface {
	Msg() fx.Message
	Done(fx.Message) error
}

// CommandMsg wraps a Command as a Message.
type CommandMsg struct {
	Command Command
}

// NewMessage implements Message.
func (m *CommandMsg) NewMessage() fx.Message { return &CommandMsg{} }

// Known device types.
const (
	TypeSlave   = "dali-slave"
	TypeSim     = "dali-sim"
	TypeGateway = "dali-gw"
)

// Ref is a reference to a device.
type Ref struct {
	// Type is the device type.
	Type string `json:"type" yaml:"type"`
	// ID is unique ID of the device.
	ID string `json:"id" yaml:"id"`
}

// Name retrieves the name from ref, TYPE/ID.
func (r Ref) Name() string {
	return r.Type + "/" + r.ID
}

// String implements fmt.Stringer.
func (r Ref) String() string {
	return r.Name()
}

// ParseRef parses TYPE/ID. The result is not checked with IsValid.
func ParseRef(name string) (Ref, bool) {
	typ, id, ok := strings.Cut(name, "/")
	if !ok || strings.Contains(id, "/") {
		return Ref{}, false
	}
	return Ref{Type: typ, ID: id}, true
}

// IsValid indicates Ref is valid.
func (r Ref) IsValid() bool {
	return r.Type != "" && r.ID != ""
}

// Meta provides metadata of a device, retained in the registry while
// the device is online.
type Meta struct {
	Description   string `json:"description,omitempty" yaml:"description,omitempty"`
	TickFrequency uint32 `json:"tick_frequency,omitempty" yaml:"-"`
	// Slaves names the slaves attached to the bus by this device, which
	// are the targets its slave commands accept.
	Slaves []string          `json:"slaves,omitempty" yaml:"-"`
	Labels map[string]string `json:"labels,omitempty" yaml:"labels,omitempty"`
}

// HasSlave reports whether the device serves the named slave.
func (m Meta) HasSlave(name string) bool {
	for _, s := range m.Slaves {
		if s == name {
			return true
		}
	}
	return false
}

// Info provides information of a device.
type Info struct {
	Ref  Ref
	Meta Meta
}

// Connector is used by clients to connect to a device.
type Connector interface {
	// Discover enumerates registered devices.
	Discover(context.Context) ([]Info, error)
	// Connect connects to the specified device.
	Connect(context.Context, Ref) (Conn, error)
}

// Conn is the connection to a device.
type Conn interface {
	// DoCommand executes a command.
	DoCommand(fx.Message) CommandFuture
}

// Result represents result of a command.
type Result struct {
	Msg fx.Message
	Err error
}

// CommandFuture is the future of sent command.
type CommandFuture interface {
	ResultChan() <-chan Result
}
