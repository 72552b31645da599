// Package msgs defines the messages exchanged with DALI devices and the
// Typed envelope carrying them over the wire.
//
// A type ID is laid out as KGGG GGGG GGGG GGGG RIII IIII IIII IIII:
// K is set for events, G is the group (command envelope, bus, slave or
// custom), R marks the reply to the command with the same ID bits.
package msgs

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/golang/protobuf/proto"

	fx "github.com/robotalks/dali.go/pkg/framework"
)

// TypeID masks
const (
	TypeIDMaskKind  uint32 = 0x80000000
	TypeIDMaskGroup uint32 = 0x7fff0000
	TypeIDMaskID    uint32 = 0x0000ffff
	TypeIDMaskReply uint32 = 0x00008000
)

// Message Kinds
const (
	TypeIDKindCommand uint32 = 0x00000000
	TypeIDKindEvent   uint32 = 0x80000000
)

var (
	// ErrNotSerializable indicates the message is not serializable.
	ErrNotSerializable = errors.New("not serializable message")
	// ErrUnsupportedCommand indicates the command is unsupported.
	ErrUnsupportedCommand = errors.New("unsupported command")
	// ErrUnknownType is matched by every UnknownTypeError.
	ErrUnknownType = errors.New("unknown type")
)

// UnknownTypeError reports a type ID without a registered message.
type UnknownTypeError struct {
	TypeID uint32
}

// Error implements error.
func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown type: %08x", e.TypeID)
}

// Is makes errors.Is(err, ErrUnknownType) hold.
func (e *UnknownTypeError) Is(target error) bool {
	return target == ErrUnknownType
}

// SerializableMessage can be serialized over the wire.
type SerializableMessage interface {
	fx.Message
	TypeID() uint32
	Serializable() proto.Message
}

type registration struct {
	name  string
	proto SerializableMessage
}

var (
	registryLock sync.RWMutex
	registry     = make(map[uint32]registration)
)

// Register makes a message type decodable and gives it a short name.
// It panics when the type ID is taken by another name.
func Register(name string, msg SerializableMessage) {
	id := msg.TypeID()
	registryLock.Lock()
	defer registryLock.Unlock()
	if r, ok := registry[id]; ok && r.name != name {
		panic(fmt.Sprintf("msgs: type %08x registered as %q and %q", id, r.name, name))
	}
	registry[id] = registration{name: name, proto: msg}
}

func lookup(id uint32) (registration, bool) {
	registryLock.RLock()
	defer registryLock.RUnlock()
	r, ok := registry[id]
	return r, ok
}

// Typed wraps a message with type information.
type Typed struct {
	TypedPB
}

// TypedMsgHandler handles a decoded message.
type TypedMsgHandler interface {
	HandleTypedMsg(context.Context, fx.Message, *Typed) error
}

// HandleTypedMsgFunc is func form of TypedMsgHandler.
type HandleTypedMsgFunc func(context.Context, fx.Message, *Typed) error

// HandleTypedMsg implements TypedMsgHandler.
func (f HandleTypedMsgFunc) HandleTypedMsg(ctx context.Context, msg fx.Message, typed *Typed) error {
	return f(ctx, msg, typed)
}

// TypedFrom creates a Typed from a serializable message.
func TypedFrom(msg fx.Message) (*Typed, error) {
	s, ok := msg.(SerializableMessage)
	if !ok {
		return nil, ErrNotSerializable
	}
	data, err := proto.Marshal(s.Serializable())
	if err != nil {
		return nil, err
	}
	return &Typed{TypedPB: TypedPB{TypeId: s.TypeID(), Message: data}}, nil
}

// Decode decodes the payload into the registered message.
func (p Typed) Decode() (fx.Message, error) {
	r, ok := lookup(p.TypeId)
	if !ok {
		return nil, &UnknownTypeError{TypeID: p.TypeId}
	}
	msg := r.proto.NewMessage()
	if err := proto.Unmarshal(p.Message, msg.(SerializableMessage).Serializable()); err != nil {
		return nil, fmt.Errorf("%s: %w", r.name, err)
	}
	return msg, nil
}

// Encode encodes the Typed to bytes.
func (p Typed) Encode() ([]byte, error) {
	return proto.Marshal(&p.TypedPB)
}

// Kind gets message kind from type ID.
func (p Typed) Kind() uint32 {
	return p.TypeId & TypeIDMaskKind
}

// Group gets the group bits from type ID.
func (p Typed) Group() uint32 {
	return p.TypeId & TypeIDMaskGroup
}

// IsCommand determines if the message is a command or a reply.
func (p Typed) IsCommand() bool {
	return p.Kind() == TypeIDKindCommand
}

// IsReply determines if the message replies a command.
func (p Typed) IsReply() bool {
	return p.IsCommand() && p.TypeId&TypeIDMaskReply != 0
}

// IsEvent determines if the message is an event.
func (p Typed) IsEvent() bool {
	return p.Kind() == TypeIDKindEvent
}

// DecodeTyped decodes bytes into Typed.
func DecodeTyped(data []byte) (*Typed, error) {
	var typed Typed
	if err := proto.Unmarshal(data, &typed.TypedPB); err != nil {
		return nil, err
	}
	return &typed, nil
}

// Encode encodes a serializable message into a Typed packet.
func Encode(msg fx.Message) ([]byte, error) {
	typed, err := TypedFrom(msg)
	if err != nil {
		return nil, err
	}
	return typed.Encode()
}

// Decode decodes a Typed packet into the message. The Typed is returned
// whenever the envelope is valid, even if the payload is not.
func Decode(pkt []byte) (fx.Message, *Typed, error) {
	typed, err := DecodeTyped(pkt)
	if err != nil {
		return nil, nil, err
	}
	msg, err := typed.Decode()
	return msg, typed, err
}

// TypeName returns the registered short name of a message type.
func TypeName(msg fx.Message) string {
	if s, ok := msg.(SerializableMessage); ok {
		if r, ok := lookup(s.TypeID()); ok {
			return r.name
		}
	}
	return fmt.Sprintf("%T", msg)
}
