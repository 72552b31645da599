package msgs

import (
	"github.com/golang/protobuf/proto"

	"github.com/robotalks/dali.go/pkg/dali"
	fx "github.com/robotalks/dali.go/pkg/framework"
)

// CommandOK is the generic reply indicating success for commands.
type CommandOK struct {
	CommandOKPB
}

// NewCommandOK creates a CommandOK.
func NewCommandOK() *CommandOK {
	return &CommandOK{}
}

// NewMessage implements Message.
func (m *CommandOK) NewMessage() fx.Message { return &CommandOK{} }

// TypeID implements SerializableMessage.
func (m *CommandOK) TypeID() uint32 { return CommandOKTypeID }

// Serializable implements SerializableMessage.
func (m *CommandOK) Serializable() proto.Message { return &m.CommandOKPB }

// CommandErr is the generic message representing command error.
type CommandErr struct {
	CommandErrPB
}

// NewCommandErr creates a CommandErr from an error.
func NewCommandErr(err error) *CommandErr {
	return NewCommandErrFromMsg(err.Error())
}

// NewCommandErrFromMsg creates a CommandErr.
func NewCommandErrFromMsg(message string) *CommandErr {
	return &CommandErr{CommandErrPB: CommandErrPB{Message: message}}
}

// NewMessage implements Message.
func (m *CommandErr) NewMessage() fx.Message { return &CommandErr{} }

// TypeID implements SerializableMessage.
func (m *CommandErr) TypeID() uint32 { return CommandErrTypeID }

// Serializable implements SerializableMessage.
func (m *CommandErr) Serializable() proto.Message { return &m.CommandErrPB }

// Error implements error.
func (m *CommandErr) Error() string { return m.Message }

// Forward command asks the bus master to send a forward frame.
type Forward struct {
	ForwardPB
}

// NewForward creates a Forward command.
func NewForward(address, data byte) *Forward {
	return &Forward{ForwardPB: ForwardPB{Address: uint32(address), Data: uint32(data)}}
}

// NewMessage implements Message.
func (m *Forward) NewMessage() fx.Message { return &Forward{} }

// TypeID implements SerializableMessage.
func (m *Forward) TypeID() uint32 { return ForwardTypeID }

// Serializable implements SerializableMessage.
func (m *Forward) Serializable() proto.Message { return &m.ForwardPB }

// Answer command asks a slave to send a backward frame.
type Answer struct {
	AnswerPB
}

// NewMessage implements Message.
func (m *Answer) NewMessage() fx.Message { return &Answer{} }

// TypeID implements SerializableMessage.
func (m *Answer) TypeID() uint32 { return AnswerTypeID }

// Serializable implements SerializableMessage.
func (m *Answer) Serializable() proto.Message { return &m.AnswerPB }

// Rule command updates the answer table of a slave.
type Rule struct {
	RulePB
}

// NewMessage implements Message.
func (m *Rule) NewMessage() fx.Message { return &Rule{} }

// TypeID implements SerializableMessage.
func (m *Rule) TypeID() uint32 { return RuleTypeID }

// Serializable implements SerializableMessage.
func (m *Rule) Serializable() proto.Message { return &m.RulePB }

// Short command shorts or releases the simulated bus.
type Short struct {
	ShortPB
}

// NewMessage implements Message.
func (m *Short) NewMessage() fx.Message { return &Short{} }

// TypeID implements SerializableMessage.
func (m *Short) TypeID() uint32 { return ShortTypeID }

// Serializable implements SerializableMessage.
func (m *Short) Serializable() proto.Message { return &m.ShortPB }

// Reset command re-initializes a slave.
type Reset struct {
	ResetPB
}

// NewMessage implements Message.
func (m *Reset) NewMessage() fx.Message { return &Reset{} }

// TypeID implements SerializableMessage.
func (m *Reset) TypeID() uint32 { return ResetTypeID }

// Serializable implements SerializableMessage.
func (m *Reset) Serializable() proto.Message { return &m.ResetPB }

// StatsQuery command.
type StatsQuery struct {
	StatsQueryPB
}

// NewMessage implements Message.
func (m *StatsQuery) NewMessage() fx.Message { return &StatsQuery{} }

// TypeID implements SerializableMessage.
func (m *StatsQuery) TypeID() uint32 { return StatsQueryTypeID }

// Serializable implements SerializableMessage.
func (m *StatsQuery) Serializable() proto.Message { return &m.StatsQueryPB }

// Stats reply.
type Stats struct {
	StatsPB
}

// NewStats creates Stats from the counters of a slave.
func NewStats(slave string, s *dali.Slave) *Stats {
	st := s.Stats()
	return &Stats{StatsPB: StatsPB{
		Slave:         slave,
		Frames:        st.Frames,
		Answers:       st.Answers,
		FramingErrors: st.FramingErrors,
		BusFailures:   st.BusFailures,
		Ticks:         s.Ticks(),
		Mode:          s.Mode().String(),
	}}
}

// NewMessage implements Message.
func (m *Stats) NewMessage() fx.Message { return &Stats{} }

// TypeID implements SerializableMessage.
func (m *Stats) TypeID() uint32 { return StatsTypeID }

// Serializable implements SerializableMessage.
func (m *Stats) Serializable() proto.Message { return &m.StatsPB }

// Frame event reports a received forward frame.
type Frame struct {
	FramePB
}

// NewMessage implements Message.
func (m *Frame) NewMessage() fx.Message { return &Frame{} }

// TypeID implements SerializableMessage.
func (m *Frame) TypeID() uint32 { return FrameTypeID }

// Serializable implements SerializableMessage.
func (m *Frame) Serializable() proto.Message { return &m.FramePB }

// Answered event reports a transmitted backward frame.
type Answered struct {
	AnsweredPB
}

// NewMessage implements Message.
func (m *Answered) NewMessage() fx.Message { return &Answered{} }

// TypeID implements SerializableMessage.
func (m *Answered) TypeID() uint32 { return AnsweredTypeID }

// Serializable implements SerializableMessage.
func (m *Answered) Serializable() proto.Message { return &m.AnsweredPB }

// Fault event reports a fault.
type Fault struct {
	FaultPB
}

// FaultCode returns the code as dali.FaultCode.
func (m *Fault) FaultCode() dali.FaultCode {
	return dali.FaultCode(m.Code)
}

// NewMessage implements Message.
func (m *Fault) NewMessage() fx.Message { return &Fault{} }

// TypeID implements SerializableMessage.
func (m *Fault) TypeID() uint32 { return FaultTypeID }

// Serializable implements SerializableMessage.
func (m *Fault) Serializable() proto.Message { return &m.FaultPB }

// Transaction status.
const (
	TransactionAnswered uint32 = iota
	TransactionNoAnswer
	TransactionError
)

// Transaction event reports the outcome of a forward frame on the master.
type Transaction struct {
	TransactionPB
}

// NewMessage implements Message.
func (m *Transaction) NewMessage() fx.Message { return &Transaction{} }

// TypeID implements SerializableMessage.
func (m *Transaction) TypeID() uint32 { return TransactionTypeID }

// Serializable implements SerializableMessage.
func (m *Transaction) Serializable() proto.Message { return &m.TransactionPB }

// TypeID Groups
const (
	GroupCommand uint32 = 0x00000000
	GroupBus     uint32 = 0x00010000
	GroupSlave   uint32 = 0x00020000
	GroupCustom  uint32 = 0x7f000000 // base group id for custom messages.
)

// TypeIDs
const (
	CommandOKTypeID   uint32 = GroupCommand | TypeIDMaskReply | 0x0000
	CommandErrTypeID  uint32 = GroupCommand | TypeIDMaskReply | 0x0001
	ForwardTypeID     uint32 = GroupBus | 0x0000
	ShortTypeID       uint32 = GroupBus | 0x0001
	TransactionTypeID uint32 = TypeIDKindEvent | GroupBus | 0x0000
	AnswerTypeID      uint32 = GroupSlave | 0x0000
	RuleTypeID        uint32 = GroupSlave | 0x0001
	ResetTypeID       uint32 = GroupSlave | 0x0002
	StatsQueryTypeID  uint32 = GroupSlave | 0x0003
	StatsTypeID       uint32 = StatsQueryTypeID | TypeIDMaskReply
	FrameTypeID       uint32 = TypeIDKindEvent | GroupSlave | 0x0000
	AnsweredTypeID    uint32 = TypeIDKindEvent | GroupSlave | 0x0001
	FaultTypeID       uint32 = TypeIDKindEvent | GroupSlave | 0x0002
)

func init() {
	for name, msg := range map[string]SerializableMessage{
		"ok":          (*CommandOK)(nil),
		"error":       (*CommandErr)(nil),
		"forward":     (*Forward)(nil),
		"short":       (*Short)(nil),
		"transaction": (*Transaction)(nil),
		"answer":      (*Answer)(nil),
		"rule":        (*Rule)(nil),
		"reset":       (*Reset)(nil),
		"stats-query": (*StatsQuery)(nil),
		"stats":       (*Stats)(nil),
		"frame":       (*Frame)(nil),
		"answered":    (*Answered)(nil),
		"fault":       (*Fault)(nil),
	} {
		Register(name, msg)
	}
}
