package msgs

import "github.com/golang/protobuf/proto"

// Wire structs in proto3 layout. Field numbers are part of the protocol and
// must not be reused.

// TypedPB is the envelope of every packet.
type TypedPB struct {
	TypeId   uint32 `protobuf:"varint,1,opt,name=type_id,json=typeId,proto3" json:"type_id,omitempty"`
	Sequence uint32 `protobuf:"varint,2,opt,name=sequence,proto3" json:"sequence,omitempty"`
	Message  []byte `protobuf:"bytes,3,opt,name=message,proto3" json:"message,omitempty"`
}

func (m *TypedPB) Reset()         { *m = TypedPB{} }
func (m *TypedPB) String() string { return proto.CompactTextString(m) }
func (*TypedPB) ProtoMessage()    {}

// CommandOKPB is the generic success reply.
type CommandOKPB struct{}

func (m *CommandOKPB) Reset()         { *m = CommandOKPB{} }
func (m *CommandOKPB) String() string { return proto.CompactTextString(m) }
func (*CommandOKPB) ProtoMessage()    {}

// CommandErrPB is the generic error reply.
type CommandErrPB struct {
	Message string `protobuf:"bytes,1,opt,name=message,proto3" json:"message,omitempty"`
}

func (m *CommandErrPB) Reset()         { *m = CommandErrPB{} }
func (m *CommandErrPB) String() string { return proto.CompactTextString(m) }
func (*CommandErrPB) ProtoMessage()    {}

// ForwardPB requests the bus master to send a forward frame.
type ForwardPB struct {
	Address uint32 `protobuf:"varint,1,opt,name=address,proto3" json:"address"`
	Data    uint32 `protobuf:"varint,2,opt,name=data,proto3" json:"data"`
}

func (m *ForwardPB) Reset()         { *m = ForwardPB{} }
func (m *ForwardPB) String() string { return proto.CompactTextString(m) }
func (*ForwardPB) ProtoMessage()    {}

// AnswerPB requests a slave to send a backward frame.
type AnswerPB struct {
	Slave  string `protobuf:"bytes,1,opt,name=slave,proto3" json:"slave,omitempty"`
	Answer uint32 `protobuf:"varint,2,opt,name=answer,proto3" json:"answer"`
}

func (m *AnswerPB) Reset()         { *m = AnswerPB{} }
func (m *AnswerPB) String() string { return proto.CompactTextString(m) }
func (*AnswerPB) ProtoMessage()    {}

// RulePB adds or removes an answer table entry of a slave.
type RulePB struct {
	Slave   string `protobuf:"bytes,1,opt,name=slave,proto3" json:"slave,omitempty"`
	Address uint32 `protobuf:"varint,2,opt,name=address,proto3" json:"address"`
	Data    uint32 `protobuf:"varint,3,opt,name=data,proto3" json:"data"`
	Answer  uint32 `protobuf:"varint,4,opt,name=answer,proto3" json:"answer"`
	Remove  bool   `protobuf:"varint,5,opt,name=remove,proto3" json:"remove,omitempty"`
}

func (m *RulePB) Reset()         { *m = RulePB{} }
func (m *RulePB) String() string { return proto.CompactTextString(m) }
func (*RulePB) ProtoMessage()    {}

// ShortPB shorts or releases the simulated bus.
type ShortPB struct {
	On bool `protobuf:"varint,1,opt,name=on,proto3" json:"on"`
}

func (m *ShortPB) Reset()         { *m = ShortPB{} }
func (m *ShortPB) String() string { return proto.CompactTextString(m) }
func (*ShortPB) ProtoMessage()    {}

// ResetPB re-initializes a slave.
type ResetPB struct {
	Slave string `protobuf:"bytes,1,opt,name=slave,proto3" json:"slave,omitempty"`
}

func (m *ResetPB) Reset()         { *m = ResetPB{} }
func (m *ResetPB) String() string { return proto.CompactTextString(m) }
func (*ResetPB) ProtoMessage()    {}

// StatsQueryPB queries the counters of a slave.
type StatsQueryPB struct {
	Slave string `protobuf:"bytes,1,opt,name=slave,proto3" json:"slave,omitempty"`
}

func (m *StatsQueryPB) Reset()         { *m = StatsQueryPB{} }
func (m *StatsQueryPB) String() string { return proto.CompactTextString(m) }
func (*StatsQueryPB) ProtoMessage()    {}

// StatsPB carries the counters of a slave.
type StatsPB struct {
	Slave         string `protobuf:"bytes,1,opt,name=slave,proto3" json:"slave,omitempty"`
	Frames        uint32 `protobuf:"varint,2,opt,name=frames,proto3" json:"frames"`
	Answers       uint32 `protobuf:"varint,3,opt,name=answers,proto3" json:"answers"`
	FramingErrors uint32 `protobuf:"varint,4,opt,name=framing_errors,json=framingErrors,proto3" json:"framing_errors"`
	BusFailures   uint32 `protobuf:"varint,5,opt,name=bus_failures,json=busFailures,proto3" json:"bus_failures"`
	Ticks         uint32 `protobuf:"varint,6,opt,name=ticks,proto3" json:"ticks"`
	Mode          string `protobuf:"bytes,7,opt,name=mode,proto3" json:"mode"`
}

func (m *StatsPB) Reset()         { *m = StatsPB{} }
func (m *StatsPB) String() string { return proto.CompactTextString(m) }
func (*StatsPB) ProtoMessage()    {}

// FramePB reports a forward frame received by a slave.
type FramePB struct {
	Slave   string `protobuf:"bytes,1,opt,name=slave,proto3" json:"slave,omitempty"`
	Address uint32 `protobuf:"varint,2,opt,name=address,proto3" json:"address"`
	Data    uint32 `protobuf:"varint,3,opt,name=data,proto3" json:"data"`
	Tick    uint32 `protobuf:"varint,4,opt,name=tick,proto3" json:"tick"`
}

func (m *FramePB) Reset()         { *m = FramePB{} }
func (m *FramePB) String() string { return proto.CompactTextString(m) }
func (*FramePB) ProtoMessage()    {}

// AnsweredPB reports a backward frame transmitted by a slave.
type AnsweredPB struct {
	Slave  string `protobuf:"bytes,1,opt,name=slave,proto3" json:"slave,omitempty"`
	Answer uint32 `protobuf:"varint,2,opt,name=answer,proto3" json:"answer"`
	Tick   uint32 `protobuf:"varint,3,opt,name=tick,proto3" json:"tick"`
}

func (m *AnsweredPB) Reset()         { *m = AnsweredPB{} }
func (m *AnsweredPB) String() string { return proto.CompactTextString(m) }
func (*AnsweredPB) ProtoMessage()    {}

// FaultPB reports a fault detected by a slave.
type FaultPB struct {
	Slave string `protobuf:"bytes,1,opt,name=slave,proto3" json:"slave,omitempty"`
	Code  uint32 `protobuf:"varint,2,opt,name=code,proto3" json:"code"`
	Tick  uint32 `protobuf:"varint,3,opt,name=tick,proto3" json:"tick"`
}

func (m *FaultPB) Reset()         { *m = FaultPB{} }
func (m *FaultPB) String() string { return proto.CompactTextString(m) }
func (*FaultPB) ProtoMessage()    {}

// TransactionPB reports the outcome of a forward frame seen by the master.
type TransactionPB struct {
	Address uint32 `protobuf:"varint,1,opt,name=address,proto3" json:"address"`
	Data    uint32 `protobuf:"varint,2,opt,name=data,proto3" json:"data"`
	Status  uint32 `protobuf:"varint,3,opt,name=status,proto3" json:"status"`
	Answer  uint32 `protobuf:"varint,4,opt,name=answer,proto3" json:"answer,omitempty"`
	Fault   uint32 `protobuf:"varint,5,opt,name=fault,proto3" json:"fault,omitempty"`
}

func (m *TransactionPB) Reset()         { *m = TransactionPB{} }
func (m *TransactionPB) String() string { return proto.CompactTextString(m) }
func (*TransactionPB) ProtoMessage()    {}
