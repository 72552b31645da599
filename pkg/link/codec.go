package link

import (
	"encoding/binary"

	"github.com/robotalks/dali.go/pkg/dali"
)

// Event is a decoded event packet.
type Event interface {
	EventCode() byte
}

// FrameEvent reports a received forward frame.
type FrameEvent struct {
	Address byte
	Data    byte
	Tick    uint32
}

// EventCode implements Event.
func (e *FrameEvent) EventCode() byte { return EventFrame }

// FaultEvent reports a fault.
type FaultEvent struct {
	Code dali.FaultCode
	Tick uint32
}

// EventCode implements Event.
func (e *FaultEvent) EventCode() byte { return EventFault }

// AnsweredEvent reports a transmitted backward frame.
type AnsweredEvent struct {
	Answer byte
	Tick   uint32
}

// EventCode implements Event.
func (e *AnsweredEvent) EventCode() byte { return EventAnswered }

// EncodeEvent creates the packet of an event.
func EncodeEvent(evt Event) *Packet {
	pkt := &Packet{Code: evt.EventCode()}
	switch e := evt.(type) {
	case *FrameEvent:
		pkt.Data = appendTick([]byte{e.Address, e.Data}, e.Tick)
	case *FaultEvent:
		pkt.Data = appendTick([]byte{byte(e.Code)}, e.Tick)
	case *AnsweredEvent:
		pkt.Data = appendTick([]byte{e.Answer}, e.Tick)
	}
	return pkt
}

// DecodeEvent decodes an event packet.
func DecodeEvent(pkt *Packet) (Event, error) {
	d := pkt.Data
	switch pkt.Code {
	case EventFrame:
		if len(d) != 6 {
			return nil, ErrMalformed
		}
		return &FrameEvent{Address: d[0], Data: d[1], Tick: binary.LittleEndian.Uint32(d[2:])}, nil
	case EventFault:
		if len(d) != 5 {
			return nil, ErrMalformed
		}
		return &FaultEvent{Code: dali.FaultCode(d[0]), Tick: binary.LittleEndian.Uint32(d[1:])}, nil
	case EventAnswered:
		if len(d) != 5 {
			return nil, ErrMalformed
		}
		return &AnsweredEvent{Answer: d[0], Tick: binary.LittleEndian.Uint32(d[1:])}, nil
	}
	return nil, &CommandError{Code: pkt.Code, Reason: ReasonUnsupported}
}

func appendTick(b []byte, tick uint32) []byte {
	var t [4]byte
	binary.LittleEndian.PutUint32(t[:], tick)
	return append(b, t[:]...)
}

// Stats is the payload of the CmdStats reply.
type Stats struct {
	dali.Stats
	Ticks uint32
	Mode  dali.Mode
}

const statsLen = 21

// Bytes encodes the stats.
func (s *Stats) Bytes() []byte {
	b := make([]byte, statsLen)
	binary.LittleEndian.PutUint32(b[0:], s.Frames)
	binary.LittleEndian.PutUint32(b[4:], s.Answers)
	binary.LittleEndian.PutUint32(b[8:], s.FramingErrors)
	binary.LittleEndian.PutUint32(b[12:], s.BusFailures)
	binary.LittleEndian.PutUint32(b[16:], s.Ticks)
	b[20] = byte(s.Mode)
	return b
}

// DecodeStats decodes the stats reply.
func DecodeStats(b []byte) (*Stats, error) {
	if len(b) != statsLen {
		return nil, ErrMalformed
	}
	s := &Stats{Ticks: binary.LittleEndian.Uint32(b[16:]), Mode: dali.Mode(b[20])}
	s.Frames = binary.LittleEndian.Uint32(b[0:])
	s.Answers = binary.LittleEndian.Uint32(b[4:])
	s.FramingErrors = binary.LittleEndian.Uint32(b[8:])
	s.BusFailures = binary.LittleEndian.Uint32(b[12:])
	return s, nil
}

// RuleArgs is the payload of CmdRule.
type RuleArgs struct {
	Address byte
	Data    byte
	Answer  byte
	Remove  bool
}

// Bytes encodes the rule.
func (r *RuleArgs) Bytes() []byte {
	var rm byte
	if r.Remove {
		rm = 1
	}
	return []byte{r.Address, r.Data, r.Answer, rm}
}

// DecodeRule decodes the CmdRule payload.
func DecodeRule(b []byte) (*RuleArgs, error) {
	if len(b) != 4 || b[3] > 1 {
		return nil, ErrMalformed
	}
	return &RuleArgs{Address: b[0], Data: b[1], Answer: b[2], Remove: b[3] != 0}, nil
}
