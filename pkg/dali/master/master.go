// Package master implements the bus master side of the DALI physical layer:
// it sends 16 bit forward frames and decodes the 8 bit backward frames
// answered by slaves. It is tick driven like the slave and polls the input
// instead of using edge interrupts.
package master

import (
	"sync/atomic"

	"github.com/robotalks/dali.go/pkg/dali"
)

// AnswerHandler receives the outcome of a transaction.
type AnswerHandler interface {
	HandleAnswer(address, data, answer byte)
	HandleNoAnswer(address, data byte)
	HandleAnswerError(address, data byte, code dali.FaultCode)
}

// AnswerFuncs adapts funcs to AnswerHandler, nil funcs are skipped.
type AnswerFuncs struct {
	Answer   func(address, data, answer byte)
	NoAnswer func(address, data byte)
	Error    func(address, data byte, code dali.FaultCode)
}

// HandleAnswer implements AnswerHandler.
func (f AnswerFuncs) HandleAnswer(address, data, answer byte) {
	if f.Answer != nil {
		f.Answer(address, data, answer)
	}
}

// HandleNoAnswer implements AnswerHandler.
func (f AnswerFuncs) HandleNoAnswer(address, data byte) {
	if f.NoAnswer != nil {
		f.NoAnswer(address, data)
	}
}

// HandleAnswerError implements AnswerHandler.
func (f AnswerFuncs) HandleAnswerError(address, data byte, code dali.FaultCode) {
	if f.Error != nil {
		f.Error(address, data, code)
	}
}

// Config configures a Master.
type Config struct {
	Line          *dali.Line
	TickFrequency uint32
	Answers       AnswerHandler
}

// Phase is the transaction phase of a Master.
type Phase uint32

// Phases.
const (
	PhaseIdle Phase = iota
	PhaseForward
	PhaseWaiting
	PhaseBackward
)

// String implements fmt.Stringer.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseForward:
		return "forward"
	case PhaseWaiting:
		return "waiting"
	case PhaseBackward:
		return "backward"
	}
	return "unknown"
}

const (
	pendingValid = 1 << 16

	forwardHalfBits = 2 + 16*2 + 4
	// ForwardTicks is the length of a forward frame including stop bits.
	ForwardTicks = forwardHalfBits * dali.TicksPerHalfBit
	// AnswerWindow is the number of ticks after a forward frame within
	// which a backward frame must start: 22 half bits plus a margin.
	AnswerWindow = 22*dali.TicksPerHalfBit + 12

	bwStartBit = 0
	bwStopBit1 = 9
	bwStopBit2 = 10
)

// Master is the DALI bus master. Send may be called from any goroutine,
// OnTick from a single one.
type Master struct {
	line    *dali.Line
	answers AnswerHandler

	phase   atomic.Uint32
	pending atomic.Uint32

	address  byte
	data     byte
	answer   byte
	bit      uint8
	count    uint16
	previous bool
}

// New creates a Master. The output is driven to mark level.
func New(conf Config) (*Master, error) {
	// frame timing is counted in ticks, the frequency only has to be valid.
	if _, err := dali.NewTiming(conf.TickFrequency); err != nil {
		return nil, err
	}
	m := &Master{line: conf.Line, answers: conf.Answers}
	if m.answers == nil {
		m.answers = AnswerFuncs{}
	}
	m.line.WriteOutput(true)
	return m, nil
}

// Phase returns the current transaction phase.
func (m *Master) Phase() Phase {
	return Phase(m.phase.Load())
}

// Busy indicates a transaction is requested or running.
func (m *Master) Busy() bool {
	return m.pending.Load() != 0
}

// Send requests a forward frame. It starts on the next tick.
func (m *Master) Send(address, data byte) error {
	if !m.pending.CompareAndSwap(0, pendingValid|uint32(address)<<8|uint32(data)) {
		return dali.ErrBusy
	}
	return nil
}

// OnTick advances the transaction by one tick.
func (m *Master) OnTick() {
	switch m.Phase() {
	case PhaseIdle:
		if p := m.pending.Load(); p != 0 {
			m.address, m.data = byte(p>>8), byte(p)
			m.count = 0
			m.phase.Store(uint32(PhaseForward))
			m.forwardTick()
		}
	case PhaseForward:
		m.forwardTick()
	case PhaseWaiting:
		m.waitTick()
	case PhaseBackward:
		m.backwardTick()
	}
}

func (m *Master) halfBit(n int) bool {
	switch {
	case n < 2:
		return n == 1
	case n < 2+16*2:
		n -= 2
		frame := uint16(m.address)<<8 | uint16(m.data)
		bit := (frame>>uint(15-n/2))&1 == 1
		if n%2 == 0 {
			return !bit
		}
		return bit
	}
	return true
}

func (m *Master) forwardTick() {
	t := m.count
	m.count++
	if t == ForwardTicks {
		m.count = 0
		m.previous = m.line.ReadInput()
		m.phase.Store(uint32(PhaseWaiting))
		return
	}
	if t%dali.TicksPerHalfBit == 0 {
		m.line.WriteOutput(m.halfBit(int(t / dali.TicksPerHalfBit)))
	}
}

func (m *Master) waitTick() {
	current := m.line.ReadInput()
	m.count++
	if m.previous && !current {
		m.answer = 0
		m.bit, m.count = bwStartBit, 1
		m.previous = current
		m.phase.Store(uint32(PhaseBackward))
		return
	}
	m.previous = current
	if m.count > AnswerWindow {
		m.finish()
		m.answers.HandleNoAnswer(m.address, m.data)
	}
}

// backwardTick decodes the backward frame with the same acceptance windows
// as the slave receiver.
func (m *Master) backwardTick() {
	current := m.line.ReadInput()
	m.count++

	var fault dali.FaultCode
	if current != m.previous {
		switch m.bit {
		case bwStartBit:
			if m.count > dali.GlitchTicks {
				m.count = 0
				m.bit++
			}
		case bwStopBit1:
			if m.count > dali.EarliestEdge {
				fault = dali.FaultStopBitEdge
			}
		case bwStopBit2:
			fault = dali.FaultStopBitEdge
		default:
			if m.count > dali.EarliestEdge {
				if current {
					m.answer |= 1 << (bwStopBit1 - 1 - m.bit)
				}
				m.bit++
				m.count = 0
			}
		}
	} else {
		switch m.bit {
		case bwStartBit:
			if m.count == dali.TicksPerBit {
				fault = dali.FaultStartBit
			}
		case bwStopBit1:
			if m.count == dali.TicksPerBit {
				if !current {
					fault = dali.FaultStopBitLevel
				} else {
					m.bit++
					m.count = 0
				}
			}
		case bwStopBit2:
			if m.count == dali.LatestEdge {
				m.finish()
				m.answers.HandleAnswer(m.address, m.data, m.answer)
				return
			}
		default:
			if m.count == dali.LatestEdge {
				fault = dali.FaultMissingEdge
			}
		}
	}
	m.previous = current

	if fault != 0 {
		m.finish()
		m.answers.HandleAnswerError(m.address, m.data, fault)
	}
}

func (m *Master) finish() {
	m.phase.Store(uint32(PhaseIdle))
	m.pending.Store(0)
}
