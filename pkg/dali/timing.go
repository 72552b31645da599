package dali

import "fmt"

// Bus timing in units of the sampling tick.
const (
	// BitRate is the nominal DALI bus bit rate (bits/s).
	BitRate = 1200
	// TicksPerBit is the number of ticks in one bit cell.
	TicksPerBit = 8
	// TicksPerHalfBit is the distance between a bit boundary and its
	// mid-bit transition.
	TicksPerHalfBit = TicksPerBit / 2
	// DefaultTickFrequency samples the bus at TicksPerBit x BitRate.
	DefaultTickFrequency = BitRate * TicksPerBit

	// GlitchTicks is the minimum silence before an edge can begin a start bit.
	GlitchTicks = TicksPerBit / 4
	// EarliestEdge is the lower (exclusive) bound of the edge window.
	EarliestEdge = TicksPerBit - TicksPerBit/4
	// LatestEdge is the last tick at which a mid-bit edge is accepted.
	LatestEdge = TicksPerBit + TicksPerBit/4
)

// Send schedule, in ticks from the start of a backward transaction.
const (
	// SettleTicks is the guard time between a forward frame and its answer.
	SettleTicks   = 4 * TicksPerBit
	sendStartBit  = SettleTicks
	sendStartEdge = sendStartBit + TicksPerHalfBit
	sendFirstBit  = sendStartBit + TicksPerBit
	sendStopBits  = sendFirstBit + 8*TicksPerBit
	// SendTicks is the length of a complete backward transaction.
	SendTicks = sendStopBits + 2*TicksPerBit
)

// Receive cursor positions.
const (
	rxStartBit  = 0
	rxFirstBit  = 1
	rxFirstData = 9
	rxStopBit1  = 17
	rxStopBit2  = 18
)

const (
	busFailureMillis = 500
	minTickFrequency = 1000
)

// Timing holds the values that depend on the configured tick frequency.
type Timing struct {
	// Frequency is the tick frequency in Hz.
	Frequency uint32
	// FailureTicks is the number of consecutive low samples tolerated before
	// a bus failure is reported.
	FailureTicks uint32
}

// NewTiming derives the frequency dependent timing values.
func NewTiming(frequency uint32) (Timing, error) {
	if frequency == 0 {
		frequency = DefaultTickFrequency
	}
	if frequency < minTickFrequency || frequency%TicksPerBit != 0 {
		return Timing{}, fmt.Errorf("dali: invalid tick frequency %d Hz", frequency)
	}
	return Timing{
		Frequency:    frequency,
		FailureTicks: uint32(uint64(frequency) * busFailureMillis / 1000),
	}, nil
}

// BitRate returns the bus bit rate implied by the tick frequency.
func (t Timing) BitRate() uint32 {
	return t.Frequency / TicksPerBit
}

// MillisecondTicker fires once per millisecond worth of ticks. It keeps the
// fractional remainder so the average rate is exact even when the tick
// frequency is not a multiple of 1 kHz.
type MillisecondTicker struct {
	frequency uint32
	acc       uint32
}

// NewMillisecondTicker creates a MillisecondTicker for the tick frequency.
func NewMillisecondTicker(frequency uint32) MillisecondTicker {
	return MillisecondTicker{frequency: frequency}
}

// Tick advances by one tick and reports whether a millisecond elapsed.
func (m *MillisecondTicker) Tick() bool {
	m.acc += 1000
	if m.acc >= m.frequency {
		m.acc -= m.frequency
		return true
	}
	return false
}
