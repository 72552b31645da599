package dali

import (
	"errors"
	"fmt"
)

// FaultCode identifies a fault signalled through a FaultHandler.
type FaultCode byte

// Fault codes.
const (
	// FaultBusFailure reports the bus held at space level for longer than
	// 500 ms (bus power lost or shorted).
	FaultBusFailure FaultCode = 0x01

	// FaultStartBit reports a start bit without its mid-bit transition.
	FaultStartBit FaultCode = 0x10
	// FaultMissingEdge reports a data bit without a transition in the
	// acceptance window.
	FaultMissingEdge FaultCode = 0x11
	// FaultStopBitEdge reports a transition inside the stop bits.
	FaultStopBitEdge FaultCode = 0x12
	// FaultStopBitLevel reports a stop bit sampled at space level.
	FaultStopBitLevel FaultCode = 0x13
)

var faultNames = map[FaultCode]string{
	FaultBusFailure:   "bus failure",
	FaultStartBit:     "start bit timeout",
	FaultMissingEdge:  "missing edge",
	FaultStopBitEdge:  "edge in stop bit",
	FaultStopBitLevel: "stop bit level",
}

// String implements fmt.Stringer.
func (c FaultCode) String() string {
	if name, ok := faultNames[c]; ok {
		return name
	}
	return fmt.Sprintf("fault 0x%02x", byte(c))
}

// IsFraming indicates the fault is a framing error of a single frame.
func (c FaultCode) IsFraming() bool {
	return c >= FaultStartBit && c <= FaultStopBitLevel
}

// FaultError wraps a FaultCode as an error.
type FaultError struct {
	Code FaultCode
}

// Error implements error.
func (e *FaultError) Error() string {
	return "dali: " + e.Code.String()
}

var (
	// ErrBusy indicates a transaction is in progress or already requested.
	ErrBusy = errors.New("dali: busy")
)
