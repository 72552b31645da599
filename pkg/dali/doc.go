// Package dali implements the physical/data-link layer of a DALI slave.
//
// The slave is driven by two entry points only: OnTick, called once per
// period of a free-running timer at 8x the bus bit rate, and OnEdge, called
// by the input edge interrupt while the slave is idle. Both run to
// completion without blocking and without allocating, so they can be called
// directly from interrupt handlers.
//
// Received forward frames (address byte + data byte) are delivered through
// a FrameHandler. Answers (backward frames) are requested with RequestSend
// and shifted out by subsequent ticks.
package dali

// Frame layout of a forward frame as seen by the receive engine:
//
//	bit 0      start bit
//	bits 1-8   address, MSB first
//	bits 9-16  data, MSB first
//	bits 17-18 stop bits (no transition, mark level)
//
// Each bit cell is TicksPerBit ticks and carries exactly one transition in
// its middle. The level after that transition is the bit value.
