// Package link is the byte protocol between a slave running the firmware
// and its host gateway, usually over a serial port.
//
// Both peers synchronize their packet sequence numbers first: a peer sends
// ctlSync followed by its next sequence number, and the other side answers
// ctlAck with its own. Afterwards every packet starts with the expected
// sequence number, so lost or corrupted bytes are detected and trigger a
// new synchronization. There is no checksum; enable parity on the serial
// port if needed.
//
// Packet layout:
//
//	seq | flags:1 len:3 code:4 | [len] | data
//
// A 3-bit length of 7 means the length follows in the next byte. Codes
// with the event flag (0x80) are unsolicited events from the firmware.
// Replies carry the request code, the error flag (0x01) on failure, and
// the request sequence number as the first data byte.
package link
