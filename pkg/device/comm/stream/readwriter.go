// Package stream frames packets on byte streams: each packet is prefixed
// by its length as a 4-byte little-endian integer.
package stream

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MaxPacketSize bounds the length prefix accepted by ReadPacket.
const MaxPacketSize = 1 << 20

// ReadWriter implements PacketReadWriter.
type ReadWriter struct {
	io.ReadWriter
}

// New creates a ReadWriter with io.ReadWriter.
func New(s io.ReadWriter) *ReadWriter {
	return &ReadWriter{s}
}

// ReadPacket implements PacketReader.
func (p *ReadWriter) ReadPacket() ([]byte, error) {
	return ReadPacket(p)
}

// WritePacket implements PacketWriter.
func (p *ReadWriter) WritePacket(pkt []byte) error {
	return WritePacket(p, pkt)
}

// ReadPacket reads one length-prefixed packet. A stream ending inside a
// packet yields io.ErrUnexpectedEOF, a stream ending between packets io.EOF.
func ReadPacket(r io.Reader) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	size := binary.LittleEndian.Uint32(hdr[:])
	if size > MaxPacketSize {
		return nil, fmt.Errorf("stream: packet too large (%d bytes)", size)
	}
	pkt := make([]byte, size)
	if _, err := io.ReadFull(r, pkt); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return pkt, nil
}

// WritePacket writes one length-prefixed packet in a single Write, so
// packets from concurrent writers on a file in append mode don't mix.
func WritePacket(w io.Writer, pkt []byte) error {
	if len(pkt) > MaxPacketSize {
		return fmt.Errorf("stream: packet too large (%d bytes)", len(pkt))
	}
	buf := make([]byte, 4+len(pkt))
	binary.LittleEndian.PutUint32(buf, uint32(len(pkt)))
	copy(buf[4:], pkt)
	_, err := w.Write(buf)
	return err
}
