package link

import (
	"io"
	"time"
)

// Code bits.
const (
	FlagEvent byte = 0x80
	FlagError byte = 0x01
	codeMask  byte = 0x8f
	lenMask   byte = 0x70
	lenShift       = 4
	lenFollow byte = 7
)

// Command codes, sent by the host.
const (
	CmdPing   byte = 0x00
	CmdAnswer byte = 0x02
	CmdRule   byte = 0x04
	CmdReset  byte = 0x06
	CmdStats  byte = 0x08
)

// Event codes, sent by the firmware.
const (
	EventFrame    byte = FlagEvent | 0x01
	EventFault    byte = FlagEvent | 0x02
	EventAnswered byte = FlagEvent | 0x03
)

// MaxDataLen is the largest payload of a packet.
const MaxDataLen = 0x7f

// Seq is a packet sequence number. Valid numbers are 1 to 0xef, the rest
// are reserved for control bytes.
type Seq byte

// NewSeq picks a random initial sequence number.
func NewSeq() Seq {
	return Seq(byte(time.Now().UnixNano())).Next()
}

// Next returns the following sequence number.
func (s Seq) Next() Seq {
	n := byte(s) + 1
	if !Seq(n).IsValid() {
		n = 1
	}
	return Seq(n)
}

// IsValid checks the sequence number is not reserved.
func (s Seq) IsValid() bool {
	return s > 0 && s < 0xf0
}

// Packet is a decoded packet.
type Packet struct {
	Seq  Seq
	Code byte
	Data []byte
}

// IsEvent indicates the packet is an event.
func (p *Packet) IsEvent() bool {
	return p.Code&FlagEvent != 0
}

func (p *Packet) header() []byte {
	l := byte(len(p.Data))
	if l < lenFollow {
		return []byte{byte(p.Seq), p.Code&codeMask | l<<lenShift}
	}
	return []byte{byte(p.Seq), p.Code&codeMask | lenMask, l}
}

// Bytes encodes the packet.
func (p *Packet) Bytes() []byte {
	return append(p.header(), p.Data...)
}

// WriteTo implements io.WriterTo. It writes the packet in one Write.
func (p *Packet) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(p.Bytes())
	return int64(n), err
}

// Reply creates the reply to the packet.
func (p *Packet) Reply(data ...byte) *Packet {
	return &Packet{Code: p.Code &^ FlagError, Data: append([]byte{byte(p.Seq)}, data...)}
}

// ReplyError creates an error reply to the packet.
func (p *Packet) ReplyError(reason byte) *Packet {
	return &Packet{Code: p.Code | FlagError, Data: []byte{byte(p.Seq), reason}}
}
