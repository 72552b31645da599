package stream

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"sync"
	"time"
)

// Capture files start with this magic followed by records of a 8-byte
// little-endian Unix nanosecond timestamp and a length-prefixed packet.
var captureMagic = []byte("DALICAP1")

// ErrNotCapture indicates the file is not a capture file.
var ErrNotCapture = errors.New("stream: not a capture file")

// Recorder writes timestamped packets into a capture file.
type Recorder struct {
	Now func() time.Time

	file *os.File
	w    *bufio.Writer
	lock sync.Mutex
}

// Create creates a capture file.
func Create(path string) (*Recorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	r := &Recorder{Now: time.Now, file: f, w: bufio.NewWriter(f)}
	if _, err := r.w.Write(captureMagic); err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

// WritePacket implements PacketWriter.
func (r *Recorder) WritePacket(pkt []byte) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	var ts [8]byte
	binary.LittleEndian.PutUint64(ts[:], uint64(r.Now().UnixNano()))
	if _, err := r.w.Write(ts[:]); err != nil {
		return err
	}
	if err := WritePacket(r.w, pkt); err != nil {
		return err
	}
	return r.w.Flush()
}

// Close implements io.Closer.
func (r *Recorder) Close() error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if err := r.w.Flush(); err != nil {
		r.file.Close()
		return err
	}
	return r.file.Close()
}

// Record is one packet read from a capture file.
type Record struct {
	Time   time.Time
	Packet []byte
}

// Player reads a capture file.
type Player struct {
	r io.Reader
}

// NewPlayer validates the capture header and creates a Player.
func NewPlayer(r io.Reader) (*Player, error) {
	br := bufio.NewReader(r)
	magic := make([]byte, len(captureMagic))
	if _, err := io.ReadFull(br, magic); err != nil || string(magic) != string(captureMagic) {
		return nil, ErrNotCapture
	}
	return &Player{r: br}, nil
}

// Next reads the next record, io.EOF at the end of the capture.
func (p *Player) Next() (rec Record, err error) {
	var ts [8]byte
	if _, err = io.ReadFull(p.r, ts[:]); err != nil {
		return
	}
	rec.Time = time.Unix(0, int64(binary.LittleEndian.Uint64(ts[:])))
	rec.Packet, err = ReadPacket(p.r)
	return
}

// ReadPacket implements PacketReader.
func (p *Player) ReadPacket() ([]byte, error) {
	rec, err := p.Next()
	return rec.Packet, err
}
