package stream

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestReadWriter(t *testing.T) {
	var buf bytes.Buffer
	rw := New(&buf)
	require.NoError(t, rw.WritePacket([]byte{1, 2, 3}))
	require.NoError(t, rw.WritePacket(nil))
	require.Equal(t, []byte{3, 0, 0, 0, 1, 2, 3, 0, 0, 0, 0}, buf.Bytes())

	pkt, err := rw.ReadPacket()
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, pkt)
	pkt, err = rw.ReadPacket()
	require.NoError(t, err)
	require.Empty(t, pkt)
	_, err = rw.ReadPacket()
	require.Equal(t, io.EOF, err)
}

func TestReadPacketTruncated(t *testing.T) {
	_, err := ReadPacket(bytes.NewReader([]byte{4, 0, 0, 0, 1}))
	require.Equal(t, io.ErrUnexpectedEOF, err)
	_, err = ReadPacket(bytes.NewReader([]byte{1, 0}))
	require.Equal(t, io.ErrUnexpectedEOF, err)
	_, err = ReadPacket(bytes.NewReader([]byte{0, 0, 0, 0x10}))
	require.ErrorContains(t, err, "too large")
	require.Error(t, WritePacket(io.Discard, make([]byte, MaxPacketSize+1)))
}

func TestCapture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bus.cap")
	rec, err := Create(path)
	require.NoError(t, err)
	start := time.Unix(1700000000, 0)
	n := 0
	rec.Now = func() time.Time {
		n++
		return start.Add(time.Duration(n) * time.Millisecond)
	}
	require.NoError(t, rec.WritePacket([]byte("a")))
	require.NoError(t, rec.WritePacket([]byte("bc")))
	require.NoError(t, rec.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	p, err := NewPlayer(f)
	require.NoError(t, err)
	r, err := p.Next()
	require.NoError(t, err)
	require.Equal(t, []byte("a"), r.Packet)
	require.True(t, r.Time.Equal(start.Add(time.Millisecond)))
	pkt, err := p.ReadPacket()
	require.NoError(t, err)
	require.Equal(t, []byte("bc"), pkt)
	_, err = p.Next()
	require.Equal(t, io.EOF, err)
}

func TestNotCapture(t *testing.T) {
	_, err := NewPlayer(bytes.NewReader([]byte("hello")))
	require.Equal(t, ErrNotCapture, err)
}
