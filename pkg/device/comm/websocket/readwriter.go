// Package websocket carries packets over websocket connections and serves
// a live event feed to browsers and tools.
package websocket

import (
	"time"

	"golang.org/x/net/websocket"
)

// DefaultWriteTimeout bounds a write to one client, so a stalled browser
// can't hold back the feed of every other client.
const DefaultWriteTimeout = 2 * time.Second

// ReadWriter implements comm.PacketReadWriter on a websocket connection.
// Packets are binary frames unless Text is set.
type ReadWriter struct {
	Conn         *websocket.Conn
	Text         bool
	WriteTimeout time.Duration
}

// New wraps websocket.Conn for binary packets.
func New(conn *websocket.Conn) *ReadWriter {
	return &ReadWriter{Conn: conn, WriteTimeout: DefaultWriteTimeout}
}

// NewText wraps websocket.Conn for text packets, e.g. JSON.
func NewText(conn *websocket.Conn) *ReadWriter {
	rw := New(conn)
	rw.Text = true
	return rw
}

// ReadPacket implements PacketReader. Both text and binary frames are
// accepted.
func (p *ReadWriter) ReadPacket() (pkt []byte, err error) {
	err = websocket.Message.Receive(p.Conn, &pkt)
	return
}

// WritePacket implements PacketWriter.
func (p *ReadWriter) WritePacket(pkt []byte) error {
	if p.WriteTimeout > 0 {
		if err := p.Conn.SetWriteDeadline(time.Now().Add(p.WriteTimeout)); err != nil {
			return err
		}
	}
	if p.Text {
		return websocket.Message.Send(p.Conn, string(pkt))
	}
	return websocket.Message.Send(p.Conn, pkt)
}

// Close implements io.Closer.
func (p *ReadWriter) Close() error {
	return p.Conn.Close()
}
