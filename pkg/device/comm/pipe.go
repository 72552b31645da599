// Package comm carries device messages over packet transports: MQTT for
// registries, websocket for live feeds, recorded streams for replay.
package comm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/golang/glog"

	"github.com/robotalks/dali.go/pkg/device/msgs"
	fx "github.com/robotalks/dali.go/pkg/framework"
)

// PacketReader reads packets in bytes.
type PacketReader interface {
	ReadPacket() ([]byte, error)
}

// PacketWriter writes packets in bytes.
type PacketWriter interface {
	WritePacket([]byte) error
}

// PacketReadWriter reads/writes packets in bytes.
type PacketReadWriter interface {
	PacketReader
	PacketWriter
}

// ErrWrongKind is returned when sending an event as a command or the
// other way round.
var ErrWrongKind = errors.New("wrong message kind")

// PipeStats counts the packets flowing through a Pipe.
type PipeStats struct {
	Received  uint64
	Sent      uint64
	Malformed uint64
}

// Pipe decodes packets from ReadWriter into messages for Handler and
// encodes outgoing messages. Writes are serialized.
type Pipe struct {
	ReadWriter PacketReadWriter
	Handler    msgs.TypedMsgHandler

	sendLock  sync.Mutex
	received  atomic.Uint64
	sent      atomic.Uint64
	malformed atomic.Uint64
}

// NewPipe creates a Pipe with given PacketReadWriter.
func NewPipe(rw PacketReadWriter) *Pipe {
	return &Pipe{ReadWriter: rw}
}

// Stats returns a snapshot of the counters.
func (p *Pipe) Stats() PipeStats {
	return PipeStats{
		Received:  p.received.Load(),
		Sent:      p.sent.Load(),
		Malformed: p.malformed.Load(),
	}
}

// SendCommandMsg sends a command or a reply with the given sequence.
func (p *Pipe) SendCommandMsg(msg fx.Message, seq uint32) error {
	typed, err := msgs.TypedFrom(msg)
	if err != nil {
		return err
	}
	if !typed.IsCommand() {
		return fmt.Errorf("%s as command: %w", msgs.TypeName(msg), ErrWrongKind)
	}
	typed.Sequence = seq
	return p.SendTyped(typed)
}

// SendEventMsg sends an event.
func (p *Pipe) SendEventMsg(msg fx.Message) error {
	typed, err := msgs.TypedFrom(msg)
	if err != nil {
		return err
	}
	if !typed.IsEvent() {
		return fmt.Errorf("%s as event: %w", msgs.TypeName(msg), ErrWrongKind)
	}
	return p.SendTyped(typed)
}

// SendTyped send a Typed message.
func (p *Pipe) SendTyped(typed *msgs.Typed) error {
	pkt, err := typed.Encode()
	if err != nil {
		return err
	}
	p.sendLock.Lock()
	defer p.sendLock.Unlock()
	if err := p.ReadWriter.WritePacket(pkt); err != nil {
		return err
	}
	p.sent.Add(1)
	return nil
}

// Run implements Runnable. It returns when the reader reaches EOF or
// the Handler fails.
func (p *Pipe) Run(ctx context.Context) error {
	defer p.Close()
	for {
		pkt, err := p.ReadWriter.ReadPacket()
		if errors.Is(err, io.EOF) {
			return ctx.Err()
		}
		if err != nil {
			return err
		}
		p.received.Add(1)
		if err := p.receive(ctx, pkt); err != nil {
			return err
		}
	}
}

func (p *Pipe) receive(ctx context.Context, pkt []byte) error {
	msg, typed, err := msgs.Decode(pkt)
	if typed == nil {
		p.malformed.Add(1)
		glog.Warningf("drop malformed packet (%d bytes): %v", len(pkt), err)
		return nil
	}
	if err != nil {
		p.malformed.Add(1)
		// the peer waits for a reply to a command it sent
		if typed.IsCommand() && !typed.IsReply() {
			return p.SendCommandMsg(msgs.NewCommandErr(err), typed.Sequence)
		}
		glog.V(2).Infof("drop undecodable %08x: %v", typed.TypeId, err)
		return nil
	}
	if h := p.Handler; h != nil {
		return h.HandleTypedMsg(ctx, msg, typed)
	}
	return nil
}

// Close implements Closer.
func (p *Pipe) Close() error {
	if closer, ok := p.ReadWriter.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// AddToLoop implements LoopAdder.
func (p *Pipe) AddToLoop(loop *fx.Loop) {
	if adder, ok := p.ReadWriter.(fx.LoopAdder); ok {
		loop.Add(adder)
	} else if runnable, ok := p.ReadWriter.(fx.Runnable); ok {
		loop.AddRunnable(runnable)
	}
	loop.AddRunnable(p)
}
