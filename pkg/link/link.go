package link

import (
	"context"
	"io"
	"os"
	"sync"
	"time"
)

// DefaultTimeout is the default handshake timeout.
const DefaultTimeout = 100 * time.Millisecond

// PacketHandler is called when a packet is received.
type PacketHandler interface {
	HandlePacket(context.Context, *Packet)
}

// HandlePacketFunc is func type of PacketHandler.
type HandlePacketFunc func(context.Context, *Packet)

// HandlePacket implements PacketHandler.
func (f HandlePacketFunc) HandlePacket(ctx context.Context, pkt *Packet) {
	f(ctx, pkt)
}

// StateNotifier is called when the link state changed.
type StateNotifier interface {
	StateChanged(context.Context, LinkState)
}

// StateChangedFunc is func type of StateNotifier.
type StateChangedFunc func(context.Context, LinkState)

// StateChanged implements StateNotifier.
func (f StateChangedFunc) StateChanged(ctx context.Context, state LinkState) {
	f(ctx, state)
}

// Link exchanges packets over a byte stream.
type Link struct {
	Port     io.ReadWriter
	Handler  PacketHandler
	Notifier StateNotifier
	Timeout  time.Duration
	// PollRead is set when Port.Read returns timeout errors periodically
	// instead of blocking. Each timeout expires the handshake timer.
	PollRead bool

	seq   Seq
	state LinkState
	lock  sync.RWMutex

	decoder Decoder
	timer   *time.Timer
}

// New creates a Link.
func New(port io.ReadWriter) *Link {
	return &Link{Port: port, Timeout: DefaultTimeout, seq: NewSeq()}
}

// State returns the link state.
func (l *Link) State() LinkState {
	l.lock.RLock()
	defer l.lock.RUnlock()
	return l.state
}

// Send assigns the next sequence number and writes the packet.
func (l *Link) Send(pkt *Packet) error {
	if len(pkt.Data) > MaxDataLen {
		return ErrMalformed
	}
	l.lock.Lock()
	defer l.lock.Unlock()
	if !l.state.IsReady() {
		return ErrNotReady
	}
	if !l.seq.IsValid() {
		l.seq = NewSeq()
	}
	pkt.Seq = l.seq
	if _, err := pkt.WriteTo(l.Port); err != nil {
		return err
	}
	l.seq = l.seq.Next()
	return nil
}

type readResult struct {
	b       byte
	expired bool
	err     error
}

// Run reads and decodes the stream until ctx is done or reading fails.
func (l *Link) Run(ctx context.Context) error {
	if l.Timeout <= 0 {
		l.Timeout = DefaultTimeout
	}
	l.timer = time.NewTimer(l.Timeout)
	l.timer.Stop()
	defer l.timer.Stop()

	if err := l.apply(ctx, l.decoder.Restart()); err != nil {
		return err
	}

	readCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	readCh := make(chan readResult)
	go l.readLoop(readCtx, readCh)

	for {
		var step Step
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.timer.C:
			step = l.decoder.Expire()
		case r := <-readCh:
			switch {
			case r.err != nil:
				return r.err
			case r.expired:
				step = l.decoder.Expire()
			default:
				step = l.decoder.Feed(r.b)
			}
		}
		if err := l.apply(ctx, step); err != nil {
			return err
		}
	}
}

func (l *Link) readLoop(ctx context.Context, readCh chan<- readResult) {
	buf := make([]byte, 1)
	for {
		var r readResult
		n, err := l.Port.Read(buf)
		switch {
		case err != nil && l.PollRead && os.IsTimeout(err):
			r.expired = true
		case err != nil:
			r.err = err
		case n == 0:
			if !l.PollRead {
				continue
			}
			r.expired = true
		default:
			r.b = buf[0]
		}
		select {
		case readCh <- r:
		case <-ctx.Done():
			return
		}
		if r.err != nil {
			return
		}
	}
}

func (l *Link) apply(ctx context.Context, step Step) (err error) {
	var notifier StateNotifier
	l.lock.Lock()
	if l.state != step.State {
		l.state = step.State
		notifier = l.Notifier
	}
	if step.Control != 0 {
		if !l.seq.IsValid() {
			l.seq = NewSeq()
		}
		_, err = l.Port.Write([]byte{step.Control, byte(l.seq)})
	}
	l.lock.Unlock()
	if err != nil {
		return
	}

	switch step.Timer() {
	case TimerRestart:
		l.stopTimer()
		l.timer.Reset(l.Timeout)
	case TimerStop:
		l.stopTimer()
	}

	if notifier != nil {
		notifier.StateChanged(ctx, step.State)
	}
	if step.Packet != nil && l.Handler != nil {
		l.Handler.HandlePacket(ctx, step.Packet)
	}
	return
}

func (l *Link) stopTimer() {
	if !l.timer.Stop() {
		select {
		case <-l.timer.C:
		default:
		}
	}
}
