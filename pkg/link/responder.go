package link

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robotalks/dali.go/pkg/dali"
)

// DefaultFlushInterval is the default period of Responder.Run.
const DefaultFlushInterval = 5 * time.Millisecond

const ringSize = 32

// ringEntry is a fixed size event record. Events are queued from the tick
// interrupt, so nothing is allocated until Flush.
type ringEntry struct {
	code byte
	a, b byte
	tick uint32
}

// ring is a single producer single consumer queue.
type ring struct {
	entries    [ringSize]ringEntry
	head, tail atomic.Uint32
	overflows  atomic.Uint32
}

func (r *ring) push(e ringEntry) {
	tail := r.tail.Load()
	if tail-r.head.Load() >= ringSize {
		r.overflows.Add(1)
		return
	}
	r.entries[tail%ringSize] = e
	r.tail.Store(tail + 1)
}

func (r *ring) pop() (e ringEntry, ok bool) {
	head := r.head.Load()
	if head == r.tail.Load() {
		return
	}
	e = r.entries[head%ringSize]
	r.head.Store(head + 1)
	return e, true
}

// ResponderConfig configures a Responder.
type ResponderConfig struct {
	// Core configures the PHY. Frames and Faults are installed by the
	// responder.
	Core    dali.Config
	Answers map[uint16]byte
	Link    *Link
	// FlushInterval is the period of Run.
	FlushInterval time.Duration
}

// Responder is the firmware side of the link. It owns the slave, answers
// frames from its table and forwards events to the host.
type Responder struct {
	link     *Link
	slave    *dali.Slave
	interval time.Duration

	table    atomic.Pointer[map[uint16]byte]
	events   ring
	flush    sync.Mutex
	reset    atomic.Bool
	answer   atomic.Uint32
	missed   atomic.Uint32
	answered uint32
}

// NewResponder creates a Responder and takes over the packet handler of
// the link.
func NewResponder(conf ResponderConfig) (*Responder, error) {
	r := &Responder{link: conf.Link, interval: conf.FlushInterval}
	if r.interval <= 0 {
		r.interval = DefaultFlushInterval
	}
	table := make(map[uint16]byte, len(conf.Answers))
	for k, v := range conf.Answers {
		table[k] = v
	}
	r.table.Store(&table)
	core := conf.Core
	core.Frames = dali.FrameHandlerFunc(r.handleFrame)
	core.Faults = dali.FaultHandlerFunc(r.handleFault)
	var err error
	if r.slave, err = dali.New(core); err != nil {
		return nil, err
	}
	if r.link != nil {
		r.link.Handler = r
	}
	return r, nil
}

// Link returns the link to the host.
func (r *Responder) Link() *Link {
	return r.link
}

// Slave returns the PHY.
func (r *Responder) Slave() *dali.Slave {
	return r.slave
}

// Overflows returns the number of events dropped because the queue was full.
func (r *Responder) Overflows() uint32 {
	return r.events.overflows.Load()
}

// MissedAnswers returns the number of table answers the PHY refused.
func (r *Responder) MissedAnswers() uint32 {
	return r.missed.Load()
}

// OnEdge forwards the input edge interrupt.
func (r *Responder) OnEdge() {
	r.slave.OnEdge()
}

// OnTick runs one tick of the PHY.
func (r *Responder) OnTick() {
	if r.reset.CompareAndSwap(true, false) {
		r.slave.Reset()
	}
	r.slave.OnTick()
	if n := r.slave.Stats().Answers; n != r.answered {
		r.answered = n
		r.events.push(ringEntry{code: EventAnswered, a: byte(r.answer.Load()), tick: r.slave.Ticks()})
	}
}

// Flush sends queued events. Events are dropped while the link is not
// ready.
func (r *Responder) Flush() error {
	r.flush.Lock()
	defer r.flush.Unlock()
	for {
		e, ok := r.events.pop()
		if !ok {
			return nil
		}
		if r.link == nil {
			continue
		}
		var evt Event
		switch e.code {
		case EventFrame:
			evt = &FrameEvent{Address: e.a, Data: e.b, Tick: e.tick}
		case EventFault:
			evt = &FaultEvent{Code: dali.FaultCode(e.a), Tick: e.tick}
		default:
			evt = &AnsweredEvent{Answer: e.a, Tick: e.tick}
		}
		if err := r.link.Send(EncodeEvent(evt)); err != nil && err != ErrNotReady {
			return err
		}
	}
}

// Run runs the link and flushes events periodically.
func (r *Responder) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	linkErr := make(chan error, 1)
	if r.link != nil {
		go func() {
			linkErr <- r.link.Run(ctx)
		}()
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-linkErr:
			return err
		case <-ticker.C:
			if err := r.Flush(); err != nil {
				return err
			}
		}
	}
}

// HandlePacket implements PacketHandler.
func (r *Responder) HandlePacket(ctx context.Context, pkt *Packet) {
	if pkt.IsEvent() || r.link == nil {
		return
	}
	reply := r.execute(pkt)
	r.link.Send(reply)
}

func (r *Responder) execute(pkt *Packet) *Packet {
	switch pkt.Code {
	case CmdPing:
		return pkt.Reply()
	case CmdAnswer:
		if len(pkt.Data) != 1 {
			return pkt.ReplyError(ReasonInvalid)
		}
		if err := r.requestSend(pkt.Data[0]); err != nil {
			return pkt.ReplyError(reasonOf(err))
		}
		return pkt.Reply()
	case CmdRule:
		rule, err := DecodeRule(pkt.Data)
		if err != nil {
			return pkt.ReplyError(ReasonInvalid)
		}
		r.updateTable(rule)
		return pkt.Reply()
	case CmdReset:
		r.reset.Store(true)
		return pkt.Reply()
	case CmdStats:
		st := &Stats{Stats: r.slave.Stats(), Ticks: r.slave.Ticks(), Mode: r.slave.Mode()}
		return pkt.Reply(st.Bytes()...)
	}
	return pkt.ReplyError(ReasonUnsupported)
}

func (r *Responder) requestSend(answer byte) error {
	if err := r.slave.RequestSend(answer); err != nil {
		return err
	}
	r.answer.Store(uint32(answer))
	return nil
}

// updateTable replaces the table with a modified copy, so lookups from the
// tick interrupt never observe a map being written.
func (r *Responder) updateTable(rule *RuleArgs) {
	current := *r.table.Load()
	table := make(map[uint16]byte, len(current)+1)
	for k, v := range current {
		table[k] = v
	}
	key := uint16(rule.Address)<<8 | uint16(rule.Data)
	if rule.Remove {
		delete(table, key)
	} else {
		table[key] = rule.Answer
	}
	r.table.Store(&table)
}

func (r *Responder) handleFrame(address, data byte) {
	if answer, ok := (*r.table.Load())[uint16(address)<<8|uint16(data)]; ok {
		// counted only, the tick interrupt must not log.
		if r.requestSend(answer) != nil {
			r.missed.Add(1)
		}
	}
	r.events.push(ringEntry{code: EventFrame, a: address, b: data, tick: r.slave.Ticks()})
}

func (r *Responder) handleFault(code dali.FaultCode) {
	r.events.push(ringEntry{code: EventFault, a: byte(code), tick: r.slave.Ticks()})
}

func reasonOf(err error) byte {
	if errors.Is(err, dali.ErrBusy) {
		return ReasonBusy
	}
	return ReasonUnknown
}
