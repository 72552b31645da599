package link

import (
	"context"
	"sync"
)

// Result is the result of a command.
type Result struct {
	Err  error
	Code byte
	Data []byte
}

// Pending is a command waiting for its reply.
type Pending struct {
	seq      Seq
	resultCh chan Result
}

// Seq returns the sequence number of the request.
func (p *Pending) Seq() Seq {
	return p.seq
}

// ResultChan returns the chan delivering the result.
func (p *Pending) ResultChan() <-chan Result {
	return p.resultCh
}

// Client is the host side of the link.
type Client struct {
	link    *Link
	eventCh chan Event
	stateCh chan LinkState

	pending []*Pending
	lock    sync.Mutex
}

// NewClient creates a Client and takes over the handlers of the link.
func NewClient(l *Link) *Client {
	c := &Client{
		link:    l,
		eventCh: make(chan Event, 16),
		stateCh: make(chan LinkState, 1),
	}
	l.Handler = c
	l.Notifier = StateChangedFunc(c.stateChanged)
	return c
}

// Link returns the wrapped link.
func (c *Client) Link() *Link {
	return c.link
}

// EventChan delivers decoded events.
func (c *Client) EventChan() <-chan Event {
	return c.eventCh
}

// StateChan delivers the latest link state.
func (c *Client) StateChan() <-chan LinkState {
	return c.stateCh
}

// Run implements Runnable.
func (c *Client) Run(ctx context.Context) error {
	err := c.link.Run(ctx)
	c.lock.Lock()
	pending := c.pending
	c.pending = nil
	c.lock.Unlock()
	for _, p := range pending {
		p.resultCh <- Result{Err: ErrNotReady}
	}
	return err
}

// Send sends a command without waiting.
func (c *Client) Send(code byte, data ...byte) *Pending {
	p := &Pending{resultCh: make(chan Result, 1)}
	pkt := &Packet{Code: code &^ (FlagEvent | FlagError), Data: data}
	c.lock.Lock()
	defer c.lock.Unlock()
	if err := c.link.Send(pkt); err != nil {
		p.resultCh <- Result{Err: err}
		return p
	}
	p.seq = pkt.Seq
	c.pending = append(c.pending, p)
	return p
}

// Do sends a command and waits for the reply data.
func (c *Client) Do(ctx context.Context, code byte, data ...byte) ([]byte, error) {
	p := c.Send(code, data...)
	select {
	case r := <-p.resultCh:
		return r.Data, r.Err
	case <-ctx.Done():
		c.drop(p)
		return nil, ctx.Err()
	}
}

// Ping checks the firmware responds.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Do(ctx, CmdPing)
	return err
}

// Answer requests the firmware to answer the current frame.
func (c *Client) Answer(ctx context.Context, answer byte) error {
	_, err := c.Do(ctx, CmdAnswer, answer)
	return err
}

// Rule adds or removes an entry of the answer table.
func (c *Client) Rule(ctx context.Context, rule RuleArgs) error {
	_, err := c.Do(ctx, CmdRule, rule.Bytes()...)
	return err
}

// Reset re-initializes the slave.
func (c *Client) Reset(ctx context.Context) error {
	_, err := c.Do(ctx, CmdReset)
	return err
}

// Stats queries the counters.
func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	data, err := c.Do(ctx, CmdStats)
	if err != nil {
		return nil, err
	}
	return DecodeStats(data)
}

// HandlePacket implements PacketHandler.
func (c *Client) HandlePacket(ctx context.Context, pkt *Packet) {
	if pkt.IsEvent() {
		evt, err := DecodeEvent(pkt)
		if err != nil {
			return
		}
		select {
		case c.eventCh <- evt:
		case <-ctx.Done():
		}
		return
	}
	if len(pkt.Data) == 0 || !Seq(pkt.Data[0]).IsValid() {
		return
	}
	seq := Seq(pkt.Data[0])
	c.lock.Lock()
	index := -1
	for i, p := range c.pending {
		if p.seq == seq {
			index = i
			break
		}
	}
	if index < 0 {
		c.lock.Unlock()
		return
	}
	lost, p := c.pending[:index], c.pending[index]
	c.pending = append([]*Pending(nil), c.pending[index+1:]...)
	c.lock.Unlock()

	for _, l := range lost {
		l.resultCh <- Result{Err: ErrNoReply}
	}
	code := pkt.Code &^ FlagError
	if pkt.Code&FlagError != 0 {
		reason := ReasonUnknown
		if len(pkt.Data) > 1 {
			reason = pkt.Data[1]
		}
		p.resultCh <- Result{Err: &CommandError{Code: code, Reason: reason}, Code: code}
		return
	}
	p.resultCh <- Result{Code: code, Data: pkt.Data[1:]}
}

func (c *Client) drop(p *Pending) {
	c.lock.Lock()
	defer c.lock.Unlock()
	for i, q := range c.pending {
		if q == p {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			return
		}
	}
}

func (c *Client) stateChanged(ctx context.Context, state LinkState) {
	for {
		select {
		case c.stateCh <- state:
			return
		default:
		}
		select {
		case <-c.stateCh:
		default:
		}
	}
}
