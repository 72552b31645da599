package comm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/dali.go/pkg/device"
	"github.com/robotalks/dali.go/pkg/device/msgs"
	fx "github.com/robotalks/dali.go/pkg/framework"
)

// DefaultCommandTimeout matches the link command timeout of the gateway,
// the longest a slave command may legitimately take end to end.
const DefaultCommandTimeout = time.Second

var (
	// ErrReplyMismatch is returned when a reply does not belong to the
	// command carrying the same sequence.
	ErrReplyMismatch = errors.New("reply mismatch")
	// ErrConnClosed fails commands still pending when the pipe stops.
	ErrConnClosed = errors.New("connection closed")
)

// CommandTimeoutError fails a command whose reply did not arrive in time.
type CommandTimeoutError struct {
	Command string
	Seq     uint32
}

func (e *CommandTimeoutError) Error() string {
	return fmt.Sprintf("%s seq %d: no reply", e.Command, e.Seq)
}

// Is matches context.DeadlineExceeded.
func (e *CommandTimeoutError) Is(target error) bool {
	return target == context.DeadlineExceeded
}

// ConnStats counts the outcome of commands sent over a Conn.
type ConnStats struct {
	Pipe    PipeStats
	Pending int
	Expired uint64
	// Stale counts replies arriving after their command expired.
	Stale uint64
}

// Conn is the client end of a Pipe, the counterpart of Registrar:
// commands are sent with a sequence and resolved by the reply carrying
// it, events are posted to the loop.
type Conn struct {
	pipe    Pipe
	timeout atomic.Int64
	seq     uint32
	pending map[uint32]*commandFuture
	lock    sync.Mutex
	expired atomic.Uint64
	stale   atomic.Uint64
}

// Init initializes Conn with defaults.
func (c *Conn) Init(rw PacketReadWriter) {
	c.pipe.ReadWriter = rw
	c.pipe.Handler = msgs.HandleTypedMsgFunc(c.dispatch)
	c.pending = make(map[uint32]*commandFuture)
	c.SetTimeout(DefaultCommandTimeout)
}

// SetTimeout changes the reply timeout of commands sent afterwards.
func (c *Conn) SetTimeout(d time.Duration) {
	if d <= 0 {
		d = DefaultCommandTimeout
	}
	c.timeout.Store(int64(d))
}

// Timeout returns the reply timeout.
func (c *Conn) Timeout() time.Duration {
	return time.Duration(c.timeout.Load())
}

// Stats returns a snapshot of the counters.
func (c *Conn) Stats() ConnStats {
	c.lock.Lock()
	pending := len(c.pending)
	c.lock.Unlock()
	return ConnStats{
		Pipe:    c.pipe.Stats(),
		Pending: pending,
		Expired: c.expired.Load(),
		Stale:   c.stale.Load(),
	}
}

// DoCommand implements device.Conn.
func (c *Conn) DoCommand(msg fx.Message) device.CommandFuture {
	f := &commandFuture{result: make(chan device.Result, 1)}
	typed, err := msgs.TypedFrom(msg)
	if err != nil {
		f.resolve(device.Result{Err: err})
		return f
	}
	f.name, f.typeID = msgs.TypeName(msg), typed.TypeId

	c.lock.Lock()
	defer c.lock.Unlock()
	// zero is never used so an unset sequence can't match.
	if c.seq++; c.seq == 0 {
		c.seq++
	}
	f.seq = c.seq
	f.expireAt = time.Now().Add(c.Timeout())
	if err := c.pipe.SendCommandMsg(msg, f.seq); err != nil {
		f.resolve(device.Result{Err: err})
		return f
	}
	c.pending[f.seq] = f
	return f
}

// AddToLoop implements LoopAdder.
func (c *Conn) AddToLoop(l *fx.Loop) {
	if adder, ok := c.pipe.ReadWriter.(fx.LoopAdder); ok {
		l.Add(adder)
	} else if runnable, ok := c.pipe.ReadWriter.(fx.Runnable); ok {
		l.AddRunnable(runnable)
	}
	l.AddRunnable(fx.NamedRun("conn", fx.RunFunc(c.run)))
	l.AddController(fx.PrLvIdle, fx.ControlFunc(c.purgeExpired))
}

func (c *Conn) run(ctx context.Context) error {
	defer c.failPending(ErrConnClosed)
	return c.pipe.Run(ctx)
}

func (c *Conn) dispatch(ctx context.Context, msg fx.Message, typed *msgs.Typed) error {
	switch {
	case typed.IsReply():
		c.resolve(msg, typed)
		return nil
	case typed.IsCommand():
		// the device side never commands its clients.
		reason := fmt.Errorf("%w: %s", msgs.ErrUnsupportedCommand, msgs.TypeName(msg))
		return c.pipe.SendCommandMsg(msgs.NewCommandErr(reason), typed.Sequence)
	}
	loopCtl := fx.LoopCtlFrom(ctx)
	loopCtl.PostMessage(msg)
	loopCtl.TriggerNext()
	return nil
}

func (c *Conn) resolve(msg fx.Message, typed *msgs.Typed) {
	c.lock.Lock()
	f := c.pending[typed.Sequence]
	delete(c.pending, typed.Sequence)
	c.lock.Unlock()
	if f == nil {
		c.stale.Add(1)
		glog.V(2).Infof("stale %s reply seq %d", msgs.TypeName(msg), typed.Sequence)
		return
	}
	result := device.Result{Msg: msg}
	switch {
	case typed.TypeId == msgs.CommandErrTypeID:
		result.Err = msg.(*msgs.CommandErr)
	case !repliesTo(typed.TypeId, f.typeID):
		result.Err = fmt.Errorf("%s seq %d replied by %s: %w", f.name, f.seq, msgs.TypeName(msg), ErrReplyMismatch)
	}
	f.resolve(result)
}

// repliesTo tells whether a reply answers the command: the generic
// replies answer anything, otherwise the reply must carry the command's
// own ID with the reply bit, e.g. stats for stats-query.
func repliesTo(replyID, cmdID uint32) bool {
	if replyID&msgs.TypeIDMaskGroup == msgs.GroupCommand {
		return true
	}
	return replyID == cmdID|msgs.TypeIDMaskReply
}

func (c *Conn) purgeExpired(cc fx.ControlContext) error {
	now := cc.Time()
	var expired []*commandFuture
	c.lock.Lock()
	for seq, f := range c.pending {
		if f.expireAt.After(now) {
			continue
		}
		delete(c.pending, seq)
		expired = append(expired, f)
	}
	c.lock.Unlock()
	for _, f := range expired {
		c.expired.Add(1)
		f.resolve(device.Result{Err: &CommandTimeoutError{Command: f.name, Seq: f.seq}})
	}
	return nil
}

func (c *Conn) failPending(err error) {
	c.lock.Lock()
	pending := c.pending
	c.pending = make(map[uint32]*commandFuture)
	c.lock.Unlock()
	for _, f := range pending {
		f.resolve(device.Result{Err: err})
	}
}

type commandFuture struct {
	name     string
	typeID   uint32
	seq      uint32
	expireAt time.Time
	result   chan device.Result
}

func (f *commandFuture) resolve(res device.Result) {
	f.result <- res
	close(f.result)
}

func (f *commandFuture) ResultChan() <-chan device.Result {
	return f.result
}
