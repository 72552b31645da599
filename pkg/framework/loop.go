package framework

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
)

// DefaultInterval is the period of a Loop when Interval is not set.
const DefaultInterval = 100 * time.Millisecond

// Loop runs the controllers of a node by priority level, once every
// Interval or immediately after TriggerNext. Bus sampling, command
// handling and event publishing each take their own level, so a frame
// decoded in one iteration is visible to every later level of it.
//
// Messages posted between two iterations are handed to the next one. A
// message no controller takes is dropped when the iteration ends.
type Loop struct {
	Interval time.Duration
	// MaxPending bounds the messages posted between two iterations.
	// The oldest ones are dropped beyond it. Zero means unbounded.
	MaxPending int

	levels  [PriorityLevels]level
	runners []Runnable

	lock    sync.Mutex
	queue   []Message
	dropped atomic.Uint64

	wakeOnce sync.Once
	wakeCh   chan struct{}
}

// LoopAdder provides specific logic to add components to loop.
type LoopAdder interface {
	AddToLoop(*Loop)
}

type level struct {
	lock        sync.Mutex
	pre, post   []Controller
	controllers []Controller
}

func (lv *level) hook(post bool, hooks []Controller) {
	lv.lock.Lock()
	defer lv.lock.Unlock()
	if post {
		lv.post = append(lv.post, hooks...)
	} else {
		lv.pre = append(lv.pre, hooks...)
	}
}

func (lv *level) take(post bool) (hooks []Controller) {
	lv.lock.Lock()
	defer lv.lock.Unlock()
	if post {
		hooks, lv.post = lv.post, nil
	} else {
		hooks, lv.pre = lv.pre, nil
	}
	return
}

func (lv *level) run(it *iteration) {
	it.control(lv.take(false))
	it.control(lv.controllers)
	it.control(lv.take(true))
}

type loopCtxKeyType struct{}

var loopCtxKey loopCtxKeyType

// LoopCtlFrom gets the LoopControl of the loop running the Runnable or
// controller which received ctx.
func LoopCtlFrom(ctx context.Context) LoopControl {
	return ctx.Value(loopCtxKey).(LoopControl)
}

// NewLoop creates a Loop.
func NewLoop() *Loop {
	return &Loop{Interval: DefaultInterval}
}

func (l *Loop) wakeUp() chan struct{} {
	l.wakeOnce.Do(func() { l.wakeCh = make(chan struct{}, 1) })
	return l.wakeCh
}

// Add adds LoopAdders.
func (l *Loop) Add(adders ...LoopAdder) *Loop {
	for _, adder := range adders {
		adder.AddToLoop(l)
	}
	return l
}

// AddController registers controllers at a priority level. Controllers
// which are also Runnable are run with the loop.
func (l *Loop) AddController(priorityLevel int, ctls ...Controller) *Loop {
	lv := &l.levels[priorityLevel]
	lv.controllers = append(lv.controllers, ctls...)
	for _, ctl := range ctls {
		if runner, ok := ctl.(Runnable); ok {
			l.runners = append(l.runners, runner)
		}
	}
	return l
}

// AddRunnable adds Runnables to be run with the loop.
func (l *Loop) AddRunnable(runnables ...Runnable) *Loop {
	l.runners = append(l.runners, runnables...)
	return l
}

// Run implements Runnable. It returns when ctx is done or when one
// of the runnables fails, after all runnables have stopped.
func (l *Loop) Run(ctx context.Context) error {
	wakeCh := l.wakeUp()
	runner := NewRunnerWith(context.WithValue(ctx, loopCtxKey, LoopControl(l)))
	runner.Go(l.runners...)

	interval := l.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-runner.Context.Done():
			runner.Stop()
			err := runner.Wait()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		case <-ticker.C:
		case <-wakeCh:
		}
		l.runIteration(ctx)
	}
}

// Dropped returns the number of messages discarded because of MaxPending.
func (l *Loop) Dropped() uint64 {
	return l.dropped.Load()
}

// PreRunAt implements LoopControl.
func (l *Loop) PreRunAt(priorityLevel int, hooks ...Controller) {
	l.levels[priorityLevel].hook(false, hooks)
}

// PostRunAt implements LoopControl.
func (l *Loop) PostRunAt(priorityLevel int, hooks ...Controller) {
	l.levels[priorityLevel].hook(true, hooks)
}

// PostMessage implements LoopControl.
func (l *Loop) PostMessage(msg Message) {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.queue = append(l.queue, msg)
	if l.MaxPending <= 0 || len(l.queue) <= l.MaxPending {
		return
	}
	l.queue[0] = nil
	l.queue = l.queue[1:]
	if n := l.dropped.Add(1); n&(n-1) == 0 {
		glog.Warningf("loop: %d messages dropped", n)
	}
}

// TriggerNext implements LoopControl.
func (l *Loop) TriggerNext() {
	select {
	case l.wakeUp() <- struct{}{}:
	default:
	}
}

func (l *Loop) runIteration(ctx context.Context) {
	it := &iteration{Loop: l, time: time.Now()}
	l.lock.Lock()
	it.messages, l.queue = l.queue, nil
	l.lock.Unlock()
	it.ctx = context.WithValue(ctx, loopCtxKey, LoopControl(it))
	for it.level = 0; it.level < PriorityLevels; it.level++ {
		l.levels[it.level].run(it)
	}
}

// iteration implements ControlContext and MessageStore for one pass
// over all priority levels.
type iteration struct {
	*Loop
	ctx      context.Context
	time     time.Time
	level    int
	messages []Message
}

func (it *iteration) Context() context.Context { return it.ctx }
func (it *iteration) Time() time.Time          { return it.time }
func (it *iteration) PriorityLevel() int       { return it.level }
func (it *iteration) Messages() MessageStore   { return it }

func (it *iteration) PostRun(hooks ...Controller) {
	it.PostRunAt(it.level, hooks...)
}

func (it *iteration) AddMessages(msgs ...Message) {
	it.messages = append(it.messages, msgs...)
}

func (it *iteration) ProcessMessages(proc MessageProcessor) {
	msgs := it.messages
	it.messages = nil
	var kept []Message
	for n, msg := range msgs {
		mc := &messageContext{iter: it, msg: msg}
		proc.ProcessMessage(mc)
		if !mc.taken {
			kept = append(kept, msg)
		}
		if mc.stop {
			kept = append(kept, msgs[n+1:]...)
			break
		}
	}
	// messages added while processing go after the ones kept
	it.messages = append(kept, it.messages...)
}

func (it *iteration) control(ctls []Controller) {
	for _, ctl := range ctls {
		if err := ctl.Control(it); err != nil {
			glog.Errorf("controller at level %d: %v", it.level, err)
		}
	}
}

type messageContext struct {
	iter  *iteration
	msg   Message
	taken bool
	stop  bool
}

func (c *messageContext) CurrentMessage() Message     { return c.msg }
func (c *messageContext) MessageTaken()               { c.taken = true }
func (c *messageContext) StopProcessing()             { c.stop = true }
func (c *messageContext) AddMessages(msgs ...Message) { c.iter.AddMessages(msgs...) }
