// Package framework drives a DALI node: a Loop runs controllers by
// priority level over the messages posted since the last iteration, and
// a Runner keeps the background work (link readers, line watchers,
// transports) alive next to it.
package framework

import (
	"context"
	"time"
)

// Named is implemented by things with a name, used in logs.
type Named interface {
	Name() string
}

// Runnable is background work running until ctx is done.
type Runnable interface {
	Run(context.Context) error
}

// RunFunc is the func form of Runnable.
type RunFunc func(context.Context) error

// Run implements Runnable.
func (f RunFunc) Run(ctx context.Context) error { return f(ctx) }

// Message is anything posted to a Loop: bus events, commands from
// masters, link state changes.
type Message interface {
	// NewMessage creates an empty message of the same type, used when
	// decoding from the wire.
	NewMessage() Message
}

// Controller runs once per iteration at the level it was added.
type Controller interface {
	Control(ControlContext) error
}

// ControlFunc is the func form of Controller.
type ControlFunc func(ControlContext) error

// Control implements Controller.
func (f ControlFunc) Control(cc ControlContext) error { return f(cc) }

// TimeSource provides the time of the current iteration.
type TimeSource interface {
	Time() time.Time
}

// ControlContext is what a Controller sees of the current iteration.
type ControlContext interface {
	TimeSource
	LoopControl

	// Context carries the LoopControl for code which only gets a
	// context.Context.
	Context() context.Context
	// PriorityLevel is the level being run.
	PriorityLevel() int
	// Messages holds the messages posted before the iteration started
	// and not yet taken by an earlier controller.
	Messages() MessageStore
	// PostRun schedules one-shot hooks after the controllers of the
	// current level. Hooks added from a post-run hook run in the next
	// iteration.
	PostRun(hooks ...Controller)
}

// LoopControl is the part of a Loop usable from Runnables and controllers.
type LoopControl interface {
	// PreRunAt schedules one-shot hooks before the controllers of a level.
	PreRunAt(priorityLevel int, controllers ...Controller)
	// PostRunAt schedules one-shot hooks after the controllers of a level.
	PostRunAt(priorityLevel int, controllers ...Controller)
	// PostMessage queues a message for the next iteration.
	PostMessage(Message)
	// TriggerNext starts the next iteration without waiting for the
	// interval, e.g. when a frame was decoded.
	TriggerNext()
}

// PriorityLevels is the number of priority levels of a Loop.
const PriorityLevels int = 16

// Priority levels. Lower levels run first in an iteration.
const (
	PrLvTop    int = 0
	PrLvHigh   int = 4
	PrLvNormal int = 8
	PrLvLow    int = 12
	PrLvIdle   int = PriorityLevels - 1

	// PrLvBus is where bus lines are sampled and link packets are decoded.
	PrLvBus = PrLvHigh
	// PrLvControl is where commands addressed to slaves are handled.
	PrLvControl = PrLvNormal
	// PrLvPublish is where bus events are reported to subscribers.
	PrLvPublish = PrLvLow
	// PrLvPostProc runs after publishing, before leftovers are purged.
	PrLvPostProc = PrLvIdle - 1
)

// MessageStore gives a controller access to the messages of an iteration.
type MessageStore interface {
	// ProcessMessages hands every message to the processor in order.
	ProcessMessages(MessageProcessor)

	MessageAppender
}

// MessageAppender adds messages visible to the controllers after the
// current one in this iteration.
type MessageAppender interface {
	AddMessages(msgs ...Message)
}

// MessageProcessor examines one message at a time.
type MessageProcessor interface {
	ProcessMessage(MessageProcessingContext)
}

// ProcessMessageFunc is the func form of MessageProcessor.
type ProcessMessageFunc func(MessageProcessingContext)

// ProcessMessage implements MessageProcessor.
func (f ProcessMessageFunc) ProcessMessage(mc MessageProcessingContext) { f(mc) }

// MessageProcessingContext is the message being processed.
type MessageProcessingContext interface {
	CurrentMessage() Message
	// MessageTaken removes the message from the iteration.
	MessageTaken()
	// StopProcessing skips the remaining messages; they stay in the store.
	StopProcessing()

	MessageAppender
}
