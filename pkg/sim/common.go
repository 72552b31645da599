package sim

import (
	"github.com/robotalks/dali.go/pkg/dali"
	"github.com/robotalks/dali.go/pkg/dali/master"
)

// AnswerCaster implements master.AnswerHandler and casts the outcome of
// each transaction to all listeners. Listeners are called in tick context.
type AnswerCaster struct {
	listeners []master.AnswerHandler
}

// Subscribe adds a listener.
func (c *AnswerCaster) Subscribe(ln master.AnswerHandler) {
	c.listeners = append(c.listeners, ln)
}

// HandleAnswer implements AnswerHandler.
func (c *AnswerCaster) HandleAnswer(address, data, answer byte) {
	for _, ln := range c.listeners {
		ln.HandleAnswer(address, data, answer)
	}
}

// HandleNoAnswer implements AnswerHandler.
func (c *AnswerCaster) HandleNoAnswer(address, data byte) {
	for _, ln := range c.listeners {
		ln.HandleNoAnswer(address, data)
	}
}

// HandleAnswerError implements AnswerHandler.
func (c *AnswerCaster) HandleAnswerError(address, data byte, code dali.FaultCode) {
	for _, ln := range c.listeners {
		ln.HandleAnswerError(address, data, code)
	}
}
