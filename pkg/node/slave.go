// Package node runs DALI slaves as devices: forward frames are answered
// from an answer table, and frames, answers and faults are published as
// events through a device.Registrar.
package node

import (
	"sync/atomic"

	"github.com/golang/glog"

	"github.com/robotalks/dali.go/pkg/dali"
	"github.com/robotalks/dali.go/pkg/dali/dalilog"
	"github.com/robotalks/dali.go/pkg/device"
	"github.com/robotalks/dali.go/pkg/device/msgs"
	fx "github.com/robotalks/dali.go/pkg/framework"
)

// Config configures a Slave node.
type Config struct {
	Name string
	// Core configures the PHY. Frames and Faults are installed by the node.
	Core      dali.Config
	Answers   map[uint16]byte
	Registrar device.Registrar
}

// Slave is a dali.Slave hosted in a Loop.
type Slave struct {
	name      string
	core      *dali.Slave
	table     *AnswerTable
	registrar device.Registrar

	// loop receives events posted from tick context.
	loop     atomic.Pointer[fx.Loop]
	reset    atomic.Bool
	answer   atomic.Uint32
	missed   atomic.Uint32
	answered uint32
}

// New creates a Slave node.
func New(conf Config) (*Slave, error) {
	s := &Slave{
		name:      conf.Name,
		table:     NewAnswerTable(conf.Answers),
		registrar: conf.Registrar,
	}
	core := conf.Core
	core.Frames = dalilog.Frames(conf.Name, dali.FrameHandlerFunc(s.handleFrame))
	core.Faults = dalilog.Faults(conf.Name, dali.FaultHandlerFunc(s.handleFault))
	var err error
	if s.core, err = dali.New(core); err != nil {
		return nil, err
	}
	return s, nil
}

// Name returns the slave name.
func (s *Slave) Name() string {
	return s.name
}

// Core returns the PHY.
func (s *Slave) Core() *dali.Slave {
	return s.core
}

// Table returns the answer table.
func (s *Slave) Table() *AnswerTable {
	return s.table
}

// OnEdge forwards the input edge interrupt.
func (s *Slave) OnEdge() {
	s.core.OnEdge()
}

// OnTick runs one tick of the PHY and reports completed answers.
func (s *Slave) OnTick() {
	if s.reset.CompareAndSwap(true, false) {
		s.core.Reset()
	}
	s.core.OnTick()
	if n := s.core.Stats().Answers; n != s.answered {
		s.answered = n
		ev := &msgs.Answered{}
		ev.Slave, ev.Answer, ev.Tick = s.name, s.answer.Load(), s.core.Ticks()
		s.post(ev)
	}
}

// Answer requests a backward frame.
func (s *Slave) Answer(answer byte) error {
	if err := s.core.RequestSend(answer); err != nil {
		return err
	}
	s.answer.Store(uint32(answer))
	return nil
}

// MissedAnswers returns the number of table answers the PHY refused.
func (s *Slave) MissedAnswers() uint32 {
	return s.missed.Load()
}

// Reset re-initializes the PHY on the next tick.
func (s *Slave) Reset() {
	s.reset.Store(true)
}

// AddToLoop implements LoopAdder.
func (s *Slave) AddToLoop(loop *fx.Loop) {
	s.loop.Store(loop)
	loop.AddController(fx.PrLvControl, fx.ControlFunc(s.handleCommands))
	loop.AddController(fx.PrLvPublish, fx.ControlFunc(s.publishEvents))
}

func (s *Slave) handleFrame(address, data byte) {
	if answer, ok := s.table.Lookup(address, data); ok {
		if err := s.Answer(answer); err != nil {
			s.missed.Add(1)
			glog.V(2).Infof("%s: answer %02x to %02x %02x: %v", s.name, answer, address, data, err)
		}
	}
	ev := &msgs.Frame{}
	ev.Slave, ev.Address, ev.Data, ev.Tick = s.name, uint32(address), uint32(data), s.core.Ticks()
	s.post(ev)
}

func (s *Slave) handleFault(code dali.FaultCode) {
	ev := &msgs.Fault{}
	ev.Slave, ev.Code, ev.Tick = s.name, uint32(code), s.core.Ticks()
	s.post(ev)
}

func (s *Slave) post(msg fx.Message) {
	if loop := s.loop.Load(); loop != nil {
		loop.PostMessage(msg)
		loop.TriggerNext()
	}
}
