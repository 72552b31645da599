// Package sim simulates a DALI bus with one master and any number of slaves.
package sim

import (
	"context"
	"fmt"

	"github.com/golang/glog"

	"github.com/robotalks/dali.go/pkg/clock"
	"github.com/robotalks/dali.go/pkg/dali"
	"github.com/robotalks/dali.go/pkg/dali/dalilog"
	"github.com/robotalks/dali.go/pkg/dali/master"
	"github.com/robotalks/dali.go/pkg/device"
	"github.com/robotalks/dali.go/pkg/device/msgs"
	fx "github.com/robotalks/dali.go/pkg/framework"
	"github.com/robotalks/dali.go/pkg/node"
	"github.com/robotalks/dali.go/pkg/sim/wire"
)

// MasterName is the endpoint name of the master.
const MasterName = "master"

// Simulation is a simulated bus with its devices. All devices are ticked
// by one clock stepping the bus.
type Simulation struct {
	Bus     *wire.Bus
	Master  *master.Master
	Slaves  []*node.Slave
	Answers AnswerCaster

	registrar device.Registrar
	pump      *clock.Pump
	loop      *fx.Loop
}

// New creates a Simulation.
func New(conf Config) (*Simulation, error) {
	freq := conf.TickFrequency
	if freq == 0 {
		freq = dali.DefaultTickFrequency
	}
	s := &Simulation{Bus: wire.New(), registrar: conf.Registrar}
	s.Answers.Subscribe(dalilog.Answers(MasterName, nil))
	s.Answers.Subscribe(master.AnswerFuncs{
		Answer: func(address, data, answer byte) {
			s.postTransaction(address, data, msgs.TransactionAnswered, answer, 0)
		},
		NoAnswer: func(address, data byte) {
			s.postTransaction(address, data, msgs.TransactionNoAnswer, 0, 0)
		},
		Error: func(address, data byte, code dali.FaultCode) {
			s.postTransaction(address, data, msgs.TransactionError, 0, code)
		},
	})

	mep := s.Bus.Attach(MasterName, false)
	var err error
	s.Master, err = master.New(master.Config{
		Line:          dali.NewLine(mep, false, mep, false, nil),
		TickFrequency: freq,
		Answers:       &s.Answers,
	})
	if err != nil {
		return nil, err
	}
	s.Bus.AddDevices(s.Master)

	for _, sc := range conf.Slaves {
		if sc.Name == MasterName || s.Slave(sc.Name) != nil {
			return nil, fmt.Errorf("duplicated slave name %q", sc.Name)
		}
		ep := s.Bus.Attach(sc.Name, sc.Inverting)
		slave, err := node.New(node.Config{
			Name: sc.Name,
			Core: dali.Config{
				Output:              ep,
				InvertOutput:        sc.Inverting,
				Input:               ep,
				InvertInput:         sc.Inverting,
				Interrupt:           ep,
				TickFrequency:       freq,
				ReportFramingErrors: conf.ReportFramingErrors,
			},
			Answers:   sc.AnswerTable(),
			Registrar: conf.Registrar,
		})
		if err != nil {
			return nil, err
		}
		// the transceiver inverts, so the falling bus edge arrives rising.
		edge := wire.EdgeFalling
		if sc.Inverting {
			edge = wire.EdgeRising
		}
		ep.Bind(edge, slave.OnEdge)
		s.Bus.AddDevices(slave)
		s.Slaves = append(s.Slaves, slave)
	}

	var pace uint32
	if conf.Pace {
		pace = freq
	}
	s.pump = clock.NewPump(pace, clock.TickerFunc(s.Bus.Step))
	glog.Infof("simulation: %d slaves at %d Hz", len(s.Slaves), freq)
	return s, nil
}

// Slave finds a slave by name.
func (s *Simulation) Slave(name string) *node.Slave {
	for _, slave := range s.Slaves {
		if slave.Name() == name {
			return slave
		}
	}
	return nil
}

// Forward requests the master to send a forward frame.
func (s *Simulation) Forward(address, data byte) error {
	return s.Master.Send(address, data)
}

// Short shorts or releases the bus.
func (s *Simulation) Short(on bool) {
	glog.V(1).Infof("simulation: short %v", on)
	s.Bus.Short(on)
}

// Run implements Runnable by running the clock.
func (s *Simulation) Run(ctx context.Context) error {
	return s.pump.Run(ctx)
}

// AddToLoop implements LoopAdder.
func (s *Simulation) AddToLoop(loop *fx.Loop) {
	s.loop = loop
	for _, slave := range s.Slaves {
		loop.Add(slave)
	}
	loop.AddController(fx.PrLvControl, fx.ControlFunc(s.handleCommands))
	loop.AddController(fx.PrLvPublish, fx.ControlFunc(s.publishTransactions))
	loop.AddRunnable(fx.NamedRun("clock", s))
}

func (s *Simulation) postTransaction(address, data byte, status uint32, answer byte, fault dali.FaultCode) {
	if s.loop == nil {
		return
	}
	ev := &msgs.Transaction{}
	ev.Address, ev.Data, ev.Status = uint32(address), uint32(data), status
	ev.Answer, ev.Fault = uint32(answer), uint32(fault)
	s.loop.PostMessage(ev)
	s.loop.TriggerNext()
}

func (s *Simulation) handleCommands(cc fx.ControlContext) error {
	cc.Messages().ProcessMessages(fx.ProcessMessageFunc(func(mctx fx.MessageProcessingContext) {
		cmdMsg, ok := mctx.CurrentMessage().(*device.CommandMsg)
		if !ok {
			return
		}
		var reply fx.Message
		switch m := cmdMsg.Command.Msg().(type) {
		case *msgs.Forward:
			if m.Address > 0xff || m.Data > 0xff {
				reply = msgs.NewCommandErrFromMsg("address and data must be bytes")
			} else if err := s.Forward(byte(m.Address), byte(m.Data)); err != nil {
				reply = msgs.NewCommandErr(err)
			} else {
				reply = msgs.NewCommandOK()
			}
		case *msgs.Short:
			s.Short(m.On)
			reply = msgs.NewCommandOK()
		default:
			return
		}
		mctx.MessageTaken()
		if err := cmdMsg.Command.Done(reply); err != nil {
			glog.Errorf("simulation: reply error: %v", err)
		}
	}))
	return nil
}

func (s *Simulation) publishTransactions(cc fx.ControlContext) error {
	var errs fx.AggregatedError
	cc.Messages().ProcessMessages(fx.ProcessMessageFunc(func(mctx fx.MessageProcessingContext) {
		if ev, ok := mctx.CurrentMessage().(*msgs.Transaction); ok {
			mctx.MessageTaken()
			if s.registrar != nil {
				errs.Add(s.registrar.SendEvent(cc.Context(), ev))
			}
		}
	}))
	return errs.Aggregate()
}
