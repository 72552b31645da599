// Package gateway exposes a slave running the firmware as a device. The
// firmware is reached through a link, usually a serial port: link events
// are published through a device.Registrar and device commands are
// forwarded as link commands.
package gateway

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/dali.go/pkg/device"
	"github.com/robotalks/dali.go/pkg/device/msgs"
	fx "github.com/robotalks/dali.go/pkg/framework"
	"github.com/robotalks/dali.go/pkg/link"
)

// DefaultCommandTimeout is the default timeout of a link command.
const DefaultCommandTimeout = time.Second

// Config configures a Gateway.
type Config struct {
	Name   string
	Client *link.Client
	// Answers is installed in the firmware whenever the link becomes ready.
	Answers        map[uint16]byte
	Registrar      device.Registrar
	CommandTimeout time.Duration
}

// Gateway bridges a link client to a Loop.
type Gateway struct {
	name      string
	client    *link.Client
	answers   map[uint16]byte
	registrar device.Registrar
	timeout   time.Duration

	loop  atomic.Pointer[fx.Loop]
	ready atomic.Bool
}

// New creates a Gateway.
func New(conf Config) *Gateway {
	g := &Gateway{
		name:      conf.Name,
		client:    conf.Client,
		answers:   conf.Answers,
		registrar: conf.Registrar,
		timeout:   conf.CommandTimeout,
	}
	if g.timeout <= 0 {
		g.timeout = DefaultCommandTimeout
	}
	return g
}

// Name returns the slave name.
func (g *Gateway) Name() string {
	return g.name
}

// Ready indicates the link is synchronized and the answer table installed.
func (g *Gateway) Ready() bool {
	return g.ready.Load()
}

// AddToLoop implements LoopAdder.
func (g *Gateway) AddToLoop(loop *fx.Loop) {
	g.loop.Store(loop)
	loop.AddController(fx.PrLvControl, fx.ControlFunc(g.handleCommands))
	loop.AddController(fx.PrLvPublish, fx.ControlFunc(g.publishEvents))
	loop.AddRunnable(fx.NamedRun("link", g.client), fx.NamedRun("link-events", fx.RunFunc(g.receive)))
}

func (g *Gateway) receive(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case state := <-g.client.StateChan():
			g.stateChanged(ctx, state)
		case evt := <-g.client.EventChan():
			if msg := g.eventMsg(evt); msg != nil {
				g.post(msg)
			}
		}
	}
}

func (g *Gateway) stateChanged(ctx context.Context, state link.LinkState) {
	if !state.IsReady() {
		if g.ready.Swap(false) {
			glog.Warningf("%s: link lost", g.name)
		}
		return
	}
	if g.ready.Load() {
		return
	}
	if err := g.install(ctx); err != nil {
		glog.Errorf("%s: install answers: %v", g.name, err)
		return
	}
	glog.Infof("%s: link ready, %d answers installed", g.name, len(g.answers))
	g.ready.Store(true)
}

func (g *Gateway) install(ctx context.Context) error {
	for key, answer := range g.answers {
		cmdCtx, cancel := context.WithTimeout(ctx, g.timeout)
		err := g.client.Rule(cmdCtx, link.RuleArgs{Address: byte(key >> 8), Data: byte(key), Answer: answer})
		cancel()
		if err != nil {
			return err
		}
	}
	return nil
}

func (g *Gateway) eventMsg(evt link.Event) fx.Message {
	switch e := evt.(type) {
	case *link.FrameEvent:
		m := &msgs.Frame{}
		m.Slave, m.Address, m.Data, m.Tick = g.name, uint32(e.Address), uint32(e.Data), e.Tick
		return m
	case *link.AnsweredEvent:
		m := &msgs.Answered{}
		m.Slave, m.Answer, m.Tick = g.name, uint32(e.Answer), e.Tick
		return m
	case *link.FaultEvent:
		m := &msgs.Fault{}
		m.Slave, m.Code, m.Tick = g.name, uint32(e.Code), e.Tick
		return m
	}
	return nil
}

func (g *Gateway) post(msg fx.Message) {
	if loop := g.loop.Load(); loop != nil {
		loop.PostMessage(msg)
		loop.TriggerNext()
	}
}

// Execute forwards a command message to the firmware and returns the reply
// message. ok is false if the message is not a command for this slave.
func (g *Gateway) Execute(ctx context.Context, msg fx.Message) (reply fx.Message, ok bool) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	var err error
	switch m := msg.(type) {
	case *msgs.Answer:
		if !g.selects(m.Slave) {
			return nil, false
		}
		if m.Answer > 0xff {
			return msgs.NewCommandErrFromMsg(fmt.Sprintf("invalid answer %d", m.Answer)), true
		}
		err = g.client.Answer(ctx, byte(m.Answer))
	case *msgs.Rule:
		if !g.selects(m.Slave) {
			return nil, false
		}
		if m.Address > 0xff || m.Data > 0xff || m.Answer > 0xff {
			return msgs.NewCommandErrFromMsg("rule values must be bytes"), true
		}
		err = g.client.Rule(ctx, link.RuleArgs{
			Address: byte(m.Address),
			Data:    byte(m.Data),
			Answer:  byte(m.Answer),
			Remove:  m.Remove,
		})
	case *msgs.Reset:
		if !g.selects(m.Slave) {
			return nil, false
		}
		err = g.client.Reset(ctx)
	case *msgs.StatsQuery:
		if !g.selects(m.Slave) {
			return nil, false
		}
		st, err := g.client.Stats(ctx)
		if err != nil {
			return msgs.NewCommandErr(err), true
		}
		return &msgs.Stats{StatsPB: msgs.StatsPB{
			Slave:         g.name,
			Frames:        st.Frames,
			Answers:       st.Answers,
			FramingErrors: st.FramingErrors,
			BusFailures:   st.BusFailures,
			Ticks:         st.Ticks,
			Mode:          st.Mode.String(),
		}}, true
	default:
		return nil, false
	}
	if err != nil {
		return msgs.NewCommandErr(err), true
	}
	return msgs.NewCommandOK(), true
}

func (g *Gateway) selects(slave string) bool {
	return slave == "" || slave == g.name
}
