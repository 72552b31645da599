package gateway

import (
	"github.com/golang/glog"

	"github.com/robotalks/dali.go/pkg/device"
	"github.com/robotalks/dali.go/pkg/device/msgs"
	fx "github.com/robotalks/dali.go/pkg/framework"
)

// handleCommands takes the commands for this slave. They are executed in
// the background as each one waits for a link round trip.
func (g *Gateway) handleCommands(cc fx.ControlContext) error {
	ctx := cc.Context()
	cc.Messages().ProcessMessages(fx.ProcessMessageFunc(func(mctx fx.MessageProcessingContext) {
		cmdMsg, ok := mctx.CurrentMessage().(*device.CommandMsg)
		if !ok || !g.accepts(cmdMsg.Command.Msg()) {
			return
		}
		mctx.MessageTaken()
		go func(cmd device.Command) {
			reply, _ := g.Execute(ctx, cmd.Msg())
			if err := cmd.Done(reply); err != nil {
				glog.Errorf("%s: reply error: %v", g.name, err)
			}
		}(cmdMsg.Command)
	}))
	return nil
}

func (g *Gateway) accepts(msg fx.Message) bool {
	switch m := msg.(type) {
	case *msgs.Answer:
		return g.selects(m.Slave)
	case *msgs.Rule:
		return g.selects(m.Slave)
	case *msgs.Reset:
		return g.selects(m.Slave)
	case *msgs.StatsQuery:
		return g.selects(m.Slave)
	}
	return false
}

func (g *Gateway) publishEvents(cc fx.ControlContext) error {
	if g.registrar == nil {
		return nil
	}
	var errs fx.AggregatedError
	cc.Messages().ProcessMessages(fx.ProcessMessageFunc(func(mctx fx.MessageProcessingContext) {
		var slave string
		switch m := mctx.CurrentMessage().(type) {
		case *msgs.Frame:
			slave = m.Slave
		case *msgs.Answered:
			slave = m.Slave
		case *msgs.Fault:
			slave = m.Slave
		default:
			return
		}
		if slave != g.name {
			return
		}
		mctx.MessageTaken()
		errs.Add(g.registrar.SendEvent(cc.Context(), mctx.CurrentMessage()))
	}))
	return errs.Aggregate()
}
