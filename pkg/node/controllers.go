package node

import (
	"fmt"

	"github.com/golang/glog"

	"github.com/robotalks/dali.go/pkg/device"
	"github.com/robotalks/dali.go/pkg/device/msgs"
	fx "github.com/robotalks/dali.go/pkg/framework"
)

// selects reports whether a command addressed to slave is for this node.
// An empty slave selects the first node seeing the command.
func (s *Slave) selects(slave string) bool {
	return slave == "" || slave == s.name
}

func (s *Slave) handleCommands(cc fx.ControlContext) error {
	cc.Messages().ProcessMessages(fx.ProcessMessageFunc(func(mctx fx.MessageProcessingContext) {
		cmdMsg, ok := mctx.CurrentMessage().(*device.CommandMsg)
		if !ok {
			return
		}
		reply, ok := s.command(cmdMsg.Command.Msg())
		if !ok {
			return
		}
		mctx.MessageTaken()
		if err := cmdMsg.Command.Done(reply); err != nil {
			glog.Errorf("%s: reply error: %v", s.name, err)
		}
	}))
	return nil
}

func (s *Slave) command(msg fx.Message) (fx.Message, bool) {
	switch m := msg.(type) {
	case *msgs.Answer:
		if !s.selects(m.Slave) {
			return nil, false
		}
		if m.Answer > 0xff {
			return msgs.NewCommandErrFromMsg(fmt.Sprintf("invalid answer %d", m.Answer)), true
		}
		if err := s.Answer(byte(m.Answer)); err != nil {
			return msgs.NewCommandErr(err), true
		}
	case *msgs.Rule:
		if !s.selects(m.Slave) {
			return nil, false
		}
		if m.Address > 0xff || m.Data > 0xff || m.Answer > 0xff {
			return msgs.NewCommandErrFromMsg("rule values must be bytes"), true
		}
		if m.Remove {
			s.table.Remove(byte(m.Address), byte(m.Data))
		} else {
			s.table.Set(byte(m.Address), byte(m.Data), byte(m.Answer))
		}
		glog.V(1).Infof("%s: %d answers", s.name, s.table.Len())
	case *msgs.Reset:
		if !s.selects(m.Slave) {
			return nil, false
		}
		s.Reset()
	case *msgs.StatsQuery:
		if !s.selects(m.Slave) {
			return nil, false
		}
		return msgs.NewStats(s.name, s.core), true
	default:
		return nil, false
	}
	return msgs.NewCommandOK(), true
}

func (s *Slave) publishEvents(cc fx.ControlContext) error {
	if s.registrar == nil {
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
		if slave != s.name {
			return
		}
		mctx.MessageTaken()
		errs.Add(s.registrar.SendEvent(cc.Context(), mctx.CurrentMessage()))
	}))
	return errs.Aggregate()
}
