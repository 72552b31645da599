package comm

import (
	"context"
	"fmt"

	"github.com/golang/glog"

	"github.com/robotalks/dali.go/pkg/device"
	"github.com/robotalks/dali.go/pkg/device/msgs"
	fx "github.com/robotalks/dali.go/pkg/framework"
)

// Registrar is the device end of a Pipe: commands are posted to the
// loop as device.CommandMsg and replied through the same pipe, events
// from peers (e.g. a bus master observing the slave) are posted as is.
type Registrar struct {
	pipe Pipe
}

// Init initializes the Registrar with defaults.
func (r *Registrar) Init(rw PacketReadWriter) {
	r.pipe.ReadWriter = rw
	r.pipe.Handler = msgs.HandleTypedMsgFunc(r.dispatch)
}

// Stats returns the counters of the underlying pipe.
func (r *Registrar) Stats() PipeStats {
	return r.pipe.Stats()
}

func (r *Registrar) dispatch(ctx context.Context, msg fx.Message, typed *msgs.Typed) error {
	loopCtl := fx.LoopCtlFrom(ctx)
	switch {
	case typed.IsReply():
		glog.V(2).Infof("ignore %s reply seq %d", msgs.TypeName(msg), typed.Sequence)
		return nil
	case typed.IsCommand():
		loopCtl.PostMessage(&device.CommandMsg{Command: &command{seq: typed.Sequence, msg: msg, pipe: &r.pipe}})
	default:
		loopCtl.PostMessage(msg)
	}
	loopCtl.TriggerNext()
	return nil
}

// SendEvent implements Registrar.
func (r *Registrar) SendEvent(ctx context.Context, msg fx.Message) error {
	return r.pipe.SendEventMsg(msg)
}

// AddToLoop implements LoopAdder.
func (r *Registrar) AddToLoop(loop *fx.Loop) {
	loop.Add(&r.pipe)
}

type command struct {
	seq  uint32
	msg  fx.Message
	pipe *Pipe
}

func (c *command) Msg() fx.Message {
	return c.msg
}

func (c *command) Done(reply fx.Message) error {
	return c.pipe.SendCommandMsg(reply, c.seq)
}

// RegistrarMux fans events out to several Registrars, e.g. MQTT plus a
// local journal.
type RegistrarMux struct {
	Registrars []device.Registrar
}

// SendEvent implements Registrar. Every registrar is tried.
func (r *RegistrarMux) SendEvent(ctx context.Context, msg fx.Message) error {
	var errs fx.AggregatedError
	for _, reg := range r.Registrars {
		errs.Add(reg.SendEvent(ctx, msg))
	}
	return errs.Aggregate()
}

// AddToLoop implements LoopAdder.
func (r *RegistrarMux) AddToLoop(l *fx.Loop) {
	for _, reg := range r.Registrars {
		if adder, ok := reg.(fx.LoopAdder); ok {
			l.Add(adder)
		}
	}
}

// Add adds more registrars.
func (r *RegistrarMux) Add(regs ...device.Registrar) {
	r.Registrars = append(r.Registrars, regs...)
}

// UnsupportedCommands replies commands no controller took.
type UnsupportedCommands struct {
}

// Control implements Controller.
func (c *UnsupportedCommands) Control(cc fx.ControlContext) error {
	cc.Messages().ProcessMessages(fx.ProcessMessageFunc(func(mctx fx.MessageProcessingContext) {
		cmdMsg, ok := mctx.CurrentMessage().(*device.CommandMsg)
		if !ok {
			return
		}
		mctx.MessageTaken()
		reason := fmt.Errorf("%w: %s", msgs.ErrUnsupportedCommand, msgs.TypeName(cmdMsg.Command.Msg()))
		if err := cmdMsg.Command.Done(msgs.NewCommandErr(reason)); err != nil {
			glog.Warningf("reply %v: %v", reason, err)
		}
	}))
	return nil
}

// AddToLoop implements LoopAdder.
func (c *UnsupportedCommands) AddToLoop(loop *fx.Loop) {
	loop.AddController(fx.PrLvIdle, c)
}
