package comm

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/dali.go/pkg/device"
	"github.com/robotalks/dali.go/pkg/device/msgs"
	fx "github.com/robotalks/dali.go/pkg/framework"
)

type chanPacketReadWriter struct {
	readCh  <-chan []byte
	writeCh chan<- []byte
}

func (c *chanPacketReadWriter) ReadPacket() ([]byte, error) {
	pkt, ok := <-c.readCh
	if !ok {
		return nil, io.EOF
	}
	return pkt, nil
}

func (c *chanPacketReadWriter) WritePacket(pkt []byte) error {
	c.writeCh <- pkt
	return nil
}

func packetPair() (*chanPacketReadWriter, *chanPacketReadWriter) {
	a, b := make(chan []byte, 16), make(chan []byte, 16)
	return &chanPacketReadWriter{readCh: a, writeCh: b}, &chanPacketReadWriter{readCh: b, writeCh: a}
}

func TestCommandRoundTrip(t *testing.T) {
	devRW, connRW := packetPair()
	var reg Registrar
	reg.Init(devRW)
	var conn Conn
	conn.Init(connRW)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	devLoop := fx.NewLoop().Add(&reg)
	devLoop.AddController(fx.PrLvControl, fx.ControlFunc(func(cc fx.ControlContext) error {
		cc.Messages().ProcessMessages(fx.ProcessMessageFunc(func(mctx fx.MessageProcessingContext) {
			cmdMsg, ok := mctx.CurrentMessage().(*device.CommandMsg)
			if !ok {
				return
			}
			if fwd, ok := cmdMsg.Command.Msg().(*msgs.Forward); ok {
				mctx.MessageTaken()
				if fwd.Address == 0xff {
					cmdMsg.Command.Done(msgs.NewCommandErrFromMsg("dali: busy"))
					return
				}
				cmdMsg.Command.Done(msgs.NewCommandOK())
			}
		}))
		return nil
	}))
	devLoop.Add(&UnsupportedCommands{})
	go devLoop.Run(ctx)

	connLoop := fx.NewLoop().Add(&conn)
	events := make(chan fx.Message, 1)
	connLoop.AddController(fx.PrLvControl, fx.ControlFunc(func(cc fx.ControlContext) error {
		cc.Messages().ProcessMessages(fx.ProcessMessageFunc(func(mctx fx.MessageProcessingContext) {
			mctx.MessageTaken()
			events <- mctx.CurrentMessage()
		}))
		return nil
	}))
	go connLoop.Run(ctx)

	res := <-conn.DoCommand(msgs.NewForward(1, 2)).ResultChan()
	require.NoError(t, res.Err)
	require.IsType(t, &msgs.CommandOK{}, res.Msg)

	res = <-conn.DoCommand(msgs.NewForward(0xff, 2)).ResultChan()
	require.EqualError(t, res.Err, "dali: busy")

	res = <-conn.DoCommand(&msgs.Short{}).ResultChan()
	require.EqualError(t, res.Err, "unsupported command: short")

	frame := &msgs.Frame{FramePB: msgs.FramePB{Address: 3, Data: 4}}
	require.NoError(t, reg.SendEvent(ctx, frame))
	select {
	case ev := <-events:
		require.Equal(t, frame, ev)
	case <-time.After(5 * time.Second):
		t.Fatal("event not received")
	}
}

func TestCommandTimeout(t *testing.T) {
	_, connRW := packetPair()
	var conn Conn
	conn.Init(connRW)
	require.Equal(t, DefaultCommandTimeout, conn.Timeout())
	conn.SetTimeout(10 * time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	loop := fx.NewLoop().Add(&conn)
	loop.Interval = 5 * time.Millisecond
	go loop.Run(ctx)

	res := <-conn.DoCommand(&msgs.Reset{}).ResultChan()
	require.ErrorIs(t, res.Err, context.DeadlineExceeded)
	var timeoutErr *CommandTimeoutError
	require.ErrorAs(t, res.Err, &timeoutErr)
	require.Equal(t, "reset", timeoutErr.Command)
	require.Equal(t, uint32(1), timeoutErr.Seq)
	st := conn.Stats()
	require.Equal(t, uint64(1), st.Expired)
	require.Zero(t, st.Pending)
}

// serveReplies answers every command read from rw with the reply built
// by fn, keeping the sequence.
func serveReplies(t *testing.T, rw *chanPacketReadWriter, fn func(fx.Message) fx.Message) {
	for {
		pkt, err := rw.ReadPacket()
		if err != nil {
			return
		}
		msg, typed, err := msgs.Decode(pkt)
		if !assert.NoError(t, err) {
			return
		}
		reply, err := msgs.TypedFrom(fn(msg))
		if !assert.NoError(t, err) {
			return
		}
		reply.Sequence = typed.Sequence
		out, err := reply.Encode()
		if !assert.NoError(t, err) {
			return
		}
		rw.WritePacket(out)
	}
}

func TestCommandReplyKinds(t *testing.T) {
	devRW, connRW := packetPair()
	var conn Conn
	conn.Init(connRW)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go fx.NewLoop().Add(&conn).Run(ctx)
	go serveReplies(t, devRW, func(msg fx.Message) fx.Message {
		switch m := msg.(type) {
		case *msgs.StatsQuery:
			return &msgs.Stats{StatsPB: msgs.StatsPB{Slave: m.Slave, Frames: 5}}
		case *msgs.Reset:
			// a stats reply to a reset belongs to another command.
			return &msgs.Stats{}
		}
		return msgs.NewCommandOK()
	})

	query := &msgs.StatsQuery{}
	query.Slave = "ballast"
	res := <-conn.DoCommand(query).ResultChan()
	require.NoError(t, res.Err)
	require.Equal(t, uint32(5), res.Msg.(*msgs.Stats).Frames)

	res = <-conn.DoCommand(msgs.NewForward(1, 2)).ResultChan()
	require.NoError(t, res.Err)
	require.IsType(t, &msgs.CommandOK{}, res.Msg)

	res = <-conn.DoCommand(&msgs.Reset{}).ResultChan()
	require.ErrorIs(t, res.Err, ErrReplyMismatch)

	res = <-conn.DoCommand(&msgs.Frame{}).ResultChan()
	require.ErrorIs(t, res.Err, ErrWrongKind)
	require.Zero(t, conn.Stats().Pending)
}

func TestConnRejectsCommands(t *testing.T) {
	devRW, connRW := packetPair()
	var conn Conn
	conn.Init(connRW)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go fx.NewLoop().Add(&conn).Run(ctx)

	cmd, err := msgs.TypedFrom(&msgs.Reset{})
	require.NoError(t, err)
	cmd.Sequence = 9
	pkt, err := cmd.Encode()
	require.NoError(t, err)
	require.NoError(t, devRW.WritePacket(pkt))

	reply, err := devRW.ReadPacket()
	require.NoError(t, err)
	msg, typed, err := msgs.Decode(reply)
	require.NoError(t, err)
	require.Equal(t, uint32(9), typed.Sequence)
	require.EqualError(t, msg.(*msgs.CommandErr), "unsupported command: reset")

	// a reply nobody waits for is counted, not delivered.
	stray, err := msgs.TypedFrom(msgs.NewCommandOK())
	require.NoError(t, err)
	stray.Sequence = 42
	pkt, err = stray.Encode()
	require.NoError(t, err)
	require.NoError(t, devRW.WritePacket(pkt))
	require.Eventually(t, func() bool { return conn.Stats().Stale == 1 }, time.Second, time.Millisecond)
}

func TestConnFailsPendingOnClose(t *testing.T) {
	devRW, connRW := packetPair()
	var conn Conn
	conn.Init(connRW)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- fx.NewLoop().Add(&conn).Run(ctx) }()

	f := conn.DoCommand(&msgs.Reset{})
	_, err := devRW.ReadPacket()
	require.NoError(t, err)
	close(devRW.writeCh)

	res := <-f.ResultChan()
	require.ErrorIs(t, res.Err, ErrConnClosed)
	cancel()
	<-done
}

func TestPipeRepliesUnknownCommand(t *testing.T) {
	a, b := packetPair()
	p := NewPipe(a)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	unknown := &msgs.Typed{TypedPB: msgs.TypedPB{TypeId: msgs.GroupCustom | 1, Sequence: 7}}
	pkt, err := unknown.Encode()
	require.NoError(t, err)
	require.NoError(t, b.WritePacket(pkt))

	reply, err := b.ReadPacket()
	require.NoError(t, err)
	msg, typed, err := msgs.Decode(reply)
	require.NoError(t, err)
	require.Equal(t, uint32(7), typed.Sequence)
	require.IsType(t, &msgs.CommandErr{}, msg)
}

func TestPipeSendKinds(t *testing.T) {
	a, _ := packetPair()
	p := NewPipe(a)
	require.NoError(t, p.SendEventMsg(&msgs.Fault{}))
	require.ErrorIs(t, p.SendEventMsg(&msgs.Reset{}), ErrWrongKind)
	require.ErrorIs(t, p.SendCommandMsg(&msgs.Fault{}, 1), ErrWrongKind)
	require.Equal(t, PipeStats{Sent: 1}, p.Stats())
}

func TestPipeDropsMalformed(t *testing.T) {
	a, b := packetPair()
	var handled []fx.Message
	p := NewPipe(a)
	p.Handler = msgs.HandleTypedMsgFunc(func(_ context.Context, msg fx.Message, _ *msgs.Typed) error {
		handled = append(handled, msg)
		return nil
	})

	stray := &msgs.Typed{TypedPB: msgs.TypedPB{TypeId: msgs.GroupCustom | msgs.TypeIDMaskReply | 1, Sequence: 3}}
	pkt, err := stray.Encode()
	require.NoError(t, err)
	require.NoError(t, b.WritePacket([]byte{0xff, 0xff}))
	require.NoError(t, b.WritePacket(pkt))
	frame, err := msgs.Encode(&msgs.Frame{})
	require.NoError(t, err)
	require.NoError(t, b.WritePacket(frame))
	close(b.writeCh)

	require.NoError(t, p.Run(context.Background()))
	require.Len(t, handled, 1)
	require.Equal(t, PipeStats{Received: 3, Malformed: 2}, p.Stats())
}

type failingWriter struct {
	err error
	n   int
}

func (w *failingWriter) WritePacket([]byte) error {
	w.n++
	return w.err
}

func TestFanout(t *testing.T) {
	var f Fanout
	require.NoError(t, f.WritePacket([]byte{1}))

	good, bad := &failingWriter{}, &failingWriter{err: errors.New("closed")}
	var failed []PacketWriter
	f.OnError = func(w PacketWriter, err error) { failed = append(failed, w) }
	f.Attach(good)
	f.Attach(bad)
	require.Equal(t, 2, f.Len())
	require.NoError(t, f.WritePacket([]byte{1}))
	require.Equal(t, []PacketWriter{bad}, failed)
	require.Equal(t, 1, f.Len())
	require.NoError(t, f.WritePacket([]byte{2}))
	require.Equal(t, 2, good.n)
	require.Equal(t, 1, bad.n)

	f.Detach(good)
	f.Attach(bad)
	require.Error(t, f.WritePacket([]byte{3}))
	require.Zero(t, f.Len())
}

func TestEventWriter(t *testing.T) {
	a, b := packetPair()
	w := &EventWriter{Writer: a}
	fault := &msgs.Fault{}
	fault.Slave, fault.Code = "s1", 1
	require.NoError(t, w.SendEvent(context.Background(), fault))
	pkt, err := b.ReadPacket()
	require.NoError(t, err)
	msg, typed, err := msgs.Decode(pkt)
	require.NoError(t, err)
	require.True(t, typed.IsEvent())
	require.Equal(t, "s1", msg.(*msgs.Fault).Slave)
}
