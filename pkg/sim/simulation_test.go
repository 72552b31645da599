package sim

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/dali.go/pkg/dali"
	"github.com/robotalks/dali.go/pkg/device"
	"github.com/robotalks/dali.go/pkg/device/env"
	"github.com/robotalks/dali.go/pkg/device/msgs"
	fx "github.com/robotalks/dali.go/pkg/framework"
)

type eventRecorder chan fx.Message

func (r eventRecorder) SendEvent(ctx context.Context, msg fx.Message) error {
	select {
	case r <- msg:
	default:
	}
	return nil
}

type testCommand struct {
	msg   fx.Message
	reply chan fx.Message
}

func (c *testCommand) Msg() fx.Message { return c.msg }

func (c *testCommand) Done(msg fx.Message) error {
	c.reply <- msg
	return nil
}

type testSim struct {
	*Simulation
	loop   *fx.Loop
	events eventRecorder
}

func startSim(t *testing.T) *testSim {
	events := make(eventRecorder, 1024)
	s, err := New(Config{
		Slaves: []env.SlaveConfig{
			{Name: "lamp1", Answers: []env.Rule{{Address: 0x2d, Data: 0x90, Answer: 0xa5}}},
			{Name: "lamp2", Inverting: true, Answers: []env.Rule{{Address: 0x2d, Data: 0x91, Answer: 0x11}}},
		},
		Registrar: events,
	})
	require.NoError(t, err)
	ts := &testSim{Simulation: s, loop: fx.NewLoop(), events: events}
	ts.loop.Interval = time.Millisecond
	ts.loop.Add(s)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		ts.loop.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return ts
}

func (s *testSim) command(t *testing.T, msg fx.Message) fx.Message {
	cmd := &testCommand{msg: msg, reply: make(chan fx.Message, 1)}
	s.loop.PostMessage(&device.CommandMsg{Command: cmd})
	s.loop.TriggerNext()
	select {
	case reply := <-cmd.reply:
		return reply
	case <-time.After(time.Second):
		require.FailNow(t, "command timeout")
	}
	return nil
}

// waitFor returns the first event accepted by match.
func (s *testSim) waitFor(t *testing.T, match func(fx.Message) bool) fx.Message {
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev := <-s.events:
			if match(ev) {
				return ev
			}
		case <-timeout:
			require.FailNow(t, "event timeout")
		}
	}
}

func TestSimulationTransactions(t *testing.T) {
	s := startSim(t)
	cases := []struct {
		address, data byte
		status        uint32
		answer        uint32
		answeredBy    string
	}{
		{0x2d, 0x90, msgs.TransactionAnswered, 0xa5, "lamp1"},
		{0x2d, 0x91, msgs.TransactionAnswered, 0x11, "lamp2"},
		{0x00, 0x00, msgs.TransactionNoAnswer, 0, ""},
	}
	for _, c := range cases {
		require.IsType(t, &msgs.CommandOK{}, s.command(t, msgs.NewForward(c.address, c.data)))
		var tx *msgs.Transaction
		var answered *msgs.Answered
		frames := make(map[string]bool)
		timeout := time.After(2 * time.Second)
		for tx == nil || (c.answeredBy != "" && answered == nil) {
			select {
			case ev := <-s.events:
				switch e := ev.(type) {
				case *msgs.Transaction:
					tx = e
				case *msgs.Answered:
					answered = e
				case *msgs.Frame:
					require.Equal(t, uint32(c.data), e.Data)
					frames[e.Slave] = true
				}
			case <-timeout:
				require.FailNow(t, "event timeout")
			}
		}
		require.Equal(t, uint32(c.address), tx.Address)
		require.Equal(t, uint32(c.data), tx.Data)
		require.Equal(t, c.status, tx.Status)
		require.Equal(t, c.answer, tx.Answer)
		require.Equal(t, map[string]bool{"lamp1": true, "lamp2": true}, frames)
		if c.answeredBy != "" {
			require.Equal(t, c.answeredBy, answered.Slave)
			require.Equal(t, c.answer, answered.Answer)
		}
	}
}

func TestSimulationForwardBusy(t *testing.T) {
	s, err := New(Config{})
	require.NoError(t, err)
	require.NoError(t, s.Forward(1, 2))
	require.Equal(t, dali.ErrBusy, s.Forward(1, 2))
}

func TestSimulationShort(t *testing.T) {
	s := startSim(t)
	require.IsType(t, &msgs.CommandOK{}, s.command(t, &msgs.Short{ShortPB: msgs.ShortPB{On: true}}))
	failed := make(map[string]bool)
	for len(failed) < 2 {
		ev := s.waitFor(t, func(msg fx.Message) bool {
			f, ok := msg.(*msgs.Fault)
			return ok && f.FaultCode() == dali.FaultBusFailure
		})
		failed[ev.(*msgs.Fault).Slave] = true
	}
	require.IsType(t, &msgs.CommandOK{}, s.command(t, &msgs.Short{}))
}

func TestSimulationRejectsInvalid(t *testing.T) {
	_, err := New(Config{Slaves: []env.SlaveConfig{{Name: "a"}, {Name: "a"}}})
	require.Error(t, err)
	_, err = New(Config{Slaves: []env.SlaveConfig{{Name: MasterName}}})
	require.Error(t, err)
	_, err = New(Config{TickFrequency: 1001})
	require.Error(t, err)

	s := startSim(t)
	bad := msgs.NewForward(0, 0)
	bad.Address = 0x100
	require.IsType(t, &msgs.CommandErr{}, s.command(t, bad))
}

func TestSimulationSlaveLookup(t *testing.T) {
	s, err := New(Config{Slaves: []env.SlaveConfig{{Name: "a"}, {Name: "b"}}})
	require.NoError(t, err)
	require.Equal(t, "b", s.Slave("b").Name())
	require.Nil(t, s.Slave("c"))
}
