package trace

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/dali.go/pkg/device/msgs"
	fx "github.com/robotalks/dali.go/pkg/framework"
	"github.com/robotalks/dali.go/pkg/sim/wire"
)

type testControlContext struct {
	fx.ControlContext
	messages []fx.Message
}

func (c *testControlContext) Messages() fx.MessageStore { return c }

func (c *testControlContext) Context() context.Context { return context.Background() }

func (c *testControlContext) Time() time.Time { return time.Time{} }

func (c *testControlContext) AddMessages(msgs ...fx.Message) {
	c.messages = append(c.messages, msgs...)
}

type testMessageContext struct {
	*testControlContext
	msg fx.Message
}

func (c *testMessageContext) CurrentMessage() fx.Message { return c.msg }
func (c *testMessageContext) MessageTaken()              {}
func (c *testMessageContext) StopProcessing()            {}

func (c *testControlContext) ProcessMessages(proc fx.MessageProcessor) {
	for _, msg := range c.messages {
		proc.ProcessMessage(&testMessageContext{testControlContext: c, msg: msg})
	}
}

func decodeLines(t *testing.T, out *bytes.Buffer) [][]Message {
	var lines [][]Message
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		if line == "" {
			continue
		}
		var msgs []Message
		require.NoError(t, json.Unmarshal([]byte(line), &msgs))
		lines = append(lines, msgs)
	}
	out.Reset()
	return lines
}

func TestTracerEdges(t *testing.T) {
	var out bytes.Buffer
	conf := NewConfig()
	conf.Edges = true
	tr := conf.NewTracerTo(&out)

	bus := wire.New()
	ep := bus.Attach("dev", false)
	tr.Attach(bus)
	ep.Set(false)
	bus.Step()
	ep.Set(true)
	bus.Step()

	cc := &testControlContext{}
	require.NoError(t, tr.ReportChanges(cc))
	lines := decodeLines(t, &out)
	require.Len(t, lines, 1)
	require.Len(t, lines[0], 3)
	require.Equal(t, ActionReset, lines[0][0].Action)
	require.Equal(t, ActionEdge, lines[0][1].Action)
	require.Equal(t, false, lines[0][1].Record[PropLevel])
	require.Equal(t, true, lines[0][2].Record[PropLevel])

	// nothing new, nothing printed.
	require.NoError(t, tr.ReportChanges(cc))
	require.Zero(t, out.Len())
}

func TestTracerDropsEdges(t *testing.T) {
	var out bytes.Buffer
	conf := &Config{Edges: true, MaxEdges: 2}
	tr := conf.NewTracerTo(&out)
	for i := uint64(0); i < 5; i++ {
		tr.BusChanged(i, i%2 == 0)
	}
	require.NoError(t, tr.ReportChanges(&testControlContext{}))
	lines := decodeLines(t, &out)
	require.Len(t, lines[0], 4)
	require.Equal(t, ActionDrop, lines[0][3].Action)
	require.Equal(t, float64(3), lines[0][3].Record[PropCount])
}

func TestTracerEvents(t *testing.T) {
	var out bytes.Buffer
	tr := NewConfig().NewTracerTo(&out)
	tr.BusChanged(1, false)

	frame := &msgs.Frame{}
	frame.Slave, frame.Address, frame.Data = "lamp", 0x2d, 0x90
	cc := &testControlContext{messages: []fx.Message{frame, msgs.NewForward(1, 2)}}
	require.NoError(t, tr.ReportChanges(cc))
	lines := decodeLines(t, &out)
	require.Len(t, lines[0], 2)
	ev := lines[0][1]
	require.Equal(t, ActionEvent, ev.Action)
	require.Equal(t, "frame", ev.Record[PropType])
	require.Equal(t, "lamp", ev.Record[PropEvent].(map[string]interface{})["slave"])
}
