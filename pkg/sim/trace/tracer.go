// Package trace prints bus activity of a simulation as JSON lines.
package trace

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/robotalks/dali.go/pkg/device/msgs"
	fx "github.com/robotalks/dali.go/pkg/framework"
	"github.com/robotalks/dali.go/pkg/sim/wire"
)

type edge struct {
	step  uint64
	level bool
}

// Tracer collects bus level changes and device events and reports them once
// per loop iteration.
type Tracer struct {
	Config *Config
	Out    io.Writer

	initial bool
	edges   []edge
	dropped int
	lock    sync.Mutex
}

// NewTracer creates the tracer.
func NewTracer(config *Config, out io.Writer) *Tracer {
	return &Tracer{Config: config, Out: out, initial: true}
}

// Attach is a helper to observe a bus.
func (t *Tracer) Attach(bus *wire.Bus) *Tracer {
	bus.AddObservers(t)
	return t
}

// BusChanged implements wire.Observer.
func (t *Tracer) BusChanged(step uint64, level bool) {
	if !t.Config.Edges {
		return
	}
	t.lock.Lock()
	if t.Config.MaxEdges > 0 && len(t.edges) >= t.Config.MaxEdges {
		t.dropped++
	} else {
		t.edges = append(t.edges, edge{step: step, level: level})
	}
	t.lock.Unlock()
}

// AddToLoop implements LoopAdder. It reports before events are published
// and taken at PrLvPublish.
func (t *Tracer) AddToLoop(l *fx.Loop) {
	l.AddController(fx.PrLvPublish-1, fx.ControlFunc(t.ReportChanges))
}

// ReportChanges is a controller to report changes.
func (t *Tracer) ReportChanges(cc fx.ControlContext) error {
	var out []Message
	if t.initial {
		out = append(out, Message{Action: ActionReset})
		t.initial = false
	}

	t.lock.Lock()
	edges, dropped := t.edges, t.dropped
	t.edges, t.dropped = nil, 0
	t.lock.Unlock()
	for _, e := range edges {
		out = append(out, Message{Action: ActionEdge, Record: NewRecord("bus").At(e.step).Level(e.level)})
	}
	if dropped > 0 {
		out = append(out, Message{Action: ActionDrop, Record: NewRecord("bus").With(PropCount, dropped)})
	}

	cc.Messages().ProcessMessages(fx.ProcessMessageFunc(func(mctx fx.MessageProcessingContext) {
		switch msg := mctx.CurrentMessage().(type) {
		case *msgs.Frame, *msgs.Answered, *msgs.Fault, *msgs.Transaction:
			out = append(out, Message{Action: ActionEvent, Record: NewRecord(msgs.TypeName(msg)).With(PropEvent, msg)})
		}
	}))

	if len(out) == 0 {
		return nil
	}
	encoded, err := json.Marshal(out)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(t.Out, string(encoded))
	return err
}
