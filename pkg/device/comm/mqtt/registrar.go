package mqtt

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"github.com/golang/glog"

	"github.com/robotalks/dali.go/pkg/device"
	"github.com/robotalks/dali.go/pkg/device/comm"
	fx "github.com/robotalks/dali.go/pkg/framework"
)

// Registrar implements device.Registrar using MQTT. The metadata is
// retained while the device is online and cleared by the last will.
// Bus events are not buffered while the broker is unreachable: they are
// counted and reported on reconnect.
type Registrar struct {
	Queue *Queue
	Info  device.Info

	metaJSON  []byte
	registrar comm.Registrar
	offline   atomic.Uint64
}

// NewRegistrar creates a Registrar.
func NewRegistrar(brokerURL string, info device.Info) (*Registrar, error) {
	meta, err := json.Marshal(&info.Meta)
	if err != nil {
		return nil, err
	}
	opts, topicPrefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	metaTopic := topicPrefix + Topic(info.Ref, TopicMeta)
	opts.SetBinaryWill(metaTopic, nil, 1, true)
	if opts.ClientID == "" {
		opts.SetClientID("dali:" + info.Ref.Name())
	}
	r := &Registrar{
		Queue:    NewQueue(opts, topicPrefix),
		Info:     info,
		metaJSON: meta,
	}
	r.Queue.OnConnect = r.online
	r.registrar.Init(NewPacketReadWriter(r.Queue).ForDevice(info.Ref))
	return r, nil
}

// SendEvent implements Registrar.
func (r *Registrar) SendEvent(ctx context.Context, msg fx.Message) error {
	if !r.Queue.Client.IsConnected() {
		r.offline.Add(1)
		return nil
	}
	return r.registrar.SendEvent(ctx, msg)
}

// AddToLoop implements LoopAdder.
func (r *Registrar) AddToLoop(loop *fx.Loop) {
	loop.Add(&r.registrar)
	loop.AddRunnable(fx.NamedRun("mqtt-registrar", r))
}

// Run implements Runnable.
func (r *Registrar) Run(ctx context.Context) error {
	r.Queue.Connect()
	<-ctx.Done()
	if r.Queue.Client.IsConnected() {
		r.Queue.PubWith(Topic(r.Info.Ref, TopicMeta), nil, 1, true).Wait()
	}
	r.Queue.Close()
	return nil
}

func (r *Registrar) online(q *Queue) {
	q.PubWith(Topic(r.Info.Ref, TopicMeta), r.metaJSON, 1, true)
	if n := r.offline.Swap(0); n > 0 {
		glog.Warningf("%s: %d events dropped while offline", r.Info.Ref.Name(), n)
	}
}
