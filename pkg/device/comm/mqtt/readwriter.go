package mqtt

import (
	"context"
	"io"
	"sync/atomic"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/dali.go/pkg/device"
)

// Topic levels under TYPE/ID.
const (
	TopicEvent = "event"
	TopicCmd   = "cmd"
	TopicMeta  = "meta"
)

// Topic returns the topic of a device.
func Topic(ref device.Ref, level string) string {
	return ref.Name() + "/" + level
}

// PacketBuffer is the number of received packets queued for ReadPacket.
const PacketBuffer = 64

// ReadWriter implements comm.PacketReadWriter on a pair of topics.
// Received packets are queued; when the reader falls behind for more
// than HoldTimeout, packets are dropped instead of stalling the paho
// dispatcher.
type ReadWriter struct {
	Queue       *Queue
	SubTopic    string
	PubTopic    string
	HoldTimeout time.Duration

	packetCh chan []byte
	doneCh   chan struct{}
	dropped  atomic.Uint64
}

// NewPacketReadWriter creates the ReadWriter.
func NewPacketReadWriter(q *Queue) *ReadWriter {
	return &ReadWriter{
		Queue:       q,
		HoldTimeout: time.Second,
		packetCh:    make(chan []byte, PacketBuffer),
		doneCh:      make(chan struct{}),
	}
}

// WithTopics specifies the topics.
func (p *ReadWriter) WithTopics(sub, pub string) *ReadWriter {
	p.SubTopic, p.PubTopic = sub, pub
	return p
}

// ForConnector subscribes TYPE/ID/event and publishes TYPE/ID/cmd.
func (p *ReadWriter) ForConnector(ref device.Ref) *ReadWriter {
	return p.WithTopics(Topic(ref, TopicEvent), Topic(ref, TopicCmd))
}

// ForDevice subscribes TYPE/ID/cmd and publishes TYPE/ID/event.
func (p *ReadWriter) ForDevice(ref device.Ref) *ReadWriter {
	return p.WithTopics(Topic(ref, TopicCmd), Topic(ref, TopicEvent))
}

// Dropped returns the number of received packets discarded.
func (p *ReadWriter) Dropped() uint64 {
	return p.dropped.Load()
}

// ReadPacket implements PacketReader. It returns io.EOF once Run returns.
func (p *ReadWriter) ReadPacket() ([]byte, error) {
	select {
	case pkt := <-p.packetCh:
		return pkt, nil
	case <-p.doneCh:
		return nil, io.EOF
	}
}

// WritePacket implements PacketWriter.
func (p *ReadWriter) WritePacket(pkt []byte) error {
	token := p.Queue.Pub(p.PubTopic, pkt)
	token.Wait()
	return token.Error()
}

// Run implements Runnable.
func (p *ReadWriter) Run(ctx context.Context) error {
	sub := p.Queue.Sub(p.SubTopic, p.receive)
	defer sub.Close()
	defer close(p.doneCh)
	<-ctx.Done()
	return ctx.Err()
}

func (p *ReadWriter) receive(topic string, payload []byte) {
	select {
	case p.packetCh <- payload:
		return
	default:
	}
	timer := time.NewTimer(p.HoldTimeout)
	defer timer.Stop()
	select {
	case p.packetCh <- payload:
	case <-p.doneCh:
	case <-timer.C:
		if n := p.dropped.Add(1); n&(n-1) == 0 {
			glog.Warningf("%s: reader stalled, %d packets dropped", topic, n)
		}
	}
}
