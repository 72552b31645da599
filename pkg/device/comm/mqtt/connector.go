package mqtt

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"

	"github.com/robotalks/dali.go/pkg/device"
	"github.com/robotalks/dali.go/pkg/device/comm"
)

// Connector implements device.Connector using MQTT.
type Connector struct {
	DiscoverTimeout time.Duration

	options     *paho.ClientOptions
	topicPrefix string
}

// DefaultDiscoverTimeout defines the default timeout value of discovery.
const DefaultDiscoverTimeout = 500 * time.Millisecond

// NewConnector creates a Connector.
func NewConnector(brokerURL string) (*Connector, error) {
	opts, topicPrefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	return &Connector{
		DiscoverTimeout: DefaultDiscoverTimeout,
		options:         opts,
		topicPrefix:     topicPrefix,
	}, nil
}

// ParseMetaTopic extracts the device ref from a TYPE/ID/meta topic.
func ParseMetaTopic(topic string) (device.Ref, bool) {
	name, ok := strings.CutSuffix(topic, "/"+TopicMeta)
	if !ok {
		return device.Ref{}, false
	}
	ref, ok := device.ParseRef(name)
	return ref, ok && ref.IsValid()
}

// Discover implements Connector. It collects the retained metadata of
// the online devices for DiscoverTimeout, sorted by name.
func (c *Connector) Discover(ctx context.Context) ([]device.Info, error) {
	q := NewQueue(c.options, c.topicPrefix)
	if token := q.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	defer q.Close()

	found := make(map[device.Ref]device.Meta)
	var lock sync.Mutex
	q.Sub("+/+/"+TopicMeta, func(topic string, payload []byte) {
		ref, ok := ParseMetaTopic(topic)
		if !ok || len(payload) == 0 {
			return
		}
		var meta device.Meta
		if err := json.Unmarshal(payload, &meta); err != nil {
			glog.Warningf("%s: invalid meta: %v", topic, err)
		}
		lock.Lock()
		found[ref] = meta
		lock.Unlock()
	})

	dur := c.DiscoverTimeout
	if dur <= 0 {
		dur = DefaultDiscoverTimeout
	}
	timer := time.NewTimer(dur)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	lock.Lock()
	defer lock.Unlock()
	res := make([]device.Info, 0, len(found))
	for ref, meta := range found {
		res = append(res, device.Info{Ref: ref, Meta: meta})
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Ref.Name() < res[j].Ref.Name() })
	return res, nil
}

// Connect implements Connector.
func (c *Connector) Connect(ctx context.Context, ref device.Ref) (device.Conn, error) {
	conn := &Conn{
		Queue: NewQueue(c.options, c.topicPrefix),
	}
	conn.Init(NewPacketReadWriter(conn.Queue).ForConnector(ref))
	token := conn.Queue.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return nil, err
	}
	return conn, nil
}

// Conn implements device.Conn using MQTT.
type Conn struct {
	comm.Conn
	Queue *Queue
}
