package mqtt

import (
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/dali.go/pkg/device"
)

func TestMatchTopic(t *testing.T) {
	testCases := []struct {
		topic   string
		pattern string
		match   bool
	}{
		{"dali-sim/a/meta", "+/+/meta", true},
		{"dali-sim/a/event", "+/+/meta", false},
		{"dali-sim/a/event", "dali-sim/#", true},
		{"dali-sim/a/event", "dali-slave/#", false},
		{"dali-sim/a", "+/+/meta", false},
		{"dali-sim/a/event", "dali-sim/a/event", true},
		{"dali-sim/a/meta/x", "+/+/meta", false},
		{"dali-sim", "dali-sim/#", true},
		{"dali-sim/a/event", "#", true},
		{"dali-sim/a/event", "dali-sim/+", false},
	}
	for _, tc := range testCases {
		require.Equalf(t, tc.match, MatchTopic(tc.topic, tc.pattern), "%s ~ %s", tc.topic, tc.pattern)
	}
}

func TestClientOptionsFromURL(t *testing.T) {
	testCases := []struct {
		url     string
		broker  string
		prefix  string
		user    string
		client  string
		invalid bool
	}{
		{url: "mqtt://localhost:1883/dali/", broker: "tcp://localhost:1883", prefix: "dali/"},
		{url: "mqtt://localhost:1883/dali", broker: "tcp://localhost:1883", prefix: "dali/"},
		{url: "mqtt://localhost:1883", broker: "tcp://localhost:1883"},
		{url: "ssl://u:p@broker:8883/a/b?client-id=c1", broker: "ssl://broker:8883", prefix: "a/b/", user: "u", client: "c1"},
		{url: "mqtt://localhost:1883/?keep-alive=10s", broker: "tcp://localhost:1883"},
		{url: "mqtt://localhost:1883/?keep-alive=x", invalid: true},
		{url: "://", invalid: true},
	}
	for _, tc := range testCases {
		opts, prefix, err := ClientOptionsFromURL(tc.url)
		if tc.invalid {
			require.Errorf(t, err, tc.url)
			continue
		}
		require.NoError(t, err)
		require.Len(t, opts.Servers, 1)
		require.Equal(t, tc.broker, opts.Servers[0].String())
		require.Equal(t, tc.prefix, prefix)
		require.Equal(t, tc.user, opts.Username)
		require.Equal(t, tc.client, opts.ClientID)
	}
}

func TestParseMetaTopic(t *testing.T) {
	ref, ok := ParseMetaTopic("dali-slave/lamp1/meta")
	require.True(t, ok)
	require.Equal(t, device.Ref{Type: "dali-slave", ID: "lamp1"}, ref)
	_, ok = ParseMetaTopic("dali-slave/lamp1/event")
	require.False(t, ok)
	_, ok = ParseMetaTopic("dali-slave//meta")
	require.False(t, ok)
}

func TestTopics(t *testing.T) {
	ref := device.Ref{Type: device.TypeSim, ID: "x"}
	rw := NewPacketReadWriter(nil).ForDevice(ref)
	require.Equal(t, "dali-sim/x/cmd", rw.SubTopic)
	require.Equal(t, "dali-sim/x/event", rw.PubTopic)
	rw.ForConnector(ref)
	require.Equal(t, "dali-sim/x/event", rw.SubTopic)
	require.Equal(t, "dali-sim/x/cmd", rw.PubTopic)
}

func TestQueueHandlers(t *testing.T) {
	q := NewQueue(paho.NewClientOptions(), "dali/")
	var got []string
	record := func(name string) Handler {
		return func(topic string, _ []byte) { got = append(got, name+" "+topic) }
	}
	events := q.Sub("dali-sim/+/event", record("events"))
	all := q.Sub("dali-sim/+/event", record("all"))
	q.Sub("dali-sim/lamp/cmd", record("cmd"))

	require.Len(t, q.handlers("dali-sim/lamp/event"), 2)
	require.Len(t, q.handlers("dali-sim/lamp/cmd"), 1)
	require.Empty(t, q.handlers("dali-slave/lamp/meta"))

	require.NoError(t, events.Close())
	require.NoError(t, events.Close())
	for _, h := range q.handlers("dali-sim/lamp/event") {
		h("dali-sim/lamp/event", nil)
	}
	require.Equal(t, []string{"all dali-sim/lamp/event"}, got)
	require.NotNil(t, all.Token)
}

func TestReadWriterDropsWhenStalled(t *testing.T) {
	rw := NewPacketReadWriter(nil)
	rw.HoldTimeout = time.Millisecond
	for i := 0; i < PacketBuffer+2; i++ {
		rw.receive("dali-sim/x/cmd", []byte{byte(i)})
	}
	require.Equal(t, uint64(2), rw.Dropped())
	pkt, err := rw.ReadPacket()
	require.NoError(t, err)
	require.Equal(t, []byte{0}, pkt)

	rw.receive("dali-sim/x/cmd", []byte{0xfe})
	rw.HoldTimeout = time.Hour
	close(rw.doneCh)
	rw.receive("dali-sim/x/cmd", []byte{0xff})
	require.Equal(t, uint64(2), rw.Dropped())
}
