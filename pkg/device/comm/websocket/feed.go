package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"

	"github.com/robotalks/dali.go/pkg/device/comm"
	"github.com/robotalks/dali.go/pkg/device/msgs"
	fx "github.com/robotalks/dali.go/pkg/framework"
)

// Feed paths.
const (
	PathPackets = "/packets"
	PathEvents  = "/events"
)

// Event is the JSON form of an event on the feed.
type Event struct {
	Type  string     `json:"type"`
	Time  time.Time  `json:"time"`
	Event fx.Message `json:"event"`
}

// Feed broadcasts device events to websocket clients. Clients on
// PathPackets receive encoded Typed packets, clients on PathEvents receive
// Event as JSON text. Feed implements device.Registrar without commands.
type Feed struct {
	Now func() time.Time

	packets comm.Fanout
	events  comm.Fanout
	mux     *http.ServeMux
}

// NewFeed creates a Feed.
func NewFeed() *Feed {
	f := &Feed{Now: time.Now, mux: http.NewServeMux()}
	f.packets.OnError = f.dropped
	f.events.OnError = f.dropped
	f.mux.Handle(PathPackets, websocket.Handler(func(conn *websocket.Conn) {
		f.serve(conn, New(conn), &f.packets)
	}))
	f.mux.Handle(PathEvents, websocket.Handler(func(conn *websocket.Conn) {
		f.serve(conn, NewText(conn), &f.events)
	}))
	return f
}

// Clients returns the number of connected clients.
func (f *Feed) Clients() int {
	return f.packets.Len() + f.events.Len()
}

// ServeHTTP implements http.Handler.
func (f *Feed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mux.ServeHTTP(w, r)
}

// SendEvent implements device.Registrar.
func (f *Feed) SendEvent(ctx context.Context, msg fx.Message) error {
	if f.packets.Len() > 0 {
		pkt, err := msgs.Encode(msg)
		if err != nil {
			return err
		}
		f.packets.WritePacket(pkt)
	}
	if f.events.Len() > 0 {
		data, err := json.Marshal(&Event{Type: msgs.TypeName(msg), Time: f.Now(), Event: msg})
		if err != nil {
			return err
		}
		f.events.WritePacket(data)
	}
	return nil
}

// ListenAndServe serves the feed on addr until ctx is done.
func (f *Feed) ListenAndServe(ctx context.Context, addr string) error {
	server := &http.Server{Addr: addr, Handler: f}
	return fx.RunWithContextCancel(ctx, func() { server.Close() }, func() error {
		glog.Infof("event feed on %s", addr)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})
}

func (f *Feed) serve(conn *websocket.Conn, w comm.PacketWriter, fanout *comm.Fanout) {
	glog.V(1).Infof("feed client %s connected", conn.Request().RemoteAddr)
	fanout.Attach(w)
	defer fanout.Detach(w)
	// Clients don't send anything, reading only detects the close.
	var discard []byte
	for {
		if err := websocket.Message.Receive(conn, &discard); err != nil {
			glog.V(1).Infof("feed client %s disconnected: %v", conn.Request().RemoteAddr, err)
			return
		}
	}
}

func (f *Feed) dropped(w comm.PacketWriter, err error) {
	glog.Warningf("feed client dropped: %v", err)
}
