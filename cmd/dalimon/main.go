package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"golang.org/x/net/websocket"

	"github.com/robotalks/dali.go/pkg/device/comm/mqtt"
	"github.com/robotalks/dali.go/pkg/device/comm/stream"
	"github.com/robotalks/dali.go/pkg/device/msgs"
	"github.com/robotalks/dali.go/pkg/store"
)

var (
	mqttURL = "mqtt://localhost:1883/dali/"
	dbPath  string
	replay  string
	wsURL   string
	slave   string
	limit   = 100
)

func init() {
	if val := os.Getenv("DALI_MQTT_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
	flag.StringVar(&dbPath, "db", dbPath, "List the history from the SQLite event journal.")
	flag.StringVar(&replay, "replay", replay, "Print events from the capture file.")
	flag.StringVar(&wsURL, "ws", wsURL, "Watch the websocket event feed, e.g. ws://host:port/events.")
	flag.StringVar(&slave, "slave", slave, "Only history of the slave (with -db).")
	flag.IntVar(&limit, "n", limit, "Number of history entries (with -db).")
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	var err error
	switch {
	case dbPath != "":
		err = history()
	case replay != "":
		err = playback()
	case wsURL != "":
		err = feed()
	default:
		err = monitor()
	}
	if err != nil {
		log.Fatalln(err)
	}
}

func printPacket(prefix string, pkt []byte) {
	msg, typed, err := msgs.Decode(pkt)
	if err != nil {
		if typed != nil {
			log.Printf("%s: decode error: (type_id=%x) %v", prefix, typed.TypeId, err)
		} else {
			log.Printf("%s: bad message: %v", prefix, err)
		}
		return
	}
	log.Printf("%s: [%s] %s", prefix, msgs.TypeName(msg),
		msg.(msgs.SerializableMessage).Serializable().String())
}

func monitor() error {
	q, err := mqtt.NewQueueFromURL(mqttURL)
	if err != nil {
		return err
	}
	if token := q.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	q.Sub("#", mqtt.Handler(func(topic string, payload []byte) {
		if strings.HasSuffix(topic, "/"+mqtt.TopicMeta) {
			log.Printf("%s: %s", topic, string(payload))
			return
		}
		printPacket(topic, payload)
	}))
	<-(chan struct{})(nil)
	return nil
}

func history() error {
	j, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer j.Close()
	entries, err := j.Query(context.Background(), store.Filter{Slave: slave, Limit: limit})
	if err != nil {
		return err
	}
	for _, ent := range entries {
		log.Printf("%s #%d %s: [%s] %s", ent.Time.Format(time.RFC3339Nano), ent.ID, ent.Slave, ent.Kind,
			ent.Msg.(msgs.SerializableMessage).Serializable().String())
	}
	return nil
}

func playback() error {
	f, err := os.Open(replay)
	if err != nil {
		return err
	}
	defer f.Close()
	player, err := stream.NewPlayer(f)
	if err != nil {
		return err
	}
	for {
		rec, err := player.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		printPacket(rec.Time.Format(time.RFC3339Nano), rec.Packet)
	}
}

func feed() error {
	ws, err := websocket.Dial(wsURL, "", "http://localhost/")
	if err != nil {
		return err
	}
	defer ws.Close()
	for {
		var text string
		if err := websocket.Message.Receive(ws, &text); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		log.Println(text)
	}
}
