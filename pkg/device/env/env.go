package env

import (
	"context"
	"fmt"
	"log"

	"github.com/golang/glog"

	"github.com/robotalks/dali.go/pkg/device/comm"
	"github.com/robotalks/dali.go/pkg/device/comm/mqtt"
	"github.com/robotalks/dali.go/pkg/device/comm/stream"
	"github.com/robotalks/dali.go/pkg/device/comm/websocket"
	fx "github.com/robotalks/dali.go/pkg/framework"
	"github.com/robotalks/dali.go/pkg/store"
)

// Env is the env of a device: all registrars events are published to.
type Env struct {
	Config       *Config
	RegistryURLs []string
	Registrar    *comm.RegistrarMux
	Feed         *websocket.Feed
	Journal      *store.Journal
	Recorder     *stream.Recorder
}

// NewEnv creates Env from config.
func (c *Config) NewEnv() (*Env, error) {
	if !c.Info.Ref.IsValid() {
		return nil, fmt.Errorf("device type and id must be specified")
	}
	c.Info.Meta.TickFrequency = c.TickFrequency
	c.Info.Meta.Slaves = nil
	for _, s := range c.Slaves {
		c.Info.Meta.Slaves = append(c.Info.Meta.Slaves, s.Name)
	}
	env := &Env{
		Config:    c,
		Registrar: &comm.RegistrarMux{},
	}
	if c.MQTTBrokerURL != "" {
		reg, err := mqtt.NewRegistrar(c.MQTTBrokerURL, c.Info)
		if err != nil {
			return nil, fmt.Errorf("create MQTT registrar error: %w", err)
		}
		env.Registrar.Add(reg)
		env.RegistryURLs = append(env.RegistryURLs, c.MQTTBrokerURL)
	}
	if c.Database != "" {
		journal, err := store.Open(c.Database)
		if err != nil {
			env.Close()
			return nil, err
		}
		env.Journal = journal
		env.Registrar.Add(journal)
	}
	if c.Capture != "" {
		rec, err := stream.Create(c.Capture)
		if err != nil {
			env.Close()
			return nil, fmt.Errorf("create capture error: %w", err)
		}
		env.Recorder = rec
		env.Registrar.Add(&comm.EventWriter{Writer: rec})
	}
	if c.FeedAddr != "" {
		env.Feed = websocket.NewFeed()
		env.Registrar.Add(env.Feed)
	}
	if len(env.Registrar.Registrars) == 0 {
		return nil, fmt.Errorf("at least one registrar is required")
	}
	return env, nil
}

// MustNewEnv creates Env and fails on error.
func (c *Config) MustNewEnv() *Env {
	env, err := c.NewEnv()
	if err != nil {
		log.Fatalln(err)
	}
	return env
}

// AddToLoop adds controllers/runners to loop.
func (e *Env) AddToLoop(loop *fx.Loop) {
	loop.Add(e.Registrar)
	loop.Add(&comm.UnsupportedCommands{})
	if e.Feed != nil {
		loop.AddRunnable(fx.NamedRun("feed", fx.RunFunc(func(ctx context.Context) error {
			return e.Feed.ListenAndServe(ctx, e.Config.FeedAddr)
		})))
	}
}

// Close releases the journal and the capture file.
func (e *Env) Close() error {
	var errs fx.AggregatedError
	if e.Journal != nil {
		errs.Add(e.Journal.Close())
	}
	if e.Recorder != nil {
		errs.Add(e.Recorder.Close())
	}
	if err := errs.Aggregate(); err != nil {
		glog.Errorf("close env: %v", err)
		return err
	}
	return nil
}
