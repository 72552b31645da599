package main

import (
	"flag"

	"github.com/golang/glog"

	"github.com/robotalks/dali.go/pkg/device"
	"github.com/robotalks/dali.go/pkg/device/env"
	fx "github.com/robotalks/dali.go/pkg/framework"
	"github.com/robotalks/dali.go/pkg/sim"
	"github.com/robotalks/dali.go/pkg/sim/trace"
)

var traceOut bool

func init() {
	env.SetDeviceType(device.TypeSim, device.Meta{Description: "Simulated DALI bus"})
	env.SetupFlags()
	trace.SetupFlags()
	flag.BoolVar(&traceOut, "trace", traceOut, "Print bus events as JSON lines")
}

func main() {
	flag.Parse()

	conf, err := env.Resolve()
	if err != nil {
		glog.Exit(err)
	}
	if len(conf.Slaves) == 0 {
		conf.Slaves = []env.SlaveConfig{{Name: "lamp"}}
	}
	e := conf.MustNewEnv()
	defer e.Close()

	s, err := sim.New(sim.ConfigFrom(e))
	if err != nil {
		glog.Exit(err)
	}
	loop := fx.NewLoop().Add(e, s)
	// bus events pile up while the broker is unreachable
	loop.MaxPending = 1024
	if traceOut {
		tracer := trace.NewConfig().NewTracer()
		tracer.Attach(s.Bus)
		loop.Add(tracer)
	}
	glog.Infof("simulating %d slaves at %d Hz", len(s.Slaves), conf.TickFrequency)
	if err := fx.NewRunner().HandleSignals().Go(loop).Wait(); err != nil {
		glog.Exit(err)
	}
}
