package main

import (
	"context"
	"flag"

	"github.com/golang/glog"

	"github.com/robotalks/dali.go/pkg/dali"
	"github.com/robotalks/dali.go/pkg/device"
	"github.com/robotalks/dali.go/pkg/device/env"
	fx "github.com/robotalks/dali.go/pkg/framework"
	"github.com/robotalks/dali.go/pkg/gateway"
	"github.com/robotalks/dali.go/pkg/line/periph"
	"github.com/robotalks/dali.go/pkg/link"
	"github.com/robotalks/dali.go/pkg/link/serial"
	"github.com/robotalks/dali.go/pkg/node"
)

func init() {
	env.SetDeviceType(device.TypeSlave, device.Meta{Description: "DALI slave"})
	env.SetupFlags()
}

func main() {
	flag.Parse()

	conf, err := env.Resolve()
	if err != nil {
		glog.Exit(err)
	}
	slave := env.SlaveConfig{Name: "lamp"}
	if len(conf.Slaves) > 0 {
		slave = conf.Slaves[0]
	}
	conf.Slaves = []env.SlaveConfig{slave}
	if conf.Serial.Port != "" {
		conf.Info.Ref.Type = device.TypeGateway
		conf.Info.Meta.Description = "DALI slave firmware on " + conf.Serial.Port
	}
	e := conf.MustNewEnv()
	defer e.Close()

	loop := fx.NewLoop().Add(e)
	// bus events pile up while the broker is unreachable
	loop.MaxPending = 1024
	if conf.Serial.Port != "" {
		err = addGateway(loop, e, slave)
	} else {
		err = addGPIOSlave(loop, e, slave)
	}
	if err != nil {
		glog.Exit(err)
	}
	if err := fx.NewRunner().HandleSignals().Go(loop).Wait(); err != nil {
		glog.Exit(err)
	}
}

// addGateway drives a slave running the firmware over a serial port.
func addGateway(loop *fx.Loop, e *env.Env, slave env.SlaveConfig) error {
	conf := e.Config
	l, port, err := serial.NewLink(serial.Config{Device: conf.Serial.Port, BaudRate: conf.Serial.BaudRate})
	if err != nil {
		return err
	}
	gw := gateway.New(gateway.Config{
		Name:      slave.Name,
		Client:    link.NewClient(l),
		Answers:   slave.AnswerTable(),
		Registrar: e.Registrar,
	})
	loop.Add(gw)
	loop.AddRunnable(fx.NamedRun("serial", fx.RunFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return port.Close()
	})))
	glog.Infof("gateway %s on %s", slave.Name, conf.Serial.Port)
	return nil
}

// addGPIOSlave runs the slave on local GPIO pins.
func addGPIOSlave(loop *fx.Loop, e *env.Env, slave env.SlaveConfig) error {
	conf := e.Config
	line, err := periph.Open(periph.Config{
		Output:      conf.Line.Output,
		Input:       conf.Line.Input,
		InvertInput: conf.Line.InvertInput,
	})
	if err != nil {
		return err
	}
	s, err := node.New(node.Config{
		Name: slave.Name,
		Core: dali.Config{
			Output:              line,
			InvertOutput:        conf.Line.InvertOutput,
			Input:               line,
			InvertInput:         conf.Line.InvertInput,
			Interrupt:           line,
			TickFrequency:       conf.TickFrequency,
			ReportFramingErrors: conf.ReportFramingErrors,
		},
		Answers:   slave.AnswerTable(),
		Registrar: e.Registrar,
	})
	if err != nil {
		return err
	}
	line.Bind(s.OnEdge)
	loop.Add(s)
	loop.AddRunnable(
		fx.NamedRun("edges", fx.RunFunc(line.Watch)),
		fx.NamedRun("ticks", periph.NewClock(conf.TickFrequency, s)),
	)
	glog.Infof("slave %s on %s/%s at %d Hz", slave.Name, conf.Line.Output, conf.Line.Input, conf.TickFrequency)
	return nil
}
