package sim

import (
	"github.com/robotalks/dali.go/pkg/device"
	"github.com/robotalks/dali.go/pkg/device/env"
)

// Config configures a Simulation.
type Config struct {
	// TickFrequency of the simulated devices, DefaultTickFrequency if zero.
	TickFrequency uint32
	// Pace runs the clock in real time, otherwise as fast as possible.
	Pace                bool
	ReportFramingErrors bool
	Slaves              []env.SlaveConfig
	// Registrar receives frames, answers, faults and transactions.
	Registrar device.Registrar
}

// ConfigFrom derives the simulation config of an env.
func ConfigFrom(e *env.Env) Config {
	return Config{
		TickFrequency:       e.Config.TickFrequency,
		Pace:                e.Config.Pace,
		ReportFramingErrors: e.Config.ReportFramingErrors,
		Slaves:              e.Config.Slaves,
		Registrar:           e.Registrar,
	}
}
