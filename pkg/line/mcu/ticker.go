//go:build tinygo

package mcu

import (
	"time"

	"github.com/robotalks/dali.go/pkg/clock"
)

// RunTicker calls t at frequency ticks per second forever. Deadlines are
// absolute so sleep overshoot doesn't accumulate.
func RunTicker(frequency uint32, t clock.Ticker) {
	period := time.Second / time.Duration(frequency)
	next := time.Now()
	for {
		next = next.Add(period)
		if d := time.Until(next); d > 0 {
			time.Sleep(d)
		}
		t.OnTick()
	}
}
