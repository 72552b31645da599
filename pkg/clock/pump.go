// Package clock converts wall clock time into tick invocations.
package clock

import (
	"context"
	"time"
)

// Ticker is invoked once per tick.
type Ticker interface {
	OnTick()
}

// TickerFunc is the func form of Ticker.
type TickerFunc func()

// OnTick implements Ticker.
func (f TickerFunc) OnTick() {
	f()
}

// DefaultInterval is how often a paced Pump wakes up.
const DefaultInterval = time.Millisecond

// Pump calls a Ticker at Frequency ticks per second of wall clock time.
// Operating systems can't wake up at 9.6 kHz, so a paced Pump wakes up
// every Interval and catches up with the ticks due since its start. A
// free-running Pump (Frequency 0) ticks as fast as possible.
type Pump struct {
	Frequency uint32
	Interval  time.Duration
	Ticker    Ticker
	// MaxBurst limits the ticks issued per wake up; lagging further is
	// dropped rather than replayed. Zero means one second worth of ticks.
	MaxBurst uint64

	now   func() time.Time
	ticks uint64
}

// NewPump creates a paced Pump.
func NewPump(frequency uint32, ticker Ticker) *Pump {
	return &Pump{Frequency: frequency, Interval: DefaultInterval, Ticker: ticker}
}

// Ticks returns the number of ticks issued. Only valid after Run returns or
// from the Ticker.
func (p *Pump) Ticks() uint64 {
	return p.ticks
}

// Due returns the number of ticks due after elapsed time.
func Due(frequency uint32, elapsed time.Duration) uint64 {
	if elapsed <= 0 {
		return 0
	}
	sec := uint64(elapsed / time.Second)
	frac := uint64(elapsed % time.Second)
	return sec*uint64(frequency) + frac*uint64(frequency)/uint64(time.Second)
}

// Run implements framework.Runnable.
func (p *Pump) Run(ctx context.Context) error {
	if p.Frequency == 0 {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			for i := 0; i < 1024; i++ {
				p.tick()
			}
		}
	}

	now := p.now
	if now == nil {
		now = time.Now
	}
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	burst := p.MaxBurst
	if burst == 0 {
		burst = uint64(p.Frequency)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	start := now()
	var dropped uint64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		due := Due(p.Frequency, now().Sub(start)) - dropped
		if due-p.ticks > burst {
			dropped += due - p.ticks - burst
			due = p.ticks + burst
		}
		for p.ticks < due {
			p.tick()
		}
	}
}

func (p *Pump) tick() {
	p.ticks++
	p.Ticker.OnTick()
}
