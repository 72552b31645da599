package clock

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDue(t *testing.T) {
	testCases := []struct {
		frequency uint32
		elapsed   time.Duration
		expect    uint64
	}{
		{9600, 0, 0},
		{9600, -time.Second, 0},
		{9600, time.Millisecond, 9},
		{9600, 10 * time.Millisecond, 96},
		{9600, time.Second, 9600},
		{9600, 90 * time.Second, 864000},
		{9600, 1500 * time.Millisecond, 14400},
	}
	for _, tc := range testCases {
		require.Equalf(t, tc.expect, Due(tc.frequency, tc.elapsed), "%v", tc.elapsed)
	}
}

func TestPumpPaced(t *testing.T) {
	var n atomic.Uint64
	p := NewPump(9600, TickerFunc(func() { n.Add(1) }))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.Equal(t, context.DeadlineExceeded, p.Run(ctx))
	require.Equal(t, n.Load(), p.Ticks())
	require.True(t, p.Ticks() > 0)
	require.True(t, p.Ticks() <= Due(9600, 60*time.Millisecond))
}

func TestPumpBurstLimit(t *testing.T) {
	var elapsed time.Duration
	var n uint64
	var cancel context.CancelFunc
	p := &Pump{
		Frequency: 1000,
		Interval:  time.Millisecond,
		MaxBurst:  10,
	}
	p.Ticker = TickerFunc(func() {
		n++
		if n == 25 {
			cancel()
		}
	})
	// every wake up sees one second passed: only MaxBurst ticks are issued
	p.now = func() time.Time {
		elapsed += time.Second
		return time.Unix(0, 0).Add(elapsed)
	}
	var ctx context.Context
	ctx, cancel = context.WithCancel(context.Background())
	defer cancel()
	require.Equal(t, context.Canceled, p.Run(ctx))
	require.Equal(t, uint64(30), p.Ticks())
}

func TestPumpFreeRunning(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var n uint64
	p := &Pump{Ticker: TickerFunc(func() {
		n++
		if n == 5000 {
			cancel()
		}
	})}
	require.Equal(t, context.Canceled, p.Run(ctx))
	require.True(t, p.Ticks() >= 5000)
}
