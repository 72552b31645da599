package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWiredAnd(t *testing.T) {
	b := New()
	a := b.Attach("a", false)
	c := b.Attach("c", true)
	require.True(t, a.Output())
	require.False(t, c.Output())
	b.Step()
	require.True(t, b.Level())
	require.True(t, a.Get())
	require.False(t, c.Get())

	a.Set(false)
	b.Step()
	require.False(t, b.Level())
	require.True(t, c.Get())

	c.Set(true)
	a.Set(true)
	b.Step()
	require.False(t, b.Level())

	c.Set(false)
	b.Step()
	require.True(t, b.Level())
	require.Equal(t, uint64(4), b.Steps())
	require.Equal(t, uint64(2), b.Edges())
}

func TestShort(t *testing.T) {
	b := New()
	a := b.Attach("a", false)
	b.Short(true)
	b.Step()
	require.False(t, a.Get())
	b.Short(false)
	b.Step()
	require.True(t, a.Get())
}

func TestLockStep(t *testing.T) {
	b := New()
	a := b.Attach("a", false)
	c := b.Attach("c", false)
	var seen []bool
	b.AddDevices(
		DeviceFunc(func() { a.Set(!a.Output()) }),
		DeviceFunc(func() { seen = append(seen, c.Get()) }),
	)
	b.Run(4)
	// the reader sees the level of the previous step, not the value
	// written in the same step.
	require.Equal(t, []bool{true, false, true, false}, seen)
}

func TestEdgeInterrupts(t *testing.T) {
	testCases := []struct {
		name      string
		edge      Edge
		inverting bool
		expect    int
	}{
		{"falling", EdgeFalling, false, 2},
		{"rising", EdgeRising, false, 2},
		{"both", EdgeBoth, false, 4},
		{"none", EdgeNone, false, 0},
		{"inverted rising", EdgeRising, true, 2},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			b := New()
			drv := b.Attach("drv", false)
			n := 0
			var levels []bool
			ep := b.Attach("ep", tc.inverting).Bind(tc.edge, func() {
				n++
				levels = append(levels, b.Level())
			})
			ep.Enable()
			for i := 0; i < 4; i++ {
				drv.Set(i%2 == 1)
				b.Step()
			}
			require.Equal(t, tc.expect, n)
			if tc.edge == EdgeRising && tc.inverting {
				require.Equal(t, []bool{false, false}, levels)
			}
		})
	}
}

func TestDisarmedInterrupt(t *testing.T) {
	b := New()
	drv := b.Attach("drv", false)
	n := 0
	ep := b.Attach("ep", false).Bind(EdgeFalling, func() { n++ })
	drv.Set(false)
	b.Step()
	require.Zero(t, n)
	ep.Enable()
	require.True(t, ep.Armed())
	drv.Set(true)
	b.Step()
	drv.Set(false)
	b.Step()
	require.Equal(t, 1, n)
	ep.Disable()
	drv.Set(true)
	b.Step()
	drv.Set(false)
	b.Step()
	require.Equal(t, 1, n)
}

func TestObservers(t *testing.T) {
	b := New()
	drv := b.Attach("drv", false)
	var changes []uint64
	b.AddObservers(ObserverFunc(func(step uint64, level bool) {
		changes = append(changes, step)
	}))
	b.Step()
	drv.Set(false)
	b.Run(3)
	drv.Set(true)
	b.Step()
	require.Equal(t, []uint64{2, 5}, changes)
}
