package dali

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// testBus plays both the board wiring and the master: it drives the raw
// input pin one sample per tick and fires the edge interrupt on the raw edge
// that corresponds to a logical falling edge.
type testBus struct {
	t      *testing.T
	slave  *Slave
	invert bool
	in     bool
	out    bool
	armed  bool
	frames [][2]byte
	faults []FaultCode
	ms     int
	levels []bool
}

func newTestBus(t *testing.T, invert, reportFraming bool) *testBus {
	b := &testBus{t: t, invert: invert, in: !invert}
	s, err := New(Config{
		Output:       OutputPinFunc(func(high bool) { b.out = high }),
		InvertOutput: invert,
		Input:        InputPinFunc(func() bool { return b.in }),
		InvertInput:  invert,
		Interrupt:    b,
		Frames: FrameHandlerFunc(func(address, data byte) {
			b.frames = append(b.frames, [2]byte{address, data})
		}),
		Faults: FaultHandlerFunc(func(code FaultCode) {
			b.faults = append(b.faults, code)
		}),
		Millisecond:         func() { b.ms++ },
		ReportFramingErrors: reportFraming,
	})
	require.NoError(t, err)
	b.slave = s
	return b
}

func (b *testBus) Enable()  { b.armed = true }
func (b *testBus) Disable() { b.armed = false }

// output returns the logical output level.
func (b *testBus) output() bool {
	return b.out != b.invert
}

// tick samples one logical input level, then records the logical output.
func (b *testBus) tick(level bool) {
	raw := level != b.invert
	fall := b.in != raw && !level
	b.in = raw
	if fall && b.armed {
		b.slave.OnEdge()
	}
	b.slave.OnTick()
	b.levels = append(b.levels, b.output())
}

func (b *testBus) run(levels []bool) *testBus {
	for _, l := range levels {
		b.tick(l)
	}
	return b
}

func (b *testBus) idle(n int) *testBus {
	for i := 0; i < n; i++ {
		b.tick(true)
	}
	return b
}

func (b *testBus) low(n int) *testBus {
	for i := 0; i < n; i++ {
		b.tick(false)
	}
	return b
}

type waveform struct {
	levels []bool
}

func (w *waveform) half(level bool) *waveform {
	for i := 0; i < TicksPerHalfBit; i++ {
		w.levels = append(w.levels, level)
	}
	return w
}

func (w *waveform) bit(v bool) *waveform {
	return w.half(!v).half(v)
}

func (w *waveform) bits(v uint32, n int) *waveform {
	for i := n - 1; i >= 0; i-- {
		w.bit((v>>uint(i))&1 == 1)
	}
	return w
}

func (w *waveform) start() *waveform {
	return w.bit(true)
}

func (w *waveform) stop() *waveform {
	return w.half(true).half(true).half(true).half(true)
}

func forwardFrame(address, data byte) []bool {
	var w waveform
	return w.start().bits(uint32(address)<<8|uint32(data), 16).stop().levels
}

// decodeAnswer reads the backward frame recorded from the first tick of a
// send transaction.
func decodeAnswer(t *testing.T, levels []bool) byte {
	require.True(t, len(levels) > SendTicks)
	var v byte
	for k := 0; k < 8; k++ {
		first := sendFirstBit + k*TicksPerBit
		for i := 0; i < TicksPerHalfBit; i++ {
			require.Equalf(t, !levels[first+TicksPerHalfBit], levels[first+i], "bit %d first half", k)
			require.Equalf(t, levels[first+TicksPerHalfBit], levels[first+TicksPerHalfBit+i], "bit %d second half", k)
		}
		v <<= 1
		if levels[first+TicksPerHalfBit] {
			v |= 1
		}
	}
	return v
}

func TestNewDrivesMark(t *testing.T) {
	for _, invert := range []bool{false, true} {
		b := newTestBus(t, invert, false)
		require.Equal(t, !invert, b.out)
		require.True(t, b.armed)
		require.Equal(t, Idle, b.slave.Mode())
	}
}

func TestNewInvalidFrequency(t *testing.T) {
	_, err := New(Config{TickFrequency: 9601})
	require.Error(t, err)
}

func TestReceiveFrames(t *testing.T) {
	testCases := []struct {
		address byte
		data    byte
	}{
		{0x00, 0x00},
		{0xff, 0xff},
		{0xfe, 0x01},
		{0x01, 0xfe},
		{0xa5, 0x5a},
		{0xff, 0x00},
		{0x00, 0xff},
		{0x81, 0x7e},
	}
	for _, invert := range []bool{false, true} {
		for _, tc := range testCases {
			b := newTestBus(t, invert, true)
			b.idle(3).run(forwardFrame(tc.address, tc.data)).idle(3)
			require.Equalf(t, [][2]byte{{tc.address, tc.data}}, b.frames, "%02x %02x invert=%v", tc.address, tc.data, invert)
			require.Empty(t, b.faults)
			require.Equal(t, Idle, b.slave.Mode())
			require.True(t, b.armed)
		}
	}
}

func TestReceiveAllAddresses(t *testing.T) {
	b := newTestBus(t, false, true)
	for a := 0; a < 256; a++ {
		for _, d := range []byte{0x00, 0x55, 0xaa, 0xff, byte(a), ^byte(a)} {
			b.idle(2).run(forwardFrame(byte(a), d))
			require.Equal(t, [2]byte{byte(a), d}, b.frames[len(b.frames)-1])
		}
	}
	require.Len(t, b.frames, 256*6)
	require.Empty(t, b.faults)
	require.Equal(t, uint32(256*6), b.slave.Stats().Frames)
}

func TestFrameCompletesInSecondStopBit(t *testing.T) {
	b := newTestBus(t, false, true)
	frame := forwardFrame(0x12, 0x34)
	// last mid-bit edge is at 4 + 16*8; stop bit 1 passes 8 ticks later and
	// stop bit 2 completes 10 ticks after that.
	done := TicksPerHalfBit + 16*TicksPerBit + TicksPerBit + LatestEdge
	for i, l := range frame {
		b.tick(l)
		if i < done {
			require.Emptyf(t, b.frames, "tick %d", i)
			require.Equal(t, Receiving, b.slave.Mode())
		} else {
			require.Len(t, b.frames, 1)
			require.Equal(t, Idle, b.slave.Mode())
		}
	}
}

func TestReceiveErrors(t *testing.T) {
	truncated := func(v uint32, n int) []bool {
		var w waveform
		return w.start().bits(v, n).levels
	}
	stopLow := func(last bool) []bool {
		var w waveform
		w.start().bits(0x1234, 15).bit(last)
		return w.half(false).half(false).levels
	}
	stopEdge := func() []bool {
		var w waveform
		w.start().bits(0x1235, 16)
		// a transition in the middle of stop bit 1
		return w.half(true).half(false).levels
	}
	testCases := []struct {
		name  string
		seq   []bool
		fault FaultCode
	}{
		{"glitch", []bool{false}, FaultStartBit},
		{"short start bit", []bool{false, false}, FaultMissingEdge},
		{"start bit stuck low", []bool{false, false, false, false, false, false, false, false}, FaultStartBit},
		{"truncated after 5 bits", truncated(0x2c, 5), FaultMissingEdge},
		{"truncated after 6 bits", truncated(0x2d, 6), FaultMissingEdge},
		{"truncated after 12 bits", truncated(0x2c, 12), FaultMissingEdge},
		{"stop bit low after 1", stopLow(true), FaultStopBitLevel},
		{"stop bit low after 0", stopLow(false), FaultStopBitLevel},
		{"stop bit edge", stopEdge(), FaultStopBitEdge},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			b := newTestBus(t, false, true)
			b.idle(1).run(tc.seq).idle(2 * TicksPerBit)
			require.Empty(t, b.frames)
			require.Equal(t, []FaultCode{tc.fault}, b.faults)
			require.Equal(t, uint32(1), b.slave.Stats().FramingErrors)
			require.Equal(t, Idle, b.slave.Mode())
			require.True(t, b.armed)

			// next frame is received normally
			b.run(forwardFrame(0x01, 0x02))
			require.Equal(t, [][2]byte{{0x01, 0x02}}, b.frames)
		})
	}
}

// stretch lengthens (by > 0) or shortens (by < 0) the run of samples
// ending at index at, shifting every later edge by the same amount.
func stretch(levels []bool, at, by int) []bool {
	out := append([]bool(nil), levels[:at]...)
	if by < 0 {
		out = out[:at+by]
	}
	for i := 0; i < by; i++ {
		out = append(out, levels[at-1])
	}
	return append(out, levels[at:]...)
}

func TestReceiveEdgeWindow(t *testing.T) {
	// address 0x00 starts with a zero bit, so the run before its mid-bit
	// edge spans the second half of the start bit and the first half of
	// bit 7 with no boundary transition in between.
	firstEdge := TicksPerBit + TicksPerHalfBit
	testCases := []struct {
		edgeAt int
		fault  FaultCode
	}{
		{EarliestEdge, FaultMissingEdge},
		{EarliestEdge + 1, 0},
		{TicksPerBit, 0},
		{TicksPerBit + 1, 0},
		{LatestEdge, 0},
		{LatestEdge + 1, FaultMissingEdge},
	}
	for _, tc := range testCases {
		b := newTestBus(t, false, true)
		b.idle(3).run(stretch(forwardFrame(0x00, 0xfe), firstEdge, tc.edgeAt-TicksPerBit)).idle(2 * TicksPerBit)
		if tc.fault == 0 {
			require.Equalf(t, [][2]byte{{0x00, 0xfe}}, b.frames, "edge at %d", tc.edgeAt)
			require.Emptyf(t, b.faults, "edge at %d", tc.edgeAt)
		} else {
			require.Emptyf(t, b.frames, "edge at %d", tc.edgeAt)
			require.NotEmptyf(t, b.faults, "edge at %d", tc.edgeAt)
			require.Equalf(t, tc.fault, b.faults[0], "edge at %d", tc.edgeAt)
		}
		require.Equal(t, Idle, b.slave.Mode())
		require.True(t, b.armed)
	}
}

func TestReceiveStartEdgeWindow(t *testing.T) {
	// the falling edge counts as the first low sample, so a low run of n
	// samples puts the start bit's mid-bit edge at tick n+1.
	testCases := []struct {
		lowRun int
		fault  FaultCode
	}{
		{GlitchTicks - 1, FaultStartBit},
		{GlitchTicks, 0},
		{TicksPerHalfBit, 0},
		{TicksPerBit - 1, 0},
		{TicksPerBit, FaultStartBit},
	}
	for _, tc := range testCases {
		b := newTestBus(t, false, true)
		b.idle(3).run(stretch(forwardFrame(0x00, 0xfe), TicksPerHalfBit, tc.lowRun-TicksPerHalfBit)).idle(2 * TicksPerBit)
		if tc.fault == 0 {
			require.Equalf(t, [][2]byte{{0x00, 0xfe}}, b.frames, "low run %d", tc.lowRun)
			require.Emptyf(t, b.faults, "low run %d", tc.lowRun)
		} else {
			require.Emptyf(t, b.frames, "low run %d", tc.lowRun)
			require.NotEmptyf(t, b.faults, "low run %d", tc.lowRun)
			require.Equalf(t, tc.fault, b.faults[0], "low run %d", tc.lowRun)
		}
		require.Equal(t, Idle, b.slave.Mode())
		require.True(t, b.armed)
	}
}

func TestFramingErrorsSilent(t *testing.T) {
	b := newTestBus(t, false, false)
	b.idle(1).low(1).idle(TicksPerBit)
	require.Empty(t, b.faults)
	require.Equal(t, uint32(1), b.slave.Stats().FramingErrors)
}

func TestSendWaveform(t *testing.T) {
	b := newTestBus(t, false, true)
	require.NoError(t, b.slave.RequestSend(0xa5))
	require.False(t, b.armed)
	require.Equal(t, Idle, b.slave.Mode())
	require.True(t, b.slave.Pending())

	b.idle(1)
	require.Equal(t, Sending, b.slave.Mode())
	require.False(t, b.slave.Pending())
	b.idle(SendTicks)
	require.Equal(t, Idle, b.slave.Mode())
	require.True(t, b.armed)

	levels := b.levels
	for i := 0; i < sendStartBit; i++ {
		require.Truef(t, levels[i], "settle %d", i)
	}
	for i := sendStartBit; i < sendStartEdge; i++ {
		require.False(t, levels[i])
	}
	for i := sendStartEdge; i < sendFirstBit; i++ {
		require.True(t, levels[i])
	}
	for i := sendStopBits; i <= SendTicks; i++ {
		require.Truef(t, levels[i], "stop %d", i)
	}
	// second half levels carry the bit values: high for bits 0, 2, 5, 7
	expect := []bool{true, false, true, false, false, true, false, true}
	for k, v := range expect {
		require.Equalf(t, v, levels[sendFirstBit+k*TicksPerBit+TicksPerHalfBit], "bit %d", k)
	}
	require.Equal(t, byte(0xa5), decodeAnswer(t, levels))
	require.Equal(t, uint32(1), b.slave.Stats().Answers)
}

func TestSendAllAnswers(t *testing.T) {
	for _, invert := range []bool{false, true} {
		b := newTestBus(t, invert, true)
		for v := 0; v < 256; v++ {
			b.levels = nil
			require.NoError(t, b.slave.RequestSend(byte(v)))
			b.idle(SendTicks + 1)
			require.Equal(t, byte(v), decodeAnswer(t, b.levels))
		}
		require.Equal(t, uint32(256), b.slave.Stats().Answers)
	}
}

func TestAnswerFromFrameHandler(t *testing.T) {
	b := newTestBus(t, false, true)
	start := -1
	b.slave.frames = FrameHandlerFunc(func(address, data byte) {
		b.frames = append(b.frames, [2]byte{address, data})
		require.NoError(t, b.slave.RequestSend(address^data))
		// the answer starts on the tick after this one
		start = len(b.levels) + 1
	})
	b.run(forwardFrame(0x3c, 0x0f))
	require.Len(t, b.frames, 1)
	b.idle(SendTicks + 1)
	require.Equal(t, byte(0x33), decodeAnswer(t, b.levels[start:]))
}

func TestRequestSendBusy(t *testing.T) {
	b := newTestBus(t, false, true)

	require.NoError(t, b.slave.RequestSend(1))
	require.Equal(t, ErrBusy, b.slave.RequestSend(2))
	b.idle(1)
	require.Equal(t, ErrBusy, b.slave.RequestSend(3))
	b.idle(SendTicks)
	require.NoError(t, b.slave.RequestSend(4))
	b.idle(SendTicks + 1)

	b.low(1)
	require.Equal(t, Receiving, b.slave.Mode())
	require.Equal(t, ErrBusy, b.slave.RequestSend(5))
}

func TestEdgeNeverStartsSending(t *testing.T) {
	b := newTestBus(t, false, true)
	b.slave.OnEdge()
	require.Equal(t, Receiving, b.slave.Mode())

	b = newTestBus(t, false, true)
	require.NoError(t, b.slave.RequestSend(0x42))
	b.slave.OnEdge()
	require.Equal(t, Idle, b.slave.Mode())
	require.True(t, b.slave.Pending())
	b.slave.OnTick()
	require.Equal(t, Sending, b.slave.Mode())
	b.slave.OnEdge()
	require.Equal(t, Sending, b.slave.Mode())
}

func TestBusFailure(t *testing.T) {
	b := newTestBus(t, false, false)
	limit := int(b.slave.Timing().FailureTicks)
	require.Equal(t, 4800, limit)

	b.low(limit)
	require.Empty(t, b.faults)
	require.Equal(t, uint32(limit), b.slave.FailureCount())
	b.low(1)
	require.Equal(t, []FaultCode{FaultBusFailure}, b.faults)
	require.Equal(t, uint32(0), b.slave.FailureCount())

	b.low(limit)
	require.Len(t, b.faults, 1)
	b.low(1)
	require.Len(t, b.faults, 2)

	b.low(100).idle(1)
	require.Equal(t, uint32(0), b.slave.FailureCount())
	b.low(limit).idle(1).low(limit)
	require.Len(t, b.faults, 2)
	require.Equal(t, uint32(2), b.slave.Stats().BusFailures)
}

func TestMillisecondCallback(t *testing.T) {
	b := newTestBus(t, false, false)
	b.idle(96)
	require.Equal(t, 10, b.ms)
	require.Equal(t, uint32(96), b.slave.Ticks())
}

func TestReset(t *testing.T) {
	b := newTestBus(t, false, true)
	b.low(3)
	require.Equal(t, Receiving, b.slave.Mode())
	b.slave.Reset()
	require.Equal(t, Idle, b.slave.Mode())
	require.True(t, b.armed)
	require.Equal(t, uint32(0), b.slave.FailureCount())
	require.NoError(t, b.slave.RequestSend(0))
}

func TestModeString(t *testing.T) {
	require.Equal(t, "idle", Idle.String())
	require.Equal(t, "receiving", Receiving.String())
	require.Equal(t, "sending", Sending.String())
	require.Equal(t, "error", Error.String())
	require.Equal(t, "unknown", Mode(9).String())
}
