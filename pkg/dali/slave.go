package dali

import "sync/atomic"

// Mode is the operating mode of a Slave.
type Mode uint32

// Modes.
const (
	Idle Mode = iota
	Receiving
	Sending
	// Error is transient: a frame was abandoned and the slave returns to
	// Idle within the same tick.
	Error
)

// String implements fmt.Stringer.
func (m Mode) String() string {
	switch m {
	case Idle:
		return "idle"
	case Receiving:
		return "receiving"
	case Sending:
		return "sending"
	case Error:
		return "error"
	}
	return "unknown"
}

// FrameHandler is called when a forward frame has been received.
type FrameHandler interface {
	HandleFrame(address, data byte)
}

// FrameHandlerFunc is func form of FrameHandler.
type FrameHandlerFunc func(address, data byte)

// HandleFrame implements FrameHandler.
func (f FrameHandlerFunc) HandleFrame(address, data byte) {
	f(address, data)
}

// FaultHandler is called when a fault is detected.
type FaultHandler interface {
	HandleFault(FaultCode)
}

// FaultHandlerFunc is func form of FaultHandler.
type FaultHandlerFunc func(FaultCode)

// HandleFault implements FaultHandler.
func (f FaultHandlerFunc) HandleFault(code FaultCode) {
	f(code)
}

// Config is the write-once configuration of a Slave.
type Config struct {
	Output       OutputPin
	InvertOutput bool
	Input        InputPin
	InvertInput  bool
	Interrupt    EdgeInterrupt

	// TickFrequency is the rate OnTick is called at, DefaultTickFrequency
	// if zero.
	TickFrequency uint32

	Frames FrameHandler
	Faults FaultHandler
	// Millisecond is called from OnTick once per millisecond.
	Millisecond func()

	// ReportFramingErrors also signals framing errors through Faults.
	// Bus failures are always reported.
	ReportFramingErrors bool
}

// Stats are counters of a Slave.
type Stats struct {
	Frames        uint32
	Answers       uint32
	FramingErrors uint32
	BusFailures   uint32
}

// ownership of the frame state, see claim.
const (
	claimFree uint32 = iota
	claimReceive
	claimReserve
	claimSend
)

// Slave is the DALI slave PHY. OnTick and OnEdge must not be called
// concurrently with themselves; RequestSend and the query methods may be
// called from any goroutine.
type Slave struct {
	line          *Line
	timing        Timing
	frames        FrameHandler
	faults        FaultHandler
	millisecond   func()
	reportFraming bool
	ms            MillisecondTicker

	mode atomic.Uint32
	// claim is the single-consumer cell deciding who owns the frame state:
	// an edge (receive) or a send request. Only the owner touches the
	// fields below until it returns the claim.
	claim   atomic.Uint32
	pending atomic.Uint32
	ticks   atomic.Uint32

	address  byte
	data     byte
	answer   byte
	bit      uint8
	count    uint16
	current  bool
	previous bool

	failures atomic.Uint32

	frameCount   atomic.Uint32
	answerCount  atomic.Uint32
	framingCount atomic.Uint32
	busCount     atomic.Uint32
}

// New initializes a Slave: the output is driven to mark level and the input
// edge interrupt is armed. Bind the platform interrupt handler to OnEdge and
// start the tick source afterwards.
func New(conf Config) (*Slave, error) {
	timing, err := NewTiming(conf.TickFrequency)
	if err != nil {
		return nil, err
	}
	s := &Slave{
		line:          NewLine(conf.Output, conf.InvertOutput, conf.Input, conf.InvertInput, conf.Interrupt),
		timing:        timing,
		frames:        conf.Frames,
		faults:        conf.Faults,
		millisecond:   conf.Millisecond,
		reportFraming: conf.ReportFramingErrors,
		ms:            NewMillisecondTicker(timing.Frequency),
	}
	s.Reset()
	return s, nil
}

// Reset abandons any transaction and returns to Idle with the output at mark
// level and the input interrupt armed. It must not race OnTick or OnEdge.
func (s *Slave) Reset() {
	s.line.WriteOutput(true)
	s.count, s.bit = 0, 0
	s.failures.Store(0)
	s.mode.Store(uint32(Idle))
	s.line.EnableInputInterrupt()
	s.claim.Store(claimFree)
}

// Timing returns the timing in use.
func (s *Slave) Timing() Timing {
	return s.timing
}

// Mode returns the current mode.
func (s *Slave) Mode() Mode {
	return Mode(s.mode.Load())
}

// Pending indicates an answer was requested and waits for the next tick.
func (s *Slave) Pending() bool {
	return s.claim.Load() == claimSend
}

// Ticks returns the number of OnTick invocations, wrapping at 2^32.
func (s *Slave) Ticks() uint32 {
	return s.ticks.Load()
}

// FailureCount returns the number of consecutive space level samples.
func (s *Slave) FailureCount() uint32 {
	return s.failures.Load()
}

// Stats returns a snapshot of the counters.
func (s *Slave) Stats() Stats {
	return Stats{
		Frames:        s.frameCount.Load(),
		Answers:       s.answerCount.Load(),
		FramingErrors: s.framingCount.Load(),
		BusFailures:   s.busCount.Load(),
	}
}

// OnEdge handles the input edge interrupt. It starts receiving a forward
// frame when the slave is idle and nothing else claimed the frame state.
func (s *Slave) OnEdge() {
	if s.Mode() != Idle || !s.claim.CompareAndSwap(claimFree, claimReceive) {
		return
	}
	s.line.DisableInputInterrupt()
	s.address, s.data = 0, 0
	s.bit, s.count = rxStartBit, 0
	// the interrupt fires on the falling edge, so the level before it was mark.
	s.previous = true
	s.mode.Store(uint32(Receiving))
}

// RequestSend requests an answer (backward frame). The transmission starts
// on the next tick. It fails with ErrBusy unless the slave is idle and no
// other answer is pending.
func (s *Slave) RequestSend(answer byte) error {
	if s.Mode() != Idle || !s.claim.CompareAndSwap(claimFree, claimReserve) {
		return ErrBusy
	}
	s.line.DisableInputInterrupt()
	s.pending.Store(uint32(answer))
	s.claim.Store(claimSend)
	return nil
}

// OnTick handles one timer period. At most one engine runs per tick; the
// bus watchdog and the millisecond callback run on every tick.
func (s *Slave) OnTick() {
	s.ticks.Add(1)
	switch s.Mode() {
	case Idle:
		if s.claim.Load() == claimSend {
			s.startSend()
			s.sendTick()
		}
	case Receiving:
		s.receiveTick()
	case Sending:
		s.sendTick()
	}
	s.checkBus()
	if s.millisecond != nil && s.ms.Tick() {
		s.millisecond()
	}
}

// idle ends a transaction. The interrupt is re-armed before the claim is
// released so a new request always finds it armed and disarms it again.
func (s *Slave) idle() {
	s.mode.Store(uint32(Idle))
	s.line.EnableInputInterrupt()
	s.claim.Store(claimFree)
}

func (s *Slave) fail(code FaultCode) {
	s.mode.Store(uint32(Error))
	s.framingCount.Add(1)
	s.idle()
	if s.reportFraming && s.faults != nil {
		s.faults.HandleFault(code)
	}
}
