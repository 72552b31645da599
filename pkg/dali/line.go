package dali

// OutputPin is a digital output as wired on the board.
type OutputPin interface {
	Set(high bool)
}

// InputPin is a digital input as wired on the board.
type InputPin interface {
	Get() bool
}

// EdgeInterrupt arms and disarms the edge interrupt bound to the input pin.
// The interrupt handler itself is bound by the platform and must call
// Slave.OnEdge.
type EdgeInterrupt interface {
	Enable()
	Disable()
}

// OutputPinFunc is the func form of OutputPin.
type OutputPinFunc func(high bool)

// Set implements OutputPin.
func (f OutputPinFunc) Set(high bool) { f(high) }

// InputPinFunc is the func form of InputPin.
type InputPinFunc func() bool

// Get implements InputPin.
func (f InputPinFunc) Get() bool { return f() }

// Line is the polarity normalized view of the bus pins. All levels seen and
// written through a Line are logical: true is the bus mark (idle, high)
// level, false the space (active, low) level.
//
// Inversion compensates for the interface circuit: a current amplifier in
// front of the input pin usually negates the bus level, and an output
// transistor shorting the bus does the same on the way out.
type Line struct {
	out       OutputPin
	in        InputPin
	irq       EdgeInterrupt
	invertOut bool
	invertIn  bool
	level     bool
}

// NewLine creates a Line. irq may be nil for users polling the input.
func NewLine(out OutputPin, invertOut bool, in InputPin, invertIn bool, irq EdgeInterrupt) *Line {
	return &Line{
		out:       out,
		in:        in,
		irq:       irq,
		invertOut: invertOut,
		invertIn:  invertIn,
		level:     true,
	}
}

// ReadInput returns the logical level of the input pin.
func (l *Line) ReadInput() bool {
	return l.in.Get() != l.invertIn
}

// WriteOutput drives the output pin to a logical level.
func (l *Line) WriteOutput(level bool) {
	l.level = level
	l.out.Set(level != l.invertOut)
}

// Output returns the last logical level written.
func (l *Line) Output() bool {
	return l.level
}

// EnableInputInterrupt arms the input edge interrupt.
func (l *Line) EnableInputInterrupt() {
	if l.irq != nil {
		l.irq.Enable()
	}
}

// DisableInputInterrupt disarms the input edge interrupt.
func (l *Line) DisableInputInterrupt() {
	if l.irq != nil {
		l.irq.Disable()
	}
}
