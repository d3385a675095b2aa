package core

// Six-step PWM waveform generation.
// One phase is PWM-modulated on its high side, one phase has its low side
// switched fully on, and the third phase floats so its back-EMF can be sensed.

// NumSteps is the number of commutation steps in one electrical revolution
const NumSteps = 6

// Step is a commutation state in [0, NumSteps)
type Step uint8

// Next returns the step that follows s when spinning in direction d
func (s Step) Next(d Direction) Step {
	if d == CounterClockwise {
		return (s + NumSteps - 1) % NumSteps
	}
	return (s + 1) % NumSteps
}

// Prev returns the step before s in clockwise order
func (s Step) Prev() Step {
	return (s + NumSteps - 1) % NumSteps
}

// Even reports whether the step index is even. The back-EMF of the floating
// phase falls through neutral on even steps and rises on odd steps.
func (s Step) Even() bool {
	return s%2 == 0
}

// PhasePattern is one entry of the commutation table
type PhasePattern struct {
	High Phase // PWM-modulated high side
	Low  Phase // low side held on
}

// DriveMask is the high-side channel enable mask
func (p PhasePattern) DriveMask() uint8 {
	return p.High.Mask()
}

// SinkMask is the low-side pin mask
func (p PhasePattern) SinkMask() uint8 {
	return p.Low.Mask()
}

// Floating returns the undriven phase
func (p PhasePattern) Floating() Phase {
	return PhaseC + PhaseB + PhaseA - p.High - p.Low
}

var commutationTable = [NumSteps]PhasePattern{
	{High: PhaseA, Low: PhaseB}, // C floats
	{High: PhaseA, Low: PhaseC}, // B floats
	{High: PhaseB, Low: PhaseC}, // A floats
	{High: PhaseB, Low: PhaseA}, // C floats
	{High: PhaseC, Low: PhaseA}, // B floats
	{High: PhaseC, Low: PhaseB}, // A floats
}

// Pattern returns the drive pattern of step s
func (s Step) Pattern() PhasePattern {
	return commutationTable[s%NumSteps]
}

// CommutationTable returns a copy of the six drive patterns
func CommutationTable() [NumSteps]PhasePattern {
	return commutationTable
}

// Waveform drives the commutation table and the shared duty register onto
// the inverter
type Waveform struct {
	drv   InverterDriver
	sense CurrentSensor
	top   uint32
	state Step
	duty  uint32
}

// NewWaveform creates a waveform generator with a period of top counts.
// sense may be nil.
func NewWaveform(drv InverterDriver, sense CurrentSensor, top uint32) *Waveform {
	return &Waveform{
		drv:   drv,
		sense: sense,
		top:   top,
	}
}

// Init configures the inverter, selects step 0 and loads the duty cycle
func (w *Waveform) Init(dt DeadTime, duty uint32) error {
	if err := w.drv.Configure(w.top, dt); err != nil {
		return err
	}
	w.SetDutyCycle(duty)
	w.SetState(0)
	return nil
}

// SetState routes the drive pattern of step s to the inverter
func (w *Waveform) SetState(s Step) {
	p := s.Pattern()
	w.drv.Route(p.DriveMask(), p.SinkMask())
	w.state = s % NumSteps
}

// Advance moves to the next step in direction d
func (w *Waveform) Advance(d Direction) Step {
	w.SetState(w.state.Next(d))
	return w.state
}

// State returns the active step
func (w *Waveform) State() Step {
	return w.state
}

// SetDutyCycle updates the compare value of all three channels. The caller
// keeps the value within the configured limits.
func (w *Waveform) SetDutyCycle(value uint32) {
	if value > w.top {
		value = w.top
	}
	w.drv.SetCompare(value)
	w.duty = value

	// Sample current in the middle of the on-time
	if w.sense != nil {
		w.sense.SetMeasurementPoint(value / 2)
	}
}

// DutyCycle returns the last compare value written
func (w *Waveform) DutyCycle() uint32 {
	return w.duty
}

// Top returns the PWM period in counts
func (w *Waveform) Top() uint32 {
	return w.top
}

// Stop turns off all transistors
func (w *Waveform) Stop() {
	w.drv.Off()
}
