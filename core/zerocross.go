package core

// ZeroCrossDetector watches the floating phase for the back-EMF zero
// crossing and schedules the commutation 30 electrical degrees later.
// It is ticked once per PWM period.
type ZeroCrossDetector struct {
	cmp ComparatorDriver

	// PWM timer counts per period timer tick, and counts per PWM period
	tickScale uint32
	pwmTop    uint32

	// direction of the last SelectInput; the back-EMF edges flip with it
	direction Direction

	pending bool
	count   int
}

// NewZeroCrossDetector creates a detector reading cmp
func NewZeroCrossDetector(cmp ComparatorDriver, tickScale, pwmTop uint32) *ZeroCrossDetector {
	return &ZeroCrossDetector{
		cmp:       cmp,
		tickScale: tickScale,
		pwmTop:    pwmTop,
	}
}

// Reset clears the pending flag and the cycle counter
func (z *ZeroCrossDetector) Reset() {
	z.pending = false
	z.count = 0
}

// Pending reports whether a zero crossing was seen and the commutation is
// still outstanding
func (z *ZeroCrossDetector) Pending() bool {
	return z.pending
}

// CommutationPoint is the number of PWM periods spanning 30 electrical
// degrees at the given electrical period
func (z *ZeroCrossDetector) CommutationPoint(period uint32) int {
	return int((uint64(period) * uint64(z.tickScale)) / (12 * uint64(z.pwmTop)))
}

// Tick runs one PWM period of detection for the active step. It returns
// true when the commutation point has been reached; the caller must then
// commutate. A zero period means speed is unknown and no crossing is armed.
func (z *ZeroCrossDetector) Tick(step Step, period uint32) bool {
	if z.pending {
		point := z.CommutationPoint(period)
		if point < 1 {
			point = 1
		}
		z.count++
		if z.count >= point {
			z.pending = false
			z.count = 0
			return true
		}
		return false
	}

	// The first period after a commutation is skipped, the phase voltage
	// rings around the switching edge
	if z.count >= 1 && period > 0 {
		if z.cmp.Output() != z.FallingEdge(step) {
			z.pending = true
			z.count = 0
		}
	}
	z.count++
	return false
}

// FallingEdge reports whether the floating phase falls through neutral on
// step. Clockwise that is every even step; reversing the rotor reverses the
// back-EMF, so counter-clockwise it is every odd step.
func (z *ZeroCrossDetector) FallingEdge(step Step) bool {
	return step.Even() == (z.direction == Clockwise)
}

// SelectInput routes the comparator to the phase left floating by step
// and records the direction for the edge polarity
func (z *ZeroCrossDetector) SelectInput(step Step, d Direction) Phase {
	z.direction = d
	p := step.Pattern().Floating()
	z.cmp.SelectInput(p)
	return p
}
