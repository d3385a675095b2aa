package sim

import (
	"gobldc/core"
)

// Inverter records what the controller drives and advances the motor field
// on every change of the drive pattern
type Inverter struct {
	motor *Motor

	top      uint32
	deadTime core.DeadTime
	compare  uint32

	high, low uint8
	step      core.Step
	driven    bool
	// set when the last pattern change went counter-clockwise
	reverse bool
}

func (inv *Inverter) Configure(top uint32, dt core.DeadTime) error {
	inv.top = top
	inv.deadTime = dt
	return nil
}

func (inv *Inverter) Route(highMask, lowMask uint8) {
	if inv.driven && highMask == inv.high && lowMask == inv.low {
		return
	}
	inv.high, inv.low = highMask, lowMask
	next := inv.step
	for i, p := range core.CommutationTable() {
		if p.DriveMask() == highMask && p.SinkMask() == lowMask {
			next = core.Step(i)
		}
	}
	if inv.driven {
		switch next {
		case inv.step.Next(core.Clockwise):
			inv.reverse = false
		case inv.step.Next(core.CounterClockwise):
			inv.reverse = true
		}
	}
	inv.step = next
	if inv.driven {
		inv.motor.Commutate()
	}
	inv.driven = true
}

func (inv *Inverter) SetCompare(value uint32) {
	inv.compare = value
}

func (inv *Inverter) Off() {
	inv.high, inv.low = 0, 0
	inv.driven = false
}

// Duty returns the high side on-time as a fraction of the period
func (inv *Inverter) Duty() float64 {
	if inv.top == 0 {
		return 0
	}
	return float64(inv.compare) / float64(inv.top)
}

// Driven reports whether any phase is switched
func (inv *Inverter) Driven() bool {
	return inv.driven
}

// Step returns the drive pattern index last routed
func (inv *Inverter) Step() core.Step {
	return inv.step
}

// Comparator compares the selected phase against neutral. A driven phase
// sits at a rail; the floating one carries the back-EMF, which falls through
// neutral on even steps and rises on odd ones, the other way round when the
// rotor turns counter-clockwise.
type Comparator struct {
	inv   *Inverter
	motor *Motor

	enabled bool
	input   core.Phase
}

func (c *Comparator) Enable() error {
	c.enabled = true
	return nil
}

func (c *Comparator) Disable() {
	c.enabled = false
}

func (c *Comparator) SelectInput(p core.Phase) {
	c.input = p
}

func (c *Comparator) Output() bool {
	if !c.enabled {
		return false
	}
	if !c.inv.Driven() {
		return false
	}
	step := c.inv.Step()
	switch c.input {
	case step.Pattern().High:
		return true
	case step.Pattern().Low:
		return false
	}
	past := c.motor.PastZeroCross()
	if step.Even() != c.inv.reverse {
		return !past
	}
	return past
}

// Input returns the selected phase
func (c *Comparator) Input() core.Phase {
	return c.input
}

// Counter is the period timer. It counts core ticks divided by the timer
// prescaler and raises an overflow every TimerMax counts.
type Counter struct {
	bench *Bench

	prescaler uint64
	max       uint64

	running bool
	base    uint64
	frozen  uint32

	overflow Timer
}

func (c *Counter) Start() error {
	c.running = true
	c.restart()
	return nil
}

func (c *Counter) Stop() {
	c.frozen = c.Count()
	c.running = false
	c.bench.sched.Remove(&c.overflow)
}

func (c *Counter) Count() uint32 {
	if !c.running {
		return c.frozen
	}
	ticks := (c.bench.sched.Now() - c.base) / c.prescaler
	return uint32(ticks % c.max)
}

func (c *Counter) Reset() {
	if !c.running {
		c.frozen = 0
		return
	}
	c.restart()
}

func (c *Counter) restart() {
	c.base = c.bench.sched.Now()
	c.overflow.WakeTime = c.base + c.max*c.prescaler
	c.bench.sched.Schedule(&c.overflow)
}

// Idle lets simulated time pass while the controller busy-waits
func (c *Counter) Idle() {
	c.bench.sched.Step()
}

func (c *Counter) onOverflow(t *Timer) uint8 {
	if !c.running {
		return Done
	}
	c.base = t.WakeTime
	t.WakeTime += c.max * c.prescaler
	if c.bench.ctrl != nil {
		c.bench.ctrl.TimerOverflowEvent()
	}
	if !c.running {
		return Done
	}
	return Reschedule
}

// CurrentSensor samples the motor current model
type CurrentSensor struct {
	inv   *Inverter
	motor *Motor

	point uint32
}

func (s *CurrentSensor) SetMeasurementPoint(count uint32) {
	s.point = count
}

func (s *CurrentSensor) CurrentMA() int32 {
	return int32(s.motor.CurrentMA(s.inv.Duty(), s.inv.Driven()))
}

// MeasurementPoint returns the sampling instant in PWM counts
func (s *CurrentSensor) MeasurementPoint() uint32 {
	return s.point
}
