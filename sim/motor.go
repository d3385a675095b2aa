package sim

import "time"

// MotorParams describe the simulated motor and its load
type MotorParams struct {
	// Speed reached at 100% duty with no load, in mechanical RPM
	FullDutyRPM float64
	// Speed lost to the load at any duty
	LoadRPM float64
	// Mechanical time constant of the speed response
	TimeConstant time.Duration
	// Phase current with the rotor locked at 100% duty
	StallCurrentMA float64
}

// DefaultMotorParams is a small outrunner with a light fan load
func DefaultMotorParams() MotorParams {
	return MotorParams{
		FullDutyRPM:    40000,
		LoadRPM:        500,
		TimeConstant:   200 * time.Millisecond,
		StallCurrentMA: 8000,
	}
}

// Motor is a first-order model of a BLDC motor. Speed relaxes toward the
// speed the applied duty cycle sustains against the load; the rotor angle
// is tracked relative to the start of the current commutation step.
type Motor struct {
	params    MotorParams
	polePairs float64

	rpm   float64
	angle float64 // electrical degrees into the current step

	commutations uint64
}

// NewMotor creates a motor at rest
func NewMotor(p MotorParams, polePairs uint32) *Motor {
	return &Motor{params: p, polePairs: float64(polePairs)}
}

// Step integrates dt seconds. duty is the fraction of the PWM period the
// high side conducts; driven is false while the inverter coasts.
func (m *Motor) Step(dt, duty float64, driven bool) {
	target := 0.0
	if driven {
		target = m.params.FullDutyRPM*duty - m.params.LoadRPM
	}
	tau := m.params.TimeConstant.Seconds()
	if tau <= 0 {
		m.rpm = target
	} else {
		m.rpm += (target - m.rpm) * dt / tau
	}
	if m.rpm < 0 {
		m.rpm = 0
	}

	m.angle += m.rpm / 60 * m.polePairs * 360 * dt
}

// Commutate moves the field one step ahead. A rotor lagging behind the field
// is pulled along, one running ahead stays within the step.
func (m *Motor) Commutate() {
	m.commutations++
	m.angle -= 60
	if m.angle < -30 {
		m.angle = -30
	}
	if m.angle > 59 {
		m.angle = 59
	}
}

// PastZeroCross reports whether the floating phase crossed neutral, which
// happens 30 electrical degrees into a step
func (m *Motor) PastZeroCross() bool {
	return m.angle >= 30
}

// CurrentMA is the phase current at the given duty
func (m *Motor) CurrentMA(duty float64, driven bool) float64 {
	if !driven {
		return 0
	}
	i := m.params.StallCurrentMA * (duty - m.rpm/m.params.FullDutyRPM)
	if i < 0 {
		return 0
	}
	return i
}

// RPM returns the mechanical speed
func (m *Motor) RPM() float64 {
	return m.rpm
}

// Angle returns the electrical angle into the current step
func (m *Motor) Angle() float64 {
	return m.angle
}

// Commutations returns the number of steps the field advanced
func (m *Motor) Commutations() uint64 {
	return m.commutations
}

// SetLoad changes the load while the bench runs
func (m *Motor) SetLoad(rpm float64) {
	m.params.LoadRPM = rpm
}
