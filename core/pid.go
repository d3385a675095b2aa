package core

import (
	"fmt"
	"math"
)

// Gains are the PID coefficients.
//
// The regulator error is measured - setpoint, so a motor running too slow
// produces a negative error. Duty cycle has to go up in that case, which is
// why working gains are negative. Do not flip the sign of either side alone.
type Gains struct {
	Kp float32 `yaml:"kp"`
	Ki float32 `yaml:"ki"`
	Kd float32 `yaml:"kd"`
}

func (g Gains) validate() error {
	for _, v := range [...]float32{g.Kp, g.Ki, g.Kd} {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: %v", ErrInvalidGains, g)
		}
	}
	return nil
}

// Regulator is the closed-loop speed regulator. It corrects the duty cycle
// by the PID output once per control period while active.
type Regulator struct {
	gains Gains

	setpoint     int32
	setpointMin  int32
	setpointMax  int32
	defaultSpeed int32

	minDuty     int32
	maxDuty     int32
	defaultDuty int32
	duty        int32

	integral  float32
	prevError float32
	active    bool
}

// NewRegulator creates an inactive regulator from cfg
func NewRegulator(cfg *Config) *Regulator {
	r := &Regulator{
		gains:        cfg.Gains,
		setpointMin:  cfg.SetpointMinRPM,
		setpointMax:  cfg.SetpointMaxRPM,
		defaultSpeed: cfg.DefaultSetpointRPM,
		minDuty:      cfg.MinDuty(),
		maxDuty:      cfg.MaxDuty(),
		defaultDuty:  cfg.DefaultDuty(),
	}
	r.SetSetpoint(cfg.DefaultSetpointRPM)
	r.Reset()
	return r
}

// Reset clears the error history and returns the duty cycle to its default
func (r *Regulator) Reset() {
	r.duty = r.defaultDuty
	r.prevError = 0
	r.integral = 0
}

// Activate enables regulation
func (r *Regulator) Activate() {
	r.active = true
}

// Deactivate freezes the duty cycle at its last value
func (r *Regulator) Deactivate() {
	r.active = false
}

// Active reports whether Update corrects the duty cycle
func (r *Regulator) Active() bool {
	return r.active
}

// Update runs one control period with the measured speed and returns the
// new duty cycle. An inactive regulator returns the current duty unchanged.
func (r *Regulator) Update(measuredRPM int32) int32 {
	if !r.active {
		return r.duty
	}

	err := float32(int64(measuredRPM) - int64(r.setpoint))
	r.integral += err
	derivative := err - r.prevError
	correction := r.gains.Kp*err + r.gains.Ki*r.integral + r.gains.Kd*derivative
	r.prevError = err

	// The correction is truncated toward zero before it is applied. It is
	// kept in float64 so extreme values clamp instead of wrapping.
	next := float64(r.duty)
	if c := math.Trunc(float64(correction)); !math.IsNaN(c) {
		next += c
	}
	switch {
	case next < float64(r.minDuty):
		r.duty = r.minDuty
	case next > float64(r.maxDuty):
		r.duty = r.maxDuty
	default:
		r.duty = int32(next)
	}
	return r.duty
}

// SetSetpoint clamps rpm to the configured range and stores it
func (r *Regulator) SetSetpoint(rpm int32) int32 {
	switch {
	case rpm > r.setpointMax:
		r.setpoint = r.setpointMax
	case rpm < r.setpointMin:
		r.setpoint = r.setpointMin
	default:
		r.setpoint = rpm
	}
	return r.setpoint
}

// Setpoint returns the target speed in RPM
func (r *Regulator) Setpoint() int32 {
	return r.setpoint
}

// ResetSetpoint restores the default setpoint
func (r *Regulator) ResetSetpoint() int32 {
	return r.SetSetpoint(r.defaultSpeed)
}

// SetGains replaces the coefficients. Non-finite values are rejected and
// leave the previous gains in place.
func (r *Regulator) SetGains(g Gains) error {
	if err := g.validate(); err != nil {
		return err
	}
	r.gains = g
	return nil
}

// Gains returns the current coefficients
func (r *Regulator) Gains() Gains {
	return r.gains
}

// Duty returns the current duty cycle in PWM counts
func (r *Regulator) Duty() int32 {
	return r.duty
}

// Integral returns the accumulated error
func (r *Regulator) Integral() float32 {
	return r.integral
}

// PrevError returns the error of the previous update
func (r *Regulator) PrevError() float32 {
	return r.prevError
}
