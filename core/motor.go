package core

import (
	"context"
	"errors"
	"fmt"

	"gobldc/protocol"
)

// Direction is the spin direction of the motor
type Direction uint8

const (
	Clockwise Direction = iota
	CounterClockwise
)

func (d Direction) String() string {
	if d == CounterClockwise {
		return "ccw"
	}
	return "cw"
}

// Reverse returns the opposite direction
func (d Direction) Reverse() Direction {
	if d == CounterClockwise {
		return Clockwise
	}
	return CounterClockwise
}

// PIDState is a snapshot of the regulator
type PIDState struct {
	Active    bool
	Setpoint  int32
	Duty      int32
	Integral  float32
	PrevError float32
}

// MotorController runs sensorless six-step commutation and closed-loop speed
// regulation for one motor.
//
// Two hardware interrupts drive it once started: PWMPeriodEvent once per PWM
// period and TimerOverflowEvent on every period timer wrap. Foreground calls
// and interrupt handlers serialise on the same critical section.
type MotorController struct {
	cfg   Config
	hw    Hardware
	tel   Telemetry
	idler Idler

	wave  *Waveform
	zc    *ZeroCrossDetector
	speed *SpeedEstimator
	pid   *Regulator
	ramp  *StartupRamp

	// armed is set while the timers run, running once the startup ramp
	// handed over to back-EMF commutation
	armed     bool
	running   bool
	direction Direction

	startupCounter     int
	commutationCounter int
	stallCounter       uint32
	stallLimit         uint32

	pidPrescaler uint32
	pwmPeriods   uint32

	currentMA int32
	fault     error
}

// NewMotorController validates cfg and configures the inverter. The motor
// starts stopped, clockwise, at step 0. tel may be nil.
func NewMotorController(cfg Config, hw Hardware, tel Telemetry) (*MotorController, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if hw.Inverter == nil || hw.Comparator == nil || hw.Timer == nil {
		return nil, ErrMissingHardware
	}
	if tel == nil {
		tel = nopTelemetry{}
	}

	m := &MotorController{
		cfg:          cfg,
		hw:           hw,
		tel:          tel,
		stallLimit:   cfg.StallTimeoutOverflows(),
		pidPrescaler: cfg.PIDPrescaler(),
	}
	m.idler, _ = hw.Timer.(Idler)

	c := &m.cfg
	m.wave = NewWaveform(hw.Inverter, hw.Current, c.PWMTop())
	m.zc = NewZeroCrossDetector(hw.Comparator, c.TickScale(), c.PWMTop())
	m.speed = NewSpeedEstimator(hw.Timer, c)
	m.pid = NewRegulator(c)
	m.ramp = NewStartupRamp(c)

	if err := m.wave.Init(c.DeadTime, uint32(m.pid.Duty())); err != nil {
		return nil, fmt.Errorf("configure inverter: %w", err)
	}
	m.wave.Stop()
	return m, nil
}

// Config returns the controller configuration
func (m *MotorController) Config() Config {
	return m.cfg
}

// Start spins the motor up with the open-loop ramp and hands over to
// back-EMF commutation. It blocks until handoff speed is reached.
//
// Start fails with ErrStartupTimeout when the ramp needs more than
// StartupMaxCommutations steps, with ErrStartAborted when Stop is called
// meanwhile, and with ctx.Err() when ctx is cancelled. The motor is stopped
// in every failure case. Starting a running motor is a no-op; a second Start
// while the ramp is still going returns ErrStartInProgress and leaves the
// first one alone.
func (m *MotorController) Start(ctx context.Context) error {
	state := disableInterrupts()
	if m.armed {
		running := m.running
		restoreInterrupts(state)
		if running {
			return nil
		}
		return ErrStartInProgress
	}

	m.fault = nil
	m.startupCounter = 0
	m.commutationCounter = 0
	m.stallCounter = 0
	m.pwmPeriods = 0
	m.pid.Deactivate()
	m.pid.Reset()
	m.zc.Reset()
	m.speed.Reset()
	m.setDutyLocked(m.pid.Duty())

	err := m.armLocked()
	restoreInterrupts(state)
	if err != nil {
		return err
	}

	return m.startup(ctx)
}

func (m *MotorController) armLocked() error {
	if err := m.hw.Comparator.Enable(); err != nil {
		return fmt.Errorf("enable comparator: %w", err)
	}
	if err := m.hw.Timer.Start(); err != nil {
		m.hw.Comparator.Disable()
		return fmt.Errorf("start period timer: %w", err)
	}
	m.hw.Timer.Reset()
	m.armed = true
	return nil
}

// startup runs the forced commutation ramp. Every sixth step the ticks
// accumulated over the last six delays become the electrical period.
func (m *MotorController) startup(ctx context.Context) error {
	m.ramp.Reset()
	window := 0
	var top float32

	for i := 0; !m.ramp.Done(); i++ {
		if i >= m.cfg.StartupMaxCommutations {
			return m.abortStartup(ErrStartupTimeout, i)
		}
		if err := ctx.Err(); err != nil {
			m.Stop()
			return err
		}

		state := disableInterrupts()
		if !m.armed {
			restoreInterrupts(state)
			return m.startupStopped()
		}
		step := m.wave.Advance(m.direction)
		top = m.ramp.Next()
		if i > 0 && i%6 == 0 {
			m.speed.SetPeriod(uint32(window))
			rpm := m.speed.RPM()
			m.tel.SetSpeed(sat16(rpm))
			recordEvent(EvtLatch, step, uint32(window), uint32(rpm))
			window = 0
		}
		window = int(float32(window) + top)
		recordEvent(EvtForcedCommutation, step, uint32(top), uint32(i))
		restoreInterrupts(state)

		if err := m.waitTicks(ctx, uint32(top)); err != nil {
			if err == errStopped {
				return m.startupStopped()
			}
			m.Stop()
			return err
		}
	}

	state := disableInterrupts()
	defer restoreInterrupts(state)
	if !m.armed {
		return m.startupStopped()
	}

	// Ramps too short to complete a window fall back to the last delay
	if m.speed.Period() == 0 {
		m.speed.SetPeriod(uint32(6 * top))
	}
	m.zc.Reset()
	m.zc.SelectInput(m.wave.State(), m.direction)
	m.stallCounter = 0
	m.running = true
	recordEvent(EvtHandoff, m.wave.State(), m.speed.Period(), uint32(m.ramp.Count()))
	return nil
}

// errStopped ends waitTicks when the motor was stopped meanwhile
var errStopped = errors.New("stopped")

// waitTicks spins until ticks have passed on the period timer, then clears
// it. Delays longer than one timer cycle are counted across wraps. It fails
// with errStopped if the motor was stopped, or with ctx.Err().
func (m *MotorController) waitTicks(ctx context.Context, ticks uint32) error {
	var wraps uint64
	var last uint32
	for {
		state := disableInterrupts()
		if !m.armed {
			restoreInterrupts(state)
			return errStopped
		}
		count := m.hw.Timer.Count()
		if count < last {
			wraps++
		}
		last = count
		if wraps*uint64(m.cfg.TimerMax)+uint64(count) >= uint64(ticks) {
			m.hw.Timer.Reset()
			restoreInterrupts(state)
			return nil
		}
		restoreInterrupts(state)

		if err := ctx.Err(); err != nil {
			return err
		}
		if m.idler != nil {
			m.idler.Idle()
		}
	}
}

func (m *MotorController) abortStartup(reason error, steps int) error {
	state := disableInterrupts()
	recordEvent(EvtStartupFail, m.wave.State(), uint32(steps), 0)
	m.stopLocked(reason)
	restoreInterrupts(state)
	return fmt.Errorf("%w after %d commutations", reason, steps)
}

func (m *MotorController) startupStopped() error {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	if m.fault != nil {
		return m.fault
	}
	return ErrStartAborted
}

// Stop coasts the motor and disables zero-cross sensing and the regulator.
// The setpoint returns to its default. Stopping a stopped motor is a no-op.
func (m *MotorController) Stop() {
	state := disableInterrupts()
	m.stopLocked(nil)
	restoreInterrupts(state)
}

func (m *MotorController) stopLocked(reason error) {
	if !m.armed {
		return
	}

	m.pid.Deactivate()
	m.hw.Timer.Stop()
	m.wave.Stop()
	m.hw.Comparator.Disable()
	m.zc.Reset()

	m.armed = false
	m.running = false
	if reason != nil {
		m.fault = reason
	}

	m.pid.Reset()
	m.setDutyLocked(m.pid.Duty())
	m.tel.SendScalar(protocol.ParamSetpoint, sat16(m.pid.ResetSetpoint()))
	m.tel.SetSpeed(0)
	m.tel.Send()

	recordEvent(EvtStop, m.wave.State(), 0, 0)
}

// PWMPeriodEvent is called from the PWM timer overflow interrupt. Every
// PIDPrescaler periods it samples the current, runs the regulator and sends
// telemetry; every period it runs zero-cross detection.
func (m *MotorController) PWMPeriodEvent() {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	if !m.armed {
		return
	}

	m.pwmPeriods = (m.pwmPeriods + 1) % m.pidPrescaler
	if m.pwmPeriods == 0 {
		if m.hw.Current != nil {
			m.currentMA = m.hw.Current.CurrentMA()
			m.tel.SetMotorCurrent(sat16(m.currentMA))
			if m.cfg.MaxCurrentMA > 0 && m.currentMA > m.cfg.MaxCurrentMA {
				recordEvent(EvtOvercurrent, m.wave.State(), uint32(m.currentMA), 0)
				m.stopLocked(ErrOvercurrent)
				return
			}
		}
		if m.pid.Active() {
			m.setDutyLocked(m.pid.Update(m.speed.RPM()))
		}
		m.tel.Send()
	}

	if !m.running {
		return
	}
	pending := m.zc.Pending()
	if m.zc.Tick(m.wave.State(), m.speed.Period()) {
		m.commutateLocked()
	} else if !pending && m.zc.Pending() {
		recordEvent(EvtZeroCross, m.wave.State(), m.speed.Period(), 0)
	}
}

// TimerOverflowEvent is called from the period timer overflow interrupt
func (m *MotorController) TimerOverflowEvent() {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	if !m.running {
		return
	}
	m.speed.Overflow()
	m.stallCounter++
	if m.stallCounter > m.stallLimit {
		recordEvent(EvtStall, m.wave.State(), m.stallCounter, 0)
		m.stopLocked(ErrStall)
	}
}

// commutateLocked moves to the next step and does the per-commutation
// bookkeeping
func (m *MotorController) commutateLocked() {
	step := m.wave.Advance(m.direction)
	m.zc.SelectInput(step, m.direction)

	// Let the measured speed settle before closing the loop
	if m.startupCounter <= m.cfg.PIDStartupCommutations {
		if m.startupCounter == m.cfg.PIDStartupCommutations {
			m.pid.Activate()
			recordEvent(EvtPIDActive, step, uint32(m.pid.Duty()), 0)
		}
		m.startupCounter++
	}

	m.commutationCounter = (m.commutationCounter + 1) % NumSteps
	if m.commutationCounter == 0 {
		p := m.speed.Latch()
		rpm := m.speed.RPM()
		m.tel.SetSpeed(sat16(rpm))
		recordEvent(EvtLatch, step, p, uint32(rpm))
	}

	m.stallCounter = 0
	recordEvent(EvtCommutate, step, m.speed.Period(), 0)
}

func (m *MotorController) setDutyLocked(duty int32) {
	m.wave.SetDutyCycle(uint32(duty))
	m.tel.SetPWM(sat16(duty))
}

// SetDirection changes the spin direction. It is ignored while the motor
// runs; the return value reports whether the change was applied.
func (m *MotorController) SetDirection(d Direction) bool {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	if m.armed {
		return false
	}
	m.direction = d
	m.sendDirectionLocked()
	return true
}

// ToggleDirection reverses the spin direction while stopped
func (m *MotorController) ToggleDirection() bool {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	if m.armed {
		return false
	}
	m.direction = m.direction.Reverse()
	m.sendDirectionLocked()
	return true
}

// The wire value is 1 for clockwise
func (m *MotorController) sendDirectionLocked() {
	var v int16
	if m.direction == Clockwise {
		v = 1
	}
	m.tel.SendScalar(protocol.ParamDir, v)
}

// SetSetpoint clamps rpm to the configured range and makes it the target
// speed. It returns the value in effect.
func (m *MotorController) SetSetpoint(rpm int32) int32 {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	return m.setSetpointLocked(rpm)
}

func (m *MotorController) setSetpointLocked(rpm int32) int32 {
	v := m.pid.SetSetpoint(rpm)
	m.tel.SendScalar(protocol.ParamSetpoint, sat16(v))
	return v
}

// SpeedIncrease raises the setpoint by SpeedIncrementRPM
func (m *MotorController) SpeedIncrease() int32 {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	return m.setSetpointLocked(m.pid.Setpoint() + m.cfg.SpeedIncrementRPM)
}

// SpeedDecrease lowers the setpoint by SpeedIncrementRPM
func (m *MotorController) SpeedDecrease() int32 {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	return m.setSetpointLocked(m.pid.Setpoint() - m.cfg.SpeedIncrementRPM)
}

// SetPIDGains replaces the regulator gains and reports the parameters.
// Non-finite gains are rejected and the old ones kept.
func (m *MotorController) SetPIDGains(g Gains) error {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	if err := m.pid.SetGains(g); err != nil {
		return err
	}
	m.sendParametersLocked()
	return nil
}

// SendParameters reports setpoint, gains and direction
func (m *MotorController) SendParameters() {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	m.sendParametersLocked()
}

func (m *MotorController) sendParametersLocked() {
	g := m.pid.Gains()
	m.tel.SendScalar(protocol.ParamSetpoint, sat16(m.pid.Setpoint()))
	m.tel.SendFloat(protocol.ParamKp, g.Kp)
	m.tel.SendFloat(protocol.ParamKi, g.Ki)
	m.tel.SendFloat(protocol.ParamKd, g.Kd)
	m.sendDirectionLocked()
}

// SendVersion sends the version signature followed by the parameters
func (m *MotorController) SendVersion() {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	m.tel.SendVersion()
	m.sendParametersLocked()
}

// Execute runs one host command. Start blocks like Start does.
func (m *MotorController) Execute(ctx context.Context, cmd protocol.Command) error {
	switch cmd.Kind {
	case protocol.KindStart:
		return m.Start(ctx)
	case protocol.KindStop:
		m.Stop()
	case protocol.KindSetSetpoint:
		m.SetSetpoint(cmd.Setpoint)
	case protocol.KindGetVersion:
		m.SendVersion()
	case protocol.KindSetPID:
		return m.SetPIDGains(Gains{Kp: cmd.Gains[0], Ki: cmd.Gains[1], Kd: cmd.Gains[2]})
	case protocol.KindChangeDirection:
		m.ToggleDirection()
	}
	return nil
}

// Running reports whether the motor is under back-EMF commutation
func (m *MotorController) Running() bool {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	return m.running
}

// Starting reports whether the startup ramp is in progress
func (m *MotorController) Starting() bool {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	return m.armed && !m.running
}

// Direction returns the spin direction
func (m *MotorController) Direction() Direction {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	return m.direction
}

// Setpoint returns the target speed in RPM
func (m *MotorController) Setpoint() int32 {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	return m.pid.Setpoint()
}

// Gains returns the regulator gains
func (m *MotorController) Gains() Gains {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	return m.pid.Gains()
}

// PIDState returns a snapshot of the regulator
func (m *MotorController) PIDState() PIDState {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	return PIDState{
		Active:    m.pid.Active(),
		Setpoint:  m.pid.Setpoint(),
		Duty:      m.pid.Duty(),
		Integral:  m.pid.Integral(),
		PrevError: m.pid.PrevError(),
	}
}

// ElectricalPeriod returns the last measured electrical period in ticks
func (m *MotorController) ElectricalPeriod() uint32 {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	return m.speed.Period()
}

// SpeedRPM returns the speed of the last electrical period, 0 if unknown
func (m *MotorController) SpeedRPM() int32 {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	return m.speed.RPM()
}

// DutyCycle returns the duty cycle in PWM counts
func (m *MotorController) DutyCycle() uint32 {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	return m.wave.DutyCycle()
}

// Step returns the active commutation step
func (m *MotorController) Step() Step {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	return m.wave.State()
}

// CurrentMA returns the last current sample
func (m *MotorController) CurrentMA() int32 {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	return m.currentMA
}

// Fault returns why the motor was last forced to stop, nil after a
// commanded stop or a successful start
func (m *MotorController) Fault() error {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	return m.fault
}
