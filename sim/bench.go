// Package sim is a discrete-event test bench for the motor controller. It
// stands in for the inverter, comparator, period timer and current sensor,
// and closes the loop through a simple motor model.
package sim

import (
	"time"

	"gobldc/core"
	"gobldc/protocol"
)

// Bench owns the simulated peripherals of one controller. All time is in
// core clock ticks. The bench is single threaded: events run from Run, and
// from Idle while the controller busy-waits during startup.
type Bench struct {
	cfg   core.Config
	sched Scheduler

	Motor      *Motor
	Inverter   *Inverter
	Comparator *Comparator
	Counter    *Counter
	Current    *CurrentSensor

	ctrl *core.MotorController

	pwm       Timer
	pwmTicks  uint64
	pwmPeriod float64

	uart *uart
}

// NewBench builds the peripherals for cfg around a motor with params p
func NewBench(cfg core.Config, p MotorParams) *Bench {
	b := &Bench{cfg: cfg}
	b.Motor = NewMotor(p, cfg.PolePairs)
	b.Inverter = &Inverter{motor: b.Motor}
	b.Comparator = &Comparator{inv: b.Inverter, motor: b.Motor}
	b.Current = &CurrentSensor{inv: b.Inverter, motor: b.Motor}
	b.Counter = &Counter{
		bench:     b,
		prescaler: uint64(cfg.PrescalerTimer),
		max:       uint64(cfg.TimerMax),
	}
	b.Counter.overflow.Handler = b.Counter.onOverflow

	b.pwmTicks = uint64(cfg.PWMTop()) * uint64(cfg.PrescalerPWM)
	b.pwmPeriod = float64(b.pwmTicks) / float64(cfg.CoreFrequency)
	b.pwm.Handler = b.onPWMPeriod
	return b
}

// Hardware returns the peripherals for core.NewMotorController
func (b *Bench) Hardware() core.Hardware {
	return core.Hardware{
		Inverter:   b.Inverter,
		Comparator: b.Comparator,
		Timer:      b.Counter,
		Current:    b.Current,
	}
}

// Attach routes the PWM period and timer overflow interrupts to m and
// starts the PWM clock
func (b *Bench) Attach(m *core.MotorController) {
	b.ctrl = m
	b.pwm.WakeTime = b.sched.Now() + b.pwmTicks
	b.sched.Schedule(&b.pwm)
}

// AttachUART drains tx at the given baud rate, ten bits per byte, and
// hands every decoded telemetry frame to sink
func (b *Bench) AttachUART(tx *protocol.FifoBuffer, baud uint32, sink func(protocol.Frame)) {
	u := &uart{
		tx:       tx,
		sink:     sink,
		byteTime: uint64(b.cfg.CoreFrequency) * 10 / uint64(baud),
	}
	if u.byteTime == 0 {
		u.byteTime = 1
	}
	u.timer.Handler = u.onByte
	u.timer.WakeTime = b.sched.Now() + u.byteTime
	b.uart = u
	b.sched.Schedule(&u.timer)
}

// UARTStats returns the bytes sent and skipped by the frame decoder
func (b *Bench) UARTStats() (sent uint64, skipped uint32) {
	if b.uart == nil {
		return 0, 0
	}
	return b.uart.sent, b.uart.dec.Skipped()
}

func (b *Bench) onPWMPeriod(t *Timer) uint8 {
	b.Motor.Step(b.pwmPeriod, b.Inverter.Duty(), b.Inverter.Driven())
	if b.ctrl != nil {
		b.ctrl.PWMPeriodEvent()
	}
	t.WakeTime += b.pwmTicks
	return Reschedule
}

// Now returns the simulated time since the bench was created
func (b *Bench) Now() time.Duration {
	return b.ticksToDuration(b.sched.Now())
}

// Run advances simulated time by d
func (b *Bench) Run(d time.Duration) {
	b.sched.RunUntil(b.sched.Now() + b.durationToTicks(d))
}

// RunUntil advances simulated time until cond holds or d has passed. It
// reports whether cond was met.
func (b *Bench) RunUntil(d time.Duration, cond func() bool) bool {
	deadline := b.sched.Now() + b.durationToTicks(d)
	for !cond() {
		if b.sched.Now() >= deadline || !b.sched.Step() {
			return cond()
		}
	}
	return true
}

func (b *Bench) durationToTicks(d time.Duration) uint64 {
	if d <= 0 {
		return 0
	}
	f := uint64(b.cfg.CoreFrequency)
	sec, rem := uint64(d/time.Second), uint64(d%time.Second)
	return sec*f + rem*f/uint64(time.Second)
}

func (b *Bench) ticksToDuration(ticks uint64) time.Duration {
	f := uint64(b.cfg.CoreFrequency)
	return time.Duration(ticks/f)*time.Second + time.Duration(ticks%f*uint64(time.Second)/f)
}

// uart models the serial transmitter emptying the telemetry FIFO
type uart struct {
	tx       *protocol.FifoBuffer
	sink     func(protocol.Frame)
	dec      protocol.FrameDecoder
	byteTime uint64
	sent     uint64

	timer Timer
}

func (u *uart) onByte(t *Timer) uint8 {
	if c, ok := u.tx.Pop(); ok {
		u.sent++
		if f, ok := u.dec.Feed(c); ok && u.sink != nil {
			u.sink(f)
		}
	}
	t.WakeTime += u.byteTime
	return Reschedule
}
