package sim

import (
	"context"
	"errors"
	"testing"
	"time"

	"gobldc/core"
	"gobldc/protocol"
)

func newBenchController(t *testing.T, p MotorParams) (*Bench, *core.MotorController) {
	t.Helper()
	return newBenchControllerConfig(t, core.DefaultConfig(), p)
}

func newBenchControllerConfig(t *testing.T, cfg core.Config, p MotorParams) (*Bench, *core.MotorController) {
	t.Helper()
	b := NewBench(cfg, p)
	m, err := core.NewMotorController(cfg, b.Hardware(), nil)
	if err != nil {
		t.Fatalf("NewMotorController: %v", err)
	}
	b.Attach(m)
	return b, m
}

func TestBenchStartupHandsOff(t *testing.T) {
	b, m := newBenchController(t, DefaultMotorParams())

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !m.Running() {
		t.Fatal("Motor should run after startup")
	}
	// The default ramp takes a little under three seconds
	if now := b.Now(); now < 2500*time.Millisecond || now > 3100*time.Millisecond {
		t.Errorf("Handoff at %v, want about 2.8s", now)
	}
	if b.Motor.Commutations() < 1000 {
		t.Errorf("Only %d forced commutations reached the motor", b.Motor.Commutations())
	}
}

func TestBenchHoldsDefaultSetpoint(t *testing.T) {
	b, m := newBenchController(t, DefaultMotorParams())
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	b.Run(time.Second)
	if !m.Running() {
		t.Fatalf("Motor stopped: %v", m.Fault())
	}
	if rpm := m.SpeedRPM(); rpm < 2500 || rpm > 3100 {
		t.Errorf("Measured speed %d RPM, want near 2800", rpm)
	}
	if rpm := b.Motor.RPM(); rpm < 2500 || rpm > 3100 {
		t.Errorf("Rotor speed %.0f RPM, want near 2800", rpm)
	}
	if !m.PIDState().Active {
		t.Error("Regulator should be active")
	}
}

func TestBenchFollowsSetpointStep(t *testing.T) {
	b, m := newBenchController(t, DefaultMotorParams())
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	b.Run(200 * time.Millisecond)

	m.SetSetpoint(5000)
	b.Run(2 * time.Second)

	if rpm := m.SpeedRPM(); rpm < 4500 || rpm > 5500 {
		t.Errorf("Measured speed %d RPM after setpoint step, want near 5000", rpm)
	}
	cfg := m.Config()
	if m.DutyCycle() <= uint32(cfg.DefaultDuty()) {
		t.Errorf("Duty %d should have risen above the default", m.DutyCycle())
	}
}

func TestBenchLoadRaisesDuty(t *testing.T) {
	p := DefaultMotorParams()
	p.LoadRPM = 3000
	b, m := newBenchController(t, p)
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	b.Run(1500 * time.Millisecond)
	if !m.Running() {
		t.Fatalf("Motor stopped: %v", m.Fault())
	}
	if d := m.DutyCycle(); d < 350 {
		t.Errorf("Duty %d under load, want the regulator to push it up", d)
	}
}

func TestBenchLockedRotorStalls(t *testing.T) {
	p := DefaultMotorParams()
	p.LoadRPM = 50000
	b, m := newBenchController(t, p)

	// The open-loop ramp completes whether or not the rotor follows
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	handoff := b.Now()

	if !b.RunUntil(2*time.Second, func() bool { return !m.Running() }) {
		t.Fatal("Locked rotor was not detected")
	}
	if !errors.Is(m.Fault(), core.ErrStall) {
		t.Errorf("Fault = %v, want ErrStall", m.Fault())
	}
	// Ten overflows of 65536 ticks at 1.21875 MHz
	if d := b.Now() - handoff; d < 450*time.Millisecond || d > 700*time.Millisecond {
		t.Errorf("Stall detected %v after handoff", d)
	}
	if b.Inverter.Driven() {
		t.Error("Inverter should coast after a stall")
	}
}

func TestBenchOvercurrentDuringStartup(t *testing.T) {
	p := DefaultMotorParams()
	p.StallCurrentMA = 200000
	b, m := newBenchController(t, p)

	err := m.Start(context.Background())
	if !errors.Is(err, core.ErrOvercurrent) {
		t.Fatalf("Start = %v, want ErrOvercurrent", err)
	}
	// First current sample is one regulator period in
	if now := b.Now(); now > 100*time.Millisecond {
		t.Errorf("Overcurrent tripped at %v", now)
	}
	if m.Running() || m.Starting() {
		t.Error("Motor should be stopped")
	}
}

func TestBenchCounterClockwise(t *testing.T) {
	b, m := newBenchController(t, DefaultMotorParams())
	if !m.SetDirection(core.CounterClockwise) {
		t.Fatal("SetDirection rejected while stopped")
	}
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	b.Run(time.Second)

	if !m.Running() {
		t.Fatalf("Motor stopped: %v", m.Fault())
	}
	want := m.Step().Pattern().Floating()
	if got := b.Comparator.Input(); got != want {
		t.Errorf("Comparator input %v at step %d, want %v", got, m.Step(), want)
	}
	if rpm := m.SpeedRPM(); rpm < 2500 || rpm > 3100 {
		t.Errorf("Measured speed %d RPM, want near 2800", rpm)
	}
	if rpm := b.Motor.RPM(); rpm < 2500 || rpm > 3100 {
		t.Errorf("Rotor speed %.0f RPM, want near 2800", rpm)
	}
}

func TestBenchComparatorWatchesFloatingPhase(t *testing.T) {
	b, m := newBenchController(t, DefaultMotorParams())
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	b.Run(100 * time.Millisecond)

	p := b.Inverter.Step().Pattern()
	b.Comparator.SelectInput(p.High)
	if !b.Comparator.Output() {
		t.Error("Comparator on the driven high side should read above neutral")
	}
	b.Comparator.SelectInput(p.Low)
	if b.Comparator.Output() {
		t.Error("Comparator on the driven low side should read below neutral")
	}
}

func TestBenchSlowFirstStartupStep(t *testing.T) {
	cfg := core.DefaultConfig()
	cfg.StartupInitialPeriodMS = 60
	if seeds := core.StartupSeeds(&cfg); seeds[0] < int(cfg.TimerMax) {
		t.Fatalf("First delay %d fits in one timer cycle of %d", seeds[0], cfg.TimerMax)
	}
	b, m := newBenchControllerConfig(t, cfg, DefaultMotorParams())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !m.Running() {
		t.Fatalf("Motor should run after startup: %v", m.Fault())
	}
	// The longer ramp hands off well after the default one
	if now := b.Now(); now < 3100*time.Millisecond {
		t.Errorf("Handoff at %v, want later than the default ramp", now)
	}
}

func TestBenchTelemetryOverUART(t *testing.T) {
	cfg := core.DefaultConfig()
	b := NewBench(cfg, DefaultMotorParams())
	w := protocol.NewWriter(protocol.NewFifoBuffer(protocol.TxBufferSize))
	m, err := core.NewMotorController(cfg, b.Hardware(), w)
	if err != nil {
		t.Fatalf("NewMotorController: %v", err)
	}
	b.Attach(m)

	var realtime []protocol.Frame
	b.AttachUART(w.TX(), 115200, func(f protocol.Frame) {
		if f.Kind == protocol.FrameRealtime {
			realtime = append(realtime, f)
		}
	})

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	b.Run(time.Second)

	// One realtime frame per regulator period
	if len(realtime) < 100 {
		t.Fatalf("Decoded %d realtime frames", len(realtime))
	}
	last := realtime[len(realtime)-1]
	if last.Speed < 2500 || last.Speed > 3100 {
		t.Errorf("Last reported speed %d", last.Speed)
	}
	if last.Duty <= 0 || last.Current <= 0 {
		t.Errorf("Last frame duty %d current %d", last.Duty, last.Current)
	}
	if _, skipped := b.UARTStats(); skipped != 0 {
		t.Errorf("Decoder skipped %d bytes", skipped)
	}
	if w.TX().Dropped() != 0 {
		t.Errorf("FIFO dropped %d bytes", w.TX().Dropped())
	}
}

func TestBenchStopCoasts(t *testing.T) {
	b, m := newBenchController(t, DefaultMotorParams())
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	b.Run(200 * time.Millisecond)

	m.Stop()
	b.Run(2 * time.Second)
	if b.Motor.RPM() > 100 {
		t.Errorf("Rotor still at %.0f RPM two seconds after stop", b.Motor.RPM())
	}
	if m.Fault() != nil {
		t.Errorf("Manual stop recorded fault %v", m.Fault())
	}
}
