package core

import "testing"

func TestCommutationTableFloatingPhase(t *testing.T) {
	want := [NumSteps]Phase{PhaseC, PhaseB, PhaseA, PhaseC, PhaseB, PhaseA}
	for s, p := range CommutationTable() {
		if p.High == p.Low {
			t.Errorf("step %d drives and sinks the same phase", s)
		}
		if f := p.Floating(); f != want[s] {
			t.Errorf("step %d floating = %v, want %v", s, f, want[s])
		}
		if p.DriveMask()&p.SinkMask() != 0 {
			t.Errorf("step %d masks overlap", s)
		}
	}
}

func TestStepTransitions(t *testing.T) {
	for s := Step(0); s < NumSteps; s++ {
		if got := s.Next(Clockwise); got != (s+1)%NumSteps {
			t.Errorf("%d.Next(cw) = %d", s, got)
		}
		if got := s.Next(CounterClockwise); got != (s+5)%NumSteps {
			t.Errorf("%d.Next(ccw) = %d", s, got)
		}
		if s.Next(Clockwise).Next(CounterClockwise) != s {
			t.Errorf("cw then ccw from %d does not return", s)
		}
	}
}

func TestReversedSequenceMirrorsForward(t *testing.T) {
	var forward, backward []PhasePattern

	s := Step(0)
	for i := 0; i < NumSteps; i++ {
		forward = append(forward, s.Pattern())
		s = s.Next(Clockwise)
	}
	if s != 0 {
		t.Fatalf("six clockwise steps ended at %d", s)
	}

	s = 5
	for i := 0; i < NumSteps; i++ {
		backward = append(backward, s.Pattern())
		s = s.Next(CounterClockwise)
	}

	for i := range forward {
		if forward[i] != backward[NumSteps-1-i] {
			t.Errorf("position %d: forward %v, backward %v", i, forward[i], backward[NumSteps-1-i])
		}
	}
}

func TestWaveform(t *testing.T) {
	inv := &mockInverter{}
	cur := &mockCurrent{}
	w := NewWaveform(inv, cur, 3120)

	dt := DeadTime{Prescaler: 15, RisingCycles: 4, FallingCycles: 4}
	if err := w.Init(dt, 249); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if inv.top != 3120 || inv.deadTime != dt {
		t.Errorf("Inverter configured with top=%d dt=%+v", inv.top, inv.deadTime)
	}
	if inv.step() != 0 || w.State() != 0 {
		t.Errorf("Expected step 0 after Init, got %d", inv.step())
	}
	if inv.compare != 249 || cur.point != 124 {
		t.Errorf("compare=%d point=%d, want 249 and 124", inv.compare, cur.point)
	}

	for i := 1; i <= 7; i++ {
		s := w.Advance(Clockwise)
		if int(s) != i%NumSteps || inv.step() != i%NumSteps {
			t.Errorf("advance %d: state %d routed %d", i, s, inv.step())
		}
	}

	w.SetDutyCycle(5000)
	if w.DutyCycle() != 3120 {
		t.Errorf("Duty above top should clamp, got %d", w.DutyCycle())
	}

	w.Stop()
	if inv.high != 0 || inv.low != 0 || inv.offCount != 1 {
		t.Error("Stop should turn every switch off")
	}
}

func TestWaveformWithoutCurrentSensor(t *testing.T) {
	inv := &mockInverter{}
	w := NewWaveform(inv, nil, 100)
	w.SetDutyCycle(50)
	if inv.compare != 50 {
		t.Errorf("compare = %d, want 50", inv.compare)
	}
}
