package core

import "testing"

func TestCommutationPoint(t *testing.T) {
	cfg := DefaultConfig()
	z := NewZeroCrossDetector(&mockComparator{}, cfg.TickScale(), cfg.PWMTop())

	// 2800 RPM is 8705 ticks per electrical revolution, 30 degrees of that
	// is a little over seven 80us PWM periods
	if p := z.CommutationPoint(8705); p != 7 {
		t.Errorf("CommutationPoint(8705) = %d, want 7", p)
	}
	if p := z.CommutationPoint(0); p != 0 {
		t.Errorf("CommutationPoint(0) = %d, want 0", p)
	}
}

func TestZeroCrossSkipsFirstPeriod(t *testing.T) {
	cmp := &mockComparator{out: false}
	z := NewZeroCrossDetector(cmp, 32, 3120)

	// Even step waits for a low output; the first period is never sampled
	z.Tick(0, 8705)
	if z.Pending() {
		t.Fatal("First period after commutation must not be sampled")
	}
	z.Tick(0, 8705)
	if !z.Pending() {
		t.Fatal("Low output on an even step should arm the commutation")
	}
}

func TestZeroCrossEdgePolarity(t *testing.T) {
	cmp := &mockComparator{}
	z := NewZeroCrossDetector(cmp, 32, 3120)

	// Odd step with low output: no crossing yet
	cmp.out = false
	for i := 0; i < 5; i++ {
		z.Tick(1, 8705)
	}
	if z.Pending() {
		t.Error("Odd step must wait for a high output")
	}

	cmp.out = true
	z.Tick(1, 8705)
	if !z.Pending() {
		t.Error("High output on an odd step should arm the commutation")
	}
}

func TestZeroCrossCommutatesAfterDelay(t *testing.T) {
	cmp := &mockComparator{out: false}
	z := NewZeroCrossDetector(cmp, 32, 3120)

	z.Tick(0, 8705)
	z.Tick(0, 8705)
	if !z.Pending() {
		t.Fatal("Expected pending commutation")
	}

	// The period that sees the crossing already counts as the first of the
	// seven, so the commutation lands six periods later
	fired := 0
	for i := 1; i <= 10; i++ {
		if z.Tick(0, 8705) {
			fired = i
			break
		}
	}
	if fired != 6 {
		t.Errorf("Commutation fired after %d periods, want 6", fired)
	}
	if z.Pending() {
		t.Error("Pending flag should clear on commutation")
	}
}

func TestZeroCrossUnknownPeriod(t *testing.T) {
	cmp := &mockComparator{out: false}
	z := NewZeroCrossDetector(cmp, 32, 3120)

	for i := 0; i < 10; i++ {
		if z.Tick(0, 0) {
			t.Fatal("Unknown period must not commutate")
		}
	}
	if z.Pending() {
		t.Error("Unknown period must not arm a commutation")
	}
}

func TestZeroCrossShortPeriodWaitsOneCycle(t *testing.T) {
	cmp := &mockComparator{out: false}
	z := NewZeroCrossDetector(cmp, 32, 3120)

	z.Tick(0, 100)
	z.Tick(0, 100)
	if !z.Pending() {
		t.Fatal("Expected pending commutation")
	}
	// Point rounds to 0 at this speed but still takes one period
	if !z.Tick(0, 100) {
		t.Error("Expected commutation on the next period")
	}
}

func TestZeroCrossSelectInput(t *testing.T) {
	cmp := &mockComparator{}
	z := NewZeroCrossDetector(cmp, 32, 3120)

	for s := Step(0); s < NumSteps; s++ {
		if p := z.SelectInput(s, Clockwise); p != s.Pattern().Floating() || cmp.input != p {
			t.Errorf("cw step %d: selected %v", s, p)
		}
		if p := z.SelectInput(s, CounterClockwise); p != s.Pattern().Floating() || cmp.input != p {
			t.Errorf("ccw step %d: selected %v", s, p)
		}
		p := s.Pattern()
		if in := z.SelectInput(s, CounterClockwise); in == p.High || in == p.Low {
			t.Errorf("ccw step %d: comparator watches driven phase %v", s, in)
		}
	}
}

func TestZeroCrossCounterClockwisePolarity(t *testing.T) {
	cmp := &mockComparator{}
	z := NewZeroCrossDetector(cmp, 32, 3120)
	z.SelectInput(0, CounterClockwise)

	for s := Step(0); s < NumSteps; s++ {
		if z.FallingEdge(s) == s.Even() {
			t.Errorf("ccw step %d: edge polarity not reversed", s)
		}
	}

	// Even step reversed waits for a high output
	cmp.out = false
	for i := 0; i < 5; i++ {
		z.Tick(0, 8705)
	}
	if z.Pending() {
		t.Fatal("Low output on a reversed even step must not arm")
	}
	cmp.out = true
	z.Tick(0, 8705)
	if !z.Pending() {
		t.Error("High output on a reversed even step should arm the commutation")
	}
}
