package core

import (
	"gobldc/protocol"
)

// Mock drivers shared by the core tests

type mockInverter struct {
	top       uint32
	deadTime  DeadTime
	high, low uint8
	compare   uint32
	offCount  int
}

func (i *mockInverter) Configure(top uint32, dt DeadTime) error {
	i.top = top
	i.deadTime = dt
	return nil
}

func (i *mockInverter) Route(highMask, lowMask uint8) {
	i.high = highMask
	i.low = lowMask
}

func (i *mockInverter) SetCompare(value uint32) {
	i.compare = value
}

func (i *mockInverter) Off() {
	i.high = 0
	i.low = 0
	i.offCount++
}

// step returns the step whose pattern is routed, -1 when coasting
func (i *mockInverter) step() int {
	for s, p := range CommutationTable() {
		if p.DriveMask() == i.high && p.SinkMask() == i.low {
			return s
		}
	}
	return -1
}

type mockComparator struct {
	inv     *mockInverter
	enabled bool
	input   Phase
	inputs  []Phase
	out     bool

	// follow reports the edge every step waits for, reversed when ccw
	follow bool
	ccw    bool
}

func (c *mockComparator) Enable() error {
	c.enabled = true
	return nil
}

func (c *mockComparator) Disable() {
	c.enabled = false
}

func (c *mockComparator) SelectInput(p Phase) {
	c.input = p
	c.inputs = append(c.inputs, p)
}

func (c *mockComparator) Output() bool {
	if c.follow && c.inv != nil {
		return (c.inv.step()%2 == 1) != c.ccw
	}
	return c.out
}

type mockTimer struct {
	running bool
	count   uint32
	step    uint32
	max     uint32 // wraps at max when set
	idles   int
	onIdle  func(n int)
}

func (t *mockTimer) Start() error {
	t.running = true
	return nil
}

func (t *mockTimer) Stop() {
	t.running = false
}

func (t *mockTimer) Count() uint32 {
	return t.count
}

func (t *mockTimer) Reset() {
	t.count = 0
}

func (t *mockTimer) Idle() {
	if t.running {
		t.count += t.step
		if t.max > 0 {
			t.count %= t.max
		}
	}
	t.idles++
	if t.onIdle != nil {
		t.onIdle(t.idles)
	}
}

type mockCurrent struct {
	point uint32
	ma    int32
}

func (c *mockCurrent) SetMeasurementPoint(count uint32) {
	c.point = count
}

func (c *mockCurrent) CurrentMA() int32 {
	return c.ma
}

type testRig struct {
	inv *mockInverter
	cmp *mockComparator
	tmr *mockTimer
	cur *mockCurrent
	tel *protocol.Writer
	dec protocol.FrameDecoder
}

func newTestRig() *testRig {
	inv := &mockInverter{}
	return &testRig{
		inv: inv,
		cmp: &mockComparator{inv: inv, follow: true},
		tmr: &mockTimer{step: 97},
		cur: &mockCurrent{ma: 500},
		tel: protocol.NewWriter(protocol.NewFifoBuffer(1 << 16)),
	}
}

func (r *testRig) hardware() Hardware {
	return Hardware{
		Inverter:   r.inv,
		Comparator: r.cmp,
		Timer:      r.tmr,
		Current:    r.cur,
	}
}

// frames decodes and drains everything sent so far
func (r *testRig) frames() []protocol.Frame {
	tx := r.tel.TX()
	data := make([]byte, tx.Available())
	tx.Read(data)
	return r.dec.DecodeAll(data)
}

// pwmPeriods delivers n PWM period interrupts, advancing the period timer
// by the ticks of one PWM period each time
func (r *testRig) pwmPeriods(m *MotorController, n int) {
	for i := 0; i < n; i++ {
		if r.tmr.running {
			r.tmr.count += 97
		}
		m.PWMPeriodEvent()
	}
}
