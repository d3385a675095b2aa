//go:build rp2040

package main

import (
	"machine"

	"gobldc/core"
	"gobldc/targets/pio"
)

// pwmPeripheral abstracts over TinyGo's unexported *pwmGroup type
type pwmPeripheral interface {
	Configure(config machine.PWMConfig) error
	Channel(pin machine.Pin) (uint8, error)
	Top() uint32
	Set(channel uint8, value uint32)
}

type highSide struct {
	pin   machine.Pin
	group pwmPeripheral
	ch    uint8
}

// Inverter drives the high sides from three PWM slices and the low sides
// from a PIO state machine. The RP2040 PWM has no dead-time generator; the
// low side only changes at commutation, after the outgoing high side has
// been cut.
type Inverter struct {
	high [3]highSide
	low  *pio.LowSide

	lowBase  machine.Pin
	top      uint32
	deadTime core.DeadTime
	compare  uint32
	mask     uint8
}

// NewInverter uses high-side pins a, b, c, each on slice channel A, and
// low-side pins lowBase..lowBase+2
func NewInverter(a, b, c, lowBase machine.Pin) *Inverter {
	inv := &Inverter{low: pio.NewLowSide(0, 0), lowBase: lowBase}
	for i, p := range [3]machine.Pin{a, b, c} {
		inv.high[i] = highSide{pin: p, group: pwmGroup(p)}
	}
	return inv
}

func (inv *Inverter) Configure(top uint32, dt core.DeadTime) error {
	inv.top = top
	inv.deadTime = dt

	period := uint64(top) * 1000000000 / uint64(machine.CPUFrequency())
	for i := range inv.high {
		h := &inv.high[i]
		if err := h.group.Configure(machine.PWMConfig{Period: period}); err != nil {
			return err
		}
		ch, err := h.group.Channel(h.pin)
		if err != nil {
			return err
		}
		h.ch = ch
		h.group.Set(ch, 0)
	}
	return inv.low.Init(inv.lowBase)
}

func (inv *Inverter) Route(highMask, lowMask uint8) {
	// Cut the high sides first so no leg conducts on both transistors
	for i := range inv.high {
		if highMask&(1<<i) == 0 {
			inv.high[i].group.Set(inv.high[i].ch, 0)
		}
	}
	inv.low.Set(lowMask)
	inv.mask = highMask
	inv.apply()
}

func (inv *Inverter) SetCompare(value uint32) {
	inv.compare = value
	inv.apply()
}

func (inv *Inverter) Off() {
	for i := range inv.high {
		inv.high[i].group.Set(inv.high[i].ch, 0)
	}
	inv.low.Off()
	inv.mask = 0
}

// apply scales the compare value to each slice's own TOP
func (inv *Inverter) apply() {
	for i := range inv.high {
		if inv.mask&(1<<i) == 0 {
			continue
		}
		h := &inv.high[i]
		h.group.Set(h.ch, uint32(uint64(inv.compare)*uint64(h.group.Top())/uint64(inv.top)))
	}
}

// pwmGroup returns the slice driving pin: slice (N >> 1) & 7
func pwmGroup(pin machine.Pin) pwmPeripheral {
	switch (uint8(pin) >> 1) & 0x7 {
	case 0:
		return machine.PWM0
	case 1:
		return machine.PWM1
	case 2:
		return machine.PWM2
	case 3:
		return machine.PWM3
	case 4:
		return machine.PWM4
	case 5:
		return machine.PWM5
	case 6:
		return machine.PWM6
	default:
		return machine.PWM7
	}
}
