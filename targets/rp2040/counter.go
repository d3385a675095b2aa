//go:build rp2040

package main

import (
	"device/rp"
	"runtime"
	"runtime/interrupt"

	"gobldc/core"
)

// Slice 4 runs without an output pin as the 16-bit period timer. Slice 5
// carries phase A; its wrap is the PWM period interrupt.
const (
	counterSlice = 4
	periodSlice  = 5
)

// Counter is the period timer on a free-running PWM slice
type Counter struct {
	prescaler uint32
}

// NewCounter divides the system clock by prescaler, 1 to 255
func NewCounter(prescaler uint32) *Counter {
	return &Counter{prescaler: prescaler}
}

func (c *Counter) Start() error {
	rp.PWM.CH4_CSR.Set(0)
	rp.PWM.CH4_DIV.Set(c.prescaler << 4)
	rp.PWM.CH4_TOP.Set(0xFFFF)
	rp.PWM.CH4_CTR.Set(0)
	rp.PWM.INTR.Set(1 << counterSlice)
	rp.PWM.INTE.SetBits(1 << counterSlice)
	rp.PWM.CH4_CSR.SetBits(rp.PWM_CH4_CSR_EN)
	return nil
}

func (c *Counter) Stop() {
	rp.PWM.CH4_CSR.ClearBits(rp.PWM_CH4_CSR_EN)
	rp.PWM.INTE.ClearBits(1 << counterSlice)
}

func (c *Counter) Count() uint32 {
	return rp.PWM.CH4_CTR.Get()
}

func (c *Counter) Reset() {
	rp.PWM.CH4_CTR.Set(0)
}

// Idle yields so the UART loop keeps running during the startup ramp
func (c *Counter) Idle() {
	runtime.Gosched()
}

var controller *core.MotorController

// attachInterrupts routes the PWM wraps to m
func attachInterrupts(m *core.MotorController) {
	controller = m
	rp.PWM.INTR.Set(1 << periodSlice)
	rp.PWM.INTE.SetBits(1 << periodSlice)
	irq := interrupt.New(rp.IRQ_PWM_IRQ_WRAP, pwmWrap)
	irq.SetPriority(0x40)
	irq.Enable()
}

func pwmWrap(interrupt.Interrupt) {
	status := rp.PWM.INTS.Get()
	rp.PWM.INTR.Set(status)

	if status&(1<<counterSlice) != 0 {
		controller.TimerOverflowEvent()
	}
	if status&(1<<periodSlice) != 0 {
		controller.PWMPeriodEvent()
	}
}
