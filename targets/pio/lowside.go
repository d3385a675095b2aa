//go:build rp2040 || rp2350

package pio

// Low-side gate driver. The three low-side transistors sit on consecutive
// pins and are switched together by a two-instruction program: every word
// pushed into the TX FIFO is latched onto the pins, bit 0 on the base pin.

import (
	"machine"

	rp2pio "github.com/tinygo-org/pio/rp2-pio"
)

func buildLowSideProgram() []uint16 {
	asm := rp2pio.AssemblerV0{SidesetBits: 0}
	return []uint16{
		// .wrap_target
		asm.Pull(false, true).Encode(),          // 0: pull block
		asm.Out(rp2pio.OutDestPins, 3).Encode(), // 1: out pins, 3
		// .wrap
	}
}

const lowSideOrigin = -1 // anywhere

// LowSide drives three low-side gates from one state machine
type LowSide struct {
	pio  *rp2pio.PIO
	sm   rp2pio.StateMachine
	base machine.Pin
	mask uint8
}

// NewLowSide claims state machine smNum of PIO block pioNum
func NewLowSide(pioNum, smNum uint8) *LowSide {
	hw := rp2pio.PIO0
	if pioNum != 0 {
		hw = rp2pio.PIO1
	}
	return &LowSide{pio: hw, sm: hw.StateMachine(smNum)}
}

// Init loads the program and drives base, base+1 and base+2 low
func (l *LowSide) Init(base machine.Pin) error {
	l.base = base
	l.sm.TryClaim()

	program := buildLowSideProgram()
	offset, err := l.pio.AddProgram(program, lowSideOrigin)
	if err != nil {
		return err
	}

	for i := machine.Pin(0); i < 3; i++ {
		(base + i).Configure(machine.PinConfig{Mode: l.pio.PinMode()})
	}

	cfg := rp2pio.DefaultStateMachineConfig()
	cfg.SetOutPins(base, 3)
	cfg.SetOutShift(true, false, 32)
	cfg.SetWrap(offset+uint8(len(program))-1, offset)
	cfg.SetClkDivIntFrac(1, 0)

	l.sm.Init(offset, cfg)
	l.sm.SetPindirsConsecutive(base, 3, true)
	l.sm.SetPinsConsecutive(base, 3, false)
	l.sm.SetEnabled(true)
	return nil
}

// Set switches on exactly the gates in mask. The FIFO is drained within a
// few system clocks so the wait is short.
func (l *LowSide) Set(mask uint8) {
	for l.sm.IsTxFIFOFull() {
	}
	l.sm.TxPut(uint32(mask & 0x7))
	l.mask = mask
}

// Mask returns the gates last requested
func (l *LowSide) Mask() uint8 {
	return l.mask
}

// Off opens all three gates immediately, dropping queued words
func (l *LowSide) Off() {
	l.sm.SetEnabled(false)
	l.sm.ClearFIFOs()
	l.sm.SetPinsConsecutive(l.base, 3, false)
	l.sm.Restart()
	l.sm.SetEnabled(true)
	l.mask = 0
}
