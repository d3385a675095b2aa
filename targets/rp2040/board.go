//go:build rp2040

package main

import (
	"machine"

	"gobldc/core"
)

// Pin assignment of the driver board
const (
	pinUARTTX = machine.GPIO0
	pinUARTRX = machine.GPIO1

	pinSDA = machine.GPIO4
	pinSCL = machine.GPIO5

	// comparator outputs, phase A to C
	pinSenseA = machine.GPIO6
	pinSenseB = machine.GPIO7
	pinSenseC = machine.GPIO8

	// high-side gates on channel A of slices 5 to 7
	pinHighA = machine.GPIO10
	pinHighB = machine.GPIO12
	pinHighC = machine.GPIO14

	// low-side gates, consecutive for the PIO
	pinLowBase = machine.GPIO16

	pinButtonStop  = machine.GPIO20
	pinButtonStart = machine.GPIO21
)

const (
	baudRate        = 115200
	watchdogMS      = 5000
	prescalerPeriod = 128
)

// boardConfig adapts the controller defaults to the 125 MHz system clock.
// The period timer runs off slice 4 divided by 128.
func boardConfig() core.Config {
	cfg := core.DefaultConfig()
	cfg.CoreFrequency = machine.CPUFrequency()
	cfg.PrescalerPWM = 1
	cfg.PrescalerTimer = prescalerPeriod
	cfg.DeadTime = core.DeadTime{}
	return cfg
}
