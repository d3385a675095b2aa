//go:build rp2040

package main

import (
	"context"
	"machine"
	"runtime/interrupt"
	"time"

	"gobldc/core"
	"gobldc/protocol"
)

var (
	tx   = protocol.NewFifoBuffer(protocol.TxBufferSize)
	uart = machine.UART0
)

// cmdErrors counts rejected commands and recovered panics
var cmdErrors uint32

func main() {
	// Clear any watchdog left armed by a previous image
	if err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0}); err != nil {
		return
	}

	uart.Configure(machine.UARTConfig{BaudRate: baudRate, TX: pinUARTTX, RX: pinUARTRX})

	hw := core.Hardware{
		Inverter:   NewInverter(pinHighA, pinHighB, pinHighC, pinLowBase),
		Comparator: NewComparator(pinSenseA, pinSenseB, pinSenseC),
		Timer:      NewCounter(prescalerPeriod),
	}
	if cs := NewCurrentSensor(machine.I2C0, pinSDA, pinSCL); cs != nil {
		hw.Current = cs
		go cs.Poll(2 * time.Millisecond)
	}

	ctrl, err := core.NewMotorController(boardConfig(), hw, protocol.NewWriter(tx))
	if err != nil {
		for {
			println("motor controller:", err.Error())
			time.Sleep(time.Second)
		}
	}
	attachInterrupts(ctrl)
	ctrl.SendParameters()

	// stdout is the USB serial port, the UART carries telemetry only
	core.SetDebugWriter(func(s string) { println(s) })
	var lastFault error

	machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: watchdogMS})
	machine.Watchdog.Start()

	ctx := context.Background()
	buttons := [...]*button{
		newButton(pinButtonStop, core.ButtonStop),
		newButton(pinButtonStart, core.ButtonStart),
	}
	var dec protocol.CommandDecoder

	for {
		// Recover so one bad command cannot take the firmware down
		func() {
			defer func() {
				if r := recover(); r != nil {
					cmdErrors++
					dec.Reset()
				}
			}()

			for uart.Buffered() > 0 {
				b, err := uart.ReadByte()
				if err != nil {
					break
				}
				if cmd, ok := dec.Feed(b); ok {
					execute(ctx, ctrl, cmd)
				}
			}

			now := time.Now()
			for _, b := range buttons {
				if held, ok := b.poll(now); ok {
					go ctrl.HandleButton(ctx, b.id, held)
				}
			}

			drainTX()

			if f := ctrl.Fault(); f != lastFault {
				if f != nil {
					println("fault:", f.Error())
					core.DumpEvents()
				}
				lastFault = f
			}
		}()

		machine.Watchdog.Update()
		time.Sleep(100 * time.Microsecond)
	}
}

// execute runs cmd on ctrl. Start blocks for the whole ramp, so it runs on
// its own goroutine and a Stop can still get through.
func execute(ctx context.Context, ctrl *core.MotorController, cmd protocol.Command) {
	if cmd.Kind == protocol.KindStart {
		go ctrl.Execute(ctx, cmd)
		return
	}
	if err := ctrl.Execute(ctx, cmd); err != nil {
		cmdErrors++
	}
}

var txChunk [64]byte

// drainTX moves telemetry from the interrupt-fed FIFO to the UART
func drainTX() {
	for {
		state := interrupt.Disable()
		n := tx.Read(txChunk[:])
		interrupt.Restore(state)
		if n == 0 {
			return
		}
		uart.Write(txChunk[:n])
	}
}
