// Command bldc-sim runs the motor controller against the simulated bench and
// prints the telemetry the controller would send over its UART.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"gobldc/config"
	"gobldc/core"
	"gobldc/protocol"
	"gobldc/sim"
)

var (
	cfgPath  = flag.String("config", "", "Controller YAML config (overrides BLDC_CONFIG)")
	duration = flag.Duration("duration", 3*time.Second, "Simulated time to run after handoff")
	setpoint = flag.Int("setpoint", 0, "Target speed in RPM (0 keeps the configured default)")
	load     = flag.Float64("load", sim.DefaultMotorParams().LoadRPM, "Load expressed as RPM lost at any duty")
	fullRPM  = flag.Float64("full-rpm", sim.DefaultMotorParams().FullDutyRPM, "No-load speed at 100% duty")
	ccw      = flag.Bool("ccw", false, "Spin counter-clockwise")
	every    = flag.Int("every", 10, "Print every Nth real-time frame, 0 prints none")
	events   = flag.Bool("events", false, "Dump the controller event ring at the end")
)

func main() {
	flag.Parse()

	env, err := config.LoadEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *cfgPath != "" {
		env.Config = *cfgPath
	}
	cfg, err := config.LoadFile(env.Config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	params := sim.DefaultMotorParams()
	params.LoadRPM = *load
	params.FullDutyRPM = *fullRPM

	if err := run(cfg, params); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg core.Config, params sim.MotorParams) error {
	bench := sim.NewBench(cfg, params)
	w := protocol.NewWriter(protocol.NewFifoBuffer(protocol.TxBufferSize))
	m, err := core.NewMotorController(cfg, bench.Hardware(), w)
	if err != nil {
		return err
	}
	bench.Attach(m)

	realtime := 0
	bench.AttachUART(w.TX(), 115200, func(f protocol.Frame) {
		t := bench.Now().Seconds()
		switch f.Kind {
		case protocol.FrameRealtime:
			realtime++
			if *every > 0 && realtime%*every == 0 {
				fmt.Printf("%8.3fs  speed %5d rpm  duty %4d  current %5d mA\n", t, f.Speed, f.Duty, f.Current)
			}
		case protocol.FrameScalar:
			fmt.Printf("%8.3fs  %s = %d\n", t, f.Param, f.Scalar)
		case protocol.FrameFloat:
			fmt.Printf("%8.3fs  %s = %g\n", t, f.Param, f.Float)
		}
	})

	core.SetDebugWriter(func(s string) { fmt.Println(s) })

	if *ccw {
		m.SetDirection(core.CounterClockwise)
	}
	if *setpoint != 0 {
		m.SetSetpoint(int32(*setpoint))
	}

	fmt.Printf("Starting %s, setpoint %d RPM, load %.0f RPM\n", m.Direction(), m.Setpoint(), params.LoadRPM)
	if err := m.Start(context.Background()); err != nil {
		if *events {
			core.DumpEvents()
		}
		return fmt.Errorf("startup failed at %v: %w", bench.Now(), err)
	}
	fmt.Printf("Handoff at %v, %d RPM\n", bench.Now().Round(time.Millisecond), m.SpeedRPM())

	bench.Run(*duration)

	if m.Running() {
		fmt.Printf("Running at %d RPM (rotor %.0f RPM), duty %d, current %d mA\n",
			m.SpeedRPM(), bench.Motor.RPM(), m.DutyCycle(), m.CurrentMA())
	} else {
		fmt.Printf("Stopped: %v\n", m.Fault())
	}
	sent, skipped := bench.UARTStats()
	fmt.Printf("UART: %d bytes, %d skipped, %d dropped\n", sent, skipped, w.TX().Dropped())

	if *events {
		core.DumpEvents()
	}
	return nil
}
