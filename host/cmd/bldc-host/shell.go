package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/abiosoft/ishell"

	"gobldc/core"
	"gobldc/host/link"
	"gobldc/protocol"
)

func newShell(l *link.Link, cfg core.Config) *ishell.Shell {
	shell := ishell.New()
	shell.Println("BLDC controller console, 'help' lists commands")
	shell.ShowPrompt(true)

	simple := func(name, help string, send func() error) {
		shell.AddCmd(&ishell.Cmd{
			Name: name,
			Help: help,
			Func: func(c *ishell.Context) {
				if err := send(); err != nil {
					c.Err(err)
				}
			},
		})
	}
	simple("start", "spin the motor up", l.Start)
	simple("stop", "coast the motor", l.Stop)
	simple("dir", "reverse the direction (motor must be stopped)", l.ChangeDirection)

	shell.AddCmd(&ishell.Cmd{
		Name: "speed",
		Help: "speed <rpm>: set the target speed",
		Func: func(c *ishell.Context) {
			rpm, err := parseSetpoint(c.Args, cfg)
			if err != nil {
				c.Err(err)
				return
			}
			if err := l.SetSetpoint(rpm); err != nil {
				c.Err(err)
			}
		},
	})

	step := func(sign int32) func(c *ishell.Context) {
		return func(c *ishell.Context) {
			rpm := clampSetpoint(int32(l.Status().Setpoint)+sign*cfg.SpeedIncrementRPM, cfg)
			if err := l.SetSetpoint(rpm); err != nil {
				c.Err(err)
				return
			}
			c.Printf("setpoint %d RPM\n", rpm)
		}
	}
	shell.AddCmd(&ishell.Cmd{Name: "faster", Help: "raise the setpoint one increment", Func: step(1)})
	shell.AddCmd(&ishell.Cmd{Name: "slower", Help: "lower the setpoint one increment", Func: step(-1)})

	shell.AddCmd(&ishell.Cmd{
		Name: "pid",
		Help: "pid <kp> <ki> <kd>: replace the regulator gains",
		Func: func(c *ishell.Context) {
			g, err := parseGains(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			if err := l.SetPID(g.Kp, g.Ki, g.Kd); err != nil {
				c.Err(err)
			}
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "version",
		Help: "request the version signature and parameters",
		Func: func(c *ishell.Context) {
			s, err := l.Version(time.Second)
			if err != nil {
				c.Err(err)
				return
			}
			printParameters(shellWriter{c}, s)
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "status",
		Help: "print the last reported values",
		Func: func(c *ishell.Context) {
			printStatus(shellWriter{c}, l.Status(), l.Skipped())
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name:      "watch",
		Help:      "watch [seconds]: print telemetry frames as they arrive",
		Completer: func([]string) []string { return []string{"1", "5", "10"} },
		Func: func(c *ishell.Context) {
			d := 5 * time.Second
			if len(c.Args) > 0 {
				secs, err := strconv.ParseFloat(c.Args[0], 64)
				if err != nil || secs <= 0 {
					c.Err(fmt.Errorf("invalid duration %q", c.Args[0]))
					return
				}
				d = time.Duration(secs * float64(time.Second))
			}
			watch(shellWriter{c}, l, d)
		},
	})

	return shell
}

// shellWriter adapts an ishell context to io.Writer
type shellWriter struct {
	c *ishell.Context
}

func (w shellWriter) Write(p []byte) (int, error) {
	w.c.Print(string(p))
	return len(p), nil
}

func watch(w io.Writer, l *link.Link, d time.Duration) {
	frames := l.Subscribe(64)
	defer l.Unsubscribe(frames)

	timeout := time.After(d)
	for {
		select {
		case f, ok := <-frames:
			if !ok {
				return
			}
			fmt.Fprintln(w, formatFrame(f))
		case <-timeout:
			return
		}
	}
}

func parseSetpoint(args []string, cfg core.Config) (int32, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("usage: speed <rpm>")
	}
	v, err := strconv.ParseInt(args[0], 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid speed %q", args[0])
	}
	if int32(v) < cfg.SetpointMinRPM || int32(v) > cfg.SetpointMaxRPM {
		return 0, fmt.Errorf("speed %d outside %d..%d RPM", v, cfg.SetpointMinRPM, cfg.SetpointMaxRPM)
	}
	return int32(v), nil
}

func clampSetpoint(rpm int32, cfg core.Config) int32 {
	switch {
	case rpm < cfg.SetpointMinRPM:
		return cfg.SetpointMinRPM
	case rpm > cfg.SetpointMaxRPM:
		return cfg.SetpointMaxRPM
	}
	return rpm
}

func parseGains(args []string) (core.Gains, error) {
	if len(args) != 3 {
		return core.Gains{}, fmt.Errorf("usage: pid <kp> <ki> <kd>")
	}
	var v [3]float32
	for i, a := range args {
		f, err := strconv.ParseFloat(a, 32)
		if err != nil {
			return core.Gains{}, fmt.Errorf("invalid gain %q", a)
		}
		v[i] = float32(f)
	}
	return core.Gains{Kp: v[0], Ki: v[1], Kd: v[2]}, nil
}

func formatFrame(f protocol.Frame) string {
	switch f.Kind {
	case protocol.FrameRealtime:
		return fmt.Sprintf("rt    speed=%d rpm duty=%d current=%d mA", f.Speed, f.Duty, f.Current)
	case protocol.FrameScalar:
		return fmt.Sprintf("param %s=%d", f.Param, f.Scalar)
	case protocol.FrameFloat:
		return fmt.Sprintf("param %s=%g", f.Param, f.Float)
	case protocol.FrameVersion:
		return "version " + protocol.VersionSignature
	}
	return "?"
}

func printParameters(w io.Writer, s link.Status) {
	dir := "ccw"
	if s.Clockwise {
		dir = "cw"
	}
	fmt.Fprintf(w, "setpoint %d RPM, direction %s\n", s.Setpoint, dir)
	fmt.Fprintf(w, "gains kp=%g ki=%g kd=%g\n", s.Kp, s.Ki, s.Kd)
}

func printStatus(w io.Writer, s link.Status, skipped uint32) {
	fmt.Fprintf(w, "speed %d RPM, duty %d, current %d mA\n", s.SpeedRPM, s.Duty, s.CurrentMA)
	printParameters(w, s)
	fmt.Fprintf(w, "%d frames, %d bytes skipped\n", s.Frames, skipped)
}
