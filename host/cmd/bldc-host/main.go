package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"gobldc/config"
	"gobldc/host/link"
	"gobldc/host/mq"
	"gobldc/host/serial"
)

var (
	device  = flag.String("device", "", "Serial device path (overrides BLDC_DEVICE)")
	baud    = flag.Int("baud", 0, "Baud rate (overrides BLDC_BAUD)")
	cfgPath = flag.String("config", "", "Controller YAML config (overrides BLDC_CONFIG)")
	mqURL   = flag.String("mq", "", "AMQP broker URL; bridge the link instead of opening a console")
)

func main() {
	flag.Parse()

	env, err := config.LoadEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *device != "" {
		env.Device = *device
	}
	if *baud != 0 {
		env.Baud = *baud
	}
	if *cfgPath != "" {
		env.Config = *cfgPath
	}
	if *mqURL != "" {
		env.AMQP = *mqURL
	}

	cfg, err := config.LoadFile(env.Config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	sc := serial.DefaultConfig(env.Device)
	sc.Baud = env.Baud
	l, err := link.Dial(sc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer l.Close()

	if env.AMQP != "" {
		if err := runBridge(l, env.AMQP); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	fmt.Printf("Connected to %s at %d baud\n", env.Device, env.Baud)
	if s, err := l.Version(time.Second); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	} else {
		printParameters(os.Stdout, s)
	}

	newShell(l, cfg).Run()
}

func runBridge(l *link.Link, url string) error {
	frames := l.Subscribe(256)
	b, err := mq.Dial(url, l)
	if err != nil {
		return err
	}
	defer b.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("Bridging to %s, control queue %s\n", url, b.Queue())
	err = b.Run(ctx, frames)
	if err == context.Canceled {
		return nil
	}
	if err == nil {
		err = l.Err()
	}
	return err
}
