//go:build rp2040

package main

import (
	"machine"
	"time"

	"gobldc/core"
)

const debounce = 20 * time.Millisecond

// button tracks one active-low push button and reports debounced releases
// with the time it was held
type button struct {
	pin  machine.Pin
	id   core.Button
	down bool
	edge time.Time
	held time.Time
}

func newButton(pin machine.Pin, id core.Button) *button {
	pin.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	return &button{pin: pin, id: id}
}

// poll returns true and the hold time once per release
func (b *button) poll(now time.Time) (time.Duration, bool) {
	pressed := !b.pin.Get()
	if pressed == b.down {
		b.edge = now
		return 0, false
	}
	if now.Sub(b.edge) < debounce {
		return 0, false
	}
	b.down = pressed
	b.edge = now
	if pressed {
		b.held = now
		return 0, false
	}
	return now.Sub(b.held), true
}
