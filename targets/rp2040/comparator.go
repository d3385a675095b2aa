//go:build rp2040

package main

import (
	"machine"

	"gobldc/core"
)

// Comparator reads three external comparators, one per phase against the
// virtual neutral. Selecting an input picks which pin Output samples.
type Comparator struct {
	pins    [3]machine.Pin
	input   core.Phase
	enabled bool
}

// NewComparator uses the comparator outputs of phases A, B and C
func NewComparator(a, b, c machine.Pin) *Comparator {
	cmp := &Comparator{pins: [3]machine.Pin{a, b, c}}
	for _, p := range cmp.pins {
		p.Configure(machine.PinConfig{Mode: machine.PinInput})
	}
	return cmp
}

func (c *Comparator) Enable() error {
	c.enabled = true
	return nil
}

func (c *Comparator) Disable() {
	c.enabled = false
}

func (c *Comparator) SelectInput(p core.Phase) {
	c.input = p
}

func (c *Comparator) Output() bool {
	return c.enabled && c.pins[c.input%3].Get()
}
