package core

import (
	"context"
	"time"
)

// Button identifies one of the two kit push buttons
type Button uint8

const (
	// ButtonStop stops a running motor, or reverses a stopped one
	ButtonStop Button = iota
	// ButtonStart starts a stopped motor, or steps the setpoint of a
	// running one
	ButtonStart
)

// LongPress is the hold time above which a ButtonStart release lowers the
// setpoint instead of raising it
const LongPress = 500 * time.Millisecond

// HandleButton acts on a debounced button release. held is how long the
// button was down. Starting the motor blocks like Start.
func (m *MotorController) HandleButton(ctx context.Context, b Button, held time.Duration) error {
	running := m.Running() || m.Starting()

	switch b {
	case ButtonStop:
		if running {
			m.Stop()
		} else {
			m.ToggleDirection()
		}
	case ButtonStart:
		if !running {
			return m.Start(ctx)
		}
		if held > LongPress {
			m.SpeedDecrease()
		} else {
			m.SpeedIncrease()
		}
	}
	return nil
}
