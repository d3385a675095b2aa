package core

// PeriodTimer is the free-running timer used to measure commutation timing.
// It counts at Config.TickRate() and wraps at Config.TimerMax; the platform
// delivers each wrap to MotorController.TimerOverflowEvent.
type PeriodTimer interface {
	Start() error
	Stop()

	// Count returns the current counter value
	Count() uint32

	// Reset sets the counter to zero
	Reset()
}

// Idler may be implemented by a PeriodTimer that needs to be driven while
// the controller spins on it. Simulated hardware uses it to advance time,
// firmware to let other goroutines run during the startup ramp.
type Idler interface {
	Idle()
}
