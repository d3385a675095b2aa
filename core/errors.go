package core

import "errors"

var (
	// ErrStall is reported when no commutation happened within the stall timeout
	ErrStall = errors.New("motor stalled")

	// ErrOvercurrent is reported when the measured current exceeds MaxCurrentMA
	ErrOvercurrent = errors.New("motor overcurrent")

	// ErrStartupTimeout is reported when the open-loop ramp did not reach
	// handoff speed within StartupMaxCommutations
	ErrStartupTimeout = errors.New("startup did not reach handoff speed")

	// ErrStartAborted is returned by Start when Stop was called before the
	// ramp reached handoff speed
	ErrStartAborted = errors.New("motor stopped during startup")

	// ErrStartInProgress is returned by Start while another Start is still
	// running the ramp
	ErrStartInProgress = errors.New("startup already in progress")

	ErrMissingHardware        = errors.New("hardware driver not configured")
	ErrUnsupportedCommutation = errors.New("unsupported commutation method")
	ErrInvalidConfig          = errors.New("invalid configuration")
	ErrInvalidGains           = errors.New("invalid PID gains")
)
