package core

// Phase identifies one of the three motor terminals
type Phase uint8

const (
	PhaseA Phase = iota
	PhaseB
	PhaseC
)

// Mask returns the single-bit channel mask for the phase
func (p Phase) Mask() uint8 {
	return 1 << p
}

func (p Phase) String() string {
	switch p {
	case PhaseA:
		return "A"
	case PhaseB:
		return "B"
	case PhaseC:
		return "C"
	default:
		return "?"
	}
}

// DeadTime describes the dead-time generator setup shared by all channels.
// It is applied once when the inverter is configured.
type DeadTime struct {
	Prescaler     uint32 `yaml:"prescaler"`
	RisingCycles  uint32 `yaml:"rising_cycles"`
	FallingCycles uint32 `yaml:"falling_cycles"`
}

// InverterDriver is the abstract three-phase half-bridge interface.
// Platform-specific implementations drive the actual transistors.
type InverterDriver interface {
	// Configure sets up three complementary PWM channels counting to top,
	// with the given dead time inserted on every edge
	Configure(top uint32, dt DeadTime) error

	// Route enables PWM on the high-side channels in highMask and switches
	// the low-side transistors in lowMask fully on. All other outputs are off.
	Route(highMask, lowMask uint8)

	// SetCompare updates the shared duty register of all three channels
	SetCompare(value uint32)

	// Off disables all PWM channels and clears the low-side outputs (coast)
	Off()
}
