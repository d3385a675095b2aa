package core

import (
	"fmt"
	"math"
)

// Commutation methods
const (
	CommutationSensorless = "sensorless"
	CommutationHall       = "hall"
)

// Default timer overflow value of a 16-bit timer
const DefaultTimerMax = 65536

// Config holds every tunable of the controller. The zero value is not
// usable; start from DefaultConfig.
type Config struct {
	// Motor
	PolePairs         uint32 `yaml:"pole_pairs"`
	CommutationMethod string `yaml:"commutation_method"`

	// Speed setpoint (RPM)
	DefaultSetpointRPM int32 `yaml:"default_setpoint_rpm"`
	SetpointMinRPM     int32 `yaml:"setpoint_min_rpm"`
	SetpointMaxRPM     int32 `yaml:"setpoint_max_rpm"`
	SpeedIncrementRPM  int32 `yaml:"speed_increment_rpm"`

	// PWM waveform
	PWMPeriodUS       uint32   `yaml:"pwm_period_us"`
	PWMMinPercent     float64  `yaml:"pwm_min_percent"`
	PWMMaxPercent     float64  `yaml:"pwm_max_percent"`
	PWMDefaultPercent uint32   `yaml:"pwm_default_percent"`
	DeadTime          DeadTime `yaml:"dead_time"`

	// Timing
	CoreFrequency  uint32 `yaml:"core_frequency"`
	PrescalerPWM   uint32 `yaml:"prescaler_pwm"`
	PrescalerTimer uint32 `yaml:"prescaler_timer"`
	TimerMax       uint32 `yaml:"timer_max"`
	PIDPeriodMS    uint32 `yaml:"pid_period_ms"`
	StallTimeoutMS uint32 `yaml:"stall_timeout_ms"`

	// Commutations after handoff before the PID regulator is enabled
	PIDStartupCommutations int `yaml:"pid_startup_commutations"`

	// Sensorless startup ramp
	StartupInitialPeriodMS uint32 `yaml:"startup_initial_period_ms"`
	StartupFinalSpeedRPM   uint32 `yaml:"startup_final_speed_rpm"`
	StartupMaxCommutations int    `yaml:"startup_max_commutations"`

	// Overcurrent protection, 0 disables it
	MaxCurrentMA int32 `yaml:"max_current_ma"`

	Gains Gains `yaml:"gains"`
}

// DefaultConfig returns the reference configuration for the EFR32MG24 kit
// with its bundled three pole-pair motor
func DefaultConfig() Config {
	return Config{
		PolePairs:         3,
		CommutationMethod: CommutationSensorless,

		DefaultSetpointRPM: 2800,
		SetpointMinRPM:     500,
		SetpointMaxRPM:     35000,
		SpeedIncrementRPM:  800,

		PWMPeriodUS:       80,
		PWMMinPercent:     1.0,
		PWMMaxPercent:     90.0,
		PWMDefaultPercent: 8,
		DeadTime: DeadTime{
			Prescaler:     15,
			RisingCycles:  4,
			FallingCycles: 4,
		},

		CoreFrequency:  39000000,
		PrescalerPWM:   1,
		PrescalerTimer: 32,
		TimerMax:       DefaultTimerMax,
		PIDPeriodMS:    24,
		StallTimeoutMS: 500,

		PIDStartupCommutations: 30,

		StartupInitialPeriodMS: 50,
		StartupFinalSpeedRPM:   2800,
		StartupMaxCommutations: 4096,

		MaxCurrentMA: 10000,

		// These work well for the kit motor. They are negative because the
		// regulator error is measured - setpoint.
		Gains: Gains{Kp: -0.006, Ki: -0.000012, Kd: -0.020},
	}
}

// Validate checks that the derived values are computable and consistent
func (c *Config) Validate() error {
	switch {
	case c.PolePairs == 0:
		return fmt.Errorf("%w: pole_pairs must be positive", ErrInvalidConfig)
	case c.CoreFrequency < 1000:
		return fmt.Errorf("%w: core_frequency too low", ErrInvalidConfig)
	case c.PrescalerPWM == 0 || c.PrescalerTimer == 0:
		return fmt.Errorf("%w: prescalers must be positive", ErrInvalidConfig)
	case c.TimerMax == 0:
		return fmt.Errorf("%w: timer_max must be positive", ErrInvalidConfig)
	case c.PWMPeriodUS == 0:
		return fmt.Errorf("%w: pwm_period_us must be positive", ErrInvalidConfig)
	case c.PWMTop() < 2:
		return fmt.Errorf("%w: pwm period shorter than two timer counts", ErrInvalidConfig)
	case c.MinDuty() > c.MaxDuty():
		return fmt.Errorf("%w: pwm_min_percent above pwm_max_percent", ErrInvalidConfig)
	case c.SetpointMinRPM > c.SetpointMaxRPM:
		return fmt.Errorf("%w: setpoint_min_rpm above setpoint_max_rpm", ErrInvalidConfig)
	case c.PIDPrescaler() == 0:
		return fmt.Errorf("%w: pid_period_ms shorter than the pwm period", ErrInvalidConfig)
	case c.StartupInitialPeriodMS == 0 || c.StartupFinalSpeedRPM == 0:
		return fmt.Errorf("%w: startup ramp needs an initial period and a final speed", ErrInvalidConfig)
	case c.StartupMaxCommutations <= 0:
		return fmt.Errorf("%w: startup_max_commutations must be positive", ErrInvalidConfig)
	}
	if c.CommutationMethod != CommutationSensorless {
		return fmt.Errorf("%w: %q", ErrUnsupportedCommutation, c.CommutationMethod)
	}
	return c.Gains.validate()
}

// pwmCountsPerMS is the PWM timer clock in counts per millisecond
func (c *Config) pwmCountsPerMS() uint32 {
	return (c.CoreFrequency / c.PrescalerPWM) / 1000
}

// PWMTop is the PWM period in PWM timer counts
func (c *Config) PWMTop() uint32 {
	return (c.pwmCountsPerMS() * c.PWMPeriodUS) / 1000
}

// DefaultDuty is the duty cycle used at startup and after a stop
func (c *Config) DefaultDuty() int32 {
	return int32((c.pwmCountsPerMS() * (c.PWMPeriodUS * c.PWMDefaultPercent)) / (100 * 1000))
}

// MinDuty is the lowest duty cycle the regulator may command
func (c *Config) MinDuty() int32 {
	return c.percentDuty(c.PWMMinPercent)
}

// MaxDuty is the highest duty cycle the regulator may command
func (c *Config) MaxDuty() int32 {
	return c.percentDuty(c.PWMMaxPercent)
}

func (c *Config) percentDuty(percent float64) int32 {
	return int32(float64(c.pwmCountsPerMS()) * (float64(c.PWMPeriodUS) * percent) / (100 * 1000))
}

// PIDPrescaler is the number of PWM periods between regulator ticks
func (c *Config) PIDPrescaler() uint32 {
	return (c.PIDPeriodMS * 1000) / c.PWMPeriodUS
}

// StallTimeoutOverflows is the number of period timer overflows without a
// commutation that is tolerated before the motor is declared stalled
func (c *Config) StallTimeoutOverflows() uint32 {
	return uint32((uint64(c.StallTimeoutMS) * uint64(c.CoreFrequency/1000)) /
		(uint64(c.TimerMax) * uint64(c.PrescalerTimer)))
}

// TickRate is the period timer frequency in Hz
func (c *Config) TickRate() uint32 {
	return c.CoreFrequency / c.PrescalerTimer
}

// TickScale is the number of PWM timer counts per period timer tick
func (c *Config) TickScale() uint32 {
	return c.PrescalerTimer / c.PrescalerPWM
}

// rpmNumerator is 60 * tick rate / pole pairs, shared by both conversions
func (c *Config) rpmNumerator() int64 {
	return (60 * int64(c.TickRate())) / int64(c.PolePairs)
}

// CountToRPM converts an electrical period in ticks to mechanical RPM.
// A zero period means the speed is unknown and reports 0.
func (c *Config) CountToRPM(ticks uint32) int32 {
	if ticks == 0 {
		return 0
	}
	return clampInt32(c.rpmNumerator() / int64(ticks))
}

// RPMToCount converts mechanical RPM to an electrical period in ticks
func (c *Config) RPMToCount(rpm int32) uint32 {
	if rpm <= 0 {
		return 0
	}
	return uint32(c.rpmNumerator() / int64(rpm))
}

// StartupMinTop is the inter-commutation delay, in ticks, at which the
// startup ramp hands over to back-EMF commutation
func (c *Config) StartupMinTop() int {
	return int((10 * int64(c.TickRate())) / (int64(c.StartupFinalSpeedRPM) * int64(c.PolePairs)))
}

func clampInt32(v int64) int32 {
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	if v < math.MinInt32 {
		return math.MinInt32
	}
	return int32(v)
}
