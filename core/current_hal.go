package core

// CurrentSensor measures motor current. It is optional.
type CurrentSensor interface {
	// SetMeasurementPoint moves the sampling instant, in PWM timer counts
	// from the start of the period
	SetMeasurementPoint(count uint32)

	// CurrentMA returns the latest measurement in milliamperes
	CurrentMA() int32
}

// Hardware bundles the peripherals owned by one motor controller
type Hardware struct {
	Inverter   InverterDriver
	Comparator ComparatorDriver
	Timer      PeriodTimer
	Current    CurrentSensor // may be nil
}
