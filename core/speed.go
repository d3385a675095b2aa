package core

// SpeedEstimator measures the electrical period, the number of period timer
// ticks spent on the last six commutations
type SpeedEstimator struct {
	timer    PeriodTimer
	timerMax uint32
	cfg      *Config

	period    uint32
	overflows uint32
}

// NewSpeedEstimator creates an estimator on top of timer
func NewSpeedEstimator(timer PeriodTimer, cfg *Config) *SpeedEstimator {
	return &SpeedEstimator{
		timer:    timer,
		timerMax: cfg.TimerMax,
		cfg:      cfg,
	}
}

// Reset forgets the last measurement and the accumulated overflows
func (s *SpeedEstimator) Reset() {
	s.period = 0
	s.overflows = 0
}

// Overflow records one period timer wrap inside the current window
func (s *SpeedEstimator) Overflow() {
	s.overflows++
}

// Latch stores the ticks elapsed since the previous latch, including timer
// wraps, as the electrical period and restarts the window
func (s *SpeedEstimator) Latch() uint32 {
	p := uint64(s.timer.Count())
	s.timer.Reset()
	if s.overflows > 0 {
		p += uint64(s.overflows) * uint64(s.timerMax)
		s.overflows = 0
	}
	if p > uint64(^uint32(0)) {
		p = uint64(^uint32(0))
	}
	s.period = uint32(p)
	return s.period
}

// SetPeriod overrides the electrical period, used by the startup ramp
func (s *SpeedEstimator) SetPeriod(ticks uint32) {
	s.period = ticks
}

// Period returns the last electrical period in ticks, 0 if never measured
func (s *SpeedEstimator) Period() uint32 {
	return s.period
}

// RPM returns the speed of the last electrical period, 0 if unknown
func (s *SpeedEstimator) RPM() int32 {
	return s.cfg.CountToRPM(s.period)
}

// ToRPM converts ticks per electrical revolution to mechanical RPM
func (s *SpeedEstimator) ToRPM(ticks uint32) int32 {
	return s.cfg.CountToRPM(ticks)
}
