package core

import "math"

// StartupRamp generates the open-loop commutation delays of the sensorless
// startup. The delays approximate constant angular acceleration: the first
// three come from closed-form seeds, every later one is
//
//	next = prev * sum / (sum + prev)
//
// with sum accumulating the generated delays. All delays are in period timer
// ticks and the arithmetic is single precision so the sequence reproduces
// the firmware bit for bit.
type StartupRamp struct {
	seeds  [3]int
	minTop int

	top float32
	sum float32
	n   int
}

// StartupSeeds computes the first three startup delays
func StartupSeeds(cfg *Config) [3]int {
	var d [3]int
	d[0] = int(float32(cfg.StartupInitialPeriodMS*(cfg.CoreFrequency/1000)) / float32(cfg.PrescalerTimer))

	golden := float32(1.236)
	d[1] = int(0.5 * float64(d[0]) * float64(golden))

	ratio := float32(1) + float32(4*d[1])/float32(d[0]+d[1])
	d[2] = int(0.5 * float64(d[0]+d[1]) * (math.Sqrt(float64(ratio)) - 1))
	return d
}

// NewStartupRamp creates a ramp for cfg
func NewStartupRamp(cfg *Config) *StartupRamp {
	r := &StartupRamp{
		seeds:  StartupSeeds(cfg),
		minTop: cfg.StartupMinTop(),
	}
	r.Reset()
	return r
}

// Reset rewinds the ramp to its first delay
func (r *StartupRamp) Reset() {
	r.n = 0
	r.top = float32(r.seeds[0])

	// The running sum starts at three times the first seed
	r.sum = 0
	for i := 0; i < 3; i++ {
		r.sum += float32(r.seeds[0])
	}
}

// Done reports whether the last delay reached handoff speed
func (r *StartupRamp) Done() bool {
	return !(r.top > float32(r.minTop))
}

// Next returns the delay before the next forced commutation
func (r *StartupRamp) Next() float32 {
	if r.n < 3 {
		r.top = float32(r.seeds[r.n])
	} else {
		r.top = r.top * r.sum / (r.sum + r.top)
		r.sum += r.top
	}
	r.n++
	return r.top
}

// Count returns the number of delays generated so far
func (r *StartupRamp) Count() int {
	return r.n
}

// MinTop returns the handoff delay threshold in ticks
func (r *StartupRamp) MinTop() int {
	return r.minTop
}

// Delays generates the whole ramp, at most limit entries. The second return
// is false if the ramp did not reach handoff speed within limit.
func (r *StartupRamp) Delays(limit int) ([]float32, bool) {
	r.Reset()
	var out []float32
	for !r.Done() {
		if r.n >= limit {
			return out, false
		}
		out = append(out, r.Next())
	}
	return out, true
}
