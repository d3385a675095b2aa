package sim

// Timer is a scheduled bench event. WakeTime is in core clock ticks.
type Timer struct {
	WakeTime uint64
	Handler  func(*Timer) uint8

	next   *Timer
	queued bool
}

// Handler results
const (
	Done       = 0
	Reschedule = 1
)

// Scheduler is a discrete-event queue ordered by wake time. Timers with
// equal wake times run in insertion order.
type Scheduler struct {
	list *Timer
	now  uint64
}

// Now returns the simulated time in core clock ticks
func (s *Scheduler) Now() uint64 {
	return s.now
}

// Schedule adds t, moving it if it is already queued
func (s *Scheduler) Schedule(t *Timer) {
	if t.queued {
		s.Remove(t)
	}
	s.insert(t)
}

func (s *Scheduler) insert(t *Timer) {
	t.queued = true
	if s.list == nil || t.WakeTime < s.list.WakeTime {
		t.next = s.list
		s.list = t
		return
	}

	current := s.list
	for current.next != nil && current.next.WakeTime <= t.WakeTime {
		current = current.next
	}
	t.next = current.next
	current.next = t
}

// Remove unlinks t. Removing a timer that is not queued does nothing.
func (s *Scheduler) Remove(t *Timer) {
	if !t.queued {
		return
	}
	t.queued = false
	if s.list == t {
		s.list = t.next
		t.next = nil
		return
	}
	for current := s.list; current != nil; current = current.next {
		if current.next == t {
			current.next = t.next
			break
		}
	}
	t.next = nil
}

// Step advances to the earliest timer and runs it. It returns false when
// nothing is scheduled.
func (s *Scheduler) Step() bool {
	if s.list == nil {
		return false
	}
	s.dispatch()
	return true
}

// RunUntil runs every timer due up to deadline, then sets the clock to it
func (s *Scheduler) RunUntil(deadline uint64) {
	for s.list != nil && s.list.WakeTime <= deadline {
		s.dispatch()
	}
	if deadline > s.now {
		s.now = deadline
	}
}

func (s *Scheduler) dispatch() {
	t := s.list
	s.list = t.next
	t.next = nil
	t.queued = false

	if t.WakeTime > s.now {
		s.now = t.WakeTime
	}
	// The handler may have rescheduled t itself
	if t.Handler(t) == Reschedule && !t.queued {
		s.insert(t)
	}
}
