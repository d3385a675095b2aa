//go:build !tinygo

package core

import "sync"

// State is the saved interrupt state. On regular Go there is nothing to save;
// the critical section is backed by a mutex so that simulated interrupt
// sources running on other goroutines still observe atomic updates.
type State uintptr

var criticalMu sync.Mutex

// disableInterrupts enters the critical section. Sections must not nest.
func disableInterrupts() State {
	criticalMu.Lock()
	return 0
}

// restoreInterrupts leaves the critical section
func restoreInterrupts(state State) {
	criticalMu.Unlock()
}
