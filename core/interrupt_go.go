//go:build !tinygo

package core

import "sync"

// State is a placeholder for interrupt state on regular Go
type State uintptr

// Hosted builds have no interrupt mask; a process-wide mutex gives the event
// handlers the same one-at-a-time guarantee.
var hostedInterrupts sync.Mutex

// disableInterrupts enters the critical section
func disableInterrupts() State {
	hostedInterrupts.Lock()
	return 0
}

// restoreInterrupts leaves the critical section
func restoreInterrupts(state State) {
	hostedInterrupts.Unlock()
}
