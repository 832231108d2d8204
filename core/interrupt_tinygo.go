//go:build tinygo

package core

import "runtime/interrupt"

// disableInterrupts masks interrupts so an event handler runs to completion
// without a nested bus event
func disableInterrupts() interrupt.State {
	return interrupt.Disable()
}

// restoreInterrupts restores the interrupt state
func restoreInterrupts(state interrupt.State) {
	interrupt.Restore(state)
}
