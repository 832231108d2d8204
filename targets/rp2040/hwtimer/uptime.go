//go:build rp2040 || rp2350

package hwtimer

import (
	"runtime/volatile"
	"unsafe"
)

var (
	rawHigh = (*volatile.Register32)(unsafe.Pointer(current.HighAddr()))
	rawLow  = (*volatile.Register32)(unsafe.Pointer(current.LowAddr()))
)

// Uptime returns microseconds since the timer started
func Uptime() uint64 {
	return combine(rawHigh.Get, rawLow.Get)
}
