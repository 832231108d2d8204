// Package hwtimer reads the 64-bit microsecond timer of the RP2040 and RP2350.
//
// The two chips run the same 1MHz counter at different addresses. The layout
// for the chip being built is picked by build tag.
package hwtimer

// Layout locates the raw (non-latching) counter registers of one chip
type Layout struct {
	Base    uintptr
	RawHigh uintptr // offset of the upper 32 bits
	RawLow  uintptr // offset of the lower 32 bits
}

var (
	// RP2040 TIMER: TIMERAWH @ 0x08, TIMERAWL @ 0x0C
	RP2040 = Layout{Base: 0x40054000, RawHigh: 0x08, RawLow: 0x0C}
	// RP2350 TIMER0: TIMERAWH @ 0x24, TIMERAWL @ 0x28
	RP2350 = Layout{Base: 0x400B0000, RawHigh: 0x24, RawLow: 0x28}
)

// HighAddr returns the absolute address of the upper word
func (l Layout) HighAddr() uintptr { return l.Base + l.RawHigh }

// LowAddr returns the absolute address of the lower word
func (l Layout) LowAddr() uintptr { return l.Base + l.RawLow }

// combine reads high, low, high and retries until the high word is stable,
// so a carry between the two reads is never returned torn.
func combine(high, low func() uint32) uint64 {
	for {
		h1 := high()
		l := low()
		if h2 := high(); h1 == h2 {
			return uint64(h1)<<32 | uint64(l)
		}
	}
}
