//go:build rp2350

package hwtimer

var current = RP2350
