//go:build rp2040

package hwtimer

var current = RP2040
