//go:build rp2040 || rp2350

package main

import (
	"machine"
)

// InitUSB initializes USB serial communication
func InitUSB() {
	// machine.Serial is USB CDC on the RP2040
	err := machine.Serial.Configure(machine.UARTConfig{})
	if err != nil {
		return
	}
}

// USBWriteBytes writes multiple bytes to USB
func USBWriteBytes(data []byte) (int, error) {
	return machine.Serial.Write(data)
}

// USBDebugWriter routes core debug output to USB
func USBDebugWriter(msg string) {
	_, _ = machine.Serial.Write([]byte(msg))
	_, _ = machine.Serial.Write([]byte("\r\n"))
}
