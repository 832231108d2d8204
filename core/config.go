package core

import "i2cresponder/protocol"

// DefaultInitialValue is the value the emulated device reports after reset (3.542 V in mV)
const DefaultInitialValue = 3542

// Transaction buffer capacity bounds. A SET needs register plus two payload
// bytes; trace events carry the fill count in one byte.
const (
	MinCapacity = writeFrameSize
	MaxCapacity = 255
)

// Config holds responder settings. The zero value is usable.
type Config struct {
	// Capacity of each transaction buffer in bytes (default 5)
	Capacity int

	// InitialValue loaded into the device state on Init
	InitialValue uint16

	// IndependentSelect stops a payload write from changing the requested
	// register. The reference controller firmware relies on the coupling, so it
	// is off by default.
	IndependentSelect bool
}

// DefaultConfig returns the reference configuration
func DefaultConfig() Config {
	return Config{
		Capacity:     protocol.TransactionCapacity,
		InitialValue: DefaultInitialValue,
	}
}

// applyDefaults fills in values the responder cannot run without
func applyDefaults(cfg *Config) {
	switch {
	case cfg.Capacity < MinCapacity:
		cfg.Capacity = protocol.TransactionCapacity
	case cfg.Capacity > MaxCapacity:
		cfg.Capacity = MaxCapacity
	}
}
