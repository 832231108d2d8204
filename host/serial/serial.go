// Package serial opens the USB serial port carrying the responder's trace
// frames
package serial

import (
	"errors"
	"fmt"
	"io"
)

var (
	ErrNoConfig = errors.New("serial config missing")
	ErrNoDevice = errors.New("serial device not set")
	ErrBadBaud  = errors.New("serial baud rate must be positive")
)

// Port is a serial connection. Implementations:
// - a device opened with Open (github.com/tarm/serial)
// - any io.ReadWriteCloser wrapped with Wrap, for tests and replays
type Port interface {
	io.ReadWriteCloser

	// Flush discards unread input and unsent output
	Flush() error
}

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyACM0", "COM3")
	Device string

	// Baud rate (USB CDC ignores it)
	Baud int

	// Read timeout in milliseconds (0 = blocking)
	ReadTimeout int
}

// DefaultConfig returns the configuration for the responder's USB CDC port
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        115200,
		ReadTimeout: 100,
	}
}

// Validate checks that cfg names a device and a usable baud rate
func (c *Config) Validate() error {
	switch {
	case c == nil:
		return ErrNoConfig
	case c.Device == "":
		return ErrNoDevice
	case c.Baud <= 0:
		return ErrBadBaud
	case c.ReadTimeout < 0:
		return fmt.Errorf("serial read timeout %dms: must not be negative", c.ReadTimeout)
	}
	return nil
}

type wrapped struct {
	io.ReadWriteCloser
}

func (wrapped) Flush() error { return nil }

// Wrap adapts rwc to Port
func Wrap(rwc io.ReadWriteCloser) Port {
	return wrapped{rwc}
}

// TimeoutReader turns the zero-length reads of a port with a read timeout
// into a retry loop, so callers see either data or a real error
type TimeoutReader struct {
	Port  Port
	Tries int // consecutive empty reads before io.EOF, 0 retries forever
}

func (r *TimeoutReader) Read(b []byte) (int, error) {
	empty := 0
	for {
		n, err := r.Port.Read(b)
		if n > 0 || (err != nil && err != io.EOF) {
			return n, err
		}
		empty++
		if r.Tries > 0 && empty >= r.Tries {
			return 0, io.EOF
		}
	}
}
