package controller

import (
	"fmt"

	"periph.io/x/periph/conn/i2c"
	"periph.io/x/periph/conn/i2c/i2creg"
	"periph.io/x/periph/conn/physic"
	"periph.io/x/periph/host"
)

// OpenBus opens a host I2C bus by name ("" picks the first one) and sets its
// clock when speedHz is non-zero. The returned bus satisfies drivers.I2C.
func OpenBus(name string, speedHz int64) (i2c.BusCloser, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("host init: %w", err)
	}

	bus, err := i2creg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %q: %w", name, err)
	}

	if speedHz > 0 {
		if err := bus.SetSpeed(physic.Frequency(speedHz) * physic.Hertz); err != nil {
			bus.Close()
			return nil, fmt.Errorf("set bus speed %d Hz: %w", speedHz, err)
		}
	}
	return bus, nil
}
