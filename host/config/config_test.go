package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/retroenv/retrogolib/assert"
	"github.com/sirupsen/logrus"

	"i2cresponder/core"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, DefaultDevice, cfg.Serial.Device)
	assert.Equal(t, DefaultBaud, cfg.Serial.Baud)
	assert.Equal(t, uint16(DefaultAddress), cfg.Address)
	assert.Equal(t, logrus.InfoLevel, cfg.Level())
	assert.Equal(t, "", cfg.Redis.Addr)

	c := cfg.Core()
	assert.Equal(t, 5, c.Capacity)
	assert.Equal(t, uint16(core.DefaultInitialValue), c.InitialValue)
	assert.False(t, c.IndependentSelect)
}

func TestParse(t *testing.T) {
	data := []byte(`{
		// trace port
		serial: { device: "/dev/ttyUSB1", baud: 921600, },
		bus: { name: "1", speed_hz: 400000 },
		address: 66,
		redis: { addr: "localhost:6379" },
		responder: { capacity: 8, initial_value: 0, independent_select: true },
		log_level: "debug",
	}`)

	cfg, err := Parse(data)
	assert.NoError(t, err)

	assert.Equal(t, "/dev/ttyUSB1", cfg.Serial.Device)
	assert.Equal(t, 921600, cfg.Serial.Baud)
	assert.Equal(t, DefaultReadTimeout, cfg.Serial.ReadTimeout)
	assert.Equal(t, "1", cfg.Bus.Name)
	assert.Equal(t, int64(400000), cfg.Bus.SpeedHz)
	assert.Equal(t, uint16(0x42), cfg.Address)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "i2cresponder:", cfg.Redis.Prefix)
	assert.Equal(t, logrus.DebugLevel, cfg.Level())

	c := cfg.Core()
	assert.Equal(t, 8, c.Capacity)
	assert.Equal(t, uint16(0), c.InitialValue)
	assert.True(t, c.IndependentSelect)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{name: "syntax", data: `{ address: }`, want: "parse config"},
		{name: "address", data: `{ address: 200 }`, want: "not a 7-bit address"},
		{name: "level", data: `{ log_level: "loud" }`, want: "log_level"},
		{name: "capacity too small", data: `{ responder: { capacity: 2 } }`, want: "responder.capacity 2"},
		{name: "capacity too large", data: `{ responder: { capacity: 256 } }`, want: "responder.capacity 256"},
		{name: "capacity negative", data: `{ responder: { capacity: -1 } }`, want: "must be between 3 and 255"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestParseCapacityBounds(t *testing.T) {
	for _, n := range []string{"3", "255"} {
		cfg, err := Parse([]byte(`{ responder: { capacity: ` + n + ` } }`))
		assert.NoError(t, err)
		assert.Equal(t, cfg.Responder.Capacity, cfg.Core().Capacity)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "host.json5")
	assert.NoError(t, os.WriteFile(path, []byte(`{ address: 32 }`), 0o600))

	cfg, err := Load(path)
	assert.NoError(t, err)
	assert.Equal(t, uint16(0x20), cfg.Address)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json5"))
	assert.ErrorContains(t, err, "read config")
}
