// Package config loads the host tool configuration from a JSON5 file
package config

import (
	"fmt"
	"os"

	"github.com/flynn/json5"
	"github.com/sirupsen/logrus"

	"i2cresponder/core"
)

// Defaults
const (
	DefaultDevice      = "/dev/ttyACM0"
	DefaultBaud        = 115200
	DefaultReadTimeout = 100
	DefaultAddress     = 0x17
	DefaultLogLevel    = "info"
)

// Serial selects the port carrying the responder's trace frames
type Serial struct {
	Device      string `json:"device"`
	Baud        int    `json:"baud"`
	ReadTimeout int    `json:"read_timeout_ms"`
}

// Bus selects the host I2C bus used to reach the responder
type Bus struct {
	Name    string `json:"name"`     // "" picks the first bus
	SpeedHz int64  `json:"speed_hz"` // 0 keeps the bus default
}

// Redis configures mirroring of observed register writes
type Redis struct {
	Addr   string `json:"addr"` // empty disables mirroring
	Prefix string `json:"prefix"`
}

// Responder configures the simulated responder
type Responder struct {
	Capacity          int     `json:"capacity"`
	InitialValue      *uint16 `json:"initial_value"` // nil keeps the device default
	IndependentSelect bool    `json:"independent_select"`
}

// Config is the complete host configuration
type Config struct {
	Serial    Serial    `json:"serial"`
	Bus       Bus       `json:"bus"`
	Address   uint16    `json:"address"`
	Redis     Redis     `json:"redis"`
	Responder Responder `json:"responder"`
	LogLevel  string    `json:"log_level"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads a JSON5 file. Fields left out keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes JSON5 configuration data
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that defaults cannot repair
func (c *Config) Validate() error {
	if c.Address > 0x7F {
		return fmt.Errorf("address 0x%x: not a 7-bit address", c.Address)
	}
	if n := c.Responder.Capacity; n < core.MinCapacity || n > core.MaxCapacity {
		return fmt.Errorf("responder.capacity %d: must be between %d and %d", n, core.MinCapacity, core.MaxCapacity)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	return nil
}

// Level returns the configured log level
func (c *Config) Level() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

// Core returns the responder configuration for the simulator
func (c *Config) Core() core.Config {
	cfg := core.DefaultConfig()
	cfg.Capacity = c.Responder.Capacity
	cfg.IndependentSelect = c.Responder.IndependentSelect
	if c.Responder.InitialValue != nil {
		cfg.InitialValue = *c.Responder.InitialValue
	}
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Serial.Device == "" {
		c.Serial.Device = DefaultDevice
	}
	if c.Serial.Baud == 0 {
		c.Serial.Baud = DefaultBaud
	}
	if c.Serial.ReadTimeout == 0 {
		c.Serial.ReadTimeout = DefaultReadTimeout
	}
	if c.Address == 0 {
		c.Address = DefaultAddress
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = "i2cresponder:"
	}
	if c.Responder.Capacity == 0 {
		c.Responder.Capacity = core.DefaultConfig().Capacity
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
}
