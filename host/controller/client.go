// Package controller talks to a register responder from the controller side
// of the bus.
package controller

import (
	"encoding/binary"
	"fmt"

	"tinygo.org/x/drivers"

	"i2cresponder/core"
)

// Client issues GET and SET transactions to one responder
type Client struct {
	bus  drivers.I2C
	addr uint16

	w [3]byte
	r [2]byte
}

// New creates a client for the responder at addr
func New(bus drivers.I2C, addr uint16) *Client {
	return &Client{bus: bus, addr: addr}
}

// Address returns the responder address
func (c *Client) Address() uint16 {
	return c.addr
}

// Select writes reg alone, choosing the register for the next read
func (c *Client) Select(reg core.RegisterID) error {
	c.w[0] = byte(reg)
	if err := c.bus.Tx(c.addr, c.w[:1], nil); err != nil {
		return fmt.Errorf("select %s: %w", reg, err)
	}
	return nil
}

// Read reads the response word of the currently selected register
func (c *Client) Read() (uint16, error) {
	if err := c.bus.Tx(c.addr, nil, c.r[:]); err != nil {
		return 0, fmt.Errorf("read: %w", err)
	}
	return binary.BigEndian.Uint16(c.r[:]), nil
}

// Get selects reg and reads its value. The select and the read are separate
// transactions with a stop in between.
func (c *Client) Get(reg core.RegisterID) (uint16, error) {
	if err := c.Select(reg); err != nil {
		return 0, err
	}
	v, err := c.Read()
	if err != nil {
		return 0, fmt.Errorf("get %s: %w", reg, err)
	}
	return v, nil
}

// Set writes v to reg
func (c *Client) Set(reg core.RegisterID, v uint16) error {
	c.w[0] = byte(reg)
	binary.BigEndian.PutUint16(c.w[1:], v)
	if err := c.bus.Tx(c.addr, c.w[:], nil); err != nil {
		return fmt.Errorf("set %s: %w", reg, err)
	}
	return nil
}

// GetValue reads the device value through the get register
func (c *Client) GetValue() (uint16, error) {
	return c.Get(core.RegGetVoltage)
}

// SetValue writes the device value through the set register
func (c *Client) SetValue(v uint16) error {
	return c.Set(core.RegSetVoltage, v)
}

// IsSentinel reports whether v is the answer given for unknown registers.
// A stored 0xFFFF reads back the same.
func IsSentinel(v uint16) bool {
	return v == core.SentinelValue
}
