package core

import (
	"encoding/binary"
	"errors"
	"sync"

	"i2cresponder/protocol"
)

// RegisterID selects a register with the first byte of a write transaction
type RegisterID uint8

// Register identifiers of the emulated device
const (
	RegNone       RegisterID = 0x00 // no explicit selection
	RegGetVoltage RegisterID = 0x08
	RegSetVoltage RegisterID = 0x09
)

func (id RegisterID) String() string {
	return hex8(uint8(id))
}

// SentinelValue is returned for reads of unknown registers
const SentinelValue = 0xFFFF

const (
	responseSize   = 2 // every read answers with one big-endian 16-bit word
	writeFrameSize = 3 // register + value high + value low
)

var (
	ErrUnknownRegister   = errors.New("unknown register")
	ErrReadOnly          = errors.New("register is read-only")
	ErrWriteOnly         = errors.New("register is write-only")
	ErrDuplicateRegister = errors.New("register already defined")
)

// Access flags of a register
type Access uint8

const (
	AccessRead Access = 1 << iota
	AccessWrite
)

func (a Access) String() string {
	switch a {
	case AccessRead:
		return "r"
	case AccessWrite:
		return "w"
	case AccessRead | AccessWrite:
		return "rw"
	}
	return "-"
}

// Register describes one addressable slot of the device
type Register struct {
	ID    RegisterID
	Name  string
	Read  func() uint16  // nil for write-only registers
	Write func(v uint16) // nil for read-only registers
}

// Access reports how the register can be used
func (r *Register) Access() Access {
	var a Access
	if r.Read != nil {
		a |= AccessRead
	}
	if r.Write != nil {
		a |= AccessWrite
	}
	return a
}

// WriteResult describes how a completed write transaction was interpreted
type WriteResult struct {
	Register   RegisterID
	HasPayload bool
	Value      uint16
}

// Dispatcher maps register traffic onto device state. Both calls run inside
// the bus event handlers and must not block.
type Dispatcher interface {
	// BuildResponse encodes the read response for reg into out and returns
	// its length. Unknown registers still produce the sentinel response
	// alongside ErrUnknownRegister.
	BuildResponse(reg RegisterID, out []byte) (int, error)

	// ApplyWrite interprets the accepted bytes of a write transaction.
	ApplyWrite(data []byte) (WriteResult, error)

	// Reset restores the device state to its power-on value.
	Reset()
}

// RegisterFile is a Dispatcher backed by a table of registers
type RegisterFile struct {
	mu    sync.RWMutex // guards definition only, lookups are lock-free after setup
	table [256]*Register
	order []RegisterID
	reset func()

	dictionary string
}

// NewRegisterFile creates an empty register file
func NewRegisterFile() *RegisterFile {
	return &RegisterFile{}
}

// Define adds a register. Registers are defined during setup, before the
// responder starts listening.
func (f *RegisterFile) Define(reg Register) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.table[reg.ID] != nil {
		return ErrDuplicateRegister
	}

	r := reg
	f.table[reg.ID] = &r
	f.order = append(f.order, reg.ID)
	f.rebuildDictionary()
	return nil
}

// OnReset sets the hook that restores device state
func (f *RegisterFile) OnReset(fn func()) {
	f.reset = fn
}

// Lookup finds a register by id
func (f *RegisterFile) Lookup(id RegisterID) (*Register, bool) {
	r := f.table[id]
	return r, r != nil
}

// LookupName finds a register by name
func (f *RegisterFile) LookupName(name string) (*Register, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, id := range f.order {
		if f.table[id].Name == name {
			return f.table[id], true
		}
	}
	return nil, false
}

// Registers returns the registers in definition order
func (f *RegisterFile) Registers() []Register {
	f.mu.RLock()
	defer f.mu.RUnlock()
	regs := make([]Register, 0, len(f.order))
	for _, id := range f.order {
		regs = append(regs, *f.table[id])
	}
	return regs
}

// Describe returns the register map, one "0xNN name access" line per register
func (f *RegisterFile) Describe() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dictionary
}

// Read returns the current value of a readable register
func (f *RegisterFile) Read(id RegisterID) (uint16, error) {
	r := f.table[id]
	if r == nil {
		return SentinelValue, ErrUnknownRegister
	}
	if r.Read == nil {
		return SentinelValue, ErrWriteOnly
	}
	return r.Read(), nil
}

func (f *RegisterFile) BuildResponse(reg RegisterID, out []byte) (int, error) {
	if len(out) < responseSize {
		return 0, protocol.ErrBufferOverflow
	}
	value, err := f.Read(reg)
	binary.BigEndian.PutUint16(out, value)
	return responseSize, err
}

// ApplyWrite treats a single byte as a register selection. Longer writes
// carry a big-endian value in bytes 1 and 2; a missing low byte reads as zero
// and anything past byte 2 is ignored.
func (f *RegisterFile) ApplyWrite(data []byte) (WriteResult, error) {
	if len(data) == 0 {
		return WriteResult{}, nil
	}

	res := WriteResult{Register: RegisterID(data[0])}
	if len(data) == 1 {
		return res, nil
	}

	res.HasPayload = true
	res.Value = uint16(data[1]) << 8
	if len(data) > 2 {
		res.Value |= uint16(data[2])
	}

	r := f.table[res.Register]
	if r == nil {
		return res, ErrUnknownRegister
	}
	if r.Write == nil {
		return res, ErrReadOnly
	}
	r.Write(res.Value)
	return res, nil
}

func (f *RegisterFile) Reset() {
	if f.reset != nil {
		f.reset()
	}
}

// rebuildDictionary must be called with the lock held
func (f *RegisterFile) rebuildDictionary() {
	dict := ""
	for _, id := range f.order {
		r := f.table[id]
		dict += hex8(uint8(id)) + " " + r.Name + " " + r.Access().String() + "\n"
	}
	f.dictionary = dict
}

// DeviceState is the emulated device: a single 16-bit value
type DeviceState struct {
	value   uint16
	initial uint16
}

// NewDeviceState creates a device holding initial
func NewDeviceState(initial uint16) *DeviceState {
	return &DeviceState{value: initial, initial: initial}
}

// Value returns the current value
func (d *DeviceState) Value() uint16 { return d.value }

// Set stores v
func (d *DeviceState) Set(v uint16) { d.value = v }

// Reset restores the initial value
func (d *DeviceState) Reset() { d.value = d.initial }

// NewVoltageRegisters builds the reference register map over dev: 0x08 reads
// the value, 0x09 writes it.
func NewVoltageRegisters(dev *DeviceState) *RegisterFile {
	f := NewRegisterFile()
	_ = f.Define(Register{ID: RegGetVoltage, Name: "get_voltage", Read: dev.Value})
	_ = f.Define(Register{ID: RegSetVoltage, Name: "set_voltage", Write: dev.Set})
	f.OnReset(dev.Reset)
	return f
}
