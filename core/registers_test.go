package core

import (
	"errors"
	"strings"
	"testing"

	"github.com/retroenv/retrogolib/assert"
)

func TestRegisterFileDefine(t *testing.T) {
	f := NewRegisterFile()

	assert.NoError(t, f.Define(Register{ID: 0x10, Name: "a", Read: func() uint16 { return 1 }}))
	err := f.Define(Register{ID: 0x10, Name: "b"})
	assert.True(t, errors.Is(err, ErrDuplicateRegister))

	r, ok := f.Lookup(0x10)
	assert.True(t, ok)
	assert.Equal(t, "a", r.Name)

	_, ok = f.Lookup(0x11)
	assert.False(t, ok)
}

func TestRegisterFileDescribe(t *testing.T) {
	f := NewVoltageRegisters(NewDeviceState(0))

	desc := f.Describe()
	assert.True(t, strings.Contains(desc, "0x08 get_voltage r\n"))
	assert.True(t, strings.Contains(desc, "0x09 set_voltage w\n"))

	regs := f.Registers()
	assert.Len(t, regs, 2)
	assert.Equal(t, RegGetVoltage, regs[0].ID)
	assert.Equal(t, AccessWrite, regs[1].Access())

	r, ok := f.LookupName("set_voltage")
	assert.True(t, ok)
	assert.Equal(t, RegSetVoltage, r.ID)
}

func TestRegisterFileBuildResponse(t *testing.T) {
	dev := NewDeviceState(3542)
	f := NewVoltageRegisters(dev)
	out := make([]byte, 5)

	n, err := f.BuildResponse(RegGetVoltage, out)
	assert.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, byte(0x0D), out[0])
	assert.Equal(t, byte(0xD6), out[1])

	tests := []struct {
		reg  RegisterID
		want error
	}{
		{reg: RegNone, want: ErrUnknownRegister},
		{reg: 0x7F, want: ErrUnknownRegister},
		{reg: RegSetVoltage, want: ErrWriteOnly},
	}
	for _, tt := range tests {
		n, err := f.BuildResponse(tt.reg, out)
		assert.True(t, errors.Is(err, tt.want))
		assert.Equal(t, 2, n)
		assert.Equal(t, byte(0xFF), out[0])
		assert.Equal(t, byte(0xFF), out[1])
	}

	_, err = f.BuildResponse(RegGetVoltage, out[:1])
	assert.Error(t, err)
}

func TestRegisterFileApplyWrite(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		want    WriteResult
		wantErr error
		value   uint16
	}{
		{
			name:  "empty",
			data:  nil,
			want:  WriteResult{},
			value: 3542,
		},
		{
			name:  "select only",
			data:  []byte{0x09},
			want:  WriteResult{Register: RegSetVoltage},
			value: 3542,
		},
		{
			name:  "full set",
			data:  []byte{0x09, 0x03, 0xE8},
			want:  WriteResult{Register: RegSetVoltage, HasPayload: true, Value: 1000},
			value: 1000,
		},
		{
			name:  "missing low byte",
			data:  []byte{0x09, 0x03},
			want:  WriteResult{Register: RegSetVoltage, HasPayload: true, Value: 0x0300},
			value: 0x0300,
		},
		{
			name:  "trailing bytes ignored",
			data:  []byte{0x09, 0x00, 0x05, 0xAA, 0xBB},
			want:  WriteResult{Register: RegSetVoltage, HasPayload: true, Value: 5},
			value: 5,
		},
		{
			name:    "unknown register",
			data:    []byte{0x33, 0x00, 0x05},
			want:    WriteResult{Register: 0x33, HasPayload: true, Value: 5},
			wantErr: ErrUnknownRegister,
			value:   3542,
		},
		{
			name:    "read-only register",
			data:    []byte{0x08, 0x00, 0x05},
			want:    WriteResult{Register: RegGetVoltage, HasPayload: true, Value: 5},
			wantErr: ErrReadOnly,
			value:   3542,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := NewDeviceState(3542)
			f := NewVoltageRegisters(dev)

			got, err := f.ApplyWrite(tt.data)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr))
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.value, dev.Value())
		})
	}
}

func TestRegisterFileReset(t *testing.T) {
	dev := NewDeviceState(3542)
	f := NewVoltageRegisters(dev)

	dev.Set(1)
	f.Reset()
	assert.Equal(t, uint16(3542), dev.Value())

	// a file without a reset hook is fine
	NewRegisterFile().Reset()
}

func TestAccessString(t *testing.T) {
	assert.Equal(t, "r", AccessRead.String())
	assert.Equal(t, "rw", (AccessRead | AccessWrite).String())
	assert.Equal(t, "-", Access(0).String())
}
