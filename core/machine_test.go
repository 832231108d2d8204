package core

import (
	"bytes"
	"testing"

	"github.com/retroenv/retrogolib/assert"
)

// writeTxn runs a complete controller write of data followed by a stop and
// returns the command issued for the stop.
func writeTxn(t *testing.T, m *Machine, data ...byte) Command {
	t.Helper()

	cmd := m.Handle(Event{Kind: EventAddressMatched, Direction: ControllerWrites})
	assert.Equal(t, Receiving, m.Mode())

	for _, b := range data {
		if cmd.Kind != CmdReceive {
			break // reception refused, the port would NACK the rest
		}
		assert.Equal(t, 1, len(cmd.Buf))
		assert.False(t, cmd.Final)
		cmd.Buf[0] = b
		cmd = m.Handle(Event{Kind: EventByteReceived})
	}

	return m.Handle(Event{Kind: EventListenComplete})
}

// readTxn runs a controller read phase and returns the transmitted bytes
func readTxn(t *testing.T, m *Machine) []byte {
	t.Helper()

	cmd := m.Handle(Event{Kind: EventAddressMatched, Direction: ControllerReads})
	assert.Equal(t, CmdTransmit, cmd.Kind)
	assert.True(t, cmd.Final)
	assert.Equal(t, Transmitting, m.Mode())
	out := append([]byte(nil), cmd.Buf...)

	m.Handle(Event{Kind: EventTransferComplete, Direction: ControllerReads})
	assert.Equal(t, 0, m.OutboundLen())

	stop := m.Handle(Event{Kind: EventListenComplete})
	assert.Equal(t, CmdRearmListen, stop.Kind)
	return out
}

func get(t *testing.T, m *Machine, reg RegisterID) []byte {
	t.Helper()
	writeTxn(t, m, byte(reg))
	return readTxn(t, m)
}

func newTestMachine(cfg Config) (*Machine, *DeviceState) {
	m, dev := NewVoltageMachine(cfg)
	m.Reset()
	return m, dev
}

func TestMachineReset(t *testing.T) {
	m, dev := NewVoltageMachine(DefaultConfig())
	dev.Set(7)

	cmd := m.Reset()
	assert.Equal(t, CmdRearmListen, cmd.Kind)
	assert.Equal(t, Listening, m.Mode())
	assert.Equal(t, RegNone, m.Requested())
	assert.Equal(t, uint16(DefaultInitialValue), dev.Value())
	assert.Equal(t, 0, m.InboundLen())
	assert.Equal(t, 0, m.OutboundLen())
}

func TestMachineGetDefault(t *testing.T) {
	m, _ := newTestMachine(DefaultConfig())

	stop := writeTxn(t, m, byte(RegGetVoltage))
	assert.Equal(t, CmdRearmListen, stop.Kind)
	assert.Equal(t, RegGetVoltage, m.Requested())
	assert.Equal(t, Listening, m.Mode())

	out := readTxn(t, m)
	assert.True(t, bytes.Equal([]byte{0x0D, 0xD6}, out))
	assert.Equal(t, RegNone, m.Requested())
}

func TestMachineSetThenGetEveryValue(t *testing.T) {
	m, dev := newTestMachine(DefaultConfig())

	for v := 0; v <= 0xFFFF; v++ {
		writeTxn(t, m, byte(RegSetVoltage), byte(v>>8), byte(v))
		if dev.Value() != uint16(v) {
			t.Fatalf("SET %d stored %d", v, dev.Value())
		}
		out := get(t, m, RegGetVoltage)
		if len(out) != 2 || out[0] != byte(v>>8) || out[1] != byte(v) {
			t.Fatalf("GET after SET %d returned %v", v, out)
		}
	}
}

func TestMachineUnknownRegisterRead(t *testing.T) {
	m, dev := newTestMachine(DefaultConfig())

	for _, value := range []uint16{0, 1000, 0xFFFF} {
		dev.Set(value)
		out := get(t, m, 0x42)
		assert.True(t, bytes.Equal([]byte{0xFF, 0xFF}, out))
	}

	// a read with no selection at all reads register 0
	out := readTxn(t, m)
	assert.True(t, bytes.Equal([]byte{0xFF, 0xFF}, out))
	assert.Equal(t, uint32(4), m.Stats().UnknownRegisters)
}

func TestMachineSelectOnlyKeepsState(t *testing.T) {
	m, dev := newTestMachine(DefaultConfig())

	writeTxn(t, m, byte(RegSetVoltage))

	assert.Equal(t, RegSetVoltage, m.Requested())
	assert.Equal(t, uint16(DefaultInitialValue), dev.Value())
	assert.Equal(t, uint32(1), m.Stats().Selects)
	assert.Equal(t, uint32(0), m.Stats().Writes)
}

func TestMachineEmptyWrite(t *testing.T) {
	m, dev := newTestMachine(DefaultConfig())
	writeTxn(t, m, byte(RegGetVoltage))

	// address + stop with no data leaves the selection alone
	stop := writeTxn(t, m)
	assert.Equal(t, CmdRearmListen, stop.Kind)
	assert.Equal(t, RegGetVoltage, m.Requested())
	assert.Equal(t, uint16(DefaultInitialValue), dev.Value())
}

func TestMachineSetScenario(t *testing.T) {
	m, dev := newTestMachine(DefaultConfig())

	assert.True(t, bytes.Equal([]byte{0x0D, 0xD6}, get(t, m, RegGetVoltage)))

	cmd := m.Handle(Event{Kind: EventAddressMatched, Direction: ControllerWrites})
	for _, b := range []byte{0x09, 0x03, 0xE8} {
		cmd.Buf[0] = b
		cmd = m.Handle(Event{Kind: EventByteReceived})
	}
	assert.True(t, bytes.Equal([]byte{0x09, 0x03, 0xE8}, m.Inbound()))

	m.Handle(Event{Kind: EventListenComplete})
	assert.Equal(t, uint16(1000), dev.Value())
	assert.Equal(t, 0, m.InboundLen())

	assert.True(t, bytes.Equal([]byte{0x03, 0xE8}, get(t, m, RegGetVoltage)))
}

func TestMachineTwoByteWrite(t *testing.T) {
	m, dev := newTestMachine(DefaultConfig())

	writeTxn(t, m, byte(RegSetVoltage), 0x12)
	assert.Equal(t, uint16(0x1200), dev.Value())
}

func TestMachineUnknownRegisterWrite(t *testing.T) {
	m, dev := newTestMachine(DefaultConfig())

	writeTxn(t, m, 0x42, 0x00, 0x01)
	assert.Equal(t, uint16(DefaultInitialValue), dev.Value())
	assert.Equal(t, RegisterID(0x42), m.Requested())

	// the read-only register ignores payloads too
	writeTxn(t, m, byte(RegGetVoltage), 0x00, 0x01)
	assert.Equal(t, uint16(DefaultInitialValue), dev.Value())
	assert.Equal(t, uint32(2), m.Stats().UnknownRegisters)
}

func TestMachineOverflow(t *testing.T) {
	m, dev := newTestMachine(DefaultConfig())

	cmd := m.Handle(Event{Kind: EventAddressMatched, Direction: ControllerWrites})
	for i, b := range []byte{0x09, 0x01, 0x02, 0x03, 0x04} {
		assert.Equal(t, CmdReceive, cmd.Kind)
		cmd.Buf[0] = b
		cmd = m.Handle(Event{Kind: EventByteReceived})
		assert.Equal(t, i+1, m.InboundLen())
	}

	// full: reception is not re-armed
	assert.Equal(t, CmdNone, cmd.Kind)
	assert.Equal(t, uint32(0), m.Stats().Overflows)

	// the port refuses the next byte and says so
	cmd = m.Handle(Event{Kind: EventOverflow})
	assert.Equal(t, CmdNone, cmd.Kind)
	assert.Equal(t, uint32(1), m.Stats().Overflows)

	// a port that delivers anyway gets the byte rejected
	cmd = m.Handle(Event{Kind: EventByteReceived})
	assert.Equal(t, CmdNone, cmd.Kind)
	assert.Equal(t, 5, m.InboundLen())
	assert.Equal(t, uint32(2), m.Stats().Overflows)
	assert.True(t, bytes.Equal([]byte{0x09, 0x01, 0x02, 0x03, 0x04}, m.Inbound()))

	stop := m.Handle(Event{Kind: EventListenComplete})
	assert.Equal(t, CmdRearmListen, stop.Kind)
	assert.Equal(t, uint16(0x0102), dev.Value())
	assert.Equal(t, 0, m.InboundLen())
}

func TestMachineErrorAbandons(t *testing.T) {
	m, dev := newTestMachine(DefaultConfig())
	writeTxn(t, m, byte(RegGetVoltage))

	cmd := m.Handle(Event{Kind: EventAddressMatched, Direction: ControllerWrites})
	cmd.Buf[0] = byte(RegSetVoltage)
	cmd = m.Handle(Event{Kind: EventByteReceived})
	cmd.Buf[0] = 0x00
	m.Handle(Event{Kind: EventByteReceived})

	cmd = m.Handle(Event{Kind: EventError})
	assert.Equal(t, CmdRearmListen, cmd.Kind)
	assert.Equal(t, Listening, m.Mode())
	assert.Equal(t, 0, m.InboundLen())
	assert.Equal(t, 0, m.OutboundLen())
	assert.Equal(t, uint16(DefaultInitialValue), dev.Value())
	assert.Equal(t, RegGetVoltage, m.Requested())
	assert.Equal(t, uint32(1), m.Stats().BusFaults)

	// an error in the middle of a read drops the queued response
	m.Handle(Event{Kind: EventAddressMatched, Direction: ControllerReads})
	assert.Equal(t, 2, m.OutboundLen())
	m.Handle(Event{Kind: EventError})
	assert.Equal(t, 0, m.OutboundLen())
	assert.Equal(t, Listening, m.Mode())
}

func TestMachineStopWithoutTransferComplete(t *testing.T) {
	m, _ := newTestMachine(DefaultConfig())

	m.Handle(Event{Kind: EventAddressMatched, Direction: ControllerReads})
	m.Handle(Event{Kind: EventListenComplete})

	assert.Equal(t, Listening, m.Mode())
	assert.Equal(t, 0, m.OutboundLen())
	assert.Equal(t, 0, m.InboundLen())
}

func TestMachineSelectCoupling(t *testing.T) {
	tests := []struct {
		name        string
		independent bool
		want        []byte
	}{
		// SET leaves 0x09 selected, which is write-only
		{name: "coupled", independent: false, want: []byte{0xFF, 0xFF}},
		{name: "independent", independent: true, want: []byte{0x03, 0xE8}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.IndependentSelect = tt.independent
			m, _ := newTestMachine(cfg)

			writeTxn(t, m, byte(RegGetVoltage))
			writeTxn(t, m, byte(RegSetVoltage), 0x03, 0xE8)
			out := readTxn(t, m)
			assert.True(t, bytes.Equal(tt.want, out))
		})
	}
}

func TestMachineCapacityDefaults(t *testing.T) {
	m, _ := NewVoltageMachine(Config{Capacity: 1})
	assert.Equal(t, 5, m.Config().Capacity)

	m, _ = NewVoltageMachine(Config{Capacity: 8})
	assert.Equal(t, 8, m.Config().Capacity)

	m, _ = NewVoltageMachine(Config{Capacity: 4096})
	assert.Equal(t, MaxCapacity, m.Config().Capacity)

	m, _ = NewVoltageMachine(Config{Capacity: MinCapacity})
	assert.Equal(t, MinCapacity, m.Config().Capacity)
}

func TestMachineTrace(t *testing.T) {
	m, _ := newTestMachine(DefaultConfig())
	trace := NewTrace()
	m.SetTrace(trace)

	writeTxn(t, m, byte(RegSetVoltage), 0x03, 0xE8)

	var kinds []TraceKind
	var last TraceEvent
	trace.Drain(func(ev TraceEvent) {
		kinds = append(kinds, ev.Kind)
		if ev.Kind == TraceValueSet {
			last = ev
		}
	})

	want := []TraceKind{TraceAddrWrite, TraceByte, TraceByte, TraceByte, TraceValueSet, TraceStop}
	assert.Equal(t, len(want), len(kinds))
	for i := range want {
		assert.Equal(t, want[i], kinds[i])
	}
	assert.Equal(t, uint16(1000), last.Value)
	assert.Equal(t, RegSetVoltage, last.Register)
}

func TestMachineOverflowTrace(t *testing.T) {
	m, _ := newTestMachine(DefaultConfig())
	trace := NewTrace()
	m.SetTrace(trace)

	countKinds := func() map[TraceKind]int {
		kinds := map[TraceKind]int{}
		trace.Drain(func(ev TraceEvent) { kinds[ev.Kind]++ })
		return kinds
	}

	// filling the buffer exactly is not an overflow
	writeTxn(t, m, byte(RegSetVoltage), 0x00, 0x01, 0xAA, 0xBB)
	kinds := countKinds()
	assert.Equal(t, 0, kinds[TraceBufferFull])
	assert.Equal(t, 0, kinds[TraceOverflow])
	assert.Equal(t, uint32(0), m.Stats().Overflows)

	// two refused bytes: one buffer-full marker, two overflows
	cmd := m.Handle(Event{Kind: EventAddressMatched, Direction: ControllerWrites})
	for _, b := range []byte{0x09, 0x00, 0x02, 0xAA, 0xBB} {
		cmd.Buf[0] = b
		cmd = m.Handle(Event{Kind: EventByteReceived})
	}
	m.Handle(Event{Kind: EventOverflow})
	m.Handle(Event{Kind: EventOverflow})
	m.Handle(Event{Kind: EventListenComplete})

	kinds = countKinds()
	assert.Equal(t, 1, kinds[TraceBufferFull])
	assert.Equal(t, 2, kinds[TraceOverflow])
	assert.Equal(t, uint32(2), m.Stats().Overflows)
}

func TestMachineOverflowOutsideReceive(t *testing.T) {
	m, _ := newTestMachine(DefaultConfig())

	// a refusal while listening, or before the buffer is full, is not an overflow
	m.Handle(Event{Kind: EventOverflow})
	m.Handle(Event{Kind: EventAddressMatched, Direction: ControllerWrites})
	m.Handle(Event{Kind: EventOverflow})

	assert.Equal(t, uint32(0), m.Stats().Overflows)
}
