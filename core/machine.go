// Package core implements the responder side of a register-style I2C protocol:
// a state machine that turns bus peripheral events into register reads and
// writes, plus the glue that drives a bus port from interrupt context.
package core

import "i2cresponder/protocol"

// Stats counts transaction outcomes since the last Reset
type Stats struct {
	Reads            uint32
	Writes           uint32
	Selects          uint32
	Overflows        uint32
	UnknownRegisters uint32
	BusFaults        uint32
}

// Machine is the responder state machine. It owns every piece of transaction
// state and performs no I/O: Handle mutates the context and returns the bus
// port command to issue.
type Machine struct {
	cfg        Config
	dispatcher Dispatcher
	trace      *Trace

	mode      Mode
	inbound   *protocol.TransactionBuffer
	outbound  *protocol.TransactionBuffer
	scratch   []byte
	requested RegisterID
	refusing  bool // a byte of the current write was refused

	stats Stats
}

// NewMachine creates a machine dispatching register traffic to d
func NewMachine(cfg Config, d Dispatcher) *Machine {
	applyDefaults(&cfg)
	return &Machine{
		cfg:        cfg,
		dispatcher: d,
		inbound:    protocol.NewTransactionBuffer(cfg.Capacity),
		outbound:   protocol.NewTransactionBuffer(cfg.Capacity),
		scratch:    make([]byte, cfg.Capacity),
	}
}

// NewVoltageMachine creates a machine over the reference register map and
// returns the device state behind it
func NewVoltageMachine(cfg Config) (*Machine, *DeviceState) {
	dev := NewDeviceState(cfg.InitialValue)
	return NewMachine(cfg, NewVoltageRegisters(dev)), dev
}

// SetTrace attaches a trace ring; nil disables tracing
func (m *Machine) SetTrace(t *Trace) {
	m.trace = t
}

// Reset restores power-on state and asks for listening to be armed
func (m *Machine) Reset() Command {
	m.mode = Listening
	m.inbound.Reset()
	m.outbound.Reset()
	m.requested = RegNone
	m.stats = Stats{}
	m.dispatcher.Reset()
	return Command{Kind: CmdRearmListen}
}

// Handle applies one bus event
func (m *Machine) Handle(ev Event) Command {
	switch ev.Kind {
	case EventAddressMatched:
		if ev.Direction == ControllerReads {
			return m.startTransmit()
		}
		return m.startReceive()
	case EventByteReceived:
		return m.byteReceived()
	case EventTransferComplete:
		if ev.Direction == ControllerReads {
			m.outbound.Reset()
			m.record(TraceTxDone, RegNone, 0)
		}
		return Command{}
	case EventListenComplete:
		return m.listenComplete()
	case EventError:
		return m.abort()
	case EventOverflow:
		m.overflow()
		return Command{}
	}
	return Command{}
}

func (m *Machine) startTransmit() Command {
	m.mode = Transmitting

	n, err := m.dispatcher.BuildResponse(m.requested, m.scratch)
	if err != nil {
		m.stats.UnknownRegisters++
		m.record(TraceUnknownRegister, m.requested, SentinelValue)
	}
	// n never exceeds the scratch size, which matches the outbound capacity
	_ = m.outbound.Load(m.scratch[:n])

	var word uint16
	if n >= responseSize {
		word = uint16(m.scratch[0])<<8 | uint16(m.scratch[1])
	}
	m.record(TraceAddrRead, m.requested, word)
	m.requested = RegNone
	m.stats.Reads++

	return Command{Kind: CmdTransmit, Buf: m.outbound.Bytes(), Final: true}
}

func (m *Machine) startReceive() Command {
	m.mode = Receiving
	m.refusing = false
	m.record(TraceAddrWrite, RegNone, 0)
	return m.armReceive()
}

func (m *Machine) byteReceived() Command {
	if err := m.inbound.Commit(); err != nil {
		// the port landed a byte we never asked for; drop it
		m.stats.Overflows++
		m.record(TraceOverflow, RegNone, 0)
		return Command{}
	}

	m.record(TraceByte, RegNone, uint16(m.inbound.Bytes()[m.inbound.Len()-1]))

	if m.mode != Receiving {
		return Command{}
	}
	return m.armReceive()
}

// armReceive asks for the next byte. Once the inbound buffer is full nothing
// is armed, so the port refuses anything further and reports it as an
// overflow.
func (m *Machine) armReceive() Command {
	slot := m.inbound.Slot()
	if slot == nil {
		return Command{}
	}
	return Command{Kind: CmdReceive, Buf: slot, Final: false}
}

// overflow records a byte the port refused. Refusals for any other reason,
// such as a write arriving after a fault, are not overflows.
func (m *Machine) overflow() {
	if m.mode != Receiving || !m.inbound.Full() {
		return
	}
	if !m.refusing {
		m.refusing = true
		m.record(TraceBufferFull, RegNone, 0)
	}
	m.stats.Overflows++
	m.record(TraceOverflow, RegNone, 0)
}

func (m *Machine) listenComplete() Command {
	m.mode = Listening
	m.refusing = false

	if data := m.inbound.Bytes(); len(data) > 0 {
		m.applyWrite(data)
	}

	m.record(TraceStop, m.requested, 0)
	m.inbound.Reset()
	m.outbound.Reset()
	return Command{Kind: CmdRearmListen}
}

func (m *Machine) applyWrite(data []byte) {
	res, err := m.dispatcher.ApplyWrite(data)

	if !res.HasPayload {
		m.requested = res.Register
		m.stats.Selects++
		m.record(TraceSelect, res.Register, 0)
		return
	}

	if !m.cfg.IndependentSelect {
		m.requested = res.Register
	}
	m.stats.Writes++

	if err != nil {
		m.stats.UnknownRegisters++
		m.record(TraceUnknownRegister, res.Register, res.Value)
		return
	}
	m.record(TraceValueSet, res.Register, res.Value)
}

// abort abandons whatever transaction was in flight
func (m *Machine) abort() Command {
	m.mode = Listening
	m.refusing = false
	m.inbound.Reset()
	m.outbound.Reset()
	m.stats.BusFaults++
	m.record(TraceBusFault, m.requested, 0)
	return Command{Kind: CmdRearmListen}
}

func (m *Machine) record(kind TraceKind, reg RegisterID, value uint16) {
	if m.trace == nil {
		return
	}
	m.trace.Record(TraceEvent{
		Kind:     kind,
		Mode:     m.mode,
		Register: reg,
		Count:    uint8(m.inbound.Len()),
		Value:    value,
	})
}

// Mode returns the current mode
func (m *Machine) Mode() Mode {
	return m.mode
}

// Requested returns the register selected for the next read
func (m *Machine) Requested() RegisterID {
	return m.requested
}

// InboundLen returns the inbound fill count
func (m *Machine) InboundLen() int {
	return m.inbound.Len()
}

// OutboundLen returns the outbound fill count
func (m *Machine) OutboundLen() int {
	return m.outbound.Len()
}

// Inbound returns the bytes accepted so far in the current write phase
func (m *Machine) Inbound() []byte {
	return m.inbound.Bytes()
}

// Stats returns the outcome counters
func (m *Machine) Stats() Stats {
	return m.stats
}

// Config returns the effective configuration
func (m *Machine) Config() Config {
	return m.cfg
}
