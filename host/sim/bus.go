// Package sim is an in-process I2C bus with one responder attached. It plays
// the controller side of drivers.I2C and the peripheral side of core.BusPort,
// so the responder can be exercised with no hardware.
package sim

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"tinygo.org/x/drivers"

	"i2cresponder/core"
)

var (
	ErrNoAck    = errors.New("address not acknowledged")
	ErrNack     = errors.New("data byte not acknowledged")
	ErrBusFault = errors.New("bus fault")
)

var (
	_ drivers.I2C  = (*Bus)(nil)
	_ core.BusPort = (*Bus)(nil)
)

// Faults selects failures to inject. Each one fires once and then clears.
type Faults struct {
	Receive  bool // refuse the next BeginReceive
	Transmit bool // refuse the next BeginTransmit
	Rearm    bool // refuse the next RearmListen

	// Abort raises a bus error before byte AbortAfter of the next write
	Abort      bool
	AbortAfter int
}

var errInjected = errors.New("injected port failure")

// Bus connects a controller to a single responder
type Bus struct {
	mu        sync.Mutex
	addr      uint16
	responder *core.Responder
	log       logrus.FieldLogger

	listening bool
	rx        []byte // armed receive window, nil when nothing is armed
	tx        []byte // queued response
	txBuf     []byte

	faults       Faults
	transactions uint32
}

// New attaches r at addr and initialises it
func New(addr uint16, build func(port core.BusPort) *core.Responder) *Bus {
	b := &Bus{
		addr: addr,
		log:  logrus.StandardLogger(),
	}
	b.responder = build(b)
	b.responder.Init()
	return b
}

// NewVoltage attaches a responder over the reference register map
func NewVoltage(addr uint16, cfg core.Config) (*Bus, *core.DeviceState) {
	var dev *core.DeviceState
	b := New(addr, func(port core.BusPort) *core.Responder {
		var m *core.Machine
		m, dev = core.NewVoltageMachine(cfg)
		return core.NewResponder(port, m)
	})
	return b, dev
}

// SetLogger replaces the logger used for per-transaction debug output
func (b *Bus) SetLogger(l logrus.FieldLogger) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.log = l
}

// Inject arms the given faults
func (b *Bus) Inject(f Faults) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.faults = f
}

// Responder returns the attached responder
func (b *Bus) Responder() *core.Responder {
	return b.responder
}

// Address returns the responder's bus address
func (b *Bus) Address() uint16 {
	return b.addr
}

// Listening reports whether the responder is armed for a new transaction
func (b *Bus) Listening() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.listening
}

// Transactions returns how many addressed transactions were run
func (b *Bus) Transactions() uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.transactions
}

// Reset reinitialises the responder, as after a power cycle
func (b *Bus) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rx = nil
	b.tx = nil
	b.responder.Init()
}

// Tx runs a write of w followed by a read into r. A stop is issued between
// the two phases. An empty w with an empty r is an address-only transaction.
func (b *Bus) Tx(addr uint16, w, r []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(w) > 0 || len(r) == 0 {
		if err := b.write(addr, w); err != nil {
			return err
		}
	}
	if len(r) > 0 {
		return b.read(addr, r)
	}
	return nil
}

func (b *Bus) address(addr uint16) error {
	if addr != b.addr || !b.listening {
		return fmt.Errorf("0x%02x: %w", addr, ErrNoAck)
	}
	b.listening = false
	b.transactions++
	return nil
}

func (b *Bus) write(addr uint16, w []byte) error {
	if err := b.address(addr); err != nil {
		return err
	}
	b.responder.AddressMatched(core.ControllerWrites)

	for i, c := range w {
		if b.faults.Abort && b.faults.AbortAfter == i {
			b.faults.Abort = false
			b.rx = nil
			b.responder.Error()
			return fmt.Errorf("write byte %d: %w", i, ErrBusFault)
		}
		if b.rx == nil {
			// NACK: the controller gives up and issues stop
			b.responder.Overflow()
			b.responder.ListenComplete()
			b.log.WithFields(logrus.Fields{"accepted": i, "len": len(w)}).Debug("write nacked")
			return fmt.Errorf("write byte %d of %d: %w", i, len(w), ErrNack)
		}
		slot := b.rx
		b.rx = nil
		slot[0] = c
		b.responder.ByteReceived()
	}

	b.responder.ListenComplete()
	b.log.WithFields(logrus.Fields{"addr": addr, "data": w}).Debug("write")
	return nil
}

func (b *Bus) read(addr uint16, r []byte) error {
	if err := b.address(addr); err != nil {
		return err
	}
	b.responder.AddressMatched(core.ControllerReads)

	queued := b.tx != nil
	n := copy(r, b.tx)
	for i := n; i < len(r); i++ {
		r[i] = 0xFF // released bus reads high
	}
	b.tx = nil

	if queued {
		b.responder.TransferComplete(core.ControllerReads)
	}
	b.responder.ListenComplete()
	b.log.WithFields(logrus.Fields{"addr": addr, "data": r}).Debug("read")
	return nil
}

// BeginReceive arms buf for the next byte. Called by the responder with the
// bus lock held.
func (b *Bus) BeginReceive(buf []byte, final bool) error {
	if b.faults.Receive {
		b.faults.Receive = false
		return errInjected
	}
	b.rx = buf
	return nil
}

// BeginTransmit queues buf for the controller to clock out
func (b *Bus) BeginTransmit(buf []byte, final bool) error {
	if b.faults.Transmit {
		b.faults.Transmit = false
		return errInjected
	}
	b.txBuf = append(b.txBuf[:0], buf...)
	b.tx = b.txBuf
	return nil
}

// RearmListen makes the responder addressable again
func (b *Bus) RearmListen() error {
	b.rx = nil
	b.tx = nil
	if b.faults.Rearm {
		b.faults.Rearm = false
		b.listening = false
		return errInjected
	}
	b.listening = true
	return nil
}
