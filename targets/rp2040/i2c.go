//go:build rp2040 || rp2350

package main

import (
	"errors"
	"machine"

	"i2cresponder/core"
	"i2cresponder/protocol"
)

var errNotArmed = errors.New("i2c target: nothing armed")

type phase uint8

const (
	phaseIdle phase = iota
	phaseWrite
	phaseRead
)

// TargetPort adapts TinyGo's I2C target mode to core.BusPort. TinyGo
// delivers a whole write phase per WaitForEvent, so the adapter replays it
// byte by byte into the responder and reports each byte it cannot place as
// an overflow.
type TargetPort struct {
	i2c       *machine.I2C
	addr      uint16
	responder *core.Responder

	phase phase
	slot  []byte // armed receive window
	reply []byte
	rx    [32]byte
}

// idleReply is clocked out when no response was staged
var idleReply = [2]byte{0xFF, 0xFF}

// NewTargetPort configures i2c as a target listening on addr
func NewTargetPort(i2c *machine.I2C, addr uint16) (*TargetPort, error) {
	if err := i2c.Configure(machine.I2CConfig{Mode: machine.I2CModeTarget}); err != nil {
		return nil, err
	}
	if err := i2c.Listen(addr); err != nil {
		return nil, err
	}
	return &TargetPort{
		i2c:   i2c,
		addr:  addr,
		reply: make([]byte, 0, protocol.TransactionCapacity),
	}, nil
}

// Attach binds the responder whose events this port raises
func (p *TargetPort) Attach(r *core.Responder) {
	p.responder = r
}

// BeginReceive arms the one-byte window for the next written byte
func (p *TargetPort) BeginReceive(buf []byte, final bool) error {
	if len(buf) == 0 {
		return errNotArmed
	}
	p.slot = buf
	return nil
}

// BeginTransmit stages the reply; Serve hands it to the peripheral once the
// handler returns
func (p *TargetPort) BeginTransmit(buf []byte, final bool) error {
	p.reply = append(p.reply[:0], buf...)
	return nil
}

// RearmListen clears per-transaction state. The peripheral keeps listening
// on its own.
func (p *TargetPort) RearmListen() error {
	p.slot = nil
	p.reply = p.reply[:0]
	return nil
}

// Serve blocks forever turning peripheral events into responder events
func (p *TargetPort) Serve() {
	for {
		evt, n, err := p.i2c.WaitForEvent(p.rx[:])
		if err != nil {
			p.phase = phaseIdle
			p.responder.Error()
			continue
		}

		switch evt {
		case machine.I2CReceive:
			p.receive(p.rx[:n])

		case machine.I2CRequest:
			p.request()

		case machine.I2CFinish:
			if p.phase != phaseIdle {
				p.responder.ListenComplete()
			}
			p.phase = phaseIdle
		}
	}
}

func (p *TargetPort) receive(data []byte) {
	if p.phase != phaseWrite {
		if p.phase == phaseRead {
			// repeated start: close the read half first
			p.responder.ListenComplete()
		}
		p.phase = phaseWrite
		p.responder.AddressMatched(core.ControllerWrites)
	}

	for _, b := range data {
		if p.slot == nil {
			p.responder.Overflow()
			continue
		}
		slot := p.slot
		p.slot = nil
		slot[0] = b
		p.responder.ByteReceived()
	}
}

func (p *TargetPort) request() {
	if p.phase == phaseWrite {
		// repeated start: the write half ends here
		p.responder.ListenComplete()
	}
	p.phase = phaseRead
	p.responder.AddressMatched(core.ControllerReads)

	if len(p.reply) == 0 {
		_ = p.i2c.Reply(idleReply[:])
		return
	}
	if err := p.i2c.Reply(p.reply); err != nil {
		p.phase = phaseIdle
		p.responder.Error()
		return
	}
	p.responder.TransferComplete(core.ControllerReads)
}
