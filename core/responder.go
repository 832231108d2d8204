package core

// Responder connects a Machine to a BusPort. Its event methods are what the
// peripheral interrupt handlers call; each runs the transition inside a
// critical section and issues the resulting port command.
type Responder struct {
	machine *Machine
	port    BusPort
	trace   *Trace

	portErrors uint32
}

// NewResponder creates a responder driving port
func NewResponder(port BusPort, machine *Machine) *Responder {
	return &Responder{
		machine: machine,
		port:    port,
	}
}

// SetTrace attaches a trace ring to the responder and its machine
func (r *Responder) SetTrace(t *Trace) {
	r.trace = t
	r.machine.SetTrace(t)
}

// Init resets all state to power-on defaults and arms listening
func (r *Responder) Init() {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	r.portErrors = 0
	r.execute(r.machine.Reset())
}

// AddressMatched is raised when our address was seen with direction dir
func (r *Responder) AddressMatched(dir Direction) {
	r.handle(Event{Kind: EventAddressMatched, Direction: dir})
}

// ByteReceived is raised when an armed receive completed
func (r *Responder) ByteReceived() {
	r.handle(Event{Kind: EventByteReceived})
}

// TransferComplete is raised when a queued transfer finished
func (r *Responder) TransferComplete(dir Direction) {
	r.handle(Event{Kind: EventTransferComplete, Direction: dir})
}

// ListenComplete is raised on the stop condition
func (r *Responder) ListenComplete() {
	r.handle(Event{Kind: EventListenComplete})
}

// Overflow is raised when the port refused a written byte because nothing
// was armed
func (r *Responder) Overflow() {
	r.handle(Event{Kind: EventOverflow})
}

// Error is raised on any bus fault
func (r *Responder) Error() {
	r.handle(Event{Kind: EventError})
}

// Machine returns the underlying state machine. Inspect it only while no bus
// traffic is in flight.
func (r *Responder) Machine() *Machine {
	return r.machine
}

// PortErrors returns how many port commands failed
func (r *Responder) PortErrors() uint32 {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	return r.portErrors
}

func (r *Responder) handle(ev Event) {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	r.execute(r.machine.Handle(ev))
}

// execute issues cmd. A command the port refuses is handled as a bus fault:
// the transaction is abandoned and listening re-armed.
func (r *Responder) execute(cmd Command) {
	if err := r.issue(cmd); err == nil || cmd.Kind == CmdRearmListen {
		return
	}
	_ = r.issue(r.machine.Handle(Event{Kind: EventError}))
}

func (r *Responder) issue(cmd Command) error {
	var err error
	switch cmd.Kind {
	case CmdNone:
		return nil
	case CmdReceive:
		err = r.port.BeginReceive(cmd.Buf, cmd.Final)
	case CmdTransmit:
		err = r.port.BeginTransmit(cmd.Buf, cmd.Final)
	case CmdRearmListen:
		err = r.port.RearmListen()
	}
	if err != nil {
		r.portErrors++
		if r.trace != nil {
			r.trace.Record(TraceEvent{
				Kind:  TracePortError,
				Mode:  r.machine.Mode(),
				Count: uint8(r.machine.InboundLen()),
				Value: uint16(cmd.Kind),
			})
		}
	}
	return err
}
