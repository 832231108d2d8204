package core

// Mode is the half of a transaction currently in flight
type Mode uint8

const (
	Listening Mode = iota
	Receiving
	Transmitting
)

func (m Mode) String() string {
	switch m {
	case Listening:
		return "listening"
	case Receiving:
		return "receiving"
	case Transmitting:
		return "transmitting"
	}
	return "mode(" + itoa(int(m)) + ")"
}

// EventKind identifies a bus event raised by the port
type EventKind uint8

const (
	EventAddressMatched EventKind = iota + 1
	EventByteReceived
	EventTransferComplete
	EventListenComplete
	EventError
	EventOverflow // port refused a byte because the inbound buffer is full
)

// Event is one bus event. Direction is only meaningful for address match and
// transfer complete.
type Event struct {
	Kind      EventKind
	Direction Direction
}

// CommandKind identifies a bus port operation
type CommandKind uint8

const (
	CmdNone CommandKind = iota
	CmdReceive
	CmdTransmit
	CmdRearmListen
)

func (k CommandKind) String() string {
	switch k {
	case CmdNone:
		return "none"
	case CmdReceive:
		return "receive"
	case CmdTransmit:
		return "transmit"
	case CmdRearmListen:
		return "rearm"
	}
	return "cmd(" + itoa(int(k)) + ")"
}

// Command is the bus port operation a transition asks for. Every transition
// issues at most one, so handlers never allocate a command list.
type Command struct {
	Kind  CommandKind
	Buf   []byte
	Final bool
}
