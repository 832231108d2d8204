package core

// Direction is the transfer direction the controller declared in the address byte
type Direction uint8

const (
	// ControllerWrites means the controller sends bytes and we receive them
	ControllerWrites Direction = iota
	// ControllerReads means the controller clocks bytes out of us
	ControllerReads
)

func (d Direction) String() string {
	if d == ControllerReads {
		return "read"
	}
	return "write"
}

// BusPort is the abstract bus peripheral the responder drives.
// Implementations start the operation and return; completion is reported
// back through the Responder event methods. They must not raise events from
// inside these calls.
type BusPort interface {
	// BeginReceive arms reception into buf (one byte window of the inbound
	// buffer). final marks the last frame of the transaction.
	BeginReceive(buf []byte, final bool) error

	// BeginTransmit queues buf for the controller to read.
	BeginTransmit(buf []byte, final bool) error

	// RearmListen enables address matching for the next transaction.
	RearmListen() error
}
