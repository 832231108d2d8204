// Package protocol holds the byte-level building blocks shared by the responder
// firmware and the host tools: bounded transaction buffers, VLQ encoding and the
// framing used to ship trace records over a serial link.
package protocol

// Version is the firmware/host protocol version string
const Version = "0.2.0"

// Frame constants
const (
	MessageMax     = 256 // Size of a ScratchOutput
	MessageHeader  = 2   // len + seq
	MessageTrailer = 3   // crc16 + sync

	// Sequence numbers live in the low nibble, the high nibble is always MessageDest
	MessageSeqMask = 0x0F
)
