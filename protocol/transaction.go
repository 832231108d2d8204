package protocol

import "errors"

// TransactionCapacity is the default size of a responder transaction buffer
const TransactionCapacity = 5

// ErrBufferOverflow is returned when a byte is appended to a full buffer
var ErrBufferOverflow = errors.New("transaction buffer full")

// TransactionBuffer is a bounded append-only byte buffer that lives for one bus
// transaction. Storage is allocated once; the fill count never exceeds it.
type TransactionBuffer struct {
	buf   []byte
	count int
}

// NewTransactionBuffer allocates a buffer holding at most capacity bytes
func NewTransactionBuffer(capacity int) *TransactionBuffer {
	if capacity <= 0 {
		capacity = TransactionCapacity
	}
	return &TransactionBuffer{buf: make([]byte, capacity)}
}

// Append stores v after the valid prefix. It is Slot followed by Commit for
// callers that already hold the byte; the responder lands received bytes
// through Slot and Commit directly because the port writes the slot.
func (b *TransactionBuffer) Append(v byte) error {
	slot := b.Slot()
	if slot == nil {
		return ErrBufferOverflow
	}
	slot[0] = v
	return b.Commit()
}

// Slot returns the one-byte window a bus port lands the next received byte in,
// or nil when the buffer is full.
func (b *TransactionBuffer) Slot() []byte {
	if b.count >= len(b.buf) {
		return nil
	}
	return b.buf[b.count : b.count+1]
}

// Commit accepts the byte previously landed in Slot
func (b *TransactionBuffer) Commit() error {
	if b.count >= len(b.buf) {
		return ErrBufferOverflow
	}
	b.count++
	return nil
}

// Load replaces the contents with data. Nothing is written if data does not fit.
func (b *TransactionBuffer) Load(data []byte) error {
	if len(data) > len(b.buf) {
		return ErrBufferOverflow
	}
	b.Reset()
	b.count = copy(b.buf, data)
	return nil
}

// Bytes returns the valid prefix. The slice aliases the buffer until the next Reset.
func (b *TransactionBuffer) Bytes() []byte {
	return b.buf[:b.count]
}

// Len returns the number of valid bytes
func (b *TransactionBuffer) Len() int {
	return b.count
}

// Cap returns the fixed capacity
func (b *TransactionBuffer) Cap() int {
	return len(b.buf)
}

// Full reports whether no more bytes can be accepted
func (b *TransactionBuffer) Full() bool {
	return b.count >= len(b.buf)
}

// Reset zeroes the contents and the fill count
func (b *TransactionBuffer) Reset() {
	for i := range b.buf {
		b.buf[i] = 0
	}
	b.count = 0
}
