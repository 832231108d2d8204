package protocol

// OutputBuffer is the sink frames and VLQ fields are encoded into
type OutputBuffer interface {
	// Output appends data to the buffer
	Output(data []byte)

	// CurPosition returns the current write position
	CurPosition() int

	// Update patches a byte that was already written
	Update(pos int, val byte)

	// DataSince returns data from a specific position to current
	DataSince(pos int) []byte
}

// ScratchOutput is an OutputBuffer over a fixed array, used to build one
// frame at a time without allocating. Output past MessageMax is dropped.
type ScratchOutput struct {
	buf [MessageMax]byte
	n   int
}

// NewScratchOutput returns an empty scratch buffer
func NewScratchOutput() *ScratchOutput {
	return &ScratchOutput{}
}

func (s *ScratchOutput) Output(data []byte) {
	s.n += copy(s.buf[s.n:], data)
}

func (s *ScratchOutput) CurPosition() int { return s.n }

// Update ignores positions that have not been written yet
func (s *ScratchOutput) Update(pos int, val byte) {
	if pos < s.n {
		s.buf[pos] = val
	}
}

func (s *ScratchOutput) DataSince(pos int) []byte {
	if pos > s.n {
		return nil
	}
	return s.buf[pos:s.n]
}

// Bytes returns everything written since the last Reset
func (s *ScratchOutput) Bytes() []byte { return s.buf[:s.n] }

func (s *ScratchOutput) Reset() { s.n = 0 }

// FifoBuffer queues frames between the trace pump and the serial writer, and
// buffers inbound bytes for FrameReader. It holds exactly its capacity.
type FifoBuffer struct {
	buf  []byte
	head int // index of the oldest byte
	n    int // bytes queued
}

// NewFifoBuffer returns a FIFO holding up to capacity bytes
func NewFifoBuffer(capacity int) *FifoBuffer {
	return &FifoBuffer{buf: make([]byte, capacity)}
}

// Write queues as much of data as fits and returns how many bytes were taken
func (f *FifoBuffer) Write(data []byte) int {
	if len(data) > f.Free() {
		data = data[:f.Free()]
	}
	tail := (f.head + f.n) % len(f.buf)
	copied := copy(f.buf[tail:], data)
	copy(f.buf, data[copied:])
	f.n += len(data)
	return len(data)
}

// WriteFrame queues frame only if all of it fits, so the reader never sees
// half a frame.
func (f *FifoBuffer) WriteFrame(frame []byte) bool {
	if len(frame) > f.Free() {
		return false
	}
	f.Write(frame)
	return true
}

// Len returns the number of queued bytes
func (f *FifoBuffer) Len() int { return f.n }

// Free returns the room left
func (f *FifoBuffer) Free() int { return len(f.buf) - f.n }

// Data returns the queued bytes oldest first. The result aliases the ring
// unless it has wrapped, in which case it is a copy.
func (f *FifoBuffer) Data() []byte {
	end := f.head + f.n
	if end <= len(f.buf) {
		return f.buf[f.head:end]
	}
	out := make([]byte, f.n)
	k := copy(out, f.buf[f.head:])
	copy(out[k:], f.buf[:end-len(f.buf)])
	return out
}

// Pop drops up to n bytes from the front
func (f *FifoBuffer) Pop(n int) {
	if n > f.n {
		n = f.n
	}
	if n <= 0 {
		return
	}
	f.head = (f.head + n) % len(f.buf)
	f.n -= n
}

func (f *FifoBuffer) IsEmpty() bool { return f.n == 0 }

func (f *FifoBuffer) Reset() {
	f.head = 0
	f.n = 0
}
