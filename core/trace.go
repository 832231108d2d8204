package core

import "i2cresponder/protocol"

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// TraceKind identifies what a trace record describes
type TraceKind uint8

const (
	TraceAddrRead        TraceKind = iota + 1 // controller addressed us for reading
	TraceAddrWrite                            // controller addressed us for writing
	TraceByte                                 // a byte was accepted
	TraceBufferFull                           // first byte of a write refused, inbound buffer full
	TraceOverflow                             // a byte was refused or arrived with no room
	TraceTxDone                               // response transmitted
	TraceStop                                 // stop condition, transaction closed
	TraceSelect                               // register selected for the next read
	TraceValueSet                             // a register write was applied
	TraceUnknownRegister                      // read or write of an undefined register
	TraceBusFault                             // port reported an error, transaction abandoned
	TracePortError                            // port refused a command
)

var traceNames = [...]string{
	TraceAddrRead:        "ADDR_READ",
	TraceAddrWrite:       "ADDR_WRITE",
	TraceByte:            "BYTE",
	TraceBufferFull:      "BUF_FULL",
	TraceOverflow:        "OVERFLOW!",
	TraceTxDone:          "TX_DONE",
	TraceStop:            "STOP",
	TraceSelect:          "SELECT",
	TraceValueSet:        "SET",
	TraceUnknownRegister: "UNKNOWN_REG",
	TraceBusFault:        "BUS_FAULT!",
	TracePortError:       "PORT_ERROR!",
}

func (k TraceKind) String() string {
	if int(k) < len(traceNames) && traceNames[k] != "" {
		return traceNames[k]
	}
	return "UNKNOWN"
}

// TraceEvent is a fixed-size record of one step of a transaction
type TraceEvent struct {
	Kind     TraceKind
	Mode     Mode       // mode after the step
	Register RegisterID // register involved, if any
	Count    uint8      // inbound fill count after the step
	Value    uint16     // received byte, response word or written value
}

// String renders the event without fmt
func (e TraceEvent) String() string {
	return "[TRACE] " + e.Kind.String() +
		" mode=" + e.Mode.String() +
		" reg=" + hex8(uint8(e.Register)) +
		" count=" + itoa(int(e.Count)) +
		" value=" + hex16(e.Value)
}

// TraceRingSize is the number of records kept before the oldest is overwritten
const TraceRingSize = 32

// Trace is a ring of TraceEvents. Record runs inside the event handlers in
// constant time; Drain runs from the main loop.
type Trace struct {
	ring    [TraceRingSize]TraceEvent
	head    uint32 // total records written
	tail    uint32 // total records consumed
	dropped uint32
}

// NewTrace creates an empty trace ring
func NewTrace() *Trace {
	return &Trace{}
}

// Record appends ev, overwriting the oldest record when the ring is full.
// Callers hold the interrupt lock.
func (t *Trace) Record(ev TraceEvent) {
	if t.head-t.tail == TraceRingSize {
		t.tail++
		t.dropped++
	}
	t.ring[t.head%TraceRingSize] = ev
	t.head++
}

// Pop removes the oldest record
func (t *Trace) Pop() (TraceEvent, bool) {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	if t.head == t.tail {
		return TraceEvent{}, false
	}
	ev := t.ring[t.tail%TraceRingSize]
	t.tail++
	return ev, true
}

// Drain hands every pending record to fn, oldest first, and returns how many
// were delivered. fn runs outside the interrupt lock.
func (t *Trace) Drain(fn func(TraceEvent)) int {
	n := 0
	for {
		ev, ok := t.Pop()
		if !ok {
			return n
		}
		fn(ev)
		n++
	}
}

// Dropped returns how many records were overwritten before being drained
func (t *Trace) Dropped() uint32 {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	return t.dropped
}

// Dump drains the ring to w, one line per record
func (t *Trace) Dump(w DebugWriter) {
	if w == nil {
		return
	}
	w("[TRACE] === Trace Dump ===")
	t.Drain(func(ev TraceEvent) {
		w(ev.String())
	})
	if d := t.Dropped(); d > 0 {
		w("[TRACE] dropped=" + itoa(int(d)))
	}
	w("[TRACE] === End Dump ===")
}

// EncodeTraceEvent writes ev as five VLQ fields
func EncodeTraceEvent(output protocol.OutputBuffer, ev TraceEvent) {
	protocol.EncodeVLQUint(output, uint32(ev.Kind))
	protocol.EncodeVLQUint(output, uint32(ev.Mode))
	protocol.EncodeVLQUint(output, uint32(ev.Register))
	protocol.EncodeVLQUint(output, uint32(ev.Count))
	protocol.EncodeVLQUint(output, uint32(ev.Value))
}

// DecodeTraceEvent reads a record written by EncodeTraceEvent
func DecodeTraceEvent(data *[]byte) (TraceEvent, error) {
	var fields [5]uint32
	for i := range fields {
		v, err := protocol.DecodeVLQUint(data)
		if err != nil {
			return TraceEvent{}, err
		}
		fields[i] = v
	}
	return TraceEvent{
		Kind:     TraceKind(fields[0]),
		Mode:     Mode(fields[1]),
		Register: RegisterID(fields[2]),
		Count:    uint8(fields[3]),
		Value:    uint16(fields[4]),
	}, nil
}

var (
	// debugPrintln is the platform debug output, a no-op until set
	debugPrintln DebugWriter = func(s string) {}

	debugEnabled bool
)

// SetDebugWriter sets the platform-specific debug output function
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// SetDebugEnabled enables or disables debug output
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// DebugPrintln writes a debug message if debug output is enabled.
// Never call it from an event handler.
func DebugPrintln(msg string) {
	if debugEnabled && debugPrintln != nil {
		debugPrintln(msg)
	}
}
