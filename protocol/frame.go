package protocol

import "bytes"

const (
	MessageLengthMin   = MessageHeader + MessageTrailer
	MessageLengthMax   = 64
	MessagePositionLen = 0
	MessagePositionSeq = 1
	MessageTrailerCRC  = 3
	MessageTrailerSync = 1
	MessageValueSync   = 0x7E
	MessageDest        = 0x10
)

// Framer wraps payloads as
//
//	len | seq | payload... | crc_hi | crc_lo | 0x7E
//
// where len counts the whole frame and the CRC covers len, seq and payload.
type Framer struct {
	output OutputBuffer
	seq    uint8
}

// NewFramer returns a Framer appending to output
func NewFramer(output OutputBuffer) *Framer {
	return &Framer{output: output}
}

// EncodeFrame appends one frame whose payload is produced by frameData
func (f *Framer) EncodeFrame(frameData func(output OutputBuffer)) {
	cursor := f.output.CurPosition()

	f.output.Output([]byte{0, MessageDest | f.seq})
	frameData(f.output)

	changed := len(f.output.DataSince(cursor))
	f.output.Update(cursor+MessagePositionLen, uint8(changed+MessageTrailer))

	crc := CRC16(f.output.DataSince(cursor))
	f.output.Output([]byte{
		uint8((crc & 0xFF00) >> 8),
		uint8(crc & 0xFF),
		MessageValueSync,
	})

	f.seq = (f.seq + 1) & MessageSeqMask
}

// Frame is one validated frame
type Frame struct {
	Sequence uint8
	Payload  []byte
}

// FrameReader reassembles frames from a byte stream. Corrupt input drops the
// reader out of sync until the next sync byte.
type FrameReader struct {
	input          *FifoBuffer
	isSynchronized bool
	nextSeq        int // -1 until the first frame

	// Counters for the monitor's status line
	Corrupt int
	Lost    int
}

// NewFrameReader creates a reader buffering up to capacity unparsed bytes
func NewFrameReader(capacity int) *FrameReader {
	return &FrameReader{
		input:          NewFifoBuffer(capacity),
		isSynchronized: true,
		nextSeq:        -1,
	}
}

// Feed queues raw bytes and returns how many were accepted
func (r *FrameReader) Feed(data []byte) int {
	return r.input.Write(data)
}

// Next returns the next complete frame, if one is buffered
func (r *FrameReader) Next() (Frame, bool) {
	data := r.input.Data()
	start := len(data)

	for len(data) > 0 {
		if !r.isSynchronized {
			syncPos := bytes.IndexByte(data, MessageValueSync)
			if syncPos < 0 {
				data = nil
				break
			}
			data = data[syncPos+1:]
			r.isSynchronized = true
			continue
		}

		if data[0] == MessageValueSync {
			data = data[1:]
			continue
		}

		if len(data) < MessageLengthMin {
			break
		}

		msgLen := int(data[MessagePositionLen])
		if msgLen < MessageLengthMin || msgLen > MessageLengthMax {
			r.desync()
			continue
		}

		seq := data[MessagePositionSeq]
		if seq&^MessageSeqMask != MessageDest {
			r.desync()
			continue
		}

		if len(data) < msgLen {
			break
		}

		if data[msgLen-MessageTrailerSync] != MessageValueSync {
			r.desync()
			continue
		}

		frameCRC := uint16(data[msgLen-MessageTrailerCRC])<<8 |
			uint16(data[msgLen-MessageTrailerCRC+1])
		if frameCRC != CRC16(data[:msgLen-MessageTrailer]) {
			r.desync()
			continue
		}

		payload := make([]byte, msgLen-MessageHeader-MessageTrailer)
		copy(payload, data[MessageHeader:msgLen-MessageTrailer])
		data = data[msgLen:]
		r.input.Pop(start - len(data))

		r.trackSequence(seq & MessageSeqMask)
		return Frame{Sequence: seq & MessageSeqMask, Payload: payload}, true
	}

	r.input.Pop(start - len(data))
	return Frame{}, false
}

func (r *FrameReader) desync() {
	r.isSynchronized = false
	r.Corrupt++
}

func (r *FrameReader) trackSequence(seq uint8) {
	if r.nextSeq >= 0 && int(seq) != r.nextSeq {
		r.Lost += (int(seq) - r.nextSeq) & MessageSeqMask
	}
	r.nextSeq = int((seq + 1) & MessageSeqMask)
}
