package core

import (
	"errors"

	"i2cresponder/protocol"
)

// ReportKind is the first field of every report frame payload
type ReportKind uint8

const (
	ReportTrace     ReportKind = iota + 1 // batch of trace events
	ReportStats                           // counters snapshot
	ReportRegisters                       // register map description
)

// ReportMaxEvents is the largest trace batch that fits one frame
const ReportMaxEvents = 6

// reportMaxText is the longest register map that fits one frame
const reportMaxText = protocol.MessageLengthMax - protocol.MessageHeader - protocol.MessageTrailer - 3

var ErrUnknownReport = errors.New("unknown report kind")

// Report is a decoded report frame
type Report struct {
	Kind       ReportKind
	Events     []TraceEvent
	Stats      Stats
	PortErrors uint32
	Dropped    uint32
	Registers  string
}

// EncodeTraceReport writes up to ReportMaxEvents events
func EncodeTraceReport(output protocol.OutputBuffer, events []TraceEvent) {
	if len(events) > ReportMaxEvents {
		events = events[:ReportMaxEvents]
	}
	protocol.EncodeVLQUint(output, uint32(ReportTrace))
	protocol.EncodeVLQUint(output, uint32(len(events)))
	for _, ev := range events {
		EncodeTraceEvent(output, ev)
	}
}

// EncodeStatsReport writes a counters snapshot
func EncodeStatsReport(output protocol.OutputBuffer, st Stats, portErrors, dropped uint32) {
	protocol.EncodeVLQUint(output, uint32(ReportStats))
	for _, v := range [...]uint32{
		st.Reads, st.Writes, st.Selects, st.Overflows,
		st.UnknownRegisters, st.BusFaults, portErrors, dropped,
	} {
		protocol.EncodeVLQUint(output, v)
	}
}

// EncodeRegistersReport writes the register map as produced by
// RegisterFile.Describe, cut at the last whole line that fits a frame
func EncodeRegistersReport(output protocol.OutputBuffer, desc string) {
	if len(desc) > reportMaxText {
		desc = desc[:reportMaxText]
		for i := len(desc) - 1; i >= 0; i-- {
			if desc[i] == '\n' {
				desc = desc[:i+1]
				break
			}
		}
	}
	protocol.EncodeVLQUint(output, uint32(ReportRegisters))
	protocol.EncodeVLQBytes(output, []byte(desc))
}

// DecodeReport parses a frame payload
func DecodeReport(payload []byte) (Report, error) {
	kind, err := protocol.DecodeVLQUint(&payload)
	if err != nil {
		return Report{}, err
	}

	rep := Report{Kind: ReportKind(kind)}
	switch rep.Kind {
	case ReportTrace:
		n, err := protocol.DecodeVLQUint(&payload)
		if err != nil {
			return Report{}, err
		}
		if n > ReportMaxEvents {
			return Report{}, protocol.ErrBufferOverflow
		}
		rep.Events = make([]TraceEvent, 0, n)
		for i := uint32(0); i < n; i++ {
			ev, err := DecodeTraceEvent(&payload)
			if err != nil {
				return Report{}, err
			}
			rep.Events = append(rep.Events, ev)
		}

	case ReportStats:
		var fields [8]uint32
		for i := range fields {
			if fields[i], err = protocol.DecodeVLQUint(&payload); err != nil {
				return Report{}, err
			}
		}
		rep.Stats = Stats{
			Reads:            fields[0],
			Writes:           fields[1],
			Selects:          fields[2],
			Overflows:        fields[3],
			UnknownRegisters: fields[4],
			BusFaults:        fields[5],
		}
		rep.PortErrors = fields[6]
		rep.Dropped = fields[7]

	case ReportRegisters:
		text, err := protocol.DecodeVLQBytes(&payload)
		if err != nil {
			return Report{}, err
		}
		rep.Registers = string(text)

	default:
		return Report{}, ErrUnknownReport
	}
	return rep, nil
}
