// Package monitor decodes the responder's trace frames from a serial stream
package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"i2cresponder/core"
	"i2cresponder/protocol"
)

const readChunk = 64

// Sink receives decoded reports
type Sink interface {
	Publish(ctx context.Context, rep core.Report) error
}

// Monitor reads frames from r and hands their reports to the sinks
type Monitor struct {
	r      io.Reader
	frames *protocol.FrameReader
	log    logrus.FieldLogger
	sinks  []Sink

	reports int
	last    core.Report // last stats report
}

// New creates a monitor reading from r
func New(r io.Reader, log logrus.FieldLogger, sinks ...Sink) *Monitor {
	return &Monitor{
		r:      r,
		frames: protocol.NewFrameReader(protocol.MessageMax * 4),
		log:    log,
		sinks:  sinks,
	}
}

// Run reads until ctx is cancelled or the reader fails. io.EOF ends the run
// without error.
func (m *Monitor) Run(ctx context.Context) error {
	buf := make([]byte, readChunk)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := m.r.Read(buf)
		if n > 0 {
			m.Feed(ctx, buf[:n])
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read trace stream: %w", err)
		}
	}
}

// Feed processes raw stream bytes
func (m *Monitor) Feed(ctx context.Context, data []byte) {
	for len(data) > 0 {
		n := m.frames.Feed(data)
		data = data[n:]
		m.drain(ctx)
		if n == 0 {
			m.log.WithField("bytes", len(data)).Warn("frame buffer full, discarding input")
			return
		}
	}
}

func (m *Monitor) drain(ctx context.Context) {
	for {
		frame, ok := m.frames.Next()
		if !ok {
			return
		}

		rep, err := core.DecodeReport(frame.Payload)
		if err != nil {
			m.log.WithFields(logrus.Fields{"seq": frame.Sequence, "error": err}).Warn("bad report")
			continue
		}
		m.reports++
		m.logReport(rep)

		for _, s := range m.sinks {
			if err := s.Publish(ctx, rep); err != nil {
				m.log.WithError(err).Warn("publish report")
			}
		}
	}
}

func (m *Monitor) logReport(rep core.Report) {
	switch rep.Kind {
	case core.ReportTrace:
		for _, ev := range rep.Events {
			m.log.WithFields(logrus.Fields{
				"mode":  ev.Mode.String(),
				"reg":   ev.Register.String(),
				"count": ev.Count,
				"value": ev.Value,
			}).Debug(ev.Kind.String())
		}

	case core.ReportStats:
		m.last = rep
		m.log.WithFields(logrus.Fields{
			"reads":       rep.Stats.Reads,
			"writes":      rep.Stats.Writes,
			"selects":     rep.Stats.Selects,
			"overflows":   rep.Stats.Overflows,
			"unknown":     rep.Stats.UnknownRegisters,
			"bus_faults":  rep.Stats.BusFaults,
			"port_errors": rep.PortErrors,
			"dropped":     rep.Dropped,
		}).Info("stats")

	case core.ReportRegisters:
		for _, line := range strings.Split(strings.TrimSpace(rep.Registers), "\n") {
			m.log.WithField("register", line).Info("register map")
		}
	}
}

// Reports returns how many reports were decoded
func (m *Monitor) Reports() int {
	return m.reports
}

// LastStats returns the most recent stats report
func (m *Monitor) LastStats() (core.Report, bool) {
	return m.last, m.last.Kind == core.ReportStats
}

// Corrupt returns how many corrupt frames were skipped
func (m *Monitor) Corrupt() int {
	return m.frames.Corrupt
}

// Lost returns how many frames were missing from the sequence
func (m *Monitor) Lost() int {
	return m.frames.Lost
}
