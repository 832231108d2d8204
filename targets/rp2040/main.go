//go:build rp2040 || rp2350

package main

import (
	"machine"
	"time"

	"i2cresponder/core"
	"i2cresponder/protocol"
	"i2cresponder/targets/rp2040/hwtimer"
)

const (
	responderAddress = 0x17
	statsPeriodUs    = 1000000
	registersEvery   = 10 // stats periods between register map reports
)

var (
	// Framed trace output waiting for USB
	usbQueue *protocol.FifoBuffer
	scratch  *protocol.ScratchOutput
	framer   *protocol.Framer

	responder *core.Responder
	registers *core.RegisterFile
	port      *TargetPort
	trace     *core.Trace

	// Frames that did not fit the USB queue
	framesDropped uint32

	consecutiveWriteFailures uint32
)

func main() {
	// Disable the watchdog left over from a previous boot
	err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0})
	if err != nil {
		return
	}

	InitUSB()
	core.SetDebugWriter(USBDebugWriter)

	usbQueue = protocol.NewFifoBuffer(1024)
	scratch = protocol.NewScratchOutput()
	framer = protocol.NewFramer(scratch)

	// I2C0 default pins: SDA=GP4, SCL=GP5
	port, err = NewTargetPort(machine.I2C0, responderAddress)
	if err != nil {
		core.SetDebugEnabled(true)
		core.DebugPrintln("i2c target setup failed: " + err.Error())
		return
	}

	cfg := core.DefaultConfig()
	registers = core.NewVoltageRegisters(core.NewDeviceState(cfg.InitialValue))
	responder = core.NewResponder(port, core.NewMachine(cfg, registers))
	trace = core.NewTrace()
	responder.SetTrace(trace)
	port.Attach(responder)
	responder.Init()

	go port.Serve()

	var batch [core.ReportMaxEvents]core.TraceEvent
	lastStats := hwtimer.Uptime()
	periods := 0
	queueRegisters()

	for {
		func() {
			defer func() {
				if r := recover(); r != nil {
					usbQueue.Reset()
					scratch.Reset()
				}
			}()

			// Frame pending trace events
			n := 0
			trace.Drain(func(ev core.TraceEvent) {
				batch[n] = ev
				n++
				if n == len(batch) {
					queueTrace(batch[:n])
					n = 0
				}
			})
			if n > 0 {
				queueTrace(batch[:n])
			}

			if now := hwtimer.Uptime(); now-lastStats >= statsPeriodUs {
				lastStats = now
				queueStats()
				periods++
				if periods%registersEvery == 0 {
					queueRegisters()
				}
			}

			writeUSB()
		}()

		time.Sleep(100 * time.Microsecond)
	}
}

func queueTrace(events []core.TraceEvent) {
	framer.EncodeFrame(func(output protocol.OutputBuffer) {
		core.EncodeTraceReport(output, events)
	})
	flushFrame()
}

func queueStats() {
	portErrors := responder.PortErrors()
	st := responder.Machine().Stats()
	framer.EncodeFrame(func(output protocol.OutputBuffer) {
		core.EncodeStatsReport(output, st, portErrors, trace.Dropped()+framesDropped)
	})
	flushFrame()
}

func queueRegisters() {
	framer.EncodeFrame(func(output protocol.OutputBuffer) {
		core.EncodeRegistersReport(output, registers.Describe())
	})
	flushFrame()
}

// flushFrame moves the encoded frame into the USB queue whole or not at all
func flushFrame() {
	if !usbQueue.WriteFrame(scratch.Bytes()) {
		framesDropped++
	}
	scratch.Reset()
}

// writeUSB sends as much of the queue as USB accepts
func writeUSB() {
	if usbQueue.IsEmpty() {
		return
	}
	data := usbQueue.Data()

	n, err := USBWriteBytes(data)
	if err != nil || n == 0 {
		consecutiveWriteFailures++
		// host gone: stale frames are worthless
		if consecutiveWriteFailures > 10 {
			consecutiveWriteFailures = 0
			usbQueue.Reset()
		}
		return
	}
	consecutiveWriteFailures = 0
	usbQueue.Pop(n)
}
