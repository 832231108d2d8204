package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"tinygo.org/x/drivers"

	"i2cresponder/core"
	"i2cresponder/host/config"
	"i2cresponder/host/controller"
	"i2cresponder/host/monitor"
	"i2cresponder/host/serial"
	"i2cresponder/host/sim"
	"i2cresponder/protocol"
)

var (
	configPath = flag.String("config", "", "JSON5 configuration file")
	busName    = flag.String("bus", "", "I2C bus name (overrides config)")
	address    = flag.Uint("addr", 0, "Responder 7-bit address (overrides config)")
	device     = flag.String("device", "", "Trace serial device (overrides config)")
	redisAddr  = flag.String("redis", "", "Mirror observed writes to this Redis server")
	simulate   = flag.Bool("sim", false, "Talk to an in-process simulated responder")
	verbose    = flag.Bool("verbose", false, "Enable debug output")
)

var log = logrus.New()

type session struct {
	cfg    *config.Config
	client *controller.Client
	regs   *core.RegisterFile
	bus    *sim.Bus    // nil unless simulating
	trace  *core.Trace // nil unless simulating
	closer io.Closer
}

func main() {
	flag.Parse()

	log.Formatter = new(logrus.TextFormatter)
	log.Out = os.Stdout

	cfg, err := loadConfig()
	if err != nil {
		log.WithError(err).Fatal("configuration")
	}
	log.Level = cfg.Level()

	s, err := openSession(cfg)
	if err != nil {
		log.WithError(err).Fatal("open bus")
	}
	defer s.close()

	fmt.Println("I2C responder host (protocol " + protocol.Version + ")")
	fmt.Println("=================================")
	fmt.Println()
	fmt.Printf("Responder at 0x%02X", cfg.Address)
	if s.bus != nil {
		fmt.Print(" (simulated)")
	}
	fmt.Println()
	fmt.Println("Enter commands (type 'help' for available commands, 'quit' to exit):")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		if parts[0] == "quit" || parts[0] == "exit" || parts[0] == "q" {
			fmt.Println("Goodbye!")
			return
		}
		if err := s.run(parts[0], parts[1:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}

	if err := scanner.Err(); err != nil {
		log.WithError(err).Fatal("reading input")
	}
}

func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return nil, err
		}
	}

	if *busName != "" {
		cfg.Bus.Name = *busName
	}
	if *address != 0 {
		cfg.Address = uint16(*address)
	}
	if *device != "" {
		cfg.Serial.Device = *device
	}
	if *redisAddr != "" {
		cfg.Redis.Addr = *redisAddr
	}
	if *verbose {
		cfg.LogLevel = logrus.DebugLevel.String()
	}
	return cfg, cfg.Validate()
}

func openSession(cfg *config.Config) (*session, error) {
	s := &session{
		cfg:  cfg,
		regs: core.NewVoltageRegisters(core.NewDeviceState(0)),
	}

	var bus drivers.I2C
	if *simulate {
		s.bus, _ = sim.NewVoltage(cfg.Address, cfg.Core())
		s.bus.SetLogger(log)
		s.trace = core.NewTrace()
		s.bus.Responder().SetTrace(s.trace)
		bus = s.bus
	} else {
		b, err := controller.OpenBus(cfg.Bus.Name, cfg.Bus.SpeedHz)
		if err != nil {
			return nil, err
		}
		s.closer = b
		bus = b
	}

	s.client = controller.New(bus, cfg.Address)
	return s, nil
}

func (s *session) close() {
	if s.closer != nil {
		if err := s.closer.Close(); err != nil {
			log.WithError(err).Warn("close bus")
		}
	}
}

func (s *session) run(cmd string, args []string) error {
	switch cmd {
	case "help", "?":
		printHelp()
		return nil

	case "regs":
		fmt.Print(s.regs.Describe())
		return nil

	case "get":
		reg := core.RegGetVoltage
		if len(args) > 0 {
			var err error
			if reg, err = s.parseRegister(args[0]); err != nil {
				return err
			}
		}
		v, err := s.client.Get(reg)
		if err != nil {
			return err
		}
		if controller.IsSentinel(v) {
			fmt.Printf("%s = 0x%04X (unknown register or stored 0xFFFF)\n", reg, v)
		} else {
			fmt.Printf("%s = %d (0x%04X)\n", reg, v, v)
		}
		return nil

	case "set":
		reg := core.RegSetVoltage
		switch len(args) {
		case 1:
		case 2:
			var err error
			if reg, err = s.parseRegister(args[0]); err != nil {
				return err
			}
			args = args[1:]
		default:
			return fmt.Errorf("usage: set [register] value")
		}
		v, err := strconv.ParseUint(args[0], 0, 16)
		if err != nil {
			return fmt.Errorf("value %q: %w", args[0], err)
		}
		if err := s.client.Set(reg, uint16(v)); err != nil {
			return err
		}
		fmt.Printf("%s <- %d\n", reg, v)
		return nil

	case "stats":
		return s.printStats()

	case "trace":
		if s.trace == nil {
			return fmt.Errorf("trace is only available with -sim")
		}
		s.trace.Dump(func(line string) { fmt.Println(line) })
		return nil

	case "reset":
		if s.bus == nil {
			return fmt.Errorf("reset is only available with -sim")
		}
		s.bus.Reset()
		fmt.Println("Responder reset")
		return nil

	case "monitor":
		d := 10 * time.Second
		if len(args) > 0 {
			var err error
			if d, err = time.ParseDuration(args[0]); err != nil {
				return fmt.Errorf("duration %q: %w", args[0], err)
			}
		}
		return s.monitor(d)
	}

	return fmt.Errorf("unknown command: %s (type 'help' for available commands)", cmd)
}

func (s *session) parseRegister(arg string) (core.RegisterID, error) {
	if r, ok := s.regs.LookupName(arg); ok {
		return r.ID, nil
	}
	v, err := strconv.ParseUint(arg, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("register %q: %w", arg, err)
	}
	return core.RegisterID(v), nil
}

func (s *session) printStats() error {
	if s.bus == nil {
		return fmt.Errorf("stats are read from the trace port on hardware, use monitor")
	}
	st := s.bus.Responder().Machine().Stats()
	fmt.Printf("reads=%d writes=%d selects=%d overflows=%d unknown=%d bus_faults=%d port_errors=%d\n",
		st.Reads, st.Writes, st.Selects, st.Overflows, st.UnknownRegisters, st.BusFaults,
		s.bus.Responder().PortErrors())
	return nil
}

func (s *session) monitor(d time.Duration) error {
	port, err := serial.Open(&serial.Config{
		Device:      s.cfg.Serial.Device,
		Baud:        s.cfg.Serial.Baud,
		ReadTimeout: s.cfg.Serial.ReadTimeout,
	})
	if err != nil {
		return err
	}
	defer port.Close()
	if err := port.Flush(); err != nil {
		log.WithError(err).Debug("flush trace port")
	}

	var sinks []monitor.Sink
	if s.cfg.Redis.Addr != "" {
		mirror := monitor.NewRedisMirror(s.cfg.Redis.Addr, s.cfg.Redis.Prefix)
		defer mirror.Close()
		sinks = append(sinks, mirror)
	}

	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	m := monitor.New(&serial.TimeoutReader{Port: port}, log, sinks...)
	log.WithFields(logrus.Fields{"device": s.cfg.Serial.Device, "duration": d}).Info("monitoring")

	go func() {
		<-ctx.Done()
		port.Close()
	}()

	err = m.Run(ctx)
	log.WithFields(logrus.Fields{
		"reports": m.Reports(),
		"corrupt": m.Corrupt(),
		"lost":    m.Lost(),
	}).Info("monitor stopped")

	if ctx.Err() != nil {
		return nil
	}
	return err
}

func printHelp() {
	fmt.Println("\nAvailable commands:")
	fmt.Println("  help                 - Show this help message")
	fmt.Println("  regs                 - List the register map")
	fmt.Println("  get [register]       - Read a register (default get_voltage)")
	fmt.Println("  set [register] value - Write a register (default set_voltage)")
	fmt.Println("  stats                - Show responder counters (-sim)")
	fmt.Println("  trace                - Dump the responder trace (-sim)")
	fmt.Println("  reset                - Power-cycle the responder (-sim)")
	fmt.Println("  monitor [duration]   - Decode trace frames from the serial port")
	fmt.Println("  quit/exit/q          - Exit the program")
	fmt.Println()
}
