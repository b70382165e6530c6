// cmd/sniffctl/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/tamzrod/harp-sniffdetector/internal/capture"
	"github.com/tamzrod/harp-sniffdetector/internal/device"
	"github.com/tamzrod/harp-sniffdetector/internal/harp"
	"github.com/tamzrod/harp-sniffdetector/internal/logging"
	"github.com/tamzrod/harp-sniffdetector/internal/sniffdetector"
	"github.com/tamzrod/harp-sniffdetector/internal/transport"
)

const usage = `usage: sniffctl [flags] <command> [args]

commands:
  info                          identity, versions and device clock
  read <register>               read one register by name or address
  write <register> <value>...   write one register
  events [-hz N] [-for D]       enable RawVoltage events and print them
  shell                         interactive session
  dump <capture.cbor>           print a frame capture

flags:
`

type options struct {
	endpoint string
	timeout  time.Duration
	capture  string
}

func main() {
	var opts options
	flag.StringVar(&opts.endpoint, "endpoint", "serial:///dev/ttyUSB0", "device endpoint (serial:///dev/x?baud=N or tcp://host:port)")
	flag.DurationVar(&opts.timeout, "timeout", time.Second, "per request timeout")
	flag.StringVar(&opts.capture, "capture", "", "record every frame to this CBOR file")
	level := flag.String("log-level", "warn", "log level")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	log := logging.New("sniffctl", *level)

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd, args := flag.Arg(0), flag.Args()[1:]

	var err error
	switch cmd {
	case "dump":
		err = runDump(os.Stdout, args)
	case "info", "read", "write", "events", "shell":
		err = withDevice(ctx, opts, log, func(s *session) error {
			switch cmd {
			case "info":
				return s.info(ctx)
			case "read":
				return s.read(ctx, args)
			case "write":
				return s.write(ctx, args)
			case "events":
				return s.events(ctx, args)
			default:
				return s.shell(ctx)
			}
		})
	default:
		err = fmt.Errorf("unknown command %q", cmd)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "sniffctl:", err)
		os.Exit(1)
	}
}

// session is one connected SniffDetector plus where its output goes.
type session struct {
	dev     *sniffdetector.Device
	out     io.Writer
	timeout time.Duration
	eventCh chan harp.Message
}

func withDevice(ctx context.Context, opts options, log zerolog.Logger, fn func(*session) error) error {
	cat := sniffdetector.Catalog()

	openCtx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	stream, err := transport.Open(openCtx, opts.endpoint, cat, transport.WithLogger(log))
	if err != nil {
		return err
	}

	var tr device.Transport = stream
	if opts.capture != "" {
		rec, err := capture.OpenFile(opts.capture, "sniffctl")
		if err != nil {
			_ = stream.Close()
			return err
		}
		tr = capture.NewTap(stream, rec)
	}

	s := &session{out: os.Stdout, timeout: opts.timeout, eventCh: make(chan harp.Message, 256)}

	dev, err := sniffdetector.Open(openCtx, tr,
		device.WithLogger(log),
		device.WithEventHandler(func(m harp.Message) {
			select {
			case s.eventCh <- m:
			default:
				log.Warn().Stringer("event", m).Msg("event dropped")
			}
		}),
	)
	if err != nil {
		return err
	}
	defer dev.Close()

	s.dev = dev
	return fn(s)
}

func (s *session) call(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

func (s *session) info(ctx context.Context) error {
	ctx, cancel := s.call(ctx)
	defer cancel()

	raw := s.dev.Raw()

	name, err := raw.ReadDeviceName(ctx)
	if err != nil {
		return err
	}
	fw, err := raw.ReadFirmwareVersion(ctx)
	if err != nil {
		return err
	}
	hw, err := raw.ReadHardwareVersion(ctx)
	if err != nil {
		return err
	}
	serial, err := raw.ReadSerialNumber(ctx)
	if err != nil {
		return err
	}
	clock, err := raw.ReadTimestamp(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(s.out, "device:    %s\n", name)
	fmt.Fprintf(s.out, "who_am_i:  %d\n", sniffdetector.WhoAmI)
	fmt.Fprintf(s.out, "firmware:  %s\n", fw)
	fmt.Fprintf(s.out, "hardware:  %s\n", hw)
	fmt.Fprintf(s.out, "serial:    %d\n", serial)
	fmt.Fprintf(s.out, "clock:     %.0fs\n", clock)
	return nil
}

func (s *session) read(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("read: want <register>")
	}
	d, err := resolve(s.dev.Raw().Catalog(), args[0])
	if err != nil {
		return err
	}

	ctx, cancel := s.call(ctx)
	defer cancel()

	m, err := s.dev.Raw().ReadRegister(ctx, d.Address)
	if err != nil {
		return err
	}
	v, err := formatValue(d, m)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "%s = %s  (t=%.6f)\n", d.Name, v, m.Timestamp)
	return nil
}

func (s *session) write(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return errors.New("write: want <register> <value>...")
	}
	d, err := resolve(s.dev.Raw().Catalog(), args[0])
	if err != nil {
		return err
	}

	ctx, cancel := s.call(ctx)
	defer cancel()

	if err := writeValues(ctx, s.dev.Raw(), d, args[1:]); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "%s written\n", d.Name)
	return nil
}

// events mirrors the pyharp event script: enable, stream, disable.
func (s *session) events(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("events", flag.ContinueOnError)
	hz := fs.Uint("hz", 0, "event dispatch frequency (0 keeps the current one)")
	dur := fs.Duration("for", 0, "stop after this long (0 runs until interrupted)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *hz > 0 {
		cctx, cancel := s.call(ctx)
		err := s.dev.WriteEventDispatchFrequency(cctx, uint16(min(*hz, 0xFFFF)))
		cancel()
		if err != nil && !errors.Is(err, harp.ErrDeviceError) {
			return err
		}
		if err != nil {
			fmt.Fprintf(s.out, "frequency capped at %d Hz\n", sniffdetector.MaxDispatchFrequency)
		}
	}

	cctx, cancel := s.call(ctx)
	err := s.dev.WriteEventEnable(cctx, sniffdetector.EventsRawVoltage)
	cancel()
	if err != nil {
		return err
	}

	defer func() {
		// the parent ctx may already be done
		dctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		_ = s.dev.WriteEventEnable(dctx, sniffdetector.EventsNone)
	}()

	var deadline <-chan time.Time
	if *dur > 0 {
		deadline = time.After(*dur)
	}

	lctx, stop := context.WithCancel(ctx)
	defer stop()
	listening := make(chan error, 1)
	go func() { listening <- s.dev.Raw().ListenEvents(lctx) }()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-deadline:
			return nil
		case err := <-listening:
			return err
		case m := <-s.eventCh:
			if v, ok := sniffdetector.RawVoltageEvent(m); ok {
				fmt.Fprintf(s.out, "%.6f RawVoltage %d\n", v.Seconds, v.Value)
			}
		}
	}
}
