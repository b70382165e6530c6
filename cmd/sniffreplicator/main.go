// cmd/sniffreplicator/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/tamzrod/harp-sniffdetector/internal/config"
	"github.com/tamzrod/harp-sniffdetector/internal/device"
	"github.com/tamzrod/harp-sniffdetector/internal/logging"
	"github.com/tamzrod/harp-sniffdetector/internal/poller"
	"github.com/tamzrod/harp-sniffdetector/internal/sniffdetector"
	"github.com/tamzrod/harp-sniffdetector/internal/status"
	"github.com/tamzrod/harp-sniffdetector/internal/writer"
)

func main() {
	level := flag.String("log-level", "info", "log level (trace|debug|info|warn|error)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: sniffreplicator [flags] <config.yaml>\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	log := logging.New("sniffreplicator", *level)

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	// --------------------
	// Load + validate config
	// --------------------

	cfg, err := config.Load(flag.Arg(0))
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	if err := config.Validate(cfg); err != nil {
		log.Fatal().Err(err).Msg("config validation failed")
	}
	config.Normalize(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	var closers []func() error

	// --------------------
	// Build per-unit pipelines
	// --------------------

	for _, unit := range cfg.Replicator.Units {
		ulog := log.With().Str("unit", unit.ID).Logger()

		// Firmware is learned on every (re)connect and handed to the orchestrator.
		firmware := make(chan device.Version, 1)
		onConnect := func(ctx context.Context, d *device.Device) {
			v, err := d.ReadFirmwareVersion(ctx)
			if err != nil {
				ulog.Warn().Err(err).Msg("firmware version read failed")
				return
			}
			ulog.Info().Stringer("firmware", v).Msg("device connected")
			select {
			case <-firmware:
			default:
			}
			firmware <- v
		}

		// ---- poller ----
		p, closePoller, err := poller.Build(ctx, unit, log, onConnect)
		if err != nil {
			ulog.Fatal().Err(err).Msg("poller build failed")
		}
		closers = append(closers, closePoller)

		// ---- writer plan ----
		plan, err := writer.BuildPlan(unit)
		if err != nil {
			ulog.Fatal().Err(err).Msg("writer plan failed")
		}

		// ---- writer clients (DATA + STATUS) ----
		clients, closeWriters, err := writer.BuildEndpointClients(unit)
		if err != nil {
			ulog.Fatal().Err(err).Msg("writer clients failed")
		}
		closers = append(closers, closeWriters)

		dataWriter := writer.New(plan, clients)

		// Status writer (optional per unit)
		statusWriter, statusEnabled := writer.NewDeviceStatusWriter(plan, clients)

		// ---- channel between poller and writer ----
		out := make(chan poller.PollResult)

		wg.Add(2)
		go func() {
			defer wg.Done()
			orchestrate(ctx, ulog, out, firmware, dataWriter, statusWriter, statusEnabled)
		}()

		// poller producer
		go func() {
			defer wg.Done()
			p.Run(ctx, out)
		}()

		ulog.Info().
			Str("source", unit.Source.Endpoint).
			Int("reads", len(unit.Reads)).
			Int("targets", len(unit.Targets)).
			Bool("status", statusEnabled).
			Msg("unit started")
	}

	<-ctx.Done()
	log.Info().Msg("shutting down")

	wg.Wait()
	for _, fn := range closers {
		if err := fn(); err != nil {
			log.Warn().Err(err).Msg("close failed")
		}
	}
}

// orchestrate owns the runner-side status state and the 1Hz seconds ticker.
func orchestrate(
	ctx context.Context,
	log zerolog.Logger,
	in <-chan poller.PollResult,
	firmware <-chan device.Version,
	dataWriter writer.Writer,
	statusWriter writer.StatusWriter,
	statusEnabled bool,
) {
	tracker := status.NewTracker(sniffdetector.WhoAmI)

	secTicker := time.NewTicker(time.Second)
	defer secTicker.Stop()

	publish := func(changed bool) {
		if !statusEnabled || !changed {
			return
		}
		if err := statusWriter.WriteStatus(tracker.Snapshot()); err != nil {
			log.Warn().Err(err).Msg("status write failed")
		}
	}

	// Full block write on start (identity re-assert) if enabled.
	publish(true)

	for {
		select {
		case <-ctx.Done():
			return

		case v := <-firmware:
			publish(tracker.SetFirmware(v.Major, v.Minor))

		case res := <-in:
			// --- data delivery ---
			if err := dataWriter.Write(res); err != nil {
				log.Warn().Err(err).Msg("writer error")
			}
			if res.Err != nil {
				log.Warn().Err(res.Err).Msg("poll failed")
			}

			// --- status update (device-level truth) ---
			var deviceSeconds float64
			if len(res.Blocks) > 0 {
				deviceSeconds = res.Blocks[len(res.Blocks)-1].Timestamp
			}
			publish(tracker.Observe(res.Err, deviceSeconds))

		case <-secTicker.C:
			// seconds_in_error increments here only.
			publish(tracker.Tick())
		}
	}
}
