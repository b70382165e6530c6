// cmd/sniffemu/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"math"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/tamzrod/harp-sniffdetector/internal/emulator"
	"github.com/tamzrod/harp-sniffdetector/internal/harp"
	"github.com/tamzrod/harp-sniffdetector/internal/logging"
	"github.com/tamzrod/harp-sniffdetector/internal/sniffdetector"
	"github.com/tamzrod/harp-sniffdetector/internal/transport"
)

func main() {
	listen := flag.String("listen", "127.0.0.1:5400", "TCP address to serve the emulated device on")
	whoAmI := flag.Uint("whoami", uint(sniffdetector.WhoAmI), "identity reported by the device")
	period := flag.Duration("breath", 4*time.Second, "period of the simulated breathing signal")
	level := flag.String("log-level", "info", "log level")
	flag.Parse()

	log := logging.New("sniffemu", *level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", *listen)
	if err != nil {
		log.Fatal().Err(err).Msg("listen failed")
	}
	log.Info().Str("addr", ln.Addr().String()).Uint("whoami", *whoAmI).Msg("emulating SniffDetector")

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	start := time.Now()
	sensor := func() uint16 {
		phase := 2 * math.Pi * time.Since(start).Seconds() / period.Seconds()
		return uint16(2048 + 600*math.Sin(phase))
	}

	var wg sync.WaitGroup
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() == nil {
				log.Error().Err(err).Msg("accept failed")
			}
			break
		}

		clog := log.With().Str("peer", conn.RemoteAddr().String()).Logger()
		clog.Info().Msg("host connected")

		wg.Add(1)
		go func() {
			defer wg.Done()

			// Each host gets a freshly powered-on device.
			emu := emulator.New(
				emulator.WithWhoAmI(uint16(*whoAmI)),
				emulator.WithSensor(sensor),
				emulator.WithLogger(clog),
			)
			stream := transport.NewStream(conn, sniffdetector.Catalog(),
				transport.WithRole(harp.DeviceRole),
				transport.WithLogger(clog),
			)
			defer stream.Close()

			err := emu.Serve(ctx, stream)
			if err != nil && !errors.Is(err, transport.ErrClosed) {
				clog.Warn().Err(err).Msg("session ended")
				return
			}
			clog.Info().Msg("host disconnected")
		}()
	}

	wg.Wait()
}
