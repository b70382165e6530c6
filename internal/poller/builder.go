// internal/poller/builder.go
package poller

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	cfg "github.com/tamzrod/harp-sniffdetector/internal/config"
	"github.com/tamzrod/harp-sniffdetector/internal/capture"
	"github.com/tamzrod/harp-sniffdetector/internal/device"
	"github.com/tamzrod/harp-sniffdetector/internal/harp"
	"github.com/tamzrod/harp-sniffdetector/internal/sniffdetector"
	"github.com/tamzrod/harp-sniffdetector/internal/transport"
)

// OnConnect runs after every successful dial, before the first read.
type OnConnect func(ctx context.Context, d *device.Device)

// Build constructs a Poller for one unit and wires the device lifecycle.
// The connection is reused while healthy. On transport death the Poller
// discards it and uses the factory on a future tick.
func Build(ctx context.Context, u cfg.UnitConfig, log zerolog.Logger, onConnect OnConnect) (*Poller, func() error, error) {
	log = log.With().Str("unit", u.ID).Logger()
	timeout := time.Duration(u.Source.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = cfg.DefaultTimeoutMs * time.Millisecond
	}

	// client factory: ONE attempt per call
	factory := func(ctx context.Context) (Client, error) {
		d, err := Dial(ctx, u.Source, log)
		if err != nil {
			return nil, err
		}
		if onConnect != nil {
			onConnect(ctx, d)
		}
		return d, nil
	}

	reads := make([]ReadBlock, 0, len(u.Reads))
	for _, r := range u.Reads {
		d, err := cfg.ResolveRead(r)
		if err != nil {
			return nil, nil, err
		}
		reads = append(reads, ReadBlock{Register: d, Address: r.Address})
	}

	// initial client (fail fast at startup)
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	client, err := factory(dialCtx)
	cancel()
	if err != nil {
		return nil, nil, err
	}

	p, err := New(
		Config{
			UnitID:   u.ID,
			Interval: time.Duration(u.Poll.IntervalMs) * time.Millisecond,
			Timeout:  timeout,
			Reads:    reads,
		},
		client,
		factory,
	)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	p.SetLogger(log)

	return p, p.Close, nil
}

// Dial opens the source endpoint and runs the SniffDetector identity check.
// When a capture path is set every frame is also recorded there.
func Dial(ctx context.Context, src cfg.SourceConfig, log zerolog.Logger) (*device.Device, error) {
	cat := sniffdetector.Catalog()

	stream, err := transport.Open(ctx, src.Endpoint, cat, transport.WithLogger(log))
	if err != nil {
		return nil, err
	}

	var tr device.Transport = stream
	if src.Capture != "" {
		rec, err := capture.OpenFile(src.Capture, src.DeviceName)
		if err != nil {
			_ = stream.Close()
			return nil, err
		}
		log.Info().Str("file", src.Capture).Str("session", rec.Session()).Msg("capturing frames")
		tr = capture.NewTap(stream, rec)
	}

	d, err := sniffdetector.Open(ctx, tr,
		device.WithLogger(log),
		device.WithEventHandler(func(m harp.Message) {
			log.Debug().Stringer("event", m).Msg("event while polling")
		}),
	)
	if err != nil {
		return nil, err
	}
	return d.Raw(), nil
}
