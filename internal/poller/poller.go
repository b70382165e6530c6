// internal/poller/poller.go
package poller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tamzrod/harp-sniffdetector/internal/harp"
)

// Client abstracts the device operations needed by the poller.
// The poller depends on register geometry only.
type Client interface {
	ReadRegister(ctx context.Context, address uint8) (harp.Message, error)
	Close() error
}

// Factory makes one connection attempt.
type Factory func(ctx context.Context) (Client, error)

// Config is the minimal runtime config the poller needs.
type Config struct {
	UnitID   string
	Interval time.Duration
	Timeout  time.Duration // per poll cycle; zero means none
	Reads    []ReadBlock
}

// Poller is a dumb, clock-driven reader.
// A client that fails on transport is dropped; factory replaces it on a later tick.
type Poller struct {
	cfg     Config
	client  Client
	factory Factory
	log     zerolog.Logger
}

// New creates a poller with immutable config. client may be nil when factory is set.
func New(cfg Config, client Client, factory Factory) (*Poller, error) {
	if cfg.UnitID == "" {
		return nil, errors.New("poller: unit id required")
	}
	if cfg.Interval <= 0 {
		return nil, errors.New("poller: interval must be > 0")
	}
	if len(cfg.Reads) == 0 {
		return nil, errors.New("poller: at least one read block required")
	}
	if client == nil && factory == nil {
		return nil, errors.New("poller: client or factory required")
	}
	return &Poller{cfg: cfg, client: client, factory: factory, log: zerolog.Nop()}, nil
}

// SetLogger replaces the default no-op logger.
func (p *Poller) SetLogger(l zerolog.Logger) { p.log = l }

// PollOnce performs exactly one poll cycle.
// All-or-nothing: any failure aborts the cycle.
func (p *Poller) PollOnce(ctx context.Context) PollResult {
	res := PollResult{
		UnitID: p.cfg.UnitID,
		At:     time.Now(),
	}

	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}

	if p.client == nil {
		c, err := p.factory(ctx)
		if err != nil {
			res.Err = fmt.Errorf("poller: connect: %w", err)
			return res
		}
		p.log.Info().Str("unit", p.cfg.UnitID).Msg("device connected")
		p.client = c
	}

	blocks := make([]BlockResult, 0, len(p.cfg.Reads))

	for _, rb := range p.cfg.Reads {
		msg, err := p.client.ReadRegister(ctx, rb.Register.Address)
		if err != nil {
			p.drop(err)
			res.Err = err
			return res
		}

		words, err := Words(rb.Register, msg.Payload)
		if err != nil {
			res.Err = err
			return res
		}

		blocks = append(blocks, BlockResult{
			Register:  rb.Register.Address,
			Name:      rb.Register.Name,
			Address:   rb.Address,
			Words:     words,
			Timestamp: msg.Timestamp,
		})
	}

	// Commit only if all reads succeeded
	res.Blocks = blocks
	return res
}

// drop discards the client unless the device answered and merely refused the read.
func (p *Poller) drop(err error) {
	if errors.Is(err, harp.ErrDeviceError) || p.factory == nil {
		return
	}
	p.log.Warn().Err(err).Str("unit", p.cfg.UnitID).Msg("dropping device connection")
	_ = p.client.Close()
	p.client = nil
}

// Close releases the current client, if any.
func (p *Poller) Close() error {
	if p.client == nil {
		return nil
	}
	err := p.client.Close()
	p.client = nil
	return err
}
