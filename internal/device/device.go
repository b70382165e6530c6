// internal/device/device.go
package device

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/tamzrod/harp-sniffdetector/internal/harp"
)

// Transport moves complete frames. It must deliver frames unmodified and in order.
// Receive blocks until a frame arrives or ctx is done.
type Transport interface {
	Send(ctx context.Context, frame []byte) error
	Receive(ctx context.Context) ([]byte, error)
}

// State of a device handle.
type State int32

const (
	StateDisconnected State = iota
	StateAwaitingIdentity
	StateReady
	StateFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateAwaitingIdentity:
		return "awaiting-identity"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

var ErrNotReady = errors.New("device: handle not ready")

// DefaultOrphanTimeout bounds how long a cancelled request's reply is waited for.
const DefaultOrphanTimeout = 250 * time.Millisecond

// idleReceive is how long ListenEvents holds the slot per receive.
const idleReceive = 20 * time.Millisecond

// Device is a verified connection to one Harp device.
// It owns the transport and allows a single request in flight.
type Device struct {
	tr    Transport
	cat   *harp.Catalog
	slot  chan struct{}
	state atomic.Int32

	log     zerolog.Logger
	onEvent func(harp.Message)

	// orphans are requests cancelled after they were sent. Their late
	// replies must not answer a later request. Guarded by slot.
	orphans       []orphan
	orphanTimeout time.Duration
}

type orphan struct {
	address uint8
	mt      harp.MessageType
	until   time.Time
}

type Option func(*Device)

// WithLogger sets the logger used for dropped frames and state changes.
func WithLogger(l zerolog.Logger) Option {
	return func(d *Device) { d.log = l }
}

// WithEventHandler receives Event frames that arrive while a reply is awaited.
// The handler runs on the caller's goroutine and must not block.
func WithEventHandler(fn func(harp.Message)) Option {
	return func(d *Device) { d.onEvent = fn }
}

// WithOrphanTimeout sets how long the reply to a cancelled request is
// still expected and discarded when it arrives.
func WithOrphanTimeout(t time.Duration) Option {
	return func(d *Device) { d.orphanTimeout = t }
}

// Connect reads WhoAmI over tr and returns a ready handle if it equals expected.
// On any failure the transport is closed and no handle is returned.
func Connect(ctx context.Context, tr Transport, cat *harp.Catalog, expected uint16, opts ...Option) (*Device, error) {
	d := &Device{
		tr:   tr,
		cat:  cat,
		slot:          make(chan struct{}, 1),
		log:           zerolog.Nop(),
		orphanTimeout: DefaultOrphanTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.setState(StateAwaitingIdentity)

	actual, err := d.readWhoAmI(ctx)
	if err == nil && actual != expected {
		err = &harp.IdentityMismatchError{Expected: expected, Actual: actual}
	}
	if err != nil {
		d.setState(StateFailed)
		if cerr := closeTransport(tr); cerr != nil {
			d.log.Debug().Err(cerr).Msg("close after failed connect")
		}
		return nil, fmt.Errorf("device: connect: %w", err)
	}

	d.setState(StateReady)
	d.log.Info().Uint16("who_am_i", actual).Str("model", cat.Name()).Msg("device identified")
	return d, nil
}

func (d *Device) readWhoAmI(ctx context.Context) (uint16, error) {
	reply, err := d.request(ctx, harp.AddressWhoAmI, harp.Read, nil)
	if err != nil {
		return 0, err
	}
	who, err := d.cat.Resolve(harp.AddressWhoAmI)
	if err != nil {
		return 0, err
	}
	v, err := harp.DecodeMessage[uint16](who, reply)
	if err != nil {
		return 0, err
	}
	return v[0], nil
}

// State returns the current handle state.
func (d *Device) State() State { return State(d.state.Load()) }

// Catalog returns the register catalog the handle was verified against.
func (d *Device) Catalog() *harp.Catalog { return d.cat }

// Close releases the transport. It is safe to call more than once.
func (d *Device) Close() error {
	if State(d.state.Swap(int32(StateClosed))) == StateClosed {
		return nil
	}
	return closeTransport(d.tr)
}

// ReadRegister issues a Read for address and returns the correlated reply.
func (d *Device) ReadRegister(ctx context.Context, address uint8) (harp.Message, error) {
	if err := d.ready(); err != nil {
		return harp.Message{}, err
	}
	return d.request(ctx, address, harp.Read, nil)
}

// Command sends an already built message and returns the correlated reply.
func (d *Device) Command(ctx context.Context, msg harp.Message) (harp.Message, error) {
	if err := d.ready(); err != nil {
		return harp.Message{}, err
	}
	return d.roundTrip(ctx, msg)
}

func (d *Device) ready() error {
	if s := d.State(); s != StateReady {
		return fmt.Errorf("%w: %s", ErrNotReady, s)
	}
	return nil
}

func (d *Device) setState(s State) { d.state.Store(int32(s)) }

func (d *Device) request(ctx context.Context, address uint8, mt harp.MessageType, values []uint8) (harp.Message, error) {
	desc, err := d.cat.Resolve(address)
	if err != nil {
		return harp.Message{}, err
	}
	req, err := harp.BuildCommand(d.cat, address, mt, desc.Type, values)
	if err != nil {
		return harp.Message{}, err
	}
	return d.roundTrip(ctx, req)
}

// roundTrip sends req and waits for the reply with the same address and base type.
// Events are handed to the event handler; other frames are stale and dropped.
func (d *Device) roundTrip(ctx context.Context, req harp.Message) (harp.Message, error) {
	select {
	case d.slot <- struct{}{}:
	case <-ctx.Done():
		return harp.Message{}, cancelled(ctx)
	}
	defer func() { <-d.slot }()

	d.expireOrphans()

	if err := d.tr.Send(ctx, req.Bytes()); err != nil {
		if ctx.Err() != nil {
			return harp.Message{}, cancelled(ctx)
		}
		return harp.Message{}, fmt.Errorf("device: send %s: %w", req.Type, err)
	}

	for {
		raw, err := d.tr.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				d.abandon(req)
				return harp.Message{}, cancelled(ctx)
			}
			return harp.Message{}, fmt.Errorf("device: receive: %w", err)
		}

		reply, err := harp.Parse(d.cat, raw)
		if err != nil {
			return harp.Message{}, err
		}

		if reply.Type == harp.Event && req.Type != harp.Event {
			d.event(reply)
			continue
		}

		if d.claimOrphan(reply) {
			continue
		}

		if reply.Address != req.Address || reply.Type.Base() != req.Type.Base() {
			d.stale(reply)
			continue
		}

		if reply.Type.IsError() {
			return reply, fmt.Errorf("%w: %s on register %d", harp.ErrDeviceError, req.Type, req.Address)
		}
		return reply, nil
	}
}

// ListenEvents hands Event frames to the event handler while no request is
// in flight. Requests keep working meanwhile: the slot is given up between
// short receives. It returns nil when ctx ends.
func (d *Device) ListenEvents(ctx context.Context) error {
	if err := d.ready(); err != nil {
		return err
	}

	for {
		select {
		case d.slot <- struct{}{}:
		case <-ctx.Done():
			return nil
		}

		err := d.idle(ctx)
		<-d.slot

		switch {
		case ctx.Err() != nil:
			return nil
		case err != nil:
			return err
		}
	}
}

// idle runs one short receive for ListenEvents. Slot must be held.
func (d *Device) idle(ctx context.Context) error {
	d.expireOrphans()

	rctx, cancel := context.WithTimeout(ctx, idleReceive)
	defer cancel()
	raw, err := d.tr.Receive(rctx)
	if err != nil {
		if rctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("device: receive: %w", err)
	}

	msg, err := harp.Parse(d.cat, raw)
	if err != nil {
		d.log.Debug().Err(err).Msg("dropping bad frame while idle")
		return nil
	}
	switch {
	case msg.Type == harp.Event:
		d.event(msg)
	case d.claimOrphan(msg):
	default:
		d.stale(msg)
	}
	return nil
}

func (d *Device) event(m harp.Message) {
	if d.onEvent != nil {
		d.onEvent(m)
	}
}

func (d *Device) stale(m harp.Message) {
	d.log.Debug().
		Uint8("address", m.Address).
		Stringer("type", m.Type).
		Msg("dropping stale reply")
}

// ---- orphaned requests ----

// abandon records a request whose reply may still arrive. Slot must be held.
func (d *Device) abandon(req harp.Message) {
	if d.orphanTimeout <= 0 {
		return
	}
	d.orphans = append(d.orphans, orphan{
		address: req.Address,
		mt:      req.Type.Base(),
		until:   time.Now().Add(d.orphanTimeout),
	})
}

// claimOrphan reports whether m answers a cancelled request, forgetting it if so.
func (d *Device) claimOrphan(m harp.Message) bool {
	i := slices.IndexFunc(d.orphans, func(o orphan) bool {
		return o.address == m.Address && o.mt == m.Type.Base()
	})
	if i < 0 {
		return false
	}
	d.orphans = slices.Delete(d.orphans, i, i+1)
	d.log.Debug().
		Uint8("address", m.Address).
		Stringer("type", m.Type).
		Msg("dropping late reply to cancelled request")
	return true
}

func (d *Device) expireOrphans() {
	now := time.Now()
	d.orphans = slices.DeleteFunc(d.orphans, func(o orphan) bool { return now.After(o.until) })
}

func cancelled(ctx context.Context) error {
	return fmt.Errorf("%w: %w", harp.ErrCancelled, ctx.Err())
}

func closeTransport(tr Transport) error {
	if c, ok := tr.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
