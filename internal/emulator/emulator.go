// internal/emulator/emulator.go
package emulator

import (
	"context"
	"encoding/binary"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tamzrod/harp-sniffdetector/internal/device"
	"github.com/tamzrod/harp-sniffdetector/internal/harp"
	"github.com/tamzrod/harp-sniffdetector/internal/sniffdetector"
)

// Emulator answers Harp commands the way SniffDetector firmware does.
// Handle is safe for concurrent use; Serve drives one transport.
type Emulator struct {
	cat *harp.Catalog

	mu     sync.Mutex
	regs   map[uint8][]byte
	epoch  time.Time
	offset float64 // seconds added to the elapsed time since epoch

	sample func() uint16
	now    func() time.Time
	log    zerolog.Logger
}

type Option func(*Emulator)

// WithWhoAmI makes the emulator report a different identity.
func WithWhoAmI(id uint16) Option {
	return func(e *Emulator) { e.put(harp.AddressWhoAmI, u16(id)) }
}

// WithSensor sets the source sampled for RawVoltage.
func WithSensor(fn func() uint16) Option {
	return func(e *Emulator) { e.sample = fn }
}

func WithLogger(l zerolog.Logger) Option {
	return func(e *Emulator) { e.log = l }
}

// WithClock replaces time.Now for timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Emulator) { e.now = now }
}

// New returns an emulator in its power-on state.
func New(opts ...Option) *Emulator {
	e := &Emulator{
		cat:    sniffdetector.Catalog(),
		regs:   make(map[uint8][]byte),
		sample: func() uint16 { return 2048 },
		now:    time.Now,
		log:    zerolog.Nop(),
	}
	for _, d := range e.cat.Descriptors() {
		e.regs[d.Address] = make([]byte, d.PayloadSize())
	}

	name := make([]byte, harp.DeviceNameLength)
	copy(name, sniffdetector.DeviceName)
	e.put(harp.AddressWhoAmI, u16(sniffdetector.WhoAmI))
	e.put(harp.AddressDeviceName, name)
	e.put(sniffdetector.AddressEventDispatchFrequency, u16(sniffdetector.DefaultDispatchFrequency))

	for _, opt := range opts {
		opt(e)
	}
	e.epoch = e.now()
	return e
}

func (e *Emulator) put(address uint8, payload []byte) { e.regs[address] = payload }

func u16(v uint16) []byte { return binary.LittleEndian.AppendUint16(nil, v) }

// ---- register engine ----

// Handle applies one command and returns the replies the device would send.
func (e *Emulator) Handle(req harp.Message) []harp.Message {
	d, err := e.cat.Resolve(req.Address)
	if err != nil {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var out harp.Message
	switch req.Type {
	case harp.Read:
		out = e.reply(harp.Read, d)
	case harp.Write:
		// applied even when muted, so a write can clear the mute bit
		out = e.write(d, req.Payload)
	default:
		// hosts do not send events; errors are replies only
		return nil
	}
	if e.muted() {
		e.log.Debug().Str("register", d.Name).Msg("reply muted")
		return nil
	}
	return []harp.Message{out}
}

// muted reads the OperationControl mute bit. Callers hold mu.
func (e *Emulator) muted() bool {
	return e.regs[harp.AddressOperationControl][0]&harp.OperationMuteReplies != 0
}

func (e *Emulator) write(d harp.Descriptor, payload []byte) harp.Message {
	if !d.Access.Allows(harp.Write) || d.Address == harp.AddressWhoAmI {
		e.log.Debug().Str("register", d.Name).Msg("write to read-only register")
		return e.reply(harp.Write|harp.ErrorFlag, d)
	}

	switch d.Address {
	case sniffdetector.AddressEventDispatchFrequency:
		hz := binary.LittleEndian.Uint16(payload)
		if hz > sniffdetector.MaxDispatchFrequency {
			e.put(d.Address, u16(sniffdetector.MaxDispatchFrequency))
			return e.reply(harp.Write|harp.ErrorFlag, d)
		}
	case harp.AddressTimestampSeconds:
		e.offset = float64(binary.LittleEndian.Uint32(payload)) - e.elapsed()
		return e.reply(harp.Write, d)
	}

	e.put(d.Address, append([]byte(nil), payload...))
	return e.reply(harp.Write, d)
}

// reply carries the register's current value and the device time.
func (e *Emulator) reply(mt harp.MessageType, d harp.Descriptor) harp.Message {
	return harp.Message{
		Type:         mt,
		Address:      d.Address,
		PayloadType:  d.Type,
		Payload:      e.value(d.Address),
		HasTimestamp: true,
		Timestamp:    e.clock(),
	}
}

func (e *Emulator) value(address uint8) []byte {
	switch address {
	case sniffdetector.AddressRawVoltage:
		return u16(e.sample())
	case harp.AddressTimestampSeconds:
		return binary.LittleEndian.AppendUint32(nil, uint32(e.clock()))
	}
	return append([]byte(nil), e.regs[address]...)
}

func (e *Emulator) elapsed() float64 { return e.now().Sub(e.epoch).Seconds() }

func (e *Emulator) clock() float64 {
	t := e.offset + e.elapsed()
	if t < 0 {
		return 0
	}
	return t
}

// ---- event dispatch ----

// dispatchInterval is zero when RawVoltage events are off or replies are muted.
func (e *Emulator) dispatchInterval() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()

	enabled := sniffdetector.Events(e.regs[sniffdetector.AddressEventEnable][0])
	hz := binary.LittleEndian.Uint16(e.regs[sniffdetector.AddressEventDispatchFrequency])
	if e.muted() || enabled&sniffdetector.EventsRawVoltage == 0 || hz == 0 {
		return 0
	}
	return time.Second / time.Duration(hz)
}

// RawVoltageEvent builds the event the device emits on each dispatch tick.
func (e *Emulator) RawVoltageEvent() harp.Message {
	d, _ := e.cat.Resolve(sniffdetector.AddressRawVoltage)

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reply(harp.Event, d)
}

// ---- serving ----

// Serve answers commands from tr and emits events until ctx ends or tr fails.
func (e *Emulator) Serve(ctx context.Context, tr device.Transport) error {
	frames := make(chan []byte)
	errc := make(chan error, 1)
	go func() {
		for {
			f, err := tr.Receive(ctx)
			if err != nil {
				errc <- err
				return
			}
			select {
			case frames <- f:
			case <-ctx.Done():
				return
			}
		}
	}()

	var (
		ticker   *time.Ticker
		tick     <-chan time.Time
		interval time.Duration
	)
	defer func() {
		if ticker != nil {
			ticker.Stop()
		}
	}()

	for {
		if want := e.dispatchInterval(); want != interval {
			if ticker != nil {
				ticker.Stop()
				ticker, tick = nil, nil
			}
			if want > 0 {
				ticker = time.NewTicker(want)
				tick = ticker.C
			}
			interval = want
			e.log.Debug().Dur("interval", interval).Msg("event dispatch")
		}

		select {
		case <-ctx.Done():
			return nil
		case err := <-errc:
			if ctx.Err() != nil {
				return nil
			}
			return err
		case f := <-frames:
			req, err := harp.Parse(e.cat, f)
			if err != nil {
				e.log.Warn().Err(err).Msg("bad command")
				continue
			}
			for _, reply := range e.Handle(req) {
				if err := send(ctx, tr, reply); err != nil {
					return err
				}
			}
		case <-tick:
			if err := send(ctx, tr, e.RawVoltageEvent()); err != nil {
				return err
			}
		}
	}
}

func send(ctx context.Context, tr device.Transport, m harp.Message) error {
	frame, err := m.MarshalBinary()
	if err != nil {
		return err
	}
	if err := tr.Send(ctx, frame); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
