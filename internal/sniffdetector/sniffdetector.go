// internal/sniffdetector/sniffdetector.go
package sniffdetector

import (
	"context"

	"github.com/tamzrod/harp-sniffdetector/internal/device"
	"github.com/tamzrod/harp-sniffdetector/internal/harp"
)

// Device is a verified SniffDetector connection with typed register access.
type Device struct {
	dev *device.Device
}

// Open runs the identity check over tr and returns a typed handle.
// On failure tr is closed.
func Open(ctx context.Context, tr device.Transport, opts ...device.Option) (*Device, error) {
	d, err := device.Connect(ctx, tr, Catalog(), WhoAmI, opts...)
	if err != nil {
		return nil, err
	}
	return &Device{dev: d}, nil
}

// Raw exposes the untyped handle for base registers and generic access.
func (d *Device) Raw() *device.Device { return d.dev }

func (d *Device) Close() error { return d.dev.Close() }

// ---- RawVoltage ----

func (d *Device) ReadRawVoltage(ctx context.Context) (uint16, error) {
	return device.Read[uint16](ctx, d.dev, AddressRawVoltage)
}

func (d *Device) ReadTimestampedRawVoltage(ctx context.Context) (harp.Timestamped[uint16], error) {
	return device.ReadTimestamped[uint16](ctx, d.dev, AddressRawVoltage)
}

// ---- ErrorState ----

func (d *Device) ReadErrorState(ctx context.Context) (Errors, error) {
	return device.Read[Errors](ctx, d.dev, AddressErrorState)
}

func (d *Device) ReadTimestampedErrorState(ctx context.Context) (harp.Timestamped[Errors], error) {
	return device.ReadTimestamped[Errors](ctx, d.dev, AddressErrorState)
}

// ---- EventEnable ----

func (d *Device) ReadEventEnable(ctx context.Context) (Events, error) {
	return device.Read[Events](ctx, d.dev, AddressEventEnable)
}

func (d *Device) ReadTimestampedEventEnable(ctx context.Context) (harp.Timestamped[Events], error) {
	return device.ReadTimestamped[Events](ctx, d.dev, AddressEventEnable)
}

// WriteEventEnable selects which registers the device streams as events.
func (d *Device) WriteEventEnable(ctx context.Context, v Events) error {
	return device.Write(ctx, d.dev, AddressEventEnable, v)
}

// ---- EventDispatchFrequency ----

func (d *Device) ReadEventDispatchFrequency(ctx context.Context) (uint16, error) {
	return device.Read[uint16](ctx, d.dev, AddressEventDispatchFrequency)
}

func (d *Device) ReadTimestampedEventDispatchFrequency(ctx context.Context) (harp.Timestamped[uint16], error) {
	return device.ReadTimestamped[uint16](ctx, d.dev, AddressEventDispatchFrequency)
}

// WriteEventDispatchFrequency sets the event rate in Hz.
// The firmware rejects values above MaxDispatchFrequency with an error reply.
func (d *Device) WriteEventDispatchFrequency(ctx context.Context, hz uint16) error {
	return device.Write(ctx, d.dev, AddressEventDispatchFrequency, hz)
}

// ---- events ----

// RawVoltageEvent decodes an Event frame from the RawVoltage register.
// ok is false for any other message.
func RawVoltageEvent(m harp.Message) (v harp.Timestamped[uint16], ok bool) {
	if m.Type != harp.Event || m.Address != AddressRawVoltage {
		return v, false
	}
	desc, err := Catalog().Resolve(AddressRawVoltage)
	if err != nil {
		return v, false
	}
	values, err := harp.DecodeMessage[uint16](desc, m)
	if err != nil {
		return v, false
	}
	return harp.Timestamped[uint16]{Seconds: m.Timestamp, Value: values[0]}, true
}
