// internal/device/access.go
package device

import (
	"context"
	"fmt"
	"strings"

	"github.com/tamzrod/harp-sniffdetector/internal/harp"
)

// ---- generic register access ----

// Read reads the register at address and decodes it as a single value.
func Read[T harp.Element](ctx context.Context, d *Device, address uint8) (T, error) {
	var zero T
	ts, err := ReadTimestamped[T](ctx, d, address)
	if err != nil {
		return zero, err
	}
	return ts.Value, nil
}

// ReadTimestamped reads a single-element register together with its device timestamp.
func ReadTimestamped[T harp.Element](ctx context.Context, d *Device, address uint8) (harp.Timestamped[T], error) {
	arr, err := readArray[T](ctx, d, address)
	if err != nil {
		return harp.Timestamped[T]{}, err
	}
	if len(arr.Value) != 1 {
		return harp.Timestamped[T]{}, fmt.Errorf("%w: register %d holds %d values", harp.ErrArityMismatch, address, len(arr.Value))
	}
	return harp.Timestamped[T]{Seconds: arr.Seconds, Value: arr.Value[0]}, nil
}

// ReadArray reads every element of the register at address.
func ReadArray[T harp.Element](ctx context.Context, d *Device, address uint8) ([]T, error) {
	arr, err := readArray[T](ctx, d, address)
	if err != nil {
		return nil, err
	}
	return arr.Value, nil
}

func readArray[T harp.Element](ctx context.Context, d *Device, address uint8) (harp.Timestamped[[]T], error) {
	reply, err := d.ReadRegister(ctx, address)
	if err != nil {
		return harp.Timestamped[[]T]{}, err
	}
	desc, err := d.cat.Resolve(address)
	if err != nil {
		return harp.Timestamped[[]T]{}, err
	}
	values, err := harp.DecodeMessage[T](desc, reply)
	if err != nil {
		return harp.Timestamped[[]T]{}, err
	}
	return harp.Timestamped[[]T]{Seconds: reply.Timestamp, Value: values}, nil
}

// Write encodes values for the register at address and waits for the acknowledgement.
func Write[T harp.Element](ctx context.Context, d *Device, address uint8, values ...T) error {
	desc, err := d.cat.Resolve(address)
	if err != nil {
		return err
	}
	msg, err := harp.BuildCommand(d.cat, address, harp.Write, desc.Type, values)
	if err != nil {
		return err
	}
	_, err = d.Command(ctx, msg)
	return err
}

// ---- common registers ----

// ReadWhoAmI returns the device identity register.
func (d *Device) ReadWhoAmI(ctx context.Context) (uint16, error) {
	return Read[uint16](ctx, d, harp.AddressWhoAmI)
}

// ReadDeviceName returns the device name with trailing NULs removed.
func (d *Device) ReadDeviceName(ctx context.Context) (string, error) {
	raw, err := ReadArray[uint8](ctx, d, harp.AddressDeviceName)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(raw), "\x00"), nil
}

// Version is a major.minor pair as reported by the device.
type Version struct {
	Major uint8
	Minor uint8
}

func (v Version) String() string { return fmt.Sprintf("%d.%d", v.Major, v.Minor) }

// ReadFirmwareVersion reads the firmware major and minor registers.
func (d *Device) ReadFirmwareVersion(ctx context.Context) (Version, error) {
	major, err := Read[uint8](ctx, d, harp.AddressFirmwareVersionHigh)
	if err != nil {
		return Version{}, err
	}
	minor, err := Read[uint8](ctx, d, harp.AddressFirmwareVersionLow)
	if err != nil {
		return Version{}, err
	}
	return Version{Major: major, Minor: minor}, nil
}

// ReadHardwareVersion reads the hardware major and minor registers.
func (d *Device) ReadHardwareVersion(ctx context.Context) (Version, error) {
	major, err := Read[uint8](ctx, d, harp.AddressHardwareVersionHigh)
	if err != nil {
		return Version{}, err
	}
	minor, err := Read[uint8](ctx, d, harp.AddressHardwareVersionLow)
	if err != nil {
		return Version{}, err
	}
	return Version{Major: major, Minor: minor}, nil
}

// ReadSerialNumber returns the device serial number.
func (d *Device) ReadSerialNumber(ctx context.Context) (uint16, error) {
	return Read[uint16](ctx, d, harp.AddressSerialNumber)
}

// ReadTimestamp returns the device clock in seconds.
func (d *Device) ReadTimestamp(ctx context.Context) (float64, error) {
	secs, err := ReadTimestamped[uint32](ctx, d, harp.AddressTimestampSeconds)
	if err != nil {
		return 0, err
	}
	return float64(secs.Value), nil
}
