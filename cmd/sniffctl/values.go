// cmd/sniffctl/values.go
package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/tamzrod/harp-sniffdetector/internal/device"
	"github.com/tamzrod/harp-sniffdetector/internal/harp"
	"github.com/tamzrod/harp-sniffdetector/internal/sniffdetector"
)

// resolve accepts a register name (any case) or a decimal address.
func resolve(cat *harp.Catalog, ref string) (harp.Descriptor, error) {
	if n, err := strconv.ParseUint(ref, 10, 8); err == nil {
		return cat.Resolve(uint8(n))
	}
	if d, ok := cat.Lookup(ref); ok {
		return d, nil
	}
	return harp.Descriptor{}, fmt.Errorf("%w: %q", harp.ErrUnknownRegister, ref)
}

// formatValue renders the payload of m the way the register declares it.
func formatValue(d harp.Descriptor, m harp.Message) (string, error) {
	var parts []string
	switch {
	case d.Type.IsFloat():
		vs, err := harp.DecodeMessage[float64](d, m)
		if err != nil {
			return "", err
		}
		for _, v := range vs {
			parts = append(parts, strconv.FormatFloat(v, 'g', -1, 32))
		}
	case d.Type.Signed():
		vs, err := harp.DecodeMessage[int64](d, m)
		if err != nil {
			return "", err
		}
		for _, v := range vs {
			parts = append(parts, strconv.FormatInt(v, 10))
		}
	default:
		vs, err := harp.DecodeMessage[uint64](d, m)
		if err != nil {
			return "", err
		}
		if d.Address == harp.AddressDeviceName {
			b := make([]byte, 0, len(vs))
			for _, v := range vs {
				if v != 0 {
					b = append(b, byte(v))
				}
			}
			return strconv.Quote(string(b)), nil
		}
		for _, v := range vs {
			parts = append(parts, strconv.FormatUint(v, 10))
		}
	}

	s := strings.Join(parts, " ")
	if len(parts) > 1 {
		s = "[" + s + "]"
	}
	switch d.Address {
	case sniffdetector.AddressEventEnable:
		if vs, err := harp.DecodeMessage[sniffdetector.Events](d, m); err == nil && len(vs) == 1 {
			s += fmt.Sprintf(" (%s)", vs[0])
		}
	case sniffdetector.AddressErrorState:
		if vs, err := harp.DecodeMessage[sniffdetector.Errors](d, m); err == nil && len(vs) == 1 {
			s += fmt.Sprintf(" (%s)", vs[0])
		}
	}
	return s, nil
}

// writeValues parses args for the register type and writes them.
// EventEnable also takes flag names such as RawVoltage or None.
func writeValues(ctx context.Context, dev *device.Device, d harp.Descriptor, args []string) error {
	switch {
	case d.Type.IsFloat():
		vs := make([]float64, len(args))
		for i, a := range args {
			v, err := strconv.ParseFloat(a, 64)
			if err != nil {
				return fmt.Errorf("%s: %w", d.Name, err)
			}
			vs[i] = v
		}
		return device.Write(ctx, dev, d.Address, vs...)

	case d.Type.Signed():
		vs := make([]int64, len(args))
		for i, a := range args {
			v, err := strconv.ParseInt(a, 0, 64)
			if err != nil {
				return fmt.Errorf("%s: %w", d.Name, err)
			}
			vs[i] = v
		}
		return device.Write(ctx, dev, d.Address, vs...)

	default:
		vs := make([]uint64, len(args))
		for i, a := range args {
			v, err := parseUnsigned(d, a)
			if err != nil {
				return fmt.Errorf("%s: %w", d.Name, err)
			}
			vs[i] = v
		}
		return device.Write(ctx, dev, d.Address, vs...)
	}
}

func parseUnsigned(d harp.Descriptor, a string) (uint64, error) {
	if d.Address == sniffdetector.AddressEventEnable {
		switch strings.ToLower(a) {
		case "none":
			return uint64(sniffdetector.EventsNone), nil
		case "rawvoltage":
			return uint64(sniffdetector.EventsRawVoltage), nil
		}
	}
	return strconv.ParseUint(a, 0, 64)
}
