// internal/config/validate.go
package config

import (
	"errors"
	"fmt"
	"math"

	"github.com/tamzrod/harp-sniffdetector/internal/harp"
	"github.com/tamzrod/harp-sniffdetector/internal/sniffdetector"
	"github.com/tamzrod/harp-sniffdetector/internal/status"
	"github.com/tamzrod/harp-sniffdetector/internal/transport"
)

// ResolveRead finds the register a read refers to. Names are matched
// case-insensitively against the SniffDetector catalog.
func ResolveRead(r ReadConfig) (harp.Descriptor, error) {
	d, ok := sniffdetector.Catalog().Lookup(r.Register)
	if !ok {
		return harp.Descriptor{}, fmt.Errorf("%w: %q", harp.ErrUnknownRegister, r.Register)
	}
	if !d.Access.Allows(harp.Read) {
		return harp.Descriptor{}, fmt.Errorf("register %q is not readable", d.Name)
	}
	return d, nil
}

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil || len(cfg.Replicator.Units) == 0 {
		return errors.New("config: no units defined")
	}

	type span struct {
		start uint16
		end   uint16
		unit  string
	}

	seen := make(map[string]bool)

	// ------------------------------------------------------------
	// UNIT / SOURCE / READ / TARGET SHAPE
	// ------------------------------------------------------------

	for _, u := range cfg.Replicator.Units {
		if u.ID == "" {
			return errors.New("config: unit id required")
		}
		if seen[u.ID] {
			return fmt.Errorf("config: duplicate unit id %q", u.ID)
		}
		seen[u.ID] = true

		if _, err := transport.ParseEndpoint(u.Source.Endpoint); err != nil {
			return fmt.Errorf("unit %q: source: %w", u.ID, err)
		}
		if u.Source.TimeoutMs < 0 {
			return fmt.Errorf("unit %q: timeout_ms must be >= 0", u.ID)
		}
		if u.Poll.IntervalMs < 0 {
			return fmt.Errorf("unit %q: poll.interval_ms must be >= 0", u.ID)
		}

		// device_name sanity (ASCII only)
		for i := 0; i < len(u.Source.DeviceName); i++ {
			if u.Source.DeviceName[i] > 0x7F {
				return fmt.Errorf("unit %q: device_name must contain ASCII characters only", u.ID)
			}
		}

		if len(u.Reads) == 0 {
			return fmt.Errorf("unit %q: at least one read required", u.ID)
		}
		for _, r := range u.Reads {
			d, err := ResolveRead(r)
			if err != nil {
				return fmt.Errorf("unit %q: %w", u.ID, err)
			}
			if int(r.Address)+d.WordCount()-1 > math.MaxUint16 {
				return fmt.Errorf("unit %q: register %q at %d runs past the address space", u.ID, d.Name, r.Address)
			}
		}

		for _, t := range u.Targets {
			switch t.Kind {
			case "", TargetModbus, TargetIngest:
			default:
				return fmt.Errorf("unit %q: target %q: unknown kind %q", u.ID, t.Endpoint, t.Kind)
			}
			if t.Endpoint == "" {
				return fmt.Errorf("unit %q: target %d: endpoint required", u.ID, t.ID)
			}
			if len(t.Memories) == 0 {
				return fmt.Errorf("unit %q: target %q: at least one memory required", u.ID, t.Endpoint)
			}
		}
	}

	// ------------------------------------------------------------
	// DEVICE STATUS BLOCK VALIDATION (PER-TARGET, OPT-IN)
	// ------------------------------------------------------------

	// key = endpoint | status_unit_id | status_slot
	statusOwner := make(map[string]string)

	for _, u := range cfg.Replicator.Units {
		if u.Source.StatusSlot == nil {
			continue
		}

		if len(u.Targets) == 0 {
			return fmt.Errorf("unit %q: status_slot is set but no targets are defined", u.ID)
		}

		slot := *u.Source.StatusSlot
		if (int(slot)+1)*status.SlotsPerDevice-1 > math.MaxUint16 {
			return fmt.Errorf("unit %q: status_slot %d runs past the address space", u.ID, slot)
		}

		for _, t := range u.Targets {
			if t.StatusUnitID == nil {
				return fmt.Errorf("unit %q: status_slot is set but target %q has no status_unit_id", u.ID, t.Endpoint)
			}

			key := fmt.Sprintf("%s|%d|%d", t.Endpoint, *t.StatusUnitID, slot)
			if prev, exists := statusOwner[key]; exists {
				return fmt.Errorf(
					"status_slot collision: endpoint=%s status_unit_id=%d slot=%d used by units %q and %q",
					t.Endpoint, *t.StatusUnitID, slot, prev, u.ID,
				)
			}
			statusOwner[key] = u.ID
		}
	}

	// ------------------------------------------------------------
	// DESTINATION MEMORY GEOMETRY VALIDATION
	// ------------------------------------------------------------

	// key = endpoint | unit_id | memory_id
	spans := make(map[string][]span)

	for _, u := range cfg.Replicator.Units {
		for _, t := range u.Targets {
			for _, m := range t.Memories {
				for _, r := range u.Reads {
					d, _ := ResolveRead(r)

					first := int(m.Offset) + int(r.Address)
					last := first + d.WordCount() - 1
					if last > math.MaxUint16 {
						return fmt.Errorf(
							"unit %q: register %q with offset %d runs past the address space",
							u.ID, d.Name, m.Offset,
						)
					}
					start, end := uint16(first), uint16(last)

					key := fmt.Sprintf("%s|%d|%d", t.Endpoint, t.UnitID, m.MemoryID)
					for _, s := range spans[key] {
						// overlap check (inclusive)
						if !(end < s.start || start > s.end) {
							return fmt.Errorf(
								"memory overlap: endpoint=%s unit_id=%d memory_id=%d range=%d-%d overlaps with unit=%s range=%d-%d",
								t.Endpoint, t.UnitID, m.MemoryID, start, end, s.unit, s.start, s.end,
							)
						}
					}

					spans[key] = append(spans[key], span{start: start, end: end, unit: u.ID})
				}
			}
		}
	}

	return nil
}
