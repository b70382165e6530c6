// internal/config/validate_test.go
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tamzrod/harp-sniffdetector/internal/harp"
)

// helper to build a unit quickly
func unit(id string, endpoint string, memoryID uint16, register string, addr uint16, offset uint16) UnitConfig {
	return UnitConfig{
		ID: id,
		Source: SourceConfig{
			Endpoint: "tcp://127.0.0.1:5020",
		},
		Reads: []ReadConfig{
			{Register: register, Address: addr},
		},
		Targets: []TargetConfig{
			{
				ID:       1,
				Endpoint: endpoint,
				UnitID:   1,
				Memories: []MemoryConfig{
					{MemoryID: memoryID, Offset: offset},
				},
			},
		},
	}
}

func cfgOf(units ...UnitConfig) *Config {
	return &Config{Replicator: ReplicatorConfig{Units: units}}
}

func u16p(v uint16) *uint16 { return &v }
func u8p(v uint8) *uint8    { return &v }

// ---- geometry ----

func TestValidate_NoOverlapDifferentEndpoints(t *testing.T) {
	cfg := cfgOf(
		unit("u1", "ep1", 0, "RawVoltage", 0, 0),
		unit("u2", "ep2", 0, "RawVoltage", 0, 0),
	)
	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_NoOverlapDifferentMemory(t *testing.T) {
	cfg := cfgOf(
		unit("u1", "ep1", 0, "RawVoltage", 0, 0),
		unit("u2", "ep1", 1, "RawVoltage", 0, 0),
	)
	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_TouchingRangesAllowed(t *testing.T) {
	cfg := cfgOf(
		unit("u1", "ep1", 0, "DeviceName", 0, 0),  // 0-24
		unit("u2", "ep1", 0, "RawVoltage", 25, 0), // 25
	)
	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_OverlapDetected(t *testing.T) {
	cfg := cfgOf(
		unit("u1", "ep1", 0, "DeviceName", 0, 0),  // 0-24
		unit("u2", "ep1", 0, "RawVoltage", 24, 0), // 24 → overlap
	)
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected overlap error, got nil")
	}
}

func TestValidate_OverlapViaOffsetDetected(t *testing.T) {
	cfg := cfgOf(
		unit("u1", "ep1", 0, "TimestampSeconds", 10, 0), // 10-11
		unit("u2", "ep1", 0, "RawVoltage", 0, 11),       // 11 → overlap
	)
	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "memory overlap") {
		t.Fatalf("expected overlap error, got %v", err)
	}
}

func TestValidate_AddressSpaceEnd(t *testing.T) {
	cfg := cfgOf(unit("u1", "ep1", 0, "TimestampSeconds", 65535, 0))
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected address space error, got nil")
	}
}

// ---- shape ----

func TestValidate_Registers(t *testing.T) {
	cfg := cfgOf(unit("u1", "ep1", 0, "NoSuchRegister", 0, 0))
	err := Validate(cfg)
	if !errors.Is(err, harp.ErrUnknownRegister) {
		t.Fatalf("expected unknown register, got %v", err)
	}

	cfg = cfgOf(unit("u1", "ep1", 0, "eventdispatchfrequency", 0, 0))
	if err := Validate(cfg); err != nil {
		t.Fatalf("case-insensitive register name rejected: %v", err)
	}
}

func TestValidate_SourceEndpoint(t *testing.T) {
	u := unit("u1", "ep1", 0, "RawVoltage", 0, 0)
	u.Source.Endpoint = "ftp://nope"
	if err := Validate(cfgOf(u)); err == nil {
		t.Fatalf("expected endpoint error, got nil")
	}
}

func TestValidate_DuplicateUnit(t *testing.T) {
	cfg := cfgOf(
		unit("u1", "ep1", 0, "RawVoltage", 0, 0),
		unit("u1", "ep2", 0, "RawVoltage", 0, 0),
	)
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected duplicate unit error, got nil")
	}
}

func TestValidate_TargetKind(t *testing.T) {
	u := unit("u1", "ep1", 0, "RawVoltage", 0, 0)
	u.Targets[0].Kind = "mqtt"
	if err := Validate(cfgOf(u)); err == nil {
		t.Fatalf("expected kind error, got nil")
	}
}

// ---- status ----

func TestValidate_StatusSlotCollision(t *testing.T) {
	a := unit("u1", "ep1", 0, "RawVoltage", 0, 0)
	b := unit("u2", "ep1", 1, "RawVoltage", 0, 0)
	for _, u := range []*UnitConfig{&a, &b} {
		u.Source.StatusSlot = u16p(3)
		u.Targets[0].StatusUnitID = u8p(255)
	}
	if err := Validate(cfgOf(a, b)); err == nil {
		t.Fatalf("expected status collision, got nil")
	}

	b.Source.StatusSlot = u16p(4)
	if err := Validate(cfgOf(a, b)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_StatusNeedsStatusUnit(t *testing.T) {
	u := unit("u1", "ep1", 0, "RawVoltage", 0, 0)
	u.Source.StatusSlot = u16p(0)
	if err := Validate(cfgOf(u)); err == nil {
		t.Fatalf("expected missing status_unit_id error, got nil")
	}
}

func TestValidate_StatusSlotAddressSpace(t *testing.T) {
	u := unit("u1", "ep1", 0, "RawVoltage", 0, 0)
	u.Source.StatusSlot = u16p(3276) // 3277 blocks of 20 words end past 65535
	u.Targets[0].StatusUnitID = u8p(1)
	if err := Validate(cfgOf(u)); err == nil {
		t.Fatalf("expected status slot range error, got nil")
	}

	u.Source.StatusSlot = u16p(3275)
	if err := Validate(cfgOf(u)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_DeviceNameASCII(t *testing.T) {
	u := unit("u1", "ep1", 0, "RawVoltage", 0, 0)
	u.Source.DeviceName = "snüff"
	if err := Validate(cfgOf(u)); err == nil {
		t.Fatalf("expected ASCII error, got nil")
	}
}

// ---- normalize / load ----

func TestNormalize_Defaults(t *testing.T) {
	u := unit("a-rather-long-unit-name", "ep1", 0, "RawVoltage", 0, 0)
	u.Source.StatusSlot = u16p(0)
	u.Targets[0].StatusUnitID = u8p(1)
	cfg := cfgOf(u)

	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	Normalize(cfg)

	got := cfg.Replicator.Units[0]
	if got.Poll.IntervalMs != DefaultIntervalMs {
		t.Fatalf("interval: got %d", got.Poll.IntervalMs)
	}
	if got.Source.TimeoutMs != DefaultTimeoutMs {
		t.Fatalf("timeout: got %d", got.Source.TimeoutMs)
	}
	if got.Targets[0].Kind != TargetModbus {
		t.Fatalf("kind: got %q", got.Targets[0].Kind)
	}
	if got.Source.DeviceName != "a-rather-long-un" {
		t.Fatalf("device name: got %q", got.Source.DeviceName)
	}
}

func TestLoad(t *testing.T) {
	const doc = `
replicator:
  units:
    - id: sniff-1
      source:
        endpoint: serial:///dev/ttyUSB0?baud=1000000
        timeout_ms: 250
        status_slot: 2
        device_name: SNIFF-1
      reads:
        - register: RawVoltage
          address: 0
        - register: EventDispatchFrequency
          address: 1
      targets:
        - id: 1
          kind: ingest
          endpoint: 127.0.0.1:9000
          unit_id: 1
          status_unit_id: 255
          memories:
            - memory_id: 0
              offset: 100
      poll:
        interval_ms: 200
`
	path := filepath.Join(t.TempDir(), "replicator.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("validate: %v", err)
	}

	u := cfg.Replicator.Units[0]
	if u.Source.StatusSlot == nil || *u.Source.StatusSlot != 2 {
		t.Fatalf("status_slot not decoded")
	}
	if u.Targets[0].Kind != TargetIngest || u.Targets[0].Memories[0].Offset != 100 {
		t.Fatalf("target not decoded: %+v", u.Targets[0])
	}

	if _, err := Parse([]byte("replicator:\n  unknown: 1\n")); err == nil {
		t.Fatalf("expected unknown field error")
	}
}
