// internal/config/config.go
package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Replicator ReplicatorConfig `yaml:"replicator"`
}

type ReplicatorConfig struct {
	Units []UnitConfig `yaml:"units"`
}

// ---- UNIT ----

type UnitConfig struct {
	ID      string         `yaml:"id"`
	Source  SourceConfig   `yaml:"source"`
	Reads   []ReadConfig   `yaml:"reads"`
	Targets []TargetConfig `yaml:"targets"`
	Poll    PollConfig     `yaml:"poll"`
}

// ---- SOURCE ----

// SourceConfig is the Harp device a unit polls.
type SourceConfig struct {
	// tcp://host:port or serial:///dev/ttyX?baud=1000000
	Endpoint  string `yaml:"endpoint"`
	TimeoutMs int    `yaml:"timeout_ms"`

	// Optional CBOR capture of every frame exchanged with the device.
	Capture string `yaml:"capture"`

	// Device status block (optional, opt-in)
	StatusSlot *uint16 `yaml:"status_slot"`
	DeviceName string  `yaml:"device_name"`
}

// ---- READS ----

// ReadConfig mirrors one Harp register to a word address in every target memory.
type ReadConfig struct {
	Register string `yaml:"register"`
	Address  uint16 `yaml:"address"`
}

// ---- TARGET ----

const (
	TargetModbus = "modbus"
	TargetIngest = "ingest"
)

type TargetConfig struct {
	ID           uint32         `yaml:"id"`
	Kind         string         `yaml:"kind"` // modbus (default) | ingest
	Endpoint     string         `yaml:"endpoint"`
	UnitID       uint8          `yaml:"unit_id"`        // data memory
	StatusUnitID *uint8         `yaml:"status_unit_id"` // per-target status memory (optional)
	Memories     []MemoryConfig `yaml:"memories"`
}

type MemoryConfig struct {
	MemoryID uint16 `yaml:"memory_id"`
	Offset   uint16 `yaml:"offset"` // added to every read address
}

// ---- POLL ----

type PollConfig struct {
	IntervalMs int `yaml:"interval_ms"`
}

// Load reads and decodes a YAML config. Unknown keys are rejected.
// The result still needs Validate and Normalize.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return Parse(raw)
}

// Parse decodes YAML bytes into a Config.
func Parse(raw []byte) (*Config, error) {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	return &cfg, nil
}
