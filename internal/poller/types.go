// internal/poller/types.go
package poller

import (
	"time"

	"github.com/tamzrod/harp-sniffdetector/internal/harp"
)

// ReadBlock is one Harp register mirrored at a destination word address.
type ReadBlock struct {
	Register harp.Descriptor
	Address  uint16
}

// BlockResult is the raw result of a single register read.
type BlockResult struct {
	Register uint8
	Name     string
	Address  uint16

	// Words is the payload laid out as 16-bit Modbus registers.
	Words []uint16

	// Timestamp is the device time of the reply, in seconds.
	Timestamp float64
}

// PollResult is a snapshot produced by one poll cycle.
type PollResult struct {
	UnitID string
	At     time.Time

	Blocks []BlockResult
	Err    error // non-nil means the poll cycle failed
}
