// internal/writer/types.go
package writer

import "github.com/tamzrod/harp-sniffdetector/internal/poller"

// MemoryDest is one MMA memory destination inside an endpoint.
type MemoryDest struct {
	MemoryID uint16
	Offset   uint16 // added to every block address
}

// TargetEndpoint is one target endpoint with one or more memory destinations.
type TargetEndpoint struct {
	TargetID uint32
	Kind     string
	Endpoint string
	UnitID   uint8
	Memories []MemoryDest
}

// StatusPlan locates one copy of the device status block.
type StatusPlan struct {
	Endpoint   string
	UnitID     uint8
	BaseSlot   uint16
	DeviceName string
}

// Plan is the fully-built write plan for one unit.
type Plan struct {
	UnitID  string
	Targets []TargetEndpoint

	// Status is empty when the unit has no status_slot.
	Status []StatusPlan
}

// Writer writes poll snapshots into targets.
type Writer interface {
	Write(res poller.PollResult) error
}
