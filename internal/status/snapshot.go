// internal/status/snapshot.go
package status

// Snapshot represents exactly what the writer is allowed to deliver.
// It contains no logic and no memory of the past beyond current state.
type Snapshot struct {
	Health         uint16
	LastErrorCode  uint16
	SecondsInError uint16

	// Identity, learned once the device passes the WhoAmI check.
	WhoAmI          uint16
	FirmwareVersion uint16

	// LastTimestamp is the device time of the last successful poll, whole seconds.
	LastTimestamp uint32
}

// Tracker owns the runner-side status state machine for one unit.
// It is not safe for concurrent use.
type Tracker struct {
	snap Snapshot
}

// NewTracker starts in HealthUnknown.
func NewTracker(whoAmI uint16) *Tracker {
	return &Tracker{snap: Snapshot{Health: HealthUnknown, WhoAmI: whoAmI}}
}

func (t *Tracker) Snapshot() Snapshot { return t.snap }

// SetFirmware records the firmware version reported by the device.
func (t *Tracker) SetFirmware(major, minor uint8) bool {
	v := uint16(major)<<8 | uint16(minor)
	if t.snap.FirmwareVersion == v {
		return false
	}
	t.snap.FirmwareVersion = v
	return true
}

// Observe folds one poll outcome into the snapshot.
// It reports whether anything the writer delivers changed.
// seconds_in_error only advances on Tick.
func (t *Tracker) Observe(err error, deviceSeconds float64) bool {
	prev := t.snap

	if err == nil {
		// Recovery / OK
		t.snap.Health = HealthOK
		t.snap.LastErrorCode = 0
		t.snap.SecondsInError = 0
		t.snap.LastTimestamp = uint32(deviceSeconds)
	} else {
		t.snap.Health = HealthError
		t.snap.LastErrorCode = ErrorCode(err)
	}

	return prev != t.snap
}

// Tick advances seconds_in_error once per second while not OK.
func (t *Tracker) Tick() bool {
	if t.snap.Health == HealthOK || t.snap.SecondsInError >= SecondsInErrorMax {
		return false
	}
	t.snap.SecondsInError++
	return true
}
