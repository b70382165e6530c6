// internal/status/status_test.go
package status

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/tamzrod/harp-sniffdetector/internal/harp"
)

type codedErr struct{ code uint16 }

func (e codedErr) Error() string { return "coded" }
func (e codedErr) Code() uint16  { return e.code }

func TestErrorCode(t *testing.T) {
	cases := []struct {
		err  error
		want uint16
	}{
		{nil, CodeNone},
		{errors.New("x"), CodeGeneric},
		{fmt.Errorf("wrap: %w", codedErr{42}), 42},
		{fmt.Errorf("%w: %w", harp.ErrCancelled, context.Canceled), CodeTimeout},
		{fmt.Errorf("%w: got 1", harp.ErrChecksum), CodeChecksum},
		{&harp.IdentityMismatchError{Expected: 1401, Actual: 1}, CodeIdentityMismatch},
		{fmt.Errorf("%w: write", harp.ErrDeviceError), CodeDeviceError},
		{harp.ErrUnknownRegister, CodeUnknownRegister},
		{harp.ErrTruncatedPayload, CodeMalformedFrame},
	}
	for _, tc := range cases {
		if got := ErrorCode(tc.err); got != tc.want {
			t.Fatalf("ErrorCode(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestTracker(t *testing.T) {
	tr := NewTracker(1401)
	if tr.Snapshot().Health != HealthUnknown {
		t.Fatalf("initial health %d", tr.Snapshot().Health)
	}
	if !tr.Tick() {
		t.Fatalf("unknown state should count seconds")
	}

	if !tr.Observe(nil, 12.7) {
		t.Fatalf("first OK should change the snapshot")
	}
	s := tr.Snapshot()
	if s.Health != HealthOK || s.SecondsInError != 0 || s.LastTimestamp != 12 {
		t.Fatalf("unexpected snapshot %+v", s)
	}
	if tr.Tick() {
		t.Fatalf("healthy tracker must not tick")
	}

	if !tr.Observe(harp.ErrChecksum, 0) {
		t.Fatalf("error should change the snapshot")
	}
	if tr.Observe(harp.ErrChecksum, 0) {
		t.Fatalf("same error twice is not a change")
	}
	tr.Tick()
	tr.Tick()
	s = tr.Snapshot()
	if s.Health != HealthError || s.LastErrorCode != CodeChecksum || s.SecondsInError != 2 {
		t.Fatalf("unexpected snapshot %+v", s)
	}

	tr.Observe(nil, 20)
	if tr.Snapshot().SecondsInError != 0 {
		t.Fatalf("seconds_in_error not reset on recovery")
	}
}

func TestTracker_SecondsSaturate(t *testing.T) {
	tr := NewTracker(0)
	tr.snap.SecondsInError = SecondsInErrorMax
	if tr.Tick() {
		t.Fatalf("seconds_in_error must not wrap")
	}
}

func TestEncode(t *testing.T) {
	regs := Encode(Snapshot{
		Health:          HealthOK,
		WhoAmI:          1401,
		FirmwareVersion: 0x0102,
		LastTimestamp:   0x00010002,
	})
	if len(regs) != SlotsPerDevice {
		t.Fatalf("block size %d", len(regs))
	}
	if regs[SlotWhoAmI] != 1401 || regs[SlotFirmwareVersion] != 0x0102 {
		t.Fatalf("identity slots %v", regs)
	}
	if regs[SlotLastTimestamp] != 1 || regs[SlotLastTimestamp+1] != 2 {
		t.Fatalf("timestamp slots %v", regs[SlotLastTimestamp:SlotLastTimestamp+2])
	}
	if SlotLastTimestamp+1 >= SlotReservedStart {
		t.Fatalf("timestamp overlaps reserved range")
	}
}
