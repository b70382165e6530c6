// internal/harp/errors.go
package harp

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownRegister        = errors.New("harp: unknown register")
	ErrDuplicateAddress       = errors.New("harp: duplicate register address")
	ErrInvalidDescriptor      = errors.New("harp: invalid register descriptor")
	ErrArityMismatch          = errors.New("harp: value count does not match register length")
	ErrRange                  = errors.New("harp: value out of range for payload type")
	ErrTruncatedPayload       = errors.New("harp: payload length does not match register")
	ErrPayloadType            = errors.New("harp: payload type mismatch")
	ErrChecksum               = errors.New("harp: checksum mismatch")
	ErrFrameTooShort          = errors.New("harp: frame too short")
	ErrUnsupportedMessageType = errors.New("harp: unsupported message type")
	ErrAddressMismatch        = errors.New("harp: message address does not match register")
	ErrMissingTimestamp       = errors.New("harp: message carries no timestamp")
	ErrIdentityMismatch       = errors.New("harp: device identity mismatch")
	ErrDeviceError            = errors.New("harp: device replied with error")
	ErrCancelled              = errors.New("harp: operation cancelled")
)

// IdentityMismatchError reports the WhoAmI value a device answered with
// when it differs from the expected one.
type IdentityMismatchError struct {
	Expected uint16
	Actual   uint16
}

func (e *IdentityMismatchError) Error() string {
	return fmt.Sprintf("%v: expected=%d actual=%d", ErrIdentityMismatch, e.Expected, e.Actual)
}

// Is makes errors.Is(err, ErrIdentityMismatch) hold.
func (e *IdentityMismatchError) Is(target error) bool {
	return target == ErrIdentityMismatch
}
