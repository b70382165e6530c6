// internal/status/codes.go
package status

import (
	"context"
	"errors"

	"github.com/tamzrod/harp-sniffdetector/internal/harp"
)

// Error codes published in the last_error_code slot.
const (
	CodeNone             uint16 = 0
	CodeGeneric          uint16 = 1
	CodeTimeout          uint16 = 2
	CodeChecksum         uint16 = 3
	CodeIdentityMismatch uint16 = 4
	CodeDeviceError      uint16 = 5
	CodeUnknownRegister  uint16 = 6
	CodeMalformedFrame   uint16 = 7
)

// ErrorCode maps an error to a status code without assuming concrete types.
// An error exposing Code() uint16 wins; otherwise Harp error kinds are mapped
// and anything else is CodeGeneric.
func ErrorCode(err error) uint16 {
	if err == nil {
		return CodeNone
	}

	type coder interface{ Code() uint16 }
	var c coder
	if errors.As(err, &c) {
		return c.Code()
	}

	switch {
	case errors.Is(err, harp.ErrCancelled), errors.Is(err, context.DeadlineExceeded):
		return CodeTimeout
	case errors.Is(err, harp.ErrChecksum):
		return CodeChecksum
	case errors.Is(err, harp.ErrIdentityMismatch):
		return CodeIdentityMismatch
	case errors.Is(err, harp.ErrDeviceError):
		return CodeDeviceError
	case errors.Is(err, harp.ErrUnknownRegister):
		return CodeUnknownRegister
	case errors.Is(err, harp.ErrFrameTooShort),
		errors.Is(err, harp.ErrTruncatedPayload),
		errors.Is(err, harp.ErrPayloadType),
		errors.Is(err, harp.ErrUnsupportedMessageType):
		return CodeMalformedFrame
	}
	return CodeGeneric
}
