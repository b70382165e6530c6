// internal/harp/timestamp.go
package harp

import (
	"encoding/binary"
	"fmt"
	"math"
)

// TimestampSize is the width of the timestamp prefix: u32 seconds + u16 ticks.
const TimestampSize = 6

// TimestampTick is the duration of one fractional tick in seconds (32 µs).
const TimestampTick = 32e-6

const ticksPerSecond = 31250

// EncodeTimestamp converts device seconds into the 6-byte prefix.
// Sub-tick precision is rounded to the nearest tick.
func EncodeTimestamp(seconds float64) ([]byte, error) {
	if math.IsNaN(seconds) || seconds < 0 || seconds >= 1<<32 {
		return nil, fmt.Errorf("%w: timestamp %v", ErrRange, seconds)
	}

	whole := math.Floor(seconds)
	ticks := math.Round((seconds - whole) / TimestampTick)
	if ticks >= ticksPerSecond {
		whole++
		ticks = 0
		if whole >= 1<<32 {
			return nil, fmt.Errorf("%w: timestamp %v", ErrRange, seconds)
		}
	}

	out := make([]byte, TimestampSize)
	binary.LittleEndian.PutUint32(out[0:4], uint32(whole))
	binary.LittleEndian.PutUint16(out[4:6], uint16(ticks))
	return out, nil
}

// MaxTimestamp is the latest device time the prefix can carry.
const MaxTimestamp = float64(math.MaxUint32) + (ticksPerSecond-1)*TimestampTick

// ClampTimestamp maps seconds into [0, MaxTimestamp]. NaN becomes 0.
func ClampTimestamp(seconds float64) float64 {
	switch {
	case math.IsNaN(seconds) || seconds < 0:
		return 0
	case seconds > MaxTimestamp:
		return MaxTimestamp
	}
	return seconds
}

// DecodeTimestamp converts the 6-byte prefix into device seconds.
func DecodeTimestamp(b []byte) (float64, error) {
	if len(b) != TimestampSize {
		return 0, fmt.Errorf("%w: timestamp needs %d bytes, got %d", ErrFrameTooShort, TimestampSize, len(b))
	}
	seconds := binary.LittleEndian.Uint32(b[0:4])
	ticks := binary.LittleEndian.Uint16(b[4:6])
	return float64(seconds) + float64(ticks)*TimestampTick, nil
}
