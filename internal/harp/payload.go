// internal/harp/payload.go
package harp

import (
	"encoding/binary"
	"fmt"
	"math"
	"reflect"
)

// PayloadType is the wire tag describing the element encoding of a payload.
//
// Layout (Harp):
//
//	bit 7    signed
//	bit 6    float
//	bit 4    timestamp prefix present
//	bits 0-3 element size in bytes
type PayloadType uint8

const (
	signedFlag    PayloadType = 0x80
	floatFlag     PayloadType = 0x40
	timestampFlag PayloadType = 0x10
	sizeMask      PayloadType = 0x0F
)

const (
	U8    PayloadType = 0x01
	U16   PayloadType = 0x02
	U32   PayloadType = 0x04
	U64   PayloadType = 0x08
	S8    PayloadType = signedFlag | 0x01
	S16   PayloadType = signedFlag | 0x02
	S32   PayloadType = signedFlag | 0x04
	S64   PayloadType = signedFlag | 0x08
	Float PayloadType = floatFlag | 0x04
)

// Size returns the element size in bytes.
func (t PayloadType) Size() int { return int(t & sizeMask) }

// Signed reports whether elements are two's complement integers.
func (t PayloadType) Signed() bool { return t&signedFlag != 0 }

// IsFloat reports whether elements are IEEE-754 single precision.
func (t PayloadType) IsFloat() bool { return t&floatFlag != 0 }

// Timestamped reports whether the tag announces a timestamp prefix.
func (t PayloadType) Timestamped() bool { return t&timestampFlag != 0 }

// Base strips the timestamp flag.
func (t PayloadType) Base() PayloadType { return t &^ timestampFlag }

// WithTimestamp sets the timestamp flag.
func (t PayloadType) WithTimestamp() PayloadType { return t | timestampFlag }

// Valid reports whether the base type is one of the known element encodings.
func (t PayloadType) Valid() bool {
	switch t.Base() {
	case U8, U16, U32, U64, S8, S16, S32, S64, Float:
		return true
	}
	return false
}

func (t PayloadType) String() string {
	name := ""
	switch t.Base() {
	case U8:
		name = "U8"
	case U16:
		name = "U16"
	case U32:
		name = "U32"
	case U64:
		name = "U64"
	case S8:
		name = "S8"
	case S16:
		name = "S16"
	case S32:
		name = "S32"
	case S64:
		name = "S64"
	case Float:
		name = "Float"
	default:
		return fmt.Sprintf("PayloadType(0x%02x)", uint8(t))
	}
	if t.Timestamped() {
		return "Timestamped" + name
	}
	return name
}

// Element is the set of Go types a payload element can be decoded into
// or encoded from. Named types (flag sets) are accepted.
type Element interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uint |
		~int8 | ~int16 | ~int32 | ~int64 | ~int |
		~float32 | ~float64
}

// Timestamped pairs a decoded value with the device time it was sampled at.
type Timestamped[T any] struct {
	Seconds float64
	Value   T
}

// ---- encode ----

// EncodePayload encodes exactly length values as little-endian elements of type pt.
func EncodePayload[T Element](pt PayloadType, length int, values []T) ([]byte, error) {
	base := pt.Base()
	if !base.Valid() {
		return nil, fmt.Errorf("%w: tag 0x%02x", ErrPayloadType, uint8(pt))
	}
	if len(values) != length {
		return nil, fmt.Errorf("%w: got %d values, want %d", ErrArityMismatch, len(values), length)
	}

	size := base.Size()
	out := make([]byte, length*size)
	for i, v := range values {
		if err := putElement(base, out[i*size:(i+1)*size], scalarOf(v)); err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
	}
	return out, nil
}

// EncodeTimestampedPayload encodes the timestamp prefix followed by the payload.
func EncodeTimestampedPayload[T Element](pt PayloadType, length int, seconds float64, values []T) ([]byte, error) {
	ts, err := EncodeTimestamp(seconds)
	if err != nil {
		return nil, err
	}
	payload, err := EncodePayload(pt, length, values)
	if err != nil {
		return nil, err
	}
	return append(ts, payload...), nil
}

// ---- decode ----

// DecodePayload decodes raw as exactly length elements of type pt.
func DecodePayload[T Element](pt PayloadType, length int, raw []byte) ([]T, error) {
	base := pt.Base()
	if !base.Valid() {
		return nil, fmt.Errorf("%w: tag 0x%02x", ErrPayloadType, uint8(pt))
	}
	size := base.Size()
	if length < 0 || len(raw) != length*size {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrTruncatedPayload, len(raw), length*size)
	}

	out := make([]T, length)
	for i := range out {
		v, err := scalarTo[T](getElement(base, raw[i*size:(i+1)*size]))
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// DecodeTimestampedPayload consumes the timestamp prefix and decodes the payload after it.
func DecodeTimestampedPayload[T Element](pt PayloadType, length int, raw []byte) (Timestamped[[]T], error) {
	if len(raw) < TimestampSize {
		return Timestamped[[]T]{}, fmt.Errorf("%w: %d bytes cannot hold a timestamp", ErrTruncatedPayload, len(raw))
	}
	seconds, err := DecodeTimestamp(raw[:TimestampSize])
	if err != nil {
		return Timestamped[[]T]{}, err
	}
	values, err := DecodePayload[T](pt, length, raw[TimestampSize:])
	if err != nil {
		return Timestamped[[]T]{}, err
	}
	return Timestamped[[]T]{Seconds: seconds, Value: values}, nil
}

// ---- element plumbing ----

type scalarKind uint8

const (
	unsignedKind scalarKind = iota
	signedKind
	floatKind
)

// scalar is a value widened to 64 bits while it crosses between Go types and wire elements.
type scalar struct {
	kind scalarKind
	u    uint64
	s    int64
	f    float64
}

func kindOf[T Element]() (scalarKind, int) {
	t := reflect.TypeFor[T]()
	switch t.Kind() {
	case reflect.Float32, reflect.Float64:
		return floatKind, t.Bits()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return signedKind, t.Bits()
	default:
		return unsignedKind, t.Bits()
	}
}

func scalarOf[T Element](v T) scalar {
	kind, _ := kindOf[T]()
	switch kind {
	case signedKind:
		return scalar{kind: signedKind, s: int64(v)}
	case floatKind:
		return scalar{kind: floatKind, f: float64(v)}
	default:
		return scalar{kind: unsignedKind, u: uint64(v)}
	}
}

func scalarTo[T Element](sc scalar) (T, error) {
	kind, bits := kindOf[T]()
	switch kind {
	case floatKind:
		f := sc.float()
		if bits == 32 && !math.IsInf(f, 0) && !math.IsNaN(f) && math.Abs(f) > math.MaxFloat32 {
			return 0, fmt.Errorf("%w: %v does not fit float32", ErrRange, f)
		}
		return T(f), nil
	case signedKind:
		lo, hi := signedBounds(bits)
		s, ok := sc.signed(lo, hi)
		if !ok {
			return 0, fmt.Errorf("%w: %s does not fit int%d", ErrRange, sc, bits)
		}
		return T(s), nil
	default:
		u, ok := sc.unsigned(unsignedMax(bits))
		if !ok {
			return 0, fmt.Errorf("%w: %s does not fit uint%d", ErrRange, sc, bits)
		}
		return T(u), nil
	}
}

func putElement(base PayloadType, dst []byte, sc scalar) error {
	bits := base.Size() * 8

	if base.IsFloat() {
		f := sc.float()
		if !math.IsInf(f, 0) && !math.IsNaN(f) && math.Abs(f) > math.MaxFloat32 {
			return fmt.Errorf("%w: %v does not fit %s", ErrRange, f, base)
		}
		binary.LittleEndian.PutUint32(dst, math.Float32bits(float32(f)))
		return nil
	}

	var u uint64
	if base.Signed() {
		lo, hi := signedBounds(bits)
		s, ok := sc.signed(lo, hi)
		if !ok {
			return fmt.Errorf("%w: %s does not fit %s", ErrRange, sc, base)
		}
		u = uint64(s)
	} else {
		v, ok := sc.unsigned(unsignedMax(bits))
		if !ok {
			return fmt.Errorf("%w: %s does not fit %s", ErrRange, sc, base)
		}
		u = v
	}

	switch len(dst) {
	case 1:
		dst[0] = byte(u)
	case 2:
		binary.LittleEndian.PutUint16(dst, uint16(u))
	case 4:
		binary.LittleEndian.PutUint32(dst, uint32(u))
	case 8:
		binary.LittleEndian.PutUint64(dst, u)
	}
	return nil
}

func getElement(base PayloadType, src []byte) scalar {
	if base.IsFloat() {
		return scalar{kind: floatKind, f: float64(math.Float32frombits(binary.LittleEndian.Uint32(src)))}
	}

	var u uint64
	switch len(src) {
	case 1:
		u = uint64(src[0])
	case 2:
		u = uint64(binary.LittleEndian.Uint16(src))
	case 4:
		u = uint64(binary.LittleEndian.Uint32(src))
	case 8:
		u = binary.LittleEndian.Uint64(src)
	}

	if !base.Signed() {
		return scalar{kind: unsignedKind, u: u}
	}
	switch len(src) {
	case 1:
		return scalar{kind: signedKind, s: int64(int8(u))}
	case 2:
		return scalar{kind: signedKind, s: int64(int16(u))}
	case 4:
		return scalar{kind: signedKind, s: int64(int32(u))}
	default:
		return scalar{kind: signedKind, s: int64(u)}
	}
}

func (sc scalar) String() string {
	switch sc.kind {
	case signedKind:
		return fmt.Sprint(sc.s)
	case floatKind:
		return fmt.Sprint(sc.f)
	default:
		return fmt.Sprint(sc.u)
	}
}

func (sc scalar) float() float64 {
	switch sc.kind {
	case signedKind:
		return float64(sc.s)
	case floatKind:
		return sc.f
	default:
		return float64(sc.u)
	}
}

func (sc scalar) unsigned(max uint64) (uint64, bool) {
	switch sc.kind {
	case unsignedKind:
		return sc.u, sc.u <= max
	case signedKind:
		return uint64(sc.s), sc.s >= 0 && uint64(sc.s) <= max
	}

	f := sc.f
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || f < 0 {
		return 0, false
	}
	if max == math.MaxUint64 {
		if f >= 1<<64 {
			return 0, false
		}
	} else if f > float64(max) {
		return 0, false
	}
	return uint64(f), true
}

func (sc scalar) signed(lo, hi int64) (int64, bool) {
	switch sc.kind {
	case unsignedKind:
		return int64(sc.u), sc.u <= uint64(hi)
	case signedKind:
		return sc.s, sc.s >= lo && sc.s <= hi
	}

	f := sc.f
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if hi == math.MaxInt64 {
		if f >= 1<<63 || f < -(1<<63) {
			return 0, false
		}
	} else if f > float64(hi) || f < float64(lo) {
		return 0, false
	}
	return int64(f), true
}

func unsignedMax(bits int) uint64 {
	if bits >= 64 {
		return math.MaxUint64
	}
	return 1<<uint(bits) - 1
}

func signedBounds(bits int) (int64, int64) {
	if bits >= 64 {
		return math.MinInt64, math.MaxInt64
	}
	hi := int64(1)<<uint(bits-1) - 1
	return -hi - 1, hi
}
