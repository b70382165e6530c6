// internal/harp/message.go
package harp

import "fmt"

// MessageType is the first byte of every frame.
type MessageType uint8

const (
	Read  MessageType = 1
	Write MessageType = 2
	Event MessageType = 3

	// ErrorFlag is OR-ed into a reply type when the device rejects a command.
	ErrorFlag MessageType = 0x08
)

// Base strips the error flag.
func (t MessageType) Base() MessageType { return t &^ ErrorFlag }

// IsError reports whether the device flagged the message as an error reply.
func (t MessageType) IsError() bool { return t&ErrorFlag != 0 }

// Valid reports whether the base type is Read, Write or Event.
// Events never carry the error flag.
func (t MessageType) Valid() bool {
	switch t.Base() {
	case Read, Write:
		return true
	case Event:
		return !t.IsError()
	}
	return false
}

func (t MessageType) String() string {
	name := ""
	switch t.Base() {
	case Read:
		name = "Read"
	case Write:
		name = "Write"
	case Event:
		name = "Event"
	default:
		return fmt.Sprintf("MessageType(%d)", uint8(t))
	}
	if t.IsError() {
		return name + "Error"
	}
	return name
}

// Frame geometry.
const (
	headerSize   = 3 // type, address, payload type
	checksumSize = 1

	// MinFrameSize is a frame with no timestamp and no payload.
	MinFrameSize = headerSize + checksumSize
)

// Message is one decoded frame.
// Payload holds the element bytes only; the timestamp prefix lives in Timestamp.
type Message struct {
	Type         MessageType
	Address      uint8
	PayloadType  PayloadType // base type, no timestamp flag
	Payload      []byte
	HasTimestamp bool
	Timestamp    float64
}

// IsReadRequest reports whether m is a Read command without payload.
func (m Message) IsReadRequest() bool {
	return m.Type == Read && len(m.Payload) == 0
}

// Tag is the payload-type byte as written on the wire.
func (m Message) Tag() PayloadType {
	if m.HasTimestamp {
		return m.PayloadType.WithTimestamp()
	}
	return m.PayloadType.Base()
}

// Bytes serialises the message into a frame, checksum included.
// A timestamp outside the representable range is clamped: negative or NaN
// becomes 0, anything past the u32 seconds field becomes its maximum.
// Use MarshalBinary to have that reported instead.
func (m Message) Bytes() []byte {
	ts := m.Timestamp
	if m.HasTimestamp {
		ts = ClampTimestamp(ts)
	}
	return m.frame(ts)
}

// MarshalBinary is Bytes with the timestamp range checked (ErrRange).
func (m Message) MarshalBinary() ([]byte, error) {
	if m.HasTimestamp {
		if _, err := EncodeTimestamp(m.Timestamp); err != nil {
			return nil, fmt.Errorf("%s addr=%d: %w", m.Type, m.Address, err)
		}
	}
	return m.frame(m.Timestamp), nil
}

// frame assumes ts encodes.
func (m Message) frame(ts float64) []byte {
	size := MinFrameSize + len(m.Payload)
	if m.HasTimestamp {
		size += TimestampSize
	}

	out := make([]byte, 0, size)
	out = append(out, byte(m.Type), m.Address, byte(m.Tag()))
	if m.HasTimestamp {
		prefix, _ := EncodeTimestamp(ts)
		out = append(out, prefix...)
	}
	out = append(out, m.Payload...)
	return append(out, Checksum(out))
}

func (m Message) String() string {
	if m.HasTimestamp {
		return fmt.Sprintf("%s addr=%d type=%s ts=%.6f payload=% x", m.Type, m.Address, m.PayloadType, m.Timestamp, m.Payload)
	}
	return fmt.Sprintf("%s addr=%d type=%s payload=% x", m.Type, m.Address, m.PayloadType, m.Payload)
}

// Checksum is the unsigned byte-wise sum modulo 256.
func Checksum(b []byte) byte {
	var sum byte
	for _, v := range b {
		sum += v
	}
	return sum
}

// ---- build ----

// BuildCommand encodes values for the register at address into a message.
// A Read with no values is a read request and carries no payload.
func BuildCommand[T Element](cat *Catalog, address uint8, mt MessageType, pt PayloadType, values []T) (Message, error) {
	d, err := checkCommand(cat, address, mt, pt)
	if err != nil {
		return Message{}, err
	}

	msg := Message{Type: mt, Address: address, PayloadType: d.Type}
	if mt == Read && len(values) == 0 {
		return msg, nil
	}

	payload, err := EncodePayload(d.Type, d.Length, values)
	if err != nil {
		return Message{}, fmt.Errorf("register %q: %w", d.Name, err)
	}
	msg.Payload = payload
	return msg, nil
}

// BuildTimestampedCommand is BuildCommand with a timestamp prefix.
func BuildTimestampedCommand[T Element](cat *Catalog, address uint8, mt MessageType, pt PayloadType, seconds float64, values []T) (Message, error) {
	msg, err := BuildCommand(cat, address, mt, pt, values)
	if err != nil {
		return Message{}, err
	}
	if _, err := EncodeTimestamp(seconds); err != nil {
		return Message{}, err
	}
	msg.HasTimestamp = true
	msg.Timestamp = seconds
	return msg, nil
}

func checkCommand(cat *Catalog, address uint8, mt MessageType, pt PayloadType) (Descriptor, error) {
	d, err := cat.Resolve(address)
	if err != nil {
		return Descriptor{}, err
	}
	if !mt.Valid() {
		return Descriptor{}, fmt.Errorf("%w: %s", ErrUnsupportedMessageType, mt)
	}
	if !d.Access.Allows(mt) {
		return Descriptor{}, fmt.Errorf("%w: %s on register %q (%s)", ErrUnsupportedMessageType, mt.Base(), d.Name, d.Access)
	}
	if pt.Base() != d.Type {
		return Descriptor{}, fmt.Errorf("%w: register %q is %s, got %s", ErrPayloadType, d.Name, d.Type, pt.Base())
	}
	return d, nil
}

// ---- parse ----

// Parse validates and decodes one complete frame against the catalog.
// The checksum is verified before any field is interpreted.
func Parse(cat *Catalog, frame []byte) (Message, error) {
	if len(frame) < MinFrameSize {
		return Message{}, fmt.Errorf("%w: %d bytes", ErrFrameTooShort, len(frame))
	}

	body := frame[:len(frame)-checksumSize]
	if got, want := frame[len(frame)-1], Checksum(body); got != want {
		return Message{}, fmt.Errorf("%w: got 0x%02x want 0x%02x", ErrChecksum, got, want)
	}

	mt := MessageType(body[0])
	if !mt.Valid() {
		return Message{}, fmt.Errorf("%w: %d", ErrUnsupportedMessageType, uint8(mt))
	}

	d, err := cat.Resolve(body[1])
	if err != nil {
		return Message{}, err
	}

	tag := PayloadType(body[2])
	if tag.Base() != d.Type {
		return Message{}, fmt.Errorf("%w: register %q is %s, frame says %s", ErrPayloadType, d.Name, d.Type, tag)
	}

	msg := Message{Type: mt, Address: d.Address, PayloadType: d.Type}
	rest := body[headerSize:]

	if tag.Timestamped() {
		if len(rest) < TimestampSize {
			return Message{}, fmt.Errorf("%w: timestamp needs %d bytes, %d available", ErrFrameTooShort, TimestampSize, len(rest))
		}
		ts, err := DecodeTimestamp(rest[:TimestampSize])
		if err != nil {
			return Message{}, err
		}
		msg.HasTimestamp = true
		msg.Timestamp = ts
		rest = rest[TimestampSize:]
	}

	if mt == Read && len(rest) == 0 {
		return msg, nil
	}

	want := d.PayloadSize()
	switch {
	case len(rest) < want:
		return Message{}, fmt.Errorf("%w: register %q needs %d payload bytes, %d available", ErrFrameTooShort, d.Name, want, len(rest))
	case len(rest) > want:
		return Message{}, fmt.Errorf("%w: register %q takes %d payload bytes, frame has %d", ErrTruncatedPayload, d.Name, want, len(rest))
	}

	msg.Payload = append([]byte(nil), rest...)
	return msg, nil
}

// ---- typed projection ----

// DecodeMessage projects the typed values of m against descriptor d.
func DecodeMessage[T Element](d Descriptor, m Message) ([]T, error) {
	if m.Address != d.Address {
		return nil, fmt.Errorf("%w: message for %d, register %q is %d", ErrAddressMismatch, m.Address, d.Name, d.Address)
	}
	if m.PayloadType.Base() != d.Type {
		return nil, fmt.Errorf("%w: register %q is %s, message is %s", ErrPayloadType, d.Name, d.Type, m.PayloadType)
	}
	return DecodePayload[T](d.Type, d.Length, m.Payload)
}

// DecodeTimestampedMessage is DecodeMessage for messages that carry a timestamp.
func DecodeTimestampedMessage[T Element](d Descriptor, m Message) (Timestamped[[]T], error) {
	if !m.HasTimestamp {
		return Timestamped[[]T]{}, fmt.Errorf("%w: register %q", ErrMissingTimestamp, d.Name)
	}
	values, err := DecodeMessage[T](d, m)
	if err != nil {
		return Timestamped[[]T]{}, err
	}
	return Timestamped[[]T]{Seconds: m.Timestamp, Value: values}, nil
}
