// internal/harp/stream.go
package harp

import (
	"fmt"
	"iter"
)

// Operators over message sequences. They hold no state between calls.

// ParseFrames parses every frame in frames, yielding per-frame errors alongside messages.
func ParseFrames(cat *Catalog, frames iter.Seq[[]byte]) iter.Seq2[Message, error] {
	return func(yield func(Message, error) bool) {
		for f := range frames {
			if !yield(Parse(cat, f)) {
				return
			}
		}
	}
}

// FilterRegister keeps messages for address. When types is non-empty only those
// base message types pass.
func FilterRegister(msgs iter.Seq[Message], address uint8, types ...MessageType) iter.Seq[Message] {
	return func(yield func(Message) bool) {
		for m := range msgs {
			if m.Address != address || !typeIn(m.Type, types) {
				continue
			}
			if !yield(m) {
				return
			}
		}
	}
}

// GroupByRegister drains msgs and buckets them by address, keeping arrival order.
func GroupByRegister(msgs iter.Seq[Message]) map[uint8][]Message {
	out := make(map[uint8][]Message)
	for m := range msgs {
		out[m.Address] = append(out[m.Address], m)
	}
	return out
}

// Select filters msgs down to the register d and decodes each one.
// Messages without a timestamp yield Seconds == 0. Error replies and read
// requests are skipped.
func Select[T Element](d Descriptor, msgs iter.Seq[Message]) iter.Seq2[Timestamped[[]T], error] {
	return func(yield func(Timestamped[[]T], error) bool) {
		for m := range FilterRegister(msgs, d.Address) {
			if m.Type.IsError() || m.IsReadRequest() {
				continue
			}
			values, err := DecodeMessage[T](d, m)
			if !yield(Timestamped[[]T]{Seconds: m.Timestamp, Value: values}, err) {
				return
			}
		}
	}
}

// Format turns a sequence of values into single-element messages for address.
func Format[T Element](cat *Catalog, address uint8, mt MessageType, values iter.Seq[T]) iter.Seq2[Message, error] {
	return func(yield func(Message, error) bool) {
		d, err := cat.Resolve(address)
		if err != nil {
			yield(Message{}, err)
			return
		}
		if d.Length != 1 {
			yield(Message{}, fmt.Errorf("%w: register %q holds %d elements", ErrArityMismatch, d.Name, d.Length))
			return
		}
		for v := range values {
			if !yield(BuildCommand(cat, address, mt, d.Type, []T{v})) {
				return
			}
		}
	}
}

func typeIn(mt MessageType, types []MessageType) bool {
	if len(types) == 0 {
		return true
	}
	for _, t := range types {
		if mt.Base() == t.Base() {
			return true
		}
	}
	return false
}
