// internal/harp/framer.go
package harp

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

// Role selects how Read frames are sized on a stream.
// A host receives Read replies (full payload); a device receives Read requests (empty).
type Role uint8

const (
	HostRole Role = iota
	DeviceRole
)

// maxFrameSize bounds the peek window.
const maxFrameSize = 4096

// FrameReader splits a byte stream into frames using the catalog for sizing.
// On a framing error one byte is dropped so the next call can resynchronise.
type FrameReader struct {
	r    *bufio.Reader
	cat  *Catalog
	role Role
}

func NewFrameReader(r io.Reader, cat *Catalog, role Role) *FrameReader {
	return &FrameReader{
		r:    bufio.NewReaderSize(r, maxFrameSize),
		cat:  cat,
		role: role,
	}
}

// ReadFrame returns the next complete, checksum-valid frame.
// Errors wrapping harp sentinels are per-frame and recoverable; any other error
// comes from the underlying reader.
func (fr *FrameReader) ReadFrame() ([]byte, error) {
	hdr, err := fr.r.Peek(headerSize)
	if err != nil {
		return nil, err
	}

	size, err := fr.frameSize(hdr)
	if err != nil {
		_, _ = fr.r.Discard(1)
		return nil, err
	}

	frame, err := fr.r.Peek(size)
	if err != nil {
		if errors.Is(err, bufio.ErrBufferFull) {
			_, _ = fr.r.Discard(1)
			return nil, fmt.Errorf("%w: frame of %d bytes exceeds reader buffer", ErrTruncatedPayload, size)
		}
		return nil, err
	}

	if got, want := frame[size-1], Checksum(frame[:size-1]); got != want {
		_, _ = fr.r.Discard(1)
		return nil, fmt.Errorf("%w: got 0x%02x want 0x%02x", ErrChecksum, got, want)
	}

	out := append([]byte(nil), frame...)
	_, _ = fr.r.Discard(size)
	return out, nil
}

func (fr *FrameReader) frameSize(hdr []byte) (int, error) {
	mt := MessageType(hdr[0])
	if !mt.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrUnsupportedMessageType, hdr[0])
	}
	d, err := fr.cat.Resolve(hdr[1])
	if err != nil {
		return 0, err
	}
	tag := PayloadType(hdr[2])
	if tag.Base() != d.Type {
		return 0, fmt.Errorf("%w: register %q is %s, frame says %s", ErrPayloadType, d.Name, d.Type, tag)
	}

	size := MinFrameSize
	if tag.Timestamped() {
		size += TimestampSize
	}
	if fr.role == DeviceRole && mt == Read {
		return size, nil
	}
	return size + d.PayloadSize(), nil
}

// IsFrameError reports whether err is a recoverable per-frame error.
func IsFrameError(err error) bool {
	for _, target := range []error{
		ErrUnknownRegister,
		ErrUnsupportedMessageType,
		ErrPayloadType,
		ErrChecksum,
		ErrTruncatedPayload,
		ErrFrameTooShort,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
