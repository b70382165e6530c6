// internal/capture/reader.go
package capture

import (
	"errors"
	"io"
	"iter"
	"os"

	"github.com/fxamacker/cbor/v2"
)

// Reader streams records back out of a capture file.
type Reader struct {
	c   io.Closer
	dec *cbor.Decoder
}

func NewReader(r io.ReadCloser) *Reader {
	return &Reader{c: r, dec: newDecoder(r)}
}

func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return NewReader(f), nil
}

// Next returns the next record, or io.EOF at the end of the file.
func (r *Reader) Next() (Record, error) {
	var rec Record
	if err := r.dec.Decode(&rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Frames yields the raw frames recorded in dir, in file order.
func (r *Reader) Frames(dir Direction) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		for {
			rec, err := r.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
			if rec.Direction != dir {
				continue
			}
			if !yield(rec.Frame, nil) {
				return
			}
		}
	}
}

func (r *Reader) Close() error { return r.c.Close() }
