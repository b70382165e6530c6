// internal/capture/recorder.go
package capture

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"github.com/tamzrod/harp-sniffdetector/internal/device"
)

// Recorder appends frames to a CBOR stream. Safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	w       io.WriteCloser
	enc     *cbor.Encoder
	session string
	unit    string
	closed  bool
	now     func() time.Time
}

// NewRecorder records into w under a fresh session id. The Recorder owns w.
func NewRecorder(w io.WriteCloser, unit string) *Recorder {
	return &Recorder{
		w:       w,
		enc:     newEncoder(w),
		session: uuid.NewString(),
		unit:    unit,
		now:     time.Now,
	}
}

// OpenFile appends to path, creating it if needed.
func OpenFile(path, unit string) (*Recorder, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return NewRecorder(f, unit), nil
}

// Session returns the id stamped on every record of this recorder.
func (r *Recorder) Session() string { return r.session }

// Record writes one frame. Calls after Close are ignored.
func (r *Recorder) Record(dir Direction, frame []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	return r.enc.Encode(Record{
		Time:      r.now().UTC(),
		Session:   r.session,
		Direction: dir,
		Unit:      r.unit,
		Frame:     append([]byte(nil), frame...),
	})
}

func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	return r.w.Close()
}

// ---- transport tap ----

// Tap is a device.Transport that records every frame passing through it.
// Recording failures never fail the exchange.
type Tap struct {
	inner device.Transport
	rec   *Recorder
}

func NewTap(inner device.Transport, rec *Recorder) *Tap {
	return &Tap{inner: inner, rec: rec}
}

func (t *Tap) Send(ctx context.Context, frame []byte) error {
	if err := t.inner.Send(ctx, frame); err != nil {
		return err
	}
	_ = t.rec.Record(DirectionOut, frame)
	return nil
}

func (t *Tap) Receive(ctx context.Context) ([]byte, error) {
	frame, err := t.inner.Receive(ctx)
	if err != nil {
		return nil, err
	}
	_ = t.rec.Record(DirectionIn, frame)
	return frame, nil
}

// Close closes the inner transport and then the recorder.
func (t *Tap) Close() error {
	var err error
	if c, ok := t.inner.(io.Closer); ok {
		err = c.Close()
	}
	if cerr := t.rec.Close(); err == nil {
		err = cerr
	}
	return err
}

var _ device.Transport = (*Tap)(nil)
