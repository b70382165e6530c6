// internal/transport/stream.go
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tamzrod/harp-sniffdetector/internal/harp"
)

var ErrClosed = errors.New("transport: closed")

// Stream carries Harp frames over a byte stream.
// A pump goroutine splits incoming bytes into frames; malformed bytes are
// logged and skipped.
type Stream struct {
	rwc io.ReadWriteCloser

	wmu sync.Mutex

	frames chan []byte
	done   chan struct{}
	err    error // set before done is closed

	closeOnce sync.Once
	closing   chan struct{}

	log zerolog.Logger
}

type StreamOption func(*streamOptions)

type streamOptions struct {
	role    harp.Role
	log     zerolog.Logger
	backlog int
}

// WithRole selects how Read frames are sized. Hosts use HostRole (the default).
func WithRole(r harp.Role) StreamOption {
	return func(o *streamOptions) { o.role = r }
}

func WithLogger(l zerolog.Logger) StreamOption {
	return func(o *streamOptions) { o.log = l }
}

// WithBacklog sets how many received frames are buffered before the pump blocks.
func WithBacklog(n int) StreamOption {
	return func(o *streamOptions) {
		if n > 0 {
			o.backlog = n
		}
	}
}

// NewStream starts framing rwc against cat. The Stream owns rwc.
func NewStream(rwc io.ReadWriteCloser, cat *harp.Catalog, opts ...StreamOption) *Stream {
	o := streamOptions{role: harp.HostRole, log: zerolog.Nop(), backlog: 64}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Stream{
		rwc:     rwc,
		frames:  make(chan []byte, o.backlog),
		done:    make(chan struct{}),
		closing: make(chan struct{}),
		log:     o.log,
	}
	go s.pump(harp.NewFrameReader(rwc, cat, o.role))
	return s
}

func (s *Stream) pump(fr *harp.FrameReader) {
	defer close(s.done)
	for {
		frame, err := fr.ReadFrame()
		if err != nil {
			if harp.IsFrameError(err) {
				s.log.Debug().Err(err).Msg("resync")
				continue
			}
			select {
			case <-s.closing:
				s.err = ErrClosed
			default:
				s.err = fmt.Errorf("transport: read: %w", err)
			}
			return
		}

		select {
		case s.frames <- frame:
		case <-s.closing:
			s.err = ErrClosed
			return
		}
	}
}

// Send writes one frame. Concurrent senders are serialised.
func (s *Stream) Send(ctx context.Context, frame []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-s.closing:
		return ErrClosed
	default:
	}

	s.wmu.Lock()
	defer s.wmu.Unlock()
	for len(frame) > 0 {
		n, err := s.rwc.Write(frame)
		if err != nil {
			return fmt.Errorf("transport: write: %w", err)
		}
		frame = frame[n:]
	}
	return nil
}

// Receive returns the next frame, or the error that stopped the pump.
func (s *Stream) Receive(ctx context.Context) ([]byte, error) {
	select {
	case f := <-s.frames:
		return f, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
		// drain what the pump queued before it stopped
		select {
		case f := <-s.frames:
			return f, nil
		default:
		}
		return nil, s.err
	}
}

// Close stops the pump and closes the underlying stream.
func (s *Stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closing)
		err = s.rwc.Close()
	})
	return err
}
