// internal/transport/serial.go
package transport

import (
	"errors"
	"io"
	"sync/atomic"
	"time"

	"github.com/goburrow/serial"

	"github.com/tamzrod/harp-sniffdetector/internal/harp"
)

// Harp devices talk 8N1 at 1 Mbaud.
const DefaultBaudRate = 1000000

// SerialConfig describes a serial port connection.
type SerialConfig struct {
	Device   string
	BaudRate int
	Timeout  time.Duration // per read; the stream keeps reading past timeouts
}

// OpenSerial opens the port and starts framing it.
func OpenSerial(cfg SerialConfig, cat *harp.Catalog, opts ...StreamOption) (*Stream, error) {
	baud := cfg.BaudRate
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 100 * time.Millisecond
	}

	port, err := serial.Open(&serial.Config{
		Address:  cfg.Device,
		BaudRate: baud,
		DataBits: 8,
		StopBits: 1,
		Parity:   "N",
		Timeout:  timeout,
	})
	if err != nil {
		return nil, err
	}
	return NewStream(&patientPort{port: port}, cat, opts...), nil
}

// patientPort hides read timeouts from the framer so an idle line
// does not end the stream.
type patientPort struct {
	port   io.ReadWriteCloser
	closed atomic.Bool
}

func (p *patientPort) Read(b []byte) (int, error) {
	for {
		n, err := p.port.Read(b)
		if errors.Is(err, serial.ErrTimeout) && !p.closed.Load() {
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (p *patientPort) Write(b []byte) (int, error) { return p.port.Write(b) }

func (p *patientPort) Close() error {
	p.closed.Store(true)
	return p.port.Close()
}
