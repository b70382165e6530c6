// internal/writer/ingest/client.go
package ingest

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"time"
)

const (
	magic     = "RI"
	versionV1 = 0x01

	headerLen = 10
)

// Response status byte.
const (
	StatusOK       byte = 0x00
	StatusRejected byte = 0x01
)

var ErrRejected = errors.New("writer ingest: rejected")

// Packet is one Raw Ingest v1 write.
//
// Layout (10 bytes header, big-endian):
//
//	0-1  magic "RI"
//	2    version (0x01)
//	3    area
//	4-5  unit id
//	6-7  address
//	8-9  word count
//	10+  words
type Packet struct {
	Area    byte
	UnitID  uint8
	Address uint16
	Words   []uint16
}

// MarshalBinary renders the packet in wire order.
func (p Packet) MarshalBinary() ([]byte, error) {
	if len(p.Words) > 0xFFFF {
		return nil, fmt.Errorf("writer ingest: %d words exceed packet limit", len(p.Words))
	}
	out := make([]byte, 0, headerLen+2*len(p.Words))
	out = append(out, magic...)
	out = append(out, versionV1, p.Area)
	out = binary.BigEndian.AppendUint16(out, uint16(p.UnitID))
	out = binary.BigEndian.AppendUint16(out, p.Address)
	out = binary.BigEndian.AppendUint16(out, uint16(len(p.Words)))
	for _, w := range p.Words {
		out = binary.BigEndian.AppendUint16(out, w)
	}
	return out, nil
}

// ReadPacket decodes one packet from r. Used by ingest receivers and tests.
func ReadPacket(r io.Reader) (Packet, error) {
	var hdr [headerLen]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Packet{}, err
	}
	if string(hdr[0:2]) != magic || hdr[2] != versionV1 {
		return Packet{}, fmt.Errorf("writer ingest: bad header % x", hdr[:3])
	}

	p := Packet{
		Area:    hdr[3],
		UnitID:  uint8(binary.BigEndian.Uint16(hdr[4:6])),
		Address: binary.BigEndian.Uint16(hdr[6:8]),
	}
	body := make([]byte, 2*int(binary.BigEndian.Uint16(hdr[8:10])))
	if _, err := io.ReadFull(r, body); err != nil {
		return Packet{}, err
	}
	p.Words = make([]uint16, len(body)/2)
	for i := range p.Words {
		p.Words[i] = binary.BigEndian.Uint16(body[2*i:])
	}
	return p, nil
}

// EndpointClient is a Raw Ingest v1 client (stateless, 1 packet = 1 connection).
type EndpointClient struct {
	endpoint string
	timeout  time.Duration
}

type Config struct {
	Endpoint string
	Timeout  time.Duration
}

func NewEndpointClient(cfg Config) (*EndpointClient, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("writer ingest: endpoint required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	return &EndpointClient{
		endpoint: cfg.Endpoint,
		timeout:  cfg.Timeout,
	}, nil
}

func (c *EndpointClient) Close() error { return nil }

// WriteRegisters sends one packet and waits for the status byte.
func (c *EndpointClient) WriteRegisters(area byte, unitID uint8, addr uint16, regs []uint16) error {
	pkt, err := Packet{Area: area, UnitID: unitID, Address: addr, Words: regs}.MarshalBinary()
	if err != nil {
		return err
	}

	conn, err := net.DialTimeout("tcp", c.endpoint, c.timeout)
	if err != nil {
		return fmt.Errorf("writer ingest: dial: %w", err)
	}
	defer conn.Close()

	_ = conn.SetDeadline(time.Now().Add(c.timeout))
	if _, err := conn.Write(pkt); err != nil {
		return fmt.Errorf("writer ingest: write: %w", err)
	}

	var resp [1]byte
	if _, err := io.ReadFull(conn, resp[:]); err != nil {
		return fmt.Errorf("writer ingest: read status: %w", err)
	}

	switch resp[0] {
	case StatusOK:
		return nil
	case StatusRejected:
		return ErrRejected
	default:
		return fmt.Errorf("writer ingest: unknown status 0x%02x", resp[0])
	}
}
