// internal/writer/ingest/client_test.go
package ingest

import (
	"bytes"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// serveOnce accepts one connection, decodes one packet and answers with reply.
func serveOnce(t *testing.T, reply byte) (string, <-chan Packet) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	got := make(chan Packet, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		p, err := ReadPacket(conn)
		if err != nil {
			return
		}
		got <- p
		_, _ = conn.Write([]byte{reply})
	}()
	return ln.Addr().String(), got
}

func TestPacketLayout(t *testing.T) {
	raw, err := Packet{Area: 3, UnitID: 9, Address: 0x0102, Words: []uint16{0xA1B2}}.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, []byte{'R', 'I', 0x01, 3, 0, 9, 0x01, 0x02, 0, 1, 0xA1, 0xB2}, raw)

	p, err := ReadPacket(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, uint8(9), p.UnitID)
	assert.Equal(t, []uint16{0xA1B2}, p.Words)
}

func TestReadPacketBadMagic(t *testing.T) {
	_, err := ReadPacket(bytes.NewReader([]byte{'X', 'Y', 1, 3, 0, 0, 0, 0, 0, 0}))
	assert.Error(t, err)
}

func TestWriteRegisters(t *testing.T) {
	addr, got := serveOnce(t, StatusOK)

	c, err := NewEndpointClient(Config{Endpoint: addr, Timeout: time.Second})
	require.NoError(t, err)

	require.NoError(t, c.WriteRegisters(3, 1, 40, []uint16{1, 2, 3}))

	p := <-got
	assert.Equal(t, Packet{Area: 3, UnitID: 1, Address: 40, Words: []uint16{1, 2, 3}}, p)
}

func TestWriteRegistersRejected(t *testing.T) {
	addr, _ := serveOnce(t, StatusRejected)

	c, err := NewEndpointClient(Config{Endpoint: addr, Timeout: time.Second})
	require.NoError(t, err)

	err = c.WriteRegisters(3, 1, 0, []uint16{1})
	assert.True(t, errors.Is(err, ErrRejected), "got %v", err)
}

func TestNewEndpointClientRequiresEndpoint(t *testing.T) {
	_, err := NewEndpointClient(Config{})
	assert.Error(t, err)
}
