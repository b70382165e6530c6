// internal/writer/modbus/client_test.go
package modbus

import (
	"encoding/binary"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fc16 struct {
	unit  uint8
	addr  uint16
	words []uint16
}

// fakeServer answers Modbus TCP FC16 requests and reports what it received.
func fakeServer(t *testing.T) (string, <-chan fc16) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	got := make(chan fc16, 16)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var mbap [7]byte
			if _, err := io.ReadFull(conn, mbap[:]); err != nil {
				return
			}
			pdu := make([]byte, int(binary.BigEndian.Uint16(mbap[4:6]))-1)
			if _, err := io.ReadFull(conn, pdu); err != nil {
				return
			}
			if pdu[0] != 0x10 {
				return
			}
			req := fc16{unit: mbap[6], addr: binary.BigEndian.Uint16(pdu[1:3])}
			qty := int(binary.BigEndian.Uint16(pdu[3:5]))
			for i := range qty {
				req.words = append(req.words, binary.BigEndian.Uint16(pdu[6+2*i:]))
			}
			got <- req

			resp := make([]byte, 0, 12)
			resp = append(resp, mbap[0:4]...)
			resp = binary.BigEndian.AppendUint16(resp, 6)
			resp = append(resp, mbap[6])
			resp = append(resp, pdu[0:5]...)
			if _, err := conn.Write(resp); err != nil {
				return
			}
		}
	}()
	return ln.Addr().String(), got
}

func TestWriteRegisters(t *testing.T) {
	addr, got := fakeServer(t)

	c, err := NewEndpointClient(Config{Endpoint: addr, Timeout: time.Second})
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.WriteRegisters(3, 5, 100, []uint16{0x1234, 7}))

	req := <-got
	assert.Equal(t, fc16{unit: 5, addr: 100, words: []uint16{0x1234, 7}}, req)
}

func TestWriteRegistersChunks(t *testing.T) {
	addr, got := fakeServer(t)

	c, err := NewEndpointClient(Config{Endpoint: addr, Timeout: time.Second})
	require.NoError(t, err)
	defer c.Close()

	regs := make([]uint16, maxWriteRegisters+10)
	require.NoError(t, c.WriteRegisters(3, 1, 0, regs))

	first, second := <-got, <-got
	assert.Len(t, first.words, maxWriteRegisters)
	assert.Equal(t, uint16(maxWriteRegisters), second.addr)
	assert.Len(t, second.words, 10)
}

func TestWriteRegistersRejectsInputArea(t *testing.T) {
	addr, _ := fakeServer(t)

	c, err := NewEndpointClient(Config{Endpoint: addr, Timeout: time.Second})
	require.NoError(t, err)
	defer c.Close()

	err = c.WriteRegisters(4, 1, 0, []uint16{1})
	assert.True(t, errors.Is(err, ErrArea), "got %v", err)
}
