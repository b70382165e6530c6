// internal/emulator/emulator_test.go
package emulator

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/harp-sniffdetector/internal/harp"
	"github.com/tamzrod/harp-sniffdetector/internal/sniffdetector"
	"github.com/tamzrod/harp-sniffdetector/internal/transport"
)

func decodeU16(t *testing.T, m harp.Message) uint16 {
	t.Helper()
	d, err := sniffdetector.Catalog().Resolve(m.Address)
	require.NoError(t, err)
	v, err := harp.DecodeMessage[uint16](d, m)
	require.NoError(t, err)
	return v[0]
}

func command[T harp.Element](t *testing.T, address uint8, mt harp.MessageType, values ...T) harp.Message {
	t.Helper()
	cat := sniffdetector.Catalog()
	d, err := cat.Resolve(address)
	require.NoError(t, err)
	msg, err := harp.BuildCommand(cat, address, mt, d.Type, values)
	require.NoError(t, err)
	return msg
}

func TestHandle_PowerOnState(t *testing.T) {
	e := New(WithSensor(func() uint16 { return 777 }))

	replies := e.Handle(command[uint16](t, harp.AddressWhoAmI, harp.Read))
	require.Len(t, replies, 1)
	assert.Equal(t, harp.Read, replies[0].Type)
	assert.True(t, replies[0].HasTimestamp)
	assert.Equal(t, sniffdetector.WhoAmI, decodeU16(t, replies[0]))

	replies = e.Handle(command[uint16](t, sniffdetector.AddressEventDispatchFrequency, harp.Read))
	assert.Equal(t, sniffdetector.DefaultDispatchFrequency, decodeU16(t, replies[0]))

	replies = e.Handle(command[uint16](t, sniffdetector.AddressRawVoltage, harp.Read))
	assert.Equal(t, uint16(777), decodeU16(t, replies[0]))

	assert.Zero(t, e.dispatchInterval(), "events are off until enabled")
}

func TestHandle_DispatchFrequencyCap(t *testing.T) {
	e := New()

	replies := e.Handle(command[uint16](t, sniffdetector.AddressEventDispatchFrequency, harp.Write, 250))
	require.Len(t, replies, 1)
	assert.Equal(t, harp.Write, replies[0].Type)
	assert.Equal(t, uint16(250), decodeU16(t, replies[0]))

	replies = e.Handle(command[uint16](t, sniffdetector.AddressEventDispatchFrequency, harp.Write, 5000))
	require.Len(t, replies, 1)
	assert.Equal(t, harp.Write|harp.ErrorFlag, replies[0].Type)
	assert.Equal(t, sniffdetector.MaxDispatchFrequency, decodeU16(t, replies[0]))
}

func TestHandle_ReadOnlyRegisters(t *testing.T) {
	e := New()

	// build the raw write by hand: the host codec refuses it
	d, err := sniffdetector.Catalog().Resolve(sniffdetector.AddressRawVoltage)
	require.NoError(t, err)
	req := harp.Message{Type: harp.Write, Address: d.Address, PayloadType: d.Type, Payload: []byte{1, 0}}

	replies := e.Handle(req)
	require.Len(t, replies, 1)
	assert.True(t, replies[0].Type.IsError())

	who, err := sniffdetector.Catalog().Resolve(harp.AddressWhoAmI)
	require.NoError(t, err)
	replies = e.Handle(harp.Message{Type: harp.Write, Address: who.Address, PayloadType: who.Type, Payload: []byte{0, 0}})
	assert.True(t, replies[0].Type.IsError())
	assert.Equal(t, sniffdetector.WhoAmI, decodeU16(t, replies[0]))
}

func TestHandle_EventsFromHostIgnored(t *testing.T) {
	e := New()
	assert.Empty(t, e.Handle(command[uint16](t, sniffdetector.AddressRawVoltage, harp.Event, 1)))
}

func TestHandle_TimestampWrite(t *testing.T) {
	now := time.Unix(1000, 0)
	e := New(WithClock(func() time.Time { return now }))

	e.Handle(command[uint32](t, harp.AddressTimestampSeconds, harp.Write, 500))
	now = now.Add(2 * time.Second)

	replies := e.Handle(command[uint32](t, harp.AddressTimestampSeconds, harp.Read))
	require.Len(t, replies, 1)
	assert.InDelta(t, 502.0, replies[0].Timestamp, harp.TimestampTick)
}

func TestServe_StreamsEvents(t *testing.T) {
	cat := sniffdetector.Catalog()
	a, b := net.Pipe()
	host := transport.NewStream(a, cat)
	dev := transport.NewStream(b, cat, transport.WithRole(harp.DeviceRole))
	defer host.Close()
	defer dev.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	e := New(WithSensor(func() uint16 { return 1000 }))
	served := make(chan error, 1)
	go func() { served <- e.Serve(ctx, dev) }()

	send := func(m harp.Message) harp.Message {
		require.NoError(t, host.Send(ctx, m.Bytes()))
		for {
			raw, err := host.Receive(ctx)
			require.NoError(t, err)
			reply, err := harp.Parse(cat, raw)
			require.NoError(t, err)
			if reply.Type != harp.Event {
				return reply
			}
		}
	}

	send(command[uint16](t, sniffdetector.AddressEventDispatchFrequency, harp.Write, 200))
	send(command[sniffdetector.Events](t, sniffdetector.AddressEventEnable, harp.Write, sniffdetector.EventsRawVoltage))

	var events int
	for events < 3 {
		raw, err := host.Receive(ctx)
		require.NoError(t, err)
		m, err := harp.Parse(cat, raw)
		require.NoError(t, err)
		if v, ok := sniffdetector.RawVoltageEvent(m); ok {
			assert.Equal(t, uint16(1000), v.Value)
			events++
		}
	}

	cancel()
	require.NoError(t, host.Close())
	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Serve did not stop")
	}
}

func TestHandle_MuteReplies(t *testing.T) {
	e := New()
	e.Handle(command[sniffdetector.Events](t, sniffdetector.AddressEventEnable, harp.Write, sniffdetector.EventsRawVoltage))
	require.Equal(t, time.Second/time.Duration(sniffdetector.DefaultDispatchFrequency), e.dispatchInterval())

	assert.Empty(t, e.Handle(command[uint8](t, harp.AddressOperationControl, harp.Write, harp.OperationMuteReplies)))
	assert.Empty(t, e.Handle(command[uint16](t, harp.AddressWhoAmI, harp.Read)))
	assert.Zero(t, e.dispatchInterval(), "no events while muted")

	// writes still land while muted
	assert.Empty(t, e.Handle(command[uint16](t, sniffdetector.AddressEventDispatchFrequency, harp.Write, 50)))

	replies := e.Handle(command[uint8](t, harp.AddressOperationControl, harp.Write, 0))
	require.Len(t, replies, 1)
	assert.Equal(t, harp.Write, replies[0].Type)
	assert.Equal(t, time.Second/50, e.dispatchInterval())
}
