// internal/transport/stream_test.go
package transport

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/harp-sniffdetector/internal/harp"
)

func testCatalog(t *testing.T) *harp.Catalog {
	t.Helper()
	cat, err := harp.Merge(harp.Base(), "Test", 1401,
		harp.Descriptor{Address: 32, Name: "RawVoltage", Type: harp.U16, Length: 1, Access: harp.AccessRead | harp.AccessEvent},
	)
	require.NoError(t, err)
	return cat
}

func TestStream_FramesBothWays(t *testing.T) {
	cat := testCatalog(t)
	a, b := net.Pipe()
	host := NewStream(a, cat)
	dev := NewStream(b, cat, WithRole(harp.DeviceRole))
	defer host.Close()
	defer dev.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	req, err := harp.BuildCommand[uint16](cat, 32, harp.Read, harp.U16, nil)
	require.NoError(t, err)
	require.NoError(t, host.Send(ctx, req.Bytes()))

	got, err := dev.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, req.Bytes(), got)

	reply, err := harp.BuildTimestampedCommand(cat, 32, harp.Read, harp.U16, 4.5, []uint16{321})
	require.NoError(t, err)
	// garbage ahead of the reply must be skipped
	go func() { _, _ = b.Write([]byte{0xFF}) }()
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, dev.Send(ctx, reply.Bytes()))

	got, err = host.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, reply.Bytes(), got)
}

func TestStream_ReceiveHonoursContext(t *testing.T) {
	cat := testCatalog(t)
	a, b := net.Pipe()
	defer b.Close()
	s := NewStream(a, cat)
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := s.Receive(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStream_CloseEndsReceive(t *testing.T) {
	cat := testCatalog(t)
	a, b := net.Pipe()
	defer b.Close()
	s := NewStream(a, cat)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err := s.Receive(context.Background())
	assert.ErrorIs(t, err, ErrClosed)

	err = s.Send(context.Background(), []byte{1, 2, 3, 6})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestStream_PeerCloseSurfacesError(t *testing.T) {
	cat := testCatalog(t)
	a, b := net.Pipe()
	s := NewStream(a, cat)
	defer s.Close()

	require.NoError(t, b.Close())
	_, err := s.Receive(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrClosed)
}

func TestParseEndpoint(t *testing.T) {
	u, err := ParseEndpoint("tcp://127.0.0.1:5020")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:5020", u.Host)

	u, err = ParseEndpoint("serial:///dev/ttyUSB0?baud=1000000&timeout=50ms")
	require.NoError(t, err)
	cfg, err := serialConfig(u)
	require.NoError(t, err)
	assert.Equal(t, SerialConfig{Device: "/dev/ttyUSB0", BaudRate: 1000000, Timeout: 50 * time.Millisecond}, cfg)

	for _, bad := range []string{
		"udp://1.2.3.4:5",
		"tcp://nohostport",
		"serial://",
		"serial:///dev/ttyUSB0?baud=fast",
		"serial:///dev/ttyUSB0?timeout=-1s",
	} {
		_, err := ParseEndpoint(bad)
		assert.Error(t, err, bad)
	}
}
