// cmd/sniffctl/sniffctl_test.go
package main

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/harp-sniffdetector/internal/capture"
	"github.com/tamzrod/harp-sniffdetector/internal/harp"
	"github.com/tamzrod/harp-sniffdetector/internal/sniffdetector"
)

type nopCloser struct{ *bytes.Buffer }

func (nopCloser) Close() error { return nil }

func TestResolve(t *testing.T) {
	cat := sniffdetector.Catalog()

	d, err := resolve(cat, "rawvoltage")
	require.NoError(t, err)
	assert.Equal(t, sniffdetector.AddressRawVoltage, d.Address)

	d, err = resolve(cat, "35")
	require.NoError(t, err)
	assert.Equal(t, "EventDispatchFrequency", d.Name)

	_, err = resolve(cat, "Nope")
	assert.ErrorIs(t, err, harp.ErrUnknownRegister)
}

func TestFormatValue(t *testing.T) {
	cat := sniffdetector.Catalog()

	d, _ := cat.Resolve(sniffdetector.AddressEventEnable)
	m, err := harp.BuildCommand(cat, d.Address, harp.Read, d.Type, []uint8{1})
	require.NoError(t, err)
	s, err := formatValue(d, m)
	require.NoError(t, err)
	assert.Equal(t, "1 (RawVoltage)", s)

	d, _ = cat.Resolve(harp.AddressDeviceName)
	name := make([]uint8, d.Length)
	copy(name, sniffdetector.DeviceName)
	m, err = harp.BuildCommand(cat, d.Address, harp.Read, d.Type, name)
	require.NoError(t, err)
	s, err = formatValue(d, m)
	require.NoError(t, err)
	assert.Equal(t, `"Sniff Detector"`, s)
}

func TestParseUnsignedFlagNames(t *testing.T) {
	d, _ := sniffdetector.Catalog().Resolve(sniffdetector.AddressEventEnable)

	v, err := parseUnsigned(d, "RawVoltage")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), v)

	v, err = parseUnsigned(d, "0x0")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), v)
}

func TestDumpRecords(t *testing.T) {
	cat := sniffdetector.Catalog()
	buf := &bytes.Buffer{}
	rec := capture.NewRecorder(nopCloser{buf}, "test")

	req := harp.Message{Type: harp.Read, Address: sniffdetector.AddressRawVoltage, PayloadType: harp.U16}
	reply, err := harp.BuildTimestampedCommand(cat, sniffdetector.AddressRawVoltage, harp.Read, harp.U16, 3.5, []uint16{812})
	require.NoError(t, err)

	require.NoError(t, rec.Record(capture.DirectionOut, req.Bytes()))
	require.NoError(t, rec.Record(capture.DirectionIn, reply.Bytes()))
	require.NoError(t, rec.Record(capture.DirectionIn, []byte{0xFF}))

	var out bytes.Buffer
	r := capture.NewReader(io.NopCloser(bytes.NewReader(buf.Bytes())))
	require.NoError(t, dumpRecords(&out, r, cat))

	text := out.String()
	assert.Contains(t, text, "RawVoltage = 812")
	assert.Contains(t, text, "ff")
	assert.Contains(t, text, "3 records")
}
