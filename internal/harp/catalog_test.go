// internal/harp/catalog_test.go
package harp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_UnknownAddresses(t *testing.T) {
	cat := testCatalog(t)

	known := map[uint8]bool{}
	for _, d := range cat.Descriptors() {
		known[d.Address] = true
	}

	for a := 0; a <= 255; a++ {
		_, err := cat.Resolve(uint8(a))
		if known[uint8(a)] {
			assert.NoError(t, err, "address %d", a)
		} else {
			assert.ErrorIs(t, err, ErrUnknownRegister, "address %d", a)
		}
	}
}

func TestNewCatalog_DuplicateAddress(t *testing.T) {
	_, err := NewCatalog("dup", 1,
		Descriptor{Address: 40, Name: "A", Type: U8, Length: 1, Access: AccessRead},
		Descriptor{Address: 40, Name: "B", Type: U8, Length: 1, Access: AccessRead},
	)
	assert.ErrorIs(t, err, ErrDuplicateAddress)
}

func TestNewCatalog_InvalidDescriptor(t *testing.T) {
	_, err := NewCatalog("bad", 1, Descriptor{Address: 40, Name: "Empty", Type: U8, Length: 0})
	assert.ErrorIs(t, err, ErrInvalidDescriptor)

	_, err = NewCatalog("bad", 1, Descriptor{Address: 40, Name: "Stamped", Type: U8.WithTimestamp(), Length: 1})
	assert.ErrorIs(t, err, ErrInvalidDescriptor)
}

func TestMerge_CollisionWithBase(t *testing.T) {
	_, err := Merge(Base(), "clash", 7,
		Descriptor{Address: AddressWhoAmI, Name: "NotWhoAmI", Type: U8, Length: 1, Access: AccessRead},
	)
	assert.ErrorIs(t, err, ErrDuplicateAddress)
}

func TestMerge_IdenticalRedeclarationAllowed(t *testing.T) {
	who, err := Base().Resolve(AddressWhoAmI)
	require.NoError(t, err)

	cat, err := Merge(Base(), "same", 7, who)
	require.NoError(t, err)
	assert.Equal(t, Base().Len(), cat.Len())
	assert.Equal(t, uint16(7), cat.WhoAmI())
}

func TestMerge_DoesNotMutateBase(t *testing.T) {
	before := Base().Len()
	cat := testCatalog(t)
	assert.Equal(t, before, Base().Len())
	assert.Equal(t, before+5, cat.Len())
}

func TestLookupAndDescriptors(t *testing.T) {
	cat := testCatalog(t)

	d, ok := cat.Lookup("rawvoltage")
	require.True(t, ok)
	assert.Equal(t, uint8(32), d.Address)

	_, ok = cat.Lookup("nope")
	assert.False(t, ok)

	descs := cat.Descriptors()
	for i := 1; i < len(descs); i++ {
		assert.Less(t, descs[i-1].Address, descs[i].Address)
	}
}

func TestDescriptorSizes(t *testing.T) {
	name, err := Base().Resolve(AddressDeviceName)
	require.NoError(t, err)
	assert.Equal(t, DeviceNameLength, name.PayloadSize())
	assert.Equal(t, DeviceNameLength, name.WordCount())

	ts, err := Base().Resolve(AddressTimestampSeconds)
	require.NoError(t, err)
	assert.Equal(t, 4, ts.PayloadSize())
	assert.Equal(t, 2, ts.WordCount())
}

func TestAccess(t *testing.T) {
	a := AccessRead | AccessEvent
	assert.True(t, a.Allows(Read))
	assert.True(t, a.Allows(Read|ErrorFlag))
	assert.False(t, a.Allows(Write))
	assert.True(t, a.Allows(Event))
	assert.Equal(t, "read,event", a.String())
}
