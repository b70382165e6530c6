// internal/harp/base.go
package harp

import "sync"

// Common registers every Harp device exposes.
const (
	AddressWhoAmI               uint8 = 0
	AddressHardwareVersionHigh  uint8 = 1
	AddressHardwareVersionLow   uint8 = 2
	AddressAssemblyVersion      uint8 = 3
	AddressCoreVersionHigh      uint8 = 4
	AddressCoreVersionLow       uint8 = 5
	AddressFirmwareVersionHigh  uint8 = 6
	AddressFirmwareVersionLow   uint8 = 7
	AddressTimestampSeconds     uint8 = 8
	AddressTimestampMicrosecond uint8 = 9
	AddressOperationControl     uint8 = 10
	AddressResetDevice          uint8 = 11
	AddressDeviceName           uint8 = 12
	AddressSerialNumber         uint8 = 13
	AddressClockConfiguration   uint8 = 14
)

// OperationControl bits.
const (
	OperationModeMask    uint8 = 0x03
	OperationDumpOnWrite uint8 = 1 << 3
	// OperationMuteReplies stops the device from answering commands and
	// from dispatching periodic events.
	OperationMuteReplies uint8 = 1 << 4
	OperationVisualLEDs  uint8 = 1 << 5
	OperationLEDEnable   uint8 = 1 << 6
	OperationAliveEvent  uint8 = 1 << 7
)

// DeviceNameLength is the fixed size of the DeviceName register (NUL padded).
const DeviceNameLength = 25

// AppRegisterStart is the first address available to device-specific registers.
const AppRegisterStart uint8 = 32

const rw = AccessRead | AccessWrite

var baseRegisters = []Descriptor{
	{Address: AddressWhoAmI, Name: "WhoAmI", Type: U16, Length: 1, Access: AccessRead},
	{Address: AddressHardwareVersionHigh, Name: "HardwareVersionHigh", Type: U8, Length: 1, Access: AccessRead},
	{Address: AddressHardwareVersionLow, Name: "HardwareVersionLow", Type: U8, Length: 1, Access: AccessRead},
	{Address: AddressAssemblyVersion, Name: "AssemblyVersion", Type: U8, Length: 1, Access: AccessRead},
	{Address: AddressCoreVersionHigh, Name: "CoreVersionHigh", Type: U8, Length: 1, Access: AccessRead},
	{Address: AddressCoreVersionLow, Name: "CoreVersionLow", Type: U8, Length: 1, Access: AccessRead},
	{Address: AddressFirmwareVersionHigh, Name: "FirmwareVersionHigh", Type: U8, Length: 1, Access: AccessRead},
	{Address: AddressFirmwareVersionLow, Name: "FirmwareVersionLow", Type: U8, Length: 1, Access: AccessRead},
	{Address: AddressTimestampSeconds, Name: "TimestampSeconds", Type: U32, Length: 1, Access: rw | AccessEvent},
	{Address: AddressTimestampMicrosecond, Name: "TimestampMicroseconds", Type: U16, Length: 1, Access: rw},
	{Address: AddressOperationControl, Name: "OperationControl", Type: U8, Length: 1, Access: rw},
	{Address: AddressResetDevice, Name: "ResetDevice", Type: U8, Length: 1, Access: rw},
	{Address: AddressDeviceName, Name: "DeviceName", Type: U8, Length: DeviceNameLength, Access: rw},
	{Address: AddressSerialNumber, Name: "SerialNumber", Type: U16, Length: 1, Access: rw},
	{Address: AddressClockConfiguration, Name: "ClockConfiguration", Type: U8, Length: 1, Access: rw},
}

var base = sync.OnceValue(func() *Catalog {
	c, err := NewCatalog("Harp", 0, baseRegisters...)
	if err != nil {
		panic("harp: base catalog: " + err.Error())
	}
	return c
})

// Base returns the common register catalog shared by all device models.
func Base() *Catalog { return base() }
