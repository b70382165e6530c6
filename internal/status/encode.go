// internal/status/encode.go
package status

// Encode converts a Snapshot into a full device status block.
// Layout is protocol-locked. The device name slots are left to the writer.
// No IO. No side effects.
func Encode(s Snapshot) []uint16 {
	regs := make([]uint16, SlotsPerDevice)

	regs[SlotHealthCode] = s.Health
	regs[SlotLastErrorCode] = s.LastErrorCode
	regs[SlotSecondsInError] = s.SecondsInError
	regs[SlotWhoAmI] = s.WhoAmI
	regs[SlotFirmwareVersion] = s.FirmwareVersion
	regs[SlotLastTimestamp] = uint16(s.LastTimestamp >> 16)
	regs[SlotLastTimestamp+1] = uint16(s.LastTimestamp)

	return regs
}
