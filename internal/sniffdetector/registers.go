// internal/sniffdetector/registers.go
package sniffdetector

import (
	"fmt"
	"strings"
	"sync"

	"github.com/tamzrod/harp-sniffdetector/internal/harp"
)

// WhoAmI identifies a SniffDetector on the Harp bus.
const WhoAmI uint16 = 1401

// DeviceName is the name the firmware reports in the DeviceName register.
const DeviceName = "Sniff Detector"

// Register addresses.
const (
	AddressRawVoltage             uint8 = 32
	AddressErrorState             uint8 = 33
	AddressEventEnable            uint8 = 34
	AddressEventDispatchFrequency uint8 = 35
)

// Firmware limits for EventDispatchFrequency, in Hz.
const (
	DefaultDispatchFrequency uint16 = 1
	MaxDispatchFrequency     uint16 = 1000
)

// ---- flags ----

// Events selects which registers emit Event messages.
type Events uint8

const (
	EventsNone       Events = 0
	EventsRawVoltage Events = 1 << 0
)

func (e Events) String() string {
	return flagString(uint8(e), []string{"RawVoltage"})
}

// Errors reports device fault conditions.
type Errors uint8

const (
	ErrorsNone              Errors = 0
	ErrorsSensorNotDetected Errors = 1 << 0
)

func (e Errors) String() string {
	return flagString(uint8(e), []string{"SensorNotDetected"})
}

// flagString joins the names of the set bits; unknown bits print in hex.
func flagString(v uint8, names []string) string {
	if v == 0 {
		return "None"
	}
	var parts []string
	for i, n := range names {
		if v&(1<<i) != 0 {
			parts = append(parts, n)
			v &^= 1 << i
		}
	}
	if v != 0 {
		parts = append(parts, fmt.Sprintf("0x%02x", v))
	}
	return strings.Join(parts, "|")
}

// ---- catalog ----

var registers = []harp.Descriptor{
	{Address: AddressRawVoltage, Name: "RawVoltage", Type: harp.U16, Length: 1, Access: harp.AccessRead | harp.AccessEvent},
	{Address: AddressErrorState, Name: "ErrorState", Type: harp.U8, Length: 1, Access: harp.AccessRead | harp.AccessWrite | harp.AccessEvent},
	{Address: AddressEventEnable, Name: "EventEnable", Type: harp.U8, Length: 1, Access: harp.AccessRead | harp.AccessWrite},
	{Address: AddressEventDispatchFrequency, Name: "EventDispatchFrequency", Type: harp.U16, Length: 1, Access: harp.AccessRead | harp.AccessWrite},
}

// Registers returns a copy of the device-specific register table.
func Registers() []harp.Descriptor {
	return append([]harp.Descriptor(nil), registers...)
}

var catalog = sync.OnceValue(func() *harp.Catalog {
	c, err := harp.Merge(harp.Base(), "SniffDetector", WhoAmI, registers...)
	if err != nil {
		panic("sniffdetector: catalog: " + err.Error())
	}
	return c
})

// Catalog returns the base catalog merged with the SniffDetector registers.
func Catalog() *harp.Catalog { return catalog() }
