// internal/poller/words.go
package poller

import (
	"encoding/binary"
	"fmt"

	"github.com/tamzrod/harp-sniffdetector/internal/harp"
)

// Words lays a Harp payload out as Modbus registers.
//
//	8-bit elements   one word each (signed values sign-extended)
//	16-bit elements  one word each
//	32/64-bit        2 or 4 words, most significant word first
//
// Floats keep their IEEE-754 bit pattern.
func Words(d harp.Descriptor, payload []byte) ([]uint16, error) {
	size := d.Type.Size()
	if len(payload) != d.PayloadSize() {
		return nil, fmt.Errorf("%w: register %q payload is %d bytes, want %d",
			harp.ErrTruncatedPayload, d.Name, len(payload), d.PayloadSize())
	}

	out := make([]uint16, 0, d.WordCount())
	for i := 0; i < len(payload); i += size {
		el := payload[i : i+size]
		switch size {
		case 1:
			if d.Type.Signed() {
				out = append(out, uint16(int16(int8(el[0]))))
			} else {
				out = append(out, uint16(el[0]))
			}
		case 2:
			out = append(out, binary.LittleEndian.Uint16(el))
		case 4:
			v := binary.LittleEndian.Uint32(el)
			out = append(out, uint16(v>>16), uint16(v))
		case 8:
			v := binary.LittleEndian.Uint64(el)
			out = append(out, uint16(v>>48), uint16(v>>32), uint16(v>>16), uint16(v))
		}
	}
	return out, nil
}
