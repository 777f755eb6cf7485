package compiler

import (
	"fmt"
	"strings"
)

const hexRecordSize = 16

// EncodeHex renders data as Intel HEX text loaded at base, with an
// extended linear address record at every 64 KiB boundary.
func EncodeHex(data []byte, base uint32) string {
	var sb strings.Builder
	upper := uint32(1<<32 - 1) // no segment emitted yet
	for off := 0; off < len(data); {
		addr := base + uint32(off)
		if addr>>16 != upper {
			upper = addr >> 16
			writeRecord(&sb, 0, 0x04, []byte{byte(upper >> 8), byte(upper)})
		}
		end := min(off+hexRecordSize, len(data))
		// a record never crosses a 64 KiB boundary
		if room := 0x10000 - int(addr&0xFFFF); end-off > room {
			end = off + room
		}
		writeRecord(&sb, uint16(addr), 0x00, data[off:end])
		off = end
	}
	writeRecord(&sb, 0, 0x01, nil)
	return sb.String()
}

func writeRecord(sb *strings.Builder, addr uint16, typ byte, payload []byte) {
	sum := byte(len(payload)) + byte(addr>>8) + byte(addr) + typ
	fmt.Fprintf(sb, ":%02X%04X%02X", len(payload), addr, typ)
	for _, b := range payload {
		fmt.Fprintf(sb, "%02X", b)
		sum += b
	}
	fmt.Fprintf(sb, "%02X\n", -sum)
}
