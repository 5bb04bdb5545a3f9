package entity

import "github.com/arloliu/s2replay/bitread"

// DeltaHeader is the 2-bit per-entry header read from a packet-entities
// payload (§4.11 "svc_PacketEntities"): a leave-pvs bit and a delete bit,
// packed high-bit-first into the same two bits CL_ParseDeltaHeader reads
// off the wire.
type DeltaHeader uint8

const (
	DeltaUpdate DeltaHeader = 0b00
	DeltaCreate DeltaHeader = 0b10
	DeltaLeave  DeltaHeader = 0b01
	DeltaDelete DeltaHeader = 0b11
)

// ReadDeltaHeader reads the 2-bit delta header off r.
func ReadDeltaHeader(r *bitread.Reader) DeltaHeader {
	return DeltaHeader(r.ReadBits(2))
}

func (d DeltaHeader) String() string {
	switch d {
	case DeltaUpdate:
		return "update"
	case DeltaCreate:
		return "create"
	case DeltaLeave:
		return "leave"
	case DeltaDelete:
		return "delete"
	default:
		return "unknown"
	}
}
