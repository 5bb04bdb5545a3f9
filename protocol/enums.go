// Package protocol hand-decodes the Source 2 replay protobuf schemas using
// google.golang.org/protobuf/encoding/protowire directly, field by field,
// rather than through generated .pb.go bindings — there is no .proto source
// for these schemas in this module, only their well-known wire shapes.
package protocol

// DemoCommand identifies the kind of a top-level command in the demo
// command stream (§4.10/§4.11). The high bit of the raw wire value tags a
// compressed body and is stripped before comparing against these values.
type DemoCommand int32

const (
	DemError   DemoCommand = -1
	DemStop    DemoCommand = 0
	DemFileHeader DemoCommand = 1
	DemFileInfo   DemoCommand = 2
	DemSyncTick   DemoCommand = 3
	DemSendTables DemoCommand = 4
	DemClassInfo  DemoCommand = 5
	DemStringTables DemoCommand = 6
	DemPacket     DemoCommand = 7
	DemSignonPacket DemoCommand = 8
	DemConsoleCmd DemoCommand = 9
	DemCustomData DemoCommand = 10
	DemCustomDataCallbacks DemoCommand = 11
	DemUserCmd    DemoCommand = 12
	DemFullPacket DemoCommand = 13
	DemSaveGame   DemoCommand = 14
	DemSpawnGroups DemoCommand = 15
)

// DemIsCompressed is the flag bit OR'd into the raw command varint; masking
// it off yields one of the DemoCommand values above.
const DemIsCompressed DemoCommand = 0x40

// SvcMessage identifies a sub-message inside a decoded CDemoPacket/
// CDemoFullPacket payload (§4.11 "sub-message routing"). Only the kinds
// this module dispatches on are named; everything else is skipped.
type SvcMessage int32

const (
	SvcServerInfo        SvcMessage = 8
	SvcClassInfo         SvcMessage = 10
	SvcCreateStringTable SvcMessage = 12
	SvcUpdateStringTable SvcMessage = 13
	SvcPacketEntities    SvcMessage = 26
)
