package protocol

import (
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/arloliu/s2replay/errs"
)

// FileHeader is CDemoFileHeader, the first command's protobuf body. Only
// the fields the orchestrator surfaces to callers are captured.
type FileHeader struct {
	DemoFileStamp string
	NetworkProtocol int32
	ServerName    string
	ClientName    string
	MapName       string
	GameDirectory string
}

func DecodeFileHeader(data []byte) (FileHeader, error) {
	var h FileHeader

	err := forEachField(data, func(num protowire.Number, typ protowire.Type, rest []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeString(typ, rest)
			h.DemoFileStamp = v
			return n, err
		case 2:
			v, n, err := consumeVarint(typ, rest)
			h.NetworkProtocol = int32(v)
			return n, err
		case 3:
			v, n, err := consumeString(typ, rest)
			h.ServerName = v
			return n, err
		case 4:
			v, n, err := consumeString(typ, rest)
			h.ClientName = v
			return n, err
		case 5:
			v, n, err := consumeString(typ, rest)
			h.MapName = v
			return n, err
		case 6:
			v, n, err := consumeString(typ, rest)
			h.GameDirectory = v
			return n, err
		default:
			return -1, nil
		}
	})

	return h, err
}

// FileInfo is CDemoFileInfo (§4's supplemented FileInfo/TicksPerSecond
// surface). Only the playback summary fields are captured; the
// game-specific sub-messages real replays embed alongside them are outside
// this module's scope (§1 "gameplay semantics").
type FileInfo struct {
	PlaybackTime   float32
	PlaybackTicks  int32
	PlaybackFrames int32
}

func DecodeFileInfo(data []byte) (FileInfo, error) {
	var fi FileInfo

	err := forEachField(data, func(num protowire.Number, typ protowire.Type, rest []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeFixed32(typ, rest)
			fi.PlaybackTime = math.Float32frombits(v)
			return n, err
		case 2:
			v, n, err := consumeVarint(typ, rest)
			fi.PlaybackTicks = int32(v)
			return n, err
		case 3:
			v, n, err := consumeVarint(typ, rest)
			fi.PlaybackFrames = int32(v)
			return n, err
		default:
			return -1, nil
		}
	})

	return fi, err
}

// Packet is CDemoPacket / CDemoSignonPacket: a single opaque bit-framed
// sub-message stream (§4.11's "DemSignonPacket/DemPacket").
type Packet struct {
	Data []byte
}

func DecodePacket(data []byte) (Packet, error) {
	var p Packet

	err := forEachField(data, func(num protowire.Number, typ protowire.Type, rest []byte) (int, error) {
		if num == 1 {
			v, n, err := consumeBytes(typ, rest)
			p.Data = v
			return n, err
		}

		return -1, nil
	})

	return p, err
}

// SendTables is CDemoSendTables: the single embedded, length-prefixed
// CSVCMsg_FlattenedSerializer blob (§4.5).
type SendTables struct {
	Data []byte
}

func DecodeSendTables(data []byte) (SendTables, error) {
	var st SendTables

	err := forEachField(data, func(num protowire.Number, typ protowire.Type, rest []byte) (int, error) {
		if num == 1 {
			v, n, err := consumeBytes(typ, rest)
			st.Data = v
			return n, err
		}

		return -1, nil
	})

	return st, err
}

// ClassInfoEntry is one class_t entry of CDemoClassInfo.
type ClassInfoEntry struct {
	ClassID     int32
	ClassName   string
	NetworkName string
}

// ClassInfo is CDemoClassInfo (§4.11 "DemClassInfo").
type ClassInfo struct {
	Classes []ClassInfoEntry
}

func DecodeClassInfo(data []byte) (ClassInfo, error) {
	var ci ClassInfo

	err := forEachField(data, func(num protowire.Number, typ protowire.Type, rest []byte) (int, error) {
		if num != 1 {
			return -1, nil
		}

		raw, n, err := consumeBytes(typ, rest)
		if err != nil {
			return 0, err
		}

		entry, err := decodeClassInfoEntry(raw)
		if err != nil {
			return 0, err
		}

		ci.Classes = append(ci.Classes, entry)

		return n, nil
	})

	return ci, err
}

func decodeClassInfoEntry(data []byte) (ClassInfoEntry, error) {
	var e ClassInfoEntry

	err := forEachField(data, func(num protowire.Number, typ protowire.Type, rest []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeVarint(typ, rest)
			e.ClassID = int32(v)
			return n, err
		case 2:
			v, n, err := consumeString(typ, rest)
			e.ClassName = v
			return n, err
		case 3:
			v, n, err := consumeString(typ, rest)
			e.NetworkName = v
			return n, err
		default:
			return -1, nil
		}
	})

	return e, err
}

// StringTableItem is one items_t entry of a CDemoStringTables table_t.
type StringTableItem struct {
	Str  string
	Data []byte
}

// StringTableSnapshot is one table_t entry of CDemoStringTables.
type StringTableSnapshot struct {
	TableName  string
	Items      []StringTableItem
	TableFlags int32
}

// StringTables is CDemoStringTables (§4.7 "full-update").
type StringTables struct {
	Tables []StringTableSnapshot
}

func DecodeStringTables(data []byte) (StringTables, error) {
	var st StringTables

	err := forEachField(data, func(num protowire.Number, typ protowire.Type, rest []byte) (int, error) {
		if num != 1 {
			return -1, nil
		}

		raw, n, err := consumeBytes(typ, rest)
		if err != nil {
			return 0, err
		}

		table, err := decodeStringTableSnapshot(raw)
		if err != nil {
			return 0, err
		}

		st.Tables = append(st.Tables, table)

		return n, nil
	})

	return st, err
}

func decodeStringTableSnapshot(data []byte) (StringTableSnapshot, error) {
	var t StringTableSnapshot

	err := forEachField(data, func(num protowire.Number, typ protowire.Type, rest []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeString(typ, rest)
			t.TableName = v
			return n, err
		case 2:
			raw, n, err := consumeBytes(typ, rest)
			if err != nil {
				return 0, err
			}

			item, err := decodeStringTableItem(raw)
			if err != nil {
				return 0, err
			}

			t.Items = append(t.Items, item)

			return n, nil
		case 3:
			v, n, err := consumeVarint(typ, rest)
			t.TableFlags = int32(v)
			return n, err
		default:
			return -1, nil
		}
	})

	return t, err
}

func decodeStringTableItem(data []byte) (StringTableItem, error) {
	var it StringTableItem

	err := forEachField(data, func(num protowire.Number, typ protowire.Type, rest []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeString(typ, rest)
			it.Str = v
			return n, err
		case 2:
			v, n, err := consumeBytes(typ, rest)
			it.Data = v
			return n, err
		default:
			return -1, nil
		}
	})

	return it, err
}

// FullPacket is CDemoFullPacket: a string-tables snapshot plus an optional
// embedded CDemoPacket (§4.11 "DemFullPacket").
type FullPacket struct {
	StringTable StringTables
	HasPacket   bool
	Packet      Packet
}

func DecodeFullPacket(data []byte) (FullPacket, error) {
	var fp FullPacket

	err := forEachField(data, func(num protowire.Number, typ protowire.Type, rest []byte) (int, error) {
		switch num {
		case 1:
			raw, n, err := consumeBytes(typ, rest)
			if err != nil {
				return 0, err
			}

			st, err := DecodeStringTables(raw)
			if err != nil {
				return 0, err
			}

			fp.StringTable = st

			return n, nil
		case 2:
			raw, n, err := consumeBytes(typ, rest)
			if err != nil {
				return 0, err
			}

			p, err := DecodePacket(raw)
			if err != nil {
				return 0, err
			}

			fp.HasPacket = true
			fp.Packet = p

			return n, nil
		default:
			return -1, nil
		}
	})

	return fp, err
}

// CreateStringTable is CSVCMsg_CreateStringTable (§4.7 "Create").
type CreateStringTable struct {
	Name                 string
	MaxEntries           int32
	NumEntries           int32
	UserDataFixedSize    bool
	UserDataSize         int32
	UserDataSizeBits     int32
	Flags                int32
	StringData           []byte
	UsingVarintBitCounts bool
}

func DecodeCreateStringTable(data []byte) (CreateStringTable, error) {
	var t CreateStringTable

	err := forEachField(data, func(num protowire.Number, typ protowire.Type, rest []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeString(typ, rest)
			t.Name = v
			return n, err
		case 2:
			v, n, err := consumeVarint(typ, rest)
			t.MaxEntries = int32(v)
			return n, err
		case 3:
			v, n, err := consumeVarint(typ, rest)
			t.NumEntries = int32(v)
			return n, err
		case 4:
			v, n, err := consumeVarint(typ, rest)
			t.UserDataFixedSize = v != 0
			return n, err
		case 5:
			v, n, err := consumeVarint(typ, rest)
			t.UserDataSize = int32(v)
			return n, err
		case 6:
			v, n, err := consumeVarint(typ, rest)
			t.UserDataSizeBits = int32(v)
			return n, err
		case 7:
			v, n, err := consumeVarint(typ, rest)
			t.Flags = int32(v)
			return n, err
		case 8:
			v, n, err := consumeBytes(typ, rest)
			t.StringData = v
			return n, err
		case 9:
			v, n, err := consumeVarint(typ, rest)
			t.UsingVarintBitCounts = v != 0
			return n, err
		default:
			return -1, nil
		}
	})

	return t, err
}

// UpdateStringTable is CSVCMsg_UpdateStringTable (§4.7 "Parse-update").
type UpdateStringTable struct {
	TableID           int32
	StringData        []byte
	NumChangedEntries int32
}

func DecodeUpdateStringTable(data []byte) (UpdateStringTable, error) {
	var t UpdateStringTable

	err := forEachField(data, func(num protowire.Number, typ protowire.Type, rest []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeVarint(typ, rest)
			t.TableID = int32(v)
			return n, err
		case 2:
			v, n, err := consumeBytes(typ, rest)
			t.StringData = v
			return n, err
		case 3:
			v, n, err := consumeVarint(typ, rest)
			t.NumChangedEntries = int32(v)
			return n, err
		default:
			return -1, nil
		}
	})

	return t, err
}

// PacketEntities is CSVCMsg_PacketEntities (§4.11 "svc_PacketEntities").
type PacketEntities struct {
	MaxEntries      int32
	UpdatedEntries  int32
	IsDelta         bool
	UpdateBaseline  bool
	Baseline        int32
	DeltaFromBaseline bool
	EntityData      []byte
}

func DecodePacketEntities(data []byte) (PacketEntities, error) {
	var pe PacketEntities

	err := forEachField(data, func(num protowire.Number, typ protowire.Type, rest []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeVarint(typ, rest)
			pe.MaxEntries = int32(v)
			return n, err
		case 2:
			v, n, err := consumeVarint(typ, rest)
			pe.UpdatedEntries = int32(v)
			return n, err
		case 3:
			v, n, err := consumeVarint(typ, rest)
			pe.IsDelta = v != 0
			return n, err
		case 4:
			v, n, err := consumeVarint(typ, rest)
			pe.UpdateBaseline = v != 0
			return n, err
		case 5:
			v, n, err := consumeVarint(typ, rest)
			pe.Baseline = int32(v)
			return n, err
		case 6:
			v, n, err := consumeVarint(typ, rest)
			pe.DeltaFromBaseline = v != 0
			return n, err
		case 7:
			v, n, err := consumeBytes(typ, rest)
			pe.EntityData = v
			return n, err
		default:
			return -1, nil
		}
	})

	return pe, err
}

// ServerInfo is CSVCMsg_ServerInfo (§4.11 "svc_ServerInfo"). TickInterval's
// field tag (16) follows the publicly documented Source 2 networkbasetypes
// schema; no .proto source for it shipped in this module's retrieval pack.
type ServerInfo struct {
	Protocol     int32
	ServerCount  int32
	TickInterval float32
}

func DecodeServerInfo(data []byte) (ServerInfo, error) {
	var si ServerInfo

	err := forEachField(data, func(num protowire.Number, typ protowire.Type, rest []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeVarint(typ, rest)
			si.Protocol = int32(v)
			return n, err
		case 2:
			v, n, err := consumeVarint(typ, rest)
			si.ServerCount = int32(v)
			return n, err
		case 16:
			v, n, err := consumeFixed32(typ, rest)
			si.TickInterval = math.Float32frombits(v)
			return n, err
		default:
			return -1, nil
		}
	})

	return si, err
}

// RawField is one field descriptor of CSVCMsg_FlattenedSerializer, symbol
// indices unresolved (§4.5).
type RawField struct {
	VarTypeSym             int32
	VarNameSym              int32
	HasBitCount             bool
	BitCount                int32
	HasLowValue             bool
	LowValue                float32
	HasHighValue            bool
	HighValue               float32
	HasEncodeFlags          bool
	EncodeFlags             int32
	HasFieldSerializerName  bool
	FieldSerializerNameSym  int32
	HasVarEncoder           bool
	VarEncoderSym           int32
}

// RawSerializer is one serializer descriptor of CSVCMsg_FlattenedSerializer.
type RawSerializer struct {
	SerializerNameSym int32
	FieldsIndex       []int32
}

// FlattenedSerializerMsg is the decoded CSVCMsg_FlattenedSerializer blob
// embedded in a CDemoSendTables command (§4.5).
type FlattenedSerializerMsg struct {
	Symbols     []string
	Fields      []RawField
	Serializers []RawSerializer
}

func DecodeFlattenedSerializer(data []byte) (FlattenedSerializerMsg, error) {
	var msg FlattenedSerializerMsg

	err := forEachField(data, func(num protowire.Number, typ protowire.Type, rest []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeString(typ, rest)
			msg.Symbols = append(msg.Symbols, v)
			return n, err
		case 2:
			raw, n, err := consumeBytes(typ, rest)
			if err != nil {
				return 0, err
			}

			f, err := decodeRawField(raw)
			if err != nil {
				return 0, err
			}

			msg.Fields = append(msg.Fields, f)

			return n, nil
		case 3:
			raw, n, err := consumeBytes(typ, rest)
			if err != nil {
				return 0, err
			}

			s, err := decodeRawSerializer(raw)
			if err != nil {
				return 0, err
			}

			msg.Serializers = append(msg.Serializers, s)

			return n, nil
		default:
			return -1, nil
		}
	})

	return msg, err
}

func decodeRawField(data []byte) (RawField, error) {
	var f RawField

	err := forEachField(data, func(num protowire.Number, typ protowire.Type, rest []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeVarint(typ, rest)
			f.VarTypeSym = int32(v)
			return n, err
		case 2:
			v, n, err := consumeVarint(typ, rest)
			f.VarNameSym = int32(v)
			return n, err
		case 3:
			v, n, err := consumeVarint(typ, rest)
			f.HasBitCount = true
			f.BitCount = int32(v)
			return n, err
		case 4:
			v, n, err := consumeFixed32(typ, rest)
			f.HasLowValue = true
			f.LowValue = math.Float32frombits(v)
			return n, err
		case 5:
			v, n, err := consumeFixed32(typ, rest)
			f.HasHighValue = true
			f.HighValue = math.Float32frombits(v)
			return n, err
		case 6:
			v, n, err := consumeVarint(typ, rest)
			f.HasEncodeFlags = true
			f.EncodeFlags = int32(v)
			return n, err
		case 7:
			v, n, err := consumeVarint(typ, rest)
			f.HasFieldSerializerName = true
			f.FieldSerializerNameSym = int32(v)
			return n, err
		case 10:
			v, n, err := consumeVarint(typ, rest)
			f.HasVarEncoder = true
			f.VarEncoderSym = int32(v)
			return n, err
		default:
			return -1, nil
		}
	})

	return f, err
}

func decodeRawSerializer(data []byte) (RawSerializer, error) {
	var s RawSerializer

	err := forEachField(data, func(num protowire.Number, typ protowire.Type, rest []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeVarint(typ, rest)
			s.SerializerNameSym = int32(v)
			return n, err
		case 3:
			if typ == protowire.BytesType {
				// packed repeated varint
				raw, n, err := consumeBytes(typ, rest)
				if err != nil {
					return 0, err
				}

				for len(raw) > 0 {
					v, m := protowire.ConsumeVarint(raw)
					if m < 0 {
						return 0, errs.ErrWireFormat
					}

					s.FieldsIndex = append(s.FieldsIndex, int32(v))
					raw = raw[m:]
				}

				return n, nil
			}

			v, n, err := consumeVarint(typ, rest)
			s.FieldsIndex = append(s.FieldsIndex, int32(v))

			return n, err
		default:
			return -1, nil
		}
	})

	return s, err
}
