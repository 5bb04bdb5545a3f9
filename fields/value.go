// Package fields implements the field-decoder selector (C4): mapping a
// parsed type expression plus a field's send-table attributes to one of a
// closed set of primitive decoders, and the decoders themselves.
package fields

// ValueKind discriminates the tagged union a decoder produces.
type ValueKind uint8

const (
	KindI32 ValueKind = iota
	KindI64
	KindU32
	KindU64
	KindBool
	KindFloat32
	KindString
	KindVector2
	KindVector3
	KindVector4
	KindQAngle
)

// Value is the decoded field value (§3 "Field value"). Only the member
// matching Kind is meaningful; this mirrors the teacher's preference for a
// flat struct over an interface{} union to keep decode hot paths
// allocation-free.
type Value struct {
	Kind ValueKind
	I64  int64
	F32  float32
	Str  string
	Vec  [4]float32
	Bool bool
}

func I32Value(v int32) Value     { return Value{Kind: KindI32, I64: int64(v)} }
func I64Value(v int64) Value     { return Value{Kind: KindI64, I64: v} }
func U32Value(v uint32) Value    { return Value{Kind: KindU32, I64: int64(v)} }
func U64Value(v uint64) Value    { return Value{Kind: KindU64, I64: int64(v)} }
func BoolValue(v bool) Value     { return Value{Kind: KindBool, Bool: v} }
func Float32Value(v float32) Value { return Value{Kind: KindFloat32, F32: v} }
func StringValue(v string) Value { return Value{Kind: KindString, Str: v} }

func Vector2Value(x, y float32) Value {
	return Value{Kind: KindVector2, Vec: [4]float32{x, y, 0, 0}}
}

func Vector3Value(x, y, z float32) Value {
	return Value{Kind: KindVector3, Vec: [4]float32{x, y, z, 0}}
}

func Vector4Value(x, y, z, w float32) Value {
	return Value{Kind: KindVector4, Vec: [4]float32{x, y, z, w}}
}

func QAngleValue(p, y, r float32) Value {
	return Value{Kind: KindQAngle, Vec: [4]float32{p, y, r, 0}}
}
