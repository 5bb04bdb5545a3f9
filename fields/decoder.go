package fields

import (
	"github.com/arloliu/s2replay/bitread"
	"github.com/arloliu/s2replay/quantize"
)

// DecodeContext carries the small amount of per-replay state a field
// decoder needs beyond the bit reader itself: the server's tick interval,
// required by the simulation-time float decoder to turn a tick count back
// into seconds.
type DecodeContext struct {
	TickInterval float32
}

// Decoder is the closed dispatch target every field ultimately resolves
// to. Implementations are stateless and returned by value, mirroring the
// teacher's convention of small value-typed decoders.
type Decoder interface {
	Decode(r *bitread.Reader, ctx *DecodeContext) Value
}

// I32Decoder reads a zig-zag signed varint into a 32-bit integer.
type I32Decoder struct{}

func (I32Decoder) Decode(r *bitread.Reader, _ *DecodeContext) Value {
	return I32Value(r.ReadVarint32())
}

// I64Decoder reads a zig-zag signed varint into a 64-bit integer.
type I64Decoder struct{}

func (I64Decoder) Decode(r *bitread.Reader, _ *DecodeContext) Value {
	return I64Value(r.ReadVarint64())
}

// U32Decoder reads an unsigned varint.
type U32Decoder struct{}

func (U32Decoder) Decode(r *bitread.Reader, _ *DecodeContext) Value {
	return U32Value(r.ReadUvarint32())
}

// U64Decoder reads an unsigned varint into a 64-bit integer.
type U64Decoder struct{}

func (U64Decoder) Decode(r *bitread.Reader, _ *DecodeContext) Value {
	return U64Value(r.ReadUvarint64())
}

// Fixed64Decoder reads a raw little-endian 8-byte integer, used for the
// handful of 64-bit identifiers whose var_encoder is "fixed64".
type Fixed64Decoder struct{}

func (Fixed64Decoder) Decode(r *bitread.Reader, _ *DecodeContext) Value {
	var buf [8]byte
	r.ReadBytes(buf[:])

	v := uint64(buf[0]) | uint64(buf[1])<<8 | uint64(buf[2])<<16 | uint64(buf[3])<<24 |
		uint64(buf[4])<<32 | uint64(buf[5])<<40 | uint64(buf[6])<<48 | uint64(buf[7])<<56

	return U64Value(v)
}

// BoolDecoder reads a single presence/truth bit.
type BoolDecoder struct{}

func (BoolDecoder) Decode(r *bitread.Reader, _ *DecodeContext) Value {
	return BoolValue(r.ReadBool())
}

// StringDecoder reads a null-terminated string capped at a generous bound;
// Source 2 net strings (CUtlString/CUtlSymbolLarge) never approach this in
// practice.
type StringDecoder struct{}

const stringDecodeCap = 4096

func (StringDecoder) Decode(r *bitread.Reader, _ *DecodeContext) Value {
	return StringValue(r.ReadString(stringDecodeCap))
}

// simulationTimeDecoder scales a tick-count varint by the replay's tick
// interval, reconstructing m_flSimulationTime / m_flAnimTime in seconds.
type simulationTimeDecoder struct{}

func (simulationTimeDecoder) Decode(r *bitread.Reader, ctx *DecodeContext) Value {
	ticks := r.ReadUvarint32()

	return Float32Value(float32(ticks) * ctx.TickInterval)
}

type coordDecoder struct{}

func (coordDecoder) Decode(r *bitread.Reader, _ *DecodeContext) Value {
	return Float32Value(r.ReadBitCoord())
}

type normalDecoder struct{}

func (normalDecoder) Decode(r *bitread.Reader, _ *DecodeContext) Value {
	return Float32Value(r.ReadBitNormal())
}

type noScaleFloatDecoder struct{}

func (noScaleFloatDecoder) Decode(r *bitread.Reader, _ *DecodeContext) Value {
	return Float32Value(r.ReadBitFloat())
}

// QuantizedFloatDecoder wraps a constructed quantize.Decoder for a bounded
// float field.
type QuantizedFloatDecoder struct {
	Inner quantize.Decoder
}

func (d QuantizedFloatDecoder) Decode(r *bitread.Reader, _ *DecodeContext) Value {
	return Float32Value(d.Inner.Decode(r))
}

// PointerDecoder reads a single presence boolean for the curated set of
// engine "pointer" identifiers that are networked as is-present flags
// rather than real values.
type PointerDecoder struct{}

func (PointerDecoder) Decode(r *bitread.Reader, _ *DecodeContext) Value {
	return BoolValue(r.ReadBool())
}

// Vector2Decoder decodes two independently-dispatched float axes.
type Vector2Decoder struct {
	X, Y Decoder
}

func (d Vector2Decoder) Decode(r *bitread.Reader, ctx *DecodeContext) Value {
	x := d.X.Decode(r, ctx).F32
	y := d.Y.Decode(r, ctx).F32

	return Vector2Value(x, y)
}

// Vector3Decoder decodes three independently-dispatched float axes, unless
// Normal is set, in which case the whole vector is reconstructed from the
// bitvec3normal encoding (X/Y transmitted, Z derived from the unit-length
// identity).
type Vector3Decoder struct {
	X, Y, Z Decoder
	Normal  bool
}

func (d Vector3Decoder) Decode(r *bitread.Reader, ctx *DecodeContext) Value {
	if d.Normal {
		v := r.ReadBitVec3Normal()

		return Vector3Value(v[0], v[1], v[2])
	}

	x := d.X.Decode(r, ctx).F32
	y := d.Y.Decode(r, ctx).F32
	z := d.Z.Decode(r, ctx).F32

	return Vector3Value(x, y, z)
}

// Vector4Decoder decodes four independently-dispatched float axes.
type Vector4Decoder struct {
	X, Y, Z, W Decoder
}

func (d Vector4Decoder) Decode(r *bitread.Reader, ctx *DecodeContext) Value {
	x := d.X.Decode(r, ctx).F32
	y := d.Y.Decode(r, ctx).F32
	z := d.Z.Decode(r, ctx).F32
	w := d.W.Decode(r, ctx).F32

	return Vector4Value(x, y, z, w)
}

// qanglePrecisionBits is the fixed width of each per-axis angle in the
// "qangle_precise" encoding.
const qanglePrecisionBits = 20

// QAnglePitchYawDecoder reads two bit-angles at the field's configured bit
// count; roll is not transmitted and decodes to zero.
type QAnglePitchYawDecoder struct {
	BitCount int
}

func (d QAnglePitchYawDecoder) Decode(r *bitread.Reader, _ *DecodeContext) Value {
	pitch := r.ReadBitAngle(d.BitCount)
	yaw := r.ReadBitAngle(d.BitCount)

	return QAngleValue(pitch, yaw, 0)
}

// QAnglePreciseDecoder reads three independently flagged 20-bit
// fixed-point angles covering the full [-180, 180) range.
type QAnglePreciseDecoder struct{}

func (QAnglePreciseDecoder) Decode(r *bitread.Reader, _ *DecodeContext) Value {
	hasX := r.ReadBit()
	hasY := r.ReadBit()
	hasZ := r.ReadBit()

	const scale = 360.0 / float32(uint32(1)<<qanglePrecisionBits)

	var v [3]float32
	if hasX {
		v[0] = float32(r.ReadBits(qanglePrecisionBits))*scale - 180.0
	}

	if hasY {
		v[1] = float32(r.ReadBits(qanglePrecisionBits))*scale - 180.0
	}

	if hasZ {
		v[2] = float32(r.ReadBits(qanglePrecisionBits))*scale - 180.0
	}

	return QAngleValue(v[0], v[1], v[2])
}

// QAngleCoordDecoder reads the bare "qangle" identifier with no bit count,
// which falls back to the bitvec3coord encoding (§4.4).
type QAngleCoordDecoder struct{}

func (QAngleCoordDecoder) Decode(r *bitread.Reader, _ *DecodeContext) Value {
	v := r.ReadBitVec3Coord()

	return QAngleValue(v[0], v[1], v[2])
}

// QAngleBitAnglesDecoder reads three bit-angles at the field's configured
// bit count, the fallback arm of the qangle dispatcher.
type QAngleBitAnglesDecoder struct {
	BitCount int
}

func (d QAngleBitAnglesDecoder) Decode(r *bitread.Reader, _ *DecodeContext) Value {
	p := r.ReadBitAngle(d.BitCount)
	y := r.ReadBitAngle(d.BitCount)
	z := r.ReadBitAngle(d.BitCount)

	return QAngleValue(p, y, z)
}
