package fields

import (
	"math"
	"sync"

	"github.com/arloliu/s2replay/internal/symbol"
	"github.com/arloliu/s2replay/quantize"
	"github.com/arloliu/s2replay/vartype"
	"github.com/cespare/xxhash/v2"
)

// SpecialKind tags the four array/pointer shapes a flattened-serializer
// field can take beyond a plain terminal decoder (§3 "special descriptor").
type SpecialKind uint8

const (
	SpecialNone SpecialKind = iota
	SpecialFixedArray
	SpecialDynamicArray
	SpecialDynamicSerializerArray
	SpecialPointer
)

// Attrs is the subset of a raw flattened-serializer field descriptor the
// selector needs. FieldSerializerName is non-empty when the send table
// explicitly attached a child serializer to this field.
type Attrs struct {
	VarName             symbol.Symbol
	VarEncoder          string
	BitCount            int
	LowValue            float32
	HighValue           float32
	EncodeFlags         int32
	FieldSerializerName string
}

// Metadata is C4's output: a terminal Decoder, a Special kind that tells the
// flattened-serializer graph builder (C5) how to shape the field, or both.
// Fixed- and dynamic-array results carry their element decoder, pointer
// results carry a PointerDecoder, and dynamic-serializer-array results carry
// no decoder.
type Metadata struct {
	Special        SpecialKind
	Decoder        Decoder
	ArrayLength    int
	ChildSerializer string // serializer name to resolve, for SpecialDynamicSerializerArray
}

// Two historical fields carry a dynamic-serializer-array shape without a
// field_serializer_name the generic rule could discover; they are
// special-cased by var-name hash exactly as the reference implementation
// does.
var (
	speechBubblesHash              = symbol.Hash("m_SpeechBubbles")
	combatLogQueryProgressHash     = symbol.Hash("DOTA_CombatLogQueryProgress")
)

// selectorCache memoizes Select by the canonical type-expression string
// together with the field attributes the decoders depend on: the same field
// shape recurs across many classes in a send table, and across the many
// serializers a long replay builds. Keyed by an xxhash digest of those
// inputs rather than FxHash/Symbol, since this cache is an internal performance
// concern with no wire-format meaning (unlike Symbol, which must match the
// engine's own hash exactly).
type selectorCache struct {
	mu    sync.RWMutex
	byKey map[uint64]Metadata
}

var globalSelectorCache = &selectorCache{byKey: make(map[uint64]Metadata, 256)}

func cacheKey(exprStr string, a Attrs) uint64 {
	h := xxhash.New()
	_, _ = h.WriteString(exprStr)
	_, _ = h.WriteString(a.VarEncoder)
	_, _ = h.WriteString(a.FieldSerializerName)

	var scratch [4]byte
	put32 := func(v int32) {
		scratch[0] = byte(v)
		scratch[1] = byte(v >> 8)
		scratch[2] = byte(v >> 16)
		scratch[3] = byte(v >> 24)
		_, _ = h.Write(scratch[:])
	}
	put32(int32(a.BitCount))
	put32(int32(a.EncodeFlags))
	put32(int32(math.Float32bits(a.LowValue)))
	put32(int32(math.Float32bits(a.HighValue)))
	put32(int32(uint32(a.VarName.Hash)))
	put32(int32(uint32(a.VarName.Hash >> 32)))

	return h.Sum64()
}

// Select is the pure function (type_expr, field_attrs) -> FieldMetadata
// described in §4.4. Only the Special/ArrayLength/ChildSerializer fields of
// a cached result may legitimately repeat across different fields sharing
// the same shape; the terminal Decoder value types are themselves
// stateless so sharing them across fields is safe.
func Select(expr vartype.Expr, a Attrs) (Metadata, error) {
	// The two hard-coded dynamic-serializer-array exceptions take priority
	// over the generic dispatch below; they never hit the cache since they
	// are checked by var-name, not by type-expression shape.
	if a.VarName.Hash == speechBubblesHash || a.VarName.Hash == combatLogQueryProgressHash {
		return Metadata{Special: SpecialDynamicSerializerArray, ChildSerializer: exprInnerName(expr)}, nil
	}

	key := cacheKey(expr.String(), a)

	globalSelectorCache.mu.RLock()
	if m, ok := globalSelectorCache.byKey[key]; ok {
		globalSelectorCache.mu.RUnlock()

		return m, nil
	}
	globalSelectorCache.mu.RUnlock()

	m, err := selectUncached(expr, a)
	if err != nil {
		return Metadata{}, err
	}

	globalSelectorCache.mu.Lock()
	globalSelectorCache.byKey[key] = m
	globalSelectorCache.mu.Unlock()

	return m, nil
}

func exprInnerName(expr vartype.Expr) string {
	if expr.Kind == vartype.KindTemplate && expr.Elem != nil {
		return expr.Elem.Name
	}

	return expr.Name
}

func selectUncached(expr vartype.Expr, a Attrs) (Metadata, error) {
	switch expr.Kind {
	case vartype.KindTemplate:
		return selectTemplate(expr, a)
	case vartype.KindArray:
		return selectArray(expr, a)
	case vartype.KindPointer:
		return Metadata{Special: SpecialPointer, Decoder: PointerDecoder{}}, nil
	default:
		return selectIdent(expr.Name, a)
	}
}

// pointerIdentifiers is the curated set of engine "pointer" identifiers
// networked as a bare presence flag rather than a real value.
var pointerIdentifiers = map[string]bool{
	"CBodyComponent":       true,
	"CPhysicsComponent":    true,
	"CRenderComponent":     true,
	"CPlayerLocalData":     true,
	"CDOTAGamerules":       true,
}

// int32Identifiers lists the plain integer identifiers a send table uses
// that decode as 32-bit varints.
var int32Identifiers = map[string]bool{
	"int8": true, "int16": true, "int32": true,
	"uint8": true, "uint16": true, "uint32": true,
	"CEntityHandle": true, "CHandle": true, "CStrongHandle": true,
	"color32": true,
}

var int64Identifiers = map[string]bool{
	"int64": true, "uint64": true,
}

func selectIdent(name string, a Attrs) (Metadata, error) {
	switch {
	case name == "bool":
		return Metadata{Decoder: BoolDecoder{}}, nil

	case int32Identifiers[name]:
		if isUnsigned(name) {
			return Metadata{Decoder: U32Decoder{}}, nil
		}

		return Metadata{Decoder: I32Decoder{}}, nil

	case int64Identifiers[name]:
		if a.VarEncoder == "fixed64" {
			return Metadata{Decoder: Fixed64Decoder{}}, nil
		}

		if name == "uint64" {
			return Metadata{Decoder: U64Decoder{}}, nil
		}

		return Metadata{Decoder: I64Decoder{}}, nil

	case name == "float32" || name == "GameTime_t" || name == "CNetworkedQuantizedFloat":
		d, err := newFloatDecoder(a)
		if err != nil {
			return Metadata{}, err
		}

		return Metadata{Decoder: d}, nil

	case name == "QAngle":
		return Metadata{Decoder: newQAngleDecoder(a)}, nil

	case name == "Vector":
		d, err := newVectorDecoder(3, a)
		if err != nil {
			return Metadata{}, err
		}

		return Metadata{Decoder: d}, nil

	case name == "Vector2D":
		d, err := newVectorDecoder(2, a)
		if err != nil {
			return Metadata{}, err
		}

		return Metadata{Decoder: d}, nil

	case name == "Vector4D":
		d, err := newVectorDecoder(4, a)
		if err != nil {
			return Metadata{}, err
		}

		return Metadata{Decoder: d}, nil

	case name == "CUtlString" || name == "CUtlSymbolLarge":
		return Metadata{Decoder: StringDecoder{}}, nil

	case pointerIdentifiers[name]:
		return Metadata{Special: SpecialPointer, Decoder: PointerDecoder{}}, nil

	default:
		// Unknown identifiers default to a permissive 32-bit unsigned
		// varint decoder, since Source 2 schemas add enums frequently (§4.4).
		return Metadata{Decoder: U32Decoder{}}, nil
	}
}

func isUnsigned(name string) bool {
	switch name {
	case "uint8", "uint16", "uint32", "uint64", "CEntityHandle", "CHandle", "CStrongHandle", "color32":
		return true
	default:
		return false
	}
}

func newFloatDecoder(a Attrs) (Decoder, error) {
	if a.VarName.Hash == simTimeHash || a.VarName.Hash == animTimeHash {
		return simulationTimeDecoder{}, nil
	}

	switch a.VarEncoder {
	case "coord":
		return coordDecoder{}, nil
	case "normal":
		return normalDecoder{}, nil
	}

	if a.BitCount == 0 || a.BitCount == 32 {
		return noScaleFloatDecoder{}, nil
	}

	q, err := quantize.New(a.BitCount, quantize.EncodeFlags(a.EncodeFlags), a.LowValue, a.HighValue)
	if err != nil {
		return nil, err
	}

	return QuantizedFloatDecoder{Inner: q}, nil
}

var (
	simTimeHash  = symbol.Hash("m_flSimulationTime")
	animTimeHash = symbol.Hash("m_flAnimTime")
)

func newVectorDecoder(n int, a Attrs) (Decoder, error) {
	axis, err := newFloatDecoder(a)
	if err != nil {
		return nil, err
	}

	switch n {
	case 2:
		return Vector2Decoder{X: axis, Y: axis}, nil
	case 4:
		return Vector4Decoder{X: axis, Y: axis, Z: axis, W: axis}, nil
	default:
		if a.VarEncoder == "normal" {
			return Vector3Decoder{Normal: true}, nil
		}

		return Vector3Decoder{X: axis, Y: axis, Z: axis}, nil
	}
}

func newQAngleDecoder(a Attrs) Decoder {
	switch a.VarEncoder {
	case "qangle_pitch_yaw":
		bc := a.BitCount
		if bc == 0 {
			bc = 32
		}

		return QAnglePitchYawDecoder{BitCount: bc}
	case "qangle_precise":
		return QAnglePreciseDecoder{}
	case "qangle", "QAngle":
		if a.BitCount == 0 {
			return QAngleCoordDecoder{}
		}

		return QAngleBitAnglesDecoder{BitCount: a.BitCount}
	default:
		if a.BitCount == 0 {
			return QAngleCoordDecoder{}
		}

		return QAngleBitAnglesDecoder{BitCount: a.BitCount}
	}
}

func selectTemplate(expr vartype.Expr, a Attrs) (Metadata, error) {
	switch expr.Name {
	case "CNetworkUtlVectorBase", "CUtlVector", "CUtlVectorEmbeddedNetworkVar":
		if a.FieldSerializerName != "" {
			return Metadata{Special: SpecialDynamicSerializerArray, ChildSerializer: a.FieldSerializerName}, nil
		}

		m, err := selectUncached(*expr.Elem, a)
		if err != nil {
			return Metadata{}, err
		}

		return Metadata{Special: SpecialDynamicArray, Decoder: m.Decoder}, nil

	default:
		// Unrecognised template shapes degenerate to their inner type's
		// decoder, matching the "permissive" stance §4.4 takes for unknown
		// identifiers.
		return selectUncached(*expr.Elem, a)
	}
}

func selectArray(expr vartype.Expr, a Attrs) (Metadata, error) {
	if expr.Name == "char" {
		return Metadata{Decoder: StringDecoder{}}, nil
	}

	n, err := vartype.ResolveArrayLen(expr)
	if err != nil {
		return Metadata{}, err
	}

	m, err := selectIdent(expr.Name, a)
	if err != nil {
		return Metadata{}, err
	}

	return Metadata{Special: SpecialFixedArray, Decoder: m.Decoder, ArrayLength: n}, nil
}
