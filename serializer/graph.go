// Package serializer builds the flattened-serializer graph (C5): the DAG of
// field descriptors and serializers that a CDemoSendTables command embeds,
// later addressed by entity classes via name hash.
package serializer

import (
	"fmt"

	"github.com/arloliu/s2replay/errs"
	"github.com/arloliu/s2replay/fields"
	"github.com/arloliu/s2replay/internal/symbol"
	"github.com/arloliu/s2replay/protocol"
	"github.com/arloliu/s2replay/vartype"
)

// Field is an immutable, shareable field descriptor. A raw field index in
// the wire message may be referenced by more than one serializer, in which
// case every Serializer.Fields entry pointing at it shares this same value.
type Field struct {
	VarType             symbol.Symbol
	VarName             symbol.Symbol
	BitCount            int32
	LowValue            float32
	HighValue           float32
	EncodeFlags         int32
	FieldSerializerName symbol.Symbol
	VarEncoder          string

	// FieldSerializer is the child serializer this field descends into, for
	// any of: an explicit field_serializer_name reference, or a synthetic
	// wrapper serializer built for a fixed/dynamic/dynamic-serializer array.
	FieldSerializer *Serializer
	Metadata        fields.Metadata
}

// GetChild returns the field at index within this field's child serializer,
// if one exists.
func (f *Field) GetChild(index int) (*Field, bool) {
	if f.FieldSerializer == nil {
		return nil, false
	}

	return f.FieldSerializer.GetChild(index)
}

// Serializer is a named, ordered list of field references (§3 "Flattened
// serializer"). Shared and addressed by name hash.
type Serializer struct {
	Name   symbol.Symbol
	Fields []*Field
}

// GetChild returns the field at index, if in range.
func (s *Serializer) GetChild(index int) (*Field, bool) {
	if index < 0 || index >= len(s.Fields) {
		return nil, false
	}

	return s.Fields[index], true
}

// Container is the full graph produced by one Parse call, addressed by
// serializer name hash (§4.5 post-conditions: "by_name_hash must succeed for
// every class that subsequently appears in packet entities").
type Container struct {
	byNameHash map[uint64]*Serializer
}

// ByNameHash looks up a serializer by its pre-computed name hash.
func (c *Container) ByNameHash(hash uint64) (*Serializer, bool) {
	s, ok := c.byNameHash[hash]

	return s, ok
}

// ByName looks up a serializer by its plain-text name, hashing it first.
func (c *Container) ByName(name string) (*Serializer, bool) {
	return c.ByNameHash(symbol.Hash(name))
}

// Parse builds the flattened-serializer graph from a decoded
// CSVCMsg_FlattenedSerializer message. Construction is a single pass over
// serializers in declaration order: the producer guarantees that a child
// serializer referenced by name is always built before its parent (leaves
// before parents), so every field_serializer_name lookup below hits an
// already-populated serializerMap entry.
func Parse(msg protocol.FlattenedSerializerMsg) (*Container, error) {
	fieldMap := make(map[int32]*Field, len(msg.Fields))
	serializerMap := make(map[uint64]*Serializer, len(msg.Serializers))

	symAt := func(i int32) (string, error) {
		if i < 0 || int(i) >= len(msg.Symbols) {
			return "", fmt.Errorf("%w: symbol index %d", errs.ErrSymbolNotFound, i)
		}

		return msg.Symbols[i], nil
	}

	for _, rs := range msg.Serializers {
		name, err := symAt(rs.SerializerNameSym)
		if err != nil {
			return nil, err
		}

		s := &Serializer{Name: symbol.New(name), Fields: make([]*Field, 0, len(rs.FieldsIndex))}

		for _, fi := range rs.FieldsIndex {
			if f, ok := fieldMap[fi]; ok {
				s.Fields = append(s.Fields, f)

				continue
			}

			if fi < 0 || int(fi) >= len(msg.Fields) {
				return nil, fmt.Errorf("%w: field index %d", errs.ErrFieldNotFound, fi)
			}

			f, err := buildField(msg.Fields[fi], serializerMap, symAt)
			if err != nil {
				return nil, err
			}

			fieldMap[fi] = f
			s.Fields = append(s.Fields, f)
		}

		serializerMap[s.Name.Hash] = s
	}

	return &Container{byNameHash: serializerMap}, nil
}

func buildField(
	raw protocol.RawField,
	serializerMap map[uint64]*Serializer,
	symAt func(int32) (string, error),
) (*Field, error) {
	varTypeStr, err := symAt(raw.VarTypeSym)
	if err != nil {
		return nil, err
	}

	varNameStr, err := symAt(raw.VarNameSym)
	if err != nil {
		return nil, err
	}

	expr, err := vartype.Parse(varTypeStr)
	if err != nil {
		return nil, fmt.Errorf("%w: field %q: %w", errs.ErrMalformedTypeExpr, varNameStr, err)
	}

	f := &Field{
		VarType: symbol.New(varTypeStr),
		VarName: symbol.New(varNameStr),
	}

	attrs := fields.Attrs{VarName: f.VarName}

	if raw.HasBitCount {
		f.BitCount = raw.BitCount
		attrs.BitCount = int(raw.BitCount)
	}

	if raw.HasLowValue {
		f.LowValue = raw.LowValue
		attrs.LowValue = raw.LowValue
	}

	if raw.HasHighValue {
		f.HighValue = raw.HighValue
		attrs.HighValue = raw.HighValue
	}

	if raw.HasEncodeFlags {
		f.EncodeFlags = raw.EncodeFlags
		attrs.EncodeFlags = raw.EncodeFlags
	}

	var fieldSerializerName string

	if raw.HasFieldSerializerName {
		fieldSerializerName, err = symAt(raw.FieldSerializerNameSym)
		if err != nil {
			return nil, err
		}

		f.FieldSerializerName = symbol.New(fieldSerializerName)
		attrs.FieldSerializerName = fieldSerializerName
	}

	if raw.HasVarEncoder {
		varEncoder, err := symAt(raw.VarEncoderSym)
		if err != nil {
			return nil, err
		}

		f.VarEncoder = varEncoder
		attrs.VarEncoder = varEncoder
	}

	meta, err := fields.Select(expr, attrs)
	if err != nil {
		return nil, fmt.Errorf("field %q: %w", varNameStr, err)
	}

	f.Metadata = meta

	switch meta.Special {
	case fields.SpecialFixedArray:
		elem := *f

		if fieldSerializerName != "" {
			elem.FieldSerializer = serializerMap[symbol.Hash(fieldSerializerName)]
		}

		wrapped := make([]*Field, meta.ArrayLength)
		for i := range wrapped {
			wrapped[i] = &elem
		}

		f.FieldSerializer = &Serializer{Fields: wrapped}

	case fields.SpecialDynamicArray:
		elem := &Field{Metadata: fields.Metadata{Decoder: meta.Decoder}}
		f.FieldSerializer = &Serializer{Fields: []*Field{elem}}

	case fields.SpecialDynamicSerializerArray:
		child := serializerMap[symbol.Hash(meta.ChildSerializer)]
		elem := &Field{FieldSerializer: child}
		f.FieldSerializer = &Serializer{Fields: []*Field{elem}}

	default:
		if fieldSerializerName != "" {
			f.FieldSerializer = serializerMap[symbol.Hash(fieldSerializerName)]
		}
	}

	return f, nil
}
