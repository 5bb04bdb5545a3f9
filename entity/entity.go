// Package entity implements the entity container (C9): a sparse map from
// entity index to entity record, per-class baseline templates, and the
// create/update/delete/leave lifecycle driven by the field-path automaton
// and field decoders.
package entity

import (
	"fmt"

	"github.com/arloliu/s2replay/baseline"
	"github.com/arloliu/s2replay/bitread"
	"github.com/arloliu/s2replay/errs"
	"github.com/arloliu/s2replay/fields"
	"github.com/arloliu/s2replay/fieldpath"
	"github.com/arloliu/s2replay/internal/symbol"
	"github.com/arloliu/s2replay/serializer"
)

// Entity is one live networked object (§3 "Entity").
type Entity struct {
	Index      int32
	Serial     uint32
	Serializer *serializer.Serializer
	Fields     map[uint64]fields.Value
}

// clone returns a deep-enough copy for seeding a new entity from a class
// baseline template: the field map is copied (values are plain structs),
// the serializer reference is shared.
func (e *Entity) clone(newIndex int32) *Entity {
	out := &Entity{
		Index:      newIndex,
		Serial:     e.Serial,
		Serializer: e.Serializer,
		Fields:     make(map[uint64]fields.Value, len(e.Fields)),
	}

	for k, v := range e.Fields {
		out.Fields[k] = v
	}

	return out
}

// parse decodes one packet-entities payload against e: reads field paths
// via C6, walks e's serializer tree per path to derive a field, computes
// its fingerprint, and invokes its decoder (§4.9 "Entity.parse").
func (e *Entity) parse(r *bitread.Reader, ctx *fields.DecodeContext) error {
	var walkErr error

	fieldpath.ReadPaths(r, func(p fieldpath.Path) {
		if walkErr != nil {
			return
		}

		components := p.Components()

		var field *serializer.Field

		key := uint64(0)

		for i, slot := range components {
			if i == 0 {
				f, ok := e.Serializer.GetChild(int(slot))
				if !ok {
					walkErr = fmt.Errorf("%w: root field index %d", errs.ErrFieldNotFound, slot)

					return
				}

				field = f
				key = symbol.FoldMix(key, field.VarName.Hash)

				continue
			}

			dynamicLike := field.Metadata.Special == fields.SpecialDynamicArray ||
				field.Metadata.Special == fields.SpecialDynamicSerializerArray

			childIndex := int(slot)
			if dynamicLike {
				childIndex = 0
			}

			child, ok := field.GetChild(childIndex)
			if !ok {
				walkErr = fmt.Errorf("%w: field index %d", errs.ErrFieldNotFound, childIndex)

				return
			}

			if dynamicLike {
				key = symbol.FoldMix(key, symbol.FoldMix(0, uint64(slot)))
			} else {
				key = symbol.FoldMix(key, child.VarName.Hash)
			}

			field = child
		}

		if field == nil || field.Metadata.Decoder == nil {
			walkErr = errs.ErrFieldNotFound

			return
		}

		e.Fields[key] = field.Metadata.Decoder.Decode(r, ctx)
	})

	if walkErr != nil {
		return walkErr
	}

	return r.IsOverflowed()
}

// Container holds every live entity plus per-class baseline templates. It
// is deliberately ignorant of the class table, serializer graph, and
// baseline index: those are only known once DemClassInfo/DemSendTables have
// been seen, so Create takes them as parameters rather than storing them
// (mirroring the Rust reference's handle_create signature).
type Container struct {
	live      map[int32]*Entity
	baselines map[int32]*Entity
}

// NewContainer returns an empty entity container.
func NewContainer() *Container {
	return &Container{
		live:      make(map[int32]*Entity),
		baselines: make(map[int32]*Entity),
	}
}

// Get returns a live entity by index.
func (c *Container) Get(index int32) (*Entity, bool) {
	e, ok := c.live[index]

	return e, ok
}

// Clear drops all live entities and cached baseline templates, used when
// the orchestrator resets state at the start of a run-to-tick scan.
func (c *Container) Clear() {
	c.live = make(map[int32]*Entity)
	c.baselines = make(map[int32]*Entity)
}

// Create decodes the create header (class-id, serial, a discarded
// engine-internal varint) followed by the create payload, and inserts the
// resulting entity into the live map (§4.9 "Create").
func (c *Container) Create(
	index int32,
	r *bitread.Reader,
	ctx *fields.DecodeContext,
	classes *ClassTable,
	serializers *serializer.Container,
	baselineIdx *baseline.Index,
) (*Entity, error) {
	classID := int32(r.ReadBits(classes.BitWidth()))
	serial := r.ReadBits(17)
	_ = r.ReadUvarint32() // engine-internal field, unused by any consumer

	class, ok := classes.Get(classID)
	if !ok {
		return nil, fmt.Errorf("%w: class id %d", errs.ErrClassNotFound, classID)
	}

	s, ok := serializers.ByNameHash(class.NetworkNameHash)
	if !ok {
		return nil, fmt.Errorf("%w: class %q", errs.ErrUnresolvedSerializer, class.NetworkName)
	}

	var e *Entity

	if tmpl, ok := c.baselines[classID]; ok {
		e = tmpl.clone(index)
	} else {
		e = &Entity{
			Index:      index,
			Serializer: s,
			Fields:     make(map[uint64]fields.Value, len(s.Fields)),
		}

		if buf, ok := baselineIdx.Get(classID); ok {
			if err := e.parse(bitread.New(buf), ctx); err != nil {
				return nil, err
			}
		}

		c.baselines[classID] = e.clone(-1)
	}

	e.Index = index
	e.Serial = serial

	if err := e.parse(r, ctx); err != nil {
		return nil, err
	}

	c.live[index] = e

	return e, nil
}

// Update decodes an update payload against an existing entity.
func (c *Container) Update(index int32, r *bitread.Reader, ctx *fields.DecodeContext) (*Entity, error) {
	e, ok := c.live[index]
	if !ok {
		return nil, fmt.Errorf("%w: index %d", errs.ErrEntityNotFound, index)
	}

	if err := e.parse(r, ctx); err != nil {
		return nil, err
	}

	return e, nil
}

// Delete removes an entity from the live map.
func (c *Container) Delete(index int32) error {
	if _, ok := c.live[index]; !ok {
		return fmt.Errorf("%w: index %d", errs.ErrEntityNotFound, index)
	}

	delete(c.live, index)

	return nil
}

// Leave is a no-op against container state; the delta header still reaches
// the visitor (§4.9 "Leave").
func (c *Container) Leave(index int32) (*Entity, bool) {
	return c.Get(index)
}
