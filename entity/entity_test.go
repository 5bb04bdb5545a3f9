package entity

import (
	"testing"

	"github.com/arloliu/s2replay/baseline"
	"github.com/arloliu/s2replay/bitread"
	"github.com/arloliu/s2replay/errs"
	"github.com/arloliu/s2replay/fields"
	"github.com/arloliu/s2replay/internal/symbol"
	"github.com/arloliu/s2replay/protocol"
	"github.com/arloliu/s2replay/serializer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBitWidthForBoundaries(t *testing.T) {
	assert.Equal(t, 0, bitWidthFor(0))
	assert.Equal(t, 0, bitWidthFor(1))
	assert.Equal(t, 1, bitWidthFor(2))
	assert.Equal(t, 2, bitWidthFor(3))
	assert.Equal(t, 2, bitWidthFor(4))
	assert.Equal(t, 3, bitWidthFor(5))
}

func TestContainerCreateUnknownClassErrors(t *testing.T) {
	classes := NewClassTable(protocol.ClassInfo{})
	serializers, err := serializer.Parse(protocol.FlattenedSerializerMsg{})
	require.NoError(t, err)

	c := NewContainer()

	r := bitread.New(make([]byte, 8))
	_, err = c.Create(1, r, &fields.DecodeContext{}, classes, serializers, baseline.NewIndex())
	assert.ErrorIs(t, err, errs.ErrClassNotFound)
}

func TestContainerUpdateMissingEntityErrors(t *testing.T) {
	c := NewContainer()

	_, err := c.Update(42, bitread.New(nil), &fields.DecodeContext{})
	assert.ErrorIs(t, err, errs.ErrEntityNotFound)
}

func TestContainerDeleteMissingEntityErrors(t *testing.T) {
	c := NewContainer()

	assert.ErrorIs(t, c.Delete(7), errs.ErrEntityNotFound)
}

func TestEntityCloneCopiesFieldsIndependently(t *testing.T) {
	orig := &Entity{
		Index:  3,
		Serial: 9,
		Fields: map[uint64]fields.Value{
			1: fields.I32Value(10),
		},
	}

	cloned := orig.clone(4)
	cloned.Fields[1] = fields.I32Value(99)

	assert.Equal(t, int32(4), cloned.Index)
	assert.Equal(t, uint32(9), cloned.Serial)
	assert.Equal(t, int64(10), orig.Fields[1].I64)
	assert.Equal(t, int64(99), cloned.Fields[1].I64)
}

func TestNewClassTableComputesNameHash(t *testing.T) {
	ct := NewClassTable(protocol.ClassInfo{
		Classes: []protocol.ClassInfoEntry{
			{ClassID: 5, NetworkName: "CBaseEntity"},
		},
	})

	cl, ok := ct.Get(5)
	require.True(t, ok)
	assert.Equal(t, symbol.Hash("CBaseEntity"), cl.NetworkNameHash)
	assert.Equal(t, 0, ct.BitWidth())
}
