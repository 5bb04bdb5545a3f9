package stringtable

import (
	"testing"

	"github.com/arloliu/s2replay/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateRejectsDuplicateName(t *testing.T) {
	c := NewContainer()

	_, err := c.Create(protocol.CreateStringTable{Name: "instancebaseline"})
	require.NoError(t, err)

	_, err = c.Create(protocol.CreateStringTable{Name: "instancebaseline"})
	assert.Error(t, err)
}

func TestFullUpdateNeverShrinksAndOverwritesByPosition(t *testing.T) {
	c := NewContainer()

	_, err := c.Create(protocol.CreateStringTable{Name: "t"})
	require.NoError(t, err)

	c.FullUpdate(protocol.StringTables{
		Tables: []protocol.StringTableSnapshot{
			{
				TableName: "t",
				Items: []protocol.StringTableItem{
					{Str: "3", Data: []byte{0xAA}},
					{Str: "7", Data: []byte{0xBB}},
				},
			},
		},
	})

	tbl, ok := c.Table("t")
	require.True(t, ok)
	assert.Equal(t, 2, tbl.Len())

	it, ok := tbl.Item(0)
	require.True(t, ok)
	assert.Equal(t, "3", it.Key)
	assert.Equal(t, []byte{0xAA}, it.UserData)

	c.FullUpdate(protocol.StringTables{
		Tables: []protocol.StringTableSnapshot{
			{TableName: "t", Items: []protocol.StringTableItem{{Str: "9", Data: []byte{0xCC}}}},
		},
	})

	assert.Equal(t, 2, tbl.Len())

	it, ok = tbl.Item(0)
	require.True(t, ok)
	assert.Equal(t, "9", it.Key)

	it, ok = tbl.Item(1)
	require.True(t, ok)
	assert.Equal(t, "7", it.Key)
}

func TestHistoryKeyAtOutOfRangeErrors(t *testing.T) {
	tbl := newTable("t", 0, false, 0, false)

	_, err := tbl.historyKeyAt(0, 0)
	assert.Error(t, err)
}

func TestHistoryKeyAtResolvesForwardFromCallStart(t *testing.T) {
	tbl := newTable("t", 0, false, 0, false)

	tbl.pushHistory("alpha")
	tbl.pushHistory("bravo")

	callBase := tbl.histPos // three keys will be pushed starting here
	tbl.pushHistory("charlie")
	tbl.pushHistory("delta")
	tbl.pushHistory("echo")

	// wireVal 0 must resolve to the oldest key pushed during this call
	// ("charlie"), not the most recently pushed key ("echo").
	got, err := tbl.historyKeyAt(callBase, 0)
	require.NoError(t, err)
	assert.Equal(t, "charlie", got)

	got, err = tbl.historyKeyAt(callBase, 2)
	require.NoError(t, err)
	assert.Equal(t, "echo", got)
}

func TestByIDResolvesCreationOrder(t *testing.T) {
	c := NewContainer()

	_, err := c.Create(protocol.CreateStringTable{Name: "first"})
	require.NoError(t, err)
	_, err = c.Create(protocol.CreateStringTable{Name: "second"})
	require.NoError(t, err)

	tbl, ok := c.ByID(1)
	require.True(t, ok)
	assert.Equal(t, "second", tbl.Name)

	_, ok = c.ByID(2)
	assert.False(t, ok)
}

func TestUpdateByIDUnknownIDErrors(t *testing.T) {
	c := NewContainer()

	_, err := c.UpdateByID(protocol.UpdateStringTable{TableID: 0})
	assert.Error(t, err)
}
