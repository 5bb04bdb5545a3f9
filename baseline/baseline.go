// Package baseline implements the instance-baseline index (C8): a per-class
// raw byte buffer carved from the "instancebaseline" string table, used to
// seed newly created entities.
package baseline

import (
	"strconv"

	"github.com/arloliu/s2replay/stringtable"
)

// TableName is the well-known string table the baseline index is derived
// from (§4.8).
const TableName = "instancebaseline"

// Index maps class-id to its baseline byte buffer.
type Index struct {
	byClassID map[int32][]byte
}

// NewIndex returns an empty baseline index.
func NewIndex() *Index {
	return &Index{byClassID: make(map[int32][]byte)}
}

// Get returns the baseline buffer for a class, if one exists.
func (idx *Index) Get(classID int32) ([]byte, bool) {
	b, ok := idx.byClassID[classID]

	return b, ok
}

// Rebuild walks the instancebaseline table's items, parsing each key as a
// decimal class-id and associating it with the item's user-data buffer.
// Safe to call repeatedly: the orchestrator calls this from both the
// DemClassInfo handler and the svc_CreateStringTable/svc_UpdateStringTable
// handlers, in whichever order a given replay delivers them (§9 open
// question on class-info/string-table ordering).
func (idx *Index) Rebuild(tables *stringtable.Container) {
	t, ok := tables.Table(TableName)
	if !ok {
		return
	}

	fresh := make(map[int32][]byte, t.Len())

	t.Items(func(_ int32, it *stringtable.Item) {
		if !it.HasKey {
			return
		}

		classID, err := strconv.ParseInt(it.Key, 10, 32)
		if err != nil {
			return
		}

		fresh[int32(classID)] = it.UserData
	})

	idx.byClassID = fresh
}
