// Package stringtable implements the string-table container (C7):
// create/parse-update/full-update of named (index, key, user-data) tables
// with key-history prefix compression and optional Snappy-framed user data.
package stringtable

import (
	"fmt"

	"github.com/arloliu/s2replay/bitread"
	"github.com/arloliu/s2replay/errs"
	"github.com/arloliu/s2replay/protocol"
	"github.com/klauspost/compress/snappy"
)

// keyHistorySize is the rolling window of recently seen keys used for
// prefix-reference compression (§4.7).
const keyHistorySize = 32

// Item is one (key, user-data) entry of a table.
type Item struct {
	Key      string
	HasKey   bool
	UserData []byte
}

// Table is a single named string table.
type Table struct {
	Name                 string
	Flags                int32
	UserDataFixedSize    bool
	UserDataSizeBits     int32
	UsingVarintBitCounts bool

	items   map[int32]*Item
	history [keyHistorySize]string
	histLen int
	histPos int
}

func newTable(name string, flags int32, fixedSize bool, userDataBits int32, varintBitCounts bool) *Table {
	return &Table{
		Name:                 name,
		Flags:                flags,
		UserDataFixedSize:    fixedSize,
		UserDataSizeBits:     userDataBits,
		UsingVarintBitCounts: varintBitCounts,
		items:                make(map[int32]*Item),
	}
}

// Item returns the item at index, if any.
func (t *Table) Item(index int32) (*Item, bool) {
	it, ok := t.items[index]

	return it, ok
}

// Len reports how many sparse entries the table currently holds.
func (t *Table) Len() int {
	return len(t.items)
}

// Items returns every (index, item) pair. Order is unspecified.
func (t *Table) Items(fn func(index int32, it *Item)) {
	for idx, it := range t.items {
		fn(idx, it)
	}
}

func (t *Table) pushHistory(key string) {
	t.history[t.histPos] = key
	t.histPos = (t.histPos + 1) % keyHistorySize

	if t.histLen < keyHistorySize {
		t.histLen++
	}
}

// historyKeyAt resolves a 5-bit wire value to a previously seen key. callBase
// is the write cursor as it stood at the start of the current ParseUpdate
// call (before that call pushed anything), so a wire value of 0 addresses
// the oldest entry written during this call, counting forward — not the
// most recently pushed key overall.
func (t *Table) historyKeyAt(callBase, wireVal int) (string, error) {
	idx := (callBase + wireVal) % keyHistorySize

	if t.histLen < keyHistorySize && idx >= t.histLen {
		return "", fmt.Errorf("%w: position %d", errs.ErrKeyHistoryRange, idx)
	}

	return t.history[idx], nil
}

// Container owns every named table in a replay. Tables are additionally
// addressable by a creation-order id, the same id svc_UpdateStringTable
// references.
type Container struct {
	byName map[string]*Table
	byID   []*Table
}

// NewContainer returns an empty table container.
func NewContainer() *Container {
	return &Container{byName: make(map[string]*Table)}
}

// Table returns the named table, if it exists.
func (c *Container) Table(name string) (*Table, bool) {
	t, ok := c.byName[name]

	return t, ok
}

// ByID returns the table at the given creation-order index, if any.
func (c *Container) ByID(id int32) (*Table, bool) {
	if id < 0 || int(id) >= len(c.byID) {
		return nil, false
	}

	return c.byID[id], true
}

// Create registers a new table per a CSVCMsg_CreateStringTable command,
// rejecting duplicate names (§4.7 "Create"), then immediately applies the
// message's own embedded entries via ParseUpdate.
func (c *Container) Create(msg protocol.CreateStringTable) (*Table, error) {
	if _, exists := c.byName[msg.Name]; exists {
		return nil, fmt.Errorf("%w: %q", errs.ErrDuplicateTableName, msg.Name)
	}

	t := newTable(msg.Name, msg.Flags, msg.UserDataFixedSize, msg.UserDataSizeBits, msg.UsingVarintBitCounts)
	c.byName[msg.Name] = t
	c.byID = append(c.byID, t)

	if msg.NumEntries > 0 {
		if err := t.ParseUpdate(bitread.New(msg.StringData), int(msg.NumEntries)); err != nil {
			return nil, err
		}
	}

	return t, nil
}

// UpdateByName applies a CSVCMsg_UpdateStringTable command against the
// table it names.
func (c *Container) UpdateByName(name string, msg protocol.UpdateStringTable) error {
	t, ok := c.byName[name]
	if !ok {
		return fmt.Errorf("%w: %q", errs.ErrTableNotFound, name)
	}

	return t.ParseUpdate(bitread.New(msg.StringData), int(msg.NumChangedEntries))
}

// UpdateByID applies a CSVCMsg_UpdateStringTable command against the table
// its TableID references (§4.11 "svc_UpdateStringTable").
func (c *Container) UpdateByID(msg protocol.UpdateStringTable) (*Table, error) {
	t, ok := c.ByID(msg.TableID)
	if !ok {
		return nil, fmt.Errorf("%w: id %d", errs.ErrTableNotFound, msg.TableID)
	}

	return t, t.ParseUpdate(bitread.New(msg.StringData), int(msg.NumChangedEntries))
}

// ParseUpdate decodes n entries from r into the table (§4.7 "Parse-update").
// The history write cursor's reference point is fixed for the duration of
// this call: wire-transmitted history references are resolved relative to
// where the cursor stood when the call began, not relative to entries this
// same call has already pushed.
func (t *Table) ParseUpdate(r *bitread.Reader, n int) error {
	index := int32(-1)
	callBase := t.histPos

	for i := 0; i < n; i++ {
		if r.ReadBool() {
			index++
		} else {
			index = int32(r.ReadUvarint32()) + 1
		}

		var key string
		hasKey := r.ReadBool()

		if hasKey {
			if r.ReadBool() {
				wireVal := int(r.ReadBits(5))
				prefixLen := int(r.ReadBits(5))

				prefix, err := t.historyKeyAt(callBase, wireVal)
				if err != nil {
					return err
				}

				if prefixLen > len(prefix) {
					prefixLen = len(prefix)
				}

				key = prefix[:prefixLen] + r.ReadString(1024)
			} else {
				key = r.ReadString(1024)
			}

			t.pushHistory(key)
		}

		var userData []byte
		hasData := r.ReadBool()

		if hasData {
			var err error

			userData, err = t.readUserData(r)
			if err != nil {
				return err
			}
		}

		it, exists := t.items[index]
		if !exists {
			it = &Item{}
			t.items[index] = it
		}

		if hasKey {
			it.Key = key
			it.HasKey = true
		}

		if hasData {
			it.UserData = userData
		}
	}

	return r.IsOverflowed()
}

func (t *Table) readUserData(r *bitread.Reader) ([]byte, error) {
	if t.UserDataFixedSize {
		buf := make([]byte, (t.UserDataSizeBits+7)/8)
		bitsLeft := t.UserDataSizeBits

		for i := range buf {
			n := bitsLeft
			if n > 8 {
				n = 8
			}

			buf[i] = byte(r.ReadBits(int(n)))
			bitsLeft -= n
		}

		return buf, nil
	}

	compressed := t.Flags&0x1 != 0 && r.ReadBool()

	var length uint32
	if t.UsingVarintBitCounts {
		length = r.ReadUBitVar()
	} else {
		length = r.ReadBits(17)
	}

	buf := make([]byte, length)
	r.ReadBytes(buf)

	if !compressed {
		return buf, nil
	}

	n, err := snappy.DecodedLen(buf)
	if err != nil {
		return nil, fmt.Errorf("%w: snappy header: %w", errs.ErrWireFormat, err)
	}

	out := make([]byte, n)

	out, err = snappy.Decode(out, buf)
	if err != nil {
		return nil, fmt.Errorf("%w: snappy decode: %w", errs.ErrWireFormat, err)
	}

	return out, nil
}

// FullUpdate replaces every table's items pairwise by position from a
// CDemoStringTables snapshot (§4.7 "Full-update"); it never shrinks a
// table below its previous length, matching the reference implementation.
func (c *Container) FullUpdate(msg protocol.StringTables) {
	for _, snap := range msg.Tables {
		t, ok := c.byName[snap.TableName]
		if !ok {
			t = newTable(snap.TableName, snap.TableFlags, false, 0, false)
			c.byName[snap.TableName] = t
		}

		for i, item := range snap.Items {
			idx := int32(i)

			it, exists := t.items[idx]
			if !exists {
				it = &Item{}
				t.items[idx] = it
			}

			it.Key = item.Str
			it.HasKey = true
			it.UserData = item.Data
		}
	}
}
