package entity

import (
	"math/bits"

	"github.com/arloliu/s2replay/internal/symbol"
	"github.com/arloliu/s2replay/protocol"
)

// Class is one row of the dense class-id table (§3 "Entity class table").
type Class struct {
	ClassID         int32
	NetworkName     string
	NetworkNameHash uint64
}

// ClassTable is the dense class-id -> Class mapping built once from a
// DemClassInfo command, plus the derived bit width needed to read a
// class-id off the wire.
type ClassTable struct {
	byID     map[int32]Class
	bitWidth int
}

// NewClassTable builds a class table from a decoded CDemoClassInfo message.
func NewClassTable(ci protocol.ClassInfo) *ClassTable {
	t := &ClassTable{byID: make(map[int32]Class, len(ci.Classes))}

	for _, c := range ci.Classes {
		t.byID[c.ClassID] = Class{
			ClassID:         c.ClassID,
			NetworkName:     c.NetworkName,
			NetworkNameHash: symbol.Hash(c.NetworkName),
		}
	}

	t.bitWidth = bitWidthFor(len(ci.Classes))

	return t
}

// bitWidthFor returns ceil(log2(n)), the number of bits needed to encode a
// class-id in a table of n classes. bits.Len(n-1) already gives the right
// answer at n=1 (0 bits needed for a single class), matching the reference;
// the n<=0 guard only exists to avoid underflowing the uint conversion.
func bitWidthFor(n int) int {
	if n <= 0 {
		return 0
	}

	return bits.Len(uint(n - 1))
}

// BitWidth reports how many bits a class-id occupies on the wire.
func (t *ClassTable) BitWidth() int {
	return t.bitWidth
}

// Get looks up a class by id.
func (t *ClassTable) Get(classID int32) (Class, bool) {
	c, ok := t.byID[classID]

	return c, ok
}
