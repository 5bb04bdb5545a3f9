// Package fieldpath implements the Huffman-coded field-path operation
// automaton (§4.6): a closed set of 40 ops, each popping/pushing/adjusting
// components of a small fixed-depth path, selected by walking a
// weight-built Huffman tree one bit at a time.
//
// Credit for the op catalogue and weights goes to the community of
// Source 2 demo parser authors who reverse engineered them originally;
// they are reproduced here unchanged since they are wire-format constants,
// not a design choice.
package fieldpath

import (
	"github.com/arloliu/s2replay/bitread"
)

// Path is a field path: a sequence of up to 7 component indices describing
// one step through a flattened-serializer graph down to a leaf field.
// data[0] starts at 255 so the first PlusOne/PushOne op lands on index 0,
// matching the engine's own path encoding.
type Path struct {
	data     [7]byte
	last     int
	finished bool
}

// NewPath returns a path in its initial state, one PlusOne away from index 0.
func NewPath() Path {
	return Path{data: [7]byte{255, 0, 0, 0, 0, 0, 0}}
}

func (p *Path) incAt(i int, v int32) {
	p.data[i] = byte(int32(p.data[i]) + v)
}

func (p *Path) incLast(v int32) {
	p.incAt(p.last, v)
}

func (p *Path) push(v int32) {
	p.last++
	p.data[p.last] = byte(v)
}

func (p *Path) pop(n int) {
	for i := 0; i < n; i++ {
		p.data[p.last] = 0
		p.last--
	}
}

// Get returns the component at index, and whether index is in range.
func (p *Path) Get(index int) (int, bool) {
	if index < 0 || index >= len(p.data) {
		return 0, false
	}

	return int(p.data[index]), true
}

// Last returns the index of the deepest populated component.
func (p *Path) Last() int {
	return p.last
}

// Components returns the populated prefix of the path, index 0 through Last inclusive.
func (p *Path) Components() []byte {
	return p.data[:p.last+1]
}

type op func(fp *Path, r *bitread.Reader)

func plusOne(fp *Path, _ *bitread.Reader)   { fp.incLast(1) }
func plusTwo(fp *Path, _ *bitread.Reader)   { fp.incLast(2) }
func plusThree(fp *Path, _ *bitread.Reader) { fp.incLast(3) }
func plusFour(fp *Path, _ *bitread.Reader)  { fp.incLast(4) }

func plusN(fp *Path, r *bitread.Reader) {
	fp.incLast(int32(r.ReadUBitVarFP()) + 5)
}

func pushOneLeftDeltaZeroRightZero(fp *Path, _ *bitread.Reader) {
	fp.push(0)
}

func pushOneLeftDeltaZeroRightNonZero(fp *Path, r *bitread.Reader) {
	fp.push(int32(r.ReadUBitVarFP()))
}

func pushOneLeftDeltaOneRightZero(fp *Path, _ *bitread.Reader) {
	fp.incLast(1)
	fp.push(0)
}

func pushOneLeftDeltaOneRightNonZero(fp *Path, r *bitread.Reader) {
	fp.incLast(1)
	fp.push(int32(r.ReadUBitVarFP()))
}

func pushOneLeftDeltaNRightZero(fp *Path, r *bitread.Reader) {
	fp.incLast(int32(r.ReadUBitVarFP()))
	fp.push(0)
}

func pushOneLeftDeltaNRightNonZero(fp *Path, r *bitread.Reader) {
	fp.incLast(int32(r.ReadUBitVarFP()) + 2)
	fp.push(int32(r.ReadUBitVarFP()) + 1)
}

func pushOneLeftDeltaNRightNonZeroPack6Bits(fp *Path, r *bitread.Reader) {
	fp.incLast(int32(r.ReadBits(3)) + 2)
	fp.push(int32(r.ReadBits(3)) + 1)
}

func pushOneLeftDeltaNRightNonZeroPack8Bits(fp *Path, r *bitread.Reader) {
	fp.incLast(int32(r.ReadBits(4)) + 2)
	fp.push(int32(r.ReadBits(4)) + 1)
}

func pushTwoLeftDeltaZero(fp *Path, r *bitread.Reader) {
	fp.push(int32(r.ReadUBitVarFP()))
	fp.push(int32(r.ReadUBitVarFP()))
}

func pushTwoLeftDeltaOne(fp *Path, r *bitread.Reader) {
	fp.incLast(1)
	fp.push(int32(r.ReadUBitVarFP()))
	fp.push(int32(r.ReadUBitVarFP()))
}

func pushTwoLeftDeltaN(fp *Path, r *bitread.Reader) {
	fp.incLast(int32(r.ReadUBitVar()) + 2)
	fp.push(int32(r.ReadUBitVarFP()))
	fp.push(int32(r.ReadUBitVarFP()))
}

func pushTwoPack5LeftDeltaZero(fp *Path, r *bitread.Reader) {
	fp.push(int32(r.ReadBits(5)))
	fp.push(int32(r.ReadBits(5)))
}

func pushTwoPack5LeftDeltaOne(fp *Path, r *bitread.Reader) {
	fp.incLast(1)
	fp.push(int32(r.ReadBits(5)))
	fp.push(int32(r.ReadBits(5)))
}

func pushTwoPack5LeftDeltaN(fp *Path, r *bitread.Reader) {
	fp.incLast(int32(r.ReadUBitVar()) + 2)
	fp.push(int32(r.ReadBits(5)))
	fp.push(int32(r.ReadBits(5)))
}

func pushThreeLeftDeltaZero(fp *Path, r *bitread.Reader) {
	fp.push(int32(r.ReadUBitVarFP()))
	fp.push(int32(r.ReadUBitVarFP()))
	fp.push(int32(r.ReadUBitVarFP()))
}

func pushThreeLeftDeltaOne(fp *Path, r *bitread.Reader) {
	fp.incLast(1)
	fp.push(int32(r.ReadUBitVarFP()))
	fp.push(int32(r.ReadUBitVarFP()))
	fp.push(int32(r.ReadUBitVarFP()))
}

func pushThreeLeftDeltaN(fp *Path, r *bitread.Reader) {
	fp.incLast(int32(r.ReadUBitVar()) + 2)
	fp.push(int32(r.ReadUBitVarFP()))
	fp.push(int32(r.ReadUBitVarFP()))
	fp.push(int32(r.ReadUBitVarFP()))
}

func pushThreePack5LeftDeltaZero(fp *Path, r *bitread.Reader) {
	fp.push(int32(r.ReadBits(5)))
	fp.push(int32(r.ReadBits(5)))
	fp.push(int32(r.ReadBits(5)))
}

func pushThreePack5LeftDeltaOne(fp *Path, r *bitread.Reader) {
	fp.incLast(1)
	fp.push(int32(r.ReadBits(5)))
	fp.push(int32(r.ReadBits(5)))
	fp.push(int32(r.ReadBits(5)))
}

func pushThreePack5LeftDeltaN(fp *Path, r *bitread.Reader) {
	fp.incLast(int32(r.ReadUBitVar()) + 2)
	fp.push(int32(r.ReadBits(5)))
	fp.push(int32(r.ReadBits(5)))
	fp.push(int32(r.ReadBits(5)))
}

func pushN(fp *Path, r *bitread.Reader) {
	n := int(r.ReadUBitVar())
	fp.incLast(int32(r.ReadUBitVar()))

	for i := 0; i < n; i++ {
		fp.push(int32(r.ReadUBitVarFP()))
	}
}

func pushNAndNonTopographical(fp *Path, r *bitread.Reader) {
	for i := 0; i <= fp.last; i++ {
		if r.ReadBool() {
			fp.incAt(i, r.ReadVarint32()+1)
		}
	}

	n := int(r.ReadUBitVar())
	for i := 0; i < n; i++ {
		fp.push(int32(r.ReadUBitVarFP()))
	}
}

func popOnePlusOne(fp *Path, _ *bitread.Reader) {
	fp.pop(1)
	fp.incLast(1)
}

func popOnePlusN(fp *Path, r *bitread.Reader) {
	fp.pop(1)
	fp.incLast(int32(r.ReadUBitVarFP()) + 1)
}

func popAllButOnePlusOne(fp *Path, _ *bitread.Reader) {
	fp.pop(fp.last)
	fp.incLast(1)
}

func popAllButOnePlusN(fp *Path, r *bitread.Reader) {
	fp.pop(fp.last)
	fp.incLast(int32(r.ReadUBitVarFP()) + 1)
}

func popAllButOnePlusNPack3Bits(fp *Path, r *bitread.Reader) {
	fp.pop(fp.last)
	fp.incLast(int32(r.ReadBits(3)) + 1)
}

func popAllButOnePlusNPack6Bits(fp *Path, r *bitread.Reader) {
	fp.pop(fp.last)
	fp.incLast(int32(r.ReadBits(6)) + 1)
}

func popNPlusOne(fp *Path, r *bitread.Reader) {
	fp.pop(int(r.ReadUBitVarFP()))
	fp.incLast(1)
}

func popNPlusN(fp *Path, r *bitread.Reader) {
	fp.pop(int(r.ReadUBitVarFP()))
	fp.incLast(r.ReadVarint32())
}

func popNAndNonTopographical(fp *Path, r *bitread.Reader) {
	fp.pop(int(r.ReadUBitVarFP()))

	for i := 0; i <= fp.last; i++ {
		if r.ReadBool() {
			fp.incAt(i, r.ReadVarint32())
		}
	}
}

func nonTopoComplex(fp *Path, r *bitread.Reader) {
	for i := 0; i <= fp.last; i++ {
		if r.ReadBool() {
			fp.incAt(i, r.ReadVarint32())
		}
	}
}

func nonTopoPenultimatePlusOne(fp *Path, _ *bitread.Reader) {
	fp.incAt(fp.last-1, 1)
}

func nonTopoComplexPack4Bits(fp *Path, r *bitread.Reader) {
	for i := 0; i <= fp.last; i++ {
		if r.ReadBool() {
			fp.incAt(i, int32(r.ReadBits(4))-7)
		}
	}
}

func encodeFinish(fp *Path, _ *bitread.Reader) {
	fp.finished = true
}

type opDescriptor struct {
	weight int
	fn     op
}

// opTable is the closed catalogue of 40 field-path ops with their empirical
// encoding weights. Order matters: ties in Huffman-tree construction break
// on insertion order, so this slice must stay in the order shown here.
var opTable = []opDescriptor{
	{36271, plusOne},
	{10334, plusTwo},
	{1375, plusThree},
	{646, plusFour},
	{4128, plusN},
	{35, pushOneLeftDeltaZeroRightZero},
	{3, pushOneLeftDeltaZeroRightNonZero},
	{521, pushOneLeftDeltaOneRightZero},
	{2942, pushOneLeftDeltaOneRightNonZero},
	{560, pushOneLeftDeltaNRightZero},
	{471, pushOneLeftDeltaNRightNonZero},
	{10530, pushOneLeftDeltaNRightNonZeroPack6Bits},
	{251, pushOneLeftDeltaNRightNonZeroPack8Bits},
	{1, pushTwoLeftDeltaZero},
	{1, pushTwoPack5LeftDeltaZero},
	{1, pushThreeLeftDeltaZero},
	{1, pushThreePack5LeftDeltaZero},
	{1, pushTwoLeftDeltaOne},
	{1, pushTwoPack5LeftDeltaOne},
	{1, pushThreeLeftDeltaOne},
	{1, pushThreePack5LeftDeltaOne},
	{1, pushTwoLeftDeltaN},
	{1, pushTwoPack5LeftDeltaN},
	{1, pushThreeLeftDeltaN},
	{1, pushThreePack5LeftDeltaN},
	{1, pushN},
	{310, pushNAndNonTopographical},
	{2, popOnePlusOne},
	{1, popOnePlusN},
	{1837, popAllButOnePlusOne},
	{149, popAllButOnePlusN},
	{300, popAllButOnePlusNPack3Bits},
	{634, popAllButOnePlusNPack6Bits},
	{1, popNPlusOne},
	{1, popNPlusN},
	{1, popNAndNonTopographical},
	{76, nonTopoComplex},
	{271, nonTopoPenultimatePlusOne},
	{99, nonTopoComplexPack4Bits},
	{25474, encodeFinish},
}

type node struct {
	weight      int
	num         int
	opIndex     int // valid when left == nil && right == nil
	left, right *node
}

func (n *node) isLeaf() bool {
	return n.left == nil && n.right == nil
}

// less reports whether a should be extracted from the priority queue before
// b: smaller weight first, and for equal weight, the more recently
// constructed node (larger num) first. This mirrors the reference
// implementation's Ord on its max-heap, which pops smallest-weight nodes
// first and, on ties, the higher-numbered (later-inserted) node.
func less(a, b *node) bool {
	if a.weight != b.weight {
		return a.weight < b.weight
	}

	return a.num > b.num
}

// buildHierarchy constructs the Huffman tree over opTable once, at package
// init, via a simple O(n^2) selection since n is fixed at 40.
func buildHierarchy() *node {
	pending := make([]*node, len(opTable))
	for i, d := range opTable {
		pending[i] = &node{weight: d.weight, num: i, opIndex: i}
	}

	num := len(opTable)

	for len(pending) > 1 {
		li, ri := 0, 1
		if less(pending[ri], pending[li]) {
			li, ri = ri, li
		}

		for i := 2; i < len(pending); i++ {
			if less(pending[i], pending[li]) {
				ri = li
				li = i
			} else if less(pending[i], pending[ri]) {
				ri = i
			}
		}

		left, right := pending[li], pending[ri]

		branch := &node{weight: left.weight + right.weight, num: num, left: left, right: right}
		num++

		if li > ri {
			li, ri = ri, li
		}

		pending = append(pending[:ri], pending[ri+1:]...)
		pending[li] = branch
	}

	return pending[0]
}

var hierarchy = buildHierarchy()

// ReadPaths decodes field paths from r by walking the op automaton,
// invoking emit after every non-terminal op with the path's current state,
// and stopping once the encode-finish op is reached. The returned count is
// the number of paths emitted.
func ReadPaths(r *bitread.Reader, emit func(Path)) int {
	fp := NewPath()
	root := hierarchy
	cur := root
	count := 0

	for {
		if r.ReadBool() {
			cur = cur.right
		} else {
			cur = cur.left
		}

		if cur.isLeaf() {
			opTable[cur.opIndex].fn(&fp, r)

			if fp.finished {
				return count
			}

			emit(fp)
			count++

			cur = root
		}
	}
}
