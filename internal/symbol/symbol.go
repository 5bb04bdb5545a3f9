// Package symbol implements the FxHash-derived Symbol used to intern the
// short identifier strings (field names, var-type names, serializer names)
// that appear throughout the flattened-serializer graph.
//
// This is deliberately not xxhash: the wire format's notion of "the same
// symbol" is defined by this exact multiplicative/rotate hash, seeded by the
// first input byte, so any other hash function would silently diverge from
// every real replay ever produced by the game engine.
package symbol

// fxK is the FxHash multiplicative constant (0x9E3779B97F4A7C15's 64-bit
// "golden ratio" relative used by rustc-hash / firefox's FxHash).
const fxK uint64 = 0x517cc1b727220a95

// Symbol is a hashed reference to an interned byte string. Two Symbols
// compare equal iff their Hash fields are equal; collisions are assumed
// absent within the scope of a single replay, per the source specification.
type Symbol struct {
	Hash uint64
	// Name holds the original bytes for debugging. It is not considered by
	// equality and may be empty when a Symbol is reconstructed from a raw
	// hash value alone (e.g. a class's network-name-hash with no backing
	// string available).
	Name string
}

// New computes the Symbol for data. An empty input hashes to 0, matching the
// reference implementation's seed-from-first-byte behavior degenerating to
// zero state when there is no first byte.
func New(data string) Symbol {
	return Symbol{Hash: Hash(data), Name: data}
}

// Hash computes the bare FxHash value of data without retaining the bytes.
func Hash(data string) uint64 {
	if len(data) == 0 {
		return 0
	}

	h := uint64(data[0])
	for i := 1; i < len(data); i++ {
		h = fold(h, uint64(data[i]))
	}

	return h
}

// fold is the single FxHash mixing step: rotate the accumulator left by 5
// bits, xor in the next word, then multiply by the FxHash constant.
func fold(a, b uint64) uint64 {
	return (rotl(a, 5) ^ b) * fxK
}

// FoldMix is exported for callers outside this package that need to chain
// the same mixing step over non-string values, notably the entity field-key
// derivation (C9 §4.9 step 2), which folds a raw field-path slot value or a
// child field's var-name hash into a running key rather than a raw byte.
func FoldMix(a, b uint64) uint64 {
	return fold(a, b)
}

func rotl(x uint64, k uint) uint64 {
	return (x << k) | (x >> (64 - k))
}
