// Package varint implements the 7-bit-per-byte continuation-bit varint codec
// and its zig-zag signed variant used by both the bit reader (C1) and the
// demo-file command framing (C10).
package varint

import (
	"io"

	"github.com/arloliu/s2replay/errs"
)

// MaxBytes32 is the maximum number of encoded bytes for a 32-bit uvarint.
const MaxBytes32 = 5

// MaxBytes64 is the maximum number of encoded bytes for a 64-bit uvarint.
const MaxBytes64 = 10

// ZigZagEncode32 maps a signed value onto an unsigned one so that small
// magnitudes (positive or negative) encode to small uvarints.
func ZigZagEncode32(v int32) uint32 {
	return (uint32(v) << 1) ^ uint32(v>>31)
}

// ZigZagDecode32 is the inverse of ZigZagEncode32.
func ZigZagDecode32(v uint32) int32 {
	return int32(v>>1) ^ -int32(v&1)
}

// ZigZagEncode64 maps a signed 64-bit value onto an unsigned one.
func ZigZagEncode64(v int64) uint64 {
	return (uint64(v) << 1) ^ uint64(v>>63)
}

// ZigZagDecode64 is the inverse of ZigZagEncode64.
func ZigZagDecode64(v uint64) int64 {
	return int64(v>>1) ^ -int64(v&1)
}

// AppendUvarint32 appends the uvarint encoding of v to dst.
func AppendUvarint32(dst []byte, v uint32) []byte {
	for v >= 0x80 {
		dst = append(dst, byte(v)|0x80)
		v >>= 7
	}

	return append(dst, byte(v))
}

// AppendUvarint64 appends the uvarint encoding of v to dst.
func AppendUvarint64(dst []byte, v uint64) []byte {
	for v >= 0x80 {
		dst = append(dst, byte(v)|0x80)
		v >>= 7
	}

	return append(dst, byte(v))
}

// ReadUvarint32 decodes a uvarint from r, returning the value and the number
// of bytes consumed. Used by the demo-file command framing (C10), which
// reads cmd/tick/size straight off the byte source rather than through a bit
// reader.
func ReadUvarint32(r io.ByteReader) (uint32, int, error) {
	var result uint32
	for i := 0; i < MaxBytes32; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, i, err
		}

		result |= uint32(b&0x7F) << (7 * i)
		if b&0x80 == 0 {
			return result, i + 1, nil
		}
	}

	return 0, MaxBytes32, errs.ErrVarintTooLong
}
