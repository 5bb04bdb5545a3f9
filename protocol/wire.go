package protocol

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/arloliu/s2replay/errs"
)

// forEachField walks data as a sequence of protobuf wire fields, calling fn
// with the field number, wire type, and the raw remaining bytes positioned
// right after the tag (fn is responsible for consuming the value itself via
// the protowire.Consume* helpers matching typ). This is the one iteration
// primitive every message decoder in this package is built from, mirroring
// the low-level, allocation-conscious style the teacher uses for its own
// binary section parsers.
func forEachField(data []byte, fn func(num protowire.Number, typ protowire.Type, rest []byte) (n int, err error)) error {
	for len(data) > 0 {
		num, typ, tagLen := protowire.ConsumeTag(data)
		if tagLen < 0 {
			return fmt.Errorf("%w: bad tag", errs.ErrWireFormat)
		}

		rest := data[tagLen:]

		n, err := fn(num, typ, rest)
		if err != nil {
			return err
		}

		if n < 0 {
			// field not recognised by the caller; skip its value generically.
			n = protowire.ConsumeFieldValue(num, typ, rest)
			if n < 0 {
				return fmt.Errorf("%w: bad field value", errs.ErrWireFormat)
			}
		}

		data = rest[n:]
	}

	return nil
}

func consumeString(typ protowire.Type, rest []byte) (string, int, error) {
	if typ != protowire.BytesType {
		return "", 0, fmt.Errorf("%w: expected bytes wire type for string", errs.ErrWireFormat)
	}

	v, n := protowire.ConsumeBytes(rest)
	if n < 0 {
		return "", 0, fmt.Errorf("%w: truncated string", errs.ErrWireFormat)
	}

	return string(v), n, nil
}

func consumeBytes(typ protowire.Type, rest []byte) ([]byte, int, error) {
	if typ != protowire.BytesType {
		return nil, 0, fmt.Errorf("%w: expected bytes wire type", errs.ErrWireFormat)
	}

	v, n := protowire.ConsumeBytes(rest)
	if n < 0 {
		return nil, 0, fmt.Errorf("%w: truncated bytes", errs.ErrWireFormat)
	}

	return append([]byte(nil), v...), n, nil
}

func consumeVarint(typ protowire.Type, rest []byte) (uint64, int, error) {
	if typ != protowire.VarintType {
		return 0, 0, fmt.Errorf("%w: expected varint wire type", errs.ErrWireFormat)
	}

	v, n := protowire.ConsumeVarint(rest)
	if n < 0 {
		return 0, 0, fmt.Errorf("%w: truncated varint", errs.ErrWireFormat)
	}

	return v, n, nil
}

func consumeFixed32(typ protowire.Type, rest []byte) (uint32, int, error) {
	if typ != protowire.Fixed32Type {
		return 0, 0, fmt.Errorf("%w: expected fixed32 wire type", errs.ErrWireFormat)
	}

	v, n := protowire.ConsumeFixed32(rest)
	if n < 0 {
		return 0, 0, fmt.Errorf("%w: truncated fixed32", errs.ErrWireFormat)
	}

	return v, n, nil
}
