// Package errs collects the sentinel errors returned across s2replay's
// packages. Callers are expected to compare against these with errors.Is;
// call sites wrap them with additional context via fmt.Errorf("...: %w", err).
package errs

import "errors"

// Container / command-stream errors (C10).
var (
	ErrInvalidDemoStamp   = errors.New("s2replay: invalid demo file stamp")
	ErrUnknownCommand     = errors.New("s2replay: unknown command kind")
	ErrUnexpectedCommand  = errors.New("s2replay: unexpected command kind")
	ErrDemoHeaderNotRead  = errors.New("s2replay: demo header has not been read yet")
	ErrFileInfoNotRead    = errors.New("s2replay: file info has not been read yet")
	ErrFileInfoAlreadySet = errors.New("s2replay: file info has already been read")
)

// Bit-reader errors (C1).
var (
	ErrBitReaderOverflow  = errors.New("s2replay: bit reader overflow")
	ErrBitCountOutOfRange = errors.New("s2replay: bit count out of range")
	ErrVarintTooLong      = errors.New("s2replay: varint exceeds maximum encoded length")
	ErrStringTooLong      = errors.New("s2replay: string exceeds caller-supplied cap")
)

// Var-type grammar errors (C2).
var (
	ErrMalformedTypeExpr  = errors.New("s2replay: malformed type expression")
	ErrUnknownArrayLength = errors.New("s2replay: unrecognised fixed-array length constant")
)

// Quantised-float errors (C3).
var (
	ErrInvalidEncodeFlags  = errors.New("s2replay: mutually exclusive quantised-float encode flags")
	ErrInvalidQuantizedBit = errors.New("s2replay: invalid quantised-float bit count")
)

// Field-decoder selector errors (C4).
var (
	ErrUnresolvedFieldSerializer = errors.New("s2replay: field references an unresolved child serializer")
)

// Flattened-serializer graph errors (C5).
var (
	ErrSymbolNotFound        = errors.New("s2replay: symbol index out of range")
	ErrFieldNotFound         = errors.New("s2replay: raw field index out of range")
	ErrUnresolvedSerializer  = errors.New("s2replay: serializer name hash not found")
	ErrDuplicateSerializer   = errors.New("s2replay: duplicate serializer name hash")
	ErrMissingSendTableBytes = errors.New("s2replay: CDemoSendTables did not embed a flattened serializer blob")
)

// Field-path automaton errors (C6).
var (
	ErrFieldPathOverflow = errors.New("s2replay: field path slot index out of range")
	ErrHuffmanDesync     = errors.New("s2replay: field path huffman walk reached an invalid state")
)

// String-table errors (C7).
var (
	ErrDuplicateTableName = errors.New("s2replay: string table name already exists")
	ErrTableNotFound      = errors.New("s2replay: string table not found")
	ErrKeyHistoryRange    = errors.New("s2replay: string table key history reference out of range")
)

// Entity container errors (C9).
var (
	ErrEntityNotFound       = errors.New("s2replay: entity index not found")
	ErrClassNotFound        = errors.New("s2replay: class id not found")
	ErrBaselineNotAvailable = errors.New("s2replay: no baseline entity available for class")
)

// Orchestrator errors (C11).
var (
	ErrSerializersNotReady   = errors.New("s2replay: flattened serializers have not been parsed yet")
	ErrEntityClassesNotReady = errors.New("s2replay: entity classes have not been parsed yet")
	ErrNegativeTargetTick    = errors.New("s2replay: run-to-tick target must be >= -1")
)

// Protocol / wire-decoding errors.
var (
	ErrWireFormat       = errors.New("s2replay: malformed protobuf wire data")
	ErrUnknownFieldType = errors.New("s2replay: unsupported protobuf wire type")
)
