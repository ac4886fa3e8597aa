package protocol

import "errors"

var (
	ErrTruncated     = errors.New("protocol: truncated data")
	ErrInvalidLength = errors.New("protocol: invalid length")
	ErrInvalidUTF8   = errors.New("protocol: invalid utf-8 in string")
	ErrStringTooLong = errors.New("protocol: string exceeds 65535 bytes")
	ErrTooLarge      = errors.New("protocol: declared size exceeds limit")
	ErrRaggedTable   = errors.New("protocol: ragged int table")
	ErrUnknownKind   = errors.New("protocol: unknown value kind")
	ErrNilValue      = errors.New("protocol: nil value")
	ErrListTooLong   = errors.New("protocol: list exceeds int32 count")
	ErrTrailingBytes = errors.New("protocol: trailing bytes after value")
)
