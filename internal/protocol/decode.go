package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

// Limits constrains decoder memory use. Counts are taken literally, so a
// hostile peer could otherwise declare a multi-gigabyte list.
type Limits struct {
	MaxElements int
}

func DefaultLimits() Limits {
	return Limits{
		MaxElements: 16 << 20,
	}
}

// Decoder reads CQi values of a caller-supplied Kind from an underlying reader.
type Decoder struct {
	r      io.Reader
	limits Limits
	aux    [4]byte
}

func NewDecoder(r io.Reader, limits Limits) *Decoder {
	if limits.MaxElements <= 0 {
		limits = DefaultLimits()
	}
	return &Decoder{r: r, limits: limits}
}

// ReadWord reads a bare 16-bit word, as used for response words.
func (d *Decoder) ReadWord() (uint16, error) {
	return readScalar(d, wordCodec)
}

// Decode reads one value of kind k.
func (d *Decoder) Decode(k Kind) (Value, error) {
	switch k {
	case KindBool:
		v, err := readScalar(d, boolCodec)
		if err != nil {
			return nil, err
		}
		return Bool(v), nil
	case KindByte:
		v, err := readScalar(d, byteCodec)
		if err != nil {
			return nil, err
		}
		return Byte(v), nil
	case KindWord:
		v, err := readScalar(d, wordCodec)
		if err != nil {
			return nil, err
		}
		return Word(v), nil
	case KindInt:
		v, err := readScalar(d, intCodec)
		if err != nil {
			return nil, err
		}
		return Int(v), nil
	case KindString:
		s, err := d.readString()
		if err != nil {
			return nil, err
		}
		if !utf8.ValidString(s) {
			return nil, ErrInvalidUTF8
		}
		return String(s), nil
	case KindBoolList:
		v, err := readList(d, scalarReader(boolCodec))
		if err != nil {
			return nil, err
		}
		return BoolList(v), nil
	case KindByteList:
		v, err := readList(d, scalarReader(byteCodec))
		if err != nil {
			return nil, err
		}
		return ByteList(v), nil
	case KindIntList:
		v, err := readList(d, scalarReader(intCodec))
		if err != nil {
			return nil, err
		}
		return IntList(v), nil
	case KindStringList:
		return d.readStringList()
	case KindIntPair:
		var v IntPair
		if err := readInts(d, v[:]); err != nil {
			return nil, err
		}
		return v, nil
	case KindIntQuad:
		var v IntQuad
		if err := readInts(d, v[:]); err != nil {
			return nil, err
		}
		return v, nil
	case KindIntTable:
		return d.readTable()
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, k)
	}
}

func (d *Decoder) readFull(buf []byte) error {
	if _, err := io.ReadFull(d.r, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("%w: %w", ErrTruncated, err)
		}
		return err
	}
	return nil
}

// readCount reads an Int count and bounds it before anything is allocated.
func (d *Decoder) readCount(what string) (int, error) {
	n, err := readScalar(d, intCodec)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: %s %d", ErrInvalidLength, what, n)
	}
	if int(n) > d.limits.MaxElements {
		return 0, fmt.Errorf("%w: %s %d > %d", ErrTooLarge, what, n, d.limits.MaxElements)
	}
	return int(n), nil
}

// readString consumes a Word-length string without validating it, so the
// stream stays aligned even when the bytes are not UTF-8.
func (d *Decoder) readString() (string, error) {
	n, err := readScalar(d, wordCodec)
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", nil
	}
	buf := make([]byte, n)
	if err := d.readFull(buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// readStringList reads every element before validating, so an invalid
// element still leaves the stream positioned after the whole list.
func (d *Decoder) readStringList() (Value, error) {
	items, err := readList(d, (*Decoder).readString)
	if err != nil {
		return nil, err
	}
	for i, s := range items {
		if !utf8.ValidString(s) {
			return nil, fmt.Errorf("list element %d: %w", i, ErrInvalidUTF8)
		}
	}
	return StringList(items), nil
}

func (d *Decoder) readTable() (Value, error) {
	rows, err := d.readCount("table rows")
	if err != nil {
		return nil, err
	}
	cols, err := d.readCount("table cols")
	if err != nil {
		return nil, err
	}
	if total := int64(rows) * int64(cols); total > int64(d.limits.MaxElements) {
		return nil, fmt.Errorf("%w: table %dx%d", ErrTooLarge, rows, cols)
	}
	cells := make([]int32, rows*cols)
	if err := readInts(d, cells); err != nil {
		return nil, fmt.Errorf("table %dx%d: %w", rows, cols, err)
	}
	return IntTable{rows: rows, cols: cols, cells: cells}, nil
}

// Unmarshal decodes exactly one value of kind k from b.
func Unmarshal(k Kind, b []byte) (Value, error) {
	r := bytes.NewReader(b)
	v, err := NewDecoder(r, DefaultLimits()).Decode(k)
	if err != nil {
		return nil, err
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%w: %d", ErrTrailingBytes, r.Len())
	}
	return v, nil
}
