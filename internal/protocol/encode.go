package protocol

import (
	"bytes"
	"fmt"
	"io"
	"math"
)

// Encoder writes CQi values to an underlying writer. It does no buffering of
// its own; wrap the writer in a bufio.Writer and flush once per request.
type Encoder struct {
	w   io.Writer
	aux [4]byte
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// WriteWord writes a bare 16-bit word, as used for opcodes.
func (e *Encoder) WriteWord(v uint16) error {
	return writeScalar(e, wordCodec, v)
}

// Encode writes v using its fixed wire shape.
func (e *Encoder) Encode(v Value) error {
	switch tv := v.(type) {
	case nil:
		return ErrNilValue
	case Bool:
		return writeScalar(e, boolCodec, bool(tv))
	case Byte:
		return writeScalar(e, byteCodec, uint8(tv))
	case Word:
		return writeScalar(e, wordCodec, uint16(tv))
	case Int:
		return writeScalar(e, intCodec, int32(tv))
	case String:
		return e.writeString(string(tv))
	case BoolList:
		return writeList(e, []bool(tv), scalarWriter(boolCodec))
	case ByteList:
		return writeList(e, []uint8(tv), scalarWriter(byteCodec))
	case IntList:
		return writeList(e, []int32(tv), scalarWriter(intCodec))
	case StringList:
		return writeList(e, []string(tv), (*Encoder).writeString)
	case IntPair:
		return writeInts(e, tv[:])
	case IntQuad:
		return writeInts(e, tv[:])
	case IntTable:
		return e.writeTable(tv)
	default:
		return fmt.Errorf("%w: %T", ErrUnknownKind, v)
	}
}

// EncodeAll writes each value in order, stopping at the first failure.
func (e *Encoder) EncodeAll(vals ...Value) error {
	for i, v := range vals {
		if err := e.Encode(v); err != nil {
			return fmt.Errorf("value %d (%s): %w", i, kindOf(v), err)
		}
	}
	return nil
}

func (e *Encoder) writeString(s string) error {
	if err := checkString(s); err != nil {
		return err
	}
	if err := writeScalar(e, wordCodec, uint16(len(s))); err != nil {
		return err
	}
	if len(s) == 0 {
		return nil
	}
	_, err := io.WriteString(e.w, s)
	return err
}

func (e *Encoder) writeTable(t IntTable) error {
	if t.rows > math.MaxInt32 || t.cols > math.MaxInt32 || len(t.cells) != t.rows*t.cols {
		return ErrRaggedTable
	}
	if err := writeScalar(e, intCodec, int32(t.rows)); err != nil {
		return err
	}
	if err := writeScalar(e, intCodec, int32(t.cols)); err != nil {
		return err
	}
	return writeInts(e, t.cells)
}

// Marshal returns the wire encoding of v.
func Marshal(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func kindOf(v Value) string {
	if v == nil {
		return "nil"
	}
	return v.Kind().String()
}
