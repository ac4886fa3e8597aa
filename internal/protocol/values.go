package protocol

import (
	"fmt"
	"math"
	"unicode/utf8"
)

// MaxStringBytes is the largest string the Word length prefix can carry.
const MaxStringBytes = math.MaxUint16

// NewString validates s as a CQi string: valid UTF-8 and at most
// MaxStringBytes bytes long.
func NewString(s string) (String, error) {
	if err := checkString(s); err != nil {
		return "", err
	}
	return String(s), nil
}

func checkString(s string) error {
	if len(s) > MaxStringBytes {
		return fmt.Errorf("%w: %d bytes", ErrStringTooLong, len(s))
	}
	if !utf8.ValidString(s) {
		return ErrInvalidUTF8
	}
	return nil
}

// NewIntTable builds a table from row slices. Every row must have the same
// length as the first; a table with zero rows has zero columns.
func NewIntTable(rows [][]int32) (IntTable, error) {
	if len(rows) == 0 {
		return IntTable{}, nil
	}
	cols := len(rows[0])
	cells := make([]int32, 0, len(rows)*cols)
	for i, row := range rows {
		if len(row) != cols {
			return IntTable{}, fmt.Errorf("%w: row %d has %d columns, want %d", ErrRaggedTable, i, len(row), cols)
		}
		cells = append(cells, row...)
	}
	return IntTable{rows: len(rows), cols: cols, cells: cells}, nil
}

// NewIntTableCells builds a rows x cols table from row-major cells.
func NewIntTableCells(rows, cols int, cells []int32) (IntTable, error) {
	if rows < 0 || cols < 0 || rows > math.MaxInt32 || cols > math.MaxInt32 {
		return IntTable{}, fmt.Errorf("%w: table dimensions %dx%d", ErrInvalidLength, rows, cols)
	}
	if rows != 0 && cols > len(cells)/rows || len(cells) != rows*cols {
		return IntTable{}, fmt.Errorf("%w: %d cells for %dx%d", ErrRaggedTable, len(cells), rows, cols)
	}
	out := make([]int32, len(cells))
	copy(out, cells)
	return IntTable{rows: rows, cols: cols, cells: out}, nil
}

func (t IntTable) Rows() int { return t.rows }
func (t IntTable) Cols() int { return t.cols }

// At returns the cell at row r, column c. It panics when out of range, like
// a slice index.
func (t IntTable) At(r, c int) int32 {
	if r < 0 || r >= t.rows || c < 0 || c >= t.cols {
		panic(fmt.Sprintf("protocol: IntTable index [%d,%d] out of range %dx%d", r, c, t.rows, t.cols))
	}
	return t.cells[r*t.cols+c]
}

// Row returns a copy of row r.
func (t IntTable) Row(r int) []int32 {
	if r < 0 || r >= t.rows {
		panic(fmt.Sprintf("protocol: IntTable row %d out of range %d", r, t.rows))
	}
	out := make([]int32, t.cols)
	copy(out, t.cells[r*t.cols:(r+1)*t.cols])
	return out
}

// RowSlices returns the table as a fresh [][]int32.
func (t IntTable) RowSlices() [][]int32 {
	out := make([][]int32, t.rows)
	for r := range out {
		out[r] = t.Row(r)
	}
	return out
}

// Equal reports whether two tables have the same dimensions and cells.
func (t IntTable) Equal(o IntTable) bool {
	if t.rows != o.rows || t.cols != o.cols || len(t.cells) != len(o.cells) {
		return false
	}
	for i := range t.cells {
		if t.cells[i] != o.cells[i] {
			return false
		}
	}
	return true
}

// Equal reports whether a and b are the same variant with the same contents.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch av := a.(type) {
	case Bool, Byte, Word, Int, String, IntPair, IntQuad:
		return a == b
	case BoolList:
		return sliceEqual(av, b.(BoolList))
	case ByteList:
		return sliceEqual(av, b.(ByteList))
	case IntList:
		return sliceEqual(av, b.(IntList))
	case StringList:
		return sliceEqual(av, b.(StringList))
	case IntTable:
		return av.Equal(b.(IntTable))
	default:
		return false
	}
}

func sliceEqual[T comparable](a, b []T) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Format renders v for display, using CQi literal conventions.
func Format(v Value) string {
	switch tv := v.(type) {
	case nil:
		return "<nil>"
	case Bool:
		return fmt.Sprintf("%t", bool(tv))
	case Byte:
		return fmt.Sprintf("%d:byte", uint8(tv))
	case Word:
		return fmt.Sprintf("0x%04X:word", uint16(tv))
	case Int:
		return fmt.Sprintf("%d:int", int32(tv))
	case String:
		return fmt.Sprintf("%q", string(tv))
	case BoolList:
		return fmt.Sprintf("%v", []bool(tv))
	case ByteList:
		return fmt.Sprintf("%v", []byte(tv))
	case IntList:
		return fmt.Sprintf("%v", []int32(tv))
	case StringList:
		return fmt.Sprintf("%q", []string(tv))
	case IntPair:
		return fmt.Sprintf("(%d, %d)", tv[0], tv[1])
	case IntQuad:
		return fmt.Sprintf("(%d, %d, %d, %d)", tv[0], tv[1], tv[2], tv[3])
	case IntTable:
		return fmt.Sprintf("%dx%d %v", tv.rows, tv.cols, tv.RowSlices())
	default:
		return fmt.Sprintf("<%s>", v.Kind())
	}
}
