package protocol

import "fmt"

// Kind names one wire shape. Decoding requires the caller to know the Kind.
type Kind uint8

const (
	KindBool Kind = iota + 1
	KindByte
	KindWord
	KindInt
	KindString
	KindBoolList
	KindByteList
	KindIntList
	KindStringList
	KindIntPair
	KindIntQuad
	KindIntTable
)

var kindNames = map[Kind]string{
	KindBool:       "BOOL",
	KindByte:       "BYTE",
	KindWord:       "WORD",
	KindInt:        "INT",
	KindString:     "STRING",
	KindBoolList:   "BOOL_LIST",
	KindByteList:   "BYTE_LIST",
	KindIntList:    "INT_LIST",
	KindStringList: "STRING_LIST",
	KindIntPair:    "INT_INT",
	KindIntQuad:    "INT_INT_INT_INT",
	KindIntTable:   "INT_TABLE",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("KIND(%d)", uint8(k))
}

// Valid reports whether k is one of the known shapes.
func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// Value is the closed union of CQi wire values. The unexported marker method
// keeps the set of implementations inside this package.
type Value interface {
	Kind() Kind
	isValue()
}

type (
	Bool       bool
	Byte       uint8
	Word       uint16
	Int        int32
	String     string
	BoolList   []bool
	ByteList   []byte
	IntList    []int32
	StringList []string
	IntPair    [2]int32
	IntQuad    [4]int32
)

// IntTable is a rectangular matrix of Int. The fields are unexported so a
// table can only come from NewIntTable, NewIntTableCells or the decoder, all
// of which reject ragged input.
type IntTable struct {
	rows  int
	cols  int
	cells []int32
}

func (Bool) Kind() Kind       { return KindBool }
func (Byte) Kind() Kind       { return KindByte }
func (Word) Kind() Kind       { return KindWord }
func (Int) Kind() Kind        { return KindInt }
func (String) Kind() Kind     { return KindString }
func (BoolList) Kind() Kind   { return KindBoolList }
func (ByteList) Kind() Kind   { return KindByteList }
func (IntList) Kind() Kind    { return KindIntList }
func (StringList) Kind() Kind { return KindStringList }
func (IntPair) Kind() Kind    { return KindIntPair }
func (IntQuad) Kind() Kind    { return KindIntQuad }
func (IntTable) Kind() Kind   { return KindIntTable }

func (Bool) isValue()       {}
func (Byte) isValue()       {}
func (Word) isValue()       {}
func (Int) isValue()        {}
func (String) isValue()     {}
func (BoolList) isValue()   {}
func (ByteList) isValue()   {}
func (IntList) isValue()    {}
func (StringList) isValue() {}
func (IntPair) isValue()    {}
func (IntQuad) isValue()    {}
func (IntTable) isValue()   {}
