// Package response classifies CQi response words.
//
// A response word's high byte names a Category and the full word names a
// Code within it. For Data, the Code also names the payload shape; the
// classifier never reads the payload itself.
package response

import (
	"errors"
	"fmt"

	"github.com/danmuck/cqi/internal/protocol"
)

// Category is the high byte of a response word.
type Category uint8

const (
	CategoryStatus   Category = 0x01
	CategoryError    Category = 0x02
	CategoryData     Category = 0x03
	CategoryClError  Category = 0x04
	CategoryCqpError Category = 0x05
)

var categoryNames = map[Category]string{
	CategoryStatus:   "STATUS",
	CategoryError:    "ERROR",
	CategoryData:     "DATA",
	CategoryClError:  "CL_ERROR",
	CategoryCqpError: "CQP_ERROR",
}

func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return fmt.Sprintf("CATEGORY(0x%02X)", uint8(c))
}

// Code is a full 16-bit response word.
type Code uint16

const (
	StatusOK        Code = 0x0101
	StatusConnectOK Code = 0x0102
	StatusByeOK     Code = 0x0103
	StatusPingOK    Code = 0x0104

	ErrorGeneral        Code = 0x0201
	ErrorConnectRefused Code = 0x0202
	ErrorUserAbort      Code = 0x0203
	ErrorSyntax         Code = 0x0204

	DataByte         Code = 0x0301
	DataBool         Code = 0x0302
	DataInt          Code = 0x0303
	DataString       Code = 0x0304
	DataByteList     Code = 0x0305
	DataBoolList     Code = 0x0306
	DataIntList      Code = 0x0307
	DataStringList   Code = 0x0308
	DataIntInt       Code = 0x0309
	DataIntIntIntInt Code = 0x030A
	DataIntTable     Code = 0x030B

	ClErrorNoSuchAttribute    Code = 0x0401
	ClErrorWrongAttributeType Code = 0x0402
	ClErrorOutOfRange         Code = 0x0403
	ClErrorRegex              Code = 0x0404
	ClErrorCorpusAccess       Code = 0x0405
	ClErrorOutOfMemory        Code = 0x0406

	CqpErrorGeneral      Code = 0x0501
	CqpErrorNoSuchCorpus Code = 0x0502
	CqpErrorInvalidField Code = 0x0503
	CqpErrorOutOfRange   Code = 0x0504
)

var codeNames = map[Code]string{
	StatusOK:        "OK",
	StatusConnectOK: "CONNECT_OK",
	StatusByeOK:     "BYE_OK",
	StatusPingOK:    "PING_OK",

	ErrorGeneral:        "GENERAL_ERROR",
	ErrorConnectRefused: "CONNECT_REFUSED",
	ErrorUserAbort:      "USER_ABORT",
	ErrorSyntax:         "SYNTAX_ERROR",

	DataByte:         "BYTE",
	DataBool:         "BOOL",
	DataInt:          "INT",
	DataString:       "STRING",
	DataByteList:     "BYTE_LIST",
	DataBoolList:     "BOOL_LIST",
	DataIntList:      "INT_LIST",
	DataStringList:   "STRING_LIST",
	DataIntInt:       "INT_INT",
	DataIntIntIntInt: "INT_INT_INT_INT",
	DataIntTable:     "INT_TABLE",

	ClErrorNoSuchAttribute:    "NO_SUCH_ATTRIBUTE",
	ClErrorWrongAttributeType: "WRONG_ATTRIBUTE_TYPE",
	ClErrorOutOfRange:         "OUT_OF_RANGE",
	ClErrorRegex:              "REGEX",
	ClErrorCorpusAccess:       "CORPUS_ACCESS",
	ClErrorOutOfMemory:        "OUT_OF_MEMORY",

	CqpErrorGeneral:      "GENERAL",
	CqpErrorNoSuchCorpus: "NO_SUCH_CORPUS",
	CqpErrorInvalidField: "INVALID_FIELD",
	CqpErrorOutOfRange:   "OUT_OF_RANGE",
}

// dataKinds is the single mapping between Data codes and payload shapes.
var dataKinds = map[Code]protocol.Kind{
	DataByte:         protocol.KindByte,
	DataBool:         protocol.KindBool,
	DataInt:          protocol.KindInt,
	DataString:       protocol.KindString,
	DataByteList:     protocol.KindByteList,
	DataBoolList:     protocol.KindBoolList,
	DataIntList:      protocol.KindIntList,
	DataStringList:   protocol.KindStringList,
	DataIntInt:       protocol.KindIntPair,
	DataIntIntIntInt: protocol.KindIntQuad,
	DataIntTable:     protocol.KindIntTable,
}

// Category returns the high byte of c.
func (c Code) Category() Category {
	return Category(c >> 8)
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("CODE(0x%04X)", uint16(c))
}

// Known reports whether c is in its category's enumeration.
func (c Code) Known() bool {
	_, ok := codeNames[c]
	return ok
}

// DataCode returns the Data code announcing a payload of kind k. Word has no
// Data code.
func DataCode(k protocol.Kind) (Code, bool) {
	for code, kind := range dataKinds {
		if kind == k {
			return code, true
		}
	}
	return 0, false
}

var ErrUnclassified = errors.New("response: unclassified response word")

// UnclassifiedError carries the raw word that matched no known category or
// code.
type UnclassifiedError struct {
	Word uint16
}

func (e *UnclassifiedError) Error() string {
	cat := Category(e.Word >> 8)
	if _, ok := categoryNames[cat]; !ok {
		return fmt.Sprintf("response: unclassified word 0x%04X: unknown category 0x%02X", e.Word, uint8(cat))
	}
	return fmt.Sprintf("response: unclassified word 0x%04X: unknown %s code", e.Word, cat)
}

func (e *UnclassifiedError) Is(target error) bool {
	return target == ErrUnclassified
}

// KnownCategory reports whether the unclassified word still had a valid
// category byte.
func (e *UnclassifiedError) KnownCategory() bool {
	_, ok := categoryNames[Category(e.Word>>8)]
	return ok
}

// Response is a classified response word.
type Response struct {
	Word     uint16
	Category Category
	Code     Code
}

// Classify splits word into (Category, Code). It fails with
// *UnclassifiedError when the category byte or the full code is unknown.
func Classify(word uint16) (Response, error) {
	code := Code(word)
	cat := code.Category()
	if _, ok := categoryNames[cat]; !ok {
		return Response{}, &UnclassifiedError{Word: word}
	}
	if !code.Known() {
		return Response{}, &UnclassifiedError{Word: word}
	}
	return Response{Word: word, Category: cat, Code: code}, nil
}

// DataKind names the value shape that follows a Data response. It reports
// false for every other category.
func (r Response) DataKind() (protocol.Kind, bool) {
	if r.Category != CategoryData {
		return 0, false
	}
	k, ok := dataKinds[r.Code]
	return k, ok
}

// IsData reports whether a payload follows this response word.
func (r Response) IsData() bool {
	return r.Category == CategoryData
}

// IsError reports whether the server reported a failure
// (Error, ClError or CqpError).
func (r Response) IsError() bool {
	switch r.Category {
	case CategoryError, CategoryClError, CategoryCqpError:
		return true
	default:
		return false
	}
}

func (r Response) String() string {
	return fmt.Sprintf("%s %s", r.Category, r.Code)
}
