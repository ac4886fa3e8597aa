// Package commands is the static CQi 0.1 command catalogue: opcode, argument
// kinds and the response codes a server may answer with. The table is plain
// data and is never mutated after init.
package commands

import (
	"fmt"
	"strings"

	"github.com/danmuck/cqi/internal/protocol"
	"github.com/danmuck/cqi/internal/protocol/response"
)

// DefaultPort is the registered CQi service port.
const DefaultPort = 4877

// CQi version implemented by this table.
const (
	MajorVersion = 0x00
	MinorVersion = 0x01
)

// Opcode groups (high byte).
const (
	GroupCtrl    uint8 = 0x11
	GroupFeature uint8 = 0x12
	GroupCorpus  uint8 = 0x13
	GroupCL      uint8 = 0x14
	GroupCQP     uint8 = 0x15
)

// Field selectors for CQP subcorpus commands. Targets 0..9 have the numeric
// values 0..9.
const (
	FieldTarget0  uint8 = 0x00
	FieldTarget1  uint8 = 0x01
	FieldTarget2  uint8 = 0x02
	FieldTarget3  uint8 = 0x03
	FieldTarget4  uint8 = 0x04
	FieldTarget5  uint8 = 0x05
	FieldTarget6  uint8 = 0x06
	FieldTarget7  uint8 = 0x07
	FieldTarget8  uint8 = 0x08
	FieldTarget9  uint8 = 0x09
	FieldTarget   uint8 = 0x00
	FieldKeyword  uint8 = 0x09
	FieldMatch    uint8 = 0x10
	FieldMatchEnd uint8 = 0x11
)

// Opcode is a 16-bit CQi command identifier.
type Opcode uint16

const (
	CtrlConnect          Opcode = 0x1101
	CtrlBye              Opcode = 0x1102
	CtrlUserAbort        Opcode = 0x1103
	CtrlPing             Opcode = 0x1104
	CtrlLastGeneralError Opcode = 0x1105

	AskFeatureCQI10 Opcode = 0x1201
	AskFeatureCL23  Opcode = 0x1202
	AskFeatureCQP23 Opcode = 0x1203

	CorpusListCorpora                  Opcode = 0x1301
	CorpusCharset                      Opcode = 0x1303
	CorpusProperties                   Opcode = 0x1304
	CorpusPositionalAttributes         Opcode = 0x1305
	CorpusStructuralAttributes         Opcode = 0x1306
	CorpusStructuralAttributeHasValues Opcode = 0x1307
	CorpusAlignmentAttributes          Opcode = 0x1308
	CorpusFullName                     Opcode = 0x1309
	CorpusInfo                         Opcode = 0x130A
	CorpusDropCorpus                   Opcode = 0x130B

	CLAttributeSize Opcode = 0x1401
	CLLexiconSize   Opcode = 0x1402
	CLDropAttribute Opcode = 0x1403
	CLStr2ID        Opcode = 0x1404
	CLID2Str        Opcode = 0x1405
	CLID2Freq       Opcode = 0x1406
	CLCpos2ID       Opcode = 0x1407
	CLCpos2Str      Opcode = 0x1408
	CLCpos2Struc    Opcode = 0x1409
	CLCpos2Alg      Opcode = 0x140A
	CLStruc2Str     Opcode = 0x140B
	CLID2Cpos       Opcode = 0x140C
	CLIDList2Cpos   Opcode = 0x140D
	CLRegex2ID      Opcode = 0x140E
	CLStruc2Cpos    Opcode = 0x140F
	CLAlg2Cpos      Opcode = 0x1410
	CLCpos2LBound   Opcode = 0x1420
	CLCpos2RBound   Opcode = 0x1421

	CQPQuery             Opcode = 0x1501
	CQPListSubcorpora    Opcode = 0x1502
	CQPSubcorpusSize     Opcode = 0x1503
	CQPSubcorpusHasField Opcode = 0x1504
	CQPDumpSubcorpus     Opcode = 0x1505
	CQPDropSubcorpus     Opcode = 0x1509
	CQPFdist1            Opcode = 0x1510
	CQPFdist2            Opcode = 0x1511
)

// Group returns the opcode's high byte.
func (o Opcode) Group() uint8 {
	return uint8(o >> 8)
}

func (o Opcode) String() string {
	if c, ok := byOpcode[o]; ok {
		return c.Name
	}
	return fmt.Sprintf("OPCODE(0x%04X)", uint16(o))
}

// Command is one catalogue entry.
type Command struct {
	Name    string
	Opcode  Opcode
	Args    []protocol.Kind
	Returns []response.Code
}

// Accepts reports whether code is one of the command's declared responses.
func (c Command) Accepts(code response.Code) bool {
	for _, r := range c.Returns {
		if r == code {
			return true
		}
	}
	return false
}

// DataKind returns the payload kind of the command's Data response, if any.
func (c Command) DataKind() (protocol.Kind, bool) {
	for _, code := range c.Returns {
		r := response.Response{Word: uint16(code), Category: code.Category(), Code: code}
		if k, ok := r.DataKind(); ok {
			return k, true
		}
	}
	return 0, false
}

// Signature renders the command as NAME(ARG, ...) -> RESP | RESP.
func (c Command) Signature() string {
	args := make([]string, len(c.Args))
	for i, k := range c.Args {
		args[i] = k.String()
	}
	rets := make([]string, len(c.Returns))
	for i, code := range c.Returns {
		rets[i] = fmt.Sprintf("%s::%s", code.Category(), code)
	}
	if len(rets) == 0 {
		rets = []string{"-"}
	}
	return fmt.Sprintf("%s(%s) -> %s", c.Name, strings.Join(args, ", "), strings.Join(rets, " | "))
}

const (
	str     = protocol.KindString
	strList = protocol.KindStringList
	intK    = protocol.KindInt
	intList = protocol.KindIntList
	byteK   = protocol.KindByte
)

func args(kinds ...protocol.Kind) []protocol.Kind { return kinds }

func returns(codes ...response.Code) []response.Code { return codes }

var table = [...]Command{
	{"CTRL_CONNECT", CtrlConnect, args(str, str), returns(response.StatusConnectOK, response.ErrorConnectRefused)},
	{"CTRL_BYE", CtrlBye, nil, returns(response.StatusByeOK)},
	{"CTRL_USER_ABORT", CtrlUserAbort, nil, nil},
	{"CTRL_PING", CtrlPing, nil, returns(response.StatusPingOK)},
	{"CTRL_LAST_GENERAL_ERROR", CtrlLastGeneralError, nil, returns(response.DataString)},

	{"ASK_FEATURE_CQI_1_0", AskFeatureCQI10, nil, returns(response.DataBool)},
	{"ASK_FEATURE_CL_2_3", AskFeatureCL23, nil, returns(response.DataBool)},
	{"ASK_FEATURE_CQP_2_3", AskFeatureCQP23, nil, returns(response.DataBool)},

	{"CORPUS_LIST_CORPORA", CorpusListCorpora, nil, returns(response.DataStringList)},
	{"CORPUS_CHARSET", CorpusCharset, args(str), returns(response.DataString)},
	{"CORPUS_PROPERTIES", CorpusProperties, args(str), returns(response.DataStringList)},
	{"CORPUS_POSITIONAL_ATTRIBUTES", CorpusPositionalAttributes, args(str), returns(response.DataStringList)},
	{"CORPUS_STRUCTURAL_ATTRIBUTES", CorpusStructuralAttributes, args(str), returns(response.DataStringList)},
	{"CORPUS_STRUCTURAL_ATTRIBUTE_HAS_VALUES", CorpusStructuralAttributeHasValues, args(str), returns(response.DataBool)},
	{"CORPUS_ALIGNMENT_ATTRIBUTES", CorpusAlignmentAttributes, args(str), returns(response.DataStringList)},
	{"CORPUS_FULL_NAME", CorpusFullName, args(str), returns(response.DataString)},
	{"CORPUS_INFO", CorpusInfo, args(str), returns(response.DataStringList)},
	{"CORPUS_DROP_CORPUS", CorpusDropCorpus, args(str), returns(response.StatusOK)},

	{"CL_ATTRIBUTE_SIZE", CLAttributeSize, args(str), returns(response.DataInt)},
	{"CL_LEXICON_SIZE", CLLexiconSize, args(str), returns(response.DataInt)},
	{"CL_DROP_ATTRIBUTE", CLDropAttribute, args(str), returns(response.StatusOK)},
	{"CL_STR2ID", CLStr2ID, args(str, strList), returns(response.DataIntList)},
	{"CL_ID2STR", CLID2Str, args(str, intList), returns(response.DataStringList)},
	{"CL_ID2FREQ", CLID2Freq, args(str, intList), returns(response.DataIntList)},
	{"CL_CPOS2ID", CLCpos2ID, args(str, intList), returns(response.DataIntList)},
	{"CL_CPOS2STR", CLCpos2Str, args(str, intList), returns(response.DataStringList)},
	{"CL_CPOS2STRUC", CLCpos2Struc, args(str, intList), returns(response.DataIntList)},
	{"CL_CPOS2LBOUND", CLCpos2LBound, args(str, intList), returns(response.DataIntList)},
	{"CL_CPOS2RBOUND", CLCpos2RBound, args(str, intList), returns(response.DataIntList)},
	{"CL_CPOS2ALG", CLCpos2Alg, args(str, intList), returns(response.DataIntList)},
	{"CL_STRUC2STR", CLStruc2Str, args(str, intList), returns(response.DataStringList)},
	{"CL_ID2CPOS", CLID2Cpos, args(str, intK), returns(response.DataIntList)},
	{"CL_IDLIST2CPOS", CLIDList2Cpos, args(str, intList), returns(response.DataIntList)},
	{"CL_REGEX2ID", CLRegex2ID, args(str, str), returns(response.DataIntList)},
	{"CL_STRUC2CPOS", CLStruc2Cpos, args(str, intK), returns(response.DataIntInt)},
	{"CL_ALG2CPOS", CLAlg2Cpos, args(str, intK), returns(response.DataIntIntIntInt)},

	{"CQP_QUERY", CQPQuery, args(str, str, str), returns(response.StatusOK)},
	{"CQP_LIST_SUBCORPORA", CQPListSubcorpora, args(str), returns(response.DataStringList)},
	{"CQP_SUBCORPUS_SIZE", CQPSubcorpusSize, args(str), returns(response.DataInt)},
	{"CQP_SUBCORPUS_HAS_FIELD", CQPSubcorpusHasField, args(str, byteK), returns(response.DataBool)},
	{"CQP_DUMP_SUBCORPUS", CQPDumpSubcorpus, args(str, byteK, intK, intK), returns(response.DataIntList)},
	{"CQP_DROP_SUBCORPUS", CQPDropSubcorpus, args(str), returns(response.StatusOK)},
	{"CQP_FDIST_1", CQPFdist1, args(str, intK, byteK, str), returns(response.DataIntList)},
	{"CQP_FDIST_2", CQPFdist2, args(str, intK, byteK, str, byteK, str), returns(response.DataIntList)},
}

var (
	byName   = make(map[string]Command, len(table))
	byOpcode = make(map[Opcode]Command, len(table))
)

func init() {
	for _, c := range table {
		byName[c.Name] = c
		byOpcode[c.Opcode] = c
	}
}

// Lookup finds a command by name, case-insensitively.
func Lookup(name string) (Command, bool) {
	c, ok := byName[strings.ToUpper(strings.TrimSpace(name))]
	return c, ok
}

// ByOpcode finds a command by opcode.
func ByOpcode(op Opcode) (Command, bool) {
	c, ok := byOpcode[op]
	return c, ok
}

// MustLookup is Lookup for names known at compile time.
func MustLookup(name string) Command {
	c, ok := Lookup(name)
	if !ok {
		panic("commands: unknown command " + name)
	}
	return c
}

// All returns the catalogue in opcode declaration order.
func All() []Command {
	out := make([]Command, len(table))
	copy(out, table[:])
	return out
}
