package session

import (
	"fmt"

	"github.com/danmuck/cqi/internal/protocol"
	"github.com/danmuck/cqi/internal/protocol/commands"
)

// callData runs name and unwraps its Data payload as T. Server-reported
// failures come back as *ServerError.
func callData[T protocol.Value](c *Client, name string, args ...protocol.Value) (T, error) {
	var zero T
	res, err := c.Call(commands.MustLookup(name), args...)
	if err != nil {
		return zero, err
	}
	if err := res.Err(); err != nil {
		return zero, err
	}
	v, ok := res.Value.(T)
	if !ok {
		return zero, &UnexpectedResponseError{Command: name, Want: fmt.Sprintf("%T", zero), Got: res.Response}
	}
	return v, nil
}

func callStatus(c *Client, name string, args ...protocol.Value) error {
	res, err := c.Call(commands.MustLookup(name), args...)
	if err != nil {
		return err
	}
	return res.Err()
}

func str(s string) (protocol.String, error) { return protocol.NewString(s) }

func Ping(c *Client) error { return callStatus(c, "CTRL_PING") }

// UserAbort asks the server to cancel the running command. No response is
// read.
func UserAbort(c *Client) error {
	_, err := c.Call(commands.MustLookup("CTRL_USER_ABORT"))
	return err
}

func LastGeneralError(c *Client) (string, error) {
	v, err := callData[protocol.String](c, "CTRL_LAST_GENERAL_ERROR")
	return string(v), err
}

// AskFeature queries one of ASK_FEATURE_CQI_1_0, ASK_FEATURE_CL_2_3 or
// ASK_FEATURE_CQP_2_3.
func AskFeature(c *Client, name string) (bool, error) {
	v, err := callData[protocol.Bool](c, name)
	return bool(v), err
}

func ListCorpora(c *Client) ([]string, error) {
	v, err := callData[protocol.StringList](c, "CORPUS_LIST_CORPORA")
	return []string(v), err
}

func corpusString(c *Client, name, corpus string) (string, error) {
	s, err := str(corpus)
	if err != nil {
		return "", err
	}
	v, err := callData[protocol.String](c, name, s)
	return string(v), err
}

func corpusStrings(c *Client, name, corpus string) ([]string, error) {
	s, err := str(corpus)
	if err != nil {
		return nil, err
	}
	v, err := callData[protocol.StringList](c, name, s)
	return []string(v), err
}

func CorpusCharset(c *Client, corpus string) (string, error) {
	return corpusString(c, "CORPUS_CHARSET", corpus)
}

func CorpusFullName(c *Client, corpus string) (string, error) {
	return corpusString(c, "CORPUS_FULL_NAME", corpus)
}

func CorpusProperties(c *Client, corpus string) ([]string, error) {
	return corpusStrings(c, "CORPUS_PROPERTIES", corpus)
}

func PositionalAttributes(c *Client, corpus string) ([]string, error) {
	return corpusStrings(c, "CORPUS_POSITIONAL_ATTRIBUTES", corpus)
}

func StructuralAttributes(c *Client, corpus string) ([]string, error) {
	return corpusStrings(c, "CORPUS_STRUCTURAL_ATTRIBUTES", corpus)
}

func AlignmentAttributes(c *Client, corpus string) ([]string, error) {
	return corpusStrings(c, "CORPUS_ALIGNMENT_ATTRIBUTES", corpus)
}

func CorpusInfo(c *Client, corpus string) ([]string, error) {
	return corpusStrings(c, "CORPUS_INFO", corpus)
}

func attrInt(c *Client, name, attr string) (int32, error) {
	s, err := str(attr)
	if err != nil {
		return 0, err
	}
	v, err := callData[protocol.Int](c, name, s)
	return int32(v), err
}

func AttributeSize(c *Client, attr string) (int32, error) {
	return attrInt(c, "CL_ATTRIBUTE_SIZE", attr)
}

func LexiconSize(c *Client, attr string) (int32, error) {
	return attrInt(c, "CL_LEXICON_SIZE", attr)
}

func Str2ID(c *Client, attr string, strs []string) ([]int32, error) {
	s, err := str(attr)
	if err != nil {
		return nil, err
	}
	list := make(protocol.StringList, len(strs))
	copy(list, strs)
	v, err := callData[protocol.IntList](c, "CL_STR2ID", s, list)
	return []int32(v), err
}

func attrIntsToStrings(c *Client, name, attr string, ids []int32) ([]string, error) {
	s, err := str(attr)
	if err != nil {
		return nil, err
	}
	v, err := callData[protocol.StringList](c, name, s, protocol.IntList(ids))
	return []string(v), err
}

func attrIntsToInts(c *Client, name, attr string, ids []int32) ([]int32, error) {
	s, err := str(attr)
	if err != nil {
		return nil, err
	}
	v, err := callData[protocol.IntList](c, name, s, protocol.IntList(ids))
	return []int32(v), err
}

func ID2Str(c *Client, attr string, ids []int32) ([]string, error) {
	return attrIntsToStrings(c, "CL_ID2STR", attr, ids)
}

func Cpos2Str(c *Client, attr string, cpos []int32) ([]string, error) {
	return attrIntsToStrings(c, "CL_CPOS2STR", attr, cpos)
}

func Struc2Str(c *Client, attr string, strucs []int32) ([]string, error) {
	return attrIntsToStrings(c, "CL_STRUC2STR", attr, strucs)
}

func ID2Freq(c *Client, attr string, ids []int32) ([]int32, error) {
	return attrIntsToInts(c, "CL_ID2FREQ", attr, ids)
}

func Cpos2ID(c *Client, attr string, cpos []int32) ([]int32, error) {
	return attrIntsToInts(c, "CL_CPOS2ID", attr, cpos)
}

func Cpos2Struc(c *Client, attr string, cpos []int32) ([]int32, error) {
	return attrIntsToInts(c, "CL_CPOS2STRUC", attr, cpos)
}

// Struc2Cpos returns the first and last corpus position of one region.
func Struc2Cpos(c *Client, attr string, struc int32) (start, end int32, err error) {
	s, err := str(attr)
	if err != nil {
		return 0, 0, err
	}
	v, err := callData[protocol.IntPair](c, "CL_STRUC2CPOS", s, protocol.Int(struc))
	return v[0], v[1], err
}

// Alg2Cpos returns source start/end and target start/end of one alignment.
func Alg2Cpos(c *Client, attr string, alg int32) ([4]int32, error) {
	s, err := str(attr)
	if err != nil {
		return [4]int32{}, err
	}
	v, err := callData[protocol.IntQuad](c, "CL_ALG2CPOS", s, protocol.Int(alg))
	return [4]int32(v), err
}

// Query runs a CQP query and stores the result as subcorpus.
func Query(c *Client, motherCorpus, subcorpus, query string) error {
	vals := make([]protocol.Value, 0, 3)
	for _, s := range []string{motherCorpus, subcorpus, query} {
		v, err := str(s)
		if err != nil {
			return err
		}
		vals = append(vals, v)
	}
	return callStatus(c, "CQP_QUERY", vals...)
}

func ListSubcorpora(c *Client, corpus string) ([]string, error) {
	return corpusStrings(c, "CQP_LIST_SUBCORPORA", corpus)
}

func SubcorpusSize(c *Client, subcorpus string) (int32, error) {
	return attrInt(c, "CQP_SUBCORPUS_SIZE", subcorpus)
}

// DumpSubcorpus returns field values for matches first..last.
func DumpSubcorpus(c *Client, subcorpus string, field uint8, first, last int32) ([]int32, error) {
	s, err := str(subcorpus)
	if err != nil {
		return nil, err
	}
	v, err := callData[protocol.IntList](c, "CQP_DUMP_SUBCORPUS", s, protocol.Byte(field), protocol.Int(first), protocol.Int(last))
	return []int32(v), err
}

func DropSubcorpus(c *Client, subcorpus string) error {
	s, err := str(subcorpus)
	if err != nil {
		return err
	}
	return callStatus(c, "CQP_DROP_SUBCORPUS", s)
}
