// Package protocol owns the CQi value model and its wire codec.
//
// Ownership boundary:
// - the closed set of wire-representable values (types.go, values.go)
// - per-scalar codecs and the generic list/table routines (scalar.go)
// - encode/decode entry points over io.Writer/io.Reader (encode.go, decode.go)
//
// Decoding is not self-describing: callers pass the Kind they expect, either
// from the command schema or from the Data code read by package response.
// All multi-byte integers are big-endian. Lists and tables carry Int-width
// counts; strings carry a Word-width byte length.
package protocol
