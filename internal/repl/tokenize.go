package repl

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/danmuck/cqi/internal/protocol"
	"github.com/danmuck/cqi/internal/protocol/commands"
)

var (
	ErrUnterminatedQuote = errors.New("repl: unterminated quoted string")
	ErrBadToken          = errors.New("repl: could not parse token")
)

// TokenError names the token that failed to parse.
type TokenError struct {
	Token string
	Err   error
}

func (e *TokenError) Error() string {
	return fmt.Sprintf("could not parse token %q: %v", e.Token, e.Err)
}

func (e *TokenError) Unwrap() error { return e.Err }

// Tokenize turns one REPL line into wire values. Precedence per token:
// catalogue command name (Word opcode), number with optional :byte, :word or
// :int suffix and 0x radix (default byte), double-quoted string.
func Tokenize(line string) ([]protocol.Value, error) {
	fields, err := splitFields(line)
	if err != nil {
		return nil, err
	}
	vals := make([]protocol.Value, 0, len(fields))
	for _, f := range fields {
		v, err := ParseToken(f)
		if err != nil {
			return nil, err
		}
		vals = append(vals, v)
	}
	return vals, nil
}

// ParseToken parses a single token.
func ParseToken(tok string) (protocol.Value, error) {
	if cmd, ok := commands.Lookup(tok); ok {
		return protocol.Word(cmd.Opcode), nil
	}
	if strings.HasPrefix(tok, `"`) {
		s, err := strconv.Unquote(tok)
		if err != nil {
			return nil, &TokenError{Token: tok, Err: err}
		}
		v, err := protocol.NewString(s)
		if err != nil {
			return nil, &TokenError{Token: tok, Err: err}
		}
		return v, nil
	}
	v, err := parseNumber(tok)
	if err != nil {
		return nil, &TokenError{Token: tok, Err: err}
	}
	return v, nil
}

func parseNumber(tok string) (protocol.Value, error) {
	num, suffix, hasSuffix := strings.Cut(tok, ":")
	if !hasSuffix {
		suffix = "byte"
	}
	base := 10
	neg := strings.HasPrefix(num, "-")
	digits := strings.TrimPrefix(num, "-")
	if strings.HasPrefix(digits, "0x") || strings.HasPrefix(digits, "0X") {
		base = 16
		digits = digits[2:]
	}
	if digits == "" {
		return nil, ErrBadToken
	}
	if neg {
		digits = "-" + digits
	}
	switch strings.ToLower(suffix) {
	case "byte":
		n, err := strconv.ParseUint(digits, base, 8)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrBadToken, err)
		}
		return protocol.Byte(n), nil
	case "word":
		n, err := strconv.ParseUint(digits, base, 16)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrBadToken, err)
		}
		return protocol.Word(n), nil
	case "int":
		n, err := strconv.ParseInt(digits, base, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrBadToken, err)
		}
		return protocol.Int(n), nil
	default:
		return nil, fmt.Errorf("%w: unknown suffix %q", ErrBadToken, suffix)
	}
}

// splitFields splits on ASCII whitespace, keeping double-quoted runs
// (with backslash escapes) in one field.
func splitFields(line string) ([]string, error) {
	var (
		fields []string
		cur    strings.Builder
		quoted bool
		escape bool
		inTok  bool
	)
	flush := func() {
		if inTok {
			fields = append(fields, cur.String())
			cur.Reset()
			inTok = false
		}
	}
	for i := 0; i < len(line); i++ {
		ch := line[i]
		switch {
		case quoted && escape:
			cur.WriteByte(ch)
			escape = false
		case quoted && ch == '\\':
			cur.WriteByte(ch)
			escape = true
		case ch == '"':
			cur.WriteByte(ch)
			inTok = true
			quoted = !quoted
		case !quoted && (ch == ' ' || ch == '\t' || ch == '\r' || ch == '\n'):
			flush()
		default:
			cur.WriteByte(ch)
			inTok = true
		}
	}
	if quoted {
		return nil, ErrUnterminatedQuote
	}
	flush()
	return fields, nil
}

// ParseArgs converts plain command-line arguments into the kinds cmd
// declares. Lists are comma separated; a quoted String is unquoted.
func ParseArgs(cmd commands.Command, raw []string) ([]protocol.Value, error) {
	if len(raw) != len(cmd.Args) {
		return nil, fmt.Errorf("%s takes %d argument(s), got %d: %s", cmd.Name, len(cmd.Args), len(raw), cmd.Signature())
	}
	vals := make([]protocol.Value, len(raw))
	for i, arg := range raw {
		v, err := parseArg(cmd.Args[i], arg)
		if err != nil {
			return nil, fmt.Errorf("%s argument %d (%s): %w", cmd.Name, i, cmd.Args[i], &TokenError{Token: arg, Err: err})
		}
		vals[i] = v
	}
	return vals, nil
}

func parseArg(k protocol.Kind, arg string) (protocol.Value, error) {
	switch k {
	case protocol.KindString:
		if strings.HasPrefix(arg, `"`) {
			s, err := strconv.Unquote(arg)
			if err != nil {
				return nil, err
			}
			arg = s
		}
		return protocol.NewString(arg)
	case protocol.KindByte:
		return parseNumber(withSuffix(arg, "byte"))
	case protocol.KindWord:
		return parseNumber(withSuffix(arg, "word"))
	case protocol.KindInt:
		return parseNumber(withSuffix(arg, "int"))
	case protocol.KindStringList:
		list := protocol.StringList{}
		for _, s := range splitList(arg) {
			v, err := protocol.NewString(s)
			if err != nil {
				return nil, err
			}
			list = append(list, string(v))
		}
		return list, nil
	case protocol.KindIntList:
		list := protocol.IntList{}
		for _, s := range splitList(arg) {
			v, err := parseNumber(withSuffix(s, "int"))
			if err != nil {
				return nil, err
			}
			n, ok := v.(protocol.Int)
			if !ok {
				return nil, fmt.Errorf("%w: list element %q is not an int", ErrBadToken, s)
			}
			list = append(list, int32(n))
		}
		return list, nil
	default:
		return nil, fmt.Errorf("%w: %s arguments are not supported", ErrBadToken, k)
	}
}

func withSuffix(tok, suffix string) string {
	if strings.Contains(tok, ":") {
		return tok
	}
	return tok + ":" + suffix
}

func splitList(arg string) []string {
	if strings.TrimSpace(arg) == "" {
		return nil
	}
	parts := strings.Split(arg, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
