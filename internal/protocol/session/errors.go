package session

import (
	"errors"
	"fmt"

	"github.com/danmuck/cqi/internal/protocol"
	"github.com/danmuck/cqi/internal/protocol/response"
)

var (
	ErrConnClosed = errors.New("session: connection closed")
	ErrConnBroken = errors.New("session: connection stream is no longer consistent")
	// ErrEmptyRequest is returned by Exchange when given no values.
	ErrEmptyRequest = errors.New("session: empty request")
)

// TransportError is a socket dial/read/write failure or timeout.
type TransportError struct {
	Op   string
	Addr string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("session: %s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Timeout reports whether the failure was a deadline expiry.
func (e *TransportError) Timeout() bool {
	var t interface{ Timeout() bool }
	return errors.As(e.Err, &t) && t.Timeout()
}

// ServerError is a server-reported failure (Error, ClError or CqpError)
// converted to an error by Result.Err.
type ServerError struct {
	Command  string
	Response response.Response
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("session: %s: server reported %s", e.Command, e.Response)
}

// ArgumentError reports arguments that do not match a command signature.
// Index is -1 when the argument count is wrong.
type ArgumentError struct {
	Command   string
	Index     int
	Want      protocol.Kind
	Got       protocol.Kind
	Count     int
	WantCount int
}

func (e *ArgumentError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("session: %s: got %d arguments, want %d", e.Command, e.Count, e.WantCount)
	}
	return fmt.Sprintf("session: %s: argument %d is %s, want %s", e.Command, e.Index, e.Got, e.Want)
}

// UnexpectedResponseError reports a valid response the command does not
// declare, e.g. a Data payload of the wrong shape.
type UnexpectedResponseError struct {
	Command string
	Want    string
	Got     response.Response
}

func (e *UnexpectedResponseError) Error() string {
	return fmt.Sprintf("session: %s: unexpected response %s, want %s", e.Command, e.Got, e.Want)
}
