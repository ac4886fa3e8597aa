package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/danmuck/cqi/internal/observability"
	"github.com/danmuck/cqi/internal/protocol"
	"github.com/danmuck/cqi/internal/protocol/commands"
	"github.com/danmuck/cqi/internal/protocol/response"
	"github.com/rs/zerolog/log"
)

// Result is one classified response, with its payload when the response was
// Data. Server-reported failures are Results, not errors.
type Result struct {
	Command  string
	Response response.Response
	Value    protocol.Value
}

// OK reports a Status or Data response.
func (r Result) OK() bool {
	return !r.Response.IsError() && r.Response.Code != 0
}

// Accepted reports whether a CTRL_CONNECT was answered with CONNECT_OK.
func (r Result) Accepted() bool {
	return r.Response.Category == response.CategoryStatus && r.Response.Code == response.StatusConnectOK
}

// Err converts a server-reported failure into a *ServerError.
func (r Result) Err() error {
	if !r.Response.IsError() {
		return nil
	}
	return &ServerError{Command: r.Command, Response: r.Response}
}

func (r Result) String() string {
	if r.Value == nil {
		return r.Response.String()
	}
	return fmt.Sprintf("%s %s", r.Response, protocol.Format(r.Value))
}

// Client dispatches catalogue commands over one Conn.
type Client struct {
	conn *Conn
}

func NewClient(conn *Conn) *Client {
	return &Client{conn: conn}
}

// Connect dials cfg and wraps the Conn in a Client. It does not log in.
func Connect(ctx context.Context, cfg Config) (*Client, error) {
	conn, err := Dial(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewClient(conn), nil
}

func (c *Client) Conn() *Conn { return c.conn }

func (c *Client) Close() error { return c.conn.Close() }

// Exchange writes vals verbatim as one request and reads one response. It
// performs no signature check; the first value is normally the opcode Word.
// A catalogue command that declares no response is only sent. An empty
// request is rejected with ErrEmptyRequest before touching the Conn.
func (c *Client) Exchange(vals ...protocol.Value) (Result, error) {
	name := "RAW"
	if len(vals) == 0 {
		return Result{Command: name}, ErrEmptyRequest
	}
	sendOnly := false
	if len(vals) > 0 {
		if w, ok := vals[0].(protocol.Word); ok {
			name = commands.Opcode(w).String()
			if cmd, ok := commands.ByOpcode(commands.Opcode(w)); ok {
				sendOnly = len(cmd.Returns) == 0
			}
		}
	}
	start := time.Now()
	c.conn.mu.Lock()
	defer c.conn.mu.Unlock()
	if err := c.conn.sendLocked(vals); err != nil {
		observability.RecordCall(name, outcome(Result{}, err), time.Since(start))
		return Result{Command: name}, err
	}
	if sendOnly {
		observability.RecordCall(name, "SENT", time.Since(start))
		return Result{Command: name}, nil
	}
	res, err := c.conn.readResultLocked()
	res.Command = name
	observability.RecordCall(name, outcome(res, err), time.Since(start))
	return res, err
}

// Call sends cmd with args and reads its response. Arguments are checked
// against the catalogue signature before anything is written. A response
// code the command does not declare yields *UnexpectedResponseError along
// with the Result; its payload has already been consumed.
func (c *Client) Call(cmd commands.Command, args ...protocol.Value) (Result, error) {
	if err := checkArgs(cmd, args); err != nil {
		return Result{Command: cmd.Name}, err
	}
	vals := make([]protocol.Value, 0, len(args)+1)
	vals = append(vals, protocol.Word(cmd.Opcode))
	vals = append(vals, args...)

	start := time.Now()
	c.conn.mu.Lock()
	defer c.conn.mu.Unlock()
	if err := c.conn.sendLocked(vals); err != nil {
		observability.RecordCall(cmd.Name, outcome(Result{}, err), time.Since(start))
		return Result{Command: cmd.Name}, err
	}
	if len(cmd.Returns) == 0 {
		log.Debug().Msgf("session.Call cmd=%s sent (no response)", cmd.Name)
		observability.RecordCall(cmd.Name, "SENT", time.Since(start))
		return Result{Command: cmd.Name}, nil
	}
	res, err := c.conn.readResultLocked()
	res.Command = cmd.Name
	observability.RecordCall(cmd.Name, outcome(res, err), time.Since(start))
	if err != nil {
		return res, err
	}
	log.Debug().Msgf("session.Call cmd=%s response=%s elapsed=%s", cmd.Name, res.Response, time.Since(start))
	if !res.Response.IsError() && !cmd.Accepts(res.Response.Code) {
		return res, &UnexpectedResponseError{Command: cmd.Name, Want: returnsString(cmd), Got: res.Response}
	}
	return res, nil
}

// Login sends CTRL_CONNECT. A refusal is reported through the Result
// (Accepted false) with a nil error; only transport, decode and protocol failures are errors.
func (c *Client) Login(user, password string) (Result, error) {
	u, err := protocol.NewString(user)
	if err != nil {
		return Result{Command: "CTRL_CONNECT"}, err
	}
	p, err := protocol.NewString(password)
	if err != nil {
		return Result{Command: "CTRL_CONNECT"}, err
	}
	res, err := c.Call(commands.MustLookup("CTRL_CONNECT"), u, p)
	if err != nil {
		return res, err
	}
	if res.Accepted() {
		log.Info().Msgf("session.Login user=%q addr=%q accepted", user, c.conn.Addr())
	} else {
		log.Warn().Msgf("session.Login user=%q addr=%q refused: %s", user, c.conn.Addr(), res.Response)
	}
	return res, nil
}

// Logout sends CTRL_BYE and returns the server's Status. The caller closes
// the Conn afterwards.
func (c *Client) Logout() (Result, error) {
	res, err := c.Call(commands.MustLookup("CTRL_BYE"))
	if err != nil {
		return res, err
	}
	log.Debug().Msgf("session.Logout addr=%q response=%s", c.conn.Addr(), res.Response)
	return res, res.Err()
}

func checkArgs(cmd commands.Command, args []protocol.Value) error {
	if len(args) != len(cmd.Args) {
		return &ArgumentError{Command: cmd.Name, Index: -1, Count: len(args), WantCount: len(cmd.Args)}
	}
	for i, v := range args {
		if v == nil {
			return fmt.Errorf("session: %s: argument %d: %w", cmd.Name, i, protocol.ErrNilValue)
		}
		if v.Kind() != cmd.Args[i] {
			return &ArgumentError{Command: cmd.Name, Index: i, Want: cmd.Args[i], Got: v.Kind(), Count: len(args), WantCount: len(cmd.Args)}
		}
	}
	return nil
}

func returnsString(cmd commands.Command) string {
	s := ""
	for i, code := range cmd.Returns {
		if i > 0 {
			s += " | "
		}
		s += code.String()
	}
	return s
}

// outcome is the metrics label for one exchange.
func outcome(res Result, err error) string {
	var terr *TransportError
	switch {
	case err == nil:
		return res.Response.Category.String()
	case errors.As(err, &terr):
		if terr.Timeout() {
			return "TIMEOUT"
		}
		return "TRANSPORT"
	case errors.Is(err, response.ErrUnclassified):
		return "UNCLASSIFIED"
	case errors.Is(err, ErrConnClosed), errors.Is(err, ErrConnBroken):
		return "UNUSABLE"
	default:
		return "DECODE"
	}
}
