package session

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/cqi/internal/protocol"
	"github.com/danmuck/cqi/internal/protocol/response"
	"github.com/rs/zerolog/log"
)

// Conn owns one TCP socket to a CQi server. Requests are encoded into a
// scratch buffer and written in one call, so a value that fails to encode
// never leaves a partial request on the wire.
type Conn struct {
	mu  sync.Mutex
	cfg Config
	nc  net.Conn

	req bytes.Buffer
	enc *protocol.Encoder
	dec *protocol.Decoder

	broken    error
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// Dial connects to cfg.Address. Failure is a *TransportError.
func Dial(ctx context.Context, cfg Config) (*Conn, error) {
	cfg = cfg.WithDefaults()
	dialer := net.Dialer{Timeout: cfg.ConnectTimeout}
	nc, err := dialer.DialContext(ctx, "tcp", cfg.Address)
	if err != nil {
		log.Warn().Str("addr", cfg.Address).Err(err).Msg("session.Dial failed")
		return nil, &TransportError{Op: "dial", Addr: cfg.Address, Err: err}
	}
	log.Debug().Msgf("session.Dial addr=%q local=%s", cfg.Address, nc.LocalAddr())
	return NewConn(nc, cfg), nil
}

// NewConn wraps an established connection.
func NewConn(nc net.Conn, cfg Config) *Conn {
	cfg = cfg.WithDefaults()
	c := &Conn{cfg: cfg, nc: nc}
	c.enc = protocol.NewEncoder(&c.req)
	c.dec = protocol.NewDecoder(bufio.NewReader(nc), cfg.Limits)
	return c
}

func (c *Conn) Addr() string { return c.cfg.Address }

func (c *Conn) Config() Config { return c.cfg }

// Err returns the failure that made the stream unusable, if any.
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.broken
}

// Close tears the socket down. It does not wait for an in-flight exchange;
// closing aborts any blocked read or write.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.closeErr = c.nc.Close()
		log.Debug().Msgf("session.Conn.Close addr=%q", c.cfg.Address)
	})
	return c.closeErr
}

// Send writes one value and flushes it.
func (c *Conn) Send(v protocol.Value) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sendLocked([]protocol.Value{v})
}

// Receive reads one value of kind k.
func (c *Conn) Receive(k protocol.Kind) (protocol.Value, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.receiveLocked(k)
}

// ReadResponse reads and classifies one response word. For Data responses
// the caller must Receive the named kind next.
func (c *Conn) ReadResponse() (response.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readResponseLocked()
}

func (c *Conn) usable() error {
	if c.closed.Load() {
		return ErrConnClosed
	}
	if c.broken != nil {
		return fmt.Errorf("%w: %v", ErrConnBroken, c.broken)
	}
	return nil
}

func (c *Conn) sendLocked(vals []protocol.Value) error {
	if err := c.usable(); err != nil {
		return err
	}
	c.req.Reset()
	if err := c.enc.EncodeAll(vals...); err != nil {
		return err
	}
	if err := c.nc.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout)); err != nil {
		return c.fail("write", err)
	}
	if _, err := c.nc.Write(c.req.Bytes()); err != nil {
		return c.fail("write", err)
	}
	log.Trace().Msgf("session.Conn.send addr=%q values=%d bytes=%d", c.cfg.Address, len(vals), c.req.Len())
	return nil
}

func (c *Conn) armRead() error {
	if err := c.usable(); err != nil {
		return err
	}
	if err := c.nc.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout)); err != nil {
		return c.fail("read", err)
	}
	return nil
}

func (c *Conn) receiveLocked(k protocol.Kind) (protocol.Value, error) {
	if err := c.armRead(); err != nil {
		return nil, err
	}
	v, err := c.dec.Decode(k)
	if err != nil {
		return nil, c.decodeFailure(fmt.Sprintf("read %s", k), err)
	}
	return v, nil
}

func (c *Conn) readResponseLocked() (response.Response, error) {
	if err := c.armRead(); err != nil {
		return response.Response{}, err
	}
	word, err := c.dec.ReadWord()
	if err != nil {
		return response.Response{}, c.decodeFailure("read response", err)
	}
	r, err := response.Classify(word)
	if err != nil {
		var unc *response.UnclassifiedError
		// Without a known Data code the payload length is unknown.
		if errors.As(err, &unc) && (!unc.KnownCategory() || response.Category(word>>8) == response.CategoryData) {
			c.markBroken(err)
		}
		log.Warn().Msgf("session.Conn.readResponse addr=%q word=0x%04X err=%v", c.cfg.Address, word, err)
		return response.Response{}, err
	}
	return r, nil
}

// readResultLocked performs classify -> decode for one response.
func (c *Conn) readResultLocked() (Result, error) {
	r, err := c.readResponseLocked()
	if err != nil {
		return Result{}, err
	}
	res := Result{Response: r}
	k, ok := r.DataKind()
	if !ok {
		return res, nil
	}
	v, err := c.receiveLocked(k)
	if err != nil {
		return res, err
	}
	res.Value = v
	return res, nil
}

// decodeFailure classifies a read error. Codec errors that leave the stream
// aligned pass through untouched; everything else breaks the Conn. A stream
// that ends early is reported as a transport failure.
func (c *Conn) decodeFailure(op string, err error) error {
	switch {
	case c.closed.Load():
		return c.fail(op, err)
	case errors.Is(err, protocol.ErrInvalidUTF8):
		return err
	case errors.Is(err, protocol.ErrInvalidLength),
		errors.Is(err, protocol.ErrTooLarge):
		c.markBroken(err)
		return fmt.Errorf("session: %s: %w", op, err)
	default:
		return c.fail(op, err)
	}
}

func (c *Conn) fail(op string, err error) error {
	if c.closed.Load() && !errors.Is(err, ErrConnClosed) {
		err = fmt.Errorf("%w: %w", ErrConnClosed, err)
	}
	terr := &TransportError{Op: op, Addr: c.cfg.Address, Err: err}
	c.markBroken(terr)
	log.Warn().Msgf("session.Conn %s addr=%q err=%v", op, c.cfg.Address, err)
	return terr
}

func (c *Conn) markBroken(err error) {
	if c.broken == nil {
		c.broken = err
	}
}
