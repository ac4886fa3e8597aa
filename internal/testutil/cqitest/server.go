// Package cqitest runs a scripted in-process CQi server for tests.
package cqitest

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"testing"

	"github.com/danmuck/cqi/internal/protocol"
	"github.com/danmuck/cqi/internal/protocol/commands"
	"github.com/danmuck/cqi/internal/protocol/response"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
)

const (
	User     = "test"
	Password = "ficken23"
)

// Handler answers one request. args are already decoded per the catalogue
// signature of the opcode.
type Handler func(sc *ServerConn, args []protocol.Value) error

// Reply returns a Handler that answers with code and, for Data codes, v.
func Reply(code response.Code, v protocol.Value) Handler {
	return func(sc *ServerConn, _ []protocol.Value) error {
		return sc.Reply(code, v)
	}
}

// Raw returns a Handler that writes b verbatim.
func Raw(b []byte) Handler {
	return func(sc *ServerConn, _ []protocol.Value) error {
		return sc.WriteRaw(b)
	}
}

// Stall returns a Handler that never answers.
func Stall() Handler {
	return func(sc *ServerConn, _ []protocol.Value) error {
		<-sc.ctx.Done()
		return nil
	}
}

// Server is a minimal CQi peer listening on a loopback port.
type Server struct {
	ln     net.Listener
	cancel context.CancelFunc
	done   chan error

	closeOnce sync.Once
	closeErr  error

	mu       sync.Mutex
	handlers map[commands.Opcode]Handler
	lexicon  []string
	corpora  []string
	requests []commands.Opcode
}

// Start listens on 127.0.0.1:0 and stops the server on test cleanup.
func Start(t testing.TB) *Server {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("cqitest listen: %v", err)
	}
	s := New(ln)
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Logf("cqitest close: %v", err)
		}
	})
	return s
}

// New serves on ln until Close.
func New(ln net.Listener) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		ln:       ln,
		cancel:   cancel,
		done:     make(chan error, 1),
		handlers: map[commands.Opcode]Handler{},
		lexicon:  []string{"the", "old", "curiosity", "shop"},
		corpora:  []string{"DICKENS", "GERMAN-LAW"},
	}
	s.installDefaults()
	go func() { s.done <- s.run(ctx) }()
	return s
}

func (s *Server) Addr() string { return s.ln.Addr().String() }

// Handle replaces the handler for op.
func (s *Server) Handle(op commands.Opcode, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[op] = h
}

// Requests returns the opcodes received so far, in order.
func (s *Server) Requests() []commands.Opcode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]commands.Opcode(nil), s.requests...)
}

func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		s.closeErr = <-s.done
	})
	return s.closeErr
}

func (s *Server) run(ctx context.Context) error {
	g := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError()

	g.Go(func(ctx context.Context) error {
		<-ctx.Done()
		return s.ln.Close()
	})

	g.Go(func(ctx context.Context) error {
		connPool := pool.New().WithContext(ctx)
		for {
			nc, err := s.ln.Accept()
			if err != nil {
				if !errors.Is(err, net.ErrClosed) {
					log.Warn().Err(err).Msg("cqitest accept")
				}
				break
			}
			connPool.Go(func(ctx context.Context) error {
				s.serve(ctx, nc)
				return nil
			})
		}
		return connPool.Wait()
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, net.ErrClosed) {
		err = nil
	}
	return err
}

func (s *Server) serve(ctx context.Context, nc net.Conn) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-ctx.Done()
		_ = nc.Close()
	}()

	bw := bufio.NewWriter(nc)
	sc := &ServerConn{
		ctx: ctx,
		bw:  bw,
		enc: protocol.NewEncoder(bw),
		dec: protocol.NewDecoder(bufio.NewReader(nc), protocol.DefaultLimits()),
	}
	for {
		word, err := sc.dec.ReadWord()
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				log.Debug().Err(err).Msg("cqitest read opcode")
			}
			return
		}
		op := commands.Opcode(word)
		cmd, ok := commands.ByOpcode(op)
		if !ok {
			_ = sc.Reply(response.ErrorSyntax, nil)
			return
		}
		args := make([]protocol.Value, 0, len(cmd.Args))
		for _, k := range cmd.Args {
			v, err := sc.dec.Decode(k)
			if err != nil {
				log.Debug().Err(err).Msgf("cqitest read %s argument", cmd.Name)
				return
			}
			args = append(args, v)
		}

		s.mu.Lock()
		s.requests = append(s.requests, op)
		h := s.handlers[op]
		s.mu.Unlock()
		if h == nil {
			h = Reply(response.ErrorGeneral, nil)
		}
		if err := h(sc, args); err != nil {
			log.Debug().Err(err).Msgf("cqitest handler %s", cmd.Name)
			return
		}
		if op == commands.CtrlBye {
			return
		}
	}
}

// ServerConn is the server side of one accepted connection.
type ServerConn struct {
	ctx context.Context
	bw  *bufio.Writer
	enc *protocol.Encoder
	dec *protocol.Decoder
}

// Reply writes code and, when v is non-nil, its payload.
func (sc *ServerConn) Reply(code response.Code, v protocol.Value) error {
	if err := sc.enc.WriteWord(uint16(code)); err != nil {
		return err
	}
	if v != nil {
		if err := sc.enc.Encode(v); err != nil {
			return err
		}
	}
	return sc.bw.Flush()
}

func (sc *ServerConn) WriteRaw(b []byte) error {
	if _, err := sc.bw.Write(b); err != nil {
		return err
	}
	return sc.bw.Flush()
}

func (s *Server) installDefaults() {
	s.handlers[commands.CtrlConnect] = func(sc *ServerConn, args []protocol.Value) error {
		if args[0] == protocol.String(User) && args[1] == protocol.String(Password) {
			return sc.Reply(response.StatusConnectOK, nil)
		}
		return sc.Reply(response.ErrorConnectRefused, nil)
	}
	s.handlers[commands.CtrlBye] = Reply(response.StatusByeOK, nil)
	s.handlers[commands.CtrlPing] = Reply(response.StatusPingOK, nil)
	s.handlers[commands.CtrlUserAbort] = func(*ServerConn, []protocol.Value) error { return nil }
	s.handlers[commands.CtrlLastGeneralError] = Reply(response.DataString, protocol.String("no error"))
	s.handlers[commands.AskFeatureCQI10] = Reply(response.DataBool, protocol.Bool(true))
	s.handlers[commands.AskFeatureCL23] = Reply(response.DataBool, protocol.Bool(true))
	s.handlers[commands.AskFeatureCQP23] = Reply(response.DataBool, protocol.Bool(false))

	s.handlers[commands.CorpusListCorpora] = func(sc *ServerConn, _ []protocol.Value) error {
		return sc.Reply(response.DataStringList, protocol.StringList(s.corpora))
	}
	s.handlers[commands.CorpusCharset] = Reply(response.DataString, protocol.String("utf8"))
	s.handlers[commands.CorpusFullName] = func(sc *ServerConn, args []protocol.Value) error {
		return sc.Reply(response.DataString, protocol.String(strings.ToLower(string(args[0].(protocol.String)))))
	}
	s.handlers[commands.CorpusPositionalAttributes] = Reply(response.DataStringList, protocol.StringList{"word", "lemma", "pos"})
	s.handlers[commands.CorpusStructuralAttributes] = Reply(response.DataStringList, protocol.StringList{"s", "text"})

	s.handlers[commands.CLAttributeSize] = func(sc *ServerConn, _ []protocol.Value) error {
		return sc.Reply(response.DataInt, protocol.Int(len(s.lexicon)))
	}
	s.handlers[commands.CLLexiconSize] = func(sc *ServerConn, _ []protocol.Value) error {
		return sc.Reply(response.DataInt, protocol.Int(len(s.lexicon)))
	}
	s.handlers[commands.CLID2Str] = func(sc *ServerConn, args []protocol.Value) error {
		ids := args[1].(protocol.IntList)
		out := make(protocol.StringList, len(ids))
		for i, id := range ids {
			if id < 0 || int(id) >= len(s.lexicon) {
				return sc.Reply(response.ClErrorOutOfRange, nil)
			}
			out[i] = s.lexicon[id]
		}
		return sc.Reply(response.DataStringList, out)
	}
	s.handlers[commands.CLStr2ID] = func(sc *ServerConn, args []protocol.Value) error {
		strs := args[1].(protocol.StringList)
		out := make(protocol.IntList, len(strs))
		for i, str := range strs {
			out[i] = -1
			for id, w := range s.lexicon {
				if w == str {
					out[i] = int32(id)
				}
			}
		}
		return sc.Reply(response.DataIntList, out)
	}
	s.handlers[commands.CLID2Freq] = func(sc *ServerConn, args []protocol.Value) error {
		ids := args[1].(protocol.IntList)
		out := make(protocol.IntList, len(ids))
		for i, id := range ids {
			out[i] = id + 1
		}
		return sc.Reply(response.DataIntList, out)
	}
	s.handlers[commands.CLStruc2Cpos] = func(sc *ServerConn, args []protocol.Value) error {
		n := int32(args[1].(protocol.Int))
		return sc.Reply(response.DataIntInt, protocol.IntPair{n * 10, n*10 + 9})
	}
	s.handlers[commands.CLAlg2Cpos] = func(sc *ServerConn, args []protocol.Value) error {
		n := int32(args[1].(protocol.Int))
		return sc.Reply(response.DataIntIntIntInt, protocol.IntQuad{n, n + 1, n + 2, n + 3})
	}

	s.handlers[commands.CQPQuery] = func(sc *ServerConn, args []protocol.Value) error {
		if args[2] == protocol.String("") {
			return sc.Reply(response.CqpErrorGeneral, nil)
		}
		return sc.Reply(response.StatusOK, nil)
	}
	s.handlers[commands.CQPSubcorpusSize] = Reply(response.DataInt, protocol.Int(3))
	s.handlers[commands.CQPDumpSubcorpus] = func(sc *ServerConn, args []protocol.Value) error {
		first, last := int32(args[2].(protocol.Int)), int32(args[3].(protocol.Int))
		if last < first {
			return sc.Reply(response.CqpErrorOutOfRange, nil)
		}
		out := make(protocol.IntList, 0, last-first+1)
		for i := first; i <= last; i++ {
			out = append(out, i*100)
		}
		return sc.Reply(response.DataIntList, out)
	}
	s.handlers[commands.CQPDropSubcorpus] = Reply(response.StatusOK, nil)
}

// Word encodes w big-endian, for use with Raw.
func Word(w uint16) []byte {
	return []byte{byte(w >> 8), byte(w)}
}

func (s *Server) String() string {
	return fmt.Sprintf("cqitest.Server(%s)", s.Addr())
}
