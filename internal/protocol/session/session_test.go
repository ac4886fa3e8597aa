package session

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/danmuck/cqi/internal/protocol"
	"github.com/danmuck/cqi/internal/protocol/commands"
	"github.com/danmuck/cqi/internal/protocol/response"
	"github.com/danmuck/cqi/internal/testutil/cqitest"
	"github.com/danmuck/cqi/internal/testutil/testlog"
)

func dialTest(t *testing.T, srv *cqitest.Server, read time.Duration) *Client {
	t.Helper()
	cfg := Config{Address: srv.Addr(), ReadTimeout: read}
	c, err := Connect(context.Background(), cfg)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestLoginAcceptedAndRefused(t *testing.T) {
	testlog.Start(t)
	srv := cqitest.Start(t)

	c := dialTest(t, srv, 0)
	res, err := c.Login(cqitest.User, cqitest.Password)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if res.Response.Category != response.CategoryStatus || res.Response.Code != response.StatusConnectOK {
		t.Fatalf("expected STATUS CONNECT_OK, got %s", res.Response)
	}
	if res.Response.Word>>8 != 0x01 {
		t.Fatalf("expected status high byte, got 0x%04X", res.Response.Word)
	}
	if !res.Accepted() {
		t.Fatalf("expected accepted login, got %s", res.Response)
	}

	refused := dialTest(t, srv, 0)
	res, err = refused.Login(cqitest.User, "wrong")
	if err != nil {
		t.Fatalf("refused login must not be an error, got %v", err)
	}
	if res.Response.Code != response.ErrorConnectRefused || res.Response.Word != 0x0202 {
		t.Fatalf("expected CONNECT_REFUSED, got %s", res.Response)
	}
	if res.Accepted() {
		t.Fatalf("refused login must not report Accepted")
	}
	var serr *ServerError
	if !errors.As(res.Err(), &serr) {
		t.Fatalf("expected Result.Err to be a *ServerError, got %v", res.Err())
	}

	// the refused conn is still aligned
	if err := Ping(refused); err != nil {
		t.Fatalf("ping after refusal: %v", err)
	}
}

func TestID2StrReturnsStringList(t *testing.T) {
	testlog.Start(t)
	srv := cqitest.Start(t)
	c := dialTest(t, srv, 0)

	attr, _ := protocol.NewString("attribute")
	res, err := c.Call(commands.MustLookup("CL_ID2STR"), attr, protocol.IntList{0, 1, 2})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if res.Response.Code != response.DataStringList {
		t.Fatalf("expected DATA STRING_LIST, got %s", res.Response)
	}
	list, ok := res.Value.(protocol.StringList)
	if !ok || len(list) != 3 {
		t.Fatalf("expected 3 strings, got %#v", res.Value)
	}
	if list[0] != "the" || list[2] != "curiosity" {
		t.Fatalf("unexpected strings %v", list)
	}
}

func TestTypedHelpers(t *testing.T) {
	testlog.Start(t)
	srv := cqitest.Start(t)
	c := dialTest(t, srv, 0)
	if _, err := c.Login(cqitest.User, cqitest.Password); err != nil {
		t.Fatalf("login: %v", err)
	}

	corpora, err := ListCorpora(c)
	if err != nil || len(corpora) != 2 || corpora[0] != "DICKENS" {
		t.Fatalf("list corpora: %v %v", corpora, err)
	}
	name, err := CorpusFullName(c, "DICKENS")
	if err != nil || name != "dickens" {
		t.Fatalf("full name: %q %v", name, err)
	}
	ids, err := Str2ID(c, "DICKENS.word", []string{"shop", "missing"})
	if err != nil || len(ids) != 2 || ids[0] != 3 || ids[1] != -1 {
		t.Fatalf("str2id: %v %v", ids, err)
	}
	start, end, err := Struc2Cpos(c, "DICKENS.s", 2)
	if err != nil || start != 20 || end != 29 {
		t.Fatalf("struc2cpos: %d %d %v", start, end, err)
	}
	quad, err := Alg2Cpos(c, "DICKENS.alg", 5)
	if err != nil || quad != [4]int32{5, 6, 7, 8} {
		t.Fatalf("alg2cpos: %v %v", quad, err)
	}
	ok, err := AskFeature(c, "ASK_FEATURE_CQP_2_3")
	if err != nil || ok {
		t.Fatalf("ask feature: %v %v", ok, err)
	}
	if err := Query(c, "DICKENS", "Last", `[word="shop"]`); err != nil {
		t.Fatalf("query: %v", err)
	}
	dump, err := DumpSubcorpus(c, "DICKENS:Last", commands.FieldMatch, 0, 2)
	if err != nil || len(dump) != 3 || dump[2] != 200 {
		t.Fatalf("dump: %v %v", dump, err)
	}

	err = Query(c, "DICKENS", "Last", "")
	var serr *ServerError
	if !errors.As(err, &serr) || serr.Response.Code != response.CqpErrorGeneral {
		t.Fatalf("expected CQP error, got %v", err)
	}
	if _, err := ID2Str(c, "DICKENS.word", []int32{99}); !errors.As(err, &serr) || serr.Response.Category != response.CategoryClError {
		t.Fatalf("expected CL error, got %v", err)
	}

	if err := UserAbort(c); err != nil {
		t.Fatalf("user abort: %v", err)
	}
	res, err := c.Logout()
	if err != nil || res.Response.Code != response.StatusByeOK {
		t.Fatalf("logout: %s %v", res.Response, err)
	}
}

func TestArgumentErrorsSendNothing(t *testing.T) {
	testlog.Start(t)
	srv := cqitest.Start(t)
	c := dialTest(t, srv, 0)

	var aerr *ArgumentError
	_, err := c.Call(commands.MustLookup("CL_ID2STR"), protocol.String("attr"))
	if !errors.As(err, &aerr) || aerr.Index != -1 || aerr.WantCount != 2 {
		t.Fatalf("expected count error, got %v", err)
	}
	_, err = c.Call(commands.MustLookup("CL_ID2STR"), protocol.String("attr"), protocol.StringList{"x"})
	if !errors.As(err, &aerr) || aerr.Index != 1 || aerr.Want != protocol.KindIntList {
		t.Fatalf("expected kind error, got %v", err)
	}
	_, err = c.Call(commands.MustLookup("CORPUS_CHARSET"), protocol.String("bad\xff"))
	if !errors.Is(err, protocol.ErrInvalidUTF8) {
		t.Fatalf("expected invalid utf8 error, got %v", err)
	}

	if err := Ping(c); err != nil {
		t.Fatalf("ping after rejected calls: %v", err)
	}
	reqs := srv.Requests()
	if len(reqs) != 1 || reqs[0] != commands.CtrlPing {
		t.Fatalf("expected only the ping on the wire, got %v", reqs)
	}
}

func TestExchangeRejectsEmptyRequest(t *testing.T) {
	testlog.Start(t)
	srv := cqitest.Start(t)
	c := dialTest(t, srv, 200*time.Millisecond)

	if _, err := c.Exchange(); !errors.Is(err, ErrEmptyRequest) {
		t.Fatalf("expected ErrEmptyRequest, got %v", err)
	}
	if c.Conn().Err() != nil {
		t.Fatalf("empty request must not break the conn: %v", c.Conn().Err())
	}
	res, err := c.Exchange(protocol.Word(commands.CtrlPing))
	if err != nil || res.Response.Code != response.StatusPingOK {
		t.Fatalf("exchange ping: %s %v", res.Response, err)
	}
	reqs := srv.Requests()
	if len(reqs) != 1 || reqs[0] != commands.CtrlPing {
		t.Fatalf("expected only the ping on the wire, got %v", reqs)
	}
}

func TestReadTimeoutIsTransportErrorAndBreaksConn(t *testing.T) {
	testlog.Start(t)
	srv := cqitest.Start(t)
	srv.Handle(commands.CtrlPing, cqitest.Stall())
	c := dialTest(t, srv, 50*time.Millisecond)

	err := Ping(c)
	var terr *TransportError
	if !errors.As(err, &terr) || !terr.Timeout() {
		t.Fatalf("expected timeout transport error, got %v", err)
	}
	if c.Conn().Err() == nil {
		t.Fatalf("expected conn to be marked broken")
	}
	if err := Ping(c); !errors.Is(err, ErrConnBroken) {
		t.Fatalf("expected ErrConnBroken, got %v", err)
	}
}

func TestUnclassifiedResponse(t *testing.T) {
	testlog.Start(t)
	srv := cqitest.Start(t)
	c := dialTest(t, srv, 0)

	srv.Handle(commands.CtrlPing, cqitest.Raw(cqitest.Word(0x0199)))
	err := Ping(c)
	var unc *response.UnclassifiedError
	if !errors.As(err, &unc) || unc.Word != 0x0199 {
		t.Fatalf("expected unclassified 0x0199, got %v", err)
	}
	if c.Conn().Err() != nil {
		t.Fatalf("unknown status code must not break the conn: %v", c.Conn().Err())
	}

	srv.Handle(commands.CtrlPing, cqitest.Raw(cqitest.Word(0x0901)))
	if err := Ping(c); !errors.Is(err, response.ErrUnclassified) {
		t.Fatalf("expected unclassified, got %v", err)
	}
	if c.Conn().Err() == nil {
		t.Fatalf("unknown category must break the conn")
	}
}

func TestInvalidUTF8KeepsConnUsable(t *testing.T) {
	testlog.Start(t)
	srv := cqitest.Start(t)
	c := dialTest(t, srv, 0)

	payload := append(cqitest.Word(uint16(response.DataString)), 0x00, 0x02, 0xff, 0xfe)
	srv.Handle(commands.CtrlLastGeneralError, cqitest.Raw(payload))
	if _, err := LastGeneralError(c); !errors.Is(err, protocol.ErrInvalidUTF8) {
		t.Fatalf("expected invalid utf8, got %v", err)
	}
	if err := Ping(c); err != nil {
		t.Fatalf("ping after invalid utf8: %v", err)
	}
}

func TestUnexpectedDataShape(t *testing.T) {
	testlog.Start(t)
	srv := cqitest.Start(t)
	c := dialTest(t, srv, 0)

	srv.Handle(commands.CorpusListCorpora, cqitest.Reply(response.DataInt, protocol.Int(7)))
	_, err := ListCorpora(c)
	var uerr *UnexpectedResponseError
	if !errors.As(err, &uerr) || uerr.Got.Code != response.DataInt {
		t.Fatalf("expected unexpected response, got %v", err)
	}
	if err := Ping(c); err != nil {
		t.Fatalf("ping after unexpected shape: %v", err)
	}
}

func TestCloseAbortsAndRejects(t *testing.T) {
	testlog.Start(t)
	srv := cqitest.Start(t)
	srv.Handle(commands.CtrlPing, cqitest.Stall())
	c := dialTest(t, srv, 5*time.Second)

	done := make(chan error, 1)
	go func() { done <- Ping(c) }()
	time.Sleep(50 * time.Millisecond)
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	select {
	case err := <-done:
		if !errors.Is(err, ErrConnClosed) {
			t.Fatalf("expected ErrConnClosed from aborted read, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("close did not abort the blocked read")
	}
	if err := Ping(c); !errors.Is(err, ErrConnClosed) {
		t.Fatalf("expected ErrConnClosed after close, got %v", err)
	}
}

func TestDialFailureIsTransportError(t *testing.T) {
	testlog.Start(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	_, err = Connect(context.Background(), Config{Address: addr, ConnectTimeout: time.Second})
	var terr *TransportError
	if !errors.As(err, &terr) || terr.Op != "dial" {
		t.Fatalf("expected dial transport error, got %v", err)
	}
}

func TestNormalizeAddress(t *testing.T) {
	cases := map[string]string{
		"":              "localhost:4877",
		"cqp.example":   "cqp.example:4877",
		":9000":         "localhost:9000",
		"10.0.0.1:4878": "10.0.0.1:4878",
		"[::1]":         "[::1]:4877",
		"  host:1234  ": "host:1234",
	}
	for in, want := range cases {
		if got := NormalizeAddress(in); got != want {
			t.Fatalf("NormalizeAddress(%q) = %q, want %q", in, got, want)
		}
	}
	cfg := Config{}.WithDefaults()
	if cfg.ReadTimeout != 2*time.Second || cfg.WriteTimeout != 2*time.Second {
		t.Fatalf("unexpected default timeouts %+v", cfg)
	}
}
