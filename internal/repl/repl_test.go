package repl

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/cqi/internal/protocol"
	"github.com/danmuck/cqi/internal/protocol/commands"
	"github.com/danmuck/cqi/internal/protocol/response"
	"github.com/danmuck/cqi/internal/protocol/session"
	"github.com/danmuck/cqi/internal/testutil/cqitest"
	"github.com/danmuck/cqi/internal/testutil/testlog"
	"github.com/pterm/pterm"
)

func TestTokenize(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		line string
		want []protocol.Value
	}{
		{"CTRL_PING", []protocol.Value{protocol.Word(0x1104)}},
		{"ctrl_connect \"test\" \"ficken23\"", []protocol.Value{protocol.Word(0x1101), protocol.String("test"), protocol.String("ficken23")}},
		{"12 0x0c 0x1101:word 300:word -7:int 0xff:int", []protocol.Value{
			protocol.Byte(12), protocol.Byte(12), protocol.Word(0x1101), protocol.Word(300), protocol.Int(-7), protocol.Int(255),
		}},
		{`"two words" "esc \"q\""`, []protocol.Value{protocol.String("two words"), protocol.String(`esc "q"`)}},
		{`""`, []protocol.Value{protocol.String("")}},
		{"   ", []protocol.Value{}},
	}
	for _, tc := range cases {
		got, err := Tokenize(tc.line)
		if err != nil {
			t.Fatalf("Tokenize(%q): %v", tc.line, err)
		}
		if len(got) != len(tc.want) {
			t.Fatalf("Tokenize(%q) = %v, want %v", tc.line, got, tc.want)
		}
		for i := range got {
			if !protocol.Equal(got[i], tc.want[i]) {
				t.Fatalf("Tokenize(%q)[%d] = %s, want %s", tc.line, i, protocol.Format(got[i]), protocol.Format(tc.want[i]))
			}
		}
	}
}

func TestTokenizeRejects(t *testing.T) {
	testlog.Start(t)
	for _, line := range []string{"256", "70000:word", "1:long", "bareword", `"open`, "0x", "-1"} {
		_, err := Tokenize(line)
		if err == nil {
			t.Fatalf("Tokenize(%q): expected error", line)
		}
		var terr *TokenError
		if !errors.As(err, &terr) && !errors.Is(err, ErrUnterminatedQuote) {
			t.Fatalf("Tokenize(%q): unexpected error type %T", line, err)
		}
	}
}

func TestHistoryPersists(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "nested", "history")
	h := NewHistory(path, 3)
	if loaded, err := h.Load(); err != nil || loaded {
		t.Fatalf("expected empty history, got loaded=%v err=%v", loaded, err)
	}
	for _, l := range []string{"a", "b", "b", "c", "d", " "} {
		h.Add(l)
	}
	if err := h.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}
	again := NewHistory(path, 3)
	if loaded, err := again.Load(); err != nil || !loaded {
		t.Fatalf("expected history, got loaded=%v err=%v", loaded, err)
	}
	if got := strings.Join(again.Entries(), ","); got != "b,c,d" {
		t.Fatalf("unexpected entries %q", got)
	}
}

func TestRunSession(t *testing.T) {
	testlog.Start(t)
	pterm.DisableStyling()
	srv := cqitest.Start(t)
	client, err := session.Connect(context.Background(), session.Config{Address: srv.Addr()})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()

	histPath := filepath.Join(t.TempDir(), "history")
	input := strings.Join([]string{
		"CTRL_PING",
		"CORPUS_LIST_CORPORA",
		`CL_ATTRIBUTE_SIZE "DICKENS.word"`,
		"bogus",
		"CTRL_USER_ABORT",
		".history",
	}, "\n") + "\n"
	var out bytes.Buffer
	r := New(client, NewLineReader(strings.NewReader(input), &out), &out, Options{
		User:      cqitest.User,
		Password:  cqitest.Password,
		AutoLogin: true,
		History:   NewHistory(histPath, 0),
	})
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("run: %v\n%s", err, out.String())
	}

	text := out.String()
	for _, want := range []string{
		"STATUS CONNECT_OK",
		"No previous history.",
		"STATUS PING_OK",
		"DATA STRING_LIST",
		"GERMAN-LAW",
		"DATA INT",
		"4:int",
		`could not parse token "bogus"`,
		"CTRL_USER_ABORT sent",
		"Received EOF",
		"STATUS BYE_OK",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("output missing %q:\n%s", want, text)
		}
	}
	data, err := os.ReadFile(histPath)
	if err != nil {
		t.Fatalf("read history: %v", err)
	}
	if !strings.Contains(string(data), "CORPUS_LIST_CORPORA") {
		t.Fatalf("history not saved: %q", data)
	}
	want := []commands.Opcode{commands.CtrlConnect, commands.CtrlPing, commands.CorpusListCorpora, commands.CLAttributeSize, commands.CtrlUserAbort, commands.CtrlBye}
	got := srv.Requests()
	if len(got) != len(want) {
		t.Fatalf("server saw %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("server saw %v, want %v", got, want)
		}
	}
}

func TestRunStopsOnCancelWhileWaitingForInput(t *testing.T) {
	testlog.Start(t)
	pterm.DisableStyling()
	srv := cqitest.Start(t)
	client, err := session.Connect(context.Background(), session.Config{Address: srv.Addr()})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()

	// input that never arrives
	pr, pw := io.Pipe()
	t.Cleanup(func() { _ = pw.Close() })

	histPath := filepath.Join(t.TempDir(), "history")
	var out bytes.Buffer
	r := New(client, NewLineReader(pr, nil), &out, Options{
		User:      cqitest.User,
		Password:  cqitest.Password,
		AutoLogin: true,
		History:   NewHistory(histPath, 0),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v\n%s", err, out.String())
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("run still blocked after cancel")
	}

	text := out.String()
	for _, want := range []string{"Received CTRL-C", "Closing CQi connection...", "STATUS BYE_OK"} {
		if !strings.Contains(text, want) {
			t.Fatalf("output missing %q:\n%s", want, text)
		}
	}
	got := srv.Requests()
	if len(got) != 2 || got[0] != commands.CtrlConnect || got[1] != commands.CtrlBye {
		t.Fatalf("server saw %v, want [CTRL_CONNECT CTRL_BYE]", got)
	}
	if _, err := os.Stat(histPath); err != nil {
		t.Fatalf("history not saved on cancel: %v", err)
	}
}

func TestExecStopsOnBrokenConn(t *testing.T) {
	testlog.Start(t)
	pterm.DisableStyling()
	srv := cqitest.Start(t)
	srv.Handle(commands.CtrlPing, cqitest.Raw(cqitest.Word(0x0901)))
	client, err := session.Connect(context.Background(), session.Config{Address: srv.Addr()})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()

	var out bytes.Buffer
	r := New(client, NewLineReader(strings.NewReader(""), &out), &out, Options{})
	quit, err := r.Exec("CTRL_PING")
	if !quit || !errors.Is(err, response.ErrUnclassified) {
		t.Fatalf("expected quit on unclassified response, got quit=%v err=%v", quit, err)
	}
	if !strings.Contains(out.String(), "0x0901") {
		t.Fatalf("expected raw word in output: %s", out.String())
	}
}

func TestParseArgsFollowsSignature(t *testing.T) {
	testlog.Start(t)
	vals, err := ParseArgs(commands.MustLookup("CQP_DUMP_SUBCORPUS"), []string{"DICKENS:Last", "0x10", "0", "-1"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := []protocol.Value{protocol.String("DICKENS:Last"), protocol.Byte(0x10), protocol.Int(0), protocol.Int(-1)}
	for i := range want {
		if !protocol.Equal(vals[i], want[i]) {
			t.Fatalf("arg %d = %s, want %s", i, protocol.Format(vals[i]), protocol.Format(want[i]))
		}
	}

	vals, err = ParseArgs(commands.MustLookup("CL_ID2STR"), []string{`"DICKENS.word"`, "0, 1,2"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !protocol.Equal(vals[1], protocol.IntList{0, 1, 2}) || vals[0] != protocol.String("DICKENS.word") {
		t.Fatalf("unexpected values %v", vals)
	}

	if _, err := ParseArgs(commands.MustLookup("CL_ID2STR"), []string{"a"}); err == nil {
		t.Fatalf("expected arity error")
	}
	var terr *TokenError
	if _, err := ParseArgs(commands.MustLookup("CL_ID2STR"), []string{"a", "1,x"}); !errors.As(err, &terr) {
		t.Fatalf("expected token error, got %v", err)
	}
}
