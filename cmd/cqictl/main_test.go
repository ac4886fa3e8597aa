package main

import (
	"bytes"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/cqi/internal/testutil/cqitest"
	"github.com/danmuck/cqi/internal/testutil/testlog"
	"github.com/pterm/pterm"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	pterm.DisableStyling()
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func serverFlags(t *testing.T, srv *cqitest.Server, password string) []string {
	t.Helper()
	host, port, err := net.SplitHostPort(srv.Addr())
	if err != nil {
		t.Fatalf("split addr: %v", err)
	}
	return []string{"--host", host, "--port", port, "--user", cqitest.User, "--password", password}
}

func TestVersionAndCommands(t *testing.T) {
	testlog.Start(t)
	out, err := run(t, "version")
	if err != nil || !strings.Contains(out, "CQi 0.1") {
		t.Fatalf("version: %q %v", out, err)
	}
	out, err = run(t, "commands", "cl_id2")
	if err != nil {
		t.Fatalf("commands: %v", err)
	}
	if !strings.Contains(out, "CL_ID2STR(STRING, INT_LIST)") || strings.Contains(out, "CTRL_PING") {
		t.Fatalf("unexpected filtered catalogue:\n%s", out)
	}
}

func TestCallAgainstServer(t *testing.T) {
	testlog.Start(t)
	srv := cqitest.Start(t)

	args := append(serverFlags(t, srv, cqitest.Password), "call", "CL_ID2STR", "DICKENS.word", "0,1,2")
	out, err := run(t, args...)
	if err != nil {
		t.Fatalf("call: %v\n%s", err, out)
	}
	for _, want := range []string{"DATA STRING_LIST", "curiosity"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}

	args = append(serverFlags(t, srv, cqitest.Password), "call", "CQP_QUERY", "DICKENS", "Last", `""`)
	if _, err := run(t, args...); err == nil || !strings.Contains(err.Error(), "GENERAL") {
		t.Fatalf("expected server error to fail the command, got %v", err)
	}

	args = append(serverFlags(t, srv, "wrong"), "call", "CTRL_PING")
	if _, err := run(t, args...); err == nil || !strings.Contains(err.Error(), "CONNECT_REFUSED") {
		t.Fatalf("expected refused login, got %v", err)
	}

	if _, err := run(t, "call", "NOPE"); err == nil {
		t.Fatalf("expected unknown command error")
	}
}

func TestPingReportsDownTargets(t *testing.T) {
	testlog.Start(t)
	srv := cqitest.Start(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	dead := ln.Addr().String()
	_ = ln.Close()

	args := append(serverFlags(t, srv, cqitest.Password), "ping", srv.Addr())
	if out, err := run(t, args...); err != nil || !strings.Contains(out, "up") {
		t.Fatalf("ping live: %q %v", out, err)
	}
	args = append(serverFlags(t, srv, cqitest.Password), "ping", srv.Addr(), dead)
	if _, err := run(t, args...); err == nil || !strings.Contains(err.Error(), "1 of 2") {
		t.Fatalf("expected one target down, got %v", err)
	}
}

func TestResolveConfigFlagsOverrideFile(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "cqictl.toml")
	body := "host = \"file-host\"\nport = 4999\nuser = \"file-user\"\nread_timeout = \"3s\"\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	root := newRootCommand()
	root.SetArgs([]string{"--config", path, "--port", "5000", "--timeout", "750ms", "commands"})
	root.SetOut(&bytes.Buffer{})
	got, err := root.ExecuteC()
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	cfg, err := resolveConfig(got)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.Host != "file-host" || cfg.Port != 5000 || cfg.User != "file-user" {
		t.Fatalf("unexpected identity %+v", cfg)
	}
	if cfg.ReadTimeout != 750*time.Millisecond || cfg.WriteTimeout != 750*time.Millisecond {
		t.Fatalf("expected timeout flag to win, got %+v", cfg)
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "cqictl.toml")
	if out, err := run(t, "config", "init", path); err != nil || !strings.Contains(out, "Wrote config template") {
		t.Fatalf("init: %q %v", out, err)
	}
	if _, err := run(t, "config", "init", path); err == nil {
		t.Fatalf("expected overwrite refusal")
	}
	if out, err := run(t, "config", "validate", path); err != nil || !strings.Contains(out, "localhost:4877") {
		t.Fatalf("validate: %q %v", out, err)
	}
}
