package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/cqi/internal/testutil/testlog"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cqictl.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadKeepsDefaultsForMissingKeys(t *testing.T) {
	testlog.Start(t)
	path := writeConfig(t, `host = "cqp.example"`+"\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	def := DefaultClientConfig()
	if cfg.Host != "cqp.example" {
		t.Fatalf("expected host override, got %q", cfg.Host)
	}
	if cfg.Port != 4877 || cfg.ReadTimeout != def.ReadTimeout || cfg.MaxElements != def.MaxElements {
		t.Fatalf("expected defaults to survive, got %+v", cfg)
	}
	if got := cfg.Session().Address; got != "cqp.example:4877" {
		t.Fatalf("unexpected session address %q", got)
	}
}

func TestLoadOverrides(t *testing.T) {
	testlog.Start(t)
	path := writeConfig(t, `
host = "10.0.0.7"
port = 4878
user = "test"
password = "ficken23"
read_timeout = "250ms"
write_timeout = "1s"
max_elements = 1024

[probe]
interval = "3s"
targets = [" a:4877 ", "", "b:4877"]
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Address() != "10.0.0.7:4878" || cfg.User != "test" || cfg.Password != "ficken23" {
		t.Fatalf("unexpected identity %+v", cfg)
	}
	if cfg.ReadTimeout != 250*time.Millisecond || cfg.WriteTimeout != time.Second {
		t.Fatalf("unexpected timeouts %+v", cfg)
	}
	if cfg.Session().Limits.MaxElements != 1024 {
		t.Fatalf("unexpected limits %+v", cfg.Session().Limits)
	}
	if cfg.Probe.Interval != 3*time.Second || len(cfg.Probe.Targets) != 2 || cfg.Probe.Targets[0] != "a:4877" {
		t.Fatalf("unexpected probe config %+v", cfg.Probe)
	}
	if cfg.Probe.Listen != ":9477" {
		t.Fatalf("expected default probe listen, got %q", cfg.Probe.Listen)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	testlog.Start(t)
	cases := map[string]string{
		"bad duration": `read_timeout = "soon"`,
		"bad port":     `port = 70000`,
		"empty host":   `host = " "`,
		"not toml":     `host = `,
	}
	for name, body := range cases {
		if _, err := Load(writeConfig(t, body+"\n")); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatalf("expected missing file error")
	}
}

func TestTemplateParsesAndRefusesOverwrite(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "cqictl.toml")
	if err := WriteTemplate(path, false); err != nil {
		t.Fatalf("write template: %v", err)
	}
	var raw fileConfig
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		t.Fatalf("template does not parse: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load template: %v", err)
	}
	if !strings.HasSuffix(cfg.HistoryFile, ".cqi_history") || len(cfg.Probe.Targets) != 1 {
		t.Fatalf("unexpected template config %+v", cfg)
	}
	if err := WriteTemplate(path, false); err == nil {
		t.Fatalf("expected overwrite refusal")
	}
}
