package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/cqi/internal/protocol"
	"github.com/danmuck/cqi/internal/protocol/commands"
	"github.com/danmuck/cqi/internal/protocol/session"
)

// ClientConfig is the resolved cqictl configuration.
type ClientConfig struct {
	Host           string
	Port           int
	User           string
	Password       string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxElements    int
	HistoryFile    string
	Probe          ProbeConfig
}

// ProbeConfig drives `cqictl probe`.
type ProbeConfig struct {
	Listen      string
	Interval    time.Duration
	Targets     []string
	CorsOrigins []string
}

type fileConfig struct {
	Host           string    `toml:"host"`
	Port           int       `toml:"port"`
	User           string    `toml:"user"`
	Password       string    `toml:"password"`
	ConnectTimeout string    `toml:"connect_timeout"`
	ReadTimeout    string    `toml:"read_timeout"`
	WriteTimeout   string    `toml:"write_timeout"`
	MaxElements    int       `toml:"max_elements"`
	HistoryFile    string    `toml:"history_file"`
	Probe          fileProbe `toml:"probe"`
}

type fileProbe struct {
	Listen      string   `toml:"listen"`
	Interval    string   `toml:"interval"`
	Targets     []string `toml:"targets"`
	CorsOrigins []string `toml:"cors_origins"`
}

func DefaultClientConfig() ClientConfig {
	sess := session.DefaultConfig()
	return ClientConfig{
		Host:           session.DefaultHost,
		Port:           commands.DefaultPort,
		User:           "anonymous",
		Password:       "",
		ConnectTimeout: sess.ConnectTimeout,
		ReadTimeout:    sess.ReadTimeout,
		WriteTimeout:   sess.WriteTimeout,
		MaxElements:    sess.Limits.MaxElements,
		HistoryFile:    defaultHistoryFile(),
		Probe: ProbeConfig{
			Listen:      ":9477",
			Interval:    15 * time.Second,
			Targets:     []string{},
			CorsOrigins: []string{"http://localhost:3000"},
		},
	}
}

func defaultHistoryFile() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".cqi_history"
	}
	return filepath.Join(home, ".cqi_history")
}

// Load reads path over DefaultClientConfig. Only keys present in the file
// override defaults.
func Load(path string) (ClientConfig, error) {
	cfg := DefaultClientConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return ClientConfig{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}

	if meta.IsDefined("host") {
		cfg.Host = strings.TrimSpace(raw.Host)
	}
	if meta.IsDefined("port") {
		cfg.Port = raw.Port
	}
	if meta.IsDefined("user") {
		cfg.User = raw.User
	}
	if meta.IsDefined("password") {
		cfg.Password = raw.Password
	}
	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"connect_timeout", raw.ConnectTimeout, &cfg.ConnectTimeout},
		{"read_timeout", raw.ReadTimeout, &cfg.ReadTimeout},
		{"write_timeout", raw.WriteTimeout, &cfg.WriteTimeout},
		{"probe.interval", raw.Probe.Interval, &cfg.Probe.Interval},
	}
	for _, d := range durations {
		if !meta.IsDefined(strings.Split(d.key, ".")...) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return ClientConfig{}, fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.dst = v
	}
	if meta.IsDefined("max_elements") {
		cfg.MaxElements = raw.MaxElements
	}
	if meta.IsDefined("history_file") {
		cfg.HistoryFile = expandHome(strings.TrimSpace(raw.HistoryFile))
	}
	if meta.IsDefined("probe", "listen") {
		cfg.Probe.Listen = strings.TrimSpace(raw.Probe.Listen)
	}
	if meta.IsDefined("probe", "targets") {
		cfg.Probe.Targets = normalizeList(raw.Probe.Targets)
	}
	if meta.IsDefined("probe", "cors_origins") {
		cfg.Probe.CorsOrigins = normalizeList(raw.Probe.CorsOrigins)
	}

	if err := Validate(cfg); err != nil {
		return ClientConfig{}, err
	}
	return cfg, nil
}

func Validate(cfg ClientConfig) error {
	if strings.TrimSpace(cfg.Host) == "" {
		return fmt.Errorf("config missing host")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("config port out of range: %d", cfg.Port)
	}
	if cfg.ConnectTimeout <= 0 || cfg.ReadTimeout <= 0 || cfg.WriteTimeout <= 0 {
		return fmt.Errorf("config timeouts must be positive")
	}
	if cfg.MaxElements <= 0 {
		return fmt.Errorf("config max_elements must be positive")
	}
	if cfg.Probe.Interval <= 0 {
		return fmt.Errorf("config probe.interval must be positive")
	}
	return nil
}

// Address returns host:port.
func (c ClientConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Session converts the file settings into a dialable session.Config.
func (c ClientConfig) Session() session.Config {
	return session.Config{
		Address:        c.Address(),
		ConnectTimeout: c.ConnectTimeout,
		ReadTimeout:    c.ReadTimeout,
		WriteTimeout:   c.WriteTimeout,
		Limits:         protocol.Limits{MaxElements: c.MaxElements},
	}
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
