package session

import (
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/danmuck/cqi/internal/protocol"
	"github.com/danmuck/cqi/internal/protocol/commands"
)

const DefaultHost = "localhost"

// Config defines transport defaults for one CQi connection.
type Config struct {
	Address        string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	Limits         protocol.Limits
}

// DefaultConfig returns localhost:4877 with 2s read/write deadlines.
func DefaultConfig() Config {
	return Config{
		Address:        net.JoinHostPort(DefaultHost, strconv.Itoa(commands.DefaultPort)),
		ConnectTimeout: 5 * time.Second,
		ReadTimeout:    2 * time.Second,
		WriteTimeout:   2 * time.Second,
		Limits:         protocol.DefaultLimits(),
	}
}

// WithDefaults fills zero fields from DefaultConfig. A bare host gets the
// default port.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	c.Address = NormalizeAddress(c.Address)
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = def.ConnectTimeout
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = def.ReadTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.Limits.MaxElements <= 0 {
		c.Limits = def.Limits
	}
	return c
}

// NormalizeAddress turns "", "host" and ":port" into a dialable host:port.
func NormalizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return DefaultConfig().Address
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return net.JoinHostPort(strings.Trim(addr, "[]"), strconv.Itoa(commands.DefaultPort))
	}
	if host == "" {
		host = DefaultHost
	}
	if port == "" {
		port = strconv.Itoa(commands.DefaultPort)
	}
	return net.JoinHostPort(host, port)
}
