package client

import (
	"strings"

	"github.com/danmuck/kvlink/internal/protocol/wire"
	"github.com/danmuck/kvlink/internal/transport"
)

const (
	// DefaultPort is the node's well-known client port (CASSANDRA_PORT_DEFAULT).
	DefaultPort = 9160
	DefaultHost = "localhost"
)

// Config defines where a session connects and how it bounds its traffic.
type Config struct {
	Host      string
	Port      int
	Transport transport.Config
	Limits    wire.Limits
}

func DefaultConfig() Config {
	return Config{
		Host:      DefaultHost,
		Port:      DefaultPort,
		Transport: transport.DefaultConfig(),
		Limits:    wire.DefaultLimits(),
	}
}

// WithDefaults fills unset host, port, and limits.
func (c Config) WithDefaults() Config {
	if strings.TrimSpace(c.Host) == "" {
		c.Host = DefaultHost
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Limits == (wire.Limits{}) {
		c.Limits = wire.DefaultLimits()
	}
	c.Transport = c.Transport.WithDefaults()
	return c
}
