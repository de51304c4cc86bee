package transport

import (
	"crypto/tls"
	"time"

	"github.com/danmuck/kvlink/internal/protocol/frame"
)

// Config defines stream timeouts and limits. A zero read or write timeout
// leaves the corresponding call bounded only by its context.
type Config struct {
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	KeepAlive      time.Duration
	Limits         frame.Limits
	// TLS enables a TLS client handshake when non-nil.
	TLS *tls.Config
}

func DefaultConfig() Config {
	return Config{
		ConnectTimeout: 5 * time.Second,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		KeepAlive:      30 * time.Second,
		Limits:         frame.DefaultLimits(),
	}
}

// WithDefaults fills unset connect timeout and limits. Read and write timeouts
// are left alone because zero is meaningful.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = d.ConnectTimeout
	}
	if c.ReadTimeout < 0 {
		c.ReadTimeout = 0
	}
	if c.WriteTimeout < 0 {
		c.WriteTimeout = 0
	}
	if c.Limits.MaxBodyBytes == 0 {
		c.Limits = d.Limits
	}
	return c
}
