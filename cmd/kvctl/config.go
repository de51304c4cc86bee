package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/kvlink/internal/config"
	"github.com/danmuck/kvlink/pkg/client"
)

type fileConfig struct {
	Host             string           `toml:"host"`
	Port             int              `toml:"port"`
	ConnectTimeoutMS int64            `toml:"connect_timeout_ms"`
	ReadTimeoutMS    int64            `toml:"read_timeout_ms"`
	WriteTimeoutMS   int64            `toml:"write_timeout_ms"`
	ConnectAttempts  int              `toml:"connect_attempts"`
	TLS              config.TLSConfig `toml:"tls"`
}

type ctlConfig struct {
	Session         client.Config
	ConnectAttempts int
}

func defaultCtlConfig() ctlConfig {
	return ctlConfig{Session: client.DefaultConfig(), ConnectAttempts: 1}
}

// loadCtlConfig overlays the keys present in path onto the defaults.
func loadCtlConfig(path string) (ctlConfig, error) {
	cfg := defaultCtlConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return ctlConfig{}, fmt.Errorf("load kvctl config: %w", err)
	}

	if meta.IsDefined("host") {
		if host := strings.TrimSpace(raw.Host); host != "" {
			cfg.Session.Host = host
		}
	}
	if meta.IsDefined("port") {
		if raw.Port <= 0 || raw.Port > 65535 {
			return ctlConfig{}, fmt.Errorf("parse port: %d out of range", raw.Port)
		}
		cfg.Session.Port = raw.Port
	}
	if meta.IsDefined("connect_timeout_ms") {
		cfg.Session.Transport.ConnectTimeout = time.Duration(raw.ConnectTimeoutMS) * time.Millisecond
	}
	if meta.IsDefined("read_timeout_ms") {
		cfg.Session.Transport.ReadTimeout = time.Duration(raw.ReadTimeoutMS) * time.Millisecond
	}
	if meta.IsDefined("write_timeout_ms") {
		cfg.Session.Transport.WriteTimeout = time.Duration(raw.WriteTimeoutMS) * time.Millisecond
	}
	if meta.IsDefined("connect_attempts") {
		cfg.ConnectAttempts = raw.ConnectAttempts
	}
	if meta.IsDefined("tls") {
		tlsCfg, err := raw.TLS.ClientTLS()
		if err != nil {
			return ctlConfig{}, fmt.Errorf("parse tls: %w", err)
		}
		cfg.Session.Transport.TLS = tlsCfg
	}
	return cfg, nil
}
