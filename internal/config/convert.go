package config

import (
	"time"

	"github.com/danmuck/kvlink/internal/node"
)

// NodeServerConfig turns a loaded NodeConfig into the server's runtime config.
func NodeServerConfig(cfg NodeConfig) (node.Config, error) {
	out := node.DefaultConfig()
	out.ID = cfg.ID
	out.ListenAddr = cfg.Addr
	out.AdminAddr = cfg.AdminAddr
	out.AdminToken = cfg.AdminToken
	out.CorsOrigins = cfg.CorsOrigins
	if cfg.IdleTimeoutMS > 0 {
		out.IdleTimeout = time.Duration(cfg.IdleTimeoutMS) * time.Millisecond
	}
	if cfg.MaxBodyBytes > 0 {
		out.Limits.MaxBodyBytes = cfg.MaxBodyBytes
	}
	tlsCfg, err := cfg.TLS.ServerTLS()
	if err != nil {
		return node.Config{}, err
	}
	out.TLS = tlsCfg
	return out, nil
}
