package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// NodeConfig is the on-disk configuration for cmd/kvnode.
type NodeConfig struct {
	ID            string    `toml:"id"`
	Addr          string    `toml:"addr"`
	AdminAddr     string    `toml:"admin_addr"`
	AdminToken    string    `toml:"admin_token"`
	CorsOrigins   []string  `toml:"cors_origins"`
	IdleTimeoutMS int64     `toml:"idle_timeout_ms"`
	MaxBodyBytes  uint32    `toml:"max_body_bytes"`
	TLS           TLSConfig `toml:"tls"`
}

// TLSConfig names PEM files for the protocol listener or a client.
type TLSConfig struct {
	Enabled            bool   `toml:"enabled"`
	CertFile           string `toml:"cert_file"`
	KeyFile            string `toml:"key_file"`
	CAFile             string `toml:"ca_file"`
	Mutual             bool   `toml:"mutual"`
	InsecureSkipVerify bool   `toml:"insecure_skip_verify"`
}

const (
	DefaultNodeID    = "kvnode"
	DefaultNodeAddr  = ":9160"
	DefaultAdminAddr = "127.0.0.1:9161"
)

func LoadNodeConfig(path string) (NodeConfig, error) {
	var cfg NodeConfig
	if err := loadToml(path, &cfg); err != nil {
		return NodeConfig{}, err
	}
	cfg = cfg.withDefaults()
	if err := ValidateNodeConfig(cfg); err != nil {
		return NodeConfig{}, err
	}
	return cfg, nil
}

func (c NodeConfig) withDefaults() NodeConfig {
	if strings.TrimSpace(c.ID) == "" {
		c.ID = DefaultNodeID
	}
	if strings.TrimSpace(c.Addr) == "" {
		c.Addr = DefaultNodeAddr
	}
	if strings.TrimSpace(c.AdminAddr) == "" {
		c.AdminAddr = DefaultAdminAddr
	}
	return c
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateNodeConfig(cfg NodeConfig) error {
	if strings.TrimSpace(cfg.ID) == "" {
		return fmt.Errorf("node config missing id")
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		return fmt.Errorf("node config missing addr")
	}
	if strings.TrimSpace(cfg.Addr) == strings.TrimSpace(cfg.AdminAddr) {
		return fmt.Errorf("node config admin_addr must differ from addr")
	}
	if cfg.IdleTimeoutMS < 0 {
		return fmt.Errorf("node config idle_timeout_ms must be >= 0")
	}
	if err := cfg.TLS.ValidateServer(); err != nil {
		return fmt.Errorf("node config tls: %w", err)
	}
	return nil
}
