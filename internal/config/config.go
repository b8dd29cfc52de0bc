// Package config provides file-based configuration for the enforcement
// server, with hot reload of the tunable subset.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/authz-engine/pep-core/pkg/types"
)

// ServerConfig configures the HTTP listeners.
type ServerConfig struct {
	// ListenAddr serves the resource API.
	ListenAddr string `yaml:"listen_addr"`
	// MetricsAddr serves /metrics and /healthz on a separate listener.
	MetricsAddr     string        `yaml:"metrics_addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// PDPConfig configures the decision point client.
type PDPConfig struct {
	// Transport selects "http" or "grpc".
	Transport string `yaml:"transport"`
	// Endpoint is the HTTP base URL or gRPC target.
	Endpoint string `yaml:"endpoint"`
	// Timeout bounds one evaluation round trip.
	Timeout time.Duration `yaml:"timeout"`
}

// DatabaseConfig configures the PostgreSQL connection holding the resource
// tables and closure projections.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	// RunMigrations installs the closure table schema on startup.
	RunMigrations bool `yaml:"run_migrations"`
}

// AuthConfig configures bearer token verification for the resource API.
type AuthConfig struct {
	// JWTSecret verifies HS256 tokens. Empty disables verification and
	// every request runs as anonymous; only useful in development.
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"`
	Audience  string `yaml:"audience"`
}

// LoggingConfig configures the zap logger and optional file rotation.
type LoggingConfig struct {
	Level string `yaml:"level"`
	// File enables rotated file output alongside stderr when non-empty.
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Config is the full server configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	PDP      PDPConfig      `yaml:"pdp"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Logging  LoggingConfig  `yaml:"logging"`
	// Capabilities declares which predicate families this deployment's
	// closure tables support.
	Capabilities []types.Capability `yaml:"capabilities"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr:      ":8080",
			MetricsAddr:     ":9090",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		PDP: PDPConfig{
			Transport: "http",
			Endpoint:  "http://localhost:8081",
			Timeout:   5 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			RunMigrations:   true,
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Capabilities: []types.Capability{
			types.CapabilityTenantHierarchy,
			types.CapabilityGroupHierarchy,
		},
	}
}

// Load reads a YAML config file over the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for startup-fatal mistakes.
func (c *Config) Validate() error {
	switch c.PDP.Transport {
	case "http", "grpc":
	default:
		return fmt.Errorf("pdp.transport must be http or grpc, got %q", c.PDP.Transport)
	}
	if c.PDP.Endpoint == "" {
		return fmt.Errorf("pdp.endpoint is required")
	}
	if c.PDP.Timeout <= 0 {
		return fmt.Errorf("pdp.timeout must be positive")
	}
	for _, cap := range c.Capabilities {
		switch cap {
		case types.CapabilityTenantHierarchy, types.CapabilityGroupMembership, types.CapabilityGroupHierarchy:
		default:
			return fmt.Errorf("unknown capability %q", cap)
		}
	}
	return nil
}
