package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// FileConfig is the typed model of teamplatform.yaml.
type FileConfig struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Audit     AuditConfig     `yaml:"audit"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host            string   `yaml:"host"`
	Port            int      `yaml:"port"`
	CORSOrigins     []string `yaml:"cors_origins"`
	ShutdownTimeout string   `yaml:"shutdown_timeout"`
}

// DatabaseConfig selects the record store.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// AuthConfig controls session tokens.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	JWTExpiry string `yaml:"jwt_expiry"`
}

// RateLimitConfig holds the per-route-class admission limits.
type RateLimitConfig struct {
	Auth           WindowConfig `yaml:"auth"`
	API            WindowConfig `yaml:"api"`
	Default        WindowConfig `yaml:"default"`
	SweepThreshold int          `yaml:"sweep_threshold"`
	PerKeyRPM      int          `yaml:"per_key_rpm"`
}

// WindowConfig is one fixed-window ceiling.
type WindowConfig struct {
	Requests int    `yaml:"requests"`
	Window   string `yaml:"window"`
}

// AuditConfig sizes the background executor used for audit writes and
// usage accounting.
type AuditConfig struct {
	Workers int `yaml:"workers"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// LoadFile reads and parses a YAML configuration file. Environment variables
// referenced as ${VAR_NAME} are expanded before parsing. Missing fields keep
// their default values.
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	content := os.ExpandEnv(string(data))

	cfg := DefaultFileConfig()
	if err := yaml.Unmarshal([]byte(content), cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail at startup.
func (c *FileConfig) Validate() error {
	switch c.Database.Driver {
	case "", DriverSQLite:
	case DriverPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for driver %q", c.Database.Driver)
		}
	default:
		return fmt.Errorf("database.driver: unsupported driver %q", c.Database.Driver)
	}

	windows := map[string]WindowConfig{
		"rate_limit.auth":    c.RateLimit.Auth,
		"rate_limit.api":     c.RateLimit.API,
		"rate_limit.default": c.RateLimit.Default,
	}
	for name, w := range windows {
		if w.Requests <= 0 {
			return fmt.Errorf("%s.requests must be positive", name)
		}
		d, err := time.ParseDuration(w.Window)
		if err != nil {
			return fmt.Errorf("%s.window: %w", name, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s.window must be positive", name)
		}
	}

	if c.Auth.JWTExpiry != "" {
		if _, err := time.ParseDuration(c.Auth.JWTExpiry); err != nil {
			return fmt.Errorf("auth.jwt_expiry: %w", err)
		}
	}
	return nil
}

// DefaultFileConfig returns the configuration used when no file is present.
func DefaultFileConfig() *FileConfig {
	return &FileConfig{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			CORSOrigins:     []string{"*"},
			ShutdownTimeout: "30s",
		},
		Database: DatabaseConfig{
			Driver: DriverSQLite,
		},
		Auth: AuthConfig{
			JWTExpiry: "24h",
		},
		RateLimit: RateLimitConfig{
			Auth:           WindowConfig{Requests: 10, Window: "1m"},
			API:            WindowConfig{Requests: 60, Window: "1m"},
			Default:        WindowConfig{Requests: 100, Window: "1m"},
			SweepThreshold: 10000,
			PerKeyRPM:      0,
		},
		Audit: AuditConfig{
			Workers: 4,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// WriteDefaultConfig writes the default configuration to a YAML file.
func WriteDefaultConfig(path string) error {
	data, err := yaml.Marshal(DefaultFileConfig())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
