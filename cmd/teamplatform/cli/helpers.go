package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/teamplatform/teamplatform/internal/async"
	"github.com/teamplatform/teamplatform/internal/audit"
	"github.com/teamplatform/teamplatform/internal/config"
	"github.com/teamplatform/teamplatform/internal/ratelimit"
	"github.com/teamplatform/teamplatform/internal/service"
)

// dataDir holds the --data-dir persistent flag value (set on root command).
var dataDir string

var envKeyReplacer = strings.NewReplacer(".", "_")

// resolveDataDir returns the data directory from --data-dir flag,
// TEAMPLATFORM_DATA_DIR env var, or ~/.teamplatform as fallback.
func resolveDataDir() string {
	if dataDir != "" {
		return dataDir
	}
	if envDir := os.Getenv("TEAMPLATFORM_DATA_DIR"); envDir != "" {
		return envDir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".teamplatform")
}

// loadConfig assembles the effective configuration from viper, which layers
// flags, TEAMPLATFORM_* variables, and the config file over the defaults.
func loadConfig() (*config.FileConfig, error) {
	cfg := &config.FileConfig{
		Server: config.ServerConfig{
			Host:            viper.GetString("server.host"),
			Port:            viper.GetInt("server.port"),
			CORSOrigins:     viper.GetStringSlice("server.cors_origins"),
			ShutdownTimeout: viper.GetString("server.shutdown_timeout"),
		},
		Database: config.DatabaseConfig{
			Driver: viper.GetString("database.driver"),
			DSN:    viper.GetString("database.dsn"),
		},
		Auth: config.AuthConfig{
			JWTSecret: viper.GetString("auth.jwt_secret"),
			JWTExpiry: viper.GetString("auth.jwt_expiry"),
		},
		RateLimit: config.RateLimitConfig{
			Auth:           windowFromViper("rate_limit.auth"),
			API:            windowFromViper("rate_limit.api"),
			Default:        windowFromViper("rate_limit.default"),
			SweepThreshold: viper.GetInt("rate_limit.sweep_threshold"),
			PerKeyRPM:      viper.GetInt("rate_limit.per_key_rpm"),
		},
		Audit: config.AuditConfig{
			Workers: viper.GetInt("audit.workers"),
		},
		Logging: config.LoggingConfig{
			Level:  viper.GetString("logging.level"),
			Format: viper.GetString("logging.format"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func windowFromViper(prefix string) config.WindowConfig {
	return config.WindowConfig{
		Requests: viper.GetInt(prefix + ".requests"),
		Window:   viper.GetString(prefix + ".window"),
	}
}

// newLogger builds the process logger. dev forces debug level.
func newLogger(lc config.LoggingConfig, dev bool) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(lc.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if dev {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(lc.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// openStore opens the record store selected by the configuration.
func openStore(cfg *config.FileConfig) (*config.Store, error) {
	store, err := config.NewStore(config.StoreOptions{
		Driver:  cfg.Database.Driver,
		DSN:     cfg.Database.DSN,
		DataDir: resolveDataDir(),
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return store, nil
}

// rateLimitClasses converts the configured windows into limiter classes.
func rateLimitClasses(rc config.RateLimitConfig) (ratelimit.Classes, error) {
	classes := ratelimit.Classes{}
	for class, w := range map[ratelimit.Class]config.WindowConfig{
		ratelimit.ClassAuth:    rc.Auth,
		ratelimit.ClassAPI:     rc.API,
		ratelimit.ClassDefault: rc.Default,
	} {
		d, err := time.ParseDuration(w.Window)
		if err != nil {
			return nil, fmt.Errorf("rate_limit.%s.window: %w", class, err)
		}
		classes[class] = ratelimit.Config{Requests: w.Requests, Window: d}
	}
	return classes, nil
}

// parseDuration parses value, returning fallback when value is empty.
func parseDuration(value string, fallback time.Duration) (time.Duration, error) {
	if value == "" {
		return fallback, nil
	}
	return time.ParseDuration(value)
}

// adminEnv is the set of collaborators the administrative commands share.
// Audit writes and usage accounting run inline so they land before the
// process exits.
type adminEnv struct {
	cfg      *config.FileConfig
	store    *config.Store
	keys     *service.APIKeyService
	recorder *audit.Recorder
	logger   *slog.Logger
}

func openAdminEnv() (*adminEnv, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg.Logging, false)
	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	exec := async.Inline{Logger: logger}
	return &adminEnv{
		cfg:      cfg,
		store:    store,
		keys:     service.NewAPIKeyService(store, exec, logger),
		recorder: audit.NewRecorder(store, exec, logger),
		logger:   logger,
	}, nil
}

func (e *adminEnv) Close() error {
	return e.store.Close()
}

// cliAudit is the audit context attached to actions taken from the command line.
var cliAudit = audit.System("cli")

// cmdContext returns a context bounded for a single administrative command.
func cmdContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

// commandError reports a validation failure by its message alone and wraps
// anything else.
func commandError(op string, err error) error {
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		return fmt.Errorf("%s: %s", op, verr.Message)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// versionString returns a display version string.
func versionString() string {
	if appVersion == "" || appVersion == "dev" {
		return "dev"
	}
	if strings.HasPrefix(appVersion, "v") {
		return appVersion
	}
	return "v" + appVersion
}
