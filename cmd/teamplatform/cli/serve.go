package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/teamplatform/teamplatform/internal/async"
	"github.com/teamplatform/teamplatform/internal/audit"
	"github.com/teamplatform/teamplatform/internal/ratelimit"
	"github.com/teamplatform/teamplatform/internal/server"
	"github.com/teamplatform/teamplatform/internal/service"
)

const banner = `
 _____                     ____  _       _    __
|_   _|__  __ _ _ __ ___  |  _ \| | __ _| |_ / _| ___  _ __ _ __ ___
  | |/ _ \/ _' | '_ ' _ \ | |_) | |/ _' | __| |_ / _ \| '__| '_ ' _ \
  | |  __/ (_| | | | | | ||  __/| | (_| | |_|  _| (_) | |  | | | | | |
  |_|\___|\__,_|_| |_| |_||_|   |_|\__,_|\__|_|  \___/|_|  |_| |_| |_|
`

// devJWTSecret signs session tokens when no secret is configured. It is only
// acceptable with --dev.
const devJWTSecret = "teamplatform-dev-secret-change-me"

func newServeCmd() *cobra.Command {
	var (
		port    int
		host    string
		baseURL string
		dev     bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the TeamPlatform API server",
		Long: `Start the HTTP server. Every request passes the admission layer: the per-client
rate limiter runs first, then session or API-key authentication, and security
relevant actions are written to the audit log in the background.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(baseURL, dev)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "HTTP listen port")
	cmd.Flags().StringVar(&host, "host", "0.0.0.0", "HTTP listen host")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Public base URL advertised in /openapi.json (default: derived from the request)")
	cmd.Flags().BoolVar(&dev, "dev", false, "Enable development mode (debug logging, generated JWT secret allowed)")

	viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", cmd.Flags().Lookup("host"))

	return cmd
}

func runServe(baseURL string, dev bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Logging, dev)

	jwtSecret := cfg.Auth.JWTSecret
	if jwtSecret == "" {
		if !dev {
			return errors.New("auth.jwt_secret is not set (set TEAMPLATFORM_AUTH_JWT_SECRET or pass --dev)")
		}
		jwtSecret = devJWTSecret
		logger.Warn("using development JWT secret; do not use in production")
	}
	jwtExpiry, err := parseDuration(cfg.Auth.JWTExpiry, 24*time.Hour)
	if err != nil {
		return fmt.Errorf("auth.jwt_expiry: %w", err)
	}
	shutdownTimeout, err := parseDuration(cfg.Server.ShutdownTimeout, 30*time.Second)
	if err != nil {
		return fmt.Errorf("server.shutdown_timeout: %w", err)
	}
	classes, err := rateLimitClasses(cfg.RateLimit)
	if err != nil {
		return err
	}

	fmt.Print(banner)
	fmt.Println()

	// 1. Record store
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	logger.Info("record store initialized", "driver", cfg.Database.Driver, "data_dir", resolveDataDir())

	// 2. Background executor for audit writes and usage accounting
	pool := async.NewPool(cfg.Audit.Workers, 10*time.Second, logger)

	// 3. Services
	recorder := audit.NewRecorder(store, pool, logger)
	authSvc := service.NewAuthService(store, jwtSecret, jwtExpiry, logger)
	keySvc := service.NewAPIKeyService(store, pool, logger)
	limiter := ratelimit.New(
		ratelimit.WithSweepThreshold(cfg.RateLimit.SweepThreshold),
		ratelimit.WithLogger(logger),
	)

	// 4. First-run check
	hasAdmin, err := store.HasAnyAdmin(context.Background())
	if err != nil {
		logger.Warn("failed to check for admin", "error", err)
	}
	if !hasAdmin {
		logger.Warn("no admin account found - run: teamplatform user create --role ADMIN")
	}

	// 5. HTTP server
	srvCfg := server.DefaultConfig()
	srvCfg.Host = cfg.Server.Host
	srvCfg.Port = cfg.Server.Port
	srvCfg.ShutdownTimeout = shutdownTimeout
	srvCfg.CORSOrigins = cfg.Server.CORSOrigins
	srvCfg.PerKeyRPM = cfg.RateLimit.PerKeyRPM
	srvCfg.BaseURL = baseURL
	srvCfg.Version = versionString()

	srv := server.New(srvCfg, server.Deps{
		Store:   store,
		Auth:    authSvc,
		Keys:    keySvc,
		Audit:   recorder,
		Limiter: limiter,
		Classes: classes,
	}, logger)

	fmt.Printf("→ TeamPlatform %s\n", versionString())
	fmt.Printf("→ Listening on http://%s\n", srv.Addr())
	fmt.Printf("→ OpenAPI:    http://%s/openapi.json\n", srv.Addr())
	fmt.Printf("→ Health:     http://%s/healthz\n", srv.Addr())
	fmt.Printf("→ Limits:     auth %d/%s, api %d/%s, default %d/%s\n",
		cfg.RateLimit.Auth.Requests, cfg.RateLimit.Auth.Window,
		cfg.RateLimit.API.Requests, cfg.RateLimit.API.Window,
		cfg.RateLimit.Default.Requests, cfg.RateLimit.Default.Window)
	fmt.Println()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runAndDrain(ctx, srv.Run, pool.Shutdown, shutdownTimeout)
}

// runAndDrain runs the server and then drains the background executor within
// one group. The drain starts only after run returns, so audit writes queued
// by the last in-flight requests reach the store before it closes.
func runAndDrain(ctx context.Context, run, drain func(context.Context) error, timeout time.Duration) error {
	serverDone := make(chan struct{})
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(serverDone)
		return run(gctx)
	})
	g.Go(func() error {
		<-serverDone
		drainCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := drain(drainCtx); err != nil {
			return fmt.Errorf("drain background tasks: %w", err)
		}
		return nil
	})
	return g.Wait()
}
