package cli

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/teamplatform/teamplatform/internal/config"
	"github.com/teamplatform/teamplatform/internal/model"
	"github.com/teamplatform/teamplatform/internal/ratelimit"
	"github.com/teamplatform/teamplatform/internal/service"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	setDefaultsOn(viper.GetViper(), config.DefaultFileConfig())
	viper.SetEnvPrefix("TEAMPLATFORM")
	viper.SetEnvKeyReplacer(envKeyReplacer)
	viper.AutomaticEnv()
}

func TestRootCommandTree(t *testing.T) {
	root := newRootCmd("1.2.3", "abc", "today")
	want := []string{"serve", "version", "key", "user", "audit", "openapi", "mcp", "config"}
	for _, name := range want {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("subcommand %q not registered", name)
		}
	}
	for _, path := range [][]string{{"key", "create"}, {"key", "list"}, {"key", "revoke"}, {"user", "create"}, {"user", "list"}, {"audit", "list"}, {"config", "init"}, {"config", "show"}} {
		cmd, _, err := root.Find(path)
		if err != nil || cmd.Name() != path[1] {
			t.Errorf("subcommand %q not registered", strings.Join(path, " "))
		}
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	resetViper(t)

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.RateLimit.Auth.Requests != 10 || cfg.RateLimit.API.Requests != 60 || cfg.RateLimit.Default.Requests != 100 {
		t.Errorf("unexpected default limits: %+v", cfg.RateLimit)
	}
	if cfg.RateLimit.SweepThreshold != 10000 {
		t.Errorf("expected sweep threshold 10000, got %d", cfg.RateLimit.SweepThreshold)
	}
	if cfg.Database.Driver != config.DriverSQLite {
		t.Errorf("expected sqlite driver, got %q", cfg.Database.Driver)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	resetViper(t)
	t.Setenv("TEAMPLATFORM_RATE_LIMIT_AUTH_REQUESTS", "5")
	t.Setenv("TEAMPLATFORM_RATE_LIMIT_AUTH_WINDOW", "30s")
	t.Setenv("TEAMPLATFORM_LOGGING_FORMAT", "json")

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.RateLimit.Auth.Requests != 5 || cfg.RateLimit.Auth.Window != "30s" {
		t.Errorf("env override not applied: %+v", cfg.RateLimit.Auth)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("expected json format, got %q", cfg.Logging.Format)
	}
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	resetViper(t)
	t.Setenv("TEAMPLATFORM_RATE_LIMIT_API_REQUESTS", "0")

	if _, err := loadConfig(); err == nil {
		t.Fatal("expected validation error for zero requests")
	}
}

func TestRateLimitClasses(t *testing.T) {
	classes, err := rateLimitClasses(config.DefaultFileConfig().RateLimit)
	if err != nil {
		t.Fatalf("rateLimitClasses: %v", err)
	}
	want := ratelimit.DefaultClasses()
	for class, cfg := range want {
		if classes[class] != cfg {
			t.Errorf("class %s: got %+v, want %+v", class, classes[class], cfg)
		}
	}

	bad := config.DefaultFileConfig().RateLimit
	bad.API.Window = "soon"
	if _, err := rateLimitClasses(bad); err == nil {
		t.Error("expected error for unparseable window")
	}
}

func TestAuditListFilter(t *testing.T) {
	tests := []struct {
		name    string
		opts    auditListOptions
		wantErr bool
	}{
		{"defaults", auditListOptions{limit: 100}, false},
		{"action and resource", auditListOptions{action: "apikey.create", resource: "ApiKey", limit: 10}, false},
		{"date only", auditListOptions{since: "2025-01-01", until: "2025-01-31", limit: 10}, false},
		{"rfc3339", auditListOptions{since: "2025-01-01T10:00:00Z", limit: 10}, false},
		{"unknown action", auditListOptions{action: "apikey.explode", limit: 10}, true},
		{"unknown resource", auditListOptions{resource: "Spaceship", limit: 10}, true},
		{"bad date", auditListOptions{since: "yesterday", limit: 10}, true},
		{"limit too small", auditListOptions{limit: 0}, true},
		{"limit too large", auditListOptions{limit: config.MaxAuditLimit + 1}, true},
		{"negative offset", auditListOptions{limit: 10, offset: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.opts.filter()
			if (err != nil) != tt.wantErr {
				t.Errorf("filter() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	f, err := auditListOptions{action: "user.login", since: "2025-03-04", limit: 5, offset: 2}.filter()
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	if f.Action != model.ActionUserLogin || f.Limit != 5 || f.Offset != 2 {
		t.Errorf("unexpected filter: %+v", f)
	}
	if f.StartDate == nil || !f.StartDate.Equal(time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected start date: %v", f.StartDate)
	}

	f, err = auditListOptions{until: "2025-03-04", limit: 5}.filter()
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	if f.EndDate == nil || !f.EndDate.Equal(time.Date(2025, 3, 4, 23, 59, 59, 999999999, time.UTC)) {
		t.Errorf("--until should cover the whole day, got %v", f.EndDate)
	}
}

func TestCommandError(t *testing.T) {
	_, verr := service.NewUser("not-an-email", "longenough", "", "")
	err := commandError("create user", verr)
	if !strings.Contains(err.Error(), "Invalid email address") {
		t.Errorf("validation message not surfaced: %v", err)
	}

	cause := errors.New("disk on fire")
	err = commandError("create user", cause)
	if !errors.Is(err, cause) {
		t.Errorf("expected wrapped cause, got %v", err)
	}
}

func TestKeyStatus(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		key  model.APIKey
		want string
	}{
		{model.APIKey{IsActive: true}, "active"},
		{model.APIKey{IsActive: true, ExpiresAt: &future}, "active"},
		{model.APIKey{IsActive: true, ExpiresAt: &past}, "expired"},
		{model.APIKey{IsActive: false, ExpiresAt: &past}, "revoked"},
	}
	for _, tt := range tests {
		if got := keyStatus(&tt.key, now); got != tt.want {
			t.Errorf("keyStatus(%+v) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestVersionString(t *testing.T) {
	defer func(v string) { appVersion = v }(appVersion)

	tests := map[string]string{
		"":       "dev",
		"dev":    "dev",
		"1.4.0":  "v1.4.0",
		"v1.4.0": "v1.4.0",
	}
	for in, want := range tests {
		appVersion = in
		if got := versionString(); got != want {
			t.Errorf("versionString(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBuildVersionInfoKeepsLdflags(t *testing.T) {
	info := buildVersionInfo("1.0.0", "abc123", "2025-01-01")
	if info.Commit != "abc123" || info.Built != "2025-01-01" {
		t.Errorf("ldflags values overwritten: %+v", info)
	}
}

func TestRunAndDrainDrainsAfterServerStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var order []string
	run := func(ctx context.Context) error {
		<-ctx.Done()
		order = append(order, "run")
		return nil
	}
	drain := func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); !ok {
			t.Error("drain context has no deadline")
		}
		order = append(order, "drain")
		return nil
	}
	cancel()
	if err := runAndDrain(ctx, run, drain, time.Second); err != nil {
		t.Fatalf("runAndDrain: %v", err)
	}
	if strings.Join(order, ",") != "run,drain" {
		t.Errorf("order = %v, want [run drain]", order)
	}
}

func TestRunAndDrainErrors(t *testing.T) {
	listenErr := errors.New("address in use")
	drained := false
	err := runAndDrain(context.Background(),
		func(context.Context) error { return listenErr },
		func(context.Context) error { drained = true; return nil },
		time.Second)
	if !errors.Is(err, listenErr) {
		t.Errorf("err = %v, want %v", err, listenErr)
	}
	if !drained {
		t.Error("executor not drained after server failure")
	}

	err = runAndDrain(context.Background(),
		func(context.Context) error { return nil },
		func(context.Context) error { return context.DeadlineExceeded },
		time.Second)
	if !errors.Is(err, context.DeadlineExceeded) || !strings.Contains(err.Error(), "drain background tasks") {
		t.Errorf("err = %v, want wrapped deadline error", err)
	}
}
