package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/teamplatform/teamplatform/internal/config"
)

var (
	cfgFile    string
	appVersion string // set in Execute, reported by serve and the MCP server
)

// Execute creates the root command tree and runs it.
func Execute(version, commit, date string) error {
	appVersion = version
	rootCmd := newRootCmd(version, commit, date)
	return rootCmd.Execute()
}

func newRootCmd(version, commit, date string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "teamplatform",
		Short: "TeamPlatform API server and administration tool",
		Long: `TeamPlatform serves the team management API behind a request admission layer:
per-client rate limiting, API-key authentication for external integrations, and
an audit trail of security-relevant actions.

Use the subcommands to run the server, issue and revoke API keys, manage users,
and inspect the audit log.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./teamplatform.yaml)")
	cmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory for the SQLite store (default: ~/.teamplatform)")

	cobra.OnInitialize(initConfig)

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newVersionCmd(version, commit, date))
	cmd.AddCommand(newKeyCmd())
	cmd.AddCommand(newUserCmd())
	cmd.AddCommand(newAuditCmd())
	cmd.AddCommand(newOpenAPICmd())
	cmd.AddCommand(newMCPCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

func initConfig() {
	setDefaultsOn(viper.GetViper(), config.DefaultFileConfig())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("teamplatform")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.teamplatform")
	}

	viper.SetEnvPrefix("TEAMPLATFORM")
	viper.SetEnvKeyReplacer(envKeyReplacer)
	viper.AutomaticEnv()
	viper.ReadInConfig() // Ignore error - config file is optional
}

// setDefaultsOn registers every key of the file model with v so that
// AutomaticEnv can resolve TEAMPLATFORM_* overrides for nested keys.
func setDefaultsOn(v *viper.Viper, d *config.FileConfig) {
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.cors_origins", d.Server.CORSOrigins)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("database.driver", d.Database.Driver)
	v.SetDefault("database.dsn", d.Database.DSN)
	v.SetDefault("auth.jwt_secret", d.Auth.JWTSecret)
	v.SetDefault("auth.jwt_expiry", d.Auth.JWTExpiry)
	v.SetDefault("rate_limit.auth.requests", d.RateLimit.Auth.Requests)
	v.SetDefault("rate_limit.auth.window", d.RateLimit.Auth.Window)
	v.SetDefault("rate_limit.api.requests", d.RateLimit.API.Requests)
	v.SetDefault("rate_limit.api.window", d.RateLimit.API.Window)
	v.SetDefault("rate_limit.default.requests", d.RateLimit.Default.Requests)
	v.SetDefault("rate_limit.default.window", d.RateLimit.Default.Window)
	v.SetDefault("rate_limit.sweep_threshold", d.RateLimit.SweepThreshold)
	v.SetDefault("rate_limit.per_key_rpm", d.RateLimit.PerKeyRPM)
	v.SetDefault("audit.workers", d.Audit.Workers)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
}
