package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/teamplatform/teamplatform/internal/config"
	"github.com/teamplatform/teamplatform/internal/model"
	"github.com/teamplatform/teamplatform/internal/service"
)

func newKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "key",
		Aliases: []string{"apikey"},
		Short:   "Manage API keys",
		Long:    "Create, list, and revoke the API keys external integrations use against /api/v1.",
	}

	cmd.AddCommand(newKeyCreateCmd())
	cmd.AddCommand(newKeyListCmd())
	cmd.AddCommand(newKeyRevokeCmd())

	return cmd
}

// ---------- key create ----------

func newKeyCreateCmd() *cobra.Command {
	var (
		name          string
		description   string
		permissions   []string
		expiresInDays int
		jsonOutput    bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new API key",
		Long:  "Generate a new API key with a set of resource:action permissions. The raw key is shown once and cannot be retrieved again.",
		Example: `  teamplatform key create --name "Results sync" --permission roster:read
  teamplatform key create --name "CI" --permission roster:read --permission roster:write --expires-in-days 90
  teamplatform key create --name "Full access" --permission '*'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var days *int
			if cmd.Flags().Changed("expires-in-days") {
				if expiresInDays <= 0 {
					return errors.New("--expires-in-days must be a positive number of days")
				}
				days = &expiresInDays
			}
			return runKeyCreate(name, description, permissions, days, jsonOutput)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Display name for the key (required)")
	cmd.Flags().StringVar(&description, "description", "", "Optional description")
	cmd.Flags().StringArrayVar(&permissions, "permission", nil, "Permission to grant, repeatable (resource:action, resource:*, or *)")
	cmd.Flags().IntVar(&expiresInDays, "expires-in-days", 0, "Expire the key after this many days (default: never)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("permission")

	return cmd
}

func runKeyCreate(name, description string, permissions []string, days *int, jsonOutput bool) error {
	env, err := openAdminEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	ctx, cancel := cmdContext()
	defer cancel()

	issued, err := env.keys.Create(ctx, service.CreateAPIKeyParams{
		Name:        name,
		Description: description,
		Permissions: permissions,
		ExpiresAt:   service.ExpiryFromDays(time.Now(), days),
	})
	if err != nil {
		return commandError("create api key", err)
	}
	rec := issued.Record
	env.recorder.KeyIssued(cliAudit, rec.ID, rec.Name, rec.Permissions)

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Key string `json:"key"`
			*model.APIKey
		}{issued.Key, rec})
	}

	fmt.Println("API Key created:")
	fmt.Println()
	fmt.Printf("  Key:         %s\n", issued.Key)
	fmt.Printf("  ID:          %s\n", rec.ID)
	fmt.Printf("  Name:        %s\n", rec.Name)
	fmt.Printf("  Permissions: %s\n", strings.Join(rec.Permissions, ", "))
	if rec.ExpiresAt != nil {
		fmt.Printf("  Expires:     %s\n", rec.ExpiresAt.Format(time.RFC3339))
	}
	fmt.Println()
	fmt.Println("  Save this key now - it cannot be retrieved again.")
	return nil
}

// ---------- key list ----------

func newKeyListCmd() *cobra.Command {
	var (
		jsonOutput bool
		activeOnly bool
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List all API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyList(jsonOutput, activeOnly)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&activeOnly, "active", false, "Only show keys that are active and unexpired")

	return cmd
}

func runKeyList(jsonOutput, activeOnly bool) error {
	env, err := openAdminEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	ctx, cancel := cmdContext()
	defer cancel()

	keys, err := env.keys.List(ctx)
	if err != nil {
		return fmt.Errorf("list api keys: %w", err)
	}

	now := time.Now()
	rows := make([]model.APIKey, 0, len(keys))
	for _, k := range keys {
		if activeOnly && (!k.IsActive || k.Expired(now)) {
			continue
		}
		rows = append(rows, k)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	if len(rows) == 0 {
		fmt.Println("No API keys found. Use 'teamplatform key create' to create one.")
		return nil
	}

	fmt.Printf("%-36s %-12s %-20s %-28s %-9s %-6s\n", "ID", "PREFIX", "NAME", "PERMISSIONS", "STATUS", "USES")
	fmt.Printf("%-36s %-12s %-20s %-28s %-9s %-6s\n", "--", "------", "----", "-----------", "------", "----")
	for _, k := range rows {
		fmt.Printf("%-36s %-12s %-20s %-28s %-9s %-6d\n",
			k.ID, k.KeyPrefix, truncate(k.Name, 20), truncate(strings.Join(k.Permissions, ","), 28), keyStatus(&k, now), k.UsageCount)
	}

	return nil
}

func keyStatus(k *model.APIKey, now time.Time) string {
	switch {
	case !k.IsActive:
		return "revoked"
	case k.Expired(now):
		return "expired"
	default:
		return "active"
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

// ---------- key revoke ----------

func newKeyRevokeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "revoke <id>",
		Short: "Revoke an API key by its ID",
		Long:  "Deactivate an API key, preventing any further authenticated requests using that key. Revoking an already revoked key succeeds.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyRevoke(args[0])
		},
	}

	return cmd
}

func runKeyRevoke(id string) error {
	env, err := openAdminEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	ctx, cancel := cmdContext()
	defer cancel()

	changed, err := env.keys.Revoke(ctx, id)
	if err != nil {
		if errors.Is(err, config.ErrNotFound) {
			return fmt.Errorf("no API key found with ID %q", id)
		}
		return commandError("revoke api key", err)
	}
	if !changed {
		fmt.Printf("API key %s was already revoked\n", id)
		return nil
	}

	env.recorder.KeyRevoked(cliAudit, id)
	fmt.Printf("Revoked API key %s\n", id)
	return nil
}
