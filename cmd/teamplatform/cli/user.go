package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/teamplatform/teamplatform/internal/config"
	"github.com/teamplatform/teamplatform/internal/model"
	"github.com/teamplatform/teamplatform/internal/service"
)

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage staff accounts",
		Long:  "Create and list the ADMIN and COACH accounts that sign in to the web application.",
	}

	cmd.AddCommand(newUserCreateCmd())
	cmd.AddCommand(newUserListCmd())

	return cmd
}

// ---------- user create ----------

func newUserCreateCmd() *cobra.Command {
	var (
		email    string
		password string
		name     string
		role     string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a staff account",
		Example: `  teamplatform user create --email admin@example.com --role ADMIN
  teamplatform user create --email coach@example.com --name "Head Coach"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUserCreate(email, password, name, role)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address (required)")
	cmd.Flags().StringVar(&password, "password", "", "Password (prompted if omitted)")
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().StringVar(&role, "role", model.RoleCoach, "Role: ADMIN or COACH")
	cmd.MarkFlagRequired("email")

	return cmd
}

func runUserCreate(email, password, name, role string) error {
	// Prompt for password if not provided
	if password == "" {
		fmt.Print("Password: ")
		pwBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Println()
		password = string(pwBytes)

		fmt.Print("Confirm password: ")
		confirmBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err != nil {
			return fmt.Errorf("failed to read confirmation: %w", err)
		}
		fmt.Println()

		if password != string(confirmBytes) {
			return fmt.Errorf("passwords do not match")
		}
	}

	user, err := service.NewUser(email, password, name, role)
	if err != nil {
		return commandError("create user", err)
	}

	env, err := openAdminEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	ctx, cancel := cmdContext()
	defer cancel()

	if err := env.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, config.ErrDuplicate) {
			return fmt.Errorf("a user with email %q already exists", user.Email)
		}
		return fmt.Errorf("create user: %w", err)
	}
	env.recorder.UserCreated(cliAudit, user.ID, model.Details{"email": user.Email, "role": user.Role})

	fmt.Printf("Created %s user %q\n", user.Role, user.Email)
	return nil
}

// ---------- user list ----------

func newUserListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List all staff accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUserList(jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runUserList(jsonOutput bool) error {
	env, err := openAdminEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	ctx, cancel := cmdContext()
	defer cancel()

	users, err := env.store.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(users)
	}

	if len(users) == 0 {
		fmt.Println("No users configured. Use 'teamplatform user create --role ADMIN' to create one.")
		return nil
	}

	fmt.Printf("%-30s %-24s %-6s %-8s %-20s\n", "EMAIL", "NAME", "ROLE", "ACTIVE", "LAST LOGIN")
	fmt.Printf("%-30s %-24s %-6s %-8s %-20s\n", "-----", "----", "----", "------", "----------")
	for _, u := range users {
		active := "yes"
		if !u.IsActive {
			active = "no"
		}
		lastLogin := "never"
		if u.LastLoginAt != nil {
			lastLogin = u.LastLoginAt.Local().Format(time.DateTime)
		}
		fmt.Printf("%-30s %-24s %-6s %-8s %-20s\n", u.Email, truncate(u.Name, 24), u.Role, active, lastLogin)
	}

	return nil
}
