package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/teamplatform/teamplatform/internal/config"
	"github.com/teamplatform/teamplatform/internal/model"
)

func newAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the audit log",
	}

	cmd.AddCommand(newAuditListCmd())

	return cmd
}

// ---------- audit list ----------

type auditListOptions struct {
	action   string
	resource string
	userID   string
	since    string
	until    string
	limit    int
	offset   int
	json     bool
}

func newAuditListCmd() *cobra.Command {
	var opts auditListOptions

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List audit records, newest first",
		Example: `  teamplatform audit list --action user.login --limit 20
  teamplatform audit list --resource ApiKey --since 2025-01-01
  teamplatform audit list --user 0192f0e4-... --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuditList(opts)
		},
	}

	cmd.Flags().StringVar(&opts.action, "action", "", "Filter by action (e.g. apikey.create)")
	cmd.Flags().StringVar(&opts.resource, "resource", "", "Filter by resource (e.g. ApiKey)")
	cmd.Flags().StringVar(&opts.userID, "user", "", "Filter by acting user ID")
	cmd.Flags().StringVar(&opts.since, "since", "", "Only records at or after this date (YYYY-MM-DD or RFC 3339)")
	cmd.Flags().StringVar(&opts.until, "until", "", "Only records at or before this date (YYYY-MM-DD or RFC 3339)")
	cmd.Flags().IntVar(&opts.limit, "limit", config.DefaultAuditLimit, fmt.Sprintf("Maximum records to return (1-%d)", config.MaxAuditLimit))
	cmd.Flags().IntVar(&opts.offset, "offset", 0, "Records to skip")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Output as JSON")

	return cmd
}

func (o auditListOptions) filter() (model.AuditFilter, error) {
	f := model.AuditFilter{
		UserID: o.userID,
		Limit:  o.limit,
		Offset: o.offset,
	}
	if f.Limit < 1 || f.Limit > config.MaxAuditLimit {
		return f, fmt.Errorf("--limit must be between 1 and %d", config.MaxAuditLimit)
	}
	if f.Offset < 0 {
		return f, fmt.Errorf("--offset must not be negative")
	}
	if o.action != "" {
		a, err := model.ParseAuditAction(o.action)
		if err != nil {
			return f, err
		}
		f.Action = a
	}
	if o.resource != "" {
		r, err := model.ParseAuditResource(o.resource)
		if err != nil {
			return f, err
		}
		f.Resource = r
	}
	if o.since != "" {
		t, err := parseCLIDate(o.since, false)
		if err != nil {
			return f, fmt.Errorf("--since: %w", err)
		}
		f.StartDate = &t
	}
	if o.until != "" {
		t, err := parseCLIDate(o.until, true)
		if err != nil {
			return f, fmt.Errorf("--until: %w", err)
		}
		f.EndDate = &t
	}
	return f, nil
}

// parseCLIDate reads --since/--until. A plain --until date includes the
// whole day.
func parseCLIDate(s string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t.UTC(), nil
}

func runAuditList(opts auditListOptions) error {
	f, err := opts.filter()
	if err != nil {
		return err
	}

	env, err := openAdminEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	ctx, cancel := cmdContext()
	defer cancel()

	logs, total, err := env.recorder.Query(ctx, f)
	if err != nil {
		return fmt.Errorf("query audit logs: %w", err)
	}

	if opts.json {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if logs == nil {
			logs = []model.AuditLog{}
		}
		return enc.Encode(model.ListResponse{
			Resource: logs,
			Meta: &model.ResponseMeta{
				Count:  len(logs),
				Total:  &total,
				Limit:  f.Limit,
				Offset: f.Offset,
			},
		})
	}

	if len(logs) == 0 {
		fmt.Println("No audit records match.")
		return nil
	}

	fmt.Printf("%-20s %-16s %-8s %-28s %-8s %-15s\n", "TIME", "ACTION", "RESOURCE", "ACTOR", "STATUS", "IP")
	fmt.Printf("%-20s %-16s %-8s %-28s %-8s %-15s\n", "----", "------", "--------", "-----", "------", "--")
	for _, l := range logs {
		actor := "-"
		if l.UserEmail != nil {
			actor = *l.UserEmail
		}
		fmt.Printf("%-20s %-16s %-8s %-28s %-8s %-15s\n",
			l.CreatedAt.Local().Format(time.DateTime), l.Action, l.Resource, truncate(actor, 28), l.Status, l.IPAddress)
	}
	fmt.Printf("\nShowing %d of %d records\n", len(logs), total)

	return nil
}
