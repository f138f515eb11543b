package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/teamplatform/teamplatform/internal/model"
)

// Audit query paging bounds.
const (
	DefaultAuditLimit = 100
	MaxAuditLimit     = 1000
)

// InsertAuditLog appends one audit record. ID and CreatedAt are filled in
// when empty.
func (s *Store) InsertAuditLog(ctx context.Context, rec *model.AuditLog) error {
	if rec.ID == "" {
		rec.ID = newID()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.Status == "" {
		rec.Status = model.AuditSuccess
	}

	const q = `INSERT INTO audit_logs
		(id, action, resource, resource_id, user_id, user_email, user_role,
		 ip_address, user_agent, details, status, created_at)
		VALUES
		(:id, :action, :resource, :resource_id, :user_id, :user_email, :user_role,
		 :ip_address, :user_agent, :details, :status, :created_at)`

	if _, err := s.db.NamedExecContext(ctx, q, rec); err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// QueryAuditLogs returns audit records matching f, newest first.
func (s *Store) QueryAuditLogs(ctx context.Context, f model.AuditFilter) ([]model.AuditLog, error) {
	where, args := auditWhere(f)
	limit, offset := auditPage(f)

	q := "SELECT * FROM audit_logs" + where + " ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	var logs []model.AuditLog
	if err := s.db.SelectContext(ctx, &logs, s.db.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("query audit logs: %w", err)
	}
	return logs, nil
}

// CountAuditLogs returns how many records match f, ignoring paging.
func (s *Store) CountAuditLogs(ctx context.Context, f model.AuditFilter) (int64, error) {
	where, args := auditWhere(f)
	var n int64
	if err := s.db.GetContext(ctx, &n, s.db.Rebind("SELECT COUNT(*) FROM audit_logs"+where), args...); err != nil {
		return 0, fmt.Errorf("count audit logs: %w", err)
	}
	return n, nil
}

func auditWhere(f model.AuditFilter) (string, []interface{}) {
	var (
		conds []string
		args  []interface{}
	)
	if !f.Action.IsZero() {
		conds = append(conds, "action = ?")
		args = append(args, f.Action.String())
	}
	if !f.Resource.IsZero() {
		conds = append(conds, "resource = ?")
		args = append(args, f.Resource.String())
	}
	if f.UserID != "" {
		conds = append(conds, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.StartDate != nil {
		conds = append(conds, "created_at >= ?")
		args = append(args, f.StartDate.UTC())
	}
	if f.EndDate != nil {
		conds = append(conds, "created_at <= ?")
		args = append(args, f.EndDate.UTC())
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func auditPage(f model.AuditFilter) (limit, offset int) {
	limit = f.Limit
	if limit <= 0 {
		limit = DefaultAuditLimit
	}
	if limit > MaxAuditLimit {
		limit = MaxAuditLimit
	}
	offset = f.Offset
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
