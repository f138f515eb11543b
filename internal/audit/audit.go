// Package audit records security-relevant actions. Recording is best
// effort: persistence runs on a background executor and its failures are
// logged, never returned.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/teamplatform/teamplatform/internal/async"
	"github.com/teamplatform/teamplatform/internal/metrics"
	"github.com/teamplatform/teamplatform/internal/model"
)

// Actor is the authenticated user behind an action.
type Actor struct {
	UserID string
	Email  string
	Role   string
}

// Context carries the request metadata attached to every record. A nil
// Actor means the action was unauthenticated.
type Context struct {
	Actor     *Actor
	IPAddress string
	UserAgent string
}

// System is the Context used for actions that originate outside HTTP,
// such as the command line.
func System(source string) Context {
	return Context{IPAddress: source}
}

// Entry is what happened.
type Entry struct {
	Action     model.AuditAction
	Resource   model.AuditResource
	ResourceID string
	Details    model.Details
	Status     model.AuditStatus
}

// Store is the slice of the record store used for audit records.
type Store interface {
	InsertAuditLog(ctx context.Context, rec *model.AuditLog) error
	QueryAuditLogs(ctx context.Context, f model.AuditFilter) ([]model.AuditLog, error)
	CountAuditLogs(ctx context.Context, f model.AuditFilter) (int64, error)
}

// Recorder writes audit records through an Executor.
type Recorder struct {
	store  Store
	exec   async.Executor
	logger *slog.Logger
	now    func() time.Time
}

// NewRecorder creates a Recorder.
func NewRecorder(store Store, exec async.Executor, logger *slog.Logger) *Recorder {
	return &Recorder{
		store:  store,
		exec:   exec,
		logger: logger,
		now:    time.Now,
	}
}

// Record dispatches one record. It returns before the record is persisted
// and never reports failure to the caller.
func (r *Recorder) Record(ac Context, e Entry) {
	rec, err := r.build(ac, e)
	if err != nil {
		metrics.AuditWrites.WithLabelValues(metrics.ResultError).Inc()
		r.logger.Warn("failed to build audit record", "error", err)
		return
	}

	r.exec.Go("audit."+rec.Action.String(), func(ctx context.Context) {
		if err := r.store.InsertAuditLog(ctx, rec); err != nil {
			metrics.AuditWrites.WithLabelValues(metrics.ResultError).Inc()
			r.logger.Warn("failed to create audit log",
				"action", rec.Action.String(),
				"resource", rec.Resource.String(),
				"error", err,
			)
			return
		}
		metrics.AuditWrites.WithLabelValues(metrics.ResultSuccess).Inc()
	})
}

// RecordFailure records e with status failure, merging the error message
// into its details.
func (r *Recorder) RecordFailure(ac Context, e Entry, cause error) {
	details := make(model.Details, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	if cause != nil {
		details["error"] = cause.Error()
	}
	e.Details = details
	e.Status = model.AuditFailure
	r.Record(ac, e)
}

func (r *Recorder) build(ac Context, e Entry) (*model.AuditLog, error) {
	if e.Action.IsZero() || e.Resource.IsZero() {
		return nil, fmt.Errorf("audit entry missing action or resource")
	}
	status := e.Status
	if status == "" {
		status = model.AuditSuccess
	}
	ip := ac.IPAddress
	if ip == "" {
		ip = "unknown"
	}

	rec := &model.AuditLog{
		Action:     e.Action,
		Resource:   e.Resource,
		ResourceID: optional(e.ResourceID),
		IPAddress:  ip,
		UserAgent:  optional(ac.UserAgent),
		Details:    e.Details,
		Status:     status,
		CreatedAt:  r.now().UTC(),
	}
	if a := ac.Actor; a != nil {
		rec.UserID = optional(a.UserID)
		rec.UserEmail = optional(a.Email)
		rec.UserRole = optional(a.Role)
	}
	return rec, nil
}

// Query returns records matching f newest first, plus the unpaged total.
func (r *Recorder) Query(ctx context.Context, f model.AuditFilter) ([]model.AuditLog, int64, error) {
	logs, err := r.store.QueryAuditLogs(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	total, err := r.store.CountAuditLogs(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
