package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/teamplatform/teamplatform/internal/audit"
	"github.com/teamplatform/teamplatform/internal/config"
	"github.com/teamplatform/teamplatform/internal/model"
)

// AuditHandler serves the read-only audit log review endpoint.
type AuditHandler struct {
	audit  *audit.Recorder
	logger *slog.Logger
}

// NewAuditHandler creates a new AuditHandler.
func NewAuditHandler(recorder *audit.Recorder, logger *slog.Logger) *AuditHandler {
	return &AuditHandler{audit: recorder, logger: logger}
}

// ListAuditLogs returns audit records newest first.
// GET /api/admin/audit-logs?action=&resource=&userId=&startDate=&endDate=&limit=&offset=
func (h *AuditHandler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	f, msg := parseAuditFilter(r)
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	logs, total, err := h.audit.Query(r.Context(), f)
	if err != nil {
		h.logger.Error("audit log query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch audit logs")
		return
	}
	if logs == nil {
		logs = []model.AuditLog{}
	}

	writeJSON(w, http.StatusOK, model.ListResponse{
		Resource: logs,
		Meta: &model.ResponseMeta{
			Count:  len(logs),
			Total:  &total,
			Limit:  f.Limit,
			Offset: f.Offset,
		},
	})
}

// parseAuditFilter reads the query filters. A non-empty message means the
// request is malformed.
func parseAuditFilter(r *http.Request) (model.AuditFilter, string) {
	f := model.AuditFilter{
		UserID: queryString(r, "userId"),
		Limit:  clampInt(queryInt(r, "limit", config.DefaultAuditLimit), 1, config.MaxAuditLimit),
		Offset: clampInt(queryInt(r, "offset", 0), 0, 1<<31-1),
	}

	if v := queryString(r, "action"); v != "" {
		a, err := model.ParseAuditAction(v)
		if err != nil {
			return f, "Invalid action: " + v
		}
		f.Action = a
	}
	if v := queryString(r, "resource"); v != "" {
		res, err := model.ParseAuditResource(v)
		if err != nil {
			return f, "Invalid resource: " + v
		}
		f.Resource = res
	}
	if v := queryString(r, "startDate"); v != "" {
		t, ok := parseDate(v, false)
		if !ok {
			return f, "Invalid startDate: " + v
		}
		f.StartDate = &t
	}
	if v := queryString(r, "endDate"); v != "" {
		t, ok := parseDate(v, true)
		if !ok {
			return f, "Invalid endDate: " + v
		}
		f.EndDate = &t
	}
	if f.StartDate != nil && f.EndDate != nil && f.EndDate.Before(*f.StartDate) {
		return f, "endDate must not be before startDate"
	}
	return f, ""
}

// parseDate accepts RFC 3339 timestamps or plain dates. A plain date used
// as an inclusive upper bound covers the whole day.
func parseDate(s string, endOfDay bool) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), true
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, false
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t.UTC(), true
}
