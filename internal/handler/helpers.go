package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/teamplatform/teamplatform/internal/audit"
	"github.com/teamplatform/teamplatform/internal/model"
	"github.com/teamplatform/teamplatform/internal/server/middleware"
	"github.com/teamplatform/teamplatform/internal/service"
)

// writeJSON serializes v as JSON and writes it to the response with the given
// HTTP status code. The Content-Type header is set to application/json.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a structured error response using the standard error
// envelope. The optional ctx map provides additional context fields.
func writeError(w http.ResponseWriter, code int, message string, ctx ...map[string]interface{}) {
	var ctxMap map[string]interface{}
	if len(ctx) > 0 {
		ctxMap = ctx[0]
	}
	writeJSON(w, code, model.ErrorResponse{
		Error: model.ErrorDetail{
			Code:    code,
			Message: message,
			Context: ctxMap,
		},
	})
}

// writeServiceError maps a service error onto a response. Validation errors
// carry the offending field; store failures are logged and replaced by
// fallback.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error, fallback string) {
	status := service.HTTPStatus(err)
	if status >= 500 {
		logger.Error(fallback,
			"error", err,
			"request_id", middleware.GetRequestID(r.Context()),
		)
	}
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		writeError(w, status, verr.Message, map[string]interface{}{"field": verr.Field})
		return
	}
	writeError(w, status, service.PublicMessage(err, fallback))
}

// readJSON decodes the request body as JSON into v. The body is closed after
// decoding regardless of success or failure.
func readJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// queryInt extracts an integer query parameter, returning defaultVal if the
// parameter is missing or cannot be parsed.
func queryInt(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

// queryString extracts a string query parameter.
func queryString(r *http.Request, key string) string {
	return r.URL.Query().Get(key)
}

// clampInt constrains val to be within [min, max].
func clampInt(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}

// auditContext captures the request metadata for audit records. The actor
// is the session identity when one is present.
func auditContext(r *http.Request) audit.Context {
	ac := audit.Context{
		IPAddress: middleware.ClientIP(r),
		UserAgent: r.UserAgent(),
	}
	if id := middleware.GetIdentity(r.Context()); id != nil {
		ac.Actor = &audit.Actor{UserID: id.UserID, Email: id.Email, Role: id.Role}
	}
	return ac
}
