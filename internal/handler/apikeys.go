package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/teamplatform/teamplatform/internal/audit"
	"github.com/teamplatform/teamplatform/internal/config"
	"github.com/teamplatform/teamplatform/internal/model"
	"github.com/teamplatform/teamplatform/internal/server/middleware"
	"github.com/teamplatform/teamplatform/internal/service"
)

// APIKeyHandler serves the admin API key endpoints.
type APIKeyHandler struct {
	keys   *service.APIKeyService
	audit  *audit.Recorder
	logger *slog.Logger
}

// NewAPIKeyHandler creates a new APIKeyHandler.
func NewAPIKeyHandler(keys *service.APIKeyService, recorder *audit.Recorder, logger *slog.Logger) *APIKeyHandler {
	return &APIKeyHandler{keys: keys, audit: recorder, logger: logger}
}

// ListAPIKeys returns every key, newest first. Neither the plaintext nor
// the digest is ever included.
// GET /api/admin/api-keys
func (h *APIKeyHandler) ListAPIKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.keys.List(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Failed to fetch API keys")
		return
	}
	if keys == nil {
		keys = []model.APIKey{}
	}
	writeJSON(w, http.StatusOK, model.ListResponse{
		Resource: keys,
		Meta:     &model.ResponseMeta{Count: len(keys)},
	})
}

type createAPIKeyRequest struct {
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	Permissions   []string `json:"permissions"`
	ExpiresInDays *int     `json:"expiresInDays"`
}

type createAPIKeyResponse struct {
	ID          string     `json:"id"`
	Key         string     `json:"key"`
	Name        string     `json:"name"`
	Permissions []string   `json:"permissions"`
	ExpiresAt   *time.Time `json:"expiresAt"`
	Message     string     `json:"message"`
}

// CreateAPIKey issues a key and returns its plaintext exactly once.
// POST /api/admin/api-keys
func (h *APIKeyHandler) CreateAPIKey(w http.ResponseWriter, r *http.Request) {
	var req createAPIKeyRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	req.Name = sanitizeString(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Name is required")
		return
	}
	if len(req.Permissions) == 0 {
		writeError(w, http.StatusBadRequest, "At least one permission is required")
		return
	}
	if req.ExpiresInDays != nil && *req.ExpiresInDays <= 0 {
		writeError(w, http.StatusBadRequest, "expiresInDays must be positive")
		return
	}

	params := service.CreateAPIKeyParams{
		Name:        req.Name,
		Description: sanitizeString(req.Description),
		Permissions: req.Permissions,
		ExpiresAt:   service.ExpiryFromDays(time.Now(), req.ExpiresInDays),
	}
	if id := middleware.GetIdentity(r.Context()); id != nil {
		params.CreatedBy = id.UserID
	}

	issued, err := h.keys.Create(r.Context(), params)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Failed to create API key")
		return
	}

	rec := issued.Record
	h.audit.KeyIssued(auditContext(r), rec.ID, rec.Name, rec.Permissions)

	writeJSON(w, http.StatusCreated, createAPIKeyResponse{
		ID:          rec.ID,
		Key:         issued.Key,
		Name:        rec.Name,
		Permissions: rec.Permissions,
		ExpiresAt:   rec.ExpiresAt,
		Message:     "Save this API key securely - it will not be shown again",
	})
}

// RevokeAPIKey deactivates a key. Revoking an inactive key succeeds.
// DELETE /api/admin/api-keys/{keyId} or DELETE /api/admin/api-keys?id=
func (h *APIKeyHandler) RevokeAPIKey(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "keyId")
	if id == "" {
		id = queryString(r, "id")
	}
	if id == "" {
		writeError(w, http.StatusBadRequest, "API key ID required")
		return
	}

	changed, err := h.keys.Revoke(r.Context(), id)
	if err != nil {
		if errors.Is(err, config.ErrNotFound) {
			writeError(w, http.StatusNotFound, "API key not found")
			return
		}
		writeServiceError(w, r, h.logger, err, "Failed to revoke API key")
		return
	}

	if changed {
		h.audit.KeyRevoked(auditContext(r), id)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "API key revoked successfully",
	})
}

// WhoAmI describes the API key making the request.
// GET /api/v1/whoami
func (h *APIKeyHandler) WhoAmI(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetAPIKeyPrincipal(r.Context())
	if p == nil {
		writeError(w, http.StatusUnauthorized, "API key required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":          p.ID,
		"name":        p.Name,
		"permissions": p.Permissions,
	})
}
