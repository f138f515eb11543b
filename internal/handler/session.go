package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/teamplatform/teamplatform/internal/audit"
	"github.com/teamplatform/teamplatform/internal/config"
	"github.com/teamplatform/teamplatform/internal/model"
	"github.com/teamplatform/teamplatform/internal/server/middleware"
	"github.com/teamplatform/teamplatform/internal/service"
)

// UserLookup resolves users by ID.
type UserLookup interface {
	GetUser(ctx context.Context, id string) (*model.User, error)
}

// SessionHandler signs users in and out.
type SessionHandler struct {
	auth   *service.AuthService
	users  UserLookup
	audit  *audit.Recorder
	logger *slog.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(auth *service.AuthService, users UserLookup, recorder *audit.Recorder, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{auth: auth, users: users, audit: recorder, logger: logger}
}

// loginRequest is the expected payload for the Login endpoint.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginResponse is the response payload for a successful login.
type loginResponse struct {
	Token     string      `json:"token"`
	TokenType string      `json:"token_type"`
	ExpiresIn int         `json:"expires_in"`
	User      sessionUser `json:"user"`
}

type sessionUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// Login authenticates a user and returns a session token.
// POST /api/auth/login
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	user, token, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if !errors.Is(err, service.ErrValidationFailed) && !errors.Is(err, service.ErrStoreUnavailable) {
			h.audit.LoginFailed(auditContext(r), sanitizeString(req.Email), err)
		}
		writeServiceError(w, r, h.logger, err, "Authentication error")
		return
	}

	ac := auditContext(r)
	ac.Actor = &audit.Actor{UserID: user.ID, Email: user.Email, Role: user.Role}
	h.audit.UserLoggedIn(ac, user.ID)

	writeJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		TokenType: "bearer",
		ExpiresIn: int(h.auth.TTL().Seconds()),
		User:      sessionUser{ID: user.ID, Email: user.Email, Name: user.Name, Role: user.Role},
	})
}

// Logout records the end of a session. Tokens are stateless, so clients
// discard theirs.
// POST /api/auth/logout
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if id := middleware.GetIdentity(r.Context()); id != nil {
		h.audit.UserLoggedOut(auditContext(r), id.UserID)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// Me returns the signed-in user.
// GET /api/auth/me
func (h *SessionHandler) Me(w http.ResponseWriter, r *http.Request) {
	id := middleware.GetIdentity(r.Context())
	if id == nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	user, err := h.users.GetUser(r.Context(), id.UserID)
	if err != nil {
		if errors.Is(err, config.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		h.logger.Error("failed to load session user", "user_id", id.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to load user")
		return
	}
	writeJSON(w, http.StatusOK, sessionUser{ID: user.ID, Email: user.Email, Name: user.Name, Role: user.Role})
}
