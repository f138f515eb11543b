package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/httprate"

	"github.com/teamplatform/teamplatform/internal/model"
	"github.com/teamplatform/teamplatform/internal/service"
)

type contextKeyAuth string

const (
	// IdentityKey is the context key for the session identity.
	IdentityKey contextKeyAuth = "identity"
	// APIKeyPrincipalKey is the context key for the validated API key.
	APIKeyPrincipalKey contextKeyAuth = "api_key_principal"
)

// Client-facing messages for session checks.
const (
	msgUnauthorized = "Unauthorized"
	msgForbidden    = "Forbidden: Insufficient permissions"
)

// SessionValidator validates session tokens.
type SessionValidator interface {
	ValidateJWT(ctx context.Context, token string) (*service.Identity, error)
}

// KeyValidator validates presented API keys.
type KeyValidator interface {
	Validate(ctx context.Context, rawKey string) (*service.APIKeyPrincipal, error)
}

// Authenticate resolves the session identity from a Bearer token. Tokens
// carrying the API key prefix are never treated as sessions. Requests
// without a valid session get a 401.
func Authenticate(sessions SessionValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok || service.LooksLikeAPIKey(token) {
				writeAuthError(w, http.StatusUnauthorized, msgUnauthorized)
				return
			}
			id, err := sessions.ValidateJWT(r.Context(), token)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, msgUnauthorized)
				return
			}
			AddLogAttrs(r.Context(), slog.String("user_id", id.UserID))
			ctx := context.WithValue(r.Context(), IdentityKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole admits only sessions holding one of roles. It must be used
// after Authenticate.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := GetIdentity(r.Context())
			if id == nil {
				writeAuthError(w, http.StatusUnauthorized, msgUnauthorized)
				return
			}
			if !id.HasRole(roles...) {
				writeAuthError(w, http.StatusForbidden, msgForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAPIKey validates the key presented in X-API-Key or as a Bearer
// token and attaches the principal to the context.
func RequireAPIKey(keys KeyValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := keys.Validate(r.Context(), ExtractAPIKey(r))
			if err != nil {
				if errors.Is(err, service.ErrStoreUnavailable) {
					logger.Error("api key validation failed",
						"error", err,
						"request_id", GetRequestID(r.Context()),
					)
				}
				writeAuthError(w, service.HTTPStatus(err), service.PublicMessage(err, "Failed to validate API key"))
				return
			}
			AddLogAttrs(r.Context(), slog.String("api_key_id", p.ID))
			ctx := context.WithValue(r.Context(), APIKeyPrincipalKey, p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePermission admits only API keys holding the required permission.
// It must be used after RequireAPIKey.
func RequirePermission(required string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := GetAPIKeyPrincipal(r.Context())
			if p == nil {
				writeAuthError(w, http.StatusUnauthorized, "API key required")
				return
			}
			if !p.Can(required) {
				writeAuthError(w, http.StatusForbidden, msgForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ThrottleByAPIKey limits each validated API key to requestsPerMinute,
// independently of the per-IP admission gate. It must be used after
// RequireAPIKey. A non-positive limit disables it.
func ThrottleByAPIKey(requestsPerMinute int) func(http.Handler) http.Handler {
	if requestsPerMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(
		requestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			if p := GetAPIKeyPrincipal(r.Context()); p != nil {
				return "key:" + p.ID, nil
			}
			return "ip:" + ClientIP(r), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			writeAuthError(w, http.StatusTooManyRequests, "Too many requests")
		}),
	)
}

// ExtractAPIKey returns the raw key from X-API-Key or the Authorization
// header, stripping a Bearer prefix.
func ExtractAPIKey(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get("X-API-Key")); key != "" {
		return key
	}
	if token, ok := bearerToken(r); ok {
		return token
	}
	return strings.TrimSpace(r.Header.Get("Authorization"))
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	return token, token != ""
}

// GetIdentity returns the session identity, or nil if unauthenticated.
func GetIdentity(ctx context.Context) *service.Identity {
	if id, ok := ctx.Value(IdentityKey).(*service.Identity); ok {
		return id
	}
	return nil
}

// GetAPIKeyPrincipal returns the validated API key, or nil.
func GetAPIKeyPrincipal(ctx context.Context) *service.APIKeyPrincipal {
	if p, ok := ctx.Value(APIKeyPrincipalKey).(*service.APIKeyPrincipal); ok {
		return p
	}
	return nil
}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id *service.Identity) context.Context {
	return context.WithValue(ctx, IdentityKey, id)
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(model.ErrorResponse{
		Error: model.ErrorDetail{Code: status, Message: message},
	})
}
