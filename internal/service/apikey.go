package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/teamplatform/teamplatform/internal/async"
	"github.com/teamplatform/teamplatform/internal/config"
	"github.com/teamplatform/teamplatform/internal/metrics"
	"github.com/teamplatform/teamplatform/internal/model"
)

// MaxKeyNameLen bounds the display name of an API key.
const MaxKeyNameLen = 100

// APIKeyStore is the slice of the record store used for API keys.
type APIKeyStore interface {
	CreateAPIKey(ctx context.Context, key *model.APIKey) error
	GetAPIKeyByHash(ctx context.Context, hash string) (*model.APIKey, error)
	ListAPIKeys(ctx context.Context) ([]model.APIKey, error)
	RevokeAPIKey(ctx context.Context, id string) (bool, error)
	RecordAPIKeyUsage(ctx context.Context, id string, at time.Time) error
}

// APIKeyPrincipal is the identity established by a valid API key.
type APIKeyPrincipal struct {
	ID          string
	Name        string
	Permissions []string
}

// Can reports whether the key holds the required permission.
func (p *APIKeyPrincipal) Can(required string) bool {
	return HasPermission(p.Permissions, required)
}

// CreateAPIKeyParams describes a key to issue.
type CreateAPIKeyParams struct {
	Name        string
	Description string
	Permissions []string
	ExpiresAt   *time.Time
	CreatedBy   string
}

// IssuedAPIKey is returned once from Create. Key is the plaintext and is
// not recoverable afterwards.
type IssuedAPIKey struct {
	Key    string
	Record *model.APIKey
}

// APIKeyService issues, validates, and revokes API keys.
type APIKeyService struct {
	store  APIKeyStore
	exec   async.Executor
	logger *slog.Logger
	now    func() time.Time
}

// APIKeyOption configures an APIKeyService.
type APIKeyOption func(*APIKeyService)

// WithClock overrides the time source used for expiry checks and usage
// timestamps.
func WithClock(now func() time.Time) APIKeyOption {
	return func(s *APIKeyService) { s.now = now }
}

// NewAPIKeyService creates an APIKeyService. Usage accounting runs on exec.
func NewAPIKeyService(store APIKeyStore, exec async.Executor, logger *slog.Logger, opts ...APIKeyOption) *APIKeyService {
	s := &APIKeyService{
		store:  store,
		exec:   exec,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Validate checks a presented plaintext key. Missing and unknown keys fail
// with ErrUnauthenticated; revoked and expired keys with ErrForbidden; store
// failures with ErrStoreUnavailable. On success the usage counters are
// updated in the background.
func (s *APIKeyService) Validate(ctx context.Context, rawKey string) (*APIKeyPrincipal, error) {
	if rawKey == "" {
		metrics.APIKeyValidations.WithLabelValues("missing").Inc()
		return nil, ErrAPIKeyRequired
	}

	key, err := s.store.GetAPIKeyByHash(ctx, HashAPIKey(rawKey))
	if err != nil {
		if errors.Is(err, config.ErrNotFound) {
			metrics.APIKeyValidations.WithLabelValues("invalid").Inc()
			return nil, ErrInvalidAPIKey
		}
		metrics.APIKeyValidations.WithLabelValues("error").Inc()
		return nil, unavailable("validate api key", err)
	}

	now := s.now()
	if !key.IsActive {
		metrics.APIKeyValidations.WithLabelValues("inactive").Inc()
		return nil, ErrKeyInactive
	}
	if key.Expired(now) {
		metrics.APIKeyValidations.WithLabelValues("expired").Inc()
		return nil, ErrKeyExpired
	}

	id := key.ID
	s.exec.Go("apikey.usage", func(ctx context.Context) {
		if err := s.store.RecordAPIKeyUsage(ctx, id, now); err != nil {
			s.logger.Warn("failed to record api key usage", "key_id", id, "error", err)
		}
	})

	metrics.APIKeyValidations.WithLabelValues("valid").Inc()
	return &APIKeyPrincipal{
		ID:          key.ID,
		Name:        key.Name,
		Permissions: []string(key.Permissions),
	}, nil
}

// Create issues a new key. The plaintext is returned exactly once and only
// its digest is persisted.
func (s *APIKeyService) Create(ctx context.Context, p CreateAPIKeyParams) (*IssuedAPIKey, error) {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return nil, invalid("name", "Name is required")
	}
	if len(name) > MaxKeyNameLen {
		return nil, invalid("name", fmt.Sprintf("Name must be at most %d characters", MaxKeyNameLen))
	}
	if len(p.Permissions) == 0 {
		return nil, invalid("permissions", "At least one permission is required")
	}
	perms := make(model.Permissions, 0, len(p.Permissions))
	seen := make(map[string]bool, len(p.Permissions))
	for _, perm := range p.Permissions {
		perm = strings.TrimSpace(perm)
		if !ValidPermission(perm) {
			return nil, invalid("permissions", fmt.Sprintf("Invalid permission %q: expected resource:action or *", perm))
		}
		if !seen[perm] {
			seen[perm] = true
			perms = append(perms, perm)
		}
	}
	if p.ExpiresAt != nil && !p.ExpiresAt.After(s.now()) {
		return nil, invalid("expiresAt", "Expiry must be in the future")
	}

	plaintext, err := GenerateAPIKey()
	if err != nil {
		return nil, err
	}

	rec := &model.APIKey{
		Name:        name,
		Description: strings.TrimSpace(p.Description),
		Permissions: perms,
		KeyHash:     HashAPIKey(plaintext),
		KeyPrefix:   DisplayPrefix(plaintext),
		IsActive:    true,
	}
	if p.ExpiresAt != nil {
		exp := p.ExpiresAt.UTC()
		rec.ExpiresAt = &exp
	}
	if p.CreatedBy != "" {
		createdBy := p.CreatedBy
		rec.CreatedBy = &createdBy
	}

	if err := s.store.CreateAPIKey(ctx, rec); err != nil {
		return nil, unavailable("create api key", err)
	}
	return &IssuedAPIKey{Key: plaintext, Record: rec}, nil
}

// Revoke deactivates a key. Revoking an already inactive key is not an
// error; changed reports whether this call flipped the flag. Unknown IDs
// return an error matching config.ErrNotFound.
func (s *APIKeyService) Revoke(ctx context.Context, id string) (changed bool, err error) {
	if strings.TrimSpace(id) == "" {
		return false, invalid("id", "API key ID is required")
	}
	changed, err = s.store.RevokeAPIKey(ctx, id)
	if err != nil {
		if errors.Is(err, config.ErrNotFound) {
			return false, fmt.Errorf("revoke api key %s: %w", id, err)
		}
		return false, unavailable("revoke api key", err)
	}
	return changed, nil
}

// List returns all keys, newest first.
func (s *APIKeyService) List(ctx context.Context) ([]model.APIKey, error) {
	keys, err := s.store.ListAPIKeys(ctx)
	if err != nil {
		return nil, unavailable("list api keys", err)
	}
	return keys, nil
}

// ExpiryFromDays converts an expires-in-days value into an absolute time.
// A nil or non-positive value means no expiry.
func ExpiryFromDays(now time.Time, days *int) *time.Time {
	if days == nil || *days <= 0 {
		return nil
	}
	t := now.Add(time.Duration(*days) * 24 * time.Hour).UTC()
	return &t
}
