package config

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/teamplatform/teamplatform/internal/model"
)

// CreateAPIKey inserts a new API key record. KeyHash and KeyPrefix must
// already be set; ID and CreatedAt are populated here.
func (s *Store) CreateAPIKey(ctx context.Context, key *model.APIKey) error {
	key.ID = newID()
	key.CreatedAt = time.Now().UTC()
	if key.Permissions == nil {
		key.Permissions = model.Permissions{}
	}

	const q = `INSERT INTO api_keys
		(id, name, description, permissions, key_hash, key_prefix, is_active,
		 expires_at, usage_count, created_by, created_at)
		VALUES
		(:id, :name, :description, :permissions, :key_hash, :key_prefix, :is_active,
		 :expires_at, :usage_count, :created_by, :created_at)`

	if _, err := s.db.NamedExecContext(ctx, q, key); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert api key: %w", err)
	}
	return nil
}

// GetAPIKey returns an API key by ID.
func (s *Store) GetAPIKey(ctx context.Context, id string) (*model.APIKey, error) {
	var key model.APIKey
	if err := s.db.GetContext(ctx, &key, s.db.Rebind("SELECT * FROM api_keys WHERE id = ?"), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get api key: %w", err)
	}
	return &key, nil
}

// GetAPIKeyByHash looks up an API key by its SHA-256 digest.
func (s *Store) GetAPIKeyByHash(ctx context.Context, hash string) (*model.APIKey, error) {
	var key model.APIKey
	if err := s.db.GetContext(ctx, &key, s.db.Rebind("SELECT * FROM api_keys WHERE key_hash = ?"), hash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get api key by hash: %w", err)
	}
	return &key, nil
}

// ListAPIKeys returns all API keys, newest first.
func (s *Store) ListAPIKeys(ctx context.Context) ([]model.APIKey, error) {
	var keys []model.APIKey
	if err := s.db.SelectContext(ctx, &keys, "SELECT * FROM api_keys ORDER BY created_at DESC, id DESC"); err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	return keys, nil
}

// RevokeAPIKey marks an API key inactive. Revoking a key that is already
// inactive succeeds with changed=false; only an unknown ID is an error.
func (s *Store) RevokeAPIKey(ctx context.Context, id string) (changed bool, err error) {
	result, err := s.db.ExecContext(ctx,
		s.db.Rebind("UPDATE api_keys SET is_active = ? WHERE id = ? AND is_active = ?"), false, id, true)
	if err != nil {
		return false, fmt.Errorf("revoke api key: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("revoke api key rows affected: %w", err)
	}
	if n > 0 {
		return true, nil
	}

	var count int
	if err := s.db.GetContext(ctx, &count, s.db.Rebind("SELECT COUNT(*) FROM api_keys WHERE id = ?"), id); err != nil {
		return false, fmt.Errorf("revoke api key lookup: %w", err)
	}
	if count == 0 {
		return false, ErrNotFound
	}
	return false, nil
}

// RecordAPIKeyUsage increments usage_count and sets last_used_at.
func (s *Store) RecordAPIKeyUsage(ctx context.Context, id string, at time.Time) error {
	result, err := s.db.ExecContext(ctx,
		s.db.Rebind("UPDATE api_keys SET usage_count = usage_count + 1, last_used_at = ? WHERE id = ?"),
		at.UTC(), id)
	if err != nil {
		return fmt.Errorf("record api key usage: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("record api key usage rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
