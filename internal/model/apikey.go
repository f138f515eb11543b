package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// APIKey is an issued credential for programmatic access. The raw key is
// never stored; only its SHA-256 digest and a short display prefix are
// persisted. Keys are revoked by clearing IsActive, never deleted.
type APIKey struct {
	ID          string      `json:"id" db:"id"`
	Name        string      `json:"name" db:"name"`
	Description string      `json:"description" db:"description"`
	Permissions Permissions `json:"permissions" db:"permissions"`
	KeyHash     string      `json:"-" db:"key_hash"`
	KeyPrefix   string      `json:"key_prefix" db:"key_prefix"`
	IsActive    bool        `json:"is_active" db:"is_active"`
	ExpiresAt   *time.Time  `json:"expires_at,omitempty" db:"expires_at"`
	LastUsedAt  *time.Time  `json:"last_used_at,omitempty" db:"last_used_at"`
	UsageCount  int64       `json:"usage_count" db:"usage_count"`
	CreatedBy   *string     `json:"created_by,omitempty" db:"created_by"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
}

// Expired reports whether the key has an expiry that lies before now.
func (k *APIKey) Expired(now time.Time) bool {
	return k.ExpiresAt != nil && k.ExpiresAt.Before(now)
}

// Permissions is the set of "resource:action" capability tokens held by a
// key. It is stored as a JSON array in a single text column.
type Permissions []string

// Value implements driver.Valuer.
func (p Permissions) Value() (driver.Value, error) {
	if p == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(p))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (p *Permissions) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*p = Permissions{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("permissions: unsupported type %T", src)
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("permissions: %w", err)
	}
	*p = out
	return nil
}
