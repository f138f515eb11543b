package config

import (
	"fmt"
	"strings"
)

// Statements are written in the subset of SQL shared by SQLite and
// PostgreSQL: string IDs, TIMESTAMP, BOOLEAN, and IF NOT EXISTS guards.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id VARCHAR(36) PRIMARY KEY,
		email VARCHAR(255) UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		role VARCHAR(16) NOT NULL DEFAULT 'COACH',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		last_login_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS api_keys (
		id VARCHAR(36) PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		permissions TEXT NOT NULL DEFAULT '[]',
		key_hash VARCHAR(64) UNIQUE NOT NULL,
		key_prefix VARCHAR(16) NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		expires_at TIMESTAMP,
		last_used_at TIMESTAMP,
		usage_count BIGINT NOT NULL DEFAULT 0,
		created_by VARCHAR(36),
		created_at TIMESTAMP NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_api_keys_created_at ON api_keys(created_at)`,

	`CREATE TABLE IF NOT EXISTS audit_logs (
		id VARCHAR(36) PRIMARY KEY,
		action VARCHAR(32) NOT NULL,
		resource VARCHAR(16) NOT NULL,
		resource_id VARCHAR(64),
		user_id VARCHAR(36),
		user_email TEXT,
		user_role VARCHAR(16),
		ip_address VARCHAR(64) NOT NULL,
		user_agent TEXT,
		details TEXT,
		status VARCHAR(8) NOT NULL DEFAULT 'success',
		created_at TIMESTAMP NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_audit_logs_created_at ON audit_logs(created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_logs_action ON audit_logs(action)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_logs_user_id ON audit_logs(user_id)`,

	`CREATE TABLE IF NOT EXISTS rosters (
		id VARCHAR(36) PRIMARY KEY,
		name VARCHAR(100) NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		sport VARCHAR(50) NOT NULL DEFAULT 'Swimming',
		created_by VARCHAR(36),
		created_at TIMESTAMP NOT NULL
	)`,
}

func (s *Store) migrate() error {
	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			// ADD COLUMN reruns fail with "duplicate column" (SQLite) or
			// "already exists" (PostgreSQL); both mean the step was applied.
			msg := err.Error()
			if strings.Contains(msg, "duplicate column") || strings.Contains(msg, "already exists") {
				continue
			}
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}
