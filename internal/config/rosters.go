package config

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/teamplatform/teamplatform/internal/model"
)

// CreateRoster inserts a roster. ID and CreatedAt are populated.
func (s *Store) CreateRoster(ctx context.Context, r *model.Roster) error {
	r.ID = newID()
	r.CreatedAt = time.Now().UTC()
	if r.Sport == "" {
		r.Sport = model.DefaultSport
	}

	const q = `INSERT INTO rosters (id, name, description, sport, created_by, created_at)
		VALUES (:id, :name, :description, :sport, :created_by, :created_at)`

	if _, err := s.db.NamedExecContext(ctx, q, r); err != nil {
		return fmt.Errorf("insert roster: %w", err)
	}
	return nil
}

// GetRoster returns a roster by ID.
func (s *Store) GetRoster(ctx context.Context, id string) (*model.Roster, error) {
	var r model.Roster
	if err := s.db.GetContext(ctx, &r, s.db.Rebind("SELECT * FROM rosters WHERE id = ?"), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get roster: %w", err)
	}
	return &r, nil
}

// ListRosters returns all rosters ordered by name.
func (s *Store) ListRosters(ctx context.Context) ([]model.Roster, error) {
	var rosters []model.Roster
	if err := s.db.SelectContext(ctx, &rosters, "SELECT * FROM rosters ORDER BY name"); err != nil {
		return nil, fmt.Errorf("list rosters: %w", err)
	}
	return rosters, nil
}

// DeleteRoster removes a roster by ID.
func (s *Store) DeleteRoster(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, s.db.Rebind("DELETE FROM rosters WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("delete roster: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete roster rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
