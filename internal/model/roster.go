package model

import "time"

// DefaultSport is assigned to rosters created without an explicit sport.
const DefaultSport = "Swimming"

// Roster is a named group of swimmers.
type Roster struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	Sport       string    `json:"sport" db:"sport"`
	CreatedBy   *string   `json:"created_by,omitempty" db:"created_by"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
