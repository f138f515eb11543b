package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// AuditAction identifies what happened in an audit record. The set is
// closed: values only come from the variables below or ParseAuditAction,
// so a new action has to be declared here before anything can record it.
type AuditAction struct{ tag string }

var (
	ActionSwimmerCreate  = AuditAction{"swimmer.create"}
	ActionSwimmerUpdate  = AuditAction{"swimmer.update"}
	ActionSwimmerDelete  = AuditAction{"swimmer.delete"}
	ActionSwimmerView    = AuditAction{"swimmer.view"}
	ActionRosterCreate   = AuditAction{"roster.create"}
	ActionRosterUpdate   = AuditAction{"roster.update"}
	ActionRosterDelete   = AuditAction{"roster.delete"}
	ActionTeamCreate     = AuditAction{"team.create"}
	ActionTeamUpdate     = AuditAction{"team.update"}
	ActionTeamDelete     = AuditAction{"team.delete"}
	ActionEventCreate    = AuditAction{"event.create"}
	ActionEventUpdate    = AuditAction{"event.update"}
	ActionEventDelete    = AuditAction{"event.delete"}
	ActionUserCreate     = AuditAction{"user.create"}
	ActionUserUpdate     = AuditAction{"user.update"}
	ActionUserDelete     = AuditAction{"user.delete"}
	ActionUserLogin      = AuditAction{"user.login"}
	ActionUserLogout     = AuditAction{"user.logout"}
	ActionAPIKeyCreate   = AuditAction{"apikey.create"}
	ActionAPIKeyRevoke   = AuditAction{"apikey.revoke"}
	ActionExportSwimmers = AuditAction{"export.swimmers"}
	ActionExportResults  = AuditAction{"export.results"}
	ActionImportResults  = AuditAction{"import.results"}
)

// AuditActions lists every declared action.
var AuditActions = []AuditAction{
	ActionSwimmerCreate, ActionSwimmerUpdate, ActionSwimmerDelete, ActionSwimmerView,
	ActionRosterCreate, ActionRosterUpdate, ActionRosterDelete,
	ActionTeamCreate, ActionTeamUpdate, ActionTeamDelete,
	ActionEventCreate, ActionEventUpdate, ActionEventDelete,
	ActionUserCreate, ActionUserUpdate, ActionUserDelete, ActionUserLogin, ActionUserLogout,
	ActionAPIKeyCreate, ActionAPIKeyRevoke,
	ActionExportSwimmers, ActionExportResults, ActionImportResults,
}

// ParseAuditAction returns the declared action whose tag is s.
func ParseAuditAction(s string) (AuditAction, error) {
	for _, a := range AuditActions {
		if a.tag == s {
			return a, nil
		}
	}
	return AuditAction{}, fmt.Errorf("unknown audit action %q", s)
}

func (a AuditAction) String() string { return a.tag }

// IsZero reports whether a is the zero value rather than a declared action.
func (a AuditAction) IsZero() bool { return a.tag == "" }

func (a AuditAction) MarshalText() ([]byte, error) { return []byte(a.tag), nil }

func (a *AuditAction) UnmarshalText(b []byte) error {
	v, err := ParseAuditAction(string(b))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

func (a AuditAction) Value() (driver.Value, error) {
	if a.IsZero() {
		return nil, fmt.Errorf("audit action is not set")
	}
	return a.tag, nil
}

func (a *AuditAction) Scan(src interface{}) error {
	s, err := scanText(src)
	if err != nil {
		return fmt.Errorf("audit action: %w", err)
	}
	return a.UnmarshalText([]byte(s))
}

// AuditResource identifies the kind of entity an audit record refers to.
// Like AuditAction it is a closed set.
type AuditResource struct{ tag string }

var (
	ResourceSwimmer = AuditResource{"Swimmer"}
	ResourceRoster  = AuditResource{"Roster"}
	ResourceTeam    = AuditResource{"Team"}
	ResourceEvent   = AuditResource{"Event"}
	ResourceUser    = AuditResource{"User"}
	ResourceAPIKey  = AuditResource{"ApiKey"}
	ResourceExport  = AuditResource{"Export"}
	ResourceImport  = AuditResource{"Import"}
)

// AuditResources lists every declared resource.
var AuditResources = []AuditResource{
	ResourceSwimmer, ResourceRoster, ResourceTeam, ResourceEvent,
	ResourceUser, ResourceAPIKey, ResourceExport, ResourceImport,
}

// ParseAuditResource returns the declared resource whose tag is s.
func ParseAuditResource(s string) (AuditResource, error) {
	for _, r := range AuditResources {
		if r.tag == s {
			return r, nil
		}
	}
	return AuditResource{}, fmt.Errorf("unknown audit resource %q", s)
}

func (r AuditResource) String() string { return r.tag }

func (r AuditResource) IsZero() bool { return r.tag == "" }

func (r AuditResource) MarshalText() ([]byte, error) { return []byte(r.tag), nil }

func (r *AuditResource) UnmarshalText(b []byte) error {
	v, err := ParseAuditResource(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

func (r AuditResource) Value() (driver.Value, error) {
	if r.IsZero() {
		return nil, fmt.Errorf("audit resource is not set")
	}
	return r.tag, nil
}

func (r *AuditResource) Scan(src interface{}) error {
	s, err := scanText(src)
	if err != nil {
		return fmt.Errorf("audit resource: %w", err)
	}
	return r.UnmarshalText([]byte(s))
}

// AuditStatus is the outcome recorded with an audit entry.
type AuditStatus string

const (
	AuditSuccess AuditStatus = "success"
	AuditFailure AuditStatus = "failure"
	AuditError   AuditStatus = "error"
)

// AuditLog is one append-only audit record.
type AuditLog struct {
	ID         string        `json:"id" db:"id"`
	Action     AuditAction   `json:"action" db:"action"`
	Resource   AuditResource `json:"resource" db:"resource"`
	ResourceID *string       `json:"resource_id,omitempty" db:"resource_id"`
	UserID     *string       `json:"user_id,omitempty" db:"user_id"`
	UserEmail  *string       `json:"user_email,omitempty" db:"user_email"`
	UserRole   *string       `json:"user_role,omitempty" db:"user_role"`
	IPAddress  string        `json:"ip_address" db:"ip_address"`
	UserAgent  *string       `json:"user_agent,omitempty" db:"user_agent"`
	Details    Details       `json:"details,omitempty" db:"details"`
	Status     AuditStatus   `json:"status" db:"status"`
	CreatedAt  time.Time     `json:"created_at" db:"created_at"`
}

// AuditFilter narrows an audit log query. Zero-valued fields do not filter.
type AuditFilter struct {
	Action    AuditAction
	Resource  AuditResource
	UserID    string
	StartDate *time.Time
	EndDate   *time.Time
	Limit     int
	Offset    int
}

// Details is a free-form structured payload stored as JSON text.
type Details map[string]interface{}

// Value implements driver.Valuer. A nil map is stored as NULL.
func (d Details) Value() (driver.Value, error) {
	if d == nil {
		return nil, nil
	}
	b, err := json.Marshal(map[string]interface{}(d))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (d *Details) Scan(src interface{}) error {
	if src == nil {
		*d = nil
		return nil
	}
	s, err := scanText(src)
	if err != nil {
		return fmt.Errorf("details: %w", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return fmt.Errorf("details: %w", err)
	}
	*d = m
	return nil
}

func scanText(src interface{}) (string, error) {
	switch v := src.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		return "", fmt.Errorf("unsupported type %T", src)
	}
}
