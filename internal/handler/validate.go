package handler

import (
	"strings"

	"github.com/teamplatform/teamplatform/internal/model"
)

// Input bounds.
const (
	maxInputLen       = 10000
	maxRosterNameLen  = 100
	maxDescriptionLen = 500
)

// sanitizeString trims s, strips angle brackets, and caps its length.
func sanitizeString(s string) string {
	s = strings.TrimSpace(s)
	s = strings.NewReplacer("<", "", ">", "").Replace(s)
	if len(s) > maxInputLen {
		s = s[:maxInputLen]
	}
	return s
}

// fieldError is one failed validation rule.
type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type rosterInput struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	Sport       string  `json:"sport"`
}

// validate sanitizes the input in place and returns every rule it breaks.
func (in *rosterInput) validate() []fieldError {
	var errs []fieldError

	in.Name = sanitizeString(in.Name)
	switch {
	case in.Name == "":
		errs = append(errs, fieldError{"name", "Roster name is required"})
	case len(in.Name) > maxRosterNameLen:
		errs = append(errs, fieldError{"name", "Roster name must be at most 100 characters"})
	}

	if in.Description != nil {
		d := sanitizeString(*in.Description)
		in.Description = &d
		if len(d) > maxDescriptionLen {
			errs = append(errs, fieldError{"description", "Description must be at most 500 characters"})
		}
	}

	in.Sport = sanitizeString(in.Sport)
	if in.Sport == "" {
		in.Sport = model.DefaultSport
	}
	return errs
}

func (in *rosterInput) roster() *model.Roster {
	r := &model.Roster{Name: in.Name, Sport: in.Sport}
	if in.Description != nil {
		r.Description = *in.Description
	}
	return r
}

func validationContext(errs []fieldError) map[string]interface{} {
	return map[string]interface{}{"errors": errs}
}
