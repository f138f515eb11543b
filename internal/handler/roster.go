package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/teamplatform/teamplatform/internal/audit"
	"github.com/teamplatform/teamplatform/internal/config"
	"github.com/teamplatform/teamplatform/internal/model"
	"github.com/teamplatform/teamplatform/internal/server/middleware"
)

// RosterStore is the slice of the record store used for rosters.
type RosterStore interface {
	CreateRoster(ctx context.Context, r *model.Roster) error
	ListRosters(ctx context.Context) ([]model.Roster, error)
	DeleteRoster(ctx context.Context, id string) error
}

// RosterHandler serves roster CRUD for both session users and API keys.
type RosterHandler struct {
	store  RosterStore
	audit  *audit.Recorder
	logger *slog.Logger
}

// NewRosterHandler creates a new RosterHandler.
func NewRosterHandler(store RosterStore, recorder *audit.Recorder, logger *slog.Logger) *RosterHandler {
	return &RosterHandler{store: store, audit: recorder, logger: logger}
}

// ListRosters returns all rosters ordered by name.
// GET /api/rosters, GET /api/v1/rosters
func (h *RosterHandler) ListRosters(w http.ResponseWriter, r *http.Request) {
	rosters, err := h.store.ListRosters(r.Context())
	if err != nil {
		h.logger.Error("failed to list rosters", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch rosters")
		return
	}
	if rosters == nil {
		rosters = []model.Roster{}
	}
	writeJSON(w, http.StatusOK, model.ListResponse{
		Resource: rosters,
		Meta:     &model.ResponseMeta{Count: len(rosters)},
	})
}

// CreateRoster validates and stores a roster.
// POST /api/rosters, POST /api/v1/rosters
func (h *RosterHandler) CreateRoster(w http.ResponseWriter, r *http.Request) {
	var in rosterInput
	if err := readJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if errs := in.validate(); len(errs) > 0 {
		writeError(w, http.StatusBadRequest, errs[0].Message, validationContext(errs))
		return
	}

	roster := in.roster()
	details := model.Details{"name": roster.Name}
	if id := middleware.GetIdentity(r.Context()); id != nil {
		roster.CreatedBy = &id.UserID
	}
	if key := middleware.GetAPIKeyPrincipal(r.Context()); key != nil {
		details["api_key_id"] = key.ID
	}

	if err := h.store.CreateRoster(r.Context(), roster); err != nil {
		h.logger.Error("failed to create roster", "error", err)
		h.audit.RecordFailure(auditContext(r), audit.Entry{
			Action:   model.ActionRosterCreate,
			Resource: model.ResourceRoster,
			Details:  details,
		}, errors.New("store write failed"))
		writeError(w, http.StatusInternalServerError, "Failed to create roster")
		return
	}

	h.audit.RosterCreated(auditContext(r), roster.ID, details)
	writeJSON(w, http.StatusCreated, roster)
}

// DeleteRoster removes a roster.
// DELETE /api/rosters/{id}
func (h *RosterHandler) DeleteRoster(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.store.DeleteRoster(r.Context(), id); err != nil {
		if errors.Is(err, config.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Roster not found")
			return
		}
		h.logger.Error("failed to delete roster", "roster_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to delete roster")
		return
	}
	h.audit.RosterDeleted(auditContext(r), id, nil)
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}
