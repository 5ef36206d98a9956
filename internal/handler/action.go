package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/nestlingapp/nestling/internal/model"
	"github.com/nestlingapp/nestling/internal/profiles"
	"github.com/nestlingapp/nestling/internal/store"
	"github.com/nestlingapp/nestling/internal/subtype"
)

type ActionHandler struct {
	manager *profiles.Manager
	logger  *slog.Logger
}

func NewActionHandler(m *profiles.Manager, logger *slog.Logger) *ActionHandler {
	return &ActionHandler{manager: m, logger: logger}
}

type logActionRequest struct {
	ProfileID string     `json:"profile_id"`
	Category  string     `json:"category"`
	Detail    string     `json:"detail"`
	StartedAt *time.Time `json:"started_at"`
	StoppedAt *time.Time `json:"stopped_at"`
	VolumeML  *float64   `json:"volume_ml"`
	Place     string     `json:"place"`
	Latitude  *float64   `json:"latitude"`
	Longitude *float64   `json:"longitude"`
}

// List handles GET /api/profiles/{id}/actions
func (h *ActionHandler) List(w http.ResponseWriter, r *http.Request) {
	actions, err := h.manager.Actions(r.PathValue("id"))
	if err != nil {
		h.logger.Error("list actions", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list actions")
		return
	}
	if actions == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	writeJSON(w, http.StatusOK, actions)
}

// Log handles POST /api/actions
func (h *ActionHandler) Log(w http.ResponseWriter, r *http.Request) {
	var req logActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.ProfileID == "" {
		writeError(w, http.StatusBadRequest, "profile_id is required")
		return
	}

	category := model.Category(req.Category)
	if _, err := subtype.ID(category, req.Detail); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	a := model.Action{
		ProfileID: req.ProfileID,
		Category:  category,
		Detail:    req.Detail,
		StartedAt: time.Now().UTC(),
		StoppedAt: req.StoppedAt,
		VolumeML:  req.VolumeML,
		Place:     req.Place,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
	}
	if req.StartedAt != nil {
		a.StartedAt = req.StartedAt.UTC()
	}

	err := h.manager.LogAction(&a)
	switch {
	case errors.Is(err, profiles.ErrProfileNotFound):
		writeError(w, http.StatusNotFound, "profile not found")
		return
	case errors.Is(err, store.ErrInvalidInterval):
		writeError(w, http.StatusBadRequest, "stop time must not precede start time")
		return
	case err != nil:
		h.logger.Error("log action", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to log action")
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

type stopActionRequest struct {
	StoppedAt *time.Time `json:"stopped_at"`
}

// Stop handles POST /api/actions/{id}/stop
func (h *ActionHandler) Stop(w http.ResponseWriter, r *http.Request) {
	// Body is optional; an empty body means "stop now".
	var req stopActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	stoppedAt := time.Now().UTC()
	if req.StoppedAt != nil {
		stoppedAt = req.StoppedAt.UTC()
	}

	a, err := h.manager.StopAction(r.PathValue("id"), stoppedAt)
	if err != nil {
		h.logger.Error("stop action", "error", err)
		writeError(w, http.StatusNotFound, "action not found")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// Delete handles DELETE /api/actions/{id}
func (h *ActionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.DeleteAction(r.PathValue("id")); err != nil {
		h.logger.Error("delete action", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete action")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
