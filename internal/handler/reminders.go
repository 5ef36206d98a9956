package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/nestlingapp/nestling/internal/model"
	"github.com/nestlingapp/nestling/internal/profiles"
	"github.com/nestlingapp/nestling/internal/reminder"
)

type ReminderHandler struct {
	manager  *profiles.Manager
	notifier reminder.Notifier
	logger   *slog.Logger
}

func NewReminderHandler(m *profiles.Manager, n reminder.Notifier, logger *slog.Logger) *ReminderHandler {
	return &ReminderHandler{manager: m, notifier: n, logger: logger}
}

// Upcoming handles GET /api/reminders
func (h *ReminderHandler) Upcoming(w http.ResponseWriter, r *http.Request) {
	list := h.manager.UpcomingReminders()
	if list == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// Preview handles GET /api/reminders/preview?at=RFC3339. Without an "at"
// parameter it previews from the current time.
func (h *ReminderHandler) Preview(w http.ResponseWriter, r *http.Request) {
	at := time.Now().UTC()
	if raw := r.URL.Query().Get("at"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "at must be an RFC3339 timestamp")
			return
		}
		at = parsed.UTC()
	}

	list, err := h.manager.PreviewReminders(at)
	if err != nil {
		h.logger.Error("preview reminders", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to preview reminders")
		return
	}
	if list == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// Authorize handles POST /api/reminders/authorize. Delivery needs at
// least one registered push subscription.
func (h *ReminderHandler) Authorize(w http.ResponseWriter, r *http.Request) {
	err := h.notifier.EnsureAuthorization(r.Context())
	if errors.Is(err, reminder.ErrAuthorizationDenied) {
		writeError(w, http.StatusForbidden, "notification permission denied: register a push subscription first")
		return
	}
	if err != nil {
		h.logger.Error("reminder authorization", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to check authorization")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type remindersEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

// SetEnabled handles PUT /api/profiles/{id}/reminders
func (h *ReminderHandler) SetEnabled(w http.ResponseWriter, r *http.Request) {
	var req remindersEnabledRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	err := h.manager.SetRemindersEnabled(r.PathValue("id"), req.Enabled)
	if errors.Is(err, profiles.ErrProfileNotFound) {
		writeError(w, http.StatusNotFound, "profile not found")
		return
	}
	if err != nil {
		h.logger.Error("set reminders enabled", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update reminders")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type reminderPrefRequest struct {
	Enabled         bool `json:"enabled"`
	IntervalMinutes int  `json:"interval_minutes"`
}

// UpdatePref handles PUT /api/profiles/{id}/reminders/{category}
func (h *ReminderHandler) UpdatePref(w http.ResponseWriter, r *http.Request) {
	var req reminderPrefRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	category := model.Category(r.PathValue("category"))
	err := h.manager.UpdateReminderPref(r.PathValue("id"), category, req.Enabled, req.IntervalMinutes)
	switch {
	case errors.Is(err, profiles.ErrProfileNotFound):
		writeError(w, http.StatusNotFound, "profile not found")
		return
	case err != nil:
		if !category.Valid() || req.IntervalMinutes <= 0 {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("update reminder pref", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update reminder")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type overrideRequest struct {
	FireAt time.Time `json:"fire_at"`
	OneOff bool      `json:"one_off"`
}

// SetOverride handles PUT /api/profiles/{id}/reminders/{category}/override
func (h *ReminderHandler) SetOverride(w http.ResponseWriter, r *http.Request) {
	var req overrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.FireAt.IsZero() {
		writeError(w, http.StatusBadRequest, "fire_at is required")
		return
	}

	category := model.Category(r.PathValue("category"))
	err := h.manager.SetOverride(r.PathValue("id"), category, req.FireAt, req.OneOff)
	switch {
	case errors.Is(err, profiles.ErrProfileNotFound):
		writeError(w, http.StatusNotFound, "profile not found")
		return
	case err != nil:
		// Category and fire-time validation errors are caller mistakes.
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClearOverride handles DELETE /api/profiles/{id}/reminders/{category}/override
func (h *ReminderHandler) ClearOverride(w http.ResponseWriter, r *http.Request) {
	category := model.Category(r.PathValue("category"))
	err := h.manager.ClearOverride(r.PathValue("id"), category)
	if errors.Is(err, profiles.ErrProfileNotFound) {
		writeError(w, http.StatusNotFound, "profile not found")
		return
	}
	if err != nil {
		h.logger.Error("clear reminder override", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to clear override")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
