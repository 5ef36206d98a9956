package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/nestlingapp/nestling/internal/model"
	"github.com/nestlingapp/nestling/internal/remote"
	"github.com/nestlingapp/nestling/internal/share"
)

type ShareHandler struct {
	shares *share.Manager
	logger *slog.Logger
}

func NewShareHandler(s *share.Manager, logger *slog.Logger) *ShareHandler {
	return &ShareHandler{shares: s, logger: logger}
}

type inviteRequest struct {
	ProfileID  string `json:"profile_id"`
	Email      string `json:"email"`
	Permission string `json:"permission"`
}

// Invite handles POST /api/shares
func (h *ShareHandler) Invite(w http.ResponseWriter, r *http.Request) {
	var req inviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.ProfileID == "" || req.Email == "" {
		writeError(w, http.StatusBadRequest, "profile_id and email are required")
		return
	}

	s, err := h.shares.Invite(r.Context(), req.ProfileID, req.Email, model.Permission(req.Permission))
	if err != nil {
		h.writeShareError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, s)
}

type respondRequest struct {
	Accept bool `json:"accept"`
}

// Respond handles POST /api/shares/{id}/respond
func (h *ShareHandler) Respond(w http.ResponseWriter, r *http.Request) {
	var req respondRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if err := h.shares.Respond(r.Context(), r.PathValue("id"), req.Accept); err != nil {
		h.writeShareError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Revoke handles POST /api/shares/{id}/revoke
func (h *ShareHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	if err := h.shares.Revoke(r.Context(), r.PathValue("id")); err != nil {
		h.writeShareError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ShareHandler) writeShareError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, share.ErrNotOwner), errors.Is(err, share.ErrNotRecipient):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, share.ErrShareNotFound),
		errors.Is(err, share.ErrRecipientNotFound),
		errors.Is(err, share.ErrProfileNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, share.ErrAlreadyShared), errors.Is(err, share.ErrNotPending):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, remote.ErrNotConfigured):
		writeError(w, http.StatusServiceUnavailable, remote.Message(err))
	default:
		h.logger.Error("share operation", "error", err)
		writeError(w, http.StatusBadGateway, remote.Message(err))
	}
}
