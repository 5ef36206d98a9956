package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/nestlingapp/nestling/internal/profiles"
	"github.com/nestlingapp/nestling/internal/remote"
)

type ProfileHandler struct {
	manager   *profiles.Manager
	avatars   *remote.AvatarStore
	accountID string
	logger    *slog.Logger
}

func NewProfileHandler(m *profiles.Manager, avatars *remote.AvatarStore, accountID string, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{manager: m, avatars: avatars, accountID: accountID, logger: logger}
}

type profileRequest struct {
	Name      string `json:"name"`
	BirthDate string `json:"birth_date"`
}

// List handles GET /api/profiles
func (h *ProfileHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.manager.List()
	if err != nil {
		h.logger.Error("list profiles", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list profiles")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// Get handles GET /api/profiles/{id}
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.manager.Get(r.PathValue("id"))
	if errors.Is(err, profiles.ErrProfileNotFound) {
		writeError(w, http.StatusNotFound, "profile not found")
		return
	}
	if err != nil {
		h.logger.Error("get profile", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get profile")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Create handles POST /api/profiles
func (h *ProfileHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	p, err := h.manager.Add(req.Name, req.BirthDate)
	if err != nil {
		h.logger.Error("create profile", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create profile")
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// Update handles PUT /api/profiles/{id}
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	p, err := h.manager.Update(r.PathValue("id"), req.Name, req.BirthDate)
	if errors.Is(err, profiles.ErrProfileNotFound) {
		writeError(w, http.StatusNotFound, "profile not found")
		return
	}
	if err != nil {
		h.logger.Error("update profile", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update profile")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Delete handles DELETE /api/profiles/{id}
func (h *ProfileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	err := h.manager.Delete(r.PathValue("id"))
	if errors.Is(err, profiles.ErrProfileNotFound) {
		writeError(w, http.StatusNotFound, "profile not found")
		return
	}
	if err != nil {
		h.logger.Error("delete profile", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete profile")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetActive handles GET /api/profiles/active
func (h *ProfileHandler) GetActive(w http.ResponseWriter, r *http.Request) {
	id, err := h.manager.ActiveProfileID()
	if err != nil {
		h.logger.Error("get active profile", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get active profile")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

// SetActive handles POST /api/profiles/{id}/activate
func (h *ProfileHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	err := h.manager.SetActive(r.PathValue("id"))
	if errors.Is(err, profiles.ErrProfileNotFound) {
		writeError(w, http.StatusNotFound, "profile not found")
		return
	}
	if err != nil {
		h.logger.Error("set active profile", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to set active profile")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

var avatarExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// UploadAvatar handles POST /api/profiles/{id}/avatar
func (h *ProfileHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	if h.avatars == nil || !h.avatars.Enabled() {
		writeError(w, http.StatusServiceUnavailable, "avatar storage is not configured")
		return
	}

	id := r.PathValue("id")
	if _, err := h.manager.Get(id); err != nil {
		if errors.Is(err, profiles.ErrProfileNotFound) {
			writeError(w, http.StatusNotFound, "profile not found")
			return
		}
		h.logger.Error("get profile for avatar", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get profile")
		return
	}

	contentType := r.Header.Get("Content-Type")
	ext, ok := avatarExtensions[contentType]
	if !ok {
		writeError(w, http.StatusUnsupportedMediaType, "avatar must be JPEG, PNG, or WebP")
		return
	}

	body := http.MaxBytesReader(w, r.Body, 5<<20)
	ref, err := h.avatars.Upload(r.Context(), h.accountID, id, ext, contentType, body)
	if err != nil {
		h.logger.Error("upload avatar", "profile", id, "error", err)
		writeError(w, http.StatusBadGateway, "failed to store avatar")
		return
	}

	if err := h.manager.SetAvatarURL(id, ref); err != nil {
		h.logger.Error("save avatar reference", "profile", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save avatar reference")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"avatar_url": ref})
}
