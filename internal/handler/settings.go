package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/nestlingapp/nestling/internal/profiles"
	"github.com/nestlingapp/nestling/internal/store"
)

type SettingsHandler struct {
	manager *profiles.Manager
	logger  *slog.Logger
}

func NewSettingsHandler(m *profiles.Manager, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{manager: m, logger: logger}
}

// GetDisplay handles GET /api/settings/display
func (h *SettingsHandler) GetDisplay(w http.ResponseWriter, r *http.Request) {
	prefs, err := h.manager.DisplayPrefs()
	if err != nil {
		h.logger.Error("get display prefs", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get settings")
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

// UpdateDisplay handles PUT /api/settings/display
func (h *SettingsHandler) UpdateDisplay(w http.ResponseWriter, r *http.Request) {
	var req map[string]string
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if err := validateDisplaySettings(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	for key, value := range req {
		if err := h.manager.SetDisplayPref(key, value); err != nil {
			h.logger.Error("set display pref", "key", key, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to save settings")
			return
		}
	}

	prefs, err := h.manager.DisplayPrefs()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get settings")
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

func validateDisplaySettings(settings map[string]string) error {
	allowedValues := map[string][]string{
		store.KeyTimeFormat: {"12h", "24h"},
		store.KeyVolumeUnit: {"ml", "oz"},
		store.KeyTheme:      {"light", "dark", "system"},
	}

	for key, value := range settings {
		allowed, ok := allowedValues[key]
		if !ok {
			return fmt.Errorf("unknown setting: %s", key)
		}
		valid := false
		for _, v := range allowed {
			if value == v {
				valid = true
				break
			}
		}
		if !valid {
			return fmt.Errorf("%s must be one of %v", key, allowed)
		}
	}
	return nil
}
