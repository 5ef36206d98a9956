package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/nestlingapp/nestling/internal/model"
)

// legacyState is the flat-file JSON format older releases persisted. It
// mirrors the logical shape of the current schema and is imported exactly
// once on first launch after upgrade, then the file is removed.
type legacyState struct {
	ActiveProfileID string            `json:"active_profile_id"`
	Profiles        []model.Profile   `json:"profiles"`
	Actions         []model.Action    `json:"actions"`
	DisplayPrefs    map[string]string `json:"display_prefs"`
}

// ImportLegacyState migrates a legacy JSON state file into the database.
// The import only runs when the profile table is still empty; in every
// case the file is removed afterwards so the migration cannot repeat.
func ImportLegacyState(path string, profiles *ProfileStore, actions *ActionStore, settings *SettingsStore, logger *slog.Logger) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read legacy state: %w", err)
	}

	count, err := profiles.Count()
	if err != nil {
		return err
	}
	if count > 0 {
		logger.Info("legacy state present but database already populated, removing file", "path", path)
		if err := os.Remove(path); err != nil {
			logger.Warn("remove legacy state", "error", err)
		}
		return nil
	}

	var state legacyState
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("decode legacy state: %w", err)
	}

	for i := range state.Profiles {
		if err := profiles.Upsert(&state.Profiles[i]); err != nil {
			return fmt.Errorf("import profile %s: %w", state.Profiles[i].ID, err)
		}
	}
	for i := range state.Actions {
		if err := actions.Upsert(&state.Actions[i]); err != nil {
			return fmt.Errorf("import action %s: %w", state.Actions[i].ID, err)
		}
	}
	if state.ActiveProfileID != "" {
		if err := settings.Set(KeyActiveProfile, state.ActiveProfileID); err != nil {
			return err
		}
	}
	for key, value := range state.DisplayPrefs {
		if err := settings.Set(key, value); err != nil {
			return err
		}
	}

	logger.Info("imported legacy state", "profiles", len(state.Profiles), "actions", len(state.Actions))

	if err := os.Remove(path); err != nil {
		logger.Warn("remove legacy state", "error", err)
	}
	return nil
}
