package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Settings keys owned by the profile manager. Active profile selection and
// display preferences live here as one configuration aggregate; nothing
// else reads the settings table directly.
const (
	KeyActiveProfile = "active_profile_id"
	KeyTimeFormat    = "display_time_format"
	KeyVolumeUnit    = "display_volume_unit"
	KeyTheme         = "display_theme"
)

var displayKeys = []string{KeyTimeFormat, KeyVolumeUnit, KeyTheme}

type SettingsStore struct {
	db *sql.DB
}

func NewSettingsStore(db *sql.DB) *SettingsStore {
	return &SettingsStore{db: db}
}

func (s *SettingsStore) Get(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get setting %q: %w", key, err)
	}
	return value, nil
}

func (s *SettingsStore) Set(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("set setting %q: %w", key, err)
	}
	return nil
}

// GetDisplayPrefs returns the display preference subset of settings.
func (s *SettingsStore) GetDisplayPrefs() (map[string]string, error) {
	prefs := make(map[string]string)
	for _, key := range displayKeys {
		var value string
		err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get display pref %q: %w", key, err)
		}
		prefs[key] = value
	}
	return prefs, nil
}
