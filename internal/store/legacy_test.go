package store

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nestlingapp/nestling/internal/model"
)

func writeLegacyFile(t *testing.T, state legacyState) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.json")
	data, err := json.Marshal(state)
	if err != nil {
		t.Fatalf("marshal legacy state: %v", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write legacy state: %v", err)
	}
	return path
}

func TestImportLegacyState(t *testing.T) {
	ps, as, ss := setupTestDB(t)
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	profileID := uuid.New().String()
	path := writeLegacyFile(t, legacyState{
		ActiveProfileID: profileID,
		Profiles: []model.Profile{{
			ID:   profileID,
			Name: "Aria",
			Reminders: map[model.Category]model.CategoryReminder{
				model.CategorySleep: {Enabled: true, IntervalMinutes: 180},
			},
		}},
		Actions: []model.Action{{
			ID:        uuid.New().String(),
			ProfileID: profileID,
			Category:  model.CategoryDiaper,
			Detail:    model.DetailPee,
			StartedAt: time.Now().UTC(),
		}},
		DisplayPrefs: map[string]string{KeyTimeFormat: "24h"},
	})

	if err := ImportLegacyState(path, ps, as, ss, logger); err != nil {
		t.Fatalf("import: %v", err)
	}

	got, err := ps.GetByID(profileID)
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if got == nil || got.Name != "Aria" {
		t.Fatalf("profile = %+v, want imported Aria", got)
	}

	active, _ := ss.Get(KeyActiveProfile)
	if active != profileID {
		t.Errorf("active profile = %q, want %q", active, profileID)
	}
	tf, _ := ss.Get(KeyTimeFormat)
	if tf != "24h" {
		t.Errorf("time format = %q, want %q", tf, "24h")
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("legacy file should be removed after import")
	}
}

func TestImportLegacyStateSkipsPopulatedDB(t *testing.T) {
	ps, as, ss := setupTestDB(t)
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if err := ps.Upsert(testProfile("Existing")); err != nil {
		t.Fatalf("seed profile: %v", err)
	}

	path := writeLegacyFile(t, legacyState{
		Profiles: []model.Profile{{ID: uuid.New().String(), Name: "Ghost"}},
	})

	if err := ImportLegacyState(path, ps, as, ss, logger); err != nil {
		t.Fatalf("import: %v", err)
	}

	n, _ := ps.Count()
	if n != 1 {
		t.Errorf("profile count = %d, want 1 (no import into populated db)", n)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("legacy file should be removed even when skipped")
	}
}

func TestImportLegacyStateMissingFile(t *testing.T) {
	ps, as, ss := setupTestDB(t)
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if err := ImportLegacyState(filepath.Join(t.TempDir(), "absent.json"), ps, as, ss, logger); err != nil {
		t.Fatalf("import with missing file: %v", err)
	}
}
