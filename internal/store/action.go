package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nestlingapp/nestling/internal/model"
)

// ErrInvalidInterval is returned when an action's end time precedes its
// start time.
var ErrInvalidInterval = errors.New("action end time precedes start time")

type ActionStore struct {
	db *sql.DB
}

func NewActionStore(db *sql.DB) *ActionStore {
	return &ActionStore{db: db}
}

// Validate checks the action's time interval. Applied before every write.
func Validate(a *model.Action) error {
	if a.StoppedAt != nil && a.StoppedAt.Before(a.StartedAt) {
		return ErrInvalidInterval
	}
	if !a.Category.Valid() {
		return fmt.Errorf("invalid category %q", a.Category)
	}
	return nil
}

func (s *ActionStore) Upsert(a *model.Action) error {
	if err := Validate(a); err != nil {
		return err
	}
	a.UpdatedAt = time.Now().UTC()
	_, err := s.db.Exec(
		`INSERT INTO actions (id, profile_id, category, detail, started_at, stopped_at, volume_ml, place, latitude, longitude, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   profile_id = excluded.profile_id,
		   category = excluded.category,
		   detail = excluded.detail,
		   started_at = excluded.started_at,
		   stopped_at = excluded.stopped_at,
		   volume_ml = excluded.volume_ml,
		   place = excluded.place,
		   latitude = excluded.latitude,
		   longitude = excluded.longitude,
		   updated_at = excluded.updated_at`,
		a.ID, a.ProfileID, string(a.Category), a.Detail, a.StartedAt, a.StoppedAt,
		a.VolumeML, a.Place, a.Latitude, a.Longitude, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert action: %w", err)
	}
	return nil
}

func (s *ActionStore) GetByID(id string) (*model.Action, error) {
	row := s.db.QueryRow(selectActions+` WHERE id = ?`, id)
	a, err := scanAction(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query action: %w", err)
	}
	return a, nil
}

func (s *ActionStore) ListByProfile(profileID string) ([]model.Action, error) {
	rows, err := s.db.Query(selectActions+` WHERE profile_id = ? ORDER BY started_at DESC, id`, profileID)
	if err != nil {
		return nil, fmt.Errorf("query actions: %w", err)
	}
	defer rows.Close()
	return collectActions(rows)
}

// LastEnded returns the most recent effective end time per category for a
// profile. Running actions count with their start time.
func (s *ActionStore) LastEnded(profileID string) (map[model.Category]time.Time, error) {
	rows, err := s.db.Query(
		`SELECT category, MAX(COALESCE(stopped_at, started_at)) FROM actions
		 WHERE profile_id = ? GROUP BY category`, profileID,
	)
	if err != nil {
		return nil, fmt.Errorf("query last ended: %w", err)
	}
	defer rows.Close()

	out := make(map[model.Category]time.Time)
	for rows.Next() {
		// MAX() strips the column's datetime affinity, so the driver
		// returns the stored text form; parse it back ourselves.
		var category, raw string
		if err := rows.Scan(&category, &raw); err != nil {
			return nil, fmt.Errorf("scan last ended: %w", err)
		}
		ended, err := parseStoredTime(raw)
		if err != nil {
			return nil, fmt.Errorf("parse last ended: %w", err)
		}
		out[model.Category(category)] = ended
	}
	return out, rows.Err()
}

// storedTimeLayout is how the sqlite driver serializes time.Time values.
const storedTimeLayout = "2006-01-02 15:04:05.999999999 -0700 MST"

func parseStoredTime(raw string) (time.Time, error) {
	t, err := time.Parse(storedTimeLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad stored timestamp %q: %w", raw, err)
	}
	return t.UTC(), nil
}

func (s *ActionStore) Delete(id string) error {
	_, err := s.db.Exec(`DELETE FROM actions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete action: %w", err)
	}
	return nil
}

// ReplaceForProfile swaps a profile's action list for exactly the given
// set, in one transaction. The merge coordinator relies on this being
// idempotent: replacing with the same set twice leaves identical rows.
func (s *ActionStore) ReplaceForProfile(profileID string, actions []model.Action) error {
	for i := range actions {
		if err := Validate(&actions[i]); err != nil {
			return fmt.Errorf("action %s: %w", actions[i].ID, err)
		}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM actions WHERE profile_id = ?`, profileID); err != nil {
		return fmt.Errorf("clear actions: %w", err)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO actions (id, profile_id, category, detail, started_at, stopped_at, volume_ml, place, latitude, longitude, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, a := range actions {
		if _, err := stmt.Exec(
			a.ID, profileID, string(a.Category), a.Detail, a.StartedAt, a.StoppedAt,
			a.VolumeML, a.Place, a.Latitude, a.Longitude, a.UpdatedAt,
		); err != nil {
			return fmt.Errorf("insert action %s: %w", a.ID, err)
		}
	}

	return tx.Commit()
}

const selectActions = `SELECT id, profile_id, category, detail, started_at, stopped_at, volume_ml, place, latitude, longitude, updated_at FROM actions`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAction(row rowScanner) (*model.Action, error) {
	var (
		a         model.Action
		category  string
		stoppedAt sql.NullTime
		volume    sql.NullFloat64
		lat, lon  sql.NullFloat64
	)
	err := row.Scan(&a.ID, &a.ProfileID, &category, &a.Detail, &a.StartedAt, &stoppedAt, &volume, &a.Place, &lat, &lon, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.Category = model.Category(category)
	if stoppedAt.Valid {
		t := stoppedAt.Time
		a.StoppedAt = &t
	}
	if volume.Valid {
		v := volume.Float64
		a.VolumeML = &v
	}
	if lat.Valid {
		v := lat.Float64
		a.Latitude = &v
	}
	if lon.Valid {
		v := lon.Float64
		a.Longitude = &v
	}
	return &a, nil
}

func collectActions(rows *sql.Rows) ([]model.Action, error) {
	var actions []model.Action
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		actions = append(actions, *a)
	}
	return actions, rows.Err()
}
