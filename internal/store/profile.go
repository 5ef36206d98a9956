package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/nestlingapp/nestling/internal/model"
)

type ProfileStore struct {
	db *sql.DB
}

func NewProfileStore(db *sql.DB) *ProfileStore {
	return &ProfileStore{db: db}
}

// Upsert writes a profile and all of its reminder preferences in one
// transaction. The profile's UpdatedAt is set to now.
func (s *ProfileStore) Upsert(p *model.Profile) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	p.UpdatedAt = now
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}

	_, err = tx.Exec(
		`INSERT INTO profiles (id, name, birth_date, avatar_url, reminders_enabled, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   name = excluded.name,
		   birth_date = excluded.birth_date,
		   avatar_url = excluded.avatar_url,
		   reminders_enabled = excluded.reminders_enabled,
		   updated_at = excluded.updated_at`,
		p.ID, p.Name, p.BirthDate, p.AvatarURL, p.RemindersEnabled, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}

	for category, pref := range p.Reminders {
		var fireAt *time.Time
		oneOff := false
		if pref.Override != nil {
			fireAt = &pref.Override.FireAt
			oneOff = pref.Override.OneOff
		}
		_, err = tx.Exec(
			`INSERT INTO reminder_prefs (profile_id, category, enabled, interval_minutes, override_fire_at, override_one_off)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT(profile_id, category) DO UPDATE SET
			   enabled = excluded.enabled,
			   interval_minutes = excluded.interval_minutes,
			   override_fire_at = excluded.override_fire_at,
			   override_one_off = excluded.override_one_off`,
			p.ID, string(category), pref.Enabled, pref.IntervalMinutes, fireAt, oneOff,
		)
		if err != nil {
			return fmt.Errorf("upsert reminder pref %s/%s: %w", p.ID, category, err)
		}
	}

	return tx.Commit()
}

func (s *ProfileStore) GetByID(id string) (*model.Profile, error) {
	var p model.Profile
	err := s.db.QueryRow(
		`SELECT id, name, birth_date, avatar_url, reminders_enabled, created_at, updated_at
		 FROM profiles WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &p.BirthDate, &p.AvatarURL, &p.RemindersEnabled, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query profile: %w", err)
	}
	if err := s.loadReminders(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *ProfileStore) List() ([]model.Profile, error) {
	rows, err := s.db.Query(
		`SELECT id, name, birth_date, avatar_url, reminders_enabled, created_at, updated_at
		 FROM profiles ORDER BY created_at, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query profiles: %w", err)
	}
	defer rows.Close()

	var profiles []model.Profile
	for rows.Next() {
		var p model.Profile
		if err := rows.Scan(&p.ID, &p.Name, &p.BirthDate, &p.AvatarURL, &p.RemindersEnabled, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range profiles {
		if err := s.loadReminders(&profiles[i]); err != nil {
			return nil, err
		}
	}
	return profiles, nil
}

// Delete removes a profile. Actions and reminder preferences cascade at
// the schema level.
func (s *ProfileStore) Delete(id string) error {
	_, err := s.db.Exec(`DELETE FROM profiles WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	return nil
}

func (s *ProfileStore) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM profiles`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count profiles: %w", err)
	}
	return n, nil
}

// HasNamedProfile reports whether any profile carries a non-empty name.
// The merge coordinator uses this to detect a fresh device.
func (s *ProfileStore) HasNamedProfile() (bool, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM profiles WHERE name != ''`).Scan(&n); err != nil {
		return false, fmt.Errorf("count named profiles: %w", err)
	}
	return n > 0, nil
}

func (s *ProfileStore) loadReminders(p *model.Profile) error {
	rows, err := s.db.Query(
		`SELECT category, enabled, interval_minutes, override_fire_at, override_one_off
		 FROM reminder_prefs WHERE profile_id = ?`, p.ID,
	)
	if err != nil {
		return fmt.Errorf("query reminder prefs: %w", err)
	}
	defer rows.Close()

	p.Reminders = make(map[model.Category]model.CategoryReminder)
	for rows.Next() {
		var (
			category string
			pref     model.CategoryReminder
			fireAt   sql.NullTime
			oneOff   bool
		)
		if err := rows.Scan(&category, &pref.Enabled, &pref.IntervalMinutes, &fireAt, &oneOff); err != nil {
			return fmt.Errorf("scan reminder pref: %w", err)
		}
		if fireAt.Valid {
			pref.Override = &model.ReminderOverride{FireAt: fireAt.Time, OneOff: oneOff}
		}
		p.Reminders[model.Category(category)] = pref
	}
	return rows.Err()
}
