package model

import "time"

// Category identifies one of the tracked care event kinds.
type Category string

const (
	CategorySleep   Category = "sleep"
	CategoryDiaper  Category = "diaper"
	CategoryFeeding Category = "feeding"
)

// Categories lists all tracked categories in display order.
var Categories = []Category{CategorySleep, CategoryDiaper, CategoryFeeding}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategorySleep, CategoryDiaper, CategoryFeeding:
		return true
	}
	return false
}

// ReminderOverride replaces a category's recurring schedule with an
// explicit fire time. A one-off override is consumed once fired; a stale
// override (fire time already elapsed) is purged during normalization.
type ReminderOverride struct {
	FireAt time.Time `json:"fire_at"`
	OneOff bool      `json:"one_off"`
}

// CategoryReminder holds the reminder configuration for one category.
type CategoryReminder struct {
	Enabled         bool              `json:"enabled"`
	IntervalMinutes int               `json:"interval_minutes"`
	Override        *ReminderOverride `json:"override,omitempty"`
}

// Interval returns the configured interval as a duration.
func (r CategoryReminder) Interval() time.Duration {
	return time.Duration(r.IntervalMinutes) * time.Minute
}

type Profile struct {
	ID               string                        `json:"id"`
	Name             string                        `json:"name"`
	BirthDate        string                        `json:"birth_date"` // yyyy-MM-dd, empty if unset
	AvatarURL        string                        `json:"avatar_url,omitempty"`
	RemindersEnabled bool                          `json:"reminders_enabled"`
	Reminders        map[Category]CategoryReminder `json:"reminders"`
	CreatedAt        time.Time                     `json:"created_at"`
	UpdatedAt        time.Time                     `json:"updated_at"`
}

// Named reports whether the profile has been given a real name, as
// opposed to the default profile synthesized at first launch.
func (p *Profile) Named() bool {
	return p.Name != ""
}
