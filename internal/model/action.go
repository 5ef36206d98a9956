package model

import "time"

// Details distinguishing subtypes within a category. Sleep has no detail.
const (
	DetailPee  = "pee"
	DetailPoo  = "poo"
	DetailBoth = "both"

	DetailBottleFormula    = "bottle_formula"
	DetailBottleBreastmilk = "bottle_breastmilk"
	DetailMeal             = "meal"
	DetailLeftBreast       = "left_breast"
	DetailRightBreast      = "right_breast"
)

// Action is one logged or in-progress care event. A nil StoppedAt means
// the action is currently running.
type Action struct {
	ID        string     `json:"id"`
	ProfileID string     `json:"profile_id"`
	Category  Category   `json:"category"`
	Detail    string     `json:"detail,omitempty"`
	StartedAt time.Time  `json:"started_at"`
	StoppedAt *time.Time `json:"stopped_at,omitempty"`
	VolumeML  *float64   `json:"volume_ml,omitempty"`
	Place     string     `json:"place,omitempty"`
	Latitude  *float64   `json:"latitude,omitempty"`
	Longitude *float64   `json:"longitude,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Running reports whether the action has no end time yet.
func (a *Action) Running() bool {
	return a.StoppedAt == nil
}

// End returns the effective end time: StoppedAt when present, otherwise
// StartedAt for instantaneous events.
func (a *Action) End() time.Time {
	if a.StoppedAt != nil {
		return *a.StoppedAt
	}
	return a.StartedAt
}
