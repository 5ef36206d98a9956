package profiles

import (
	"time"

	"github.com/nestlingapp/nestling/internal/model"
)

// Default reminder intervals per category, in minutes.
var defaultIntervals = map[model.Category]int{
	model.CategorySleep:   180,
	model.CategoryDiaper:  120,
	model.CategoryFeeding: 180,
}

// Normalize repairs a profile's reminder configuration in place and
// reports whether anything changed. After it returns, every category has
// a positive interval and a defined enabled flag, and no override with an
// elapsed fire time remains. Idempotent: normalizing twice is a no-op
// the second time.
func Normalize(p *model.Profile, now time.Time) bool {
	changed := false
	if p.Reminders == nil {
		p.Reminders = make(map[model.Category]model.CategoryReminder, len(model.Categories))
		changed = true
	}
	for _, category := range model.Categories {
		pref, ok := p.Reminders[category]
		if !ok {
			pref = model.CategoryReminder{IntervalMinutes: defaultIntervals[category]}
			changed = true
		}
		if pref.IntervalMinutes <= 0 {
			pref.IntervalMinutes = defaultIntervals[category]
			changed = true
		}
		if pref.Override != nil && !pref.Override.FireAt.After(now) {
			// Stale overrides are purged, never fired late.
			pref.Override = nil
			changed = true
		}
		p.Reminders[category] = pref
	}
	for category := range p.Reminders {
		if !category.Valid() {
			delete(p.Reminders, category)
			changed = true
		}
	}
	return changed
}
