// Package reminder computes and delivers per-category caregiver
// reminders. Computation is a pure function of profile configuration,
// logged action state and a reference time; delivery goes through a
// Notifier so previews and tests can run without a push transport.
package reminder

import (
	"fmt"
	"sort"
	"time"

	"github.com/nestlingapp/nestling/internal/model"
)

// Reminder is one computed (profile, category) notification.
type Reminder struct {
	ProfileID   string         `json:"profile_id"`
	ProfileName string         `json:"profile_name"`
	Category    model.Category `json:"category"`
	FireAt      time.Time      `json:"fire_at"`
	Message     string         `json:"message"`
	OneOff      bool           `json:"one_off,omitempty"`
}

// Identifier keys scheduled requests: a new reminder for the same
// (profile, category) replaces any previously scheduled one.
func (r Reminder) Identifier() string {
	return r.ProfileID + "-" + string(r.Category)
}

// LastEnded maps profile id -> category -> effective end time of the most
// recently logged action.
type LastEnded map[string]map[model.Category]time.Time

// Upcoming computes the next reminder for every enabled (profile,
// category) pair. Pure: no mutation, safe for previews.
//
// Per pair the state machine is:
//   - disabled: reminders off globally or for the category, no output;
//   - override: an explicit future fire time wins over the recurring
//     schedule (a stale override is ignored here and purged by the
//     profile manager's normalization);
//   - recurring: last logged end time, or now when never logged, plus
//     the configured interval.
func Upcoming(profiles []model.Profile, lastEnded LastEnded, now time.Time) []Reminder {
	var out []Reminder
	for i := range profiles {
		p := &profiles[i]
		if !p.RemindersEnabled {
			continue
		}
		for _, category := range model.Categories {
			pref, ok := p.Reminders[category]
			if !ok || !pref.Enabled || pref.IntervalMinutes <= 0 {
				continue
			}

			r := Reminder{
				ProfileID:   p.ID,
				ProfileName: p.Name,
				Category:    category,
				Message:     message(p.Name, category),
			}

			if ov := pref.Override; ov != nil && ov.FireAt.After(now) {
				r.FireAt = ov.FireAt
				r.OneOff = ov.OneOff
			} else {
				base := now
				if ends, ok := lastEnded[p.ID]; ok {
					if end, ok := ends[category]; ok {
						base = end
					}
				}
				r.FireAt = base.Add(pref.Interval())
			}

			out = append(out, r)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].FireAt.Equal(out[j].FireAt) {
			return out[i].FireAt.Before(out[j].FireAt)
		}
		return out[i].Identifier() < out[j].Identifier()
	})
	return out
}

func message(name string, category model.Category) string {
	if name == "" {
		name = "your baby"
	}
	switch category {
	case model.CategorySleep:
		return fmt.Sprintf("Time for %s to sleep", name)
	case model.CategoryDiaper:
		return fmt.Sprintf("Time to check %s's diaper", name)
	case model.CategoryFeeding:
		return fmt.Sprintf("Time to feed %s", name)
	}
	return fmt.Sprintf("Reminder for %s", name)
}
