package reminder

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/nestlingapp/nestling/internal/model"
)

// ErrAuthorizationDenied is returned when the platform refuses to deliver
// notifications (no registered push subscription). Callers branch on it
// to prompt the user instead of failing silently.
var ErrAuthorizationDenied = errors.New("notification authorization denied")

// Notifier is the scheduling capability. Refresh replaces the whole
// pending set; SchedulePreview computes without scheduling.
type Notifier interface {
	EnsureAuthorization(ctx context.Context) error
	Refresh(reminders []Reminder)
	Upcoming() []Reminder
	SchedulePreview(profiles []model.Profile, lastEnded LastEnded, now time.Time) []Reminder
}

// MemoryNotifier is a deterministic Notifier for previews and tests. It
// records refreshes and never talks to a push service.
type MemoryNotifier struct {
	mu         sync.Mutex
	Authorized bool
	pending    map[string]Reminder
	refreshes  int
}

func NewMemoryNotifier() *MemoryNotifier {
	return &MemoryNotifier{
		Authorized: true,
		pending:    make(map[string]Reminder),
	}
}

func (n *MemoryNotifier) EnsureAuthorization(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.Authorized {
		return ErrAuthorizationDenied
	}
	return nil
}

func (n *MemoryNotifier) Refresh(reminders []Reminder) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pending = make(map[string]Reminder, len(reminders))
	for _, r := range reminders {
		n.pending[r.Identifier()] = r
	}
	n.refreshes++
}

func (n *MemoryNotifier) Upcoming() []Reminder {
	n.mu.Lock()
	defer n.mu.Unlock()
	return sortedPending(n.pending)
}

func (n *MemoryNotifier) SchedulePreview(profiles []model.Profile, lastEnded LastEnded, now time.Time) []Reminder {
	return Upcoming(profiles, lastEnded, now)
}

// Refreshes returns how many times Refresh has been called.
func (n *MemoryNotifier) Refreshes() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.refreshes
}

func sortedPending(pending map[string]Reminder) []Reminder {
	out := make([]Reminder, 0, len(pending))
	for _, r := range pending {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].FireAt.Equal(out[j].FireAt) {
			return out[i].FireAt.Before(out[j].FireAt)
		}
		return out[i].Identifier() < out[j].Identifier()
	})
	return out
}
