package reminder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/nestlingapp/nestling/internal/model"
	"github.com/nestlingapp/nestling/internal/store"
)

// ErrExpired is returned when a push subscription is no longer valid
// (410 Gone); the subscription is pruned.
var ErrExpired = errors.New("push subscription expired")

// Payload is the JSON sent to the push service.
type Payload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Tag   string `json:"tag,omitempty"`
}

// Config holds VAPID configuration for Web Push delivery.
type Config struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	Subscriber      string
}

// WebPushNotifier schedules reminders for delivery over Web Push. A
// ticker loop fires due reminders against every stored subscription; a
// refreshed reminder with the same identifier replaces the pending one.
type WebPushNotifier struct {
	mu      sync.Mutex
	cfg     Config
	subs    *store.PushStore
	logger  *slog.Logger
	pending map[string]Reminder
	fired   map[string]time.Time

	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}

	// sendFunc is swappable for tests.
	sendFunc func(sub *store.PushSubscription, payload Payload) error
}

func NewWebPushNotifier(cfg Config, subs *store.PushStore, logger *slog.Logger) *WebPushNotifier {
	if cfg.Subscriber == "" {
		cfg.Subscriber = "mailto:noreply@nestling.app"
	}
	n := &WebPushNotifier{
		cfg:      cfg,
		subs:     subs,
		logger:   logger,
		pending:  make(map[string]Reminder),
		fired:    make(map[string]time.Time),
		interval: 30 * time.Second,
	}
	n.sendFunc = n.send
	return n
}

// EnsureAuthorization verifies at least one push subscription exists.
// Without one nothing can be delivered, which surfaces as a distinct
// denied result so the caller can prompt the user to subscribe.
func (n *WebPushNotifier) EnsureAuthorization(ctx context.Context) error {
	count, err := n.subs.Count()
	if err != nil {
		return fmt.Errorf("count subscriptions: %w", err)
	}
	if count == 0 {
		return ErrAuthorizationDenied
	}
	return nil
}

// Refresh replaces the pending reminder set. Designed to be cheap and
// idempotent: the profile manager calls it after every committed change.
func (n *WebPushNotifier) Refresh(reminders []Reminder) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.pending = make(map[string]Reminder, len(reminders))
	for _, r := range reminders {
		n.pending[r.Identifier()] = r
		// A recomputed fire time supersedes the fired guard.
		if !n.fired[r.Identifier()].Equal(r.FireAt) {
			delete(n.fired, r.Identifier())
		}
	}
}

func (n *WebPushNotifier) Upcoming() []Reminder {
	n.mu.Lock()
	defer n.mu.Unlock()
	return sortedPending(n.pending)
}

func (n *WebPushNotifier) SchedulePreview(profiles []model.Profile, lastEnded LastEnded, now time.Time) []Reminder {
	return Upcoming(profiles, lastEnded, now)
}

// Start begins the delivery loop.
func (n *WebPushNotifier) Start(ctx context.Context) {
	n.mu.Lock()
	ctx, n.cancel = context.WithCancel(ctx)
	n.done = make(chan struct{})
	n.mu.Unlock()

	go func() {
		defer close(n.done)
		ticker := time.NewTicker(n.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n.tick(time.Now().UTC())
			}
		}
	}()
}

// Stop gracefully stops the delivery loop.
func (n *WebPushNotifier) Stop() {
	n.mu.Lock()
	cancel := n.cancel
	done := n.done
	n.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (n *WebPushNotifier) tick(now time.Time) {
	n.mu.Lock()
	var due []Reminder
	for id, r := range n.pending {
		if r.FireAt.After(now) {
			continue
		}
		if n.fired[id].Equal(r.FireAt) {
			continue
		}
		due = append(due, r)
	}
	n.mu.Unlock()

	if len(due) == 0 {
		return
	}

	subs, err := n.subs.List()
	if err != nil {
		n.logger.Error("list push subscriptions", "error", err)
		return
	}

	for _, r := range due {
		payload := Payload{
			Title: "Nestling",
			Body:  r.Message,
			Tag:   r.Identifier(),
		}
		for _, sub := range subs {
			if err := n.sendFunc(&sub, payload); err != nil {
				if errors.Is(err, ErrExpired) {
					if err := n.subs.DeleteByEndpoint(sub.Endpoint); err != nil {
						n.logger.Warn("prune expired subscription", "error", err)
					}
				} else {
					n.logger.Error("send reminder", "identifier", r.Identifier(), "error", err)
				}
			}
		}

		n.mu.Lock()
		n.fired[r.Identifier()] = r.FireAt
		if r.OneOff {
			// One-off overrides are consumed once fired.
			delete(n.pending, r.Identifier())
		}
		n.mu.Unlock()
	}
}

func (n *WebPushNotifier) send(sub *store.PushSubscription, payload Payload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	resp, err := webpush.SendNotification(data, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dhKey,
			Auth:   sub.AuthKey,
		},
	}, &webpush.Options{
		VAPIDPublicKey:  n.cfg.VAPIDPublicKey,
		VAPIDPrivateKey: n.cfg.VAPIDPrivateKey,
		Subscriber:      n.cfg.Subscriber,
		TTL:             3600,
	})
	if err != nil {
		return fmt.Errorf("send push: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		return ErrExpired
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("push service returned %d", resp.StatusCode)
	}

	return nil
}
