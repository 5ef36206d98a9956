package reminder

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/nestlingapp/nestling/internal/database"
	"github.com/nestlingapp/nestling/internal/model"
	"github.com/nestlingapp/nestling/internal/store"
)

func setupWebPushNotifier(t *testing.T) (*WebPushNotifier, *store.PushStore, *[]Payload) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	subs := store.NewPushStore(db)
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	n := NewWebPushNotifier(Config{VAPIDPublicKey: "pub", VAPIDPrivateKey: "priv"}, subs, logger)

	var sent []Payload
	n.sendFunc = func(sub *store.PushSubscription, payload Payload) error {
		sent = append(sent, payload)
		return nil
	}
	return n, subs, &sent
}

func TestWebPushAuthorizationDeniedWithoutSubscriptions(t *testing.T) {
	n, subs, _ := setupWebPushNotifier(t)

	if err := n.EnsureAuthorization(context.Background()); !errors.Is(err, ErrAuthorizationDenied) {
		t.Errorf("err = %v, want ErrAuthorizationDenied", err)
	}

	if _, err := subs.Create("https://push.example/ep1", "p256dh", "auth", "phone"); err != nil {
		t.Fatalf("create subscription: %v", err)
	}
	if err := n.EnsureAuthorization(context.Background()); err != nil {
		t.Errorf("err = %v, want nil after subscribing", err)
	}
}

func TestWebPushTickFiresDueOnce(t *testing.T) {
	n, subs, sent := setupWebPushNotifier(t)
	if _, err := subs.Create("https://push.example/ep1", "p256dh", "auth", "phone"); err != nil {
		t.Fatalf("create subscription: %v", err)
	}

	due := Reminder{ProfileID: "p1", Category: model.CategoryDiaper, FireAt: t0, Message: "Time to check Aria's diaper"}
	future := Reminder{ProfileID: "p1", Category: model.CategorySleep, FireAt: t0.Add(time.Hour)}
	n.Refresh([]Reminder{due, future})

	n.tick(t0.Add(time.Minute))
	if len(*sent) != 1 {
		t.Fatalf("sent count = %d, want 1 (only the due reminder)", len(*sent))
	}
	if (*sent)[0].Tag != due.Identifier() {
		t.Errorf("tag = %q, want %q", (*sent)[0].Tag, due.Identifier())
	}

	// Same pending state must not refire.
	n.tick(t0.Add(2 * time.Minute))
	if len(*sent) != 1 {
		t.Errorf("sent count after second tick = %d, want 1", len(*sent))
	}
}

func TestWebPushRecomputedFireTimeRefires(t *testing.T) {
	n, subs, sent := setupWebPushNotifier(t)
	if _, err := subs.Create("https://push.example/ep1", "p256dh", "auth", "phone"); err != nil {
		t.Fatalf("create subscription: %v", err)
	}

	r := Reminder{ProfileID: "p1", Category: model.CategoryFeeding, FireAt: t0}
	n.Refresh([]Reminder{r})
	n.tick(t0.Add(time.Second))

	// A new action pushes the fire time forward; once due it fires again.
	r.FireAt = t0.Add(30 * time.Minute)
	n.Refresh([]Reminder{r})
	n.tick(t0.Add(31 * time.Minute))

	if len(*sent) != 2 {
		t.Errorf("sent count = %d, want 2", len(*sent))
	}
}

func TestWebPushOneOffConsumed(t *testing.T) {
	n, subs, sent := setupWebPushNotifier(t)
	if _, err := subs.Create("https://push.example/ep1", "p256dh", "auth", "phone"); err != nil {
		t.Fatalf("create subscription: %v", err)
	}

	r := Reminder{ProfileID: "p1", Category: model.CategorySleep, FireAt: t0, OneOff: true}
	n.Refresh([]Reminder{r})
	n.tick(t0.Add(time.Second))

	if len(*sent) != 1 {
		t.Fatalf("sent count = %d, want 1", len(*sent))
	}
	if len(n.Upcoming()) != 0 {
		t.Error("one-off reminder should be consumed after firing")
	}
}

func TestWebPushExpiredSubscriptionPruned(t *testing.T) {
	n, subs, _ := setupWebPushNotifier(t)
	if _, err := subs.Create("https://push.example/dead", "p256dh", "auth", "tablet"); err != nil {
		t.Fatalf("create subscription: %v", err)
	}
	n.sendFunc = func(sub *store.PushSubscription, payload Payload) error {
		return ErrExpired
	}

	n.Refresh([]Reminder{{ProfileID: "p1", Category: model.CategoryDiaper, FireAt: t0}})
	n.tick(t0.Add(time.Second))

	count, err := subs.Count()
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Errorf("subscription count = %d, want 0 after 410 prune", count)
	}
}
