package remote

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/nestlingapp/nestling/internal/model"
)

func TestNewClientUnconfigured(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	_, err := NewClient(Config{}, logger)
	if err != ErrNotConfigured {
		t.Errorf("err = %v, want ErrNotConfigured", err)
	}
}

func TestEnsureAccountProvisionsOnce(t *testing.T) {
	backend := newFakeBackend()
	c := testClient(t, backend)
	ctx := context.Background()

	if err := c.EnsureAccount(ctx); err != nil {
		t.Fatalf("first ensure: %v", err)
	}
	if err := c.EnsureAccount(ctx); err != nil {
		t.Fatalf("second ensure: %v", err)
	}

	if backend.provisionCalls != 1 {
		t.Errorf("provision calls = %d, want 1 (one-shot per session)", backend.provisionCalls)
	}
	if !backend.authSeen() {
		t.Error("expected a bearer session token on the provisioning call")
	}
}

func TestAccountIDDeterministic(t *testing.T) {
	backend := newFakeBackend()
	a := testClient(t, backend)
	b := testClient(t, backend)
	if a.AccountID() != b.AccountID() {
		t.Errorf("account ids differ for the same email: %q vs %q", a.AccountID(), b.AccountID())
	}
}

func TestFetchSnapshotToleratesLegacyAliases(t *testing.T) {
	backend := newFakeBackend()
	stop := "2026-08-01T10:00:00Z"
	backend.profiles["p1"] = wireProfile{
		ID:        "p1",
		AccountID: "acct",
		Name:      "Aria",
		Birthday:  "2026-02-01", // legacy column name
		Avatar:    "avatars/acct/p1.jpg",
	}
	backend.actions["a1"] = wireAction{
		ID:        "a1",
		SubtypeID: "feeding_bottle_formula",
		StartTime: "2026-08-01T09:30:00Z", // legacy column name
		EndTime:   &stop,                  // legacy column name
		Misc:      "volume=120;place=Home",
		ProfileID: "p1",
	}

	c := testClient(t, backend)
	snap, err := c.FetchSnapshot(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	if len(snap.Profiles) != 1 {
		t.Fatalf("profile count = %d, want 1", len(snap.Profiles))
	}
	p := snap.Profiles[0]
	if snap.Owners[p.ID] != "acct" {
		t.Errorf("owner = %q, want %q", snap.Owners[p.ID], "acct")
	}
	if p.BirthDate != "2026-02-01" {
		t.Errorf("birth date = %q, want legacy birthday honored", p.BirthDate)
	}
	if p.AvatarURL != "avatars/acct/p1.jpg" {
		t.Errorf("avatar url = %q, want legacy avatar honored", p.AvatarURL)
	}

	if len(snap.Actions) != 1 {
		t.Fatalf("action count = %d, want 1", len(snap.Actions))
	}
	a := snap.Actions[0]
	if a.Category != model.CategoryFeeding || a.Detail != model.DetailBottleFormula {
		t.Errorf("subtype = %s/%s, want feeding/bottle_formula", a.Category, a.Detail)
	}
	if a.StoppedAt == nil || !a.StoppedAt.Equal(time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("stopped at = %v, want legacy end_time honored", a.StoppedAt)
	}
	if a.VolumeML == nil || *a.VolumeML != 120 {
		t.Errorf("volume = %v, want 120 from legacy misc", a.VolumeML)
	}
}

func TestFetchSnapshotDropsUnknownSubtype(t *testing.T) {
	backend := newFakeBackend()
	backend.actions["a1"] = wireAction{
		ID:        "a1",
		SubtypeID: "feeding_snack", // not one of the nine
		StartedAt: "2026-08-01T09:30:00Z",
		ProfileID: "p1",
	}
	backend.actions["a2"] = wireAction{
		ID:        "a2",
		SubtypeID: "sleep",
		StartedAt: "2026-08-01T12:00:00Z",
		ProfileID: "p1",
	}

	c := testClient(t, backend)
	snap, err := c.FetchSnapshot(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(snap.Actions) != 1 || snap.Actions[0].ID != "a2" {
		t.Errorf("actions = %+v, want only the recognized record", snap.Actions)
	}
}

func TestFetchSnapshotFailsOnDecodeError(t *testing.T) {
	backend := newFakeBackend()
	backend.shares["s1"] = wireShare{
		ID:         "s1",
		ProfileID:  "p1",
		Permission: "admin", // unknown permission value
		Status:     "pending",
	}

	c := testClient(t, backend)
	if _, err := c.FetchSnapshot(context.Background()); err == nil {
		t.Error("expected decode failure for unknown permission, got nil")
	}
}

func TestUpsertAndDeleteRoundTrip(t *testing.T) {
	backend := newFakeBackend()
	c := testClient(t, backend)
	ctx := context.Background()

	p := model.Profile{ID: "p1", Name: "Aria", BirthDate: "2026-02-01"}
	if err := c.UpsertProfile(ctx, &p); err != nil {
		t.Fatalf("upsert profile: %v", err)
	}

	stop := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	a := model.Action{
		ID:        "a1",
		ProfileID: "p1",
		Category:  model.CategoryDiaper,
		Detail:    model.DetailBoth,
		StartedAt: stop.Add(-5 * time.Minute),
		StoppedAt: &stop,
	}
	if err := c.UpsertAction(ctx, &a); err != nil {
		t.Fatalf("upsert action: %v", err)
	}
	if got := backend.actions["a1"].SubtypeID; got != "diaper_both" {
		t.Errorf("pushed subtype_id = %q, want %q", got, "diaper_both")
	}

	if err := c.DeleteProfile(ctx, "p1"); err != nil {
		t.Fatalf("delete profile: %v", err)
	}
	if len(backend.profiles) != 0 || len(backend.actions) != 0 {
		t.Error("profile delete should cascade to actions on the backend")
	}
}

func TestSessionTokenRoundTrip(t *testing.T) {
	now := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	token, err := mintToken("acct-1", "parent@example.com", "secret", now)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if !tokenValid(token, "secret", now) {
		t.Error("freshly minted token should be valid")
	}
	if tokenValid(token, "other-secret", now) {
		t.Error("token must not validate under a different secret")
	}
	if tokenValid(token, "secret", now.Add(2*time.Hour)) {
		t.Error("expired token should be invalid")
	}
}
