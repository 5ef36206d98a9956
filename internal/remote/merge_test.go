package remote

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/nestlingapp/nestling/internal/database"
	"github.com/nestlingapp/nestling/internal/model"
	"github.com/nestlingapp/nestling/internal/profiles"
	"github.com/nestlingapp/nestling/internal/reminder"
	"github.com/nestlingapp/nestling/internal/store"
)

func setupCoordinator(t *testing.T, backend *fakeBackend) (*Coordinator, *profiles.Manager) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	manager := profiles.NewManager(
		store.NewProfileStore(db),
		store.NewActionStore(db),
		store.NewSettingsStore(db),
		reminder.NewMemoryNotifier(),
		logger,
	)
	if err := manager.Init(); err != nil {
		t.Fatalf("init manager: %v", err)
	}

	client := testClient(t, backend)
	return NewCoordinator(client, manager, logger), manager
}

func seedRemoteAria(backend *fakeBackend) {
	backend.profiles["rp1"] = wireProfile{
		ID:          "rp1",
		AccountID:   "acct",
		Name:        "Aria",
		DateOfBirth: "2026-02-01",
	}
	backend.actions["ra1"] = wireAction{
		ID:        "ra1",
		SubtypeID: "sleep",
		StartedAt: "2026-08-01T08:00:00Z",
		ProfileID: "rp1",
	}
	backend.actions["ra2"] = wireAction{
		ID:        "ra2",
		SubtypeID: "diaper_pee",
		StartedAt: "2026-08-01T09:00:00Z",
		ProfileID: "rp1",
	}
}

func TestFirstSyncAdoptsRemoteOnFreshDevice(t *testing.T) {
	backend := newFakeBackend()
	seedRemoteAria(backend)
	coord, manager := setupCoordinator(t, backend)

	if err := coord.Sync(context.Background()); err != nil {
		t.Fatalf("sync: %v", err)
	}

	list, err := manager.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].ID != "rp1" || list[0].Name != "Aria" {
		t.Fatalf("profiles = %+v, want exactly the remote Aria profile", list)
	}

	actions, err := manager.Actions("rp1")
	if err != nil {
		t.Fatalf("actions: %v", err)
	}
	if len(actions) != 2 {
		t.Errorf("action count = %d, want the two remote actions", len(actions))
	}
}

func TestFirstSyncPushesLocalWhenNamed(t *testing.T) {
	backend := newFakeBackend()
	seedRemoteAria(backend)
	coord, manager := setupCoordinator(t, backend)

	local, err := manager.Add("Nora", "2025-12-24")
	if err != nil {
		t.Fatalf("add local profile: %v", err)
	}

	if err := coord.Sync(context.Background()); err != nil {
		t.Fatalf("sync: %v", err)
	}

	if _, ok := backend.profiles[local.ID]; !ok {
		t.Error("local profile should have been pushed to the backend")
	}
	// Local still holds its own profile; the remote one merges alongside.
	if _, err := manager.Get(local.ID); err != nil {
		t.Errorf("local profile lost after sync: %v", err)
	}
}

func TestSyncIdempotent(t *testing.T) {
	backend := newFakeBackend()
	seedRemoteAria(backend)
	coord, manager := setupCoordinator(t, backend)
	ctx := context.Background()

	if err := coord.Sync(ctx); err != nil {
		t.Fatalf("first sync: %v", err)
	}
	first, err := manager.Actions("rp1")
	if err != nil {
		t.Fatalf("actions: %v", err)
	}

	if err := coord.Sync(ctx); err != nil {
		t.Fatalf("second sync: %v", err)
	}
	second, err := manager.Actions("rp1")
	if err != nil {
		t.Fatalf("actions: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("action counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID || !first[i].StartedAt.Equal(second[i].StartedAt) {
			t.Errorf("merge not idempotent at %d: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestSyncNeverInfersDeletion(t *testing.T) {
	backend := newFakeBackend()
	seedRemoteAria(backend)
	coord, manager := setupCoordinator(t, backend)
	ctx := context.Background()

	if err := coord.Sync(ctx); err != nil {
		t.Fatalf("first sync: %v", err)
	}

	// The profile vanishes remotely; a later pull must not delete it
	// locally. Deletion is always an explicit operation.
	backend.mu.Lock()
	delete(backend.profiles, "rp1")
	backend.mu.Unlock()

	if err := coord.Sync(ctx); err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if _, err := manager.Get("rp1"); err != nil {
		t.Errorf("profile deleted by pull: %v", err)
	}
}

func TestSyncResolvesPermissions(t *testing.T) {
	backend := newFakeBackend()
	seedRemoteAria(backend)
	coord, _ := setupCoordinator(t, backend)
	me := coord.client.AccountID()

	// A second profile owned by this account, and a share granting edit
	// on the foreign Aria profile.
	backend.profiles["rp2"] = wireProfile{
		ID:          "rp2",
		AccountID:   me,
		Name:        "Nora",
		DateOfBirth: "2025-12-24",
	}
	backend.shares["s1"] = wireShare{
		ID:          "s1",
		ProfileID:   "rp1",
		OwnerID:     "acct",
		RecipientID: me,
		Permission:  "edit",
		Status:      "accepted",
	}

	if perms := coord.Permissions(); perms != nil {
		t.Fatalf("permissions before first sync = %v, want nil", perms)
	}

	if err := coord.Sync(context.Background()); err != nil {
		t.Fatalf("sync: %v", err)
	}

	perms := coord.Permissions()
	if got := perms["rp2"]; got != model.PermissionEdit {
		t.Errorf("own profile permission = %s, want edit", got)
	}
	if got := perms["rp1"]; got != model.PermissionEdit {
		t.Errorf("accepted share permission = %s, want edit", got)
	}
}

func TestSnapshotPermissionResolution(t *testing.T) {
	snap := &model.Snapshot{
		Shares: []model.Share{
			{ID: "s1", ProfileID: "p1", OwnerID: "owner", RecipientID: "friend", Permission: model.PermissionEdit, Status: model.ShareStatusAccepted},
			{ID: "s2", ProfileID: "p1", OwnerID: "owner", RecipientID: "pending-friend", Permission: model.PermissionEdit, Status: model.ShareStatusPending},
		},
	}

	if got := snap.PermissionFor("owner", "p1", "owner"); got != model.PermissionEdit {
		t.Errorf("owner permission = %s, want implicit edit", got)
	}
	if got := snap.PermissionFor("friend", "p1", "owner"); got != model.PermissionEdit {
		t.Errorf("accepted share permission = %s, want edit", got)
	}
	if got := snap.PermissionFor("pending-friend", "p1", "owner"); got != model.PermissionView {
		t.Errorf("pending share permission = %s, want default view", got)
	}
}
