package remote

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nestlingapp/nestling/internal/model"
	"github.com/nestlingapp/nestling/internal/profiles"
)

// Coordinator reconciles remote snapshots against the local store and
// propagates committed local mutations back to the backend.
//
// First sync of a session:
//   - remote holds data and no local profile has a real name yet
//     (fresh device) -> adopt the snapshot wholesale;
//   - otherwise local is authoritative -> push local, then re-fetch to
//     confirm convergence.
//
// Every later sync applies the snapshot incrementally. Applying the same
// snapshot twice yields identical local state, and deletion is never
// inferred from absence: removing data is always an explicit operation.
type Coordinator struct {
	client  *Client
	manager *profiles.Manager
	logger  *slog.Logger

	mu            sync.Mutex
	firstSyncDone bool
	lastSnap      *model.Snapshot
}

func NewCoordinator(client *Client, manager *profiles.Manager, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		client:  client,
		manager: manager,
		logger:  logger,
	}
}

// Sync performs one pull-and-reconcile pass.
func (c *Coordinator) Sync(ctx context.Context) error {
	if err := c.client.EnsureAccount(ctx); err != nil {
		return err
	}

	snap, err := c.client.FetchSnapshot(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	first := !c.firstSyncDone
	c.mu.Unlock()

	if first {
		named, err := c.manager.HasNamedProfile()
		if err != nil {
			return err
		}
		if !snap.Empty() && !named {
			c.logger.Info("first sync: adopting remote state",
				"profiles", len(snap.Profiles), "actions", len(snap.Actions))
			if err := c.manager.AdoptRemote(snap); err != nil {
				return err
			}
		} else {
			c.logger.Info("first sync: pushing local state")
			c.pushLocal(ctx)
			snap, err = c.client.FetchSnapshot(ctx)
			if err != nil {
				return err
			}
			if err := c.apply(snap); err != nil {
				return err
			}
		}
		c.mu.Lock()
		c.firstSyncDone = true
		c.lastSnap = snap
		c.mu.Unlock()
		return nil
	}

	if err := c.apply(snap); err != nil {
		return err
	}
	c.mu.Lock()
	c.lastSnap = snap
	c.mu.Unlock()
	return nil
}

// Permissions resolves this account's effective permission per profile
// from the most recently reconciled snapshot. Nil before the first
// successful sync.
func (c *Coordinator) Permissions() map[string]model.Permission {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastSnap == nil {
		return nil
	}
	return c.lastSnap.Permissions(c.client.AccountID())
}

// apply merges a snapshot incrementally: profile metadata upserts, then
// each profile's action list replaced by exactly the fetched set.
func (c *Coordinator) apply(snap *model.Snapshot) error {
	for _, p := range snap.Profiles {
		if err := c.manager.ApplyRemoteProfile(p); err != nil {
			return err
		}
		if err := c.manager.ReplaceActions(p.ID, snap.ActionsFor(p.ID)); err != nil {
			return err
		}
	}
	return nil
}

// pushLocal uploads every local profile and action, blind upserts by id.
// Individual failures are logged and skipped; the push is best effort.
func (c *Coordinator) pushLocal(ctx context.Context) {
	list, err := c.manager.List()
	if err != nil {
		c.logger.Error("push local: list profiles", "error", err)
		return
	}
	for i := range list {
		if err := c.client.UpsertProfile(ctx, &list[i]); err != nil {
			c.logger.Error("push local profile", "id", list[i].ID, "error", err)
			continue
		}
		actions, err := c.manager.Actions(list[i].ID)
		if err != nil {
			c.logger.Error("push local: list actions", "profile", list[i].ID, "error", err)
			continue
		}
		for j := range actions {
			if err := c.client.UpsertAction(ctx, &actions[j]); err != nil {
				c.logger.Error("push local action", "id", actions[j].ID, "error", err)
			}
		}
	}
}

// pushTimeout bounds the background push goroutines spawned for local
// mutations.
const pushTimeout = 20 * time.Second

// PushProfile implements profiles.Pusher: best-effort async upsert.
func (c *Coordinator) PushProfile(p model.Profile) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
		defer cancel()
		if err := c.client.EnsureAccount(ctx); err != nil {
			c.logger.Warn("push profile: session", "error", err)
			return
		}
		if err := c.client.UpsertProfile(ctx, &p); err != nil {
			c.logger.Warn("push profile", "id", p.ID, "error", err)
		}
	}()
}

// PushProfileDelete implements profiles.Pusher.
func (c *Coordinator) PushProfileDelete(id string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
		defer cancel()
		if err := c.client.EnsureAccount(ctx); err != nil {
			c.logger.Warn("push profile delete: session", "error", err)
			return
		}
		if err := c.client.DeleteProfile(ctx, id); err != nil {
			c.logger.Warn("push profile delete", "id", id, "error", err)
		}
	}()
}

// PushAction implements profiles.Pusher.
func (c *Coordinator) PushAction(a model.Action) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
		defer cancel()
		if err := c.client.EnsureAccount(ctx); err != nil {
			c.logger.Warn("push action: session", "error", err)
			return
		}
		if err := c.client.UpsertAction(ctx, &a); err != nil {
			c.logger.Warn("push action", "id", a.ID, "error", err)
		}
	}()
}

// PushActionDelete implements profiles.Pusher.
func (c *Coordinator) PushActionDelete(id string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
		defer cancel()
		if err := c.client.EnsureAccount(ctx); err != nil {
			c.logger.Warn("push action delete: session", "error", err)
			return
		}
		if err := c.client.DeleteAction(ctx, id); err != nil {
			c.logger.Warn("push action delete", "id", id, "error", err)
		}
	}()
}
