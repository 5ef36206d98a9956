// Package profiles owns the canonical profile list and active-profile
// selection. Every mutation runs through one Manager, which serializes
// writers, repairs invariants after each commit, and triggers the
// downstream recompute (reminder refresh, change publication, best-effort
// remote push). The recompute is idempotent and cheap, so over-triggering
// is harmless.
package profiles

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nestlingapp/nestling/internal/model"
	"github.com/nestlingapp/nestling/internal/reminder"
	"github.com/nestlingapp/nestling/internal/store"
)

// ErrProfileNotFound is returned when an operation names a profile the
// store does not hold.
var ErrProfileNotFound = errors.New("profile not found")

// Publisher receives change notifications after committed mutations. The
// websocket hub implements it in production; tests use a recording fake.
type Publisher interface {
	Publish(entity, action, id string)
}

// Pusher propagates committed local mutations to the remote backend,
// best effort and asynchronous. The sync coordinator implements it.
type Pusher interface {
	PushProfile(p model.Profile)
	PushProfileDelete(id string)
	PushAction(a model.Action)
	PushActionDelete(id string)
}

type Manager struct {
	mu       sync.Mutex
	profiles *store.ProfileStore
	actions  *store.ActionStore
	settings *store.SettingsStore
	notifier reminder.Notifier
	logger   *slog.Logger

	publisher Publisher
	pusher    Pusher

	now func() time.Time
}

func NewManager(profiles *store.ProfileStore, actions *store.ActionStore, settings *store.SettingsStore, notifier reminder.Notifier, logger *slog.Logger) *Manager {
	return &Manager{
		profiles: profiles,
		actions:  actions,
		settings: settings,
		notifier: notifier,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetPublisher wires the change-notification sink. Call before Init.
func (m *Manager) SetPublisher(p Publisher) { m.publisher = p }

// SetPusher wires the remote push sink. Call before Init.
func (m *Manager) SetPusher(p Pusher) { m.pusher = p }

// Init normalizes persisted state and guarantees the first-launch
// invariants: at least one profile exists and one is selected as active.
func (m *Manager) Init() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	list, err := m.profiles.List()
	if err != nil {
		return err
	}
	now := m.now()
	for i := range list {
		if Normalize(&list[i], now) {
			if err := m.profiles.Upsert(&list[i]); err != nil {
				m.logger.Error("persist normalized profile", "id", list[i].ID, "error", err)
			}
		}
	}
	m.afterCommit()
	return nil
}

// List returns all profiles, normalized.
func (m *Manager) List() ([]model.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listNormalized()
}

// Get returns one profile, or ErrProfileNotFound.
func (m *Manager) Get(id string) (*model.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getNormalized(id)
}

// ActiveProfileID returns the current active-profile selection.
func (m *Manager) ActiveProfileID() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings.Get(store.KeyActiveProfile)
}

// SetActive selects the active profile.
func (m *Manager) SetActive(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.getNormalized(id)
	if err != nil {
		return err
	}
	if err := m.settings.Set(store.KeyActiveProfile, p.ID); err != nil {
		return err
	}
	m.publish("profile", "activated", p.ID)
	return nil
}

// Add creates a profile and makes it active when it is the first real one.
func (m *Manager) Add(name, birthDate string) (*model.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	hadNamed, err := m.profiles.HasNamedProfile()
	if err != nil {
		return nil, err
	}

	p := &model.Profile{
		ID:               uuid.New().String(),
		Name:             name,
		BirthDate:        birthDate,
		RemindersEnabled: true,
	}
	Normalize(p, m.now())
	if err := m.profiles.Upsert(p); err != nil {
		return nil, err
	}
	// The first named profile supersedes the synthesized default as the
	// active selection.
	if !hadNamed && p.Named() {
		if err := m.settings.Set(store.KeyActiveProfile, p.ID); err != nil {
			m.logger.Error("activate first named profile", "id", p.ID, "error", err)
		}
	}
	m.afterCommit()
	m.publish("profile", "created", p.ID)
	m.pushProfile(*p)
	return p, nil
}

// Update changes a profile's display fields.
func (m *Manager) Update(id, name, birthDate string) (*model.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.getNormalized(id)
	if err != nil {
		return nil, err
	}
	p.Name = name
	p.BirthDate = birthDate
	if err := m.profiles.Upsert(p); err != nil {
		return nil, err
	}
	m.afterCommit()
	m.publish("profile", "updated", p.ID)
	m.pushProfile(*p)
	return p, nil
}

// SetAvatarURL records the stored avatar reference for a profile.
func (m *Manager) SetAvatarURL(id, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.getNormalized(id)
	if err != nil {
		return err
	}
	p.AvatarURL = url
	if err := m.profiles.Upsert(p); err != nil {
		return err
	}
	m.publish("profile", "updated", p.ID)
	m.pushProfile(*p)
	return nil
}

// Delete removes a profile. Its actions and reminder preferences cascade
// locally; the remote rows are removed by an explicit best-effort push.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.getNormalized(id)
	if err != nil {
		return err
	}
	if err := m.profiles.Delete(p.ID); err != nil {
		return err
	}
	m.afterCommit()
	m.publish("profile", "deleted", p.ID)
	if m.pusher != nil {
		m.pusher.PushProfileDelete(p.ID)
	}
	return nil
}

// SetRemindersEnabled flips the profile-wide reminder switch.
func (m *Manager) SetRemindersEnabled(id string, enabled bool) error {
	return m.updateReminderConfig(id, func(p *model.Profile) {
		p.RemindersEnabled = enabled
	})
}

// UpdateReminderPref reconfigures one category's recurring reminder.
func (m *Manager) UpdateReminderPref(id string, category model.Category, enabled bool, intervalMinutes int) error {
	if !category.Valid() {
		return fmt.Errorf("invalid category %q", category)
	}
	if intervalMinutes <= 0 {
		return fmt.Errorf("interval must be positive, got %d", intervalMinutes)
	}
	return m.updateReminderConfig(id, func(p *model.Profile) {
		pref := p.Reminders[category]
		pref.Enabled = enabled
		pref.IntervalMinutes = intervalMinutes
		p.Reminders[category] = pref
	})
}

// SetOverride replaces a category's recurring schedule with an explicit
// fire time, e.g. "remind me in twenty minutes".
func (m *Manager) SetOverride(id string, category model.Category, fireAt time.Time, oneOff bool) error {
	if !category.Valid() {
		return fmt.Errorf("invalid category %q", category)
	}
	if !fireAt.After(m.now()) {
		return fmt.Errorf("override fire time %v is in the past", fireAt)
	}
	return m.updateReminderConfig(id, func(p *model.Profile) {
		pref := p.Reminders[category]
		pref.Override = &model.ReminderOverride{FireAt: fireAt.UTC(), OneOff: oneOff}
		p.Reminders[category] = pref
	})
}

// ClearOverride removes a category's override, restoring the recurring
// schedule.
func (m *Manager) ClearOverride(id string, category model.Category) error {
	return m.updateReminderConfig(id, func(p *model.Profile) {
		pref := p.Reminders[category]
		pref.Override = nil
		p.Reminders[category] = pref
	})
}

func (m *Manager) updateReminderConfig(id string, mutate func(p *model.Profile)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.getNormalized(id)
	if err != nil {
		return err
	}
	mutate(p)
	Normalize(p, m.now())
	if err := m.profiles.Upsert(p); err != nil {
		return err
	}
	m.afterCommit()
	m.publish("profile", "updated", p.ID)
	m.pushProfile(*p)
	return nil
}

// LogAction validates and records a care event. Logging clears any
// override for the action's category: the recurring schedule restarts
// from the new end time.
func (m *Manager) LogAction(a *model.Action) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if err := store.Validate(a); err != nil {
		return err
	}
	p, err := m.getNormalized(a.ProfileID)
	if err != nil {
		return err
	}

	if err := m.actions.Upsert(a); err != nil {
		return err
	}

	if pref := p.Reminders[a.Category]; pref.Override != nil {
		pref.Override = nil
		p.Reminders[a.Category] = pref
		if err := m.profiles.Upsert(p); err != nil {
			m.logger.Error("clear override after action", "profile", p.ID, "error", err)
		}
	}

	m.afterCommit()
	m.publish("action", "logged", a.ID)
	m.pushAction(*a)
	return nil
}

// StopAction sets the end time of a running action.
func (m *Manager) StopAction(id string, stoppedAt time.Time) (*model.Action, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, err := m.actions.GetByID(id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, fmt.Errorf("action %s not found", id)
	}
	stopped := stoppedAt.UTC()
	a.StoppedAt = &stopped
	if err := m.actions.Upsert(a); err != nil {
		return nil, err
	}

	m.afterCommit()
	m.publish("action", "updated", a.ID)
	m.pushAction(*a)
	return a, nil
}

// DeleteAction removes one logged event. Deletion is always explicit;
// sync never infers it.
func (m *Manager) DeleteAction(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.actions.Delete(id); err != nil {
		return err
	}
	m.afterCommit()
	m.publish("action", "deleted", id)
	if m.pusher != nil {
		m.pusher.PushActionDelete(id)
	}
	return nil
}

// Actions returns a profile's logged events, newest first.
func (m *Manager) Actions(profileID string) ([]model.Action, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.actions.ListByProfile(profileID)
}

// HasNamedProfile reports whether any profile has a real name. The sync
// coordinator uses this to pick the fresh-device adopt path.
func (m *Manager) HasNamedProfile() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.profiles.HasNamedProfile()
}

// ApplyRemoteProfile upserts a profile coming from a snapshot merge.
// It refreshes reminders and publishes, but never pushes back to the
// backend: remote-origin writes must not echo.
func (m *Manager) ApplyRemoteProfile(p model.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	Normalize(&p, m.now())
	local, err := m.profiles.GetByID(p.ID)
	if err != nil {
		return err
	}
	if local != nil {
		// Reminder configuration is device-local; only metadata merges.
		p.Reminders = local.Reminders
		p.RemindersEnabled = local.RemindersEnabled
		p.CreatedAt = local.CreatedAt
	}
	if err := m.profiles.Upsert(&p); err != nil {
		return err
	}
	m.afterCommit()
	m.publish("profile", "synced", p.ID)
	return nil
}

// ReplaceActions swaps a profile's action list during a snapshot merge.
// Idempotent; never pushes back to the backend.
func (m *Manager) ReplaceActions(profileID string, actions []model.Action) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.actions.ReplaceForProfile(profileID, actions); err != nil {
		return err
	}
	m.afterCommit()
	m.publish("action", "synced", profileID)
	return nil
}

// AdoptRemote replaces all local state with the snapshot's profiles and
// actions: the fresh-device path on first sync.
func (m *Manager) AdoptRemote(snap *model.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	local, err := m.profiles.List()
	if err != nil {
		return err
	}
	for _, p := range local {
		if err := m.profiles.Delete(p.ID); err != nil {
			return err
		}
	}

	now := m.now()
	for _, p := range snap.Profiles {
		Normalize(&p, now)
		if err := m.profiles.Upsert(&p); err != nil {
			return err
		}
		if err := m.actions.ReplaceForProfile(p.ID, snap.ActionsFor(p.ID)); err != nil {
			return err
		}
	}
	if len(snap.Profiles) > 0 {
		if err := m.settings.Set(store.KeyActiveProfile, snap.Profiles[0].ID); err != nil {
			m.logger.Error("set active profile after adopt", "error", err)
		}
	}

	m.afterCommit()
	m.publish("profile", "adopted", "")
	return nil
}

// DisplayPrefs returns the display preference aggregate.
func (m *Manager) DisplayPrefs() (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings.GetDisplayPrefs()
}

// SetDisplayPref stores one display preference.
func (m *Manager) SetDisplayPref(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.settings.Set(key, value); err != nil {
		return err
	}
	m.publish("settings", "updated", key)
	return nil
}

// UpcomingReminders returns the currently scheduled reminders.
func (m *Manager) UpcomingReminders() []reminder.Reminder {
	return m.notifier.Upcoming()
}

// PreviewReminders computes reminders at a reference time without
// scheduling anything.
func (m *Manager) PreviewReminders(at time.Time) ([]reminder.Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	list, err := m.listNormalized()
	if err != nil {
		return nil, err
	}
	ended, err := m.lastEnded(list)
	if err != nil {
		return nil, err
	}
	return m.notifier.SchedulePreview(list, ended, at), nil
}

// getNormalized loads and normalizes one profile; callers hold the lock.
func (m *Manager) getNormalized(id string) (*model.Profile, error) {
	p, err := m.profiles.GetByID(id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrProfileNotFound
	}
	if Normalize(p, m.now()) {
		if err := m.profiles.Upsert(p); err != nil {
			m.logger.Error("persist normalized profile", "id", p.ID, "error", err)
		}
	}
	return p, nil
}

func (m *Manager) listNormalized() ([]model.Profile, error) {
	list, err := m.profiles.List()
	if err != nil {
		return nil, err
	}
	now := m.now()
	for i := range list {
		if Normalize(&list[i], now) {
			if err := m.profiles.Upsert(&list[i]); err != nil {
				m.logger.Error("persist normalized profile", "id", list[i].ID, "error", err)
			}
		}
	}
	return list, nil
}

// afterCommit runs the unconditional downstream recompute: repair the
// active-profile invariant, then reschedule reminders. Persistence
// failures are logged and never surfaced; local state stays authoritative.
func (m *Manager) afterCommit() {
	list, err := m.listNormalized()
	if err != nil {
		m.logger.Error("recompute: list profiles", "error", err)
		return
	}

	if len(list) == 0 {
		// The store must never be empty: synthesize the default profile.
		def := &model.Profile{ID: uuid.New().String(), RemindersEnabled: true}
		Normalize(def, m.now())
		if err := m.profiles.Upsert(def); err != nil {
			m.logger.Error("recompute: create default profile", "error", err)
			return
		}
		list = []model.Profile{*def}
	}

	active, err := m.settings.Get(store.KeyActiveProfile)
	if err != nil {
		m.logger.Error("recompute: read active profile", "error", err)
	}
	found := false
	for _, p := range list {
		if p.ID == active {
			found = true
			break
		}
	}
	if !found {
		if err := m.settings.Set(store.KeyActiveProfile, list[0].ID); err != nil {
			m.logger.Error("recompute: repair active profile", "error", err)
		}
	}

	ended, err := m.lastEnded(list)
	if err != nil {
		m.logger.Error("recompute: last ended", "error", err)
		return
	}
	m.notifier.Refresh(reminder.Upcoming(list, ended, m.now()))
}

func (m *Manager) lastEnded(list []model.Profile) (reminder.LastEnded, error) {
	ended := make(reminder.LastEnded, len(list))
	for _, p := range list {
		e, err := m.actions.LastEnded(p.ID)
		if err != nil {
			return nil, err
		}
		if len(e) > 0 {
			ended[p.ID] = e
		}
	}
	return ended, nil
}

func (m *Manager) publish(entity, action, id string) {
	if m.publisher != nil {
		m.publisher.Publish(entity, action, id)
	}
}

func (m *Manager) pushProfile(p model.Profile) {
	if m.pusher != nil {
		m.pusher.PushProfile(p)
	}
}

func (m *Manager) pushAction(a model.Action) {
	if m.pusher != nil {
		m.pusher.PushAction(a)
	}
}
