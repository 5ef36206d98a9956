package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/nestlingapp/nestling/internal/handler"
	"github.com/nestlingapp/nestling/internal/middleware"
	"github.com/nestlingapp/nestling/internal/profiles"
	"github.com/nestlingapp/nestling/internal/reminder"
	"github.com/nestlingapp/nestling/internal/remote"
	"github.com/nestlingapp/nestling/internal/share"
	"github.com/nestlingapp/nestling/internal/store"
	ws "github.com/nestlingapp/nestling/internal/websocket"
)

type Server struct {
	db          *sql.DB
	hub         *ws.Hub
	profileH    *handler.ProfileHandler
	actionH     *handler.ActionHandler
	reminderH   *handler.ReminderHandler
	settingsH   *handler.SettingsHandler
	pushH       *handler.PushHandler
	syncH       *handler.SyncHandler
	shareH      *handler.ShareHandler
	rateLimiter *middleware.RateLimiter
	logger      *slog.Logger
}

// New wires handlers over the already-constructed domain services. The
// coordinator and share manager are nil when no backend account is
// configured; their routes are simply not registered.
func New(
	db *sql.DB,
	hub *ws.Hub,
	manager *profiles.Manager,
	notifier reminder.Notifier,
	coordinator *remote.Coordinator,
	shareMgr *share.Manager,
	avatars *remote.AvatarStore,
	accountID string,
	vapidPublicKey string,
	logger *slog.Logger,
) *Server {
	pushStore := store.NewPushStore(db)

	s := &Server{
		db:          db,
		hub:         hub,
		profileH:    handler.NewProfileHandler(manager, avatars, accountID, logger.With("component", "profile")),
		actionH:     handler.NewActionHandler(manager, logger.With("component", "action")),
		reminderH:   handler.NewReminderHandler(manager, notifier, logger.With("component", "reminder")),
		settingsH:   handler.NewSettingsHandler(manager, logger.With("component", "settings")),
		pushH:       handler.NewPushHandler(pushStore, vapidPublicKey, logger.With("component", "push")),
		rateLimiter: middleware.NewRateLimiter(),
		logger:      logger,
	}
	if coordinator != nil {
		s.syncH = handler.NewSyncHandler(coordinator, logger.With("component", "sync"))
	}
	if shareMgr != nil {
		s.shareH = handler.NewShareHandler(shareMgr, logger.With("component", "share"))
	}
	return s
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)

	// Profile API routes
	mux.HandleFunc("GET /api/profiles", s.profileH.List)
	mux.HandleFunc("POST /api/profiles", s.profileH.Create)
	mux.HandleFunc("GET /api/profiles/active", s.profileH.GetActive)
	mux.HandleFunc("GET /api/profiles/{id}", s.profileH.Get)
	mux.HandleFunc("PUT /api/profiles/{id}", s.profileH.Update)
	mux.HandleFunc("DELETE /api/profiles/{id}", s.profileH.Delete)
	mux.HandleFunc("POST /api/profiles/{id}/activate", s.profileH.SetActive)
	mux.HandleFunc("POST /api/profiles/{id}/avatar", s.profileH.UploadAvatar)

	// Action API routes
	mux.HandleFunc("GET /api/profiles/{id}/actions", s.actionH.List)
	mux.HandleFunc("POST /api/actions", s.actionH.Log)
	mux.HandleFunc("POST /api/actions/{id}/stop", s.actionH.Stop)
	mux.HandleFunc("DELETE /api/actions/{id}", s.actionH.Delete)

	// Reminder API routes
	mux.HandleFunc("GET /api/reminders", s.reminderH.Upcoming)
	mux.HandleFunc("GET /api/reminders/preview", s.reminderH.Preview)
	mux.HandleFunc("POST /api/reminders/authorize", s.reminderH.Authorize)
	mux.HandleFunc("PUT /api/profiles/{id}/reminders", s.reminderH.SetEnabled)
	mux.HandleFunc("PUT /api/profiles/{id}/reminders/{category}", s.reminderH.UpdatePref)
	mux.HandleFunc("PUT /api/profiles/{id}/reminders/{category}/override", s.reminderH.SetOverride)
	mux.HandleFunc("DELETE /api/profiles/{id}/reminders/{category}/override", s.reminderH.ClearOverride)

	// Settings API routes
	mux.HandleFunc("GET /api/settings/display", s.settingsH.GetDisplay)
	mux.HandleFunc("PUT /api/settings/display", s.settingsH.UpdateDisplay)

	// Push subscription API routes
	mux.HandleFunc("POST /api/push/subscribe", s.pushH.Subscribe)
	mux.HandleFunc("POST /api/push/unsubscribe", s.pushH.Unsubscribe)
	mux.HandleFunc("GET /api/push/subscriptions", s.pushH.ListSubscriptions)
	mux.HandleFunc("GET /api/push/vapid-key", s.pushH.GetVAPIDKey)

	// Sync and share routes exist only with a configured backend. They
	// fan out to it, so they get a rate limit.
	if s.syncH != nil {
		mux.HandleFunc("POST /api/sync", s.rateLimitedHandler(s.syncH.Trigger))
	}
	if s.shareH != nil {
		mux.HandleFunc("POST /api/shares", s.rateLimitedHandler(s.shareH.Invite))
		mux.HandleFunc("POST /api/shares/{id}/respond", s.rateLimitedHandler(s.shareH.Respond))
		mux.HandleFunc("POST /api/shares/{id}/revoke", s.rateLimitedHandler(s.shareH.Revoke))
	}

	// WebSocket
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.logger.With("component", "websocket")))

	return middleware.RequestLogger(s.logger.With("component", "http"))(mux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}
