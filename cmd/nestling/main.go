package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/nestlingapp/nestling/internal/config"
	"github.com/nestlingapp/nestling/internal/database"
	"github.com/nestlingapp/nestling/internal/logging"
	"github.com/nestlingapp/nestling/internal/profiles"
	"github.com/nestlingapp/nestling/internal/reminder"
	"github.com/nestlingapp/nestling/internal/remote"
	"github.com/nestlingapp/nestling/internal/server"
	"github.com/nestlingapp/nestling/internal/share"
	"github.com/nestlingapp/nestling/internal/store"
	ws "github.com/nestlingapp/nestling/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := logging.Setup(cfg.LogLevel)

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	profileStore := store.NewProfileStore(db)
	actionStore := store.NewActionStore(db)
	settingsStore := store.NewSettingsStore(db)
	pushStore := store.NewPushStore(db)

	if err := store.ImportLegacyState(cfg.LegacyStatePath, profileStore, actionStore, settingsStore, logger.With("component", "legacy")); err != nil {
		logger.Error("legacy state import", "error", err)
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Notifier: web push when a VAPID key pair is configured, otherwise
	// an in-memory scheduler so reminders still compute.
	var notifier reminder.Notifier
	var webPush *reminder.WebPushNotifier
	if cfg.VAPIDPublicKey != "" && cfg.VAPIDPrivateKey != "" {
		webPush = reminder.NewWebPushNotifier(reminder.Config{
			VAPIDPublicKey:  cfg.VAPIDPublicKey,
			VAPIDPrivateKey: cfg.VAPIDPrivateKey,
		}, pushStore, logger.With("component", "webpush"))
		webPush.Start(rootCtx)
		defer webPush.Stop()
		notifier = webPush
	} else {
		logger.Warn("no VAPID keys configured, reminders will not be delivered")
		notifier = reminder.NewMemoryNotifier()
	}

	hub := ws.NewHub(logger.With("component", "websocket"))

	manager := profiles.NewManager(profileStore, actionStore, settingsStore, notifier, logger.With("component", "profiles"))
	manager.SetPublisher(hub)

	// Remote backend: optional. Without an account the app runs fully
	// offline and everything above still works.
	var coordinator *remote.Coordinator
	var shareMgr *share.Manager
	var accountID string
	client, err := remote.NewClient(remote.Config{
		BaseURL: cfg.BackendURL,
		APIKey:  cfg.BackendAPIKey,
		Email:   cfg.AccountEmail,
		Secret:  cfg.AccountSecret,
	}, logger.With("component", "remote"))
	switch {
	case errors.Is(err, remote.ErrNotConfigured):
		logger.Info("no backend account configured, running offline")
	case err != nil:
		log.Fatalf("failed to create backend client: %v", err)
	default:
		accountID = client.AccountID()
		coordinator = remote.NewCoordinator(client, manager, logger.With("component", "sync"))
		shareMgr = share.NewManager(client, logger.With("component", "share"))
		manager.SetPusher(coordinator)
	}

	if err := manager.Init(); err != nil {
		log.Fatalf("failed to initialize profiles: %v", err)
	}

	avatars := remote.NewAvatarStore(remote.AvatarConfig{
		Endpoint:  cfg.S3Endpoint,
		Bucket:    cfg.S3Bucket,
		Region:    cfg.S3Region,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
	}, logger.With("component", "avatars"))

	srv := server.New(db, hub, manager, notifier, coordinator, shareMgr, avatars, accountID, cfg.VAPIDPublicKey, logger)

	if coordinator != nil {
		go syncLoop(rootCtx, coordinator, cfg.SyncInterval, logger)
	}

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		fmt.Printf("Nestling running at http://localhost:%s\n", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-rootCtx.Done()

	fmt.Println("\nShutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}
}

// syncLoop runs one sync at startup, then one per interval. Failures are
// logged and swallowed; the next tick retries naturally.
func syncLoop(ctx context.Context, c *remote.Coordinator, interval time.Duration, logger *slog.Logger) {
	run := func() {
		syncCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		if err := c.Sync(syncCtx); err != nil {
			logger.Warn("background sync", "error", err)
		}
	}
	run()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			run()
		case <-ctx.Done():
			return
		}
	}
}
