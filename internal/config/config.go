// Package config loads runtime configuration from the environment, with
// an optional .env file for development.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Port     string `env:"NESTLING_PORT" envDefault:"8080"`
	DBPath   string `env:"NESTLING_DB_PATH" envDefault:"nestling.db"`
	LogLevel string `env:"NESTLING_LOG_LEVEL" envDefault:"info"`

	// Path to a legacy single-file state export. Imported once into the
	// database on first launch, then removed.
	LegacyStatePath string `env:"NESTLING_LEGACY_STATE" envDefault:"nestling_state.json"`

	SyncInterval time.Duration `env:"NESTLING_SYNC_INTERVAL" envDefault:"5m"`

	// Backend account. All four must be set for sync and sharing to be
	// available; otherwise the app runs fully offline.
	BackendURL    string `env:"NESTLING_BACKEND_URL"`
	BackendAPIKey string `env:"NESTLING_BACKEND_API_KEY"`
	AccountEmail  string `env:"NESTLING_ACCOUNT_EMAIL"`
	AccountSecret string `env:"NESTLING_ACCOUNT_SECRET"`

	// Web Push VAPID key pair for reminder delivery.
	VAPIDPublicKey  string `env:"NESTLING_VAPID_PUBLIC_KEY"`
	VAPIDPrivateKey string `env:"NESTLING_VAPID_PRIVATE_KEY"`

	// S3-compatible storage for profile avatars.
	S3Endpoint  string `env:"NESTLING_S3_ENDPOINT"`
	S3Bucket    string `env:"NESTLING_S3_BUCKET"`
	S3Region    string `env:"NESTLING_S3_REGION" envDefault:"auto"`
	S3AccessKey string `env:"NESTLING_S3_ACCESS_KEY"`
	S3SecretKey string `env:"NESTLING_S3_SECRET_KEY"`
}

// Load reads configuration from the environment. A .env file in the
// working directory is loaded first when present.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}
