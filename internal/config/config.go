package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreDriverJSON = "json"
	StoreDriverBolt = "bolt"
)

// Config holds all configuration for the application
type Config struct {
	TelegramToken string
	LogLevel      string
	LogFormat     string
	Port          string
	StoreDriver   string
	RemindersFile string
	CheckInterval time.Duration
	CheckDelay    time.Duration
	PostponeDelay time.Duration
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; real environment variables win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{
		TelegramToken: os.Getenv("TELEGRAM_TOKEN"),
		LogLevel:      getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:     getEnvOrDefault("LOG_FORMAT", "text"),
		Port:          os.Getenv("PORT"),
		StoreDriver:   strings.ToLower(getEnvOrDefault("STORE_DRIVER", StoreDriverJSON)),
		RemindersFile: getEnvOrDefault("REMINDERS_FILE", "reminders.json"),
	}
	if _, set := os.LookupEnv("PORT"); !set {
		cfg.Port = "8080"
	}

	var err error
	if cfg.CheckInterval, err = getDurationOrDefault("CHECK_INTERVAL", 60*time.Second); err != nil {
		return nil, err
	}
	if cfg.CheckDelay, err = getDurationOrDefault("CHECK_DELAY", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.PostponeDelay, err = getDurationOrDefault("POSTPONE_DELAY", 12*time.Hour); err != nil {
		return nil, err
	}

	if cfg.CheckInterval <= 0 {
		return nil, fmt.Errorf("CHECK_INTERVAL must be positive, got %s", cfg.CheckInterval)
	}
	if cfg.PostponeDelay <= 0 {
		return nil, fmt.Errorf("POSTPONE_DELAY must be positive, got %s", cfg.PostponeDelay)
	}
	if cfg.StoreDriver != StoreDriverJSON && cfg.StoreDriver != StoreDriverBolt {
		return nil, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreDriverJSON, StoreDriverBolt, cfg.StoreDriver)
	}

	return cfg, nil
}

// RequireTelegram checks the settings needed to talk to Telegram
func (c *Config) RequireTelegram() error {
	if c.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_TOKEN environment variable is required")
	}
	return nil
}

// getEnvOrDefault returns environment variable value or default if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return d, nil
}
