package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	defaultDatabaseURL    = "cleaning_manager.db"
	defaultAppID          = "cleaning-manager-v6"
	defaultReportSchedule = "0 0 9 * * SUN"
	defaultSyncDelay      = 500 * time.Millisecond
	defaultStoreTimeout   = 10 * time.Second
)

// Config keeps runtime settings for the bot.
type Config struct {
	TelegramToken string
	DatabaseURL   string
	// AppID namespaces every stored document path.
	AppID string
	// SeedFile optionally replaces the built-in room list.
	SeedFile string
	// ReportSchedule is a cron spec with seconds; empty disables reports.
	ReportSchedule     string
	Location           *time.Location
	SyncIndicatorDelay time.Duration
	StoreTimeout       time.Duration
}

// Load reads configuration from environment variables with sane defaults.
func Load() (Config, error) {
	cfg := Config{
		TelegramToken:      strings.TrimSpace(os.Getenv("TELEGRAM_TOKEN")),
		DatabaseURL:        strings.TrimSpace(os.Getenv("DATABASE_URL")),
		AppID:              strings.TrimSpace(os.Getenv("APP_ID")),
		SeedFile:           strings.TrimSpace(os.Getenv("SEED_FILE")),
		SyncIndicatorDelay: parseDuration(os.Getenv("SYNC_INDICATOR_DELAY")),
		StoreTimeout:       parseDuration(os.Getenv("STORE_TIMEOUT")),
		Location:           time.Local,
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = defaultDatabaseURL
	}
	if cfg.AppID == "" {
		cfg.AppID = defaultAppID
	}
	if cfg.SyncIndicatorDelay == 0 {
		cfg.SyncIndicatorDelay = defaultSyncDelay
	}
	if cfg.StoreTimeout == 0 {
		cfg.StoreTimeout = defaultStoreTimeout
	}

	schedule, ok := os.LookupEnv("REPORT_SCHEDULE")
	if ok {
		cfg.ReportSchedule = strings.TrimSpace(schedule)
	} else {
		cfg.ReportSchedule = defaultReportSchedule
	}

	if tz := strings.TrimSpace(os.Getenv("TIMEZONE")); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return cfg, fmt.Errorf("TIMEZONE %q: %w", tz, err)
		}
		cfg.Location = loc
	}

	return cfg, nil
}

// RequireTelegram reports an error when the bot token is missing.
func (c Config) RequireTelegram() error {
	if c.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_TOKEN is required")
	}
	return nil
}

func parseDuration(raw string) time.Duration {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0
	}
	return d
}
