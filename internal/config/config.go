package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every tunable the bot reads at startup. Values come from the
// environment, with a .env file loaded first when present.
type Config struct {
	DiscordWebhookURL string
	DatabasePath      string
	LockPath          string
	AdminAddr         string

	CycleInterval    time.Duration
	Retention        time.Duration
	MaxDealsPerCycle int
	MinScore         float64

	SendInterval   time.Duration
	MaxAttempts    int
	RetryBaseDelay time.Duration

	SlickdealsURL     string
	DealNewsURL       string
	DealsOfAmericaURL string
	DisabledSources   []string
}

func Load() (*Config, error) {
	// A missing .env is fine; real deployments use the environment directly.
	if err := godotenv.Load(); err == nil {
		slog.Info("Loaded environment from .env file")
	}

	webhookURL := os.Getenv("DISCORD_WEBHOOK_URL")
	if webhookURL == "" {
		return nil, fmt.Errorf("DISCORD_WEBHOOK_URL environment variable is required but not set")
	}

	cfg := &Config{
		DiscordWebhookURL: webhookURL,
		DatabasePath:      envOr("DATABASE_PATH", "deals.db"),
		LockPath:          envOr("LOCK_PATH", "dealfeed-bot.lock"),
		AdminAddr:         envOr("ADMIN_ADDR", ":8080"),
		SlickdealsURL:     envOr("SLICKDEALS_URL", "https://slickdeals.net/"),
		DealNewsURL:       envOr("DEALNEWS_URL", "https://www.dealnews.com/"),
		DealsOfAmericaURL: envOr("DEALSOFAMERICA_URL", "https://www.dealsofamerica.com/"),
	}

	var err error
	if cfg.CycleInterval, err = envDuration("CYCLE_INTERVAL", 30*time.Minute); err != nil {
		return nil, err
	}
	if cfg.Retention, err = envDuration("RETENTION", 30*24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.SendInterval, err = envDuration("SEND_INTERVAL", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.RetryBaseDelay, err = envDuration("RETRY_BASE_DELAY", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.MaxDealsPerCycle, err = envInt("MAX_DEALS_PER_CYCLE", 20); err != nil {
		return nil, err
	}
	if cfg.MaxAttempts, err = envInt("MAX_ATTEMPTS", 3); err != nil {
		return nil, err
	}
	if cfg.MinScore, err = envFloat("MIN_SCORE", 0); err != nil {
		return nil, err
	}

	if v := os.Getenv("DISABLED_SOURCES"); v != "" {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				cfg.DisabledSources = append(cfg.DisabledSources, name)
			}
		}
	}

	if cfg.MaxDealsPerCycle <= 0 {
		return nil, fmt.Errorf("MAX_DEALS_PER_CYCLE must be positive, got %d", cfg.MaxDealsPerCycle)
	}
	if cfg.MaxAttempts <= 0 {
		return nil, fmt.Errorf("MAX_ATTEMPTS must be positive, got %d", cfg.MaxAttempts)
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func envFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return f, nil
}
