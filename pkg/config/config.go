package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Server
	Port    string
	AppName string

	// Database (optional, enables Postgres audit log)
	DatabaseURL string
	AdminToken  string // guards GET /api/audit/logs; empty disables the route

	// Astrology service
	AstroBaseURL string
	AstroEngine  string // sent as X-Engine on horoscope forwards
	AstroTimeout time.Duration

	// Identity / credits provider
	AuthBaseURL string
	CreditsPath string
	GuestPath   string

	// Client session store (SQLite file)
	ClientDBPath string

	// Navbar reconciler
	FreezeWindow time.Duration

	// Analytics: GA4 Measurement Protocol
	GAMeasurementID string
	GAAPISecret     string
	GAEndpoint      string

	AnalyticsRetryAttempts int
	AnalyticsRetryDelay    time.Duration

	// Conversion table overlay (YAML, optional)
	ConversionsFile string
	Conversions     Conversions

	// Frontend
	FrontendURL string
}

// Load reads configuration from environment variables with sensible defaults.
// Every astrology/identity URL falls back to the local development service.
func Load() (*Config, error) {
	astroBase := envOrDefault("ASTRO_API_BASE", envOrDefault("DYANA_API_BASE", "http://127.0.0.1:8001"))

	cfg := &Config{
		Port:    envOrDefault("PORT", "3001"),
		AppName: envOrDefault("APP_NAME", "Dyana"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		AdminToken:  os.Getenv("ADMIN_TOKEN"),

		AstroBaseURL: astroBase,
		AstroEngine:  envOrDefault("ASTRO_ENGINE", "ai"),
		AstroTimeout: envOrDefaultDuration("ASTRO_TIMEOUT_MS", 90*time.Second),

		AuthBaseURL: envOrDefault("AUTH_API_BASE", astroBase),
		CreditsPath: envOrDefault("CREDITS_PATH", "/credits/state"),
		GuestPath:   envOrDefault("GUEST_PATH", "/auth/anonymous"),

		ClientDBPath: envOrDefault("CLIENT_DB_PATH", "dyana-client.db"),

		FreezeWindow: envOrDefaultDuration("FREEZE_WINDOW_MS", 2500*time.Millisecond),

		GAMeasurementID: os.Getenv("GA_MEASUREMENT_ID"),
		GAAPISecret:     os.Getenv("GA_API_SECRET"),
		GAEndpoint:      envOrDefault("GA_ENDPOINT", "https://www.google-analytics.com/mp/collect"),

		AnalyticsRetryAttempts: envOrDefaultInt("ANALYTICS_RETRY_ATTEMPTS", 6),
		AnalyticsRetryDelay:    envOrDefaultDuration("ANALYTICS_RETRY_DELAY_MS", 500*time.Millisecond),

		ConversionsFile: os.Getenv("CONVERSIONS_FILE"),
		Conversions:     DefaultConversions(),

		FrontendURL: envOrDefault("FRONTEND_URL", "http://localhost:3000"),
	}

	if cfg.ConversionsFile != "" {
		overlay, err := LoadConversions(cfg.ConversionsFile)
		if err != nil {
			return nil, fmt.Errorf("load conversions: %w", err)
		}
		cfg.Conversions = cfg.Conversions.Merge(overlay)
	}

	return cfg, nil
}

// AuditEnabled reports whether a Postgres audit store is configured.
func (c *Config) AuditEnabled() bool {
	return c.DatabaseURL != ""
}

// AnalyticsEnabled reports whether the GA4 sink has credentials.
func (c *Config) AnalyticsEnabled() bool {
	return c.GAMeasurementID != "" && c.GAAPISecret != ""
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return fallback
}

// envOrDefaultDuration reads an integer number of milliseconds.
func envOrDefaultDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil && n >= 0 {
			return time.Duration(n) * time.Millisecond
		}
	}
	return fallback
}
