// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env         string
	HTTPPort    string
	DatabaseURL string

	// OTLPEndpoint enables trace export when non-empty.
	OTLPEndpoint string

	// AllowMultipleOpenSessions disables the open-session guard so a member
	// can hold more than one open attendance record per day.
	AllowMultipleOpenSessions bool

	// AuthRestoreTimeout caps how long a restored session is waited for
	// before the caller is treated as logged out.
	AuthRestoreTimeout time.Duration

	// LoginRatePerMinute bounds authentication attempts per minute.
	LoginRatePerMinute int
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:                getEnv("ENV", "development"),
		HTTPPort:           getEnv("PORT", "8080"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		OTLPEndpoint:       os.Getenv("OTLP_ENDPOINT"),
		AuthRestoreTimeout: 12 * time.Second,
		LoginRatePerMinute: 5,
	}

	if v := os.Getenv("ATTENDANCE_ALLOW_MULTIPLE_OPEN"); v != "" {
		allow, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("parse ATTENDANCE_ALLOW_MULTIPLE_OPEN: %w", err)
		}
		cfg.AllowMultipleOpenSessions = allow
	}

	if v := os.Getenv("AUTH_RESTORE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("parse AUTH_RESTORE_TIMEOUT: %w", err)
		}
		cfg.AuthRestoreTimeout = d
	}

	if v := os.Getenv("AUTH_RATE_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("AUTH_RATE_LIMIT must be a positive integer, got %q", v)
		}
		cfg.LoginRatePerMinute = n
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
