// Package config loads service configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"
)

// Config holds application configuration.
type Config struct {
	Port               string
	DatabaseURL        string // empty selects the in-memory store
	RedisURL           string // empty disables the cache
	CacheTTL           time.Duration
	JWTSecret          string
	TokenTTL           time.Duration
	SessionIdleTimeout time.Duration
	ShutdownTimeout    time.Duration
}

// ErrMissingSecret is returned when JWT_SECRET is not set.
var ErrMissingSecret = errors.New("config: JWT_SECRET is required")

// Load reads configuration from the process environment.
func Load() (*Config, error) {
	return LoadFrom(os.LookupEnv)
}

// LoadFrom reads configuration through lookup, which has the signature of
// os.LookupEnv.
func LoadFrom(lookup func(string) (string, bool)) (*Config, error) {
	getEnv := func(key, defaultValue string) string {
		if value, ok := lookup(key); ok && value != "" {
			return value
		}
		return defaultValue
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", ""),
		JWTSecret:   getEnv("JWT_SECRET", ""),
	}
	if cfg.JWTSecret == "" {
		return nil, ErrMissingSecret
	}

	durations := []struct {
		key  string
		def  time.Duration
		dest *time.Duration
	}{
		{"CACHE_TTL", 30 * time.Second, &cfg.CacheTTL},
		{"TOKEN_TTL", 30 * time.Minute, &cfg.TokenTTL},
		{"SESSION_IDLE_TIMEOUT", time.Hour, &cfg.SessionIdleTimeout},
		{"SHUTDOWN_TIMEOUT", 5 * time.Second, &cfg.ShutdownTimeout},
	}
	for _, d := range durations {
		raw := getEnv(d.key, "")
		if raw == "" {
			*d.dest = d.def
			continue
		}
		v, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("config: %s: %w", d.key, err)
		}
		if v <= 0 {
			return nil, fmt.Errorf("config: %s must be positive, got %s", d.key, raw)
		}
		*d.dest = v
	}
	return cfg, nil
}
