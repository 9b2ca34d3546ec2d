package session

import (
	"os"
	"strconv"
	"time"
)

// Config defines all runtime configuration for the session subsystem.
//
// It controls the inactivity window, the optional absolute age ceiling,
// token entropy size, create-retry bounds, and the heartbeat cadence
// advertised to clients.
//
// This struct is intentionally explicit and environment-driven so that
// production deployments can tune security parameters without code changes.
type Config struct {
	// IdleTimeout is the sliding inactivity window. A session with no
	// successful heartbeat for longer than this is expired.
	IdleTimeout time.Duration

	// MaxSessionAge is an optional absolute ceiling on session age measured
	// from created_at. Zero disables it.
	MaxSessionAge time.Duration

	// TokenBytes defines the number of random bytes used to generate opaque
	// session tokens.
	TokenBytes int

	// CreateRetries bounds internal retries when the single-active-session
	// constraint rejects a racing insert.
	CreateRetries int

	// HeartbeatEvery is the probe cadence advertised to clients. It must be
	// well inside IdleTimeout or actively polled sessions would expire.
	HeartbeatEvery time.Duration

	// SweepEvery is the background sweep cadence for idle sessions.
	SweepEvery time.Duration
}

// DefaultConfig returns a secure default configuration suitable for development.
//
// Production environments should override values via environment variables.
func DefaultConfig() Config {
	return Config{
		IdleTimeout:    20 * time.Minute,
		MaxSessionAge:  7 * 24 * time.Hour,
		TokenBytes:     32,
		CreateRetries:  3,
		HeartbeatEvery: 30 * time.Second,
		SweepEvery:     time.Minute,
	}
}

// LoadConfigFromEnv loads session configuration from environment variables.
//
// Optional (durations must be valid Go duration strings):
//   - SOLE_SESSION_IDLE_TIMEOUT
//   - SOLE_SESSION_MAX_AGE ("0" disables the absolute ceiling)
//   - SOLE_SESSION_TOKEN_BYTES
//   - SOLE_SESSION_CREATE_RETRIES
//   - SOLE_SESSION_HEARTBEAT_EVERY
//   - SOLE_SESSION_SWEEP_EVERY
//
// Returns ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv("SOLE_SESSION_IDLE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.IdleTimeout = d
	}

	if v := os.Getenv("SOLE_SESSION_MAX_AGE"); v != "" {
		if v == "0" {
			cfg.MaxSessionAge = 0
		} else {
			d, err := time.ParseDuration(v)
			if err != nil || d < 0 {
				return Config{}, ErrConfig
			}
			cfg.MaxSessionAge = d
		}
	}

	if v := os.Getenv("SOLE_SESSION_TOKEN_BYTES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 32 || n > 64 {
			return Config{}, ErrConfig
		}
		cfg.TokenBytes = n
	}

	if v := os.Getenv("SOLE_SESSION_CREATE_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 10 {
			return Config{}, ErrConfig
		}
		cfg.CreateRetries = n
	}

	if v := os.Getenv("SOLE_SESSION_HEARTBEAT_EVERY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.HeartbeatEvery = d
	}

	if v := os.Getenv("SOLE_SESSION_SWEEP_EVERY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.SweepEvery = d
	}

	// Invariants: an actively polled session must never expire, and the
	// ceiling cannot undercut the sliding window.
	if cfg.HeartbeatEvery >= cfg.IdleTimeout {
		return Config{}, ErrConfig
	}
	if cfg.MaxSessionAge != 0 && cfg.MaxSessionAge < cfg.IdleTimeout {
		return Config{}, ErrConfig
	}

	return cfg, nil
}
