package authapi

import (
	"os"
	"strconv"
	"strings"
)

// Config controls transport-level behavior of the auth endpoints.
type Config struct {
	// MaxBodyBytes bounds request bodies.
	MaxBodyBytes int64

	// TrustProxy controls whether X-Forwarded-For is honored for the
	// diagnostic origin address.
	TrustProxy bool
}

// DefaultConfig returns transport defaults.
func DefaultConfig() Config {
	return Config{
		MaxBodyBytes: 64 << 10,
		TrustProxy:   false,
	}
}

// LoadConfigFromEnv loads transport configuration from environment variables.
//
// Optional:
//   - SOLE_AUTH_MAX_BODY_BYTES
//   - SOLE_AUTH_TRUST_PROXY
func LoadConfigFromEnv() Config {
	cfg := DefaultConfig()

	if v := strings.TrimSpace(os.Getenv("SOLE_AUTH_MAX_BODY_BYTES")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.MaxBodyBytes = n
		}
	}

	if v := strings.TrimSpace(os.Getenv("SOLE_AUTH_TRUST_PROXY")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.TrustProxy = b
		}
	}

	return cfg
}
