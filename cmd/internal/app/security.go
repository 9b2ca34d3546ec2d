package app

import (
	"errors"

	"sole/cmd/security/token"
)

// ValidateSecurityConfig enforces the token-hashing policy at startup.
// Fail-fast: a production deployment must not silently fall back to
// unkeyed SHA-256 for session-token hashes.
func ValidateSecurityConfig(cfg Config) error {
	if !cfg.RequireTokenHMAC {
		return nil
	}

	// Minimum 32 bytes for an HMAC-SHA256 secret. Bytes, not runes: the key
	// is used as raw key material.
	if _, err := token.HMACKeyFromEnv(32); err != nil {
		switch {
		case errors.Is(err, token.ErrHMACKeyMissing):
			return errors.New("security policy: SOLE_REQUIRE_TOKEN_HMAC=true but SOLE_TOKEN_HMAC_KEY is missing")
		case errors.Is(err, token.ErrHMACKeyTooShort):
			return errors.New("security policy: SOLE_REQUIRE_TOKEN_HMAC=true but SOLE_TOKEN_HMAC_KEY is too short (min 32 bytes)")
		default:
			return err
		}
	}

	// Hard assertion against a future change reintroducing a SHA fallback
	// under policy: the hasher itself must be in HMAC mode.
	if !token.HMACEnabled() {
		return errors.New("security policy: SOLE_REQUIRE_TOKEN_HMAC=true but token hasher is not in HMAC mode")
	}

	return nil
}
