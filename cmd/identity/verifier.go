package identity

import (
	"context"
	"strings"
)

// Verifier is the credential-verification boundary consumed by the transport
// layer: verify(credentials) -> principal id, or ErrInvalidCredentials.
type Verifier interface {
	VerifyPassword(ctx context.Context, username, password string) (principalID string, err error)
}

// NormalizeUsername performs case-insensitive canonicalization.
// Note: for now we only trim + lower-case. Additional rules (unicode confusables)
// can be added later behind a versioned policy.
func NormalizeUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
