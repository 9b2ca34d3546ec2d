package identity

import (
	"context"
	"strings"

	"sole/cmd/security/password"

	"github.com/oklog/ulid/v2"
)

// MemoryVerifier is the dev-mode fallback when Postgres is not configured.
// Users are seeded at construction (e.g. from SOLE_DEV_USERS); passwords are
// hashed on seed so verification exercises the same code path as production.
type MemoryVerifier struct {
	cfg   password.Config
	users map[string]memUser // username_norm -> user

	dummyHash string
}

type memUser struct {
	id   string
	hash string
}

// NewMemoryVerifier seeds a verifier from "user:pass" pairs.
// Malformed or duplicate entries are skipped.
func NewMemoryVerifier(pairs []string) (*MemoryVerifier, error) {
	cfg := password.DefaultConfig()
	// Cheap parameters: dev-only, these hashes never leave the process.
	cfg.Params.MemoryKiB = 8 * 1024
	cfg.Params.Iterations = 1
	cfg.Policy.MinLength = 1

	dummy, err := cfg.Hash("dummy-password-for-timing-only")
	if err != nil {
		return nil, err
	}

	v := &MemoryVerifier{cfg: cfg, users: make(map[string]memUser), dummyHash: dummy}

	for _, p := range pairs {
		name, pass, ok := strings.Cut(strings.TrimSpace(p), ":")
		if !ok {
			continue
		}
		norm := NormalizeUsername(name)
		if norm == "" || pass == "" {
			continue
		}
		if _, dup := v.users[norm]; dup {
			continue
		}
		hash, err := cfg.Hash(pass)
		if err != nil {
			continue
		}
		v.users[norm] = memUser{id: ulid.Make().String(), hash: hash}
	}

	return v, nil
}

// VerifyPassword resolves username to a principal id when the password
// matches; otherwise ErrInvalidCredentials.
func (v *MemoryVerifier) VerifyPassword(ctx context.Context, username, passwordPlain string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	norm := NormalizeUsername(username)
	u, ok := v.users[norm]
	if !ok {
		_, _ = v.cfg.Verify(v.dummyHash, passwordPlain)
		return "", ErrInvalidCredentials
	}

	match, err := v.cfg.Verify(u.hash, passwordPlain)
	if err != nil || !match {
		return "", ErrInvalidCredentials
	}

	return u.id, nil
}
