package identity

import (
	"context"
	"errors"

	"sole/cmd/security/password"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresVerifier verifies credentials against sole.users.
//
// Unknown usernames are verified against a fixed dummy hash so the two
// failure paths take comparable time (timing-resistant account probing).
type PostgresVerifier struct {
	pool *pgxpool.Pool
	cfg  password.Config

	dummyHash string
}

// NewPostgresVerifier creates a Postgres-backed credential verifier.
func NewPostgresVerifier(pool *pgxpool.Pool) (*PostgresVerifier, error) {
	if pool == nil {
		return nil, errors.New("identity: nil db pool")
	}

	cfg := password.DefaultConfig()

	dummy, err := cfg.Hash("dummy-password-for-timing-only")
	if err != nil {
		return nil, err
	}

	return &PostgresVerifier{pool: pool, cfg: cfg, dummyHash: dummy}, nil
}

// VerifyPassword resolves username to a principal id when the password
// matches; otherwise ErrInvalidCredentials.
func (v *PostgresVerifier) VerifyPassword(ctx context.Context, username, passwordPlain string) (string, error) {
	norm := NormalizeUsername(username)
	if norm == "" || passwordPlain == "" {
		return "", ErrInvalidCredentials
	}

	var (
		id   string
		hash string
	)
	err := v.pool.QueryRow(ctx, `
		SELECT id, password_hash
		FROM sole.users
		WHERE username_norm = $1
	`, norm).Scan(&id, &hash)
	if errors.Is(err, pgx.ErrNoRows) {
		// Burn comparable time before failing.
		_, _ = v.cfg.Verify(v.dummyHash, passwordPlain)
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}

	ok, err := v.cfg.Verify(hash, passwordPlain)
	if err != nil || !ok {
		return "", ErrInvalidCredentials
	}

	return id, nil
}
