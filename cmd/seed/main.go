// seed inserts local development users; run via go run ./cmd/seed.
// Idempotent: existing usernames are left untouched.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"sole/cmd/identity"
	"sole/cmd/security/password"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "seed:", err)
		os.Exit(1)
	}
}

func run() error {
	dsn := strings.TrimSpace(os.Getenv("SOLE_DATABASE_URL"))
	if dsn == "" {
		return fmt.Errorf("SOLE_DATABASE_URL is not set")
	}

	pairs := strings.Split(strings.TrimSpace(os.Getenv("SOLE_SEED_USERS")), ",")
	users := make(map[string]string) // username_norm -> password
	names := make(map[string]string) // username_norm -> original username
	for _, p := range pairs {
		name, pass, ok := strings.Cut(strings.TrimSpace(p), ":")
		if !ok {
			continue
		}
		norm := identity.NormalizeUsername(name)
		if norm == "" || pass == "" {
			continue
		}
		users[norm] = pass
		names[norm] = strings.TrimSpace(name)
	}
	if len(users) == 0 {
		return fmt.Errorf("SOLE_SEED_USERS is empty; expected \"user:pass,user2:pass2\"")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return err
	}
	defer pool.Close()

	hasher := password.DefaultConfig()

	for norm, pass := range users {
		hash, err := hasher.Hash(pass)
		if err != nil {
			return fmt.Errorf("hash %s: %w", norm, err)
		}

		tag, err := pool.Exec(ctx, `
			INSERT INTO sole.users (id, username, username_norm, password_hash)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (username_norm) DO NOTHING
		`, ulid.Make().String(), names[norm], norm, hash)
		if err != nil {
			return fmt.Errorf("insert %s: %w", norm, err)
		}

		if tag.RowsAffected() == 0 {
			fmt.Printf("skip %s (exists)\n", norm)
		} else {
			fmt.Printf("seeded %s\n", norm)
		}
	}

	return nil
}
