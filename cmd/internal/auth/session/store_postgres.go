package session

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
)

// PostgresStore implements Store using PostgreSQL (sole.sessions).
//
// The single-active-session invariant is enforced by a partial unique index
// on (principal_id) where status = 'active'. CreateActive revokes the
// principal's other active rows and inserts the new one in a single
// transaction; an interleaving that would leave two active rows is rejected
// by the index and surfaced as ErrConstraint.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed session store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// CreateActive revokes the principal's active rows and inserts the new active
// row as one transaction.
func (s *PostgresStore) CreateActive(ctx context.Context, in CreateInput) (string, []Closed, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	displaced, err := revokeActiveForPrincipalTx(ctx, tx, in.Now, in.PrincipalID)
	if err != nil {
		return "", nil, err
	}

	id := ulid.Make().String()

	_, err = tx.Exec(ctx, `
		INSERT INTO sole.sessions (
			id, principal_id, token_hash, status,
			device_browser, device_os, device_form,
			origin_address, origin_agent,
			created_at, last_seen_at, closed_at
		) VALUES (
			$1, $2, $3, 'active',
			$4, $5, $6,
			$7, $8,
			$9, $9, NULL
		)
	`, id, in.PrincipalID, in.TokenHash,
		nullIfEmpty(in.Device.Browser), nullIfEmpty(in.Device.OS), nullIfEmpty(in.Device.FormFactor),
		nullIfEmpty(in.OriginAddress), nullIfEmpty(in.OriginAgent),
		in.Now)
	if err != nil {
		if isUniqueViolation(err) {
			// A concurrent CreateActive committed first; its row is the sole
			// active one. The caller retries against the new state.
			return "", nil, ErrConstraint
		}
		return "", nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return "", nil, err
	}

	return id, displaced, nil
}

// FindByToken loads a session row by token hash.
func (s *PostgresStore) FindByToken(ctx context.Context, tokenHash string) (Row, error) {
	var (
		row     Row
		status  string
		browser *string
		osName  *string
		form    *string
		addr    *string
		agent   *string
	)

	err := s.pool.QueryRow(ctx, `
		SELECT
			id, principal_id, token_hash, status,
			device_browser, device_os, device_form,
			origin_address, origin_agent,
			created_at, last_seen_at, closed_at
		FROM sole.sessions
		WHERE token_hash = $1
	`, tokenHash).Scan(
		&row.ID,
		&row.PrincipalID,
		&row.TokenHash,
		&status,
		&browser,
		&osName,
		&form,
		&addr,
		&agent,
		&row.CreatedAt,
		&row.LastSeenAt,
		&row.ClosedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Row{}, ErrSessionNotFound
	}
	if err != nil {
		return Row{}, err
	}

	row.Status = Status(status)
	row.Device = DeviceDescriptor{
		Browser:    deref(browser),
		OS:         deref(osName),
		FormFactor: deref(form),
	}
	row.OriginAddress = deref(addr)
	row.OriginAgent = deref(agent)

	return row, nil
}

// UpdateLastSeen records a heartbeat.
func (s *PostgresStore) UpdateLastSeen(ctx context.Context, now time.Time, tokenHash string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE sole.sessions
		SET last_seen_at = $2
		WHERE token_hash = $1
	`, tokenHash, now)
	return err
}

// TransitionStatus is the CAS transition: no-op unless current status = from.
func (s *PostgresStore) TransitionStatus(ctx context.Context, now time.Time, tokenHash string, from, to Status) (*Closed, error) {
	var c Closed

	err := s.pool.QueryRow(ctx, `
		UPDATE sole.sessions
		SET status = $3, closed_at = $4
		WHERE token_hash = $1 AND status = $2
		RETURNING id, principal_id
	`, tokenHash, string(from), string(to), now).Scan(&c.SessionID, &c.PrincipalID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	c.Status = to
	return &c, nil
}

// ExpireIdleBefore closes every active row idle past the cutoff.
func (s *PostgresStore) ExpireIdleBefore(ctx context.Context, now time.Time, cutoff time.Time) ([]Closed, error) {
	rows, err := s.pool.Query(ctx, `
		UPDATE sole.sessions
		SET status = 'expired', closed_at = $1
		WHERE status = 'active' AND last_seen_at < $2
		RETURNING id, principal_id
	`, now, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var closed []Closed
	for rows.Next() {
		var c Closed
		if err := rows.Scan(&c.SessionID, &c.PrincipalID); err != nil {
			return nil, err
		}
		c.Status = StatusExpired
		closed = append(closed, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return closed, nil
}

func revokeActiveForPrincipalTx(ctx context.Context, tx pgx.Tx, now time.Time, principalID string) ([]Closed, error) {
	rows, err := tx.Query(ctx, `
		UPDATE sole.sessions
		SET status = 'revoked', closed_at = $2
		WHERE principal_id = $1 AND status = 'active'
		RETURNING id, principal_id
	`, principalID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var displaced []Closed
	for rows.Next() {
		var c Closed
		if err := rows.Scan(&c.SessionID, &c.PrincipalID); err != nil {
			return nil, err
		}
		c.Status = StatusRevoked
		displaced = append(displaced, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return displaced, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" // unique_violation
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
