package session

import (
	"context"
	"time"
)

// Status is the lifecycle state of a session row.
// Active is the only authoritative state; revoked and expired are terminal.
type Status string

const (
	// StatusActive marks the one session the store recognizes for a principal.
	StatusActive Status = "active"
	// StatusRevoked marks a session superseded by a newer login or logged out.
	StatusRevoked Status = "revoked"
	// StatusExpired marks a session closed for inactivity or age.
	StatusExpired Status = "expired"
)

// DeviceDescriptor is diagnostic metadata captured at session creation.
// It never participates in authority decisions.
type DeviceDescriptor struct {
	Browser    string
	OS         string
	FormFactor string
}

// Row mirrors the sole.sessions row used by the session subsystem.
type Row struct {
	ID          string
	PrincipalID string
	TokenHash   string
	Status      Status

	Device        DeviceDescriptor
	OriginAddress string
	OriginAgent   string

	CreatedAt  time.Time
	LastSeenAt time.Time
	ClosedAt   *time.Time
}

// CreateInput describes a new active session to insert.
type CreateInput struct {
	PrincipalID string
	TokenHash   string

	Device        DeviceDescriptor
	OriginAddress string
	OriginAgent   string

	Now time.Time
}

// Closed identifies a session that just left the active state.
type Closed struct {
	SessionID   string
	PrincipalID string
	Status      Status
}

// Store abstracts persistence for session state.
//
// Implementations must enforce the single-active-session invariant at the
// store level: CreateActive is one atomic unit (insert + revoke-others), and
// a constraint equivalent to "unique (principal_id) where status = active"
// must reject any interleaving that would leave two active rows. Losing
// inserts surface as ErrConstraint.
type Store interface {
	// CreateActive inserts a new active row and revokes every other active
	// row for the same principal, atomically. Returns the new session ID and
	// the rows it displaced.
	CreateActive(ctx context.Context, in CreateInput) (sessionID string, displaced []Closed, err error)

	// FindByToken loads a session row by token hash.
	FindByToken(ctx context.Context, tokenHash string) (Row, error)

	// UpdateLastSeen sets last_seen_at; the heartbeat write.
	UpdateLastSeen(ctx context.Context, now time.Time, tokenHash string) error

	// TransitionStatus is a compare-and-swap: it moves the row from `from` to
	// `to` and sets closed_at. Returns nil (no error) when the row is missing
	// or not in `from`; the transition is reported via the Closed result.
	TransitionStatus(ctx context.Context, now time.Time, tokenHash string, from, to Status) (*Closed, error)

	// ExpireIdleBefore transitions every active row with last_seen_at older
	// than cutoff to expired. Safe to run concurrently with everything else.
	ExpireIdleBefore(ctx context.Context, now time.Time, cutoff time.Time) ([]Closed, error)
}
