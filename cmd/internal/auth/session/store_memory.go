package session

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// MemoryStore is the dev/test fallback when Postgres is not configured.
//
// All operations run under one mutex, which gives it the same atomicity
// CreateActive demands from the Postgres implementation: revoke-others and
// insert are one critical section, so two racing creates can never leave two
// active rows.
type MemoryStore struct {
	mu   sync.Mutex
	rows map[string]*Row // token_hash -> row
}

// NewMemoryStore constructs an in-memory Store implementation.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[string]*Row)}
}

// CreateActive revokes the principal's active rows and inserts the new one
// under a single lock hold.
func (s *MemoryStore) CreateActive(ctx context.Context, in CreateInput) (string, []Closed, error) {
	if err := ctx.Err(); err != nil {
		return "", nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rows[in.TokenHash]; ok {
		return "", nil, ErrConstraint
	}

	var displaced []Closed
	for _, r := range s.rows {
		if r.PrincipalID == in.PrincipalID && r.Status == StatusActive {
			now := in.Now
			r.Status = StatusRevoked
			r.ClosedAt = &now
			displaced = append(displaced, Closed{
				SessionID:   r.ID,
				PrincipalID: r.PrincipalID,
				Status:      StatusRevoked,
			})
		}
	}

	id := ulid.Make().String()
	s.rows[in.TokenHash] = &Row{
		ID:            id,
		PrincipalID:   in.PrincipalID,
		TokenHash:     in.TokenHash,
		Status:        StatusActive,
		Device:        in.Device,
		OriginAddress: in.OriginAddress,
		OriginAgent:   in.OriginAgent,
		CreatedAt:     in.Now,
		LastSeenAt:    in.Now,
	}

	return id, displaced, nil
}

// FindByToken loads a session row by token hash.
func (s *MemoryStore) FindByToken(ctx context.Context, tokenHash string) (Row, error) {
	if err := ctx.Err(); err != nil {
		return Row{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rows[tokenHash]
	if !ok {
		return Row{}, ErrSessionNotFound
	}
	return *r, nil
}

// UpdateLastSeen records a heartbeat.
func (s *MemoryStore) UpdateLastSeen(ctx context.Context, now time.Time, tokenHash string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if r, ok := s.rows[tokenHash]; ok {
		r.LastSeenAt = now
	}
	return nil
}

// TransitionStatus is the CAS transition: no-op unless current status = from.
func (s *MemoryStore) TransitionStatus(ctx context.Context, now time.Time, tokenHash string, from, to Status) (*Closed, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rows[tokenHash]
	if !ok || r.Status != from {
		return nil, nil
	}

	r.Status = to
	closedAt := now
	r.ClosedAt = &closedAt

	return &Closed{SessionID: r.ID, PrincipalID: r.PrincipalID, Status: to}, nil
}

// ExpireIdleBefore closes every active row idle past the cutoff.
func (s *MemoryStore) ExpireIdleBefore(ctx context.Context, now time.Time, cutoff time.Time) ([]Closed, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var closed []Closed
	for _, r := range s.rows {
		if r.Status == StatusActive && r.LastSeenAt.Before(cutoff) {
			closedAt := now
			r.Status = StatusExpired
			r.ClosedAt = &closedAt
			closed = append(closed, Closed{
				SessionID:   r.ID,
				PrincipalID: r.PrincipalID,
				Status:      StatusExpired,
			})
		}
	}

	return closed, nil
}
