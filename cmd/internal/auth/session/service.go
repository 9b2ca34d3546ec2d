package session

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Service implements the session authority operations for Sole.
//
// It mints sessions (atomically displacing any prior active session for the
// principal), validates tokens against current store state, terminates
// sessions idempotently, and sweeps idle sessions.
type Service struct {
	cfg   Config
	store Store
	pub   Publisher
}

// Created is the result of issuing a session.
// Token is the plain capability string; it is handed to the client exactly
// once and never persisted or logged.
type Created struct {
	SessionID string
	Token     string
}

// Claims is the identity a valid token resolves to.
type Claims struct {
	PrincipalID string
	SessionID   string
}

// NewService constructs a Service with the provided configuration, store, and
// event publisher. A nil publisher disables push propagation.
func NewService(cfg Config, store Store, pub Publisher) *Service {
	if pub == nil {
		pub = NopPublisher{}
	}
	return &Service{cfg: cfg, store: store, pub: pub}
}

// Create mints a new session for an already-verified principal.
//
// The insert and the revocation of the principal's other active sessions are
// one atomic store operation. Login is never blocked by a prior session: an
// existing session is the normal trigger for revocation, not a fault. When a
// concurrent Create for the same principal wins the store's serialization,
// the constraint rejection is retried internally with a fresh token, so the
// caller always receives a usable session.
func (s *Service) Create(ctx context.Context, now time.Time, principalID string, dev DeviceDescriptor, originAddr, originAgent string) (Created, error) {
	principalID = strings.TrimSpace(principalID)
	if principalID == "" {
		return Created{}, errors.New("session: empty principal id")
	}

	retries := s.cfg.CreateRetries
	if retries < 1 {
		retries = 1
	}

	var lastErr error
	for attempt := 0; attempt < retries; attempt++ {
		plain, hash, err := newOpaqueToken(s.cfg.TokenBytes)
		if err != nil {
			return Created{}, err
		}

		sessionID, displaced, err := s.store.CreateActive(ctx, CreateInput{
			PrincipalID:   principalID,
			TokenHash:     hash,
			Device:        dev,
			OriginAddress: originAddr,
			OriginAgent:   originAgent,
			Now:           now,
		})
		if errors.Is(err, ErrConstraint) {
			// Lost the race to a concurrent login; the winner's row is now the
			// sole active one. Retry so this login also succeeds.
			lastErr = err
			continue
		}
		if err != nil {
			return Created{}, err
		}

		for _, d := range displaced {
			s.pub.Publish(Event{
				SessionID:   d.SessionID,
				PrincipalID: d.PrincipalID,
				Status:      StatusRevoked,
				At:          now,
			})
		}

		return Created{SessionID: sessionID, Token: plain}, nil
	}

	return Created{}, lastErr
}

// Validate checks a token against current authoritative state and, on
// success, records the heartbeat by advancing last_seen_at.
//
// Rejections are evaluated in priority order: not found, revoked, expired.
// An idle or over-age session still marked active is expired lazily here and
// the transition is persisted before returning, so the next caller observes
// the already-closed state.
func (s *Service) Validate(ctx context.Context, now time.Time, tokenPlain string) (Claims, error) {
	tokenPlain = strings.TrimSpace(tokenPlain)
	// Basic sanity bounds to avoid pathological inputs.
	if tokenPlain == "" || len(tokenPlain) > 4096 {
		return Claims{}, ErrSessionNotFound
	}

	hash := hashSessionTokenHex(tokenPlain)

	row, err := s.store.FindByToken(ctx, hash)
	if err != nil {
		return Claims{}, err
	}

	switch row.Status {
	case StatusRevoked:
		return Claims{}, ErrSessionRevoked
	case StatusExpired:
		return Claims{}, ErrSessionExpired
	}

	if s.pastIdleWindow(now, row) || s.pastAgeCeiling(now, row) {
		closed, err := s.store.TransitionStatus(ctx, now, hash, StatusActive, StatusExpired)
		if err != nil {
			return Claims{}, err
		}
		if closed != nil {
			s.pub.Publish(Event{
				SessionID:   closed.SessionID,
				PrincipalID: closed.PrincipalID,
				Status:      StatusExpired,
				At:          now,
			})
			return Claims{}, ErrSessionExpired
		}
		// Another transition won the CAS; report the status it left behind.
		return Claims{}, s.rejectionAfterLostCAS(ctx, hash)
	}

	if err := s.store.UpdateLastSeen(ctx, now, hash); err != nil {
		return Claims{}, err
	}

	return Claims{PrincipalID: row.PrincipalID, SessionID: row.ID}, nil
}

// Terminate revokes the session identified by token if it is still active.
// It is idempotent: closed or unknown tokens are a successful no-op, so a
// client's logout flow never fails.
func (s *Service) Terminate(ctx context.Context, now time.Time, tokenPlain string) error {
	tokenPlain = strings.TrimSpace(tokenPlain)
	if tokenPlain == "" || len(tokenPlain) > 4096 {
		return nil
	}

	hash := hashSessionTokenHex(tokenPlain)

	closed, err := s.store.TransitionStatus(ctx, now, hash, StatusActive, StatusRevoked)
	if err != nil {
		return err
	}
	if closed != nil {
		s.pub.Publish(Event{
			SessionID:   closed.SessionID,
			PrincipalID: closed.PrincipalID,
			Status:      StatusRevoked,
			At:          now,
		})
	}
	return nil
}

// SweepExpired transitions every active session idle past the inactivity
// window to expired and reports how many rows it closed. It exists so idle
// sessions are eventually closed even when no Validate call arrives to expire
// them lazily.
func (s *Service) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.Add(-s.cfg.IdleTimeout)

	closed, err := s.store.ExpireIdleBefore(ctx, now, cutoff)
	if err != nil {
		return 0, err
	}

	for _, c := range closed {
		s.pub.Publish(Event{
			SessionID:   c.SessionID,
			PrincipalID: c.PrincipalID,
			Status:      StatusExpired,
			At:          now,
		})
	}

	return len(closed), nil
}

func (s *Service) pastIdleWindow(now time.Time, row Row) bool {
	return now.Sub(row.LastSeenAt) > s.cfg.IdleTimeout
}

func (s *Service) pastAgeCeiling(now time.Time, row Row) bool {
	return s.cfg.MaxSessionAge > 0 && now.Sub(row.CreatedAt) > s.cfg.MaxSessionAge
}

// rejectionAfterLostCAS re-reads the row to report the status that actually
// closed it (a concurrent login may have revoked it first).
func (s *Service) rejectionAfterLostCAS(ctx context.Context, hash string) error {
	row, err := s.store.FindByToken(ctx, hash)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return ErrSessionNotFound
		}
		return err
	}
	if row.Status == StatusRevoked {
		return ErrSessionRevoked
	}
	return ErrSessionExpired
}
