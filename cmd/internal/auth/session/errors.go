package session

import "errors"

var (
	// ErrSessionNotFound is returned when a token does not match any session row.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionRevoked is returned when the session was superseded by a newer
	// login or closed by an explicit logout.
	ErrSessionRevoked = errors.New("session revoked")

	// ErrSessionExpired is returned when the session passed its inactivity
	// window or absolute age ceiling.
	ErrSessionExpired = errors.New("session expired")

	// ErrConstraint is returned by a Store when the single-active-session
	// constraint rejected an insert. Create retries internally; external
	// callers never see it.
	ErrConstraint = errors.New("active session constraint violated")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid config")
)

// Reason is the stable rejection classification carried across the transport
// boundary. It distinguishes authority decisions from infrastructure faults:
// only the three values below are ever user-visible.
type Reason string

const (
	// ReasonNotFound means no session row matches the token.
	ReasonNotFound Reason = "not_found"
	// ReasonRevoked means the row exists but was revoked.
	ReasonRevoked Reason = "revoked"
	// ReasonExpired means the row exists but expired from inactivity or age.
	ReasonExpired Reason = "expired"
)

// ReasonFromError maps a Validate error to its rejection reason.
// ok is false for infrastructure faults, which must never be treated as a
// rejection by callers.
func ReasonFromError(err error) (Reason, bool) {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		return ReasonNotFound, true
	case errors.Is(err, ErrSessionRevoked):
		return ReasonRevoked, true
	case errors.Is(err, ErrSessionExpired):
		return ReasonExpired, true
	default:
		return "", false
	}
}

// ErrorFromReason is the inverse mapping, for clients that receive the reason
// over the wire. Unknown reasons yield nil.
func ErrorFromReason(r Reason) error {
	switch r {
	case ReasonNotFound:
		return ErrSessionNotFound
	case ReasonRevoked:
		return ErrSessionRevoked
	case ReasonExpired:
		return ErrSessionExpired
	default:
		return nil
	}
}
