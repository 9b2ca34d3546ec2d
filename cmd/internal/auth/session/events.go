package session

import "time"

// Event is published whenever a session row leaves the active state.
// It is the payload of the revocation propagation channel: a displaced client
// can learn of its own invalidation without waiting for its next probe.
type Event struct {
	SessionID   string
	PrincipalID string
	Status      Status
	At          time.Time
}

// Publisher receives session close events. Publish must never block the
// authority path; slow or absent subscribers are the publisher's problem.
// The polling heartbeat remains the authoritative fallback.
type Publisher interface {
	Publish(Event)
}

// NopPublisher discards events. Used when no push channel is wired.
type NopPublisher struct{}

// Publish discards the event.
func (NopPublisher) Publish(Event) {}
