// Package push implements the revocation propagation channel: an in-process
// pub/sub bus keyed by session ID, plus the WebSocket gateway that streams a
// session's close event to its displaced client.
//
// The channel is additive: it lowers detection latency below the heartbeat
// interval, but the poll remains the authoritative fallback because the push
// path may itself be unavailable.
package push

import (
	"sync"
	"sync/atomic"

	"sole/cmd/internal/auth/session"
)

const defaultSubscriberBuffer = 4

// Bus fans session close events out to per-session subscribers.
//
// Publish never blocks: a subscriber that cannot keep up has its event
// dropped (its heartbeat will still detect the revocation). Subscribing twice
// for the same session is allowed; each subscription gets its own channel.
type Bus struct {
	mu   sync.RWMutex
	subs map[string]map[int]chan session.Event // session_id -> sub id -> channel
	next int

	dropped atomic.Uint64
}

// NewBus constructs an empty Bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string]map[int]chan session.Event)}
}

// Publish delivers ev to every subscriber of ev.SessionID without blocking.
func (b *Bus) Publish(ev session.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs[ev.SessionID] {
		select {
		case ch <- ev:
		default:
			b.dropped.Add(1)
		}
	}
}

// Subscribe registers interest in close events for sessionID. The returned
// cancel func is idempotent and must be called at client teardown; after it
// returns, the channel receives no further events.
func (b *Bus) Subscribe(sessionID string) (<-chan session.Event, func()) {
	ch := make(chan session.Event, defaultSubscriberBuffer)

	b.mu.Lock()
	id := b.next
	b.next++
	if b.subs[sessionID] == nil {
		b.subs[sessionID] = make(map[int]chan session.Event)
	}
	b.subs[sessionID][id] = ch
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			if m := b.subs[sessionID]; m != nil {
				delete(m, id)
				if len(m) == 0 {
					delete(b.subs, sessionID)
				}
			}
			b.mu.Unlock()
		})
	}

	return ch, cancel
}

// Dropped reports how many events were discarded due to slow subscribers.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}
