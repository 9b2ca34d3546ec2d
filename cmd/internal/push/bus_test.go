package push

import (
	"testing"
	"time"

	"sole/cmd/internal/auth/session"
)

func TestBus_DeliversToSessionSubscriber(t *testing.T) {
	bus := NewBus()

	events, cancel := bus.Subscribe("sess-1")
	defer cancel()

	other, cancelOther := bus.Subscribe("sess-2")
	defer cancelOther()

	bus.Publish(session.Event{SessionID: "sess-1", PrincipalID: "alice", Status: session.StatusRevoked, At: time.Now()})

	select {
	case ev := <-events:
		if ev.SessionID != "sess-1" || ev.Status != session.StatusRevoked {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for event")
	}

	select {
	case ev := <-other:
		t.Fatalf("sess-2 subscriber must not receive sess-1 events: %+v", ev)
	default:
	}
}

func TestBus_MultipleSubscribersSameSession(t *testing.T) {
	bus := NewBus()

	a, cancelA := bus.Subscribe("sess-1")
	defer cancelA()
	b, cancelB := bus.Subscribe("sess-1")
	defer cancelB()

	bus.Publish(session.Event{SessionID: "sess-1", Status: session.StatusExpired})

	for name, ch := range map[string]<-chan session.Event{"a": a, "b": b} {
		select {
		case ev := <-ch:
			if ev.Status != session.StatusExpired {
				t.Fatalf("subscriber %s: unexpected event %+v", name, ev)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %s: timed out", name)
		}
	}
}

func TestBus_PublishNeverBlocks(t *testing.T) {
	bus := NewBus()

	_, cancel := bus.Subscribe("sess-1")
	defer cancel()

	// Fill the buffer and keep publishing; the excess is dropped, not queued.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < defaultSubscriberBuffer+10; i++ {
			bus.Publish(session.Event{SessionID: "sess-1", Status: session.StatusRevoked})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Publish blocked on a slow subscriber")
	}

	if bus.Dropped() == 0 {
		t.Fatalf("expected dropped events to be counted")
	}
}

func TestBus_CancelIsIdempotent(t *testing.T) {
	bus := NewBus()

	events, cancel := bus.Subscribe("sess-1")
	cancel()
	cancel()

	bus.Publish(session.Event{SessionID: "sess-1", Status: session.StatusRevoked})

	select {
	case ev := <-events:
		t.Fatalf("cancelled subscriber must not receive events: %+v", ev)
	default:
	}
}

func TestBus_PublishWithoutSubscribers(t *testing.T) {
	bus := NewBus()
	// Must not panic or block.
	bus.Publish(session.Event{SessionID: "nobody", Status: session.StatusRevoked})
}
