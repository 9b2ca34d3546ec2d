package liveness

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"sole/cmd/internal/auth/session"
)

// scriptProber returns the queued errors in order, then nil forever.
type scriptProber struct {
	errs  chan error
	calls atomic.Int32
}

func newScriptProber(errs ...error) *scriptProber {
	p := &scriptProber{errs: make(chan error, len(errs))}
	for _, e := range errs {
		p.errs <- e
	}
	return p
}

func (p *scriptProber) Probe(context.Context) error {
	p.calls.Add(1)
	select {
	case err := <-p.errs:
		return err
	default:
		return nil
	}
}

type countTerminator struct {
	calls atomic.Int32
}

func (t *countTerminator) Terminate(context.Context) error {
	t.calls.Add(1)
	return nil
}

func fastConfig() Config {
	return Config{
		Interval:             10 * time.Millisecond,
		ProbeTimeout:         time.Second,
		MaxConsecutiveFaults: 3,
	}
}

func awaitNotice(t *testing.T, ch <-chan Notice) Notice {
	t.Helper()
	select {
	case n := <-ch:
		return n
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for teardown notice")
		return ""
	}
}

func TestMonitor_RevokedProbeTearsDownOnce(t *testing.T) {
	notices := make(chan Notice, 4)
	term := &countTerminator{}

	m := NewMonitor(nil, fastConfig(),
		newScriptProber(session.ErrSessionRevoked),
		func(n Notice) { notices <- n },
		WithTerminator(term),
	)
	m.Start(context.Background())
	defer m.Stop()

	if n := awaitNotice(t, notices); n != NoticeSignedInElsewhere {
		t.Fatalf("expected signed-in-elsewhere notice, got %q", n)
	}

	// Teardown fires exactly once and sends one courtesy logout.
	m.Stop()
	select {
	case n := <-notices:
		t.Fatalf("second notice observed: %q", n)
	default:
	}
	if got := term.calls.Load(); got != 1 {
		t.Fatalf("expected one courtesy logout, got %d", got)
	}
}

func TestMonitor_ExpiredProbeNotice(t *testing.T) {
	notices := make(chan Notice, 1)

	m := NewMonitor(nil, fastConfig(),
		newScriptProber(session.ErrSessionExpired),
		func(n Notice) { notices <- n },
	)
	m.Start(context.Background())
	defer m.Stop()

	if n := awaitNotice(t, notices); n != NoticeTimedOut {
		t.Fatalf("expected timed-out notice, got %q", n)
	}
}

func TestMonitor_NotFoundReadsAsTimeout(t *testing.T) {
	notices := make(chan Notice, 1)

	m := NewMonitor(nil, fastConfig(),
		newScriptProber(session.ErrSessionNotFound),
		func(n Notice) { notices <- n },
	)
	m.Start(context.Background())
	defer m.Stop()

	if n := awaitNotice(t, notices); n != NoticeTimedOut {
		t.Fatalf("expected timed-out notice, got %q", n)
	}
}

func TestMonitor_ToleratesBoundedFaults(t *testing.T) {
	notices := make(chan Notice, 1)
	infra := errors.New("connection refused")

	// Two faults, then healthy: stays up.
	prober := newScriptProber(infra, infra)
	m := NewMonitor(nil, fastConfig(), prober, func(n Notice) { notices <- n })
	m.Start(context.Background())

	deadline := time.After(500 * time.Millisecond)
	for prober.calls.Load() < 5 {
		select {
		case n := <-notices:
			t.Fatalf("monitor must survive bounded faults, got notice %q", n)
		case <-deadline:
			t.Fatalf("probes did not progress")
		case <-time.After(5 * time.Millisecond):
		}
	}
	m.Stop()

	select {
	case n := <-notices:
		t.Fatalf("unexpected notice after recovery: %q", n)
	default:
	}
}

func TestMonitor_GivesUpAfterConsecutiveFaults(t *testing.T) {
	notices := make(chan Notice, 1)
	infra := errors.New("connection refused")
	term := &countTerminator{}

	m := NewMonitor(nil, fastConfig(),
		newScriptProber(infra, infra, infra),
		func(n Notice) { notices <- n },
		WithTerminator(term),
	)
	m.Start(context.Background())
	defer m.Stop()

	if n := awaitNotice(t, notices); n != NoticeUnavailable {
		t.Fatalf("expected unavailable notice, got %q", n)
	}
	// An inconclusive teardown is not a rejection: no courtesy logout.
	if got := term.calls.Load(); got != 0 {
		t.Fatalf("unexpected courtesy logout on inconclusive teardown: %d", got)
	}
}

// slowProber blocks each probe until released and records peak concurrency.
type slowProber struct {
	running atomic.Int32
	peak    atomic.Int32
	calls   atomic.Int32
	release chan struct{}
}

func (p *slowProber) Probe(ctx context.Context) error {
	p.calls.Add(1)
	n := p.running.Add(1)
	defer p.running.Add(-1)
	for {
		old := p.peak.Load()
		if n <= old || p.peak.CompareAndSwap(old, n) {
			break
		}
	}
	select {
	case <-p.release:
	case <-ctx.Done():
	}
	return nil
}

func TestMonitor_OverlappingTicksCoalesce(t *testing.T) {
	prober := &slowProber{release: make(chan struct{})}

	m := NewMonitor(nil, fastConfig(), prober, nil)
	m.Start(context.Background())

	// Many intervals elapse while the first probe is stuck.
	time.Sleep(100 * time.Millisecond)
	if got := prober.calls.Load(); got != 1 {
		close(prober.release)
		m.Stop()
		t.Fatalf("expected overlapping ticks to be skipped, got %d probes", got)
	}

	close(prober.release)
	m.Stop()

	if peak := prober.peak.Load(); peak > 1 {
		t.Fatalf("probes overlapped: peak concurrency %d", peak)
	}
}

func TestMonitor_PushEventTriggersImmediateTeardown(t *testing.T) {
	notices := make(chan Notice, 1)
	events := make(chan session.Event, 1)

	cfg := fastConfig()
	cfg.Interval = time.Hour // poll never fires; only the push feed can

	m := NewMonitor(nil, cfg, newScriptProber(), func(n Notice) { notices <- n }, WithEvents(events))
	m.Start(context.Background())
	defer m.Stop()

	events <- session.Event{SessionID: "sess-1", Status: session.StatusRevoked, At: time.Now()}

	if n := awaitNotice(t, notices); n != NoticeSignedInElsewhere {
		t.Fatalf("expected signed-in-elsewhere notice from push event, got %q", n)
	}
}

func TestMonitor_ClosedPushFeedDegradesToPolling(t *testing.T) {
	notices := make(chan Notice, 1)
	events := make(chan session.Event)
	close(events)

	m := NewMonitor(nil, fastConfig(),
		newScriptProber(session.ErrSessionRevoked),
		func(n Notice) { notices <- n },
		WithEvents(events),
	)
	m.Start(context.Background())
	defer m.Stop()

	if n := awaitNotice(t, notices); n != NoticeSignedInElsewhere {
		t.Fatalf("expected poll path to still detect revocation, got %q", n)
	}
}

func TestMonitor_StopSuppressesNotice(t *testing.T) {
	notices := make(chan Notice, 1)

	m := NewMonitor(nil, fastConfig(), newScriptProber(), func(n Notice) { notices <- n })
	m.Start(context.Background())
	m.Stop()

	select {
	case n := <-notices:
		t.Fatalf("local stop must not produce a notice, got %q", n)
	default:
	}
}
