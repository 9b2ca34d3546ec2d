// Package liveness implements the client-side liveness monitor: the periodic
// probe that keeps a session alive and detects its revocation.
//
// The monitor is best-effort-interval: detection of a revocation is bounded
// by the polling cadence unless a push channel feeds it events. Either way
// the probe remains the authoritative check.
package liveness

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"sole/cmd/internal/auth/session"
)

// Prober performs one authority check for the monitored session.
// A nil return means the session is valid. Rejections are reported with the
// session sentinel errors; any other error is inconclusive (infrastructure
// fault), never a rejection.
type Prober interface {
	Probe(ctx context.Context) error
}

// Terminator best-effort closes the session server-side during teardown.
type Terminator interface {
	Terminate(ctx context.Context) error
}

// Notice is the human-readable outcome surfaced to the end user on teardown.
type Notice string

const (
	// NoticeSignedInElsewhere is shown for a revoked session.
	NoticeSignedInElsewhere Notice = "you were logged in elsewhere, please log in again"
	// NoticeTimedOut is shown for an expired or unknown session.
	NoticeTimedOut Notice = "your session timed out due to inactivity, please log in again"
	// NoticeUnavailable is shown when the authority could not be reached
	// repeatedly. Distinct from a rejection: the user was not logged out
	// elsewhere, the check just kept failing.
	NoticeUnavailable Notice = "could not verify your session, please try again"
)

// Config tunes the monitor.
type Config struct {
	// Interval between probes.
	Interval time.Duration
	// ProbeTimeout bounds a single probe.
	ProbeTimeout time.Duration
	// MaxConsecutiveFaults is how many inconclusive probes in a row are
	// tolerated before giving up with NoticeUnavailable.
	MaxConsecutiveFaults int
}

// DefaultConfig returns the default monitor tuning.
func DefaultConfig() Config {
	return Config{
		Interval:             30 * time.Second,
		ProbeTimeout:         10 * time.Second,
		MaxConsecutiveFaults: 3,
	}
}

// Monitor owns the probe schedule for one authenticated session.
//
// Concurrency contract: probes never block the caller's goroutine, and an
// interval tick while a probe is still in flight is skipped, never queued.
// Once teardown fires (for any cause) the monitor stops permanently; no
// orphaned timers survive it.
type Monitor struct {
	cfg    Config
	log    *slog.Logger
	prober Prober

	terminator Terminator             // optional
	events     <-chan session.Event   // optional push feed
	onTeardown func(Notice)

	inFlight atomic.Bool
	faults   atomic.Int32

	stop     chan struct{}
	stopOnce sync.Once
	tearOnce sync.Once
	wg       sync.WaitGroup
}

// Option configures optional monitor dependencies.
type Option func(*Monitor)

// WithTerminator makes teardown send a courtesy logout (safe no-op if the
// session is already closed).
func WithTerminator(t Terminator) Option {
	return func(m *Monitor) {
		if m == nil || t == nil {
			return
		}
		m.terminator = t
	}
}

// WithEvents attaches a push-channel feed; a terminal event triggers
// immediate teardown without waiting for the next probe.
func WithEvents(events <-chan session.Event) Option {
	return func(m *Monitor) {
		if m == nil || events == nil {
			return
		}
		m.events = events
	}
}

// NewMonitor constructs a monitor. onTeardown is invoked exactly once, on the
// first teardown cause, with the user-facing notice.
func NewMonitor(log *slog.Logger, cfg Config, prober Prober, onTeardown func(Notice), opts ...Option) *Monitor {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 10 * time.Second
	}
	if cfg.MaxConsecutiveFaults <= 0 {
		cfg.MaxConsecutiveFaults = 3
	}
	if onTeardown == nil {
		onTeardown = func(Notice) {}
	}

	m := &Monitor{
		cfg:        cfg,
		log:        log,
		prober:     prober,
		onTeardown: onTeardown,
		stop:       make(chan struct{}),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	return m
}

// Start launches the probe loop. It returns immediately.
func (m *Monitor) Start(ctx context.Context) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		ticker := time.NewTicker(m.cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-m.stop:
				return

			case ev, ok := <-m.events:
				if !ok {
					// Push feed gone; degrade gracefully to poll-only.
					m.events = nil
					continue
				}
				m.teardown(ctx, noticeForStatus(ev.Status), false)
				return

			case <-ticker.C:
				if !m.inFlight.CompareAndSwap(false, true) {
					// Previous probe still in flight; coalesce.
					continue
				}
				m.wg.Add(1)
				go func() {
					defer m.wg.Done()
					defer m.inFlight.Store(false)
					m.probeOnce(ctx)
				}()
			}
		}
	}()
}

func (m *Monitor) probeOnce(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, m.cfg.ProbeTimeout)
	err := m.prober.Probe(probeCtx)
	cancel()

	if err == nil {
		m.faults.Store(0)
		return
	}

	if reason, ok := session.ReasonFromError(err); ok {
		m.teardown(ctx, noticeForReason(reason), true)
		return
	}

	// Inconclusive: the store was unreachable or the probe timed out. Never
	// force a logout for this; tolerate a bounded run of faults.
	n := m.faults.Add(1)
	m.log.Info("liveness.probe.inconclusive", "consecutive", n, "err", err)
	if int(n) >= m.cfg.MaxConsecutiveFaults {
		m.teardown(ctx, NoticeUnavailable, false)
	}
}

// teardown clears local authenticated state exactly once and stops the loop.
func (m *Monitor) teardown(ctx context.Context, notice Notice, courtesyLogout bool) {
	m.tearOnce.Do(func() {
		m.stopOnce.Do(func() { close(m.stop) })

		if courtesyLogout && m.terminator != nil {
			tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.ProbeTimeout)
			if err := m.terminator.Terminate(tctx); err != nil {
				m.log.Info("liveness.terminate.fail", "err", err)
			}
			cancel()
		}

		m.log.Info("liveness.teardown", "notice", string(notice))
		m.onTeardown(notice)
	})
}

// Stop halts the monitor without a user-facing notice (local logout). Safe to
// call multiple times; after it returns no probe is running or scheduled.
func (m *Monitor) Stop() {
	m.tearOnce.Do(func() {}) // suppress any later teardown notice
	m.stopOnce.Do(func() { close(m.stop) })
	m.wg.Wait()
}

func noticeForReason(r session.Reason) Notice {
	if r == session.ReasonRevoked {
		return NoticeSignedInElsewhere
	}
	// Expired and not-found read the same to the user.
	return NoticeTimedOut
}

func noticeForStatus(s session.Status) Notice {
	if s == session.StatusRevoked {
		return NoticeSignedInElsewhere
	}
	return NoticeTimedOut
}
