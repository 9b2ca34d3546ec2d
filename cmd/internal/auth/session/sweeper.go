package session

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Sweeper periodically expires idle sessions so they are closed even when no
// heartbeat arrives to expire them lazily (a client that stopped polling
// entirely). Safe to run concurrently with everything else: the sweep only
// touches rows already past the expiry predicate.
type Sweeper struct {
	log   *slog.Logger
	svc   *Service
	every time.Duration

	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once

	// onSweep, when set, observes each sweep result (metrics hook).
	onSweep func(count int, err error)
}

// NewSweeper constructs a sweeper over the given service.
func NewSweeper(log *slog.Logger, svc *Service, every time.Duration, onSweep func(count int, err error)) *Sweeper {
	if log == nil {
		log = slog.Default()
	}
	if every <= 0 {
		every = time.Minute
	}
	return &Sweeper{
		log:     log,
		svc:     svc,
		every:   every,
		stop:    make(chan struct{}),
		onSweep: onSweep,
	}
}

// Start launches the sweep loop. It returns immediately.
func (w *Sweeper) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()

		ticker := time.NewTicker(w.every)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-w.stop:
				return
			case <-ticker.C:
				w.sweep(ctx)
			}
		}
	}()
}

func (w *Sweeper) sweep(ctx context.Context) {
	now := time.Now().UTC()

	count, err := w.svc.SweepExpired(ctx, now)
	if w.onSweep != nil {
		w.onSweep(count, err)
	}
	if err != nil {
		w.log.Error("sweep.fail", "err", err)
		return
	}
	if count > 0 {
		w.log.Info("sweep.done", "expired", count)
	}
}

// Stop halts the loop and waits for it to exit. Safe to call multiple times.
func (w *Sweeper) Stop() {
	w.once.Do(func() {
		close(w.stop)
	})
	w.wg.Wait()
}
