package session

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"
)

func TestSweeper_ClosesIdleSessions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.IdleTimeout = time.Millisecond
	svc := NewService(cfg, NewMemoryStore(), nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, time.Now().UTC().Add(-time.Minute), "alice", DeviceDescriptor{}, "", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	swept := make(chan int, 1)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	w := NewSweeper(log, svc, 5*time.Millisecond, func(count int, err error) {
		if err != nil {
			t.Errorf("sweep: %v", err)
			return
		}
		if count > 0 {
			select {
			case swept <- count:
			default:
			}
		}
	})

	w.Start(ctx)
	defer w.Stop()

	select {
	case count := <-swept:
		if count != 1 {
			t.Fatalf("expected 1 swept session, got %d", count)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("sweep never fired")
	}

	if _, err := svc.Validate(ctx, time.Now().UTC(), created.Token); err != ErrSessionExpired {
		t.Fatalf("expected expired after sweep, got %v", err)
	}
}

func TestSweeper_StopIsIdempotent(t *testing.T) {
	svc := NewService(DefaultConfig(), NewMemoryStore(), nil)
	w := NewSweeper(nil, svc, time.Hour, nil)
	w.Start(context.Background())

	w.Stop()
	w.Stop()
}
