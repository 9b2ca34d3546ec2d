package app

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRecording(t *testing.T) {
	reg := prometheus.NewRegistry()
	dropped := uint64(0)
	m := NewMetrics(reg, func() uint64 { return dropped })

	m.RecordLogin("ok")
	m.RecordLogin("ok")
	m.RecordLogin("rejected")
	m.RecordHeartbeat("revoked")

	if got := testutil.ToFloat64(m.LoginsTotal.WithLabelValues("ok")); got != 2 {
		t.Fatalf("logins ok = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.LoginsTotal.WithLabelValues("rejected")); got != 1 {
		t.Fatalf("logins rejected = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.HeartbeatsTotal.WithLabelValues("revoked")); got != 1 {
		t.Fatalf("heartbeats revoked = %v, want 1", got)
	}
}

func TestMetricsSweepHook(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg, nil)

	m.RecordSweep(3, nil)
	m.RecordSweep(0, nil)
	m.RecordSweep(0, errors.New("db down"))

	if got := testutil.ToFloat64(m.SweepsTotal.WithLabelValues("ok")); got != 2 {
		t.Fatalf("sweeps ok = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.SweepsTotal.WithLabelValues("error")); got != 1 {
		t.Fatalf("sweeps error = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.SweptSessions); got != 3 {
		t.Fatalf("swept sessions = %v, want 3", got)
	}
}

func TestMetricsPushDroppedFollowsSource(t *testing.T) {
	reg := prometheus.NewRegistry()
	dropped := uint64(0)
	m := NewMetrics(reg, func() uint64 { return dropped })

	if got := testutil.ToFloat64(m.PushDropped); got != 0 {
		t.Fatalf("push dropped = %v, want 0", got)
	}
	dropped = 7
	if got := testutil.ToFloat64(m.PushDropped); got != 7 {
		t.Fatalf("push dropped = %v, want 7", got)
	}
}
