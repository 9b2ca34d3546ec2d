package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the session authority.
// Pass to components that need to record outcomes.
type Metrics struct {
	LoginsTotal     *prometheus.CounterVec
	HeartbeatsTotal *prometheus.CounterVec
	SweepsTotal     *prometheus.CounterVec
	SweptSessions   prometheus.Counter
	PushDropped     prometheus.CounterFunc
}

// NewMetrics creates and registers all metrics with the given registry.
// droppedEvents reports the push bus's cumulative drop count.
func NewMetrics(reg prometheus.Registerer, droppedEvents func() uint64) *Metrics {
	if droppedEvents == nil {
		droppedEvents = func() uint64 { return 0 }
	}
	return &Metrics{
		LoginsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sole",
				Name:      "logins_total",
				Help:      "Login attempts by outcome",
			},
			[]string{"outcome"}, // ok / rejected / unavailable
		),
		HeartbeatsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sole",
				Name:      "heartbeats_total",
				Help:      "Heartbeat validations by outcome",
			},
			[]string{"outcome"}, // ok / revoked / expired / not_found / unavailable
		),
		SweepsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sole",
				Name:      "sweeps_total",
				Help:      "Background sweep runs by outcome",
			},
			[]string{"outcome"}, // ok / error
		),
		SweptSessions: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "sole",
				Name:      "swept_sessions_total",
				Help:      "Sessions closed by the background sweep",
			},
		),
		PushDropped: promauto.With(reg).NewCounterFunc(
			prometheus.CounterOpts{
				Namespace: "sole",
				Name:      "push_dropped_events_total",
				Help:      "Revocation events dropped on slow push subscribers",
			},
			func() float64 { return float64(droppedEvents()) },
		),
	}
}

// RecordLogin implements the auth handler's metrics hook.
func (m *Metrics) RecordLogin(outcome string) {
	m.LoginsTotal.WithLabelValues(outcome).Inc()
}

// RecordHeartbeat implements the auth handler's metrics hook.
func (m *Metrics) RecordHeartbeat(outcome string) {
	m.HeartbeatsTotal.WithLabelValues(outcome).Inc()
}

// RecordSweep is the sweeper's onSweep hook.
func (m *Metrics) RecordSweep(count int, err error) {
	if err != nil {
		m.SweepsTotal.WithLabelValues("error").Inc()
		return
	}
	m.SweepsTotal.WithLabelValues("ok").Inc()
	m.SweptSessions.Add(float64(count))
}
