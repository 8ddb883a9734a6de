// Package metrics defines the Prometheus collectors exported by the server.
package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Ingestion outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeTimeout  = "timeout"
	OutcomeFailed   = "failed"
)

// Metrics groups the server's collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	ShareCalculations *prometheus.CounterVec
	Ingestions        *prometheus.CounterVec
	IngestDuration    prometheus.Histogram
	SessionsCreated   prometheus.Counter
	SessionsPruned    prometheus.Counter
	HTTPRequests      *prometheus.CounterVec
	HTTPDuration      *prometheus.HistogramVec
}

// New creates the collectors under namespace and registers them with reg.
// A nil reg means prometheus.DefaultRegisterer.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		ShareCalculations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "share_calculations_total",
			Help:      "Share allocations computed, by whether the shares cover the whole subtotal.",
		}, []string{"balanced"}),
		Ingestions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "receipt_ingestions_total",
			Help:      "Receipt ingestion attempts by outcome.",
		}, []string{"outcome"}),
		IngestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "receipt_ingestion_duration_ms",
			Help:      "Receipt ingestion latency in milliseconds.",
			Buckets:   []float64{50, 100, 250, 500, 1000, 2000, 3000, 5000, 10000},
		}),
		SessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_created_total",
			Help:      "Wizard sessions created.",
		}),
		SessionsPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_pruned_total",
			Help:      "Idle wizard sessions removed by the janitor.",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests handled by the server.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_ms",
			Help:      "HTTP request latency distribution in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		}, []string{"method", "route"}),
	}

	m.ShareCalculations = register(reg, m.ShareCalculations)
	m.Ingestions = register(reg, m.Ingestions)
	m.IngestDuration = register(reg, m.IngestDuration)
	m.SessionsCreated = register(reg, m.SessionsCreated)
	m.SessionsPruned = register(reg, m.SessionsPruned)
	m.HTTPRequests = register(reg, m.HTTPRequests)
	m.HTTPDuration = register(reg, m.HTTPDuration)
	return m
}

// register adds c to reg, reusing an identical collector that is already registered.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(fmt.Errorf("register collector: %w", err))
	}
	return c
}

// ObserveShares records one share calculation.
func (m *Metrics) ObserveShares(balanced bool) {
	if m == nil {
		return
	}
	label := "false"
	if balanced {
		label = "true"
	}
	m.ShareCalculations.WithLabelValues(label).Inc()
}

// ObserveIngestion records one receipt ingestion attempt.
func (m *Metrics) ObserveIngestion(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Ingestions.WithLabelValues(outcome).Inc()
	m.IngestDuration.Observe(DurationMillis(d))
}

// SessionCreated records a new session.
func (m *Metrics) SessionCreated() {
	if m == nil {
		return
	}
	m.SessionsCreated.Inc()
}

// SessionsRemoved records sessions pruned by the janitor.
func (m *Metrics) SessionsRemoved(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.SessionsPruned.Add(float64(n))
}

// ObserveHTTP records one HTTP request.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, fmt.Sprint(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(DurationMillis(d))
}

// DurationMillis converts a duration to milliseconds for metric observation.
func DurationMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
