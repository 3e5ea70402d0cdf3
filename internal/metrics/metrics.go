// Rewatched - Media Server Year in Review
// Copyright 2026 Rewatched contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rewatched/rewatched

// Package metrics exposes Prometheus instrumentation for generation runs,
// the Tautulli history client, and email distribution.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Generation metrics.

	GenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rewatched_generation_duration_seconds",
			Help:    "Duration of full generation runs in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"year"},
	)

	GenerationUsers = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rewatched_generation_users_total",
			Help: "Per-user generation outcomes",
		},
		[]string{"year", "outcome"}, // outcome: success, failed
	)

	AggregationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rewatched_aggregation_duration_seconds",
			Help:    "Duration of single-user stats aggregation in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	MalformedEvents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rewatched_malformed_events_total",
			Help: "History records skipped by the stats engine as malformed",
		},
	)

	// History source metrics.

	HistoryRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rewatched_history_requests_total",
			Help: "Tautulli API requests by result",
		},
		[]string{"result"}, // success, failure, rate_limited
	)

	HistoryFetchRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rewatched_history_fetch_retries_total",
			Help: "Per-user history fetch retry attempts",
		},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rewatched_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rewatched_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Distribution metrics.

	EmailsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rewatched_emails_total",
			Help: "Report email delivery outcomes",
		},
		[]string{"outcome"}, // sent, failed
	)

	// HTTP metrics.

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rewatched_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// RecordGenerationUser records one per-user outcome within a run.
func RecordGenerationUser(year int, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failed"
	}
	GenerationUsers.WithLabelValues(strconv.Itoa(year), outcome).Inc()
}

// RecordGeneration records the duration of a completed run.
func RecordGeneration(year int, d time.Duration) {
	GenerationDuration.WithLabelValues(strconv.Itoa(year)).Observe(d.Seconds())
}

// RecordHTTPRequest records one served HTTP request.
func RecordHTTPRequest(method, route string, status int, d time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}
