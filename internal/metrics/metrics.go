// Courier - Message Delivery Assurance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "courier_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "courier_circuit_breaker_requests_total",
			Help: "Total number of calls through a circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "courier_circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "courier_circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Channel Metrics
	ChannelAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "courier_channel_attempts_total",
			Help: "Channel invocations by channel and result",
		},
		[]string{"channel", "result"}, // result: "success", "transient", "permanent", "rejected"
	)

	ChannelDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "courier_channel_duration_seconds",
			Help:    "Duration of a single channel invocation",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"channel"},
	)

	// Send Pipeline Metrics
	SendOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "courier_send_outcomes_total",
			Help: "Completed sends by outcome kind and channel used",
		},
		[]string{"kind", "channel"},
	)

	Verifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "courier_verifications_total",
			Help: "Delivery verification checks by resulting status",
		},
		[]string{"status", "phase"}, // phase: "first", "second"
	)

	Fallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "courier_fallbacks_total",
			Help: "Fallback decisions by trigger reason and result",
		},
		[]string{"reason", "result"}, // result: "delivered", "failed", "rate_limited"
	)

	// Synchronizer Metrics
	SyncRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "courier_sync_records_total",
			Help: "Store records seen by the synchronizer by result",
		},
		[]string{"result"}, // result: "emitted", "duplicate", "empty", "error", "correlated"
	)

	SyncCursor = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "courier_sync_cursor",
			Help: "Last processed store sequence id",
		},
	)

	SyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "courier_sync_duration_seconds",
			Help:    "Duration of one synchronizer cycle",
			Buckets: prometheus.DefBuckets,
		},
	)

	SyncErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "courier_sync_errors_total",
			Help: "Synchronizer cycle errors by type",
		},
		[]string{"error_type"}, // "store_unavailable", "checkpoint", "other"
	)

	SyncTriggers = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "courier_sync_triggers_total",
			Help: "Synchronizer triggers by source",
		},
		[]string{"source"}, // "notify", "poll", "startup"
	)

	PendingCorrelations = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "courier_pending_correlations",
			Help: "Outstanding optimistic sends awaiting a store record",
		},
	)

	// Store Metrics
	StoreQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "courier_store_query_duration_seconds",
			Help:    "Duration of message store queries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	StoreQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "courier_store_query_errors_total",
			Help: "Message store query errors",
		},
		[]string{"operation"},
	)

	// Event Bus / WebSocket Metrics
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "courier_events_published_total",
			Help: "Events published on the in-process bus",
		},
		[]string{"topic"},
	)

	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "courier_websocket_clients",
			Help: "Current number of connected websocket clients",
		},
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "courier_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "courier_api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
)

// RecordChannelAttempt records one channel invocation.
func RecordChannelAttempt(channel, result string, duration time.Duration) {
	ChannelAttempts.WithLabelValues(channel, result).Inc()
	ChannelDuration.WithLabelValues(channel).Observe(duration.Seconds())
}

// RecordSendOutcome records a completed send.
func RecordSendOutcome(kind, channel string) {
	SendOutcomes.WithLabelValues(kind, channel).Inc()
}

// RecordVerification records one verification check.
func RecordVerification(status string, secondCheck bool) {
	phase := "first"
	if secondCheck {
		phase = "second"
	}
	Verifications.WithLabelValues(status, phase).Inc()
}

// RecordFallback records a fallback decision.
func RecordFallback(reason, result string) {
	Fallbacks.WithLabelValues(reason, result).Inc()
}

// RecordSyncCycle records one synchronizer cycle.
func RecordSyncCycle(duration time.Duration, cursor int64, err error, errorType string) {
	SyncDuration.Observe(duration.Seconds())
	SyncCursor.Set(float64(cursor))
	if err != nil {
		SyncErrors.WithLabelValues(errorType).Inc()
	}
}

// RecordStoreQuery records a message store query.
func RecordStoreQuery(operation string, duration time.Duration, err error) {
	StoreQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		StoreQueryErrors.WithLabelValues(operation).Inc()
	}
}

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
