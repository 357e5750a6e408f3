// Eventscout - Local Event Discovery and Ingestion Pipeline
// Copyright 2026 D. Moreau (dmoreau-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/eventscout/eventscout

// Package metrics exposes Prometheus instrumentation for the ingestion
// pipeline: task engine throughput, source fetch outcomes, normalization
// and quality-gate decisions, store operations, and API latency.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Task Engine Metrics
	TasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskengine_tasks_total",
			Help: "Total number of tasks submitted to the engine",
		},
		[]string{"outcome"}, // "success", "failure", "timeout"
	)

	TaskDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "taskengine_task_duration_seconds",
			Help:    "Task execution duration in seconds, including retries",
			Buckets: prometheus.DefBuckets,
		},
	)

	TaskRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "taskengine_task_retries_total",
			Help: "Total number of task retry attempts",
		},
	)

	TasksInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "taskengine_tasks_in_flight",
			Help: "Number of tasks currently executing",
		},
	)

	// Source Adapter Metrics
	SourceFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "source_fetches_total",
			Help: "Total number of provider fetch calls",
		},
		[]string{"source", "outcome"}, // outcome: "success", "error", "rate_limited"
	)

	SourceFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "source_fetch_duration_seconds",
			Help:    "Provider fetch duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"source"},
	)

	SourceRateLimitWaits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "source_rate_limit_waits_total",
			Help: "Number of fetches deferred by the sliding-window rate limiter",
		},
		[]string{"source"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "source_circuit_breaker_state",
			Help: "Circuit breaker state per source (0=closed, 1=half-open, 2=open)",
		},
		[]string{"source"},
	)

	// Pipeline Metrics
	EventsNormalized = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_events_normalized_total",
			Help: "Raw records processed by the normalizer",
		},
		[]string{"source", "outcome"}, // outcome: "ok", "rejected"
	)

	EventsValidated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_events_validated_total",
			Help: "Events evaluated by the quality gate",
		},
		[]string{"outcome"}, // "accepted", "rejected"
	)

	QualityScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pipeline_quality_score",
			Help:    "Quality score distribution for accepted events",
			Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		},
	)

	// Store Metrics
	StoreOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_operations_total",
			Help: "Total number of event store operations",
		},
		[]string{"operation", "outcome"}, // operation: "upsert", "exists", "query"
	)

	StoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "store_operation_duration_seconds",
			Help:    "Event store operation duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"operation"},
	)

	// Discovery Run Metrics
	DiscoveryRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discovery_runs_total",
			Help: "Total number of discovery runs by final status",
		},
		[]string{"status"},
	)

	DiscoveryLocationsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discovery_locations_processed_total",
			Help: "Locations processed across all discovery runs",
		},
		[]string{"outcome"}, // "success", "failure"
	)

	DiscoveryEventsScraped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "discovery_events_scraped_total",
			Help: "Events accepted and persisted across all discovery runs",
		},
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "endpoint"},
	)
)

// ObserveTask records one finished task with its outcome and duration.
func ObserveTask(outcome string, d time.Duration) {
	TasksTotal.WithLabelValues(outcome).Inc()
	TaskDuration.Observe(d.Seconds())
}

// ObserveStoreOp records one store operation.
func ObserveStoreOp(operation string, err error, d time.Duration) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	StoreOperations.WithLabelValues(operation, outcome).Inc()
	StoreOperationDuration.WithLabelValues(operation).Observe(d.Seconds())
}
