// Copyright (C) 2025 ConvoGuard (engineering@convoguard.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability provides metrics and instrumentation for the
// inference service.
//
// # Description
//
// This package implements Prometheus metrics for monitoring triage
// classification. Metrics include:
//   - Request counters (by endpoint and status)
//   - Classification counters (by label and answering source)
//   - Latency histograms per endpoint
//   - Batch size distribution
//   - Escalation outcomes
//   - Model availability gauge
//
// # Integration
//
// Metrics are exposed via the /metrics endpoint. Use with
// Prometheus + Grafana for dashboards and alerting.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Namespace for all metrics
const metricsNamespace = "convoguard"

// Subsystem for inference metrics
const inferenceSubsystem = "inference"

// InferenceMetrics holds all Prometheus metrics for the classification
// endpoints. Initialize once at startup via InitMetrics().
type InferenceMetrics struct {
	// RequestsTotal counts HTTP requests by endpoint and status.
	// Labels: endpoint (classify, classify_batch), status (success, error)
	RequestsTotal *prometheus.CounterVec

	// ClassificationsTotal counts issued verdicts by label and the
	// source that answered.
	// Labels: label (SAFE, RISKY, CRISIS), source (rules, model)
	ClassificationsTotal *prometheus.CounterVec

	// RequestDurationSeconds measures end-to-end request latency.
	// Labels: endpoint (classify, classify_batch)
	RequestDurationSeconds *prometheus.HistogramVec

	// BatchSize measures the number of texts per batch call.
	BatchSize prometheus.Histogram

	// EscalationsTotal counts low-confidence escalations by outcome.
	// Labels: outcome (resolved, failed)
	EscalationsTotal *prometheus.CounterVec

	// ModelLoaded is 1 when the neural model answered the startup
	// probe and 0 when the service runs rules-only.
	ModelLoaded prometheus.Gauge
}

// DefaultMetrics is the singleton instance of InferenceMetrics.
// Initialized by InitMetrics().
var DefaultMetrics *InferenceMetrics

// InitMetrics creates and registers all metrics with the default
// Prometheus registry. Call once at startup; a second call panics on
// duplicate registration.
func InitMetrics() *InferenceMetrics {
	DefaultMetrics = NewMetrics(prometheus.DefaultRegisterer)
	return DefaultMetrics
}

// NewMetrics builds the metric set against an explicit registerer.
// Tests pass a fresh prometheus.NewRegistry() to stay isolated.
func NewMetrics(reg prometheus.Registerer) *InferenceMetrics {
	factory := promauto.With(reg)

	return &InferenceMetrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: inferenceSubsystem,
				Name:      "requests_total",
				Help:      "Total classification requests by endpoint and status",
			},
			[]string{"endpoint", "status"},
		),

		ClassificationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: inferenceSubsystem,
				Name:      "classifications_total",
				Help:      "Total verdicts issued by label and answering source",
			},
			[]string{"label", "source"},
		),

		RequestDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: inferenceSubsystem,
				Name:      "request_duration_seconds",
				Help:      "End-to-end request latency in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
			},
			[]string{"endpoint"},
		),

		BatchSize: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: inferenceSubsystem,
				Name:      "batch_size",
				Help:      "Number of texts per batch classification call",
				Buckets:   []float64{1, 2, 5, 10, 25, 50},
			},
		),

		EscalationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: inferenceSubsystem,
				Name:      "escalations_total",
				Help:      "Low-confidence escalations by outcome",
			},
			[]string{"outcome"},
		),

		ModelLoaded: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: inferenceSubsystem,
				Name:      "model_loaded",
				Help:      "1 when the neural model is serving, 0 in rules-only mode",
			},
		),
	}
}

// =============================================================================
// Endpoint Names
// =============================================================================

// Endpoint represents a classification endpoint for metrics labeling.
type Endpoint string

const (
	// EndpointClassify is the single-message endpoint.
	EndpointClassify Endpoint = "classify"

	// EndpointClassifyBatch is the batch endpoint.
	EndpointClassifyBatch Endpoint = "classify_batch"
)

// =============================================================================
// Helper Methods
// =============================================================================

// RecordRequest records a completed request.
func (m *InferenceMetrics) RecordRequest(endpoint Endpoint, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	m.RequestsTotal.WithLabelValues(string(endpoint), status).Inc()
}

// RecordClassification records one issued verdict.
func (m *InferenceMetrics) RecordClassification(label, source string) {
	m.ClassificationsTotal.WithLabelValues(label, source).Inc()
}

// RecordDuration records the end-to-end latency of one request.
func (m *InferenceMetrics) RecordDuration(endpoint Endpoint, seconds float64) {
	m.RequestDurationSeconds.WithLabelValues(string(endpoint)).Observe(seconds)
}

// RecordBatchSize records the size of one batch call.
func (m *InferenceMetrics) RecordBatchSize(n int) {
	m.BatchSize.Observe(float64(n))
}

// RecordEscalation records the outcome of one escalation attempt.
func (m *InferenceMetrics) RecordEscalation(resolved bool) {
	outcome := "resolved"
	if !resolved {
		outcome = "failed"
	}
	m.EscalationsTotal.WithLabelValues(outcome).Inc()
}

// SetModelLoaded publishes the serving mode.
func (m *InferenceMetrics) SetModelLoaded(loaded bool) {
	if loaded {
		m.ModelLoaded.Set(1)
		return
	}
	m.ModelLoaded.Set(0)
}
