// Copyright (C) 2026 LinkForge Labs (eng@linkforge.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability provides Prometheus metrics for the planner.
//
// Metrics are exposed on /metrics. All operations are thread-safe via
// Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "linkforge"
	plannerSubsystem = "planner"
)

// Metrics holds every Prometheus metric the planning pipeline records.
// Initialize once at startup; Default is the singleton the service uses.
type Metrics struct {
	// RunsTotal counts planning runs by scope type and terminal status.
	// Labels: scope_type (cluster, onboarding), status (complete, failed,
	// failed_after_strip)
	RunsTotal *prometheus.CounterVec

	// RunDurationSeconds measures wall time of whole planning runs.
	// Labels: scope_type
	RunDurationSeconds *prometheus.HistogramVec

	// LinksPlannedTotal counts committed links.
	// Labels: anchor_type (exact_match, partial_match, natural),
	// method (rule_based, llm_fallback)
	LinksPlannedTotal *prometheus.CounterVec

	// RewriteCallsTotal counts generative rewrite service calls.
	// Labels: kind (paragraph, phrases), status (success, error)
	RewriteCallsTotal *prometheus.CounterVec

	// ValidationFailuresTotal counts hard validation failures by rule.
	ValidationFailuresTotal *prometheus.CounterVec

	// ActiveRuns tracks planning runs currently in flight.
	ActiveRuns prometheus.Gauge
}

// Default is the singleton instance registered on the default registry.
var Default = NewMetrics()

// NewMetrics creates and registers the planner metric set.
func NewMetrics() *Metrics {
	return &Metrics{
		RunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: plannerSubsystem,
			Name:      "runs_total",
			Help:      "Planning runs by scope type and terminal status.",
		}, []string{"scope_type", "status"}),

		RunDurationSeconds: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: plannerSubsystem,
			Name:      "run_duration_seconds",
			Help:      "Wall time of planning runs.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"scope_type"}),

		LinksPlannedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: plannerSubsystem,
			Name:      "links_planned_total",
			Help:      "Committed links by anchor type and placement method.",
		}, []string{"anchor_type", "method"}),

		RewriteCallsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: plannerSubsystem,
			Name:      "rewrite_calls_total",
			Help:      "Generative rewrite service calls.",
		}, []string{"kind", "status"}),

		ValidationFailuresTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: plannerSubsystem,
			Name:      "validation_failures_total",
			Help:      "Hard validation failures by rule.",
		}, []string{"rule"}),

		ActiveRuns: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: plannerSubsystem,
			Name:      "active_runs",
			Help:      "Planning runs currently in flight.",
		}),
	}
}
