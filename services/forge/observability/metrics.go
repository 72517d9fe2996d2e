// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the pipeline engine.
//
// # Description
//
// Metrics cover run outcomes, per-step execution, and pipeline-state
// growth. Exposed via the /metrics endpoint; use with Prometheus +
// Grafana for dashboards and alerting.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all metrics
const metricsNamespace = "graphforge"

// Subsystem for engine metrics
const engineSubsystem = "engine"

// EngineMetrics holds all Prometheus metrics for pipeline execution.
//
// # Fields
//
//   - RunsTotal: Counter of pipeline runs by outcome
//   - StepsTotal: Counter of step executions by tool and status
//   - StepDurationSeconds: Histogram of per-step execution time
//   - RunDurationSeconds: Histogram of whole-run execution time
//   - ActiveSteps: Gauge of currently executing steps
//   - StateBytes: Histogram of final pipeline-state size per run
//   - OffloadedPayloadsTotal: Counter of payloads externalized to the
//     offload store
//
// # Thread Safety
//
// All operations are thread-safe.
type EngineMetrics struct {
	// RunsTotal counts pipeline runs.
	// Labels: status (success, failed)
	RunsTotal *prometheus.CounterVec

	// StepsTotal counts step executions.
	// Labels: tool_id, status (success, failed, skipped)
	StepsTotal *prometheus.CounterVec

	// StepDurationSeconds measures per-step execution time.
	// Labels: tool_id
	StepDurationSeconds *prometheus.HistogramVec

	// RunDurationSeconds measures whole-run execution time.
	// Labels: status (success, failed)
	RunDurationSeconds *prometheus.HistogramVec

	// ActiveSteps tracks currently executing steps.
	ActiveSteps prometheus.Gauge

	// StateBytes measures the final pipeline-state size per run.
	StateBytes prometheus.Histogram

	// OffloadedPayloadsTotal counts payloads moved to the offload store.
	OffloadedPayloadsTotal prometheus.Counter
}

// DefaultMetrics is the singleton instance of EngineMetrics.
// Initialized by InitMetrics().
var DefaultMetrics *EngineMetrics

// InitMetrics initializes the default metrics instance.
//
// # Description
//
// Creates and registers all Prometheus metrics. Call once at startup;
// calling twice panics on duplicate registration.
func InitMetrics() *EngineMetrics {
	DefaultMetrics = &EngineMetrics{
		RunsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: engineSubsystem,
				Name:      "runs_total",
				Help:      "Total pipeline runs by outcome",
			},
			[]string{"status"},
		),

		StepsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: engineSubsystem,
				Name:      "steps_total",
				Help:      "Total step executions by tool and status",
			},
			[]string{"tool_id", "status"},
		),

		StepDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: engineSubsystem,
				Name:      "step_duration_seconds",
				Help:      "Per-step execution time in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 15.0, 60.0},
			},
			[]string{"tool_id"},
		),

		RunDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: engineSubsystem,
				Name:      "run_duration_seconds",
				Help:      "Whole-run execution time in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300},
			},
			[]string{"status"},
		),

		ActiveSteps: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: engineSubsystem,
				Name:      "active_steps",
				Help:      "Number of currently executing steps",
			},
		),

		StateBytes: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: engineSubsystem,
				Name:      "state_bytes",
				Help:      "Final pipeline-state size per run in bytes",
				Buckets:   prometheus.ExponentialBuckets(1024, 4, 10),
			},
		),

		OffloadedPayloadsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: engineSubsystem,
				Name:      "offloaded_payloads_total",
				Help:      "Payloads externalized to the offload store",
			},
		),
	}

	return DefaultMetrics
}

// RecordRun records a completed pipeline run.
func (m *EngineMetrics) RecordRun(success bool, seconds float64, stateBytes int64) {
	status := "success"
	if !success {
		status = "failed"
	}
	m.RunsTotal.WithLabelValues(status).Inc()
	m.RunDurationSeconds.WithLabelValues(status).Observe(seconds)
	m.StateBytes.Observe(float64(stateBytes))
}

// RecordStep records one finished step execution.
func (m *EngineMetrics) RecordStep(toolID, status string, seconds float64) {
	m.StepsTotal.WithLabelValues(toolID, status).Inc()
	if status != "skipped" {
		m.StepDurationSeconds.WithLabelValues(toolID).Observe(seconds)
	}
}

// StepStarted increments the active steps gauge.
func (m *EngineMetrics) StepStarted() { m.ActiveSteps.Inc() }

// StepEnded decrements the active steps gauge.
func (m *EngineMetrics) StepEnded() { m.ActiveSteps.Dec() }

// RecordOffload counts one payload externalization.
func (m *EngineMetrics) RecordOffload() { m.OffloadedPayloadsTotal.Inc() }
