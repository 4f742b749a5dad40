// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-fuzzyvault.
//
// go-fuzzyvault is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package metrics provides Prometheus instrumentation for vault operations.
// It exposes operation counters, latency and decoder histograms, error
// counters and storage gauges.
package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace is the Prometheus namespace for all vault metrics
	Namespace = "fuzzyvault"

	// Label names
	LabelOperation = "operation"
	LabelBackend   = "backend"
	LabelStatus    = "status"
	LabelErrorType = "error_type"

	// Status values
	StatusSuccess = "success"
	StatusError   = "error"

	// Operation names
	OpEnroll  = "enroll"
	OpOpen    = "open"
	OpGet     = "get"
	OpDelete  = "delete"
	OpList    = "list"
	OpEncrypt = "encrypt"
	OpDecrypt = "decrypt"
)

var (
	// OperationsTotal tracks the total number of vault operations by type, backend, and status.
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "operations_total",
			Help:      "Total number of vault operations by type, backend, and status",
		},
		[]string{LabelOperation, LabelBackend, LabelStatus},
	)

	// OperationDuration tracks the duration of vault operations in seconds.
	// Opening dominates: a full decoding budget takes seconds.
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of vault operations in seconds",
			Buckets:   []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{LabelOperation, LabelBackend},
	)

	// ErrorsTotal tracks the total number of errors by operation, backend, and error type.
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "errors_total",
			Help:      "Total number of errors by operation, backend, and error type",
		},
		[]string{LabelOperation, LabelBackend, LabelErrorType},
	)

	// DecodeIterations tracks the number of decoder iterations run per open.
	DecodeIterations = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "decoder",
			Name:      "iterations",
			Help:      "Decoder iterations per open",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
		},
	)

	// DecodeModeRatio tracks the share of iterations that produced the
	// winning constant term.
	DecodeModeRatio = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "decoder",
			Name:      "mode_ratio",
			Help:      "Fraction of decoder iterations agreeing with the returned candidate",
			Buckets:   []float64{.0001, .001, .01, .05, .1, .25, .5, 1},
		},
	)

	// RateLimitedTotal tracks the number of rejected unlock attempts.
	RateLimitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "rate_limited_total",
			Help:      "Total number of unlock attempts rejected by the rate limiter",
		},
	)

	// VaultsTotal tracks the number of vaults stored in each backend.
	VaultsTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "vaults_total",
			Help:      "Total number of vaults stored in each backend",
		},
		[]string{LabelBackend},
	)

	// enabled tracks whether metrics collection is enabled
	enabled atomic.Bool
)

func init() {
	// Metrics are enabled by default
	enabled.Store(true)
}

// RecordOperation records a vault operation with its duration and status.
//
// Example:
//
//	start := time.Now()
//	_, err := v.Open(ctx, view)
//	status := StatusSuccess
//	if err != nil {
//	    status = StatusError
//	}
//	RecordOperation(OpOpen, "file", status, time.Since(start).Seconds())
func RecordOperation(operation, backend, status string, duration float64) {
	if !enabled.Load() {
		return
	}
	OperationsTotal.WithLabelValues(operation, backend, status).Inc()
	OperationDuration.WithLabelValues(operation, backend).Observe(duration)
}

// RecordError records an error event with context about where it occurred.
// Error types should be specific, e.g. "not_found" or "rate_limited".
func RecordError(operation, backend, errorType string) {
	if !enabled.Load() {
		return
	}
	ErrorsTotal.WithLabelValues(operation, backend, errorType).Inc()
}

// RecordDecode records the statistics of one decoding run. Nothing about
// the decoded values is recorded.
func RecordDecode(iterations, modeCount int) {
	if !enabled.Load() || iterations <= 0 {
		return
	}
	DecodeIterations.Observe(float64(iterations))
	DecodeModeRatio.Observe(float64(modeCount) / float64(iterations))
}

// RecordRateLimited counts a rejected unlock attempt.
func RecordRateLimited() {
	if !enabled.Load() {
		return
	}
	RateLimitedTotal.Inc()
}

// SetVaultsTotal sets the number of stored vaults for a backend.
func SetVaultsTotal(backend string, count float64) {
	if !enabled.Load() {
		return
	}
	VaultsTotal.WithLabelValues(backend).Set(count)
}

// Enable enables metrics collection.
func Enable() {
	enabled.Store(true)
}

// Disable disables metrics collection.
// Useful for testing or when metrics are not desired.
func Disable() {
	enabled.Store(false)
}

// IsEnabled returns whether metrics collection is currently enabled.
func IsEnabled() bool {
	return enabled.Load()
}
