// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Package-level Prometheus metrics, auto-registered via promauto, matching
// services/trace/agent/providers/observability.go's convention of package-
// level metric vectors rather than a metrics struct passed around.
var (
	// DiagnosticsTotal counts diagnostics emitted by the rule engine.
	//
	// Labels:
	//   - rule: the rule ID (e.g. "FL001")
	//   - severity: "Informational", "Medium", "High", "Critical"
	DiagnosticsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "faultline",
			Subsystem: "rules",
			Name:      "diagnostics_total",
			Help:      "Total diagnostics emitted by the rule engine.",
		},
		[]string{"rule", "severity"},
	)

	// IRCacheTotal counts IR Driver cache hits and misses.
	//
	// Labels:
	//   - result: "hit" or "miss"
	IRCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "faultline",
			Subsystem: "ir",
			Name:      "cache_total",
			Help:      "IR driver cache hits and misses.",
		},
		[]string{"result"},
	)

	// SubprocessDuration measures lowering-compiler subprocess invocation
	// time.
	//
	// Labels:
	//   - status: "success" or "error"
	SubprocessDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "faultline",
			Subsystem: "ir",
			Name:      "subprocess_duration_seconds",
			Help:      "Duration of lowering-compiler subprocess invocations in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"status"},
	)

	// CalibrationSuppressedTotal counts diagnostics the Calibration Gate
	// suppressed as known false positives.
	CalibrationSuppressedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "faultline",
			Subsystem: "calibration",
			Name:      "suppressed_total",
			Help:      "Diagnostics suppressed by the calibration gate.",
		},
		[]string{"hazard_class"},
	)
)

// RecordSubprocessDuration records one lowering-compiler invocation's
// outcome and duration.
func RecordSubprocessDuration(d time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	SubprocessDuration.WithLabelValues(status).Observe(d.Seconds())
}
