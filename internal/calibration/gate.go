// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package calibration

import (
	"log/slog"

	"github.com/faultline/faultline/internal/core"
	"github.com/faultline/faultline/internal/hypothesis"
	"github.com/faultline/faultline/internal/telemetry"
)

// Gate wraps a Store for use as a post-processing filter over a run's
// diagnostics: it asks whether a diagnostic's hazard pattern is a known
// false positive and, if so, marks it Suppressed. A nil Gate (or one built over a nil
// Store) is a permanent no-op, so a run without a configured calibration
// database behaves exactly as it did before the gate existed.
type Gate struct {
	store  *Store
	logger *slog.Logger
}

// NewGate wraps store. A nil store is accepted so callers can construct a
// Gate unconditionally and let ShouldSuppress degrade to always-false.
func NewGate(store *Store, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{store: store, logger: logger}
}

// ShouldSuppress reports whether a diagnostic with this feature vector and
// hazard class should be dropped because it matches a pattern refuted
// often enough to be a known false positive.
//
// Any store I/O error fails open: ShouldSuppress logs a warning and
// returns false rather than risk silently dropping a real finding because
// the calibration database happened to be unreadable.
func (g *Gate) ShouldSuppress(features []float64, hc hypothesis.HazardClass) bool {
	if g == nil || g.store == nil {
		return false
	}

	known, err := g.store.IsKnownFalsePositive(features, hc)
	if err != nil {
		g.logger.Warn("calibration gate: failing open on store error",
			slog.String("hazard_class", hc.String()), slog.Any("error", err))
		return false
	}
	return known
}

// Apply stamps Diagnostic.Suppressed on every element of diags whose rule's
// hazard class and feature vector match a known false positive, and
// returns diags unchanged otherwise. This is the one place outside the
// Diagnostic Refiner that mutates Suppressed, matching diagnostic.go's
// documented contract.
//
// Safety rail: a diagnostic with severity High or Critical whose evidence
// tier is Proven is never suppressed, regardless of what the calibration
// store says — a site-confirmed, high-severity finding is exactly the case
// calibration must not be allowed to silently erase.
func (g *Gate) Apply(diags []core.Diagnostic) []core.Diagnostic {
	for i := range diags {
		if isSafetyRailed(diags[i]) {
			continue
		}
		hc := hypothesis.MapRuleToHazardClass(diags[i].RuleID)
		features := hypothesis.ExtractFeatures(diags[i])
		if g.ShouldSuppress(features, hc) {
			diags[i].Suppressed = true
			telemetry.CalibrationSuppressedTotal.WithLabelValues(hc.String()).Inc()
		}
	}
	return diags
}

// isSafetyRailed reports whether d is exempt from calibration suppression.
func isSafetyRailed(d core.Diagnostic) bool {
	return (d.Severity == core.High || d.Severity == core.Critical) && d.EvidenceTier == core.Proven
}
