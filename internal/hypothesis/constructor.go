// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package hypothesis

import (
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"

	"github.com/faultline/faultline/internal/core"
)

// inferEvidenceTier reads a diagnostic's structural evidence string to
// decide how directly provable the underlying hazard is, independent of
// whatever EvidenceTier the originating rule already assigned. Size-based
// facts (sizeof/cache_lines/estimated_frame) are AST-provable outright
// unless they also depend on runtime thread escape or atomic behavior, in
// which case they drop to Likely.
func inferEvidenceTier(d core.Diagnostic) core.EvidenceTier {
	ev := d.StructuralEvidence

	if strings.Contains(ev, "sizeof=") || strings.Contains(ev, "cache_lines=") ||
		strings.Contains(ev, "estimated_frame=") {
		if strings.Contains(ev, "thread_escape=true") || strings.Contains(ev, "atomics=yes") {
			return core.Likely
		}
		return core.Proven
	}

	if strings.Contains(ev, "ordering=seq_cst") {
		return core.Proven
	}

	if strings.Contains(ev, "atomic_writes=") {
		return core.Likely
	}

	if strings.Contains(ev, "virtual_call=") {
		return core.Likely
	}

	return core.Speculative
}

var featureKeys = []string{"sizeof", "cache_lines", "atomic_writes", "mutable_fields", "estimated_frame", "depth", "callees"}

// extractFeatures builds a fixed-length numeric feature vector from a
// diagnostic: severity, confidence, escalation count, then one slot per
// key in featureKeys pulled out of the structural evidence string (0 when
// absent). The fixed order and length let downstream tooling treat every
// diagnostic's feature vector as comparable regardless of rule.
func extractFeatures(d core.Diagnostic) []float64 {
	features := make([]float64, 0, 3+len(featureKeys))
	features = append(features, float64(d.Severity), d.Confidence, float64(len(d.Escalations)))
	for _, key := range featureKeys {
		features = append(features, extractEvidenceFloat(d.StructuralEvidence, key))
	}
	return features
}

func extractEvidenceFloat(evidence, key string) float64 {
	needle := key + "="
	pos := strings.Index(evidence, needle)
	if pos < 0 {
		return 0
	}
	rest := evidence[pos+len(needle):]
	end := strings.IndexAny(rest, ";, ")
	if end >= 0 {
		rest = rest[:end]
	}
	rest = strings.TrimSuffix(rest, "B")
	v, err := strconv.ParseFloat(rest, 64)
	if err != nil {
		return 0
	}
	return v
}

// ExtractFeatures exposes extractFeatures to callers outside this package
// (the calibration gate) that need a diagnostic's feature vector without
// going through the full Construct/template lookup.
func ExtractFeatures(d core.Diagnostic) []float64 {
	return extractFeatures(d)
}

// generateHypothesisID derives a stable identifier from the rule and
// location rather than a running counter, so re-running the analyzer over
// unchanged source produces the same hypothesis IDs.
func generateHypothesisID(d core.Diagnostic) string {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s:%d", d.Location.File, d.Location.Line)
	return fmt.Sprintf("H-%s-%d", d.RuleID, h.Sum64())
}

// Construct turns a confirmed diagnostic into a LatencyHypothesis using the
// template registered for its hazard class. It returns (zero, false) when
// the diagnostic's rule maps to a hazard class with no registered template
// (GlobalState, DeepConditional, CentralizedDispatch) — there is no
// measurement protocol defined for those yet, so no hypothesis is
// constructible, matching the miss case of a template lookup.
func Construct(d core.Diagnostic) (LatencyHypothesis, bool) {
	hc := MapRuleToHazardClass(d.RuleID)
	tmpl, ok := LookupTemplate(hc)
	if !ok {
		return LatencyHypothesis{}, false
	}

	hyp := LatencyHypothesis{
		FindingID:    fmt.Sprintf("%s-%s:%d", d.RuleID, d.Location.File, d.Location.Line),
		HypothesisID: generateHypothesisID(d),
		RuleID:       d.RuleID,
		HazardClass:  hc,
		FunctionName: d.FunctionName,
		Location:     d.Location,
		EvidenceTier: inferEvidenceTier(d),

		H0:            tmpl.H0Template,
		H1:            tmpl.H1Template,
		PrimaryMetric: tmpl.PrimaryMetric,
		CounterSet:    tmpl.CounterSet,

		MinimumDetectableEffect: tmpl.DefaultMDE,
		SignificanceLevel:       0.01,
		Power:                   0.90,
		RequiredRuns:            0,

		ConfoundControls: tmpl.ConfoundRequirements,
		Features:         extractFeatures(d),
		Verdict:          Pending,

		ControlDescription:   "Mitigated variant with the structural hazard removed",
		TreatmentDescription: "Original code preserving the structural hazard as detected",
		InteractionEligible:  tmpl.InteractionEligible,
	}

	return hyp, true
}
