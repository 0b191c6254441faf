// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package rules

import (
	"fmt"

	"github.com/faultline/faultline/internal/core"
)

// FalseSharing flags structs where independently-written fields land on the
// same cache line and the struct shows thread-escape evidence.
type FalseSharing struct{}

var _ core.Rule = FalseSharing{}

func (FalseSharing) ID() string    { return "FL002" }
func (FalseSharing) Title() string { return "False Sharing Candidate" }
func (FalseSharing) BaseSeverity() core.Severity { return core.Critical }
func (FalseSharing) HardwareMechanism() string {
	return "MESI invalidation ping-pong across cores due to shared cache " +
		"line writes. Each write by one core forces invalidation of the line " +
		"in all other cores' L1/L2, triggering RFO traffic."
}

func (r FalseSharing) AnalyzeRecord(rec *core.RecordDecl, layout core.LayoutProvider, escape core.EscapeModel, _ *core.Config) []core.Diagnostic {
	if rec == nil || !rec.IsComplete || layout == nil || escape == nil {
		return nil
	}
	if !escape.RecordMayEscapeThread(rec) {
		return nil
	}

	m := layout.MapFor(rec)
	atomicPairs := m.AtomicPairsOnSameLine()
	mutablePairs := m.MutablePairsOnSameLine()
	if len(mutablePairs) == 0 {
		return nil
	}

	hasAtomicPairs := len(atomicPairs) > 0
	fsCandidateLines := m.FalseSharingCandidateLines()

	// Without atomic pairs on the same line, we cannot prove statically that
	// different threads write different fields; require at least some
	// atomic fields in the struct for the non-atomic-pair case.
	if !hasAtomicPairs && m.TotalAtomics() == 0 {
		return nil
	}

	sev := core.High
	if hasAtomicPairs {
		sev = core.Critical
	}

	var escalations []string
	for _, pair := range atomicPairs {
		escalations = append(escalations, fmt.Sprintf(
			"atomic fields '%s' and '%s' share line %d: guaranteed cross-core invalidation on write",
			pair.A.Name, pair.B.Name, pair.LineIndex))
	}

	buckets := m.Buckets()
	for _, lineIdx := range fsCandidateLines {
		if lineIdx < 0 || int(lineIdx) >= len(buckets) {
			continue
		}
		bucket := buckets[lineIdx]
		escalations = append(escalations, fmt.Sprintf(
			"line %d: %d atomic + %d non-atomic mutable field(s) — mixed write surface",
			lineIdx, bucket.AtomicCount, bucket.MutableCount-bucket.AtomicCount))
	}

	confidence := 0.55
	evidenceTier := core.Likely
	switch {
	case hasAtomicPairs:
		confidence = 0.88
		evidenceTier = core.Proven
	case m.TotalAtomics() > 0:
		confidence = 0.68
	}

	atomicsPresent := "no"
	if m.TotalAtomics() > 0 {
		atomicsPresent = "yes"
	}

	diag := core.Diagnostic{
		RuleID:       r.ID(),
		Title:        r.Title(),
		Severity:     sev,
		Confidence:   confidence,
		EvidenceTier: evidenceTier,
		Location:     rec.Location,
		FunctionName: rec.Name,
		HardwareReasoning: fmt.Sprintf(
			"Struct '%s' (%dB, %d line(s)): %d mutable field pair(s) share cache "+
				"line(s) with thread-escape evidence. Concurrent writes to "+
				"co-located fields trigger MESI invalidation per write.",
			rec.Name, m.SizeBytes(), m.LinesSpanned(), len(mutablePairs)),
		StructuralEvidence: fmt.Sprintf(
			"sizeof=%dB; lines=%d; mutable_pairs_same_line=%d; atomic_pairs_same_line=%d; thread_escape=true; atomics=%s",
			m.SizeBytes(), m.LinesSpanned(), len(mutablePairs), len(atomicPairs), atomicsPresent),
		Mitigation: "Pad independently-written fields to separate cache lines " +
			"with explicit padding. Consider per-thread/per-core replicas.",
		Escalations: escalations,
	}

	return []core.Diagnostic{diag}
}

func (FalseSharing) AnalyzeFunction(*core.FunctionDecl, core.HotPathOracle, *core.Config) []core.Diagnostic {
	return nil
}

func (FalseSharing) AnalyzeGlobal(*core.GlobalDecl, core.EscapeModel, *core.Config) []core.Diagnostic {
	return nil
}
