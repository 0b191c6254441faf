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

// HazardAmplification flags structs where three or more independent
// latency hazards (multi-line span, atomics, thread-escape) interact on
// the same struct, compounding under load.
type HazardAmplification struct{}

var _ core.Rule = HazardAmplification{}

func (HazardAmplification) ID() string    { return "FL090" }
func (HazardAmplification) Title() string { return "Hazard Amplification" }
func (HazardAmplification) BaseSeverity() core.Severity { return core.Critical }
func (HazardAmplification) HardwareMechanism() string {
	return "Multiple interacting latency multipliers on a single " +
		"structure: cache line spanning + atomic contention + cross-thread " +
		"sharing. Each hazard compounds under load. Coherence storms, store " +
		"buffer saturation, and TLB pressure interact to produce tail " +
		"latency."
}

func (r HazardAmplification) AnalyzeRecord(rec *core.RecordDecl, layout core.LayoutProvider, escape core.EscapeModel, _ *core.Config) []core.Diagnostic {
	if rec == nil || !rec.IsComplete || layout == nil || escape == nil {
		return nil
	}

	m := layout.MapFor(rec)

	multiLine := m.LinesSpanned() >= 3
	hasAtomics := m.TotalAtomics() > 0
	threadEscape := escape.RecordMayEscapeThread(rec)

	signalCount := 0
	if multiLine {
		signalCount++
	}
	if hasAtomics {
		signalCount++
	}
	if threadEscape {
		signalCount++
	}

	if signalCount < 3 {
		return nil
	}

	var atomicLines, hotLines int
	for _, b := range m.Buckets() {
		if b.AtomicCount > 0 {
			atomicLines++
		}
		if b.MutableCount > 0 {
			hotLines++
		}
	}

	var escalations []string
	escalations = append(escalations, fmt.Sprintf(
		"%dB across %d cache lines", m.SizeBytes(), m.LinesSpanned()))
	escalations = append(escalations, fmt.Sprintf(
		"%d atomic field(s) on %d line(s): per-line RFO ownership transfer",
		m.TotalAtomics(), atomicLines))
	escalations = append(escalations,
		"thread-escaping: coherence traffic amplified across participating cores")

	straddlers := m.StraddlingFields()
	if len(straddlers) > 0 {
		escalations = append(escalations, fmt.Sprintf(
			"%d field(s) straddle line boundaries: split load/store penalty compounds with coherence cost",
			len(straddlers)))
	}

	if m.TotalMutables() > 4 {
		escalations = append(escalations, fmt.Sprintf(
			"%d mutable fields across %d line(s): wide write surface",
			m.TotalMutables(), hotLines))
	}

	atomicPairs := m.AtomicPairsOnSameLine()
	if len(atomicPairs) > 0 {
		escalations = append(escalations, fmt.Sprintf(
			"%d atomic pair(s) share cache line(s): intra-line contention adds to cross-line RFO cost",
			len(atomicPairs)))
	}

	diag := core.Diagnostic{
		RuleID:       r.ID(),
		Title:        r.Title(),
		Severity:     core.Critical,
		Confidence:   0.88,
		EvidenceTier: core.Likely,
		Location:     rec.Location,
		FunctionName: rec.Name,
		HardwareReasoning: fmt.Sprintf(
			"Struct '%s' (%dB, %d lines) exhibits compound hazard: %d atomic "+
				"field(s) across %d line(s) with thread-escape evidence. Under "+
				"multi-core contention, per-line RFO ownership transfer and "+
				"coherence invalidation interact across the full footprint.",
			rec.Name, m.SizeBytes(), m.LinesSpanned(), m.TotalAtomics(), atomicLines),
		StructuralEvidence: fmt.Sprintf(
			"struct=%s; sizeof=%dB; cache_lines=%d; atomic_fields=%d; atomic_lines=%d; mutable_fields=%d; straddling=%d; thread_escape=yes; signal_count=%d",
			rec.Name, m.SizeBytes(), m.LinesSpanned(), m.TotalAtomics(), atomicLines, m.TotalMutables(), len(straddlers), signalCount),
		Mitigation: "Decompose into separate cache-line-aligned sub-structures. " +
			"Isolate atomic fields with explicit padding. Split hot (frequently " +
			"written) and cold (rarely accessed) fields. Consider per-core " +
			"replicas with periodic merge.",
		Escalations: escalations,
	}

	return []core.Diagnostic{diag}
}

func (HazardAmplification) AnalyzeFunction(*core.FunctionDecl, core.HotPathOracle, *core.Config) []core.Diagnostic {
	return nil
}

func (HazardAmplification) AnalyzeGlobal(*core.GlobalDecl, core.EscapeModel, *core.Config) []core.Diagnostic {
	return nil
}
