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

// CacheLineSpanning flags aggregates large enough to spill past a single
// cache line, widening the L1D/L2 footprint of every access.
type CacheLineSpanning struct{}

var _ core.Rule = CacheLineSpanning{}

func (CacheLineSpanning) ID() string    { return "FL001" }
func (CacheLineSpanning) Title() string { return "Cache Line Spanning Struct" }
func (CacheLineSpanning) BaseSeverity() core.Severity { return core.High }
func (CacheLineSpanning) HardwareMechanism() string {
	return "L1/L2 cache line footprint expansion. Increased eviction " +
		"probability. Higher coherence traffic under multi-core writes."
}

func (r CacheLineSpanning) AnalyzeRecord(rec *core.RecordDecl, _ core.LayoutProvider, _ core.EscapeModel, cfg *core.Config) []core.Diagnostic {
	if rec == nil || !rec.IsComplete {
		return nil
	}

	lineBytes := int64(64)
	spanCrit := int64(128)
	if cfg != nil {
		lineBytes = cfg.CacheLineBytes
		spanCrit = cfg.CacheLineSpanCrit
	}
	if lineBytes <= 0 {
		return nil
	}

	sizeBytes := rec.SizeBytes
	if sizeBytes <= lineBytes {
		return nil
	}

	sev := core.High
	var escalations []string

	if sizeBytes > spanCrit {
		sev = core.Critical
		escalations = append(escalations,
			fmt.Sprintf("sizeof > %dB: spans 3+ cache lines, elevated eviction pressure", spanCrit))
	}

	hasAtomics := recordHasAtomicField(rec)
	if hasAtomics {
		sev = core.Critical
		escalations = append(escalations,
			"Contains atomic fields: coherence traffic amplified across "+
				"spanned cache lines (MESI RFO storms)")
	}

	confidence := 0.75
	if hasAtomics {
		confidence = 0.90
	}

	linesSpanned := ceilDiv(sizeBytes, lineBytes)

	diag := core.Diagnostic{
		RuleID:       r.ID(),
		Title:        r.Title(),
		Severity:     sev,
		Confidence:   confidence,
		Location:     rec.Location,
		FunctionName: rec.Name,
		HardwareReasoning: fmt.Sprintf(
			"Struct '%s' occupies %dB, spanning %d cache line(s). Each access "+
				"may touch multiple lines, increasing L1D pressure and coherence "+
				"invalidation surface.", rec.Name, sizeBytes, linesSpanned),
		StructuralEvidence: fmt.Sprintf(
			"sizeof(%s) = %dB; cache_line = %dB; lines_spanned = %d",
			rec.Name, sizeBytes, lineBytes, linesSpanned),
		Mitigation: "Split hot/cold fields into separate structs. " +
			"Consider AoS->SoA transformation. " +
			"Apply cache-line-sized padding to isolate write-heavy sub-structs.",
		Escalations: escalations,
	}

	return []core.Diagnostic{diag}
}

func (CacheLineSpanning) AnalyzeFunction(*core.FunctionDecl, core.HotPathOracle, *core.Config) []core.Diagnostic {
	return nil
}

func (CacheLineSpanning) AnalyzeGlobal(*core.GlobalDecl, core.EscapeModel, *core.Config) []core.Diagnostic {
	return nil
}
