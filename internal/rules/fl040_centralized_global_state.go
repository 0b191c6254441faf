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

// CentralizedGlobalState flags package-level mutable variables reachable
// from any goroutine without confinement.
type CentralizedGlobalState struct{}

var _ core.Rule = CentralizedGlobalState{}

func (CentralizedGlobalState) ID() string    { return "FL040" }
func (CentralizedGlobalState) Title() string { return "Centralized Mutable Global State" }
func (CentralizedGlobalState) BaseSeverity() core.Severity { return core.High }
func (CentralizedGlobalState) HardwareMechanism() string {
	return "Global mutable state accessed from multiple cores causes NUMA " +
		"remote memory access on multi-socket systems (~100-300ns penalty). " +
		"Cache line contention on shared writes. Scalability collapse under " +
		"core count increase."
}

func (r CentralizedGlobalState) AnalyzeGlobal(g *core.GlobalDecl, escape core.EscapeModel, _ *core.Config) []core.Diagnostic {
	if g == nil || escape == nil {
		return nil
	}
	if !escape.GlobalIsSharedMutable(g) {
		return nil
	}

	hasAtomics := g.IsAtomicType || g.HasAtomicFields

	sev := core.High
	var escalations []string
	if hasAtomics {
		sev = core.Critical
		escalations = append(escalations,
			"Contains atomic fields: confirmed multi-writer intent, "+
				"guaranteed cross-core cache line contention")
	}

	confidence := 0.60
	evidenceTier := core.Speculative
	if hasAtomics {
		confidence = 0.85
		evidenceTier = core.Likely
	}

	atomicsPresent := "no"
	if hasAtomics {
		atomicsPresent = "yes"
	}

	diag := core.Diagnostic{
		RuleID:       r.ID(),
		Title:        r.Title(),
		Severity:     sev,
		Confidence:   confidence,
		EvidenceTier: evidenceTier,
		Location:     g.Location,
		FunctionName: g.Name,
		HardwareReasoning: fmt.Sprintf(
			"Global mutable variable '%s' (type: %s). Accessible from any "+
				"goroutine without confinement. On multi-socket systems, remote "+
				"NUMA access adds ~100-300ns. Under multi-core write contention, "+
				"cache line bouncing degrades linearly with core count.",
			g.Name, g.TypeName),
		StructuralEvidence: fmt.Sprintf(
			"var=%s; type=%s; storage=global; const=no; goroutine_local=no; atomics=%s",
			g.Name, g.TypeName, atomicsPresent),
		Mitigation: "Partition state per-goroutine or per-core. Inject via a " +
			"context object instead of global access. Use goroutine-local " +
			"storage where possible. If read-mostly, consider an atomic.Value " +
			"or RCU-style swap.",
		Escalations: escalations,
	}

	return []core.Diagnostic{diag}
}

func (CentralizedGlobalState) AnalyzeRecord(*core.RecordDecl, core.LayoutProvider, core.EscapeModel, *core.Config) []core.Diagnostic {
	return nil
}

func (CentralizedGlobalState) AnalyzeFunction(*core.FunctionDecl, core.HotPathOracle, *core.Config) []core.Diagnostic {
	return nil
}
