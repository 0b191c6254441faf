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

// OverlyStrongOrdering flags sequentially-consistent atomic stores and RMWs
// on hot paths where a weaker ordering would suffice.
type OverlyStrongOrdering struct{}

var _ core.Rule = OverlyStrongOrdering{}

func (OverlyStrongOrdering) ID() string    { return "FL010" }
func (OverlyStrongOrdering) Title() string { return "Overly Strong Atomic Ordering" }
func (OverlyStrongOrdering) BaseSeverity() core.Severity { return core.High }
func (OverlyStrongOrdering) HardwareMechanism() string {
	return "On x86-64 TSO: seq_cst stores lower to XCHG (implicit LOCK, " +
		"store buffer drain). seq_cst loads lower to plain MOV (no additional " +
		"cost over acquire). seq_cst RMW lowers to LOCK-prefixed instruction " +
		"(same as acq_rel RMW). The actionable cost is on stores where release " +
		"ordering would emit plain MOV."
}

func isSeqCst(ordering string) bool {
	return ordering == "" || ordering == "seq_cst"
}

func (r OverlyStrongOrdering) AnalyzeFunction(fn *core.FunctionDecl, oracle core.HotPathOracle, _ *core.Config) []core.Diagnostic {
	if fn == nil || !fn.HasBody || oracle == nil {
		return nil
	}
	if !oracle.IsFunctionHot(fn) {
		return nil
	}

	var seqCstSites []core.AtomicSite
	for _, site := range fn.Facts.Atomics {
		if isSeqCst(site.ExplicitOrdering) {
			seqCstSites = append(seqCstSites, site)
		}
	}
	if len(seqCstSites) == 0 {
		return nil
	}

	atomicCount := len(seqCstSites)
	var diags []core.Diagnostic

	for _, site := range seqCstSites {
		// seq_cst loads are free on x86-64 TSO (plain MOV, same as acquire).
		if site.Op == core.AtomicLoad {
			continue
		}

		isStore := site.Op == core.AtomicStore

		sev := core.Medium
		confidence := 0.55
		evidenceTier := core.Speculative
		if isStore {
			sev = core.High
			confidence = 0.85
			evidenceTier = core.Likely
		}

		var escalations []string
		if site.InLoop && isStore {
			sev = core.Critical
			confidence = 0.90
			escalations = append(escalations,
				"seq_cst store inside loop: XCHG per iteration, sustained store buffer drain")
		} else if site.InLoop {
			sev = core.High
			escalations = append(escalations,
				"seq_cst RMW inside loop: LOCK-prefixed op per iteration "+
					"(same cost as acq_rel on x86-64, but prevents compiler "+
					"reordering optimizations)")
		}

		if atomicCount > 1 {
			escalations = append(escalations,
				fmt.Sprintf("%d seq_cst operations in function: cumulative serialization", atomicCount))
		}

		var hw string
		if isStore {
			hw = fmt.Sprintf(
				"seq_cst store on '%s' in '%s': lowers to XCHG on x86-64 "+
					"(implicit LOCK prefix, store buffer drain). release "+
					"ordering would emit plain MOV with zero fence cost on TSO.",
				site.VarName, fn.QualifiedName)
		} else {
			hw = fmt.Sprintf(
				"seq_cst %s on '%s' in '%s': lowers to LOCK-prefixed "+
					"instruction on x86-64. On TSO, acq_rel RMW emits the same "+
					"LOCK-prefixed op — no runtime cost difference, but seq_cst "+
					"prevents compiler reordering across the operation.",
				site.MethodName, site.VarName, fn.QualifiedName)
		}

		opClass := "rmw"
		if isStore {
			opClass = "store"
		}
		inLoop := "no"
		if site.InLoop {
			inLoop = "yes"
		}

		mitigation := "Use a release-ordered store where total order is not " +
			"required. On x86-64 TSO, release stores emit plain MOV (zero fence " +
			"cost). Verify no downstream load depends on SC total order before " +
			"weakening."
		if !isStore {
			mitigation = "Use an acq_rel-ordered RMW if total order is not " +
				"required. On x86-64, runtime cost is identical (LOCK prefix " +
				"either way), but weaker ordering enables compiler reordering " +
				"optimizations around the operation."
		}

		diags = append(diags, core.Diagnostic{
			RuleID:       r.ID(),
			Title:        r.Title(),
			Severity:     sev,
			Confidence:   confidence,
			EvidenceTier: evidenceTier,
			Location:     site.Loc,
			FunctionName: fn.QualifiedName,
			HardwareReasoning:  hw,
			StructuralEvidence: fmt.Sprintf(
				"op=%s; op_class=%s; var=%s; ordering=seq_cst; function=%s; in_loop=%s; total_seq_cst_in_func=%d",
				site.MethodName, opClass, site.VarName, fn.QualifiedName, inLoop, atomicCount),
			Mitigation:  mitigation,
			Escalations: escalations,
		})
	}

	return diags
}

func (OverlyStrongOrdering) AnalyzeRecord(*core.RecordDecl, core.LayoutProvider, core.EscapeModel, *core.Config) []core.Diagnostic {
	return nil
}

func (OverlyStrongOrdering) AnalyzeGlobal(*core.GlobalDecl, core.EscapeModel, *core.Config) []core.Diagnostic {
	return nil
}
