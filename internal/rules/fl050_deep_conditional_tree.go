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

// DeepConditionalTree flags deeply nested if-chains and wide switch
// statements in hot functions — both are branch-misprediction surface.
//
// The producer only carries the single deepest if-nesting site per
// function (FunctionFacts.MaxIfDepth/DeepestIfLoc), not every site that
// crosses the threshold in traversal order; this rule emits at most one
// nested-if diagnostic per function instead of deduplicating a site list.
type DeepConditionalTree struct{}

var _ core.Rule = DeepConditionalTree{}

func (DeepConditionalTree) ID() string    { return "FL050" }
func (DeepConditionalTree) Title() string { return "Deep Conditional Tree in Hot Path" }
func (DeepConditionalTree) BaseSeverity() core.Severity { return core.Medium }
func (DeepConditionalTree) HardwareMechanism() string {
	return "Deeply nested conditionals increase branch misprediction " +
		"surface. Each unpredictable branch costs ~14-20 cycles (pipeline " +
		"flush). Large switch statements on non-constant values pressure " +
		"the BTB and I-cache."
}

const wideSwitchCaseThreshold = 8
const deepNestingEscalationThreshold = 6

func (r DeepConditionalTree) AnalyzeFunction(fn *core.FunctionDecl, oracle core.HotPathOracle, cfg *core.Config) []core.Diagnostic {
	if fn == nil || !fn.HasBody || oracle == nil {
		return nil
	}
	if !oracle.IsFunctionHot(fn) {
		return nil
	}

	threshold := 4
	if cfg != nil && cfg.BranchDepthWarn > 0 {
		threshold = cfg.BranchDepthWarn
	}

	var diags []core.Diagnostic

	if fn.Facts.MaxIfDepth >= threshold {
		sev := core.Medium
		var escalations []string
		if fn.Facts.MaxIfDepth >= deepNestingEscalationThreshold {
			sev = core.High
			escalations = append(escalations, fmt.Sprintf(
				"Nesting depth %d: high branch entropy, compounding misprediction cost",
				fn.Facts.MaxIfDepth))
		}

		diags = append(diags, core.Diagnostic{
			RuleID:       r.ID(),
			Title:        r.Title(),
			Severity:     sev,
			Confidence:   0.50,
			Location:     fn.Facts.DeepestIfLoc,
			FunctionName: fn.QualifiedName,
			HardwareReasoning: fmt.Sprintf(
				"Conditional nesting depth %d in hot function '%s'. Each "+
					"nested branch is a prediction point. Deep trees create "+
					"correlated misprediction chains that defeat pattern-based "+
					"predictors.", fn.Facts.MaxIfDepth, fn.QualifiedName),
			StructuralEvidence: fmt.Sprintf(
				"function=%s; type=nested_if; depth=%d; max_depth=%d",
				fn.QualifiedName, fn.Facts.MaxIfDepth, fn.Facts.MaxIfDepth),
			Mitigation: "Flatten conditional logic with early returns. Use " +
				"table-driven dispatch. Precompute decision trees.",
			Escalations: escalations,
		})
	}

	for _, sw := range fn.Facts.Switches {
		if sw.CaseCount < wideSwitchCaseThreshold {
			continue
		}

		diags = append(diags, core.Diagnostic{
			RuleID:       r.ID(),
			Title:        r.Title(),
			Severity:     core.High,
			Confidence:   0.50,
			Location:     sw.Loc,
			FunctionName: fn.QualifiedName,
			HardwareReasoning: fmt.Sprintf(
				"switch statement with %d cases in hot function '%s'. A "+
					"non-constant switch generates a jump table or branch chain. "+
					"The BTB must predict the target from %d possibilities. "+
					"I-cache footprint scales with case count.",
				sw.CaseCount, fn.QualifiedName, sw.CaseCount),
			StructuralEvidence: fmt.Sprintf(
				"function=%s; type=switch; cases=%d; max_depth=%d",
				fn.QualifiedName, sw.CaseCount, fn.Facts.MaxIfDepth),
			Mitigation: "Use table-driven dispatch. Flatten conditional logic " +
				"with early returns. Precompute decision tables.",
			Escalations: []string{fmt.Sprintf(
				"Large switch (%d cases): BTB capacity pressure, I-cache bloat from jump table expansion",
				sw.CaseCount)},
		})
	}

	return diags
}

func (DeepConditionalTree) AnalyzeRecord(*core.RecordDecl, core.LayoutProvider, core.EscapeModel, *core.Config) []core.Diagnostic {
	return nil
}

func (DeepConditionalTree) AnalyzeGlobal(*core.GlobalDecl, core.EscapeModel, *core.Config) []core.Diagnostic {
	return nil
}
