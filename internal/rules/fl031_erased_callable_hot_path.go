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

// ErasedCallableHotPath flags type-erased callable values (func-typed or
// interface-typed fields/locals standing in for std::function) invoked or
// constructed inside hot functions.
type ErasedCallableHotPath struct{}

var _ core.Rule = ErasedCallableHotPath{}

func (ErasedCallableHotPath) ID() string    { return "FL031" }
func (ErasedCallableHotPath) Title() string { return "Type-Erased Callable in Hot Path" }
func (ErasedCallableHotPath) BaseSeverity() core.Severity { return core.High }
func (ErasedCallableHotPath) HardwareMechanism() string {
	return "A type-erased callable value uses indirect function storage. " +
		"Invocation requires an indirect call (BTB pressure). Construction " +
		"may heap-allocate the closure's captured state. Prevents inlining."
}

func (r ErasedCallableHotPath) AnalyzeFunction(fn *core.FunctionDecl, oracle core.HotPathOracle, _ *core.Config) []core.Diagnostic {
	if fn == nil || !fn.HasBody || oracle == nil {
		return nil
	}
	if !oracle.IsFunctionHot(fn) {
		return nil
	}

	var erasedParams []core.ParamSpec
	for _, p := range fn.Params {
		if p.IsErasedCallable {
			erasedParams = append(erasedParams, p)
		}
	}

	var sites []core.ErasedCallableSite
	for _, site := range fn.Facts.ErasedCallables {
		if site.Kind == "invoke" || site.Kind == "construct" {
			sites = append(sites, site)
		}
	}

	if len(sites) == 0 && len(erasedParams) == 0 {
		return nil
	}

	seenLocs := make(map[core.SourceLocation]bool, len(sites))
	var diags []core.Diagnostic
	for _, site := range sites {
		seenLocs[site.Loc] = true
		sev := core.High
		var escalations []string

		kindStr := "invocation"
		if site.Kind == "construct" {
			kindStr = "construction"
		}

		// Loop membership is not tracked per erased-callable site; escalate
		// solely on construction-in-hot-path, the simpler of the original's
		// two escalation signals.
		if site.Kind == "construct" {
			escalations = append(escalations,
				"Type-erased callable constructed in hot path: may heap-allocate captured state")
		}

		diags = append(diags, core.Diagnostic{
			RuleID:       r.ID(),
			Title:        r.Title(),
			Severity:     sev,
			Confidence:   0.80,
			EvidenceTier: core.Proven,
			Location:     site.Loc,
			FunctionName: fn.QualifiedName,
			HardwareReasoning: fmt.Sprintf(
				"Type-erased callable %s in hot function '%s'. The erasure "+
					"forces an indirect call through a function value (BTB "+
					"lookup, pipeline flush on mispredict). Prevents compiler "+
					"inlining of the callable.", kindStr, fn.QualifiedName),
			StructuralEvidence: fmt.Sprintf(
				"erased_callable_%s; caller=%s; hot_path=true", kindStr, fn.QualifiedName),
			Mitigation: "Use a generic type parameter for the callable. Inline " +
				"the closure at the call site. Use a concrete function value if " +
				"the target is known. Use a closed sum-type switch for fixed " +
				"type sets.",
			Escalations: escalations,
		})
	}

	for _, p := range erasedParams {
		if seenLocs[fn.Location] {
			continue
		}
		seenLocs[fn.Location] = true

		diags = append(diags, core.Diagnostic{
			RuleID:       r.ID(),
			Title:        r.Title(),
			Severity:     core.High,
			Confidence:   0.80,
			EvidenceTier: core.Proven,
			Location:     fn.Location,
			FunctionName: fn.QualifiedName,
			HardwareReasoning: fmt.Sprintf(
				"Parameter '%s' of hot function '%s' is a type-erased callable. "+
					"Every call through it is an indirect call through a function "+
					"value, regardless of how the argument was constructed at the "+
					"call site.", p.Name, fn.QualifiedName),
			StructuralEvidence: fmt.Sprintf(
				"erased_callable_parameter=%s; caller=%s; hot_path=true", p.Name, fn.QualifiedName),
			Mitigation: "Use a generic type parameter for the callable. Inline " +
				"the closure at the call site. Use a concrete function value if " +
				"the target is known. Use a closed sum-type switch for fixed " +
				"type sets.",
		})
	}

	return diags
}

func (ErasedCallableHotPath) AnalyzeRecord(*core.RecordDecl, core.LayoutProvider, core.EscapeModel, *core.Config) []core.Diagnostic {
	return nil
}

func (ErasedCallableHotPath) AnalyzeGlobal(*core.GlobalDecl, core.EscapeModel, *core.Config) []core.Diagnostic {
	return nil
}
