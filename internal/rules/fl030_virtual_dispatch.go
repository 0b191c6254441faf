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

// VirtualDispatch flags interface-method calls (the Go binding of virtual
// dispatch) inside hot functions.
type VirtualDispatch struct{}

var _ core.Rule = VirtualDispatch{}

func (VirtualDispatch) ID() string    { return "FL030" }
func (VirtualDispatch) Title() string { return "Virtual Dispatch in Hot Path" }
func (VirtualDispatch) BaseSeverity() core.Severity { return core.High }
func (VirtualDispatch) HardwareMechanism() string {
	return "Indirect branch via interface method table lookup. BTB (Branch " +
		"Target Buffer) lookup required. Misprediction causes a full pipeline " +
		"flush (~14-20 cycle penalty on modern x86). Polymorphic call sites " +
		"with multiple targets degrade BTB hit rate."
}

func (r VirtualDispatch) AnalyzeFunction(fn *core.FunctionDecl, oracle core.HotPathOracle, _ *core.Config) []core.Diagnostic {
	if fn == nil || !fn.HasBody || oracle == nil {
		return nil
	}
	if !oracle.IsFunctionHot(fn) {
		return nil
	}

	var diags []core.Diagnostic
	for _, site := range fn.Facts.Calls {
		if !site.IsVirtual {
			continue
		}

		sev := core.High
		var escalations []string
		if site.InLoop {
			sev = core.Critical
			escalations = append(escalations,
				"Interface call inside loop: repeated indirect branch, BTB "+
					"capacity pressure, sustained pipeline flush risk")
		}

		inLoop := "no"
		if site.InLoop {
			inLoop = "yes"
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
				"Interface call to '%s' in hot function '%s'. Requires an "+
					"itab/method-table dereference (potential L1D miss if cold) "+
					"followed by an indirect branch. BTB misprediction flushes "+
					"the entire pipeline.", site.CalleeName, fn.QualifiedName),
			StructuralEvidence: fmt.Sprintf(
				"virtual_call=%s; caller=%s; in_loop=%s; hot_path=true",
				site.CalleeName, fn.QualifiedName, inLoop),
			Mitigation: "Use a concrete type or generics for static dispatch. " +
				"Use a closed sum-type switch for fixed type sets. Use a " +
				"function value with a known target. Consider code generation " +
				"for the hot type set.",
			Escalations: escalations,
		})
	}

	return diags
}

func (VirtualDispatch) AnalyzeRecord(*core.RecordDecl, core.LayoutProvider, core.EscapeModel, *core.Config) []core.Diagnostic {
	return nil
}

func (VirtualDispatch) AnalyzeGlobal(*core.GlobalDecl, core.EscapeModel, *core.Config) []core.Diagnostic {
	return nil
}
