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

// CentralizedDispatcher flags hot functions with high call fan-out, wide
// switch statements, or heavy interface-method use — the shape of a
// single-point message dispatcher that serializes all processing through
// one function.
type CentralizedDispatcher struct{}

var _ core.Rule = CentralizedDispatcher{}

func (CentralizedDispatcher) ID() string    { return "FL061" }
func (CentralizedDispatcher) Title() string { return "Centralized Dispatcher Bottleneck" }
func (CentralizedDispatcher) BaseSeverity() core.Severity { return core.High }
func (CentralizedDispatcher) HardwareMechanism() string {
	return "Single-point fan-out dispatcher serializes all message " +
		"processing through one function. Under load, this creates: " +
		"instruction cache pressure from a large dispatch body, branch " +
		"misprediction from polymorphic dispatch, and prevents per-core " +
		"locality of message-handling state."
}

func (r CentralizedDispatcher) AnalyzeFunction(fn *core.FunctionDecl, oracle core.HotPathOracle, _ *core.Config) []core.Diagnostic {
	if fn == nil || !fn.HasBody || oracle == nil {
		return nil
	}
	if !oracle.IsFunctionHot(fn) {
		return nil
	}

	info := fn.Facts.Dispatch

	isDispatcher := false
	var reason string
	switch {
	case info.CallCount >= 8:
		isDispatcher = true
		reason = fmt.Sprintf("%d call sites (high fan-out)", info.CallCount)
	case info.DeepestSwitchCases >= 6 && info.CallCount >= 3:
		isDispatcher = true
		reason = fmt.Sprintf("%d-case switch with %d call sites", info.DeepestSwitchCases, info.CallCount)
	case info.VirtualCallCount >= 3:
		isDispatcher = true
		reason = fmt.Sprintf("%d interface dispatch sites (polymorphic fan-out)", info.VirtualCallCount)
	}

	if !isDispatcher {
		return nil
	}

	sev := core.High
	var escalations []string

	if info.HasLoop {
		sev = core.Critical
		escalations = append(escalations,
			"Dispatch loop: per-iteration fan-out amplifies I-cache and BTB pressure")
	}
	if info.VirtualCallCount >= 3 && info.DeepestSwitchCases >= 4 {
		sev = core.Critical
		escalations = append(escalations,
			"Mixed dispatch: switch + interface calls compound branch misprediction surface")
	}

	hasLoop := "no"
	if info.HasLoop {
		hasLoop = "yes"
	}

	diag := core.Diagnostic{
		RuleID:       r.ID(),
		Title:        r.Title(),
		Severity:     sev,
		Confidence:   0.55,
		Location:     fn.Location,
		FunctionName: fn.QualifiedName,
		HardwareReasoning: fmt.Sprintf(
			"Hot function '%s' exhibits a centralized dispatcher pattern: %s. "+
				"Single-point fan-out serializes all processing, pressures "+
				"I-cache with a large dispatch body, and creates BTB contention "+
				"from multiple indirect targets.", fn.QualifiedName, reason),
		StructuralEvidence: fmt.Sprintf(
			"function=%s; callees=%d; virtual_calls=%d; switch_cases=%d; has_loop=%s",
			fn.QualifiedName, info.CallCount, info.VirtualCallCount, info.DeepestSwitchCases, hasLoop),
		Mitigation: "Partition dispatch by message type into separate " +
			"handlers. Use compile-time dispatch (generics, closed sum types) " +
			"where the type set is closed. Shard by core to eliminate " +
			"cross-core contention on dispatcher state. Consider table-driven " +
			"dispatch with a function-value map.",
		Escalations: escalations,
	}

	return []core.Diagnostic{diag}
}

func (CentralizedDispatcher) AnalyzeRecord(*core.RecordDecl, core.LayoutProvider, core.EscapeModel, *core.Config) []core.Diagnostic {
	return nil
}

func (CentralizedDispatcher) AnalyzeGlobal(*core.GlobalDecl, core.EscapeModel, *core.Config) []core.Diagnostic {
	return nil
}
