// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package rules

import (
	"fmt"
	"strings"

	"github.com/faultline/faultline/internal/core"
)

// AtomicContention flags hot functions whose atomic write volume signals
// cross-core cache line ownership thrashing.
type AtomicContention struct{}

var _ core.Rule = AtomicContention{}

func (AtomicContention) ID() string    { return "FL011" }
func (AtomicContention) Title() string { return "Atomic Contention Hotspot" }
func (AtomicContention) BaseSeverity() core.Severity { return core.Critical }
func (AtomicContention) HardwareMechanism() string {
	return "Cache line ownership thrashing via MESI RFO (Read-For-Ownership). " +
		"Each atomic write from a different core forces exclusive ownership " +
		"transfer (~40-100ns cross-core, ~100-300ns cross-socket). Store " +
		"buffer pressure from sustained atomic writes."
}

func (r AtomicContention) AnalyzeFunction(fn *core.FunctionDecl, oracle core.HotPathOracle, _ *core.Config) []core.Diagnostic {
	if fn == nil || !fn.HasBody || oracle == nil {
		return nil
	}
	if !oracle.IsFunctionHot(fn) {
		return nil
	}

	var writes []core.AtomicSite
	hasLoopWrite := false
	for _, site := range fn.Facts.Atomics {
		if site.Op == core.AtomicLoad {
			continue
		}
		writes = append(writes, site)
		if site.InLoop {
			hasLoopWrite = true
		}
	}

	writeCount := len(writes)
	if writeCount < 2 && !hasLoopWrite {
		return nil
	}

	var escalations []string
	if writeCount >= 3 {
		escalations = append(escalations,
			"3+ atomic writes per invocation: high store buffer pressure, sustained RFO traffic")
	}
	if hasLoopWrite {
		escalations = append(escalations,
			"Atomic write inside loop: per-iteration cache line ownership "+
				"transfer, store buffer saturation risk")
	}

	confidence := 0.65
	if hasLoopWrite {
		confidence = 0.80
	}

	ops := make([]string, 0, len(writes))
	for _, s := range writes {
		ops = append(ops, fmt.Sprintf("%s(%s)", s.MethodName, s.VarName))
	}
	loopWritesStr := "no"
	if hasLoopWrite {
		loopWritesStr = "yes"
	}

	diag := core.Diagnostic{
		RuleID:       r.ID(),
		Title:        r.Title(),
		Severity:     core.Critical,
		Confidence:   confidence,
		Location:     fn.Location,
		FunctionName: fn.QualifiedName,
		HardwareReasoning: fmt.Sprintf(
			"Hot function '%s' contains %d atomic write(s). Under multi-core "+
				"contention, each write triggers RFO cache line transfer. "+
				"Multiple writes compound store buffer drain latency and "+
				"coherence traffic.", fn.QualifiedName, writeCount),
		StructuralEvidence: fmt.Sprintf(
			"function=%s; atomic_writes=%d; loop_writes=%s; ops=[%s]",
			fn.QualifiedName, writeCount, loopWritesStr, strings.Join(ops, ", ")),
		Mitigation: "Shard atomic state per-core to eliminate cross-core RFO. " +
			"Batch updates to reduce write frequency. Redesign ownership model " +
			"to single-writer pattern. Consider per-goroutine accumulation " +
			"with periodic merge.",
		Escalations: escalations,
	}

	return []core.Diagnostic{diag}
}

func (AtomicContention) AnalyzeRecord(*core.RecordDecl, core.LayoutProvider, core.EscapeModel, *core.Config) []core.Diagnostic {
	return nil
}

func (AtomicContention) AnalyzeGlobal(*core.GlobalDecl, core.EscapeModel, *core.Config) []core.Diagnostic {
	return nil
}
