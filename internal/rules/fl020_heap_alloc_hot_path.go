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

// HeapAllocHotPath flags heap-allocation-shaped constructs (make, new,
// container/closure construction) inside hot functions.
type HeapAllocHotPath struct{}

var _ core.Rule = HeapAllocHotPath{}

func (HeapAllocHotPath) ID() string    { return "FL020" }
func (HeapAllocHotPath) Title() string { return "Heap Allocation in Hot Path" }
func (HeapAllocHotPath) BaseSeverity() core.Severity { return core.Critical }
func (HeapAllocHotPath) HardwareMechanism() string {
	return "Allocator lock contention (Go's mcentral/mcache locks under " +
		"pressure). TLB pressure from new page mappings. GC scan and mark " +
		"cost proportional to live heap objects. Heap fragmentation degrades " +
		"spatial locality."
}

func (r HeapAllocHotPath) AnalyzeFunction(fn *core.FunctionDecl, oracle core.HotPathOracle, _ *core.Config) []core.Diagnostic {
	if fn == nil || !fn.HasBody || oracle == nil {
		return nil
	}
	if !oracle.IsFunctionHot(fn) {
		return nil
	}

	var diags []core.Diagnostic
	for _, site := range fn.Facts.Allocs {
		var escalations []string
		if site.InLoop {
			escalations = append(escalations,
				"Allocation inside loop: per-iteration allocator pressure, "+
					"compounding GC and fragmentation cost")
		}

		inLoop := "no"
		if site.InLoop {
			inLoop = "yes"
		}

		diags = append(diags, core.Diagnostic{
			RuleID:       r.ID(),
			Title:        r.Title(),
			Severity:     core.Critical,
			Confidence:   0.75,
			EvidenceTier: core.Likely,
			Location:     site.Loc,
			FunctionName: fn.QualifiedName,
			HardwareReasoning: fmt.Sprintf(
				"'%s' in hot function '%s'. Each allocation may contend on "+
					"allocator locks, trigger a new span mapping, fault pages "+
					"into the TLB, and fragment the heap, reducing spatial "+
					"locality.", site.Kind, fn.QualifiedName),
			StructuralEvidence: fmt.Sprintf(
				"alloc_kind=%s; function=%s; in_loop=%s; hot_path=true",
				site.Kind, fn.QualifiedName, inLoop),
			Mitigation: "Preallocate buffers. Use sync.Pool or a slab/arena " +
				"allocator. Move allocation to a cold initialization path. " +
				"Reserve slice capacity upfront with make.",
			Escalations: escalations,
		})
	}

	return diags
}

func (HeapAllocHotPath) AnalyzeRecord(*core.RecordDecl, core.LayoutProvider, core.EscapeModel, *core.Config) []core.Diagnostic {
	return nil
}

func (HeapAllocHotPath) AnalyzeGlobal(*core.GlobalDecl, core.EscapeModel, *core.Config) []core.Diagnostic {
	return nil
}
