// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package rules

import (
	"testing"

	"github.com/faultline/faultline/internal/analysis/hotpath"
	"github.com/faultline/faultline/internal/core"
)

func TestHeapAllocHotPath_NoAllocsSkipped(t *testing.T) {
	cfg := core.Defaults()
	oracle := hotpath.New(&cfg)

	fn := &core.FunctionDecl{QualifiedName: "pkg.NoAlloc", HasBody: true, HasHotAnnotation: true}

	diags := HeapAllocHotPath{}.AnalyzeFunction(fn, oracle, &cfg)
	if len(diags) != 0 {
		t.Fatalf("expected no diagnostics without alloc sites, got %d", len(diags))
	}
}

func TestHeapAllocHotPath_AllocFlaggedCritical(t *testing.T) {
	cfg := core.Defaults()
	oracle := hotpath.New(&cfg)

	fn := &core.FunctionDecl{
		QualifiedName:    "pkg.Build",
		HasBody:          true,
		HasHotAnnotation: true,
		Facts: core.FunctionFacts{
			Allocs: []core.AllocSite{{Kind: "make"}},
		},
	}

	diags := HeapAllocHotPath{}.AnalyzeFunction(fn, oracle, &cfg)
	if len(diags) != 1 {
		t.Fatalf("expected exactly one diagnostic, got %d", len(diags))
	}
	if diags[0].Severity != core.Critical {
		t.Errorf("expected Critical severity, got %v", diags[0].Severity)
	}
}

func TestHeapAllocHotPath_LoopAllocEscalates(t *testing.T) {
	cfg := core.Defaults()
	oracle := hotpath.New(&cfg)

	fn := &core.FunctionDecl{
		QualifiedName:    "pkg.LoopBuild",
		HasBody:          true,
		HasHotAnnotation: true,
		Facts: core.FunctionFacts{
			Allocs: []core.AllocSite{{Kind: "new", InLoop: true}},
		},
	}

	diags := HeapAllocHotPath{}.AnalyzeFunction(fn, oracle, &cfg)
	if len(diags) != 1 {
		t.Fatalf("expected exactly one diagnostic, got %d", len(diags))
	}
	if len(diags[0].Escalations) == 0 {
		t.Errorf("expected a loop-allocation escalation, got none")
	}
}
