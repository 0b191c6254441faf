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

func TestDeepConditionalTree_ShallowNestingSkipped(t *testing.T) {
	cfg := core.Defaults()
	oracle := hotpath.New(&cfg)

	fn := &core.FunctionDecl{
		QualifiedName:    "pkg.Shallow",
		HasBody:          true,
		HasHotAnnotation: true,
		Facts:            core.FunctionFacts{MaxIfDepth: 2},
	}

	diags := DeepConditionalTree{}.AnalyzeFunction(fn, oracle, &cfg)
	if len(diags) != 0 {
		t.Fatalf("expected no diagnostics below the nesting threshold, got %d", len(diags))
	}
}

func TestDeepConditionalTree_DeepNestingEscalatesHigh(t *testing.T) {
	cfg := core.Defaults()
	oracle := hotpath.New(&cfg)

	fn := &core.FunctionDecl{
		QualifiedName:    "pkg.Deep",
		HasBody:          true,
		HasHotAnnotation: true,
		Facts:            core.FunctionFacts{MaxIfDepth: 7},
	}

	diags := DeepConditionalTree{}.AnalyzeFunction(fn, oracle, &cfg)
	if len(diags) != 1 {
		t.Fatalf("expected exactly one diagnostic, got %d", len(diags))
	}
	if diags[0].Severity != core.High {
		t.Errorf("expected High severity at depth 7, got %v", diags[0].Severity)
	}
}

func TestDeepConditionalTree_WideSwitchFlagged(t *testing.T) {
	cfg := core.Defaults()
	oracle := hotpath.New(&cfg)

	fn := &core.FunctionDecl{
		QualifiedName:    "pkg.Dispatch",
		HasBody:          true,
		HasHotAnnotation: true,
		Facts: core.FunctionFacts{
			Switches: []core.SwitchSite{{CaseCount: 10}},
		},
	}

	diags := DeepConditionalTree{}.AnalyzeFunction(fn, oracle, &cfg)
	if len(diags) != 1 {
		t.Fatalf("expected exactly one diagnostic, got %d", len(diags))
	}
	if diags[0].Severity != core.High {
		t.Errorf("expected High severity for a wide switch, got %v", diags[0].Severity)
	}
}

func TestDeepConditionalTree_NotHotSkipped(t *testing.T) {
	cfg := core.Defaults()
	oracle := hotpath.New(&cfg)

	fn := &core.FunctionDecl{
		QualifiedName: "pkg.ColdDeep",
		HasBody:       true,
		Facts:         core.FunctionFacts{MaxIfDepth: 7},
	}

	diags := DeepConditionalTree{}.AnalyzeFunction(fn, oracle, &cfg)
	if len(diags) != 0 {
		t.Fatalf("expected cold functions to be skipped, got %d diagnostics", len(diags))
	}
}
