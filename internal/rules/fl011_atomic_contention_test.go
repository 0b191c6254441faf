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

func TestAtomicContention_SingleWriteSkipped(t *testing.T) {
	cfg := core.Defaults()
	oracle := hotpath.New(&cfg)

	fn := &core.FunctionDecl{
		QualifiedName:    "pkg.Bump",
		HasBody:          true,
		HasHotAnnotation: true,
		Facts: core.FunctionFacts{
			Atomics: []core.AtomicSite{{VarName: "n", MethodName: "Add", Op: core.AtomicRMW}},
		},
	}

	diags := AtomicContention{}.AnalyzeFunction(fn, oracle, &cfg)
	if len(diags) != 0 {
		t.Fatalf("expected a single atomic write to be skipped, got %d diagnostics", len(diags))
	}
}

func TestAtomicContention_MultipleWritesFlagged(t *testing.T) {
	cfg := core.Defaults()
	oracle := hotpath.New(&cfg)

	fn := &core.FunctionDecl{
		QualifiedName:    "pkg.Publish",
		HasBody:          true,
		HasHotAnnotation: true,
		Facts: core.FunctionFacts{
			Atomics: []core.AtomicSite{
				{VarName: "seq", MethodName: "Store", Op: core.AtomicStore},
				{VarName: "n", MethodName: "Add", Op: core.AtomicRMW},
			},
		},
	}

	diags := AtomicContention{}.AnalyzeFunction(fn, oracle, &cfg)
	if len(diags) != 1 {
		t.Fatalf("expected exactly one diagnostic, got %d", len(diags))
	}
	if diags[0].Severity != core.Critical {
		t.Errorf("expected Critical severity, got %v", diags[0].Severity)
	}
}

func TestAtomicContention_LoopWriteAloneFlagged(t *testing.T) {
	cfg := core.Defaults()
	oracle := hotpath.New(&cfg)

	fn := &core.FunctionDecl{
		QualifiedName:    "pkg.LoopBump",
		HasBody:          true,
		HasHotAnnotation: true,
		Facts: core.FunctionFacts{
			Atomics: []core.AtomicSite{{VarName: "n", MethodName: "Add", Op: core.AtomicRMW, InLoop: true}},
		},
	}

	diags := AtomicContention{}.AnalyzeFunction(fn, oracle, &cfg)
	if len(diags) != 1 {
		t.Fatalf("expected exactly one diagnostic, got %d", len(diags))
	}
	if diags[0].Confidence < 0.79 {
		t.Errorf("expected elevated confidence for a loop write, got %v", diags[0].Confidence)
	}
}
