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

func TestLargeStackFrame_BelowThresholdSkipped(t *testing.T) {
	cfg := core.Defaults()
	oracle := hotpath.New(&cfg)

	fn := &core.FunctionDecl{
		QualifiedName: "pkg.Small",
		HasBody:       true,
		Facts: core.FunctionFacts{
			Locals: []core.LocalVar{{Name: "buf", SizeBytes: 64}},
		},
	}

	diags := LargeStackFrame{}.AnalyzeFunction(fn, oracle, &cfg)
	if len(diags) != 0 {
		t.Fatalf("expected no diagnostics below the threshold, got %d", len(diags))
	}
}

func TestLargeStackFrame_ColdFunctionMedium(t *testing.T) {
	cfg := core.Defaults()
	oracle := hotpath.New(&cfg)

	fn := &core.FunctionDecl{
		QualifiedName: "pkg.BigLocals",
		HasBody:       true,
		Facts: core.FunctionFacts{
			Locals: []core.LocalVar{{Name: "scratch", SizeBytes: 4096}},
		},
	}

	diags := LargeStackFrame{}.AnalyzeFunction(fn, oracle, &cfg)
	if len(diags) != 1 {
		t.Fatalf("expected exactly one diagnostic, got %d", len(diags))
	}
	if diags[0].Severity != core.Medium {
		t.Errorf("expected Medium severity for a cold function, got %v", diags[0].Severity)
	}
}

func TestLargeStackFrame_HotFunctionOverPageCritical(t *testing.T) {
	cfg := core.Defaults()
	oracle := hotpath.New(&cfg)

	fn := &core.FunctionDecl{
		QualifiedName:    "pkg.HotBigLocals",
		HasBody:          true,
		HasHotAnnotation: true,
		Facts: core.FunctionFacts{
			Locals: []core.LocalVar{{Name: "scratch", SizeBytes: 8192}},
		},
	}

	diags := LargeStackFrame{}.AnalyzeFunction(fn, oracle, &cfg)
	if len(diags) != 1 {
		t.Fatalf("expected exactly one diagnostic, got %d", len(diags))
	}
	if diags[0].Severity != core.Critical {
		t.Errorf("expected Critical severity for a hot function over page size, got %v", diags[0].Severity)
	}
}

func TestLargeStackFrame_ByReferenceLocalsExcluded(t *testing.T) {
	cfg := core.Defaults()
	oracle := hotpath.New(&cfg)

	fn := &core.FunctionDecl{
		QualifiedName: "pkg.RefOnly",
		HasBody:       true,
		Facts: core.FunctionFacts{
			Locals: []core.LocalVar{{Name: "ptr", SizeBytes: 4096, IsByReference: true}},
		},
	}

	diags := LargeStackFrame{}.AnalyzeFunction(fn, oracle, &cfg)
	if len(diags) != 0 {
		t.Fatalf("expected by-reference locals to be excluded from frame size, got %d diagnostics", len(diags))
	}
}
