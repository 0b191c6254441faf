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

func TestVirtualDispatch_NonVirtualCallsSkipped(t *testing.T) {
	cfg := core.Defaults()
	oracle := hotpath.New(&cfg)

	fn := &core.FunctionDecl{
		QualifiedName:    "pkg.DirectCall",
		HasBody:          true,
		HasHotAnnotation: true,
		Facts: core.FunctionFacts{
			Calls: []core.CallSite{{CalleeName: "helper"}},
		},
	}

	diags := VirtualDispatch{}.AnalyzeFunction(fn, oracle, &cfg)
	if len(diags) != 0 {
		t.Fatalf("expected direct calls to be skipped, got %d diagnostics", len(diags))
	}
}

func TestVirtualDispatch_InterfaceCallFlaggedHigh(t *testing.T) {
	cfg := core.Defaults()
	oracle := hotpath.New(&cfg)

	fn := &core.FunctionDecl{
		QualifiedName:    "pkg.Handle",
		HasBody:          true,
		HasHotAnnotation: true,
		Facts: core.FunctionFacts{
			Calls: []core.CallSite{{CalleeName: "Process", IsVirtual: true}},
		},
	}

	diags := VirtualDispatch{}.AnalyzeFunction(fn, oracle, &cfg)
	if len(diags) != 1 {
		t.Fatalf("expected exactly one diagnostic, got %d", len(diags))
	}
	if diags[0].Severity != core.High {
		t.Errorf("expected High severity, got %v", diags[0].Severity)
	}
}

func TestVirtualDispatch_InterfaceCallInLoopEscalatesCritical(t *testing.T) {
	cfg := core.Defaults()
	oracle := hotpath.New(&cfg)

	fn := &core.FunctionDecl{
		QualifiedName:    "pkg.HandleAll",
		HasBody:          true,
		HasHotAnnotation: true,
		Facts: core.FunctionFacts{
			Calls: []core.CallSite{{CalleeName: "Process", IsVirtual: true, InLoop: true}},
		},
	}

	diags := VirtualDispatch{}.AnalyzeFunction(fn, oracle, &cfg)
	if len(diags) != 1 {
		t.Fatalf("expected exactly one diagnostic, got %d", len(diags))
	}
	if diags[0].Severity != core.Critical {
		t.Errorf("expected Critical severity for an interface call in a loop, got %v", diags[0].Severity)
	}
}
