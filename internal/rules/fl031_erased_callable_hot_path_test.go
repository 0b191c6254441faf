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

func TestErasedCallableHotPath_NoSitesOrParamsSkipped(t *testing.T) {
	cfg := core.Defaults()
	oracle := hotpath.New(&cfg)

	fn := &core.FunctionDecl{QualifiedName: "pkg.Plain", HasBody: true, HasHotAnnotation: true}

	diags := ErasedCallableHotPath{}.AnalyzeFunction(fn, oracle, &cfg)
	if len(diags) != 0 {
		t.Fatalf("expected no diagnostics without erased-callable evidence, got %d", len(diags))
	}
}

func TestErasedCallableHotPath_InvokeFlaggedHigh(t *testing.T) {
	cfg := core.Defaults()
	oracle := hotpath.New(&cfg)

	fn := &core.FunctionDecl{
		QualifiedName:    "pkg.Dispatch",
		HasBody:          true,
		HasHotAnnotation: true,
		Facts: core.FunctionFacts{
			ErasedCallables: []core.ErasedCallableSite{{Kind: "invoke"}},
		},
	}

	diags := ErasedCallableHotPath{}.AnalyzeFunction(fn, oracle, &cfg)
	if len(diags) != 1 {
		t.Fatalf("expected exactly one diagnostic, got %d", len(diags))
	}
	if diags[0].Severity != core.High {
		t.Errorf("expected High severity, got %v", diags[0].Severity)
	}
	if len(diags[0].Escalations) != 0 {
		t.Errorf("expected no escalation for a plain invocation, got %v", diags[0].Escalations)
	}
}

func TestErasedCallableHotPath_ConstructEscalates(t *testing.T) {
	cfg := core.Defaults()
	oracle := hotpath.New(&cfg)

	fn := &core.FunctionDecl{
		QualifiedName:    "pkg.Build",
		HasBody:          true,
		HasHotAnnotation: true,
		Facts: core.FunctionFacts{
			ErasedCallables: []core.ErasedCallableSite{{Kind: "construct"}},
		},
	}

	diags := ErasedCallableHotPath{}.AnalyzeFunction(fn, oracle, &cfg)
	if len(diags) != 1 {
		t.Fatalf("expected exactly one diagnostic, got %d", len(diags))
	}
	if len(diags[0].Escalations) == 0 {
		t.Errorf("expected a construction escalation, got none")
	}
}

func TestErasedCallableHotPath_ErasedParamAloneFlagged(t *testing.T) {
	cfg := core.Defaults()
	oracle := hotpath.New(&cfg)

	fn := &core.FunctionDecl{
		QualifiedName:    "pkg.TakesCallback",
		HasBody:          true,
		HasHotAnnotation: true,
		Params:           []core.ParamSpec{{Name: "onDone", IsErasedCallable: true}},
	}

	diags := ErasedCallableHotPath{}.AnalyzeFunction(fn, oracle, &cfg)
	if len(diags) != 1 {
		t.Fatalf("expected one diagnostic for the erased-callable parameter, got %d", len(diags))
	}
}
