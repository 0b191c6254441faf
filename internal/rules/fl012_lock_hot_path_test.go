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

func TestLockHotPath_NoLocksSkipped(t *testing.T) {
	cfg := core.Defaults()
	oracle := hotpath.New(&cfg)

	fn := &core.FunctionDecl{QualifiedName: "pkg.NoLock", HasBody: true, HasHotAnnotation: true}

	diags := LockHotPath{}.AnalyzeFunction(fn, oracle, &cfg)
	if len(diags) != 0 {
		t.Fatalf("expected no diagnostics without lock sites, got %d", len(diags))
	}
}

func TestLockHotPath_LockSiteFlaggedCritical(t *testing.T) {
	cfg := core.Defaults()
	oracle := hotpath.New(&cfg)

	fn := &core.FunctionDecl{
		QualifiedName:    "pkg.Guarded",
		HasBody:          true,
		HasHotAnnotation: true,
		Facts: core.FunctionFacts{
			Locks: []core.LockSite{{ReceiverName: "mu"}},
		},
	}

	diags := LockHotPath{}.AnalyzeFunction(fn, oracle, &cfg)
	if len(diags) != 1 {
		t.Fatalf("expected exactly one diagnostic, got %d", len(diags))
	}
	if diags[0].Severity != core.Critical {
		t.Errorf("expected Critical severity, got %v", diags[0].Severity)
	}
}

func TestLockHotPath_NestedLockEscalates(t *testing.T) {
	cfg := core.Defaults()
	oracle := hotpath.New(&cfg)

	fn := &core.FunctionDecl{
		QualifiedName:    "pkg.DoubleLocked",
		HasBody:          true,
		HasHotAnnotation: true,
		Facts: core.FunctionFacts{
			Locks: []core.LockSite{{ReceiverName: "mu", Nested: true}},
		},
	}

	diags := LockHotPath{}.AnalyzeFunction(fn, oracle, &cfg)
	if len(diags) != 1 {
		t.Fatalf("expected exactly one diagnostic, got %d", len(diags))
	}
	if len(diags[0].Escalations) == 0 {
		t.Errorf("expected a nested-lock escalation, got none")
	}
}

func TestLockHotPath_NotHotSkipped(t *testing.T) {
	cfg := core.Defaults()
	oracle := hotpath.New(&cfg)

	fn := &core.FunctionDecl{
		QualifiedName: "pkg.ColdGuarded",
		HasBody:       true,
		Facts: core.FunctionFacts{
			Locks: []core.LockSite{{ReceiverName: "mu"}},
		},
	}

	diags := LockHotPath{}.AnalyzeFunction(fn, oracle, &cfg)
	if len(diags) != 0 {
		t.Fatalf("expected cold functions to be skipped, got %d diagnostics", len(diags))
	}
}
