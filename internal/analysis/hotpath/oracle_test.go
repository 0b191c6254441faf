// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package hotpath

import (
	"testing"

	"github.com/faultline/faultline/internal/core"
)

func TestIsFunctionHot_Annotation(t *testing.T) {
	cfg := core.Defaults()
	o := New(&cfg)
	fn := &core.FunctionDecl{QualifiedName: "pkg.DoWork", HasHotAnnotation: true}

	if !o.IsFunctionHot(fn) {
		t.Error("expected annotated function to be hot")
	}
}

func TestIsFunctionHot_ConfigFunctionPattern(t *testing.T) {
	cfg := core.Defaults()
	cfg.HotFunctionPatterns = []string{"pkg.Hot*"}
	o := New(&cfg)

	hot := &core.FunctionDecl{QualifiedName: "pkg.HotLoop"}
	cold := &core.FunctionDecl{QualifiedName: "pkg.ColdPath"}

	if !o.IsFunctionHot(hot) {
		t.Error("expected pkg.HotLoop to match hot_function_patterns")
	}
	if o.IsFunctionHot(cold) {
		t.Error("expected pkg.ColdPath to not match hot_function_patterns")
	}
}

func TestIsFunctionHot_ConfigFilePattern(t *testing.T) {
	cfg := core.Defaults()
	cfg.HotFilePatterns = []string{"*/hotpath/*.go"}
	o := New(&cfg)

	fn := &core.FunctionDecl{QualifiedName: "pkg.F", File: "internal/hotpath/worker.go"}
	if !o.IsFunctionHot(fn) {
		t.Error("expected file pattern match to mark function hot")
	}
}

func TestIsFunctionHot_CachesVerdict(t *testing.T) {
	cfg := core.Defaults()
	o := New(&cfg)
	fn := &core.FunctionDecl{QualifiedName: "pkg.F", HasHotAnnotation: true}

	first := o.IsFunctionHot(fn)
	fn.HasHotAnnotation = false // mutate after caching; cached verdict should stick
	second := o.IsFunctionHot(fn)

	if first != second {
		t.Errorf("expected cached verdict to persist, got %v then %v", first, second)
	}
}

func TestIsFunctionHot_NilFunction(t *testing.T) {
	cfg := core.Defaults()
	o := New(&cfg)
	if o.IsFunctionHot(nil) {
		t.Error("expected nil function to be reported not hot")
	}
}

func TestMarkHot(t *testing.T) {
	cfg := core.Defaults()
	o := New(&cfg)
	fn := &core.FunctionDecl{QualifiedName: "pkg.Callee"}

	if o.IsFunctionHot(fn) {
		t.Fatal("expected pkg.Callee to start cold")
	}
	o.MarkHot(fn)
	if !o.IsFunctionHot(fn) {
		t.Error("expected MarkHot to force a hot verdict")
	}
}
