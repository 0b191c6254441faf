// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package rules

import (
	"testing"

	"github.com/faultline/faultline/internal/analysis/escape"
	"github.com/faultline/faultline/internal/core"
)

func TestNUMAUnfriendly_SmallStructSkipped(t *testing.T) {
	rec := &core.RecordDecl{
		Name:       "Small",
		SizeBytes:  128,
		IsComplete: true,
		Fields:     []core.FieldSpec{{Name: "counter", IsAtomic: true}},
	}

	diags := NUMAUnfriendly{}.AnalyzeRecord(rec, nil, escape.Model{}, nil)
	if len(diags) != 0 {
		t.Fatalf("expected structs under 256B to be skipped, got %d diagnostics", len(diags))
	}
}

func TestNUMAUnfriendly_LargeSharedStructHigh(t *testing.T) {
	rec := &core.RecordDecl{
		Name:       "Shared",
		SizeBytes:  512,
		IsComplete: true,
		Fields: []core.FieldSpec{
			{Name: "a", IsMutable: true},
			{Name: "counter", IsAtomic: true},
		},
	}

	diags := NUMAUnfriendly{}.AnalyzeRecord(rec, nil, escape.Model{}, nil)
	if len(diags) != 1 {
		t.Fatalf("expected exactly one diagnostic, got %d", len(diags))
	}
	if diags[0].Severity != core.High {
		t.Errorf("expected High severity for a 512B struct, got %v", diags[0].Severity)
	}
}

func TestNUMAUnfriendly_OverPageSizeCritical(t *testing.T) {
	rec := &core.RecordDecl{
		Name:       "Huge",
		SizeBytes:  4096,
		IsComplete: true,
		Fields:     []core.FieldSpec{{Name: "counter", IsAtomic: true}},
	}

	diags := NUMAUnfriendly{}.AnalyzeRecord(rec, nil, escape.Model{}, nil)
	if len(diags) != 1 {
		t.Fatalf("expected exactly one diagnostic, got %d", len(diags))
	}
	if diags[0].Severity != core.Critical {
		t.Errorf("expected Critical severity for a 4KB struct, got %v", diags[0].Severity)
	}
}

func TestNUMAUnfriendly_NoThreadEscapeSkipped(t *testing.T) {
	rec := &core.RecordDecl{
		Name:       "PlainHuge",
		SizeBytes:  4096,
		IsComplete: true,
		Fields:     []core.FieldSpec{{Name: "payload", IsMutable: true}},
	}

	diags := NUMAUnfriendly{}.AnalyzeRecord(rec, nil, escape.Model{}, nil)
	if len(diags) != 0 {
		t.Fatalf("expected no diagnostics without thread-escape evidence, got %d", len(diags))
	}
}
