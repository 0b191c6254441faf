// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package rules

import (
	"testing"

	"github.com/faultline/faultline/internal/analysis/cacheline"
	"github.com/faultline/faultline/internal/analysis/escape"
	"github.com/faultline/faultline/internal/core"
)

func TestFalseSharing_AtomicPairSameLineFlaggedCritical(t *testing.T) {
	rec := &core.RecordDecl{
		Name:       "Counters",
		SizeBytes:  16,
		IsComplete: true,
		Fields: []core.FieldSpec{
			{Name: "hits", Offset: 0, Size: 8, IsAtomic: true, IsMutable: true},
			{Name: "misses", Offset: 8, Size: 8, IsAtomic: true, IsMutable: true},
		},
	}

	provider := cacheline.Provider{CacheLineBytes: 64}
	diags := FalseSharing{}.AnalyzeRecord(rec, provider, escape.Model{}, nil)

	if len(diags) != 1 {
		t.Fatalf("expected exactly one diagnostic, got %d", len(diags))
	}
	if diags[0].Severity != core.Critical {
		t.Errorf("expected Critical severity, got %v", diags[0].Severity)
	}
	if diags[0].EvidenceTier != core.Proven {
		t.Errorf("expected Proven evidence tier for an atomic pair, got %v", diags[0].EvidenceTier)
	}
}

func TestFalseSharing_NoThreadEscapeSkipped(t *testing.T) {
	rec := &core.RecordDecl{
		Name:       "PlainPair",
		SizeBytes:  16,
		IsComplete: true,
		Fields: []core.FieldSpec{
			{Name: "a", Offset: 0, Size: 8, IsMutable: true},
			{Name: "b", Offset: 8, Size: 8, IsMutable: true},
		},
	}

	provider := cacheline.Provider{CacheLineBytes: 64}
	diags := FalseSharing{}.AnalyzeRecord(rec, provider, escape.Model{}, nil)

	if len(diags) != 0 {
		t.Fatalf("expected no diagnostics without thread-escape evidence, got %d", len(diags))
	}
}
