// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ir

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/faultline/faultline/internal/core"
)

func TestRefine_FL010BoostsOnSeqCst(t *testing.T) {
	profiles := ProfileMap{
		"pkg.Hot": {MangledName: "pkg.Hot", DemangledName: "pkg.Hot", SeqCstCount: 1},
	}
	rf := NewRefiner(profiles)

	d := core.Diagnostic{
		RuleID:             "FL010",
		FunctionName:       "pkg.Hot",
		Confidence:         0.70,
		StructuralEvidence: "function=pkg.Hot",
	}

	out := rf.Refine(d)
	require.InDelta(t, 0.75, out.Confidence, 0.001)
	require.NotEmpty(t, out.Escalations)
	require.NotEqual(t, core.Proven, out.EvidenceTier)
}

func TestRefine_FL010PromotesToProvenOnExactSiteMatch(t *testing.T) {
	profiles := ProfileMap{
		"pkg.Hot": {
			MangledName:   "pkg.Hot",
			DemangledName: "pkg.Hot",
			SeqCstCount:   1,
			Atomics:       []AtomicInfo{{Op: AtomicLoad, Ordering: "seq_cst", SourceFile: "hot.go", SourceLine: 12}},
		},
	}
	rf := NewRefiner(profiles)

	d := core.Diagnostic{
		RuleID:             "FL010",
		FunctionName:       "pkg.Hot",
		Confidence:         0.70,
		StructuralEvidence: "function=pkg.Hot",
		Location:           core.SourceLocation{File: "hot.go", Line: 12},
	}

	out := rf.Refine(d)
	require.InDelta(t, 0.80, out.Confidence, 0.001)
	require.Equal(t, core.Proven, out.EvidenceTier)
}

func TestRefine_FL010ReducesWithoutSeqCst(t *testing.T) {
	profiles := ProfileMap{
		"pkg.Hot": {
			MangledName:   "pkg.Hot",
			DemangledName: "pkg.Hot",
			Atomics:       []AtomicInfo{{Op: AtomicLoad, Ordering: "acquire"}},
		},
	}
	rf := NewRefiner(profiles)

	d := core.Diagnostic{
		RuleID:             "FL010",
		FunctionName:       "pkg.Hot",
		Confidence:         0.70,
		StructuralEvidence: "function=pkg.Hot",
	}

	out := rf.Refine(d)
	require.InDelta(t, 0.50, out.Confidence, 0.001)
}

func TestRefine_FL011PromotesToProvenOnSiteWithinFunction(t *testing.T) {
	profiles := ProfileMap{
		"pkg.Hot": {
			MangledName:   "pkg.Hot",
			DemangledName: "pkg.Hot",
			Atomics:       []AtomicInfo{{Op: AtomicRMW, SourceFile: "hot.go", SourceLine: 20}},
		},
	}
	rf := NewRefiner(profiles)

	d := core.Diagnostic{
		RuleID:       "FL011",
		FunctionName: "pkg.Hot",
		Confidence:   0.70,
		Location:     core.SourceLocation{File: "hot.go", Line: 15},
	}

	out := rf.Refine(d)
	require.InDelta(t, 0.80, out.Confidence, 0.001)
	require.Equal(t, core.Proven, out.EvidenceTier)
}

func TestRefine_FL011BoostsWithoutSitedWrite(t *testing.T) {
	profiles := ProfileMap{
		"pkg.Hot": {
			MangledName:   "pkg.Hot",
			DemangledName: "pkg.Hot",
			Atomics:       []AtomicInfo{{Op: AtomicRMW, SourceFile: "other.go", SourceLine: 20}},
		},
	}
	rf := NewRefiner(profiles)

	d := core.Diagnostic{
		RuleID:       "FL011",
		FunctionName: "pkg.Hot",
		Confidence:   0.70,
		Location:     core.SourceLocation{File: "hot.go", Line: 15},
	}

	out := rf.Refine(d)
	require.InDelta(t, 0.80, out.Confidence, 0.001)
	require.NotEqual(t, core.Proven, out.EvidenceTier)
}

func TestRefine_FL012PromotesToProvenOnExactLockSiteMatch(t *testing.T) {
	profiles := ProfileMap{
		"pkg.Hot": {
			MangledName:   "pkg.Hot",
			DemangledName: "pkg.Hot",
			LockCalls:     []CallSiteInfo{{CalleeName: "sync.Mutex.Lock", SourceFile: "hot.go", SourceLine: 6}},
		},
	}
	rf := NewRefiner(profiles)

	d := core.Diagnostic{
		RuleID:       "FL012",
		FunctionName: "pkg.Hot",
		Confidence:   0.70,
		Location:     core.SourceLocation{File: "hot.go", Line: 6},
	}

	out := rf.Refine(d)
	require.InDelta(t, 0.80, out.Confidence, 0.001)
	require.Equal(t, core.Proven, out.EvidenceTier)
}

func TestRefine_FL012BoostsWithoutExactLockSiteMatch(t *testing.T) {
	profiles := ProfileMap{
		"pkg.Hot": {
			MangledName:   "pkg.Hot",
			DemangledName: "pkg.Hot",
			LockCalls:     []CallSiteInfo{{CalleeName: "sync.Mutex.Lock", SourceFile: "hot.go", SourceLine: 9}},
		},
	}
	rf := NewRefiner(profiles)

	d := core.Diagnostic{
		RuleID:       "FL012",
		FunctionName: "pkg.Hot",
		Confidence:   0.70,
		Location:     core.SourceLocation{File: "hot.go", Line: 6},
	}

	out := rf.Refine(d)
	require.InDelta(t, 0.78, out.Confidence, 0.001)
	require.NotEqual(t, core.Proven, out.EvidenceTier)
}

func TestRefine_FL021SuppressesNegligibleFrame(t *testing.T) {
	profiles := ProfileMap{
		"pkg.Hot": {MangledName: "pkg.Hot", DemangledName: "pkg.Hot", TotalAllocaBytes: 2},
	}
	rf := NewRefiner(profiles)

	d := core.Diagnostic{
		RuleID:             "FL021",
		HardwareReasoning:  "Function 'pkg.Hot' has an estimated stack frame of 1024 bytes",
		StructuralEvidence: "estimated_frame=1024",
		Confidence:         0.70,
		EvidenceTier:       core.Likely,
	}

	out := rf.Refine(d)
	require.True(t, out.Suppressed)
	require.Equal(t, core.Speculative, out.EvidenceTier)
}

func TestRefine_FL021BoostsAndAnnotatesLargeFrame(t *testing.T) {
	profiles := ProfileMap{
		"pkg.Hot": {
			MangledName:      "pkg.Hot",
			DemangledName:    "pkg.Hot",
			TotalAllocaBytes: 4096,
			Allocas:          []AllocaInfo{{Name: "buf", SizeBytes: 4096}},
		},
	}
	rf := NewRefiner(profiles)

	d := core.Diagnostic{
		RuleID:             "FL021",
		HardwareReasoning:  "Function 'pkg.Hot' has an estimated stack frame of 1024 bytes",
		StructuralEvidence: "estimated_frame=1024",
		Confidence:         0.70,
	}

	out := rf.Refine(d)
	require.InDelta(t, 0.80, out.Confidence, 0.001)
	require.False(t, out.Suppressed)
	require.Contains(t, out.StructuralEvidence, "ir_frame=4096")
	found := false
	for _, e := range out.Escalations {
		if strings.Contains(e, "2x") {
			found = true
		}
	}
	require.True(t, found, "expected a >2x escalation, got %v", out.Escalations)
}

func TestRefine_FL030WalksBackOnDevirtualization(t *testing.T) {
	profiles := ProfileMap{
		"pkg.Hot": {MangledName: "pkg.Hot", DemangledName: "pkg.Hot", DirectCallCount: 3},
	}
	rf := NewRefiner(profiles)

	d := core.Diagnostic{
		RuleID:             "FL030",
		FunctionName:       "pkg.Hot",
		Confidence:         0.70,
		StructuralEvidence: "function=pkg.Hot",
	}

	out := rf.Refine(d)
	require.InDelta(t, 0.45, out.Confidence, 0.001)
}

func TestRefine_FL090SumsSignals(t *testing.T) {
	profiles := ProfileMap{
		"pkg.Hot": {
			MangledName:       "pkg.Hot",
			DemangledName:     "pkg.Hot",
			Atomics:           []AtomicInfo{{Op: AtomicStore}},
			HeapAllocCalls:    []CallSiteInfo{{CalleeName: "runtime.newobject"}},
			IndirectCallCount: 1,
		},
	}
	rf := NewRefiner(profiles)

	d := core.Diagnostic{
		RuleID:             "FL090",
		FunctionName:       "pkg.Hot",
		Confidence:         0.70,
		StructuralEvidence: "function=pkg.Hot",
	}

	out := rf.Refine(d)
	require.InDelta(t, 0.85, out.Confidence, 0.001)
}

func TestRefine_NoProfilePassesThrough(t *testing.T) {
	rf := NewRefiner(ProfileMap{})
	d := core.Diagnostic{RuleID: "FL010", FunctionName: "pkg.Missing", Confidence: 0.70}
	out := rf.Refine(d)
	require.Equal(t, d.Confidence, out.Confidence)
	require.Empty(t, out.Escalations)
}

func TestRefine_StructuralRuleUnaffected(t *testing.T) {
	profiles := ProfileMap{
		"pkg.Hot": {MangledName: "pkg.Hot", DemangledName: "pkg.Hot", SeqCstCount: 5},
	}
	rf := NewRefiner(profiles)
	d := core.Diagnostic{RuleID: "FL001", FunctionName: "pkg.Hot", Confidence: 0.70}
	out := rf.Refine(d)
	require.Equal(t, d.Confidence, out.Confidence)
}
