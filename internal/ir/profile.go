// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ir holds the lowered-IR side of the pipeline: the per-function
// profile shape the lowering compiler emits, the textual reader for that
// shape (see the irtext subpackage), and the DiagnosticRefiner that folds
// IR-precise facts back into AST-estimated diagnostics.
package ir

import "strings"

// AtomicOpKind classifies one atomic or fence instruction found in a
// function's lowered body.
type AtomicOpKind uint8

const (
	AtomicLoad AtomicOpKind = iota
	AtomicStore
	AtomicRMW
	AtomicCmpXchg
	Fence
)

func (k AtomicOpKind) String() string {
	switch k {
	case AtomicLoad:
		return "load"
	case AtomicStore:
		return "store"
	case AtomicRMW:
		return "rmw"
	case AtomicCmpXchg:
		return "cmpxchg"
	case Fence:
		return "fence"
	default:
		return "unknown"
	}
}

// AllocaInfo is one stack allocation found in a function's lowered body.
type AllocaInfo struct {
	Name      string
	SizeBytes int64
	IsArray   bool
}

// CallSiteInfo is one call or indirect-call instruction found in a
// function's lowered body. Despite the name inherited from the reference
// analyzer, this only tracks calls relevant to heap allocation, lock
// acquisition, and indirect-call counting; it is not a full call graph.
// SourceFile/SourceLine carry the call's own position when debug info
// survived lowering, the same site-confirmation shape AtomicInfo uses.
type CallSiteInfo struct {
	CalleeName string
	IsIndirect bool
	IsInLoop   bool
	SourceFile string
	SourceLine int
}

// AtomicInfo is one atomic or fence instruction, with its compiler-observed
// memory ordering and source position when debug info survived lowering.
type AtomicInfo struct {
	Op         AtomicOpKind
	Ordering   string // "unordered", "monotonic", "acquire", "release", "acq_rel", "seq_cst"
	IsInLoop   bool
	SourceFile string
	SourceLine int
}

// FunctionProfile is the lowered-IR profile for one function: the compiler-
// confirmed counterpart to core.FunctionFacts, keyed by mangled name but
// matched by demangled (qualified) name against the AST side.
type FunctionProfile struct {
	MangledName   string
	DemangledName string

	TotalAllocaBytes int64
	Allocas          []AllocaInfo

	HeapAllocCalls []CallSiteInfo
	LockCalls      []CallSiteInfo

	IndirectCallCount int
	DirectCallCount   int

	Atomics     []AtomicInfo
	FenceCount  int
	SeqCstCount int

	BasicBlockCount int
	LoopCount       int
}

// HasProfile reports whether p holds real data, as opposed to a zero value
// returned for a function the lowering pass never saw (e.g. inlined away,
// or never reached because compilation failed for an unrelated reason).
func (p *FunctionProfile) HasProfile() bool {
	return p != nil && p.MangledName != ""
}

// ProfileMap indexes FunctionProfile by mangled name, mirroring the
// reference analyzer's map shape.
type ProfileMap map[string]*FunctionProfile

// Lookup finds a profile by mangled name first, falling back to an exact or
// substring match against the demangled name, since the caller
// (DiagnosticRefiner) usually only has the qualified Go name a rule
// recorded in a diagnostic's evidence, not the compiler's mangled symbol.
func (m ProfileMap) Lookup(mangledName string) *FunctionProfile {
	if p, ok := m[mangledName]; ok {
		return p
	}
	return m.FindByQualifiedName(mangledName)
}

// FindByQualifiedName looks up a profile by the demangled (qualified) name
// a rule recorded, exact match first, then substring, matching the
// reference analyzer's findProfile tolerance for partially-qualified names.
func (m ProfileMap) FindByQualifiedName(name string) *FunctionProfile {
	if name == "" {
		return nil
	}
	for _, p := range m {
		if p.DemangledName == name {
			return p
		}
	}
	for _, p := range m {
		if p.DemangledName != "" && strings.Contains(p.DemangledName, name) {
			return p
		}
	}
	return nil
}
