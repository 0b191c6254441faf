// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package core

// HotPathOracle decides whether a function is latency-critical. Defined
// here (not in the hotpath package) so Rule implementations and the engine
// can depend on the interface without importing the concrete oracle.
type HotPathOracle interface {
	IsFunctionHot(fn *FunctionDecl) bool
}

// LayoutProvider answers Cache-Line Map questions for a record. Defined here
// for the same reason as HotPathOracle: rules depend on the interface only.
type LayoutProvider interface {
	MapFor(rec *RecordDecl) CacheLineMapView
}

// CacheLineMapView is the read-only contract rules use; the concrete
// implementation lives in internal/analysis/cacheline.
type CacheLineMapView interface {
	SizeBytes() int64
	LinesSpanned() int64
	Fields() []FieldEntry
	Buckets() []CacheLineBucket
	StraddlingFields() []FieldEntry
	MutablePairsOnSameLine() []FieldPair
	AtomicPairsOnSameLine() []FieldPair
	FalseSharingCandidateLines() []int64
	TotalAtomics() int
	TotalMutables() int
}

// FieldEntry is a field placed into the cache-line model.
type FieldEntry struct {
	Name       string
	Offset     int64
	Size       int64
	StartLine  int64
	EndLine    int64
	Straddles  bool
	IsAtomic   bool
	IsMutable  bool
}

// CacheLineBucket is one cache-line-width slice of a record's layout.
type CacheLineBucket struct {
	LineIndex    int64
	Fields       []FieldEntry
	AtomicCount  int
	MutableCount int
}

// FieldPair is an unordered pair of fields sharing a cache line.
type FieldPair struct {
	A, B      FieldEntry
	LineIndex int64
}

// EscapeModel decides whether a record or global may be concurrently
// visible to more than one thread of control.
type EscapeModel interface {
	RecordMayEscapeThread(rec *RecordDecl) bool
	GlobalIsSharedMutable(g *GlobalDecl) bool
}

// Rule is one of the fifteen independent detectors. AnalyzeRecord and
// AnalyzeFunction and AnalyzeGlobal are all present on every Rule so the
// engine can dispatch uniformly; a rule that does not apply to a given decl
// kind returns nil immediately (a plain Go idiom, no need for a tagged
// variant across kinds the way the source's virtual dispatch required one).
type Rule interface {
	ID() string
	Title() string
	BaseSeverity() Severity
	HardwareMechanism() string

	AnalyzeRecord(rec *RecordDecl, layout LayoutProvider, escape EscapeModel, cfg *Config) []Diagnostic
	AnalyzeFunction(fn *FunctionDecl, oracle HotPathOracle, cfg *Config) []Diagnostic
	AnalyzeGlobal(g *GlobalDecl, escape EscapeModel, cfg *Config) []Diagnostic
}
