// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package cacheline builds the per-record cache-line occupancy model that
// FL001, FL002, FL010, FL041, and FL090 all query: which fields land on
// which cache line, which fields straddle a line boundary, and which lines
// mix atomics with plain mutable state.
package cacheline

import "github.com/faultline/faultline/internal/core"

// Map is the concrete core.CacheLineMapView for one RecordDecl. Offsets and
// sizes are producer facts already present on core.FieldSpec; Map only
// buckets them into cache lines, it never computes layout itself.
type Map struct {
	cacheLineBytes int64
	sizeBytes      int64
	linesSpanned   int64
	totalAtomics   int
	totalMutables  int

	fields  []core.FieldEntry
	buckets []core.CacheLineBucket
}

// Build constructs a Map for rec. An incomplete record (producer could not
// finish laying it out) yields an empty Map rather than a partial one, the
// same stance the original model takes on partial layout.
func Build(rec *core.RecordDecl, cacheLineBytes int64) *Map {
	m := &Map{cacheLineBytes: cacheLineBytes}
	if rec == nil || !rec.IsComplete || cacheLineBytes <= 0 {
		return m
	}

	m.sizeBytes = rec.SizeBytes
	m.linesSpanned = (m.sizeBytes + cacheLineBytes - 1) / cacheLineBytes

	for _, base := range rec.Bases {
		m.collectFields(base.Fields)
	}
	m.collectFields(rec.Fields)

	m.buildBuckets()
	return m
}

func (m *Map) collectFields(fields []core.FieldSpec) {
	for _, f := range fields {
		m.collectField(f)
	}
}

func (m *Map) collectField(f core.FieldSpec) {
	startLine := f.Offset / m.cacheLineBytes
	endByte := f.Offset + f.Size
	endLine := startLine
	if endByte > 0 {
		endLine = (endByte - 1) / m.cacheLineBytes
	}

	if f.IsAtomic {
		m.totalAtomics++
	}
	if f.IsMutable {
		m.totalMutables++
	}

	m.fields = append(m.fields, core.FieldEntry{
		Name:      f.Name,
		Offset:    f.Offset,
		Size:      f.Size,
		StartLine: startLine,
		EndLine:   endLine,
		Straddles: startLine != endLine,
		IsAtomic:  f.IsAtomic,
		IsMutable: f.IsMutable,
	})

	// Recurse into nested sub-fields for sub-field granularity, mirroring
	// the source's recursion into nested record types. Atomic fields are
	// treated as opaque, the same exclusion the original model applies.
	if !f.IsAtomic && len(f.Nested) > 0 {
		m.collectFields(f.Nested)
	}
}

func (m *Map) buildBuckets() {
	if m.linesSpanned == 0 {
		return
	}

	m.buckets = make([]core.CacheLineBucket, m.linesSpanned)
	for i := range m.buckets {
		m.buckets[i].LineIndex = int64(i)
	}

	for _, f := range m.fields {
		for line := f.StartLine; line <= f.EndLine && line < m.linesSpanned; line++ {
			b := &m.buckets[line]
			b.Fields = append(b.Fields, f)
			if f.IsAtomic {
				b.AtomicCount++
			}
			if f.IsMutable {
				b.MutableCount++
			}
		}
	}
}

func (m *Map) SizeBytes() int64                { return m.sizeBytes }
func (m *Map) LinesSpanned() int64             { return m.linesSpanned }
func (m *Map) Fields() []core.FieldEntry       { return m.fields }
func (m *Map) Buckets() []core.CacheLineBucket { return m.buckets }
func (m *Map) TotalAtomics() int               { return m.totalAtomics }
func (m *Map) TotalMutables() int              { return m.totalMutables }

// StraddlingFields returns fields whose byte range crosses a cache-line
// boundary.
func (m *Map) StraddlingFields() []core.FieldEntry {
	var out []core.FieldEntry
	for _, f := range m.fields {
		if f.Straddles {
			out = append(out, f)
		}
	}
	return out
}

// MutablePairsOnSameLine returns every unordered pair of mutable fields
// sharing a cache line.
func (m *Map) MutablePairsOnSameLine() []core.FieldPair {
	return pairsOnSameLine(m.buckets, func(f core.FieldEntry) bool { return f.IsMutable })
}

// AtomicPairsOnSameLine returns every unordered pair of atomic fields
// sharing a cache line.
func (m *Map) AtomicPairsOnSameLine() []core.FieldPair {
	return pairsOnSameLine(m.buckets, func(f core.FieldEntry) bool { return f.IsAtomic })
}

func pairsOnSameLine(buckets []core.CacheLineBucket, keep func(core.FieldEntry) bool) []core.FieldPair {
	var out []core.FieldPair
	for _, bucket := range buckets {
		for i := 0; i < len(bucket.Fields); i++ {
			if !keep(bucket.Fields[i]) {
				continue
			}
			for j := i + 1; j < len(bucket.Fields); j++ {
				if !keep(bucket.Fields[j]) {
					continue
				}
				out = append(out, core.FieldPair{
					A:         bucket.Fields[i],
					B:         bucket.Fields[j],
					LineIndex: bucket.LineIndex,
				})
			}
		}
	}
	return out
}

// FalseSharingCandidateLines returns lines carrying at least one atomic
// field alongside more plain-mutable fields than atomics — the mixed
// occupancy shape that makes an unrelated write evict a hot atomic.
func (m *Map) FalseSharingCandidateLines() []int64 {
	var out []int64
	for _, bucket := range m.buckets {
		if bucket.AtomicCount > 0 && bucket.MutableCount > bucket.AtomicCount {
			out = append(out, bucket.LineIndex)
		}
	}
	return out
}

// Provider implements core.LayoutProvider by building a Map on demand. It
// holds no cache: callers that analyze the same record repeatedly (the rule
// engine, per record, per rule) are expected to build once and reuse the
// view — Provider.MapFor is a convenience for callers that analyze a record
// exactly once.
type Provider struct {
	CacheLineBytes int64
}

func (p Provider) MapFor(rec *core.RecordDecl) core.CacheLineMapView {
	return Build(rec, p.CacheLineBytes)
}
