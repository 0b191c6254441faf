// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package rules

import (
	"fmt"
	"strings"

	"github.com/faultline/faultline/internal/core"
)

// ContendedQueue flags struct layouts matching the shape of a concurrent
// queue/ring buffer where producer/consumer atomic indices share a cache
// line.
type ContendedQueue struct{}

var _ core.Rule = ContendedQueue{}

func (ContendedQueue) ID() string    { return "FL041" }
func (ContendedQueue) Title() string { return "Contended Queue Pattern" }
func (ContendedQueue) BaseSeverity() core.Severity { return core.High }
func (ContendedQueue) HardwareMechanism() string {
	return "Head/tail index cache line bouncing in MPMC queues. Atomic " +
		"head and tail on the same cache line causes MESI invalidation on " +
		"every enqueue/dequeue from different cores. Without padding, " +
		"producer and consumer thrash the same line."
}

var queueNameHints = []string{"queue", "Queue", "buffer", "Buffer", "ring", "Ring"}

var headTailHints = []string{"head", "tail", "read", "write", "push", "pop", "front", "back"}

func containsAny(s string, hints []string) bool {
	for _, h := range hints {
		if strings.Contains(s, h) {
			return true
		}
	}
	return false
}

func (r ContendedQueue) AnalyzeRecord(rec *core.RecordDecl, layout core.LayoutProvider, _ core.EscapeModel, _ *core.Config) []core.Diagnostic {
	if rec == nil || !rec.IsComplete || layout == nil {
		return nil
	}

	m := layout.MapFor(rec)
	atomicPairs := m.AtomicPairsOnSameLine()
	if len(atomicPairs) == 0 {
		return nil
	}

	firstPair := atomicPairs[0]

	looksLikeQueue := containsAny(rec.Name, queueNameHints)

	hasHeadTail := false
	for _, f := range m.Fields() {
		if !f.IsAtomic {
			continue
		}
		if containsAny(f.Name, headTailHints) {
			hasHeadTail = true
			break
		}
	}

	sev := core.High
	var escalations []string
	if looksLikeQueue || hasHeadTail {
		sev = core.Critical
		escalations = append(escalations,
			"Structure appears to be a concurrent queue: head/tail atomic "+
				"indices on same cache line guarantee producer-consumer cache "+
				"line ping-pong")
	}

	for _, pair := range atomicPairs {
		escalations = append(escalations, fmt.Sprintf(
			"atomic fields '%s' and '%s' share line %d: concurrent writes trigger MESI invalidation",
			pair.A.Name, pair.B.Name, pair.LineIndex))
	}

	confidence := 0.62
	if looksLikeQueue || hasHeadTail {
		confidence = 0.82
	}

	queueHeuristic := "no"
	if looksLikeQueue {
		queueHeuristic = "yes"
	}
	headTailNames := "no"
	if hasHeadTail {
		headTailNames = "yes"
	}

	diag := core.Diagnostic{
		RuleID:       r.ID(),
		Title:        r.Title(),
		Severity:     sev,
		Confidence:   confidence,
		Location:     rec.Location,
		FunctionName: rec.Name,
		HardwareReasoning: fmt.Sprintf(
			"Struct '%s' (%dB, %d line(s)) has %d atomic field(s) with '%s' "+
				"and '%s' on the same cache line. Under MPMC workload, every "+
				"enqueue/dequeue triggers cross-core RFO for the shared line.",
			rec.Name, m.SizeBytes(), m.LinesSpanned(), m.TotalAtomics(),
			firstPair.A.Name, firstPair.B.Name),
		StructuralEvidence: fmt.Sprintf(
			"struct=%s; sizeof=%dB; lines=%d; atomic_fields=%d; atomic_pairs_same_line=%d; queue_heuristic=%s; head_tail_names=%s",
			rec.Name, m.SizeBytes(), m.LinesSpanned(), m.TotalAtomics(), len(atomicPairs), queueHeuristic, headTailNames),
		Mitigation: "Pad head and tail indices to separate cache lines with " +
			"explicit padding fields. Use per-core queues (SPSC) where " +
			"possible. Consider cache-line-aware queue implementations.",
		Escalations: escalations,
	}

	return []core.Diagnostic{diag}
}

func (ContendedQueue) AnalyzeFunction(*core.FunctionDecl, core.HotPathOracle, *core.Config) []core.Diagnostic {
	return nil
}

func (ContendedQueue) AnalyzeGlobal(*core.GlobalDecl, core.EscapeModel, *core.Config) []core.Diagnostic {
	return nil
}
