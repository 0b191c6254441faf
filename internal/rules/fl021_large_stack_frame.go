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

// LargeStackFrame flags functions whose estimated frame size (locals plus
// by-value parameters) crosses a configurable threshold. Runs regardless of
// hot-path status; hot-path status only escalates severity.
type LargeStackFrame struct{}

var _ core.Rule = LargeStackFrame{}

func (LargeStackFrame) ID() string    { return "FL021" }
func (LargeStackFrame) Title() string { return "Large Stack Frame" }
func (LargeStackFrame) BaseSeverity() core.Severity { return core.Medium }
func (LargeStackFrame) HardwareMechanism() string {
	return "TLB pressure from a stack spanning multiple pages. L1D cache " +
		"pressure from a large working set. Potential stack-growth copies " +
		"on deep call chains."
}

func (r LargeStackFrame) AnalyzeFunction(fn *core.FunctionDecl, oracle core.HotPathOracle, cfg *core.Config) []core.Diagnostic {
	if fn == nil || !fn.HasBody {
		return nil
	}

	var totalBytes int64
	var largeLocals []core.LocalVar
	for _, local := range fn.Facts.Locals {
		if local.IsByReference {
			continue
		}
		totalBytes += local.SizeBytes
		if local.SizeBytes >= 256 {
			largeLocals = append(largeLocals, local)
		}
	}

	threshold := int64(2048)
	pageSize := int64(4096)
	if cfg != nil {
		threshold = cfg.StackFrameWarnBytes
		pageSize = cfg.PageSize
	}

	if totalBytes < threshold {
		return nil
	}

	isHot := oracle != nil && oracle.IsFunctionHot(fn)
	sev := core.Medium
	if isHot {
		sev = core.High
	}

	var escalations []string
	if pageSize > 0 && totalBytes > pageSize {
		escalations = append(escalations, fmt.Sprintf(
			"Stack frame exceeds page size (%dB): guaranteed TLB miss on "+
				"first access, potential page fault", pageSize))
		if isHot {
			sev = core.Critical
		}
	}
	if isHot {
		escalations = append(escalations, "Function is on hot path")
	}

	locals := make([]string, 0, len(largeLocals))
	for _, l := range largeLocals {
		locals = append(locals, fmt.Sprintf("%s(%dB)", l.Name, l.SizeBytes))
	}
	ev := fmt.Sprintf("estimated_frame=%dB; threshold=%dB", totalBytes, threshold)
	if len(locals) > 0 {
		ev += "; large_locals=[" + strings.Join(locals, ", ") + "]"
	}

	pages := ceilDiv(totalBytes, pageSize)

	diag := core.Diagnostic{
		RuleID:       r.ID(),
		Title:        r.Title(),
		Severity:     sev,
		Confidence:   0.80,
		EvidenceTier: core.Likely,
		Location:     fn.Location,
		FunctionName: fn.QualifiedName,
		HardwareReasoning: fmt.Sprintf(
			"Function '%s' estimated stack frame ~%dB. Spans ~%d page(s). "+
				"Large stack frames increase D-TLB working set, pressure L1D "+
				"capacity, and risk stack growth on deep call chains.",
			fn.QualifiedName, totalBytes, pages),
		StructuralEvidence: ev,
		Mitigation: "Move large arrays to the heap with a pooled allocator. " +
			"Use package-level or goroutine-local buffers for fixed-size data. " +
			"Reduce local buffer sizes. Consider passing large structures by " +
			"pointer.",
		Escalations: escalations,
	}

	return []core.Diagnostic{diag}
}

func (LargeStackFrame) AnalyzeRecord(*core.RecordDecl, core.LayoutProvider, core.EscapeModel, *core.Config) []core.Diagnostic {
	return nil
}

func (LargeStackFrame) AnalyzeGlobal(*core.GlobalDecl, core.EscapeModel, *core.Config) []core.Diagnostic {
	return nil
}
