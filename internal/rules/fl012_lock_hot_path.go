// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package rules

import (
	"fmt"

	"github.com/faultline/faultline/internal/core"
)

// LockHotPath flags mutex acquisitions inside hot functions.
type LockHotPath struct{}

var _ core.Rule = LockHotPath{}

func (LockHotPath) ID() string    { return "FL012" }
func (LockHotPath) Title() string { return "Lock in Hot Path" }
func (LockHotPath) BaseSeverity() core.Severity { return core.Critical }
func (LockHotPath) HardwareMechanism() string {
	return "Lock convoy: goroutines serialize on a contended mutex, " +
		"converting parallel execution to sequential. Blocking locks trigger " +
		"a futex syscall and context switch (~1-10us). Cache line contention " +
		"on mutex internal state."
}

func (r LockHotPath) AnalyzeFunction(fn *core.FunctionDecl, oracle core.HotPathOracle, _ *core.Config) []core.Diagnostic {
	if fn == nil || !fn.HasBody || oracle == nil {
		return nil
	}
	if !oracle.IsFunctionHot(fn) {
		return nil
	}

	var diags []core.Diagnostic
	for _, site := range fn.Facts.Locks {
		var escalations []string
		if site.Nested {
			escalations = append(escalations,
				"Nested lock acquisition: deadlock risk and compounding serialization latency")
		}
		if site.InLoop {
			escalations = append(escalations,
				"Lock inside loop: per-iteration lock convoy risk, sustained "+
					"context switch pressure under contention")
		}

		nested := "no"
		if site.Nested {
			nested = "yes"
		}
		inLoop := "no"
		if site.InLoop {
			inLoop = "yes"
		}

		diags = append(diags, core.Diagnostic{
			RuleID:       r.ID(),
			Title:        r.Title(),
			Severity:     core.Critical,
			Confidence:   0.75,
			EvidenceTier: core.Likely,
			Location:     site.Loc,
			FunctionName: fn.QualifiedName,
			HardwareReasoning: fmt.Sprintf(
				"Lock acquisition on '%s' in hot function '%s'. Under "+
					"contention, a blocking mutex triggers a futex syscall and "+
					"context switch (~1-10us). Even uncontended, the lock CAS "+
					"drains the store buffer.", site.ReceiverName, fn.QualifiedName),
			StructuralEvidence: fmt.Sprintf(
				"lock_receiver=%s; function=%s; nested=%s; in_loop=%s",
				site.ReceiverName, fn.QualifiedName, nested, inLoop),
			Mitigation: "Use lock-free data structures. Adopt a single-writer " +
				"design pattern. Partition state to eliminate shared mutable " +
				"access. Use TryLock with a fallback to avoid blocking.",
			Escalations: escalations,
		})
	}

	return diags
}

func (LockHotPath) AnalyzeRecord(*core.RecordDecl, core.LayoutProvider, core.EscapeModel, *core.Config) []core.Diagnostic {
	return nil
}

func (LockHotPath) AnalyzeGlobal(*core.GlobalDecl, core.EscapeModel, *core.Config) []core.Diagnostic {
	return nil
}
