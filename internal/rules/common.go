// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package rules implements every detector as a core.Rule, each grounded on
// its own detection logic, consuming pre-extracted facts from
// core.RecordDecl, core.FunctionDecl, and core.GlobalDecl rather than
// walking the AST itself.
package rules

import "github.com/faultline/faultline/internal/core"

func hasAnyAtomicField(fields []core.FieldSpec) bool {
	for _, f := range fields {
		if f.IsAtomic {
			return true
		}
		if hasAnyAtomicField(f.Nested) {
			return true
		}
	}
	return false
}

func recordHasAtomicField(rec *core.RecordDecl) bool {
	if hasAnyAtomicField(rec.Fields) {
		return true
	}
	for _, base := range rec.Bases {
		if hasAnyAtomicField(base.Fields) {
			return true
		}
	}
	return false
}

// countTopLevelMutableFields mirrors the original's non-recursive field
// walk: only direct fields count, not nested sub-fields.
func countTopLevelMutableFields(fields []core.FieldSpec) int {
	n := 0
	for _, f := range fields {
		if f.IsMutable {
			n++
		}
	}
	return n
}

func ceilDiv(a, b int64) int64 {
	if b <= 0 {
		return 0
	}
	return (a + b - 1) / b
}
