// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package escape implements the heuristic thread-escape model: whether a
// record's layout carries evidence it is shared across goroutines, and
// whether a global/package-level variable is shared mutable state. Like its
// grounding original, it is conservative — uncertain cases resolve to
// "may escape".
package escape

import "github.com/faultline/faultline/internal/core"

// Model is the concrete core.EscapeModel. It has no state: every predicate
// is a pure function of the producer-supplied facts already attached to
// FieldSpec/GlobalDecl, so a zero-value Model is ready to use.
type Model struct{}

var _ core.EscapeModel = Model{}

// RecordMayEscapeThread reports whether rec carries evidence of cross-
// goroutine usage: an atomic field, a sync-primitive field, a shared-
// ownership field, a type-erased callable field, or (kept for shape parity,
// always false under the Go binding) a volatile field, in the record itself
// or any base.
func (Model) RecordMayEscapeThread(rec *core.RecordDecl) bool {
	if rec == nil {
		return false
	}
	if hasAtomicMembers(rec.Fields) || hasSyncPrimitives(rec.Fields) ||
		hasSharedOwnershipMembers(rec.Fields) || hasVolatileMembers(rec.Fields) ||
		hasCallbackMembers(rec.Fields) {
		return true
	}
	for _, base := range rec.Bases {
		if hasAtomicMembers(base.Fields) || hasSyncPrimitives(base.Fields) ||
			hasSharedOwnershipMembers(base.Fields) || hasVolatileMembers(base.Fields) ||
			hasCallbackMembers(base.Fields) {
			return true
		}
	}
	return false
}

// HasCallbackMembers reports whether rec (including bases) has a type-
// erased callable field, the shape FL031 inspects.
func (Model) HasCallbackMembers(rec *core.RecordDecl) bool {
	if rec == nil {
		return false
	}
	if hasCallbackMembers(rec.Fields) {
		return true
	}
	for _, base := range rec.Bases {
		if hasCallbackMembers(base.Fields) {
			return true
		}
	}
	return false
}

// GlobalIsSharedMutable reports whether g is package-level (or static-
// equivalent) storage, non-const, and not goroutine-local.
func (Model) GlobalIsSharedMutable(g *core.GlobalDecl) bool {
	if g == nil {
		return false
	}
	if g.StorageClass == core.StorageThreadLocal {
		return false
	}
	if g.IsConst {
		return false
	}
	return g.StorageClass == core.StorageGlobal || g.StorageClass == core.StorageStatic
}

func hasAtomicMembers(fields []core.FieldSpec) bool {
	for _, f := range fields {
		if f.IsAtomic {
			return true
		}
		if hasAtomicMembers(f.Nested) {
			return true
		}
	}
	return false
}

func hasSyncPrimitives(fields []core.FieldSpec) bool {
	for _, f := range fields {
		if f.IsSyncPrimitive {
			return true
		}
		if hasSyncPrimitives(f.Nested) {
			return true
		}
	}
	return false
}

func hasSharedOwnershipMembers(fields []core.FieldSpec) bool {
	for _, f := range fields {
		if f.IsSharedOwnership {
			return true
		}
		if hasSharedOwnershipMembers(f.Nested) {
			return true
		}
	}
	return false
}

func hasVolatileMembers(fields []core.FieldSpec) bool {
	for _, f := range fields {
		if f.IsVolatile {
			return true
		}
		if hasVolatileMembers(f.Nested) {
			return true
		}
	}
	return false
}

func hasCallbackMembers(fields []core.FieldSpec) bool {
	for _, f := range fields {
		if f.IsErasedCallable {
			return true
		}
		if hasCallbackMembers(f.Nested) {
			return true
		}
	}
	return false
}

// IsFieldMutable reports whether a field is shared-write-accessible: either
// explicitly tagged mutable, or (Go has no const field qualifier) simply
// not otherwise excluded. Kept as a named predicate, matching the original
// model's isFieldMutable, rather than inlined at every call site.
func IsFieldMutable(f core.FieldSpec) bool {
	return f.IsMutable
}
