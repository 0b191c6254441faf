// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package gosrc

import (
	"go/types"

	"github.com/faultline/faultline/internal/core"
)

// buildRecord turns a named struct type into a core.RecordDecl, computing
// every field's absolute byte offset up front via go/types.SizesFor so the
// Cache-Line Map never has to ask go/types anything itself. Embedded struct
// fields become core.BaseSpec entries (non-virtual only — Go has no virtual
// inheritance); every other field is a plain FieldSpec, recursing into
// FieldSpec.Nested for non-atomic aggregate fields.
func (ex *extractor) buildRecord(obj *types.TypeName, st *types.Struct, loc core.SourceLocation) *core.RecordDecl {
	named := obj.Type().(*types.Named)

	rec := &core.RecordDecl{
		Name:       obj.Name(),
		Type:       typeRef{t: named},
		SizeBytes:  gcSizes.Sizeof(named),
		Location:   loc,
		IsComplete: true,
	}

	var plain []*types.Var
	for i := 0; i < st.NumFields(); i++ {
		f := st.Field(i)
		if f.Embedded() && isAggregateType(f.Type()) {
			continue
		}
		plain = append(plain, f)
	}

	offsets := gcSizes.Offsetsof(plain)
	for i, f := range plain {
		rec.Fields = append(rec.Fields, ex.buildFieldSpec(f, offsets[i]))
	}

	for i := 0; i < st.NumFields(); i++ {
		f := st.Field(i)
		if !f.Embedded() || !isAggregateType(f.Type()) {
			continue
		}
		baseOffset := baseFieldOffset(st, f)
		baseStruct := f.Type().Underlying().(*types.Struct)
		baseFields := ex.collectFields(baseStruct, baseOffset)
		rec.Bases = append(rec.Bases, core.BaseSpec{Fields: baseFields, IsVirtual: false})
	}

	return rec
}

// baseFieldOffset recomputes f's offset the same way buildRecord's sibling
// loop does, for the embedded-field pass which runs over a filtered field
// list and cannot reuse the same offsets slice index.
func baseFieldOffset(st *types.Struct, target *types.Var) int64 {
	var all []*types.Var
	for i := 0; i < st.NumFields(); i++ {
		all = append(all, st.Field(i))
	}
	offsets := gcSizes.Offsetsof(all)
	for i, f := range all {
		if f == target {
			return offsets[i]
		}
	}
	return 0
}

// buildFieldSpec classifies and sizes a single struct field already placed
// at absolute offset offset.
func (ex *extractor) buildFieldSpec(f *types.Var, offset int64) core.FieldSpec {
	t := f.Type()
	spec := core.FieldSpec{
		Name:              f.Name(),
		Offset:            offset,
		Size:              gcSizes.Sizeof(t),
		IsAtomic:          isAtomicWordType(t),
		IsMutable:         true, // Go has no field-level const qualifier
		Type:              typeRef{t: t},
		IsSyncPrimitive:   isSyncPrimitiveType(t),
		IsSharedOwnership: isSharedOwnershipType(t),
		IsErasedCallable:  isErasedCallableType(t),
		IsVolatile:        false,
	}

	if !spec.IsAtomic && !spec.IsSyncPrimitive && isAggregateType(t) {
		if nestedStruct, ok := t.Underlying().(*types.Struct); ok {
			spec.Nested = ex.collectFields(nestedStruct, offset)
		}
	}

	return spec
}

// collectFields builds FieldSpecs for every field of st, with offsets
// already shifted by baseOffset (the enclosing field's own absolute
// offset), used both for embedded-base field lists and for Nested.
func (ex *extractor) collectFields(st *types.Struct, baseOffset int64) []core.FieldSpec {
	var fields []*types.Var
	for i := 0; i < st.NumFields(); i++ {
		fields = append(fields, st.Field(i))
	}
	offsets := gcSizes.Offsetsof(fields)

	out := make([]core.FieldSpec, 0, len(fields))
	for i, f := range fields {
		out = append(out, ex.buildFieldSpec(f, baseOffset+offsets[i]))
	}
	return out
}
