// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package gosrc

import (
	"go/ast"
	"go/types"

	"github.com/faultline/faultline/internal/core"
)

// buildGlobals converts one ValueSpec (a single "var a, b = ..." group) into
// one GlobalDecl per name. Go has no thread-local storage class; every
// package-level var binds to core.StorageGlobal, and core.StorageThreadLocal
// is simply never produced by this producer.
func (ex *extractor) buildGlobals(vs *ast.ValueSpec) []*core.GlobalDecl {
	out := make([]*core.GlobalDecl, 0, len(vs.Names))
	for i, ident := range vs.Names {
		if ident.Name == "_" {
			continue
		}
		obj, ok := ex.pkg.TypesInfo.Defs[ident].(*types.Var)
		if !ok || obj == nil {
			continue
		}
		t := obj.Type()

		g := &core.GlobalDecl{
			Name:            ident.Name,
			Type:            typeRef{t: t},
			StorageClass:    core.StorageGlobal,
			IsConst:         false,
			HasInitializer:  i < len(vs.Values),
			Location:        ex.position(ident.Pos()),
			IsAtomicType:    isAtomicWordType(t),
			HasAtomicFields: ex.hasAtomicFields(t),
			TypeName:        typeRef{t: t}.String(),
		}
		out = append(out, g)
	}
	return out
}

// hasAtomicFields reports whether t (or any field nested beneath it) is a
// sync/atomic word type, used for GlobalDecl.HasAtomicFields on struct-typed
// globals that embed an atomic counter rather than being one themselves.
func (ex *extractor) hasAtomicFields(t types.Type) bool {
	st, ok := t.Underlying().(*types.Struct)
	if !ok {
		return false
	}
	for i := 0; i < st.NumFields(); i++ {
		ft := st.Field(i).Type()
		if isAtomicWordType(ft) {
			return true
		}
		if isAggregateType(ft) && ex.hasAtomicFields(ft) {
			return true
		}
	}
	return false
}
