// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package gosrc

import (
	"go/types"
	"strings"
)

// atomicWordTypes names the sync/atomic word types that bind the spec's
// "atomic word field" vocabulary entry.
var atomicWordTypes = map[string]bool{
	"Int32": true, "Int64": true, "Uint32": true, "Uint64": true,
	"Bool": true, "Uintptr": true, "Value": true,
	"Pointer": true, // generic sync/atomic.Pointer[T]
}

// syncPrimitiveTypes names the sync package types binding the spec's
// "synchronization primitive" vocabulary entry.
var syncPrimitiveTypes = map[string]bool{
	"Mutex": true, "RWMutex": true, "WaitGroup": true,
	"Once": true, "Cond": true, "Map": true,
}

// callbackNameHints flags an interface type as probably standing in for a
// type-erased callable (the spec's dual mapping of interface-typed fields
// to both shared-ownership and type-erased-callable bindings; the name
// heuristic below disambiguates which one a given field more likely is).
var callbackNameHints = []string{"Func", "Callback", "Handler", "Listener", "Hook"}

func namedTypeInfo(t types.Type) (pkgPath, name string, ok bool) {
	named, isNamed := t.(*types.Named)
	if !isNamed || named.Obj() == nil {
		return "", "", false
	}
	obj := named.Obj()
	if obj.Pkg() == nil {
		return "", obj.Name(), true
	}
	return obj.Pkg().Path(), obj.Name(), true
}

// isAtomicWordType reports whether t is a sync/atomic word type, unwrapping
// a generic instantiation like sync/atomic.Pointer[T] to its origin name.
func isAtomicWordType(t types.Type) bool {
	pkgPath, name, ok := namedTypeInfo(t)
	if !ok || pkgPath != "sync/atomic" {
		return false
	}
	return atomicWordTypes[name]
}

func isSyncPrimitiveType(t types.Type) bool {
	pkgPath, name, ok := namedTypeInfo(t)
	if !ok || pkgPath != "sync" {
		return false
	}
	return syncPrimitiveTypes[name]
}

// isSharedOwnershipType reports whether t is a channel type, or an
// interface type (both are the Go binding of a shared_ptr/weak_ptr member
// per the spec's vocabulary table).
func isSharedOwnershipType(t types.Type) bool {
	switch t.Underlying().(type) {
	case *types.Chan:
		return true
	case *types.Interface:
		return true
	default:
		return false
	}
}

// isErasedCallableType reports whether t is a function type outright, or an
// interface type whose name or single-method shape looks like a callback
// rather than a general shared-ownership handle.
func isErasedCallableType(t types.Type) bool {
	switch u := t.Underlying().(type) {
	case *types.Signature:
		return true
	case *types.Interface:
		if u.Empty() {
			return false
		}
		if u.NumMethods() == 1 {
			return true
		}
		_, name, ok := namedTypeInfo(t)
		if !ok {
			return false
		}
		for _, hint := range callbackNameHints {
			if strings.Contains(name, hint) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// isAggregateType reports whether t's underlying type is itself a struct,
// the only case collectFields recurses into for FieldSpec.Nested.
func isAggregateType(t types.Type) bool {
	_, ok := t.Underlying().(*types.Struct)
	return ok
}
