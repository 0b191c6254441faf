// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package core

// FieldSpec is a producer-supplied field description. Offset and Size are
// facts the producer already knows (record layout is a property of the
// producer's type system, not something the core re-derives); the Cache-Line
// Map only buckets already-laid-out fields into lines.
type FieldSpec struct {
	Name      string
	Offset    int64
	Size      int64
	IsAtomic  bool
	IsMutable bool
	Type      TypeRef

	// IsSyncPrimitive marks a sync.Mutex/RWMutex/WaitGroup/Once/Cond/Map-
	// shaped field, the Go binding of a mutex/condvar/semaphore member.
	IsSyncPrimitive bool
	// IsSharedOwnership marks a channel- or interface-typed field standing
	// in for a shared_ptr/weak_ptr member.
	IsSharedOwnership bool
	// IsErasedCallable marks a function- or interface-typed field standing
	// in for a std::function member.
	IsErasedCallable bool
	// IsVolatile is always false for the Go binding (Go has no volatile
	// qualifier); kept so the field set stays shape-compatible with the
	// original model instead of silently dropping the predicate.
	IsVolatile bool

	// Nested holds the field's own fields, at offsets already absolute
	// (parent offset + sub-field offset), when the field's type is itself
	// a non-atomic aggregate the producer chooses to expose for sub-field
	// granularity. Nil for scalar/atomic/opaque fields.
	Nested []FieldSpec
}

// BaseSpec is a base subobject, already placed at an absolute offset by the
// producer. Non-virtual bases are walked before virtual bases, both before
// direct fields, mirroring C++ layout order; the Go-source binding never
// produces virtual bases (Go has no virtual inheritance) but the shape is
// kept general.
type BaseSpec struct {
	Fields    []FieldSpec
	IsVirtual bool
}

// TypeRef is an opaque handle back into the producer's own type system. The
// core never inspects it; only producer-specific code (the Escape Model's
// producer binding) does.
type TypeRef interface {
	String() string
}

// RecordDecl is a producer-supplied complete aggregate type declaration.
type RecordDecl struct {
	Name       string
	Type       TypeRef
	SizeBytes  int64
	Bases      []BaseSpec
	Fields     []FieldSpec
	Location   SourceLocation
	IsComplete bool
}

type StorageClass uint8

const (
	StorageGlobal StorageClass = iota
	StorageStatic
	StorageThreadLocal
)

// GlobalDecl is a producer-supplied global/static/thread-local variable.
type GlobalDecl struct {
	Name           string
	Type           TypeRef
	StorageClass   StorageClass
	IsConst        bool
	HasInitializer bool
	Location       SourceLocation

	// IsAtomicType is true when the variable's own type is an atomic word
	// type (e.g. sync/atomic.Int64), not merely a record containing one.
	IsAtomicType bool
	// HasAtomicFields is true when the variable's type is a record with at
	// least one atomic-tagged field, pre-computed by the producer so
	// FL040 never needs to re-walk the record's field list.
	HasAtomicFields bool
	// TypeName is a printable name for the declared type, for diagnostic
	// text only.
	TypeName string
}
