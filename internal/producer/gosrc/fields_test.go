// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package gosrc

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFieldClassification_AllVocabularyBindings(t *testing.T) {
	source := `package sample

import "sync"
import "sync/atomic"

type Handler interface {
	Handle(int)
}

type OneMethod interface {
	Do()
}

type TwoMethods interface {
	Do()
	Undo()
}

type Shape struct {
	hits       atomic.Int64
	mu         sync.Mutex
	onEvent    func(int)
	waiters    chan struct{}
	callback   Handler
	single     OneMethod
	plainIface TwoMethods
	name       string
	nested     Inner
}

type Inner struct {
	flag bool
}
`
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module example.com/sample\n\ngo 1.22\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sample.go"), []byte(source), 0o644))

	pkgs, err := Load(dir, "./...")
	require.NoError(t, err)

	tu := Extract(pkgs)
	rec := findRecord(tu, "Shape")
	require.NotNil(t, rec)

	byName := make(map[string]int)
	for i, f := range rec.Fields {
		byName[f.Name] = i
	}

	require.True(t, rec.Fields[byName["hits"]].IsAtomic)
	require.True(t, rec.Fields[byName["mu"]].IsSyncPrimitive)
	require.True(t, rec.Fields[byName["onEvent"]].IsErasedCallable)
	require.False(t, rec.Fields[byName["onEvent"]].IsSharedOwnership)
	require.True(t, rec.Fields[byName["waiters"]].IsSharedOwnership)
	require.True(t, rec.Fields[byName["callback"]].IsSharedOwnership)
	require.True(t, rec.Fields[byName["callback"]].IsErasedCallable, "name-hinted single-method interface reads as a callback too")
	require.True(t, rec.Fields[byName["single"]].IsErasedCallable, "single-method interface reads as a callback")
	require.False(t, rec.Fields[byName["plainIface"]].IsErasedCallable, "multi-method unhinted interface is shared-ownership only")
	require.True(t, rec.Fields[byName["plainIface"]].IsSharedOwnership)
	require.False(t, rec.Fields[byName["name"]].IsAtomic)
	require.False(t, rec.Fields[byName["name"]].IsSyncPrimitive)

	nested := rec.Fields[byName["nested"]]
	require.NotEmpty(t, nested.Nested)
	require.Equal(t, "flag", nested.Nested[0].Name)

	for _, f := range rec.Fields {
		require.False(t, f.IsVolatile)
		require.True(t, f.IsMutable)
	}
}
