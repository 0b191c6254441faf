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

	"github.com/faultline/faultline/internal/core"
)

// writeModule materializes a single-file module under t.TempDir() so Load
// can run packages.Load against real files on disk, the same as it would
// for any on-disk target.
func writeModule(t *testing.T, source string) string {
	t.Helper()
	dir := t.TempDir()

	err := os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module example.com/sample\n\ngo 1.22\n"), 0o644)
	require.NoError(t, err)

	err = os.WriteFile(filepath.Join(dir, "sample.go"), []byte(source), 0o644)
	require.NoError(t, err)

	return dir
}

func findRecord(tu core.TranslationUnit, name string) *core.RecordDecl {
	for _, r := range tu.Records {
		if r.Name == name {
			return r
		}
	}
	return nil
}

func findFunction(tu core.TranslationUnit, name string) *core.FunctionDecl {
	for _, f := range tu.Functions {
		if f.QualifiedName == name {
			return f
		}
	}
	return nil
}

func findGlobal(tu core.TranslationUnit, name string) *core.GlobalDecl {
	for _, g := range tu.Globals {
		if g.Name == name {
			return g
		}
	}
	return nil
}

const sampleSource = `package sample

import "sync"

type Counter struct {
	mu    sync.Mutex
	count int64
}

var sharedCounter Counter

func (c *Counter) Incr() {
	c.mu.Lock()
	c.count++
	c.mu.Unlock()
}
`

func TestLoadAndExtract_BuildsRecordFunctionAndGlobal(t *testing.T) {
	dir := writeModule(t, sampleSource)

	pkgs, err := Load(dir, "./...")
	require.NoError(t, err)
	require.NotEmpty(t, pkgs)

	tu := Extract(pkgs)

	rec := findRecord(tu, "Counter")
	require.NotNil(t, rec)
	require.True(t, rec.IsComplete)
	require.Greater(t, rec.SizeBytes, int64(0))

	var muField, countField *core.FieldSpec
	for i := range rec.Fields {
		switch rec.Fields[i].Name {
		case "mu":
			muField = &rec.Fields[i]
		case "count":
			countField = &rec.Fields[i]
		}
	}
	require.NotNil(t, muField)
	require.True(t, muField.IsSyncPrimitive)
	require.NotNil(t, countField)
	require.True(t, countField.IsMutable)
	require.False(t, countField.IsVolatile)

	fn := findFunction(tu, "example.com/sample.Counter.Incr")
	require.NotNil(t, fn)
	require.True(t, fn.HasBody)
	require.Len(t, fn.Facts.Locks, 1)
	require.Equal(t, "mu", fn.Facts.Locks[0].ReceiverName)

	g := findGlobal(tu, "sharedCounter")
	require.NotNil(t, g)
	require.Equal(t, core.StorageGlobal, g.StorageClass)
	require.False(t, g.HasAtomicFields)
}

func TestLoad_ReturnsAnalysisErrorOnBadSource(t *testing.T) {
	dir := writeModule(t, "package sample\n\nfunc broken( {\n")

	_, err := Load(dir, "./...")
	require.Error(t, err)
}
