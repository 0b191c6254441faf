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

const globalsSource = `package sample

import "sync/atomic"

type Stats struct {
	hits atomic.Int64
}

var plainCounter int
var atomicCounter atomic.Int64
var statsBlock Stats
var a, b = 1, 2
var _ = "discarded"
`

func TestBuildGlobals_ClassifiesEachVarDecl(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module example.com/sample\n\ngo 1.22\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sample.go"), []byte(globalsSource), 0o644))

	pkgs, err := Load(dir, "./...")
	require.NoError(t, err)

	tu := Extract(pkgs)

	plain := findGlobal(tu, "plainCounter")
	require.NotNil(t, plain)
	require.False(t, plain.IsAtomicType)
	require.False(t, plain.HasAtomicFields)
	require.Equal(t, core.StorageGlobal, plain.StorageClass)
	require.False(t, plain.HasInitializer)

	atomicGlobal := findGlobal(tu, "atomicCounter")
	require.NotNil(t, atomicGlobal)
	require.True(t, atomicGlobal.IsAtomicType)

	block := findGlobal(tu, "statsBlock")
	require.NotNil(t, block)
	require.False(t, block.IsAtomicType)
	require.True(t, block.HasAtomicFields)

	aGlobal := findGlobal(tu, "a")
	require.NotNil(t, aGlobal)
	require.True(t, aGlobal.HasInitializer)

	require.Nil(t, findGlobal(tu, "_"))
}
