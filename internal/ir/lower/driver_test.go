// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package lower

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeCompiler writes a tiny shell script that ignores its arguments and
// emits a fixed textual-IR payload, standing in for cmd/faultline-lower.
func fakeCompiler(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "fake-lower.sh")
	script := "#!/bin/sh\n" +
		"cat <<'EOF'\n" +
		"FUNC pkg.Hot\tpkg.Hot\n" +
		"BB 1 LOOP=0\n" +
		"ALLOCA name=buf size=128 array=0\n" +
		"ENDFUNC\n" +
		"EOF\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func TestDriver_RunLowersAndCaches(t *testing.T) {
	dir := t.TempDir()
	compiler := fakeCompiler(t, dir)

	src := filepath.Join(dir, "hot.go")
	require.NoError(t, os.WriteFile(src, []byte("package pkg\nfunc Hot() {}\n"), 0o644))

	cacheDir := filepath.Join(dir, "cache")
	d := NewDriver(compiler, "2", 4, WithCache(cacheDir))
	defer d.Close()

	profiles, err := d.Run(context.Background(), []string{src})
	require.NoError(t, err)
	require.Contains(t, profiles, "pkg.Hot")
	require.Equal(t, int64(128), profiles["pkg.Hot"].TotalAllocaBytes)

	// Second run should hit the cache rather than re-invoking the compiler;
	// remove the compiler to prove it wasn't called.
	require.NoError(t, os.Remove(compiler))

	profiles2, err := d.Run(context.Background(), []string{src})
	require.NoError(t, err)
	require.Contains(t, profiles2, "pkg.Hot")
}

func TestDriver_PassthroughArgsChangeCacheKey(t *testing.T) {
	dir := t.TempDir()
	compiler := fakeCompiler(t, dir)

	src := filepath.Join(dir, "hot.go")
	require.NoError(t, os.WriteFile(src, []byte("package pkg\nfunc Hot() {}\n"), 0o644))

	plain := NewDriver(compiler, "2", 4)
	withFlags := NewDriver(compiler, "2", 4, WithPassthroughArgs([]string{"-DDEBUG"}))

	require.NotEqual(t, plain.cacheKey(src, []byte("x")), withFlags.cacheKey(src, []byte("x")),
		"passthrough args must be part of the cache key so a flag change busts the cache")
}

func TestDriver_MissingSourceSkipsWithoutFailingRun(t *testing.T) {
	dir := t.TempDir()
	compiler := fakeCompiler(t, dir)

	d := NewDriver(compiler, "0", 2)
	defer d.Close()

	profiles, err := d.Run(context.Background(), []string{filepath.Join(dir, "missing.go")})
	require.NoError(t, err)
	require.Empty(t, profiles)
}
