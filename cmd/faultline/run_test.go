// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/faultline/faultline/internal/core"
)

func TestApplyOverrides_OnlyOverridesSetFlags(t *testing.T) {
	cfg := core.Defaults()
	applyOverrides(&cfg, runOptions{minSeverity: "critical", irCompiler: "faultline-lower"})

	require.Equal(t, "critical", cfg.MinSeverity)
	require.Equal(t, "faultline-lower", cfg.IRCompiler)
	require.Equal(t, core.Defaults().IROptLevel, cfg.IROptLevel, "unset flags leave the loaded value untouched")
	require.Empty(t, cfg.CalibrationDBPath)
}

func TestSourceFiles_DedupsAndSkipsEmpty(t *testing.T) {
	tu := core.TranslationUnit{
		Functions: []*core.FunctionDecl{
			{File: "a.go"},
			{File: "a.go"},
			{File: "b.go"},
			{File: ""},
		},
	}

	require.ElementsMatch(t, []string{"a.go", "b.go"}, sourceFiles(tu))
}

func TestExitCodeFor_OneUnsuppressedDiagnosticExitsNonZero(t *testing.T) {
	require.Equal(t, 0, exitCodeFor(nil))
	require.Equal(t, 0, exitCodeFor([]core.Diagnostic{{Suppressed: true}}))
	require.Equal(t, 1, exitCodeFor([]core.Diagnostic{{Suppressed: true}, {Suppressed: false}}))
}

func TestWriteReport_WritesToFileWhenOutputPathSet(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.json")

	require.NoError(t, writeReport(nil, path, []byte(`{"ok":true}`)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, `{"ok":true}`, string(data))
}

func TestFilterMinEvidenceTier_DropsBelowThreshold(t *testing.T) {
	diags := []core.Diagnostic{
		{RuleID: "FL001", EvidenceTier: core.Speculative},
		{RuleID: "FL002", EvidenceTier: core.Likely},
		{RuleID: "FL010", EvidenceTier: core.Proven},
	}

	kept := filterMinEvidenceTier(diags, core.Likely)

	require.Len(t, kept, 2)
	for _, d := range kept {
		require.NotEqual(t, "FL001", d.RuleID)
	}
}

func TestNewRootCmd_DefaultsMatchExpectations(t *testing.T) {
	opts = runOptions{}
	cmd := newRootCmd()

	formatFlag := cmd.Flags().Lookup("format")
	require.Equal(t, "cli", formatFlag.DefValue)

	jobsFlag := cmd.Flags().Lookup("jobs")
	require.Equal(t, "4", jobsFlag.DefValue)
}
