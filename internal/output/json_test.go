// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package output

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/faultline/faultline/internal/core"
)

func TestJSONFormatter_RoundTripsThroughStandardJSON(t *testing.T) {
	f := &JSONFormatter{}
	meta := core.ExecutionMetadata{
		RunID:           "run-1",
		ToolVersion:     "0.1.0",
		ConfigPath:      "faultline.yaml",
		IROptLevel:      "O1",
		IREnabled:       true,
		TimestampEpochS: 1700000000,
		SourceFiles:     []string{"pool.go"},
		Compilers:       []core.CompilerInfo{{Path: "/usr/bin/clang"}},
	}

	out, err := f.Format([]core.Diagnostic{sampleDiagnostic()}, meta)
	require.NoError(t, err)

	var decoded jsonReport
	require.NoError(t, json.Unmarshal(out, &decoded))

	require.Len(t, decoded.Diagnostics, 1)
	require.Equal(t, "FL001", decoded.Diagnostics[0].RuleID)
	require.Equal(t, "High", decoded.Diagnostics[0].Severity)
	require.Equal(t, "pool.go", decoded.Diagnostics[0].Location.File)
	require.Equal(t, "faultline.yaml", decoded.Metadata.ConfigPath)
	require.Len(t, decoded.Metadata.Compilers, 1)
}

func TestJSONFormatter_EmptyEscalationsEncodeAsEmptyArrayNotNull(t *testing.T) {
	d := sampleDiagnostic()
	d.Escalations = nil

	f := &JSONFormatter{}
	out, err := f.Format([]core.Diagnostic{d}, core.ExecutionMetadata{})
	require.NoError(t, err)
	require.Contains(t, string(out), `"escalations": []`)
}
