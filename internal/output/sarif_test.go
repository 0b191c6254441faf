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

func TestSARIFFormatter_ProducesOneRunWithDeduplicatedRules(t *testing.T) {
	d1 := sampleDiagnostic()
	d2 := sampleDiagnostic()
	d2.Location.Line = 40

	f := &SARIFFormatter{}
	out, err := f.Format([]core.Diagnostic{d1, d2}, core.ExecutionMetadata{})
	require.NoError(t, err)

	var decoded sarifLog
	require.NoError(t, json.Unmarshal(out, &decoded))

	require.Equal(t, "2.1.0", decoded.Version)
	require.Len(t, decoded.Runs, 1)
	require.Len(t, decoded.Runs[0].Tool.Driver.Rules, 1, "two diagnostics share one rule ID")
	require.Len(t, decoded.Runs[0].Results, 2)
}

func TestSARIFFormatter_SeverityMapsToSARIFLevel(t *testing.T) {
	critical := sampleDiagnostic()
	critical.Severity = core.Critical

	f := &SARIFFormatter{}
	out, err := f.Format([]core.Diagnostic{critical}, core.ExecutionMetadata{})
	require.NoError(t, err)

	var decoded sarifLog
	require.NoError(t, json.Unmarshal(out, &decoded))
	require.Equal(t, "error", decoded.Runs[0].Results[0].Level)
}

func TestSARIFFormatter_OmitsSuppressedResults(t *testing.T) {
	d := sampleDiagnostic()
	d.Suppressed = true

	f := &SARIFFormatter{}
	out, err := f.Format([]core.Diagnostic{d}, core.ExecutionMetadata{})
	require.NoError(t, err)

	var decoded sarifLog
	require.NoError(t, json.Unmarshal(out, &decoded))
	require.Empty(t, decoded.Runs[0].Results)
	require.Len(t, decoded.Runs[0].Tool.Driver.Rules, 1, "rule metadata is still emitted even when suppressed")
}
