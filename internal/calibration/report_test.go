// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package calibration

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/faultline/faultline/internal/hypothesis"
)

func TestReport_EmptyCorpusReturnsZeroValueReport(t *testing.T) {
	s := newTestStore(t)

	report, err := s.Report("v1", hypothesis.CentralizedDispatch)
	require.NoError(t, err)
	require.Equal(t, "v1", report.ModelVersion)
	require.Equal(t, uint32(0), report.TrainingRecords)
	require.Equal(t, uint32(0), report.TestRecords)
}

func TestReport_SplitsTrainingAndTestRecords(t *testing.T) {
	s := newTestStore(t)

	for i := 0; i < 10; i++ {
		result := validResult(hypothesis.Confirmed)
		result.FindingID = result.FindingID + string(rune('a'+i))
		_, err := s.Ingest(result, []float64{float64(i)}, hypothesis.HazardAmplification)
		require.NoError(t, err)
	}

	report, err := s.Report("v1", hypothesis.HazardAmplification)
	require.NoError(t, err)
	require.Equal(t, uint32(8), report.TrainingRecords)
	require.Equal(t, uint32(2), report.TestRecords)
	require.GreaterOrEqual(t, report.AUCROC, 0.0)
	require.LessOrEqual(t, report.AUCROC, 1.0)
}

func TestReport_ExcludesConfoundedRecordsFromSplit(t *testing.T) {
	s := newTestStore(t)

	result := validResult(hypothesis.Confounded)
	_, err := s.Ingest(result, []float64{1}, hypothesis.StdFunction)
	require.NoError(t, err)

	report, err := s.Report("v1", hypothesis.StdFunction)
	require.NoError(t, err)
	require.Equal(t, uint32(0), report.TrainingRecords)
	require.Equal(t, uint32(0), report.TestRecords)
}
