// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package calibration

import (
	"log/slog"
	"os"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"github.com/faultline/faultline/internal/hypothesis"
)

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	quiet := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	opts = append([]Option{WithLogger(quiet)}, opts...)
	return newStore(db, opts...)
}

func validResult(verdict hypothesis.ExperimentVerdict) ExperimentResult {
	return ExperimentResult{
		FindingID:             "finding-1",
		HypothesisID:          "hyp-1",
		SchemaVersion:         "v1",
		Verdict:               verdict,
		PValue:                0.01,
		EffectSizeD:           0.8,
		Power:                 0.9,
		WarmupIterations:      10,
		MeasurementIterations: 1000,
		IngestionTimestamp:    1700000000,
		EnvState: EnvironmentState{
			CPUModel:      "Xeon Platinum 8275CL",
			SKUFamily:     "icelake-server",
			Kernel:        "6.1.0",
			CoresUsed:     []int{0, 1, 2, 3},
			Governor:      "performance",
			TurboDisabled: true,
		},
	}
}

func TestIngest_ConfirmedVerdictYieldsPositiveLabel(t *testing.T) {
	s := newTestStore(t)

	rec, err := s.Ingest(validResult(hypothesis.Confirmed), []float64{1, 2, 3}, hypothesis.AtomicContention)
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.Equal(t, Positive, rec.Label)
	require.Greater(t, rec.LabelQuality, 0.0)
}

func TestIngest_RefutedVerdictYieldsNegativeLabelAndRegistersFalsePositive(t *testing.T) {
	s := newTestStore(t)
	features := []float64{4, 5, 6}

	rec, err := s.Ingest(validResult(hypothesis.Refuted), features, hypothesis.LockContention)
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.Equal(t, Negative, rec.Label)

	known, err := s.IsKnownFalsePositive(features, hypothesis.LockContention)
	require.NoError(t, err)
	require.False(t, known, "one refutation is below the default threshold of 3")
}

func TestIngest_ThreeRefutationsTripsKnownFalsePositive(t *testing.T) {
	s := newTestStore(t)
	features := []float64{7, 8, 9}

	for i := 0; i < 3; i++ {
		result := validResult(hypothesis.Refuted)
		result.FindingID = result.FindingID + string(rune('a'+i))
		_, err := s.Ingest(result, features, hypothesis.HeapAllocation)
		require.NoError(t, err)
	}

	known, err := s.IsKnownFalsePositive(features, hypothesis.HeapAllocation)
	require.NoError(t, err)
	require.True(t, known)
}

func TestIngest_ConfoundedVerdictIsExcludedRegardlessOfQuality(t *testing.T) {
	s := newTestStore(t)

	result := validResult(hypothesis.Confounded)
	result.Power = 0.99
	result.EnvState.TurboDisabled = true
	result.EnvState.Governor = "performance"

	rec, err := s.Ingest(result, []float64{1}, hypothesis.DeepConditional)
	require.NoError(t, err)
	require.Equal(t, Excluded, rec.Label)
}

func TestIngest_LowPowerDowngradesNegativeToUnlabeled(t *testing.T) {
	s := newTestStore(t)

	result := validResult(hypothesis.Refuted)
	result.Power = 0.2

	rec, err := s.Ingest(result, []float64{1}, hypothesis.GlobalState)
	require.NoError(t, err)
	require.Equal(t, Unlabeled, rec.Label)
}

func TestIngest_LowEnvironmentQualityDowngradesToUnlabeled(t *testing.T) {
	s := newTestStore(t)

	result := validResult(hypothesis.Confirmed)
	result.EnvState.TurboDisabled = false
	result.EnvState.Governor = "powersave"
	result.EnvState.CoresUsed = nil
	result.Power = 0.5

	rec, err := s.Ingest(result, []float64{1}, hypothesis.NUMALocality)
	require.NoError(t, err)
	require.Equal(t, Unlabeled, rec.Label)
}

func TestIngest_RejectsIncompleteSchema(t *testing.T) {
	s := newTestStore(t)

	result := validResult(hypothesis.Confirmed)
	result.FindingID = ""

	rec, err := s.Ingest(result, []float64{1}, hypothesis.CacheGeometry)
	require.NoError(t, err)
	require.Nil(t, rec)
}

func TestQueryByHazardClass_OnlyReturnsMatchingClass(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Ingest(validResult(hypothesis.Confirmed), []float64{1}, hypothesis.AtomicContention)
	require.NoError(t, err)

	result2 := validResult(hypothesis.Confirmed)
	result2.FindingID = "finding-2"
	_, err = s.Ingest(result2, []float64{2}, hypothesis.LockContention)
	require.NoError(t, err)

	records, err := s.QueryByHazardClass(hypothesis.AtomicContention)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "finding-1", records[0].FindingID)
}

func TestQueryBySKU_MatchesOnEnvironmentSKU(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Ingest(validResult(hypothesis.Confirmed), []float64{1}, hypothesis.AtomicContention)
	require.NoError(t, err)

	records, err := s.QueryBySKU("icelake-server")
	require.NoError(t, err)
	require.Len(t, records, 1)

	none, err := s.QueryBySKU("no-such-sku")
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestRecordCount_ReflectsIngestedRecords(t *testing.T) {
	s := newTestStore(t)

	count, err := s.RecordCount()
	require.NoError(t, err)
	require.Equal(t, 0, count)

	_, err = s.Ingest(validResult(hypothesis.Confirmed), []float64{1}, hypothesis.AtomicContention)
	require.NoError(t, err)

	count, err = s.RecordCount()
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestWithMinRefutations_OverridesDefaultThreshold(t *testing.T) {
	s := newTestStore(t, WithMinRefutations(1))
	features := []float64{10, 11}

	_, err := s.Ingest(validResult(hypothesis.Refuted), features, hypothesis.StackPressure)
	require.NoError(t, err)

	known, err := s.IsKnownFalsePositive(features, hypothesis.StackPressure)
	require.NoError(t, err)
	require.True(t, known)
}

func TestOpen_EmptyPathReturnsError(t *testing.T) {
	_, err := Open("")
	require.Error(t, err)
}
