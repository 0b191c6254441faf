// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package calibration

import (
	"math"

	"github.com/faultline/faultline/internal/hypothesis"
)

// trainTestSplit is the fraction of labeled records treated as the training
// set when Report partitions the corpus; the remainder is the holdout set.
// Records are taken in the store's key order (finding ID, then hypothesis
// ID), so the split is deterministic across runs over the same store
// contents.
const trainTestSplit = 0.8

// Report summarizes the labeled corpus for a hazard class into a
// CalibrationReport, scoring how well LabelQuality (used as a stand-in
// predicted probability of the Positive label) tracks the actual labels.
//
// Description:
//
//	This store does not train a classifier; it has no predicted
//	probabilities to score beyond the quality weight assigned at ingest
//	time. Report treats that weight as the model's implied confidence
//	and computes the usual calibration diagnostics against it, which is
//	only as informative as that stand-in — a real trained model's
//	Brier score belongs in a downstream trainer, not here.
func (s *Store) Report(modelVersion string, hc hypothesis.HazardClass) (CalibrationReport, error) {
	records, err := s.QueryByHazardClass(hc)
	if err != nil {
		return CalibrationReport{}, err
	}

	usable := make([]LabeledRecord, 0, len(records))
	for _, r := range records {
		if r.Label != Excluded {
			usable = append(usable, r)
		}
	}

	splitAt := int(float64(len(usable)) * trainTestSplit)
	training := usable[:splitAt]
	test := usable[splitAt:]

	report := CalibrationReport{
		ModelVersion:    modelVersion,
		TrainingRecords: uint32(len(training)),
		TestRecords:     uint32(len(test)),
	}

	if len(test) == 0 {
		return report, nil
	}

	report.BrierScore = brierScore(test)
	report.MaxCalibrationError = maxCalibrationError(test)
	report.PrecisionHighCritical, report.RecallCritical = precisionRecall(test)
	report.AUCROC = auc(test)
	report.AdversarialCorpusPass = report.BrierScore < 0.25 && report.MaxCalibrationError < 0.30

	return report, nil
}

func actual(label LabelValue) float64 {
	if label == Positive {
		return 1.0
	}
	return 0.0
}

func brierScore(records []LabeledRecord) float64 {
	var sum float64
	for _, r := range records {
		diff := r.LabelQuality - actual(r.Label)
		sum += diff * diff
	}
	return sum / float64(len(records))
}

// maxCalibrationError buckets predictions into deciles and returns the
// largest gap between each bucket's mean predicted quality and its
// observed Positive fraction.
func maxCalibrationError(records []LabeledRecord) float64 {
	const buckets = 10
	sums := make([]float64, buckets)
	positives := make([]float64, buckets)
	counts := make([]int, buckets)

	for _, r := range records {
		idx := int(r.LabelQuality * buckets)
		if idx >= buckets {
			idx = buckets - 1
		}
		if idx < 0 {
			idx = 0
		}
		sums[idx] += r.LabelQuality
		positives[idx] += actual(r.Label)
		counts[idx]++
	}

	var maxErr float64
	for i := 0; i < buckets; i++ {
		if counts[i] == 0 {
			continue
		}
		meanPred := sums[i] / float64(counts[i])
		meanActual := positives[i] / float64(counts[i])
		if diff := math.Abs(meanPred - meanActual); diff > maxErr {
			maxErr = diff
		}
	}
	return maxErr
}

func precisionRecall(records []LabeledRecord) (precision, recall float64) {
	var truePos, falsePos, falseNeg int
	for _, r := range records {
		predictedPositive := r.LabelQuality >= 0.5
		isPositive := r.Label == Positive

		switch {
		case predictedPositive && isPositive:
			truePos++
		case predictedPositive && !isPositive:
			falsePos++
		case !predictedPositive && isPositive:
			falseNeg++
		}
	}

	if truePos+falsePos > 0 {
		precision = float64(truePos) / float64(truePos+falsePos)
	}
	if truePos+falseNeg > 0 {
		recall = float64(truePos) / float64(truePos+falseNeg)
	}
	return precision, recall
}

// auc computes the area under the ROC curve via the Mann-Whitney U
// statistic, ranking records by LabelQuality.
func auc(records []LabeledRecord) float64 {
	var positives, negatives []float64
	for _, r := range records {
		if r.Label == Positive {
			positives = append(positives, r.LabelQuality)
		} else {
			negatives = append(negatives, r.LabelQuality)
		}
	}
	if len(positives) == 0 || len(negatives) == 0 {
		return 0.5
	}

	var wins float64
	for _, p := range positives {
		for _, n := range negatives {
			switch {
			case p > n:
				wins += 1.0
			case p == n:
				wins += 0.5
			}
		}
	}
	return wins / float64(len(positives)*len(negatives))
}
