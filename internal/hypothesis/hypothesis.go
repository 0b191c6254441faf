// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package hypothesis

import "github.com/faultline/faultline/internal/core"

// MetricSpec names the measurement a hypothesis's verdict turns on.
type MetricSpec struct {
	Name       string
	Unit       string
	Percentile string
}

// ConfoundControl is one environmental variable a measurement must pin down
// before a verdict can be trusted, and how to pin it down.
type ConfoundControl struct {
	Variable string
	Method   string
}

// ExperimentVerdict is the outcome of running (or not yet running) the
// measurement a LatencyHypothesis describes.
type ExperimentVerdict uint8

const (
	Pending ExperimentVerdict = iota
	Confirmed
	Refuted
	Inconclusive
	Confounded
)

func (v ExperimentVerdict) String() string {
	switch v {
	case Pending:
		return "Pending"
	case Confirmed:
		return "Confirmed"
	case Refuted:
		return "Refuted"
	case Inconclusive:
		return "Inconclusive"
	case Confounded:
		return "Confounded"
	default:
		return "Unknown"
	}
}

// LatencyHypothesis is a falsifiable claim derived from one diagnostic: a
// structural hazard predicts a specific, measurable latency effect, stated
// in a form an experiment can confirm or refute rather than merely assert.
type LatencyHypothesis struct {
	FindingID    string
	HypothesisID string
	RuleID       string
	HazardClass  HazardClass
	FunctionName string
	Location     core.SourceLocation
	EvidenceTier core.EvidenceTier

	H0            string
	H1            string
	PrimaryMetric MetricSpec
	CounterSet    PMUCounterSet

	MinimumDetectableEffect float64
	SignificanceLevel       float64
	Power                   float64
	RequiredRuns            int

	ConfoundControls []ConfoundControl
	Features         []float64
	Verdict          ExperimentVerdict

	ControlDescription   string
	TreatmentDescription string
	InteractionEligible  bool
}
