// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package hypothesis turns a confirmed diagnostic into a falsifiable
// latency hypothesis: which PMU counters would confirm it, what the null
// and alternative hypotheses are, and which other co-located hazards it
// might interact with superadditively. It does not generate or run
// measurement experiments; that stays out of scope.
package hypothesis

// HazardClass groups the fifteen rule IDs into the coarser taxonomy a
// hypothesis and its PMU counter set are keyed on — several rules share
// their hardware mechanism closely enough that one hypothesis template
// serves all of them.
type HazardClass uint8

const (
	CacheGeometry HazardClass = iota
	FalseSharing
	AtomicOrdering
	AtomicContention
	LockContention
	HeapAllocation
	StackPressure
	VirtualDispatch
	StdFunction
	GlobalState
	ContendedQueue
	DeepConditional
	NUMALocality
	CentralizedDispatch
	HazardAmplification
)

func (hc HazardClass) String() string {
	switch hc {
	case CacheGeometry:
		return "CacheGeometry"
	case FalseSharing:
		return "FalseSharing"
	case AtomicOrdering:
		return "AtomicOrdering"
	case AtomicContention:
		return "AtomicContention"
	case LockContention:
		return "LockContention"
	case HeapAllocation:
		return "HeapAllocation"
	case StackPressure:
		return "StackPressure"
	case VirtualDispatch:
		return "VirtualDispatch"
	case StdFunction:
		return "StdFunction"
	case GlobalState:
		return "GlobalState"
	case ContendedQueue:
		return "ContendedQueue"
	case DeepConditional:
		return "DeepConditional"
	case NUMALocality:
		return "NUMALocality"
	case CentralizedDispatch:
		return "CentralizedDispatch"
	case HazardAmplification:
		return "HazardAmplification"
	default:
		return "Unknown"
	}
}

// ruleHazardClass maps a rule ID to its HazardClass.
var ruleHazardClass = map[string]HazardClass{
	"FL001": CacheGeometry,
	"FL002": FalseSharing,
	"FL010": AtomicOrdering,
	"FL011": AtomicContention,
	"FL012": LockContention,
	"FL020": HeapAllocation,
	"FL021": StackPressure,
	"FL030": VirtualDispatch,
	"FL031": StdFunction,
	"FL040": GlobalState,
	"FL041": ContendedQueue,
	"FL050": DeepConditional,
	"FL060": NUMALocality,
	"FL061": CentralizedDispatch,
	"FL090": HazardAmplification,
}

// MapRuleToHazardClass returns the HazardClass for a rule ID, defaulting to
// CacheGeometry for an unrecognized ID exactly as the reference constructor
// does, rather than introducing an error return this lookup never needed
// before.
func MapRuleToHazardClass(ruleID string) HazardClass {
	if hc, ok := ruleHazardClass[ruleID]; ok {
		return hc
	}
	return CacheGeometry
}
