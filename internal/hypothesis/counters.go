// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package hypothesis

// CounterTier classifies how portable a PMU counter is across x86-64
// microarchitectures.
type CounterTier uint8

const (
	// Universal counters are available on every x86-64 part since Sandy
	// Bridge (cycles, instructions, branches, page-faults).
	Universal CounterTier = iota
	// Standard counters are available on most server SKUs but not every
	// consumer part.
	Standard
	// Extended counters require a specific microarchitecture and often a
	// raw event encoding rather than a perf alias.
	Extended
	// Uncore counters are per-socket rather than per-core.
	Uncore
)

func (t CounterTier) String() string {
	switch t {
	case Universal:
		return "Universal"
	case Standard:
		return "Standard"
	case Extended:
		return "Extended"
	case Uncore:
		return "Uncore"
	default:
		return "Unknown"
	}
}

// PMUCounter is one named hardware performance counter a measurement would
// read, with the justification for why it confirms the hazard under test.
type PMUCounter struct {
	Name          string
	Tier          CounterTier
	Justification string
	SKUOverride   string // empty = universal perf event name
}

// PMUCounterSet is the required and optional counters a hypothesis's
// measurement needs: required counters must be readable for the experiment
// to proceed; optional counters add confirmatory precision when available.
type PMUCounterSet struct {
	Required []PMUCounter
	Optional []PMUCounter
}

// Merged returns a new set combining s with other, required concatenated
// with required and optional with optional. Used to build a combined
// counter set for a multi-hazard interaction template.
func (s PMUCounterSet) Merged(other PMUCounterSet) PMUCounterSet {
	out := PMUCounterSet{
		Required: make([]PMUCounter, 0, len(s.Required)+len(other.Required)),
		Optional: make([]PMUCounter, 0, len(s.Optional)+len(other.Optional)),
	}
	out.Required = append(out.Required, s.Required...)
	out.Required = append(out.Required, other.Required...)
	out.Optional = append(out.Optional, s.Optional...)
	out.Optional = append(out.Optional, other.Optional...)
	return out
}
