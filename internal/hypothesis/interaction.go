// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package hypothesis

import (
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/faultline/faultline/internal/core"
)

// InteractionTemplate describes a pairing (or triple) of hazard classes
// whose combined effect on tail latency is hypothesized to be
// super-additive, not merely the sum of each hazard's individual effect.
type InteractionTemplate struct {
	ID                      string
	Components              []HazardClass
	AmplificationMechanism  string
	CounterSet              PMUCounterSet
	InteractionThreshold    float64
}

// InteractionCandidate is a pair (or more) of co-located hypotheses whose
// hazard classes matched an InteractionTemplate.
type InteractionCandidate struct {
	DeclarationScope string
	FindingIDs       []string
	HazardClasses    []HazardClass
	MatchedTemplate  *InteractionTemplate
}

// InteractionResult is a completed interaction measurement: the two
// hazards' individual effects, their combined effect, and whether the
// combination measured super-additive.
type InteractionResult struct {
	InteractionID     string
	TemplateID        string
	EffectA           float64
	EffectB           float64
	EffectCombined    float64
	InteractionEffect float64
	InteractionD      float64
	PValue            float64
	SuperAdditive     bool
	ReplicationCount  uint32
	ConfirmedSKUs     []string
}

// InteractionCatalogEntry accumulates every InteractionResult recorded
// against one InteractionTemplate, along with the running mean interaction
// effect size across all of them.
type InteractionCatalogEntry struct {
	Template              InteractionTemplate
	Results               []InteractionResult
	MeanInteractionD      float64
	ConfirmedSuperAdditive bool
}

// counterSetFor looks up a hazard class's counter set for building an
// interaction template, returning an empty set rather than panicking when
// the class has no registered template (DeepConditional has none — the
// reference eligibility matrix dereferences that lookup unconditionally,
// which is a null-pointer bug there; here a missing component counter set
// is simply contributed as empty, and the merge still produces usable
// required counters from whichever component classes do have templates).
func counterSetFor(hc HazardClass) PMUCounterSet {
	if tmpl, ok := LookupTemplate(hc); ok {
		return tmpl.CounterSet
	}
	return PMUCounterSet{}
}

// eligibilityMatrix is the fixed set of interaction templates, built once
// at package init from the template registry's counter sets.
var eligibilityMatrix = buildEligibilityMatrix()

func buildEligibilityMatrix() []InteractionTemplate {
	cg := counterSetFor(CacheGeometry)
	fs := counterSetFor(FalseSharing)
	ao := counterSetFor(AtomicOrdering)
	ac := counterSetFor(AtomicContention)
	numa := counterSetFor(NUMALocality)
	lock := counterSetFor(LockContention)
	heap := counterSetFor(HeapAllocation)
	vd := counterSetFor(VirtualDispatch)
	dc := counterSetFor(DeepConditional) // empty: no template for DeepConditional

	return []InteractionTemplate{
		{
			ID:                     "IX-001",
			Components:             []HazardClass{CacheGeometry, AtomicContention},
			AmplificationMechanism: "Multi-line RFO amplification: RFO traffic spans multiple cache lines, each requiring separate ownership transfer",
			CounterSet:             cg.Merged(ac),
			InteractionThreshold:   0.20,
		},
		{
			ID:                     "IX-002",
			Components:             []HazardClass{FalseSharing, AtomicContention},
			AmplificationMechanism: "Same-line invalidation + atomic write serialization: every write invalidates the line for all other cores, atomics prevent batching",
			CounterSet:             fs.Merged(ac),
			InteractionThreshold:   0.20,
		},
		{
			ID:                     "IX-003",
			Components:             []HazardClass{AtomicOrdering, AtomicContention},
			AmplificationMechanism: "Fence serialization + ownership transfer: seq_cst fence extends the window during which the line is exclusively held",
			CounterSet:             ao.Merged(ac),
			InteractionThreshold:   0.20,
		},
		{
			ID:                     "IX-004",
			Components:             []HazardClass{AtomicContention, NUMALocality},
			AmplificationMechanism: "Cross-socket RFO: remote RFO is 3-5x more expensive than intra-socket, compounding contention cost",
			CounterSet:             ac.Merged(numa),
			InteractionThreshold:   0.20,
		},
		{
			ID:                     "IX-005",
			Components:             []HazardClass{LockContention, HeapAllocation},
			AmplificationMechanism: "Allocation under lock: allocation latency extends critical section, increasing contention probability",
			CounterSet:             lock.Merged(heap),
			InteractionThreshold:   0.20,
		},
		{
			ID:                     "IX-006",
			Components:             []HazardClass{VirtualDispatch, DeepConditional},
			AmplificationMechanism: "Compounding branch misprediction surface: virtual dispatch + deep conditionals exhaust BTB and pattern history",
			CounterSet:             vd.Merged(dc),
			InteractionThreshold:   0.20,
		},
		{
			ID:                     "IX-007",
			Components:             []HazardClass{CacheGeometry, AtomicContention, NUMALocality},
			AmplificationMechanism: "Full compound hazard: large struct + atomics + NUMA produces multi-line cross-socket RFO storm",
			CounterSet:             cg.Merged(ac).Merged(numa),
			InteractionThreshold:   0.20,
		},
	}
}

// IsEligible reports whether a and b (in either order) are the two
// components of some registered interaction template.
func IsEligible(a, b HazardClass) bool {
	return findPairTemplate(a, b) != nil
}

// findPairTemplate returns the two-component template pairing a and b (in
// either order), or nil if no such template exists.
func findPairTemplate(a, b HazardClass) *InteractionTemplate {
	for i := range eligibilityMatrix {
		t := &eligibilityMatrix[i]
		if len(t.Components) != 2 {
			continue
		}
		if (t.Components[0] == a && t.Components[1] == b) ||
			(t.Components[0] == b && t.Components[1] == a) {
			return t
		}
	}
	return nil
}

// DetectInteractions groups hypotheses by declaration scope (the file the
// finding's location names, extracted from FindingID) and, within each
// scope with at least two findings, checks every pair against the
// eligibility matrix.
func DetectInteractions(hypotheses []LatencyHypothesis) []InteractionCandidate {
	scopeGroups := make(map[string][]int)
	for i, h := range hypotheses {
		scopeGroups[declarationScope(h.FindingID)] = append(scopeGroups[declarationScope(h.FindingID)], i)
	}

	var candidates []InteractionCandidate
	for scope, indices := range scopeGroups {
		if len(indices) < 2 {
			continue
		}
		for i := 0; i < len(indices); i++ {
			for j := i + 1; j < len(indices); j++ {
				a := hypotheses[indices[i]].HazardClass
				b := hypotheses[indices[j]].HazardClass
				tmpl := findPairTemplate(a, b)
				if tmpl == nil {
					continue
				}
				candidates = append(candidates, InteractionCandidate{
					DeclarationScope: scope,
					FindingIDs:       []string{hypotheses[indices[i]].FindingID, hypotheses[indices[j]].FindingID},
					HazardClasses:    []HazardClass{a, b},
					MatchedTemplate:  tmpl,
				})
			}
		}
	}
	return candidates
}

// declarationScope extracts the file portion of a "FL0XX-file:line"
// finding ID for grouping co-located findings. A more precise
// implementation would group by AST declaration scope instead of file.
func declarationScope(findingID string) string {
	scope := findingID
	if dash := strings.Index(scope, "-"); dash >= 0 {
		scope = scope[dash+1:]
	}
	if colon := strings.LastIndex(scope, ":"); colon >= 0 {
		scope = scope[:colon]
	}
	return scope
}

// ConstructInteractionHypothesis turns a matched InteractionCandidate into
// a LatencyHypothesis whose null hypothesis is additivity and whose
// alternative is super-additivity by at least the template's threshold.
func ConstructInteractionHypothesis(candidate InteractionCandidate) (LatencyHypothesis, bool) {
	if candidate.MatchedTemplate == nil || len(candidate.HazardClasses) < 2 {
		return LatencyHypothesis{}, false
	}
	tmpl := *candidate.MatchedTemplate

	h := fnv.New64a()
	fmt.Fprint(h, tmpl.ID)
	for _, fid := range candidate.FindingIDs {
		fmt.Fprintf(h, "-%s", fid)
	}

	a, b := candidate.HazardClasses[0], candidate.HazardClasses[1]
	findingID := candidate.FindingIDs[0]
	if len(candidate.FindingIDs) > 1 {
		findingID = candidate.FindingIDs[0] + "+" + candidate.FindingIDs[1]
	}

	return LatencyHypothesis{
		HypothesisID: fmt.Sprintf("H-%s-%d", tmpl.ID, h.Sum64()),
		FindingID:    findingID,
		HazardClass:  HazardAmplification,

		H0: fmt.Sprintf("The combined effect of %s and %s on tail latency is <= sum of individual effects.", a, b),
		H1: fmt.Sprintf("The combined effect of %s and %s on tail latency is > sum of individual effects by >= %.0f%% (interaction threshold). Mechanism: %s",
			a, b, tmpl.InteractionThreshold*100, tmpl.AmplificationMechanism),

		PrimaryMetric: MetricSpec{Name: "p99.99_operation_latency_ns", Unit: "nanoseconds", Percentile: "p99.99"},
		CounterSet:    tmpl.CounterSet,

		MinimumDetectableEffect: 0.05,
		SignificanceLevel:       0.01,
		Power:                   0.90,
		RequiredRuns:            0,
		EvidenceTier:            core.Likely,
		Verdict:                 Pending,

		ControlDescription:   "Both hazards mitigated (baseline)",
		TreatmentDescription: "Both hazards present simultaneously",
	}, true
}

// InteractionCatalog accumulates measured InteractionResults per template,
// recomputing each entry's mean interaction effect as new results arrive.
type InteractionCatalog struct {
	entries []InteractionCatalogEntry
}

// AddResult records a result against templateID, creating a new catalog
// entry from the eligibility matrix's template definition if this is the
// first result seen for it. An unknown templateID is silently dropped.
func (c *InteractionCatalog) AddResult(templateID string, result InteractionResult) {
	for i := range c.entries {
		if c.entries[i].Template.ID != templateID {
			continue
		}
		c.entries[i].Results = append(c.entries[i].Results, result)
		var sum float64
		anySuperAdditive := false
		for _, r := range c.entries[i].Results {
			sum += r.InteractionD
			if r.SuperAdditive {
				anySuperAdditive = true
			}
		}
		c.entries[i].MeanInteractionD = sum / float64(len(c.entries[i].Results))
		c.entries[i].ConfirmedSuperAdditive = anySuperAdditive
		return
	}

	for _, t := range eligibilityMatrix {
		if t.ID != templateID {
			continue
		}
		c.entries = append(c.entries, InteractionCatalogEntry{
			Template:               t,
			Results:                []InteractionResult{result},
			MeanInteractionD:       result.InteractionD,
			ConfirmedSuperAdditive: result.SuperAdditive,
		})
		return
	}
}

// Lookup returns the catalog entry for templateID, if any result has been
// recorded against it.
func (c *InteractionCatalog) Lookup(templateID string) (InteractionCatalogEntry, bool) {
	for _, e := range c.entries {
		if e.Template.ID == templateID {
			return e, true
		}
	}
	return InteractionCatalogEntry{}, false
}

// Entries returns every catalog entry recorded so far.
func (c *InteractionCatalog) Entries() []InteractionCatalogEntry {
	return c.entries
}
