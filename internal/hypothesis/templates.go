// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package hypothesis

// HypothesisTemplate is the per-hazard-class skeleton a Constructor fills
// in with a specific diagnostic's structural evidence: the null/alternative
// hypothesis wording, the metric that would confirm or refute it, and the
// counter set the measurement needs.
type HypothesisTemplate struct {
	HazardClass          HazardClass
	H0Template            string
	H1Template            string
	PrimaryMetric         MetricSpec
	CounterSet            PMUCounterSet
	DefaultMDE            float64
	ConfoundRequirements  []ConfoundControl
	InteractionEligible   bool
}

func standardConfounds() []ConfoundControl {
	return []ConfoundControl{
		{Variable: "cpu_frequency", Method: "cpupower frequency-set --governor performance"},
		{Variable: "turbo_boost", Method: "echo 1 > /sys/devices/system/cpu/intel_pstate/no_turbo"},
		{Variable: "c_states", Method: "disable states > C0 via cpuidle sysfs"},
		{Variable: "cpu_pinning", Method: "taskset / runtime.LockOSThread + affinity"},
		{Variable: "transparent_hugepages", Method: "echo never > /sys/kernel/mm/transparent_hugepage/enabled"},
		{Variable: "aslr", Method: "echo 0 > /proc/sys/kernel/randomize_va_space"},
		{Variable: "compiler_flags", Method: "-gcflags=-l=4 or matching the production build's flags"},
		{Variable: "interrupt_isolation", Method: "isolcpus + irqbalance disabled on test cores"},
	}
}

func cacheGeometryCounters() PMUCounterSet {
	return PMUCounterSet{
		Required: []PMUCounter{
			{Name: "L1-dcache-load-misses", Tier: Standard, Justification: "Direct measure of L1D pressure from footprint"},
			{Name: "L1-dcache-store-misses", Tier: Standard, Justification: "Write-side pressure"},
			{Name: "LLC-load-misses", Tier: Standard, Justification: "Eviction cascading to LLC"},
			{Name: "cycles", Tier: Universal, Justification: "Baseline for IPC"},
			{Name: "instructions", Tier: Universal, Justification: "Baseline for IPC"},
		},
		Optional: []PMUCounter{
			{Name: "MEM_LOAD_RETIRED.L1_MISS", Tier: Extended, Justification: "Precise L1 miss attribution"},
			{Name: "MEM_LOAD_RETIRED.L2_MISS", Tier: Extended, Justification: "L2 cascade confirmation"},
		},
	}
}

func falseSharingCounters() PMUCounterSet {
	return PMUCounterSet{
		Required: []PMUCounter{
			{Name: "L1-dcache-load-misses", Tier: Standard, Justification: "Invalidation forces reload"},
			{Name: "L1-dcache-store-misses", Tier: Standard, Justification: "RFO stall"},
			{Name: "LLC-store-misses", Tier: Standard, Justification: "Ownership transfer reaching LLC"},
			{Name: "stalled-cycles-backend", Tier: Standard, Justification: "Pipeline stall from coherence wait"},
		},
		Optional: []PMUCounter{
			{Name: "offcore_response.demand_rfo.l3_miss.snoop_hitm", Tier: Extended, Justification: "Direct HITM measurement"},
			{Name: "MEM_LOAD_L3_HIT_RETIRED.XSNP_HITM", Tier: Extended, Justification: "Cross-core snoop hit modified (ICL+)"},
		},
	}
}

func atomicOrderingCounters() PMUCounterSet {
	return PMUCounterSet{
		Required: []PMUCounter{
			{Name: "stalled-cycles-backend", Tier: Standard, Justification: "Store buffer drain stall"},
			{Name: "stalled-cycles-frontend", Tier: Standard, Justification: "Serialization-induced frontend stall"},
			{Name: "cycles", Tier: Universal, Justification: "Total cycle cost"},
			{Name: "instructions", Tier: Universal, Justification: "IPC computation"},
		},
		Optional: []PMUCounter{
			{Name: "MACHINE_CLEARS.MEMORY_ORDERING", Tier: Extended, Justification: "Memory ordering machine clears"},
		},
	}
}

func atomicContentionCounters() PMUCounterSet {
	return PMUCounterSet{
		Required: []PMUCounter{
			{Name: "stalled-cycles-backend", Tier: Standard, Justification: "Ownership transfer stall"},
			{Name: "LLC-store-misses", Tier: Standard, Justification: "RFO reaching LLC"},
			{Name: "L1-dcache-store-misses", Tier: Standard, Justification: "Invalidation-induced store miss"},
		},
		Optional: []PMUCounter{
			{Name: "offcore_response.demand_rfo.l3_miss.snoop_hitm", Tier: Extended, Justification: "Direct cross-core contention"},
			{Name: "offcore_response.demand_rfo.l3_hit.snoop_hitm", Tier: Extended, Justification: "Intra-socket contention"},
		},
	}
}

func lockContentionCounters() PMUCounterSet {
	return PMUCounterSet{
		Required: []PMUCounter{
			{Name: "context-switches", Tier: Universal, Justification: "Direct serialization measure"},
			{Name: "cpu-migrations", Tier: Universal, Justification: "Scheduler-induced cache invalidation"},
			{Name: "stalled-cycles-backend", Tier: Standard, Justification: "Lock spin + syscall overhead"},
			{Name: "cycles", Tier: Universal, Justification: "Total cost"},
		},
		Optional: []PMUCounter{
			{Name: "page-faults", Tier: Universal, Justification: "Post-context-switch TLB refill"},
		},
	}
}

func heapAllocationCounters() PMUCounterSet {
	return PMUCounterSet{
		Required: []PMUCounter{
			{Name: "dTLB-load-misses", Tier: Standard, Justification: "New page TLB pressure"},
			{Name: "dTLB-store-misses", Tier: Standard, Justification: "Write-side TLB pressure"},
			{Name: "page-faults", Tier: Universal, Justification: "New page mapping"},
			{Name: "cache-misses", Tier: Universal, Justification: "Cold cache on new allocation"},
			{Name: "cycles", Tier: Universal, Justification: "Total cost"},
		},
	}
}

func stackPressureCounters() PMUCounterSet {
	return PMUCounterSet{
		Required: []PMUCounter{
			{Name: "dTLB-load-misses", Tier: Standard, Justification: "Stack page TLB pressure"},
			{Name: "L1-dcache-load-misses", Tier: Standard, Justification: "Stack data L1D pressure"},
			{Name: "cycles", Tier: Universal, Justification: "Total cost"},
		},
	}
}

func indirectDispatchCounters() PMUCounterSet {
	return PMUCounterSet{
		Required: []PMUCounter{
			{Name: "branch-misses", Tier: Universal, Justification: "Direct misprediction count"},
			{Name: "branches", Tier: Universal, Justification: "Total branch count for miss rate"},
			{Name: "L1-icache-load-misses", Tier: Standard, Justification: "I-cache pressure from multiple targets"},
			{Name: "cycles", Tier: Universal, Justification: "Total cost"},
		},
		Optional: []PMUCounter{
			{Name: "BR_MISP_RETIRED.INDIRECT", Tier: Extended, Justification: "Indirect branch misprediction specifically"},
			{Name: "BR_MISP_RETIRED.INDIRECT_CALL", Tier: Extended, Justification: "Indirect call misprediction"},
			{Name: "BACLEARS.ANY", Tier: Extended, Justification: "Frontend resteers from misprediction"},
		},
	}
}

func numaLocalityCounters() PMUCounterSet {
	return PMUCounterSet{
		Required: []PMUCounter{
			{Name: "LLC-load-misses", Tier: Standard, Justification: "Misses reaching memory subsystem"},
			{Name: "stalled-cycles-backend", Tier: Standard, Justification: "Memory stall"},
		},
		Optional: []PMUCounter{
			{Name: "offcore_response.demand_data_rd.l3_miss.remote_dram", Tier: Extended, Justification: "Direct remote DRAM access"},
			{Name: "offcore_response.demand_data_rd.l3_miss.local_dram", Tier: Extended, Justification: "Local DRAM baseline"},
			{Name: "node-load-misses", Tier: Standard, Justification: "NUMA node miss"},
			{Name: "node-store-misses", Tier: Standard, Justification: "NUMA node store miss"},
		},
	}
}

// templateRegistry holds one HypothesisTemplate per hazard class that has
// a defined measurement protocol. GlobalState, DeepConditional, and
// CentralizedDispatch have no entry, matching the reference template
// registry; LookupTemplate returns (zero, false) for them and Construct
// returns (zero LatencyHypothesis, false) in turn, same as the
// reference's std::optional<LatencyHypothesis>.
var templateRegistry = buildTemplateRegistry()

func buildTemplateRegistry() map[HazardClass]HypothesisTemplate {
	confounds := standardConfounds()
	reg := map[HazardClass]HypothesisTemplate{
		CacheGeometry: {
			HazardClass: CacheGeometry,
			H0Template: "Struct layout does not cause measurable increase in L1D/L2 miss rate " +
				"or coherence traffic under concurrent access.",
			H1Template: "Struct spanning {cache_lines} cache lines causes >= {mde}% increase " +
				"in L1-dcache-load-misses and >= {mde}% increase in {percentile} " +
				"operation latency compared to cache-line-aligned control.",
			PrimaryMetric:        MetricSpec{Name: "p99.9_operation_latency_ns", Unit: "nanoseconds", Percentile: "p99.9"},
			CounterSet:           cacheGeometryCounters(),
			DefaultMDE:           0.05,
			ConfoundRequirements: confounds,
			InteractionEligible:  true,
		},
		FalseSharing: {
			HazardClass: FalseSharing,
			H0Template: "Adjacent mutable fields on same cache line do not cause measurable " +
				"coherence traffic under multi-writer access.",
			H1Template: "Unpadded adjacent fields cause >= {mde}% increase in HITM events " +
				"and >= {mde}% increase in {percentile} latency compared to " +
				"64B-padded control.",
			PrimaryMetric:        MetricSpec{Name: "p99.9_operation_latency_ns", Unit: "nanoseconds", Percentile: "p99.9"},
			CounterSet:           falseSharingCounters(),
			DefaultMDE:           0.05,
			ConfoundRequirements: confounds,
			InteractionEligible:  true,
		},
		AtomicOrdering: {
			HazardClass: AtomicOrdering,
			H0Template: "sequentially-consistent ordering does not cause measurable pipeline " +
				"serialization cost compared to acquire/release on x86-64 TSO.",
			H1Template: "Sequentially-consistent operations in a hot loop cause >= {mde}% increase " +
				"in stalled-cycles-backend and >= {mde}% increase in {percentile} " +
				"latency compared to an acquire/release variant.",
			PrimaryMetric:        MetricSpec{Name: "p99_operation_latency_ns", Unit: "nanoseconds", Percentile: "p99"},
			CounterSet:           atomicOrderingCounters(),
			DefaultMDE:           0.05,
			ConfoundRequirements: confounds,
			InteractionEligible:  true,
		},
		AtomicContention: {
			HazardClass: AtomicContention,
			H0Template: "Concurrent atomic writes to a shared variable do not cause measurable " +
				"cross-core ownership transfer cost.",
			H1Template: "N-goroutine concurrent atomic writes cause >= {mde}% increase in " +
				"HITM events and >= {mde}% increase in {percentile} latency " +
				"compared to a per-core sharded control.",
			PrimaryMetric:        MetricSpec{Name: "p99.9_operation_latency_ns", Unit: "nanoseconds", Percentile: "p99.9"},
			CounterSet:           atomicContentionCounters(),
			DefaultMDE:           0.05,
			ConfoundRequirements: confounds,
			InteractionEligible:  true,
		},
		LockContention: {
			HazardClass: LockContention,
			H0Template: "Mutex acquisition in the hot path does not cause measurable " +
				"serialization or context-switch cost under concurrent load.",
			H1Template: "A contended mutex causes >= {mde}% increase in context-switches " +
				"and >= {mde}% increase in {percentile} latency compared to a " +
				"lock-free control.",
			PrimaryMetric:        MetricSpec{Name: "p99.99_operation_latency_ns", Unit: "nanoseconds", Percentile: "p99.99"},
			CounterSet:           lockContentionCounters(),
			DefaultMDE:           0.05,
			ConfoundRequirements: confounds,
			InteractionEligible:  true,
		},
		HeapAllocation: {
			HazardClass: HeapAllocation,
			H0Template: "Heap allocation in the hot path does not cause measurable allocator " +
				"contention or TLB pressure.",
			H1Template: "Per-iteration allocation causes >= {mde}% increase in " +
				"dTLB-load-misses and >= {mde}% increase in {percentile} latency " +
				"compared to a preallocated control.",
			PrimaryMetric:        MetricSpec{Name: "p99.9_operation_latency_ns", Unit: "nanoseconds", Percentile: "p99.9"},
			CounterSet:           heapAllocationCounters(),
			DefaultMDE:           0.05,
			ConfoundRequirements: confounds,
			InteractionEligible:  false,
		},
		StackPressure: {
			HazardClass: StackPressure,
			H0Template: "A large stack frame does not cause measurable TLB or L1D pressure " +
				"in the hot path.",
			H1Template: "A stack frame over {threshold}B causes >= {mde}% increase in " +
				"dTLB-load-misses and >= {mde}% increase in {percentile} latency " +
				"compared to a reduced-frame control.",
			PrimaryMetric:        MetricSpec{Name: "p99_operation_latency_ns", Unit: "nanoseconds", Percentile: "p99"},
			CounterSet:           stackPressureCounters(),
			DefaultMDE:           0.05,
			ConfoundRequirements: confounds,
			InteractionEligible:  false,
		},
		VirtualDispatch: {
			HazardClass: VirtualDispatch,
			H0Template: "Interface/indirect calls in the hot path do not cause measurable " +
				"branch misprediction cost.",
			H1Template: "Polymorphic dispatch with {target_count} targets causes >= {mde}% " +
				"increase in branch-misses and >= {mde}% increase in {percentile} " +
				"latency compared to a concrete-type control.",
			PrimaryMetric:        MetricSpec{Name: "p99_operation_latency_ns", Unit: "nanoseconds", Percentile: "p99"},
			CounterSet:           indirectDispatchCounters(),
			DefaultMDE:           0.05,
			ConfoundRequirements: confounds,
			InteractionEligible:  true,
		},
		StdFunction: {
			HazardClass: StdFunction,
			H0Template: "Invoking a type-erased callable in the hot path does not cause " +
				"measurable indirect dispatch or allocation cost.",
			H1Template: "Type-erased callable usage causes >= {mde}% increase in branch-misses " +
				"and >= {mde}% increase in {percentile} latency compared to a " +
				"generic-parameter control.",
			PrimaryMetric:        MetricSpec{Name: "p99_operation_latency_ns", Unit: "nanoseconds", Percentile: "p99"},
			CounterSet:           indirectDispatchCounters(),
			DefaultMDE:           0.05,
			ConfoundRequirements: confounds,
			InteractionEligible:  false,
		},
		ContendedQueue: {
			HazardClass: ContendedQueue,
			H0Template: "Adjacent atomic indices on the same cache line do not cause measurable " +
				"coherence traffic under producer-consumer access.",
			H1Template: "Unpadded head/tail atomics cause >= {mde}% increase in HITM " +
				"events and >= {mde}% increase in {percentile} latency compared " +
				"to a 64B-padded control.",
			PrimaryMetric:        MetricSpec{Name: "p99.9_operation_latency_ns", Unit: "nanoseconds", Percentile: "p99.9"},
			CounterSet:           falseSharingCounters(),
			DefaultMDE:           0.05,
			ConfoundRequirements: confounds,
			InteractionEligible:  true,
		},
		NUMALocality: {
			HazardClass: NUMALocality,
			H0Template: "A shared mutable structure does not incur measurable remote memory " +
				"access penalty.",
			H1Template: "Cross-socket access to a shared structure causes >= {mde}% increase " +
				"in remote DRAM accesses and >= {mde}% increase in {percentile} " +
				"latency compared to a socket-local control.",
			PrimaryMetric:        MetricSpec{Name: "p99.9_operation_latency_ns", Unit: "nanoseconds", Percentile: "p99.9"},
			CounterSet:           numaLocalityCounters(),
			DefaultMDE:           0.05,
			ConfoundRequirements: confounds,
			InteractionEligible:  true,
		},
		HazardAmplification: {
			HazardClass: HazardAmplification,
			H0Template: "Co-occurrence of multiple structural hazards does not produce a " +
				"super-additive tail latency effect.",
			H1Template: "The combined hazard produces a tail latency increase greater than " +
				"the sum of individual hazard effects.",
			PrimaryMetric: MetricSpec{Name: "p99.99_operation_latency_ns", Unit: "nanoseconds", Percentile: "p99.99"},
			CounterSet: cacheGeometryCounters().
				Merged(atomicContentionCounters()).
				Merged(numaLocalityCounters()),
			DefaultMDE:           0.05,
			ConfoundRequirements: confounds,
			InteractionEligible:  false,
		},
	}
	return reg
}

// LookupTemplate returns the hypothesis template for a hazard class, and
// false if that class has none registered.
func LookupTemplate(hc HazardClass) (HypothesisTemplate, bool) {
	t, ok := templateRegistry[hc]
	return t, ok
}
