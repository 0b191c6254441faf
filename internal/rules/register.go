// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package rules

import "github.com/faultline/faultline/internal/core"

// All returns every built-in rule, in a fixed, stable order. There is no
// global mutable registry: the caller (cmd/faultline) builds this slice
// once and hands it to core.NewRuleEngine.
func All() []core.Rule {
	return []core.Rule{
		CacheLineSpanning{},
		FalseSharing{},
		OverlyStrongOrdering{},
		AtomicContention{},
		LockHotPath{},
		HeapAllocHotPath{},
		LargeStackFrame{},
		VirtualDispatch{},
		ErasedCallableHotPath{},
		CentralizedGlobalState{},
		ContendedQueue{},
		DeepConditionalTree{},
		NUMAUnfriendly{},
		CentralizedDispatcher{},
		HazardAmplification{},
	}
}
