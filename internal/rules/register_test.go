// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package rules

import "testing"

func TestAll_FifteenUniqueRuleIDs(t *testing.T) {
	rules := All()
	if len(rules) != 15 {
		t.Fatalf("expected 15 rules, got %d", len(rules))
	}

	seen := make(map[string]bool, len(rules))
	for _, r := range rules {
		id := r.ID()
		if id == "" {
			t.Errorf("rule %T has an empty ID", r)
		}
		if seen[id] {
			t.Errorf("duplicate rule ID %q", id)
		}
		seen[id] = true

		if r.Title() == "" {
			t.Errorf("rule %s has an empty title", id)
		}
		if r.HardwareMechanism() == "" {
			t.Errorf("rule %s has an empty hardware mechanism description", id)
		}
	}
}
