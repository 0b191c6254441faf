// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package core

// Severity orders a diagnostic's urgency. The ordering is load-bearing: the
// final diagnostic sort and the min-severity filter both compare Severity
// values directly.
type Severity uint8

const (
	Informational Severity = iota
	Medium
	High
	Critical
)

func (s Severity) String() string {
	switch s {
	case Informational:
		return "Informational"
	case Medium:
		return "Medium"
	case High:
		return "High"
	case Critical:
		return "Critical"
	default:
		return "Unknown"
	}
}

// ParseSeverity maps a config/CLI string to a Severity, defaulting to
// Informational on no match so a misconfigured filter never panics.
func ParseSeverity(s string) (Severity, bool) {
	switch s {
	case "Informational", "informational":
		return Informational, true
	case "Medium", "medium":
		return Medium, true
	case "High", "high":
		return High, true
	case "Critical", "critical":
		return Critical, true
	default:
		return Informational, false
	}
}

// EvidenceTier classifies how strongly a diagnostic's evidence is grounded.
// Ordered low-to-high so min-evidence-tier filtering is a plain >= compare.
type EvidenceTier uint8

const (
	Speculative EvidenceTier = iota
	Likely
	Proven
)

func (t EvidenceTier) String() string {
	switch t {
	case Proven:
		return "proven"
	case Likely:
		return "likely"
	case Speculative:
		return "speculative"
	default:
		return "speculative"
	}
}

func ParseEvidenceTier(s string) (EvidenceTier, bool) {
	switch s {
	case "proven", "Proven":
		return Proven, true
	case "likely", "Likely":
		return Likely, true
	case "speculative", "Speculative":
		return Speculative, true
	default:
		return Speculative, false
	}
}
