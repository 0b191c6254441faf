// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package output

import (
	"encoding/json"
	"fmt"

	"github.com/faultline/faultline/internal/core"
)

const sarifSchemaURL = "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/main/sarif-2.1/schema/sarif-schema-2.1.0.json"

type sarifLog struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool    sarifTool     `json:"tool"`
	Results []sarifResult `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name            string      `json:"name"`
	Version         string      `json:"version"`
	InformationURI  string      `json:"informationUri"`
	Rules           []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID                string               `json:"id"`
	ShortDescription  sarifText            `json:"shortDescription"`
	HelpURI           string               `json:"helpUri"`
	Properties        sarifRuleProperties  `json:"properties"`
}

type sarifRuleProperties struct {
	Tags []string `json:"tags"`
}

type sarifText struct {
	Text string `json:"text"`
}

type sarifResult struct {
	RuleID     string              `json:"ruleId"`
	Level      string              `json:"level"`
	Message    sarifText           `json:"message"`
	Locations  []sarifLocation     `json:"locations"`
	Properties sarifResultProperties `json:"properties"`
}

type sarifLocation struct {
	PhysicalLocation  sarifPhysicalLocation   `json:"physicalLocation"`
	LogicalLocations  []sarifLogicalLocation  `json:"logicalLocations,omitempty"`
}

type sarifPhysicalLocation struct {
	ArtifactLocation sarifArtifactLocation `json:"artifactLocation"`
	Region           sarifRegion           `json:"region"`
}

type sarifArtifactLocation struct {
	URI string `json:"uri"`
}

type sarifRegion struct {
	StartLine   int `json:"startLine"`
	StartColumn int `json:"startColumn"`
}

type sarifLogicalLocation struct {
	FullyQualifiedName string `json:"fullyQualifiedName"`
	Kind               string `json:"kind"`
}

type sarifResultProperties struct {
	Confidence         float64  `json:"confidence"`
	EvidenceTier       string   `json:"evidenceTier"`
	StructuralEvidence string   `json:"structuralEvidence"`
	Mitigation         string   `json:"mitigation"`
	Escalations        []string `json:"escalations,omitempty"`
}

func sarifLevel(sev core.Severity) string {
	switch sev {
	case core.Critical:
		return "error"
	case core.High:
		return "warning"
	default:
		return "note"
	}
}

// SARIFFormatter renders diagnostics as a SARIF 2.1.0 log, the format
// GitHub code scanning and most CI dashboards ingest directly.
type SARIFFormatter struct{}

// Format marshals diagnostics into a single-run SARIF log. meta is
// accepted to satisfy Formatter but unused: SARIF's run-level provenance
// fields (versionControlProvenance, invocation) are out of scope here.
func (f *SARIFFormatter) Format(diagnostics []core.Diagnostic, _ core.ExecutionMetadata) ([]byte, error) {
	seen := make(map[string]bool)
	var rules []sarifRule
	for _, d := range diagnostics {
		if seen[d.RuleID] {
			continue
		}
		seen[d.RuleID] = true
		rules = append(rules, sarifRule{
			ID:               d.RuleID,
			ShortDescription: sarifText{Text: d.Title},
			HelpURI:          fmt.Sprintf("https://github.com/faultline/faultline#%s", d.RuleID),
			Properties:       sarifRuleProperties{Tags: []string{"latency", "microarchitecture"}},
		})
	}
	if rules == nil {
		rules = []sarifRule{}
	}

	results := make([]sarifResult, 0, len(diagnostics))
	for _, d := range diagnostics {
		if d.Suppressed {
			continue
		}

		line := d.Location.Line
		if line <= 0 {
			line = 1
		}
		column := d.Location.Column
		if column <= 0 {
			column = 1
		}

		loc := sarifLocation{
			PhysicalLocation: sarifPhysicalLocation{
				ArtifactLocation: sarifArtifactLocation{URI: d.Location.File},
				Region:           sarifRegion{StartLine: line, StartColumn: column},
			},
		}
		if d.FunctionName != "" {
			loc.LogicalLocations = []sarifLogicalLocation{{FullyQualifiedName: d.FunctionName, Kind: "function"}}
		}

		results = append(results, sarifResult{
			RuleID:  d.RuleID,
			Level:   sarifLevel(d.Severity),
			Message: sarifText{Text: d.HardwareReasoning},
			Locations: []sarifLocation{loc},
			Properties: sarifResultProperties{
				Confidence:         d.Confidence,
				EvidenceTier:       d.EvidenceTier.String(),
				StructuralEvidence: d.StructuralEvidence,
				Mitigation:         d.Mitigation,
				Escalations:        d.Escalations,
			},
		})
	}

	log := sarifLog{
		Schema:  sarifSchemaURL,
		Version: "2.1.0",
		Runs: []sarifRun{{
			Tool: sarifTool{Driver: sarifDriver{
				Name:           "faultline",
				Version:        ToolVersion,
				InformationURI: "https://github.com/faultline/faultline",
				Rules:          rules,
			}},
			Results: results,
		}},
	}

	data, err := json.MarshalIndent(log, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("output: marshaling sarif log: %w", err)
	}
	data = append(data, '\n')
	return data, nil
}
