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

type jsonLocation struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

type jsonDiagnostic struct {
	RuleID             string       `json:"ruleID"`
	Title              string       `json:"title"`
	Severity           string       `json:"severity"`
	Confidence         float64      `json:"confidence"`
	EvidenceTier       string       `json:"evidenceTier"`
	Location           jsonLocation `json:"location"`
	FunctionName       string       `json:"functionName,omitempty"`
	HardwareReasoning  string       `json:"hardwareReasoning"`
	StructuralEvidence string       `json:"structuralEvidence"`
	Mitigation         string       `json:"mitigation"`
	Suppressed         bool         `json:"suppressed,omitempty"`
	Escalations        []string     `json:"escalations"`
}

type jsonCompiler struct {
	Path string `json:"path"`
}

type jsonMetadata struct {
	Timestamp   int64          `json:"timestamp"`
	ConfigPath  string         `json:"configPath"`
	IROptLevel  string         `json:"irOptLevel"`
	IREnabled   bool           `json:"irEnabled"`
	SourceFiles []string       `json:"sourceFiles"`
	Compilers   []jsonCompiler `json:"compilers"`
}

type jsonReport struct {
	Version     string           `json:"version"`
	Metadata    jsonMetadata     `json:"metadata"`
	Diagnostics []jsonDiagnostic `json:"diagnostics"`
}

func toJSONDiagnostic(d core.Diagnostic) jsonDiagnostic {
	escalations := d.Escalations
	if escalations == nil {
		escalations = []string{}
	}
	return jsonDiagnostic{
		RuleID:       d.RuleID,
		Title:        d.Title,
		Severity:     d.Severity.String(),
		Confidence:   d.Confidence,
		EvidenceTier: d.EvidenceTier.String(),
		Location: jsonLocation{
			File:   d.Location.File,
			Line:   d.Location.Line,
			Column: d.Location.Column,
		},
		FunctionName:       d.FunctionName,
		HardwareReasoning:  d.HardwareReasoning,
		StructuralEvidence: d.StructuralEvidence,
		Mitigation:         d.Mitigation,
		Suppressed:         d.Suppressed,
		Escalations:        escalations,
	}
}

// JSONFormatter renders diagnostics plus run metadata as a single JSON
// document.
type JSONFormatter struct{}

// Format marshals diagnostics and meta into indented JSON.
func (f *JSONFormatter) Format(diagnostics []core.Diagnostic, meta core.ExecutionMetadata) ([]byte, error) {
	compilers := make([]jsonCompiler, 0, len(meta.Compilers))
	for _, c := range meta.Compilers {
		compilers = append(compilers, jsonCompiler{Path: c.Path})
	}

	report := jsonReport{
		Version: ToolVersion,
		Metadata: jsonMetadata{
			Timestamp:   meta.TimestampEpochS,
			ConfigPath:  meta.ConfigPath,
			IROptLevel:  meta.IROptLevel,
			IREnabled:   meta.IREnabled,
			SourceFiles: meta.SourceFiles,
			Compilers:   compilers,
		},
		Diagnostics: make([]jsonDiagnostic, 0, len(diagnostics)),
	}
	for _, d := range diagnostics {
		report.Diagnostics = append(report.Diagnostics, toJSONDiagnostic(d))
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("output: marshaling json report: %w", err)
	}
	data = append(data, '\n')
	return data, nil
}
