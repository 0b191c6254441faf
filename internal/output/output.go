// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package output renders a run's diagnostics in one of three formats: a
// human-readable terminal report, machine-readable JSON, or SARIF 2.1.0
// for ingestion by code-scanning dashboards.
package output

import (
	"fmt"

	"github.com/faultline/faultline/internal/core"
)

// ToolVersion is the version string every formatter stamps into its
// output, overridden at build time via -ldflags in cmd/faultline's build.
var ToolVersion = "0.1.0"

// Formatter renders a run's diagnostics into a byte slice ready to write
// to a file or stdout.
type Formatter interface {
	Format(diagnostics []core.Diagnostic, meta core.ExecutionMetadata) ([]byte, error)
}

// Format names the three formatters New can build.
type Format string

const (
	FormatCLI   Format = "cli"
	FormatJSON  Format = "json"
	FormatSARIF Format = "sarif"
)

// New builds the Formatter named by format. colorize only affects FormatCLI.
func New(format Format, colorize bool) (Formatter, error) {
	switch format {
	case FormatCLI, "":
		return &CLIFormatter{Colorize: colorize}, nil
	case FormatJSON:
		return &JSONFormatter{}, nil
	case FormatSARIF:
		return &SARIFFormatter{}, nil
	default:
		return nil, fmt.Errorf("output: unrecognized format %q", format)
	}
}
