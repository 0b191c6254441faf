// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package output

import (
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/faultline/faultline/internal/core"
)

const (
	ansiReset  = "\x1b[0m"
	ansiBold   = "\x1b[1m"
	ansiRed    = "\x1b[31m"
	ansiYellow = "\x1b[33m"
	ansiCyan   = "\x1b[36m"
	ansiDim    = "\x1b[2m"
)

// CLIFormatter renders diagnostics as a plain-text report, one block per
// diagnostic, matching a compiler's own diagnostic-to-terminal convention.
type CLIFormatter struct {
	// Colorize turns on ANSI severity coloring. IsTerminalStdout picks a
	// sensible default; a caller piping to a file should pass false.
	Colorize bool
}

// IsTerminalStdout reports whether stdout is attached to a terminal, the
// default Colorize heuristic cmd/faultline uses when the user has not
// passed an explicit --color flag.
func IsTerminalStdout() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

func severityColor(sev core.Severity) string {
	switch sev {
	case core.Critical:
		return ansiRed
	case core.High:
		return ansiYellow
	default:
		return ansiCyan
	}
}

// Format renders diagnostics as a CLI report. meta is accepted to satisfy
// Formatter but unused: the terminal report is about the findings, not the
// run's provenance.
func (f *CLIFormatter) Format(diagnostics []core.Diagnostic, _ core.ExecutionMetadata) ([]byte, error) {
	var b strings.Builder

	for _, d := range diagnostics {
		if d.Suppressed {
			continue
		}

		fmt.Fprintf(&b, "%s:%d:%d: ", d.Location.File, d.Location.Line, d.Location.Column)

		if f.Colorize {
			fmt.Fprintf(&b, "%s%s[%s]%s %s — %s\n", ansiBold, severityColor(d.Severity), d.Severity, ansiReset, d.RuleID, d.Title)
		} else {
			fmt.Fprintf(&b, "[%s] %s — %s\n", d.Severity, d.RuleID, d.Title)
		}

		fmt.Fprintf(&b, "  Hardware: %s\n", d.HardwareReasoning)
		fmt.Fprintf(&b, "  Evidence: %s\n", d.StructuralEvidence)

		if d.Mitigation != "" {
			fmt.Fprintf(&b, "  Mitigation: %s\n", d.Mitigation)
		}

		confidencePct := int(d.Confidence * 100)
		if f.Colorize {
			fmt.Fprintf(&b, "  Confidence: %s%d%%%s [%s]\n", ansiDim, confidencePct, ansiReset, d.EvidenceTier)
		} else {
			fmt.Fprintf(&b, "  Confidence: %d%% [%s]\n", confidencePct, d.EvidenceTier)
		}

		for _, esc := range d.Escalations {
			fmt.Fprintf(&b, "  Escalation: %s\n", esc)
		}

		b.WriteByte('\n')
	}

	shown := 0
	for _, d := range diagnostics {
		if !d.Suppressed {
			shown++
		}
	}

	if shown == 0 {
		b.WriteString("faultline: no hazards detected.\n")
	} else {
		fmt.Fprintf(&b, "faultline: %d hazard(s) detected.\n", shown)
	}

	return []byte(b.String()), nil
}
