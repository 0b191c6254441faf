// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command faultline analyzes Go source for structural hardware-latency
// hazards: cache-line layout problems, false sharing, atomic and lock
// contention, hot-path heap allocation, oversized stack frames, and the
// other patterns internal/rules implements.
//
// Usage:
//
//	faultline [flags] <pattern...>
//	faultline --format sarif --output report.sarif ./...
//	faultline --ir-compiler faultline-lower --calibration-store .faultline/calib ./hotpath
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var opts runOptions

func main() {
	os.Exit(run())
}

// run builds and executes the root command, returning the process exit
// code: 0 (clean), 1 (hazards found at or above the configured severity),
// or 2 (usage or runtime error). Split out from main so tests can call it
// without os.Exit tearing down the test binary.
func run() int {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		return 2
	}
	return opts.exitCode
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "faultline [flags] <pattern...>",
		Short:         "Detect hardware-latency hazards in Go source",
		SilenceUsage:  true,
		SilenceErrors: false,
		Args:          cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patterns, passthrough := splitPassthroughArgs(args, cmd.ArgsLenAtDash())
			opts.passthroughArgs = passthrough
			code, err := analyze(cmd.OutOrStdout(), cmd.ErrOrStderr(), patterns, opts)
			opts.exitCode = code
			return err
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.configPath, "config", "", "path to a faultline.yaml config file")
	flags.StringVar(&opts.format, "format", "cli", "output format: cli, json, or sarif")
	flags.StringVar(&opts.outputPath, "output", "", "write the report here instead of stdout")
	flags.StringVar(&opts.minSeverity, "min-severity", "", "override the configured minimum severity (informational, medium, high, critical)")
	flags.StringVar(&opts.minEvidenceTier, "min-evidence-tier", "", "drop diagnostics below this evidence tier (speculative, likely, proven)")
	flags.BoolVar(&opts.noIR, "no-ir", false, "skip the lowering-and-refinement pass even if the config enables it")
	flags.StringVar(&opts.irCompiler, "ir-compiler", "", "override the configured lowering-compiler path")
	flags.StringVar(&opts.irOptLevel, "ir-opt-level", "", "override the configured lowering optimization level")
	flags.StringVar(&opts.calibrationStore, "calibration-store", "", "override the configured calibration database path")
	flags.StringVar(&opts.cacheDir, "cache-dir", "", "directory for the lowered-IR content-addressed cache")
	flags.IntVar(&opts.jobs, "jobs", 4, "maximum concurrent lowering-compiler invocations")
	flags.BoolVar(&opts.forceColor, "color", false, "force ANSI color in cli output even when stdout is not a terminal")
	flags.BoolVar(&opts.noColor, "no-color", false, "disable ANSI color in cli output even when stdout is a terminal")

	return cmd
}

// splitPassthroughArgs separates a Cobra-parsed positional-argument slice
// into the source patterns to analyze and the compiler flags forwarded
// verbatim after a literal "--". dashAt is cmd.ArgsLenAtDash(): -1 when no
// "--" was present, otherwise the count of args before it.
func splitPassthroughArgs(args []string, dashAt int) (patterns, passthrough []string) {
	if dashAt < 0 {
		return args, nil
	}
	return args[:dashAt], args[dashAt:]
}

// runOptions collects every flag value, plus the exit code the RunE
// closure stashes for main to read after Execute returns.
type runOptions struct {
	configPath       string
	format           string
	outputPath       string
	minSeverity      string
	minEvidenceTier  string
	noIR             bool
	irCompiler       string
	irOptLevel       string
	calibrationStore string
	cacheDir         string
	jobs             int
	forceColor       bool
	noColor          bool
	passthroughArgs  []string

	exitCode int
}
