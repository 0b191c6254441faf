// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/faultline/faultline/internal/analysis/cacheline"
	"github.com/faultline/faultline/internal/analysis/escape"
	"github.com/faultline/faultline/internal/analysis/hotpath"
	"github.com/faultline/faultline/internal/calibration"
	"github.com/faultline/faultline/internal/config"
	"github.com/faultline/faultline/internal/core"
	"github.com/faultline/faultline/internal/ir"
	"github.com/faultline/faultline/internal/ir/lower"
	"github.com/faultline/faultline/internal/output"
	"github.com/faultline/faultline/internal/producer/gosrc"
	"github.com/faultline/faultline/internal/rules"
	"github.com/faultline/faultline/internal/telemetry"
)

// analyze runs one full pass: load source, run the rule engine, optionally
// refine against lowered IR and gate against calibration history, format,
// and write the result. It returns the process exit code alongside any
// error cobra should report (a non-nil error always implies exit code 2;
// a nil error's exit code reflects whether any hazard survived filtering).
func analyze(stdout, stderr io.Writer, patterns []string, o runOptions) (int, error) {
	logger := slog.New(slog.NewTextHandler(stderr, nil))

	watcher, err := config.Load(o.configPath)
	if err != nil {
		return 2, fmt.Errorf("loading config: %w", err)
	}
	cfg := watcher.Current()
	applyOverrides(&cfg, o)

	pkgs, err := gosrc.Load(".", patterns...)
	if err != nil {
		return 2, fmt.Errorf("loading source: %w", err)
	}
	tu := gosrc.Extract(pkgs)

	layout := cacheline.Provider{CacheLineBytes: cfg.CacheLineBytes}
	oracle := hotpath.New(&cfg)
	engine := core.NewRuleEngine(rules.All(), &cfg, layout, escape.Model{}, oracle)
	diags := engine.Analyze(tu)
	for _, d := range diags {
		telemetry.DiagnosticsTotal.WithLabelValues(d.RuleID, d.Severity.String()).Inc()
	}

	var compilers []core.CompilerInfo
	if cfg.IREnabled && !o.noIR {
		diags, compilers, err = refineWithIR(context.Background(), diags, tu, cfg, o)
		if err != nil {
			logger.Warn("ir refinement skipped", slog.Any("err", err))
		}
	}

	if cfg.CalibrationDBPath != "" {
		diags, err = gateCalibration(diags, cfg, logger)
		if err != nil {
			logger.Warn("calibration gate skipped", slog.Any("err", err))
		}
	}

	if o.minEvidenceTier != "" {
		tier, ok := core.ParseEvidenceTier(o.minEvidenceTier)
		if !ok {
			return 2, fmt.Errorf("invalid --min-evidence-tier %q", o.minEvidenceTier)
		}
		diags = filterMinEvidenceTier(diags, tier)
	}

	format := output.Format(o.format)
	colorize := format == output.FormatCLI && o.outputPath == "" && !o.noColor &&
		(o.forceColor || output.IsTerminalStdout())

	formatter, err := output.New(format, colorize)
	if err != nil {
		return 2, err
	}

	meta := core.NewExecutionMetadata(output.ToolVersion, o.configPath, cfg.IROptLevel, cfg.IREnabled, time.Now().Unix())
	meta.SourceFiles = sourceFiles(tu)
	meta.Compilers = compilers

	report, err := formatter.Format(diags, meta)
	if err != nil {
		return 2, fmt.Errorf("formatting report: %w", err)
	}

	if err := writeReport(stdout, o.outputPath, report); err != nil {
		return 2, err
	}

	return exitCodeFor(diags), nil
}

func applyOverrides(cfg *core.Config, o runOptions) {
	if o.minSeverity != "" {
		cfg.MinSeverity = o.minSeverity
	}
	if o.irCompiler != "" {
		cfg.IRCompiler = o.irCompiler
	}
	if o.irOptLevel != "" {
		cfg.IROptLevel = o.irOptLevel
	}
	if o.calibrationStore != "" {
		cfg.CalibrationDBPath = o.calibrationStore
	}
}

// refineWithIR lowers every source file referenced by tu's functions and
// folds the resulting profiles back into diags via ir.Refiner. A lowering
// failure is never fatal to the run: the caller logs it and keeps the
// AST-only diagnostics.
func refineWithIR(ctx context.Context, diags []core.Diagnostic, tu core.TranslationUnit, cfg core.Config, o runOptions) ([]core.Diagnostic, []core.CompilerInfo, error) {
	if cfg.IRCompiler == "" {
		return diags, nil, fmt.Errorf("ir_enabled is set but no ir_compiler is configured")
	}

	driver := lower.NewDriver(cfg.IRCompiler, cfg.IROptLevel, o.jobs,
		lower.WithCache(o.cacheDir), lower.WithPassthroughArgs(o.passthroughArgs))
	defer driver.Close()

	profiles, err := driver.Run(ctx, sourceFiles(tu))
	if err != nil {
		return diags, nil, err
	}

	refiner := ir.NewRefiner(profiles)
	out := make([]core.Diagnostic, len(diags))
	for i, d := range diags {
		out[i] = refiner.Refine(d)
	}

	compilers := []core.CompilerInfo{{Path: cfg.IRCompiler}}
	return out, compilers, nil
}

// gateCalibration opens the calibration store configured for this run and
// marks every diagnostic matching a pattern with enough independent
// refutations as suppressed. The store is opened and closed within this
// call; a CLI invocation is one-shot, so there is no long-lived handle to
// manage across runs.
func gateCalibration(diags []core.Diagnostic, cfg core.Config, logger *slog.Logger) ([]core.Diagnostic, error) {
	var opts []calibration.Option
	if cfg.CalibrationMinRefutations > 0 {
		opts = append(opts, calibration.WithMinRefutations(uint32(cfg.CalibrationMinRefutations)))
	}

	store, err := calibration.Open(cfg.CalibrationDBPath, opts...)
	if err != nil {
		return diags, err
	}
	defer store.Close()

	gate := calibration.NewGate(store, logger)
	return gate.Apply(diags), nil
}

// filterMinEvidenceTier drops diagnostics graded below minTier. Run after IR
// refinement so a tier bump from ir.Refiner is reflected before filtering.
func filterMinEvidenceTier(diags []core.Diagnostic, minTier core.EvidenceTier) []core.Diagnostic {
	out := diags[:0]
	for _, d := range diags {
		if d.EvidenceTier >= minTier {
			out = append(out, d)
		}
	}
	return out
}

func sourceFiles(tu core.TranslationUnit) []string {
	seen := make(map[string]bool)
	var files []string
	for _, fn := range tu.Functions {
		if fn.File == "" || seen[fn.File] {
			continue
		}
		seen[fn.File] = true
		files = append(files, fn.File)
	}
	return files
}

func writeReport(stdout io.Writer, outputPath string, report []byte) error {
	if outputPath == "" {
		_, err := stdout.Write(report)
		return err
	}
	return os.WriteFile(outputPath, report, 0o644)
}

// exitCodeFor reports 1 if any non-suppressed diagnostic survived the rule
// engine's min-severity filter and the calibration gate, 0 otherwise.
func exitCodeFor(diags []core.Diagnostic) int {
	for _, d := range diags {
		if !d.Suppressed {
			return 1
		}
	}
	return 0
}
