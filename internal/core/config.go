// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package core

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable threshold and toggle a run can override. The
// zero value is never used directly; Defaults() seeds every field before a
// YAML file (if any) overrides a subset of them.
type Config struct {
	CacheLineBytes    int64 `yaml:"cache_line_bytes"`
	CacheLineSpanWarn int64 `yaml:"cache_line_span_warn"`
	CacheLineSpanCrit int64 `yaml:"cache_line_span_crit"`

	StackFrameWarnBytes int64 `yaml:"stack_frame_warn_bytes"`

	AllocSizeEscalation int64 `yaml:"alloc_size_escalation"`

	BranchDepthWarn int `yaml:"branch_depth_warn"`

	MinSeverity string `yaml:"min_severity"`

	JSONOutput bool   `yaml:"json_output"`
	OutputFile string `yaml:"output_file"`

	HotFunctionPatterns []string `yaml:"hot_function_patterns"`
	HotFilePatterns     []string `yaml:"hot_file_patterns"`

	DisabledRules []string `yaml:"disabled_rules"`

	PageSize int64 `yaml:"page_size"`

	// IREnabled turns on the optional lowering-and-refinement phase.
	IREnabled  bool   `yaml:"ir_enabled"`
	IRCompiler string `yaml:"ir_compiler"`
	IROptLevel string `yaml:"ir_opt_level"`

	// CalibrationDBPath, when non-empty, enables the Calibration Gate.
	CalibrationDBPath string `yaml:"calibration_db_path"`
	// CalibrationMinRefutations overrides the default number of
	// independent refutations a hazard pattern needs before the gate
	// treats it as a known false positive.
	CalibrationMinRefutations int `yaml:"calibration_min_refutations"`
}

// Defaults returns the out-of-the-box configuration every loaded file is
// merged on top of.
func Defaults() Config {
	return Config{
		CacheLineBytes:            64,
		CacheLineSpanWarn:         64,
		CacheLineSpanCrit:         128,
		StackFrameWarnBytes:       2048,
		AllocSizeEscalation:       256,
		BranchDepthWarn:           4,
		MinSeverity:               "informational",
		PageSize:                  4096,
		IROptLevel:                "O0",
		CalibrationMinRefutations: 3,
	}
}

// MinSeverityLevel parses MinSeverity, falling back to Informational if the
// configured string is empty or unrecognized.
func (c Config) MinSeverityLevel() Severity {
	sev, ok := ParseSeverity(c.MinSeverity)
	if !ok {
		return Informational
	}
	return sev
}

// RuleDisabled reports whether id appears in DisabledRules.
func (c Config) RuleDisabled(id string) bool {
	for _, d := range c.DisabledRules {
		if d == id {
			return true
		}
	}
	return false
}

// LoadConfig reads path and merges it onto Defaults(). A missing or
// unreadable file is not fatal: the run proceeds on defaults with a warning,
// mirroring a lowering compiler's own warn-and-continue posture toward a
// malformed project config.
func LoadConfig(path string) (Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("cannot open config, using defaults", slog.String("path", path), slog.Any("err", err))
		return cfg, nil
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		slog.Warn("config parse error, using defaults", slog.String("path", path), slog.Any("err", err))
		return Defaults(), nil
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("faultline: invalid config %q: %w", path, err)
	}

	slog.Info("config loaded",
		slog.String("path", path),
		slog.Int64("cache_line_bytes", cfg.CacheLineBytes),
		slog.Bool("ir_enabled", cfg.IREnabled),
		slog.Int("disabled_rules", len(cfg.DisabledRules)),
	)

	return cfg, nil
}

// Validate rejects nonsensical threshold combinations a YAML edit could
// introduce.
func (c Config) Validate() error {
	if c.CacheLineBytes <= 0 {
		return fmt.Errorf("cache_line_bytes must be positive")
	}
	if c.CacheLineSpanCrit < c.CacheLineSpanWarn {
		return fmt.Errorf("cache_line_span_crit must be >= cache_line_span_warn")
	}
	if _, ok := ParseSeverity(c.MinSeverity); c.MinSeverity != "" && !ok {
		return fmt.Errorf("min_severity: unrecognized value %q", c.MinSeverity)
	}
	return nil
}
