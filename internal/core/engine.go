// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package core

// TranslationUnit is everything one producer pass extracts from a single
// analyzed source scope: every record, function, and global it found
// complete enough to analyze.
type TranslationUnit struct {
	Records   []*RecordDecl
	Functions []*FunctionDecl
	Globals   []*GlobalDecl
}

// RuleEngine runs an ordered, fixed set of Rules over a TranslationUnit.
// There is no global mutable registry: the caller builds the slice once
// (rules.All()) and hands it to NewRuleEngine.
type RuleEngine struct {
	rules  []Rule
	cfg    *Config
	layout LayoutProvider
	escape EscapeModel
	oracle HotPathOracle
}

// NewRuleEngine builds an engine over rules, filtering out any rule whose
// ID appears in cfg.DisabledRules at construction time so a disabled rule
// never runs even once.
func NewRuleEngine(rules []Rule, cfg *Config, layout LayoutProvider, escape EscapeModel, oracle HotPathOracle) *RuleEngine {
	active := make([]Rule, 0, len(rules))
	for _, r := range rules {
		if cfg != nil && cfg.RuleDisabled(r.ID()) {
			continue
		}
		active = append(active, r)
	}
	return &RuleEngine{rules: active, cfg: cfg, layout: layout, escape: escape, oracle: oracle}
}

// Rules returns the engine's active rule set, in registration order.
func (e *RuleEngine) Rules() []Rule { return e.rules }

// Analyze runs every active rule over every record, function, and global in
// tu, applying the engine's min-severity filter, and returns the combined,
// order-stable diagnostic list (grouped by rule, in rule-registration
// order, then by declaration order within the rule).
func (e *RuleEngine) Analyze(tu TranslationUnit) []Diagnostic {
	var out []Diagnostic
	minSev := Informational
	if e.cfg != nil {
		minSev = e.cfg.MinSeverityLevel()
	}

	for _, r := range e.rules {
		for _, rec := range tu.Records {
			out = append(out, filterMinSeverity(r.AnalyzeRecord(rec, e.layout, e.escape, e.cfg), minSev)...)
		}
		for _, fn := range tu.Functions {
			out = append(out, filterMinSeverity(r.AnalyzeFunction(fn, e.oracle, e.cfg), minSev)...)
		}
		for _, g := range tu.Globals {
			out = append(out, filterMinSeverity(r.AnalyzeGlobal(g, e.escape, e.cfg), minSev)...)
		}
	}

	return out
}

func filterMinSeverity(diags []Diagnostic, minSev Severity) []Diagnostic {
	if len(diags) == 0 {
		return nil
	}
	var out []Diagnostic
	for _, d := range diags {
		if d.Severity >= minSev {
			out = append(out, d)
		}
	}
	return out
}
