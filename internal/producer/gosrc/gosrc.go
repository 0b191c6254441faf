// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package gosrc is the concrete translation-unit producer: it loads Go
// source via golang.org/x/tools/go/packages and walks the resulting
// *ast.Package/*types.Package pair once per package to build a
// core.TranslationUnit, pre-extracting every structural fact the rule
// engine needs (field offsets, atomic/lock/alloc/call sites, branch depth)
// so no rule ever has to touch go/ast or go/types itself.
package gosrc

import (
	"fmt"
	"go/types"
	"strings"

	"golang.org/x/tools/go/packages"

	"github.com/faultline/faultline/internal/core"
)

// loadMode is the packages.Load mode this producer needs: full type
// information and syntax trees, but no SSA — FunctionFacts is built by a
// plain AST walk, not a control-flow graph.
const loadMode = packages.NeedName |
	packages.NeedFiles |
	packages.NeedCompiledGoFiles |
	packages.NeedImports |
	packages.NeedDeps |
	packages.NeedSyntax |
	packages.NeedTypes |
	packages.NeedTypesInfo

// Load resolves patterns (package paths, "./..." style patterns, or a
// single file) rooted at dir into fully type-checked packages.
func Load(dir string, patterns ...string) ([]*packages.Package, error) {
	cfg := &packages.Config{
		Dir:  dir,
		Mode: loadMode,
	}

	pkgs, err := packages.Load(cfg, patterns...)
	if err != nil {
		return nil, core.NewAnalysisError(core.InputNotAnalyzable, "packages.Load", dir, err)
	}

	var loadErrs []string
	packages.Visit(pkgs, nil, func(pkg *packages.Package) {
		for _, e := range pkg.Errors {
			loadErrs = append(loadErrs, fmt.Sprintf("%s: %s", pkg.PkgPath, e.Msg))
		}
	})
	if len(loadErrs) > 0 {
		return nil, core.NewAnalysisError(core.InputNotAnalyzable, "packages.Load",
			dir, fmt.Errorf("%s", strings.Join(loadErrs, "; ")))
	}

	return pkgs, nil
}

// gcSizes is the fixed word/alignment model the distilled spec's x86-64
// framing assumes throughout: "gc" compiler, "amd64" architecture.
var gcSizes = types.SizesFor("gc", "amd64")

// Extract walks every package in pkgs and merges their declarations into a
// single TranslationUnit. Packages that failed to type-check are expected
// to have already been rejected by Load; Extract does not re-check errors.
func Extract(pkgs []*packages.Package) core.TranslationUnit {
	var tu core.TranslationUnit

	for _, pkg := range pkgs {
		ex := &extractor{pkg: pkg}
		ex.run()
		tu.Records = append(tu.Records, ex.records...)
		tu.Functions = append(tu.Functions, ex.functions...)
		tu.Globals = append(tu.Globals, ex.globals...)
	}

	return tu
}
