// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package gosrc

import (
	"go/ast"
	"go/token"
	"go/types"

	"golang.org/x/tools/go/packages"

	"github.com/faultline/faultline/internal/core"
)

// extractor walks a single loaded package once, collecting the three
// declaration kinds a TranslationUnit holds. It is built fresh per package
// and discarded after run(); nothing about it outlives Extract.
type extractor struct {
	pkg *packages.Package

	records   []*core.RecordDecl
	functions []*core.FunctionDecl
	globals   []*core.GlobalDecl

	seenRecords map[types.Object]bool
}

func (ex *extractor) run() {
	ex.seenRecords = make(map[types.Object]bool)

	ex.walkRecords()
	ex.walkGlobals()
	ex.walkFunctions()
}

func (ex *extractor) position(pos token.Pos) core.SourceLocation {
	p := ex.pkg.Fset.Position(pos)
	return core.SourceLocation{File: p.Filename, Line: p.Line, Column: p.Column}
}

// walkRecords visits every named struct type declared at package scope.
// Struct literals declared only inline (e.g. anonymous field types with no
// type name of their own) are picked up as FieldSpec.Nested by records.go
// rather than as top-level RecordDecls.
func (ex *extractor) walkRecords() {
	scope := ex.pkg.Types.Scope()
	for _, name := range scope.Names() {
		obj, ok := scope.Lookup(name).(*types.TypeName)
		if !ok || ex.seenRecords[obj] {
			continue
		}
		named, ok := obj.Type().(*types.Named)
		if !ok {
			continue
		}
		st, ok := named.Underlying().(*types.Struct)
		if !ok {
			continue
		}
		ex.seenRecords[obj] = true
		ex.records = append(ex.records, ex.buildRecord(obj, st, ex.position(obj.Pos())))
	}
}

// walkGlobals visits every package-level var declaration.
func (ex *extractor) walkGlobals() {
	for _, file := range ex.pkg.Syntax {
		for _, decl := range file.Decls {
			gd, ok := decl.(*ast.GenDecl)
			if !ok || gd.Tok != token.VAR {
				continue
			}
			for _, spec := range gd.Specs {
				vs, ok := spec.(*ast.ValueSpec)
				if !ok {
					continue
				}
				ex.globals = append(ex.globals, ex.buildGlobals(vs)...)
			}
		}
	}
}

// walkFunctions visits every top-level function and method declaration with
// a body. Declarations with no body (forward declarations of cgo/asm stubs)
// carry no FunctionFacts worth analyzing.
func (ex *extractor) walkFunctions() {
	info := ex.pkg.TypesInfo
	for _, file := range ex.pkg.Syntax {
		hotLines := collectHotAnnotations(file, ex.pkg.Fset)
		for _, decl := range file.Decls {
			fd, ok := decl.(*ast.FuncDecl)
			if !ok || fd.Body == nil {
				continue
			}
			ex.functions = append(ex.functions, ex.buildFunction(fd, info, hotLines))
		}
	}
}
