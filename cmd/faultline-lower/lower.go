// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"go/token"
	"go/types"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/tools/go/packages"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"

	"github.com/faultline/faultline/internal/ir/irtext"
)

// loadMode is the same mode internal/producer/gosrc's Load uses; it already
// carries the syntax and dependency information ssautil.Packages needs to
// build SSA across the whole import graph rather than just the target
// package.
const loadMode = packages.NeedName |
	packages.NeedFiles |
	packages.NeedCompiledGoFiles |
	packages.NeedImports |
	packages.NeedDeps |
	packages.NeedSyntax |
	packages.NeedTypes |
	packages.NeedTypesInfo

// gcSizes matches the x86-64 framing internal/producer/gosrc assumes, so a
// struct's ALLOCA size agrees with its AST-estimated sizeof regardless of
// which producer measured it.
var gcSizes = types.SizesFor("gc", "amd64")

// lowerFile loads the package containing source, builds its SSA form at the
// requested optimization level, and writes the lowered functions defined in
// source to w.
func lowerFile(w io.Writer, source, optLevel string) error {
	abs, err := filepath.Abs(source)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", source, err)
	}

	cfg := &packages.Config{Mode: loadMode, Dir: filepath.Dir(abs)}
	pkgs, err := packages.Load(cfg, "file="+abs)
	if err != nil {
		return fmt.Errorf("loading %s: %w", source, err)
	}
	if packages.PrintErrors(pkgs) > 0 {
		return fmt.Errorf("package containing %s failed to type-check", source)
	}

	mode := ssa.BuilderMode(0)
	if optLevel == "0" {
		// Unoptimized: keep every local as a distinct stack slot instead of
		// lifting non-escaping ones into SSA registers, so the alloca count
		// matches what an unoptimized compile would actually keep live.
		mode |= ssa.NaiveForm
	}

	prog, _ := ssautil.AllPackages(pkgs, mode)
	prog.Build()

	writer := irtext.NewWriter(w)
	fset := prog.Fset

	var fns []*ssa.Function
	for fn := range ssautil.AllFunctions(prog) {
		if fn.Synthetic != "" || fn.Blocks == nil {
			continue
		}
		if fn.Pos() == token.NoPos {
			continue
		}
		if fset.Position(fn.Pos()).Filename != abs {
			continue
		}
		fns = append(fns, fn)
	}
	sort.Slice(fns, func(i, j int) bool { return fns[i].Pos() < fns[j].Pos() })

	for _, fn := range fns {
		emitFunction(writer, fn, fset)
	}
	return writer.Flush()
}

// emitFunction walks one function's SSA instructions in block order and
// writes its section. Loop membership is a back-edge heuristic: a block
// that jumps to itself or to an earlier block in the function's natural
// block order is treated as loop-resident for every instruction in it. This
// catches ordinary for/range loops without computing a full dominator tree.
func emitFunction(w *irtext.Writer, fn *ssa.Function, fset *token.FileSet) {
	name := qualifiedName(fn)
	w.Func(name, name)

	for _, block := range fn.Blocks {
		inLoop := false
		for _, succ := range block.Succs {
			if succ.Index <= block.Index {
				inLoop = true
				break
			}
		}
		w.Block(block.Index, inLoop)

		for _, instr := range block.Instrs {
			emitInstr(w, instr, fset, inLoop)
		}
	}

	w.EndFunc()
}

func emitInstr(w *irtext.Writer, instr ssa.Instruction, fset *token.FileSet, inLoop bool) {
	switch v := instr.(type) {
	case *ssa.Alloc:
		emitAlloc(w, v, fset, inLoop)

	case *ssa.MakeSlice:
		pos := fset.Position(instr.Pos())
		w.Call("runtime.makeslice", inLoop, pos.Filename, pos.Line)
	case *ssa.MakeMap:
		pos := fset.Position(instr.Pos())
		w.Call("runtime.makemap", inLoop, pos.Filename, pos.Line)
	case *ssa.MakeChan:
		pos := fset.Position(instr.Pos())
		w.Call("runtime.makechan", inLoop, pos.Filename, pos.Line)

	case *ssa.Call:
		emitCall(w, v.Common(), instr.Pos(), fset, inLoop)
	case *ssa.Go:
		emitCall(w, v.Common(), instr.Pos(), fset, inLoop)
	case *ssa.Defer:
		emitCall(w, v.Common(), instr.Pos(), fset, inLoop)
	}
}

func emitAlloc(w *irtext.Writer, v *ssa.Alloc, fset *token.FileSet, inLoop bool) {
	elem := v.Type().(*types.Pointer).Elem()
	_, isArray := elem.Underlying().(*types.Array)

	if v.Heap {
		callee := "runtime.newobject"
		if isArray {
			callee = "runtime.newarray"
		}
		pos := fset.Position(v.Pos())
		w.Call(callee, inLoop, pos.Filename, pos.Line)
		return
	}

	name := v.Comment
	if name == "" {
		name = "_"
	}
	w.Alloca(name, gcSizes.Sizeof(elem), isArray)
}

// emitCall classifies one call instruction and writes its line. callPos is
// the owning instruction's own position (ssa.CallCommon carries none of its
// own), so a direct call's CALL line and a recognized atomic's ATOMIC line
// both anchor to the exact source site a rule's diagnostic was built from,
// letting the refiner tell "this exact call" from "some other call in the
// function".
func emitCall(w *irtext.Writer, common *ssa.CallCommon, callPos token.Pos, fset *token.FileSet, inLoop bool) {
	pos := fset.Position(callPos)

	if common.IsInvoke() {
		w.CallIndirect(inLoop)
		return
	}

	callee := common.StaticCallee()
	if callee == nil {
		w.CallIndirect(inLoop)
		return
	}

	if op, ok := atomicOp(callee); ok {
		w.Atomic(op, "seq_cst", inLoop, pos.Filename, pos.Line)
		return
	}

	w.Call(qualifiedName(callee), inLoop, pos.Filename, pos.Line)
}

// atomicOp recognizes both the free functions in sync/atomic
// (atomic.AddInt64, atomic.LoadUint32, ...) and the Load/Store/Add/Swap/
// CompareAndSwap/And/Or methods on its typed wrappers (atomic.Int64,
// atomic.Bool, ...) introduced in Go 1.19. sync/atomic exposes no weaker
// ordering than sequential consistency, so every recognized op is reported
// as seq_cst; there is no Go-level equivalent of a standalone fence.
func atomicOp(fn *ssa.Function) (string, bool) {
	if fn.Pkg == nil || fn.Pkg.Pkg.Path() != "sync/atomic" {
		return "", false
	}
	name := fn.Name()
	switch {
	case strings.Contains(name, "CompareAndSwap"):
		return "cmpxchg", true
	case strings.Contains(name, "Load"):
		return "load", true
	case strings.Contains(name, "Store"):
		return "store", true
	case strings.Contains(name, "Add"), strings.Contains(name, "Swap"),
		strings.Contains(name, "And"), strings.Contains(name, "Or"):
		return "rmw", true
	default:
		return "", false
	}
}

func qualifiedName(fn *ssa.Function) string {
	if recv := fn.Signature.Recv(); recv != nil {
		recvType := recv.Type().String()
		recvType = strings.TrimPrefix(recvType, "*")
		if idx := strings.LastIndex(recvType, "."); idx >= 0 {
			recvType = recvType[idx+1:]
		}
		pkgPath := ""
		if fn.Pkg != nil {
			pkgPath = fn.Pkg.Pkg.Path()
		}
		return pkgPath + "." + recvType + "." + fn.Name()
	}
	if fn.Pkg != nil {
		return fn.Pkg.Pkg.Path() + "." + fn.Name()
	}
	return fn.Name()
}
