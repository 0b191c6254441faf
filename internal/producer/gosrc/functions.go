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
	"strings"

	"github.com/faultline/faultline/internal/core"
)

const hotAnnotation = "faultline:hot"

// collectHotAnnotations returns the set of line numbers immediately
// following a //faultline:hot comment, the Go binding of the source's
// [[clang::annotate("faultline_hot")]] attribute.
func collectHotAnnotations(file *ast.File, fset *token.FileSet) map[int]bool {
	hot := make(map[int]bool)
	for _, cg := range file.Comments {
		for _, c := range cg.List {
			if !strings.Contains(c.Text, hotAnnotation) {
				continue
			}
			pos := fset.Position(c.End())
			hot[pos.Line+1] = true
		}
	}
	return hot
}

func qualifiedName(pkgPath string, fd *ast.FuncDecl) string {
	if fd.Recv != nil && len(fd.Recv.List) > 0 {
		recvType := exprString(fd.Recv.List[0].Type)
		return pkgPath + "." + recvType + "." + fd.Name.Name
	}
	return pkgPath + "." + fd.Name.Name
}

func exprString(e ast.Expr) string {
	switch t := e.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		return exprString(t.X)
	case *ast.IndexExpr:
		return exprString(t.X)
	case *ast.IndexListExpr:
		return exprString(t.X)
	default:
		return "?"
	}
}

func (ex *extractor) buildFunction(fd *ast.FuncDecl, info *types.Info, hotLines map[int]bool) *core.FunctionDecl {
	loc := ex.position(fd.Name.Pos())

	decl := &core.FunctionDecl{
		QualifiedName:    qualifiedName(ex.pkg.PkgPath, fd),
		File:             loc.File,
		Location:         loc,
		HasBody:          fd.Body != nil,
		Params:           ex.buildParams(fd, info),
		HasHotAnnotation: hotLines[loc.Line],
	}

	w := &bodyWalker{info: info, fset: ex.pkg.Fset}
	for _, p := range decl.Params {
		w.locals = append(w.locals, core.LocalVar{
			Name: p.Name, SizeBytes: p.SizeBytes, IsParam: true, IsByReference: p.IsByReference,
		})
	}
	w.walkStmt(fd.Body, walkState{})
	decl.Facts = w.facts()

	return decl
}

func (ex *extractor) buildParams(fd *ast.FuncDecl, info *types.Info) []core.ParamSpec {
	var out []core.ParamSpec
	if fd.Recv != nil {
		for _, f := range fd.Recv.List {
			out = append(out, ex.paramSpecsForField(f, info)...)
		}
	}
	if fd.Type.Params != nil {
		for _, f := range fd.Type.Params.List {
			out = append(out, ex.paramSpecsForField(f, info)...)
		}
	}
	return out
}

func (ex *extractor) paramSpecsForField(f *ast.Field, info *types.Info) []core.ParamSpec {
	t := info.TypeOf(f.Type)
	if t == nil {
		return nil
	}
	_, isPtr := t.Underlying().(*types.Pointer)

	spec := core.ParamSpec{
		SizeBytes:        gcSizes.Sizeof(t),
		IsByReference:    isPtr,
		IsErasedCallable: isErasedCallableType(t),
	}

	if len(f.Names) == 0 {
		spec.Name = "_"
		return []core.ParamSpec{spec}
	}

	out := make([]core.ParamSpec, 0, len(f.Names))
	for _, n := range f.Names {
		s := spec
		s.Name = n.Name
		out = append(out, s)
	}
	return out
}

// walkState threads loop/branch-depth context down through the recursive
// statement walk without a wrapper type for every statement kind.
type walkState struct {
	inLoop  bool
	ifDepth int
}

// bodyWalker accumulates FunctionFacts by recursively visiting one
// function's statement tree. It is not an ast.Visitor because the lock/loop
// context a node needs depends on its ancestors, which ast.Inspect's
// pre-order-only callback cannot thread cleanly.
type bodyWalker struct {
	info *types.Info
	fset *token.FileSet

	atomics         []core.AtomicSite
	locks           []core.LockSite
	allocs          []core.AllocSite
	calls           []core.CallSite
	erasedCallables []core.ErasedCallableSite
	switches        []core.SwitchSite
	locals          []core.LocalVar

	maxIfDepth   int
	deepestIfLoc core.SourceLocation

	dispatchCalls        int
	dispatchDeepestCases int
	dispatchVirtualCalls int
	dispatchHasLoop      bool

	activeLocks int
}

func (w *bodyWalker) facts() core.FunctionFacts {
	return core.FunctionFacts{
		Atomics:         w.atomics,
		Locks:           w.locks,
		Allocs:          w.allocs,
		Calls:           w.calls,
		ErasedCallables: w.erasedCallables,
		Switches:        w.switches,
		Locals:          w.locals,
		MaxIfDepth:      w.maxIfDepth,
		DeepestIfLoc:    w.deepestIfLoc,
		Dispatch: core.DispatchFacts{
			CallCount:          w.dispatchCalls,
			DeepestSwitchCases: w.dispatchDeepestCases,
			VirtualCallCount:   w.dispatchVirtualCalls,
			HasLoop:            w.dispatchHasLoop,
		},
	}
}

func (w *bodyWalker) position(pos token.Pos) core.SourceLocation {
	p := w.fset.Position(pos)
	return core.SourceLocation{File: p.Filename, Line: p.Line, Column: p.Column}
}

func (w *bodyWalker) walkStmt(stmt ast.Stmt, st walkState) {
	if stmt == nil {
		return
	}
	switch n := stmt.(type) {
	case *ast.BlockStmt:
		for _, s := range n.List {
			w.walkStmt(s, st)
		}

	case *ast.DeclStmt:
		w.walkDecl(n.Decl, st)

	case *ast.AssignStmt:
		for _, rhs := range n.Rhs {
			w.walkExpr(rhs, st)
		}
		if n.Tok == token.DEFINE {
			for _, lhs := range n.Lhs {
				w.recordLocal(lhs, st)
			}
		}
		for _, lhs := range n.Lhs {
			w.walkExpr(lhs, st)
		}

	case *ast.ExprStmt:
		w.walkExpr(n.X, st)

	case *ast.IfStmt:
		nextDepth := st.ifDepth + 1
		if nextDepth > w.maxIfDepth {
			w.maxIfDepth = nextDepth
			w.deepestIfLoc = w.position(n.If)
		}
		w.walkExpr(n.Cond, st)
		inner := st
		inner.ifDepth = nextDepth
		w.walkStmt(n.Body, inner)
		w.walkStmt(n.Else, inner)

	case *ast.ForStmt:
		w.dispatchHasLoop = true
		inner := st
		inner.inLoop = true
		w.walkStmt(n.Body, inner)

	case *ast.RangeStmt:
		w.dispatchHasLoop = true
		w.walkExpr(n.X, st)
		if n.Tok == token.DEFINE {
			w.recordLocal(n.Key, st)
			w.recordLocal(n.Value, st)
		}
		inner := st
		inner.inLoop = true
		w.walkStmt(n.Body, inner)

	case *ast.SwitchStmt:
		w.recordSwitch(n, len(n.Body.List), st)
		w.walkStmt(n.Init, st)
		w.walkExpr(n.Tag, st)
		for _, c := range n.Body.List {
			cc := c.(*ast.CaseClause)
			for _, e := range cc.List {
				w.walkExpr(e, st)
			}
			for _, s := range cc.Body {
				w.walkStmt(s, st)
			}
		}

	case *ast.TypeSwitchStmt:
		w.recordSwitch(n, len(n.Body.List), st)
		for _, c := range n.Body.List {
			cc := c.(*ast.CaseClause)
			for _, s := range cc.Body {
				w.walkStmt(s, st)
			}
		}

	case *ast.SelectStmt:
		for _, c := range n.Body.List {
			cc := c.(*ast.CommClause)
			w.walkStmt(cc.Comm, st)
			for _, s := range cc.Body {
				w.walkStmt(s, st)
			}
		}

	case *ast.GoStmt:
		w.walkExpr(n.Call, st)
	case *ast.DeferStmt:
		w.walkExpr(n.Call, st)
	case *ast.ReturnStmt:
		for _, r := range n.Results {
			w.walkExpr(r, st)
		}
	case *ast.LabeledStmt:
		w.walkStmt(n.Stmt, st)
	case *ast.SendStmt:
		w.walkExpr(n.Chan, st)
		w.walkExpr(n.Value, st)
	case *ast.IncDecStmt:
		w.walkExpr(n.X, st)
	}
}

func (w *bodyWalker) walkDecl(decl ast.Decl, st walkState) {
	gd, ok := decl.(*ast.GenDecl)
	if !ok || gd.Tok != token.VAR {
		return
	}
	for _, spec := range gd.Specs {
		vs, ok := spec.(*ast.ValueSpec)
		if !ok {
			continue
		}
		for _, v := range vs.Values {
			w.walkExpr(v, st)
		}
		for _, name := range vs.Names {
			w.recordLocal(name, st)
		}
	}
}

func (w *bodyWalker) recordLocal(expr ast.Expr, st walkState) {
	ident, ok := expr.(*ast.Ident)
	if !ok || ident.Name == "_" {
		return
	}
	t := w.info.TypeOf(ident)
	if t == nil {
		return
	}
	_, isPtr := t.Underlying().(*types.Pointer)
	w.locals = append(w.locals, core.LocalVar{
		Name:          ident.Name,
		SizeBytes:     gcSizes.Sizeof(t),
		IsParam:       false,
		IsByReference: isPtr,
	})
}

func (w *bodyWalker) recordSwitch(stmt ast.Stmt, caseCount int, st walkState) {
	var pos token.Pos
	switch n := stmt.(type) {
	case *ast.SwitchStmt:
		pos = n.Switch
	case *ast.TypeSwitchStmt:
		pos = n.Switch
	}
	w.switches = append(w.switches, core.SwitchSite{Loc: w.position(pos), CaseCount: caseCount})
	if caseCount > w.dispatchDeepestCases {
		w.dispatchDeepestCases = caseCount
	}
}

func (w *bodyWalker) walkExpr(expr ast.Expr, st walkState) {
	if expr == nil {
		return
	}
	switch n := expr.(type) {
	case *ast.CallExpr:
		w.recordCall(n, st)
		w.walkExpr(n.Fun, st)
		for _, a := range n.Args {
			w.walkExpr(a, st)
		}

	case *ast.UnaryExpr:
		if n.Op == token.AND {
			if lit, ok := n.X.(*ast.CompositeLit); ok {
				w.allocs = append(w.allocs, core.AllocSite{Loc: w.position(n.OpPos), Kind: "new", InLoop: st.inLoop})
				for _, e := range lit.Elts {
					w.walkExpr(e, st)
				}
				return
			}
		}
		w.walkExpr(n.X, st)
	case *ast.StarExpr:
		w.walkExpr(n.X, st)
	case *ast.ParenExpr:
		w.walkExpr(n.X, st)
	case *ast.BinaryExpr:
		w.walkExpr(n.X, st)
		w.walkExpr(n.Y, st)
	case *ast.SelectorExpr:
		w.walkExpr(n.X, st)
	case *ast.IndexExpr:
		w.walkExpr(n.X, st)
		w.walkExpr(n.Index, st)
	case *ast.CompositeLit:
		w.recordCompositeLit(n, st)
		for _, e := range n.Elts {
			w.walkExpr(e, st)
		}
	case *ast.KeyValueExpr:
		w.walkExpr(n.Value, st)
	case *ast.FuncLit:
		inner := walkState{}
		w.walkStmt(n.Body, inner)
	case *ast.TypeAssertExpr:
		w.walkExpr(n.X, st)
	}
}

// recordCompositeLit flags a bare (non-addressed) composite literal that
// constructs a type-erased callable value. &T{...} heap allocations are
// caught one level up, in walkExpr's UnaryExpr case, before it ever
// descends here.
func (w *bodyWalker) recordCompositeLit(n *ast.CompositeLit, st walkState) {
	t := w.info.TypeOf(n)
	if t == nil {
		return
	}
	if isErasedCallableType(t) {
		w.erasedCallables = append(w.erasedCallables, core.ErasedCallableSite{
			Loc:  w.position(n.Lbrace),
			Kind: "construct",
		})
	}
}

func (w *bodyWalker) recordCall(n *ast.CallExpr, st walkState) {
	switch fun := n.Fun.(type) {
	case *ast.Ident:
		w.recordBuiltinOrFuncCall(fun, n, st)

	case *ast.SelectorExpr:
		w.recordSelectorCall(fun, n, st)
	}
}

func (w *bodyWalker) recordBuiltinOrFuncCall(fun *ast.Ident, n *ast.CallExpr, st walkState) {
	switch fun.Name {
	case "new":
		w.allocs = append(w.allocs, core.AllocSite{Loc: w.position(n.Lparen), Kind: "new", InLoop: st.inLoop})
		return
	case "make":
		w.allocs = append(w.allocs, core.AllocSite{Loc: w.position(n.Lparen), Kind: "make", InLoop: st.inLoop})
		return
	}

	obj := w.info.Uses[fun]
	if obj == nil {
		return
	}
	if _, ok := obj.(*types.Func); !ok {
		// A call through a local function-typed variable: invoking a
		// type-erased callable.
		w.erasedCallables = append(w.erasedCallables, core.ErasedCallableSite{
			Loc:  w.position(n.Lparen),
			Kind: "invoke",
		})
		w.calls = append(w.calls, core.CallSite{
			Loc: w.position(n.Lparen), CalleeName: fun.Name, IsIndirect: true, InLoop: st.inLoop,
		})
		w.dispatchCalls++
		return
	}

	w.calls = append(w.calls, core.CallSite{Loc: w.position(n.Lparen), CalleeName: fun.Name, InLoop: st.inLoop})
	w.dispatchCalls++
}

func (w *bodyWalker) recordSelectorCall(fun *ast.SelectorExpr, n *ast.CallExpr, st walkState) {
	recvName := receiverName(fun.X)
	methodName := fun.Sel.Name

	// fun.X is the receiver expression itself (e.g. "p.mu", not just "p"):
	// its type, not the type of whatever it is a field of, is what decides
	// whether this call is on an atomic word or a sync primitive.
	if recvType := w.info.TypeOf(fun.X); recvType != nil {
		if isAtomicWordType(derefType(recvType)) {
			w.recordAtomicOp(recvName, methodName, n, st)
			return
		}
		if isSyncPrimitiveType(derefType(recvType)) {
			if isLockMethod(methodName) {
				w.recordLock(recvName, n, st)
				return
			}
			if isUnlockMethod(methodName) && w.activeLocks > 0 {
				w.activeLocks--
				return
			}
		}
	}

	var isVirtual bool
	if sel, ok := w.info.Selections[fun]; ok && sel.Kind() == types.MethodVal {
		if _, isIface := sel.Recv().Underlying().(*types.Interface); isIface {
			isVirtual = true
		}
	}

	w.calls = append(w.calls, core.CallSite{
		Loc: w.position(n.Lparen), CalleeName: methodName, IsVirtual: isVirtual, InLoop: st.inLoop,
	})
	w.dispatchCalls++
	if isVirtual {
		w.dispatchVirtualCalls++
	}

	if recvName == "guard" && methodName == "New" {
		w.recordLock(recvName, n, st)
	}
}

// recordLock appends a LockSite, flagging it Nested when another lock
// acquired earlier in this function has not yet been matched by an Unlock
// call. Go locks are not block-scoped the way a C++ lock_guard destructor
// is, so this is a straight-line approximation rather than a true
// held-lock-set analysis.
func (w *bodyWalker) recordLock(recvName string, n *ast.CallExpr, st walkState) {
	w.locks = append(w.locks, core.LockSite{
		Loc: w.position(n.Lparen), ReceiverName: recvName, Nested: w.activeLocks > 0, InLoop: st.inLoop,
	})
	w.activeLocks++
}

func isUnlockMethod(name string) bool {
	switch name {
	case "Unlock", "RUnlock":
		return true
	default:
		return false
	}
}

func (w *bodyWalker) recordAtomicOp(recvName, methodName string, n *ast.CallExpr, st walkState) {
	var op core.AtomicOpKind
	switch methodName {
	case "Load":
		op = core.AtomicLoad
	case "Store":
		op = core.AtomicStore
	default: // Add, Swap, CompareAndSwap, and the generic Pointer equivalents
		op = core.AtomicRMW
	}
	w.atomics = append(w.atomics, core.AtomicSite{
		Loc:        w.position(n.Lparen),
		VarName:    recvName,
		MethodName: methodName,
		Op:         op,
		InLoop:     st.inLoop,
	})
}

func isLockMethod(name string) bool {
	switch name {
	case "Lock", "TryLock", "RLock", "TryRLock":
		return true
	default:
		return false
	}
}

// receiverName returns the innermost field/variable/package name of a
// receiver expression for diagnostic display: "mu" for p.mu, "guard" for
// the guard package qualifier, "mu" for (*p).mu.
func receiverName(e ast.Expr) string {
	switch n := e.(type) {
	case *ast.Ident:
		return n.Name
	case *ast.StarExpr:
		return receiverName(n.X)
	case *ast.SelectorExpr:
		return n.Sel.Name
	case *ast.IndexExpr:
		return receiverName(n.X)
	default:
		return "?"
	}
}

func derefType(t types.Type) types.Type {
	if p, ok := t.Underlying().(*types.Pointer); ok {
		return p.Elem()
	}
	return t
}
