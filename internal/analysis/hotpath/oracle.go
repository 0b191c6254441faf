// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package hotpath determines whether a function sits on a latency-critical
// path, by one of two mechanisms: a //faultline:hot annotation comment
// immediately preceding it, the Go binding of the source's annotate-
// attribute mechanism, or a glob match against Config's hot function/file
// patterns.
package hotpath

import (
	"path"
	"sync"

	"github.com/faultline/faultline/internal/core"
)

// Oracle is the concrete core.HotPathOracle. Verdicts are cached per
// function pointer identity, mirroring the source's hotCache_ set, since
// the same *FunctionDecl can be consulted by every rule in the engine.
type Oracle struct {
	cfg *core.Config

	mu      sync.Mutex
	verdict map[*core.FunctionDecl]bool
}

var _ core.HotPathOracle = (*Oracle)(nil)

// New builds an Oracle bound to cfg's hot-function and hot-file patterns.
func New(cfg *core.Config) *Oracle {
	return &Oracle{cfg: cfg, verdict: make(map[*core.FunctionDecl]bool)}
}

// IsFunctionHot reports whether fn is on a hot path.
func (o *Oracle) IsFunctionHot(fn *core.FunctionDecl) bool {
	if fn == nil {
		return false
	}

	o.mu.Lock()
	if v, ok := o.verdict[fn]; ok {
		o.mu.Unlock()
		return v
	}
	o.mu.Unlock()

	hot := fn.HasHotAnnotation || o.matchesConfigPattern(fn)

	o.mu.Lock()
	o.verdict[fn] = hot
	o.mu.Unlock()

	return hot
}

// MarkHot force-marks fn as hot, the Go binding of the source's markHot —
// used by a future interprocedural pass (a hot entry point's direct
// callees) that this phase does not yet implement.
func (o *Oracle) MarkHot(fn *core.FunctionDecl) {
	if fn == nil {
		return
	}
	o.mu.Lock()
	o.verdict[fn] = true
	o.mu.Unlock()
}

func (o *Oracle) matchesConfigPattern(fn *core.FunctionDecl) bool {
	if o.cfg == nil {
		return false
	}
	for _, pat := range o.cfg.HotFunctionPatterns {
		if ok, _ := path.Match(pat, fn.QualifiedName); ok {
			return true
		}
	}
	for _, pat := range o.cfg.HotFilePatterns {
		if ok, _ := path.Match(pat, fn.File); ok {
			return true
		}
	}
	return false
}
