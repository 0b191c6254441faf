// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package lower drives the lowering-compiler subprocess that turns a Go
// source file into the textual IR internal/ir/irtext reads, bounding
// concurrency and caching results across runs.
package lower

// =============================================================================
// Driver — lowering-compiler subprocess invocation with bounded concurrency
// and content-addressed caching.
// =============================================================================
//
// Lowering every source file costs a subprocess fork/exec and, for anything
// larger than a handful of functions, real compile time. Two measures keep
// that affordable on a full run:
//
//  1. Bounded parallelism: invocations run through an errgroup with a
//     semaphore-sized worker pool, the same shape the trace agent's
//     embedding warm-up uses to bound concurrent Ollama calls.
//  2. Content-addressed BadgerDB cache: the key is SHA256(source bytes,
//     lowering-compiler path, opt level, passthrough args). An unmodified
//     file under an unmodified compiler, opt level and passthrough args is
//     not lowered again while its cache entry lives (30 days), mirroring
//     the trace agent's router cache keyed by corpus hash instead of an
//     explicit invalidation API.
//
// A lowering failure for one file is never fatal to the run: Driver.Run
// records an IREmission/IRParse error per file and keeps going, since IR
// facts are an enrichment pass over AST-derived diagnostics, not their
// source of truth.

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	dgbadger "github.com/dgraph-io/badger/v4"
	"golang.org/x/sync/errgroup"

	"github.com/faultline/faultline/internal/core"
	"github.com/faultline/faultline/internal/ir"
	"github.com/faultline/faultline/internal/ir/irtext"
	"github.com/faultline/faultline/internal/telemetry"
)

const irCacheKeyPrefix = "ir/profile/v1/"

const irCacheDefaultTTL = 30 * 24 * time.Hour

// Driver runs the lowering compiler across a source set and merges the
// resulting per-function profiles into one ir.ProfileMap.
type Driver struct {
	compilerPath string
	optLevel     string
	jobs         int
	passthrough  []string
	cache        *dgbadger.DB
	logger       *slog.Logger
}

// Option configures a Driver.
type Option func(*Driver)

// WithCache opens (or reuses) a BadgerDB instance rooted at dir for the
// content-addressed profile cache. A zero-value dir disables caching; every
// invocation runs the compiler.
func WithCache(dir string) Option {
	return func(d *Driver) {
		if dir == "" {
			return
		}
		opts := dgbadger.DefaultOptions(dir).WithLogger(nil)
		db, err := dgbadger.Open(opts)
		if err != nil {
			d.logger.Warn("ir: cache unavailable, lowering every file uncached",
				slog.String("dir", dir), slog.Any("err", err))
			return
		}
		d.cache = db
	}
}

// WithPassthroughArgs forwards args verbatim to every lowering-compiler
// invocation, after the source file — the Go binding of a build tool's
// "-- " separator for flags the caller wants passed straight through to the
// underlying compiler without this project inspecting them.
func WithPassthroughArgs(args []string) Option {
	return func(d *Driver) {
		d.passthrough = args
	}
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Driver) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewDriver builds a Driver that invokes compilerPath at the given
// optimization level, running up to jobs lowering subprocesses concurrently.
func NewDriver(compilerPath, optLevel string, jobs int, opts ...Option) *Driver {
	if jobs <= 0 {
		jobs = 1
	}
	d := &Driver{
		compilerPath: compilerPath,
		optLevel:     optLevel,
		jobs:         jobs,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Close releases the cache database, if one was opened.
func (d *Driver) Close() error {
	if d.cache == nil {
		return nil
	}
	return d.cache.Close()
}

// Run lowers every path in sources and returns the merged profile map. A
// per-file failure is logged and excluded from the result rather than
// aborting the whole run; ctx cancellation stops outstanding and
// not-yet-started invocations.
func (d *Driver) Run(ctx context.Context, sources []string) (ir.ProfileMap, error) {
	merged := make(ir.ProfileMap)
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, d.jobs)

	for _, src := range sources {
		source := src
		g.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()

			profiles, err := d.lowerOne(gctx, source)
			if err != nil {
				d.logger.Warn("ir: lowering failed, continuing without IR facts for this file",
					slog.String("file", source), slog.Any("err", err))
				return nil
			}

			mu.Lock()
			for k, v := range profiles {
				merged[k] = v
			}
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("ir: driver run: %w", err)
	}
	return merged, nil
}

func (d *Driver) lowerOne(ctx context.Context, source string) (ir.ProfileMap, error) {
	content, err := os.ReadFile(source)
	if err != nil {
		return nil, core.NewAnalysisError(core.IREmission, "ir.Driver.lowerOne", source, err)
	}

	key := d.cacheKey(source, content)

	if d.cache != nil {
		if raw, ok := d.cacheGet(key); ok {
			telemetry.IRCacheTotal.WithLabelValues("hit").Inc()
			return parseProfiles(source, raw)
		}
	}
	telemetry.IRCacheTotal.WithLabelValues("miss").Inc()

	start := time.Now()
	raw, err := d.invoke(ctx, source)
	telemetry.RecordSubprocessDuration(time.Since(start), err)
	if err != nil {
		return nil, core.NewAnalysisError(core.IREmission, "ir.Driver.invoke", source, err)
	}

	if d.cache != nil {
		d.cacheSet(key, raw)
	}
	return parseProfiles(source, raw)
}

func (d *Driver) invoke(ctx context.Context, source string) ([]byte, error) {
	args := append([]string{"-opt", d.optLevel, source}, d.passthrough...)
	cmd := exec.CommandContext(ctx, d.compilerPath, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s %v: %w (stderr: %s)", d.compilerPath, args, err, stderr.String())
	}
	return stdout.Bytes(), nil
}

func parseProfiles(source string, raw []byte) (ir.ProfileMap, error) {
	profiles, err := irtext.Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, core.NewAnalysisError(core.IRParse, "ir.Driver.parseProfiles", source, err)
	}
	return profiles, nil
}

func (d *Driver) cacheKey(source string, content []byte) []byte {
	h := sha256.New()
	h.Write(content)
	fmt.Fprintf(h, "\x00%s\x00%s\x00%s", d.compilerPath, d.optLevel, strings.Join(d.passthrough, "\x00"))
	return []byte(irCacheKeyPrefix + hex.EncodeToString(h.Sum(nil)))
}

func (d *Driver) cacheGet(key []byte) ([]byte, bool) {
	var raw []byte
	err := d.cache.View(func(txn *dgbadger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, false
	}
	return raw, true
}

func (d *Driver) cacheSet(key, value []byte) {
	err := d.cache.Update(func(txn *dgbadger.Txn) error {
		entry := dgbadger.NewEntry(key, value).WithTTL(irCacheDefaultTTL)
		return txn.SetEntry(entry)
	})
	if err != nil {
		d.logger.Warn("ir: cache write failed, profile recomputed on next run", slog.Any("err", err))
	}
}
