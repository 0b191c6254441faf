// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config loads faultline's YAML configuration and, optionally,
// watches the resolved file for changes so a long-running invocation picks
// up edits without a restart.
package config

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"github.com/faultline/faultline/internal/core"
)

// Watcher holds the current configuration and swaps it atomically whenever
// the backing file changes on disk. A zero-value Watcher is not usable;
// construct one with Load.
type Watcher struct {
	path    string
	current atomic.Pointer[core.Config]
	fsw     *fsnotify.Watcher
}

// Load reads path (or defaults, if path is empty) and returns a Watcher
// holding the initial configuration. The caller must call Close when done.
func Load(path string) (*Watcher, error) {
	cfg, err := core.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("config: initial load: %w", err)
	}

	w := &Watcher{path: path}
	w.current.Store(&cfg)
	return w, nil
}

// Current returns the most recently loaded configuration. Safe to call
// concurrently with a reload triggered by the watch goroutine.
func (w *Watcher) Current() core.Config {
	return *w.current.Load()
}

// Watch starts watching the config file for writes, reloading and swapping
// Current() on each one. Reload failures are logged and do not affect the
// config already in flight for an in-progress analysis run. No-op if path
// is empty (nothing to watch).
func (w *Watcher) Watch() error {
	if w.path == "" {
		return nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: creating watcher: %w", err)
	}
	if err := fsw.Add(w.path); err != nil {
		fsw.Close()
		return fmt.Errorf("config: watching %q: %w", w.path, err)
	}
	w.fsw = fsw

	go w.loop()
	return nil
}

func (w *Watcher) loop() {
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := core.LoadConfig(w.path)
			if err != nil {
				slog.Warn("config: reload failed, keeping previous config",
					slog.String("path", w.path), slog.Any("err", err))
				continue
			}
			w.current.Store(&cfg)
			slog.Info("config: reloaded", slog.String("path", w.path))
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Warn("config: watch error", slog.Any("err", err))
		}
	}
}

// Close stops the watch goroutine, if one was started.
func (w *Watcher) Close() error {
	if w.fsw == nil {
		return nil
	}
	return w.fsw.Close()
}
