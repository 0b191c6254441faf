// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package guard provides a scope-guard wrapper around sync.Locker,
// modeled after C++'s std::lock_guard: construction acquires the lock,
// Release lets the caller give it up explicitly without waiting for defer.
package guard

import "sync"

// Guard holds a lock acquired at construction time until Release is called.
type Guard struct {
	l        sync.Locker
	released bool
}

// New locks l and returns a Guard holding it.
func New(l sync.Locker) *Guard {
	l.Lock()
	return &Guard{l: l}
}

// Release unlocks the held lock. Calling Release more than once is a no-op.
func (g *Guard) Release() {
	if g.released {
		return
	}
	g.released = true
	g.l.Unlock()
}
