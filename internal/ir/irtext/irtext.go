// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package irtext reads and writes the simplified textual IR that
// cmd/faultline-lower emits in place of a full LLVM module: one instruction
// per line, grouped into per-function, per-block sections. The parser here
// reimplements the reference analyzer's per-instruction dispatch (alloca
// sizing, atomic ordering capture, direct/indirect call classification, and
// a back-edge loop heuristic) over that text instead of walking LLVM IR.
package irtext

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/faultline/faultline/internal/ir"
)

// Line tokens. Each non-blank, non-comment line starts with one of these.
const (
	tokFunc    = "FUNC"
	tokBlock   = "BB"
	tokAlloca  = "ALLOCA"
	tokAtomic  = "ATOMIC"
	tokFence   = "FENCE"
	tokCall    = "CALL"
	tokCallInd = "CALLIND"
	tokEndFunc = "ENDFUNC"
)

// heapAllocCallees lists the lowering compiler's runtime-allocation entry
// points, the Go-binding counterpart of the reference analyzer's malloc/
// calloc/operator-new recognition.
var heapAllocCallees = map[string]bool{
	"runtime.newobject":  true,
	"runtime.newarray":   true,
	"runtime.makeslice":  true,
	"runtime.makeslice64": true,
	"runtime.growslice":  true,
	"runtime.makemap":    true,
	"runtime.mapassign":  true,
	"runtime.makechan":   true,
	"runtime.mallocgc":   true,
}

func isHeapAllocCallee(name string) bool {
	return heapAllocCallees[name]
}

// lockCallees lists the qualified method names faultline-lower emits for a
// sync.Mutex/sync.RWMutex lock acquisition, matching the receiver-type
// recognition internal/producer/gosrc's isLockMethod performs at the AST
// layer so the same call is "a lock" on both sides of the refiner.
var lockCallees = map[string]bool{
	"sync.Mutex.Lock":       true,
	"sync.Mutex.TryLock":    true,
	"sync.RWMutex.Lock":     true,
	"sync.RWMutex.TryLock":  true,
	"sync.RWMutex.RLock":    true,
	"sync.RWMutex.TryRLock": true,
}

func isLockCallee(name string) bool {
	return lockCallees[name]
}

// Parse reads the textual IR produced for one lowering-compiler invocation
// (which may cover several source functions) and returns a profile per
// function, keyed by mangled name.
func Parse(r io.Reader) (ir.ProfileMap, error) {
	profiles := make(ir.ProfileMap)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var cur *ir.FunctionProfile
	var bbLoop bool
	var bbSeen int
	loopBlocks := map[int]bool{}
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		tok := fields[0]

		switch tok {
		case tokFunc:
			if cur != nil {
				return nil, fmt.Errorf("irtext: line %d: FUNC inside open function %q", lineNo, cur.MangledName)
			}
			names := strings.SplitN(strings.TrimPrefix(line, tokFunc+" "), "\t", 2)
			p := &ir.FunctionProfile{MangledName: names[0]}
			if len(names) > 1 {
				p.DemangledName = names[1]
			} else {
				p.DemangledName = names[0]
			}
			cur = p
			bbSeen = 0
			loopBlocks = map[int]bool{}

		case tokBlock:
			if cur == nil {
				return nil, fmt.Errorf("irtext: line %d: BB outside function", lineNo)
			}
			bbSeen++
			kv := parseKV(fields[1:])
			bbLoop = kv["LOOP"] == "1"
			if bbLoop {
				loopBlocks[bbSeen] = true
			}

		case tokAlloca:
			if cur == nil {
				return nil, fmt.Errorf("irtext: line %d: ALLOCA outside function", lineNo)
			}
			kv := parseKV(fields[1:])
			size, _ := strconv.ParseInt(kv["size"], 10, 64)
			info := ir.AllocaInfo{
				Name:      kv["name"],
				SizeBytes: size,
				IsArray:   kv["array"] == "1",
			}
			cur.TotalAllocaBytes += info.SizeBytes
			cur.Allocas = append(cur.Allocas, info)

		case tokAtomic:
			if cur == nil {
				return nil, fmt.Errorf("irtext: line %d: ATOMIC outside function", lineNo)
			}
			if len(fields) < 2 {
				return nil, fmt.Errorf("irtext: line %d: ATOMIC missing op", lineNo)
			}
			op, ok := parseAtomicOp(fields[1])
			if !ok {
				return nil, fmt.Errorf("irtext: line %d: unknown atomic op %q", lineNo, fields[1])
			}
			kv := parseKV(fields[2:])
			ordering := kv["ordering"]
			info := ir.AtomicInfo{
				Op:         op,
				Ordering:   ordering,
				IsInLoop:   kv["loop"] == "1" || bbLoop,
				SourceFile: kv["file"],
			}
			if ln, err := strconv.Atoi(kv["line"]); err == nil {
				info.SourceLine = ln
			}
			cur.Atomics = append(cur.Atomics, info)
			if ordering == "seq_cst" {
				cur.SeqCstCount++
			}

		case tokFence:
			if cur == nil {
				return nil, fmt.Errorf("irtext: line %d: FENCE outside function", lineNo)
			}
			kv := parseKV(fields[1:])
			ordering := kv["ordering"]
			info := ir.AtomicInfo{
				Op:         ir.Fence,
				Ordering:   ordering,
				IsInLoop:   kv["loop"] == "1" || bbLoop,
				SourceFile: kv["file"],
			}
			if ln, err := strconv.Atoi(kv["line"]); err == nil {
				info.SourceLine = ln
			}
			cur.Atomics = append(cur.Atomics, info)
			cur.FenceCount++
			if ordering == "seq_cst" {
				cur.SeqCstCount++
			}

		case tokCall:
			if cur == nil {
				return nil, fmt.Errorf("irtext: line %d: CALL outside function", lineNo)
			}
			kv := parseKV(fields[1:])
			cur.DirectCallCount++
			site := ir.CallSiteInfo{
				CalleeName: kv["callee"],
				IsInLoop:   kv["loop"] == "1" || bbLoop,
				SourceFile: kv["file"],
			}
			if ln, err := strconv.Atoi(kv["line"]); err == nil {
				site.SourceLine = ln
			}
			if isHeapAllocCallee(kv["callee"]) {
				cur.HeapAllocCalls = append(cur.HeapAllocCalls, site)
			}
			if isLockCallee(kv["callee"]) {
				cur.LockCalls = append(cur.LockCalls, site)
			}

		case tokCallInd:
			if cur == nil {
				return nil, fmt.Errorf("irtext: line %d: CALLIND outside function", lineNo)
			}
			kv := parseKV(fields[1:])
			cur.IndirectCallCount++
			// The reference analyzer files indirect calls into the same
			// heap-alloc-calls list it uses for allocator calls; kept here
			// for fidelity even though the field name only fits half its
			// contents.
			cur.HeapAllocCalls = append(cur.HeapAllocCalls, ir.CallSiteInfo{
				IsIndirect: true,
				IsInLoop:   kv["loop"] == "1" || bbLoop,
			})

		case tokEndFunc:
			if cur == nil {
				return nil, fmt.Errorf("irtext: line %d: ENDFUNC without FUNC", lineNo)
			}
			cur.BasicBlockCount = bbSeen
			cur.LoopCount = len(loopBlocks)
			profiles[cur.MangledName] = cur
			cur = nil

		default:
			return nil, fmt.Errorf("irtext: line %d: unrecognized token %q", lineNo, tok)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("irtext: scanning: %w", err)
	}
	if cur != nil {
		return nil, fmt.Errorf("irtext: function %q missing ENDFUNC", cur.MangledName)
	}
	return profiles, nil
}

func parseAtomicOp(s string) (ir.AtomicOpKind, bool) {
	switch s {
	case "load":
		return ir.AtomicLoad, true
	case "store":
		return ir.AtomicStore, true
	case "rmw":
		return ir.AtomicRMW, true
	case "cmpxchg":
		return ir.AtomicCmpXchg, true
	default:
		return 0, false
	}
}

// parseKV parses a run of key=value tokens, as emitted by the lowering
// compiler for optional instruction attributes.
func parseKV(fields []string) map[string]string {
	kv := make(map[string]string, len(fields))
	for _, f := range fields {
		parts := strings.SplitN(f, "=", 2)
		if len(parts) != 2 {
			continue
		}
		kv[parts[0]] = parts[1]
	}
	return kv
}
