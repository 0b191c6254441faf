// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package core

import "github.com/google/uuid"

// CompilerInfo identifies one lowering-compiler invocation target.
type CompilerInfo struct {
	Path    string
	Version string
}

// ExecutionMetadata accompanies a run's diagnostics into output formatters;
// the analysis core itself never reads it.
type ExecutionMetadata struct {
	RunID           string
	ToolVersion     string
	ConfigPath      string
	IROptLevel      string
	IREnabled       bool
	TimestampEpochS int64
	SourceFiles     []string
	Compilers       []CompilerInfo
}

// NewExecutionMetadata stamps a fresh run id. Timestamp is supplied by the
// caller (cmd/faultline), not computed here, so the core stays a pure
// function of its inputs.
func NewExecutionMetadata(toolVersion, configPath, irOptLevel string, irEnabled bool, timestampEpochS int64) ExecutionMetadata {
	return ExecutionMetadata{
		RunID:           uuid.NewString(),
		ToolVersion:     toolVersion,
		ConfigPath:      configPath,
		IROptLevel:      irOptLevel,
		IREnabled:       irEnabled,
		TimestampEpochS: timestampEpochS,
	}
}
