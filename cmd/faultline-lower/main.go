// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command faultline-lower stands in for the external compiler
// internal/ir/lower.Driver shells out to. Given -opt <level> and a single
// Go source file, it loads the package that file belongs to, builds its
// SSA form, and writes one textual-IR function section per function
// defined in that file to stdout, in the format internal/ir/irtext.Parse
// reads back. Any arguments after the source file are accepted and
// ignored: internal/ir/lower.Driver forwards its caller's passthrough
// compiler flags there verbatim, and this lowering pass has no include
// paths or macro definitions of its own to apply them to.
package main

import (
	"flag"
	"fmt"
	"os"
)

func main() {
	optLevel := flag.String("opt", "0", "optimization level; \"0\" keeps every local variable addressable, anything else lifts non-escaping locals out of alloca form")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "faultline-lower: expected a source file argument")
		os.Exit(2)
	}
	source := flag.Arg(0)

	if err := lowerFile(os.Stdout, source, *optLevel); err != nil {
		fmt.Fprintf(os.Stderr, "faultline-lower: %v\n", err)
		os.Exit(1)
	}
}
