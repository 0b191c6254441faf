// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package gosrc

import "go/types"

// typeRef wraps a go/types.Type as the opaque core.TypeRef handle. The core
// never looks inside it; only this producer's own code ever type-asserts
// it back to typeRef.
type typeRef struct {
	t types.Type
}

func (r typeRef) String() string {
	if r.t == nil {
		return "<unknown>"
	}
	return types.TypeString(r.t, types.RelativeTo(nil))
}
