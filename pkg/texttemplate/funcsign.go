// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package texttemplate

import (
	"strings"
)

const funcsignMarker = "-- funcsign: "

// FuncsignOf extracts the signature of a `-- funcsign:` comment found in
// template data. Only the first line following the marker is used.
func FuncsignOf(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	idx := strings.Index(trimmed, funcsignMarker)
	if idx < 0 {
		return "", false
	}
	sig := trimmed[idx+len(funcsignMarker):]
	if nl := strings.Index(sig, "\n"); nl >= 0 {
		sig = sig[:nl]
	}
	return strings.TrimSpace(sig), true
}
