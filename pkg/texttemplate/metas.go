// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package texttemplate

// tagMarker is the whitespace control marker directly following an opening
// delimiter (`{%-`, `{{-`, `{#-` or `{%+`).
type tagMarker struct {
	// trimPreceding indicates whether trailing whitespace of the preceding
	// template data should be removed (because the `-` marker was present)
	trimPreceding bool
	len           int
}

func tagMarkerAt(s string, tagStart int) tagMarker {
	if tagStart+2 >= len(s) {
		return tagMarker{}
	}
	switch s[tagStart+2] {
	case '-':
		return tagMarker{trimPreceding: true, len: 1}
	case '+':
		return tagMarker{len: 1}
	}
	return tagMarker{}
}
