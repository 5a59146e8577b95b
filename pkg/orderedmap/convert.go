// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package orderedmap

import (
	"sort"
)

// FromStringMap produces a Map with keys sorted lexically, so that converting
// native Go maps (e.g. decoded TOML or YAML) yields deterministic key order.
func FromStringMap[V any](m map[string]V) *Map[string, V] {
	result := NewMap[string, V]()
	for _, key := range SortedKeys(m) {
		result.Set(key, m[key])
	}
	return result
}

// SortedKeys returns keys of a native Go map sorted lexically.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
