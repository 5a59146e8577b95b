// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package workspace

import (
	"fmt"
	"strings"

	"carvel.dev/jtt/pkg/files"
	"carvel.dev/jtt/pkg/jttlibrary"
	jtttoml "carvel.dev/jtt/pkg/jttlibraryext/toml"
	"carvel.dev/jtt/pkg/value"
)

// DataValues is the render context assembled from data files and
// key=value overrides. Later sources win; nested maps are merged.
type DataValues struct {
	values *value.Map
}

func NewEmptyDataValues() *DataValues {
	return &DataValues{values: value.NewMap()}
}

// Map returns the merged values.
func (dv *DataValues) Map() *value.Map { return dv.values }

// AddFiles merges YAML, JSON and TOML documents. Each document must be
// a map (or empty).
func (dv *DataValues) AddFiles(dataFiles []*files.File) error {
	for _, file := range dataFiles {
		val, err := decodeDataFile(file)
		if err != nil {
			return fmt.Errorf("Loading data values from %s: %w", file.Description(), err)
		}
		if val.IsNone() {
			continue
		}
		m, ok := val.AsMap()
		if !ok {
			return fmt.Errorf("Loading data values from %s: expected a map at the top level, got %s",
				file.Description(), val.Kind())
		}
		dv.Merge(m)
	}
	return nil
}

func decodeDataFile(file *files.File) (value.Value, error) {
	data, err := file.Bytes()
	if err != nil {
		return value.Undefined, err
	}
	if file.Ext() == ".toml" {
		return jtttoml.DecodeTOML(string(data))
	}
	// JSON is a subset of YAML
	return jttlibrary.DecodeYAML(string(data))
}

// Merge deep merges m into the values.
func (dv *DataValues) Merge(m *value.Map) {
	mergeMaps(dv.values, m)
}

// Set stores val under a dotted key path (e.g. `all.key1.subkey`),
// creating intermediate maps.
func (dv *DataValues) Set(dottedKey string, val value.Value) error {
	pieces := strings.Split(dottedKey, ".")
	currMap := dv.values
	for _, piece := range pieces[:len(pieces)-1] {
		sub, found := currMap.Get(value.FromString(piece))
		if !found {
			newMap := value.NewMap()
			currMap.SetString(piece, value.FromMap(newMap))
			currMap = newMap
			continue
		}
		typedSub, ok := sub.AsMap()
		if !ok {
			return fmt.Errorf("Expected key '%s' to not conflict with other data values at piece '%s'", dottedKey, piece)
		}
		currMap = typedSub
	}
	currMap.SetString(pieces[len(pieces)-1], val)
	return nil
}

func mergeMaps(dst, src *value.Map) {
	src.Iterate(func(k, v value.Value) {
		existing, found := dst.Get(k)
		srcMap, srcIsMap := v.AsMap()
		if found && srcIsMap {
			if dstMap, ok := existing.AsMap(); ok {
				// copy so that merges do not alias sources
				merged := dstMap.Copy()
				mergeMaps(merged, srcMap)
				dst.Set(k, value.FromMap(merged))
				return
			}
		}
		dst.Set(k, v)
	})
}
