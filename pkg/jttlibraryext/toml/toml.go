// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package toml

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"carvel.dev/jtt/pkg/jttlibrary"
	"carvel.dev/jtt/pkg/value"
	"github.com/BurntSushi/toml"
)

var (
	// TOMLAPI contains the totoml and fromtoml functions and filters
	TOMLAPI = jttlibrary.Library{
		Globals: map[string]value.Value{
			"totoml":   jttlibrary.NewFunc("totoml", tomlModule{}.Encode),
			"fromtoml": jttlibrary.NewFunc("fromtoml", tomlModule{}.Decode),
		},
		Filters: map[string]value.Value{
			"totoml":   jttlibrary.NewFunc("totoml", tomlModule{}.Encode),
			"fromtoml": jttlibrary.NewFunc("fromtoml", tomlModule{}.Decode),
		},
		Tests: map[string]value.Value{},
	}
)

func init() {
	jttlibrary.RegisterExt(TOMLAPI)
}

type tomlModule struct{}

// Encode renders the provided map into a TOML formatted string
func (b tomlModule) Encode(_ value.State, args []value.Value, kwargs *value.Kwargs) (value.Value, error) {
	if err := value.CheckArgCount("totoml", args, 1, 1); err != nil {
		return value.Undefined, err
	}
	if args[0].Kind() != value.KindMap {
		return value.Undefined, fmt.Errorf("expected a map, got %s", args[0].Kind())
	}

	val, err := value.ToUnorderedGo(args[0])
	if err != nil {
		return value.Undefined, err
	}

	var indent int64
	if indentVal, found := kwargs.Get("indent"); found {
		indent, err = value.IntArg("indent", indentVal)
		if err != nil {
			return value.Undefined, err
		}
	}

	if indent < 0 || indent > 8 {
		// mitigate https://cwe.mitre.org/data/definitions/409.html
		return value.Undefined, fmt.Errorf("indent value must be between 0 and 8")
	}

	var buffer bytes.Buffer
	encoder := toml.NewEncoder(&buffer)
	if indent > 0 {
		encoder.Indent = strings.Repeat(" ", int(indent))
	}

	err = encoder.Encode(val)
	if err != nil {
		return value.Undefined, err
	}

	return value.FromString(buffer.String()), nil
}

// Decode parses the provided input from TOML format into maps, sequences
// and scalars. Keys keep the order in which they appear in the document.
func (b tomlModule) Decode(_ value.State, args []value.Value, _ *value.Kwargs) (value.Value, error) {
	if err := value.CheckArgCount("fromtoml", args, 1, 1); err != nil {
		return value.Undefined, err
	}

	valEncoded, err := value.StringArg("value", args[0])
	if err != nil {
		return value.Undefined, err
	}

	return DecodeTOML(valEncoded)
}

// DecodeTOML parses a TOML document into a map keeping document order.
func DecodeTOML(encoded string) (value.Value, error) {
	var valDecoded map[string]interface{}

	md, err := toml.Decode(encoded, &valDecoded)
	if err != nil {
		return value.Undefined, err
	}

	return keyOrder(md).convert(valDecoded, nil), nil
}

// documentOrder maps dotted key paths (array indexes omitted) to the
// position of their first appearance.
type documentOrder map[string]int

func keyOrder(md toml.MetaData) documentOrder {
	order := documentOrder{}
	for i, key := range md.Keys() {
		path := strings.Join(key, "\x00")
		if _, found := order[path]; !found {
			order[path] = i
		}
	}
	return order
}

func (o documentOrder) position(path []string) int {
	if pos, found := o[strings.Join(path, "\x00")]; found {
		return pos
	}
	return math.MaxInt
}

func (o documentOrder) convert(val interface{}, path []string) value.Value {
	switch typed := val.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(typed))
		for k := range typed {
			keys = append(keys, k)
		}
		sort.SliceStable(keys, func(i, j int) bool {
			pi, pj := o.position(append(path, keys[i])), o.position(append(path, keys[j]))
			if pi != pj {
				return pi < pj
			}
			return keys[i] < keys[j]
		})
		result := value.NewMap()
		for _, k := range keys {
			childPath := append(append([]string(nil), path...), k)
			result.SetString(k, o.convert(typed[k], childPath))
		}
		return value.FromMap(result)

	case []map[string]interface{}:
		items := make([]value.Value, len(typed))
		for i, item := range typed {
			items[i] = o.convert(item, path)
		}
		return value.FromSlice(items)

	case []interface{}:
		items := make([]value.Value, len(typed))
		for i, item := range typed {
			items[i] = o.convert(item, path)
		}
		return value.FromSlice(items)

	case time.Time:
		return value.FromGo(typed)

	case fmt.Stringer:
		// local dates and times
		return value.FromString(typed.String())

	default:
		return value.FromGo(typed)
	}
}
