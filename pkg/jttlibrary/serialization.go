// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package jttlibrary

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"carvel.dev/jtt/pkg/orderedmap"
	"carvel.dev/jtt/pkg/value"
	"gopkg.in/yaml.v3"
)

var (
	// SerializationAPI contains JSON and YAML conversion functions and filters
	SerializationAPI = Library{
		Globals: map[string]value.Value{
			"tojson":   NewFunc("tojson", serializationModule{}.ToJSONFunc),
			"fromjson": NewFunc("fromjson", serializationModule{}.FromJSON),
			"toyaml":   NewFunc("toyaml", serializationModule{}.ToYAML),
			"fromyaml": NewFunc("fromyaml", serializationModule{}.FromYAML),
		},
		Filters: map[string]value.Value{
			"tojson":   NewFunc("tojson", serializationModule{}.ToJSONFilter),
			"fromjson": NewFunc("fromjson", serializationModule{}.FromJSON),
			"toyaml":   NewFunc("toyaml", serializationModule{}.ToYAML),
			"fromyaml": NewFunc("fromyaml", serializationModule{}.FromYAML),
		},
		Tests: map[string]value.Value{},
	}
)

type serializationModule struct{}

// ToJSONFunc renders the value as compact JSON. Undefined values produce
// the default (or none).
func (b serializationModule) ToJSONFunc(_ value.State, args []value.Value, kwargs *value.Kwargs) (value.Value, error) {
	if err := expectArgs(args, 1, 3); err != nil {
		return value.Undefined, err
	}
	val := args[0]
	def := optionalArg(args, kwargs, 1, "default", value.None)
	sortKeys := boolArg(args, kwargs, 2, "sort_keys", false)

	if val.IsUndefined() {
		return def, nil
	}
	bs, err := encodeJSON(val, 0, sortKeys, false)
	if err != nil {
		return value.Undefined, err
	}
	return value.FromString(string(bs)), nil
}

// ToJSONFilter renders the value as JSON safe to embed in HTML and in
// single quoted attributes.
func (b serializationModule) ToJSONFilter(_ value.State, args []value.Value, kwargs *value.Kwargs) (value.Value, error) {
	if err := expectArgs(args, 1, 2); err != nil {
		return value.Undefined, err
	}
	indent, err := jsonIndent(optionalArg(args, kwargs, 1, "indent", value.None))
	if err != nil {
		return value.Undefined, err
	}
	bs, err := encodeJSON(args[0], indent, false, true)
	if err != nil {
		return value.Undefined, err
	}
	return value.FromSafeString(strings.ReplaceAll(string(bs), "'", `\u0027`)), nil
}

func jsonIndent(val value.Value) (int, error) {
	if val.IsNone() {
		return 0, nil
	}
	if b, ok := val.AsBool(); ok {
		if b {
			return 2, nil
		}
		return 0, nil
	}
	indent, err := value.IntArg("indent", val)
	if err != nil {
		return 0, err
	}
	if indent < 0 || indent > 8 {
		// mitigate https://cwe.mitre.org/data/definitions/409.html
		return 0, fmt.Errorf("indent value must be between 0 and 8")
	}
	return int(indent), nil
}

func encodeJSON(val value.Value, indent int, sortKeys, escapeHTML bool) ([]byte, error) {
	var goVal interface{}
	var err error
	if sortKeys {
		goVal, err = value.ToUnorderedGo(val)
	} else {
		goVal, err = value.ToGo(val)
	}
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(escapeHTML)
	if indent > 0 {
		enc.SetIndent("", strings.Repeat(" ", indent))
	}
	if err := enc.Encode(goVal); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// FromJSON parses JSON into maps, sequences and scalars keeping key order.
func (b serializationModule) FromJSON(_ value.State, args []value.Value, kwargs *value.Kwargs) (value.Value, error) {
	if err := expectArgs(args, 1, 2); err != nil {
		return value.Undefined, err
	}
	encoded, err := value.StringArg("value", args[0])
	if err != nil {
		return value.Undefined, err
	}
	def, hasDef := value.ArgOrKwarg(args, kwargs, 1, "default")

	if !json.Valid([]byte(encoded)) {
		if hasDef {
			return def, nil
		}
		return value.Undefined, fmt.Errorf("failed to parse JSON: invalid syntax")
	}
	// JSON is a subset of YAML and the YAML node tree retains key order.
	val, err := DecodeYAML(encoded)
	if err != nil {
		if hasDef {
			return def, nil
		}
		return value.Undefined, fmt.Errorf("failed to parse JSON: %s", err)
	}
	return val, nil
}

// ToYAML renders the value as a YAML document.
func (b serializationModule) ToYAML(_ value.State, args []value.Value, kwargs *value.Kwargs) (value.Value, error) {
	if err := expectArgs(args, 1, 3); err != nil {
		return value.Undefined, err
	}
	val := args[0]
	def := optionalArg(args, kwargs, 1, "default", value.None)
	sortKeys := boolArg(args, kwargs, 2, "sort_keys", false)

	if val.IsUndefined() || val.IsNone() {
		return def, nil
	}

	node, err := yamlNodeFromValue(val, sortKeys)
	if err != nil {
		return value.Undefined, err
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(node); err != nil {
		return value.Undefined, err
	}
	if err := enc.Close(); err != nil {
		return value.Undefined, err
	}
	return value.FromString(buf.String()), nil
}

// FromYAML parses a YAML document into maps, sequences and scalars.
func (b serializationModule) FromYAML(_ value.State, args []value.Value, kwargs *value.Kwargs) (value.Value, error) {
	if err := expectArgs(args, 1, 2); err != nil {
		return value.Undefined, err
	}
	encoded, err := value.StringArg("value", args[0])
	if err != nil {
		return value.Undefined, err
	}
	val, err := DecodeYAML(encoded)
	if err != nil {
		if def, found := value.ArgOrKwarg(args, kwargs, 1, "default"); found {
			return def, nil
		}
		return value.Undefined, fmt.Errorf("failed to parse YAML: %s", err)
	}
	return val, nil
}

// DecodeYAML parses the first document of encoded keeping key order.
func DecodeYAML(encoded string) (value.Value, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(encoded), &doc); err != nil {
		return value.Undefined, err
	}
	if doc.Kind == 0 {
		// empty document
		return value.None, nil
	}
	return valueFromYAMLNode(&doc)
}

func valueFromYAMLNode(node *yaml.Node) (value.Value, error) {
	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return value.None, nil
		}
		return valueFromYAMLNode(node.Content[0])

	case yaml.AliasNode:
		return valueFromYAMLNode(node.Alias)

	case yaml.SequenceNode:
		items := make([]value.Value, 0, len(node.Content))
		for _, child := range node.Content {
			item, err := valueFromYAMLNode(child)
			if err != nil {
				return value.Undefined, err
			}
			items = append(items, item)
		}
		return value.FromSlice(items), nil

	case yaml.MappingNode:
		m := value.NewMap()
		for i := 0; i+1 < len(node.Content); i += 2 {
			key, err := valueFromYAMLNode(node.Content[i])
			if err != nil {
				return value.Undefined, err
			}
			val, err := valueFromYAMLNode(node.Content[i+1])
			if err != nil {
				return value.Undefined, err
			}
			m.Set(key, val)
		}
		return value.FromMap(m), nil

	case yaml.ScalarNode:
		var scalar interface{}
		if err := node.Decode(&scalar); err != nil {
			return value.Undefined, err
		}
		if tag := node.ShortTag(); tag == "!!int" || tag == "!!float" {
			// yaml falls back to float for integers beyond 64 bits
			if wide, ok := new(big.Int).SetString(node.Value, 10); ok {
				if val, err := value.FromBigInt(wide); err == nil {
					return val, nil
				}
			}
		}
		return value.FromGo(scalar), nil

	default:
		return value.Undefined, fmt.Errorf("unsupported YAML node kind %d", node.Kind)
	}
}

func yamlNodeFromValue(val value.Value, sortKeys bool) (*yaml.Node, error) {
	var goVal interface{}
	var err error
	if sortKeys {
		goVal, err = value.ToUnorderedGo(val)
	} else {
		goVal, err = value.ToGo(val)
	}
	if err != nil {
		return nil, err
	}
	return yamlNodeFromGo(goVal)
}

func yamlNodeFromGo(val interface{}) (*yaml.Node, error) {
	switch typed := val.(type) {
	case *orderedmap.Map[string, interface{}]:
		node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		var iterErr error
		typed.Iterate(func(k string, v interface{}) {
			if iterErr != nil {
				return
			}
			child, err := yamlNodeFromGo(v)
			if err != nil {
				iterErr = err
				return
			}
			node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k}, child)
		})
		return node, iterErr

	case []interface{}:
		node := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range typed {
			child, err := yamlNodeFromGo(item)
			if err != nil {
				return nil, err
			}
			node.Content = append(node.Content, child)
		}
		return node, nil

	case *big.Int:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: typed.String()}, nil

	default:
		node := &yaml.Node{}
		if err := node.Encode(typed); err != nil {
			return nil, err
		}
		return node, nil
	}
}
