// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package typecheck

import (
	"fmt"
	"sync"
)

// builtinClass is an object type with a closed attribute surface. Attribute
// types are written as type expressions and parsed on first use.
type builtinClass struct {
	name    string
	attrs   map[string]string
	parents []string
	call    string
	index   string
	elem    string

	once   sync.Once
	parsed map[string]Type
	err    error
}

var _ ClassType = &builtinClass{}
var _ Inheriting = &builtinClass{}

var builtinClasses = map[string]*builtinClass{}

func init() {
	for _, class := range []*builtinClass{
		{
			name: "relation",
			attrs: map[string]string{
				"name":                 "string",
				"database":             "string",
				"schema":               "string",
				"identifier":           "string",
				"type":                 "string",
				"is_table":             "bool",
				"is_view":              "bool",
				"is_materialized_view": "bool",
				"is_cte":               "bool",
				"is_pointer":           "bool",
				"can_be_renamed":       "bool",
				"can_be_replaced":      "bool",
				"include":              "(database: optional[bool], schema: optional[bool], identifier: optional[bool]) -> relation",
				"quote":                "(database: optional[bool], schema: optional[bool], identifier: optional[bool]) -> relation",
				"incorporate":          "(path: optional[dict[string, any]], type: optional[string]) -> relation",
				"render":               "() -> string",
				"create":               "(database: optional[string], schema: optional[string], identifier: optional[string], type: optional[string]) -> relation",
				"without_identifier":   "() -> relation",
			},
		},
		{
			name: "adapter",
			attrs: map[string]string{
				"dispatch":                     "(macro_name: string, macro_namespace: optional[string]) -> any",
				"execute":                      "(sql: string, auto_begin: optional[bool], fetch: optional[bool], limit: optional[integer]) -> tuple[adapter_response, agate_table]",
				"get_relation":                 "(database: optional[string], schema: string, identifier: string) -> optional[relation]",
				"get_columns_in_relation":      "(relation: relation) -> list[column]",
				"get_column_schema_from_query": "(sql: string) -> list[column]",
				"list_relations":               "(schema: string) -> list[relation]",
				"drop_relation":                "(relation: relation) -> none",
				"truncate_relation":            "(relation: relation) -> none",
				"rename_relation":              "(from_relation: relation, to_relation: relation) -> none",
				"create_schema":                "(relation: relation) -> none",
				"quote":                        "(identifier: string) -> string",
				"commit":                       "() -> none",
				"type":                         "() -> string",
				"standardize_grants_dict":      "(grants_table: agate_table) -> dict[string, list[string]]",
			},
		},
		{
			name: "information_schema",
			attrs: map[string]string{
				"information_schema_view": "(view_name: string) -> string",
			},
			parents: []string{"relation"},
		},
		{
			name: "adapter_response",
			attrs: map[string]string{
				"_message":      "string",
				"code":          "string",
				"rows_affected": "integer",
			},
		},
		{
			name: "column",
			attrs: map[string]string{
				"name":              "string",
				"column":            "string",
				"quoted":            "string",
				"data_type":         "string",
				"dtype":             "string",
				"char_size":         "optional[integer]",
				"numeric_precision": "optional[integer]",
				"numeric_scale":     "optional[integer]",
				"is_string":         "() -> bool",
				"is_number":         "() -> bool",
				"is_integer":        "() -> bool",
				"is_float":          "() -> bool",
				"is_numeric":        "() -> bool",
				"string_size":       "() -> integer",
				"can_expand_to":     "(other_column: column) -> bool",
				"literal":           "(value: string) -> string",
			},
		},
		{
			name: "agate_table",
			attrs: map[string]string{
				"column_names": "list[string]",
				"column_types": "list[string]",
				"columns":      "list[agate_column]",
				"rows":         "list[agate_row]",
				"print_table":  "(max_rows: optional[integer], max_columns: optional[integer]) -> none",
				"select":       "(key: any) -> agate_table",
				"where":        "(test: any) -> agate_table",
				"limit":        "(count: integer) -> agate_table",
				"group_by":     "(key: string) -> any",
			},
			elem: "agate_row",
		},
		{
			name: "agate_row",
			attrs: map[string]string{
				"keys":   "() -> list[string]",
				"values": "() -> list[any]",
				"items":  "() -> list[tuple[string, any]]",
				"get":    "(key: any, default: optional[any]) -> any",
			},
			index: "any",
			elem:  "any",
		},
		{
			name: "agate_column",
			attrs: map[string]string{
				"name":      "string",
				"data_type": "string",
				"values":    "() -> list[any]",
			},
			elem: "any",
		},
		{
			name: "model",
			attrs: map[string]string{
				"name":               "string",
				"alias":              "string",
				"schema":             "string",
				"database":           "string",
				"unique_id":          "string",
				"resource_type":      "string",
				"package_name":       "string",
				"path":               "string",
				"original_file_path": "string",
				"language":           "string",
				"raw_code":           "string",
				"compiled_code":      "optional[string]",
				"config":             "config",
				"tags":               "list[string]",
				"fqn":                "list[string]",
				"meta":               "dict[string, any]",
				"columns":            "dict[string, column_info]",
				"refs":               "list[any]",
				"sources":            "list[list[string]]",
				"depends_on":         "struct{macros: list[string], nodes: list[string]}",
			},
		},
		{
			name: "column_info",
			attrs: map[string]string{
				"name":        "string",
				"description": "string",
				"data_type":   "optional[string]",
				"meta":        "dict[string, any]",
				"tags":        "list[string]",
				"quote":       "optional[bool]",
			},
		},
		{
			name: "config",
			attrs: map[string]string{
				"get":                   "(name: string, default: optional[any], validator: optional[any]) -> any",
				"require":               "(name: string, validator: optional[any]) -> any",
				"set":                   "(name: string, value: any) -> string",
				"persist_relation_docs": "() -> bool",
				"persist_column_docs":   "() -> bool",
				"model":                 "model",
			},
			call: "(...) -> string",
		},
		{
			name: "api",
			attrs: map[string]string{
				"Relation": "relation_api",
				"Column":   "column_api",
			},
		},
		{
			name: "relation_api",
			attrs: map[string]string{
				"create":            "(database: optional[string], schema: optional[string], identifier: optional[string], type: optional[string]) -> relation",
				"create_from":       "(config: any, node: any) -> relation",
				"get_relation_type": "string",
				"Table":             "string",
				"View":              "string",
				"CTE":               "string",
				"MaterializedView":  "string",
				"External":          "string",
				"scd_args":          "(primary_key: any, updated_at: string) -> list[string]",
			},
		},
		{
			name: "column_api",
			attrs: map[string]string{
				"create":           "(name: string, label_or_dtype: string) -> column",
				"from_description": "(name: string, raw_data_type: string) -> column",
				"string_type":      "(size: integer) -> string",
				"numeric_type":     "(dtype: string, precision: integer, scale: integer) -> string",
			},
		},
		{
			name: "loop",
			attrs: map[string]string{
				"index":     "integer",
				"index0":    "integer",
				"revindex":  "integer",
				"revindex0": "integer",
				"first":     "bool",
				"last":      "bool",
				"length":    "integer",
				"depth":     "integer",
				"depth0":    "integer",
				"previtem":  "any",
				"nextitem":  "any",
				"cycle":     "(...) -> any",
				"changed":   "(...) -> bool",
			},
			call: "(items: any) -> string",
		},
	} {
		builtinClasses[class.name] = class
	}
}

// LookupClass returns the built-in class type called name.
func LookupClass(name string) (Type, bool) {
	class, found := builtinClasses[name]
	if !found {
		return nil, false
	}
	return Class{class}, true
}

// ClassNames lists built-in class types.
func ClassNames() []string {
	return sortedNames(builtinClasses)
}

func (c *builtinClass) Name() string { return c.name }

func (c *builtinClass) parse() error {
	c.once.Do(func() {
		c.parsed = make(map[string]Type, len(c.attrs))
		for attr, src := range c.attrs {
			t, err := parseAttrType(c.name+"."+attr, src, nil)
			if err != nil {
				c.err = fmt.Errorf("[BUG] builtin class %s: %w", c.name, err)
				return
			}
			c.parsed[attr] = t
		}
	})
	return c.err
}

func (c *builtinClass) GetAttribute(name string) (Type, error) {
	if err := c.parse(); err != nil {
		return nil, err
	}
	if t, found := c.parsed[name]; found {
		return t, nil
	}
	for _, parent := range c.parents {
		if p, found := builtinClasses[parent]; found {
			if t, err := p.GetAttribute(name); err == nil {
				return t, nil
			}
		}
	}
	return nil, &UnknownAttributeError{Type: c.name, Name: name}
}

func (c *builtinClass) InheritsFrom(name string) bool {
	for _, parent := range c.parents {
		if parent == name {
			return true
		}
		if p, found := builtinClasses[parent]; found && p.InheritsFrom(name) {
			return true
		}
	}
	return false
}

// Attributes lists attribute names.
func (c *builtinClass) Attributes() []string { return sortedNames(c.attrs) }

func (c *builtinClass) Call(positional []Type, kwargs map[string]Type) (Type, error) {
	if c.call == "" {
		return nil, fmt.Errorf("%s is not callable", c.name)
	}
	t, err := parseAttrType(c.name, c.call, nil)
	if err != nil {
		return nil, err
	}
	return t.(Function).Fn.Resolve(positional, kwargs)
}

func (c *builtinClass) Subscript(index Type) (Type, error) {
	if c.index == "" {
		if lit, ok := index.(String); ok && lit.Known {
			return c.GetAttribute(lit.Literal)
		}
		return nil, imprecise("%s does not support subscript with %s", c.name, index)
	}
	return ParseType(c.index, nil)
}

// ElemType returns nil for classes that cannot be iterated.
func (c *builtinClass) ElemType() Type {
	if c.elem == "" {
		return nil
	}
	t, err := ParseType(c.elem, nil)
	if err != nil {
		return HardAny
	}
	return t
}
