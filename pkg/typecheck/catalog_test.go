// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package typecheck_test

import (
	"testing"

	"carvel.dev/jtt/pkg/typecheck"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noWarn(t *testing.T) func(string) {
	return func(msg string) { t.Errorf("unexpected warning: %s", msg) }
}

func TestBuiltinsSections(t *testing.T) {
	reg, err := typecheck.Builtins()
	require.NoError(t, err)

	_, found := reg.Lookup("ref")
	assert.True(t, found)
	_, found = reg.LookupFilter("upper")
	assert.True(t, found)
	_, found = reg.Lookup("upper")
	assert.False(t, found)

	assert.Contains(t, reg.Names(), "adapter.dispatch")
	assert.Contains(t, reg.FilterNames(), "selectattr")
}

func TestBuiltinClassesParse(t *testing.T) {
	for _, name := range typecheck.ClassNames() {
		class, found := typecheck.LookupClass(name)
		require.True(t, found, name)

		attrs := class.(typecheck.Class).ClassType.(interface{ Attributes() []string })
		for _, attr := range attrs.Attributes() {
			_, err := typecheck.GetAttribute(class, attr, noWarn(t))
			assert.NoError(t, err, "%s.%s", name, attr)
		}
	}
}

func TestCatalogCallsAndAttributes(t *testing.T) {
	reg, err := typecheck.Builtins()
	require.NoError(t, err)

	ref, _ := reg.Lookup("ref")
	result, err := typecheck.Call(ref, []typecheck.Type{typecheck.StringLit("orders")}, nil, noWarn(t))
	require.NoError(t, err)
	assert.Equal(t, "relation", result.String())

	name, err := typecheck.GetAttribute(result, "identifier", noWarn(t))
	require.NoError(t, err)
	assert.Equal(t, typecheck.String{}, name)

	_, err = typecheck.GetAttribute(result, "identifer", noWarn(t))
	assert.EqualError(t, err, "relation.identifer is not supported")

	target, _ := reg.Lookup("target")
	var warnings []string
	result, err = typecheck.GetAttribute(target, "unknown_thing", func(msg string) { warnings = append(warnings, msg) })
	require.NoError(t, err)
	assert.Equal(t, typecheck.SoftAny, result)
	assert.Equal(t, []string{"target.unknown_thing does not exist"}, warnings)
}

func TestLoadCatalogInheritance(t *testing.T) {
	reg, err := typecheck.LoadCatalog([]byte(`
kind: globals
definitions:
- object:
    id: my_relation
    inherit_from: relation
    attributes:
    - {name: extra, type: integer}
- alias: {id: my_relations, type: "list[my_relation]"}
`), nil)
	require.NoError(t, err)

	mine, found := reg.Lookup("my_relation")
	require.True(t, found)

	extra, err := typecheck.GetAttribute(mine, "extra", noWarn(t))
	require.NoError(t, err)
	assert.Equal(t, typecheck.Integer{}, extra)

	schema, err := typecheck.GetAttribute(mine, "schema", noWarn(t))
	require.NoError(t, err)
	assert.Equal(t, typecheck.String{}, schema)

	_, err = typecheck.GetAttribute(mine, "nope", noWarn(t))
	assert.EqualError(t, err, "Failed to get my_relation.nope from relation: relation.nope is not supported")

	relation, _ := typecheck.LookupClass("relation")
	assert.True(t, typecheck.IsSubtype(mine, relation))

	list, found := reg.Lookup("my_relations")
	require.True(t, found)
	assert.Equal(t, "list[my_relation]", list.String())
}

func TestLoadCatalogErrors(t *testing.T) {
	_, err := typecheck.LoadCatalog([]byte("kind: macros\ndefinitions: []\n"), nil)
	assert.EqualError(t, err, "Expected type catalog document 0 kind to be 'globals' or 'filters', but was 'macros'")

	_, err = typecheck.LoadCatalog([]byte("kind: globals\ndefinitions:\n- {}\n"), nil)
	assert.EqualError(t, err, "Expected type catalog definition 0 of document 0 to be either object or alias")

	_, err = typecheck.LoadCatalog([]byte("kind: globals\ndefinitions:\n- alias: {id: x, type: \"list[\"}\n"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Type catalog alias 'x': parse type 'list[' failed:")
}

func TestRegistryChild(t *testing.T) {
	base, err := typecheck.Builtins()
	require.NoError(t, err)

	child := base.Child()
	child.Define("my_macro", typecheck.Function{Fn: typecheck.UndefinedFunction{FnName: "my_macro"}})

	_, found := child.Lookup("my_macro")
	assert.True(t, found)
	_, found = child.Lookup("ref")
	assert.True(t, found)
	_, found = base.Lookup("my_macro")
	assert.False(t, found)
}
