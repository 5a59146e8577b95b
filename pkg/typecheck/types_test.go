// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package typecheck_test

import (
	"testing"

	"carvel.dev/jtt/pkg/typecheck"
	"carvel.dev/jtt/pkg/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnionAbsorbsSubtypes(t *testing.T) {
	assert.Equal(t, typecheck.String{}, typecheck.UnionOf(typecheck.StringLit("a"), typecheck.String{}))
	assert.Equal(t, typecheck.Float{}, typecheck.UnionOf(typecheck.Integer{}, typecheck.Float{}))

	lits := typecheck.UnionOf(typecheck.StringLit("b"), typecheck.StringLit("a"))
	assert.Equal(t, `string("a") | string("b")`, lits.String())
}

func TestUnionFlattensAndOrders(t *testing.T) {
	inner := typecheck.UnionOf(typecheck.None{}, typecheck.Integer{})
	u := typecheck.UnionOf(typecheck.String{}, inner, typecheck.Integer{})

	assert.Equal(t, "integer | none | string", u.String())
	require.IsType(t, typecheck.Union{}, u)
	assert.Len(t, u.(typecheck.Union).Members(), 3)
}

func TestUnionAnyCollapse(t *testing.T) {
	assert.Equal(t, typecheck.HardAny, typecheck.UnionOf(typecheck.Integer{}, typecheck.HardAny, typecheck.SoftAny))
	assert.Equal(t, typecheck.SoftAny, typecheck.UnionOf(typecheck.Integer{}, typecheck.SoftAny))
	assert.Equal(t, typecheck.HardAny, typecheck.UnionOf())
}

func TestSubtyping(t *testing.T) {
	relation, found := typecheck.LookupClass("relation")
	require.True(t, found)
	schema, found := typecheck.LookupClass("information_schema")
	require.True(t, found)

	cases := []struct {
		a, b     typecheck.Type
		expected bool
	}{
		{typecheck.IntegerLit(3), typecheck.Integer{}, true},
		{typecheck.Integer{}, typecheck.IntegerLit(3), false},
		{typecheck.Integer{}, typecheck.Float{}, true},
		{typecheck.Float{}, typecheck.Integer{}, false},
		{typecheck.List{Elem: typecheck.Integer{}}, typecheck.Iterable{Elem: typecheck.Float{}}, true},
		{typecheck.Iterable{Elem: typecheck.Integer{}}, typecheck.List{Elem: typecheck.Integer{}}, false},
		{typecheck.Struct{Fields: map[string]typecheck.Type{"a": typecheck.Integer{}}}, typecheck.Dict{Key: typecheck.String{}, Value: typecheck.Integer{}}, true},
		{typecheck.None{}, typecheck.Optional(typecheck.String{}), true},
		{typecheck.Optional(typecheck.String{}), typecheck.String{}, false},
		{schema, relation, true},
		{relation, schema, false},
		{typecheck.Bool{}, typecheck.HardAny, true},
		{typecheck.SoftAny, typecheck.Bool{}, true},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.expected, typecheck.IsSubtype(tc.a, tc.b), "%s <: %s", tc.a, tc.b)
	}
}

func TestWidenDropsLiterals(t *testing.T) {
	lit := typecheck.List{Elem: typecheck.UnionOf(typecheck.StringLit("a"), typecheck.IntegerLit(1))}
	assert.Equal(t, "list[integer | string]", typecheck.Widen(lit).String())
}

func TestBinaryResult(t *testing.T) {
	result, ok := typecheck.BinaryResult("+", typecheck.IntegerLit(1), typecheck.IntegerLit(2))
	require.True(t, ok)
	assert.Equal(t, typecheck.Integer{}, result)

	result, ok = typecheck.BinaryResult("/", typecheck.Integer{}, typecheck.Integer{})
	require.True(t, ok)
	assert.Equal(t, typecheck.Float{}, result)

	result, ok = typecheck.BinaryResult("~", typecheck.Integer{}, typecheck.None{})
	require.True(t, ok)
	assert.Equal(t, typecheck.String{}, result)

	_, ok = typecheck.BinaryResult("-", typecheck.String{}, typecheck.Integer{})
	assert.False(t, ok)
}

func TestFromValue(t *testing.T) {
	m := value.NewMap()
	m.SetString("name", value.FromString("x"))
	m.SetString("items", value.FromSlice([]value.Value{value.FromInt(1), value.FromInt(2)}))

	assert.Equal(t, `struct{items: list[integer], name: string("x")}`, typecheck.FromValue(value.FromMap(m)).String())
	assert.Equal(t, typecheck.None{}, typecheck.FromValue(value.None))
}
