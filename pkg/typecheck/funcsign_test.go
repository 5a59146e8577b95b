// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package typecheck_test

import (
	"testing"

	"carvel.dev/jtt/pkg/typecheck"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSignature(t *testing.T) {
	sig, err := typecheck.ParseSignature("(string, list[relation]) -> bool", nil)
	require.NoError(t, err)
	assert.Equal(t, "(string, list[relation]) -> bool", sig.String())
	assert.Equal(t, "arg0", sig.Args[0].Name)
	assert.False(t, sig.Variadic)
}

func TestParseSignatureNamedOptionalVariadic(t *testing.T) {
	sig, err := typecheck.ParseSignature("(name: string, count: optional[integer], ...) -> none", nil)
	require.NoError(t, err)

	assert.Equal(t, "(string, integer | none, ...) -> none", sig.String())
	assert.Equal(t, "count", sig.Args[1].Name)
	assert.False(t, sig.Args[0].Optional)
	assert.True(t, sig.Args[1].Optional)
	assert.True(t, sig.Variadic)
}

func TestParseType(t *testing.T) {
	cases := map[string]string{
		"dict[string, tuple[int, float]]": "dict[string, tuple[integer, float]]",
		"struct{b: int, a: string}":       "struct{a: string, b: integer}",
		"seq[str]":                        "list[string]",
		"string | none | any":             "any",
		"optional[relation]":              "none | relation",
		"(string) -> list[column]":        "(string) -> list[column]",
	}
	for src, expected := range cases {
		parsed, err := typecheck.ParseType(src, nil)
		require.NoError(t, err, src)
		assert.Equal(t, expected, parsed.String(), src)
	}
}

func TestParseTypeResolvesRegistryNames(t *testing.T) {
	reg := typecheck.NewRegistry()
	reg.Define("my_rows", typecheck.List{Elem: typecheck.Integer{}})

	parsed, err := typecheck.ParseType("optional[my_rows]", reg)
	require.NoError(t, err)
	assert.Equal(t, "list[integer] | none", parsed.String())
}

func TestParseErrors(t *testing.T) {
	_, err := typecheck.ParseSignature("", nil)
	assert.EqualError(t, err, "Parse error at line 1, column 1: Expected opening parenthesis")

	_, err = typecheck.ParseSignature("(string) string", nil)
	assert.EqualError(t, err, "Parse error at line 1, column 10: Expected '->' before return type")

	_, err = typecheck.ParseSignature("(string", nil)
	assert.EqualError(t, err, "Parse error at line 1, column 8: Unexpected end of input: Expected ',' or ')' in parameter list")

	_, err = typecheck.ParseType("list[string", nil)
	assert.EqualError(t, err, "Parse error at line 1, column 12: Unexpected end of input: Expected ',' or ']' in parameter list")

	_, err = typecheck.ParseType("strin", nil)
	assert.EqualError(t, err, "Parse error at line 1, column 1: Unknown type: strin")

	var parseErr *typecheck.ParseError
	_, err = typecheck.ParseSignature("(string, ..., int) -> none", nil)
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, "Expected '...' to be the last parameter", parseErr.Msg)
}

func TestSignatureResolve(t *testing.T) {
	sig, err := typecheck.ParseSignature("(name: string, count: optional[integer]) -> string", nil)
	require.NoError(t, err)
	sig.FnName = "fn"

	ret, err := sig.Resolve([]typecheck.Type{typecheck.StringLit("x")}, map[string]typecheck.Type{"count": typecheck.IntegerLit(2)})
	require.NoError(t, err)
	assert.Equal(t, typecheck.String{}, ret)

	_, err = sig.Resolve([]typecheck.Type{typecheck.IntegerLit(1)}, nil)
	assert.EqualError(t, err, "fn: argument 'name' expects string, found integer(1)")

	_, err = sig.Resolve(nil, nil)
	assert.EqualError(t, err, "fn: missing required argument: name")

	_, err = sig.Resolve([]typecheck.Type{typecheck.String{}, typecheck.Integer{}, typecheck.Integer{}}, nil)
	assert.EqualError(t, err, "fn: expected at most 2 arguments, got 3")

	_, err = sig.Resolve([]typecheck.Type{typecheck.String{}}, map[string]typecheck.Type{"nope": typecheck.Bool{}, "also": typecheck.Bool{}})
	assert.EqualError(t, err, "fn: unknown arguments: also, nope")
}
