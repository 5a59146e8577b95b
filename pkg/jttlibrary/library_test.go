// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package jttlibrary_test

import (
	"bytes"
	"context"
	"testing"

	"carvel.dev/jtt/pkg/jttlibrary"
	"carvel.dev/jtt/pkg/template"
	"carvel.dev/jtt/pkg/texttemplate"
	"carvel.dev/jtt/pkg/value"
	"carvel.dev/jtt/pkg/version"
	"carvel.dev/jtt/pkg/vm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func render(t *testing.T, lib jttlibrary.Library, src string, ctx map[string]interface{}) (string, error) {
	t.Helper()
	tpl, err := template.Compile("tpl", []byte(src), texttemplate.LexOptions{})
	require.NoError(t, err)
	root, _ := value.FromGo(ctx).AsMap()
	machine := vm.New(vm.Options{
		Loader:  template.MapCompiledTemplateLoader{"tpl": tpl},
		Globals: lib.Globals,
		Filters: lib.Filters,
		Tests:   lib.Tests,
	})
	return machine.Render(context.Background(), tpl, root)
}

func mustRender(t *testing.T, src string, ctx map[string]interface{}) string {
	t.Helper()
	out, err := render(t, jttlibrary.New(jttlibrary.Options{}), src, ctx)
	require.NoError(t, err, "rendering %q", src)
	return out
}

func TestFilters(t *testing.T) {
	ctx := map[string]interface{}{
		"users": []interface{}{
			map[string]interface{}{"name": "bob", "age": 30, "admin": false},
			map[string]interface{}{"name": "Alice", "age": 25, "admin": true},
		},
		"nums":  []interface{}{3, 1, 2, 3},
		"words": []interface{}{"b", "A", "c"},
	}

	cases := []struct {
		src      string
		expected string
	}{
		{`{{ "hello"|upper }}`, "HELLO"},
		{`{{ "Hello World"|lower }}`, "hello world"},
		{`{{ "hello world"|title }}`, "Hello World"},
		{`{{ "hello"|capitalize }}`, "Hello"},
		{`{{ "  x  "|trim }}`, "x"},
		{`{{ "--x--"|trim("-") }}`, "x"},
		{`{{ "aXa"|replace("a", "b") }}`, "bXb"},
		{`{{ nums|length }}`, "4"},
		{`{{ "abc"|count }}`, "3"},
		{`{{ nums|join(",") }}`, "3,1,2,3"},
		{`{{ users|join(", ", attribute="name") }}`, "bob, Alice"},
		{`{{ nums|sort|join }}`, "1233"},
		{`{{ nums|sort(reverse=true)|join }}`, "3321"},
		{`{{ words|sort|join }}`, "Abc"},
		{`{{ users|sort(attribute="age")|map(attribute="name")|join(",") }}`, "Alice,bob"},
		{`{{ nums|unique|join }}`, "312"},
		{`{{ nums|reverse|join }}`, "3213"},
		{`{{ "abc"|reverse }}`, "cba"},
		{`{{ nums|sum }}`, "9"},
		{`{{ users|sum(attribute="age") }}`, "55"},
		{`{{ nums|min }}`, "1"},
		{`{{ nums|max }}`, "3"},
		{`{{ nums|first }}`, "3"},
		{`{{ nums|last }}`, "3"},
		{`{{ "xyz"|first }}`, "x"},
		{`{{ nums|batch(3)|list|length }}`, "2"},
		{`{{ nums|map("string")|join("-") }}`, "3-1-2-3"},
		{`{{ users|selectattr("admin")|map(attribute="name")|join }}`, "Alice"},
		{`{{ users|rejectattr("admin")|map(attribute="name")|join }}`, "bob"},
		{`{{ nums|select("odd")|join }}`, "313"},
		{`{{ nums|reject("odd")|join }}`, "2"},
		{`{{ users|selectattr("age", "gt", 26)|map(attribute="name")|join }}`, "bob"},
		{`{{ "42"|int + 1 }}`, "43"},
		{`{{ "x"|int(7) }}`, "7"},
		{`{{ "1.5"|float }}`, "1.5"},
		{`{{ "12"|as_number + 1 }}`, "13"},
		{`{{ "yes"|as_bool }}`, "True"},
		{`{{ (-3)|abs }}`, "3"},
		{`{{ 2.567|round(2) }}`, "2.57"},
		{`{{ 2.1|round(method="ceil") }}`, "3.0"},
		{`{{ missing|default("fallback") }}`, "fallback"},
		{`{{ ""|d("empty", true) }}`, "empty"},
		{`{{ {"b": 1, "a": 2}|dictsort|map("first")|join }}`, "ab"},
		{`{{ {"b": 1, "a": 2}|items|map("last")|join }}`, "12"},
		{`{{ "a\nb"|indent(2) }}`, "a\n  b"},
		{`{{ "a b&c"|urlencode }}`, "a%20b%26c"},
		{`{{ "one two  three"|wordcount }}`, "3"},
		{`{{ "<b>"|escape }}`, "&lt;b&gt;"},
		{`{{ "%s-%d"|format("a", 3) }}`, "a-3"},
		{`{{ "%x|%%|%s"|format(255, none) }}`, "ff|%|None"},
		{`{{ "%(name)s!"|format(name="hi") }}`, "hi!"},
		{`{{ "{} and {}".format(1, 2) }}`, "1 and 2"},
		{`{{ users|attr("missing") }}`, ""},
	}

	for _, tc := range cases {
		t.Run(tc.src, func(t *testing.T) {
			assert.Equal(t, tc.expected, mustRender(t, tc.src, ctx))
		})
	}
}

func TestTests(t *testing.T) {
	cases := []struct {
		src      string
		expected string
	}{
		{`{{ x is defined }}`, "False"},
		{`{{ x is undefined }}`, "True"},
		{`{{ none is none }}`, "True"},
		{`{{ 1 is number }}`, "True"},
		{`{{ 1.5 is float }}`, "True"},
		{`{{ 1 is integer }}`, "True"},
		{`{{ "a" is string }}`, "True"},
		{`{{ {} is mapping }}`, "True"},
		{`{{ [1] is sequence }}`, "True"},
		{`{{ "abc" is iterable }}`, "True"},
		{`{{ range is callable }}`, "True"},
		{`{{ 3 is odd }}`, "True"},
		{`{{ 4 is even }}`, "True"},
		{`{{ 9 is divisibleby(3) }}`, "True"},
		{`{{ 2 is eq(2) }}`, "True"},
		{`{{ 2 is ne(3) }}`, "True"},
		{`{{ 2 is lt(3) }}`, "True"},
		{`{{ 3 is ge(3) }}`, "True"},
		{`{{ 2 is in([1, 2]) }}`, "True"},
		{`{{ "abc" is startingwith("ab") }}`, "True"},
		{`{{ "abc" is endingwith("bc") }}`, "True"},
		{`{{ "abc" is lower }}`, "True"},
		{`{{ "ABC" is upper }}`, "True"},
		{`{{ true is true }}`, "True"},
		{`{{ 1 is true }}`, "False"},
		{`{{ true is boolean }}`, "True"},
		{`{{ "x"|safe is safe }}`, "True"},
		{`{{ "1.2.0" is version_at_least("1.1") }}`, "True"},
	}

	for _, tc := range cases {
		t.Run(tc.src, func(t *testing.T) {
			assert.Equal(t, tc.expected, mustRender(t, tc.src, nil))
		})
	}
}

func TestSerialization(t *testing.T) {
	ctx := map[string]interface{}{
		"cfg": value.FromMap(value.NewMapFromPairs(
			value.FromString("z"), value.FromInt(1),
			value.FromString("a"), value.FromSlice([]value.Value{value.FromString("<x>")}),
		)),
	}

	t.Run("tojson keeps key order", func(t *testing.T) {
		assert.Equal(t, `{"z":1,"a":["<x>"]}`, mustRender(t, `{{ tojson(cfg) }}`, ctx))
	})

	t.Run("tojson sorts keys when asked", func(t *testing.T) {
		assert.Equal(t, `{"a":["<x>"],"z":1}`, mustRender(t, `{{ tojson(cfg, sort_keys=true) }}`, ctx))
	})

	t.Run("tojson filter escapes html", func(t *testing.T) {
		assert.Equal(t, `{"z":1,"a":["\u003cx\u003e"]}`, mustRender(t, `{{ cfg|tojson }}`, ctx))
	})

	t.Run("tojson filter indents", func(t *testing.T) {
		assert.Equal(t, "[\n  1\n]", mustRender(t, `{{ [1]|tojson(indent=true) }}`, nil))
	})

	t.Run("tojson of undefined returns default", func(t *testing.T) {
		assert.Equal(t, "d", mustRender(t, `{{ tojson(missing, "d") }}`, nil))
	})

	t.Run("fromjson keeps key order", func(t *testing.T) {
		out := mustRender(t, `{{ fromjson('{"b": 1, "a": [true, null]}') }}`, nil)
		assert.Equal(t, `{'b': 1, 'a': [True, None]}`, out)
	})

	t.Run("fromjson with default", func(t *testing.T) {
		assert.Equal(t, "bad", mustRender(t, `{{ fromjson("{nope", "bad") }}`, nil))
	})

	t.Run("fromjson rejects invalid input", func(t *testing.T) {
		_, err := render(t, jttlibrary.New(jttlibrary.Options{}), `{{ fromjson("{nope") }}`, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse JSON")
	})

	t.Run("fromjson widens big integers", func(t *testing.T) {
		assert.Equal(t, "100000000000000000001", mustRender(t, `{{ fromjson("100000000000000000000") + 1 }}`, nil))
	})

	t.Run("toyaml", func(t *testing.T) {
		assert.Equal(t, "z: 1\na:\n  - <x>\n", mustRender(t, `{{ toyaml(cfg) }}`, ctx))
	})

	t.Run("fromyaml", func(t *testing.T) {
		out := mustRender(t, "{{ fromyaml('b: 1\\na: [x, 2]').a[1] }}", nil)
		assert.Equal(t, "2", out)
	})
}

func TestFunctions(t *testing.T) {
	var out bytes.Buffer
	vars := value.NewMap()
	vars.SetString("target", value.FromString("dev"))
	lib := jttlibrary.New(jttlibrary.Options{
		Vars:   vars,
		Output: &out,
		Env: func(name string) (string, bool) {
			if name == "HOME" {
				return "/home/jtt", true
			}
			return "", false
		},
	})

	cases := []struct {
		src      string
		expected string
	}{
		{`{{ range(3)|join }}`, "012"},
		{`{{ range(1, 10, 4)|join(",") }}`, "1,5,9"},
		{`{{ dict(a=1).a }}`, "1"},
		{`{% set ns = namespace(n=1) %}{% set ns.n = 2 %}{{ ns.n }}`, "2"},
		{`{{ zip([1, 2], ["a", "b"])|map("join")|join(",") }}`, "1a,2b"},
		{`{{ var("target") }}`, "dev"},
		{`{{ var("other", "x") }}`, "x"},
		{`{{ var.has_var("target") }}`, "True"},
		{`{{ env_var("HOME") }}`, "/home/jtt"},
		{`{{ env_var("MISSING", "d") }}`, "d"},
		{`{{ jtt_version }}`, version.Version},
	}

	for _, tc := range cases {
		t.Run(tc.src, func(t *testing.T) {
			rendered, err := render(t, lib, tc.src, nil)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, rendered)
		})
	}

	t.Run("log writes only info messages", func(t *testing.T) {
		out.Reset()
		_, err := render(t, lib, `{{ log("quiet") }}{{ log("loud", info=true) }}`, nil)
		require.NoError(t, err)
		assert.Equal(t, "loud\n", out.String())
	})

	t.Run("raise_compiler_error", func(t *testing.T) {
		_, err := render(t, lib, `{{ exceptions.raise_compiler_error("boom") }}`, nil)
		require.Error(t, err)
		var compilerErr *jttlibrary.CompilerError
		require.ErrorAs(t, err, &compilerErr)
		assert.Equal(t, "boom", compilerErr.Msg)
	})

	t.Run("missing env var", func(t *testing.T) {
		_, err := render(t, lib, `{{ env_var("MISSING") }}`, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Env var required but not provided: 'MISSING'")
	})
}

func TestRegisterExt(t *testing.T) {
	jttlibrary.RegisterExt(jttlibrary.Library{
		Globals: map[string]value.Value{
			"answer": value.FromInt(42),
		},
	})
	assert.Equal(t, "42", mustRender(t, `{{ answer }}`, nil))
}
