// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package starlarkfn_test

import (
	"context"
	"testing"

	"carvel.dev/jtt/pkg/files"
	"carvel.dev/jtt/pkg/jttlibrary"
	"carvel.dev/jtt/pkg/starlarkfn"
	"carvel.dev/jtt/pkg/template"
	"carvel.dev/jtt/pkg/texttemplate"
	"carvel.dev/jtt/pkg/value"
	"carvel.dev/jtt/pkg/vm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const helpers = `
def surrogate_key(*cols, sep="-"):
    return sep.join([str(c) for c in cols])

def describe(m):
    return struct(names=sorted(m.keys()), size=len(m))

def big():
    return 2 * 9223372036854775807

def _private():
    return "hidden"

def is_even(n):
    return n % 2 == 0

def apply(fn, arg):
    return fn(arg)

filters = {"double": lambda s: s + s}
tests = {"even": is_even}
`

func render(t *testing.T, lib jttlibrary.Library, src string) (string, error) {
	t.Helper()
	tpl, err := template.Compile("tpl", []byte(src), texttemplate.LexOptions{})
	require.NoError(t, err)

	base := jttlibrary.New(jttlibrary.Options{})
	base.Merge(lib)

	return vm.New(vm.Options{
		Globals: base.Globals,
		Filters: base.Filters,
		Tests:   base.Tests,
	}).Render(context.Background(), tpl, nil)
}

func TestLoadExposesFunctionsFiltersAndTests(t *testing.T) {
	lib, err := starlarkfn.LoadSource("helpers.star", []byte(helpers))
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"surrogate_key", "describe", "big", "is_even", "apply"}, jttlibrary.Names(lib.Globals))
	assert.Equal(t, []string{"double"}, jttlibrary.Names(lib.Filters))
	assert.Equal(t, []string{"even"}, jttlibrary.Names(lib.Tests))

	out, err := render(t, lib, `{{ surrogate_key("a", 1, sep="_") }} {{ "ab"|double }} {{ 4 is even }} {{ 3 is even }}`)
	require.NoError(t, err)
	assert.Equal(t, "a_1 abab True False", out)
}

func TestValuesCrossTheBoundary(t *testing.T) {
	lib, err := starlarkfn.LoadSource("helpers.star", []byte(helpers))
	require.NoError(t, err)

	out, err := render(t, lib, `{% set d = describe({"b": 1, "a": [1, 2]}) %}{{ d.names|join(",") }}/{{ d.size }} {{ big() }}`)
	require.NoError(t, err)
	assert.Equal(t, "a,b/2 18446744073709551614", out)
}

func TestStarlarkCallsBackIntoTemplates(t *testing.T) {
	lib, err := starlarkfn.LoadSource("helpers.star", []byte(helpers))
	require.NoError(t, err)

	out, err := render(t, lib, `{% macro wrap(x) %}[{{ x }}]{% endmacro %}{{ apply(wrap, "m") }}`)
	require.NoError(t, err)
	assert.Equal(t, "[m]", out)
}

func TestRuntimeErrorsIncludeFunctionName(t *testing.T) {
	lib, err := starlarkfn.LoadSource("fail.star", []byte("def boom(x):\n    return x + 1\n"))
	require.NoError(t, err)

	_, err = render(t, lib, `{{ boom("a") }}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestLoadErrors(t *testing.T) {
	cases := []struct {
		desc   string
		src    string
		errMsg string
	}{
		{"syntax", "def (", "Parsing functions file 'bad.star'"},
		{"unknown name", "x = nope\n", "Resolving functions file 'bad.star'"},
		{"failing top level", "x = 1 // 0\n", "Evaluating functions file 'bad.star'"},
		{"filters not a dict", "filters = [1]\n", "Expected 'filters' in functions file 'bad.star' to be a dict"},
		{"test not a function", "tests = {\"x\": 1}\n", "Expected 'tests' entry 'x' in functions file 'bad.star' to be a function"},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			_, err := starlarkfn.LoadSource("bad.star", []byte(tc.src))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errMsg)
		})
	}
}

func TestLoadFilesLaterOverrideEarlier(t *testing.T) {
	fs := []*files.File{
		files.MustNewFileFromSource(files.NewBytesSource("a.star", []byte("def name():\n    return 'a'\n"))),
		files.MustNewFileFromSource(files.NewBytesSource("b.star", []byte("def name():\n    return 'b'\n"))),
	}
	lib, err := starlarkfn.Load(fs)
	require.NoError(t, err)

	val, err := value.Call(value.BackgroundState{}, lib.Globals["name"], nil)
	require.NoError(t, err)
	assert.Equal(t, "b", val.String())
}
