// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package toml_test

import (
	"context"
	"testing"

	"carvel.dev/jtt/pkg/jttlibrary"
	_ "carvel.dev/jtt/pkg/jttlibraryext"
	"carvel.dev/jtt/pkg/template"
	"carvel.dev/jtt/pkg/texttemplate"
	"carvel.dev/jtt/pkg/value"
	"carvel.dev/jtt/pkg/vm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func render(t *testing.T, src string, ctx map[string]interface{}) (string, error) {
	t.Helper()
	tpl, err := template.Compile("tpl", []byte(src), texttemplate.LexOptions{})
	require.NoError(t, err)
	lib := jttlibrary.New(jttlibrary.Options{})
	root, _ := value.FromGo(ctx).AsMap()
	return vm.New(vm.Options{
		Globals: lib.Globals,
		Filters: lib.Filters,
		Tests:   lib.Tests,
	}).Render(context.Background(), tpl, root)
}

func TestTOMLEncode(t *testing.T) {
	out, err := render(t, `{{ totoml({"b": 1, "a": "x", "t": {"k": true}}) }}`, nil)
	require.NoError(t, err)
	assert.Contains(t, out, "a = \"x\"\nb = 1\n")
	assert.Contains(t, out, "[t]\n  k = true\n")
}

func TestTOMLEncodeIndent(t *testing.T) {
	out, err := render(t, `{{ {"t": {"k": 1}}|totoml(indent=4) }}`, nil)
	require.NoError(t, err)
	assert.Contains(t, out, "[t]\n    k = 1\n")

	_, err = render(t, `{{ {"t": 1}|totoml(indent=9) }}`, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "indent value must be between 0 and 8")
}

func TestTOMLEncodeRequiresMap(t *testing.T) {
	_, err := render(t, `{{ totoml([1, 2]) }}`, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected a map, got sequence")
}

func TestTOMLDecodeKeepsDocumentOrder(t *testing.T) {
	src := "z = 1\na = \"two\"\n\n[table]\nk2 = 2\nk1 = 1\n\n[[items]]\nname = \"x\"\n[[items]]\nname = \"y\"\n"
	ctx := map[string]interface{}{"doc": src}

	out, err := render(t, `{{ fromtoml(doc)|list|join(",") }}`, ctx)
	require.NoError(t, err)
	assert.Equal(t, "z,a,table,items", out)

	out, err = render(t, `{{ (doc|fromtoml).table|list|join(",") }}`, ctx)
	require.NoError(t, err)
	assert.Equal(t, "k2,k1", out)

	out, err = render(t, `{{ fromtoml(doc)["items"]|map(attribute="name")|join(",") }}`, ctx)
	require.NoError(t, err)
	assert.Equal(t, "x,y", out)
}

func TestTOMLDecodeInvalid(t *testing.T) {
	_, err := render(t, `{{ fromtoml("a = = 1") }}`, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fromtoml")
}
