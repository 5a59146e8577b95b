// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package workspace_test

import (
	"context"
	"strconv"
	"testing"

	"carvel.dev/jtt/pkg/value"
	"carvel.dev/jtt/pkg/workspace"
	fuzz "github.com/google/gofuzz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderIsDeterministicForFuzzedContext(t *testing.T) {
	env, err := workspace.NewBuilder(workspace.EnvironmentOpts{}).
		AddTemplate(workspace.DefaultRootPackage, "t.sql",
			[]byte(`{% macro wrap(s) %}[{{ s }}]{% endmacro %}{{ wrap(s) }} {{ n + 1 }} {{ items|length }}`)).
		Build()
	require.NoError(t, err)

	f := fuzz.New().NilChance(0).NumElements(0, 5)

	for i := 0; i < 100; i++ {
		var s string
		var n int32
		var items []string
		f.Fuzz(&s)
		f.Fuzz(&n)
		f.Fuzz(&items)

		root := value.NewMap()
		root.SetString("s", value.FromString(s))
		root.SetString("n", value.FromInt(int64(n)))
		root.SetString("items", value.FromGo(items))

		expected := "[" + s + "] " + strconv.FormatInt(int64(n)+1, 10) + " " + strconv.Itoa(len(items))

		first, err := env.Render(context.Background(), "t.sql", root)
		require.NoError(t, err)
		second, err := env.Render(context.Background(), "t.sql", root)
		require.NoError(t, err)

		assert.Equal(t, expected, first)
		assert.Equal(t, first, second)
	}
}
