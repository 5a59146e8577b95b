// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package workspace_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"carvel.dev/jtt/pkg/vm"
	"carvel.dev/jtt/pkg/workspace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const projectConfig = `
root-package = "shop"
template-paths = ["models"]
undefined = "strict"
internal-packages = ["utils"]

[vars]
region = "eu"

[[packages]]
name = "utils"
template-paths = ["macros"]

  [packages.vars]
  suffix = "_v1"

[[dispatch]]
namespace = "shop"
search-order = ["utils", "shop"]
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0700))
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
}

func TestLoadProjectConfigAndRender(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, workspace.ProjectConfigFileName), projectConfig)
	writeFile(t, filepath.Join(dir, "models", "orders.sql"), `select * from {{ table("orders") }} -- {{ var("region") }}`)
	writeFile(t, filepath.Join(dir, "macros", "naming.sql"), `{% macro table(name) %}{{ name }}{{ suffix }}{% endmacro %}`)
	writeFile(t, filepath.Join(dir, "macros", "README.yml"), `ignored: true`)

	conf, err := workspace.LoadProjectConfig(filepath.Join(dir, workspace.ProjectConfigFileName))
	require.NoError(t, err)

	opts, err := conf.EnvironmentOpts()
	require.NoError(t, err)
	assert.Equal(t, "shop", opts.RootPackage)
	assert.Equal(t, vm.UndefinedStrict, opts.Undefined)

	builder := workspace.NewBuilder(opts)
	require.NoError(t, conf.Apply(builder))
	env, err := builder.Build()
	require.NoError(t, err)

	assert.Equal(t, []string{"orders.sql", "utils/naming.sql"}, env.TemplateNames())

	out, err := env.Render(context.Background(), "orders.sql", nil)
	require.NoError(t, err)
	assert.Equal(t, "select * from orders_v1 -- eu", out)
}

func TestParseProjectConfigRejectsUnknownKeys(t *testing.T) {
	_, err := workspace.ParseProjectConfig([]byte("root-package = \"a\"\nroot-pakage = \"b\"\n"))
	require.Error(t, err)
	assert.Equal(t, "Unknown keys: root-pakage", err.Error())
}

func TestParseProjectConfigValidation(t *testing.T) {
	cases := []struct {
		desc string
		src  string
		err  string
	}{
		{"bad undefined", `undefined = "loose"`, "Unknown undefined behavior 'loose'"},
		{"bad version constraint", `require-version = "not a version"`, "Parsing version constraint"},
		{"unnamed package", "[[packages]]\ntemplate-paths = [\"x\"]", "Expected package #1 to have a name"},
		{"duplicate package", "[[packages]]\nname = \"root\"", "Expected package 'root' to be declared once"},
		{"dispatch without order", "[[dispatch]]\nnamespace = \"x\"", "to have a search order"},
	}
	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			_, err := workspace.ParseProjectConfig([]byte(tc.src))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.err)
		})
	}
}

func TestParseProjectConfigRequireVersion(t *testing.T) {
	// development builds satisfy any constraint
	conf, err := workspace.ParseProjectConfig([]byte(`require-version = ">= 0.1.0"`))
	require.NoError(t, err)
	assert.Equal(t, ">= 0.1.0", conf.RequireVersion)
}
