// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package template_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	cmdtpl "carvel.dev/jtt/pkg/cmd/template"
	"carvel.dev/jtt/pkg/cmd/ui"
	"carvel.dev/jtt/pkg/experiments"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, contents map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range contents {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0700))
		require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	}
	return dir
}

func newUI() (ui.UI, *bytes.Buffer, *bytes.Buffer) {
	var stdout, stderr bytes.Buffer
	return ui.NewCustomWriterTTY(false, &stdout, &stderr), &stdout, &stderr
}

func TestRenderWithDataValues(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"models/orders.sql": `select {{ cols|join(", ") }} from {{ schema }}.{{ table }}`,
		"values.yml":        "schema: analytics\ntable: ignored\n",
	})

	opts := cmdtpl.NewOptions()
	opts.EnvironmentFlags.Files = []string{filepath.Join(dir, "models")}
	opts.EnvironmentFlags.Recursive = true
	opts.DataValuesFlags.Files = []string{filepath.Join(dir, "values.yml")}
	opts.DataValuesFlags.KVsFromStrings = []string{"table=orders"}
	opts.DataValuesFlags.KVsFromYAML = []string{"cols=[id, total]"}

	tty, stdout, _ := newUI()
	require.NoError(t, opts.RunWithUI(context.Background(), tty))
	assert.Equal(t, "select id, total from analytics.orders", stdout.String())
}

func TestRenderMultipleTemplatesAndOutputDirectory(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"tpl/a.sql": "a",
		"tpl/b.sql": "{{ 1 + 1 }}",
	})

	opts := cmdtpl.NewOptions()
	opts.EnvironmentFlags.Files = []string{filepath.Join(dir, "tpl")}
	opts.EnvironmentFlags.Recursive = true

	tty, stdout, _ := newUI()
	require.NoError(t, opts.RunWithUI(context.Background(), tty))
	assert.Equal(t, "-- a.sql\na\n-- b.sql\n2", stdout.String())

	opts.Template = "b.sql"
	opts.Output = filepath.Join(dir, "out")
	tty, _, _ = newUI()
	require.NoError(t, opts.RunWithUI(context.Background(), tty))

	rendered, err := os.ReadFile(filepath.Join(dir, "out", "b.sql"))
	require.NoError(t, err)
	assert.Equal(t, "2", string(rendered))
}

func TestRenderStrictUndefined(t *testing.T) {
	dir := writeFiles(t, map[string]string{"t.sql": "{{ missing.attr }}"})

	opts := cmdtpl.NewOptions()
	opts.EnvironmentFlags.Files = []string{filepath.Join(dir, "t.sql")}

	tty, stdout, _ := newUI()
	require.NoError(t, opts.RunWithUI(context.Background(), tty))
	assert.Equal(t, "", stdout.String())

	opts.EnvironmentFlags.StrictUndefined = true
	tty, _, _ = newUI()
	err := opts.RunWithUI(context.Background(), tty)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Rendering template 't.sql'")
}

func TestRenderPrintGoesToStderr(t *testing.T) {
	dir := writeFiles(t, map[string]string{"t.sql": `{{ print("note") }}body`})

	opts := cmdtpl.NewOptions()
	opts.EnvironmentFlags.Files = []string{filepath.Join(dir, "t.sql")}

	tty, stdout, stderr := newUI()
	require.NoError(t, opts.RunWithUI(context.Background(), tty))
	assert.Equal(t, "body", stdout.String())
	assert.Contains(t, stderr.String(), "note")
}

func TestRenderWithoutTemplates(t *testing.T) {
	tty, _, _ := newUI()
	err := cmdtpl.NewOptions().RunWithUI(context.Background(), tty)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Expected at least one template to render")
}

func TestRenderInspectDataValues(t *testing.T) {
	opts := cmdtpl.NewOptions()
	opts.DataValuesFlags.KVsFromStrings = []string{"db.host=localhost", "db.port=5432"}
	opts.DataValuesFlags.Inspect = true

	tty, stdout, _ := newUI()
	require.NoError(t, opts.RunWithUI(context.Background(), tty))
	assert.Equal(t, "db:\n  host: localhost\n  port: \"5432\"\n", stdout.String())
}

func TestRenderWithProject(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"jtt.toml": `
root-package = "shop"
template-paths = ["models"]
internal-packages = ["utils"]

[[packages]]
name = "utils"
template-paths = ["macros"]
`,
		"models/report.sql": `{{ shout("hi") }}`,
		"macros/text.sql":   `{% macro shout(s) %}{{ s|upper }}!{% endmacro %}`,
	})

	opts := cmdtpl.NewOptions()
	opts.EnvironmentFlags.Project = filepath.Join(dir, "jtt.toml")

	tty, stdout, _ := newUI()
	require.NoError(t, opts.RunWithUI(context.Background(), tty))
	assert.Equal(t, "HI!", stdout.String())
}

func TestRenderWithSQLite(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"t.sql": `{{ run_query("select 40 + 2 as answer")[0]["answer"] }} {{ adapter.type() }}`,
	})

	opts := cmdtpl.NewOptions()
	opts.EnvironmentFlags.Files = []string{filepath.Join(dir, "t.sql")}
	opts.EnvironmentFlags.SQLite = ":memory:"

	tty, stdout, _ := newUI()
	require.NoError(t, opts.RunWithUI(context.Background(), tty))
	assert.Equal(t, "42 sqlite", stdout.String())
}

func TestRenderWithStarlarkFunctions(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"t.sql":        `{{ greet("ann") }}`,
		"helpers.star": "def greet(name):\n    return 'hello ' + name\n",
	})

	opts := cmdtpl.NewOptions()
	opts.EnvironmentFlags.Files = []string{filepath.Join(dir, "t.sql")}
	opts.EnvironmentFlags.Functions = []string{filepath.Join(dir, "helpers.star")}

	t.Cleanup(experiments.ResetForTesting)

	experiments.ResetForTesting()
	t.Setenv(experiments.Env, "")
	tty, _, _ := newUI()
	err := opts.RunWithUI(context.Background(), tty)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires the 'starlark-functions' experiment")

	experiments.ResetForTesting()
	t.Setenv(experiments.Env, experiments.StarlarkFunctions)
	tty, stdout, _ := newUI()
	require.NoError(t, opts.RunWithUI(context.Background(), tty))
	assert.Equal(t, "hello ann", stdout.String())
}

func TestTypecheck(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"ok.sql":   `{{ "a"|upper }}`,
		"bad.sql":  "-- funcsign: (integer) -> string\n{% macro inc(n) %}{{ n + 1 }}{% endmacro %}{{ inc('x') }}",
		"warn.sql": `{{ nope }}`,
	})

	opts := cmdtpl.NewTypecheckOptions()
	opts.EnvironmentFlags.Files = []string{filepath.Join(dir, "ok.sql")}
	tty, stdout, stderr := newUI()
	require.NoError(t, opts.RunWithUI(tty))
	assert.Empty(t, stdout.String())
	assert.Empty(t, stderr.String())

	opts.EnvironmentFlags.Files = []string{filepath.Join(dir, "warn.sql")}
	tty, _, stderr = newUI()
	require.NoError(t, opts.RunWithUI(tty))
	assert.Contains(t, stderr.String(), "warn.sql:")
	assert.Contains(t, stderr.String(), "Unknown variable 'nope'")

	opts.WarningsAsErrors = true
	tty, _, _ = newUI()
	err := opts.RunWithUI(tty)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Typecheck found 0 error(s) and 1 warning(s)")

	opts.WarningsAsErrors = false
	opts.EnvironmentFlags.Files = []string{filepath.Join(dir, "bad.sql")}
	tty, stdout, _ = newUI()
	err = opts.RunWithUI(tty)
	require.Error(t, err)
	assert.Contains(t, stdout.String(), "bad.sql:")
	assert.Contains(t, stdout.String(), "error")
}

func TestDisasm(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"t.sql": `{% for x in xs %}{{ x }}{% endfor %}{% macro m() %}m{% endmacro %}`,
	})

	opts := cmdtpl.NewDisasmOptions()
	opts.EnvironmentFlags.Files = []string{filepath.Join(dir, "t.sql")}

	tty, stdout, _ := newUI()
	require.NoError(t, opts.RunWithUI(tty))
	assert.Contains(t, stdout.String(), "template t.sql:\n")
	assert.Contains(t, stdout.String(), "macro #0 m:")

	opts.CFG = true
	tty, stdout, _ = newUI()
	require.NoError(t, opts.RunWithUI(tty))
	assert.Contains(t, stdout.String(), "main:\nBlock B0")
	assert.Contains(t, stdout.String(), "macro m:\nBlock B0")

	opts.DOT = true
	tty, stdout, _ = newUI()
	require.NoError(t, opts.RunWithUI(tty))
	assert.Contains(t, stdout.String(), "// main\ndigraph cfg {")
}
