// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package adapter_test

import (
	"context"
	"testing"

	"carvel.dev/jtt/pkg/adapter"
	"carvel.dev/jtt/pkg/dispatch"
	"carvel.dev/jtt/pkg/jttlibrary"
	"carvel.dev/jtt/pkg/template"
	"carvel.dev/jtt/pkg/texttemplate"
	"carvel.dev/jtt/pkg/value"
	"carvel.dev/jtt/pkg/vm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConnection struct {
	queries []string
}

func (c *fakeConnection) Type() string { return "fake" }

func (c *fakeConnection) Execute(_ context.Context, sql string, fetch bool) (adapter.Response, *value.Table, error) {
	c.queries = append(c.queries, sql)
	if !fetch {
		return adapter.Response{Code: "OK", RowsAffected: 3}, nil, nil
	}
	rows := [][]value.Value{{value.FromInt(1)}, {value.FromInt(2)}}
	return adapter.Response{Code: "SELECT", RowsAffected: 2}, value.NewTable([]string{"n"}, []string{"integer"}, rows), nil
}

func render(t *testing.T, conn adapter.Connection, src string) (string, error) {
	t.Helper()
	loader := template.MapCompiledTemplateLoader{}
	builder := dispatch.NewBuilder("app").Adapter(typeOf(conn))

	for name, body := range map[string]string{
		"app/helpers.sql": `{% macro default__cast(x) %}cast({{ x }}){% endmacro %}` +
			`{% macro fake__cast(x) %}fake_cast({{ x }}){% endmacro %}`,
		"app/main.sql": src,
	} {
		tpl, err := template.Compile(name, []byte(body), texttemplate.LexOptions{})
		require.NoError(t, err)
		loader[name] = tpl
		builder.AddTemplate("app", tpl)
	}
	reg, err := builder.Build()
	require.NoError(t, err)

	lib := jttlibrary.New(jttlibrary.Options{})
	machine := vm.New(vm.Options{
		Loader:   loader,
		Resolver: reg,
		Globals:  adapter.New(reg, conn).Globals(),
		Filters:  lib.Filters,
		Tests:    lib.Tests,
	})
	return machine.Render(context.Background(), loader["app/main.sql"], nil)
}

func typeOf(conn adapter.Connection) string {
	if conn == nil {
		return adapter.DefaultType
	}
	return conn.Type()
}

func TestDispatchUsesConnectionType(t *testing.T) {
	out, err := render(t, &fakeConnection{}, `{{ adapter.dispatch("cast")("a") }}`)
	require.NoError(t, err)
	assert.Equal(t, "fake_cast(a)", out)

	out, err = render(t, nil, `{{ adapter.dispatch("cast")("a") }} {{ adapter.type() }}`)
	require.NoError(t, err)
	assert.Equal(t, "cast(a) default", out)
}

func TestQuote(t *testing.T) {
	out, err := render(t, nil, `{{ adapter.quote('my"col') }}`)
	require.NoError(t, err)
	assert.Equal(t, `"my""col"`, out)
}

func TestExecute(t *testing.T) {
	conn := &fakeConnection{}
	out, err := render(t, conn, `{% set resp, table = adapter.execute("update x", fetch=False) %}`+
		`{{ resp.code }} {{ resp.rows_affected }} {{ table|length }}|`+
		`{{ run_query("select n")|map(attribute="n")|join(",") }}`)
	require.NoError(t, err)
	assert.Equal(t, "OK 3 0|1,2", out)
	assert.Equal(t, []string{"update x", "select n"}, conn.queries)
}

func TestExecuteWithoutConnection(t *testing.T) {
	_, err := render(t, nil, `{{ run_query("select 1") }}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no database connection configured")
}
