// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package sqlite_test

import (
	"context"
	"testing"

	"carvel.dev/jtt/pkg/adapter"
	"carvel.dev/jtt/pkg/adapter/sqlite"
	"carvel.dev/jtt/pkg/jttlibrary"
	"carvel.dev/jtt/pkg/template"
	"carvel.dev/jtt/pkg/texttemplate"
	"carvel.dev/jtt/pkg/value"
	"carvel.dev/jtt/pkg/vm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMemory(t *testing.T) *sqlite.Connection {
	t.Helper()
	conn, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestExecuteAndFetch(t *testing.T) {
	conn := openMemory(t)
	ctx := context.Background()

	resp, _, err := conn.Execute(ctx, "create table people (id integer, name text)", false)
	require.NoError(t, err)
	assert.Equal(t, "CREATE", resp.Code)

	resp, _, err = conn.Execute(ctx, "insert into people values (1, 'ann'), (2, 'bob')", false)
	require.NoError(t, err)
	assert.Equal(t, adapter.Response{Code: "INSERT", RowsAffected: 2}, resp)

	resp, table, err := conn.Execute(ctx, "select id, name from people order by id", true)
	require.NoError(t, err)
	assert.Equal(t, int64(2), resp.RowsAffected)
	assert.Equal(t, []string{"id", "name"}, table.ColumnNames())
	assert.Equal(t, 2, table.NumRows())

	name, found := table.Row(1).GetValue(value.FromString("name"))
	require.True(t, found)
	assert.Equal(t, "bob", name.String())
}

func TestExecuteError(t *testing.T) {
	conn := openMemory(t)
	_, _, err := conn.Execute(context.Background(), "select * from missing", true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}

func TestTemplatesQueryThroughAdapter(t *testing.T) {
	conn := openMemory(t)
	for _, stmt := range []string{"create table t (n integer)", "insert into t values (1), (2), (3)"} {
		_, _, err := conn.Execute(context.Background(), stmt, false)
		require.NoError(t, err)
	}

	src := `{% set res = adapter.execute("select n from t order by n", fetch=True) %}` +
		`{{ res[0].code }} {{ res[1].columns[0].values|join(",") }} {{ run_query("select count(*) as c from t")[0]["c"] }} {{ adapter.type() }}`
	tpl, err := template.Compile("q.sql", []byte(src), texttemplate.LexOptions{})
	require.NoError(t, err)

	lib := jttlibrary.New(jttlibrary.Options{})
	machine := vm.New(vm.Options{
		Globals: adapter.New(nil, conn).Globals(),
		Filters: lib.Filters,
		Tests:   lib.Tests,
	})
	out, err := machine.Render(context.Background(), tpl, nil)
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1,2,3 3 sqlite", out)
}
