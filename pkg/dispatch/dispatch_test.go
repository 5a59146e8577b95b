// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package dispatch_test

import (
	"testing"

	"carvel.dev/jtt/pkg/dispatch"
	"carvel.dev/jtt/pkg/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// adapterGlobal exposes reg.DispatchFunction as `adapter.dispatch`.
func adapterGlobal(reg **dispatch.Registry) value.Value {
	attrs := value.NewMap()
	attrs.SetString("dispatch", value.FromObject(value.NewFunction("dispatch",
		func(_ value.State, args []value.Value) (value.Value, error) {
			return (*reg).DispatchFunction(args)
		})))
	return value.FromObject(value.NewNamespace(attrs))
}

func dispatchFixture(t *testing.T, main string) *fixture {
	f := newFixture(t, "app",
		pkgTemplate{"app", "app/greet.sql", `{% macro default__greet(x) %}default {{ x }}{% endmacro %}`},
		pkgTemplate{"dbt_sqlite", "dbt_sqlite/greet.sql", `{% macro sqlite__greet(x) %}sqlite {{ x }}{% endmacro %}`},
		pkgTemplate{"pkgB", "pkgB/other.sql", `{% macro plain() %}plain{% endmacro %}`},
		pkgTemplate{"app", "app/main.sql", main},
	)
	f.builder.InternalPackages("dbt_sqlite").Adapter("sqlite")
	return f
}

func TestDispatchPrefersAdapterImplementation(t *testing.T) {
	f := dispatchFixture(t, `{{ adapter.dispatch('greet')('x') }}|{{ adapter.dispatch('greet', macro_namespace='pkgB')('y') }}`)

	var reg *dispatch.Registry
	f.globals["adapter"] = adapterGlobal(&reg)
	reg, err := f.builder.Build()
	require.NoError(t, err)

	out, err := f.render(t, reg, "app/main.sql", nil)
	require.NoError(t, err)
	assert.Equal(t, "sqlite x|default y", out)
}

func TestDispatchWithExplicitOrder(t *testing.T) {
	f := dispatchFixture(t, `{{ adapter.dispatch('greet', 'ns')('z') }}`)
	f.builder.DispatchOrder("ns", "dbt_sqlite", "app")

	var reg *dispatch.Registry
	f.globals["adapter"] = adapterGlobal(&reg)
	reg, err := f.builder.Build()
	require.NoError(t, err)

	out, err := f.render(t, reg, "app/main.sql", nil)
	require.NoError(t, err)
	assert.Equal(t, "sqlite z", out)
}

func TestDispatchNotFound(t *testing.T) {
	f := dispatchFixture(t, `{{ adapter.dispatch('missing')() }}`)

	var reg *dispatch.Registry
	f.globals["adapter"] = adapterGlobal(&reg)
	reg, err := f.builder.Build()
	require.NoError(t, err)

	_, err = f.render(t, reg, "app/main.sql", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "In dispatch: No macro named 'missing' found within namespace: 'None'")
	assert.Contains(t, err.Error(), "'app.sqlite__missing', 'dbt_sqlite.sqlite__missing', 'app.default__missing'")
	assert.True(t, value.IsErrorKind(err, value.ErrUnknownFunction))
}

func TestStrictDispatch(t *testing.T) {
	f := dispatchFixture(t, `{{ adapter.dispatch('plain', 'pkgB')() }}|{{ adapter.dispatch('greet', 'pkgB')() }}`)
	f.builder.Strict(true)

	var reg *dispatch.Registry
	f.globals["adapter"] = adapterGlobal(&reg)
	reg, err := f.builder.Build()
	require.NoError(t, err)

	out, err := f.render(t, reg, "app/main.sql", nil)
	require.Error(t, err)
	assert.Equal(t, "plain|", out)
	assert.Contains(t, err.Error(), "In strict mode: No macro named 'greet' found in package 'pkgB'")
}

func TestDispatchRejectsDottedNames(t *testing.T) {
	reg, err := dispatch.NewBuilder("app").Build()
	require.NoError(t, err)

	_, err = reg.NewDispatcher("pkg.greet", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Did you mean `adapter.dispatch(\"greet\", macro_namespace=\"pkg\")`?")
}

func TestDispatcherAttributes(t *testing.T) {
	reg, err := dispatch.NewBuilder("app").Build()
	require.NoError(t, err)

	d, err := reg.NewDispatcher("greet", "")
	require.NoError(t, err)

	name, _ := d.GetValue(value.FromString("macro_name"))
	assert.Equal(t, "greet", name.String())
	pkg, _ := d.GetValue(value.FromString("package_name"))
	assert.True(t, pkg.IsNone())
}
