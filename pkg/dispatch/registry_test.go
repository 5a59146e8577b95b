// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package dispatch_test

import (
	"context"
	"sync"
	"testing"

	"carvel.dev/jtt/pkg/dispatch"
	"carvel.dev/jtt/pkg/template"
	"carvel.dev/jtt/pkg/texttemplate"
	"carvel.dev/jtt/pkg/value"
	"carvel.dev/jtt/pkg/vm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pkgTemplate struct {
	pkg  string
	name string
	src  string
}

type fixture struct {
	loader  template.MapCompiledTemplateLoader
	builder *dispatch.Builder
	globals map[string]value.Value
}

func newFixture(t *testing.T, rootPackage string, tpls ...pkgTemplate) *fixture {
	t.Helper()
	f := &fixture{
		loader:  template.MapCompiledTemplateLoader{},
		builder: dispatch.NewBuilder(rootPackage),
		globals: map[string]value.Value{},
	}
	for _, tpl := range tpls {
		compiled, err := template.Compile(tpl.name, []byte(tpl.src), texttemplate.LexOptions{})
		require.NoError(t, err)
		f.loader[tpl.name] = compiled
		f.builder.AddTemplate(tpl.pkg, compiled)
	}
	return f
}

func (f *fixture) render(t *testing.T, reg *dispatch.Registry, tplName string, root *value.Map) (string, error) {
	t.Helper()
	machine := vm.New(vm.Options{Loader: f.loader, Resolver: reg, Globals: f.globals})
	return machine.Render(context.Background(), f.loader[tplName], root)
}

func mapOf(pairs ...string) *value.Map {
	m := value.NewMap()
	for i := 0; i+1 < len(pairs); i += 2 {
		m.SetString(pairs[i], value.FromString(pairs[i+1]))
	}
	return m
}

func TestBareNamesResolveSelfFirstThenDispatchOrder(t *testing.T) {
	f := newFixture(t, "app",
		pkgTemplate{"pkgA", "pkgA/m.sql", `{% macro m() %}A{% endmacro %}`},
		pkgTemplate{"pkgB", "pkgB/m.sql", `{% macro m() %}B{% endmacro %}`},
		pkgTemplate{"pkgB", "pkgB/caller.sql", `{% macro call_m() %}{{ m() }}{% endmacro %}`},
		pkgTemplate{"pkgC", "pkgC/caller.sql", `{% macro call_m() %}{{ m() }}{% endmacro %}`},
		pkgTemplate{"app", "app/main.sql", `{{ m() }}|{{ pkgB.call_m() }}|{{ pkgC.call_m() }}`},
	)
	reg, err := f.builder.DispatchOrder("app", "pkgA", "pkgB").Build()
	require.NoError(t, err)

	assert.Equal(t, []string{"pkgB", "pkgA"}, reg.SearchOrder("pkgB"))
	assert.Equal(t, []string{"pkgC", "pkgA", "pkgB"}, reg.SearchOrder("pkgC"))

	entry, found := reg.ResolveFrom("pkgB", "m")
	require.True(t, found)
	assert.Equal(t, "pkgB.m", entry.QualifiedName())

	entry, found = reg.ResolveFrom("pkgC", "m")
	require.True(t, found)
	assert.Equal(t, "pkgA.m", entry.QualifiedName())

	out, err := f.render(t, reg, "app/main.sql", nil)
	require.NoError(t, err)
	assert.Equal(t, "A|B|A", out)
}

func TestBareNamesWithoutOrderUseRootThenInternalPackages(t *testing.T) {
	f := newFixture(t, "app",
		pkgTemplate{"dbt", "dbt/m.sql", `{% macro m() %}internal{% endmacro %}{% macro n() %}internal-n{% endmacro %}`},
		pkgTemplate{"app", "app/m.sql", `{% macro m() %}root{% endmacro %}`},
		pkgTemplate{"app", "app/main.sql", `{{ m() }} {{ n() }}`},
	)
	reg, err := f.builder.InternalPackages("dbt").Build()
	require.NoError(t, err)

	assert.Equal(t, []string{"app", "dbt"}, reg.SearchOrder("app"))

	out, err := f.render(t, reg, "app/main.sql", nil)
	require.NoError(t, err)
	assert.Equal(t, "root internal-n", out)
}

func TestNamespaceWithDispatchOrder(t *testing.T) {
	f := newFixture(t, "app",
		pkgTemplate{"pkgA", "pkgA/m.sql", `{% macro m() %}A{% endmacro %}{% macro only_a() %}onlyA{% endmacro %}`},
		pkgTemplate{"pkgB", "pkgB/m.sql", `{% macro m() %}B{% endmacro %}`},
		pkgTemplate{"app", "app/main.sql", `{{ N.m() }} {{ N.only_a() }} {{ pkgA.m() }}`},
	)
	reg, err := f.builder.DispatchOrder("N", "pkgB", "pkgA").Build()
	require.NoError(t, err)

	out, err := f.render(t, reg, "app/main.sql", nil)
	require.NoError(t, err)
	assert.Equal(t, "B onlyA A", out)
}

func TestNamespacedCallsUsePackageContext(t *testing.T) {
	f := newFixture(t, "app",
		pkgTemplate{"pkgA", "pkgA/m.sql", `{% macro whoami() %}{{ who }}{% endmacro %}`},
		pkgTemplate{"app", "app/main.sql", `{{ who }}:{{ pkgA.whoami() }}`},
	)
	reg, err := f.builder.PackageContext("pkgA", mapOf("who", "pkgA-ctx")).Build()
	require.NoError(t, err)

	out, err := f.render(t, reg, "app/main.sql", mapOf("who", "root"))
	require.NoError(t, err)
	assert.Equal(t, "root:pkgA-ctx", out)
}

func TestNamespaceMissingMacroIsError(t *testing.T) {
	f := newFixture(t, "app",
		pkgTemplate{"pkgA", "pkgA/m.sql", `{% macro m() %}A{% endmacro %}`},
		pkgTemplate{"app", "app/main.sql", `{{ pkgA.nope() }}`},
	)
	reg, err := f.builder.Build()
	require.NoError(t, err)

	_, err = f.render(t, reg, "app/main.sql", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No macro named 'nope' found in namespace 'pkgA'")
}

func TestInterceptorSeesCallsBeforeDelegation(t *testing.T) {
	f := newFixture(t, "app",
		pkgTemplate{"pkgA", "pkgA/m.sql", `{% macro m(x) %}[{{ x }}]{% endmacro %}`},
		pkgTemplate{"app", "app/main.sql", `{{ pkgA.m(1) }}{{ pkgA.m(2) }}`},
	)

	var lock sync.Mutex
	var calls []string
	reg, err := f.builder.Intercept("m", func(_ value.State, namespace, macro string, args []value.Value) {
		lock.Lock()
		defer lock.Unlock()
		calls = append(calls, namespace+"."+macro+"("+args[0].String()+")")
	}).Build()
	require.NoError(t, err)

	out, err := f.render(t, reg, "app/main.sql", nil)
	require.NoError(t, err)
	assert.Equal(t, "[1][2]", out)
	assert.Equal(t, []string{"pkgA.m(1)", "pkgA.m(2)"}, calls)
}

func TestBuilderValidation(t *testing.T) {
	unit := &template.MacroUnit{Name: "m"}

	_, err := dispatch.NewBuilder("app").
		AddMacro("app.m", "a.sql", unit).
		AddMacro("app.m", "b.sql", unit).
		Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Expected macro 'app.m' to be defined once, but found it in templates 'a.sql' and 'b.sql'")

	_, err = dispatch.NewBuilder("app").AddMacro("nodot", "a.sql", unit).Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "to have form 'package.macro'")

	_, err = dispatch.NewBuilder("app").DispatchOrder("app", "ghost").Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "'ghost' is unknown")

	_, err = dispatch.NewBuilder("app").DispatchOrder("app", "app", "app").Build()
	require.Error(t, err)

	b := dispatch.NewBuilder("app")
	_, err = b.Build()
	require.NoError(t, err)
	_, err = b.Build()
	require.Error(t, err)
}

func TestEntriesAreOrdered(t *testing.T) {
	reg, err := dispatch.NewBuilder("app").
		AddMacro("pkg.z", "z.sql", &template.MacroUnit{Name: "z"}).
		AddMacro("app.b", "b.sql", &template.MacroUnit{Name: "b"}).
		AddMacro("app.a", "a.sql", &template.MacroUnit{Name: "a"}).
		Build()
	require.NoError(t, err)

	var names []string
	for _, e := range reg.Entries() {
		names = append(names, e.QualifiedName())
	}
	assert.Equal(t, []string{"app.a", "app.b", "pkg.z"}, names)
	assert.Equal(t, []string{"app", "pkg"}, reg.Packages())
	assert.Equal(t, "pkg", reg.PackageOf("z.sql"))
	assert.Equal(t, "app", reg.PackageOf("unknown.sql"))
}

func TestConcurrentRendersShareRegistry(t *testing.T) {
	f := newFixture(t, "app",
		pkgTemplate{"pkgA", "pkgA/m.sql", `{% macro m(x) %}<{{ x }}>{% endmacro %}`},
		pkgTemplate{"app", "app/main.sql", `{% for i in items %}{{ m(i) }}{% endfor %}`},
	)
	reg, err := f.builder.InternalPackages("pkgA").Build()
	require.NoError(t, err)

	root := value.NewMap()
	root.SetString("items", value.FromSlice([]value.Value{value.FromInt(1), value.FromInt(2)}))

	var wg sync.WaitGroup
	outs := make([]string, 8)
	errs := make([]error, 8)
	for i := range outs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outs[i], errs[i] = f.render(t, reg, "app/main.sql", root)
		}(i)
	}
	wg.Wait()

	for i := range outs {
		require.NoError(t, errs[i])
		assert.Equal(t, "<1><2>", outs[i])
	}
}
