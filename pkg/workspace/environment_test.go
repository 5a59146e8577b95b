// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package workspace_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"carvel.dev/jtt/pkg/template"
	"carvel.dev/jtt/pkg/typecheck"
	"carvel.dev/jtt/pkg/value"
	"carvel.dev/jtt/pkg/vm"
	"carvel.dev/jtt/pkg/workspace"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBuilder() *workspace.Builder {
	return workspace.NewBuilder(workspace.EnvironmentOpts{RootPackage: "app", InternalPackages: []string{"utils"}}).
		AddTemplate("utils", "utils/strings.sql",
			[]byte("-- funcsign: (string) -> string\n{% macro shout(s) %}{{ s|upper }}!{% endmacro %}"+
				`{% macro default__quote(s) %}'{{ s }}'{% endmacro %}`)).
		AddTemplate("app", "app/main.sql",
			[]byte(`{{ utils.shout(name) }} {{ shout("bare") }} {{ adapter.dispatch("quote", "utils")("q") }}`))
}

func TestRenderAcrossPackages(t *testing.T) {
	env, err := newBuilder().Build()
	require.NoError(t, err)

	root := value.NewMap()
	root.SetString("name", value.FromString("ann"))

	out, err := env.Render(context.Background(), "app/main.sql", root)
	require.NoError(t, err)
	assert.Equal(t, "ANN! BARE! 'q'", out)
	assert.Equal(t, []string{"utils/strings.sql", "app/main.sql"}, env.TemplateNames())
	assert.Equal(t, "utils", env.Registry().PackageOf("utils/strings.sql"))
	assert.Equal(t, []string{"app/main.sql"}, env.PackageTemplateNames(env.RootPackage()))
}

func TestRenderUnknownTemplate(t *testing.T) {
	env, err := newBuilder().Build()
	require.NoError(t, err)

	_, err = env.Render(context.Background(), "missing.sql", nil)
	var notFound template.TemplateNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "missing.sql", notFound.Name)
}

func TestHostFunctionsFiltersAndTests(t *testing.T) {
	env, err := workspace.NewBuilder(workspace.EnvironmentOpts{}).
		AddGlobal("greeting", value.FromString("hi")).
		AddFunction("twice", func(_ value.State, args []value.Value, _ *value.Kwargs) (value.Value, error) {
			return value.FromString(args[0].String() + args[0].String()), nil
		}).
		AddFilter("bracket", func(_ value.State, args []value.Value, _ *value.Kwargs) (value.Value, error) {
			return value.FromString("[" + args[0].String() + "]"), nil
		}).
		AddTest("short", func(_ value.State, args []value.Value, _ *value.Kwargs) (value.Value, error) {
			return value.FromBool(len(args[0].String()) < 3), nil
		}).
		AddTemplate(workspace.DefaultRootPackage, "main.sql",
			[]byte(`{{ twice(greeting)|bracket }} {{ greeting is short }} {{ "long" is short }}`)).
		Build()
	require.NoError(t, err)

	out, err := env.Render(context.Background(), "main.sql", nil)
	require.NoError(t, err)
	assert.Equal(t, "[hihi] True False", out)
}

func TestBuildReportsAllErrors(t *testing.T) {
	_, err := workspace.NewBuilder(workspace.EnvironmentOpts{}).
		AddTemplate("root", "a.sql", []byte(`{% if x %}`)).
		AddTemplate("root", "b.sql", []byte(`{{ 1 + }}`)).
		AddTemplate("root", "b.sql", []byte(`ok`)).
		DispatchOrder("ns", "nope").
		Build()
	require.Error(t, err)

	msg := err.Error()
	assert.Contains(t, msg, "Expected template 'b.sql' to be added once")
	assert.Contains(t, msg, "Compiling template 'a.sql'")
	assert.Contains(t, msg, "Compiling template 'b.sql'")
	assert.Contains(t, msg, "'nope' is unknown")
}

func TestCompileIsCachedByName(t *testing.T) {
	env, err := workspace.NewBuilder(workspace.EnvironmentOpts{}).
		AddTemplate("root", "main.sql", []byte(`{% include "adhoc.sql" %}`)).
		Build()
	require.NoError(t, err)

	first, err := env.Compile("adhoc.sql", []byte(`one`))
	require.NoError(t, err)
	second, err := env.Compile("adhoc.sql", []byte(`one`))
	require.NoError(t, err)
	assert.Same(t, first, second)

	out, err := env.Render(context.Background(), "main.sql", nil)
	require.NoError(t, err)
	assert.Equal(t, "one", out)

	replaced, err := env.Compile("adhoc.sql", []byte(`two`))
	require.NoError(t, err)
	assert.NotSame(t, first, replaced)

	out, err = env.Render(context.Background(), "main.sql", nil)
	require.NoError(t, err)
	assert.Equal(t, "two", out)

	_, err = env.Compile("main.sql", []byte(`x`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "conflict with a package template")
}

func TestConcurrentRendersAreIndependent(t *testing.T) {
	env, err := newBuilder().Build()
	require.NoError(t, err)

	const workers = 16
	var wg sync.WaitGroup
	outs := make([]string, workers)
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			root := value.NewMap()
			root.SetString("name", value.FromString(fmt.Sprintf("n%d", i)))
			if _, err := env.Compile("shared.sql", []byte(`{{ name }}`)); err != nil {
				errs[i] = err
				return
			}
			outs[i], errs[i] = env.Render(context.Background(), "app/main.sql", root)
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, fmt.Sprintf("N%d! BARE! 'q'", i), outs[i])
	}
}

func TestRenderSourceUsesItsOwnCompilation(t *testing.T) {
	env, err := newBuilder().Build()
	require.NoError(t, err)

	const workers = 16
	var wg sync.WaitGroup
	outs := make([]string, workers)
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			src := []byte(fmt.Sprintf("source %d", i))
			outs[i], errs[i] = env.RenderSource(context.Background(), "shared.sql", src, nil)
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, fmt.Sprintf("source %d", i), outs[i])
	}
}

func TestRenderReport(t *testing.T) {
	env, err := newBuilder().Build()
	require.NoError(t, err)

	recording := vm.NewRecordingListener()
	_, first, err := env.RenderWithReport(context.Background(), "app/main.sql", nil, recording)
	require.NoError(t, err)
	_, second, err := env.RenderWithReport(context.Background(), "app/main.sql", nil)
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, first.ID)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, "app/main.sql", first.Template)
	assert.Equal(t, 2, first.MacroCalls["shout"])
	assert.Equal(t, []string{"default__quote", "shout"}, first.MacroNames())
	assert.Equal(t, 2, recording.MacroCalls("shout"))
}

func TestTypecheckSeesPackageMacrosAndHostValues(t *testing.T) {
	env, err := newBuilder().
		AddGlobal("custom", value.FromString("x")).
		AddTemplate("app", "app/check.sql", []byte(`{{ utils.shout(1) }}{{ shout("ok") }}{{ custom.anything }}{{ nope }}`)).
		Build()
	require.NoError(t, err)

	listener := typecheck.NewCollectingListener()
	require.NoError(t, env.Typecheck("app/check.sql", listener))

	var errMsgs, warnMsgs []string
	for _, d := range listener.Errors() {
		errMsgs = append(errMsgs, d.Message)
	}
	for _, d := range listener.Warnings() {
		warnMsgs = append(warnMsgs, d.Message)
	}
	require.Len(t, errMsgs, 1)
	assert.Contains(t, errMsgs[0], "argument 's' expects string, found integer(1)")
	assert.Equal(t, []string{"Unknown variable 'nope'"}, warnMsgs)
}

func TestTypecheckUnknownTemplate(t *testing.T) {
	env, err := newBuilder().Build()
	require.NoError(t, err)
	require.Error(t, env.Typecheck("missing.sql", typecheck.NoopListener{}))
}
