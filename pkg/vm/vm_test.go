// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package vm_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"carvel.dev/jtt/pkg/template"
	"carvel.dev/jtt/pkg/texttemplate"
	"carvel.dev/jtt/pkg/value"
	"carvel.dev/jtt/pkg/vm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type env struct {
	t         *testing.T
	templates template.MapCompiledTemplateLoader
	opts      vm.Options
}

func newEnv(t *testing.T, sources map[string]string) *env {
	t.Helper()
	loader := template.MapCompiledTemplateLoader{}
	for name, src := range sources {
		tpl, err := template.Compile(name, []byte(src), texttemplate.LexOptions{})
		require.NoError(t, err, "compiling %s", name)
		loader[name] = tpl
	}
	return &env{t: t, templates: loader, opts: vm.Options{
		Loader: loader,
		Filters: map[string]value.Value{
			"upper": fn("upper", func(args []value.Value) (value.Value, error) {
				return value.FromString(strings.ToUpper(args[0].String())), nil
			}),
			"abs": fn("abs", func(args []value.Value) (value.Value, error) {
				return value.Abs(args[0])
			}),
		},
		Tests: map[string]value.Value{
			"defined": fn("defined", func(args []value.Value) (value.Value, error) {
				return value.FromBool(!args[0].IsUndefined()), nil
			}),
		},
		Globals: map[string]value.Value{
			"namespace": fn("namespace", func(args []value.Value) (value.Value, error) {
				_, kwargs := value.SplitKwargs(args)
				return value.FromObject(value.NewNamespace(kwargs.AsMap())), nil
			}),
		},
	}}
}

func fn(name string, f func(args []value.Value) (value.Value, error)) value.Value {
	return value.FromObject(value.NewFunction(name, func(_ value.State, args []value.Value) (value.Value, error) {
		return f(args)
	}))
}

func (e *env) render(name string, ctx map[string]interface{}, listeners ...vm.Listener) (string, error) {
	root, _ := value.FromGo(ctx).AsMap()
	return vm.New(e.opts).Render(context.Background(), e.templates[name], root, listeners...)
}

func renderOne(t *testing.T, src string, ctx map[string]interface{}) string {
	t.Helper()
	out, err := newEnv(t, map[string]string{"t": src}).render("t", ctx)
	require.NoError(t, err)
	return out
}

func TestRenderExpressions(t *testing.T) {
	cases := []struct {
		src      string
		expected string
	}{
		{"{{ 1 + 2 * 3 }}", "7"},
		{"{{ 7 // 2 }} {{ 7 % 3 }} {{ 2 ** 10 }}", "3 1 1024"},
		{"{{ 'a' ~ 1 ~ none }}", "a1None"},
		{"{{ 'b' in 'abc' }}", "True"},
		{"{{ [1, 2, 3][1:] }}", "[2, 3]"},
		{"{{ 'hello'[::-1] }}", "olleh"},
		{"{{ {'a': 1}.a }}", "1"},
		{"{{ x.y.z }}", ""},
		{"{{ -x.n }}", "-5"},
		{"{{ 'hi' | upper }}", "HI"},
		{"{{ not x.n }}", "False"},
		{"{{ 1 < 2 and 3 >= 3 }}", "True"},
		{"{{ none is defined }} {{ nope is defined }}", "True False"},
	}
	for _, tc := range cases {
		t.Run(tc.src, func(t *testing.T) {
			out := renderOne(t, tc.src, map[string]interface{}{"x": map[string]interface{}{"n": 5}})
			assert.Equal(t, tc.expected, out)
		})
	}
}

func TestSetAndNamespaces(t *testing.T) {
	out := renderOne(t, `{% set ns = namespace(count=0) %}{% for i in [1, 2, 3] %}{% set ns.count = ns.count + i %}{% endfor %}{{ ns.count }}`, nil)
	assert.Equal(t, "6", out)

	out = renderOne(t, `{% set a, b = [1, 2] %}{{ b }}{{ a }}`, nil)
	assert.Equal(t, "21", out)

	out = renderOne(t, `{% set body %}x{{ 1 }}{% endset %}[{{ body }}]`, nil)
	assert.Equal(t, "[x1]", out)
}

func TestSetAttrOnPlainValueFails(t *testing.T) {
	_, err := newEnv(t, map[string]string{"t": `{% set x = 1 %}{% set x.y = 2 %}`}).render("t", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "can only assign to namespaces")
}

func TestUnpackWrongLength(t *testing.T) {
	_, err := newEnv(t, map[string]string{"t": `{% set a, b = [1, 2, 3] %}`}).render("t", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sequence of wrong length (expected 2, got 3)")
}

func TestForLoops(t *testing.T) {
	ctx := map[string]interface{}{"items": []interface{}{"a", "b", "c"}}

	out := renderOne(t, `{% for x in items %}{{ loop.index }}{{ x }}{% if not loop.last %},{% endif %}{% endfor %}`, ctx)
	assert.Equal(t, "1a,2b,3c", out)

	out = renderOne(t, `{% for x in items %}{{ loop.revindex0 }}{{ loop.previtem }}{% endfor %}`, ctx)
	assert.Equal(t, "2"+"1a"+"0b", out)

	out = renderOne(t, `{% for x in items %}{{ loop.cycle('odd', 'even') }} {% endfor %}`, ctx)
	assert.Equal(t, "odd even odd ", out)

	out = renderOne(t, `{% for x in [] %}{{ x }}{% else %}empty{% endfor %}`, nil)
	assert.Equal(t, "empty", out)
}

func TestForLoopFilterAndControl(t *testing.T) {
	env := newEnv(t, map[string]string{
		"filter": `{% for x in [1, 2, 3, 4] if x > 2 %}{{ loop.index }}:{{ x }} {% endfor %}`,
		"break":  `{% for x in [1, 2, 3, 4] %}{% if x == 3 %}{% break %}{% endif %}{{ x }}{% endfor %}`,
		"cont":   `{% for x in [1, 2, 3, 4] %}{% if x == 2 %}{% continue %}{% endif %}{{ x }}{% endfor %}`,
		"unpack": `{% for k, v in [['a', 1], ['b', 2]] %}{{ k }}={{ v }};{% endfor %}`,
	})
	for name, expected := range map[string]string{
		"filter": "1:3 2:4 ",
		"break":  "12",
		"cont":   "134",
		"unpack": "a=1;b=2;",
	} {
		out, err := env.render(name, nil)
		require.NoError(t, err, name)
		assert.Equal(t, expected, out, name)
	}
}

func TestRecursiveLoop(t *testing.T) {
	ctx := map[string]interface{}{"tree": []interface{}{
		map[string]interface{}{"name": "a", "children": []interface{}{
			map[string]interface{}{"name": "b", "children": []interface{}{}},
		}},
		map[string]interface{}{"name": "c", "children": []interface{}{}},
	}}

	out := renderOne(t, `{% for n in tree recursive %}{{ loop.depth }}{{ n.name }}{% if n.children %}({{ loop(n.children) }}){% endif %}{% endfor %}`, ctx)
	assert.Equal(t, "1a(2b)1c", out)
}

func TestMacros(t *testing.T) {
	env := newEnv(t, map[string]string{
		"defaults": `{% macro greet(name, greeting='hello') %}{{ greeting }} {{ name }}{% endmacro %}{{ greet('bob') }}|{{ greet('amy', greeting='hi') }}`,
		"varargs":  `{% macro m(a) %}{{ a }}{{ varargs }}{{ kwargs }}{% endmacro %}{{ m(1, 2, 3, x=4) }}`,
		"caller":   `{% macro wrap() %}<{{ caller() }}>{% endmacro %}{% call wrap() %}inner{% endcall %}`,
		"return":   `{% macro twice(x) %}ignored{{ return(x * 2) }}{% endmacro %}{{ twice(21) + 0 }}`,
		"closure":  `{% set prefix = 'p_' %}{% macro name(x) %}{{ prefix }}{{ x }}{% endmacro %}{% for i in [1] %}{{ name(i) }}{% endfor %}`,
		"attrs":    `{% macro m(a, b) %}{% endmacro %}{{ m.name }} {{ m.arguments }}`,
	})
	for name, expected := range map[string]string{
		"defaults": "hello bob|hi amy",
		"varargs":  "1[2, 3]{'x': 4}",
		"caller":   "<inner>",
		"return":   "42",
		"closure":  "p_1",
		"attrs":    "m ['a', 'b']",
	} {
		out, err := env.render(name, nil)
		require.NoError(t, err, name)
		assert.Equal(t, expected, out, name)
	}
}

func TestMacroArgumentErrors(t *testing.T) {
	env := newEnv(t, map[string]string{
		"missing":   `{% macro m(a, b) %}{% endmacro %}{{ m(1) }}`,
		"extra":     `{% macro m(a) %}{% endmacro %}{{ m(1, 2) }}`,
		"duplicate": `{% macro m(a) %}{% endmacro %}{{ m(1, a=2) }}`,
		"kwarg":     `{% macro m(a) %}{% endmacro %}{{ m(1, z=2) }}`,
	})
	for name, msg := range map[string]string{
		"missing":   "macro m is missing required argument 'b'",
		"extra":     "macro m takes at most 1 argument(s), got 2",
		"duplicate": "macro m got duplicate argument 'a'",
		"kwarg":     "macro m got unexpected keyword argument(s): z",
	} {
		_, err := env.render(name, nil)
		require.Error(t, err, name)
		assert.Contains(t, err.Error(), msg, name)
	}
}

func TestMacroErrorCarriesMacroStack(t *testing.T) {
	env := newEnv(t, map[string]string{
		"t": "{% macro inner() %}{{ nope() }}{% endmacro %}\n{% macro outer() %}{{ inner() }}{% endmacro %}\nok {{ outer() }}",
	})
	out, err := env.render("t", nil)
	require.Error(t, err)
	assert.Equal(t, "\n\nok ", out)

	var renderErr *vm.RenderError
	require.True(t, errors.As(err, &renderErr))
	assert.Equal(t, []vm.MacroFrame{{Name: "inner", Count: 1}, {Name: "outer", Count: 1}}, renderErr.MacroStack)
	assert.Equal(t, "\n\nok ", renderErr.Output)
	assert.True(t, value.IsErrorKind(err, value.ErrUnknownFunction))
	assert.Contains(t, err.Error(), "function nope is unknown")
	assert.Contains(t, err.Error(), "in macro 'inner'")
}

func TestRecursionLimit(t *testing.T) {
	env := newEnv(t, map[string]string{
		"t": `{% macro f(n) %}{{ f(n + 1) }}{% endmacro %}{{ f(0) }}`,
	})
	env.opts.RecursionLimit = 20
	_, err := env.render("t", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recursion limit exceeded")
}

func TestRecursiveMacroFramesCollapse(t *testing.T) {
	env := newEnv(t, map[string]string{
		"t": `{% macro r(n) %}{% if n > 0 %}{{ r(n - 1) }}{% else %}{{ nope() }}{% endif %}{% endmacro %}` +
			`{% macro outer() %}{{ r(4) }}{% endmacro %}{{ outer() }}`,
	})
	_, err := env.render("t", nil)
	require.Error(t, err)

	var renderErr *vm.RenderError
	require.True(t, errors.As(err, &renderErr))
	assert.Equal(t, []vm.MacroFrame{{Name: "r", Count: 5}, {Name: "outer", Count: 1}}, renderErr.MacroStack)
	assert.Contains(t, err.Error(), "\n    in macro 'r' (x5)\n    in macro 'outer'")
	assert.NotContains(t, err.Error(), "outer' (x")
}

func TestIncludeImportAndInheritance(t *testing.T) {
	env := newEnv(t, map[string]string{
		"base":    `<{% block head %}base-head{% endblock %}|{% block body %}base-body{% endblock %}>`,
		"child":   `{% extends 'base' %}ignored{% block body %}child[{{ super() }}]{% endblock %}`,
		"grand":   `{% extends 'child' %}{% block head %}grand-head{% endblock %}`,
		"part":    `part:{{ who }}`,
		"inc":     `{% set who = 'me' %}{% include 'part' %}{% include 'missing' ignore missing %}`,
		"lib":     `{% set constant = 42 %}{% macro hello(x) %}hello {{ x }}{% endmacro %}`,
		"imp":     `{% import 'lib' as lib %}{{ lib.hello(lib.constant) }}`,
		"fromimp": `{% from 'lib' import hello as hi, constant %}{{ hi(constant) }}`,
		"twice":   `{% extends 'base' %}{% extends 'base' %}`,
	})

	for name, expected := range map[string]string{
		"child":   "<base-head|child[base-body]>",
		"grand":   "<grand-head|child[base-body]>",
		"inc":     "part:me",
		"imp":     "hello 42",
		"fromimp": "hello 42",
	} {
		out, err := env.render(name, nil)
		require.NoError(t, err, name)
		assert.Equal(t, expected, out, name)
	}

	_, err := env.render("twice", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tried to extend a second time")
}

func TestIncludeMissingTemplate(t *testing.T) {
	env := newEnv(t, map[string]string{"t": `{% include 'nope' %}`})
	_, err := env.render("t", nil)
	require.Error(t, err)

	var notFound template.TemplateNotFoundError
	assert.True(t, errors.As(err, &notFound))
}

func TestUndefinedBehaviors(t *testing.T) {
	src := map[string]string{
		"attr":   `[{{ missing.attr }}]`,
		"method": `[{{ missing.upper() }}]`,
		"loop":   `[{% for x in missing %}{{ x }}{% endfor %}]`,
		"cond":   `[{% if missing %}yes{% endif %}]`,
	}

	env := newEnv(t, src)
	for _, name := range []string{"attr", "loop", "cond"} {
		out, err := env.render(name, nil)
		require.NoError(t, err, name)
		assert.Equal(t, "[]", out, name)
	}
	_, err := env.render("method", nil)
	require.Error(t, err, "method calls on undefined need chainable mode")

	env.opts.Undefined = vm.UndefinedChainable
	out, err := env.render("method", nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", out)

	env.opts.Undefined = vm.UndefinedStrict
	for name := range src {
		_, err := env.render(name, nil)
		require.Error(t, err, name)
		assert.True(t, value.IsErrorKind(err, value.ErrUndefined), name)
	}
}

func TestRenderErrorPosition(t *testing.T) {
	env := newEnv(t, map[string]string{"t": "line one\n{{ 1 + 'x' }}"})
	out, err := env.render("t", nil)
	require.Error(t, err)
	assert.Equal(t, "line one\n", out)

	var renderErr *vm.RenderError
	require.True(t, errors.As(err, &renderErr))
	assert.Equal(t, "t", renderErr.Template)
	assert.Equal(t, 2, renderErr.Span.StartLine)
}

func TestAbsOverflowIsRenderError(t *testing.T) {
	env := newEnv(t, map[string]string{"t": `{{ x | abs }}`})
	root := value.NewMap()
	root.SetString("x", value.MinWideInt())

	_, err := vm.New(env.opts).Render(context.Background(), env.templates["t"], root)
	require.Error(t, err)
	assert.True(t, value.IsErrorKind(err, value.ErrOverflow))
}

func TestRenderIsDeterministic(t *testing.T) {
	env := newEnv(t, map[string]string{
		"t": `{% for k, v in data.items() %}{{ k }}={{ v }};{% endfor %}`,
	})
	ctx := map[string]interface{}{"data": map[string]interface{}{"z": 1, "a": 2, "m": 3}}

	first, err := env.render("t", ctx)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		out, err := env.render("t", ctx)
		require.NoError(t, err)
		assert.Equal(t, first, out)
	}
}

func TestAutoEscape(t *testing.T) {
	env := newEnv(t, map[string]string{
		"t": `{{ v }}|{% autoescape false %}{{ v }}{% endautoescape %}`,
	})
	env.opts.AutoEscape = true
	out, err := env.render("t", map[string]interface{}{"v": "<b>"})
	require.NoError(t, err)
	assert.Equal(t, "&lt;b&gt;|<b>", out)
}

func TestModuleExportsTopLevelDefinitions(t *testing.T) {
	env := newEnv(t, map[string]string{
		"lib": `output{% set a = 1 %}{% macro m() %}x{% endmacro %}`,
	})
	module, err := vm.New(env.opts).Module(context.Background(), env.templates["lib"], nil)
	require.NoError(t, err)

	var names []string
	for _, k := range module.Keys() {
		names = append(names, k.String())
	}
	assert.Equal(t, []string{"a", "m"}, names)
}

func TestCancelledContextStopsLoops(t *testing.T) {
	env := newEnv(t, map[string]string{"t": `{% for x in [1, 2] %}{{ x }}{% endfor %}`})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := vm.New(env.opts).Render(ctx, env.templates["t"], nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestListenersObserveRender(t *testing.T) {
	env := newEnv(t, map[string]string{
		"t": `{% macro m() %}{% endmacro %}{{ m() }}{{ m() }}{{ ref('orders') }}`,
	})
	env.opts.Globals["ref"] = fn("ref", func(args []value.Value) (value.Value, error) {
		return value.FromString("db." + args[0].String()), nil
	})

	listener := vm.NewRecordingListener()
	out, err := env.render("t", nil, listener)
	require.NoError(t, err)
	assert.Equal(t, "db.orders", out)

	assert.Equal(t, []string{"m"}, listener.Definitions())
	assert.Equal(t, 2, listener.MacroCalls("m"))
	assert.Contains(t, listener.References(), "ref")

	refs := listener.ModelReferences()
	require.Len(t, refs, 1)
	assert.Equal(t, "ref", refs[0].Kind)
	assert.Equal(t, []string{"orders"}, refs[0].Args)
}

func TestUnknownFilterAndTestSuggestNames(t *testing.T) {
	env := newEnv(t, map[string]string{
		"f": `{{ "a"|uper }}`,
		"t": `{{ 1 is defind }}`,
	})

	_, err := env.render("f", nil)
	require.Error(t, err)
	assert.True(t, value.IsErrorKind(err, value.ErrUnknownFilter))
	assert.Contains(t, err.Error(), "filter uper is unknown (did you mean 'upper'?)")

	_, err = env.render("t", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "test defind is unknown (did you mean 'defined'?)")
}
