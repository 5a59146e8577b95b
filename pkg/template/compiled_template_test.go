// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package template_test

import (
	"errors"
	"strings"
	"testing"

	"carvel.dev/jtt/pkg/template"
	"carvel.dev/jtt/pkg/texttemplate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compile(t *testing.T, src string) *template.CompiledTemplate {
	t.Helper()
	tpl, err := template.Compile("tpl.sql", []byte(src), texttemplate.LexOptions{})
	require.NoError(t, err)
	return tpl
}

func listing(lines ...string) string {
	return strings.Join(lines, "\n")
}

func TestCompileIfElse(t *testing.T) {
	tpl := compile(t, "{% if x %}a{% else %}b{% endif %}")

	assert.Equal(t, listing(
		"   0: Lookup x",
		"   1: JumpIfFalse -> 4",
		"   2: EmitRaw 'a'",
		"   3: Jump -> 5",
		"   4: EmitRaw 'b'",
	), tpl.Instructions().DebugString())
}

func TestCompileShortCircuitBoolOps(t *testing.T) {
	tpl := compile(t, "{{ a and b or c }}")

	assert.Equal(t, listing(
		"   0: Lookup a",
		"   1: JumpIfFalseOrPop -> 3",
		"   2: Lookup b",
		"   3: JumpIfTrueOrPop -> 5",
		"   4: Lookup c",
		"   5: Emit",
	), tpl.Instructions().DebugString())
}

func TestCompileForLoopWithElse(t *testing.T) {
	tpl := compile(t, "{% for x in items %}{{ x }}{% else %}none{% endfor %}")

	assert.Equal(t, listing(
		"   0: Lookup items",
		"   1: PushLoop 1",
		"   2: Iterate -> 7",
		"   3: StoreLocal x",
		"   4: Lookup x",
		"   5: Emit",
		"   6: Jump -> 2",
		"   7: PushDidNotIterate",
		"   8: PopFrame",
		"   9: JumpIfFalse -> 11",
		"  10: EmitRaw 'none'",
	), tpl.Instructions().DebugString())
}

func TestCompileBreakIsPatchedToLoopEnd(t *testing.T) {
	tpl := compile(t, "{% for x in items %}{% break %}{% endfor %}")

	assert.Equal(t, listing(
		"   0: Lookup items",
		"   1: PushLoop 1",
		"   2: Iterate -> 6",
		"   3: StoreLocal x",
		"   4: Jump -> 6",
		"   5: Jump -> 2",
		"   6: PopFrame",
	), tpl.Instructions().DebugString())
}

func TestCompileConstantFolding(t *testing.T) {
	t.Run("unary minus", func(t *testing.T) {
		tpl := compile(t, "{{ -1 }}")
		assert.Equal(t, listing("   0: LoadConst -1", "   1: Emit"), tpl.Instructions().DebugString())
	})

	t.Run("binary op over constants", func(t *testing.T) {
		tpl := compile(t, "{{ 2 * 3 }}{{ 'a' ~ 1 }}")
		assert.Equal(t, listing(
			"   0: LoadConst 6",
			"   1: Emit",
			"   2: LoadConst 'a1'",
			"   3: Emit",
		), tpl.Instructions().DebugString())
	})

	t.Run("list literals are built per evaluation", func(t *testing.T) {
		tpl := compile(t, "{{ [1, 2] }}{{ (1, 2) }}")
		assert.Equal(t, listing(
			"   0: LoadConst 1",
			"   1: LoadConst 2",
			"   2: BuildList 2",
			"   3: Emit",
			"   4: LoadConst [1, 2]",
			"   5: Emit",
		), tpl.Instructions().DebugString())
	})

	t.Run("failing op is deferred to runtime", func(t *testing.T) {
		tpl := compile(t, "{{ 1 / 0 }}")
		assert.Equal(t, listing(
			"   0: LoadConst 1",
			"   1: LoadConst 0",
			"   2: Div",
			"   3: Emit",
		), tpl.Instructions().DebugString())
	})
}

func TestCompileModelReference(t *testing.T) {
	tpl := compile(t, "{{ ref('model_a') }}{{ source('raw', 'events') }}{{ ref(name) }}")

	assert.Equal(t, listing(
		"   0: LoadConst 'model_a'",
		"   1: ModelReference ref ['model_a']",
		"   2: CallFunction ref/1",
		"   3: Emit",
		"   4: LoadConst 'raw'",
		"   5: LoadConst 'events'",
		"   6: ModelReference source ['raw', 'events']",
		"   7: CallFunction source/2",
		"   8: Emit",
		"   9: Lookup name",
		"  10: CallFunction ref/1",
		"  11: Emit",
	), tpl.Instructions().DebugString())
}

func TestCompileCallArguments(t *testing.T) {
	tpl := compile(t, "{{ f(1, k=x) }}{{ f(*args) }}{{ obj.m(**kw) }}")

	assert.Equal(t, listing(
		"   0: LoadConst 1",
		"   1: LoadConst 'k'",
		"   2: Lookup x",
		"   3: BuildKwargs 1",
		"   4: CallFunction f/2",
		"   5: Emit",
		"   6: Lookup args",
		"   7: UnpackLists 1",
		"   8: CallFunction f/*",
		"   9: Emit",
		"  10: Lookup obj",
		"  11: Lookup kw",
		"  12: MergeKwargs 1",
		"  13: CallMethod m/2",
		"  14: Emit",
	), tpl.Instructions().DebugString())
}

func TestCompileMacroHasOwnInstructions(t *testing.T) {
	tpl := compile(t, "{% macro m(a, b=1) %}{{ a }}{% endmacro %}")

	assert.Equal(t, listing(
		"   0: BuildMacro m #0 flags=0",
		"   1: StoreLocal m",
	), tpl.Instructions().DebugString())

	require.Len(t, tpl.Macros(), 1)
	macro := tpl.Macro(0)
	assert.Equal(t, "m", macro.Name)
	assert.True(t, macro.TopLevel)
	assert.Equal(t, []template.ArgSpec{{Name: "a"}, {Name: "b", HasDefault: true}}, macro.Args)
	assert.Equal(t, 1, macro.RequiredArgs())

	assert.Equal(t, listing(
		"   0: StoreLocal a",
		"   1: DupTop",
		"   2: IsUndefined",
		"   3: JumpIfFalse -> 6",
		"   4: DiscardTop",
		"   5: LoadConst 1",
		"   6: StoreLocal b",
		"   7: Lookup a",
		"   8: Emit",
		"   9: Return",
	), macro.Code.DebugString())
}

func TestCompileMacroFlags(t *testing.T) {
	tpl := compile(t, "{% macro m() %}{{ caller() }}{{ varargs }}{% endmacro %}")

	assert.Equal(t, "   0: BuildMacro m #0 flags=3\n   1: StoreLocal m", tpl.Instructions().DebugString())
	assert.True(t, tpl.Macro(0).CallerReference)
}

func TestCompileCallBlockPassesCallerMacro(t *testing.T) {
	tpl := compile(t, "{% call m() %}hi{% endcall %}")

	assert.Equal(t, listing(
		"   0: LoadConst 'caller'",
		"   1: BuildMacro caller #0 flags=0",
		"   2: BuildKwargs 1",
		"   3: CallFunction m/1",
		"   4: Emit",
	), tpl.Instructions().DebugString())
	assert.False(t, tpl.Macro(0).TopLevel)
}

func TestCompileBlocks(t *testing.T) {
	tpl := compile(t, "{% extends 'base.sql' %}{% block body %}x{{ super() }}{% endblock %}")

	assert.Equal(t, listing(
		"   0: LoadConst 'base.sql'",
		"   1: LoadBlocks",
		"   2: CallBlock body",
	), tpl.Instructions().DebugString())

	assert.Equal(t, []string{"body"}, tpl.BlockNames())
	assert.Equal(t, listing(
		"   0: EmitRaw 'x'",
		"   1: FastSuper",
	), tpl.Blocks()["body"].DebugString())
}

func TestCompileFuncsign(t *testing.T) {
	tpl := compile(t, "-- funcsign: (string) -> string\n{% macro m(a) %}{{ a }}{% endmacro %}{% macro n() %}{% endmacro %}")

	require.Len(t, tpl.TopLevelMacros(), 2)
	assert.Equal(t, "(string) -> string", tpl.TopLevelMacros()[0].Funcsign)
	assert.Equal(t, "", tpl.TopLevelMacros()[1].Funcsign)
}

func TestCompileFuncsignAfterMacroIsBug(t *testing.T) {
	src := "{% macro a() %}{% endmacro %}-- funcsign: (string) -> string {% macro m(x) %}{% endmacro %}"

	_, err := template.Compile("tpl.sql", []byte(src), texttemplate.LexOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[BUG] funcsign is after macro declaration")

	var compileErr *template.CompileError
	require.True(t, errors.As(err, &compileErr))
	assert.Equal(t, 1, compileErr.Line())
}

func TestCompileErrorIncludesSourceLineAndHint(t *testing.T) {
	_, err := template.Compile("tpl.sql", []byte("select 1\n{% if x %}"), texttemplate.LexOptions{})
	require.Error(t, err)

	assert.Contains(t, err.Error(), "- unexpected end of input, expected end of block (hint: missing closing tag")
	assert.Contains(t, err.Error(), "tpl.sql:2:")
	assert.Contains(t, err.Error(), "| {% if x %}")
}

func TestDebugCodeAsString(t *testing.T) {
	tpl := compile(t, "a\n{{ x }}")

	assert.Equal(t, listing(
		"src:  tmpl: code: | srccode",
		"   1:    0: EmitRaw 'a\\n' | a",
		"   2:    1: Lookup x | {{ x }}",
		"   2:    2: Emit |",
	), tpl.DebugCodeAsString())
}
