// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package texttemplate_test

import (
	"testing"

	"carvel.dev/jtt/pkg/texttemplate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kinds(tokens []texttemplate.Token) []texttemplate.TokenKind {
	var result []texttemplate.TokenKind
	for _, tok := range tokens {
		result = append(result, tok.Kind)
	}
	return result
}

func TestLexerNestedBracesInVariableBlock(t *testing.T) {
	tokens, err := texttemplate.Tokenize(`{{ {'a': {}} }}`, texttemplate.LexOptions{})
	require.NoError(t, err)

	assert.Equal(t, []texttemplate.TokenKind{
		texttemplate.TokenVariableStart,
		texttemplate.TokenBraceOpen,
		texttemplate.TokenString,
		texttemplate.TokenColon,
		texttemplate.TokenBraceOpen,
		texttemplate.TokenBraceClose,
		texttemplate.TokenBraceClose,
		texttemplate.TokenVariableEnd,
	}, kinds(tokens))
}

func TestLexerRawBlock(t *testing.T) {
	tokens, err := texttemplate.Tokenize(`{% raw %}{{ x }}{% endraw %}`, texttemplate.LexOptions{})
	require.NoError(t, err)
	require.Len(t, tokens, 1)

	assert.Equal(t, texttemplate.TokenTemplateData, tokens[0].Kind)
	assert.Equal(t, "{{ x }}", tokens[0].Value)
}

func TestLexerSkipsComments(t *testing.T) {
	tokens, err := texttemplate.Tokenize("a{# comment #}b", texttemplate.LexOptions{})
	require.NoError(t, err)
	require.Len(t, tokens, 2)

	assert.Equal(t, "a", tokens[0].Value)
	assert.Equal(t, "b", tokens[1].Value)
}

func TestLexerLiterals(t *testing.T) {
	tokens, err := texttemplate.Tokenize(`{{ "a\nb" 'c' 1_000 1.5 2e3 }}`, texttemplate.LexOptions{})
	require.NoError(t, err)
	require.Len(t, tokens, 7)

	assert.Equal(t, texttemplate.TokenString, tokens[1].Kind)
	assert.Equal(t, "a\nb", tokens[1].Value)
	assert.Equal(t, "c", tokens[2].Value)
	assert.Equal(t, texttemplate.TokenInt, tokens[3].Kind)
	assert.Equal(t, "1000", tokens[3].Value)
	assert.Equal(t, texttemplate.TokenFloat, tokens[4].Kind)
	assert.Equal(t, texttemplate.TokenFloat, tokens[5].Kind)
}

func TestLexerTrailingNewline(t *testing.T) {
	tokens, err := texttemplate.Tokenize("hello\n", texttemplate.LexOptions{})
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, "hello", tokens[0].Value)

	tokens, err = texttemplate.Tokenize("hello\n", texttemplate.LexOptions{KeepTrailingNewline: true})
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, "hello\n", tokens[0].Value)
}

func TestLexerSpansAreOneBased(t *testing.T) {
	tokens, err := texttemplate.Tokenize("a\n{{ x }}", texttemplate.LexOptions{})
	require.NoError(t, err)
	require.Len(t, tokens, 4)

	ident := tokens[2]
	assert.Equal(t, "x", ident.Value)
	assert.Equal(t, 2, ident.Span.StartLine)
	assert.Equal(t, 4, ident.Span.StartCol)
	assert.Equal(t, 5, ident.Span.StartOffset)
}

func TestLexerUnterminatedVariableBlock(t *testing.T) {
	_, err := texttemplate.Tokenize("{{ x", texttemplate.LexOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected end of input, expected end of variable block")
}

func TestParseExpr(t *testing.T) {
	expr, err := texttemplate.ParseExpr("a.b | default('x')")
	require.NoError(t, err)

	assert.Equal(t, "Filter default\n  GetAttr b\n    Var a\n  Const 'x'\n", texttemplate.DebugASTAsString(expr))
}

func TestAsConstFoldsLiteralCollections(t *testing.T) {
	expr, err := texttemplate.ParseExpr("[1, (2, 'x'), {'k': none}]")
	require.NoError(t, err)

	val, ok := texttemplate.AsConst(expr)
	require.True(t, ok)
	assert.Equal(t, "[1, [2, 'x'], {'k': None}]", val.Repr())

	_, ok = texttemplate.AsConst(&texttemplate.Var{ID: "x"})
	assert.False(t, ok)
}
