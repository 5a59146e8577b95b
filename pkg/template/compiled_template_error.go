// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package template

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"carvel.dev/jtt/pkg/filepos"
	"carvel.dev/jtt/pkg/texttemplate"
)

// CompileError describes a template that could not be compiled.
type CompileError struct {
	Template   string
	Span       filepos.Span
	Msg        string
	SourceLine *SourceLine
}

var _ error = &CompileError{}

func NewCompileError(templateName string, span filepos.Span, msg string) *CompileError {
	return &CompileError{Template: templateName, Span: span, Msg: msg}
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("%s (at %s)", e.Msg, e.Span.Position(e.Template).AsCompactString())
}

// Line returns 1-based line of the error or 0 when unknown.
func (e *CompileError) Line() int { return e.Span.StartLine }

// Column returns 1-based column of the error or 0 when unknown.
func (e *CompileError) Column() int { return e.Span.StartCol }

type CompiledTemplateMultiError struct {
	errs []*CompileError
}

var _ error = CompiledTemplateMultiError{}

// NewCompiledTemplateMultiError converts lexer, parser and code generation
// failures into compile errors carrying the offending source line.
func NewCompiledTemplateMultiError(err error, templateName string, source *Source) error {
	e := CompiledTemplateMultiError{}

	var syntaxErr *texttemplate.SyntaxError
	var compileErr *CompileError

	switch {
	case errors.As(err, &syntaxErr):
		e.errs = append(e.errs, &CompileError{Template: templateName, Span: syntaxErr.Span, Msg: syntaxErr.Msg})
	case errors.As(err, &compileErr):
		e.errs = append(e.errs, compileErr)
	default:
		e.errs = append(e.errs, &CompileError{Template: templateName, Msg: err.Error()})
	}

	for _, compileErr := range e.errs {
		if compileErr.SourceLine == nil && source != nil {
			compileErr.SourceLine = source.LineAt(compileErr.Span.StartLine)
		}
	}
	return e
}

// Errors returns individual compile errors.
func (e CompiledTemplateMultiError) Errors() []*CompileError { return e.errs }

// Unwrap allows matching individual compile errors with errors.As.
func (e CompiledTemplateMultiError) Unwrap() []error {
	var result []error
	for _, err := range e.errs {
		result = append(result, err)
	}
	return result
}

func (e CompiledTemplateMultiError) Error() string {
	result := []string{""}

	for _, err := range e.errs {
		result = append(result, fmt.Sprintf("- %s%s", err.Msg, e.hintMsg(err)))

		linePad := "    "

		if err.SourceLine != nil {
			result = append(result, fmt.Sprintf("%s%s | %s",
				linePad, err.Span.Position(err.Template).AsCompactString(), err.SourceLine.Content))
			if err.Span.StartCol > 0 {
				prefixLen := len(err.Span.Position(err.Template).AsCompactString()) + len(" | ")
				result = append(result, fmt.Sprintf("%s%s^", linePad, strings.Repeat(" ", prefixLen+err.Span.StartCol-1)))
			}
		} else if err.Span.IsKnown() {
			result = append(result, fmt.Sprintf("%s%s", linePad, err.Span.Position(err.Template).AsCompactString()))
		}
	}

	return strings.Join(result, "\n")
}

var (
	unknownEndTagRegexp = regexp.MustCompile(`^unknown statement end[a-z]+$`)
)

func (e CompiledTemplateMultiError) hintMsg(err *CompileError) string {
	hintMsg := ""
	switch {
	case err.Msg == "unexpected end of input, expected end of block":
		hintMsg = "missing closing tag such as {% endif %} or {% endfor %}?"
	case unknownEndTagRegexp.MatchString(err.Msg):
		hintMsg = "blocks must be closed in the order they were opened"
	case err.Msg == "unknown statement elseif" || err.Msg == "unknown statement else if":
		hintMsg = "use 'elif' instead of 'elseif'"
	case err.Msg == "unexpected character '&'":
		if e.isOperatorPresent(err, "&&") {
			hintMsg = "use 'and' instead of '&&' for logical-and"
		}
	case err.Msg == "unexpected character '!'":
		hintMsg = "use 'not' instead of '!' for negation"
	case strings.HasPrefix(err.Msg, "[BUG] funcsign"):
		hintMsg = "place the '-- funcsign:' comment on a line before the macro"
	}

	if len(hintMsg) > 0 {
		hintMsg = fmt.Sprintf(" (hint: %s)", hintMsg)
	}
	return hintMsg
}

func (CompiledTemplateMultiError) isOperatorPresent(err *CompileError, op string) bool {
	return err.SourceLine != nil && strings.Contains(err.SourceLine.Content, op)
}
