// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package vm

import (
	"errors"
	"fmt"
	"strings"

	"carvel.dev/jtt/pkg/filepos"
	"carvel.dev/jtt/pkg/value"
)

// RenderError is a failure during execution. Span points at the
// instruction that failed inside Template.
type RenderError struct {
	Template string
	Span     filepos.Span
	// MacroStack lists macros being executed, innermost first.
	// Consecutive calls of the same macro share one frame.
	MacroStack []MacroFrame
	// Output is what the render produced before failing
	Output string
	Err    error
}

func (e *RenderError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Err.Error())
	sb.WriteString(fmt.Sprintf(" (at %s)", e.Position().AsCompactString()))
	for _, frame := range e.MacroStack {
		sb.WriteString(fmt.Sprintf("\n    in macro '%s'", frame.Name))
		if frame.Count > 1 {
			sb.WriteString(fmt.Sprintf(" (x%d)", frame.Count))
		}
	}
	return sb.String()
}

// MacroFrame is a run of consecutive calls to the same macro.
type MacroFrame struct {
	Name  string
	Count int
}

func (e *RenderError) Unwrap() error { return e.Err }

func (e *RenderError) Position() *filepos.Position { return e.Span.Position(e.Template) }

// returnSignal unwinds execution up to the nearest macro call.
type returnSignal struct {
	value value.Value
}

func (r *returnSignal) Error() string { return "return() used outside of a macro" }

func wrapError(err error, tplName string, span filepos.Span) error {
	var ret *returnSignal
	if errors.As(err, &ret) {
		return err
	}
	var renderErr *RenderError
	if errors.As(err, &renderErr) {
		return err
	}
	return &RenderError{Template: tplName, Span: span, Err: err}
}

func withMacroFrame(err error, name string) error {
	var renderErr *RenderError
	if errors.As(err, &renderErr) {
		if n := len(renderErr.MacroStack); n > 0 && renderErr.MacroStack[n-1].Name == name {
			renderErr.MacroStack[n-1].Count++
		} else {
			renderErr.MacroStack = append(renderErr.MacroStack, MacroFrame{Name: name, Count: 1})
		}
	}
	return err
}

func recursionLimitError() error {
	return value.NewError(value.ErrInvalidOperation, "recursion limit exceeded")
}
