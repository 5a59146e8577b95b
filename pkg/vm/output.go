// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package vm

import (
	"strings"

	"carvel.dev/jtt/pkg/template"
	"carvel.dev/jtt/pkg/value"
)

type capture struct {
	buf     strings.Builder
	discard bool
}

// output is a stack of capture buffers; the bottom one is the render result.
type output struct {
	stack []*capture
}

func newOutput() *output {
	return &output{stack: []*capture{{}}}
}

func (o *output) WriteString(s string) {
	top := o.stack[len(o.stack)-1]
	if !top.discard {
		top.buf.WriteString(s)
	}
}

func (o *output) beginCapture(mode int) {
	o.stack = append(o.stack, &capture{discard: mode == template.CaptureModeDiscard})
}

func (o *output) endCapture(autoEscape bool) value.Value {
	if len(o.stack) == 1 {
		panic("[BUG] unbalanced output capture")
	}
	top := o.stack[len(o.stack)-1]
	o.stack = o.stack[:len(o.stack)-1]
	return captured(top.buf.String(), autoEscape)
}

func (o *output) isDiscarding() bool { return o.stack[len(o.stack)-1].discard }

func (o *output) base() string { return o.stack[0].buf.String() }

func captured(s string, autoEscape bool) value.Value {
	if autoEscape {
		return value.FromSafeString(s)
	}
	return value.FromString(s)
}
