// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package vm

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"carvel.dev/jtt/pkg/template"
	"carvel.dev/jtt/pkg/value"
)

// Macro is a callable macro value. It holds the frames that were active
// where it was defined.
type Macro struct {
	unit    *template.MacroUnit
	tpl     *template.CompiledTemplate
	closure []*frame
	flags   int
}

var _ value.Callable = &Macro{}
var _ value.AttributeGetter = &Macro{}
var _ value.Enumerable = &Macro{}
var _ value.Renderer = &Macro{}

func newMacro(st *State, tpl *template.CompiledTemplate, unit *template.MacroUnit, flags int) *Macro {
	closure := make([]*frame, len(st.frames))
	copy(closure, st.frames)
	return &Macro{unit: unit, tpl: tpl, closure: closure, flags: flags}
}

func (m *Macro) Name() string               { return m.unit.Name }
func (m *Macro) Unit() *template.MacroUnit  { return m.unit }
func (m *Macro) Repr() value.ObjectRepr     { return value.ReprPlain }
func (m *Macro) Enumerate() value.Enumerator { return value.StrEnumerator("name", "arguments", "caller") }

func (m *Macro) GetValue(key value.Value) (value.Value, bool) {
	name, _ := key.AsString()
	switch name {
	case "name":
		return value.FromString(m.unit.Name), true
	case "arguments":
		var args []value.Value
		for _, arg := range m.unit.Args {
			args = append(args, value.FromString(arg.Name))
		}
		return value.FromSlice(args), true
	case "caller":
		return value.FromBool(m.flags&macroFlagCaller != 0), true
	}
	return value.Undefined, false
}

func (m *Macro) Render(w io.Writer) error {
	_, err := fmt.Fprintf(w, "<macro %s>", m.unit.Name)
	return err
}

func (m *Macro) Call(vst value.State, args []value.Value) (value.Value, error) {
	st, ok := vst.(*State)
	if !ok {
		return value.Undefined, value.NewError(value.ErrInvalidOperation,
			fmt.Sprintf("macro %s can only be called while rendering", m.unit.Name))
	}
	return st.callMacro(m, args)
}

// bindArgs matches call arguments to declared arguments. Missing optional
// arguments are bound to Undefined so that the macro prologue fills in
// defaults.
func (m *Macro) bindArgs(args []value.Value) ([]value.Value, *frame, error) {
	positional, kwargs := value.SplitKwargs(args)
	bound := make([]value.Value, len(m.unit.Args))

	for i, spec := range m.unit.Args {
		if i < len(positional) {
			if kwargs.Has(spec.Name) {
				return nil, nil, value.NewError(value.ErrTooManyArguments,
					fmt.Sprintf("macro %s got duplicate argument '%s'", m.unit.Name, spec.Name))
			}
			bound[i] = positional[i]
			continue
		}
		if val, found := kwargs.Get(spec.Name); found {
			bound[i] = val
			continue
		}
		if !spec.HasDefault {
			return nil, nil, value.NewError(value.ErrMissingArgument,
				fmt.Sprintf("macro %s is missing required argument '%s'", m.unit.Name, spec.Name))
		}
		bound[i] = value.Undefined
	}

	f := newFrame()

	var varargs []value.Value
	if len(positional) > len(m.unit.Args) {
		varargs = positional[len(m.unit.Args):]
	}
	switch {
	case m.flags&macroFlagVarargs != 0:
		f.set("varargs", value.FromSlice(varargs))
	case len(varargs) > 0:
		return nil, nil, value.NewError(value.ErrTooManyArguments,
			fmt.Sprintf("macro %s takes at most %d argument(s), got %d", m.unit.Name, len(m.unit.Args), len(positional)))
	}

	switch {
	case m.flags&macroFlagCaller != 0:
		caller, _ := kwargs.Get("caller")
		f.set("caller", caller)
	case kwargs.Has("caller"):
		return nil, nil, value.NewError(value.ErrTooManyArguments,
			fmt.Sprintf("macro %s does not accept caller argument", m.unit.Name))
	}

	extra := kwargs.Unused()
	switch {
	case m.flags&macroFlagKwargs != 0:
		f.set("kwargs", value.FromMap(extra))
	case extra.Len() > 0:
		var names []string
		for _, key := range extra.Keys() {
			names = append(names, key.String())
		}
		sort.Strings(names)
		return nil, nil, value.NewError(value.ErrTooManyArguments,
			fmt.Sprintf("macro %s got unexpected keyword argument(s): %s", m.unit.Name, strings.Join(names, ", ")))
	}

	return bound, f, nil
}

func (st *State) callMacro(m *Macro, args []value.Value) (value.Value, error) {
	bound, argFrame, err := m.bindArgs(args)
	if err != nil {
		return value.Undefined, err
	}
	if err := st.enter(); err != nil {
		return value.Undefined, err
	}
	defer st.leave()

	for _, l := range st.listeners {
		l.OnMacroStart(m.unit.Name, m.unit.Span)
	}

	frames := make([]*frame, len(m.closure), len(m.closure)+1)
	copy(frames, m.closure)
	frames = append(frames, argFrame)

	prevFrames, prevOut := st.frames, st.out
	st.frames = frames
	st.out = newOutput()

	// the prologue stores arguments in declaration order
	stack := make([]value.Value, 0, len(bound))
	for i := len(bound) - 1; i >= 0; i-- {
		stack = append(stack, bound[i])
	}
	err = st.eval(codeUnit{m.tpl, m.unit.Code}, stack)
	result := captured(st.out.base(), st.autoEscape)

	st.frames, st.out = prevFrames, prevOut

	for _, l := range st.listeners {
		l.OnMacroStop(m.unit.Name)
	}

	if err != nil {
		var ret *returnSignal
		if errors.As(err, &ret) {
			return ret.value, nil
		}
		return value.Undefined, withMacroFrame(err, m.unit.Name)
	}
	return result, nil
}
