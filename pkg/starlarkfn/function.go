// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package starlarkfn

import (
	"fmt"
	"io"
	"runtime/debug"

	"carvel.dev/jtt/pkg/value"
	"github.com/k14s/starlark-go/starlark"
)

const stateLocalKey = "jtt.state"

// Function is a Starlark callable exposed to templates.
type Function struct {
	name string
	fn   starlark.Callable
}

var _ value.Callable = &Function{}
var _ value.Renderer = &Function{}

func newFunction(name string, fn starlark.Callable) *Function {
	return &Function{name: name, fn: fn}
}

func (f *Function) Name() string           { return f.name }
func (f *Function) Repr() value.ObjectRepr { return value.ReprPlain }

func (f *Function) Render(w io.Writer) error {
	_, err := fmt.Fprintf(w, "<starlark function %s>", f.name)
	return err
}

// Call runs the function on a fresh thread since Starlark threads must
// not be shared between goroutines.
func (f *Function) Call(st value.State, args []value.Value) (result value.Value, resultErr error) {
	defer func() {
		if err := recover(); err != nil {
			if typedErr, ok := err.(error); ok {
				resultErr = fmt.Errorf("%s: %s (backtrace: %s)", f.name, typedErr, debug.Stack())
			} else {
				resultErr = fmt.Errorf("%s: (p) %s (backtrace: %s)", f.name, err, debug.Stack())
			}
		}
	}()

	pos, kwargs := value.SplitKwargs(args)

	starlarkArgs := make(starlark.Tuple, 0, len(pos))
	for _, arg := range pos {
		converted, err := toStarlark(arg)
		if err != nil {
			return value.Undefined, fmt.Errorf("%s: %w", f.name, err)
		}
		starlarkArgs = append(starlarkArgs, converted)
	}

	var starlarkKwargs []starlark.Tuple
	if kwargs != nil {
		for _, name := range kwargs.Names() {
			val, _ := kwargs.Get(name)
			converted, err := toStarlark(val)
			if err != nil {
				return value.Undefined, fmt.Errorf("%s: %w", f.name, err)
			}
			starlarkKwargs = append(starlarkKwargs, starlark.Tuple{starlark.String(name), converted})
		}
	}

	thread := newThread("call=" + f.name)
	thread.SetLocal(stateLocalKey, st)

	if ctx := st.Context(); ctx != nil && ctx.Err() != nil {
		return value.Undefined, fmt.Errorf("%s: %w", f.name, ctx.Err())
	}

	val, err := starlark.Call(thread, f.fn, starlarkArgs, starlarkKwargs)
	if err != nil {
		return value.Undefined, fmt.Errorf("%s: %s", f.name, describeErr(err))
	}
	return fromStarlark(val)
}

func callerState(thread *starlark.Thread) value.State {
	if st, ok := thread.Local(stateLocalKey).(value.State); ok {
		return st
	}
	return value.BackgroundState{}
}

func newThread(name string) *starlark.Thread {
	return &starlark.Thread{Name: name}
}

func describeErr(err error) string {
	if evalErr, ok := err.(*starlark.EvalError); ok {
		return evalErr.Backtrace()
	}
	return err.Error()
}
