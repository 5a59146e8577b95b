// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package jttlibrary

import (
	"fmt"
	"io"
	"strings"

	"carvel.dev/jtt/pkg/value"
	"carvel.dev/jtt/pkg/vm"
)

// MaxRangeLength bounds the number of items produced by range().
const MaxRangeLength = 100000

func functionsAPI(opts Options) Library {
	lib := NewLibrary()
	lib.Globals["range"] = NewFunc("range", rangeFunc)
	lib.Globals["dict"] = NewFunc("dict", dictFunc)
	lib.Globals["namespace"] = NewFunc("namespace", namespaceFunc)
	lib.Globals["zip"] = NewFunc("zip", zipFunc)
	lib.Globals["debug"] = NewFunc("debug", debugFunc)
	lib.Globals["print"] = NewFunc("print", printFunc(opts.Output))
	lib.Globals["log"] = NewFunc("log", logFunc(opts.Output))
	lib.Globals["env_var"] = NewFunc("env_var", envVarFunc(opts.Env))
	lib.Globals["var"] = value.FromObject(&varObject{vars: opts.Vars})
	lib.Globals["exceptions"] = exceptionsModule(opts.Output)
	return lib
}

func rangeFunc(_ value.State, args []value.Value, _ *value.Kwargs) (value.Value, error) {
	if err := expectArgs(args, 1, 3); err != nil {
		return value.Undefined, err
	}
	bounds := make([]int64, len(args))
	for i, arg := range args {
		n, err := value.IntArg("range", arg)
		if err != nil {
			return value.Undefined, err
		}
		bounds[i] = n
	}

	start, stop, step := int64(0), bounds[0], int64(1)
	if len(bounds) > 1 {
		start, stop = bounds[0], bounds[1]
	}
	if len(bounds) > 2 {
		step = bounds[2]
	}
	if step == 0 {
		return value.Undefined, value.NewError(value.ErrInvalidArgument, "step must not be zero")
	}

	var items []value.Value
	for i := start; (step > 0 && i < stop) || (step < 0 && i > stop); i += step {
		if len(items) >= MaxRangeLength {
			return value.Undefined, value.NewError(value.ErrInvalidOperation,
				fmt.Sprintf("range has too many elements (limit is %d)", MaxRangeLength))
		}
		items = append(items, value.FromInt(i))
	}
	return value.FromSlice(items), nil
}

func dictFunc(_ value.State, args []value.Value, kwargs *value.Kwargs) (value.Value, error) {
	if err := expectArgs(args, 0, 1); err != nil {
		return value.Undefined, err
	}
	result := value.NewMap()
	if len(args) == 1 && !args[0].IsUndefined() && !args[0].IsNone() {
		if err := copyInto(result, args[0]); err != nil {
			return value.Undefined, err
		}
	}
	for _, name := range kwargs.Names() {
		val, _ := kwargs.Get(name)
		result.SetString(name, val)
	}
	return value.FromObject(value.NewMutableMap(result)), nil
}

// copyInto accepts maps and sequences of pairs.
func copyInto(dst *value.Map, src value.Value) error {
	if src.Kind() == value.KindMap {
		keys, err := value.Collect(src)
		if err != nil {
			return err
		}
		for _, k := range keys {
			v, _ := value.GetItem(src, k)
			dst.Set(k, v)
		}
		return nil
	}
	pairs, err := value.Collect(src)
	if err != nil {
		return err
	}
	for _, pair := range pairs {
		items, err := value.Collect(pair)
		if err != nil || len(items) != 2 {
			return value.NewError(value.ErrInvalidArgument, fmt.Sprintf("cannot convert %s to a dict entry", pair.Repr()))
		}
		dst.Set(items[0], items[1])
	}
	return nil
}

func namespaceFunc(_ value.State, args []value.Value, kwargs *value.Kwargs) (value.Value, error) {
	if err := expectArgs(args, 0, 1); err != nil {
		return value.Undefined, err
	}
	initial := value.NewMap()
	if len(args) == 1 {
		if err := copyInto(initial, args[0]); err != nil {
			return value.Undefined, err
		}
	}
	for _, name := range kwargs.Names() {
		val, _ := kwargs.Get(name)
		initial.SetString(name, val)
	}
	return value.FromObject(value.NewNamespace(initial)), nil
}

func zipFunc(_ value.State, args []value.Value, _ *value.Kwargs) (value.Value, error) {
	if len(args) == 2 {
		z, err := value.NewZip(args[0], args[1])
		if err != nil {
			return value.Undefined, err
		}
		return value.FromObject(z), nil
	}

	var columns [][]value.Value
	n := -1
	for _, arg := range args {
		items, err := value.Collect(arg)
		if err != nil {
			return value.Undefined, err
		}
		columns = append(columns, items)
		if n < 0 || len(items) < n {
			n = len(items)
		}
	}
	result := make([]value.Value, 0, n)
	for i := 0; i < n; i++ {
		row := make([]value.Value, len(columns))
		for j, col := range columns {
			row[j] = col[i]
		}
		result = append(result, value.FromSlice(row))
	}
	return value.FromSlice(result), nil
}

// debugFunc renders the render context. Outside of a render there is
// nothing to show.
func debugFunc(st value.State, args []value.Value, _ *value.Kwargs) (value.Value, error) {
	if err := expectArgs(args, 0, 1); err != nil {
		return value.Undefined, err
	}
	if len(args) == 1 {
		return value.FromString(args[0].Repr()), nil
	}
	vmState, ok := st.(*vm.State)
	if !ok {
		return value.FromString(""), nil
	}
	return value.FromString(value.FromMap(vmState.Root()).Repr()), nil
}

func printFunc(out io.Writer) HostFunc {
	return func(_ value.State, args []value.Value, _ *value.Kwargs) (value.Value, error) {
		parts := make([]string, len(args))
		for i, arg := range args {
			parts[i] = arg.String()
		}
		fmt.Fprintln(out, strings.Join(parts, " "))
		return value.FromString(""), nil
	}
}

func logFunc(out io.Writer) HostFunc {
	return func(_ value.State, args []value.Value, kwargs *value.Kwargs) (value.Value, error) {
		if err := expectArgs(args, 1, 2); err != nil {
			return value.Undefined, err
		}
		if boolArg(args, kwargs, 1, "info", false) {
			fmt.Fprintf(out, "%s\n", args[0].String())
		}
		return value.FromString(""), nil
	}
}

func envVarFunc(lookup func(string) (string, bool)) HostFunc {
	return func(_ value.State, args []value.Value, kwargs *value.Kwargs) (value.Value, error) {
		if err := expectArgs(args, 1, 2); err != nil {
			return value.Undefined, err
		}
		name, err := value.StringArg("name", args[0])
		if err != nil {
			return value.Undefined, err
		}
		if val, found := lookup(name); found {
			return value.FromString(val), nil
		}
		if def, found := value.ArgOrKwarg(args, kwargs, 1, "default"); found {
			return def, nil
		}
		return value.Undefined, fmt.Errorf("Env var required but not provided: '%s'", name)
	}
}

// varObject backs var(name, default) and var.has_var(name).
type varObject struct {
	vars *value.Map
}

var _ value.Callable = &varObject{}
var _ value.AttributeGetter = &varObject{}

func (v *varObject) Repr() value.ObjectRepr { return value.ReprPlain }

func (v *varObject) Call(st value.State, args []value.Value) (value.Value, error) {
	args, kwargs := value.SplitKwargs(args)
	if err := expectArgs(args, 1, 2); err != nil {
		return value.Undefined, fmt.Errorf("var: %w", err)
	}
	name, err := value.StringArg("name", args[0])
	if err != nil {
		return value.Undefined, fmt.Errorf("var: %w", err)
	}
	if val, found := v.vars.Get(value.FromString(name)); found {
		return val, nil
	}
	if def, found := value.ArgOrKwarg(args, kwargs, 1, "default"); found {
		return def, nil
	}
	return value.Undefined, fmt.Errorf("Required var '%s' not found in config", name)
}

func (v *varObject) GetValue(key value.Value) (value.Value, bool) {
	if name, _ := key.AsString(); name == "has_var" {
		return NewFunc("var.has_var", func(_ value.State, args []value.Value, _ *value.Kwargs) (value.Value, error) {
			if err := expectArgs(args, 1, 1); err != nil {
				return value.Undefined, err
			}
			_, found := v.vars.Get(args[0])
			return value.FromBool(found), nil
		}), true
	}
	return value.Undefined, false
}

// CompilerError is raised by exceptions.raise_compiler_error.
type CompilerError struct {
	Msg string
}

func (e *CompilerError) Error() string { return "Compilation Error: " + e.Msg }

func exceptionsModule(out io.Writer) value.Value {
	members := value.NewMap()
	members.SetString("raise_compiler_error", NewFunc("exceptions.raise_compiler_error",
		func(_ value.State, args []value.Value, _ *value.Kwargs) (value.Value, error) {
			if err := expectArgs(args, 1, 2); err != nil {
				return value.Undefined, err
			}
			return value.Undefined, &CompilerError{Msg: args[0].String()}
		}))
	members.SetString("raise_not_implemented", NewFunc("exceptions.raise_not_implemented",
		func(_ value.State, args []value.Value, _ *value.Kwargs) (value.Value, error) {
			if err := expectArgs(args, 1, 1); err != nil {
				return value.Undefined, err
			}
			return value.Undefined, &CompilerError{Msg: "Not implemented: " + args[0].String()}
		}))
	members.SetString("warn", NewFunc("exceptions.warn",
		func(_ value.State, args []value.Value, _ *value.Kwargs) (value.Value, error) {
			if err := expectArgs(args, 1, 2); err != nil {
				return value.Undefined, err
			}
			fmt.Fprintf(out, "Warning: %s\n", args[0].String())
			return value.FromString(""), nil
		}))
	return value.FromObject(value.NewNamespace(members))
}
