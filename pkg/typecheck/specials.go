// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package typecheck

import (
	"fmt"
)

// DispatchFunction is the type of `adapter.dispatch`. The checker resolves
// the dispatched macro against its registry.
type DispatchFunction struct{}

var _ FunctionType = DispatchFunction{}

var dispatchSpecs = []ArgSpec{{Name: "macro_name"}, {Name: "macro_namespace", Optional: true}}

func (DispatchFunction) Name() string   { return "adapter.dispatch" }
func (DispatchFunction) String() string { return "function adapter.dispatch" }

func (d DispatchFunction) Resolve(positional []Type, kwargs map[string]Type) (Type, error) {
	_, _, err := d.Target(positional, kwargs)
	if err != nil {
		return nil, err
	}
	return HardAny, nil
}

// Target validates arguments and returns literal macro name and namespace
// when known.
func (d DispatchFunction) Target(positional []Type, kwargs map[string]Type) (string, string, error) {
	args, err := BindArguments(d.Name(), dispatchSpecs, positional, kwargs)
	if err != nil {
		return "", "", err
	}
	if !IsSubtype(args[0], String{}) {
		return "", "", &CallError{Function: d.Name(), Msg: fmt.Sprintf("argument 'macro_name' expects string, found %s", args[0])}
	}
	if !IsSubtype(args[1], Optional(String{})) {
		return "", "", &CallError{Function: d.Name(), Msg: fmt.Sprintf("argument 'macro_namespace' expects optional[string], found %s", args[1])}
	}
	return stringLiteral(args[0]), stringLiteral(args[1]), nil
}

func defineSpecials(reg *Registry) {
	define := func(name string, resolve func([]Type, map[string]Type) (Type, error)) Type {
		return Function{&builtinFunction{name: name, resolve: resolve}}
	}

	reg.Define("adapter.dispatch", Function{DispatchFunction{}})

	reg.Define("try_or_compiler_error", define("try_or_compiler_error", func(pos []Type, kwargs map[string]Type) (Type, error) {
		if len(pos) < 2 {
			return nil, &CallError{Function: "try_or_compiler_error", Msg: "expected a message and a function"}
		}
		if !IsSubtype(pos[0], String{}) {
			return nil, &CallError{Function: "try_or_compiler_error", Msg: fmt.Sprintf("argument 'message_if_exception' expects string, found %s", pos[0])}
		}
		return Call(pos[1], pos[2:], kwargs, func(string) {})
	}))

	reg.Define("print", define("print", func(pos []Type, kwargs map[string]Type) (Type, error) {
		return None{}, nil
	}))

	reg.Define("dict", define("dict", func(pos []Type, kwargs map[string]Type) (Type, error) {
		if len(pos) > 1 {
			return nil, &CallError{Function: "dict", Msg: fmt.Sprintf("expected at most 1 arguments, got %d", len(pos))}
		}
		if len(pos) == 1 {
			if len(kwargs) == 0 {
				return pos[0], nil
			}
			return Dict{String{}, HardAny}, nil
		}
		return Struct{Fields: widenFields(kwargs)}, nil
	}))

	reg.Define("namespace", define("namespace", func(pos []Type, kwargs map[string]Type) (Type, error) {
		return Dict{String{}, HardAny}, nil
	}))

	reg.Define("zip", define("zip", func(pos []Type, kwargs map[string]Type) (Type, error) {
		elems := make([]Type, len(pos))
		for i, p := range pos {
			elem, err := ElemType(p, func(string) {})
			if err != nil {
				return nil, &CallError{Function: "zip", Msg: err.Error()}
			}
			elems[i] = elem
		}
		return List{Tuple{elems}}, nil
	}))

	firstFn := define("first", func(pos []Type, kwargs map[string]Type) (Type, error) {
		if len(pos) != 1 {
			return nil, &CallError{Function: "first", Msg: fmt.Sprintf("expected 1 argument, got %d", len(pos))}
		}
		elem, err := ElemType(pos[0], func(string) {})
		if err != nil {
			return nil, &CallError{Function: "first", Msg: err.Error()}
		}
		return elem, nil
	})
	reg.DefineFilter("first", firstFn)

	attrFilter := func(name string) Type {
		return define(name, func(pos []Type, kwargs map[string]Type) (Type, error) {
			if len(pos) < 1 {
				return nil, &CallError{Function: name, Msg: "expected a sequence"}
			}
			elem, err := ElemType(pos[0], func(string) {})
			if err != nil {
				return nil, &CallError{Function: name, Msg: err.Error()}
			}
			if len(pos) > 1 {
				if !IsSubtype(pos[1], String{}) {
					return nil, &CallError{Function: name, Msg: fmt.Sprintf("argument 'attr' expects string, found %s", pos[1])}
				}
				if attr := stringLiteral(pos[1]); attr != "" {
					if _, err := GetAttribute(elem, attr, func(string) {}); err != nil {
						return nil, &CallError{Function: name, Msg: err.Error()}
					}
				}
			}
			return List{elem}, nil
		})
	}
	reg.DefineFilter("selectattr", attrFilter("selectattr"))
	reg.DefineFilter("rejectattr", attrFilter("rejectattr"))
	reg.DefineFilter("select", define("select", func(pos []Type, kwargs map[string]Type) (Type, error) {
		if len(pos) < 1 {
			return nil, &CallError{Function: "select", Msg: "expected a sequence"}
		}
		elem, err := ElemType(pos[0], func(string) {})
		if err != nil {
			return nil, &CallError{Function: "select", Msg: err.Error()}
		}
		return List{elem}, nil
	}))

	reg.DefineFilter("map", define("map", func(pos []Type, kwargs map[string]Type) (Type, error) {
		if len(pos) < 1 {
			return nil, &CallError{Function: "map", Msg: "expected a sequence"}
		}
		elem, err := ElemType(pos[0], func(string) {})
		if err != nil {
			return nil, &CallError{Function: "map", Msg: err.Error()}
		}
		if attrType, found := kwargs["attribute"]; found {
			if attr := stringLiteral(attrType); attr != "" {
				t, err := GetAttribute(elem, attr, func(string) {})
				if err != nil {
					return nil, &CallError{Function: "map", Msg: err.Error()}
				}
				return List{t}, nil
			}
		}
		return List{HardAny}, nil
	}))

	reg.DefineFilter("list", define("list", func(pos []Type, kwargs map[string]Type) (Type, error) {
		if len(pos) != 1 {
			return nil, &CallError{Function: "list", Msg: fmt.Sprintf("expected 1 argument, got %d", len(pos))}
		}
		elem, err := ElemType(pos[0], func(string) {})
		if err != nil {
			return nil, &CallError{Function: "list", Msg: err.Error()}
		}
		return List{elem}, nil
	}))

	reg.DefineFilter("batch", define("batch", func(pos []Type, kwargs map[string]Type) (Type, error) {
		args, err := BindArguments("batch", []ArgSpec{{Name: "value"}, {Name: "linecount"}, {Name: "fill_with", Optional: true}}, pos, kwargs)
		if err != nil {
			return nil, err
		}
		if !IsSubtype(args[1], Integer{}) {
			return nil, &CallError{Function: "batch", Msg: fmt.Sprintf("argument 'linecount' expects integer, found %s", args[1])}
		}
		elem, err := ElemType(args[0], func(string) {})
		if err != nil {
			return nil, &CallError{Function: "batch", Msg: err.Error()}
		}
		if _, filled := kwargs["fill_with"]; filled || len(pos) > 2 {
			elem = UnionOf(elem, args[2])
		}
		return List{List{elem}}, nil
	}))
}

func widenFields(fields map[string]Type) map[string]Type {
	result := make(map[string]Type, len(fields))
	for name, t := range fields {
		result[name] = Widen(t)
	}
	return result
}
