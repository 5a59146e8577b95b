// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package typecheck

import (
	"fmt"
	"strings"
)

// FunctionType is implemented by callable types.
type FunctionType interface {
	Name() string
	// Resolve checks a call and returns its result type.
	Resolve(positional []Type, kwargs map[string]Type) (Type, error)
}

// ArgSpec describes one declared parameter.
type ArgSpec struct {
	Name     string
	Optional bool
}

// Argument is a typed parameter.
type Argument struct {
	Name     string
	Type     Type
	Optional bool
}

// BindArguments matches positional and keyword arguments against specs.
// Omitted optional parameters bind to hard Any. `caller` is accepted as an
// implicit keyword argument.
func BindArguments(fnName string, specs []ArgSpec, positional []Type, kwargs map[string]Type) ([]Type, error) {
	if len(positional) > len(specs) {
		return nil, &CallError{Function: fnName, Msg: fmt.Sprintf(
			"expected at most %d arguments, got %d", len(specs), len(positional))}
	}

	remaining := map[string]Type{}
	for name, t := range kwargs {
		remaining[name] = t
	}

	args := make([]Type, 0, len(specs))
	for i, spec := range specs {
		if i < len(positional) {
			if _, dup := remaining[spec.Name]; dup {
				return nil, &CallError{Function: fnName, Msg: "duplicate argument: " + spec.Name}
			}
			args = append(args, positional[i])
			continue
		}
		if t, found := remaining[spec.Name]; found {
			args = append(args, t)
			delete(remaining, spec.Name)
			continue
		}
		if spec.Optional {
			args = append(args, HardAny)
			continue
		}
		return nil, &CallError{Function: fnName, Msg: "missing required argument: " + spec.Name}
	}

	delete(remaining, "caller")
	if len(remaining) > 0 {
		return nil, &CallError{Function: fnName, Msg: "unknown arguments: " + strings.Join(sortedNames(remaining), ", ")}
	}
	return args, nil
}

// Signature is a function type with typed parameters, such as a macro
// annotated with a funcsign comment or a lambda inside a type expression.
type Signature struct {
	FnName string
	Args   []Argument
	Ret    Type
	// Variadic accepts any extra arguments without checking them
	Variadic bool
}

var _ FunctionType = &Signature{}

func (s *Signature) Name() string {
	if s.FnName == "" {
		return "lambda"
	}
	return s.FnName
}

func (s *Signature) String() string {
	parts := make([]string, 0, len(s.Args)+1)
	for _, arg := range s.Args {
		parts = append(parts, arg.Type.String())
	}
	if s.Variadic {
		parts = append(parts, "...")
	}
	return "(" + strings.Join(parts, ", ") + ") -> " + s.Ret.String()
}

// Specs returns parameter specs.
func (s *Signature) Specs() []ArgSpec {
	specs := make([]ArgSpec, len(s.Args))
	for i, arg := range s.Args {
		specs[i] = ArgSpec{Name: arg.Name, Optional: arg.Optional}
	}
	return specs
}

// WithNames returns a copy with parameters renamed and optionality taken
// from specs. len(specs) must equal len(s.Args).
func (s *Signature) WithNames(fnName string, specs []ArgSpec) *Signature {
	result := &Signature{FnName: fnName, Ret: s.Ret, Variadic: s.Variadic}
	for i, arg := range s.Args {
		arg.Name = specs[i].Name
		arg.Optional = arg.Optional || specs[i].Optional
		result.Args = append(result.Args, arg)
	}
	return result
}

func (s *Signature) Resolve(positional []Type, kwargs map[string]Type) (Type, error) {
	if s.Variadic {
		if len(positional) > len(s.Args) {
			positional = positional[:len(s.Args)]
		}
		known := map[string]Type{}
		for _, arg := range s.Args {
			if t, found := kwargs[arg.Name]; found {
				known[arg.Name] = t
			}
		}
		kwargs = known
	}

	args, err := BindArguments(s.Name(), s.Specs(), positional, kwargs)
	if err != nil {
		return nil, err
	}
	for i, arg := range args {
		if !IsSubtype(arg, s.Args[i].Type) {
			return nil, &CallError{Function: s.Name(), Msg: fmt.Sprintf(
				"argument '%s' expects %s, found %s", s.Args[i].Name, s.Args[i].Type, arg)}
		}
	}
	return s.Ret, nil
}

// UndefinedFunction is a callable without a known signature, for example
// a macro without a funcsign comment. Every call is accepted.
type UndefinedFunction struct {
	FnName string
}

var _ FunctionType = UndefinedFunction{}

func (f UndefinedFunction) Name() string   { return f.FnName }
func (f UndefinedFunction) String() string { return "function " + f.FnName + "(...)" }

func (f UndefinedFunction) Resolve([]Type, map[string]Type) (Type, error) {
	return HardAny, nil
}

// builtinFunction resolves calls with custom logic.
type builtinFunction struct {
	name    string
	resolve func(positional []Type, kwargs map[string]Type) (Type, error)
}

func (f *builtinFunction) Name() string   { return f.name }
func (f *builtinFunction) String() string { return "function " + f.name }

func (f *builtinFunction) Resolve(positional []Type, kwargs map[string]Type) (Type, error) {
	return f.resolve(positional, kwargs)
}

// CallError is a call rejected by a known signature.
type CallError struct {
	Function string
	Msg      string
}

func (e *CallError) Error() string { return e.Function + ": " + e.Msg }
