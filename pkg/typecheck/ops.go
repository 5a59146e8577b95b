// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package typecheck

import (
	"errors"
	"fmt"
	"math"

	"carvel.dev/jtt/pkg/value"
)

// ClassType is an object type with a fixed attribute surface.
type ClassType interface {
	Name() string
	// GetAttribute returns an *UnknownAttributeError for attributes the
	// class does not have, or an *ImpreciseError when the class cannot
	// tell.
	GetAttribute(name string) (Type, error)
}

// Inheriting classes are subtypes of their parents.
type Inheriting interface {
	InheritsFrom(name string) bool
}

// CallableClass is a class whose instances can be called.
type CallableClass interface {
	Call(positional []Type, kwargs map[string]Type) (Type, error)
}

// SubscriptableClass is a class whose instances support `x[i]`.
type SubscriptableClass interface {
	Subscript(index Type) (Type, error)
}

// IterableClass is a class whose instances can be looped over.
type IterableClass interface {
	ElemType() Type
}

// UnknownAttributeError is raised for attributes that are absent on a
// precisely known type.
type UnknownAttributeError struct {
	Type string
	Name string
}

func (e *UnknownAttributeError) Error() string {
	return fmt.Sprintf("%s.%s is not supported", e.Type, e.Name)
}

// ImpreciseError describes an operation that could not be checked. It is
// reported as a warning and the operation yields soft Any.
type ImpreciseError struct {
	Msg string
}

func (e *ImpreciseError) Error() string { return e.Msg }

func imprecise(format string, args ...interface{}) error {
	return &ImpreciseError{Msg: fmt.Sprintf(format, args...)}
}

// Soften converts an *ImpreciseError into a warning. Other errors are
// returned unchanged.
func Soften(t Type, err error, warn func(string)) (Type, error) {
	var impErr *ImpreciseError
	if errors.As(err, &impErr) {
		warn(impErr.Msg)
		return SoftAny, nil
	}
	return t, err
}

var (
	stringMethods = map[string]string{
		"strip":      "(chars: optional[string]) -> string",
		"lstrip":     "(chars: optional[string]) -> string",
		"rstrip":     "(chars: optional[string]) -> string",
		"lower":      "() -> string",
		"upper":      "() -> string",
		"title":      "() -> string",
		"capitalize": "() -> string",
		"replace":    "(old: string, new: string, count: optional[integer]) -> string",
		"split":      "(sep: optional[string], maxsplit: optional[integer]) -> list[string]",
		"startswith": "(prefix: string) -> bool",
		"endswith":   "(suffix: string) -> bool",
		"join":       "(items: iterable[any]) -> string",
		"format":     "(...) -> string",
		"count":      "(sub: string) -> integer",
		"find":       "(sub: string) -> integer",
		"isdigit":    "() -> bool",
		"isupper":    "() -> bool",
		"islower":    "() -> bool",
	}
	listMethods = map[string]string{
		"append": "(item: any) -> none",
		"extend": "(items: iterable[any]) -> none",
		"insert": "(index: integer, item: any) -> none",
		"pop":    "(index: optional[integer]) -> any",
		"remove": "(item: any) -> none",
		"index":  "(item: any) -> integer",
		"count":  "(item: any) -> integer",
	}
	dictMethods = map[string]string{
		"get":        "(key: any, default: optional[any]) -> any",
		"keys":       "() -> list[any]",
		"values":     "() -> list[any]",
		"items":      "() -> list[tuple[any, any]]",
		"update":     "(...) -> none",
		"pop":        "(key: any, default: optional[any]) -> any",
		"setdefault": "(key: any, default: optional[any]) -> any",
		"copy":       "() -> any",
	}
	timestampMethods = map[string]string{
		"strftime":  "(format: string) -> string",
		"isoformat": "() -> string",
		"timestamp": "() -> float",
	}
)

func methodType(owner string, methods map[string]string, name string) (Type, bool) {
	sig, found := methods[name]
	if !found {
		return nil, false
	}
	return Function{mustParseSignature(owner+"."+name, sig)}, true
}

// GetAttribute infers `t.name`. Hard errors are returned; imprecise
// receivers are reported through warn and yield soft Any.
func GetAttribute(t Type, name string, warn func(string)) (Type, error) {
	switch typed := t.(type) {
	case Any:
		return typed, nil

	case Class:
		result, err := typed.ClassType.GetAttribute(name)
		return Soften(result, err, warn)

	case Namespace:
		if member, found := typed.Members[name]; found {
			return member, nil
		}
		return nil, fmt.Errorf("No macro named '%s' found in namespace '%s'", name, typed.Name)

	case Struct:
		if field, found := typed.Fields[name]; found {
			return field, nil
		}
		if method, found := methodType("dict", dictMethods, name); found {
			return dictMethodType(Dict{String{}, UnionOf(fieldTypes(typed.Fields)...)}, name, method), nil
		}
		return nil, &UnknownAttributeError{Type: t.String(), Name: name}

	case Kwargs:
		if field, found := typed.Fields[name]; found {
			return field, nil
		}
		return Undefined{}, nil

	case Dict:
		if method, found := methodType("dict", dictMethods, name); found {
			return dictMethodType(typed, name, method), nil
		}
		if _, ok := typed.Key.(String); ok {
			return typed.Value, nil
		}
		return nil, &UnknownAttributeError{Type: t.String(), Name: name}

	case List:
		if method, found := methodType("list", listMethods, name); found {
			return method, nil
		}
		return nil, &UnknownAttributeError{Type: t.String(), Name: name}

	case String:
		if method, found := methodType("string", stringMethods, name); found {
			return method, nil
		}
		warn(fmt.Sprintf("string.%s is not supported", name))
		return SoftAny, nil

	case Timestamp:
		if method, found := methodType("timestamp", timestampMethods, name); found {
			return method, nil
		}
		warn(fmt.Sprintf("timestamp.%s is not supported", name))
		return SoftAny, nil

	case Union:
		var results []Type
		var missing []string
		for _, m := range typed.members {
			if _, isNone := m.(None); isNone {
				missing = append(missing, m.String())
				continue
			}
			result, err := GetAttribute(m, name, warn)
			if err != nil {
				missing = append(missing, m.String())
				continue
			}
			results = append(results, result)
		}
		if len(results) == 0 {
			return nil, &UnknownAttributeError{Type: t.String(), Name: name}
		}
		if len(missing) > 0 {
			warn(fmt.Sprintf("%s.%s may not exist (missing on %v)", t, name, missing))
		}
		return UnionOf(results...), nil

	case None:
		return nil, &UnknownAttributeError{Type: t.String(), Name: name}
	}

	warn(fmt.Sprintf("%s.%s is not supported", t, name))
	return SoftAny, nil
}

// dictMethodType narrows get/keys/values/items for a known dict type.
func dictMethodType(d Dict, name string, generic Type) Type {
	switch name {
	case "get":
		return Function{&Signature{FnName: "dict.get", Args: []Argument{
			{Name: "key", Type: HardAny},
			{Name: "default", Type: HardAny, Optional: true},
		}, Ret: UnionOf(d.Value, None{})}}
	case "keys":
		return Function{&Signature{FnName: "dict.keys", Ret: List{d.Key}}}
	case "values":
		return Function{&Signature{FnName: "dict.values", Ret: List{d.Value}}}
	case "items":
		return Function{&Signature{FnName: "dict.items", Ret: List{Tuple{[]Type{d.Key, d.Value}}}}}
	}
	return generic
}

func fieldTypes(fields map[string]Type) []Type {
	var result []Type
	for _, name := range sortedNames(fields) {
		result = append(result, fields[name])
	}
	return result
}

// Call infers calling t with arguments.
func Call(t Type, positional []Type, kwargs map[string]Type, warn func(string)) (Type, error) {
	switch typed := t.(type) {
	case Any:
		return typed, nil
	case Function:
		return typed.Fn.Resolve(positional, kwargs)
	case Class:
		if callable, ok := typed.ClassType.(CallableClass); ok {
			result, err := callable.Call(positional, kwargs)
			return Soften(result, err, warn)
		}
		return nil, fmt.Errorf("%s is not callable", t)
	case Union:
		var results []Type
		for _, m := range typed.members {
			result, err := Call(m, positional, kwargs, warn)
			if err != nil {
				return nil, err
			}
			results = append(results, result)
		}
		return UnionOf(results...), nil
	case None, Undefined:
		return nil, fmt.Errorf("%s is not callable", t)
	}
	warn(fmt.Sprintf("%s does not support calls", t))
	return SoftAny, nil
}

// Subscript infers `t[index]`.
func Subscript(t Type, index Type, warn func(string)) (Type, error) {
	switch typed := t.(type) {
	case Any:
		return typed, nil
	case List:
		if !isIndex(index) {
			return nil, fmt.Errorf("list indices must be integers, not %s", index)
		}
		return typed.Elem, nil
	case Iterable:
		return typed.Elem, nil
	case Tuple:
		if !isIndex(index) {
			return nil, fmt.Errorf("tuple indices must be integers, not %s", index)
		}
		if lit, ok := index.(Integer); ok && lit.Known {
			idx := lit.Literal
			if idx < 0 {
				idx += int64(len(typed.Elems))
			}
			if idx < 0 || idx >= int64(len(typed.Elems)) {
				return nil, fmt.Errorf("tuple index %d out of range for %s", lit.Literal, t)
			}
			return typed.Elems[idx], nil
		}
		return UnionOf(typed.Elems...), nil
	case Dict:
		if !IsSubtype(index, typed.Key) {
			return nil, fmt.Errorf("%s expects keys of type %s, found %s", t, typed.Key, index)
		}
		return typed.Value, nil
	case Struct:
		if lit, ok := index.(String); ok && lit.Known {
			if field, found := typed.Fields[lit.Literal]; found {
				return field, nil
			}
			return nil, fmt.Errorf("%s has no key %q", t, lit.Literal)
		}
		if !IsSubtype(index, String{}) {
			return nil, fmt.Errorf("%s expects string keys, found %s", t, index)
		}
		return UnionOf(fieldTypes(typed.Fields)...), nil
	case Kwargs:
		return GetAttribute(t, stringLiteral(index), warn)
	case String:
		if !isIndex(index) {
			return nil, fmt.Errorf("string indices must be integers, not %s", index)
		}
		return String{}, nil
	case Class:
		if sub, ok := typed.ClassType.(SubscriptableClass); ok {
			result, err := sub.Subscript(index)
			return Soften(result, err, warn)
		}
		if lit, ok := index.(String); ok && lit.Known {
			return GetAttribute(t, lit.Literal, warn)
		}
	case Union:
		var results []Type
		for _, m := range typed.members {
			result, err := Subscript(m, index, warn)
			if err != nil {
				return nil, err
			}
			results = append(results, result)
		}
		return UnionOf(results...), nil
	case None:
		return nil, fmt.Errorf("none is not subscriptable")
	}
	warn(fmt.Sprintf("%s does not support subscript", t))
	return SoftAny, nil
}

func isIndex(t Type) bool {
	return IsSubtype(t, Integer{}) && !isFloat(t)
}

func isFloat(t Type) bool {
	_, ok := t.(Float)
	return ok
}

func stringLiteral(t Type) string {
	if lit, ok := t.(String); ok && lit.Known {
		return lit.Literal
	}
	return ""
}

// ElemType infers the type of items produced when iterating over t.
func ElemType(t Type, warn func(string)) (Type, error) {
	switch typed := t.(type) {
	case Any:
		return typed, nil
	case List:
		return typed.Elem, nil
	case Iterable:
		return typed.Elem, nil
	case Tuple:
		return UnionOf(typed.Elems...), nil
	case Dict:
		return typed.Key, nil
	case Struct, Kwargs:
		return String{}, nil
	case String:
		return String{}, nil
	case Class:
		if it, ok := typed.ClassType.(IterableClass); ok && it.ElemType() != nil {
			return it.ElemType(), nil
		}
		return nil, fmt.Errorf("%s is not iterable", t)
	case Union:
		var results []Type
		for _, m := range typed.members {
			if _, isNone := m.(None); isNone {
				continue
			}
			result, err := ElemType(m, warn)
			if err != nil {
				return nil, err
			}
			results = append(results, result)
		}
		return UnionOf(results...), nil
	case Integer, Float, Bool, None:
		return nil, fmt.Errorf("%s is not iterable", t)
	}
	warn(fmt.Sprintf("%s may not be iterable", t))
	return SoftAny, nil
}

// FromValue infers the type of a constant.
func FromValue(v value.Value) Type {
	switch v.Kind() {
	case value.KindUndefined:
		return Undefined{}
	case value.KindNone:
		return None{}
	case value.KindBool:
		return Bool{}
	case value.KindInteger:
		if i, ok := v.AsInt(); ok && i > math.MinInt64 {
			return IntegerLit(i)
		}
		return Integer{}
	case value.KindFloat:
		return Float{}
	case value.KindString:
		s, _ := v.AsString()
		return StringLit(s)
	case value.KindBytes:
		return Bytes{}
	case value.KindSeq:
		items, _ := v.AsSlice()
		elems := make([]Type, len(items))
		for i, item := range items {
			elems[i] = FromValue(item)
		}
		return List{Widen(UnionOf(elems...))}
	case value.KindMap:
		m, ok := v.AsMap()
		if !ok {
			return Dict{HardAny, HardAny}
		}
		fields := map[string]Type{}
		var keys, values []Type
		allStrings := true
		for _, k := range m.Keys() {
			val, _ := m.Get(k)
			if s, ok := k.AsString(); ok {
				fields[s] = FromValue(val)
			} else {
				allStrings = false
			}
			keys = append(keys, FromValue(k))
			values = append(values, FromValue(val))
		}
		if allStrings {
			return Struct{fields}
		}
		return Dict{Widen(UnionOf(keys...)), UnionOf(values...)}
	}
	return HardAny
}
