// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package typecheck

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Type is a node of the type lattice. Types are immutable and compared
// structurally through their canonical String form.
type Type interface {
	fmt.Stringer
	isType()
}

// String is the string type, optionally narrowed to a known literal.
type String struct {
	Literal string
	Known   bool
}

// Integer is the integer type, optionally narrowed to a known literal.
type Integer struct {
	Literal int64
	Known   bool
}

type Float struct{}
type Bool struct{}
type Bytes struct{}
type Timestamp struct{}
type None struct{}
type Undefined struct{}
type Exception struct{}

type List struct{ Elem Type }

// Iterable is a sequence that is only known to be iterable.
type Iterable struct{ Elem Type }

type Dict struct{ Key, Value Type }

type Tuple struct{ Elems []Type }

// Struct is a mapping with known string keys.
type Struct struct{ Fields map[string]Type }

// Kwargs is the keyword arguments passed to a macro.
type Kwargs struct{ Fields map[string]Type }

// Any is an unknown type. A hard Any is explicitly dynamic and absorbs
// every operation. A soft Any is the result of imprecise inference; it
// was reported once and produces no further diagnostics.
type Any struct{ Hard bool }

// Union is a normalized set of at least two types. Use UnionOf to build.
type Union struct{ members []Type }

// Class is an object type exposing attributes.
type Class struct{ ClassType ClassType }

// Function is a callable type.
type Function struct{ Fn FunctionType }

// Namespace is a package namespace exposing macros as attributes.
type Namespace struct {
	Name    string
	Members map[string]Type
}

var (
	HardAny = Any{Hard: true}
	SoftAny = Any{}
)

func StringLit(s string) String { return String{Literal: s, Known: true} }
func IntegerLit(i int64) Integer { return Integer{Literal: i, Known: true} }

// Optional returns t | none.
func Optional(t Type) Type { return UnionOf(t, None{}) }

func (String) isType()    {}
func (Integer) isType()   {}
func (Float) isType()     {}
func (Bool) isType()      {}
func (Bytes) isType()     {}
func (Timestamp) isType() {}
func (None) isType()      {}
func (Undefined) isType() {}
func (Exception) isType() {}
func (List) isType()      {}
func (Iterable) isType()  {}
func (Dict) isType()      {}
func (Tuple) isType()     {}
func (Struct) isType()    {}
func (Kwargs) isType()    {}
func (Any) isType()       {}
func (Union) isType()     {}
func (Class) isType()     {}
func (Function) isType()  {}
func (Namespace) isType() {}

func (t String) String() string {
	if t.Known {
		return "string(" + strconv.Quote(t.Literal) + ")"
	}
	return "string"
}

func (t Integer) String() string {
	if t.Known {
		return "integer(" + strconv.FormatInt(t.Literal, 10) + ")"
	}
	return "integer"
}

func (Float) String() string     { return "float" }
func (Bool) String() string      { return "bool" }
func (Bytes) String() string     { return "bytes" }
func (Timestamp) String() string { return "timestamp" }
func (None) String() string      { return "none" }
func (Undefined) String() string { return "undefined" }
func (Exception) String() string { return "exception" }

func (t List) String() string     { return "list[" + t.Elem.String() + "]" }
func (t Iterable) String() string { return "iterable[" + t.Elem.String() + "]" }
func (t Dict) String() string     { return "dict[" + t.Key.String() + ", " + t.Value.String() + "]" }

func (t Tuple) String() string {
	return "tuple[" + joinTypes(t.Elems, ", ") + "]"
}

func (t Struct) String() string { return "struct{" + fieldsString(t.Fields) + "}" }
func (t Kwargs) String() string { return "kwargs{" + fieldsString(t.Fields) + "}" }

func (t Any) String() string {
	if t.Hard {
		return "any"
	}
	return "any?"
}

func (t Union) String() string { return joinTypes(t.members, " | ") }

// Members returns union members in canonical order.
func (t Union) Members() []Type { return append([]Type(nil), t.members...) }

func (t Class) String() string { return t.ClassType.Name() }

func (t Function) String() string {
	if s, ok := t.Fn.(fmt.Stringer); ok {
		return s.String()
	}
	return "function " + t.Fn.Name()
}

func (t Namespace) String() string { return "namespace " + t.Name }

func joinTypes(types []Type, sep string) string {
	strs := make([]string, len(types))
	for i, t := range types {
		strs[i] = t.String()
	}
	return strings.Join(strs, sep)
}

func fieldsString(fields map[string]Type) string {
	names := sortedNames(fields)
	strs := make([]string, len(names))
	for i, name := range names {
		strs[i] = name + ": " + fields[name].String()
	}
	return strings.Join(strs, ", ")
}

func sortedNames[T any](m map[string]T) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Equal compares types structurally.
func Equal(a, b Type) bool { return a.String() == b.String() }

// Less orders types for use in sets.
func Less(a, b Type) bool { return a.String() < b.String() }

// IsAny reports whether t is hard or soft Any.
func IsAny(t Type) bool {
	_, ok := t.(Any)
	return ok
}

// Widen drops literal narrowing.
func Widen(t Type) Type {
	switch typed := t.(type) {
	case String:
		return String{}
	case Integer:
		return Integer{}
	case List:
		return List{Widen(typed.Elem)}
	case Iterable:
		return Iterable{Widen(typed.Elem)}
	case Dict:
		return Dict{Widen(typed.Key), Widen(typed.Value)}
	case Tuple:
		elems := make([]Type, len(typed.Elems))
		for i, elem := range typed.Elems {
			elems[i] = Widen(elem)
		}
		return Tuple{elems}
	case Struct:
		fields := make(map[string]Type, len(typed.Fields))
		for name, field := range typed.Fields {
			fields[name] = Widen(field)
		}
		return Struct{fields}
	case Union:
		members := make([]Type, len(typed.members))
		for i, m := range typed.members {
			members[i] = Widen(m)
		}
		return UnionOf(members...)
	}
	return t
}

// Without removes members matching drop from t. Removing everything yields
// t unchanged.
func Without(t Type, drop func(Type) bool) Type {
	u, ok := t.(Union)
	if !ok {
		return t
	}
	var kept []Type
	for _, m := range u.members {
		if !drop(m) {
			kept = append(kept, m)
		}
	}
	if len(kept) == 0 {
		return t
	}
	return UnionOf(kept...)
}
