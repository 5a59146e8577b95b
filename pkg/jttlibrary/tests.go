// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package jttlibrary

import (
	"strings"

	"carvel.dev/jtt/pkg/value"
)

var (
	// TestsAPI contains tests used with `value is name(args)`
	TestsAPI = Library{
		Globals: map[string]value.Value{},
		Filters: map[string]value.Value{},
		Tests: map[string]value.Value{
			"defined":      NewFunc("defined", unaryTest(func(v value.Value) bool { return !v.IsUndefined() })),
			"undefined":    NewFunc("undefined", unaryTest(value.Value.IsUndefined)),
			"none":         NewFunc("none", unaryTest(value.Value.IsNone)),
			"true":         NewFunc("true", unaryTest(func(v value.Value) bool { b, ok := v.AsBool(); return ok && b })),
			"false":        NewFunc("false", unaryTest(func(v value.Value) bool { b, ok := v.AsBool(); return ok && !b })),
			"boolean":      NewFunc("boolean", kindTest(value.KindBool)),
			"string":       NewFunc("string", kindTest(value.KindString)),
			"integer":      NewFunc("integer", kindTest(value.KindInteger)),
			"float":        NewFunc("float", kindTest(value.KindFloat)),
			"number":       NewFunc("number", unaryTest(value.Value.IsNumber)),
			"mapping":      NewFunc("mapping", kindTest(value.KindMap)),
			"sequence":     NewFunc("sequence", unaryTest(isSequence)),
			"iterable":     NewFunc("iterable", unaryTest(isIterable)),
			"callable":     NewFunc("callable", unaryTest(isCallable)),
			"safe":         NewFunc("safe", unaryTest(value.Value.IsSafe)),
			"escaped":      NewFunc("escaped", unaryTest(value.Value.IsSafe)),
			"lower":        NewFunc("lower", unaryTest(func(v value.Value) bool { return caseTest(v, strings.ToLower) })),
			"upper":        NewFunc("upper", unaryTest(func(v value.Value) bool { return caseTest(v, strings.ToUpper) })),
			"odd":          NewFunc("odd", unaryTest(func(v value.Value) bool { i, ok := intValue(v); return ok && i%2 != 0 })),
			"even":         NewFunc("even", unaryTest(func(v value.Value) bool { i, ok := intValue(v); return ok && i%2 == 0 })),
			"divisibleby":  NewFunc("divisibleby", divisibleByTest),
			"eq":           NewFunc("eq", compareTest(func(c int) bool { return c == 0 })),
			"equalto":      NewFunc("equalto", compareTest(func(c int) bool { return c == 0 })),
			"==":           NewFunc("==", compareTest(func(c int) bool { return c == 0 })),
			"ne":           NewFunc("ne", compareTest(func(c int) bool { return c != 0 })),
			"!=":           NewFunc("!=", compareTest(func(c int) bool { return c != 0 })),
			"lt":           NewFunc("lt", compareTest(func(c int) bool { return c < 0 })),
			"lessthan":     NewFunc("lessthan", compareTest(func(c int) bool { return c < 0 })),
			"le":           NewFunc("le", compareTest(func(c int) bool { return c <= 0 })),
			"gt":           NewFunc("gt", compareTest(func(c int) bool { return c > 0 })),
			"greaterthan":  NewFunc("greaterthan", compareTest(func(c int) bool { return c > 0 })),
			"ge":           NewFunc("ge", compareTest(func(c int) bool { return c >= 0 })),
			"in":           NewFunc("in", inTest),
			"sameas":       NewFunc("sameas", sameAsTest),
			"startingwith": NewFunc("startingwith", stringPairTest(strings.HasPrefix)),
			"endingwith":   NewFunc("endingwith", stringPairTest(strings.HasSuffix)),
		},
	}
)

func unaryTest(pred func(value.Value) bool) HostFunc {
	return func(_ value.State, args []value.Value, _ *value.Kwargs) (value.Value, error) {
		if err := expectArgs(args, 1, 1); err != nil {
			return value.Undefined, err
		}
		return value.FromBool(pred(args[0])), nil
	}
}

func kindTest(kind value.Kind) HostFunc {
	return unaryTest(func(v value.Value) bool { return v.Kind() == kind })
}

func isSequence(v value.Value) bool {
	return v.Kind() == value.KindSeq
}

func isIterable(v value.Value) bool {
	switch v.Kind() {
	case value.KindSeq, value.KindMap, value.KindIterable, value.KindString:
		return true
	}
	return false
}

func isCallable(v value.Value) bool {
	obj, ok := v.AsObject()
	if !ok {
		return false
	}
	_, ok = obj.(value.Callable)
	return ok
}

func caseTest(v value.Value, conv func(string) string) bool {
	s, ok := v.AsString()
	return ok && conv(s) == s
}

func intValue(v value.Value) (int64, bool) {
	if v.Kind() != value.KindInteger {
		return 0, false
	}
	return v.AsInt()
}

func divisibleByTest(_ value.State, args []value.Value, _ *value.Kwargs) (value.Value, error) {
	if err := expectArgs(args, 2, 2); err != nil {
		return value.Undefined, err
	}
	rem, err := value.Rem(args[0], args[1])
	if err != nil {
		return value.Undefined, err
	}
	f, _ := rem.AsFloat()
	return value.FromBool(f == 0), nil
}

// compareTest accepts equality of any values and ordering of comparable ones.
func compareTest(pred func(int) bool) HostFunc {
	return func(_ value.State, args []value.Value, _ *value.Kwargs) (value.Value, error) {
		if err := expectArgs(args, 2, 2); err != nil {
			return value.Undefined, err
		}
		if pred(1) == pred(-1) {
			// eq / ne
			return value.FromBool(pred(0) == value.Equal(args[0], args[1])), nil
		}
		c, err := value.Compare(args[0], args[1])
		if err != nil {
			return value.Undefined, err
		}
		return value.FromBool(pred(c)), nil
	}
}

func inTest(_ value.State, args []value.Value, _ *value.Kwargs) (value.Value, error) {
	if err := expectArgs(args, 2, 2); err != nil {
		return value.Undefined, err
	}
	found, err := value.Contains(args[1], args[0])
	if err != nil {
		return value.Undefined, err
	}
	return value.FromBool(found), nil
}

func sameAsTest(_ value.State, args []value.Value, _ *value.Kwargs) (value.Value, error) {
	if err := expectArgs(args, 2, 2); err != nil {
		return value.Undefined, err
	}
	a, b := args[0], args[1]
	objA, okA := a.AsObject()
	objB, okB := b.AsObject()
	if okA && okB {
		return value.FromBool(value.SameObject(objA, objB)), nil
	}
	if okA || okB {
		return value.False, nil
	}
	return value.FromBool(a.Kind() == b.Kind() && value.Equal(a, b)), nil
}

func stringPairTest(pred func(s, affix string) bool) HostFunc {
	return func(_ value.State, args []value.Value, _ *value.Kwargs) (value.Value, error) {
		if err := expectArgs(args, 2, 2); err != nil {
			return value.Undefined, err
		}
		s, ok := args[0].AsString()
		if !ok {
			return value.False, nil
		}
		affix, err := value.StringArg("affix", args[1])
		if err != nil {
			return value.Undefined, err
		}
		return value.FromBool(pred(s, affix)), nil
	}
}
