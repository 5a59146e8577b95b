// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package value

import (
	"fmt"
	"sort"
	"strings"
)

// Kwargs carries keyword arguments as the last positional argument of a call.
type Kwargs struct {
	values *Map
	used   map[string]struct{}
}

var _ AttributeGetter = &Kwargs{}
var _ Enumerable = &Kwargs{}

func NewKwargs(values *Map) *Kwargs {
	if values == nil {
		values = NewMap()
	}
	return &Kwargs{values: values, used: map[string]struct{}{}}
}

// NewKwargsFromPairs is a convenience for host code and tests.
func NewKwargsFromPairs(pairs ...interface{}) *Kwargs {
	m := NewMap()
	for i := 0; i+1 < len(pairs); i += 2 {
		m.SetString(pairs[i].(string), FromGo(pairs[i+1]))
	}
	return NewKwargs(m)
}

func (k *Kwargs) Repr() ObjectRepr { return ReprMap }

func (k *Kwargs) GetValue(key Value) (Value, bool) { return k.values.Get(key) }

func (k *Kwargs) Enumerate() Enumerator { return ValuesEnumerator(k.values.Keys()) }

// Get returns the named argument and marks it used.
func (k *Kwargs) Get(name string) (Value, bool) {
	if k == nil {
		return Undefined, false
	}
	val, found := k.values.Get(FromString(name))
	if found {
		k.used[name] = struct{}{}
	}
	return val, found
}

// Has checks presence without marking the argument used.
func (k *Kwargs) Has(name string) bool {
	if k == nil {
		return false
	}
	_, found := k.values.Get(FromString(name))
	return found
}

func (k *Kwargs) Names() []string {
	if k == nil {
		return nil
	}
	var result []string
	for _, key := range k.values.Keys() {
		s, _ := key.AsString()
		result = append(result, s)
	}
	return result
}

func (k *Kwargs) Len() int {
	if k == nil {
		return 0
	}
	return k.values.Len()
}

// AssertAllUsed fails when some keyword arguments were never read.
func (k *Kwargs) AssertAllUsed() error {
	if k == nil {
		return nil
	}
	var unused []string
	for _, name := range k.Names() {
		if _, found := k.used[name]; !found {
			unused = append(unused, name)
		}
	}
	if len(unused) > 0 {
		sort.Strings(unused)
		return NewError(ErrTooManyArguments, fmt.Sprintf("unknown keyword arguments: %s", strings.Join(unused, ", ")))
	}
	return nil
}

// Unused returns keyword arguments that were not read via Get.
func (k *Kwargs) Unused() *Map {
	result := NewMap()
	if k == nil {
		return result
	}
	k.values.Iterate(func(key, val Value) {
		name, _ := key.AsString()
		if _, found := k.used[name]; !found {
			result.Set(key, val)
		}
	})
	return result
}

// AsMap returns a copy of all keyword arguments.
func (k *Kwargs) AsMap() *Map {
	if k == nil {
		return NewMap()
	}
	return k.values.Copy()
}

// SplitKwargs separates trailing keyword arguments from positional ones.
func SplitKwargs(args []Value) ([]Value, *Kwargs) {
	if len(args) > 0 {
		if kw, ok := AsObjectOf[*Kwargs](args[len(args)-1]); ok {
			return args[:len(args)-1], kw
		}
	}
	return args, nil
}

// CheckArgCount validates number of positional arguments.
func CheckArgCount(name string, args []Value, min, max int) error {
	switch {
	case len(args) < min:
		return NewError(ErrMissingArgument, fmt.Sprintf("%s expects at least %d argument(s), got %d", name, min, len(args)))
	case max >= 0 && len(args) > max:
		return NewError(ErrTooManyArguments, fmt.Sprintf("%s expects at most %d argument(s), got %d", name, max, len(args)))
	}
	return nil
}

// ArgOrKwarg returns positional argument at idx or the keyword argument with name.
func ArgOrKwarg(args []Value, kwargs *Kwargs, idx int, name string) (Value, bool) {
	if idx < len(args) {
		return args[idx], true
	}
	return kwargs.Get(name)
}

// StringArg extracts a string argument.
func StringArg(name string, v Value) (string, error) {
	s, ok := v.AsString()
	if !ok {
		return "", NewError(ErrInvalidArgument, fmt.Sprintf("%s: expected string, got %s", name, v.Kind()))
	}
	return s, nil
}

// IntArg extracts an integer argument.
func IntArg(name string, v Value) (int64, error) {
	if v.Kind() != KindInteger && v.Kind() != KindBool {
		return 0, NewError(ErrInvalidArgument, fmt.Sprintf("%s: expected integer, got %s", name, v.Kind()))
	}
	i, ok := v.AsInt()
	if !ok {
		return 0, NewError(ErrOverflow, fmt.Sprintf("%s: integer out of range", name))
	}
	return i, nil
}
