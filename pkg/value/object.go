// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package value

import (
	"context"
	"fmt"
	"io"
	"reflect"
)

// ObjectRepr tells the engine how an object behaves structurally.
type ObjectRepr int

const (
	// ReprPlain objects have no structure beyond their attributes and methods.
	ReprPlain ObjectRepr = iota
	// ReprMap objects iterate over keys and expose items via GetValue.
	ReprMap
	// ReprSeq objects expose items via integer GetValue from 0 to length.
	ReprSeq
	// ReprIterable objects can only be iterated.
	ReprIterable
)

// Object is the host extension point. Implementations only need Repr;
// the remaining capabilities are opt-in interfaces below.
type Object interface {
	Repr() ObjectRepr
}

// AttributeGetter is implemented by objects exposing attributes or items.
// The second return value is false when key is not present.
type AttributeGetter interface {
	GetValue(key Value) (Value, bool)
}

// Enumerable is implemented by objects that can be iterated or listed.
type Enumerable interface {
	Enumerate() Enumerator
}

// Callable is implemented by objects invoked as functions.
type Callable interface {
	Call(st State, args []Value) (Value, error)
}

// MethodCallable is implemented by objects with methods. Implementations
// must return an UnknownMethod error for names they do not handle.
type MethodCallable interface {
	CallMethod(st State, name string, args []Value) (Value, error)
}

// Truthy overrides the default truthiness of an object.
type Truthy interface {
	IsTrue() bool
}

// Renderer overrides how an object is converted to output text.
type Renderer interface {
	Render(w io.Writer) error
}

// Equaler is implemented by objects with structural equality.
// Objects without it compare by identity.
type Equaler interface {
	EqualTo(other Object) bool
}

// State is the view of the executing template handed to callables.
type State interface {
	// Context carries cancellation for host functions performing I/O.
	Context() context.Context
	TemplateName() string
	Lookup(name string) Value
}

// BackgroundState is a State for calling objects outside of a render.
type BackgroundState struct{}

var _ State = BackgroundState{}

func (BackgroundState) Context() context.Context { return context.Background() }
func (BackgroundState) TemplateName() string     { return "" }
func (BackgroundState) Lookup(string) Value      { return Undefined }

func objectIsTrue(obj Object) bool {
	if t, ok := obj.(Truthy); ok {
		return t.IsTrue()
	}
	switch obj.Repr() {
	case ReprSeq, ReprMap:
		if n, ok := objectLen(obj); ok {
			return n > 0
		}
	}
	return true
}

func objectLen(obj Object) (int, bool) {
	if e, ok := obj.(Enumerable); ok {
		return e.Enumerate().Len()
	}
	return 0, false
}

// sameObject compares objects by reference identity.
func sameObject(a, b Object) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	switch ta.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Func, reflect.Chan, reflect.Slice:
		return reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer()
	}
	if ta.Comparable() {
		return a == b
	}
	return false
}

// SameObject reports whether both handles refer to the same object.
func SameObject(a, b Object) bool { return sameObject(a, b) }

func objectsEqual(a, b Object) bool {
	if eq, ok := a.(Equaler); ok {
		return eq.EqualTo(b)
	}
	return sameObject(a, b)
}

// Function adapts a Go func into a callable object.
type Function struct {
	name string
	fn   func(st State, args []Value) (Value, error)
}

var _ Callable = &Function{}

func NewFunction(name string, fn func(st State, args []Value) (Value, error)) *Function {
	return &Function{name: name, fn: fn}
}

func (f *Function) Name() string     { return f.name }
func (f *Function) Repr() ObjectRepr { return ReprPlain }

func (f *Function) Call(st State, args []Value) (val Value, resultErr error) {
	// Catch any panics to give a better contextual information
	defer func() {
		if err := recover(); err != nil {
			if typedErr, ok := err.(error); ok {
				resultErr = fmt.Errorf("%s: %w", f.name, typedErr)
			} else {
				resultErr = fmt.Errorf("(p) %s: %s", f.name, err)
			}
		}
	}()
	return f.fn(st, args)
}

func (f *Function) Render(w io.Writer) error {
	_, err := fmt.Fprintf(w, "<function %s>", f.name)
	return err
}

// GetAttr performs attribute lookup on any value. Second return value is
// false when the attribute does not exist.
func GetAttr(v Value, name string) (Value, bool) {
	switch typed := v.data.(type) {
	case *Map:
		return typed.Get(FromString(name))
	case Object:
		if g, ok := typed.(AttributeGetter); ok {
			return g.GetValue(FromString(name))
		}
	}
	return Undefined, false
}

// GetItem performs subscript lookup. Negative integer indexes count from the end.
func GetItem(v Value, key Value) (Value, bool) {
	switch typed := v.data.(type) {
	case seqData:
		if idx, ok := seqIndex(key, len(typed)); ok {
			return typed[idx], true
		}
		return Undefined, false
	case string:
		return stringItem(typed, key)
	case safeString:
		return stringItem(string(typed), key)
	case *Map:
		return typed.Get(key)
	case Object:
		g, ok := typed.(AttributeGetter)
		if !ok {
			return Undefined, false
		}
		if _, isInt := key.data.(int64); isInt && typed.Repr() == ReprSeq {
			if n, known := objectLen(typed); known {
				if idx, ok := seqIndex(key, n); ok {
					return g.GetValue(FromInt(int64(idx)))
				}
				return Undefined, false
			}
		}
		return g.GetValue(key)
	}
	return Undefined, false
}

func stringItem(s string, key Value) (Value, bool) {
	runes := []rune(s)
	if idx, ok := seqIndex(key, len(runes)); ok {
		return FromString(string(runes[idx])), true
	}
	return Undefined, false
}

func seqIndex(key Value, length int) (int, bool) {
	idx, ok := key.data.(int64)
	if !ok {
		return 0, false
	}
	if idx < 0 {
		idx += int64(length)
	}
	if idx < 0 || idx >= int64(length) {
		return 0, false
	}
	return int(idx), true
}

// Call invokes a callable value.
func Call(st State, v Value, args []Value) (Value, error) {
	if obj, ok := v.data.(Object); ok {
		if c, ok := obj.(Callable); ok {
			return c.Call(st, args)
		}
	}
	return Undefined, NewError(ErrInvalidOperation, fmt.Sprintf("%s is not callable", v.Kind()))
}
