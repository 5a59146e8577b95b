// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package value

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// AttributeSetter is implemented by objects that allow `{% set obj.attr = ... %}`.
type AttributeSetter interface {
	SetAttr(name string, val Value) error
}

// MutableSeq is the list produced by list literals and the list filter.
// Each evaluation of a literal builds a fresh one. It supports the
// in-place list methods templates rely on (append, extend, pop, ...).
type MutableSeq struct {
	items []Value
}

var _ AttributeGetter = &MutableSeq{}
var _ Enumerable = &MutableSeq{}
var _ MethodCallable = &MutableSeq{}

func NewMutableSeq(items []Value) *MutableSeq {
	return &MutableSeq{items: append([]Value(nil), items...)}
}

func (s *MutableSeq) Repr() ObjectRepr { return ReprSeq }

func (s *MutableSeq) GetValue(key Value) (Value, bool) {
	if idx, ok := seqIndex(key, len(s.items)); ok {
		return s.items[idx], true
	}
	return Undefined, false
}

func (s *MutableSeq) Enumerate() Enumerator {
	// snapshot so that appending during iteration does not affect the loop
	return ValuesEnumerator(s.Items())
}

// Items returns a copy of current items.
func (s *MutableSeq) Items() []Value { return append([]Value(nil), s.items...) }

func (s *MutableSeq) Append(val Value) { s.items = append(s.items, val) }

func (s *MutableSeq) CallMethod(st State, name string, args []Value) (Value, error) {
	self := FromObject(s)
	switch name {
	case "append":
		if err := CheckArgCount(name, args, 1, 1); err != nil {
			return Undefined, err
		}
		s.items = append(s.items, args[0])
		return None, nil

	case "extend":
		if err := CheckArgCount(name, args, 1, 1); err != nil {
			return Undefined, err
		}
		items, err := Collect(args[0])
		if err != nil {
			return Undefined, err
		}
		s.items = append(s.items, items...)
		return None, nil

	case "insert":
		if err := CheckArgCount(name, args, 2, 2); err != nil {
			return Undefined, err
		}
		idx, err := IntArg(name, args[0])
		if err != nil {
			return Undefined, err
		}
		pos := clampIndex(idx, len(s.items))
		s.items = append(s.items, Undefined)
		copy(s.items[pos+1:], s.items[pos:])
		s.items[pos] = args[1]
		return None, nil

	case "pop":
		if err := CheckArgCount(name, args, 0, 1); err != nil {
			return Undefined, err
		}
		if len(s.items) == 0 {
			return Undefined, NewError(ErrInvalidOperation, "pop from empty list")
		}
		idx := int64(len(s.items) - 1)
		if len(args) == 1 {
			var err error
			idx, err = IntArg(name, args[0])
			if err != nil {
				return Undefined, err
			}
		}
		pos, ok := seqIndex(FromInt(idx), len(s.items))
		if !ok {
			return Undefined, NewError(ErrInvalidOperation, "pop index out of range")
		}
		val := s.items[pos]
		s.items = append(s.items[:pos], s.items[pos+1:]...)
		return val, nil

	case "remove":
		if err := CheckArgCount(name, args, 1, 1); err != nil {
			return Undefined, err
		}
		for i, item := range s.items {
			if Equal(item, args[0]) {
				s.items = append(s.items[:i], s.items[i+1:]...)
				return None, nil
			}
		}
		return Undefined, NewError(ErrInvalidOperation, "list.remove(x): x not in list")

	case "reverse":
		for i, j := 0, len(s.items)-1; i < j; i, j = i+1, j-1 {
			s.items[i], s.items[j] = s.items[j], s.items[i]
		}
		return None, nil

	case "sort":
		sort.SliceStable(s.items, func(i, j int) bool { return SortCompare(s.items[i], s.items[j]) < 0 })
		return None, nil

	case "clear":
		s.items = nil
		return None, nil

	case "copy":
		return FromObject(NewMutableSeq(s.items)), nil

	default:
		return seqMethod(self, s.items, name, args)
	}
}

func clampIndex(idx int64, length int) int {
	if idx < 0 {
		idx += int64(length)
	}
	switch {
	case idx < 0:
		return 0
	case idx > int64(length):
		return length
	}
	return int(idx)
}

// seqMethod implements read-only list methods shared by all sequences.
func seqMethod(self Value, items []Value, name string, args []Value) (Value, error) {
	switch name {
	case "count":
		if err := CheckArgCount(name, args, 1, 1); err != nil {
			return Undefined, err
		}
		var count int64
		for _, item := range items {
			if Equal(item, args[0]) {
				count++
			}
		}
		return FromInt(count), nil

	case "index":
		if err := CheckArgCount(name, args, 1, 1); err != nil {
			return Undefined, err
		}
		for i, item := range items {
			if Equal(item, args[0]) {
				return FromInt(int64(i)), nil
			}
		}
		return Undefined, NewError(ErrInvalidOperation, fmt.Sprintf("%s is not in list", args[0].Repr()))

	default:
		return Undefined, UnknownMethodError(self, name)
	}
}

// MutableMap is the dict produced by dict literals and dict().
type MutableMap struct {
	m *Map
}

var _ AttributeGetter = &MutableMap{}
var _ Enumerable = &MutableMap{}
var _ MethodCallable = &MutableMap{}

func NewMutableMap(m *Map) *MutableMap {
	if m == nil {
		m = NewMap()
	}
	return &MutableMap{m: m}
}

func (m *MutableMap) Repr() ObjectRepr { return ReprMap }

func (m *MutableMap) GetValue(key Value) (Value, bool) { return m.m.Get(key) }

func (m *MutableMap) Enumerate() Enumerator { return ValuesEnumerator(m.m.Keys()) }

// Snapshot returns a copy of the current contents.
func (m *MutableMap) Snapshot() *Map { return m.m.Copy() }

func (m *MutableMap) Set(key, val Value) { m.m.Set(key, val) }

func (m *MutableMap) CallMethod(st State, name string, args []Value) (Value, error) {
	switch name {
	case "update":
		args, kwargs := SplitKwargs(args)
		if err := CheckArgCount(name, args, 0, 1); err != nil {
			return Undefined, err
		}
		if len(args) == 1 {
			if err := updateFrom(m.m, args[0]); err != nil {
				return Undefined, err
			}
		}
		if kwargs != nil {
			kwargs.AsMap().Iterate(func(k, v Value) { m.m.Set(k, v) })
		}
		return None, nil

	case "pop":
		if err := CheckArgCount(name, args, 1, 2); err != nil {
			return Undefined, err
		}
		val, found := m.m.Get(args[0])
		if !found {
			if len(args) == 2 {
				return args[1], nil
			}
			return Undefined, NewError(ErrInvalidOperation, fmt.Sprintf("key %s not found", args[0].Repr()))
		}
		m.m.Delete(args[0])
		return val, nil

	case "setdefault":
		if err := CheckArgCount(name, args, 1, 2); err != nil {
			return Undefined, err
		}
		if val, found := m.m.Get(args[0]); found {
			return val, nil
		}
		def := None
		if len(args) == 2 {
			def = args[1]
		}
		m.m.Set(args[0], def)
		return def, nil

	case "clear":
		m.m = NewMap()
		return None, nil

	default:
		return mapMethod(FromObject(m), m.m, name, args)
	}
}

func updateFrom(dst *Map, src Value) error {
	switch src.Kind() {
	case KindMap:
		keys, err := Collect(src)
		if err != nil {
			return err
		}
		for _, k := range keys {
			val, _ := GetItem(src, k)
			dst.Set(k, val)
		}
		return nil
	case KindSeq, KindIterable:
		pairs, err := Collect(src)
		if err != nil {
			return err
		}
		for _, pair := range pairs {
			kv, err := Collect(pair)
			if err != nil || len(kv) != 2 {
				return NewError(ErrCannotUnpack, "dictionary update sequence element must be a pair")
			}
			dst.Set(kv[0], kv[1])
		}
		return nil
	default:
		return NewError(ErrInvalidArgument, fmt.Sprintf("cannot update dict from %s", src.Kind()))
	}
}

// mapMethod implements read-only dict methods shared by all maps.
func mapMethod(self Value, m *Map, name string, args []Value) (Value, error) {
	switch name {
	case "items":
		items := make([]Value, 0, m.Len())
		m.Iterate(func(k, v Value) { items = append(items, FromSlice([]Value{k, v})) })
		return FromSlice(items), nil
	case "keys":
		return FromSlice(m.Keys()), nil
	case "values":
		return FromSlice(m.Values()), nil
	case "get":
		if err := CheckArgCount(name, args, 1, 2); err != nil {
			return Undefined, err
		}
		if val, found := m.Get(args[0]); found {
			return val, nil
		}
		if len(args) == 2 {
			return args[1], nil
		}
		return None, nil
	case "copy":
		return FromObject(NewMutableMap(m.Copy())), nil
	default:
		return Undefined, UnknownMethodError(self, name)
	}
}

// Namespace is a mutable attribute bag created by namespace(). It is the
// only way to carry state out of a loop body.
type Namespace struct {
	attrs *Map
}

var _ AttributeGetter = &Namespace{}
var _ AttributeSetter = &Namespace{}
var _ Enumerable = &Namespace{}

func NewNamespace(initial *Map) *Namespace {
	if initial == nil {
		initial = NewMap()
	}
	return &Namespace{attrs: initial.Copy()}
}

func (n *Namespace) Repr() ObjectRepr { return ReprPlain }

func (n *Namespace) GetValue(key Value) (Value, bool) { return n.attrs.Get(key) }

func (n *Namespace) SetAttr(name string, val Value) error {
	n.attrs.SetString(name, val)
	return nil
}

func (n *Namespace) Enumerate() Enumerator { return ValuesEnumerator(n.attrs.Keys()) }

func (n *Namespace) Render(w io.Writer) error {
	var sb strings.Builder
	writeMapRepr(&sb, n.attrs.Keys(), func(k Value) Value { v, _ := n.attrs.Get(k); return v })
	_, err := fmt.Fprintf(w, "<Namespace %s>", sb.String())
	return err
}
