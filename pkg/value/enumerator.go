// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package value

import (
	"fmt"
	"unicode/utf8"
)

type enumeratorKind int

const (
	enumNonEnumerable enumeratorKind = iota
	enumEmpty
	enumStr
	enumSeq
	enumIter
	enumValues
)

// Enumerator describes how an object is iterated or how its keys are listed.
type Enumerator struct {
	kind   enumeratorKind
	keys   []string
	n      int
	iter   func() Iterator
	length int // -1 when unknown
	values []Value
}

// Iterator yields values until the second return value is false.
type Iterator interface {
	Next() (Value, bool)
}

// NonEnumerable is returned by objects that cannot be iterated.
func NonEnumerable() Enumerator { return Enumerator{kind: enumNonEnumerable} }

// EmptyEnumerator iterates nothing.
func EmptyEnumerator() Enumerator { return Enumerator{kind: enumEmpty} }

// StrEnumerator lists a static set of string keys.
func StrEnumerator(keys ...string) Enumerator { return Enumerator{kind: enumStr, keys: keys} }

// SeqEnumerator iterates indexes 0..n-1; values come from GetValue.
func SeqEnumerator(n int) Enumerator { return Enumerator{kind: enumSeq, n: n} }

// IterEnumerator produces values from a fresh iterator for each iteration.
// Length is -1 when not known up front.
func IterEnumerator(length int, newIter func() Iterator) Enumerator {
	return Enumerator{kind: enumIter, iter: newIter, length: length}
}

// ValuesEnumerator iterates an owned list of values.
func ValuesEnumerator(values []Value) Enumerator {
	return Enumerator{kind: enumValues, values: values}
}

// Len returns the number of items if known.
func (e Enumerator) Len() (int, bool) {
	switch e.kind {
	case enumEmpty:
		return 0, true
	case enumStr:
		return len(e.keys), true
	case enumSeq:
		return e.n, true
	case enumValues:
		return len(e.values), true
	case enumIter:
		if e.length >= 0 {
			return e.length, true
		}
	}
	return 0, false
}

type sliceIterator struct {
	items []Value
	idx   int
}

func (it *sliceIterator) Next() (Value, bool) {
	if it.idx >= len(it.items) {
		return Undefined, false
	}
	it.idx++
	return it.items[it.idx-1], true
}

type funcIterator func() (Value, bool)

func (f funcIterator) Next() (Value, bool) { return f() }

// NewSliceIterator iterates over items.
func NewSliceIterator(items []Value) Iterator { return &sliceIterator{items: items} }

// EnumerateKeys lists keys of an object: indexes for sequences, keys for
// maps and string-key enumerators. Iterator-only objects fail.
func EnumerateKeys(obj Object) (Iterator, error) {
	e, ok := obj.(Enumerable)
	if !ok {
		return nil, NewError(ErrInvalidOperation, "object is not enumerable")
	}
	enum := e.Enumerate()
	switch enum.kind {
	case enumEmpty:
		return NewSliceIterator(nil), nil
	case enumStr:
		keys := make([]Value, len(enum.keys))
		for i, k := range enum.keys {
			keys[i] = FromString(k)
		}
		return NewSliceIterator(keys), nil
	case enumSeq:
		idx := 0
		return funcIterator(func() (Value, bool) {
			if idx >= enum.n {
				return Undefined, false
			}
			idx++
			return FromInt(int64(idx - 1)), true
		}), nil
	case enumValues:
		if obj.Repr() == ReprMap {
			return NewSliceIterator(enum.values), nil
		}
		return nil, NewError(ErrInvalidOperation, "object does not support key enumeration")
	case enumIter:
		if obj.Repr() == ReprMap {
			return enum.iter(), nil
		}
		return nil, NewError(ErrInvalidOperation, "object does not support key enumeration")
	default:
		return nil, NewError(ErrInvalidOperation, "object is not enumerable")
	}
}

// EnumerateValues iterates item values of an object. For map objects the
// values are looked up through GetValue for each key.
func EnumerateValues(obj Object) (Iterator, error) {
	e, ok := obj.(Enumerable)
	if !ok {
		return nil, NewError(ErrInvalidOperation, "object is not enumerable")
	}
	enum := e.Enumerate()
	switch enum.kind {
	case enumEmpty:
		return NewSliceIterator(nil), nil
	case enumIter:
		if obj.Repr() == ReprMap {
			return lookupIterator(obj, enum.iter())
		}
		return enum.iter(), nil
	case enumValues:
		if obj.Repr() == ReprMap {
			return lookupIterator(obj, NewSliceIterator(enum.values))
		}
		return NewSliceIterator(enum.values), nil
	case enumStr, enumSeq:
		keys, err := EnumerateKeys(obj)
		if err != nil {
			return nil, err
		}
		return lookupIterator(obj, keys)
	default:
		return nil, NewError(ErrInvalidOperation, "object is not enumerable")
	}
}

func lookupIterator(obj Object, keys Iterator) (Iterator, error) {
	getter, ok := obj.(AttributeGetter)
	if !ok {
		return nil, NewError(ErrInvalidOperation, "object does not support value lookup")
	}
	return funcIterator(func() (Value, bool) {
		key, ok := keys.Next()
		if !ok {
			return Undefined, false
		}
		val, _ := getter.GetValue(key)
		return val, true
	}), nil
}

// Iterate produces the iteration order used by for loops: items of
// sequences, keys of maps, characters of strings.
func Iterate(v Value) (Iterator, error) {
	switch typed := v.data.(type) {
	case nil:
		return NewSliceIterator(nil), nil
	case seqData:
		return NewSliceIterator(typed), nil
	case *Map:
		return NewSliceIterator(typed.Keys()), nil
	case string:
		return stringIterator(typed), nil
	case safeString:
		return stringIterator(string(typed)), nil
	case Object:
		switch typed.Repr() {
		case ReprMap:
			return EnumerateKeys(typed)
		case ReprSeq, ReprIterable:
			return EnumerateValues(typed)
		default:
			if _, ok := typed.(Enumerable); ok {
				return EnumerateValues(typed)
			}
		}
	}
	return nil, NewError(ErrInvalidOperation, fmt.Sprintf("%s is not iterable", v.Kind()))
}

func stringIterator(s string) Iterator {
	rest := s
	return funcIterator(func() (Value, bool) {
		if len(rest) == 0 {
			return Undefined, false
		}
		r, size := utf8.DecodeRuneInString(rest)
		rest = rest[size:]
		return FromString(string(r)), true
	})
}

// Collect drains an iterable value into a slice.
func Collect(v Value) ([]Value, error) {
	if items, ok := v.AsSlice(); ok {
		return items, nil
	}
	iter, err := Iterate(v)
	if err != nil {
		return nil, err
	}
	var result []Value
	for {
		item, ok := iter.Next()
		if !ok {
			return result, nil
		}
		result = append(result, item)
	}
}
