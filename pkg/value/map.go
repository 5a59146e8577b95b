// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package value

import (
	"fmt"
	"math"
	"math/big"
	"reflect"
	"strings"

	"carvel.dev/jtt/pkg/orderedmap"
)

// Map is an insertion ordered mapping from Value to Value. A Map wrapped in
// a Value is treated as immutable; builders own it until then.
type Map struct {
	items *orderedmap.Map[mapKey, mapEntry]
}

type mapEntry struct {
	key Value
	val Value
}

// mapKey is the hashable form of a Value: values that compare equal produce
// equal keys.
type mapKey struct {
	kind Kind
	str  string
	num  int64
	ptr  uintptr
}

func NewMap() *Map {
	return &Map{items: orderedmap.NewMap[mapKey, mapEntry]()}
}

// NewMapFromPairs builds a map from alternating key/value arguments.
func NewMapFromPairs(pairs ...Value) *Map {
	if len(pairs)%2 != 0 {
		panic("expected even number of key/value pairs")
	}
	m := NewMap()
	for i := 0; i < len(pairs); i += 2 {
		m.Set(pairs[i], pairs[i+1])
	}
	return m
}

func (m *Map) Set(key, val Value) {
	m.items.Set(keyOf(key), mapEntry{key, val})
}

// SetString is a shortcut for string keys.
func (m *Map) SetString(key string, val Value) { m.Set(FromString(key), val) }

func (m *Map) Get(key Value) (Value, bool) {
	entry, found := m.items.Get(keyOf(key))
	return entry.val, found
}

func (m *Map) Delete(key Value) bool { return m.items.Delete(keyOf(key)) }

func (m *Map) Len() int {
	if m == nil || m.items == nil {
		return 0
	}
	return m.items.Len()
}

func (m *Map) Keys() []Value {
	result := make([]Value, 0, m.Len())
	m.items.Iterate(func(_ mapKey, e mapEntry) { result = append(result, e.key) })
	return result
}

func (m *Map) Values() []Value {
	result := make([]Value, 0, m.Len())
	m.items.Iterate(func(_ mapKey, e mapEntry) { result = append(result, e.val) })
	return result
}

func (m *Map) Iterate(iterFunc func(k, v Value)) {
	m.items.Iterate(func(_ mapKey, e mapEntry) { iterFunc(e.key, e.val) })
}

func (m *Map) IterateErr(iterFunc func(k, v Value) error) error {
	return m.items.IterateErr(func(_ mapKey, e mapEntry) error { return iterFunc(e.key, e.val) })
}

func (m *Map) Copy() *Map { return &Map{items: m.items.Copy()} }

func keyOf(v Value) mapKey {
	switch typed := v.data.(type) {
	case nil:
		return mapKey{kind: KindUndefined}
	case noneType:
		return mapKey{kind: KindNone}
	case bool:
		if typed {
			return mapKey{kind: KindBool, num: 1}
		}
		return mapKey{kind: KindBool}
	case int64:
		return mapKey{kind: KindInteger, num: typed}
	case *big.Int:
		return mapKey{kind: KindInteger, str: typed.String()}
	case float64:
		if typed == math.Trunc(typed) && typed >= math.MinInt64 && typed < math.MaxInt64 {
			return mapKey{kind: KindInteger, num: int64(typed)}
		}
		return mapKey{kind: KindFloat, str: fmt.Sprintf("%v", typed)}
	case string:
		return mapKey{kind: KindString, str: typed}
	case safeString:
		return mapKey{kind: KindString, str: string(typed)}
	case []byte:
		return mapKey{kind: KindBytes, str: string(typed)}
	case seqData:
		return mapKey{kind: KindSeq, str: seqKeyString(typed)}
	case *Map:
		return mapKey{kind: KindMap, ptr: reflect.ValueOf(typed).Pointer()}
	case Object:
		rv := reflect.ValueOf(typed)
		if rv.Kind() == reflect.Ptr {
			return mapKey{kind: KindPlain, ptr: rv.Pointer()}
		}
		return mapKey{kind: KindPlain, str: fmt.Sprintf("%T:%#v", typed, typed)}
	default:
		return mapKey{kind: KindPlain, str: fmt.Sprintf("%#v", typed)}
	}
}

func seqKeyString(items seqData) string {
	var sb strings.Builder
	sb.WriteString("[")
	for i, item := range items {
		if i > 0 {
			sb.WriteString(",")
		}
		k := keyOf(item)
		fmt.Fprintf(&sb, "%d:%d:%q:%d", k.kind, k.num, k.str, k.ptr)
	}
	sb.WriteString("]")
	return sb.String()
}
