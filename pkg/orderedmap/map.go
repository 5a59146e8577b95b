// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package orderedmap

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Map keeps its items in insertion order. Lookups are backed by an index.
// Map is not safe for concurrent mutation; frozen maps may be read concurrently.
type Map[K comparable, V any] struct {
	keys  []K
	items map[K]V
}

type MapItem[K comparable, V any] struct {
	Key   K
	Value V
}

func NewMap[K comparable, V any]() *Map[K, V] {
	return &Map[K, V]{items: map[K]V{}}
}

func NewMapWithItems[K comparable, V any](items []MapItem[K, V]) *Map[K, V] {
	m := NewMap[K, V]()
	for _, item := range items {
		m.Set(item.Key, item.Value)
	}
	return m
}

// Set replaces value of an existing key in place, or appends a new key.
func (m *Map[K, V]) Set(key K, value V) {
	if m.items == nil {
		m.items = map[K]V{}
	}
	if _, found := m.items[key]; !found {
		m.keys = append(m.keys, key)
	}
	m.items[key] = value
}

func (m *Map[K, V]) Get(key K) (V, bool) {
	val, found := m.items[key]
	return val, found
}

func (m *Map[K, V]) Delete(key K) bool {
	if _, found := m.items[key]; !found {
		return false
	}
	delete(m.items, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i:i], m.keys[i+1:]...)
			break
		}
	}
	return true
}

func (m *Map[K, V]) Keys() []K {
	return append([]K(nil), m.keys...)
}

func (m *Map[K, V]) Values() []V {
	result := make([]V, 0, len(m.keys))
	for _, k := range m.keys {
		result = append(result, m.items[k])
	}
	return result
}

func (m *Map[K, V]) Iterate(iterFunc func(k K, v V)) {
	for _, k := range m.keys {
		iterFunc(k, m.items[k])
	}
}

func (m *Map[K, V]) IterateErr(iterFunc func(k K, v V) error) error {
	for _, k := range m.keys {
		err := iterFunc(k, m.items[k])
		if err != nil {
			return err
		}
	}
	return nil
}

func (m *Map[K, V]) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Copy returns a shallow copy; later changes to either map are not shared.
func (m *Map[K, V]) Copy() *Map[K, V] {
	result := &Map[K, V]{keys: append([]K(nil), m.keys...), items: make(map[K]V, len(m.items))}
	for k, v := range m.items {
		result.items[k] = v
	}
	return result
}

// MarshalJSON encodes the map as a JSON object keeping key order.
// HTML escaping is left to the outer encoder.
func (m *Map[K, V]) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encodeJSONTo(&buf, fmt.Sprint(k)); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		if err := encodeJSONTo(&buf, m.items[k]); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func encodeJSONTo(buf *bytes.Buffer, val interface{}) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(val); err != nil {
		return err
	}
	// Encode terminates every value with a newline
	buf.Truncate(buf.Len() - 1)
	return nil
}
