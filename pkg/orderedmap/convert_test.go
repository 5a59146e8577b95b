// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package orderedmap_test

import (
	"testing"

	"carvel.dev/jtt/pkg/orderedmap"
	"github.com/stretchr/testify/assert"
)

func TestFromStringMapSortsKeys(t *testing.T) {
	m := orderedmap.FromStringMap(map[string]int{"b": 2, "c": 3, "a": 1})
	assert.Equal(t, []string{"a", "b", "c"}, m.Keys())
	assert.Equal(t, []int{1, 2, 3}, m.Values())
}

func TestMapKeepsInsertionOrder(t *testing.T) {
	m := orderedmap.NewMap[string, int]()
	m.Set("z", 1)
	m.Set("a", 2)
	m.Set("z", 3)
	assert.Equal(t, []string{"z", "a"}, m.Keys())

	val, found := m.Get("z")
	assert.True(t, found)
	assert.Equal(t, 3, val)

	assert.True(t, m.Delete("z"))
	assert.False(t, m.Delete("z"))
	assert.Equal(t, []string{"a"}, m.Keys())
	assert.Equal(t, 1, m.Len())
}

func TestMapCopyIsIndependent(t *testing.T) {
	m := orderedmap.NewMap[string, int]()
	m.Set("a", 1)
	c := m.Copy()
	c.Set("b", 2)
	assert.Equal(t, 1, m.Len())
	assert.Equal(t, 2, c.Len())
}

func TestMapMarshalJSONKeepsOrder(t *testing.T) {
	m := orderedmap.NewMap[string, interface{}]()
	m.Set("z", 1)
	m.Set("a", []interface{}{"x"})
	bs, err := m.MarshalJSON()
	assert.NoError(t, err)
	assert.Equal(t, `{"z":1,"a":["x"]}`, string(bs))
}
