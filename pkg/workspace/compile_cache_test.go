// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package workspace

import (
	"testing"

	"carvel.dev/jtt/pkg/template"
	"carvel.dev/jtt/pkg/texttemplate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileCacheDropsPanickedEntry(t *testing.T) {
	calls := 0
	cache := newCompileCache(func(name string, src []byte) (*template.CompiledTemplate, error) {
		calls++
		if calls == 1 {
			panic("compiler bug")
		}
		return template.Compile(name, src, texttemplate.LexOptions{})
	})

	assert.PanicsWithValue(t, "compiler bug", func() { cache.Get("adhoc.sql", []byte("x")) })

	_, found := cache.Find("adhoc.sql")
	assert.False(t, found)
	assert.Equal(t, 0, cache.Len())

	tpl, err := cache.Get("adhoc.sql", []byte("x"))
	require.NoError(t, err)
	require.NotNil(t, tpl)
	assert.Equal(t, "adhoc.sql", tpl.Name())
	assert.Equal(t, 2, calls)
}

func TestCompileCacheWaiterSeesPanicAsError(t *testing.T) {
	cache := newCompileCache(nil)
	entry := &compileEntry{ready: make(chan struct{})}
	cache.entries["adhoc.sql"] = entry
	cache.compile = func(string, []byte) (*template.CompiledTemplate, error) { panic("compiler bug") }

	assert.Panics(t, func() { cache.fill("adhoc.sql", entry, []byte("x")) })

	<-entry.ready
	assert.Nil(t, entry.tpl)
	require.Error(t, entry.err)
	assert.Contains(t, entry.err.Error(), "Compiling template 'adhoc.sql'")
	assert.Equal(t, 0, cache.Len())
}
