// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package workspace

import (
	"crypto/sha256"
	"fmt"
	"sync"

	"carvel.dev/jtt/pkg/template"
)

// compileCache holds templates compiled after the environment was built.
// Concurrent requests for the same name and source compile once.
type compileCache struct {
	lock    sync.Mutex
	entries map[string]*compileEntry
	compile func(name string, src []byte) (*template.CompiledTemplate, error)
}

type compileEntry struct {
	digest [sha256.Size]byte
	// ready is closed once tpl and err are set
	ready chan struct{}
	tpl   *template.CompiledTemplate
	err   error
}

func newCompileCache(compile func(string, []byte) (*template.CompiledTemplate, error)) *compileCache {
	return &compileCache{entries: map[string]*compileEntry{}, compile: compile}
}

// Get returns the template compiled from src. A different source under a
// known name replaces the previous entry.
func (c *compileCache) Get(name string, src []byte) (*template.CompiledTemplate, error) {
	digest := sha256.Sum256(src)

	c.lock.Lock()
	entry, found := c.entries[name]
	owner := !found || entry.digest != digest
	if owner {
		entry = &compileEntry{digest: digest, ready: make(chan struct{})}
		c.entries[name] = entry
	}
	c.lock.Unlock()

	if owner {
		c.fill(name, entry, src)
	}
	<-entry.ready
	return entry.tpl, entry.err
}

// fill compiles into entry. If compile panics, waiters get an error and
// the entry is dropped so that the next Get compiles again.
func (c *compileCache) fill(name string, entry *compileEntry, src []byte) {
	completed := false
	defer func() {
		if !completed {
			entry.tpl = nil
			entry.err = fmt.Errorf("Compiling template '%s': compilation did not complete", name)

			c.lock.Lock()
			if c.entries[name] == entry {
				delete(c.entries, name)
			}
			c.lock.Unlock()
		}
		close(entry.ready)
	}()

	entry.tpl, entry.err = c.compile(name, src)
	completed = true
}

// Find returns a successfully compiled template by name.
func (c *compileCache) Find(name string) (*template.CompiledTemplate, bool) {
	c.lock.Lock()
	entry, found := c.entries[name]
	c.lock.Unlock()
	if !found {
		return nil, false
	}
	<-entry.ready
	if entry.err != nil {
		return nil, false
	}
	return entry.tpl, true
}

func (c *compileCache) Len() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return len(c.entries)
}
