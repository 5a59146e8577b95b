// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package typecheck

import (
	"sort"
	"sync"
)

// Registry maps global names and filter names to types. A registry is
// written while it is being built and only read afterwards; Child
// registries add names on top of a shared parent without modifying it.
type Registry struct {
	parent  *Registry
	globals map[string]Type
	filters map[string]Type
}

func NewRegistry() *Registry {
	return &Registry{globals: map[string]Type{}, filters: map[string]Type{}}
}

var (
	builtinsOnce sync.Once
	builtins     *Registry
	builtinsErr  error
)

// Builtins returns the shared registry of the built-in catalog. It must
// not be modified; use Child.
func Builtins() (*Registry, error) {
	builtinsOnce.Do(func() {
		builtins, builtinsErr = loadCatalog(catalogYAML)
	})
	return builtins, builtinsErr
}

// Child returns an empty registry layered over r.
func (r *Registry) Child() *Registry {
	child := NewRegistry()
	child.parent = r
	return child
}

func (r *Registry) Define(name string, t Type)       { r.globals[name] = t }
func (r *Registry) DefineFilter(name string, t Type) { r.filters[name] = t }

// Lookup finds a global by name.
func (r *Registry) Lookup(name string) (Type, bool) {
	for reg := r; reg != nil; reg = reg.parent {
		if t, found := reg.globals[name]; found {
			return t, true
		}
	}
	return nil, false
}

// LookupFilter finds a filter by name.
func (r *Registry) LookupFilter(name string) (Type, bool) {
	for reg := r; reg != nil; reg = reg.parent {
		if t, found := reg.filters[name]; found {
			return t, true
		}
	}
	return nil, false
}

// Names lists all global names visible through r.
func (r *Registry) Names() []string {
	return r.names(func(reg *Registry) map[string]Type { return reg.globals })
}

// FilterNames lists all filter names visible through r.
func (r *Registry) FilterNames() []string {
	return r.names(func(reg *Registry) map[string]Type { return reg.filters })
}

func (r *Registry) names(section func(*Registry) map[string]Type) []string {
	seen := map[string]struct{}{}
	var result []string
	for reg := r; reg != nil; reg = reg.parent {
		for name := range section(reg) {
			if _, dup := seen[name]; !dup {
				seen[name] = struct{}{}
				result = append(result, name)
			}
		}
	}
	sort.Strings(result)
	return result
}
