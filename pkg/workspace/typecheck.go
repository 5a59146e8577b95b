// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package workspace

import (
	"carvel.dev/jtt/pkg/typecheck"
)

// baseTypes layers host values and package macros over the built-in
// catalog. It is computed once per environment.
func (e *Environment) baseTypes() (*typecheck.Registry, error) {
	e.typesOnce.Do(func() {
		builtins, err := typecheck.Builtins()
		if err != nil {
			e.typesErr = err
			return
		}
		reg := builtins.Child()

		// host values have no declared types
		for name := range e.lib.Globals {
			if _, known := builtins.Lookup(name); !known {
				reg.Define(name, typecheck.HardAny)
			}
		}
		for name := range e.lib.Filters {
			if _, known := builtins.LookupFilter(name); !known {
				reg.DefineFilter(name, typecheck.HardAny)
			}
		}

		members := map[string]map[string]typecheck.Type{}
		for _, entry := range e.registry.Entries() {
			t := e.macroType(entry.Package, entry.Name, reg)
			reg.Define(entry.QualifiedName(), t)
			if members[entry.Package] == nil {
				members[entry.Package] = map[string]typecheck.Type{}
			}
			members[entry.Package][entry.Name] = t
		}
		for pkg, pkgMembers := range members {
			if _, shadowed := builtins.Lookup(pkg); !shadowed {
				reg.Define(pkg, typecheck.Namespace{Name: pkg, Members: pkgMembers})
			}
		}
		e.types = reg
	})
	return e.types, e.typesErr
}

func (e *Environment) macroType(pkg, name string, reg *typecheck.Registry) typecheck.Type {
	entry, found := e.registry.Lookup(pkg, name)
	if !found || entry.Unit == nil || entry.Unit.Decl == nil {
		return typecheck.HardAny
	}
	// funcsign problems are reported when the defining template is checked
	t, _ := typecheck.MacroType(entry.Unit.Decl, entry.Unit.Funcsign, reg)
	return t
}

// typeRegistryFor adds bare macro names as resolved from the package
// owning tplName.
func (e *Environment) typeRegistryFor(tplName string) (*typecheck.Registry, error) {
	base, err := e.baseTypes()
	if err != nil {
		return nil, err
	}
	reg := base.Child()
	caller := e.registry.PackageOf(tplName)

	seen := map[string]struct{}{}
	for _, entry := range e.registry.Entries() {
		if _, dup := seen[entry.Name]; dup {
			continue
		}
		seen[entry.Name] = struct{}{}
		if resolved, found := e.registry.ResolveFrom(caller, entry.Name); found {
			if t, found := base.Lookup(resolved.QualifiedName()); found {
				reg.Define(entry.Name, t)
			}
		}
	}
	return reg, nil
}
