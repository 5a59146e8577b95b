// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"fmt"
	"sort"
	"strings"

	"carvel.dev/jtt/pkg/template"
	"carvel.dev/jtt/pkg/value"
)

// Entry is one macro registered under a package.
type Entry struct {
	Package  string
	Name     string
	Template string
	Unit     *template.MacroUnit
}

// QualifiedName returns `package.macro`.
func (e Entry) QualifiedName() string { return e.Package + "." + e.Name }

// Interceptor observes calls made through a namespace object before the
// call is delegated to the macro.
type Interceptor func(st value.State, namespace, macro string, args []value.Value)

type packageMacros struct {
	name    string
	entries map[string]Entry
}

// Registry resolves macro names across packages. It is immutable once
// built and safe for concurrent renders.
type Registry struct {
	rootPackage      string
	internalPackages []string
	packageOrder     []string
	packages         map[string]*packageMacros
	orders           map[string][]string
	templatePackages map[string]string
	contexts         map[string]*value.Map
	adapterPrefixes  []string
	strict           bool
	interceptors     map[string]Interceptor
}

// Builder collects registry configuration. It is not safe for concurrent use.
type Builder struct {
	reg   *Registry
	errs  []string
	built bool
}

func NewBuilder(rootPackage string) *Builder {
	b := &Builder{reg: &Registry{
		rootPackage:      rootPackage,
		packages:         map[string]*packageMacros{},
		orders:           map[string][]string{},
		templatePackages: map[string]string{},
		contexts:         map[string]*value.Map{},
		adapterPrefixes:  []string{"default"},
		interceptors:     map[string]Interceptor{},
	}}
	b.pkg(rootPackage)
	return b
}

func (b *Builder) pkg(name string) *packageMacros {
	if p, found := b.reg.packages[name]; found {
		return p
	}
	p := &packageMacros{name: name, entries: map[string]Entry{}}
	b.reg.packages[name] = p
	b.reg.packageOrder = append(b.reg.packageOrder, name)
	return p
}

// InternalPackages are searched after the root package for bare names,
// in the given order.
func (b *Builder) InternalPackages(names ...string) *Builder {
	for _, name := range names {
		b.pkg(name)
	}
	b.reg.internalPackages = append(b.reg.internalPackages, names...)
	return b
}

// DispatchOrder sets the packages searched for namespace, first match wins.
func (b *Builder) DispatchOrder(namespace string, packages ...string) *Builder {
	if _, found := b.reg.orders[namespace]; found {
		b.errs = append(b.errs, fmt.Sprintf("Expected dispatch order for namespace '%s' to be set once", namespace))
		return b
	}
	seen := map[string]struct{}{}
	for _, pkg := range packages {
		if _, dup := seen[pkg]; dup {
			b.errs = append(b.errs, fmt.Sprintf(
				"Expected dispatch order for namespace '%s' to list package '%s' once", namespace, pkg))
			return b
		}
		seen[pkg] = struct{}{}
	}
	b.reg.orders[namespace] = append([]string(nil), packages...)
	return b
}

// AddMacro registers unit under a `package.macro` name.
func (b *Builder) AddMacro(qualifiedName, tplName string, unit *template.MacroUnit) *Builder {
	pkgName, macroName, ok := strings.Cut(qualifiedName, ".")
	if !ok || pkgName == "" || macroName == "" || strings.Contains(macroName, ".") {
		b.errs = append(b.errs, fmt.Sprintf("Expected macro name '%s' to have form 'package.macro'", qualifiedName))
		return b
	}
	p := b.pkg(pkgName)
	if existing, found := p.entries[macroName]; found {
		b.errs = append(b.errs, fmt.Sprintf("Expected macro '%s' to be defined once, but found it in templates '%s' and '%s'",
			qualifiedName, existing.Template, tplName))
		return b
	}
	p.entries[macroName] = Entry{Package: pkgName, Name: macroName, Template: tplName, Unit: unit}
	b.reg.templatePackages[tplName] = pkgName
	return b
}

// AddTemplate registers all top level macros of tpl under pkg.
func (b *Builder) AddTemplate(pkg string, tpl *template.CompiledTemplate) *Builder {
	b.pkg(pkg)
	b.reg.templatePackages[tpl.Name()] = pkg
	for _, unit := range tpl.TopLevelMacros() {
		b.AddMacro(pkg+"."+unit.Name, tpl.Name(), unit)
	}
	return b
}

// PackageContext sets the base context macros of pkg are evaluated with.
// Packages without one use the context of the render.
func (b *Builder) PackageContext(pkg string, ctx *value.Map) *Builder {
	b.pkg(pkg)
	b.reg.contexts[pkg] = ctx
	return b
}

// Adapter sets the adapter type and its parents used as `adapter.dispatch`
// prefixes, most specific first. "default" is always searched last.
func (b *Builder) Adapter(adapterType string, parents ...string) *Builder {
	prefixes := append([]string{adapterType}, parents...)
	b.reg.adapterPrefixes = append(prefixes, "default")
	return b
}

// Strict makes dispatch to an explicit package look only for the plain
// macro name in that package.
func (b *Builder) Strict(strict bool) *Builder {
	b.reg.strict = strict
	return b
}

// Intercept registers fn for calls of macro through any namespace object.
func (b *Builder) Intercept(macro string, fn Interceptor) *Builder {
	b.reg.interceptors[macro] = fn
	return b
}

// Build validates configuration and freezes the registry. The builder
// cannot be used afterwards.
func (b *Builder) Build() (*Registry, error) {
	if b.built {
		return nil, fmt.Errorf("Expected registry builder to be used once")
	}
	b.built = true

	for _, namespace := range sortedKeys(b.reg.orders) {
		for _, pkg := range b.reg.orders[namespace] {
			if _, found := b.reg.packages[pkg]; !found {
				b.errs = append(b.errs, fmt.Sprintf(
					"Expected dispatch order for namespace '%s' to reference known packages, but '%s' is unknown", namespace, pkg))
			}
		}
	}
	if len(b.errs) > 0 {
		return nil, fmt.Errorf("Building macro registry:\n- %s", strings.Join(b.errs, "\n- "))
	}
	return b.reg, nil
}

func (r *Registry) RootPackage() string { return r.rootPackage }

// Packages returns package names in registration order.
func (r *Registry) Packages() []string { return append([]string(nil), r.packageOrder...) }

// Entries returns all registered macros ordered by package then name.
func (r *Registry) Entries() []Entry {
	var result []Entry
	for _, pkgName := range r.packageOrder {
		p := r.packages[pkgName]
		for _, name := range sortedKeys(p.entries) {
			result = append(result, p.entries[name])
		}
	}
	return result
}

// Lookup finds macro defined directly in pkg.
func (r *Registry) Lookup(pkg, macro string) (Entry, bool) {
	p, found := r.packages[pkg]
	if !found {
		return Entry{}, false
	}
	entry, found := p.entries[macro]
	return entry, found
}

// PackageOf returns the package owning tplName, defaulting to the root package.
func (r *Registry) PackageOf(tplName string) string {
	if pkg, found := r.templatePackages[tplName]; found {
		return pkg
	}
	return r.rootPackage
}

// DispatchOrder returns the configured order for namespace.
func (r *Registry) DispatchOrder(namespace string) ([]string, bool) {
	order, found := r.orders[namespace]
	return order, found
}

// SearchOrder lists packages consulted for a bare macro name called from
// caller: the caller itself, then the dispatch order configured for the
// root package, or the root package followed by internal packages.
func (r *Registry) SearchOrder(caller string) []string {
	result := []string{caller}
	rest, found := r.orders[r.rootPackage]
	if !found {
		rest = append([]string{r.rootPackage}, r.internalPackages...)
	}
	for _, pkg := range rest {
		if pkg != caller {
			result = append(result, pkg)
		}
	}
	return result
}

// ResolveFrom finds the implementation of a bare macro name called from caller.
func (r *Registry) ResolveFrom(caller, macro string) (Entry, bool) {
	for _, pkg := range r.SearchOrder(caller) {
		if entry, found := r.Lookup(pkg, macro); found {
			return entry, true
		}
	}
	return Entry{}, false
}

// namespacePackages lists packages consulted for `namespace.macro`.
func (r *Registry) namespacePackages(namespace string) ([]string, bool) {
	if order, found := r.orders[namespace]; found {
		return order, true
	}
	if _, found := r.packages[namespace]; found {
		return []string{namespace}, true
	}
	return nil, false
}

func (r *Registry) context(pkg string) *value.Map { return r.contexts[pkg] }

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
