// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package workspace

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"carvel.dev/jtt/pkg/adapter"
	"carvel.dev/jtt/pkg/dispatch"
	"carvel.dev/jtt/pkg/files"
	"carvel.dev/jtt/pkg/jttlibrary"
	"carvel.dev/jtt/pkg/template"
	"carvel.dev/jtt/pkg/value"
	"carvel.dev/jtt/pkg/vm"
)

// DefaultRootPackage is used when no root package is configured.
const DefaultRootPackage = "root"

type EnvironmentOpts struct {
	RootPackage      string
	Undefined        vm.UndefinedBehavior
	AutoEscape       bool
	RecursionLimit   int
	StrictDispatch   bool
	InternalPackages []string
	// AdapterType overrides the type reported by the connection
	AdapterType    string
	AdapterParents []string
	// KeepTrailingNewline keeps the final newline of template sources
	KeepTrailingNewline bool

	// Vars back var() and var.has_var()
	Vars *value.Map
	// Output receives print() and log() messages
	Output io.Writer
	// Env backs env_var()
	Env func(string) (string, bool)
}

type templateSource struct {
	pkg  string
	name string
	src  []byte
}

// Builder collects everything an Environment is made of. It is not safe
// for concurrent use; Build freezes the result.
type Builder struct {
	opts      EnvironmentOpts
	lib       jttlibrary.Library
	templates []templateSource
	names     map[string]struct{}
	orders    []DispatchConfig
	vars      map[string]*value.Map
	conn      adapter.Connection
	errs      []error
}

func NewBuilder(opts EnvironmentOpts) *Builder {
	if opts.RootPackage == "" {
		opts.RootPackage = DefaultRootPackage
	}
	return &Builder{
		opts: opts,
		lib: jttlibrary.New(jttlibrary.Options{
			Vars:   opts.Vars,
			Output: opts.Output,
			Env:    opts.Env,
		}),
		names: map[string]struct{}{},
		vars:  map[string]*value.Map{},
	}
}

// RootPackage is the package templates belong to unless stated otherwise.
func (b *Builder) RootPackage() string { return b.opts.RootPackage }

// AddTemplate registers template source under pkg. Top level macros of
// the template become macros of pkg.
func (b *Builder) AddTemplate(pkg, name string, src []byte) *Builder {
	if _, dup := b.names[name]; dup {
		b.errs = append(b.errs, fmt.Errorf("Expected template '%s' to be added once", name))
		return b
	}
	b.names[name] = struct{}{}
	b.templates = append(b.templates, templateSource{pkg: pkg, name: name, src: src})
	return b
}

// AddFiles registers template files under pkg. Template names are the
// relative file paths with prefix prepended.
func (b *Builder) AddFiles(pkg, prefix string, tplFiles []*files.File) error {
	for _, file := range tplFiles {
		src, err := file.Bytes()
		if err != nil {
			return fmt.Errorf("Reading %s: %w", file.Description(), err)
		}
		b.AddTemplate(pkg, prefix+file.TemplateName(), src)
	}
	return nil
}

func (b *Builder) AddGlobal(name string, val value.Value) *Builder {
	b.lib.Globals[name] = val
	return b
}

func (b *Builder) AddFunction(name string, fn jttlibrary.HostFunc) *Builder {
	return b.AddGlobal(name, jttlibrary.NewFunc(name, fn))
}

func (b *Builder) AddFilter(name string, fn jttlibrary.HostFunc) *Builder {
	b.lib.Filters[name] = jttlibrary.NewFunc(name, fn)
	return b
}

func (b *Builder) AddTest(name string, fn jttlibrary.HostFunc) *Builder {
	b.lib.Tests[name] = jttlibrary.NewFunc(name, fn)
	return b
}

// AddLibrary installs globals, filters and tests of lib. Entries of lib
// win over existing ones.
func (b *Builder) AddLibrary(lib jttlibrary.Library) *Builder {
	b.lib.Merge(lib)
	return b
}

// DispatchOrder sets the packages searched for namespace.
func (b *Builder) DispatchOrder(namespace string, packages ...string) *Builder {
	b.orders = append(b.orders, DispatchConfig{Namespace: namespace, SearchOrder: packages})
	return b
}

// PackageVars sets the base context macros of pkg are evaluated with.
func (b *Builder) PackageVars(pkg string, vars *value.Map) *Builder {
	b.vars[pkg] = vars
	return b
}

// SetConnection configures the database behind `adapter`.
func (b *Builder) SetConnection(conn adapter.Connection) *Builder {
	b.conn = conn
	return b
}

// Build compiles all templates and freezes the macro registry. All
// compilation errors are reported together.
func (b *Builder) Build() (*Environment, error) {
	env := &Environment{
		opts:      b.opts,
		templates: map[string]*template.CompiledTemplate{},
		packageOf: map[string]string{},
		reports:   newReportCollector(),
	}
	env.cache = newCompileCache(env.compile)

	errs := append([]error(nil), b.errs...)
	regBuilder := dispatch.NewBuilder(b.opts.RootPackage).
		InternalPackages(b.opts.InternalPackages...).
		Strict(b.opts.StrictDispatch)
	if adapterType := b.adapterType(); adapterType != adapter.DefaultType {
		regBuilder.Adapter(adapterType, b.opts.AdapterParents...)
	}

	for _, src := range b.templates {
		tpl, err := env.compile(src.name, src.src)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		env.templates[src.name] = tpl
		env.order = append(env.order, src.name)
		env.packageOf[src.name] = src.pkg
		regBuilder.AddTemplate(src.pkg, tpl)
	}
	for _, order := range b.orders {
		regBuilder.DispatchOrder(order.Namespace, order.SearchOrder...)
	}
	for _, pkg := range sortedKeys(b.vars) {
		regBuilder.PackageContext(pkg, b.vars[pkg])
	}

	reg, err := regBuilder.Build()
	if err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	env.registry = reg
	env.adapter = adapter.New(reg, b.conn)

	globals := map[string]value.Value{}
	for name, val := range env.adapter.Globals() {
		globals[name] = val
	}
	// host globals win over adapter helpers
	for name, val := range b.lib.Globals {
		globals[name] = val
	}
	env.lib = jttlibrary.Library{Globals: globals, Filters: b.lib.Filters, Tests: b.lib.Tests}

	env.vm = vm.New(vm.Options{
		Loader:         env,
		Globals:        env.lib.Globals,
		Filters:        env.lib.Filters,
		Tests:          env.lib.Tests,
		Resolver:       reg,
		Undefined:      b.opts.Undefined,
		AutoEscape:     b.opts.AutoEscape,
		RecursionLimit: b.opts.RecursionLimit,
	})
	return env, nil
}

func (b *Builder) adapterType() string {
	switch {
	case b.opts.AdapterType != "":
		return b.opts.AdapterType
	case b.conn != nil:
		return b.conn.Type()
	default:
		return adapter.DefaultType
	}
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
