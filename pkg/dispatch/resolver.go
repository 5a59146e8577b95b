// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"fmt"
	"io"

	"carvel.dev/jtt/pkg/value"
	"carvel.dev/jtt/pkg/vm"
)

var _ vm.Resolver = &Registry{}

// Resolve makes registered macros and namespaces visible to templates.
// Bare macro names win over namespace names.
func (r *Registry) Resolve(st *vm.State, name string) (value.Value, bool) {
	if entry, found := r.ResolveFrom(r.PackageOf(st.TemplateName()), name); found {
		return value.FromObject(&MacroRef{reg: r, entry: entry}), true
	}
	if packages, found := r.namespacePackages(name); found {
		return value.FromObject(&Namespace{reg: r, name: name, packages: packages}), true
	}
	return value.Undefined, false
}

func asVMState(st value.State) (*vm.State, error) {
	vst, ok := st.(*vm.State)
	if !ok {
		return nil, value.NewError(value.ErrInvalidOperation, "package macros can only be called while rendering")
	}
	return vst, nil
}

// load evaluates the template defining entry with the package's base
// context and returns the macro value.
func (r *Registry) load(st *vm.State, entry Entry) (value.Value, error) {
	module, err := st.Module(entry.Template, r.context(entry.Package))
	if err != nil {
		return value.Undefined, fmt.Errorf("Template '%s' was found in namespace but cannot be loaded: %w", entry.Template, err)
	}
	macro, found := module.Get(value.FromString(entry.Name))
	if !found {
		return value.Undefined, fmt.Errorf("Expected template '%s' to define macro '%s'", entry.Template, entry.Name)
	}
	return macro, nil
}

func (r *Registry) call(st value.State, entry Entry, args []value.Value) (value.Value, error) {
	vst, err := asVMState(st)
	if err != nil {
		return value.Undefined, err
	}
	macro, err := r.load(vst, entry)
	if err != nil {
		return value.Undefined, err
	}
	return value.Call(vst, macro, args)
}

// MacroRef is a registered macro that is loaded when called.
type MacroRef struct {
	reg   *Registry
	entry Entry
}

var _ value.Callable = &MacroRef{}
var _ value.AttributeGetter = &MacroRef{}
var _ value.Renderer = &MacroRef{}

func (m *MacroRef) Entry() Entry           { return m.entry }
func (m *MacroRef) Repr() value.ObjectRepr { return value.ReprPlain }

func (m *MacroRef) GetValue(key value.Value) (value.Value, bool) {
	name, _ := key.AsString()
	switch name {
	case "name":
		return value.FromString(m.entry.Name), true
	case "package_name":
		return value.FromString(m.entry.Package), true
	}
	return value.Undefined, false
}

func (m *MacroRef) Call(st value.State, args []value.Value) (value.Value, error) {
	return m.reg.call(st, m.entry, args)
}

func (m *MacroRef) Render(w io.Writer) error {
	_, err := fmt.Fprintf(w, "<macro %s>", m.entry.QualifiedName())
	return err
}

// Namespace exposes macros of a package (or of a namespace with a dispatch
// order) as attributes and methods: `pkg.macro(...)`.
type Namespace struct {
	reg      *Registry
	name     string
	packages []string
}

var _ value.AttributeGetter = &Namespace{}
var _ value.MethodCallable = &Namespace{}
var _ value.Enumerable = &Namespace{}
var _ value.Renderer = &Namespace{}

func (n *Namespace) Name() string           { return n.name }
func (n *Namespace) Repr() value.ObjectRepr { return value.ReprPlain }

func (n *Namespace) find(macro string) (Entry, bool) {
	for _, pkg := range n.packages {
		if entry, found := n.reg.Lookup(pkg, macro); found {
			return entry, true
		}
	}
	return Entry{}, false
}

func (n *Namespace) GetValue(key value.Value) (value.Value, bool) {
	name, ok := key.AsString()
	if !ok {
		return value.Undefined, false
	}
	entry, found := n.find(name)
	if !found {
		return value.Undefined, false
	}
	return value.FromObject(&MacroRef{reg: n.reg, entry: entry}), true
}

func (n *Namespace) Enumerate() value.Enumerator {
	seen := map[string]struct{}{}
	var names []string
	for _, pkg := range n.packages {
		p := n.reg.packages[pkg]
		for _, name := range sortedKeys(p.entries) {
			if _, dup := seen[name]; !dup {
				seen[name] = struct{}{}
				names = append(names, name)
			}
		}
	}
	return value.StrEnumerator(names...)
}

// CallMethod calls a macro of the namespace. Interceptors see the call
// first. A missing macro is an error.
func (n *Namespace) CallMethod(st value.State, name string, args []value.Value) (value.Value, error) {
	if intercept, found := n.reg.interceptors[name]; found {
		intercept(st, n.name, name, args)
	}
	entry, found := n.find(name)
	if !found {
		return value.Undefined, value.NewError(value.ErrUnknownFunction,
			fmt.Sprintf("No macro named '%s' found in namespace '%s'", name, n.name))
	}
	return n.reg.call(st, entry, args)
}

func (n *Namespace) Render(w io.Writer) error {
	_, err := fmt.Fprintf(w, "<namespace %s>", n.name)
	return err
}
