// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"fmt"
	"io"
	"strings"

	"carvel.dev/jtt/pkg/value"
)

// Dispatcher is the callable returned by `adapter.dispatch(name, namespace)`.
// Calling it runs the most specific adapter implementation of the macro.
type Dispatcher struct {
	reg       *Registry
	macro     string
	namespace string
	strict    bool
}

var _ value.Callable = &Dispatcher{}
var _ value.AttributeGetter = &Dispatcher{}
var _ value.Enumerable = &Dispatcher{}
var _ value.Renderer = &Dispatcher{}

// NewDispatcher validates the macro name. An empty namespace dispatches
// relative to the calling package.
func (r *Registry) NewDispatcher(macro, namespace string) (*Dispatcher, error) {
	if ns, name, found := strings.Cut(macro, "."); found {
		return nil, value.NewError(value.ErrUnknownFunction, fmt.Sprintf(
			"In adapter.dispatch, got a macro name of \"%s\", but \".\" is not a valid macro name component. "+
				"Did you mean `adapter.dispatch(\"%s\", macro_namespace=\"%s\")`?", macro, name, ns))
	}
	return &Dispatcher{reg: r, macro: macro, namespace: namespace, strict: r.strict}, nil
}

// DispatchFunction implements `adapter.dispatch(macro_name, macro_namespace=None)`
// for adapter objects.
func (r *Registry) DispatchFunction(args []value.Value) (value.Value, error) {
	positional, kwargs := value.SplitKwargs(args)
	if err := value.CheckArgCount("dispatch", positional, 0, 2); err != nil {
		return value.Undefined, err
	}

	nameVal, found := value.ArgOrKwarg(positional, kwargs, 0, "macro_name")
	if !found {
		return value.Undefined, value.NewError(value.ErrMissingArgument, "dispatch requires macro_name")
	}
	name, err := value.StringArg("macro_name", nameVal)
	if err != nil {
		return value.Undefined, err
	}

	var namespace string
	if nsVal, found := value.ArgOrKwarg(positional, kwargs, 1, "macro_namespace"); found && !nsVal.IsNone() && !nsVal.IsUndefined() {
		namespace, err = value.StringArg("macro_namespace", nsVal)
		if err != nil {
			return value.Undefined, err
		}
	}
	if err := kwargs.AssertAllUsed(); err != nil {
		return value.Undefined, err
	}

	d, err := r.NewDispatcher(name, namespace)
	if err != nil {
		return value.Undefined, err
	}
	return value.FromObject(d), nil
}

func (d *Dispatcher) Repr() value.ObjectRepr { return value.ReprPlain }

func (d *Dispatcher) GetValue(key value.Value) (value.Value, bool) {
	name, _ := key.AsString()
	switch name {
	case "macro_name":
		return value.FromString(d.macro), true
	case "package_name":
		if d.namespace == "" {
			return value.None, true
		}
		return value.FromString(d.namespace), true
	case "strict":
		return value.FromBool(d.strict), true
	}
	return value.Undefined, false
}

func (d *Dispatcher) Enumerate() value.Enumerator {
	return value.StrEnumerator("macro_name", "package_name", "strict")
}

func (d *Dispatcher) Render(w io.Writer) error {
	_, err := fmt.Fprintf(w, "<dispatch %s>", d.macro)
	return err
}

// Call resolves the implementation and invokes it with args.
func (d *Dispatcher) Call(st value.State, args []value.Value) (value.Value, error) {
	vst, err := asVMState(st)
	if err != nil {
		return value.Undefined, err
	}
	entry, err := d.Find(vst.TemplateName())
	if err != nil {
		return value.Undefined, err
	}
	return d.reg.call(st, entry, args)
}

// Find resolves the macro for a call made from template callerTpl.
func (d *Dispatcher) Find(callerTpl string) (Entry, error) {
	reg := d.reg

	if d.strict && d.namespace != "" {
		if entry, found := reg.Lookup(d.namespace, d.macro); found {
			return entry, nil
		}
		return Entry{}, value.NewError(value.ErrUnknownFunction, fmt.Sprintf(
			"In strict mode: No macro named '%s' found in package '%s'", d.macro, d.namespace))
	}

	var attempts []string
	try := func(pkg, name string) (Entry, bool) {
		attempts = append(attempts, fmt.Sprintf("'%s.%s'", pkg, name))
		return reg.Lookup(pkg, name)
	}

	for _, pkg := range d.searchPackages() {
		for _, prefix := range reg.adapterPrefixes {
			name := prefix + "__" + d.macro
			if pkg != "" {
				if entry, found := try(pkg, name); found {
					return entry, nil
				}
				continue
			}
			for _, candidate := range reg.SearchOrder(reg.PackageOf(callerTpl)) {
				if entry, found := try(candidate, name); found {
					return entry, nil
				}
			}
		}
	}

	namespace := d.namespace
	if namespace == "" {
		namespace = "None"
	}
	return Entry{}, value.NewError(value.ErrUnknownFunction, fmt.Sprintf(
		"In dispatch: No macro named '%s' found within namespace: '%s'\n    Searched for: %s",
		d.macro, namespace, strings.Join(attempts, ", ")))
}

// searchPackages lists explicit packages to search; an empty name stands
// for the bare name search order.
func (d *Dispatcher) searchPackages() []string {
	if d.namespace == "" {
		return []string{""}
	}
	if order, found := d.reg.orders[d.namespace]; found {
		return order
	}
	if _, found := d.reg.packages[d.namespace]; found {
		if d.namespace == d.reg.rootPackage {
			return []string{d.namespace}
		}
		return []string{d.reg.rootPackage, d.namespace}
	}
	return []string{""}
}
