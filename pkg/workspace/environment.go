// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package workspace

import (
	"context"
	"fmt"
	"sync"
	"time"

	"carvel.dev/jtt/pkg/adapter"
	"carvel.dev/jtt/pkg/dispatch"
	"carvel.dev/jtt/pkg/jttlibrary"
	"carvel.dev/jtt/pkg/template"
	"carvel.dev/jtt/pkg/texttemplate"
	"carvel.dev/jtt/pkg/typecheck"
	"carvel.dev/jtt/pkg/value"
	"carvel.dev/jtt/pkg/vm"
)

// Environment is a frozen set of templates, packages and host values.
// It is safe for concurrent use.
type Environment struct {
	opts      EnvironmentOpts
	templates map[string]*template.CompiledTemplate
	order     []string
	packageOf map[string]string
	cache     *compileCache
	registry  *dispatch.Registry
	adapter   *adapter.Adapter
	lib       jttlibrary.Library
	vm        *vm.VM
	reports   *reportCollector

	typesOnce sync.Once
	types     *typecheck.Registry
	typesErr  error
}

var _ template.CompiledTemplateLoader = &Environment{}

func (e *Environment) compile(name string, src []byte) (*template.CompiledTemplate, error) {
	tpl, err := template.Compile(name, src, texttemplate.LexOptions{KeepTrailingNewline: e.opts.KeepTrailingNewline})
	if err != nil {
		return nil, fmt.Errorf("Compiling template '%s':\n%w", name, err)
	}
	return tpl, nil
}

// Compile compiles source that is not part of a package. The result is
// cached by name and can be included or imported by other templates.
func (e *Environment) Compile(name string, src []byte) (*template.CompiledTemplate, error) {
	if _, found := e.templates[name]; found {
		return nil, fmt.Errorf("Expected template '%s' to not conflict with a package template", name)
	}
	return e.cache.Get(name, src)
}

// FindCompiledTemplate looks up package templates first.
func (e *Environment) FindCompiledTemplate(name string) (*template.CompiledTemplate, error) {
	if tpl, found := e.templates[name]; found {
		return tpl, nil
	}
	if tpl, found := e.cache.Find(name); found {
		return tpl, nil
	}
	return nil, template.TemplateNotFoundError{Name: name}
}

// TemplateNames lists package templates in the order they were added.
func (e *Environment) TemplateNames() []string { return append([]string(nil), e.order...) }

// PackageTemplateNames lists templates of pkg in the order they were added.
func (e *Environment) PackageTemplateNames(pkg string) []string {
	var result []string
	for _, name := range e.order {
		if e.packageOf[name] == pkg {
			result = append(result, name)
		}
	}
	return result
}

func (e *Environment) RootPackage() string { return e.opts.RootPackage }

func (e *Environment) Registry() *dispatch.Registry { return e.registry }
func (e *Environment) Adapter() *adapter.Adapter    { return e.adapter }
func (e *Environment) Library() jttlibrary.Library  { return e.lib }

// Render renders the named template with ctx as the root context.
func (e *Environment) Render(ctx context.Context, name string, root *value.Map, listeners ...vm.Listener) (string, error) {
	out, _, err := e.RenderWithReport(ctx, name, root, listeners...)
	return out, err
}

// RenderWithReport renders like Render and summarizes macro calls and
// references of the render.
func (e *Environment) RenderWithReport(ctx context.Context, name string, root *value.Map, listeners ...vm.Listener) (string, RenderReport, error) {
	tpl, err := e.FindCompiledTemplate(name)
	if err != nil {
		return "", RenderReport{}, err
	}
	return e.renderTemplate(ctx, tpl, root, listeners)
}

func (e *Environment) renderTemplate(ctx context.Context, tpl *template.CompiledTemplate, root *value.Map, listeners []vm.Listener) (string, RenderReport, error) {
	id, reportListener := e.reports.start(tpl.Name())
	startTime := time.Now()

	all := append(append([]vm.Listener(nil), listeners...), reportListener)
	out, err := e.vm.Render(ctx, tpl, root, all...)

	report := e.reports.finish(id, time.Since(startTime))
	return out, report, err
}

// RenderSource compiles src (cached by name) and renders it. The render
// uses the template compiled from src even if another caller replaces
// the cached entry meanwhile.
func (e *Environment) RenderSource(ctx context.Context, name string, src []byte, root *value.Map, listeners ...vm.Listener) (string, error) {
	tpl, err := e.Compile(name, src)
	if err != nil {
		return "", err
	}
	out, _, err := e.renderTemplate(ctx, tpl, root, listeners)
	return out, err
}

// Typecheck checks the named template against types of host values,
// package macros and built-ins. Problems are reported to listener.
func (e *Environment) Typecheck(name string, listener typecheck.Listener) error {
	tpl, err := e.FindCompiledTemplate(name)
	if err != nil {
		return err
	}
	reg, err := e.typeRegistryFor(tpl.Name())
	if err != nil {
		return err
	}
	typecheck.Check(tpl.AST(), reg, listener)
	return nil
}
