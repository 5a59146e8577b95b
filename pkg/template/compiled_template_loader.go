// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package template

import (
	"fmt"
)

// CompiledTemplateLoader resolves templates referenced by include, import
// and extends.
type CompiledTemplateLoader interface {
	FindCompiledTemplate(name string) (*CompiledTemplate, error)
}

// TemplateNotFoundError is returned by loaders for unknown template names.
type TemplateNotFoundError struct {
	Name string
}

func (e TemplateNotFoundError) Error() string {
	return fmt.Sprintf("template '%s' not found", e.Name)
}

type NoopCompiledTemplateLoader struct {
	tpl *CompiledTemplate
}

func NewNoopCompiledTemplateLoader(tpl *CompiledTemplate) NoopCompiledTemplateLoader {
	return NoopCompiledTemplateLoader{tpl}
}

var _ CompiledTemplateLoader = NoopCompiledTemplateLoader{}

// FindCompiledTemplate returns the CompiledTemplate this loader was
// constructed with when the name matches.
func (l NoopCompiledTemplateLoader) FindCompiledTemplate(name string) (*CompiledTemplate, error) {
	if l.tpl != nil && l.tpl.Name() == name {
		return l.tpl, nil
	}
	return nil, TemplateNotFoundError{Name: name}
}

// MapCompiledTemplateLoader serves a fixed set of compiled templates.
type MapCompiledTemplateLoader map[string]*CompiledTemplate

var _ CompiledTemplateLoader = MapCompiledTemplateLoader{}

func (l MapCompiledTemplateLoader) FindCompiledTemplate(name string) (*CompiledTemplate, error) {
	if tpl, found := l[name]; found {
		return tpl, nil
	}
	return nil, TemplateNotFoundError{Name: name}
}
