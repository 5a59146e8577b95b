// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package typecheck

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

type catalogDocument struct {
	Kind        string         `yaml:"kind"`
	Definitions []catalogEntry `yaml:"definitions"`
}

type catalogEntry struct {
	Object *catalogObject `yaml:"object"`
	Alias  *catalogAlias  `yaml:"alias"`
}

type catalogObject struct {
	ID          string             `yaml:"id"`
	InheritFrom string             `yaml:"inherit_from"`
	Attributes  []catalogAttribute `yaml:"attributes"`
	Call        *catalogCall       `yaml:"call"`
}

type catalogAttribute struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

type catalogCall struct {
	Arguments  []catalogArgument `yaml:"arguments"`
	ReturnType string            `yaml:"return_type"`
}

type catalogArgument struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Optional bool   `yaml:"optional"`
}

type catalogAlias struct {
	ID   string `yaml:"id"`
	Type string `yaml:"type"`
}

// LoadCatalog reads catalog documents into a new registry layered over
// parent (may be nil), followed by the built-in special functions.
func LoadCatalog(data []byte, parent *Registry) (*Registry, error) {
	reg := NewRegistry()
	reg.parent = parent
	if err := reg.loadDocuments(data); err != nil {
		return nil, err
	}
	return reg, nil
}

func loadCatalog(data []byte) (*Registry, error) {
	reg, err := LoadCatalog(data, nil)
	if err != nil {
		return nil, err
	}
	defineSpecials(reg)
	return reg, nil
}

func (r *Registry) loadDocuments(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	for docIdx := 0; ; docIdx++ {
		var doc catalogDocument
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("Unmarshaling type catalog document %d: %w", docIdx, err)
		}

		var define func(string, Type)
		switch doc.Kind {
		case "globals":
			define = r.Define
		case "filters":
			define = r.DefineFilter
		default:
			return fmt.Errorf("Expected type catalog document %d kind to be 'globals' or 'filters', but was '%s'", docIdx, doc.Kind)
		}

		for i, entry := range doc.Definitions {
			switch {
			case entry.Object != nil && entry.Alias == nil:
				define(entry.Object.ID, Class{&catalogClass{def: entry.Object, reg: r}})
			case entry.Alias != nil && entry.Object == nil:
				t, err := parseAttrType(entry.Alias.ID, entry.Alias.Type, r)
				if err != nil {
					return fmt.Errorf("Type catalog alias '%s': %w", entry.Alias.ID, err)
				}
				define(entry.Alias.ID, t)
			default:
				return fmt.Errorf("Expected type catalog definition %d of document %d to be either object or alias", i, docIdx)
			}
		}
	}
}

// parseAttrType parses either a signature (named as name) or a type.
func parseAttrType(name, src string, reg *Registry) (Type, error) {
	if strings.HasPrefix(strings.TrimSpace(src), "(") {
		sig, err := ParseSignature(src, reg)
		if err != nil {
			return nil, fmt.Errorf("parse type '%s' failed: %w", src, err)
		}
		sig.FnName = name
		return Function{sig}, nil
	}
	t, err := ParseType(src, reg)
	if err != nil {
		return nil, fmt.Errorf("parse type '%s' failed: %w", src, err)
	}
	return t, nil
}

// catalogClass is an object defined by the catalog. Unknown attributes
// are imprecise since catalog objects may be partially described.
type catalogClass struct {
	def *catalogObject
	reg *Registry
}

var _ ClassType = &catalogClass{}
var _ CallableClass = &catalogClass{}
var _ Inheriting = &catalogClass{}

func (c *catalogClass) Name() string { return c.def.ID }

func (c *catalogClass) parent() (Type, error) {
	return parseAttrType(c.def.InheritFrom, c.def.InheritFrom, c.reg)
}

func (c *catalogClass) GetAttribute(name string) (Type, error) {
	for _, attr := range c.def.Attributes {
		if attr.Name == name {
			return parseAttrType(c.def.ID+"."+name, attr.Type, c.reg)
		}
	}
	if c.def.InheritFrom != "" {
		parent, err := c.parent()
		if err != nil {
			return nil, err
		}
		if class, ok := parent.(Class); ok {
			t, err := class.ClassType.GetAttribute(name)
			if err != nil {
				return nil, fmt.Errorf("Failed to get %s.%s from %s: %w", c.def.ID, name, c.def.InheritFrom, err)
			}
			return t, nil
		}
	}
	return nil, imprecise("%s.%s does not exist", c.def.ID, name)
}

func (c *catalogClass) Signature() (*Signature, error) {
	if c.def.Call == nil {
		return nil, nil
	}
	sig := &Signature{FnName: c.def.ID}
	for _, arg := range c.def.Call.Arguments {
		t, err := parseAttrType(c.def.ID+"."+arg.Name, arg.Type, c.reg)
		if err != nil {
			return nil, err
		}
		sig.Args = append(sig.Args, Argument{Name: arg.Name, Type: t, Optional: arg.Optional})
	}
	ret, err := parseAttrType(c.def.ID, c.def.Call.ReturnType, c.reg)
	if err != nil {
		return nil, err
	}
	sig.Ret = ret
	return sig, nil
}

func (c *catalogClass) Call(positional []Type, kwargs map[string]Type) (Type, error) {
	sig, err := c.Signature()
	if err != nil {
		return nil, err
	}
	if sig != nil {
		return sig.Resolve(positional, kwargs)
	}
	if c.def.InheritFrom != "" {
		parent, err := c.parent()
		if err != nil {
			return nil, err
		}
		if class, ok := parent.(Class); ok {
			if callable, ok := class.ClassType.(CallableClass); ok {
				return callable.Call(positional, kwargs)
			}
		}
	}
	return nil, imprecise("%s does not support call", c.def.ID)
}

func (c *catalogClass) InheritsFrom(name string) bool {
	if c.def.InheritFrom == "" {
		return false
	}
	if c.def.InheritFrom == name {
		return true
	}
	parent, err := c.parent()
	if err != nil {
		return false
	}
	if class, ok := parent.(Class); ok {
		if inh, ok := class.ClassType.(Inheriting); ok {
			return inh.InheritsFrom(name)
		}
	}
	return false
}
