// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"carvel.dev/jtt/pkg/files"
	"carvel.dev/jtt/pkg/value"
	"carvel.dev/jtt/pkg/version"
	"carvel.dev/jtt/pkg/vm"
	"github.com/BurntSushi/toml"
)

// ProjectConfigFileName is looked up in the working directory by the CLI.
const ProjectConfigFileName = "jtt.toml"

// ProjectConfig is the content of jtt.toml.
type ProjectConfig struct {
	RequireVersion   string                 `toml:"require-version"`
	RootPackage      string                 `toml:"root-package"`
	TemplatePaths    []string               `toml:"template-paths"`
	Undefined        string                 `toml:"undefined"`
	AutoEscape       bool                   `toml:"autoescape"`
	StrictDispatch   bool                   `toml:"strict-dispatch"`
	AdapterType      string                 `toml:"adapter-type"`
	AdapterParents   []string               `toml:"adapter-parents"`
	InternalPackages []string               `toml:"internal-packages"`
	Vars             map[string]interface{} `toml:"vars"`
	Packages         []PackageConfig        `toml:"packages"`
	Dispatch         []DispatchConfig       `toml:"dispatch"`

	// dir is the directory paths are relative to
	dir string
}

// PackageConfig declares a package and where its templates live.
type PackageConfig struct {
	Name          string                 `toml:"name"`
	TemplatePaths []string               `toml:"template-paths"`
	Vars          map[string]interface{} `toml:"vars"`
}

// DispatchConfig sets the packages searched for a namespace.
type DispatchConfig struct {
	Namespace   string   `toml:"namespace"`
	SearchOrder []string `toml:"search-order"`
}

// LoadProjectConfig reads and validates a jtt.toml file.
func LoadProjectConfig(path string) (ProjectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ProjectConfig{}, fmt.Errorf("Reading project config: %w", err)
	}
	conf, err := ParseProjectConfig(data)
	if err != nil {
		return ProjectConfig{}, fmt.Errorf("Loading project config '%s': %w", path, err)
	}
	conf.dir = filepath.Dir(path)
	return conf, nil
}

// ParseProjectConfig decodes and validates jtt.toml content. Unknown keys
// are rejected.
func ParseProjectConfig(data []byte) (ProjectConfig, error) {
	var conf ProjectConfig

	md, err := toml.Decode(string(data), &conf)
	if err != nil {
		return ProjectConfig{}, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		var keys []string
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return ProjectConfig{}, fmt.Errorf("Unknown keys: %s", strings.Join(keys, ", "))
	}
	return conf, conf.Validate()
}

// Validate checks the required version and cross references.
func (c ProjectConfig) Validate() error {
	if c.RequireVersion != "" {
		if err := version.Require(c.RequireVersion); err != nil {
			return err
		}
	}
	if _, err := vm.ParseUndefinedBehavior(c.Undefined); err != nil {
		return err
	}

	seen := map[string]struct{}{c.rootPackage(): {}}
	for i, pkg := range c.Packages {
		if pkg.Name == "" {
			return fmt.Errorf("Expected package #%d to have a name", i+1)
		}
		if _, dup := seen[pkg.Name]; dup {
			return fmt.Errorf("Expected package '%s' to be declared once", pkg.Name)
		}
		seen[pkg.Name] = struct{}{}
	}
	for _, d := range c.Dispatch {
		if d.Namespace == "" {
			return fmt.Errorf("Expected dispatch entry to have a namespace")
		}
		if len(d.SearchOrder) == 0 {
			return fmt.Errorf("Expected dispatch entry for namespace '%s' to have a search order", d.Namespace)
		}
	}
	return nil
}

func (c ProjectConfig) rootPackage() string {
	if c.RootPackage == "" {
		return DefaultRootPackage
	}
	return c.RootPackage
}

// EnvironmentOpts converts settings of the config into builder options.
func (c ProjectConfig) EnvironmentOpts() (EnvironmentOpts, error) {
	undefined, err := vm.ParseUndefinedBehavior(c.Undefined)
	if err != nil {
		return EnvironmentOpts{}, err
	}
	return EnvironmentOpts{
		RootPackage:      c.rootPackage(),
		Undefined:        undefined,
		AutoEscape:       c.AutoEscape,
		StrictDispatch:   c.StrictDispatch,
		AdapterType:      c.AdapterType,
		AdapterParents:   c.AdapterParents,
		InternalPackages: c.InternalPackages,
		Vars:             varsMap(c.Vars),
	}, nil
}

// Apply loads templates of all configured packages into b and sets
// dispatch orders and package vars.
func (c ProjectConfig) Apply(b *Builder) error {
	root := c.rootPackage()
	if err := c.addPaths(b, root, c.TemplatePaths, false); err != nil {
		return err
	}
	for _, pkg := range c.Packages {
		if err := c.addPaths(b, pkg.Name, pkg.TemplatePaths, pkg.Name != root); err != nil {
			return err
		}
		if len(pkg.Vars) > 0 {
			b.PackageVars(pkg.Name, varsMap(pkg.Vars))
		}
	}
	for _, d := range c.Dispatch {
		b.DispatchOrder(d.Namespace, d.SearchOrder...)
	}
	return nil
}

func (c ProjectConfig) addPaths(b *Builder, pkg string, paths []string, prefixed bool) error {
	if len(paths) == 0 {
		return nil
	}
	var resolved []string
	for _, path := range paths {
		if !filepath.IsAbs(path) && c.dir != "" {
			path = filepath.Join(c.dir, path)
		}
		resolved = append(resolved, path)
	}
	found, err := files.NewFiles(resolved, true)
	if err != nil {
		return fmt.Errorf("Loading templates of package '%s': %w", pkg, err)
	}
	prefix := ""
	if prefixed {
		prefix = pkg + "/"
	}
	return b.AddFiles(pkg, prefix, files.Filter(found, files.TypeTemplate))
}

func varsMap(vars map[string]interface{}) *value.Map {
	if len(vars) == 0 {
		return nil
	}
	m, _ := value.FromGo(vars).AsMap()
	return m
}
