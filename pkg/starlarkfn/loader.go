// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package starlarkfn

import (
	"fmt"
	"sort"
	"strings"

	"carvel.dev/jtt/pkg/files"
	"carvel.dev/jtt/pkg/jttlibrary"
	"carvel.dev/jtt/pkg/value"
	"github.com/k14s/starlark-go/resolve"
	"github.com/k14s/starlark-go/starlark"
	"github.com/k14s/starlark-go/starlarkstruct"
	"github.com/k14s/starlark-go/syntax"
)

const (
	filtersGlobal = "filters"
	testsGlobal   = "tests"
)

func init() {
	resolve.AllowFloat = true
	resolve.AllowSet = true
	resolve.AllowLambda = true
	resolve.AllowNestedDef = true
	resolve.AllowRecursion = true
}

var predeclared = starlark.StringDict{
	"struct": starlark.NewBuiltin("struct", starlarkstruct.Make),
}

// Load executes Starlark files and collects their exported functions.
// Files are evaluated in the given order; later files override earlier
// definitions of the same name.
func Load(starlarkFiles []*files.File) (jttlibrary.Library, error) {
	lib := jttlibrary.NewLibrary()

	for _, file := range starlarkFiles {
		src, err := file.Bytes()
		if err != nil {
			return lib, fmt.Errorf("Reading %s: %w", file.Description(), err)
		}
		fileLib, err := LoadSource(file.RelativePath(), src)
		if err != nil {
			return lib, err
		}
		lib.Merge(fileLib)
	}
	return lib, nil
}

// LoadSource executes a single Starlark file.
func LoadSource(name string, src []byte) (jttlibrary.Library, error) {
	lib := jttlibrary.NewLibrary()

	f, err := syntax.Parse(name, src, 0)
	if err != nil {
		return lib, fmt.Errorf("Parsing functions file '%s': %w", name, err)
	}

	prog, err := starlark.FileProgram(f, predeclared.Has)
	if err != nil {
		return lib, fmt.Errorf("Resolving functions file '%s': %w", name, err)
	}

	thread := newThread("functions=" + name)

	globals, err := prog.Init(thread, predeclared)
	if err != nil {
		return lib, fmt.Errorf("Evaluating functions file '%s': %s", name, describeErr(err))
	}
	globals.Freeze()

	for _, globalName := range globals.Keys() {
		if strings.HasPrefix(globalName, "_") {
			continue
		}
		switch globalName {
		case filtersGlobal:
			err = collectSection(name, globalName, globals[globalName], lib.Filters)
		case testsGlobal:
			err = collectSection(name, globalName, globals[globalName], lib.Tests)
		default:
			if fn, ok := globals[globalName].(starlark.Callable); ok {
				lib.Globals[globalName] = value.FromObject(newFunction(globalName, fn))
			}
		}
		if err != nil {
			return lib, err
		}
	}
	return lib, nil
}

func collectSection(fileName, section string, val starlark.Value, dst map[string]value.Value) error {
	dict, ok := val.(*starlark.Dict)
	if !ok {
		return fmt.Errorf("Expected '%s' in functions file '%s' to be a dict, but was %s", section, fileName, val.Type())
	}

	var names []string
	fns := map[string]starlark.Callable{}
	for _, item := range dict.Items() {
		name, ok := item[0].(starlark.String)
		if !ok {
			return fmt.Errorf("Expected '%s' keys in functions file '%s' to be strings, but found %s", section, fileName, item[0].Type())
		}
		fn, ok := item[1].(starlark.Callable)
		if !ok {
			return fmt.Errorf("Expected '%s' entry '%s' in functions file '%s' to be a function, but was %s",
				section, string(name), fileName, item[1].Type())
		}
		names = append(names, string(name))
		fns[string(name)] = fn
	}

	sort.Strings(names)
	for _, name := range names {
		dst[name] = value.FromObject(newFunction(name, fns[name]))
	}
	return nil
}
