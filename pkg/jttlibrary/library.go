// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package jttlibrary

import (
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"carvel.dev/jtt/pkg/value"
)

// Library is a set of host values installed into an environment.
type Library struct {
	Globals map[string]value.Value
	Filters map[string]value.Value
	Tests   map[string]value.Value
}

func NewLibrary() Library {
	return Library{
		Globals: map[string]value.Value{},
		Filters: map[string]value.Value{},
		Tests:   map[string]value.Value{},
	}
}

// Merge copies entries of other into l. Entries of other win.
func (l Library) Merge(other Library) {
	for name, val := range other.Globals {
		l.Globals[name] = val
	}
	for name, val := range other.Filters {
		l.Filters[name] = val
	}
	for name, val := range other.Tests {
		l.Tests[name] = val
	}
}

// Names lists entries of one section in sorted order.
func Names(section map[string]value.Value) []string {
	var result []string
	for name := range section {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}

// Options configure functions that talk to the host.
type Options struct {
	// Vars back var() and var.has_var()
	Vars *value.Map
	// Output receives print() and log() messages
	Output io.Writer
	// Env backs env_var(); defaults to os.LookupEnv
	Env func(name string) (string, bool)
}

var (
	extsLock sync.Mutex
	exts     []Library
)

// RegisterExt adds an extension included in every library built by New.
// Extensions live in separate packages so that their dependencies stay
// optional for hosts embedding jtt.
func RegisterExt(ext Library) {
	extsLock.Lock()
	defer extsLock.Unlock()
	exts = append(exts, ext)
}

// New builds the standard library.
func New(opts Options) Library {
	if opts.Output == nil {
		opts.Output = io.Discard
	}
	if opts.Env == nil {
		opts.Env = os.LookupEnv
	}
	if opts.Vars == nil {
		opts.Vars = value.NewMap()
	}

	lib := NewLibrary()
	lib.Merge(functionsAPI(opts))
	lib.Merge(FiltersAPI)
	lib.Merge(SerializationAPI)
	lib.Merge(TestsAPI)
	lib.Merge(VersionAPI)

	extsLock.Lock()
	defer extsLock.Unlock()
	for _, ext := range exts {
		lib.Merge(ext)
	}
	return lib
}

// HostFunc is the signature of library functions: positional arguments
// are separated from keyword arguments.
type HostFunc func(st value.State, args []value.Value, kwargs *value.Kwargs) (value.Value, error)

// NewFunc wraps f into a callable value. Errors are prefixed with the
// function name and unknown keyword arguments are rejected.
func NewFunc(name string, f HostFunc) value.Value {
	return value.FromObject(value.NewFunction(name, func(st value.State, args []value.Value) (value.Value, error) {
		pos, kwargs := value.SplitKwargs(args)
		val, err := f(st, pos, kwargs)
		if err != nil {
			return value.Undefined, fmt.Errorf("%s: %w", name, err)
		}
		if err := kwargs.AssertAllUsed(); err != nil {
			return value.Undefined, fmt.Errorf("%s: %w", name, err)
		}
		return val, nil
	}))
}

func optionalArg(args []value.Value, kwargs *value.Kwargs, idx int, name string, def value.Value) value.Value {
	if val, found := value.ArgOrKwarg(args, kwargs, idx, name); found && !val.IsUndefined() {
		return val
	}
	return def
}

func boolArg(args []value.Value, kwargs *value.Kwargs, idx int, name string, def bool) bool {
	return optionalArg(args, kwargs, idx, name, value.FromBool(def)).IsTrue()
}

func intArg(args []value.Value, kwargs *value.Kwargs, idx int, name string, def int64) (int64, error) {
	return value.IntArg(name, optionalArg(args, kwargs, idx, name, value.FromInt(def)))
}

func stringArg(args []value.Value, kwargs *value.Kwargs, idx int, name string, def string) (string, error) {
	return value.StringArg(name, optionalArg(args, kwargs, idx, name, value.FromString(def)))
}

func expectArgs(args []value.Value, min, max int) error {
	switch {
	case len(args) < min:
		return value.NewError(value.ErrMissingArgument, fmt.Sprintf("expected at least %d argument(s), got %d", min, len(args)))
	case max >= 0 && len(args) > max:
		return value.NewError(value.ErrTooManyArguments, fmt.Sprintf("expected at most %d argument(s), got %d", max, len(args)))
	}
	return nil
}
