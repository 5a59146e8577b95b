// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package jttlibrary

import (
	"carvel.dev/jtt/pkg/value"
	"carvel.dev/jtt/pkg/version"
)

var (
	// VersionAPI exposes the jtt version to templates
	VersionAPI = Library{
		Globals: map[string]value.Value{
			"jtt_version":         value.FromString(version.Version),
			"require_jtt_version": NewFunc("require_jtt_version", versionModule{}.RequireAtLeast),
		},
		Filters: map[string]value.Value{},
		Tests: map[string]value.Value{
			"version_at_least": NewFunc("version_at_least", versionModule{}.AtLeast),
		},
	}
)

type versionModule struct{}

// RequireAtLeast fails rendering when jtt is older than the given version.
func (b versionModule) RequireAtLeast(_ value.State, args []value.Value, _ *value.Kwargs) (value.Value, error) {
	if err := expectArgs(args, 1, 1); err != nil {
		return value.Undefined, err
	}
	minimum, err := value.StringArg("minimum", args[0])
	if err != nil {
		return value.Undefined, err
	}
	if err := version.RequireAtLeast(minimum); err != nil {
		return value.Undefined, err
	}
	return value.None, nil
}

// AtLeast backs `"1.2.3" is version_at_least("1.2")`.
func (b versionModule) AtLeast(_ value.State, args []value.Value, _ *value.Kwargs) (value.Value, error) {
	if err := expectArgs(args, 2, 2); err != nil {
		return value.Undefined, err
	}
	candidate, err := value.StringArg("candidate", args[0])
	if err != nil {
		return value.Undefined, err
	}
	minimum, err := value.StringArg("minimum", args[1])
	if err != nil {
		return value.Undefined, err
	}
	ok, err := version.AtLeast(candidate, minimum)
	if err != nil {
		return value.Undefined, err
	}
	return value.FromBool(ok), nil
}
