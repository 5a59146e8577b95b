// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

/*
Package dispatch resolves macros across packages.

A Registry is assembled with a Builder from `package.macro` entries and
per-namespace dispatch orders, then frozen by Build. As a vm.Resolver it
makes bare macro names and package namespaces visible to templates:

  - a bare name is searched in the calling package first, then in the
    dispatch order of the root package (or the root package followed by
    internal packages when no order is configured);
  - `pkg.macro(...)` evaluates the macro with the base context of the
    package that defines it;
  - `adapter.dispatch('name', 'pkg')` searches `{adapter}__name` before
    `default__name`.
*/
package dispatch
