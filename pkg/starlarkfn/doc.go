// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

/*
Package starlarkfn loads host functions written in Starlark (.star files)
and exposes them to templates as globals, filters and tests.

Every public top level function of a file becomes a global. A file may
also define `filters` and `tests` dicts mapping names to functions.
*/
package starlarkfn
