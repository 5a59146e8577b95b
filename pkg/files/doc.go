// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

/*
Package files provides primitives for enumerating and loading data from various
file or file-like Source's and for writing rendered output to filesystem
directories.

jtt processes files differently depending on their Type. Files that are
TypeTemplate are compiled as templates, TypeData files provide the render
context and TypeStarlark files define host functions.
*/
package files
