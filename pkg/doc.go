// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

/*
Package pkg is the collection of packages that make up the implementation of jtt.

The codebase is organized into layers. Each package keeps a narrow
responsibility and depends on the others only as far as it must.

Below, each package is listed with its coupling to the rest of the codebase:

	(# of dependents) => <package name> => (# of dependencies)

# Entry Point

jtt is built into a single command-line tool:

	./cmd/jtt

# Commands

jtt implements "render", "typecheck", "disasm" and "version".

	(1) => pkg/cmd => (3)
	(1) => pkg/cmd/template => (11)

# The Workspace

A workspace.Environment is built once from a set of template files grouped
into packages (optionally described by a jtt.toml project file) and is
then shared by any number of concurrent renders. It owns the compiled
template cache and the macro dispatch registry, and wires the adapter and
the standard library into every render.

	(1) => pkg/workspace => (11)
	(2) => pkg/files => (0)
	(5) => pkg/filepos => (0)

# Templating

Templates are parsed into an AST, compiled into a flat instruction listing
with a control flow graph, and executed by a stack based virtual machine.

	(3) => pkg/texttemplate => (2)
	(4) => pkg/template => (3)
	(4) => pkg/vm => (4)

# Values

Every runtime value (scalars, sequences, ordered maps, host objects and
callables) is a value.Value.

	(11) => pkg/value => (1)

# Macro Dispatch and Adapters

Macros are resolved across packages through a dispatch registry. Adapters
provide database specific macro overrides and query execution.

	(2) => pkg/dispatch => (3)
	(2) => pkg/adapter => (2)
	(1) => pkg/adapter/sqlite => (2)

# Type Checking

The gradual type-checker walks the AST and reports diagnostics to a
listener without aborting.

	(2) => pkg/typecheck => (4)

# Standard Library

jtt injects a collection of globals, filters and tests into each render.
Those with heavier Go dependencies live in extensions, and functions may
also be defined in Starlark files.

	(4) => pkg/jttlibrary => (4)
	(1) => pkg/jttlibraryext => (1)
	(2) => pkg/jttlibraryext/toml => (2)
	(1) => pkg/starlarkfn => (3)

# Utilities

	(1) => pkg/cmd/ui => (0)
	(2) => pkg/orderedmap => (0)
	(4) => pkg/version => (0)
	(2) => pkg/experiments => (0)
	(3) => pkg/spell => (0)
*/
package pkg
