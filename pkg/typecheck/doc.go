// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

/*
Package typecheck infers types of template expressions without rendering.

Types form a lattice with two flavors of Any. Hard Any is declared (`any`
in a funcsign) and is compatible with everything. Soft Any is the result of
an operation that could not be checked precisely; it is produced together
with a warning and suppresses further findings on the same value.

Macros are typed by a `-- funcsign: (t1, t2) -> ret` comment directly
preceding their declaration. Macros without one are callable with any
arguments and return hard Any.

Names that templates do not bind resolve through a Registry. Builtins
returns the registry of the embedded catalog (catalog.yaml) together with
functions and filters whose result depends on their arguments.
*/
package typecheck
