// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

/*
Package vm executes compiled templates.

A render runs one instruction vector with a single operand stack and a frame
stack. Names resolve through frames (innermost first, the bottom frame being
the root context), then environment globals, then the optional Resolver
(macro dispatch). Unresolved names produce Undefined; how Undefined behaves
on use is controlled by UndefinedBehavior.

Macros are values. A macro captures the frames active where it was defined
and runs its own instruction vector on call; its result is the captured
output or the value passed to return().
*/
package vm
