// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

/*
Package template compiles parsed templates into bytecode.

Each template is compiled into a main instruction vector, one vector per
{% block %} and one vector per macro (MacroUnit). Every vector owns its
constant pool. Jumps use absolute instruction indexes within their vector.

BuildCFG splits a vector into basic blocks for static analysis and
DebugCodeAsString renders a listing of all vectors next to their source lines.
*/
package template
