// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

/*
Package filepos provides the concept of Position: a source name (usually a
template name) and line (plus optional column) within that source, and Span:
a start/end region used by the lexer, compiler and VM to map errors back to
template text.

Not all Positions point within a template (e.g. code that is generated). The
zero-value of Position (can be created using NewUnknownPosition()) represents
this case; similarly the zero-value of Span is an unknown span.
*/
package filepos
