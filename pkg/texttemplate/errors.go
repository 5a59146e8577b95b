// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package texttemplate

import (
	"fmt"

	"carvel.dev/jtt/pkg/filepos"
)

// SyntaxError is returned by the lexer and parser.
type SyntaxError struct {
	Msg  string
	Span filepos.Span
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error: %s (at %s)", e.Msg, e.Span)
}
