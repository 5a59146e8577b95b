// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package filepos

import (
	"fmt"
)

// Span is a region of template source. Lines and columns are 1 based,
// offsets are byte offsets into the source. Zero value is an unknown span.
type Span struct {
	StartLine   int
	StartCol    int
	StartOffset int
	EndLine     int
	EndCol      int
	EndOffset   int
}

func (s Span) IsKnown() bool { return s.StartLine > 0 }

// Join returns a span covering both spans.
func (s Span) Join(other Span) Span {
	if !s.IsKnown() {
		return other
	}
	if !other.IsKnown() {
		return s
	}
	result := s
	if other.EndOffset > s.EndOffset {
		result.EndLine = other.EndLine
		result.EndCol = other.EndCol
		result.EndOffset = other.EndOffset
	}
	if other.StartOffset < s.StartOffset {
		result.StartLine = other.StartLine
		result.StartCol = other.StartCol
		result.StartOffset = other.StartOffset
	}
	return result
}

// Position converts start of the span into a Position within "file".
func (s Span) Position(file string) *Position {
	if !s.IsKnown() {
		return NewUnknownPositionInFile(file)
	}
	return NewPositionInFile(s.StartLine, file).WithColumn(s.StartCol)
}

func (s Span) String() string {
	if !s.IsKnown() {
		return "?"
	}
	if s.StartLine == s.EndLine {
		return fmt.Sprintf("%d:%d-%d", s.StartLine, s.StartCol, s.EndCol)
	}
	return fmt.Sprintf("%d:%d-%d:%d", s.StartLine, s.StartCol, s.EndLine, s.EndCol)
}
