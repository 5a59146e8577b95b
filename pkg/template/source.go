// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package template

import (
	"strings"

	"carvel.dev/jtt/pkg/filepos"
)

// Source keeps template text split into lines for listings and errors.
type Source struct {
	name  string
	lines []string
}

type SourceLine struct {
	Position *filepos.Position
	Content  string
}

func NewSource(name string, bs []byte) *Source {
	return &Source{name: name, lines: strings.Split(string(bs), "\n")}
}

func (s *Source) Name() string { return s.name }

func (s *Source) NumLines() int { return len(s.lines) }

// LineAt returns 1-based line or nil when it is out of range.
func (s *Source) LineAt(lineNum int) *SourceLine {
	if s == nil || lineNum < 1 || lineNum > len(s.lines) {
		return nil
	}
	return NewSourceLine(filepos.NewPositionInFile(lineNum, s.name), strings.TrimSuffix(s.lines[lineNum-1], "\r"))
}

func NewSourceLine(pos *filepos.Position, content string) *SourceLine {
	if !pos.IsKnown() {
		panic("Expected source line position to be known")
	}
	return &SourceLine{Position: pos, Content: content}
}
