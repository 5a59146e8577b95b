// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package filepos

import (
	"fmt"
)

// Position points at a line (and optionally a column) of a template file.
type Position struct {
	lineNum int // 1 based
	colNum  int // 1 based; 0 when unknown
	file    string
	known   bool
}

func NewPosition(lineNum int) *Position {
	if lineNum <= 0 {
		panic("Lines are 1 based")
	}
	return &Position{lineNum: lineNum, known: true}
}

func NewPositionInFile(lineNum int, file string) *Position {
	p := NewPosition(lineNum)
	p.file = file
	return p
}

// NewUnknownPosition is equivalent of zero value *Position
func NewUnknownPosition() *Position {
	return &Position{}
}

func NewUnknownPositionInFile(file string) *Position {
	return &Position{file: file}
}

// WithColumn returns a copy pointing at column "colNum" of the same line.
func (p *Position) WithColumn(colNum int) *Position {
	newPos := *p
	if colNum > 0 {
		newPos.colNum = colNum
	}
	return &newPos
}

func (p *Position) IsKnown() bool { return p != nil && p.known }

func (p *Position) LineNum() int {
	if !p.IsKnown() {
		panic("Position is unknown")
	}
	return p.lineNum
}

// ColumnNum returns 1 based column or 0 if column is not known.
func (p *Position) ColumnNum() int {
	if !p.IsKnown() {
		return 0
	}
	return p.colNum
}

func (p *Position) File() string { return p.file }

func (p *Position) AsString() string {
	return "line " + p.AsCompactString()
}

// AsCompactString formats as file:line:col, dropping unknown parts.
func (p *Position) AsCompactString() string {
	filePrefix := p.file
	if len(filePrefix) > 0 {
		filePrefix += ":"
	}
	if p.IsKnown() {
		if p.colNum > 0 {
			return fmt.Sprintf("%s%d:%d", filePrefix, p.lineNum, p.colNum)
		}
		return fmt.Sprintf("%s%d", filePrefix, p.lineNum)
	}
	return fmt.Sprintf("%s?", filePrefix)
}

// As4DigitString is used to align line numbers in listings.
func (p *Position) As4DigitString() string {
	if p.IsKnown() {
		return fmt.Sprintf("%4d", p.lineNum)
	}
	return "????"
}
