// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package template

import (
	"fmt"
	"strings"

	"carvel.dev/jtt/pkg/filepos"
	"carvel.dev/jtt/pkg/texttemplate"
)

type ArgSpec struct {
	Name       string
	HasDefault bool
}

// MacroUnit is a compiled macro body. It is immutable once compiled.
type MacroUnit struct {
	Name string
	Args []ArgSpec
	// Funcsign is the text following a `-- funcsign:` comment placed right
	// before the macro (empty when absent)
	Funcsign        string
	Span            filepos.Span
	Code            *Instructions
	Kind            texttemplate.MacroKind
	Decl            *texttemplate.Macro
	Template        string
	TopLevel        bool
	CallerReference bool
}

// RequiredArgs returns number of arguments without defaults.
func (m *MacroUnit) RequiredArgs() int {
	count := 0
	for _, arg := range m.Args {
		if !arg.HasDefault {
			count++
		}
	}
	return count
}

type CompiledTemplate struct {
	name       string
	source     *Source
	ast        *texttemplate.Template
	code       *Instructions
	blocks     map[string]*Instructions
	blockOrder []string
	macros     []*MacroUnit
	rawBytes   int
}

// Compile parses and compiles template source.
func Compile(name string, src []byte, opts texttemplate.LexOptions) (*CompiledTemplate, error) {
	source := NewSource(name, src)

	ast, err := texttemplate.NewParser(opts).Parse(src, name)
	if err != nil {
		return nil, NewCompiledTemplateMultiError(err, name, source)
	}

	tpl, err := CompileAST(name, source, ast)
	if err != nil {
		return nil, NewCompiledTemplateMultiError(err, name, source)
	}
	return tpl, nil
}

// CompileAST generates instructions for an already parsed template.
func CompileAST(name string, source *Source, ast *texttemplate.Template) (*CompiledTemplate, error) {
	gen := NewCodeGenerator(name)

	if err := gen.CompileStmts(ast.Children); err != nil {
		return nil, err
	}

	return &CompiledTemplate{
		name:       name,
		source:     source,
		ast:        ast,
		code:       gen.instrs,
		blocks:     gen.unit.blocks,
		blockOrder: gen.unit.blockOrder,
		macros:     gen.unit.macros,
		rawBytes:   gen.rawBytes,
	}, nil
}

func (e *CompiledTemplate) Name() string                     { return e.name }
func (e *CompiledTemplate) Source() *Source                  { return e.source }
func (e *CompiledTemplate) AST() *texttemplate.Template      { return e.ast }
func (e *CompiledTemplate) Instructions() *Instructions      { return e.code }
func (e *CompiledTemplate) Blocks() map[string]*Instructions { return e.blocks }
func (e *CompiledTemplate) BlockNames() []string             { return e.blockOrder }
func (e *CompiledTemplate) Macros() []*MacroUnit             { return e.macros }
func (e *CompiledTemplate) Macro(idx int) *MacroUnit         { return e.macros[idx] }

// RawBytes is the amount of literal template text; used to size output buffers.
func (e *CompiledTemplate) RawBytes() int { return e.rawBytes }

// TopLevelMacros returns macros declared directly in the template body in
// declaration order.
func (e *CompiledTemplate) TopLevelMacros() []*MacroUnit {
	var result []*MacroUnit
	for _, m := range e.macros {
		if m.TopLevel {
			result = append(result, m)
		}
	}
	return result
}

func (e *CompiledTemplate) CodeAtLine(pos *filepos.Position) *SourceLine {
	return e.source.LineAt(pos.LineNum())
}

func (e *CompiledTemplate) DebugCodeAsString() string {
	result := []string{"src:  tmpl: code: | srccode"}
	result = append(result, e.debugInstructions(e.code)...)

	for _, name := range e.blockOrder {
		result = append(result, "", fmt.Sprintf("block %s:", name))
		result = append(result, e.debugInstructions(e.blocks[name])...)
	}

	for i, m := range e.macros {
		result = append(result, "", fmt.Sprintf("macro #%d %s:", i, m.Name))
		result = append(result, e.debugInstructions(m.Code)...)
	}

	// Do not add any unnecessary newlines to match code lines
	return strings.Join(result, "\n")
}

func (e *CompiledTemplate) debugInstructions(instrs *Instructions) []string {
	var result []string
	lastLine := 0

	for i, instr := range instrs.Code() {
		src := ""
		pos := filepos.NewUnknownPosition()

		if instr.Span.IsKnown() {
			pos = filepos.NewPosition(instr.Span.StartLine)
			if instr.Span.StartLine != lastLine {
				if line := e.source.LineAt(instr.Span.StartLine); line != nil {
					src = line.Content
				}
				lastLine = instr.Span.StartLine
			}
		}

		result = append(result, strings.TrimRight(fmt.Sprintf("%s: %4d: %s | %s",
			pos.As4DigitString(), i, instrs.AsString(i), src), " "))
	}
	return result
}
