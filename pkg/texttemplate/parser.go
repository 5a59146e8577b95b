// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package texttemplate

import (
	"fmt"
	"math/big"
	"strconv"

	"carvel.dev/jtt/pkg/filepos"
	"carvel.dev/jtt/pkg/value"
)

const (
	maxParseDepth = 150
	maxCallArgs   = 2000
)

var reservedNames = map[string]bool{
	"true": true, "True": true,
	"false": true, "False": true,
	"none": true, "None": true,
	"loop": true, "self": true,
}

type Parser struct {
	opts LexOptions

	associatedName string
	tokens         []Token
	pos            int

	inMacro bool
	inLoop  bool
	blocks  map[string]bool
	depth   int
}

func NewParser(opts LexOptions) *Parser {
	return &Parser{opts: opts}
}

// Parse tokenizes and parses template source into its AST.
func (p *Parser) Parse(dataBs []byte, associatedName string) (*Template, error) {
	tokens, err := Tokenize(string(dataBs), p.opts)
	if err != nil {
		return nil, err
	}

	p.associatedName = associatedName
	p.tokens = tokens
	p.pos = 0
	p.inMacro = false
	p.inLoop = false
	p.blocks = map[string]bool{}
	p.depth = 0

	children, err := p.subparse(nil)
	if err != nil {
		return nil, err
	}
	if tok, ok := p.current(); ok {
		return nil, p.unexpected(tok, "end of input")
	}

	tpl := &Template{Children: children}
	if len(tokens) > 0 {
		tpl.Span = tokens[0].Span.Join(tokens[len(tokens)-1].Span)
	}
	return tpl, nil
}

// ParseExpr parses a standalone expression.
func ParseExpr(src string) (Expr, error) {
	tokens, err := Tokenize("{{ "+src+" }}", LexOptions{})
	if err != nil {
		return nil, err
	}
	p := &Parser{tokens: tokens, blocks: map[string]bool{}}
	if _, err := p.expect(TokenVariableStart, "expression"); err != nil {
		return nil, err
	}
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenVariableEnd, "end of expression"); err != nil {
		return nil, err
	}
	return expr, nil
}

func (p *Parser) current() (Token, bool) {
	if p.pos < len(p.tokens) {
		return p.tokens[p.pos], true
	}
	return Token{}, false
}

func (p *Parser) next() (Token, bool) {
	tok, ok := p.current()
	if ok {
		p.pos++
	}
	return tok, ok
}

func (p *Parser) lastSpan() filepos.Span {
	if p.pos > 0 && p.pos <= len(p.tokens) {
		return p.tokens[p.pos-1].Span
	}
	if len(p.tokens) > 0 {
		return p.tokens[len(p.tokens)-1].Span
	}
	return filepos.Span{}
}

func (p *Parser) currentSpan() filepos.Span {
	if tok, ok := p.current(); ok {
		return tok.Span
	}
	return p.lastSpan()
}

// expandSpan extends span up to the last consumed token.
func (p *Parser) expandSpan(span filepos.Span) filepos.Span {
	return span.Join(p.lastSpan())
}

func (p *Parser) matches(kind TokenKind) bool {
	tok, ok := p.current()
	return ok && tok.Kind == kind
}

func (p *Parser) matchesIdent(names ...string) bool {
	tok, ok := p.current()
	if !ok || tok.Kind != TokenIdent {
		return false
	}
	for _, name := range names {
		if tok.Value == name {
			return true
		}
	}
	return false
}

func (p *Parser) skip(kind TokenKind) bool {
	if p.matches(kind) {
		p.pos++
		return true
	}
	return false
}

func (p *Parser) skipIdent(name string) bool {
	if p.matchesIdent(name) {
		p.pos++
		return true
	}
	return false
}

func (p *Parser) expect(kind TokenKind, expected string) (Token, error) {
	tok, ok := p.next()
	if !ok {
		return Token{}, p.unexpectedEOF(expected)
	}
	if tok.Kind != kind {
		return Token{}, p.unexpected(tok, expected)
	}
	return tok, nil
}

func (p *Parser) expectIdent(name string) error {
	tok, ok := p.next()
	if !ok {
		return p.unexpectedEOF(fmt.Sprintf("`%s`", name))
	}
	if !tok.IsIdent(name) {
		return p.unexpected(tok, fmt.Sprintf("`%s`", name))
	}
	return nil
}

func (p *Parser) errorf(span filepos.Span, format string, args ...interface{}) error {
	return &SyntaxError{Msg: fmt.Sprintf(format, args...), Span: span}
}

func (p *Parser) unexpected(tok Token, expected string) error {
	return p.errorf(tok.Span, "unexpected %s, expected %s", tok, expected)
}

func (p *Parser) unexpectedEOF(expected string) error {
	return p.errorf(p.lastSpan(), "unexpected end of input, expected %s", expected)
}

func (p *Parser) enter() error {
	p.depth++
	if p.depth > maxParseDepth {
		return p.errorf(p.currentSpan(), "template exceeds maximum nesting depth")
	}
	return nil
}

func (p *Parser) leave() { p.depth-- }

// subparse parses statements until endCheck matches the keyword following
// a block start. The keyword itself is left unconsumed.
func (p *Parser) subparse(endCheck func(Token) bool) ([]Stmt, error) {
	var result []Stmt
	for {
		tok, ok := p.next()
		if !ok {
			if endCheck != nil {
				return nil, p.unexpectedEOF("end of block")
			}
			return result, nil
		}

		switch tok.Kind {
		case TokenTemplateData:
			result = append(result, &EmitRaw{Spanned{tok.Span}, tok.Value})

		case TokenVariableStart:
			expr, err := p.parseExprOrImpliedTuple()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(TokenVariableEnd, "end of variable block"); err != nil {
				return nil, err
			}
			result = append(result, &EmitExpr{Spanned{p.expandSpan(tok.Span)}, expr})

		case TokenBlockStart:
			keyword, ok := p.current()
			if !ok {
				return nil, p.unexpectedEOF("keyword")
			}
			if endCheck != nil && endCheck(keyword) {
				return result, nil
			}
			stmt, err := p.parseStmt(tok.Span)
			if err != nil {
				return nil, err
			}
			result = append(result, stmt)

		default:
			return nil, p.unexpected(tok, "template data or tag")
		}
	}
}

func endsWith(names ...string) func(Token) bool {
	return func(tok Token) bool {
		for _, name := range names {
			if tok.IsIdent(name) {
				return true
			}
		}
		return false
	}
}

// parseStmt parses a statement following `{%` up to and including `%}`.
func (p *Parser) parseStmt(start filepos.Span) (Stmt, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	stmt, err := p.parseStmtBody(start)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenBlockEnd, "end of block"); err != nil {
		return nil, err
	}
	p.setSpan(stmt, p.expandSpan(start))
	return stmt, nil
}

func (p *Parser) setSpan(stmt Stmt, span filepos.Span) {
	switch typed := stmt.(type) {
	case *ForLoop:
		typed.Span = span
	case *IfCond:
		typed.Span = span
	case *WithBlock:
		typed.Span = span
	case *Set:
		typed.Span = span
	case *SetBlock:
		typed.Span = span
	case *AutoEscape:
		typed.Span = span
	case *FilterBlock:
		typed.Span = span
	case *Block:
		typed.Span = span
	case *Extends:
		typed.Span = span
	case *Include:
		typed.Span = span
	case *Import:
		typed.Span = span
	case *FromImport:
		typed.Span = span
	case *Macro:
		typed.Span = span
	case *CallBlock:
		typed.Span = span
	case *Do:
		typed.Span = span
	case *Continue:
		typed.Span = span
	case *Break:
		typed.Span = span
	}
}

func (p *Parser) parseStmtBody(start filepos.Span) (Stmt, error) {
	tok, ok := p.next()
	if !ok {
		return nil, p.unexpectedEOF("statement")
	}
	if tok.Kind != TokenIdent {
		return nil, p.unexpected(tok, "statement")
	}

	switch tok.Value {
	case "for":
		return p.parseForStmt()
	case "if":
		return p.parseIfCond()
	case "with":
		return p.parseWithBlock()
	case "set":
		return p.parseSet()
	case "autoescape":
		return p.parseAutoEscape()
	case "filter":
		return p.parseFilterBlock()
	case "block":
		return p.parseBlock(tok)
	case "extends":
		name, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return &Extends{Name: name}, nil
	case "include":
		return p.parseInclude()
	case "import":
		return p.parseImport()
	case "from":
		return p.parseFromImport()
	case "macro":
		return p.parseMacro(MacroKindMacro)
	case "test":
		return p.parseMacro(MacroKindTest)
	case "materialization":
		return p.parseMaterialization()
	case "snapshot":
		return p.parseMacro(MacroKindSnapshot)
	case "call":
		return p.parseCallBlock()
	case "do":
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return &Do{Expr: expr}, nil
	case "print":
		// Evaluated for side effects, output is discarded
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return &WithBlock{Body: []Stmt{&Do{Spanned{p.expandSpan(start)}, expr}}}, nil
	case "continue":
		if !p.inLoop {
			return nil, p.errorf(tok.Span, "'continue' must be placed inside a loop")
		}
		return &Continue{}, nil
	case "break":
		if !p.inLoop {
			return nil, p.errorf(tok.Span, "'break' must be placed inside a loop")
		}
		return &Break{}, nil
	}
	return nil, p.errorf(tok.Span, "unknown statement %s", tok.Value)
}

func (p *Parser) parseForStmt() (Stmt, error) {
	target, err := p.parseAssignment()
	if err != nil {
		return nil, err
	}
	if err := p.expectIdent("in"); err != nil {
		return nil, err
	}
	iter, err := p.parseExprNoIf()
	if err != nil {
		return nil, err
	}
	if p.matches(TokenComma) {
		items := []Expr{iter}
		for p.skip(TokenComma) {
			if p.matches(TokenBlockEnd) || p.matchesIdent("if", "recursive") {
				break
			}
			item, err := p.parseExprNoIf()
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		}
		iter = &Tuple{Spanned{iter.GetSpan().Join(p.lastSpan())}, items}
	}

	loop := &ForLoop{Target: target, Iter: iter}
	if p.skipIdent("if") {
		if loop.FilterExpr, err = p.parseExpr(); err != nil {
			return nil, err
		}
	}
	loop.Recursive = p.skipIdent("recursive")
	if _, err := p.expect(TokenBlockEnd, "end of block"); err != nil {
		return nil, err
	}

	oldInLoop := p.inLoop
	p.inLoop = true
	loop.Body, err = p.subparse(endsWith("endfor", "else"))
	p.inLoop = oldInLoop
	if err != nil {
		return nil, err
	}

	tok, _ := p.next()
	if tok.IsIdent("else") {
		if _, err := p.expect(TokenBlockEnd, "end of block"); err != nil {
			return nil, err
		}
		if loop.ElseBody, err = p.subparse(endsWith("endfor")); err != nil {
			return nil, err
		}
		p.next()
	}
	return loop, nil
}

func (p *Parser) parseIfCond() (*IfCond, error) {
	start := p.lastSpan()
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	p.skip(TokenColon)
	if _, err := p.expect(TokenBlockEnd, "end of block"); err != nil {
		return nil, err
	}

	cond := &IfCond{Expr: expr}
	cond.TrueBody, err = p.subparse(endsWith("endif", "else", "elif"))
	if err != nil {
		return nil, err
	}

	tok, _ := p.next()
	switch {
	case tok.IsIdent("else"):
		p.skip(TokenColon)
		if _, err := p.expect(TokenBlockEnd, "end of block"); err != nil {
			return nil, err
		}
		if cond.FalseBody, err = p.subparse(endsWith("endif")); err != nil {
			return nil, err
		}
		p.next()
	case tok.IsIdent("elif"):
		nested, err := p.parseIfCond()
		if err != nil {
			return nil, err
		}
		cond.FalseBody = []Stmt{nested}
	}
	cond.Span = p.expandSpan(start)
	return cond, nil
}

func (p *Parser) parseWithBlock() (Stmt, error) {
	block := &WithBlock{}
	for !p.matches(TokenBlockEnd) {
		if len(block.Assignments) > 0 {
			if _, err := p.expect(TokenComma, "comma"); err != nil {
				return nil, err
			}
		}
		var target Expr
		var err error
		if p.skip(TokenParenOpen) {
			if target, err = p.parseAssignment(); err != nil {
				return nil, err
			}
			if _, err := p.expect(TokenParenClose, "`)`"); err != nil {
				return nil, err
			}
		} else if target, err = p.parseAssignName(false); err != nil {
			return nil, err
		}
		if _, err := p.expect(TokenAssign, "assignment operator"); err != nil {
			return nil, err
		}
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		block.Assignments = append(block.Assignments, Assignment{target, expr})
	}
	if _, err := p.expect(TokenBlockEnd, "end of block"); err != nil {
		return nil, err
	}
	body, err := p.subparse(endsWith("endwith"))
	if err != nil {
		return nil, err
	}
	p.next()
	block.Body = body
	return block, nil
}

func (p *Parser) parseSet() (Stmt, error) {
	var target Expr
	var err error
	inParens := false

	if p.skip(TokenParenOpen) {
		if target, err = p.parseAssignment(); err != nil {
			return nil, err
		}
		if _, err := p.expect(TokenParenClose, "`)`"); err != nil {
			return nil, err
		}
		inParens = true
	} else if target, err = p.parseAssignName(true); err != nil {
		return nil, err
	}

	// multi target `a, b = x, y`
	if !inParens && p.matches(TokenComma) {
		items := []Expr{target}
		for p.skip(TokenComma) {
			item, err := p.parseAssignName(true)
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		}
		target = &List{Spanned{target.GetSpan().Join(p.lastSpan())}, items}
	}

	if !inParens && (p.matches(TokenBlockEnd) || p.matches(TokenPipe)) {
		block := &SetBlock{Target: target}
		if p.skip(TokenPipe) {
			if block.Filter, err = p.parseFilterChain(); err != nil {
				return nil, err
			}
		}
		if _, err := p.expect(TokenBlockEnd, "end of block"); err != nil {
			return nil, err
		}
		if block.Body, err = p.subparse(endsWith("endset")); err != nil {
			return nil, err
		}
		p.next()
		return block, nil
	}

	if _, err := p.expect(TokenAssign, "assignment operator"); err != nil {
		return nil, err
	}
	expr, err := p.parseExprOrImpliedTuple()
	if err != nil {
		return nil, err
	}
	return &Set{Target: target, Expr: expr}, nil
}

func (p *Parser) parseAutoEscape() (Stmt, error) {
	enabled, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenBlockEnd, "end of block"); err != nil {
		return nil, err
	}
	body, err := p.subparse(endsWith("endautoescape"))
	if err != nil {
		return nil, err
	}
	p.next()
	return &AutoEscape{Enabled: enabled, Body: body}, nil
}

func (p *Parser) parseFilterBlock() (Stmt, error) {
	filter, err := p.parseFilterChain()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenBlockEnd, "end of block"); err != nil {
		return nil, err
	}
	body, err := p.subparse(endsWith("endfilter"))
	if err != nil {
		return nil, err
	}
	p.next()
	return &FilterBlock{Filter: filter, Body: body}, nil
}

// parseFilterChain parses `a | b(x) | c` where the first filter has no input.
func (p *Parser) parseFilterChain() (Expr, error) {
	var filter Expr
	for !p.matches(TokenBlockEnd) {
		if filter != nil {
			if _, err := p.expect(TokenPipe, "`|`"); err != nil {
				return nil, err
			}
		}
		nameTok, err := p.expect(TokenIdent, "identifier")
		if err != nil {
			return nil, err
		}
		var args []CallArg
		if p.matches(TokenParenOpen) {
			if args, err = p.parseArgs(); err != nil {
				return nil, err
			}
		}
		filter = &Filter{Spanned{p.expandSpan(nameTok.Span)}, nameTok.Value, filter, args}
	}
	if filter == nil {
		return nil, p.errorf(p.currentSpan(), "expected a filter")
	}
	return filter, nil
}

func (p *Parser) parseBlock(blockTok Token) (Stmt, error) {
	if p.inMacro {
		return nil, p.errorf(blockTok.Span, "block tags in macros are not allowed")
	}
	nameTok, err := p.expect(TokenIdent, "identifier")
	if err != nil {
		return nil, err
	}
	if p.blocks[nameTok.Value] {
		return nil, p.errorf(nameTok.Span, "block '%s' defined twice", nameTok.Value)
	}
	p.blocks[nameTok.Value] = true

	if _, err := p.expect(TokenBlockEnd, "end of block"); err != nil {
		return nil, err
	}
	body, err := p.subparse(endsWith("endblock"))
	if err != nil {
		return nil, err
	}
	p.next()

	if tok, ok := p.current(); ok && tok.Kind == TokenIdent {
		p.next()
		if tok.Value != nameTok.Value {
			return nil, p.errorf(tok.Span, "mismatching name on block. Got `%s`, expected `%s`", tok.Value, nameTok.Value)
		}
	}
	return &Block{Name: nameTok.Value, Body: body}, nil
}

func (p *Parser) parseInclude() (Stmt, error) {
	name, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	include := &Include{Name: name}

	for p.matches(TokenIdent) {
		switch {
		case p.skipIdent("ignore"):
			if err := p.expectIdent("missing"); err != nil {
				return nil, err
			}
			include.IgnoreMissing = true
		case p.skipIdent("with"), p.skipIdent("without"):
			// context is always passed
			if err := p.expectIdent("context"); err != nil {
				return nil, err
			}
		default:
			tok, _ := p.current()
			return nil, p.unexpected(tok, "end of block")
		}
	}
	return include, nil
}

func (p *Parser) parseImport() (Stmt, error) {
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.expectIdent("as"); err != nil {
		return nil, err
	}
	name, err := p.parseAssignName(false)
	if err != nil {
		return nil, err
	}
	p.skipContextMarker()
	return &Import{Expr: expr, Name: name}, nil
}

func (p *Parser) parseFromImport() (Stmt, error) {
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.expectIdent("import"); err != nil {
		return nil, err
	}

	stmt := &FromImport{Expr: expr}
	for !p.matches(TokenBlockEnd) && !p.matchesIdent("with", "without") {
		if len(stmt.Names) > 0 {
			if _, err := p.expect(TokenComma, "`,`"); err != nil {
				return nil, err
			}
			if p.matches(TokenBlockEnd) {
				break
			}
		}
		name, err := p.expectAssignableIdent()
		if err != nil {
			return nil, err
		}
		imported := ImportName{Name: name, Alias: name}
		if p.skipIdent("as") {
			if imported.Alias, err = p.expectAssignableIdent(); err != nil {
				return nil, err
			}
		}
		stmt.Names = append(stmt.Names, imported)
	}
	p.skipContextMarker()
	return stmt, nil
}

func (p *Parser) skipContextMarker() {
	if p.matchesIdent("with", "without") {
		p.next()
		p.skipIdent("context")
	}
}

func (p *Parser) expectAssignableIdent() (string, error) {
	tok, err := p.expect(TokenIdent, "identifier")
	if err != nil {
		return "", err
	}
	if reservedNames[tok.Value] {
		return "", p.errorf(tok.Span, "cannot assign to reserved variable name %s", tok.Value)
	}
	return tok.Value, nil
}

func (p *Parser) parseMacro(kind MacroKind) (Stmt, error) {
	name, err := p.expectAssignableIdent()
	if err != nil {
		return nil, err
	}
	endKeyword := "endmacro"
	switch kind {
	case MacroKindTest:
		name = "test_" + name
		endKeyword = "endtest"
	case MacroKindSnapshot:
		name = "snapshot_" + name
		endKeyword = "endsnapshot"
	}

	macro := &Macro{Name: name, Kind: kind}
	if kind != MacroKindSnapshot {
		if _, err := p.expect(TokenParenOpen, "`(`"); err != nil {
			return nil, err
		}
		if macro.Args, macro.Defaults, err = p.parseMacroArgsAndDefaults(); err != nil {
			return nil, err
		}
	}
	return macro, p.parseMacroBody(macro, endKeyword)
}

// parseMaterialization handles `materialization name, adapter='x'` and
// `materialization name, default` with optional supported_languages.
func (p *Parser) parseMaterialization() (Stmt, error) {
	name, err := p.expectAssignableIdent()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenComma, "`,`"); err != nil {
		return nil, err
	}

	adapter := "default"
	if !p.skipIdent("default") {
		if err := p.expectIdent("adapter"); err != nil {
			return nil, err
		}
		if _, err := p.expect(TokenAssign, "`=`"); err != nil {
			return nil, err
		}
		tok, err := p.expect(TokenString, "adapter name")
		if err != nil {
			return nil, err
		}
		adapter = tok.Value
	}
	if p.skip(TokenComma) {
		if err := p.expectIdent("supported_languages"); err != nil {
			return nil, err
		}
		if _, err := p.expect(TokenAssign, "`=`"); err != nil {
			return nil, err
		}
		if _, err := p.parseExpr(); err != nil {
			return nil, err
		}
	}

	macro := &Macro{
		Name:    fmt.Sprintf("materialization_%s_%s", name, adapter),
		Kind:    MacroKindMaterialization,
		Adapter: adapter,
	}
	return macro, p.parseMacroBody(macro, "endmaterialization")
}

func (p *Parser) parseMacroArgsAndDefaults() ([]*Var, []Expr, error) {
	var args []*Var
	var defaults []Expr
	for {
		if p.skip(TokenParenClose) {
			return args, defaults, nil
		}
		if len(args) > 0 {
			if _, err := p.expect(TokenComma, "`,`"); err != nil {
				return nil, nil, err
			}
			if p.skip(TokenParenClose) {
				return args, defaults, nil
			}
		}
		target, err := p.parseAssignName(false)
		if err != nil {
			return nil, nil, err
		}
		args = append(args, target.(*Var))

		if p.skip(TokenAssign) {
			def, err := p.parseExpr()
			if err != nil {
				return nil, nil, err
			}
			defaults = append(defaults, def)
		} else if len(defaults) > 0 {
			if _, err := p.expect(TokenAssign, "`=`"); err != nil {
				return nil, nil, err
			}
		}
	}
}

func (p *Parser) parseMacroBody(macro *Macro, endKeyword string) error {
	if _, err := p.expect(TokenBlockEnd, "end of block"); err != nil {
		return err
	}
	oldInLoop, oldInMacro := p.inLoop, p.inMacro
	p.inLoop, p.inMacro = false, true
	body, err := p.subparse(endsWith(endKeyword))
	p.inLoop, p.inMacro = oldInLoop, oldInMacro
	if err != nil {
		return err
	}
	p.next()
	macro.Body = body
	return nil
}

func (p *Parser) parseCallBlock() (Stmt, error) {
	start := p.lastSpan()
	macro := &Macro{Name: "caller"}
	if p.skip(TokenParenOpen) {
		var err error
		if macro.Args, macro.Defaults, err = p.parseMacroArgsAndDefaults(); err != nil {
			return nil, err
		}
	}
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	call, ok := expr.(*Call)
	if !ok {
		return nil, p.errorf(expr.GetSpan(), "expected call expression in call block")
	}
	if err := p.parseMacroBody(macro, "endcall"); err != nil {
		return nil, err
	}
	macro.Span = p.expandSpan(start)
	return &CallBlock{Call: call, MacroDecl: macro}, nil
}

// parseAssignName parses an assignable name, optionally with dotted
// attribute access for namespace assignment.
func (p *Parser) parseAssignName(dotted bool) (Expr, error) {
	tok, err := p.expect(TokenIdent, "identifier")
	if err != nil {
		return nil, err
	}
	if reservedNames[tok.Value] {
		return nil, p.errorf(tok.Span, "cannot assign to reserved variable name %s", tok.Value)
	}
	var result Expr = &Var{Spanned{tok.Span}, tok.Value}
	if dotted {
		for p.skip(TokenDot) {
			attr, err := p.expect(TokenIdent, "identifier")
			if err != nil {
				return nil, err
			}
			result = &GetAttr{Spanned{p.expandSpan(tok.Span)}, result, attr.Value}
		}
	}
	return result, nil
}

// parseAssignment parses a possibly unpacking assignment target.
func (p *Parser) parseAssignment() (Expr, error) {
	start := p.currentSpan()
	var items []Expr
	isTuple := false

	for {
		if len(items) > 0 {
			if !p.skip(TokenComma) {
				break
			}
			isTuple = true
		}
		if p.matches(TokenParenClose) || p.matches(TokenVariableEnd) || p.matches(TokenBlockEnd) || p.matchesIdent("in") {
			break
		}
		var item Expr
		var err error
		if p.skip(TokenParenOpen) {
			if item, err = p.parseAssignment(); err != nil {
				return nil, err
			}
			if _, err := p.expect(TokenParenClose, "`)`"); err != nil {
				return nil, err
			}
		} else if item, err = p.parseAssignName(false); err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	if len(items) == 0 {
		return nil, p.errorf(start, "expected assignment target")
	}
	if !isTuple && len(items) == 1 {
		return items[0], nil
	}
	return &List{Spanned{p.expandSpan(start)}, items}, nil
}

func (p *Parser) parseExprOrImpliedTuple() (Expr, error) {
	start := p.currentSpan()
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if !p.matches(TokenComma) {
		return expr, nil
	}
	items := []Expr{expr}
	for p.skip(TokenComma) {
		if p.matches(TokenVariableEnd) || p.matches(TokenBlockEnd) {
			break
		}
		item, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return &Tuple{Spanned{p.expandSpan(start)}, items}, nil
}

func (p *Parser) parseExpr() (Expr, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()
	return p.parseIfExpr()
}

func (p *Parser) parseExprNoIf() (Expr, error) {
	return p.parseOr()
}

func (p *Parser) parseIfExpr() (Expr, error) {
	start := p.currentSpan()
	expr, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	for p.skipIdent("if") {
		test, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		var falseExpr Expr
		if p.skipIdent("else") {
			if falseExpr, err = p.parseIfExpr(); err != nil {
				return nil, err
			}
		}
		expr = &IfExpr{Spanned{p.expandSpan(start)}, test, expr, falseExpr}
	}
	return expr, nil
}

// binaryLevel parses a left associative chain of operators resolved by
// opFor, with operands parsed by next.
func (p *Parser) binaryLevel(next func() (Expr, error), opFor func(Token) (BinOpKind, bool)) (Expr, error) {
	start := p.currentSpan()
	left, err := next()
	if err != nil {
		return nil, err
	}
	for {
		tok, ok := p.current()
		if !ok {
			return left, nil
		}
		op, found := opFor(tok)
		if !found {
			return left, nil
		}
		p.next()
		right, err := next()
		if err != nil {
			return nil, err
		}
		left = &BinOp{Spanned{p.expandSpan(start)}, op, left, right}
	}
}

func identOp(name string, op BinOpKind) func(Token) (BinOpKind, bool) {
	return func(tok Token) (BinOpKind, bool) {
		return op, tok.IsIdent(name)
	}
}

func tokenOps(ops map[TokenKind]BinOpKind) func(Token) (BinOpKind, bool) {
	return func(tok Token) (BinOpKind, bool) {
		op, found := ops[tok.Kind]
		return op, found
	}
}

func (p *Parser) parseOr() (Expr, error) {
	return p.binaryLevel(p.parseAnd, identOp("or", BinOpScOr))
}

func (p *Parser) parseAnd() (Expr, error) {
	return p.binaryLevel(p.parseNot, identOp("and", BinOpScAnd))
}

func (p *Parser) parseNot() (Expr, error) {
	start := p.currentSpan()
	if p.skipIdent("not") {
		expr, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &UnaryOp{Spanned{p.expandSpan(start)}, UnaryNot, expr}, nil
	}
	return p.parseCompare()
}

var compareOps = map[TokenKind]BinOpKind{
	TokenEq:  BinOpEq,
	TokenNe:  BinOpNe,
	TokenLt:  BinOpLt,
	TokenLte: BinOpLte,
	TokenGt:  BinOpGt,
	TokenGte: BinOpGte,
}

func (p *Parser) parseCompare() (Expr, error) {
	start := p.currentSpan()
	expr, err := p.parseMath1()
	if err != nil {
		return nil, err
	}
	for {
		tok, ok := p.current()
		if !ok {
			return expr, nil
		}
		negated := false
		var op BinOpKind
		switch {
		case tok.IsIdent("not") && p.pos+1 < len(p.tokens) && p.tokens[p.pos+1].IsIdent("in"):
			p.pos += 2
			op, negated = BinOpIn, true
		case tok.IsIdent("in"):
			p.next()
			op = BinOpIn
		default:
			found := false
			if op, found = compareOps[tok.Kind]; !found {
				return expr, nil
			}
			p.next()
		}
		right, err := p.parseMath1()
		if err != nil {
			return nil, err
		}
		expr = &BinOp{Spanned{p.expandSpan(start)}, op, expr, right}
		if negated {
			expr = &UnaryOp{Spanned{p.expandSpan(start)}, UnaryNot, expr}
		}
	}
}

func (p *Parser) parseMath1() (Expr, error) {
	return p.binaryLevel(p.parseConcat, tokenOps(map[TokenKind]BinOpKind{
		TokenPlus: BinOpAdd, TokenMinus: BinOpSub,
	}))
}

func (p *Parser) parseConcat() (Expr, error) {
	return p.binaryLevel(p.parseMath2, tokenOps(map[TokenKind]BinOpKind{
		TokenTilde: BinOpConcat,
	}))
}

func (p *Parser) parseMath2() (Expr, error) {
	return p.binaryLevel(p.parsePow, tokenOps(map[TokenKind]BinOpKind{
		TokenMul: BinOpMul, TokenDiv: BinOpDiv, TokenFloorDiv: BinOpFloorDiv, TokenMod: BinOpRem,
	}))
}

func (p *Parser) parsePow() (Expr, error) {
	return p.binaryLevel(p.parseUnary, tokenOps(map[TokenKind]BinOpKind{
		TokenPow: BinOpPow,
	}))
}

func (p *Parser) parseUnary() (Expr, error) {
	start := p.currentSpan()
	expr, err := p.parseUnaryOnly()
	if err != nil {
		return nil, err
	}
	if expr, err = p.parsePostfix(expr, start); err != nil {
		return nil, err
	}
	return p.parseFilterExpr(expr)
}

func (p *Parser) parseUnaryOnly() (Expr, error) {
	start := p.currentSpan()
	if p.skip(TokenMinus) {
		expr, err := p.parseUnaryOnly()
		if err != nil {
			return nil, err
		}
		if expr, err = p.parsePostfix(expr, start); err != nil {
			return nil, err
		}
		return &UnaryOp{Spanned{p.expandSpan(start)}, UnaryNeg, expr}, nil
	}
	if p.skip(TokenPlus) {
		return p.parseUnaryOnly()
	}
	return p.parsePrimary()
}

func (p *Parser) parsePostfix(expr Expr, start filepos.Span) (Expr, error) {
	for {
		tok, ok := p.current()
		if !ok {
			return expr, nil
		}
		switch tok.Kind {
		case TokenDot:
			p.next()
			attr, ok := p.next()
			if !ok {
				return nil, p.unexpectedEOF("identifier or integer")
			}
			switch attr.Kind {
			case TokenIdent:
				expr = &GetAttr{Spanned{p.expandSpan(start)}, expr, attr.Value}
			case TokenInt:
				idx, err := p.intConst(attr)
				if err != nil {
					return nil, err
				}
				expr = &GetItem{Spanned{p.expandSpan(start)}, expr, idx}
			default:
				return nil, p.unexpected(attr, "identifier or integer")
			}

		case TokenBracketOpen:
			p.next()
			subscript, err := p.parseSubscript(expr, start)
			if err != nil {
				return nil, err
			}
			expr = subscript

		case TokenParenOpen:
			args, err := p.parseArgs()
			if err != nil {
				return nil, err
			}
			expr = &Call{Spanned{p.expandSpan(start)}, expr, args}

		default:
			return expr, nil
		}
	}
}

func (p *Parser) parseSubscript(expr Expr, start filepos.Span) (Expr, error) {
	var first, stop, step Expr
	var items []Expr
	var err error
	isSlice, isTuple := false, false

	if !p.matches(TokenColon) {
		if first, err = p.parseExpr(); err != nil {
			return nil, err
		}
	}
	if p.skip(TokenColon) {
		isSlice = true
		if !p.matches(TokenBracketClose) && !p.matches(TokenColon) {
			if stop, err = p.parseExpr(); err != nil {
				return nil, err
			}
		}
		if p.skip(TokenColon) && !p.matches(TokenBracketClose) {
			if step, err = p.parseExpr(); err != nil {
				return nil, err
			}
		}
	} else if p.skip(TokenComma) {
		isTuple = true
		for !p.matches(TokenBracketClose) {
			item, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			items = append(items, item)
			if !p.skip(TokenComma) {
				break
			}
		}
	}

	if _, err := p.expect(TokenBracketClose, "`]`"); err != nil {
		return nil, err
	}

	span := p.expandSpan(start)
	switch {
	case isSlice:
		return &Slice{Spanned{span}, expr, first, stop, step}, nil
	case isTuple:
		return &GetItem{Spanned{span}, expr, &List{Spanned{span}, append([]Expr{first}, items...)}}, nil
	case first == nil:
		return nil, p.errorf(span, "empty subscript")
	default:
		return &GetItem{Spanned{span}, expr, first}, nil
	}
}

func (p *Parser) parseFilterExpr(expr Expr) (Expr, error) {
	for {
		switch {
		case p.matches(TokenPipe):
			p.next()
			nameTok, err := p.expect(TokenIdent, "identifier")
			if err != nil {
				return nil, err
			}
			var args []CallArg
			if p.matches(TokenParenOpen) {
				if args, err = p.parseArgs(); err != nil {
					return nil, err
				}
			}
			expr = &Filter{Spanned{p.expandSpan(nameTok.Span)}, nameTok.Value, expr, args}

		case p.matchesIdent("is"):
			p.next()
			negated := p.skipIdent("not")
			nameTok, err := p.expect(TokenIdent, "identifier")
			if err != nil {
				return nil, err
			}
			var args []CallArg
			if p.matches(TokenParenOpen) {
				if args, err = p.parseArgs(); err != nil {
					return nil, err
				}
			} else if p.startsBareTestArg() {
				argStart := p.currentSpan()
				arg, err := p.parseUnaryOnly()
				if err != nil {
					return nil, err
				}
				if arg, err = p.parsePostfix(arg, argStart); err != nil {
					return nil, err
				}
				args = []CallArg{{Kind: CallArgPos, Value: arg}}
			}
			expr = &Test{Spanned{p.expandSpan(nameTok.Span)}, nameTok.Value, expr, args}
			if negated {
				expr = &UnaryOp{Spanned{p.expandSpan(nameTok.Span)}, UnaryNot, expr}
			}

		default:
			return expr, nil
		}
	}
}

// startsBareTestArg reports whether the current token begins a single test
// argument given without parentheses as in `x is divisibleby 3`.
func (p *Parser) startsBareTestArg() bool {
	tok, ok := p.current()
	if !ok {
		return false
	}
	switch tok.Kind {
	case TokenIdent:
		return !p.matchesIdent("and", "or", "else", "is", "if")
	case TokenString, TokenInt, TokenFloat, TokenPlus, TokenMinus, TokenBracketOpen, TokenBraceOpen:
		return true
	}
	return false
}

func (p *Parser) parseArgs() ([]CallArg, error) {
	if _, err := p.expect(TokenParenOpen, "`(`"); err != nil {
		return nil, err
	}
	var args []CallArg
	hasKwargs := false

	for {
		if p.skip(TokenParenClose) {
			return args, nil
		}
		if len(args) > 0 {
			if _, err := p.expect(TokenComma, "`,`"); err != nil {
				return nil, err
			}
			if p.skip(TokenParenClose) {
				return args, nil
			}
		}

		switch {
		case p.skip(TokenPow):
			expr, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			args = append(args, CallArg{Kind: CallArgKwargSplat, Value: expr})
			hasKwargs = true

		case p.skip(TokenMul):
			expr, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			args = append(args, CallArg{Kind: CallArgPosSplat, Value: expr})

		default:
			expr, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if v, isVar := expr.(*Var); isVar && p.skip(TokenAssign) {
				kwValue, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				args = append(args, CallArg{Kind: CallArgKwarg, Name: v.ID, Value: kwValue})
				hasKwargs = true
			} else if hasKwargs {
				return nil, p.errorf(expr.GetSpan(), "non-keyword arg after keyword arg")
			} else {
				args = append(args, CallArg{Kind: CallArgPos, Value: expr})
			}
		}

		if len(args) > maxCallArgs {
			return nil, p.errorf(p.lastSpan(), "too many arguments in function call")
		}
	}
}

func (p *Parser) parsePrimary() (Expr, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	tok, ok := p.next()
	if !ok {
		return nil, p.unexpectedEOF("expression")
	}

	switch tok.Kind {
	case TokenIdent:
		switch tok.Value {
		case "true", "True":
			return &Const{Spanned{tok.Span}, value.True}, nil
		case "false", "False":
			return &Const{Spanned{tok.Span}, value.False}, nil
		case "none", "None":
			return &Const{Spanned{tok.Span}, value.None}, nil
		}
		return &Var{Spanned{tok.Span}, tok.Value}, nil

	case TokenString:
		// adjacent string literals are concatenated
		s := tok.Value
		for p.matches(TokenString) {
			next, _ := p.next()
			s += next.Value
		}
		return &Const{Spanned{p.expandSpan(tok.Span)}, value.FromString(s)}, nil

	case TokenInt:
		return p.intConst(tok)

	case TokenFloat:
		f, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil {
			return nil, p.errorf(tok.Span, "invalid float literal %s", tok.Value)
		}
		return &Const{Spanned{tok.Span}, value.FromFloat(f)}, nil

	case TokenParenOpen:
		return p.parseTupleOrExpr(tok.Span)

	case TokenBracketOpen:
		items, err := p.parseItems(TokenBracketClose, "`]`")
		if err != nil {
			return nil, err
		}
		return &List{Spanned{p.expandSpan(tok.Span)}, items}, nil

	case TokenBraceOpen:
		return p.parseMap(tok.Span)
	}
	return nil, p.unexpected(tok, "expression")
}

func (p *Parser) intConst(tok Token) (*Const, error) {
	if i, err := strconv.ParseInt(tok.Value, 10, 64); err == nil {
		return &Const{Spanned{tok.Span}, value.FromInt(i)}, nil
	}
	b, ok := new(big.Int).SetString(tok.Value, 10)
	if !ok {
		return nil, p.errorf(tok.Span, "invalid integer literal %s", tok.Value)
	}
	v, err := value.FromBigInt(b)
	if err != nil {
		return nil, p.errorf(tok.Span, "integer literal %s is too large", tok.Value)
	}
	return &Const{Spanned{tok.Span}, v}, nil
}

func (p *Parser) parseTupleOrExpr(start filepos.Span) (Expr, error) {
	if p.skip(TokenParenClose) {
		return &Tuple{Spanned{p.expandSpan(start)}, nil}, nil
	}
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if !p.matches(TokenComma) {
		if _, err := p.expect(TokenParenClose, "`)`"); err != nil {
			return nil, err
		}
		return expr, nil
	}
	items := []Expr{expr}
	for p.skip(TokenComma) {
		if p.matches(TokenParenClose) {
			break
		}
		item, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if _, err := p.expect(TokenParenClose, "`)`"); err != nil {
		return nil, err
	}
	return &Tuple{Spanned{p.expandSpan(start)}, items}, nil
}

func (p *Parser) parseItems(closing TokenKind, desc string) ([]Expr, error) {
	var items []Expr
	for {
		if p.skip(closing) {
			return items, nil
		}
		if len(items) > 0 {
			if _, err := p.expect(TokenComma, "`,`"); err != nil {
				return nil, err
			}
			if p.skip(closing) {
				return items, nil
			}
		}
		item, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
}

func (p *Parser) parseMap(start filepos.Span) (Expr, error) {
	m := &Map{}
	for {
		if p.skip(TokenBraceClose) {
			break
		}
		if len(m.Keys) > 0 {
			if _, err := p.expect(TokenComma, "`,`"); err != nil {
				return nil, err
			}
			if p.skip(TokenBraceClose) {
				break
			}
		}
		key, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokenColon, "`:`"); err != nil {
			return nil, err
		}
		val, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		m.Keys = append(m.Keys, key)
		m.Values = append(m.Values, val)
	}
	m.Span = p.expandSpan(start)
	return m, nil
}
