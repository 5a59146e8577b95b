// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package typecheck

import (
	"fmt"
	"strings"
	"unicode"
)

// ParseError is a malformed type or funcsign expression.
type ParseError struct {
	Msg  string
	Line int
	Col  int
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("Parse error at line %d, column %d: %s", e.Line, e.Col, e.Msg)
}

type sigTokenKind int

const (
	sigEOF sigTokenKind = iota
	sigIdent
	sigPunct
)

type sigToken struct {
	kind sigTokenKind
	text string
	line int
	col  int
}

func tokenizeSig(src string) []sigToken {
	var tokens []sigToken
	line, col := 1, 1
	runes := []rune(src)

	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case r == '\n':
			line++
			col = 1
			i++
		case unicode.IsSpace(r):
			col++
			i++
		case r == '-' && i+1 < len(runes) && runes[i+1] == '>':
			tokens = append(tokens, sigToken{sigPunct, "->", line, col})
			col += 2
			i += 2
		case r == '.' && i+2 < len(runes) && runes[i+1] == '.' && runes[i+2] == '.':
			tokens = append(tokens, sigToken{sigPunct, "...", line, col})
			col += 3
			i += 3
		case strings.ContainsRune("()[]{},:|", r):
			tokens = append(tokens, sigToken{sigPunct, string(r), line, col})
			col++
			i++
		default:
			start, startCol := i, col
			for i < len(runes) && (unicode.IsLetter(runes[i]) || unicode.IsDigit(runes[i]) || runes[i] == '_' || runes[i] == '.' && !(i+1 < len(runes) && runes[i+1] == '.')) {
				i++
				col++
			}
			if i == start {
				// unknown character becomes its own token and fails in the parser
				i++
				col++
			}
			tokens = append(tokens, sigToken{sigIdent, string(runes[start:i]), line, startCol})
		}
	}
	return append(tokens, sigToken{sigEOF, "", line, col})
}

type sigParser struct {
	tokens []sigToken
	pos    int
	reg    *Registry
}

// ParseSignature parses a funcsign such as `(string, list[relation]) -> bool`.
// Parameters may be named (`name: type`); a trailing `...` accepts any
// extra arguments. reg resolves catalog type names and may be nil.
func ParseSignature(src string, reg *Registry) (*Signature, error) {
	p := &sigParser{tokens: tokenizeSig(src), reg: reg}
	if p.peek().kind == sigEOF {
		return nil, p.errorf("Expected opening parenthesis")
	}
	sig, err := p.signature()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != sigEOF {
		return nil, p.errorf("Unexpected token '%s' after return type", p.peek().text)
	}
	return sig, nil
}

// ParseType parses a single type expression.
func ParseType(src string, reg *Registry) (Type, error) {
	p := &sigParser{tokens: tokenizeSig(src), reg: reg}
	t, err := p.typeExpr()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != sigEOF {
		return nil, p.errorf("Unexpected token '%s'", p.peek().text)
	}
	return t, nil
}

func mustParseSignature(name, src string) *Signature {
	sig, err := ParseSignature(src, nil)
	if err != nil {
		panic(fmt.Sprintf("[BUG] builtin signature %s '%s': %s", name, src, err))
	}
	sig.FnName = name
	return sig
}

func (p *sigParser) peek() sigToken { return p.tokens[p.pos] }

func (p *sigParser) peekAt(offset int) sigToken {
	if p.pos+offset < len(p.tokens) {
		return p.tokens[p.pos+offset]
	}
	return p.tokens[len(p.tokens)-1]
}

func (p *sigParser) next() sigToken {
	tok := p.tokens[p.pos]
	if tok.kind != sigEOF {
		p.pos++
	}
	return tok
}

func (p *sigParser) isPunct(text string) bool {
	tok := p.peek()
	return tok.kind == sigPunct && tok.text == text
}

func (p *sigParser) expect(text, msg string) error {
	if !p.isPunct(text) {
		return p.errorf("%s", msg)
	}
	p.next()
	return nil
}

func (p *sigParser) errorf(format string, args ...interface{}) error {
	tok := p.peek()
	msg := fmt.Sprintf(format, args...)
	if tok.kind == sigEOF && !strings.HasPrefix(msg, "Expected opening") {
		msg = "Unexpected end of input: " + msg
	}
	return &ParseError{Msg: msg, Line: tok.line, Col: tok.col}
}

func (p *sigParser) signature() (*Signature, error) {
	if err := p.expect("(", "Expected opening parenthesis"); err != nil {
		return nil, err
	}
	sig := &Signature{}

	for !p.isPunct(")") {
		if len(sig.Args) > 0 || sig.Variadic {
			if err := p.expect(",", "Expected ',' or ')' in parameter list"); err != nil {
				return nil, err
			}
		}
		if sig.Variadic {
			return nil, p.errorf("Expected '...' to be the last parameter")
		}
		if p.isPunct("...") {
			p.next()
			sig.Variadic = true
			continue
		}

		var arg Argument
		if tok := p.peek(); tok.kind == sigIdent && p.peekAt(1).kind == sigPunct && p.peekAt(1).text == ":" {
			arg.Name = tok.text
			p.next()
			p.next()
		}
		t, err := p.typeExpr()
		if err != nil {
			return nil, err
		}
		arg.Type = t
		if u, ok := t.(Union); ok {
			for _, m := range u.members {
				if _, isNone := m.(None); isNone {
					arg.Optional = true
				}
			}
		}
		if arg.Name == "" {
			arg.Name = fmt.Sprintf("arg%d", len(sig.Args))
		}
		sig.Args = append(sig.Args, arg)
	}
	p.next()

	if err := p.expect("->", "Expected '->' before return type"); err != nil {
		return nil, err
	}
	ret, err := p.typeExpr()
	if err != nil {
		return nil, err
	}
	sig.Ret = ret
	return sig, nil
}

func (p *sigParser) typeExpr() (Type, error) {
	first, err := p.primary()
	if err != nil {
		return nil, err
	}
	if !p.isPunct("|") {
		return first, nil
	}
	members := []Type{first}
	for p.isPunct("|") {
		p.next()
		t, err := p.primary()
		if err != nil {
			return nil, err
		}
		members = append(members, t)
	}
	return UnionOf(members...), nil
}

func (p *sigParser) primary() (Type, error) {
	if p.isPunct("(") {
		sig, err := p.signature()
		if err != nil {
			return nil, err
		}
		return Function{sig}, nil
	}

	tok := p.peek()
	if tok.kind != sigIdent {
		if tok.kind == sigEOF {
			return nil, p.errorf("Expected type")
		}
		return nil, p.errorf("Unexpected token '%s'", tok.text)
	}
	p.next()

	switch tok.text {
	case "string", "str":
		return String{}, nil
	case "integer", "int":
		return Integer{}, nil
	case "float":
		return Float{}, nil
	case "bool":
		return Bool{}, nil
	case "bytes":
		return Bytes{}, nil
	case "timestamp":
		return Timestamp{}, nil
	case "none":
		return None{}, nil
	case "undefined":
		return Undefined{}, nil
	case "exception":
		return Exception{}, nil
	case "any":
		return HardAny, nil

	case "list", "seq":
		params, err := p.params(tok.text, 1)
		if err != nil {
			return nil, err
		}
		return List{params[0]}, nil
	case "iterable":
		params, err := p.params(tok.text, 1)
		if err != nil {
			return nil, err
		}
		return Iterable{params[0]}, nil
	case "dict":
		params, err := p.params(tok.text, 2)
		if err != nil {
			return nil, err
		}
		return Dict{params[0], params[1]}, nil
	case "optional":
		params, err := p.params(tok.text, 1)
		if err != nil {
			return nil, err
		}
		return Optional(params[0]), nil
	case "tuple":
		params, err := p.params(tok.text, -1)
		if err != nil {
			return nil, err
		}
		return Tuple{params}, nil
	case "struct":
		fields, err := p.fields()
		if err != nil {
			return nil, err
		}
		return Struct{fields}, nil
	}

	if class, found := LookupClass(tok.text); found {
		return class, nil
	}
	if p.reg != nil {
		if t, found := p.reg.Lookup(tok.text); found {
			return t, nil
		}
	}
	p.pos--
	return nil, p.errorf("Unknown type: %s", tok.text)
}

// params parses `[T, ...]`; count < 0 accepts any number.
func (p *sigParser) params(name string, count int) ([]Type, error) {
	if err := p.expect("[", fmt.Sprintf("Expected '[' after %s", name)); err != nil {
		return nil, err
	}
	var result []Type
	for !p.isPunct("]") {
		if len(result) > 0 {
			if err := p.expect(",", "Expected ',' or ']' in parameter list"); err != nil {
				return nil, err
			}
		}
		t, err := p.typeExpr()
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	p.next()
	if count >= 0 && len(result) != count {
		return nil, p.errorf("Expected %d parameter(s) for %s type, got %d", count, name, len(result))
	}
	return result, nil
}

func (p *sigParser) fields() (map[string]Type, error) {
	if err := p.expect("{", "Expected open brace for struct type"); err != nil {
		return nil, err
	}
	fields := map[string]Type{}
	for !p.isPunct("}") {
		if len(fields) > 0 {
			if err := p.expect(",", "Expected ',' or '}' in field list"); err != nil {
				return nil, err
			}
		}
		tok := p.peek()
		if tok.kind != sigIdent {
			return nil, p.errorf("Expected field name")
		}
		p.next()
		if err := p.expect(":", "Expected ':' after field name"); err != nil {
			return nil, err
		}
		t, err := p.typeExpr()
		if err != nil {
			return nil, err
		}
		fields[tok.text] = t
	}
	p.next()
	return fields, nil
}
