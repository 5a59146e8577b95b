// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package texttemplate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"carvel.dev/jtt/pkg/filepos"
)

// LexOptions configure tokenization.
type LexOptions struct {
	// KeepTrailingNewline keeps a single newline at the end of the source.
	// By default it is removed.
	KeepTrailingNewline bool
}

var (
	rawEndRegexp = regexp.MustCompile(`\{%([-+]?)\s*endraw\s*(-?)%\}`)
	rawOpenRegex = regexp.MustCompile(`^\s*raw\s*(-?)%\}`)
)

type lexer struct {
	src  string
	pos  int
	line int
	col  int

	tokens []Token

	// set by a closing `-%}` so that the next template data is left-trimmed
	trimNext bool
	// brace nesting inside of a variable block, so that `}}` in `{{ {'a': {}} }}`
	// is not mistaken for the closing delimiter
	braceDepth int
}

// Tokenize splits template source into tokens.
func Tokenize(src string, opts LexOptions) ([]Token, error) {
	if !opts.KeepTrailingNewline {
		if strings.HasSuffix(src, "\r\n") {
			src = src[:len(src)-2]
		} else {
			src = strings.TrimSuffix(src, "\n")
		}
	}

	l := &lexer{src: src, line: 1, col: 1}
	for l.pos < len(l.src) {
		if err := l.lexTemplateData(); err != nil {
			return nil, err
		}
	}
	return l.tokens, nil
}

func (l *lexer) rest() string { return l.src[l.pos:] }

func (l *lexer) location() (int, int, int) { return l.line, l.col, l.pos }

// advance moves n bytes forward tracking lines and columns.
func (l *lexer) advance(n int) {
	for _, r := range l.src[l.pos : l.pos+n] {
		if r == '\n' {
			l.line++
			l.col = 1
		} else {
			l.col++
		}
	}
	l.pos += n
}

func (l *lexer) spanFrom(line, col, offset int) filepos.Span {
	return filepos.Span{
		StartLine: line, StartCol: col, StartOffset: offset,
		EndLine: l.line, EndCol: l.col, EndOffset: l.pos,
	}
}

func (l *lexer) errorf(format string, args ...interface{}) error {
	return &SyntaxError{
		Msg:  fmt.Sprintf(format, args...),
		Span: filepos.Span{StartLine: l.line, StartCol: l.col, StartOffset: l.pos, EndLine: l.line, EndCol: l.col + 1, EndOffset: l.pos},
	}
}

func (l *lexer) emit(kind TokenKind, value string, line, col, offset int) {
	l.tokens = append(l.tokens, Token{Kind: kind, Value: value, Span: l.spanFrom(line, col, offset)})
}

func (l *lexer) lexTemplateData() error {
	if l.trimNext {
		l.advance(len(l.rest()) - len(strings.TrimLeftFunc(l.rest(), unicode.IsSpace)))
		l.trimNext = false
	}

	idx := findTagStart(l.rest())
	if idx < 0 {
		idx = len(l.rest())
	}
	data := l.rest()[:idx]
	marker := tagMarkerAt(l.rest(), idx)
	if marker.trimPreceding {
		data = strings.TrimRightFunc(data, unicode.IsSpace)
	}

	line, col, offset := l.location()
	if len(data) > 0 {
		l.advance(len(data))
		l.emit(TokenTemplateData, data, line, col, offset)
	}
	// skip over whitespace dropped by the marker
	l.advance(idx - len(data))

	if l.pos >= len(l.src) {
		return nil
	}

	switch l.rest()[:2] {
	case "{#":
		return l.lexComment()
	case "{{":
		return l.lexTag(TokenVariableStart, TokenVariableEnd, "}}")
	default:
		if m := rawOpenRegex.FindStringSubmatch(l.rest()[2+marker.len:]); m != nil {
			return l.lexRaw(marker, m)
		}
		return l.lexTag(TokenBlockStart, TokenBlockEnd, "%}")
	}
}

func findTagStart(s string) int {
	offset := 0
	for {
		idx := strings.IndexByte(s[offset:], '{')
		if idx < 0 || offset+idx+1 >= len(s) {
			return -1
		}
		switch s[offset+idx+1] {
		case '{', '%', '#':
			return offset + idx
		}
		offset += idx + 1
	}
}

func (l *lexer) lexComment() error {
	end := strings.Index(l.rest(), "#}")
	if end < 0 {
		return l.errorf("unexpected end of comment")
	}
	l.trimNext = end > 0 && l.rest()[end-1] == '-'
	l.advance(end + 2)
	return nil
}

func (l *lexer) lexRaw(marker tagMarker, openMatch []string) error {
	l.advance(2 + marker.len + len(openMatch[0]))

	base := l.pos
	loc := rawEndRegexp.FindStringSubmatchIndex(l.rest())
	if loc == nil {
		return l.errorf("unexpected end of raw block")
	}
	endStart, endEnd := base+loc[0], base+loc[1]
	trimContentEnd := loc[3] > loc[2]
	trimAfter := loc[5] > loc[4]

	if openMatch[1] == "-" {
		content := l.src[l.pos:endStart]
		l.advance(len(content) - len(strings.TrimLeftFunc(content, unicode.IsSpace)))
	}
	data := l.src[l.pos:endStart]
	if trimContentEnd {
		data = strings.TrimRightFunc(data, unicode.IsSpace)
	}

	line, col, offset := l.location()
	if len(data) > 0 {
		l.advance(len(data))
		l.emit(TokenTemplateData, data, line, col, offset)
	}
	l.advance(endEnd - l.pos)
	l.trimNext = trimAfter
	return nil
}

func (l *lexer) lexTag(startKind, endKind TokenKind, closing string) error {
	line, col, offset := l.location()
	l.advance(2)
	if len(l.rest()) > 0 && (l.rest()[0] == '-' || l.rest()[0] == '+') {
		l.advance(1)
	}
	l.emit(startKind, "", line, col, offset)
	l.braceDepth = 0

	for {
		l.advance(len(l.rest()) - len(strings.TrimLeftFunc(l.rest(), unicode.IsSpace)))
		if l.pos >= len(l.src) {
			return l.errorf("unexpected end of input, expected %s", endKind)
		}

		rest := l.rest()
		if l.braceDepth == 0 || closing == "%}" {
			if strings.HasPrefix(rest, "-"+closing) || strings.HasPrefix(rest, "+"+closing) {
				line, col, offset := l.location()
				l.trimNext = rest[0] == '-'
				l.advance(3)
				l.emit(endKind, "", line, col, offset)
				return nil
			}
			if strings.HasPrefix(rest, closing) {
				line, col, offset := l.location()
				l.advance(2)
				l.emit(endKind, "", line, col, offset)
				return nil
			}
		}

		if err := l.lexExprToken(); err != nil {
			return err
		}
	}
}

var twoCharOps = map[string]TokenKind{
	"//": TokenFloorDiv,
	"**": TokenPow,
	"==": TokenEq,
	"!=": TokenNe,
	">=": TokenGte,
	"<=": TokenLte,
}

var oneCharOps = map[byte]TokenKind{
	'+': TokenPlus,
	'-': TokenMinus,
	'*': TokenMul,
	'/': TokenDiv,
	'%': TokenMod,
	'.': TokenDot,
	',': TokenComma,
	':': TokenColon,
	'~': TokenTilde,
	'=': TokenAssign,
	'|': TokenPipe,
	'>': TokenGt,
	'<': TokenLt,
	'[': TokenBracketOpen,
	']': TokenBracketClose,
	'(': TokenParenOpen,
	')': TokenParenClose,
	'{': TokenBraceOpen,
	'}': TokenBraceClose,
}

func (l *lexer) lexExprToken() error {
	rest := l.rest()
	line, col, offset := l.location()
	c := rest[0]

	switch {
	case c == '"' || c == '\'':
		s, n, err := unquoteString(rest)
		if err != nil {
			return l.errorf("%s", err)
		}
		l.advance(n)
		l.emit(TokenString, s, line, col, offset)
		return nil

	case c >= '0' && c <= '9':
		kind, text, n := scanNumber(rest)
		l.advance(n)
		l.emit(kind, text, line, col, offset)
		return nil

	case c == '_' || isIdentStart(rest):
		n := scanIdent(rest)
		l.advance(n)
		l.emit(TokenIdent, rest[:n], line, col, offset)
		return nil
	}

	if len(rest) >= 2 {
		if kind, found := twoCharOps[rest[:2]]; found {
			l.advance(2)
			l.emit(kind, "", line, col, offset)
			return nil
		}
	}
	if kind, found := oneCharOps[c]; found {
		switch kind {
		case TokenBraceOpen:
			l.braceDepth++
		case TokenBraceClose:
			l.braceDepth--
		}
		l.advance(1)
		l.emit(kind, "", line, col, offset)
		return nil
	}
	return l.errorf("unexpected character '%c'", c)
}

func isIdentStart(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsLetter(r)
}

func scanIdent(s string) int {
	for i, r := range s {
		if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return i
		}
	}
	return len(s)
}

func scanNumber(s string) (TokenKind, string, int) {
	kind := TokenInt
	i := 0
	digits := func() {
		for i < len(s) && (s[i] >= '0' && s[i] <= '9' || s[i] == '_') {
			i++
		}
	}
	digits()
	if i+1 < len(s) && s[i] == '.' && s[i+1] >= '0' && s[i+1] <= '9' {
		kind = TokenFloat
		i++
		digits()
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		if j < len(s) && s[j] >= '0' && s[j] <= '9' {
			kind = TokenFloat
			i = j
			digits()
		}
	}
	return kind, strings.ReplaceAll(s[:i], "_", ""), i
}

// unquoteString decodes a quoted string literal at the start of s and
// returns the decoded value and the number of consumed bytes.
func unquoteString(s string) (string, int, error) {
	quote := s[0]
	var sb strings.Builder
	for i := 1; i < len(s); i++ {
		c := s[i]
		switch {
		case c == quote:
			return sb.String(), i + 1, nil
		case c == '\\' && i+1 < len(s):
			i++
			switch s[i] {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			case 'b':
				sb.WriteByte('\b')
			case 'f':
				sb.WriteByte('\f')
			case '\\', '"', '\'', '/':
				sb.WriteByte(s[i])
			case 'u':
				if i+4 >= len(s) {
					return "", 0, fmt.Errorf("invalid unicode escape")
				}
				code, err := strconv.ParseUint(s[i+1:i+5], 16, 32)
				if err != nil {
					return "", 0, fmt.Errorf("invalid unicode escape")
				}
				sb.WriteRune(rune(code))
				i += 4
			default:
				sb.WriteByte('\\')
				sb.WriteByte(s[i])
			}
		default:
			sb.WriteByte(c)
		}
	}
	return "", 0, fmt.Errorf("unexpected end of string")
}
