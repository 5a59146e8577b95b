// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package texttemplate

import (
	"fmt"

	"carvel.dev/jtt/pkg/filepos"
)

type TokenKind int

const (
	TokenTemplateData TokenKind = iota
	TokenVariableStart
	TokenVariableEnd
	TokenBlockStart
	TokenBlockEnd
	TokenIdent
	TokenString
	TokenInt
	TokenFloat
	TokenPlus
	TokenMinus
	TokenMul
	TokenDiv
	TokenFloorDiv
	TokenPow
	TokenMod
	TokenDot
	TokenComma
	TokenColon
	TokenTilde
	TokenAssign
	TokenPipe
	TokenEq
	TokenNe
	TokenGt
	TokenGte
	TokenLt
	TokenLte
	TokenBracketOpen
	TokenBracketClose
	TokenParenOpen
	TokenParenClose
	TokenBraceOpen
	TokenBraceClose
)

var tokenDescriptions = map[TokenKind]string{
	TokenTemplateData:  "template-data",
	TokenVariableStart: "start of variable block",
	TokenVariableEnd:   "end of variable block",
	TokenBlockStart:    "start of block",
	TokenBlockEnd:      "end of block",
	TokenIdent:         "identifier",
	TokenString:        "string",
	TokenInt:           "integer",
	TokenFloat:         "float",
	TokenPlus:          "`+`",
	TokenMinus:         "`-`",
	TokenMul:           "`*`",
	TokenDiv:           "`/`",
	TokenFloorDiv:      "`//`",
	TokenPow:           "`**`",
	TokenMod:           "`%`",
	TokenDot:           "`.`",
	TokenComma:         "`,`",
	TokenColon:         "`:`",
	TokenTilde:         "`~`",
	TokenAssign:        "`=`",
	TokenPipe:          "`|`",
	TokenEq:            "`==`",
	TokenNe:            "`!=`",
	TokenGt:            "`>`",
	TokenGte:           "`>=`",
	TokenLt:            "`<`",
	TokenLte:           "`<=`",
	TokenBracketOpen:   "`[`",
	TokenBracketClose:  "`]`",
	TokenParenOpen:     "`(`",
	TokenParenClose:    "`)`",
	TokenBraceOpen:     "`{`",
	TokenBraceClose:    "`}`",
}

func (k TokenKind) String() string {
	if desc, found := tokenDescriptions[k]; found {
		return desc
	}
	return fmt.Sprintf("token(%d)", int(k))
}

// Token is one lexical unit. Value holds the text of identifiers, decoded
// strings, numbers and template data.
type Token struct {
	Kind  TokenKind
	Value string
	Span  filepos.Span
}

func (t Token) String() string {
	switch t.Kind {
	case TokenIdent:
		return fmt.Sprintf("`%s`", t.Value)
	case TokenString:
		return "string"
	case TokenInt, TokenFloat:
		return fmt.Sprintf("%s `%s`", t.Kind, t.Value)
	default:
		return t.Kind.String()
	}
}

// IsIdent reports whether token is the given identifier (keyword).
func (t Token) IsIdent(name string) bool {
	return t.Kind == TokenIdent && t.Value == name
}
