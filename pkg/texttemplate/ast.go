// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package texttemplate

import (
	"carvel.dev/jtt/pkg/filepos"
	"carvel.dev/jtt/pkg/value"
)

// Node is any AST node.
type Node interface {
	GetSpan() filepos.Span
}

// Stmt is a statement node.
type Stmt interface {
	Node
	stmtNode()
}

// Expr is an expression node.
type Expr interface {
	Node
	exprNode()
}

// Spanned is embedded into every node.
type Spanned struct {
	Span filepos.Span
}

func (s Spanned) GetSpan() filepos.Span { return s.Span }

type Template struct {
	Spanned
	Children []Stmt
}

// EmitRaw is template data emitted verbatim.
type EmitRaw struct {
	Spanned
	Raw string
}

// EmitExpr is a `{{ expr }}` interpolation.
type EmitExpr struct {
	Spanned
	Expr Expr
}

type ForLoop struct {
	Spanned
	Target     Expr
	Iter       Expr
	FilterExpr Expr
	Recursive  bool
	Body       []Stmt
	ElseBody   []Stmt
}

type IfCond struct {
	Spanned
	Expr      Expr
	TrueBody  []Stmt
	FalseBody []Stmt
}

type Assignment struct {
	Target Expr
	Value  Expr
}

type WithBlock struct {
	Spanned
	Assignments []Assignment
	Body        []Stmt
}

type Set struct {
	Spanned
	Target Expr
	Expr   Expr
}

type SetBlock struct {
	Spanned
	Target Expr
	Filter Expr
	Body   []Stmt
}

type AutoEscape struct {
	Spanned
	Enabled Expr
	Body    []Stmt
}

type FilterBlock struct {
	Spanned
	Filter Expr
	Body   []Stmt
}

type Block struct {
	Spanned
	Name string
	Body []Stmt
}

type Extends struct {
	Spanned
	Name Expr
}

type Include struct {
	Spanned
	Name          Expr
	IgnoreMissing bool
}

type Import struct {
	Spanned
	Expr Expr
	Name Expr
}

type ImportName struct {
	Name  string
	Alias string
}

type FromImport struct {
	Spanned
	Expr  Expr
	Names []ImportName
}

type MacroKind int

const (
	MacroKindMacro MacroKind = iota
	MacroKindTest
	MacroKindMaterialization
	MacroKindSnapshot
)

type Macro struct {
	Spanned
	Name     string
	Args     []*Var
	Defaults []Expr
	Body     []Stmt
	Kind     MacroKind
	// Adapter is set for materializations only
	Adapter string
}

// CallBlock is `{% call macro(...) %}body{% endcall %}`; the body becomes an
// anonymous `caller` macro.
type CallBlock struct {
	Spanned
	Call      *Call
	MacroDecl *Macro
}

type Do struct {
	Spanned
	Expr Expr
}

type Continue struct{ Spanned }

type Break struct{ Spanned }

func (*Template) stmtNode()    {}
func (*EmitRaw) stmtNode()     {}
func (*EmitExpr) stmtNode()    {}
func (*ForLoop) stmtNode()     {}
func (*IfCond) stmtNode()      {}
func (*WithBlock) stmtNode()   {}
func (*Set) stmtNode()         {}
func (*SetBlock) stmtNode()    {}
func (*AutoEscape) stmtNode()  {}
func (*FilterBlock) stmtNode() {}
func (*Block) stmtNode()       {}
func (*Extends) stmtNode()     {}
func (*Include) stmtNode()     {}
func (*Import) stmtNode()      {}
func (*FromImport) stmtNode()  {}
func (*Macro) stmtNode()       {}
func (*CallBlock) stmtNode()   {}
func (*Do) stmtNode()          {}
func (*Continue) stmtNode()    {}
func (*Break) stmtNode()       {}

type Var struct {
	Spanned
	ID string
}

type Const struct {
	Spanned
	Value value.Value
}

type Slice struct {
	Spanned
	Expr  Expr
	Start Expr
	Stop  Expr
	Step  Expr
}

type UnaryOpKind int

const (
	UnaryNot UnaryOpKind = iota
	UnaryNeg
)

type UnaryOp struct {
	Spanned
	Op   UnaryOpKind
	Expr Expr
}

type BinOpKind int

const (
	BinOpEq BinOpKind = iota
	BinOpNe
	BinOpLt
	BinOpLte
	BinOpGt
	BinOpGte
	BinOpScAnd
	BinOpScOr
	BinOpAdd
	BinOpSub
	BinOpMul
	BinOpDiv
	BinOpFloorDiv
	BinOpRem
	BinOpPow
	BinOpConcat
	BinOpIn
)

var binOpSymbols = map[BinOpKind]string{
	BinOpEq:       "==",
	BinOpNe:       "!=",
	BinOpLt:       "<",
	BinOpLte:      "<=",
	BinOpGt:       ">",
	BinOpGte:      ">=",
	BinOpScAnd:    "and",
	BinOpScOr:     "or",
	BinOpAdd:      "+",
	BinOpSub:      "-",
	BinOpMul:      "*",
	BinOpDiv:      "/",
	BinOpFloorDiv: "//",
	BinOpRem:      "%",
	BinOpPow:      "**",
	BinOpConcat:   "~",
	BinOpIn:       "in",
}

func (k BinOpKind) String() string { return binOpSymbols[k] }

type BinOp struct {
	Spanned
	Op    BinOpKind
	Left  Expr
	Right Expr
}

type IfExpr struct {
	Spanned
	TestExpr  Expr
	TrueExpr  Expr
	FalseExpr Expr
}

// Filter applies a named filter; Expr is nil inside filter blocks and
// set blocks where the body is the input.
type Filter struct {
	Spanned
	Name string
	Expr Expr
	Args []CallArg
}

type Test struct {
	Spanned
	Name string
	Expr Expr
	Args []CallArg
}

type GetAttr struct {
	Spanned
	Expr Expr
	Name string
}

type GetItem struct {
	Spanned
	Expr          Expr
	SubscriptExpr Expr
}

type Call struct {
	Spanned
	Expr Expr
	Args []CallArg
}

type CallArgKind int

const (
	CallArgPos CallArgKind = iota
	CallArgKwarg
	CallArgPosSplat
	CallArgKwargSplat
)

type CallArg struct {
	Kind  CallArgKind
	Name  string
	Value Expr
}

type List struct {
	Spanned
	Items []Expr
}

type Tuple struct {
	Spanned
	Items []Expr
}

type Map struct {
	Spanned
	Keys   []Expr
	Values []Expr
}

func (*Var) exprNode()     {}
func (*Const) exprNode()   {}
func (*Slice) exprNode()   {}
func (*UnaryOp) exprNode() {}
func (*BinOp) exprNode()   {}
func (*IfExpr) exprNode()  {}
func (*Filter) exprNode()  {}
func (*Test) exprNode()    {}
func (*GetAttr) exprNode() {}
func (*GetItem) exprNode() {}
func (*Call) exprNode()    {}
func (*List) exprNode()    {}
func (*Tuple) exprNode()   {}
func (*Map) exprNode()     {}

// AsConst returns constant value of a literal expression (including
// lists/tuples/maps of literals).
func AsConst(expr Expr) (value.Value, bool) {
	switch typed := expr.(type) {
	case *Const:
		return typed.Value, true
	case *List:
		items, ok := constItems(typed.Items)
		return value.FromSlice(items), ok
	case *Tuple:
		items, ok := constItems(typed.Items)
		return value.FromSlice(items), ok
	case *Map:
		m := value.NewMap()
		for i := range typed.Keys {
			k, okK := AsConst(typed.Keys[i])
			v, okV := AsConst(typed.Values[i])
			if !okK || !okV {
				return value.Undefined, false
			}
			m.Set(k, v)
		}
		return value.FromMap(m), true
	}
	return value.Undefined, false
}

func constItems(exprs []Expr) ([]value.Value, bool) {
	items := make([]value.Value, len(exprs))
	for i, e := range exprs {
		v, ok := AsConst(e)
		if !ok {
			return nil, false
		}
		items[i] = v
	}
	return items, true
}
