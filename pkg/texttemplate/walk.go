// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package texttemplate

// Walk visits node and its children depth first. Children are skipped when
// fn returns false.
func Walk(node Node, fn func(Node) bool) {
	if node == nil || !fn(node) {
		return
	}

	walkStmts := func(stmts []Stmt) {
		for _, stmt := range stmts {
			Walk(stmt, fn)
		}
	}
	walkExpr := func(expr Expr) {
		if expr != nil {
			Walk(expr, fn)
		}
	}
	walkArgs := func(args []CallArg) {
		for _, arg := range args {
			walkExpr(arg.Value)
		}
	}

	switch typed := node.(type) {
	case *Template:
		walkStmts(typed.Children)
	case *EmitExpr:
		walkExpr(typed.Expr)
	case *ForLoop:
		walkExpr(typed.Target)
		walkExpr(typed.Iter)
		walkExpr(typed.FilterExpr)
		walkStmts(typed.Body)
		walkStmts(typed.ElseBody)
	case *IfCond:
		walkExpr(typed.Expr)
		walkStmts(typed.TrueBody)
		walkStmts(typed.FalseBody)
	case *WithBlock:
		for _, assign := range typed.Assignments {
			walkExpr(assign.Target)
			walkExpr(assign.Value)
		}
		walkStmts(typed.Body)
	case *Set:
		walkExpr(typed.Target)
		walkExpr(typed.Expr)
	case *SetBlock:
		walkExpr(typed.Target)
		walkExpr(typed.Filter)
		walkStmts(typed.Body)
	case *AutoEscape:
		walkExpr(typed.Enabled)
		walkStmts(typed.Body)
	case *FilterBlock:
		walkExpr(typed.Filter)
		walkStmts(typed.Body)
	case *Block:
		walkStmts(typed.Body)
	case *Extends:
		walkExpr(typed.Name)
	case *Include:
		walkExpr(typed.Name)
	case *Import:
		walkExpr(typed.Expr)
		walkExpr(typed.Name)
	case *FromImport:
		walkExpr(typed.Expr)
	case *Macro:
		for _, arg := range typed.Args {
			walkExpr(arg)
		}
		for _, def := range typed.Defaults {
			walkExpr(def)
		}
		walkStmts(typed.Body)
	case *CallBlock:
		walkExpr(typed.Call)
		Walk(typed.MacroDecl, fn)
	case *Do:
		walkExpr(typed.Expr)

	case *Slice:
		walkExpr(typed.Expr)
		walkExpr(typed.Start)
		walkExpr(typed.Stop)
		walkExpr(typed.Step)
	case *UnaryOp:
		walkExpr(typed.Expr)
	case *BinOp:
		walkExpr(typed.Left)
		walkExpr(typed.Right)
	case *IfExpr:
		walkExpr(typed.TestExpr)
		walkExpr(typed.TrueExpr)
		walkExpr(typed.FalseExpr)
	case *Filter:
		walkExpr(typed.Expr)
		walkArgs(typed.Args)
	case *Test:
		walkExpr(typed.Expr)
		walkArgs(typed.Args)
	case *GetAttr:
		walkExpr(typed.Expr)
	case *GetItem:
		walkExpr(typed.Expr)
		walkExpr(typed.SubscriptExpr)
	case *Call:
		walkExpr(typed.Expr)
		walkArgs(typed.Args)
	case *List:
		for _, item := range typed.Items {
			walkExpr(item)
		}
	case *Tuple:
		for _, item := range typed.Items {
			walkExpr(item)
		}
	case *Map:
		for i := range typed.Keys {
			walkExpr(typed.Keys[i])
			walkExpr(typed.Values[i])
		}
	}
}

// ReferencedNames returns all variable names read within stmts, including
// nested macro bodies.
func ReferencedNames(stmts []Stmt) map[string]bool {
	names := map[string]bool{}
	for _, stmt := range stmts {
		Walk(stmt, func(node Node) bool {
			if v, ok := node.(*Var); ok {
				names[v.ID] = true
			}
			return true
		})
	}
	return names
}

// CallType classifies the callee of a call expression.
type CallType int

const (
	CallTypeFunction CallType = iota
	CallTypeMethod
	CallTypeBlock
	CallTypeObject
)

// IdentifyCall returns how the call should be dispatched along with the
// function, method or block name (empty for object calls).
func (c *Call) IdentifyCall() (CallType, string) {
	switch typed := c.Expr.(type) {
	case *Var:
		return CallTypeFunction, typed.ID
	case *GetAttr:
		if v, ok := typed.Expr.(*Var); ok && v.ID == "self" {
			return CallTypeBlock, typed.Name
		}
		return CallTypeMethod, typed.Name
	}
	return CallTypeObject, ""
}
