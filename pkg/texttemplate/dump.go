// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package texttemplate

import (
	"fmt"
	"strings"
)

// DebugASTAsString renders an indented tree of the AST, one node per line.
func DebugASTAsString(node Node) string {
	d := &astDumper{}
	d.node(node, 0)
	return d.sb.String()
}

type astDumper struct {
	sb strings.Builder
}

func (d *astDumper) line(indent int, format string, args ...interface{}) {
	d.sb.WriteString(strings.Repeat("  ", indent))
	fmt.Fprintf(&d.sb, format, args...)
	d.sb.WriteString("\n")
}

func (d *astDumper) group(indent int, label string, stmts []Stmt) {
	d.line(indent, "%s:", label)
	for _, stmt := range stmts {
		d.node(stmt, indent+1)
	}
}

func (d *astDumper) labeled(indent int, label string, expr Expr) {
	if expr == nil {
		return
	}
	d.line(indent, "%s:", label)
	d.node(expr, indent+1)
}

func (d *astDumper) args(indent int, args []CallArg) {
	for _, arg := range args {
		switch arg.Kind {
		case CallArgPos:
			d.node(arg.Value, indent)
		case CallArgKwarg:
			d.line(indent, "Kwarg %s", arg.Name)
			d.node(arg.Value, indent+1)
		case CallArgPosSplat:
			d.line(indent, "PosSplat")
			d.node(arg.Value, indent+1)
		case CallArgKwargSplat:
			d.line(indent, "KwargSplat")
			d.node(arg.Value, indent+1)
		}
	}
}

func (d *astDumper) node(node Node, indent int) {
	switch typed := node.(type) {
	case *Template:
		d.line(indent, "Template")
		for _, child := range typed.Children {
			d.node(child, indent+1)
		}
	case *EmitRaw:
		d.line(indent, "EmitRaw %q", typed.Raw)
	case *EmitExpr:
		d.line(indent, "EmitExpr")
		d.node(typed.Expr, indent+1)
	case *ForLoop:
		if typed.Recursive {
			d.line(indent, "ForLoop recursive")
		} else {
			d.line(indent, "ForLoop")
		}
		d.labeled(indent+1, "target", typed.Target)
		d.labeled(indent+1, "iter", typed.Iter)
		d.labeled(indent+1, "filter", typed.FilterExpr)
		d.group(indent+1, "body", typed.Body)
		if len(typed.ElseBody) > 0 {
			d.group(indent+1, "else", typed.ElseBody)
		}
	case *IfCond:
		d.line(indent, "IfCond")
		d.labeled(indent+1, "cond", typed.Expr)
		d.group(indent+1, "then", typed.TrueBody)
		if len(typed.FalseBody) > 0 {
			d.group(indent+1, "else", typed.FalseBody)
		}
	case *WithBlock:
		d.line(indent, "WithBlock")
		for _, assign := range typed.Assignments {
			d.line(indent+1, "assign:")
			d.node(assign.Target, indent+2)
			d.node(assign.Value, indent+2)
		}
		d.group(indent+1, "body", typed.Body)
	case *Set:
		d.line(indent, "Set")
		d.node(typed.Target, indent+1)
		d.node(typed.Expr, indent+1)
	case *SetBlock:
		d.line(indent, "SetBlock")
		d.labeled(indent+1, "target", typed.Target)
		d.labeled(indent+1, "filter", typed.Filter)
		d.group(indent+1, "body", typed.Body)
	case *AutoEscape:
		d.line(indent, "AutoEscape")
		d.labeled(indent+1, "enabled", typed.Enabled)
		d.group(indent+1, "body", typed.Body)
	case *FilterBlock:
		d.line(indent, "FilterBlock")
		d.labeled(indent+1, "filter", typed.Filter)
		d.group(indent+1, "body", typed.Body)
	case *Block:
		d.line(indent, "Block %s", typed.Name)
		for _, child := range typed.Body {
			d.node(child, indent+1)
		}
	case *Extends:
		d.line(indent, "Extends")
		d.node(typed.Name, indent+1)
	case *Include:
		if typed.IgnoreMissing {
			d.line(indent, "Include ignore_missing")
		} else {
			d.line(indent, "Include")
		}
		d.node(typed.Name, indent+1)
	case *Import:
		d.line(indent, "Import")
		d.node(typed.Expr, indent+1)
		d.node(typed.Name, indent+1)
	case *FromImport:
		var names []string
		for _, name := range typed.Names {
			names = append(names, name.Name+" as "+name.Alias)
		}
		d.line(indent, "FromImport %s", strings.Join(names, ", "))
		d.node(typed.Expr, indent+1)
	case *Macro:
		var args []string
		for _, arg := range typed.Args {
			args = append(args, arg.ID)
		}
		d.line(indent, "Macro %s(%s)", typed.Name, strings.Join(args, ", "))
		for _, def := range typed.Defaults {
			d.labeled(indent+1, "default", def)
		}
		d.group(indent+1, "body", typed.Body)
	case *CallBlock:
		d.line(indent, "CallBlock")
		d.labeled(indent+1, "call", typed.Call)
		d.node(typed.MacroDecl, indent+1)
	case *Do:
		d.line(indent, "Do")
		d.node(typed.Expr, indent+1)
	case *Continue:
		d.line(indent, "Continue")
	case *Break:
		d.line(indent, "Break")

	case *Var:
		d.line(indent, "Var %s", typed.ID)
	case *Const:
		d.line(indent, "Const %s", typed.Value.Repr())
	case *Slice:
		d.line(indent, "Slice")
		d.node(typed.Expr, indent+1)
		d.labeled(indent+1, "start", typed.Start)
		d.labeled(indent+1, "stop", typed.Stop)
		d.labeled(indent+1, "step", typed.Step)
	case *UnaryOp:
		if typed.Op == UnaryNot {
			d.line(indent, "UnaryOp not")
		} else {
			d.line(indent, "UnaryOp -")
		}
		d.node(typed.Expr, indent+1)
	case *BinOp:
		d.line(indent, "BinOp %s", typed.Op)
		d.node(typed.Left, indent+1)
		d.node(typed.Right, indent+1)
	case *IfExpr:
		d.line(indent, "IfExpr")
		d.labeled(indent+1, "test", typed.TestExpr)
		d.labeled(indent+1, "true", typed.TrueExpr)
		d.labeled(indent+1, "false", typed.FalseExpr)
	case *Filter:
		d.line(indent, "Filter %s", typed.Name)
		if typed.Expr != nil {
			d.node(typed.Expr, indent+1)
		}
		d.args(indent+1, typed.Args)
	case *Test:
		d.line(indent, "Test %s", typed.Name)
		d.node(typed.Expr, indent+1)
		d.args(indent+1, typed.Args)
	case *GetAttr:
		d.line(indent, "GetAttr %s", typed.Name)
		d.node(typed.Expr, indent+1)
	case *GetItem:
		d.line(indent, "GetItem")
		d.node(typed.Expr, indent+1)
		d.node(typed.SubscriptExpr, indent+1)
	case *Call:
		d.line(indent, "Call")
		d.node(typed.Expr, indent+1)
		d.args(indent+1, typed.Args)
	case *List:
		d.line(indent, "List")
		for _, item := range typed.Items {
			d.node(item, indent+1)
		}
	case *Tuple:
		d.line(indent, "Tuple")
		for _, item := range typed.Items {
			d.node(item, indent+1)
		}
	case *Map:
		d.line(indent, "Map")
		for i := range typed.Keys {
			d.node(typed.Keys[i], indent+1)
			d.node(typed.Values[i], indent+2)
		}
	default:
		d.line(indent, "%T", node)
	}
}
