// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package typecheck

import (
	"fmt"

	"carvel.dev/jtt/pkg/filepos"
	"carvel.dev/jtt/pkg/spell"
	tt "carvel.dev/jtt/pkg/texttemplate"
)

// Check infers types for ast and reports findings to listener. Names not
// bound by the template resolve through reg.
func Check(ast *tt.Template, reg *Registry, listener Listener) {
	NewChecker(reg, listener).Check(ast)
}

type frame struct {
	vars map[string]Type
	// narrowed names hold refined types of outer variables
	narrowed map[string]bool
}

type narrowing map[string]Type

// Checker walks one template. It is not safe for concurrent use.
type Checker struct {
	reg      *Registry
	listener Listener

	frames   []*frame
	declared map[*tt.Macro]Type
	// returns holds the declared return type of each enclosing macro (nil
	// when not annotated)
	returns []Type
}

func NewChecker(reg *Registry, listener Listener) *Checker {
	if listener == nil {
		listener = NoopListener{}
	}
	return &Checker{reg: reg, listener: listener, declared: map[*tt.Macro]Type{}}
}

func (c *Checker) Check(ast *tt.Template) {
	c.push()
	defer c.pop()

	for _, macro := range DiscoverMacros(ast) {
		t, err := MacroType(macro.Decl, macro.Funcsign, c.reg)
		if err != nil {
			c.listener.Error(macro.Decl.Span, err.Error())
		}
		c.declared[macro.Decl] = t
		c.set(macro.Decl.Name, t)
	}

	c.stmts(ast.Children)
}

func (c *Checker) push() {
	c.frames = append(c.frames, &frame{vars: map[string]Type{}, narrowed: map[string]bool{}})
}

func (c *Checker) pop() *frame {
	top := c.frames[len(c.frames)-1]
	c.frames = c.frames[:len(c.frames)-1]
	return top
}

func (c *Checker) set(name string, t Type) {
	top := c.frames[len(c.frames)-1]
	top.vars[name] = t
	delete(top.narrowed, name)
}

func (c *Checker) lookupLocal(name string) (Type, bool) {
	for i := len(c.frames) - 1; i >= 0; i-- {
		if t, found := c.frames[i].vars[name]; found {
			return t, true
		}
	}
	return nil, false
}

func (c *Checker) lookupQuiet(name string) (Type, bool) {
	if t, found := c.lookupLocal(name); found {
		return t, true
	}
	return c.reg.Lookup(name)
}

func (c *Checker) warnAt(span filepos.Span) func(string) {
	return func(msg string) { c.listener.Warn(span, msg) }
}

func (c *Checker) errorAt(span filepos.Span, err error) Type {
	c.listener.Error(span, err.Error())
	return SoftAny
}

func (c *Checker) stmts(stmts []tt.Stmt) {
	for _, stmt := range stmts {
		c.stmt(stmt)
	}
}

func (c *Checker) stmt(stmt tt.Stmt) {
	switch typed := stmt.(type) {
	case *tt.Template:
		c.stmts(typed.Children)

	case *tt.EmitRaw, *tt.Continue, *tt.Break:

	case *tt.EmitExpr:
		c.expr(typed.Expr)

	case *tt.Do:
		c.expr(typed.Expr)

	case *tt.ForLoop:
		c.forLoop(typed)

	case *tt.IfCond:
		c.expr(typed.Expr)
		onTrue, onFalse := c.narrow(typed.Expr)
		assignedTrue := c.branch(onTrue, typed.TrueBody)
		assignedFalse := c.branch(onFalse, typed.FalseBody)
		c.mergeBranches(assignedTrue, assignedFalse)

	case *tt.WithBlock:
		c.push()
		for _, assign := range typed.Assignments {
			c.bindTarget(assign.Target, c.expr(assign.Value))
		}
		c.stmts(typed.Body)
		c.pop()

	case *tt.Set:
		c.bindTarget(typed.Target, c.expr(typed.Expr))

	case *tt.SetBlock:
		c.push()
		c.stmts(typed.Body)
		c.pop()
		var result Type = String{}
		if typed.Filter != nil {
			result = c.filterChain(typed.Filter, String{})
		}
		c.bindTarget(typed.Target, result)

	case *tt.AutoEscape:
		c.expr(typed.Enabled)
		c.stmts(typed.Body)

	case *tt.FilterBlock:
		c.push()
		c.stmts(typed.Body)
		c.pop()
		c.filterChain(typed.Filter, String{})

	case *tt.Block:
		c.push()
		c.set("super", Function{UndefinedFunction{FnName: "super"}})
		c.stmts(typed.Body)
		c.pop()

	case *tt.Extends:
		c.expr(typed.Name)

	case *tt.Include:
		c.expr(typed.Name)

	case *tt.Import:
		c.expr(typed.Expr)
		c.bindTarget(typed.Name, HardAny)

	case *tt.FromImport:
		c.expr(typed.Expr)
		for _, name := range typed.Names {
			bound := name.Name
			if name.Alias != "" {
				bound = name.Alias
			}
			c.set(bound, HardAny)
		}

	case *tt.Macro:
		t, found := c.declared[typed]
		if !found {
			t = Function{UndefinedFunction{FnName: typed.Name}}
			c.set(typed.Name, t)
		}
		c.macroBody(typed, t)

	case *tt.CallBlock:
		c.expr(typed.Call)
		c.macroBody(typed.MacroDecl, Function{UndefinedFunction{FnName: "caller"}})

	default:
		c.listener.Warn(stmt.GetSpan(), fmt.Sprintf("unsupported statement %T", stmt))
	}
}

func (c *Checker) forLoop(loop *tt.ForLoop) {
	iter := c.expr(loop.Iter)
	elem, err := ElemType(iter, c.warnAt(loop.Iter.GetSpan()))
	if err != nil {
		elem = c.errorAt(loop.Iter.GetSpan(), err)
	}

	c.push()
	c.bindTarget(loop.Target, elem)
	if loopType, found := LookupClass("loop"); found {
		c.set("loop", loopType)
	}
	if loop.FilterExpr != nil {
		c.expr(loop.FilterExpr)
	}
	c.stmts(loop.Body)
	c.pop()

	c.stmts(loop.ElseBody)
}

// macroBody checks a macro body with arguments bound to their declared
// types. Defaults are evaluated in the enclosing scope.
func (c *Checker) macroBody(decl *tt.Macro, t Type) {
	for _, def := range decl.Defaults {
		c.expr(def)
	}

	var sig *Signature
	if fn, ok := t.(Function); ok {
		sig, _ = fn.Fn.(*Signature)
	}

	c.push()
	for i, arg := range decl.Args {
		var argType Type = HardAny
		if sig != nil && i < len(sig.Args) {
			argType = sig.Args[i].Type
		}
		c.set(arg.ID, argType)
	}
	c.set("varargs", List{HardAny})
	c.set("kwargs", Dict{String{}, HardAny})
	c.set("caller", Function{UndefinedFunction{FnName: "caller"}})

	var ret Type
	if sig != nil {
		ret = sig.Ret
	}
	c.returns = append(c.returns, ret)
	c.stmts(decl.Body)
	c.returns = c.returns[:len(c.returns)-1]
	c.pop()
}

// branch checks one side of a conditional and returns names it assigned.
func (c *Checker) branch(narrowed narrowing, body []tt.Stmt) map[string]Type {
	c.push()
	top := c.frames[len(c.frames)-1]
	for name, t := range narrowed {
		top.vars[name] = t
		top.narrowed[name] = true
	}
	c.stmts(body)
	c.pop()

	assigned := map[string]Type{}
	for name, t := range top.vars {
		if !top.narrowed[name] {
			assigned[name] = t
		}
	}
	return assigned
}

// mergeBranches binds names assigned in either branch of a conditional.
// A branch that does not assign a name keeps its prior type.
func (c *Checker) mergeBranches(branches ...map[string]Type) {
	names := map[string]struct{}{}
	for _, assigned := range branches {
		for name := range assigned {
			names[name] = struct{}{}
		}
	}

	for _, name := range sortedNames(names) {
		prior, hasPrior := c.lookupQuiet(name)
		var types []Type
		for _, assigned := range branches {
			if t, found := assigned[name]; found {
				types = append(types, t)
			} else if hasPrior {
				types = append(types, prior)
			}
		}
		c.set(name, UnionOf(types...))
	}
}

// narrow refines variables tested by cond for the true and false branch.
func (c *Checker) narrow(cond tt.Expr) (narrowing, narrowing) {
	switch typed := cond.(type) {
	case *tt.UnaryOp:
		if typed.Op == tt.UnaryNot {
			onTrue, onFalse := c.narrow(typed.Expr)
			return onFalse, onTrue
		}

	case *tt.Test:
		v, ok := typed.Expr.(*tt.Var)
		if !ok {
			break
		}
		current, found := c.lookupQuiet(v.ID)
		if !found || IsAny(current) {
			break
		}
		switch typed.Name {
		case "none", "None":
			return narrowing{v.ID: None{}}, narrowing{v.ID: Without(current, isNone)}
		case "defined":
			return narrowing{v.ID: Without(current, isUndefined)}, nil
		case "undefined":
			return nil, narrowing{v.ID: Without(current, isUndefined)}
		}

	case *tt.Var:
		current, found := c.lookupQuiet(typed.ID)
		if found && !IsAny(current) {
			return narrowing{typed.ID: Without(current, isNoneOrUndefined)}, nil
		}

	case *tt.BinOp:
		switch typed.Op {
		case tt.BinOpScAnd:
			left, _ := c.narrow(typed.Left)
			right, _ := c.narrow(typed.Right)
			return mergeNarrowing(left, right), nil
		case tt.BinOpScOr:
			_, left := c.narrow(typed.Left)
			_, right := c.narrow(typed.Right)
			return nil, mergeNarrowing(left, right)
		}
	}
	return nil, nil
}

func mergeNarrowing(a, b narrowing) narrowing {
	result := narrowing{}
	for name, t := range a {
		result[name] = t
	}
	for name, t := range b {
		result[name] = t
	}
	return result
}

func isNone(t Type) bool {
	_, ok := t.(None)
	return ok
}

func isUndefined(t Type) bool {
	_, ok := t.(Undefined)
	return ok
}

func isNoneOrUndefined(t Type) bool { return isNone(t) || isUndefined(t) }

func (c *Checker) bindTarget(target tt.Expr, t Type) {
	switch typed := target.(type) {
	case *tt.Var:
		c.set(typed.ID, t)

	case *tt.Tuple:
		c.unpack(typed.Items, t, typed.Span)

	case *tt.List:
		c.unpack(typed.Items, t, typed.Span)

	case *tt.GetAttr:
		c.expr(typed.Expr)

	default:
		c.listener.Error(target.GetSpan(), fmt.Sprintf("cannot assign to %T", target))
	}
}

func (c *Checker) unpack(targets []tt.Expr, t Type, span filepos.Span) {
	if tuple, ok := t.(Tuple); ok {
		if len(tuple.Elems) != len(targets) {
			c.listener.Error(span, fmt.Sprintf("cannot unpack %s into %d values", t, len(targets)))
			for _, target := range targets {
				c.bindTarget(target, SoftAny)
			}
			return
		}
		for i, target := range targets {
			c.bindTarget(target, tuple.Elems[i])
		}
		return
	}

	elem, err := ElemType(t, c.warnAt(span))
	if err != nil {
		elem = c.errorAt(span, err)
	}
	for _, target := range targets {
		c.bindTarget(target, elem)
	}
}

func (c *Checker) expr(expr tt.Expr) Type {
	switch typed := expr.(type) {
	case *tt.Var:
		return c.variable(typed)

	case *tt.Const:
		return FromValue(typed.Value)

	case *tt.Slice:
		return c.slice(typed)

	case *tt.UnaryOp:
		operand := c.expr(typed.Expr)
		if typed.Op == tt.UnaryNot {
			return Bool{}
		}
		switch Widen(operand).(type) {
		case Integer, Float, Any:
			return Widen(operand)
		case Bool:
			return Integer{}
		}
		return c.report(typed.Span, operand, nil, fmt.Errorf("bad operand type for unary -: %s", operand))

	case *tt.BinOp:
		return c.binOp(typed)

	case *tt.IfExpr:
		c.expr(typed.TestExpr)
		onTrue, onFalse := c.narrow(typed.TestExpr)
		result := []Type{c.narrowedExpr(onTrue, typed.TrueExpr)}
		if typed.FalseExpr != nil {
			result = append(result, c.narrowedExpr(onFalse, typed.FalseExpr))
		} else {
			result = append(result, Undefined{})
		}
		return UnionOf(result...)

	case *tt.Filter:
		return c.filter(typed, nil)

	case *tt.Test:
		c.expr(typed.Expr)
		c.args(typed.Args)
		return Bool{}

	case *tt.GetAttr:
		return c.getAttr(typed)

	case *tt.GetItem:
		base := c.expr(typed.Expr)
		index := c.expr(typed.SubscriptExpr)
		result, err := Subscript(base, index, c.warnAt(typed.Span))
		if err != nil {
			return c.errorAt(typed.Span, err)
		}
		return result

	case *tt.Call:
		return c.call(typed)

	case *tt.List:
		items := make([]Type, len(typed.Items))
		for i, item := range typed.Items {
			items[i] = c.expr(item)
		}
		return List{Widen(UnionOf(items...))}

	case *tt.Tuple:
		items := make([]Type, len(typed.Items))
		for i, item := range typed.Items {
			items[i] = c.expr(item)
		}
		return Tuple{items}

	case *tt.Map:
		return c.mapExpr(typed)
	}

	c.listener.Warn(expr.GetSpan(), fmt.Sprintf("unsupported expression %T", expr))
	return SoftAny
}

func (c *Checker) narrowedExpr(narrowed narrowing, expr tt.Expr) Type {
	c.push()
	defer c.pop()
	for name, t := range narrowed {
		c.set(name, t)
	}
	return c.expr(expr)
}

func (c *Checker) variable(v *tt.Var) Type {
	t, found := c.lookupQuiet(v.ID)
	if !found {
		c.listener.Warn(v.Span, fmt.Sprintf("Unknown variable '%s'", v.ID))
		return SoftAny
	}
	c.listener.OnLookup(v.Span, v.ID, t)
	return t
}

func (c *Checker) getAttr(attr *tt.GetAttr) Type {
	if v, ok := attr.Expr.(*tt.Var); ok {
		if _, local := c.lookupLocal(v.ID); !local {
			qualified := v.ID + "." + attr.Name
			if t, found := c.reg.Lookup(qualified); found {
				c.listener.OnLookup(attr.Span, qualified, t)
				return t
			}
		}
	}

	base := c.expr(attr.Expr)
	result, err := GetAttribute(base, attr.Name, c.warnAt(attr.Span))
	if err != nil {
		return c.errorAt(attr.Span, err)
	}
	return result
}

func (c *Checker) slice(slice *tt.Slice) Type {
	base := c.expr(slice.Expr)
	for _, bound := range []tt.Expr{slice.Start, slice.Stop, slice.Step} {
		if bound == nil {
			continue
		}
		if t := c.expr(bound); !IsSubtype(t, Optional(Integer{})) {
			c.listener.Error(bound.GetSpan(), fmt.Sprintf("slice indices must be integers or none, not %s", t))
		}
	}

	switch typed := base.(type) {
	case Any, List:
		return base
	case String:
		return String{}
	case Tuple:
		return List{UnionOf(typed.Elems...)}
	}
	c.listener.Warn(slice.Span, fmt.Sprintf("%s may not support slicing", base))
	return SoftAny
}

func (c *Checker) mapExpr(m *tt.Map) Type {
	if len(m.Keys) == 0 {
		return Dict{String{}, HardAny}
	}

	fields := map[string]Type{}
	keys := make([]Type, len(m.Keys))
	values := make([]Type, len(m.Values))
	allLiteral := true
	for i := range m.Keys {
		keys[i] = c.expr(m.Keys[i])
		values[i] = c.expr(m.Values[i])
		if lit := stringLiteral(keys[i]); lit != "" {
			fields[lit] = values[i]
		} else {
			allLiteral = false
		}
	}
	if allLiteral {
		return Struct{fields}
	}
	return Dict{Widen(UnionOf(keys...)), UnionOf(values...)}
}

func (c *Checker) args(args []tt.CallArg) ([]Type, map[string]Type, bool) {
	var positional []Type
	kwargs := map[string]Type{}
	splat := false
	for _, arg := range args {
		t := c.expr(arg.Value)
		switch arg.Kind {
		case tt.CallArgPos:
			positional = append(positional, t)
		case tt.CallArgKwarg:
			kwargs[arg.Name] = t
		default:
			splat = true
		}
	}
	return positional, kwargs, splat
}

func (c *Checker) call(call *tt.Call) Type {
	positional, kwargs, splat := c.args(call.Args)

	if v, ok := call.Expr.(*tt.Var); ok && v.ID == "return" {
		if _, local := c.lookupLocal(v.ID); !local {
			c.checkReturn(call, positional)
		}
	}

	callee := c.expr(call.Expr)
	if splat {
		return HardAny
	}

	if fn, ok := callee.(Function); ok {
		if dispatch, ok := fn.Fn.(DispatchFunction); ok {
			return c.dispatch(call, dispatch, positional, kwargs)
		}
	}

	result, err := Call(callee, positional, kwargs, c.warnAt(call.Span))
	if err != nil {
		return c.errorAt(call.Span, err)
	}
	return result
}

func (c *Checker) checkReturn(call *tt.Call, positional []Type) {
	if len(c.returns) == 0 || len(positional) != 1 {
		return
	}
	expected := c.returns[len(c.returns)-1]
	if expected == nil {
		return
	}
	if !IsSubtype(positional[0], expected) {
		c.listener.Error(call.Span, fmt.Sprintf("return type mismatch: expected %s, found %s", expected, positional[0]))
	}
}

// dispatch resolves `adapter.dispatch('name', 'ns')` to the default
// implementation registered for the macro when the name is a literal.
func (c *Checker) dispatch(call *tt.Call, fn DispatchFunction, positional []Type, kwargs map[string]Type) Type {
	name, namespace, err := fn.Target(positional, kwargs)
	if err != nil {
		return c.errorAt(call.Span, err)
	}
	if name == "" {
		return HardAny
	}

	var candidates []string
	if namespace != "" {
		candidates = append(candidates, namespace+".default__"+name, namespace+"."+name)
	}
	candidates = append(candidates, "default__"+name, name)

	for _, candidate := range candidates {
		if t, found := c.reg.Lookup(candidate); found {
			c.listener.OnLookup(call.Span, candidate, t)
			return t
		}
	}
	return Function{UndefinedFunction{FnName: name}}
}

// filterChain applies a filter expression whose innermost filter has no
// input expression (filter and set blocks) to input.
func (c *Checker) filterChain(expr tt.Expr, input Type) Type {
	if f, ok := expr.(*tt.Filter); ok {
		return c.filter(f, input)
	}
	return c.expr(expr)
}

func (c *Checker) filter(f *tt.Filter, blockInput Type) Type {
	var input Type
	switch {
	case f.Expr == nil && blockInput != nil:
		input = blockInput
	case f.Expr == nil:
		input = String{}
	default:
		if inner, ok := f.Expr.(*tt.Filter); ok {
			input = c.filter(inner, blockInput)
		} else {
			input = c.expr(f.Expr)
		}
	}

	positional, kwargs, splat := c.args(f.Args)

	filterType, found := c.reg.LookupFilter(f.Name)
	if !found {
		c.listener.Warn(f.Span, fmt.Sprintf("Unknown filter '%s'%s", f.Name, spell.Hint(f.Name, c.reg.FilterNames())))
		return SoftAny
	}
	if splat {
		return HardAny
	}

	result, err := Call(filterType, append([]Type{input}, positional...), kwargs, c.warnAt(f.Span))
	if err != nil {
		return c.errorAt(f.Span, err)
	}
	return result
}

func (c *Checker) binOp(op *tt.BinOp) Type {
	left := c.expr(op.Left)
	right := c.expr(op.Right)
	symbol := op.Op.String()

	switch op.Op {
	case tt.BinOpScAnd, tt.BinOpScOr:
		return UnionOf(left, right)

	case tt.BinOpEq, tt.BinOpNe, tt.BinOpLt, tt.BinOpLte, tt.BinOpGt, tt.BinOpGte:
		if !CanCompare(left, right, symbol) {
			c.listener.Warn(op.Span, fmt.Sprintf("'%s' comparison between %s and %s may fail", symbol, left, right))
		}
		return Bool{}

	case tt.BinOpIn:
		if _, err := ElemType(right, c.warnAt(op.Right.GetSpan())); err != nil {
			c.errorAt(op.Span, fmt.Errorf("argument of type %s is not a container", right))
		}
		return Bool{}
	}

	result, ok := BinaryResult(symbol, left, right)
	if ok {
		return result
	}
	return c.report(op.Span, left, right, fmt.Errorf("unsupported operand types for %s: %s and %s", symbol, left, right))
}

// report raises err as an error when all operands are precisely typed and
// as a warning otherwise.
func (c *Checker) report(span filepos.Span, a, b Type, err error) Type {
	if isPrecise(a) && (b == nil || isPrecise(b)) {
		return c.errorAt(span, err)
	}
	c.listener.Warn(span, err.Error())
	return SoftAny
}

func isPrecise(t Type) bool {
	switch typed := t.(type) {
	case String, Integer, Float, Bool, Bytes, Timestamp, None, List, Tuple, Dict, Struct:
		return true
	case Union:
		for _, m := range typed.members {
			if !isPrecise(m) {
				return false
			}
		}
		return true
	}
	return false
}
