// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package template

import (
	"fmt"

	"carvel.dev/jtt/pkg/filepos"
	tt "carvel.dev/jtt/pkg/texttemplate"
	"carvel.dev/jtt/pkg/value"
)

type pendingKind int

const (
	pendingBranch pendingKind = iota
	pendingLoop
	pendingScBool
)

// pendingBlock tracks jumps that get patched once their target is known.
type pendingBlock struct {
	kind      pendingKind
	jumpInstr int
	iterInstr int
	jumps     []int
}

type funcsignComment struct {
	span filepos.Span
	sig  string
}

// codegenUnit is state shared between a generator and its sub generators
// (blocks, macros).
type codegenUnit struct {
	templateName string
	blocks       map[string]*Instructions
	blockOrder   []string
	macros       []*MacroUnit
	lastFuncsign *funcsignComment
}

// CodeGenerator compiles AST statements into one instruction vector.
type CodeGenerator struct {
	unit     *codegenUnit
	instrs   *Instructions
	pending  []pendingBlock
	topLevel bool
	nesting  int
	rawBytes int
}

func NewCodeGenerator(templateName string) *CodeGenerator {
	unit := &codegenUnit{
		templateName: templateName,
		blocks:       map[string]*Instructions{},
	}
	return &CodeGenerator{unit: unit, instrs: NewInstructions(templateName), topLevel: true}
}

func (g *CodeGenerator) sub(name string) *CodeGenerator {
	return &CodeGenerator{unit: g.unit, instrs: NewInstructions(name)}
}

func (g *CodeGenerator) add(op Opcode, span filepos.Span) int {
	return g.instrs.Add(Instruction{Op: op, Span: span})
}

func (g *CodeGenerator) addA(op Opcode, a int, span filepos.Span) int {
	return g.instrs.Add(Instruction{Op: op, A: a, Span: span})
}

func (g *CodeGenerator) addName(op Opcode, name string, span filepos.Span) int {
	return g.instrs.Add(Instruction{Op: op, Name: name, Span: span})
}

func (g *CodeGenerator) loadConst(val value.Value, span filepos.Span) {
	g.addA(OpLoadConst, g.instrs.AddConst(val), span)
}

func (g *CodeGenerator) next() int { return g.instrs.Len() }

func (g *CodeGenerator) startForLoop(withLoopVar, recursive bool, span filepos.Span) {
	flags := 0
	if withLoopVar {
		flags |= LoopFlagWithLoopVar
	}
	if recursive {
		flags |= LoopFlagRecursive
	}
	g.addA(OpPushLoop, flags, span)
	iter := g.addA(OpIterate, -1, span)
	g.pending = append(g.pending, pendingBlock{kind: pendingLoop, iterInstr: iter})
}

func (g *CodeGenerator) endForLoop(pushDidNotIterate bool, span filepos.Span) {
	block := g.pop(pendingLoop)
	g.addA(OpJump, block.iterInstr, span)
	loopEnd := g.next()
	if pushDidNotIterate {
		g.add(OpPushDidNotIterate, span)
	}
	g.add(OpPopFrame, span)
	for _, instr := range append(block.jumps, block.iterInstr) {
		g.instrs.setTarget(instr, loopEnd)
	}
}

func (g *CodeGenerator) startIf(span filepos.Span) {
	jump := g.addA(OpJumpIfFalse, -1, span)
	g.pending = append(g.pending, pendingBlock{kind: pendingBranch, jumpInstr: jump})
}

func (g *CodeGenerator) startElse(span filepos.Span) {
	jump := g.addA(OpJump, -1, span)
	g.endCondition(jump + 1)
	g.pending = append(g.pending, pendingBlock{kind: pendingBranch, jumpInstr: jump})
}

func (g *CodeGenerator) endIf() { g.endCondition(g.next()) }

func (g *CodeGenerator) endCondition(target int) {
	block := g.pop(pendingBranch)
	g.instrs.setTarget(block.jumpInstr, target)
}

func (g *CodeGenerator) startScBool() {
	g.pending = append(g.pending, pendingBlock{kind: pendingScBool})
}

func (g *CodeGenerator) scBool(and bool, span filepos.Span) {
	op := OpJumpIfTrueOrPop
	if and {
		op = OpJumpIfFalseOrPop
	}
	last := &g.pending[len(g.pending)-1]
	if last.kind != pendingScBool {
		panic("[BUG] expected short circuit block")
	}
	last.jumps = append(last.jumps, g.addA(op, -1, span))
}

func (g *CodeGenerator) endScBool() {
	end := g.next()
	for _, instr := range g.pop(pendingScBool).jumps {
		g.instrs.setTarget(instr, end)
	}
}

func (g *CodeGenerator) pop(kind pendingKind) pendingBlock {
	if len(g.pending) == 0 {
		panic("[BUG] no pending block")
	}
	block := g.pending[len(g.pending)-1]
	if block.kind != kind {
		panic(fmt.Sprintf("[BUG] expected pending block kind %d, got %d", kind, block.kind))
	}
	g.pending = g.pending[:len(g.pending)-1]
	return block
}

func (g *CodeGenerator) innermostLoop() *pendingBlock {
	for i := len(g.pending) - 1; i >= 0; i-- {
		if g.pending[i].kind == pendingLoop {
			return &g.pending[i]
		}
	}
	return nil
}

// CompileStmts compiles statements into the generator's main vector.
func (g *CodeGenerator) CompileStmts(stmts []tt.Stmt) error {
	for _, stmt := range stmts {
		if err := g.compileStmt(stmt); err != nil {
			return err
		}
	}
	return nil
}

// atRoot reports whether the statement being compiled is a direct child of
// the template.
func (g *CodeGenerator) atRoot() bool { return g.topLevel && g.nesting == 1 }

func (g *CodeGenerator) compileStmt(stmt tt.Stmt) error {
	span := stmt.GetSpan()
	g.nesting++
	defer func() { g.nesting-- }()

	switch typed := stmt.(type) {
	case *tt.Template:
		g.nesting--
		defer func() { g.nesting++ }()
		return g.CompileStmts(typed.Children)

	case *tt.EmitRaw:
		g.trackFuncsign(typed)
		g.addA(OpEmitRaw, g.instrs.AddConst(value.FromString(typed.Raw)), span)
		g.rawBytes += len(typed.Raw)

	case *tt.EmitExpr:
		return g.compileEmitExpr(typed)

	case *tt.ForLoop:
		return g.compileForLoop(typed)

	case *tt.IfCond:
		if err := g.compileExpr(typed.Expr); err != nil {
			return err
		}
		g.startIf(span)
		if err := g.CompileStmts(typed.TrueBody); err != nil {
			return err
		}
		if len(typed.FalseBody) > 0 {
			g.startElse(span)
			if err := g.CompileStmts(typed.FalseBody); err != nil {
				return err
			}
		}
		g.endIf()

	case *tt.WithBlock:
		g.add(OpPushWith, span)
		for _, assign := range typed.Assignments {
			if err := g.compileExpr(assign.Value); err != nil {
				return err
			}
			if err := g.compileAssignment(assign.Target); err != nil {
				return err
			}
		}
		if err := g.CompileStmts(typed.Body); err != nil {
			return err
		}
		g.add(OpPopFrame, span)

	case *tt.Set:
		if err := g.compileExpr(typed.Expr); err != nil {
			return err
		}
		return g.compileAssignment(typed.Target)

	case *tt.SetBlock:
		g.addA(OpBeginCapture, CaptureModeCapture, span)
		if err := g.CompileStmts(typed.Body); err != nil {
			return err
		}
		g.add(OpEndCapture, span)
		if typed.Filter != nil {
			if err := g.compileExpr(typed.Filter); err != nil {
				return err
			}
		}
		return g.compileAssignment(typed.Target)

	case *tt.AutoEscape:
		if err := g.compileExpr(typed.Enabled); err != nil {
			return err
		}
		g.add(OpPushAutoEscape, span)
		if err := g.CompileStmts(typed.Body); err != nil {
			return err
		}
		g.add(OpPopAutoEscape, span)

	case *tt.FilterBlock:
		g.addA(OpBeginCapture, CaptureModeCapture, span)
		if err := g.CompileStmts(typed.Body); err != nil {
			return err
		}
		g.add(OpEndCapture, span)
		if err := g.compileExpr(typed.Filter); err != nil {
			return err
		}
		g.add(OpEmit, span)

	case *tt.Block:
		sub := g.sub(typed.Name)
		if err := sub.CompileStmts(typed.Body); err != nil {
			return err
		}
		if _, found := g.unit.blocks[typed.Name]; !found {
			g.unit.blockOrder = append(g.unit.blockOrder, typed.Name)
		}
		g.unit.blocks[typed.Name] = sub.instrs
		g.addName(OpCallBlock, typed.Name, span)

	case *tt.Extends:
		if err := g.compileExpr(typed.Name); err != nil {
			return err
		}
		g.add(OpLoadBlocks, span)

	case *tt.Include:
		if err := g.compileExpr(typed.Name); err != nil {
			return err
		}
		g.addA(OpInclude, boolInt(typed.IgnoreMissing), span)

	case *tt.Import:
		g.addA(OpBeginCapture, CaptureModeDiscard, span)
		g.add(OpPushWith, span)
		if err := g.compileExpr(typed.Expr); err != nil {
			return err
		}
		g.addA(OpInclude, 0, span)
		g.add(OpExportLocals, span)
		g.add(OpPopFrame, span)
		if err := g.compileAssignment(typed.Name); err != nil {
			return err
		}
		g.add(OpEndCapture, span)
		g.add(OpDiscardTop, span)

	case *tt.FromImport:
		g.addA(OpBeginCapture, CaptureModeDiscard, span)
		g.add(OpPushWith, span)
		if err := g.compileExpr(typed.Expr); err != nil {
			return err
		}
		g.addA(OpInclude, 0, span)
		for _, name := range typed.Names {
			g.addName(OpLookup, name.Name, span)
		}
		g.add(OpPopFrame, span)
		for i := len(typed.Names) - 1; i >= 0; i-- {
			g.addName(OpStoreLocal, typed.Names[i].Alias, span)
		}
		g.add(OpEndCapture, span)
		g.add(OpDiscardTop, span)

	case *tt.Macro:
		var funcsign string
		if g.atRoot() && g.unit.lastFuncsign != nil {
			if g.unit.lastFuncsign.span.StartLine >= typed.Span.StartLine {
				return NewCompileError(g.unit.templateName, typed.Span, "[BUG] funcsign is after macro declaration")
			}
			funcsign = g.unit.lastFuncsign.sig
			g.unit.lastFuncsign = nil
		}
		unit, err := g.compileMacroExpr(typed)
		if err != nil {
			return err
		}
		unit.Funcsign = funcsign
		unit.TopLevel = g.atRoot()
		g.addName(OpStoreLocal, typed.Name, span)

	case *tt.CallBlock:
		if err := g.compileCall(typed.Call, typed.MacroDecl); err != nil {
			return err
		}
		g.add(OpEmit, span)

	case *tt.Do:
		if err := g.compileExpr(typed.Expr); err != nil {
			return err
		}
		g.add(OpDiscardTop, span)

	case *tt.Continue:
		loop := g.innermostLoop()
		if loop == nil {
			return NewCompileError(g.unit.templateName, span, "'continue' must be placed inside a loop")
		}
		g.addA(OpJump, loop.iterInstr, span)

	case *tt.Break:
		loop := g.innermostLoop()
		if loop == nil {
			return NewCompileError(g.unit.templateName, span, "'break' must be placed inside a loop")
		}
		loop.jumps = append(loop.jumps, g.addA(OpJump, -1, span))

	default:
		return NewCompileError(g.unit.templateName, span, fmt.Sprintf("unsupported statement %T", stmt))
	}
	return nil
}

// trackFuncsign remembers a `-- funcsign:` comment so that it can be
// attached to the next top level macro.
func (g *CodeGenerator) trackFuncsign(raw *tt.EmitRaw) {
	if !g.atRoot() {
		return
	}
	sig, found := tt.FuncsignOf(raw.Raw)
	if !found {
		g.unit.lastFuncsign = nil
		return
	}
	g.unit.lastFuncsign = &funcsignComment{span: raw.Span, sig: sig}
}

func (g *CodeGenerator) compileEmitExpr(emit *tt.EmitExpr) error {
	span := emit.Span

	if call, ok := emit.Expr.(*tt.Call); ok {
		callType, name := call.IdentifyCall()
		switch {
		case callType == tt.CallTypeFunction && name == "super" && len(call.Args) == 0:
			g.add(OpFastSuper, call.Span)
			return nil
		case callType == tt.CallTypeFunction && name == "loop" && len(call.Args) == 1:
			if _, err := g.compileCallArgs(call.Args, 0, nil, call.Span); err != nil {
				return err
			}
			g.add(OpFastRecurse, call.Span)
			return nil
		case callType == tt.CallTypeBlock:
			g.addName(OpCallBlock, name, call.Span)
			return nil
		}
	}

	if err := g.compileExpr(emit.Expr); err != nil {
		return err
	}
	g.add(OpEmit, span)
	return nil
}

func (g *CodeGenerator) compileForLoop(loop *tt.ForLoop) error {
	span := loop.Span

	// a loop filter runs as a separate loop without loop variable which
	// collects passing items into a list
	if loop.FilterExpr != nil {
		g.loadConst(value.FromInt(0), span)
		if err := g.compileExpr(loop.Iter); err != nil {
			return err
		}
		g.startForLoop(false, false, span)
		g.add(OpDupTop, span)
		if err := g.compileAssignment(loop.Target); err != nil {
			return err
		}
		if err := g.compileExpr(loop.FilterExpr); err != nil {
			return err
		}
		g.startIf(span)
		g.add(OpSwap, span)
		g.loadConst(value.FromInt(1), span)
		g.add(OpAdd, span)
		g.startElse(span)
		g.add(OpDiscardTop, span)
		g.endIf()
		g.endForLoop(false, span)
		g.addA(OpBuildList, ArgCountUnpacked, span)
	} else if err := g.compileExpr(loop.Iter); err != nil {
		return err
	}

	g.startForLoop(true, loop.Recursive, span)
	if err := g.compileAssignment(loop.Target); err != nil {
		return err
	}
	if err := g.CompileStmts(loop.Body); err != nil {
		return err
	}
	g.endForLoop(len(loop.ElseBody) > 0, span)
	if len(loop.ElseBody) > 0 {
		g.startIf(span)
		if err := g.CompileStmts(loop.ElseBody); err != nil {
			return err
		}
		g.endIf()
	}
	return nil
}

func (g *CodeGenerator) compileAssignment(expr tt.Expr) error {
	switch typed := expr.(type) {
	case *tt.Var:
		g.addName(OpStoreLocal, typed.ID, typed.Span)
	case *tt.List:
		g.addA(OpUnpackList, len(typed.Items), typed.Span)
		for _, item := range typed.Items {
			if err := g.compileAssignment(item); err != nil {
				return err
			}
		}
	case *tt.Tuple:
		g.addA(OpUnpackList, len(typed.Items), typed.Span)
		for _, item := range typed.Items {
			if err := g.compileAssignment(item); err != nil {
				return err
			}
		}
	case *tt.GetAttr:
		if err := g.compileExpr(typed.Expr); err != nil {
			return err
		}
		g.addName(OpSetAttr, typed.Name, typed.Span)
	default:
		return NewCompileError(g.unit.templateName, expr.GetSpan(), "invalid assignment target")
	}
	return nil
}

// compileMacroExpr compiles the macro body into its own instruction vector
// and leaves the macro object on the stack.
func (g *CodeGenerator) compileMacroExpr(decl *tt.Macro) (*MacroUnit, error) {
	unit := &MacroUnit{
		Name:     decl.Name,
		Kind:     decl.Kind,
		Span:     decl.Span,
		Template: g.unit.templateName,
		Decl:     decl,
	}

	sub := g.sub(decl.Name)
	requiredCount := len(decl.Args) - len(decl.Defaults)

	// defaults may refer to earlier arguments so they are evaluated left to right
	for i, arg := range decl.Args {
		spec := ArgSpec{Name: arg.ID}
		if i >= requiredCount {
			spec.HasDefault = true
			sub.add(OpDupTop, arg.Span)
			sub.add(OpIsUndefined, arg.Span)
			sub.startIf(arg.Span)
			sub.add(OpDiscardTop, arg.Span)
			if err := sub.compileExpr(decl.Defaults[i-requiredCount]); err != nil {
				return nil, err
			}
			sub.endIf()
		}
		sub.addName(OpStoreLocal, arg.ID, arg.Span)
		unit.Args = append(unit.Args, spec)
	}
	if err := sub.CompileStmts(decl.Body); err != nil {
		return nil, err
	}
	sub.add(OpReturn, decl.Span)
	unit.Code = sub.instrs

	referenced := tt.ReferencedNames(decl.Body)
	for _, def := range decl.Defaults {
		tt.Walk(def, func(node tt.Node) bool {
			if v, ok := node.(*tt.Var); ok {
				referenced[v.ID] = true
			}
			return true
		})
	}

	flags := 0
	if referenced["caller"] {
		flags |= MacroFlagCaller
		unit.CallerReference = true
	}
	if referenced["varargs"] {
		flags |= MacroFlagVarargs
	}
	if referenced["kwargs"] {
		flags |= MacroFlagKwargs
	}

	g.unit.macros = append(g.unit.macros, unit)
	g.instrs.Add(Instruction{Op: OpBuildMacro, Name: decl.Name, A: len(g.unit.macros) - 1, B: flags, Span: decl.Span})
	return unit, nil
}

func (g *CodeGenerator) compileExpr(expr tt.Expr) error {
	span := expr.GetSpan()

	switch typed := expr.(type) {
	case *tt.Var:
		g.addName(OpLookup, typed.ID, span)

	case *tt.Const:
		g.loadConst(typed.Value, span)

	case *tt.Slice:
		if err := g.compileExpr(typed.Expr); err != nil {
			return err
		}
		for i, part := range []tt.Expr{typed.Start, typed.Stop, typed.Step} {
			if part != nil {
				if err := g.compileExpr(part); err != nil {
					return err
				}
				continue
			}
			if i == 2 {
				g.loadConst(value.FromInt(1), span)
			} else {
				g.loadConst(value.None, span)
			}
		}
		g.add(OpSlice, span)

	case *tt.UnaryOp:
		if typed.Op == tt.UnaryNeg {
			if c, ok := typed.Expr.(*tt.Const); ok {
				if negated, err := value.Neg(c.Value); err == nil {
					g.loadConst(negated, span)
					return nil
				}
			}
		}
		if err := g.compileExpr(typed.Expr); err != nil {
			return err
		}
		if typed.Op == tt.UnaryNot {
			g.add(OpNot, span)
		} else {
			g.add(OpNeg, span)
		}

	case *tt.BinOp:
		return g.compileBinOp(typed)

	case *tt.IfExpr:
		if err := g.compileExpr(typed.TestExpr); err != nil {
			return err
		}
		g.startIf(span)
		if err := g.compileExpr(typed.TrueExpr); err != nil {
			return err
		}
		g.startElse(span)
		if typed.FalseExpr != nil {
			if err := g.compileExpr(typed.FalseExpr); err != nil {
				return err
			}
		} else {
			g.loadConst(value.Undefined, span)
		}
		g.endIf()

	case *tt.Filter:
		if typed.Expr != nil {
			if err := g.compileExpr(typed.Expr); err != nil {
				return err
			}
		}
		argc, err := g.compileCallArgs(typed.Args, 1, nil, span)
		if err != nil {
			return err
		}
		g.instrs.Add(Instruction{Op: OpApplyFilter, Name: typed.Name, A: argc, Span: span})

	case *tt.Test:
		if err := g.compileExpr(typed.Expr); err != nil {
			return err
		}
		argc, err := g.compileCallArgs(typed.Args, 1, nil, span)
		if err != nil {
			return err
		}
		g.instrs.Add(Instruction{Op: OpPerformTest, Name: typed.Name, A: argc, Span: span})

	case *tt.GetAttr:
		if err := g.compileExpr(typed.Expr); err != nil {
			return err
		}
		g.addName(OpGetAttr, typed.Name, span)

	case *tt.GetItem:
		if err := g.compileExpr(typed.Expr); err != nil {
			return err
		}
		if err := g.compileExpr(typed.SubscriptExpr); err != nil {
			return err
		}
		g.add(OpGetItem, span)

	case *tt.Call:
		return g.compileCall(typed, nil)

	case *tt.List:
		if err := g.compileExprs(typed.Items); err != nil {
			return err
		}
		g.addA(OpBuildList, len(typed.Items), span)

	case *tt.Tuple:
		// Only tuples of scalars are folded; nested lists and dicts stay
		// mutable per evaluation.
		if scalarItems(typed.Items) {
			if val, ok := tt.AsConst(typed); ok {
				g.loadConst(val, span)
				return nil
			}
		}
		if err := g.compileExprs(typed.Items); err != nil {
			return err
		}
		g.addA(OpBuildTuple, len(typed.Items), span)

	case *tt.Map:
		for i := range typed.Keys {
			if err := g.compileExpr(typed.Keys[i]); err != nil {
				return err
			}
			if err := g.compileExpr(typed.Values[i]); err != nil {
				return err
			}
		}
		g.addA(OpBuildMap, len(typed.Keys), span)

	default:
		return NewCompileError(g.unit.templateName, span, fmt.Sprintf("unsupported expression %T", expr))
	}
	return nil
}

func (g *CodeGenerator) compileExprs(exprs []tt.Expr) error {
	for _, expr := range exprs {
		if err := g.compileExpr(expr); err != nil {
			return err
		}
	}
	return nil
}

var binOpcodes = map[tt.BinOpKind]Opcode{
	tt.BinOpEq:       OpEq,
	tt.BinOpNe:       OpNe,
	tt.BinOpLt:       OpLt,
	tt.BinOpLte:      OpLte,
	tt.BinOpGt:       OpGt,
	tt.BinOpGte:      OpGte,
	tt.BinOpAdd:      OpAdd,
	tt.BinOpSub:      OpSub,
	tt.BinOpMul:      OpMul,
	tt.BinOpDiv:      OpDiv,
	tt.BinOpFloorDiv: OpIntDiv,
	tt.BinOpRem:      OpRem,
	tt.BinOpPow:      OpPow,
	tt.BinOpConcat:   OpStringConcat,
	tt.BinOpIn:       OpIn,
}

func (g *CodeGenerator) compileBinOp(op *tt.BinOp) error {
	span := op.Span

	if op.Op == tt.BinOpScAnd || op.Op == tt.BinOpScOr {
		g.startScBool()
		if err := g.compileExpr(op.Left); err != nil {
			return err
		}
		g.scBool(op.Op == tt.BinOpScAnd, span)
		if err := g.compileExpr(op.Right); err != nil {
			return err
		}
		g.endScBool()
		return nil
	}

	opcode, found := binOpcodes[op.Op]
	if !found {
		return NewCompileError(g.unit.templateName, span, fmt.Sprintf("unsupported operator %s", op.Op))
	}

	if left, ok := op.Left.(*tt.Const); ok {
		if right, ok := op.Right.(*tt.Const); ok {
			if folded, ok := FoldBinary(opcode, left.Value, right.Value); ok {
				g.loadConst(folded, span)
				return nil
			}
		}
	}

	if err := g.compileExpr(op.Left); err != nil {
		return err
	}
	if err := g.compileExpr(op.Right); err != nil {
		return err
	}
	g.add(opcode, span)
	return nil
}

// FoldBinary evaluates a binary operator over two constants. The second
// return value is false when the operation fails and has to be deferred to
// runtime.
func FoldBinary(op Opcode, a, b value.Value) (value.Value, bool) {
	var result value.Value
	var err error

	switch op {
	case OpAdd:
		result, err = value.Add(a, b)
	case OpSub:
		result, err = value.Sub(a, b)
	case OpMul:
		result, err = value.Mul(a, b)
	case OpDiv:
		result, err = value.Div(a, b)
	case OpIntDiv:
		result, err = value.IntDiv(a, b)
	case OpRem:
		result, err = value.Rem(a, b)
	case OpPow:
		result, err = value.Pow(a, b)
	case OpStringConcat:
		result = value.Concat(a, b)
	case OpEq:
		result = value.FromBool(value.Equal(a, b))
	case OpNe:
		result = value.FromBool(!value.Equal(a, b))
	default:
		return value.Undefined, false
	}
	if err != nil {
		return value.Undefined, false
	}
	return result, true
}

func (g *CodeGenerator) compileCall(call *tt.Call, caller *tt.Macro) error {
	span := call.Span
	callType, name := call.IdentifyCall()

	switch callType {
	case tt.CallTypeFunction:
		argc, err := g.compileCallArgs(call.Args, 0, caller, span)
		if err != nil {
			return err
		}
		if name == "ref" || name == "source" {
			g.compileModelReference(name, call)
		}
		g.instrs.Add(Instruction{Op: OpCallFunction, Name: name, A: argc, Span: span})

	case tt.CallTypeBlock:
		g.addA(OpBeginCapture, CaptureModeCapture, span)
		g.addName(OpCallBlock, name, span)
		g.add(OpEndCapture, span)

	case tt.CallTypeMethod:
		attr := call.Expr.(*tt.GetAttr)
		if err := g.compileExpr(attr.Expr); err != nil {
			return err
		}
		argc, err := g.compileCallArgs(call.Args, 1, caller, span)
		if err != nil {
			return err
		}
		g.instrs.Add(Instruction{Op: OpCallMethod, Name: name, A: argc, Span: span})

	case tt.CallTypeObject:
		if err := g.compileExpr(call.Expr); err != nil {
			return err
		}
		argc, err := g.compileCallArgs(call.Args, 1, caller, span)
		if err != nil {
			return err
		}
		g.addA(OpCallObject, argc, span)
	}
	return nil
}

// compileModelReference records ref()/source() calls whose arguments are
// all string constants. The marker has no runtime effect.
func (g *CodeGenerator) compileModelReference(name string, call *tt.Call) {
	var args []value.Value
	for _, arg := range call.Args {
		if arg.Kind != tt.CallArgPos {
			continue
		}
		c, ok := arg.Value.(*tt.Const)
		if !ok {
			return
		}
		if _, isStr := c.Value.AsString(); !isStr {
			return
		}
		args = append(args, c.Value)
	}
	if len(args) == 0 {
		return
	}
	g.instrs.Add(Instruction{
		Op:   OpModelReference,
		Name: name,
		A:    g.instrs.AddConst(value.FromSlice(args)),
		Span: call.Span,
	})
}

// compileCallArgs pushes call arguments and returns the argument count for
// the call instruction (including extraArgs already on the stack), or
// ArgCountUnpacked when arguments were collected into a single list.
func (g *CodeGenerator) compileCallArgs(args []tt.CallArg, extraArgs int, caller *tt.Macro, span filepos.Span) (int, error) {
	pendingArgs := extraArgs
	argBatches := 0
	hasKwargs := caller != nil

	for _, arg := range args {
		switch arg.Kind {
		case tt.CallArgPos:
			if err := g.compileExpr(arg.Value); err != nil {
				return 0, err
			}
			pendingArgs++
		case tt.CallArgPosSplat:
			if pendingArgs > 0 {
				g.addA(OpBuildList, pendingArgs, span)
				pendingArgs = 0
				argBatches++
			}
			if err := g.compileExpr(arg.Value); err != nil {
				return 0, err
			}
			argBatches++
		case tt.CallArgKwarg, tt.CallArgKwargSplat:
			hasKwargs = true
		}
	}

	if hasKwargs {
		pendingKwargs := 0
		kwargBatches := 0

		for _, arg := range args {
			switch arg.Kind {
			case tt.CallArgKwarg:
				g.loadConst(value.FromString(arg.Name), span)
				if err := g.compileExpr(arg.Value); err != nil {
					return 0, err
				}
				pendingKwargs++
			case tt.CallArgKwargSplat:
				if pendingKwargs > 0 {
					g.addA(OpBuildKwargs, pendingKwargs, span)
					kwargBatches++
					pendingKwargs = 0
				}
				if err := g.compileExpr(arg.Value); err != nil {
					return 0, err
				}
				kwargBatches++
			}
		}

		if caller != nil {
			g.loadConst(value.FromString("caller"), span)
			if _, err := g.compileMacroExpr(caller); err != nil {
				return 0, err
			}
			pendingKwargs++
		}

		if kwargBatches > 0 {
			if pendingKwargs > 0 {
				g.addA(OpBuildKwargs, pendingKwargs, span)
				kwargBatches++
			}
			g.addA(OpMergeKwargs, kwargBatches, span)
		} else {
			g.addA(OpBuildKwargs, pendingKwargs, span)
		}
		pendingArgs++
	}

	if argBatches > 0 {
		if pendingArgs > 0 {
			g.addA(OpBuildList, pendingArgs, span)
			argBatches++
		}
		g.addA(OpUnpackLists, argBatches, span)
		return ArgCountUnpacked, nil
	}
	return pendingArgs, nil
}

func scalarItems(exprs []tt.Expr) bool {
	for _, e := range exprs {
		if _, ok := e.(*tt.Const); !ok {
			return false
		}
	}
	return true
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
