// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package vm

import (
	"fmt"

	"carvel.dev/jtt/pkg/template"
	"carvel.dev/jtt/pkg/value"
)

const (
	loopFlagWithLoopVar = template.LoopFlagWithLoopVar
	loopFlagRecursive   = template.LoopFlagRecursive
	macroFlagCaller     = template.MacroFlagCaller
	macroFlagVarargs    = template.MacroFlagVarargs
	macroFlagKwargs     = template.MacroFlagKwargs
)

type stack struct {
	items []value.Value
}

func (s *stack) push(v value.Value) { s.items = append(s.items, v) }

func (s *stack) pop() value.Value {
	if len(s.items) == 0 {
		panic("[BUG] operand stack underflow")
	}
	v := s.items[len(s.items)-1]
	s.items = s.items[:len(s.items)-1]
	return v
}

func (s *stack) peek() value.Value { return s.items[len(s.items)-1] }

// popN removes n values and returns them in push order.
func (s *stack) popN(n int) []value.Value {
	if n > len(s.items) {
		panic("[BUG] operand stack underflow")
	}
	result := make([]value.Value, n)
	copy(result, s.items[len(s.items)-n:])
	s.items = s.items[:len(s.items)-n]
	return result
}

func (s *stack) popArgs(argc int) ([]value.Value, error) {
	if argc != template.ArgCountUnpacked {
		return s.popN(argc), nil
	}
	args, ok := s.pop().AsSlice()
	if !ok {
		return nil, value.NewError(value.ErrCannotUnpack, "unpacked arguments are not a list")
	}
	return args, nil
}

// eval executes one instruction vector. initial is the operand stack to
// start with (macro arguments).
func (st *State) eval(code codeUnit, initial []value.Value) error {
	prevTpl := st.tpl
	st.tpl = code.tpl
	defer func() { st.tpl = prevTpl }()

	stk := &stack{items: initial}
	instrs := code.instrs
	undefined := st.vm.opts.Undefined

	var parent *codeUnit
	var nextRecursion *recursionJump
	var autoEscapeStack []bool

	pc := 0
	for {
		if pc >= instrs.Len() {
			if parent == nil {
				return nil
			}
			// output of an extending template is discarded
			st.out.endCapture(false)
			code, parent = *parent, nil
			st.tpl = code.tpl
			instrs = code.instrs
			pc = 0
			continue
		}

		instr := instrs.Get(pc)
		fail := func(err error) error { return wrapError(err, code.tpl.Name(), instr.Span) }

		switch instr.Op {
		case template.OpEmitRaw:
			raw, _ := instrs.Const(instr.A).AsString()
			st.out.WriteString(raw)

		case template.OpEmit:
			if err := st.emit(stk.pop()); err != nil {
				return fail(err)
			}

		case template.OpLoadConst:
			stk.push(instrs.Const(instr.A))

		case template.OpLookup:
			val, _ := st.lookup(instr.Name)
			stk.push(val)

		case template.OpStoreLocal:
			st.frames[len(st.frames)-1].set(instr.Name, stk.pop())

		case template.OpGetAttr:
			val, err := st.getAttr(stk.pop(), instr.Name)
			if err != nil {
				return fail(err)
			}
			stk.push(val)

		case template.OpSetAttr:
			target := stk.pop()
			val := stk.pop()
			obj, _ := target.AsObject()
			setter, ok := obj.(value.AttributeSetter)
			if !ok {
				return fail(value.NewError(value.ErrInvalidOperation,
					fmt.Sprintf("can only assign to namespaces, not %s", target.Kind())))
			}
			if err := setter.SetAttr(instr.Name, val); err != nil {
				return fail(err)
			}

		case template.OpGetItem:
			key := stk.pop()
			val, err := st.getItem(stk.pop(), key)
			if err != nil {
				return fail(err)
			}
			stk.push(val)

		case template.OpSlice:
			step := stk.pop()
			stop := stk.pop()
			start := stk.pop()
			val, err := value.Slice(stk.pop(), start, stop, step)
			if err != nil {
				return fail(err)
			}
			stk.push(val)

		case template.OpBuildList:
			n := instr.A
			if n == template.ArgCountUnpacked {
				count, _ := stk.pop().AsInt()
				n = int(count)
			}
			stk.push(value.FromObject(value.NewMutableSeq(stk.popN(n))))

		case template.OpBuildTuple:
			stk.push(value.FromSlice(stk.popN(instr.A)))

		case template.OpBuildMap:
			stk.push(value.FromObject(value.NewMutableMap(pairsToMap(stk.popN(2 * instr.A)))))

		case template.OpBuildKwargs:
			stk.push(value.FromObject(value.NewKwargs(pairsToMap(stk.popN(2 * instr.A)))))

		case template.OpMergeKwargs:
			merged, err := mergeKwargs(stk.popN(instr.A))
			if err != nil {
				return fail(err)
			}
			stk.push(value.FromObject(merged))

		case template.OpUnpackList:
			if err := unpackList(stk, instr.A); err != nil {
				return fail(err)
			}

		case template.OpUnpackLists:
			var all []value.Value
			for _, part := range stk.popN(instr.A) {
				items, err := value.Collect(part)
				if err != nil {
					return fail(value.NewError(value.ErrCannotUnpack, fmt.Sprintf("%s is not iterable", part.Kind())))
				}
				all = append(all, items...)
			}
			stk.push(value.FromSlice(all))

		case template.OpAdd, template.OpSub, template.OpMul, template.OpDiv, template.OpIntDiv,
			template.OpRem, template.OpPow:
			b := stk.pop()
			a := stk.pop()
			val, err := arith(instr.Op, a, b)
			if err != nil {
				return fail(err)
			}
			stk.push(val)

		case template.OpNeg:
			val, err := value.Neg(stk.pop())
			if err != nil {
				return fail(err)
			}
			stk.push(val)

		case template.OpNot:
			truth, err := undefined.isTrue(stk.pop())
			if err != nil {
				return fail(err)
			}
			stk.push(value.FromBool(!truth))

		case template.OpEq:
			b := stk.pop()
			stk.push(value.FromBool(value.Equal(stk.pop(), b)))

		case template.OpNe:
			b := stk.pop()
			stk.push(value.FromBool(!value.Equal(stk.pop(), b)))

		case template.OpLt, template.OpLte, template.OpGt, template.OpGte:
			b := stk.pop()
			a := stk.pop()
			cmp, err := value.Compare(a, b)
			if err != nil {
				return fail(err)
			}
			stk.push(value.FromBool(compareResult(instr.Op, cmp)))

		case template.OpIn:
			container := stk.pop()
			found, err := value.Contains(container, stk.pop())
			if err != nil {
				return fail(err)
			}
			stk.push(value.FromBool(found))

		case template.OpStringConcat:
			b := stk.pop()
			stk.push(value.Concat(stk.pop(), b))

		case template.OpJump:
			pc = instr.A
			continue

		case template.OpJumpIfFalse:
			truth, err := undefined.isTrue(stk.pop())
			if err != nil {
				return fail(err)
			}
			if !truth {
				pc = instr.A
				continue
			}

		case template.OpJumpIfFalseOrPop, template.OpJumpIfTrueOrPop:
			truth, err := undefined.isTrue(stk.peek())
			if err != nil {
				return fail(err)
			}
			if truth == (instr.Op == template.OpJumpIfTrueOrPop) {
				pc = instr.A
				continue
			}
			stk.pop()

		case template.OpPushLoop:
			if err := st.pushLoop(stk.pop(), instr.A, pc, nextRecursion); err != nil {
				return fail(err)
			}
			nextRecursion = nil

		case template.OpIterate:
			if err := st.ctx.Err(); err != nil {
				return fail(err)
			}
			item, ok := st.currentLoop().object.next()
			if !ok {
				pc = instr.A
				continue
			}
			stk.push(item)

		case template.OpPushDidNotIterate:
			stk.push(value.FromBool(st.currentLoop().object.didNotIterate()))

		case template.OpPushWith:
			if err := st.pushFrame(newFrame()); err != nil {
				return fail(err)
			}

		case template.OpPopFrame:
			f := st.popFrame()
			if f.loop != nil && f.loop.recursion != nil {
				jump := f.loop.recursion
				pc = jump.target
				if jump.capture {
					stk.push(st.out.endCapture(st.autoEscape))
				}
				continue
			}

		case template.OpDupTop:
			stk.push(stk.peek())

		case template.OpDiscardTop:
			stk.pop()

		case template.OpSwap:
			a := stk.pop()
			b := stk.pop()
			stk.push(a)
			stk.push(b)

		case template.OpIsUndefined:
			stk.push(value.FromBool(stk.pop().IsUndefined()))

		case template.OpApplyFilter:
			args, err := stk.popArgs(instr.A)
			if err != nil {
				return fail(err)
			}
			val, err := st.applyFilter(instr.Name, args)
			if err != nil {
				return fail(err)
			}
			stk.push(val)

		case template.OpPerformTest:
			args, err := stk.popArgs(instr.A)
			if err != nil {
				return fail(err)
			}
			passed, err := st.performTest(instr.Name, args)
			if err != nil {
				return fail(err)
			}
			stk.push(value.FromBool(passed))

		case template.OpCallFunction:
			args, err := stk.popArgs(instr.A)
			if err != nil {
				return fail(err)
			}

			switch instr.Name {
			case "super":
				if len(args) != 0 {
					return fail(value.NewError(value.ErrTooManyArguments, "super() takes no arguments"))
				}
				val, err := st.super()
				if err != nil {
					return fail(err)
				}
				stk.push(val)

			case "loop":
				if len(args) != 1 {
					return fail(value.NewError(value.ErrInvalidArgument, "loop() takes one argument"))
				}
				target, err := st.loopRecursionTarget()
				if err != nil {
					return fail(err)
				}
				// PushLoop at target consumes the argument
				stk.push(args[0])
				nextRecursion = &recursionJump{target: pc + 1, capture: true}
				st.out.beginCapture(template.CaptureModeCapture)
				pc = target
				continue

			case "return":
				ret := &returnSignal{value: value.None}
				if len(args) > 0 {
					ret.value = args[0]
				}
				return ret

			default:
				val, err := st.callFunction(instr.Name, args)
				if err != nil {
					return fail(err)
				}
				stk.push(val)
			}

		case template.OpCallMethod:
			args, err := stk.popArgs(instr.A)
			if err != nil {
				return fail(err)
			}
			val, err := st.callMethod(args[0], instr.Name, args[1:])
			if err != nil {
				return fail(err)
			}
			stk.push(val)

		case template.OpCallObject:
			args, err := stk.popArgs(instr.A)
			if err != nil {
				return fail(err)
			}
			if args[0].IsUndefined() && undefined == UndefinedChainable {
				stk.push(value.Undefined)
				break
			}
			val, err := value.Call(st, args[0], args[1:])
			if err != nil {
				return fail(err)
			}
			stk.push(val)

		case template.OpBeginCapture:
			st.out.beginCapture(instr.A)

		case template.OpEndCapture:
			stk.push(st.out.endCapture(st.autoEscape))

		case template.OpPushAutoEscape:
			enabled, err := deriveAutoEscape(stk.pop())
			if err != nil {
				return fail(err)
			}
			autoEscapeStack = append(autoEscapeStack, st.autoEscape)
			st.autoEscape = enabled

		case template.OpPopAutoEscape:
			st.autoEscape = autoEscapeStack[len(autoEscapeStack)-1]
			autoEscapeStack = autoEscapeStack[:len(autoEscapeStack)-1]

		case template.OpBuildMacro:
			for _, l := range st.listeners {
				l.OnDefinition(instr.Name)
			}
			stk.push(value.FromObject(newMacro(st, code.tpl, code.tpl.Macro(instr.A), instr.B)))

		case template.OpReturn:
			return nil

		case template.OpCallBlock:
			if parent == nil && !st.out.isDiscarding() {
				if err := st.callBlock(instr.Name); err != nil {
					return fail(err)
				}
			}

		case template.OpLoadBlocks:
			name := stk.pop()
			if parent != nil {
				return fail(value.NewError(value.ErrInvalidOperation, "tried to extend a second time in a template"))
			}
			parentCode, err := st.loadBlocks(name)
			if err != nil {
				return fail(err)
			}
			parent = &parentCode
			st.out.beginCapture(template.CaptureModeDiscard)

		case template.OpInclude:
			if err := st.include(stk.pop(), instr.A == 1); err != nil {
				return fail(err)
			}

		case template.OpExportLocals:
			stk.push(value.FromMap(st.frames[len(st.frames)-1].export()))

		case template.OpFastSuper:
			val, err := st.super()
			if err != nil {
				return fail(err)
			}
			st.out.WriteString(val.String())

		case template.OpFastRecurse:
			target, err := st.loopRecursionTarget()
			if err != nil {
				return fail(err)
			}
			nextRecursion = &recursionJump{target: pc + 1}
			pc = target
			continue

		case template.OpModelReference:
			st.notifyModelReference(instr.Name, instrs.Const(instr.A), instr)

		default:
			panic(fmt.Sprintf("[BUG] unknown opcode %s", instr.Op))
		}

		pc++
	}
}

func (st *State) notifyModelReference(kind string, args value.Value, instr template.Instruction) {
	if len(st.listeners) == 0 {
		return
	}
	items, _ := args.AsSlice()
	var strs []string
	for _, item := range items {
		s, _ := item.AsString()
		strs = append(strs, s)
	}
	for _, l := range st.listeners {
		l.OnModelReference(kind, strs, instr.Span)
	}
}

func arith(op template.Opcode, a, b value.Value) (value.Value, error) {
	switch op {
	case template.OpAdd:
		return value.Add(a, b)
	case template.OpSub:
		return value.Sub(a, b)
	case template.OpMul:
		return value.Mul(a, b)
	case template.OpDiv:
		return value.Div(a, b)
	case template.OpIntDiv:
		return value.IntDiv(a, b)
	case template.OpRem:
		return value.Rem(a, b)
	case template.OpPow:
		return value.Pow(a, b)
	}
	panic(fmt.Sprintf("[BUG] not an arithmetic opcode %s", op))
}

func compareResult(op template.Opcode, cmp int) bool {
	switch op {
	case template.OpLt:
		return cmp < 0
	case template.OpLte:
		return cmp <= 0
	case template.OpGt:
		return cmp > 0
	default:
		return cmp >= 0
	}
}

func pairsToMap(items []value.Value) *value.Map {
	m := value.NewMap()
	for i := 0; i+1 < len(items); i += 2 {
		m.Set(items[i], items[i+1])
	}
	return m
}

func mergeKwargs(parts []value.Value) (*value.Kwargs, error) {
	merged := value.NewMap()
	for _, part := range parts {
		var src *value.Map
		if kw, ok := value.AsObjectOf[*value.Kwargs](part); ok {
			src = kw.AsMap()
		} else if m, ok := part.AsMap(); ok {
			src = m
		} else {
			return nil, value.NewError(value.ErrInvalidArgument,
				fmt.Sprintf("keyword argument splat requires a map, got %s", part.Kind()))
		}
		src.Iterate(func(k, v value.Value) { merged.Set(k, v) })
	}
	return value.NewKwargs(merged), nil
}

// unpackList pushes items of the popped iterable so that the first item
// ends up on top.
func unpackList(stk *stack, count int) error {
	top := stk.pop()
	items, err := value.Collect(top)
	if err != nil {
		return value.NewError(value.ErrCannotUnpack, fmt.Sprintf("%s is not iterable", top.Kind()))
	}
	if len(items) != count {
		return value.NewError(value.ErrCannotUnpack,
			fmt.Sprintf("sequence of wrong length (expected %d, got %d)", count, len(items)))
	}
	for i := len(items) - 1; i >= 0; i-- {
		stk.push(items[i])
	}
	return nil
}
