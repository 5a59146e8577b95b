// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package template

import (
	"fmt"
	"strings"

	"carvel.dev/jtt/pkg/filepos"
	"carvel.dev/jtt/pkg/value"
)

type Opcode int

const (
	// EmitRaw writes constant A to the output verbatim
	OpEmitRaw Opcode = iota
	// Emit pops and writes a value to the output
	OpEmit
	OpLoadConst
	OpLookup
	OpStoreLocal
	OpGetAttr
	OpSetAttr
	OpGetItem
	OpSlice
	OpBuildList
	OpBuildTuple
	OpBuildMap
	OpBuildKwargs
	OpMergeKwargs
	OpUnpackList
	OpUnpackLists

	OpAdd
	OpSub
	OpMul
	OpDiv
	OpIntDiv
	OpRem
	OpPow
	OpNeg
	OpNot
	OpEq
	OpNe
	OpLt
	OpLte
	OpGt
	OpGte
	OpIn
	OpStringConcat

	OpJump
	OpJumpIfFalse
	OpJumpIfFalseOrPop
	OpJumpIfTrueOrPop

	OpPushLoop
	OpIterate
	OpPushDidNotIterate
	OpPushWith
	OpPopFrame

	OpDupTop
	OpDiscardTop
	OpSwap
	OpIsUndefined

	OpApplyFilter
	OpPerformTest
	OpCallFunction
	OpCallMethod
	OpCallObject

	OpBeginCapture
	OpEndCapture
	OpPushAutoEscape
	OpPopAutoEscape

	OpBuildMacro
	OpReturn

	OpCallBlock
	OpLoadBlocks
	OpInclude
	OpExportLocals
	OpFastSuper
	OpFastRecurse

	OpModelReference
)

var opcodeNames = map[Opcode]string{
	OpEmitRaw:           "EmitRaw",
	OpEmit:              "Emit",
	OpLoadConst:         "LoadConst",
	OpLookup:            "Lookup",
	OpStoreLocal:        "StoreLocal",
	OpGetAttr:           "GetAttr",
	OpSetAttr:           "SetAttr",
	OpGetItem:           "GetItem",
	OpSlice:             "Slice",
	OpBuildList:         "BuildList",
	OpBuildTuple:        "BuildTuple",
	OpBuildMap:          "BuildMap",
	OpBuildKwargs:       "BuildKwargs",
	OpMergeKwargs:       "MergeKwargs",
	OpUnpackList:        "UnpackList",
	OpUnpackLists:       "UnpackLists",
	OpAdd:               "Add",
	OpSub:               "Sub",
	OpMul:               "Mul",
	OpDiv:               "Div",
	OpIntDiv:            "IntDiv",
	OpRem:               "Rem",
	OpPow:               "Pow",
	OpNeg:               "Neg",
	OpNot:               "Not",
	OpEq:                "Eq",
	OpNe:                "Ne",
	OpLt:                "Lt",
	OpLte:               "Lte",
	OpGt:                "Gt",
	OpGte:               "Gte",
	OpIn:                "In",
	OpStringConcat:      "StringConcat",
	OpJump:              "Jump",
	OpJumpIfFalse:       "JumpIfFalse",
	OpJumpIfFalseOrPop:  "JumpIfFalseOrPop",
	OpJumpIfTrueOrPop:   "JumpIfTrueOrPop",
	OpPushLoop:          "PushLoop",
	OpIterate:           "Iterate",
	OpPushDidNotIterate: "PushDidNotIterate",
	OpPushWith:          "PushWith",
	OpPopFrame:          "PopFrame",
	OpDupTop:            "DupTop",
	OpDiscardTop:        "DiscardTop",
	OpSwap:              "Swap",
	OpIsUndefined:       "IsUndefined",
	OpApplyFilter:       "ApplyFilter",
	OpPerformTest:       "PerformTest",
	OpCallFunction:      "CallFunction",
	OpCallMethod:        "CallMethod",
	OpCallObject:        "CallObject",
	OpBeginCapture:      "BeginCapture",
	OpEndCapture:        "EndCapture",
	OpPushAutoEscape:    "PushAutoEscape",
	OpPopAutoEscape:     "PopAutoEscape",
	OpBuildMacro:        "BuildMacro",
	OpReturn:            "Return",
	OpCallBlock:         "CallBlock",
	OpLoadBlocks:        "LoadBlocks",
	OpInclude:           "Include",
	OpExportLocals:      "ExportLocals",
	OpFastSuper:         "FastSuper",
	OpFastRecurse:       "FastRecurse",
	OpModelReference:    "ModelReference",
}

func (op Opcode) String() string {
	if name, found := opcodeNames[op]; found {
		return name
	}
	return fmt.Sprintf("Opcode(%d)", int(op))
}

// IsJump reports whether A of the instruction is an instruction index.
func (op Opcode) IsJump() bool {
	switch op {
	case OpJump, OpJumpIfFalse, OpJumpIfFalseOrPop, OpJumpIfTrueOrPop, OpIterate:
		return true
	}
	return false
}

const (
	LoopFlagWithLoopVar = 1 << iota
	LoopFlagRecursive
)

const (
	MacroFlagCaller = 1 << iota
	MacroFlagVarargs
	MacroFlagKwargs
)

const (
	CaptureModeCapture = iota
	CaptureModeDiscard
)

// ArgCountUnpacked marks calls whose arguments were collected into a single
// list by UnpackLists.
const ArgCountUnpacked = -1

// Instruction is a single VM operation. Name carries identifiers
// (variables, attributes, filters, macros, blocks); A and B carry constant
// indexes, jump targets, counts or flags depending on Op.
type Instruction struct {
	Op   Opcode
	Name string
	A    int
	B    int
	Span filepos.Span
}

// Instructions is one compiled instruction vector with its constant pool.
type Instructions struct {
	name   string
	code   []Instruction
	consts []value.Value
}

func NewInstructions(name string) *Instructions {
	return &Instructions{name: name}
}

func (i *Instructions) Name() string               { return i.name }
func (i *Instructions) Len() int                   { return len(i.code) }
func (i *Instructions) Code() []Instruction        { return i.code }
func (i *Instructions) Get(idx int) Instruction    { return i.code[idx] }
func (i *Instructions) Const(idx int) value.Value  { return i.consts[idx] }
func (i *Instructions) Consts() []value.Value      { return i.consts }
func (i *Instructions) setTarget(idx, target int)  { i.code[idx].A = target }
func (i *Instructions) Add(instr Instruction) int  { i.code = append(i.code, instr); return len(i.code) - 1 }
func (i *Instructions) AddConst(v value.Value) int { i.consts = append(i.consts, v); return len(i.consts) - 1 }

// AsString renders instruction at idx with its operands resolved.
func (i *Instructions) AsString(idx int) string {
	instr := i.code[idx]
	switch instr.Op {
	case OpEmitRaw, OpLoadConst:
		return fmt.Sprintf("%s %s", instr.Op, i.consts[instr.A].Repr())
	case OpLookup, OpStoreLocal, OpGetAttr, OpSetAttr, OpCallBlock:
		return fmt.Sprintf("%s %s", instr.Op, instr.Name)
	case OpApplyFilter, OpPerformTest, OpCallFunction, OpCallMethod:
		return fmt.Sprintf("%s %s/%s", instr.Op, instr.Name, argCountStr(instr.A))
	case OpCallObject:
		return fmt.Sprintf("%s /%s", instr.Op, argCountStr(instr.A))
	case OpBuildMacro:
		return fmt.Sprintf("%s %s #%d flags=%d", instr.Op, instr.Name, instr.A, instr.B)
	case OpModelReference:
		return fmt.Sprintf("%s %s %s", instr.Op, instr.Name, i.consts[instr.A].Repr())
	case OpJump, OpJumpIfFalse, OpJumpIfFalseOrPop, OpJumpIfTrueOrPop, OpIterate:
		return fmt.Sprintf("%s -> %d", instr.Op, instr.A)
	case OpBuildList, OpBuildTuple, OpBuildMap, OpBuildKwargs, OpMergeKwargs,
		OpUnpackList, OpUnpackLists, OpPushLoop, OpBeginCapture, OpInclude:
		return fmt.Sprintf("%s %d", instr.Op, instr.A)
	}
	return instr.Op.String()
}

func argCountStr(n int) string {
	if n == ArgCountUnpacked {
		return "*"
	}
	return fmt.Sprintf("%d", n)
}

// DebugString lists all instructions one per line.
func (i *Instructions) DebugString() string {
	var lines []string
	for idx := range i.code {
		lines = append(lines, fmt.Sprintf("%4d: %s", idx, i.AsString(idx)))
	}
	return strings.Join(lines, "\n")
}
