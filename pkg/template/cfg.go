// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package template

import (
	"fmt"
	"sort"
	"strings"
)

type EdgeKind int

const (
	EdgeFallThrough EdgeKind = iota
	EdgeUncond
	EdgeCondTrue
	EdgeCondFalse
)

func (k EdgeKind) String() string {
	switch k {
	case EdgeFallThrough:
		return "FallThrough"
	case EdgeUncond:
		return "Uncond"
	case EdgeCondTrue:
		return "Cond(true)"
	case EdgeCondFalse:
		return "Cond(false)"
	default:
		return "?"
	}
}

type Edge struct {
	To   int
	Kind EdgeKind
}

// BasicBlock covers instructions Start..End (inclusive).
type BasicBlock struct {
	ID           int
	Start        int
	End          int
	Successors   []Edge
	Predecessors []int
}

// CFG is the control flow graph of a single instruction vector.
type CFG struct {
	Blocks  []*BasicBlock
	blockOf []int
}

// BlockOf returns id of the block containing instruction idx.
func (c *CFG) BlockOf(idx int) int { return c.blockOf[idx] }

// Entry is always the block containing the first instruction.
func (c *CFG) Entry() int { return 0 }

func (c *CFG) BlockInstructions(id int, instrs *Instructions) []Instruction {
	b := c.Blocks[id]
	return instrs.Code()[b.Start : b.End+1]
}

func isBlockTerminator(op Opcode) bool {
	switch op {
	case OpJump, OpJumpIfFalse, OpJumpIfFalseOrPop, OpJumpIfTrueOrPop,
		OpIterate, OpFastRecurse, OpPopFrame, OpReturn:
		return true
	}
	return false
}

func branchTargets(idx int, instr Instruction) []Edge {
	switch instr.Op {
	case OpJump:
		return []Edge{{instr.A, EdgeUncond}}
	case OpFastRecurse:
		// recursion re-enters the loop head
		return []Edge{{0, EdgeUncond}}
	case OpIterate, OpJumpIfFalse, OpJumpIfFalseOrPop:
		return []Edge{{idx + 1, EdgeCondTrue}, {instr.A, EdgeCondFalse}}
	case OpJumpIfTrueOrPop:
		return []Edge{{instr.A, EdgeCondTrue}, {idx + 1, EdgeCondFalse}}
	case OpReturn:
		return nil
	default:
		return []Edge{{idx + 1, EdgeFallThrough}}
	}
}

// BuildCFG splits instructions into basic blocks. Leaders are the first
// instruction, every branch target and every instruction following a
// terminator.
func BuildCFG(instrs *Instructions) *CFG {
	code := instrs.Code()
	cfg := &CFG{blockOf: make([]int, len(code))}
	if len(code) == 0 {
		return cfg
	}

	leaderSet := map[int]struct{}{0: {}}
	for idx, instr := range code {
		for _, edge := range branchTargets(idx, instr) {
			if edge.Kind != EdgeFallThrough && edge.To >= 0 && edge.To < len(code) {
				leaderSet[edge.To] = struct{}{}
			}
		}
		if isBlockTerminator(instr.Op) && idx+1 < len(code) {
			leaderSet[idx+1] = struct{}{}
		}
	}

	var leaders []int
	for idx := range leaderSet {
		leaders = append(leaders, idx)
	}
	sort.Ints(leaders)

	for i, start := range leaders {
		end := len(code) - 1
		if i+1 < len(leaders) {
			end = leaders[i+1] - 1
		}
		cfg.Blocks = append(cfg.Blocks, &BasicBlock{ID: i, Start: start, End: end})
		for idx := start; idx <= end; idx++ {
			cfg.blockOf[idx] = i
		}
	}

	for _, block := range cfg.Blocks {
		for _, edge := range branchTargets(block.End, code[block.End]) {
			if edge.To >= 0 && edge.To < len(code) {
				block.Successors = append(block.Successors, Edge{cfg.blockOf[edge.To], edge.Kind})
			}
		}
	}

	for _, from := range cfg.Blocks {
		for _, edge := range from.Successors {
			to := cfg.Blocks[edge.To]
			to.Predecessors = append(to.Predecessors, from.ID)
		}
	}

	return cfg
}

// DOT renders the graph in graphviz format.
func (c *CFG) DOT() string {
	var sb strings.Builder
	sb.WriteString("digraph cfg {  node [shape=box];")
	for _, b := range c.Blocks {
		fmt.Fprintf(&sb, "  B%d [label=\"B%d\"];", b.ID, b.ID)
		for _, edge := range b.Successors {
			fmt.Fprintf(&sb, "  B%d -> B%d [label=\"%s\"];", b.ID, edge.To, edge.Kind)
		}
	}
	sb.WriteString("}")
	return sb.String()
}

// Dump lists instructions grouped by block.
func (c *CFG) Dump(instrs *Instructions) string {
	var sb strings.Builder
	for _, b := range c.Blocks {
		fmt.Fprintf(&sb, "Block B%d (%d..=%d):\n", b.ID, b.Start, b.End)
		for idx := b.Start; idx <= b.End; idx++ {
			fmt.Fprintf(&sb, "  %4d: %s\n", idx, instrs.AsString(idx))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
