// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package vm

import (
	"fmt"
	"io"

	"carvel.dev/jtt/pkg/value"
)

type recursionJump struct {
	target  int
	capture bool
}

type loopState struct {
	withLoopVar bool
	// recurseTarget is the PushLoop instruction of a recursive loop, -1 otherwise
	recurseTarget int
	// recursion is where to continue once a recursive iteration finishes
	recursion *recursionJump
	object    *Loop
}

// Loop is the `loop` variable inside for loops.
type Loop struct {
	items       []value.Value
	idx         int
	depth       int
	lastChanged []value.Value
	changedSet  bool
}

var _ value.AttributeGetter = &Loop{}
var _ value.MethodCallable = &Loop{}
var _ value.Enumerable = &Loop{}
var _ value.Renderer = &Loop{}

var loopAttrs = []string{"index", "index0", "revindex", "revindex0", "first", "last",
	"length", "previtem", "nextitem", "depth", "depth0"}

func newLoop(items []value.Value, depth int) *Loop {
	return &Loop{items: items, idx: -1, depth: depth}
}

func (l *Loop) next() (value.Value, bool) {
	l.idx++
	if l.idx >= len(l.items) {
		return value.Undefined, false
	}
	return l.items[l.idx], true
}

func (l *Loop) didNotIterate() bool { return len(l.items) == 0 }

func (l *Loop) Index0() int { return l.idx }
func (l *Loop) Length() int { return len(l.items) }
func (l *Loop) Depth0() int { return l.depth }

func (l *Loop) Repr() value.ObjectRepr { return value.ReprPlain }

func (l *Loop) GetValue(key value.Value) (value.Value, bool) {
	name, ok := key.AsString()
	if !ok {
		return value.Undefined, false
	}
	length := int64(len(l.items))
	idx := int64(l.idx)

	switch name {
	case "index":
		return value.FromInt(idx + 1), true
	case "index0":
		return value.FromInt(idx), true
	case "revindex":
		return value.FromInt(length - idx), true
	case "revindex0":
		return value.FromInt(length - idx - 1), true
	case "first":
		return value.FromBool(idx == 0), true
	case "last":
		return value.FromBool(idx == length-1), true
	case "length":
		return value.FromInt(length), true
	case "previtem":
		if idx > 0 && idx-1 < length {
			return l.items[idx-1], true
		}
		return value.Undefined, true
	case "nextitem":
		if idx+1 < length {
			return l.items[idx+1], true
		}
		return value.Undefined, true
	case "depth":
		return value.FromInt(int64(l.depth) + 1), true
	case "depth0":
		return value.FromInt(int64(l.depth)), true
	}
	return value.Undefined, false
}

func (l *Loop) Enumerate() value.Enumerator { return value.StrEnumerator(loopAttrs...) }

func (l *Loop) CallMethod(_ value.State, name string, args []value.Value) (value.Value, error) {
	switch name {
	case "cycle":
		if len(args) == 0 {
			return value.Undefined, value.NewError(value.ErrMissingArgument, "loop.cycle requires at least one argument")
		}
		return args[l.idx%len(args)], nil

	case "changed":
		changed := !l.changedSet || !value.Equal(value.FromSlice(args), value.FromSlice(l.lastChanged))
		l.lastChanged = append([]value.Value(nil), args...)
		l.changedSet = true
		return value.FromBool(changed), nil
	}
	return value.Undefined, value.UnknownMethodError(value.FromObject(l), name)
}

func (l *Loop) Render(w io.Writer) error {
	_, err := fmt.Fprintf(w, "<loop %d/%d>", l.idx+1, len(l.items))
	return err
}

func (st *State) pushLoop(iterable value.Value, flags, pc int, recursion *recursionJump) error {
	items, err := st.vm.opts.Undefined.iterate(iterable)
	if err != nil {
		return err
	}

	depth := 0
	if current := st.currentLoop(); current != nil && current.recurseTarget >= 0 {
		depth = current.object.depth + 1
	}

	ls := &loopState{
		withLoopVar:   flags&loopFlagWithLoopVar != 0,
		recurseTarget: -1,
		recursion:     recursion,
		object:        newLoop(items, depth),
	}
	if flags&loopFlagRecursive != 0 {
		ls.recurseTarget = pc
	}

	f := newFrame()
	f.loop = ls
	return st.pushFrame(f)
}

func (st *State) loopRecursionTarget() (int, error) {
	current := st.currentLoop()
	if current == nil {
		return 0, value.NewError(value.ErrInvalidOperation, "cannot recurse outside of loop")
	}
	if current.recurseTarget < 0 {
		return 0, value.NewError(value.ErrInvalidOperation, "cannot recurse outside of recursive loop")
	}
	return current.recurseTarget, nil
}
