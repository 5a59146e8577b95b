// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package vm

import (
	"context"
	"errors"

	"carvel.dev/jtt/pkg/template"
	"carvel.dev/jtt/pkg/value"
)

// DefaultRecursionLimit bounds nesting of macro calls, includes, blocks and
// frames within one render.
const DefaultRecursionLimit = 500

// Resolver provides values for names not found in frames or globals.
type Resolver interface {
	Resolve(st *State, name string) (value.Value, bool)
}

// Options configure a VM. They are read-only once the VM is created and may
// be shared by concurrent renders.
type Options struct {
	Loader         template.CompiledTemplateLoader
	Globals        map[string]value.Value
	Filters        map[string]value.Value
	Tests          map[string]value.Value
	Resolver       Resolver
	Undefined      UndefinedBehavior
	AutoEscape     bool
	RecursionLimit int
}

type VM struct {
	opts Options
}

func New(opts Options) *VM {
	if opts.Loader == nil {
		opts.Loader = template.MapCompiledTemplateLoader{}
	}
	if opts.RecursionLimit <= 0 {
		opts.RecursionLimit = DefaultRecursionLimit
	}
	return &VM{opts: opts}
}

func (vm *VM) Options() Options { return vm.opts }

// Render executes tpl against root. On failure the error is a *RenderError
// carrying the output produced so far.
func (vm *VM) Render(ctx context.Context, tpl *template.CompiledTemplate, root *value.Map, listeners ...Listener) (string, error) {
	st := vm.newState(ctx, tpl, root, listeners)

	err := st.eval(codeUnit{tpl, tpl.Instructions()}, nil)
	out := st.out.base()

	if err != nil {
		var ret *returnSignal
		if errors.As(err, &ret) {
			return out, nil
		}
		return out, finishRenderError(err, tpl.Name(), out)
	}
	return out, nil
}

// Module evaluates tpl for its top level definitions (macros, set
// variables). Output is discarded.
func (vm *VM) Module(ctx context.Context, tpl *template.CompiledTemplate, root *value.Map, listeners ...Listener) (*value.Map, error) {
	st := vm.newState(ctx, tpl, root, listeners)
	st.out.beginCapture(template.CaptureModeDiscard)

	err := st.eval(codeUnit{tpl, tpl.Instructions()}, nil)
	if err != nil {
		var ret *returnSignal
		if !errors.As(err, &ret) {
			return nil, finishRenderError(err, tpl.Name(), "")
		}
	}
	return st.frames[0].export(), nil
}

func (vm *VM) newState(ctx context.Context, tpl *template.CompiledTemplate, root *value.Map, listeners []Listener) *State {
	if ctx == nil {
		ctx = context.Background()
	}
	if root == nil {
		root = value.NewMap()
	}
	return &State{
		vm:         vm,
		ctx:        ctx,
		tpl:        tpl,
		root:       root,
		frames:     []*frame{newRootFrame(root)},
		blocks:     prepareBlocks(tpl),
		loaded:     map[string]struct{}{tpl.Name(): {}},
		autoEscape: vm.opts.AutoEscape,
		out:        newOutput(),
		listeners:  listeners,
		modules:    map[moduleKey]*value.Map{},
	}
}

func finishRenderError(err error, tplName, out string) error {
	var renderErr *RenderError
	if errors.As(err, &renderErr) {
		renderErr.Output = out
		return err
	}
	return &RenderError{Template: tplName, Err: err, Output: out}
}
