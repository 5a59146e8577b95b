// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package vm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"carvel.dev/jtt/pkg/spell"
	"carvel.dev/jtt/pkg/template"
	"carvel.dev/jtt/pkg/value"
)

type frame struct {
	vars  map[string]value.Value
	order []string
	// base is the read-only root context of the bottom frame
	base *value.Map
	loop *loopState
}

func newFrame() *frame { return &frame{vars: map[string]value.Value{}} }

func newRootFrame(root *value.Map) *frame {
	f := newFrame()
	f.base = root
	return f
}

func (f *frame) get(name string) (value.Value, bool) {
	if f.loop != nil && f.loop.withLoopVar && name == "loop" {
		return value.FromObject(f.loop.object), true
	}
	if val, found := f.vars[name]; found {
		return val, true
	}
	if f.base != nil {
		return f.base.Get(value.FromString(name))
	}
	return value.Undefined, false
}

func (f *frame) set(name string, val value.Value) {
	if _, found := f.vars[name]; !found {
		f.order = append(f.order, name)
	}
	f.vars[name] = val
}

// export returns variables set in this frame in assignment order.
func (f *frame) export() *value.Map {
	result := value.NewMap()
	for _, name := range f.order {
		result.SetString(name, f.vars[name])
	}
	return result
}

type codeUnit struct {
	tpl    *template.CompiledTemplate
	instrs *template.Instructions
}

// blockStack holds a block's implementations, most derived template first.
type blockStack struct {
	layers []codeUnit
	depth  int
}

func (b *blockStack) current() codeUnit { return b.layers[b.depth] }

func prepareBlocks(tpl *template.CompiledTemplate) map[string]*blockStack {
	result := map[string]*blockStack{}
	for _, name := range tpl.BlockNames() {
		result[name] = &blockStack{layers: []codeUnit{{tpl, tpl.Blocks()[name]}}}
	}
	return result
}

type moduleKey struct {
	name string
	root *value.Map
}

// State is the execution state of one render. It is handed to host
// functions as value.State and must not be used from other goroutines.
type State struct {
	vm   *VM
	ctx  context.Context
	tpl  *template.CompiledTemplate
	root *value.Map

	frames       []*frame
	blocks       map[string]*blockStack
	currentBlock string
	loaded       map[string]struct{}
	autoEscape   bool
	depth        int
	out          *output
	listeners    []Listener
	modules      map[moduleKey]*value.Map
}

var _ value.State = &State{}

func (st *State) Context() context.Context { return st.ctx }

// TemplateName is the name of the template owning the executing code.
func (st *State) TemplateName() string { return st.tpl.Name() }

func (st *State) Lookup(name string) value.Value {
	val, _ := st.lookup(name)
	return val
}

// Root is the context the render was started with.
func (st *State) Root() *value.Map { return st.root }

func (st *State) AutoEscape() bool { return st.autoEscape }

func (st *State) UndefinedBehavior() UndefinedBehavior { return st.vm.opts.Undefined }

func (st *State) Listeners() []Listener { return st.listeners }

func (st *State) Filter(name string) (value.Value, bool) {
	f, found := st.vm.opts.Filters[name]
	return f, found
}

func (st *State) Test(name string) (value.Value, bool) {
	t, found := st.vm.opts.Tests[name]
	return t, found
}

// CurrentLoop returns the innermost loop object, if any.
func (st *State) CurrentLoop() (*Loop, bool) {
	if ls := st.currentLoop(); ls != nil {
		return ls.object, true
	}
	return nil, false
}

func (st *State) lookup(name string) (value.Value, bool) {
	for i := len(st.frames) - 1; i >= 0; i-- {
		if val, found := st.frames[i].get(name); found {
			return val, true
		}
	}
	if val, found := st.vm.opts.Globals[name]; found {
		return val, true
	}
	if st.vm.opts.Resolver != nil {
		if val, found := st.vm.opts.Resolver.Resolve(st, name); found {
			return val, true
		}
	}
	return value.Undefined, false
}

func (st *State) pushFrame(f *frame) error {
	if len(st.frames) >= st.vm.opts.RecursionLimit {
		return recursionLimitError()
	}
	st.frames = append(st.frames, f)
	return nil
}

func (st *State) popFrame() *frame {
	f := st.frames[len(st.frames)-1]
	st.frames = st.frames[:len(st.frames)-1]
	return f
}

func (st *State) currentLoop() *loopState {
	for i := len(st.frames) - 1; i >= 0; i-- {
		if st.frames[i].loop != nil {
			return st.frames[i].loop
		}
	}
	return nil
}

func (st *State) enter() error {
	if st.depth >= st.vm.opts.RecursionLimit {
		return recursionLimitError()
	}
	st.depth++
	return nil
}

func (st *State) leave() { st.depth-- }

func (st *State) findTemplate(name value.Value) (*template.CompiledTemplate, error) {
	tplName, ok := name.AsString()
	if !ok {
		return nil, value.NewError(value.ErrInvalidOperation, "template name was not a string")
	}
	return st.vm.opts.Loader.FindCompiledTemplate(tplName)
}

// withTemplate runs fn with blocks and inheritance tracking of tpl.
func (st *State) withTemplate(tpl *template.CompiledTemplate, fn func() error) error {
	if err := st.enter(); err != nil {
		return err
	}
	defer st.leave()

	prevBlocks, prevLoaded, prevBlock := st.blocks, st.loaded, st.currentBlock
	st.blocks = prepareBlocks(tpl)
	st.loaded = map[string]struct{}{tpl.Name(): {}}
	st.currentBlock = ""

	err := fn()

	st.blocks, st.loaded, st.currentBlock = prevBlocks, prevLoaded, prevBlock
	return err
}

func (st *State) include(name value.Value, ignoreMissing bool) error {
	choices := []value.Value{name}
	if items, ok := name.AsSlice(); ok {
		choices = items
	}

	var tried []string
	for _, choice := range choices {
		tpl, err := st.findTemplate(choice)
		if err != nil {
			var notFound template.TemplateNotFoundError
			if errors.As(err, &notFound) {
				tried = append(tried, notFound.Name)
				continue
			}
			return err
		}
		return st.withTemplate(tpl, func() error {
			return st.eval(codeUnit{tpl, tpl.Instructions()}, nil)
		})
	}

	if len(tried) == 0 || ignoreMissing {
		return nil
	}
	if len(tried) == 1 {
		return template.TemplateNotFoundError{Name: tried[0]}
	}
	return fmt.Errorf("none of the templates to include exist: %s", strings.Join(tried, ", "))
}

// loadBlocks registers blocks of the extended template and returns its
// main code which runs after the current template finishes.
func (st *State) loadBlocks(name value.Value) (codeUnit, error) {
	if tplName, ok := name.AsString(); ok {
		if _, seen := st.loaded[tplName]; seen {
			return codeUnit{}, value.NewError(value.ErrInvalidOperation,
				fmt.Sprintf("cycle in template inheritance: '%s' was referenced more than once", tplName))
		}
	}
	tpl, err := st.findTemplate(name)
	if err != nil {
		return codeUnit{}, err
	}
	st.loaded[tpl.Name()] = struct{}{}

	for _, blockName := range tpl.BlockNames() {
		bs, found := st.blocks[blockName]
		if !found {
			bs = &blockStack{}
			st.blocks[blockName] = bs
		}
		bs.layers = append(bs.layers, codeUnit{tpl, tpl.Blocks()[blockName]})
	}
	return codeUnit{tpl, tpl.Instructions()}, nil
}

func (st *State) callBlock(name string) error {
	bs, found := st.blocks[name]
	if !found {
		return value.NewError(value.ErrUnknownBlock, fmt.Sprintf("block '%s' not found", name))
	}
	if err := st.enter(); err != nil {
		return err
	}
	defer st.leave()

	prevBlock := st.currentBlock
	st.currentBlock = name
	defer func() { st.currentBlock = prevBlock }()

	if err := st.pushFrame(newFrame()); err != nil {
		return err
	}
	err := st.eval(bs.current(), nil)
	st.popFrame()
	return err
}

// super renders the parent implementation of the current block.
func (st *State) super() (value.Value, error) {
	if st.currentBlock == "" {
		return value.Undefined, value.NewError(value.ErrInvalidOperation, "cannot super outside of block")
	}
	bs := st.blocks[st.currentBlock]
	if bs.depth+1 >= len(bs.layers) {
		return value.Undefined, value.NewError(value.ErrInvalidOperation, "no parent block exists")
	}
	if err := st.enter(); err != nil {
		return value.Undefined, err
	}
	defer st.leave()

	bs.depth++
	defer func() { bs.depth-- }()

	if err := st.pushFrame(newFrame()); err != nil {
		return value.Undefined, err
	}
	st.out.beginCapture(template.CaptureModeCapture)
	err := st.eval(bs.current(), nil)
	result := st.out.endCapture(st.autoEscape)
	st.popFrame()
	return result, err
}

// Module evaluates template name with root as its context and returns its
// top level definitions. Results are cached for the rest of the render.
// A nil root uses the render's root context.
func (st *State) Module(name string, root *value.Map) (*value.Map, error) {
	if root == nil {
		root = st.root
	}
	key := moduleKey{name, root}
	if module, found := st.modules[key]; found {
		return module, nil
	}

	tpl, err := st.vm.opts.Loader.FindCompiledTemplate(name)
	if err != nil {
		return nil, err
	}

	prevFrames, prevOut := st.frames, st.out
	rootFrame := newRootFrame(root)
	st.frames = []*frame{rootFrame}
	st.out = newOutput()
	st.out.beginCapture(template.CaptureModeDiscard)

	err = st.withTemplate(tpl, func() error {
		return st.eval(codeUnit{tpl, tpl.Instructions()}, nil)
	})

	st.frames, st.out = prevFrames, prevOut

	if err != nil {
		var ret *returnSignal
		if !errors.As(err, &ret) {
			return nil, err
		}
	}

	module := rootFrame.export()
	st.modules[key] = module
	return module, nil
}

func (st *State) emit(v value.Value) error {
	if err := st.vm.opts.Undefined.assertRenderable(v); err != nil {
		return err
	}
	if st.autoEscape {
		v = value.EscapeHTML(v)
	}
	st.out.WriteString(v.String())
	return nil
}

func (st *State) getAttr(v value.Value, name string) (value.Value, error) {
	if val, found := value.GetAttr(v, name); found {
		return val, nil
	}
	return st.vm.opts.Undefined.missingAttribute(v, name)
}

func (st *State) getItem(v, key value.Value) (value.Value, error) {
	if val, found := value.GetItem(v, key); found {
		return val, nil
	}
	// attribute lookup as a fallback for string keys (`obj['name']`)
	if name, ok := key.AsString(); ok {
		if val, found := value.GetAttr(v, name); found {
			return val, nil
		}
	}
	return st.vm.opts.Undefined.missingItem(v, key)
}

func (st *State) callFunction(name string, args []value.Value) (value.Value, error) {
	for _, l := range st.listeners {
		l.OnReference(name)
	}
	fn, found := st.lookup(name)
	if !found || fn.IsUndefined() {
		return value.Undefined, value.NewError(value.ErrUnknownFunction, fmt.Sprintf("function %s is unknown", name))
	}
	return value.Call(st, fn, args)
}

func (st *State) callMethod(recv value.Value, name string, args []value.Value) (value.Value, error) {
	if recv.IsUndefined() {
		if st.vm.opts.Undefined == UndefinedChainable {
			return value.Undefined, nil
		}
		return value.Undefined, undefinedError(fmt.Sprintf("cannot call method %s on undefined value", name))
	}
	return value.CallMethod(st, recv, name, args)
}

func (st *State) applyFilter(name string, args []value.Value) (value.Value, error) {
	filter, found := st.vm.opts.Filters[name]
	if !found {
		return value.Undefined, value.NewError(value.ErrUnknownFilter, fmt.Sprintf("filter %s is unknown%s", name, spell.Hint(name, names(st.vm.opts.Filters))))
	}
	return value.Call(st, filter, args)
}

func (st *State) performTest(name string, args []value.Value) (bool, error) {
	test, found := st.vm.opts.Tests[name]
	if !found {
		return false, value.NewError(value.ErrUnknownTest, fmt.Sprintf("test %s is unknown%s", name, spell.Hint(name, names(st.vm.opts.Tests))))
	}
	result, err := value.Call(st, test, args)
	if err != nil {
		return false, err
	}
	return result.IsTrue(), nil
}

func deriveAutoEscape(v value.Value) (bool, error) {
	if s, ok := v.AsString(); ok {
		switch s {
		case "html":
			return true, nil
		case "none":
			return false, nil
		}
	} else if b, ok := v.AsBool(); ok {
		return b, nil
	} else if v.IsNone() || v.IsUndefined() {
		return false, nil
	}
	return false, value.NewError(value.ErrInvalidOperation, "invalid value to autoescape tag")
}

func names(section map[string]value.Value) []string {
	result := make([]string, 0, len(section))
	for name := range section {
		result = append(result, name)
	}
	return result
}
