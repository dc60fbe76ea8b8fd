// Copyright The Seep Authors. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package program

import (
	"errors"
	"fmt"
)

// A Builder populates a program with callables, nodes and step facts, then
// seals it with Finish. A Builder is single-goroutine; the Program it
// returns is immutable.
type Builder struct {
	prog         *Program
	nextNode     NodeID
	nextCallable uint32
	nextCall     uint32
	nextContent  uint32
	nextCaptured uint32
	errs         []error
}

// NewBuilder returns a builder over an empty program.
func NewBuilder() *Builder {
	return &Builder{prog: newProgram()}
}

// Program returns the program under construction. Engine code must not hold
// on to it before Finish.
func (b *Builder) Program() *Program { return b.prog }

func (b *Builder) errf(format string, args ...any) {
	b.errs = append(b.errs, fmt.Errorf(format, args...))
}

func (b *Builder) register(f *Callable, n Node, blk *BasicBlock) {
	b.prog.nodes = append(b.prog.nodes, n)
	f.nodes = append(f.nodes, n)
	if blk != nil {
		blk.nodes = append(blk.nodes, n)
	}
}

func (b *Builder) newNodeID() NodeID {
	id := b.nextNode
	b.nextNode++
	return id
}

// NewCallable creates a top-level callable with the given unique qualified
// name and an entry block.
func (b *Builder) NewCallable(name string, pos Position) *Callable {
	return b.newCallable(name, nil, pos)
}

// NewClosureCallable creates a closure body lexically nested in parent. The
// callable receives a synthesized closure qualifier through which its
// captured variables are reached.
func (b *Builder) NewClosureCallable(name string, parent *Callable, pos Position) *Callable {
	f := b.newCallable(name, parent, pos)
	this := &CaptureThisNode{node: node{id: b.newNodeID(), callable: f, typ: UnknownType, pos: pos}}
	f.captureThis = this
	b.register(f, this, nil)
	return f
}

func (b *Builder) newCallable(name string, parent *Callable, pos Position) *Callable {
	if _, dup := b.prog.byName[name]; dup {
		b.errf("duplicate callable name %q", name)
	}
	f := &Callable{
		id:      b.nextCallable,
		name:    name,
		prog:    b.prog,
		returns: map[ReturnKind]*ReturnNode{},
		parent:  parent,
		pos:     pos,
	}
	b.nextCallable++
	b.prog.callables = append(b.prog.callables, f)
	b.prog.byName[name] = f
	b.NewBlock(f)
	return f
}

// NewBlock appends a basic block to the callable. The first block created
// with the callable is its entry.
func (b *Builder) NewBlock(f *Callable) *BasicBlock {
	blk := &BasicBlock{index: len(f.blocks), callable: f}
	f.blocks = append(f.blocks, blk)
	return blk
}

// AddBlockEdge adds a control-flow edge between two blocks of the same
// callable.
func (b *Builder) AddBlockEdge(from, to *BasicBlock) {
	if from.callable != to.callable {
		b.errf("block edge crosses callables %s and %s", from.callable.Name(), to.callable.Name())
		return
	}
	from.succs = append(from.succs, to)
	to.preds = append(to.preds, from)
}

// NewParam appends a parameter to the callable.
func (b *Builder) NewParam(f *Callable, name string, typ Type, pos Position) *ParamNode {
	p := &ParamNode{
		node:  node{id: b.newNodeID(), callable: f, typ: typ, pos: pos},
		index: len(f.params),
		name:  name,
	}
	f.params = append(f.params, p)
	b.register(f, p, nil)
	return p
}

// NewExpr creates an expression node in the given block.
func (b *Builder) NewExpr(blk *BasicBlock, label string, typ Type, pos Position) *ExprNode {
	n := &ExprNode{
		node:  node{id: b.newNodeID(), callable: blk.callable, block: blk, typ: typ, pos: pos},
		label: label,
	}
	b.register(blk.callable, n, blk)
	return n
}

// NewSynthetic creates an analysis-inserted node in the given block.
func (b *Builder) NewSynthetic(blk *BasicBlock, label string, typ Type, pos Position) *SyntheticNode {
	n := &SyntheticNode{
		node:  node{id: b.newNodeID(), callable: blk.callable, block: blk, typ: typ, pos: pos},
		label: label,
	}
	b.register(blk.callable, n, blk)
	return n
}

// NewCall creates a call site in the given block together with its result
// node. label is a printable callee description.
func (b *Builder) NewCall(blk *BasicBlock, label string, resultType Type, pos Position) *CallSite {
	c := &CallSite{
		id:     b.nextCall,
		caller: blk.callable,
		block:  blk,
		label:  label,
		pos:    pos,
	}
	b.nextCall++
	out := &CallOutNode{
		node: node{id: b.newNodeID(), callable: blk.callable, block: blk, typ: resultType, pos: pos},
		call: c,
	}
	c.out = out
	b.register(blk.callable, out, blk)
	blk.callable.calls = append(blk.callable.calls, c)
	return c
}

// NewArg appends an argument node to the call.
func (b *Builder) NewArg(c *CallSite, typ Type, pos Position) *ArgNode {
	a := &ArgNode{
		node:  node{id: b.newNodeID(), callable: c.caller, block: c.block, typ: typ, pos: pos},
		call:  c,
		index: len(c.args),
	}
	c.args = append(c.args, a)
	b.register(c.caller, a, c.block)
	return a
}

// AddArg appends an argument node fed by from through a value-preserving
// local step.
func (b *Builder) AddArg(c *CallSite, from Node) *ArgNode {
	a := b.NewArg(c, from.Type(), from.Position())
	b.AddLocalStep(from, a, true)
	return a
}

// SetCalleeValue records the node holding the invoked function value for
// calls through function values or closures.
func (b *Builder) SetCalleeValue(c *CallSite, n Node) {
	c.callee = n
}

// AddTarget adds a viable target callable to the call.
func (b *Builder) AddTarget(c *CallSite, f *Callable) {
	c.targets = append(c.targets, f)
}

// ReturnNodeFor returns the callable's return position of the given kind,
// creating it on first use.
func (b *Builder) ReturnNodeFor(f *Callable, kind ReturnKind) *ReturnNode {
	if r := f.returns[kind]; r != nil {
		return r
	}
	typ := UnknownType
	switch {
	case kind.IsParamUpdate():
		if p := f.Param(kind.Param()); p != nil {
			typ = p.Type()
		} else {
			b.errf("parameter-update return for missing parameter %d of %s", kind.Param(), f.Name())
		}
	case kind.IsCaptureUpdate():
		if f.captureThis == nil {
			b.errf("capture-update return on non-closure %s", f.Name())
		}
	}
	r := &ReturnNode{
		node: node{id: b.newNodeID(), callable: f, typ: typ, pos: f.pos},
		kind: kind,
	}
	f.returns[kind] = r
	b.register(f, r, nil)
	return r
}

// AddReturn routes the value at from to the callable's value return
// position.
func (b *Builder) AddReturn(f *Callable, from Node) {
	r := b.ReturnNodeFor(f, ValueReturn())
	if r.Type().IsUnknown() {
		r.typ = from.Type()
	}
	b.AddLocalStep(from, r, true)
}

// PostUpdate returns the post-update node of n, creating it on first use.
func (b *Builder) PostUpdate(n Node) *PostUpdateNode {
	if post := b.prog.postUpdates[n.ID()]; post != nil {
		return post
	}
	if _, already := n.(*PostUpdateNode); already {
		b.errf("post-update of post-update node %s", n.String())
	}
	post := &PostUpdateNode{
		node: node{id: b.newNodeID(), callable: n.Callable(), block: n.Block(), typ: n.Type(), pos: n.Position()},
		pre:  n,
	}
	b.prog.postUpdates[n.ID()] = post
	b.register(n.Callable(), post, nil)
	return post
}

// EnsureParamUpdateReturn wires the post-update of parameter i to a
// parameter-update return position, so stores through the parameter become
// visible at call sites.
func (b *Builder) EnsureParamUpdateReturn(f *Callable, i int) *ReturnNode {
	p := f.Param(i)
	if p == nil {
		b.errf("parameter-update return for missing parameter %d of %s", i, f.Name())
		return nil
	}
	r := b.ReturnNodeFor(f, ParamUpdateReturn(i))
	b.AddLocalStep(b.PostUpdate(p), r, true)
	return r
}

// AddLocalStep adds a local flow edge between two nodes of the same
// callable.
func (b *Builder) AddLocalStep(from, to Node, preservesValue bool) {
	if from.Callable() != to.Callable() {
		b.errf("local step crosses callables: %s -> %s", from.String(), to.String())
		return
	}
	s := Step{From: from, To: to, PreservesValue: preservesValue}
	b.prog.localSteps[from.ID()] = append(b.prog.localSteps[from.ID()], s)
	b.prog.localStepsRev[to.ID()] = append(b.prog.localStepsRev[to.ID()], s)
}

// AddJumpStep adds a flow edge that is not tied to a call, such as flow
// through global state. Jump steps discard calling context.
func (b *Builder) AddJumpStep(from, to Node) {
	s := Step{From: from, To: to, PreservesValue: true}
	b.prog.jumpSteps[from.ID()] = append(b.prog.jumpSteps[from.ID()], s)
	b.prog.jumpStepsRev[to.ID()] = append(b.prog.jumpStepsRev[to.ID()], s)
}

// AddStore records that the value at from is written into content c of the
// value at to.
func (b *Builder) AddStore(from Node, c *Content, to Node) {
	s := ContentStep{From: from, Content: c, To: to}
	b.prog.stores[from.ID()] = append(b.prog.stores[from.ID()], s)
	b.prog.storesRev[to.ID()] = append(b.prog.storesRev[to.ID()], s)
}

// AddRead records that to receives content c of the value at from.
func (b *Builder) AddRead(from Node, c *Content, to Node) {
	s := ContentStep{From: from, Content: c, To: to}
	b.prog.reads[from.ID()] = append(b.prog.reads[from.ID()], s)
	b.prog.readsRev[to.ID()] = append(b.prog.readsRev[to.ID()], s)
}

func (b *Builder) internContent(kind ContentKind, name string, container, typ Type, captured *CapturedVariable) *Content {
	key := keyOf(kind, name, container, typ, captured)
	if c := b.prog.contents[key]; c != nil {
		return c
	}
	c := &Content{
		id:        b.nextContent,
		kind:      kind,
		name:      name,
		container: container,
		typ:       typ,
		captured:  captured,
	}
	b.nextContent++
	b.prog.contents[key] = c
	b.prog.contentList = append(b.prog.contentList, c)
	return c
}

// FieldContent returns the interned content for the named field.
func (b *Builder) FieldContent(container Type, name string, typ Type) *Content {
	return b.internContent(FieldKind, name, container, typ, nil)
}

// ElementContent returns the interned content for collection elements of
// the container type.
func (b *Builder) ElementContent(container Type, typ Type) *Content {
	return b.internContent(ElementKind, "[]", container, typ, nil)
}

// CaptureContent returns the interned content for the captured variable's
// slot on closure values.
func (b *Builder) CaptureContent(v *CapturedVariable) *Content {
	return b.internContent(CaptureKind, v.Name(), UnknownType, v.Type(), v)
}

// NewCapturedVariable declares a variable of f captured by closures nested
// in f.
func (b *Builder) NewCapturedVariable(name string, definedIn *Callable, typ Type) *CapturedVariable {
	v := &CapturedVariable{
		id:        b.nextCaptured,
		name:      name,
		definedIn: definedIn,
		typ:       typ,
	}
	b.nextCaptured++
	b.prog.capturedVars = append(b.prog.capturedVars, v)
	return v
}

// NewClosure creates the value node of a closure-creation expression for fn
// in the given block, and registers the closure site.
func (b *Builder) NewClosure(blk *BasicBlock, fn *Callable, typ Type, pos Position) *ClosureNode {
	n := &ClosureNode{
		node: node{id: b.newNodeID(), callable: blk.callable, block: blk, typ: typ, pos: pos},
		fn:   fn,
	}
	b.register(blk.callable, n, blk)
	b.prog.closures = append(b.prog.closures, &ClosureSite{Node: n, Fn: fn})
	return n
}

// BindCapture records that the closure site captures v.
func (b *Builder) BindCapture(cl *ClosureNode, v *CapturedVariable) {
	for _, site := range b.prog.closures {
		if site.Node == cl {
			site.Captured = append(site.Captured, v)
			return
		}
	}
	b.errf("capture binding for unregistered closure %s", cl.String())
}

// AddCaptureDef records a node whose value becomes the captured variable's
// value (an assignment to v).
func (b *Builder) AddCaptureDef(v *CapturedVariable, def Node) {
	b.prog.captureDefs[v] = append(b.prog.captureDefs[v], def)
}

// AddCaptureUse records a node reading the captured variable.
func (b *Builder) AddCaptureUse(v *CapturedVariable, use Node) {
	b.prog.captureUses[v] = append(b.prog.captureUses[v], use)
}

// Finish seals the program: call-site indexes are built and the consistency
// obligations on front-end facts are verified. The program is unusable when
// an error is returned.
func (b *Builder) Finish() (*Program, error) {
	p := b.prog
	for _, f := range p.callables {
		for _, c := range f.calls {
			for _, target := range c.targets {
				p.callersOf[target] = append(p.callersOf[target], c)
			}
		}
	}
	errs := append(b.errs, checkConsistency(p)...)
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	p.frozen = true
	return p, nil
}
