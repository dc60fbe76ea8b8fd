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

import "fmt"

// ReturnKind distinguishes the return positions of a callable: the value
// return, the post-call state of parameter i for callables that update
// their arguments through references, or the post-call state of the capture
// qualifier for closure bodies that write captured variables.
type ReturnKind struct {
	param int
}

// ValueReturn is the kind of the ordinary value return position.
func ValueReturn() ReturnKind { return ReturnKind{param: -1} }

// ParamUpdateReturn is the kind of the return position carrying the final
// state of parameter i back to the matching argument's post-update.
func ParamUpdateReturn(i int) ReturnKind { return ReturnKind{param: i} }

// CaptureUpdateReturn is the kind of the return position carrying the final
// state of a closure's capture qualifier back to the post-update of the
// invoked closure value.
func CaptureUpdateReturn() ReturnKind { return ReturnKind{param: -2} }

// IsParamUpdate reports whether the kind is a parameter-update position.
func (k ReturnKind) IsParamUpdate() bool { return k.param >= 0 }

// IsCaptureUpdate reports whether the kind is a capture-update position.
func (k ReturnKind) IsCaptureUpdate() bool { return k.param == -2 }

// Param returns the updated parameter index, negative for the other kinds.
func (k ReturnKind) Param() int { return k.param }

func (k ReturnKind) String() string {
	switch {
	case k.IsParamUpdate():
		return fmt.Sprintf("update of parameter %d", k.param)
	case k.IsCaptureUpdate():
		return "update of captures"
	default:
		return "return"
	}
}

// A Callable is a function or closure body: the unit grouping nodes, basic
// blocks and call sites.
type Callable struct {
	id          uint32
	name        string
	prog        *Program
	params      []*ParamNode
	captureThis *CaptureThisNode
	returns     map[ReturnKind]*ReturnNode
	blocks      []*BasicBlock
	nodes       []Node
	calls       []*CallSite
	parent      *Callable
	pos         Position
}

// Name returns the callable's qualified name, unique within the program
func (f *Callable) Name() string { return f.name }

// ID returns a dense identifier, unique within the program.
func (f *Callable) ID() uint32 { return f.id }

// Params returns the callable's parameters in declaration order
func (f *Callable) Params() []*ParamNode { return f.params }

// Param returns the i-th parameter, nil when out of range
func (f *Callable) Param(i int) *ParamNode {
	if i < 0 || i >= len(f.params) {
		return nil
	}
	return f.params[i]
}

// CaptureThis returns the synthesized closure qualifier, nil for callables
// that are not closures
func (f *Callable) CaptureThis() *CaptureThisNode { return f.captureThis }

// IsClosure reports whether the callable is a closure body
func (f *Callable) IsClosure() bool { return f.captureThis != nil }

// Parent returns the lexically enclosing callable, nil at top level
func (f *Callable) Parent() *Callable { return f.parent }

// Return returns the return position of the given kind, nil when the
// callable has none
func (f *Callable) Return(kind ReturnKind) *ReturnNode { return f.returns[kind] }

// Returns returns all return positions of the callable
func (f *Callable) Returns() []*ReturnNode {
	res := make([]*ReturnNode, 0, len(f.returns))
	for _, r := range f.returns {
		res = append(res, r)
	}
	return res
}

// Blocks returns the callable's basic blocks; the first block is the entry
func (f *Callable) Blocks() []*BasicBlock { return f.blocks }

// Entry returns the entry block, nil for body-less callables
func (f *Callable) Entry() *BasicBlock {
	if len(f.blocks) == 0 {
		return nil
	}
	return f.blocks[0]
}

// Nodes returns every node enclosed by the callable
func (f *Callable) Nodes() []Node { return f.nodes }

// Calls returns the call sites appearing in the callable's body
func (f *Callable) Calls() []*CallSite { return f.calls }

// Position returns the callable's source position
func (f *Callable) Position() Position { return f.pos }

func (f *Callable) String() string { return f.name }

// A CallSite is a call instruction in a callable's body, holding its
// argument and result nodes and the set of viable target callables.
type CallSite struct {
	id     uint32
	caller *Callable
	block  *BasicBlock
	label  string
	args   []*ArgNode
	out    *CallOutNode
	callee Node
	// targets is the set of viable callables; more than one for calls
	// through interfaces, function values or closures
	targets []*Callable
	pos     Position
}

// Caller returns the callable containing the call
func (c *CallSite) Caller() *Callable { return c.caller }

// Block returns the basic block containing the call
func (c *CallSite) Block() *BasicBlock { return c.block }

// Args returns the call's argument nodes in order
func (c *CallSite) Args() []*ArgNode { return c.args }

// Arg returns the i-th argument node, nil when out of range
func (c *CallSite) Arg(i int) *ArgNode {
	if i < 0 || i >= len(c.args) {
		return nil
	}
	return c.args[i]
}

// Out returns the call's result node, nil for calls whose result is unused
func (c *CallSite) Out() *CallOutNode { return c.out }

// CalleeValue returns the node holding the invoked function value, nil for
// direct calls
func (c *CallSite) CalleeValue() Node { return c.callee }

// Callees returns the viable target callables of the call
func (c *CallSite) Callees() []*Callable { return c.targets }

// Position returns the call's source position
func (c *CallSite) Position() Position { return c.pos }

func (c *CallSite) String() string {
	if c.pos.Valid() {
		return fmt.Sprintf("call %s at %s", c.label, c.pos)
	}
	return fmt.Sprintf("call %s", c.label)
}

// Label returns the printable callee description of the call
func (c *CallSite) Label() string { return c.label }

// A BasicBlock is a straight-line sequence of nodes with branching only at
// its end. Blocks exist so that dominance-based constructions (phi
// placement for captured variables) have a control-flow graph to work on;
// the step relations themselves are not block-ordered.
type BasicBlock struct {
	index    int
	callable *Callable
	succs    []*BasicBlock
	preds    []*BasicBlock
	nodes    []Node
}

// Index returns the block's index within its callable; the entry block has
// index 0
func (b *BasicBlock) Index() int { return b.index }

// Callable returns the callable the block belongs to
func (b *BasicBlock) Callable() *Callable { return b.callable }

// Succs returns the block's control-flow successors
func (b *BasicBlock) Succs() []*BasicBlock { return b.succs }

// Preds returns the block's control-flow predecessors
func (b *BasicBlock) Preds() []*BasicBlock { return b.preds }

// Nodes returns the block's nodes in program order
func (b *BasicBlock) Nodes() []Node { return b.nodes }

func (b *BasicBlock) String() string {
	return fmt.Sprintf("%s.b%d", b.callable.Name(), b.index)
}

// A ParamArg pairs a parameter-like node of a callee with the node supplying
// its value at a specific call site. Param is a *ParamNode, or the callee's
// *CaptureThisNode paired with the invoked closure value.
type ParamArg struct {
	Param Node
	Arg   Node
}
