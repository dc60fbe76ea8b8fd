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

// NodeID identifies a node within its program.
type NodeID uint32

// Node is a point in the program where a value exists: an expression
// evaluation, a parameter, an argument, a call result, a return position, or
// a synthesized node. Every node has exactly one enclosing callable, at most
// one position, and one string form.
//
// Concrete node types are *ExprNode, *ParamNode, *CaptureThisNode, *ArgNode,
// *CallOutNode, *ReturnNode, *PostUpdateNode, *ClosureNode and
// *SyntheticNode; engine code dispatches on them with type switches.
type Node interface {
	// ID returns the node's id, unique within the program
	ID() NodeID

	// Callable returns the callable enclosing the node
	Callable() *Callable

	// Block returns the basic block holding the node, which may be nil for
	// nodes without a program point (parameters, return positions)
	Block() *BasicBlock

	// Type returns the node's value type (UnknownType when untyped)
	Type() Type

	// Position returns the node's source position
	Position() Position

	// String returns a short printable form of the node
	String() string
}

// node carries the fields shared by every node kind.
type node struct {
	id       NodeID
	callable *Callable
	block    *BasicBlock
	typ      Type
	pos      Position
}

// ID returns the node's id, unique within the program
func (n *node) ID() NodeID { return n.id }

// Callable returns the callable enclosing the node
func (n *node) Callable() *Callable { return n.callable }

// Block returns the basic block holding the node
func (n *node) Block() *BasicBlock { return n.block }

// Type returns the node's value type
func (n *node) Type() Type { return n.typ }

// Position returns the node's source position
func (n *node) Position() Position { return n.pos }

// An ExprNode is the value of an expression evaluation.
type ExprNode struct {
	node
	label string
}

func (a *ExprNode) String() string { return a.label }

// A ParamNode is a parameter of a callable, identified by its index.
type ParamNode struct {
	node
	index int
	name  string
}

// Index returns the parameter's position in the callable's parameter list
func (a *ParamNode) Index() int { return a.index }

// Name returns the parameter's source name
func (a *ParamNode) Name() string { return a.name }

func (a *ParamNode) String() string {
	return fmt.Sprintf("parameter %s of %s", a.name, a.callable.Name())
}

// A CaptureThisNode is the synthesized qualifier through which a closure
// body reaches its captured variables, playing the role of a receiver
// parameter holding the closure value.
type CaptureThisNode struct {
	node
}

func (a *CaptureThisNode) String() string {
	return fmt.Sprintf("closure qualifier of %s", a.callable.Name())
}

// An ArgNode is an argument of a call site, identified by its index.
type ArgNode struct {
	node
	call  *CallSite
	index int
}

// Call returns the call site the argument belongs to
func (a *ArgNode) Call() *CallSite { return a.call }

// Index returns the argument's position in the call
func (a *ArgNode) Index() int { return a.index }

func (a *ArgNode) String() string {
	return fmt.Sprintf("argument %d of %s", a.index, a.call.String())
}

// A CallOutNode is the result value of a call at the call site.
type CallOutNode struct {
	node
	call *CallSite
}

// Call returns the call site the result belongs to
func (a *CallOutNode) Call() *CallSite { return a.call }

func (a *CallOutNode) String() string {
	return fmt.Sprintf("result of %s", a.call.String())
}

// A ReturnNode is a return position inside a callable: the value return, or
// the final state of a parameter for callables that update their arguments.
// Values reaching a return position flow to the matching out node at every
// viable call site.
type ReturnNode struct {
	node
	kind ReturnKind
}

// Kind returns the return position's kind
func (a *ReturnNode) Kind() ReturnKind { return a.kind }

func (a *ReturnNode) String() string {
	return fmt.Sprintf("%s of %s", a.kind.String(), a.callable.Name())
}

// A PostUpdateNode is the state of another node after a write or call has
// possibly updated the value it holds.
type PostUpdateNode struct {
	node
	pre Node
}

// Pre returns the node this node is the post-update of
func (a *PostUpdateNode) Pre() Node { return a.pre }

func (a *PostUpdateNode) String() string {
	return fmt.Sprintf("post-update of %s", a.pre.String())
}

// A ClosureNode is the value of a closure-creation expression. The closure's
// captured variables are modeled as contents stored on this value.
type ClosureNode struct {
	node
	fn *Callable
}

// Fn returns the callable the closure expression creates
func (a *ClosureNode) Fn() *Callable { return a.fn }

func (a *ClosureNode) String() string {
	return fmt.Sprintf("closure %s", a.fn.Name())
}

// A SyntheticNode is a node inserted by an analysis rather than the front
// end, labeled with its role.
type SyntheticNode struct {
	node
	label string
}

func (a *SyntheticNode) String() string { return a.label }
