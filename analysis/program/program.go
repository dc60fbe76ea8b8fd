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

// A Step is a local or jump flow edge between two nodes. Value-preserving
// steps move the value itself; non-preserving steps only propagate taint
// and therefore never carry access paths.
type Step struct {
	From           Node
	To             Node
	PreservesValue bool
}

// A ContentStep is a store or read edge keyed by a content: for a store,
// the value at From is written into Content of the value at To; for a read,
// To receives the Content of the value at From.
type ContentStep struct {
	From    Node
	Content *Content
	To      Node
}

// A ClosureSite records a closure-creation expression together with the
// variables it captures. Capture-flow synthesis turns these records into
// store/read facts.
type ClosureSite struct {
	// Node is the closure-creation expression's value
	Node *ClosureNode

	// Fn is the closure body
	Fn *Callable

	// Captured lists the variables the closure captures
	Captured []*CapturedVariable
}

// A Program is the sealed fact store the engine runs on. All relation
// accessors are valid only after Builder.Finish and are safe for concurrent
// use.
type Program struct {
	callables []*Callable
	byName    map[string]*Callable
	nodes     []Node

	localSteps    map[NodeID][]Step
	localStepsRev map[NodeID][]Step
	jumpSteps     map[NodeID][]Step
	jumpStepsRev  map[NodeID][]Step
	stores        map[NodeID][]ContentStep
	storesRev     map[NodeID][]ContentStep
	reads         map[NodeID][]ContentStep
	readsRev      map[NodeID][]ContentStep

	postUpdates map[NodeID]*PostUpdateNode

	contents     map[contentKey]*Content
	contentList  []*Content
	capturedVars []*CapturedVariable

	closures    []*ClosureSite
	captureDefs map[*CapturedVariable][]Node
	captureUses map[*CapturedVariable][]Node

	// callersOf indexes call sites by viable target, built at freeze
	callersOf map[*Callable][]*CallSite

	frozen bool
}

func newProgram() *Program {
	return &Program{
		byName:        map[string]*Callable{},
		localSteps:    map[NodeID][]Step{},
		localStepsRev: map[NodeID][]Step{},
		jumpSteps:     map[NodeID][]Step{},
		jumpStepsRev:  map[NodeID][]Step{},
		stores:        map[NodeID][]ContentStep{},
		storesRev:     map[NodeID][]ContentStep{},
		reads:         map[NodeID][]ContentStep{},
		readsRev:      map[NodeID][]ContentStep{},
		postUpdates:   map[NodeID]*PostUpdateNode{},
		contents:      map[contentKey]*Content{},
		captureDefs:   map[*CapturedVariable][]Node{},
		captureUses:   map[*CapturedVariable][]Node{},
		callersOf:     map[*Callable][]*CallSite{},
	}
}

// Callables returns every callable of the program.
func (p *Program) Callables() []*Callable { return p.callables }

// CallableByName returns the callable with the given qualified name, nil
// when absent.
func (p *Program) CallableByName(name string) *Callable { return p.byName[name] }

// Nodes returns every node of the program, indexed by NodeID.
func (p *Program) Nodes() []Node { return p.nodes }

// NodeCount returns the number of nodes in the program.
func (p *Program) NodeCount() int { return len(p.nodes) }

// LocalStepsFrom returns the local steps out of n.
func (p *Program) LocalStepsFrom(n Node) []Step { return p.localSteps[n.ID()] }

// LocalStepsTo returns the local steps into n.
func (p *Program) LocalStepsTo(n Node) []Step { return p.localStepsRev[n.ID()] }

// JumpStepsFrom returns the jump steps out of n.
func (p *Program) JumpStepsFrom(n Node) []Step { return p.jumpSteps[n.ID()] }

// JumpStepsTo returns the jump steps into n.
func (p *Program) JumpStepsTo(n Node) []Step { return p.jumpStepsRev[n.ID()] }

// StoresFrom returns the store steps whose stored value is n.
func (p *Program) StoresFrom(n Node) []ContentStep { return p.stores[n.ID()] }

// StoresTo returns the store steps writing into the value at n.
func (p *Program) StoresTo(n Node) []ContentStep { return p.storesRev[n.ID()] }

// ReadsFrom returns the read steps reading out of the value at n.
func (p *Program) ReadsFrom(n Node) []ContentStep { return p.reads[n.ID()] }

// ReadsTo returns the read steps whose result is n.
func (p *Program) ReadsTo(n Node) []ContentStep { return p.readsRev[n.ID()] }

// PostUpdate returns the post-update node of n, nil when none was created.
func (p *Program) PostUpdate(n Node) *PostUpdateNode { return p.postUpdates[n.ID()] }

// ViableCallables returns the set of possible targets of the call. The
// engine never assumes the set is a singleton.
func (p *Program) ViableCallables(c *CallSite) []*Callable { return c.targets }

// CallSitesOf returns the call sites that may dispatch to f.
func (p *Program) CallSitesOf(f *Callable) []*CallSite { return p.callersOf[f] }

// ParamArgs returns the parameter/argument pairs for one viable target of
// the call: positional parameters paired by index, and the target's closure
// qualifier paired with the invoked closure value when both exist.
func (p *Program) ParamArgs(c *CallSite, target *Callable) []ParamArg {
	var pairs []ParamArg
	n := len(c.args)
	if m := len(target.params); m < n {
		n = m
	}
	for i := 0; i < n; i++ {
		pairs = append(pairs, ParamArg{Param: target.params[i], Arg: c.args[i]})
	}
	if target.captureThis != nil && c.callee != nil {
		pairs = append(pairs, ParamArg{Param: target.captureThis, Arg: c.callee})
	}
	return pairs
}

// OutNodeFor returns the caller-side node receiving flow from the return
// position of the given kind at this call: the call result for the value
// return, or the matching argument's post-update for parameter updates.
// Returns nil when the call site has no such node.
func (p *Program) OutNodeFor(c *CallSite, kind ReturnKind) Node {
	switch {
	case kind.IsParamUpdate():
		arg := c.Arg(kind.Param())
		if arg == nil {
			return nil
		}
		if post := p.postUpdates[arg.ID()]; post != nil {
			return post
		}
		return nil
	case kind.IsCaptureUpdate():
		if c.callee == nil {
			return nil
		}
		if post := p.postUpdates[c.callee.ID()]; post != nil {
			return post
		}
		return nil
	default:
		if c.out == nil {
			return nil
		}
		return c.out
	}
}

// Closures returns the closure-creation sites of the program.
func (p *Program) Closures() []*ClosureSite { return p.closures }

// CaptureDefs returns the nodes whose values define the captured variable.
func (p *Program) CaptureDefs(v *CapturedVariable) []Node { return p.captureDefs[v] }

// CaptureUses returns the nodes reading the captured variable.
func (p *Program) CaptureUses(v *CapturedVariable) []Node { return p.captureUses[v] }

// CapturedVariables returns every captured variable of the program.
func (p *Program) CapturedVariables() []*CapturedVariable { return p.capturedVars }

// Contents returns every interned content of the program.
func (p *Program) Contents() []*Content { return p.contentList }

// IsFrozen reports whether the program has been sealed by Builder.Finish.
func (p *Program) IsFrozen() bool { return p.frozen }

// StepCount returns the total number of local, jump, store and read facts,
// for logging.
func (p *Program) StepCount() int {
	n := 0
	for _, s := range p.localSteps {
		n += len(s)
	}
	for _, s := range p.jumpSteps {
		n += len(s)
	}
	for _, s := range p.stores {
		n += len(s)
	}
	for _, s := range p.reads {
		n += len(s)
	}
	return n
}
