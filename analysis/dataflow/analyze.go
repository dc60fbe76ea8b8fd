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

package dataflow

import (
	"fmt"

	"github.com/seep-analysis/seep/analysis/config"
	"github.com/seep-analysis/seep/analysis/program"
)

// run holds the state of one Solve invocation. Everything in it is scoped
// to a single problem against a single program; nothing escapes but the
// FlowResult.
type run struct {
	state *AnalyzerState
	p     Problem
	prog  *program.Program
	log   *config.LogGroup

	aps  *apTable
	scs  *scTable
	sums *summaryNodeTable

	branchLimit  int
	useFieldFlow bool

	// additional steps are discovered lazily per node, since the problem
	// exposes them only as a pairwise predicate
	addSteps    map[program.NodeID][]program.Node
	addStepsRev map[program.NodeID][]program.Node
	byID        map[program.NodeID]program.Node

	// stage 1
	fwd            map[program.NodeID]uint8
	bwd            map[program.NodeID]uint8
	storeCand      map[*program.Content]bool
	readCand       map[*program.Content]bool
	pendingReads   map[*program.Content][]program.ContentStep
	pendingStores  map[*program.Content][]program.ContentStep
	returnsThrough map[*program.Callable]map[program.ReturnKind]bool
	argReached     map[*program.CallSite]uint8
	paramsThrough  map[*program.Callable]map[program.Node]bool
	outReached     map[*program.CallSite]uint8

	// stage 2
	fwd2            map[s2key]bool
	bwd2            map[s2key]bool
	fwd2Fronts      map[program.NodeID]map[Front]bool
	storePairs      map[*program.Content]map[Front]bool
	readTargets2    map[*program.Content]map[nodeFlag]bool
	returnsThrough2 map[*program.Callable]map[kindFront]bool
	argReached2     map[*program.CallSite]uint8
	paramsThrough2  map[*program.Callable]map[paramFront]bool
	outReached2     map[*program.CallSite]uint8
	candFronts      map[program.NodeID]map[Front]bool

	// stage 3
	states     map[flowState]bool
	seeds      map[flowState]bool
	sinkStates map[flowState]bool
	que3       []flowState
	preds      map[flowState][]flowEdge
	edgeSeen   map[flowEdgeKey]bool
	argEntries map[entryKey]map[argEntry]bool
	exits      map[entryKey]map[summaryExit]bool
	summaries  []Summary
}

func newRun(s *AnalyzerState, p Problem) *run {
	limit := p.FieldFlowBranchLimit()
	return &run{
		state:           s,
		p:               p,
		prog:            s.Program,
		log:             s.Logger,
		aps:             newAPTable(p.AccessPathBound()),
		scs:             newSCTable(),
		sums:            newSummaryNodeTable(),
		branchLimit:     limit,
		useFieldFlow:    limit >= 1,
		addSteps:        map[program.NodeID][]program.Node{},
		addStepsRev:     map[program.NodeID][]program.Node{},
		fwd:             map[program.NodeID]uint8{},
		bwd:             map[program.NodeID]uint8{},
		storeCand:       map[*program.Content]bool{},
		readCand:        map[*program.Content]bool{},
		pendingReads:    map[*program.Content][]program.ContentStep{},
		pendingStores:   map[*program.Content][]program.ContentStep{},
		returnsThrough:  map[*program.Callable]map[program.ReturnKind]bool{},
		argReached:      map[*program.CallSite]uint8{},
		paramsThrough:   map[*program.Callable]map[program.Node]bool{},
		outReached:      map[*program.CallSite]uint8{},
		fwd2:            map[s2key]bool{},
		bwd2:            map[s2key]bool{},
		fwd2Fronts:      map[program.NodeID]map[Front]bool{},
		storePairs:      map[*program.Content]map[Front]bool{},
		readTargets2:    map[*program.Content]map[nodeFlag]bool{},
		returnsThrough2: map[*program.Callable]map[kindFront]bool{},
		argReached2:     map[*program.CallSite]uint8{},
		paramsThrough2:  map[*program.Callable]map[paramFront]bool{},
		outReached2:     map[*program.CallSite]uint8{},
		states:          map[flowState]bool{},
		seeds:           map[flowState]bool{},
		sinkStates:      map[flowState]bool{},
		preds:           map[flowState][]flowEdge{},
		edgeSeen:        map[flowEdgeKey]bool{},
		argEntries:      map[entryKey]map[argEntry]bool{},
		exits:           map[entryKey]map[summaryExit]bool{},
	}
}

func (r *run) nodesByID() map[program.NodeID]program.Node {
	if r.byID == nil {
		r.byID = make(map[program.NodeID]program.Node, r.prog.NodeCount())
		for _, n := range r.prog.Nodes() {
			r.byID[n.ID()] = n
		}
	}
	return r.byID
}

// localSuccs returns the value steps out of n: the recorded local steps
// plus the implicit post-update steps. A node flows into its own
// post-update node, and an update seen through a value step reflects back
// to the post-update of the step's origin, so writes through an alias reach
// the aliased value's later uses.
func (r *run) localSuccs(n program.Node) []program.Step {
	steps := r.prog.LocalStepsFrom(n)
	post := r.prog.PostUpdate(n)
	pu, isPost := n.(*program.PostUpdateNode)
	if post == nil && !isPost {
		return steps
	}
	out := make([]program.Step, len(steps), len(steps)+2)
	copy(out, steps)
	if post != nil {
		out = append(out, program.Step{From: n, To: post, PreservesValue: true})
	}
	if isPost {
		for _, s := range r.prog.LocalStepsTo(pu.Pre()) {
			if !s.PreservesValue {
				continue
			}
			if pa := r.prog.PostUpdate(s.From); pa != nil {
				out = append(out, program.Step{From: n, To: pa, PreservesValue: true})
			}
		}
	}
	return out
}

// localPreds mirrors localSuccs.
func (r *run) localPreds(n program.Node) []program.Step {
	steps := r.prog.LocalStepsTo(n)
	pu, isPost := n.(*program.PostUpdateNode)
	if !isPost {
		return steps
	}
	out := make([]program.Step, len(steps), len(steps)+2)
	copy(out, steps)
	out = append(out, program.Step{From: pu.Pre(), To: n, PreservesValue: true})
	for _, s := range r.prog.LocalStepsFrom(pu.Pre()) {
		if !s.PreservesValue {
			continue
		}
		if pb := r.prog.PostUpdate(s.To); pb != nil {
			out = append(out, program.Step{From: pb, To: n, PreservesValue: true})
		}
	}
	return out
}

func (r *run) additionalSuccs(n program.Node) []program.Node {
	if succs, ok := r.addSteps[n.ID()]; ok {
		return succs
	}
	var succs []program.Node
	for _, m := range r.prog.Nodes() {
		if m != n && r.p.IsAdditionalStep(n, m) {
			succs = append(succs, m)
		}
	}
	r.addSteps[n.ID()] = succs
	return succs
}

func (r *run) additionalPreds(n program.Node) []program.Node {
	if preds, ok := r.addStepsRev[n.ID()]; ok {
		return preds
	}
	var preds []program.Node
	for _, m := range r.prog.Nodes() {
		if m != n && r.p.IsAdditionalStep(m, n) {
			preds = append(preds, m)
		}
	}
	r.addStepsRev[n.ID()] = preds
	return preds
}

// callsUsing returns the call sites where n occupies an input position:
// an argument slot, or the invoked closure value.
func (r *run) callsUsing(n program.Node) []*program.CallSite {
	var calls []*program.CallSite
	if a, ok := n.(*program.ArgNode); ok {
		calls = append(calls, a.Call())
	}
	if f := n.Callable(); f != nil {
		for _, c := range f.Calls() {
			if c.CalleeValue() == n {
				calls = append(calls, c)
			}
		}
	}
	return calls
}

// outPos names one return position of one call whose caller-side node this
// is.
type outPos struct {
	call *program.CallSite
	kind program.ReturnKind
}

// outPositions returns the (call, return kind) pairs for which n is the
// caller-side out node, inverting OutNodeFor.
func (r *run) outPositions(n program.Node) []outPos {
	switch v := n.(type) {
	case *program.CallOutNode:
		return []outPos{{call: v.Call(), kind: program.ValueReturn()}}
	case *program.PostUpdateNode:
		var out []outPos
		if a, ok := v.Pre().(*program.ArgNode); ok {
			out = append(out, outPos{call: a.Call(), kind: program.ParamUpdateReturn(a.Index())})
		}
		if f := n.Callable(); f != nil {
			for _, c := range f.Calls() {
				if c.CalleeValue() == v.Pre() {
					out = append(out, outPos{call: c, kind: program.CaptureUpdateReturn()})
				}
			}
		}
		return out
	}
	return nil
}

// Solve runs the staged analysis for one problem and returns its flow
// result. A problem whose predicates trigger another Solve of the same tag
// on the same state is rejected; everything else, including concurrent
// solves of distinct problems, is fine.
func (s *AnalyzerState) Solve(p Problem) (*FlowResult, error) {
	tag := p.Tag()
	if err := s.beginSolve(tag); err != nil {
		return nil, err
	}
	defer s.endSolve(tag)
	if s.Program == nil || !s.Program.IsFrozen() {
		return nil, fmt.Errorf("%s: program facts are not sealed", tag)
	}

	r := newRun(s, p)
	res := &FlowResult{Tag: tag, Graph: &PathGraph{}}

	hasSource, hasSink := false, false
	for _, n := range s.Program.Nodes() {
		if p.IsSource(n) && !fullBarrier(p, n) {
			hasSource = true
		}
		if p.IsSink(n) && !fullBarrier(p, n) {
			hasSink = true
		}
	}
	if p.ExplorationLimit() > 0 {
		res.Partials = r.partialPass()
	}
	if !hasSource || !hasSink {
		s.Logger.Debugf("%s: no %s, flow is empty\n", tag, missingEndpoint(hasSource))
		return res, nil
	}

	r.fwdPass()
	r.bwdPass()
	s.Logger.Debugf("%s: stage 1: %d forward, %d backward node states\n",
		tag, maskCount(r.fwd), maskCount(r.bwd))
	if len(r.bwd) == 0 {
		return res, nil
	}

	r.fwd2Pass()
	r.bwd2Pass()
	r.buildCandFronts()
	s.Logger.Debugf("%s: stage 2: %d forward, %d backward front states\n",
		tag, len(r.fwd2), len(r.bwd2))
	if len(r.candFronts) == 0 {
		return res, nil
	}

	r.flowPass()
	keep := r.prune()
	s.Logger.Debugf("%s: stage 3: %d states explored, %d on flow paths\n",
		tag, len(r.states), len(keep))

	res.Graph = r.buildPathGraph(keep)
	res.Summaries = r.summaries
	res.Stats = FlowStats{
		CandidateNodes: len(r.bwd),
		Fronts:         len(r.bwd2),
		States:         len(r.states),
		Kept:           len(keep),
	}
	s.Logger.Infof("%s: %d source-sink pairs, %d flow-through summaries\n",
		tag, len(res.Graph.Pairs), len(res.Summaries))
	return res, nil
}

func missingEndpoint(hasSource bool) string {
	if hasSource {
		return "sinks"
	}
	return "sources"
}
