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
	"github.com/seep-analysis/seep/analysis/program"
)

// Stage 3 tracks full states: node, call context, summary context and
// access path, restricted to the fronts that survived stage 2. Flow into a
// callable opens a summary context; reaching a return under one derives a
// flow-through summary that fires at every call site whose argument
// entered with the same path, without ever revisiting the callee body.

// flowState is one point of the stage-3 exploration. All fields are
// interned or comparable, so states are map keys.
type flowState struct {
	node program.Node
	cc   CallContext
	sc   *SummaryContext
	ap   *AccessPath
}

// flowEdge records how a state was produced, for pruning and path
// rendering. via is the summary node of a flow-through edge. zeroCost marks
// value-preserving local hops that leave the access path untouched; the
// path renderer elides the nodes they reach.
type flowEdge struct {
	from     flowState
	via      *SummaryNode
	zeroCost bool
}

type flowEdgeKey struct {
	from, to flowState
	via      *SummaryNode
	zeroCost bool
}

// entryKey identifies a summary context shared by all call sites: callee,
// input position, and the access path at entry.
type entryKey struct {
	callee *program.Callable
	param  program.Node
	entry  *AccessPath
}

// argEntry is the caller side of a pending summary application.
type argEntry struct {
	call *program.CallSite
	st   flowState
}

// summaryExit is the callee side: a return position reached under the
// summary context.
type summaryExit struct {
	kind      program.ReturnKind
	exit      *AccessPath
	preserves bool
}

func (r *run) addState(from flowState, to flowState, via *SummaryNode, zeroCost bool) {
	if !r.frontAdmitted(to.node, to.ap) {
		return
	}
	ek := flowEdgeKey{from: from, to: to, via: via, zeroCost: zeroCost}
	if !r.edgeSeen[ek] {
		r.edgeSeen[ek] = true
		r.preds[to] = append(r.preds[to], flowEdge{from: from, via: via, zeroCost: zeroCost})
	}
	if r.states[to] {
		return
	}
	r.states[to] = true
	if r.p.IsSink(to.node) && to.ap.MaybeEmpty() {
		r.sinkStates[to] = true
	}
	r.que3 = append(r.que3, to)
}

func (r *run) addSeed(n program.Node) {
	st := flowState{node: n, cc: AnyContext(), sc: nil, ap: r.aps.Empty(n.Type())}
	if !r.frontAdmitted(n, st.ap) || r.states[st] {
		return
	}
	r.states[st] = true
	r.seeds[st] = true
	if r.p.IsSink(n) {
		r.sinkStates[st] = true
	}
	r.que3 = append(r.que3, st)
}

// flowPass runs the stage-3 worklist to a fixpoint.
func (r *run) flowPass() {
	for _, n := range r.prog.Nodes() {
		if r.p.IsSource(n) && !fullBarrier(r.p, n) {
			r.addSeed(n)
		}
	}

	for len(r.que3) > 0 {
		st := r.que3[0]
		r.que3 = r.que3[1:]
		n := st.node

		for _, s := range r.localSuccs(n) {
			if fullBarrier(r.p, s.To) || !edgeAllowed(r.p, n, s.To) {
				continue
			}
			if s.PreservesValue {
				r.preservingStep(st, s.To, st.cc, st.sc)
			} else {
				r.taintStep(st, s.To, st.cc, st.sc)
			}
		}
		for _, m := range r.additionalSuccs(n) {
			if fullBarrier(r.p, m) || !edgeAllowed(r.p, n, m) {
				continue
			}
			if m.Callable() == n.Callable() {
				r.taintStep(st, m, st.cc, st.sc)
			} else {
				r.taintStep(st, m, AnyContext(), nil)
			}
		}
		for _, s := range r.prog.JumpStepsFrom(n) {
			if fullBarrier(r.p, s.To) || !edgeAllowed(r.p, n, s.To) {
				continue
			}
			if s.PreservesValue {
				r.jumpStep(st, s.To)
			} else {
				r.taintStep(st, s.To, AnyContext(), nil)
			}
		}

		if r.useFieldFlow {
			for _, s := range r.prog.StoresFrom(n) {
				if !r.readCand[s.Content] || fullBarrier(r.p, s.To) || !edgeAllowed(r.p, n, s.To) {
					continue
				}
				if !st.ap.Type().Compatible(s.Content.Type()) {
					continue
				}
				to := flowState{node: s.To, cc: st.cc, sc: st.sc, ap: r.aps.Push(s.Content, st.ap)}
				r.addState(st, to, nil, false)
			}
			for _, s := range r.prog.ReadsFrom(n) {
				if fullBarrier(r.p, s.To) || !edgeAllowed(r.p, n, s.To) {
					continue
				}
				popped, ok := r.aps.Pop(s.Content, st.ap)
				if !ok || !popped.Type().Compatible(s.To.Type()) {
					continue
				}
				to := flowState{node: s.To, cc: st.cc, sc: st.sc, ap: popped}
				r.addState(st, to, nil, false)
			}
		}

		for _, c := range r.callsUsing(n) {
			r.flowIntoCall(st, c)
		}

		if ret, ok := n.(*program.ReturnNode); ok {
			if st.sc != nil {
				r.recordExit(st, ret)
			} else {
				r.flowOutDispersal(st, ret)
			}
		}
	}
}

// preservingStep moves the state to another node without touching the
// access path. An empty path is retyped to the target; a path that still
// points at the same interned value makes the hop zero-cost.
func (r *run) preservingStep(st flowState, to program.Node, cc CallContext, sc *SummaryContext) {
	ap := st.ap
	if ap.IsEmpty() {
		ap = r.aps.Empty(to.Type())
	} else if !ap.Type().Compatible(to.Type()) {
		return
	}
	next := flowState{node: to, cc: cc, sc: sc, ap: ap}
	r.addState(st, next, nil, ap == st.ap)
}

// taintStep moves only taintedness: it applies to maybe-empty paths and
// produces a fresh empty path of the target's type. The summary context, if
// any, is demoted to its tainted form so a later flow-through knows the
// value did not survive.
func (r *run) taintStep(st flowState, to program.Node, cc CallContext, sc *SummaryContext) {
	if !st.ap.MaybeEmpty() {
		return
	}
	next := flowState{node: to, cc: cc, sc: r.scs.asTainted(sc), ap: r.aps.Empty(to.Type())}
	r.addState(st, next, nil, false)
}

// jumpStep crosses callables outside any call: the path survives, both
// contexts reset.
func (r *run) jumpStep(st flowState, to program.Node) {
	ap := st.ap
	if ap.IsEmpty() {
		ap = r.aps.Empty(to.Type())
	} else if !ap.Type().Compatible(to.Type()) {
		return
	}
	next := flowState{node: to, cc: AnyContext(), sc: nil, ap: ap}
	r.addState(st, next, nil, false)
}

// flowIntoCall sends an argument state into every viable callee, opening a
// summary context keyed by the entry path, and applies the summaries
// already derived for that entry.
func (r *run) flowIntoCall(st flowState, c *program.CallSite) {
	viable := r.prog.ViableCallables(c)
	if !st.ap.IsEmpty() && len(viable) > r.branchLimit {
		return
	}
	cc := SomeContext()
	if len(viable) <= r.branchLimit || len(viable) == 1 {
		cc = SpecificContext(c)
	}
	for _, g := range viable {
		for _, pa := range r.prog.ParamArgs(c, g) {
			if pa.Arg != st.node || fullBarrier(r.p, pa.Param) || !edgeAllowed(r.p, st.node, pa.Param) {
				continue
			}
			if !st.ap.IsEmpty() && !st.ap.Type().Compatible(pa.Param.Type()) {
				continue
			}
			sc := r.scs.get(pa.Param, st.ap, false)
			next := flowState{node: pa.Param, cc: cc, sc: sc, ap: st.ap}
			r.addState(st, next, nil, false)

			ek := entryKey{callee: g, param: pa.Param, entry: st.ap}
			ae := argEntry{call: c, st: st}
			if set := r.argEntries[ek]; set == nil {
				r.argEntries[ek] = map[argEntry]bool{ae: true}
			} else if set[ae] {
				continue
			} else {
				set[ae] = true
			}
			for ex := range r.exits[ek] {
				r.fireThrough(ae, ek, ex)
			}
		}
	}
}

// recordExit derives a flow-through summary from a return reached under a
// summary context and fires it at every recorded entry.
func (r *run) recordExit(st flowState, ret *program.ReturnNode) {
	sc := st.sc
	ek := entryKey{callee: ret.Callable(), param: sc.Param(), entry: sc.Entry()}
	ex := summaryExit{kind: ret.Kind(), exit: st.ap, preserves: !sc.Tainted()}
	if set := r.exits[ek]; set == nil {
		r.exits[ek] = map[summaryExit]bool{ex: true}
	} else if set[ex] {
		return
	} else {
		set[ex] = true
	}
	r.summaries = append(r.summaries, Summary{
		Callee:    ek.callee,
		Param:     paramIndex(ek.param),
		Entry:     ek.entry,
		Kind:      ex.kind,
		Exit:      ex.exit,
		Preserves: ex.preserves,
	})
	for ae := range r.argEntries[ek] {
		r.fireThrough(ae, ek, ex)
	}
}

// fireThrough applies one summary at one call site: the out node receives
// the exit path in the caller's contexts, through an edge annotated with
// the interned summary node.
func (r *run) fireThrough(ae argEntry, ek entryKey, ex summaryExit) {
	out := r.prog.OutNodeFor(ae.call, ex.kind)
	ret := ek.callee.Return(ex.kind)
	if out == nil || ret == nil || fullBarrier(r.p, out) || !edgeAllowed(r.p, ret, out) {
		return
	}
	ap := ex.exit
	if ap.IsEmpty() {
		ap = r.aps.Empty(out.Type())
	} else if !ap.Type().Compatible(out.Type()) {
		return
	}
	sc := ae.st.sc
	if !ex.preserves {
		sc = r.scs.asTainted(sc)
	}
	via := r.sums.summarize(ae.call, ek.callee, ek.entry, ex.exit, ex.preserves)
	next := flowState{node: out, cc: ae.st.cc, sc: sc, ap: ap}
	r.addState(ae.st, next, via, false)
}

// flowOutDispersal returns a context-free state to the callers: every call
// site when the context does not pin one, only the entering call when it
// does. The access path must clear the fan-in branch limit.
func (r *run) flowOutDispersal(st flowState, ret *program.ReturnNode) {
	f := ret.Callable()
	callers := r.prog.CallSitesOf(f)
	if !st.ap.IsEmpty() && len(callers) > r.branchLimit {
		return
	}
	for _, c := range callers {
		if st.cc.IsSpecific() && st.cc.Call() != c {
			continue
		}
		out := r.prog.OutNodeFor(c, ret.Kind())
		if out == nil || fullBarrier(r.p, out) || !edgeAllowed(r.p, ret, out) {
			continue
		}
		ap := st.ap
		if ap.IsEmpty() {
			ap = r.aps.Empty(out.Type())
		} else if !ap.Type().Compatible(out.Type()) {
			continue
		}
		next := flowState{node: out, cc: ReturnContext(c), sc: nil, ap: ap}
		r.addState(st, next, nil, false)
	}
}

// prune keeps only the states on some source-to-sink trajectory.
func (r *run) prune() map[flowState]bool {
	keep := map[flowState]bool{}
	var que []flowState
	for st := range r.sinkStates {
		keep[st] = true
		que = append(que, st)
	}
	for len(que) > 0 {
		st := que[0]
		que = que[1:]
		for _, e := range r.preds[st] {
			if !keep[e.from] {
				keep[e.from] = true
				que = append(que, e.from)
			}
		}
	}
	return keep
}
