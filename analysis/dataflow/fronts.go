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

// Stage 2 refines the stage-1 candidates with access path fronts: the head
// content plus an emptiness flag, not whole paths. A store pairs the pushed
// content with the front of the stored value, a read of that content yields
// exactly the recorded pre-push fronts, so mismatched store/read chains die
// here instead of multiplying full access paths in stage 3. The field-flow
// branch limit is enforced as soon as a front is non-empty.

type s2key struct {
	id      program.NodeID
	fromArg bool
	front   Front
}

type kindFront struct {
	kind  program.ReturnKind
	front Front
}

type paramFront struct {
	param program.Node
	front Front
}

func (r *run) addFwd2(que *[]s2key, n program.Node, fromArg bool, front Front) {
	if !r.cand1(n) {
		return
	}
	k := s2key{id: n.ID(), fromArg: fromArg, front: front}
	if r.fwd2[k] {
		return
	}
	r.fwd2[k] = true
	set := r.fwd2Fronts[k.id]
	if set == nil {
		set = map[Front]bool{}
		r.fwd2Fronts[k.id] = set
	}
	set[front] = true
	*que = append(*que, k)
}

// fwd2Pass re-runs the forward propagation over stage-1 candidates at front
// granularity.
func (r *run) fwd2Pass() {
	var que []s2key
	byID := r.nodesByID()

	for _, n := range r.prog.Nodes() {
		if r.p.IsSource(n) && !fullBarrier(r.p, n) {
			r.addFwd2(&que, n, false, Front{})
		}
	}

	for len(que) > 0 {
		k := que[0]
		que = que[1:]
		n, fromArg, front := byID[k.id], k.fromArg, k.front

		for _, s := range r.localSuccs(n) {
			if fullBarrier(r.p, s.To) || !edgeAllowed(r.p, n, s.To) {
				continue
			}
			if s.PreservesValue {
				r.addFwd2(&que, s.To, fromArg, front)
			} else if !front.nonEmpty {
				r.addFwd2(&que, s.To, fromArg, Front{})
			}
		}
		for _, m := range r.additionalSuccs(n) {
			if fullBarrier(r.p, m) || !edgeAllowed(r.p, n, m) || front.nonEmpty {
				continue
			}
			r.addFwd2(&que, m, fromArg && m.Callable() == n.Callable(), Front{})
		}
		for _, s := range r.prog.JumpStepsFrom(n) {
			if fullBarrier(r.p, s.To) || !edgeAllowed(r.p, n, s.To) {
				continue
			}
			if s.PreservesValue {
				r.addFwd2(&que, s.To, false, front)
			} else if !front.nonEmpty {
				r.addFwd2(&que, s.To, false, Front{})
			}
		}

		if r.useFieldFlow {
			for _, s := range r.prog.StoresFrom(n) {
				if !r.readCand[s.Content] || fullBarrier(r.p, s.To) || !edgeAllowed(r.p, n, s.To) {
					continue
				}
				r.recordStorePair(&que, s.Content, front)
				r.addFwd2(&que, s.To, fromArg, Front{head: s.Content, nonEmpty: true})
			}
			for _, s := range r.prog.ReadsFrom(n) {
				if !r.storeCand[s.Content] || !r.readCand[s.Content] ||
					fullBarrier(r.p, s.To) || !edgeAllowed(r.p, n, s.To) {
					continue
				}
				if front.head != s.Content {
					continue
				}
				r.fireRead(&que, s.Content, s.To, fromArg)
			}
		}

		for _, c := range r.callsUsing(n) {
			if front.nonEmpty && len(r.prog.ViableCallables(c)) > r.branchLimit {
				continue
			}
			entered := false
			for _, g := range r.prog.ViableCallables(c) {
				for _, pa := range r.prog.ParamArgs(c, g) {
					if pa.Arg != n || fullBarrier(r.p, pa.Param) || !edgeAllowed(r.p, n, pa.Param) {
						continue
					}
					r.addFwd2(&que, pa.Param, true, front)
					entered = true
				}
			}
			if entered {
				r.noteArgReached2(&que, c, fromArg)
			}
		}

		if ret, ok := n.(*program.ReturnNode); ok {
			r.fwd2OutOfCallable(&que, ret, fromArg, front)
		}
	}
}

func (r *run) fwd2OutOfCallable(que *[]s2key, ret *program.ReturnNode, fromArg bool, front Front) {
	f := ret.Callable()
	if fromArg {
		kinds := r.returnsThrough2[f]
		if kinds == nil {
			kinds = map[kindFront]bool{}
			r.returnsThrough2[f] = kinds
		}
		kinds[kindFront{kind: ret.Kind(), front: front}] = true
		for _, c := range r.prog.CallSitesOf(f) {
			mask := r.argReached2[c]
			if mask == 0 {
				continue
			}
			out := r.prog.OutNodeFor(c, ret.Kind())
			if out == nil || fullBarrier(r.p, out) || !edgeAllowed(r.p, ret, out) {
				continue
			}
			if mask&offBit != 0 {
				r.addFwd2(que, out, false, front)
			}
			if mask&onBit != 0 {
				r.addFwd2(que, out, true, front)
			}
		}
		return
	}
	if front.nonEmpty && len(r.prog.CallSitesOf(f)) > r.branchLimit {
		return
	}
	for _, c := range r.prog.CallSitesOf(f) {
		out := r.prog.OutNodeFor(c, ret.Kind())
		if out != nil && !fullBarrier(r.p, out) && edgeAllowed(r.p, ret, out) {
			r.addFwd2(que, out, false, front)
		}
	}
}

func (r *run) noteArgReached2(que *[]s2key, c *program.CallSite, fromArg bool) {
	b := bitOf(fromArg)
	if r.argReached2[c]&b != 0 {
		return
	}
	r.argReached2[c] |= b
	for _, g := range r.prog.ViableCallables(c) {
		for kf := range r.returnsThrough2[g] {
			ret := g.Return(kf.kind)
			out := r.prog.OutNodeFor(c, kf.kind)
			if ret == nil || out == nil || fullBarrier(r.p, out) || !edgeAllowed(r.p, ret, out) {
				continue
			}
			r.addFwd2(que, out, fromArg, kf.front)
		}
	}
}

// recordStorePair remembers the pre-push front for a content and replays
// the reads of that content seen so far, so store discovery order does not
// matter.
func (r *run) recordStorePair(que *[]s2key, c *program.Content, front Front) {
	set := r.storePairs[c]
	if set == nil {
		set = map[Front]bool{}
		r.storePairs[c] = set
	}
	if set[front] {
		return
	}
	set[front] = true
	for target := range r.readTargets2[c] {
		r.addFwd2(que, target.n, target.flag, front)
	}
}

// fireRead sends every recorded pre-push front of c to the read target and
// registers the target for replay on later store pairs.
func (r *run) fireRead(que *[]s2key, c *program.Content, to program.Node, fromArg bool) {
	targets := r.readTargets2[c]
	if targets == nil {
		targets = map[nodeFlag]bool{}
		r.readTargets2[c] = targets
	}
	targets[nodeFlag{n: to, flag: fromArg}] = true
	for front := range r.storePairs[c] {
		r.addFwd2(que, to, fromArg, front)
	}
}

func (r *run) addBwd2(que *[]s2key, n program.Node, toReturn bool, front Front) {
	if !r.fwd2Fronts[n.ID()][front] {
		return
	}
	k := s2key{id: n.ID(), fromArg: toReturn, front: front}
	if r.bwd2[k] {
		return
	}
	r.bwd2[k] = true
	*que = append(*que, k)
}

// bwd2Pass mirrors fwd2Pass from the sinks, over the forward fronts only.
func (r *run) bwd2Pass() {
	var que []s2key
	byID := r.nodesByID()

	for _, n := range r.prog.Nodes() {
		if !r.p.IsSink(n) || fullBarrier(r.p, n) {
			continue
		}
		for front := range r.fwd2Fronts[n.ID()] {
			if !front.nonEmpty {
				r.addBwd2(&que, n, false, front)
			}
		}
	}

	for len(que) > 0 {
		k := que[0]
		que = que[1:]
		n, toReturn, front := byID[k.id], k.fromArg, k.front

		for _, s := range r.localPreds(n) {
			if !edgeAllowed(r.p, s.From, n) {
				continue
			}
			if s.PreservesValue {
				r.addBwd2(&que, s.From, toReturn, front)
			} else if !front.nonEmpty {
				r.bwd2TaintInto(&que, s.From, toReturn)
			}
		}
		for _, m := range r.additionalPreds(n) {
			if !edgeAllowed(r.p, m, n) || front.nonEmpty {
				continue
			}
			r.bwd2TaintInto(&que, m, toReturn && m.Callable() == n.Callable())
		}
		for _, s := range r.prog.JumpStepsTo(n) {
			if !edgeAllowed(r.p, s.From, n) {
				continue
			}
			if s.PreservesValue {
				r.addBwd2(&que, s.From, false, front)
			} else if !front.nonEmpty {
				r.bwd2TaintInto(&que, s.From, false)
			}
		}

		if r.useFieldFlow {
			for _, s := range r.prog.ReadsTo(n) {
				if !edgeAllowed(r.p, s.From, n) {
					continue
				}
				for fc := range r.fwd2Fronts[s.From.ID()] {
					if fc.head == s.Content {
						r.addBwd2(&que, s.From, toReturn, fc)
					}
				}
			}
			if front.nonEmpty {
				for _, s := range r.prog.StoresTo(n) {
					if !edgeAllowed(r.p, s.From, n) || front.head != s.Content {
						continue
					}
					for fv := range r.fwd2Fronts[s.From.ID()] {
						if r.storePairs[s.Content][fv] {
							r.addBwd2(&que, s.From, toReturn, fv)
						}
					}
				}
			}
		}

		switch n.(type) {
		case *program.ParamNode, *program.CaptureThisNode:
			r.bwd2IntoCallers(&que, n, toReturn, front)
		}

		for _, op := range r.outPositions(n) {
			r.noteOutReached2(&que, op.call, toReturn)
			for _, g := range r.prog.ViableCallables(op.call) {
				ret := g.Return(op.kind)
				if ret != nil && edgeAllowed(r.p, ret, n) {
					r.addBwd2(&que, ret, true, front)
				}
			}
		}
	}
}

// bwd2TaintInto continues backward across a taint step, which forward fires
// only from the empty front.
func (r *run) bwd2TaintInto(que *[]s2key, m program.Node, toReturn bool) {
	if r.fwd2Fronts[m.ID()][Front{}] {
		r.addBwd2(que, m, toReturn, Front{})
	}
}

func (r *run) bwd2IntoCallers(que *[]s2key, param program.Node, toReturn bool, front Front) {
	g := param.Callable()
	if toReturn {
		set := r.paramsThrough2[g]
		if set == nil {
			set = map[paramFront]bool{}
			r.paramsThrough2[g] = set
		}
		set[paramFront{param: param, front: front}] = true
		for _, c := range r.prog.CallSitesOf(g) {
			mask := r.outReached2[c]
			if mask == 0 {
				continue
			}
			for _, pa := range r.prog.ParamArgs(c, g) {
				if pa.Param != param || !edgeAllowed(r.p, pa.Arg, param) {
					continue
				}
				if mask&offBit != 0 {
					r.addBwd2(que, pa.Arg, false, front)
				}
				if mask&onBit != 0 {
					r.addBwd2(que, pa.Arg, true, front)
				}
			}
		}
		return
	}
	for _, c := range r.prog.CallSitesOf(g) {
		for _, pa := range r.prog.ParamArgs(c, g) {
			if pa.Param == param && edgeAllowed(r.p, pa.Arg, param) {
				r.addBwd2(que, pa.Arg, false, front)
			}
		}
	}
}

func (r *run) noteOutReached2(que *[]s2key, c *program.CallSite, toReturn bool) {
	b := bitOf(toReturn)
	if r.outReached2[c]&b != 0 {
		return
	}
	r.outReached2[c] |= b
	for _, g := range r.prog.ViableCallables(c) {
		set := r.paramsThrough2[g]
		if len(set) == 0 {
			continue
		}
		for _, pa := range r.prog.ParamArgs(c, g) {
			for pf := range set {
				if pf.param == pa.Param && edgeAllowed(r.p, pa.Arg, pa.Param) {
					r.addBwd2(que, pa.Arg, toReturn, pf.front)
				}
			}
		}
	}
}

// buildCandFronts projects the surviving stage-2 states to per-node front
// sets for stage-3 admission.
func (r *run) buildCandFronts() {
	r.candFronts = map[program.NodeID]map[Front]bool{}
	for k := range r.bwd2 {
		set := r.candFronts[k.id]
		if set == nil {
			set = map[Front]bool{}
			r.candFronts[k.id] = set
		}
		set[k.front] = true
	}
}

// frontAdmitted reports whether a stage-3 path at n is covered by some
// surviving front. Stage 2 tracks exact fronts, so the match is equality,
// except that the unknown-any path left by popping a collapsed tail stands
// for every path and is covered by any surviving front.
func (r *run) frontAdmitted(n program.Node, ap *AccessPath) bool {
	set := r.candFronts[n.ID()]
	if len(set) == 0 {
		return false
	}
	if ap.head == nil && ap.restUnknown {
		return true
	}
	return set[ap.Front()]
}
