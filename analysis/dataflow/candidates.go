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
	"math/bits"

	"github.com/seep-analysis/seep/analysis/program"
)

// Stage 1 answers, per node, whether flow from a source can reach it and
// whether it can in turn reach a sink, ignoring access paths entirely.
// Stores and reads prune each other: a content is only read if it is also
// stored somewhere reachable, and vice versa. The result over-approximates
// the node projection of every full flow, so the later stages restrict
// themselves to stage-1 candidates.
//
// Each pass tracks one balance flag alongside the node. Forward, the flag
// records that the state entered its callable through an input position, so
// returns propagate only to call sites that sent an argument in; without
// it, returns disperse to every caller. Backward, the flag is the dual:
// the state exits its callable through a return.

const (
	offBit uint8 = 1 << iota
	onBit
)

func bitOf(flag bool) uint8 {
	if flag {
		return onBit
	}
	return offBit
}

func maskCount(m map[program.NodeID]uint8) int {
	total := 0
	for _, b := range m {
		total += bits.OnesCount8(b)
	}
	return total
}

type nodeFlag struct {
	n    program.Node
	flag bool
}

// fwdPass seeds the sources and propagates forward to a fixpoint.
func (r *run) fwdPass() {
	var que []nodeFlag
	add := func(n program.Node, flag bool) {
		b := bitOf(flag)
		if r.fwd[n.ID()]&b != 0 {
			return
		}
		r.fwd[n.ID()] |= b
		que = append(que, nodeFlag{n, flag})
	}

	for _, n := range r.prog.Nodes() {
		if r.p.IsSource(n) && !fullBarrier(r.p, n) {
			add(n, false)
		}
	}

	for len(que) > 0 {
		item := que[0]
		que = que[1:]
		n, flag := item.n, item.flag

		for _, s := range r.localSuccs(n) {
			if !fullBarrier(r.p, s.To) && edgeAllowed(r.p, n, s.To) {
				add(s.To, flag)
			}
		}
		for _, m := range r.additionalSuccs(n) {
			if fullBarrier(r.p, m) || !edgeAllowed(r.p, n, m) {
				continue
			}
			add(m, flag && m.Callable() == n.Callable())
		}
		for _, s := range r.prog.JumpStepsFrom(n) {
			if !fullBarrier(r.p, s.To) && edgeAllowed(r.p, n, s.To) {
				add(s.To, false)
			}
		}

		if r.useFieldFlow {
			for _, s := range r.prog.StoresFrom(n) {
				if fullBarrier(r.p, s.To) || !edgeAllowed(r.p, n, s.To) {
					continue
				}
				if !r.storeCand[s.Content] {
					r.storeCand[s.Content] = true
					r.flushReads(s.Content, add)
				}
				add(s.To, flag)
			}
			for _, s := range r.prog.ReadsFrom(n) {
				if fullBarrier(r.p, s.To) || !edgeAllowed(r.p, n, s.To) {
					continue
				}
				if r.storeCand[s.Content] {
					add(s.To, flag)
				} else {
					// replayed if the content later becomes a store candidate
					r.pendingReads[s.Content] = append(r.pendingReads[s.Content], s)
				}
			}
		}

		for _, c := range r.callsUsing(n) {
			entered := false
			for _, g := range r.prog.ViableCallables(c) {
				for _, pa := range r.prog.ParamArgs(c, g) {
					if pa.Arg != n || fullBarrier(r.p, pa.Param) || !edgeAllowed(r.p, n, pa.Param) {
						continue
					}
					add(pa.Param, true)
					entered = true
				}
			}
			if entered {
				r.noteArgReached(c, flag, add)
			}
		}

		if ret, ok := n.(*program.ReturnNode); ok {
			r.fwdOutOfCallable(ret, flag, add)
		}
	}
}

// fwdOutOfCallable propagates a reached return to the caller side. A
// return reached through an input position flows back only to call sites
// whose arguments were themselves reached; any other return disperses to
// every call site.
func (r *run) fwdOutOfCallable(ret *program.ReturnNode, flag bool, add func(program.Node, bool)) {
	f := ret.Callable()
	if flag {
		kinds := r.returnsThrough[f]
		if kinds == nil {
			kinds = map[program.ReturnKind]bool{}
			r.returnsThrough[f] = kinds
		}
		kinds[ret.Kind()] = true
		for _, c := range r.prog.CallSitesOf(f) {
			mask := r.argReached[c]
			if mask == 0 {
				continue
			}
			out := r.prog.OutNodeFor(c, ret.Kind())
			if out == nil || fullBarrier(r.p, out) || !edgeAllowed(r.p, ret, out) {
				continue
			}
			if mask&offBit != 0 {
				add(out, false)
			}
			if mask&onBit != 0 {
				add(out, true)
			}
		}
		return
	}
	for _, c := range r.prog.CallSitesOf(f) {
		out := r.prog.OutNodeFor(c, ret.Kind())
		if out != nil && !fullBarrier(r.p, out) && edgeAllowed(r.p, ret, out) {
			add(out, false)
		}
	}
}

// noteArgReached records that an argument of c was reached with the given
// flag and, for any callee return already known to flow through, completes
// the join on the caller side.
func (r *run) noteArgReached(c *program.CallSite, flag bool, add func(program.Node, bool)) {
	b := bitOf(flag)
	if r.argReached[c]&b != 0 {
		return
	}
	r.argReached[c] |= b
	for _, g := range r.prog.ViableCallables(c) {
		for kind := range r.returnsThrough[g] {
			ret := g.Return(kind)
			out := r.prog.OutNodeFor(c, kind)
			if ret == nil || out == nil || fullBarrier(r.p, out) || !edgeAllowed(r.p, ret, out) {
				continue
			}
			add(out, flag)
		}
	}
}

func (r *run) flushReads(c *program.Content, add func(program.Node, bool)) {
	for _, s := range r.pendingReads[c] {
		mask := r.fwd[s.From.ID()]
		if mask&offBit != 0 {
			add(s.To, false)
		}
		if mask&onBit != 0 {
			add(s.To, true)
		}
	}
	delete(r.pendingReads, c)
}

// bwdPass seeds the forward-reached sinks and propagates backward over the
// forward-reached nodes to a fixpoint.
func (r *run) bwdPass() {
	var que []nodeFlag
	add := func(n program.Node, toReturn bool) {
		if r.fwd[n.ID()] == 0 {
			return
		}
		b := bitOf(toReturn)
		if r.bwd[n.ID()]&b != 0 {
			return
		}
		r.bwd[n.ID()] |= b
		que = append(que, nodeFlag{n, toReturn})
	}

	for _, n := range r.prog.Nodes() {
		if r.p.IsSink(n) && !fullBarrier(r.p, n) {
			add(n, false)
		}
	}

	for len(que) > 0 {
		item := que[0]
		que = que[1:]
		n, toReturn := item.n, item.flag

		for _, s := range r.localPreds(n) {
			if edgeAllowed(r.p, s.From, n) {
				add(s.From, toReturn)
			}
		}
		for _, m := range r.additionalPreds(n) {
			if edgeAllowed(r.p, m, n) {
				add(m, toReturn && m.Callable() == n.Callable())
			}
		}
		for _, s := range r.prog.JumpStepsTo(n) {
			if edgeAllowed(r.p, s.From, n) {
				add(s.From, false)
			}
		}

		if r.useFieldFlow {
			for _, s := range r.prog.ReadsTo(n) {
				if !r.storeCand[s.Content] || !edgeAllowed(r.p, s.From, n) {
					continue
				}
				if !r.readCand[s.Content] {
					r.readCand[s.Content] = true
					r.flushStores(s.Content, add)
				}
				add(s.From, toReturn)
			}
			for _, s := range r.prog.StoresTo(n) {
				if !edgeAllowed(r.p, s.From, n) {
					continue
				}
				if r.readCand[s.Content] {
					add(s.From, toReturn)
				} else {
					r.pendingStores[s.Content] = append(r.pendingStores[s.Content], s)
				}
			}
		}

		switch n.(type) {
		case *program.ParamNode, *program.CaptureThisNode:
			r.bwdIntoCallers(n, toReturn, add)
		}

		for _, op := range r.outPositions(n) {
			r.noteOutReached(op.call, toReturn, add)
			for _, g := range r.prog.ViableCallables(op.call) {
				ret := g.Return(op.kind)
				if ret != nil && edgeAllowed(r.p, ret, n) {
					add(ret, true)
				}
			}
		}
	}
}

// bwdIntoCallers propagates a backward-reached input position to the
// argument side. With the return flag the flow continues out of the caller
// too, so only call sites whose out node was reached participate and the
// argument inherits the out node's flag; without it every call site's
// matching argument is a candidate.
func (r *run) bwdIntoCallers(param program.Node, toReturn bool, add func(program.Node, bool)) {
	g := param.Callable()
	if toReturn {
		set := r.paramsThrough[g]
		if set == nil {
			set = map[program.Node]bool{}
			r.paramsThrough[g] = set
		}
		set[param] = true
		for _, c := range r.prog.CallSitesOf(g) {
			mask := r.outReached[c]
			if mask == 0 {
				continue
			}
			for _, pa := range r.prog.ParamArgs(c, g) {
				if pa.Param != param || !edgeAllowed(r.p, pa.Arg, param) {
					continue
				}
				if mask&offBit != 0 {
					add(pa.Arg, false)
				}
				if mask&onBit != 0 {
					add(pa.Arg, true)
				}
			}
		}
		return
	}
	for _, c := range r.prog.CallSitesOf(g) {
		for _, pa := range r.prog.ParamArgs(c, g) {
			if pa.Param == param && edgeAllowed(r.p, pa.Arg, param) {
				add(pa.Arg, false)
			}
		}
	}
}

// noteOutReached records that an out node of c was reached backward and
// completes the join for callee parameters already known to flow through.
func (r *run) noteOutReached(c *program.CallSite, toReturn bool, add func(program.Node, bool)) {
	b := bitOf(toReturn)
	if r.outReached[c]&b != 0 {
		return
	}
	r.outReached[c] |= b
	for _, g := range r.prog.ViableCallables(c) {
		set := r.paramsThrough[g]
		if len(set) == 0 {
			continue
		}
		for _, pa := range r.prog.ParamArgs(c, g) {
			if set[pa.Param] && edgeAllowed(r.p, pa.Arg, pa.Param) {
				add(pa.Arg, toReturn)
			}
		}
	}
}

func (r *run) flushStores(c *program.Content, add func(program.Node, bool)) {
	for _, s := range r.pendingStores[c] {
		mask := r.bwd[s.To.ID()]
		if mask&offBit != 0 {
			add(s.From, false)
		}
		if mask&onBit != 0 {
			add(s.From, true)
		}
	}
	delete(r.pendingStores, c)
}

// cand1 reports whether n survived both stage-1 passes.
func (r *run) cand1(n program.Node) bool {
	return r.fwd[n.ID()] != 0 && r.bwd[n.ID()] != 0
}
