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
	"sort"

	"github.com/seep-analysis/seep/analysis/program"
)

// PartialFlow records one point a source reached within the exploration
// budget, regardless of any sink. Partial flows exist to answer "why is the
// flow I expected not reported": they show where propagation stopped.
type PartialFlow struct {
	Source program.Node
	Node   program.Node
	Path   *AccessPath
	Dist   int
}

type partialKey struct {
	node program.Node
	ap   *AccessPath
}

// partialPass explores every source without call contexts, candidate
// pruning, or branch limits, bounded only by the step distance. Barriers
// still apply; they are semantics, not budget.
func (r *run) partialPass() []PartialFlow {
	limit := r.p.ExplorationLimit()
	var all []PartialFlow
	for _, src := range r.prog.Nodes() {
		if r.p.IsSource(src) && !fullBarrier(r.p, src) {
			all = append(all, r.partialFrom(src, limit)...)
		}
	}
	return all
}

func (r *run) partialFrom(src program.Node, limit int) []PartialFlow {
	type item struct {
		key  partialKey
		dist int
	}
	dist := map[partialKey]int{}
	seed := partialKey{node: src, ap: r.aps.Empty(src.Type())}
	dist[seed] = 0
	que := []item{{key: seed}}
	push := func(n program.Node, ap *AccessPath, d int) {
		if d > limit || fullBarrier(r.p, n) {
			return
		}
		k := partialKey{node: n, ap: ap}
		if _, ok := dist[k]; ok {
			return
		}
		dist[k] = d
		que = append(que, item{key: k, dist: d})
	}

	for len(que) > 0 {
		it := que[0]
		que = que[1:]
		n, ap, d := it.key.node, it.key.ap, it.dist+1

		for _, s := range r.localSuccs(n) {
			if !edgeAllowed(r.p, n, s.To) {
				continue
			}
			if s.PreservesValue {
				push(s.To, r.retypeEmpty(ap, s.To), d)
			} else if ap.MaybeEmpty() {
				push(s.To, r.aps.Empty(s.To.Type()), d)
			}
		}
		for _, m := range r.additionalSuccs(n) {
			if edgeAllowed(r.p, n, m) && ap.MaybeEmpty() {
				push(m, r.aps.Empty(m.Type()), d)
			}
		}
		for _, s := range r.prog.JumpStepsFrom(n) {
			if !edgeAllowed(r.p, n, s.To) {
				continue
			}
			if s.PreservesValue {
				push(s.To, r.retypeEmpty(ap, s.To), d)
			} else if ap.MaybeEmpty() {
				push(s.To, r.aps.Empty(s.To.Type()), d)
			}
		}
		if r.useFieldFlow {
			for _, s := range r.prog.StoresFrom(n) {
				if edgeAllowed(r.p, n, s.To) && ap.Type().Compatible(s.Content.Type()) {
					push(s.To, r.aps.Push(s.Content, ap), d)
				}
			}
			for _, s := range r.prog.ReadsFrom(n) {
				if !edgeAllowed(r.p, n, s.To) {
					continue
				}
				if popped, ok := r.aps.Pop(s.Content, ap); ok {
					push(s.To, popped, d)
				}
			}
		}
		for _, c := range r.callsUsing(n) {
			for _, g := range r.prog.ViableCallables(c) {
				for _, pa := range r.prog.ParamArgs(c, g) {
					if pa.Arg == n && edgeAllowed(r.p, n, pa.Param) {
						push(pa.Param, ap, d)
					}
				}
			}
		}
		if ret, ok := n.(*program.ReturnNode); ok {
			for _, c := range r.prog.CallSitesOf(ret.Callable()) {
				out := r.prog.OutNodeFor(c, ret.Kind())
				if out != nil && edgeAllowed(r.p, ret, out) {
					push(out, r.retypeEmpty(ap, out), d)
				}
			}
		}
	}

	flows := make([]PartialFlow, 0, len(dist))
	for k, d := range dist {
		flows = append(flows, PartialFlow{Source: src, Node: k.node, Path: k.ap, Dist: d})
	}
	sort.Slice(flows, func(i, j int) bool {
		if flows[i].Dist != flows[j].Dist {
			return flows[i].Dist < flows[j].Dist
		}
		if flows[i].Node.ID() != flows[j].Node.ID() {
			return flows[i].Node.ID() < flows[j].Node.ID()
		}
		return flows[i].Path.String() < flows[j].Path.String()
	})
	return flows
}

func (r *run) retypeEmpty(ap *AccessPath, to program.Node) *AccessPath {
	if ap.IsEmpty() {
		return r.aps.Empty(to.Type())
	}
	return ap
}
