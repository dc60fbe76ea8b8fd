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
	"sort"

	"github.com/seep-analysis/seep/analysis/program"
)

const defaultMaxPaths = 100

// A PathNode is one waypoint of a reported flow: a program node with the
// access path held there. States that differ only in their contexts merge
// into one waypoint; plain value hops that leave the access path untouched
// are contracted away, so a waypoint is always a place where something
// happened: an endpoint, a call boundary, a store, a read, or a taint step.
type PathNode struct {
	Node     program.Node
	Path     *AccessPath
	Contexts []CallContext
	Source   bool
	Sink     bool
	Out      []PathEdge
}

func (pn *PathNode) String() string {
	return fmt.Sprintf("%v%v", pn.Node, pn.Path)
}

// A PathEdge connects two waypoints. Via is non-nil for flow-through edges
// and names the summarized callee effect.
type PathEdge struct {
	To  *PathNode
	Via *SummaryNode
}

// SourceSinkPair is one reported flow endpoint pair.
type SourceSinkPair struct {
	Source program.Node
	Sink   program.Node
}

// PathGraph is the rendered result of a solve: the waypoints of every
// source-to-sink flow, with sources and sinks indexed. The zero value is a
// valid empty graph.
type PathGraph struct {
	Nodes   []*PathNode
	Sources []*PathNode
	Sinks   []*PathNode
	Pairs   []SourceSinkPair
}

type pgKey struct {
	node program.Node
	ap   *AccessPath
}

// buildPathGraph renders the kept stage-3 states. A state is transparent
// when it is neither endpoint and every incoming edge is a zero-cost hop;
// edges into the rest of the graph start from the nearest non-transparent
// ancestors instead, which contracts intra-callable plumbing chains.
func (r *run) buildPathGraph(keep map[flowState]bool) *PathGraph {
	incoming := map[flowState][]flowEdge{}
	for st := range keep {
		for _, e := range r.preds[st] {
			if keep[e.from] {
				incoming[st] = append(incoming[st], e)
			}
		}
	}

	transparent := map[flowState]bool{}
	for st := range keep {
		edges := incoming[st]
		tr := len(edges) > 0 && !r.seeds[st] && !r.sinkStates[st]
		for _, e := range edges {
			if !e.zeroCost {
				tr = false
				break
			}
		}
		transparent[st] = tr
	}

	anchorMemo := map[flowState][]flowState{}
	onStack := map[flowState]bool{}
	var anchorsOf func(st flowState) []flowState
	anchorsOf = func(st flowState) []flowState {
		if a, ok := anchorMemo[st]; ok {
			return a
		}
		if onStack[st] {
			return nil
		}
		onStack[st] = true
		seen := map[flowState]bool{}
		var out []flowState
		for _, e := range incoming[st] {
			if transparent[e.from] {
				for _, a := range anchorsOf(e.from) {
					if !seen[a] {
						seen[a] = true
						out = append(out, a)
					}
				}
			} else if !seen[e.from] {
				seen[e.from] = true
				out = append(out, e.from)
			}
		}
		delete(onStack, st)
		anchorMemo[st] = out
		return out
	}

	nodes := map[pgKey]*PathNode{}
	getNode := func(st flowState) *PathNode {
		k := pgKey{node: st.node, ap: st.ap}
		pn := nodes[k]
		if pn == nil {
			pn = &PathNode{Node: st.node, Path: st.ap}
			nodes[k] = pn
		}
		known := false
		for _, cc := range pn.Contexts {
			if cc == st.cc {
				known = true
				break
			}
		}
		if !known {
			pn.Contexts = append(pn.Contexts, st.cc)
		}
		if r.seeds[st] {
			pn.Source = true
		}
		if r.sinkStates[st] {
			pn.Sink = true
		}
		return pn
	}

	type peKey struct {
		from, to *PathNode
		via      *SummaryNode
	}
	edgeDone := map[peKey]bool{}
	for st := range keep {
		if transparent[st] {
			continue
		}
		to := getNode(st)
		for _, e := range incoming[st] {
			froms := []flowState{e.from}
			if transparent[e.from] {
				froms = anchorsOf(e.from)
			}
			for _, f := range froms {
				from := getNode(f)
				if from == to {
					continue
				}
				k := peKey{from: from, to: to, via: e.via}
				if edgeDone[k] {
					continue
				}
				edgeDone[k] = true
				from.Out = append(from.Out, PathEdge{To: to, Via: e.via})
			}
		}
	}

	pg := &PathGraph{}
	for _, pn := range nodes {
		pg.Nodes = append(pg.Nodes, pn)
	}
	sort.Slice(pg.Nodes, func(i, j int) bool { return pathNodeLess(pg.Nodes[i], pg.Nodes[j]) })
	for _, pn := range pg.Nodes {
		sort.Slice(pn.Out, func(i, j int) bool { return pathNodeLess(pn.Out[i].To, pn.Out[j].To) })
		if pn.Source {
			pg.Sources = append(pg.Sources, pn)
		}
		if pn.Sink {
			pg.Sinks = append(pg.Sinks, pn)
		}
	}
	pg.Pairs = r.sourceSinkPairs(keep, incoming)
	return pg
}

func pathNodeLess(a, b *PathNode) bool {
	if a.Node.ID() != b.Node.ID() {
		return a.Node.ID() < b.Node.ID()
	}
	return a.Path.String() < b.Path.String()
}

// sourceSinkPairs walks backward from every kept sink state to the seeds
// that feed it. The walk is on states, not waypoints, so merged contexts
// cannot pair a source with a sink it never reaches.
func (r *run) sourceSinkPairs(keep map[flowState]bool, incoming map[flowState][]flowEdge) []SourceSinkPair {
	set := map[SourceSinkPair]bool{}
	for sink := range r.sinkStates {
		if !keep[sink] {
			continue
		}
		visited := map[flowState]bool{sink: true}
		que := []flowState{sink}
		for len(que) > 0 {
			st := que[0]
			que = que[1:]
			if r.seeds[st] {
				set[SourceSinkPair{Source: st.node, Sink: sink.node}] = true
			}
			for _, e := range incoming[st] {
				if !visited[e.from] {
					visited[e.from] = true
					que = append(que, e.from)
				}
			}
		}
	}
	pairs := make([]SourceSinkPair, 0, len(set))
	for p := range set {
		pairs = append(pairs, p)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Source.ID() != pairs[j].Source.ID() {
			return pairs[i].Source.ID() < pairs[j].Source.ID()
		}
		return pairs[i].Sink.ID() < pairs[j].Sink.ID()
	})
	return pairs
}

// Paths enumerates source-to-sink waypoint sequences, up to max of them
// (a default cap when max is not positive). Cycles are broken by never
// revisiting a waypoint within one path.
func (g *PathGraph) Paths(max int) [][]*PathNode {
	if max <= 0 {
		max = defaultMaxPaths
	}
	var paths [][]*PathNode
	onPath := map[*PathNode]bool{}
	var stack []*PathNode
	var walk func(pn *PathNode)
	walk = func(pn *PathNode) {
		if len(paths) >= max || onPath[pn] {
			return
		}
		onPath[pn] = true
		stack = append(stack, pn)
		if pn.Sink {
			paths = append(paths, append([]*PathNode(nil), stack...))
		}
		for _, e := range pn.Out {
			walk(e.To)
		}
		stack = stack[:len(stack)-1]
		delete(onPath, pn)
	}
	for _, src := range g.Sources {
		walk(src)
	}
	return paths
}
