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

package graphutil

import (
	"sort"

	"github.com/seep-analysis/seep/analysis/program"
	"gonum.org/v1/gonum/graph"
)

// CGraph is an adjacency view of the call graph of a program, shaped so that
// existing graph libraries can consume it. It implements yourbasic's
// graph.Iterator and gonum's graph.Graph.
type CGraph struct {
	// The order of the graph
	order int

	// IDMap maps node IDs to CNodes
	IDMap map[int64]CNode

	// Keys are all the node IDs, sorted
	Keys []int64

	// Edges is an adjacency map: Edges[x][y] means x has a call site with
	// target y
	Edges map[int64]map[int64]bool
}

// NewCallGraph builds the call-graph view of a program. Node ids are the
// dense callable ids, so they stay meaningful across subgraphs.
func NewCallGraph(p *program.Program) CGraph {
	callables := p.Callables()
	idmap := make(map[int64]CNode, len(callables))
	edges := make(map[int64]map[int64]bool, len(callables))
	keys := make([]int64, 0, len(callables))
	for _, f := range callables {
		id := int64(f.ID())
		keys = append(keys, id)
		idmap[id] = CNode{Fn: f}
		edges[id] = map[int64]bool{}
		for _, c := range f.Calls() {
			for _, target := range c.Callees() {
				edges[id][int64(target.ID())] = true
			}
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return CGraph{
		order: len(callables),
		IDMap: idmap,
		Keys:  keys,
		Edges: edges,
	}
}

// Subgraph restricts the graph to the nodes in include, keeping only edges
// with both endpoints included. The order is unchanged so node numbering
// stays consistent across subgraphs.
func Subgraph(original CGraph, include []int64) CGraph {
	idmap := make(map[int64]CNode, len(include))
	edges := make(map[int64]map[int64]bool, len(include))
	keys := make([]int64, len(include))
	for j, i := range include {
		keys[j] = i
		idmap[i] = original.IDMap[i]
	}
	for _, i := range include {
		edges[i] = map[int64]bool{}
		for e := range original.Edges[i] {
			if _, ok := idmap[e]; ok {
				edges[i][e] = true
			}
		}
	}
	return CGraph{
		order: original.Order(),
		IDMap: idmap,
		Keys:  keys,
		Edges: edges,
	}
}

// Order implements graph.Iterator.
func (c CGraph) Order() int {
	return c.order
}

// Visit implements graph.Iterator. Vertices absent from the (sub)graph have
// no outgoing edges.
func (c CGraph) Visit(v int, do func(w int, c int64) (skip bool)) (aborted bool) {
	if _, ok := c.IDMap[int64(v)]; !ok {
		return false
	}
	for w := range c.Edges[int64(v)] {
		if do(int(w), 1) {
			return true
		}
	}
	return false
}

// *************** gonum graph.Graph implementation **********************

// Node returns the node with the given id, nil if absent.
func (c CGraph) Node(v int) graph.Node {
	return c.IDMap[int64(v)]
}

// Nodes returns an iterator over all nodes of the graph.
func (c CGraph) Nodes() graph.Nodes {
	keys := make([]int64, 0, len(c.IDMap))
	for k := range c.IDMap {
		keys = append(keys, k)
	}
	return &NodeSet{nodes: c.IDMap, ids: keys}
}

// From returns an iterator over the direct successors of id.
func (c CGraph) From(id int64) graph.Nodes {
	var keys []int64
	for out := range c.Edges[id] {
		keys = append(keys, out)
	}
	return &NodeSet{nodes: c.IDMap, ids: keys}
}

// HasEdgeBetween reports whether an edge exists between the two nodes,
// regardless of direction.
func (c CGraph) HasEdgeBetween(xid, yid int64) bool {
	return c.Edges[xid][yid] || c.Edges[yid][xid]
}

// Edge returns the directed edge between the two ids, nil if none exists.
func (c CGraph) Edge(uid, vid int64) graph.Edge {
	if c.Edges[uid][vid] {
		return CEdge{from: c.IDMap[uid], to: c.IDMap[vid]}
	}
	return nil
}

// *************** Nodes implementation **********************

// CNode wraps a callable as a graph node.
type CNode struct {
	Fn *program.Callable
}

// ID returns the id of the node.
func (n CNode) ID() int64 {
	return int64(n.Fn.ID())
}

func (n CNode) String() string {
	if n.Fn == nil {
		return ""
	}
	return n.Fn.Name()
}

// NodeSet implements the graph.Nodes iterator over a set of nodes.
type NodeSet struct {
	// nodes is the set of nodes in the iterator
	nodes map[int64]CNode

	// ids is the set of node ids in the iterator
	// invariant: len(ids) = len(nodes)
	ids []int64

	// cur is the current index of the iterator. The current node is nodes[ids[cur]]
	// invariant: 0 <= cur < len(nodes)
	cur int
}

// Next moves the iterator to the next node, returning false when exhausted.
func (ns *NodeSet) Next() bool {
	if ns.cur < len(ns.ids)-1 {
		ns.cur++
		return true
	}
	return false
}

// Len returns the number of nodes in the set.
func (ns *NodeSet) Len() int {
	return len(ns.ids)
}

// Reset rewinds the iterator.
func (ns *NodeSet) Reset() {
	ns.cur = 0
}

// Node returns the current node.
func (ns *NodeSet) Node() graph.Node {
	return ns.nodes[ns.ids[ns.cur]]
}

// *************** Edge implementation **********************

// CEdge implements the graph.Edge interface.
type CEdge struct {
	from CNode
	to   CNode
}

// From returns the origin of the edge.
func (e CEdge) From() graph.Node {
	return e.from
}

// To returns the destination of the edge.
func (e CEdge) To() graph.Node {
	return e.to
}

// ReversedEdge returns a new value representing the reversed edge.
func (e CEdge) ReversedEdge() graph.Edge {
	return CEdge{from: e.to, to: e.from}
}
