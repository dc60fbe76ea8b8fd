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

// Package ssaform provides the dominance machinery behind SSA-style
// constructions: dominator trees, dominance frontiers and phi placement,
// generic over the block type so any control-flow graph shape can use it.
package ssaform

import "sort"

// A DomTree holds the dominator tree of a control-flow graph rooted at an
// entry block. Computed with the iterative algorithm of Cooper, Harvey and
// Kennedy ("A Simple, Fast Dominance Algorithm", 2001), which runs in O(E)
// for the reducible graphs front ends produce.
type DomTree[B comparable] struct {
	entry    B
	post     []B
	postIdx  map[B]int
	idom     map[B]B
	preds    map[B][]B
	children map[B][]B
	frontier map[B][]B
}

// New computes the dominator tree of the graph reachable from entry.
// successors returns the control-flow successors of a block; blocks not
// reachable from entry are ignored by every query.
func New[B comparable](entry B, successors func(B) []B) *DomTree[B] {
	d := &DomTree[B]{
		entry:    entry,
		postIdx:  map[B]int{},
		idom:     map[B]B{},
		preds:    map[B][]B{},
		children: map[B][]B{},
		frontier: map[B][]B{},
	}
	d.traverse(entry, successors, map[B]bool{})
	for i, b := range d.post {
		d.postIdx[b] = i
	}
	d.computeIdoms()
	d.computeChildren()
	d.computeFrontiers()
	return d
}

// traverse records the postorder and the predecessor lists of the reachable
// subgraph.
func (d *DomTree[B]) traverse(b B, successors func(B) []B, visited map[B]bool) {
	visited[b] = true
	seen := map[B]bool{}
	for _, s := range successors(b) {
		// Parallel edges count once.
		if seen[s] {
			continue
		}
		seen[s] = true
		d.preds[s] = append(d.preds[s], b)
		if !visited[s] {
			d.traverse(s, successors, visited)
		}
	}
	d.post = append(d.post, b)
}

func (d *DomTree[B]) computeIdoms() {
	d.idom[d.entry] = d.entry
	changed := true
	for changed {
		changed = false
		// Reverse postorder, entry excluded.
		for i := len(d.post) - 1; i >= 0; i-- {
			b := d.post[i]
			if b == d.entry {
				continue
			}
			var newIdom B
			found := false
			for _, p := range d.preds[b] {
				if _, ok := d.idom[p]; !ok {
					continue
				}
				if !found {
					newIdom = p
					found = true
				} else {
					newIdom = d.intersect(p, newIdom)
				}
			}
			if !found {
				continue
			}
			if old, ok := d.idom[b]; !ok || old != newIdom {
				d.idom[b] = newIdom
				changed = true
			}
		}
	}
}

// intersect walks the two dominator chains up to their least common
// ancestor. Blocks closer to the entry have higher postorder indices.
func (d *DomTree[B]) intersect(b1, b2 B) B {
	for b1 != b2 {
		for d.postIdx[b1] < d.postIdx[b2] {
			b1 = d.idom[b1]
		}
		for d.postIdx[b2] < d.postIdx[b1] {
			b2 = d.idom[b2]
		}
	}
	return b1
}

func (d *DomTree[B]) computeChildren() {
	for _, b := range d.post {
		if b == d.entry {
			continue
		}
		parent := d.idom[b]
		d.children[parent] = append(d.children[parent], b)
	}
	for _, cs := range d.children {
		sort.Slice(cs, func(i, j int) bool { return d.postIdx[cs[i]] > d.postIdx[cs[j]] })
	}
}

// computeFrontiers fills the dominance frontiers: b is in the frontier of
// every block on a predecessor's dominator chain strictly below idom(b).
func (d *DomTree[B]) computeFrontiers() {
	for _, b := range d.post {
		if len(d.preds[b]) < 2 {
			continue
		}
		for _, p := range d.preds[b] {
			runner := p
			for runner != d.idom[b] {
				d.frontier[runner] = append(d.frontier[runner], b)
				runner = d.idom[runner]
			}
		}
	}
}

// Entry returns the root of the tree.
func (d *DomTree[B]) Entry() B { return d.entry }

// Reachable reports whether b is reachable from the entry.
func (d *DomTree[B]) Reachable(b B) bool {
	_, ok := d.postIdx[b]
	return ok
}

// Blocks returns the reachable blocks in reverse postorder, entry first.
func (d *DomTree[B]) Blocks() []B {
	res := make([]B, len(d.post))
	for i, b := range d.post {
		res[len(d.post)-1-i] = b
	}
	return res
}

// Idom returns the immediate dominator of b. The second result is false for
// the entry and for unreachable blocks.
func (d *DomTree[B]) Idom(b B) (B, bool) {
	if b == d.entry || !d.Reachable(b) {
		var zero B
		return zero, false
	}
	return d.idom[b], true
}

// Children returns the blocks immediately dominated by b, in reverse
// postorder.
func (d *DomTree[B]) Children(b B) []B { return d.children[b] }

// Dominates reports whether a dominates b. Every block dominates itself;
// unreachable blocks dominate nothing and are dominated by nothing.
func (d *DomTree[B]) Dominates(a, b B) bool {
	if !d.Reachable(a) || !d.Reachable(b) {
		return false
	}
	for {
		if a == b {
			return true
		}
		if b == d.entry {
			return false
		}
		b = d.idom[b]
	}
}

// Frontier returns the dominance frontier of b: the first blocks reachable
// from b that b does not strictly dominate.
func (d *DomTree[B]) Frontier(b B) []B { return d.frontier[b] }

// PhiBlocks returns the blocks needing a phi for a variable defined in the
// given blocks: the iterated dominance frontier, in reverse postorder.
// Unreachable definition blocks contribute nothing.
func (d *DomTree[B]) PhiBlocks(defs []B) []B {
	queued := map[B]bool{}
	placed := map[B]bool{}
	var work []B
	for _, b := range defs {
		if d.Reachable(b) && !queued[b] {
			queued[b] = true
			work = append(work, b)
		}
	}
	var res []B
	for len(work) > 0 {
		b := work[len(work)-1]
		work = work[:len(work)-1]
		for _, f := range d.frontier[b] {
			if placed[f] {
				continue
			}
			placed[f] = true
			res = append(res, f)
			if !queued[f] {
				queued[f] = true
				work = append(work, f)
			}
		}
	}
	sort.Slice(res, func(i, j int) bool { return d.postIdx[res[i]] > d.postIdx[res[j]] })
	return res
}
