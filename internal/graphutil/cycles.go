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

	"github.com/yourbasic/graph"
)

// FindAllElementaryCycles returns every elementary cycle of the graph, as
// node-id sequences whose first and last entries repeat the starting node.
// This is Donald B. Johnson's algorithm from "Finding All The Elementary
// Circuits of a Directed Graph", 1975, with self-loops reported as cycles
// of length one.
func FindAllElementaryCycles(cg CGraph) [][]int64 {
	s := &cycleSearch{}
	for _, v := range cg.Keys {
		if cg.Edges[v][v] {
			s.cycles = append(s.cycles, []int64{v, v})
		}
	}
	keys := cg.Keys
	for start := 0; start < len(keys); start++ {
		fg := Subgraph(cg, keys[start:])
		comp := leastComponent(graph.StrongComponents(fg))
		if comp == nil {
			break
		}
		root := comp[0]
		for keys[start] != root {
			start++
		}
		s.reset()
		s.circuit(root, root, Subgraph(fg, comp))
	}
	return s.cycles
}

// leastComponent picks the strongly connected component of two or more
// nodes containing the smallest node id, sorted. Johnson's search is rooted
// there; singleton components carry no cycles of length two or more.
func leastComponent(components [][]int) []int64 {
	var best []int64
	for _, comp := range components {
		if len(comp) < 2 {
			continue
		}
		ids := make([]int64, len(comp))
		for i, v := range comp {
			ids[i] = int64(v)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		if best == nil || ids[0] < best[0] {
			best = ids
		}
	}
	return best
}

type cycleSearch struct {
	blocked   map[int64]bool
	blockList map[int64]map[int64]bool
	stack     []int64
	cycles    [][]int64
}

func (s *cycleSearch) reset() {
	s.blocked = map[int64]bool{}
	s.blockList = map[int64]map[int64]bool{}
	s.stack = s.stack[:0]
}

func (s *cycleSearch) unblock(u int64) {
	s.blocked[u] = false
	for w := range s.blockList[u] {
		if s.blocked[w] {
			s.unblock(w)
		}
	}
	delete(s.blockList, u)
}

// circuit explores elementary paths from v back to the root, recording each
// closed one. Returns whether some cycle through v was found.
func (s *cycleSearch) circuit(v, root int64, g CGraph) bool {
	found := false
	s.stack = append(s.stack, v)
	s.blocked[v] = true
	for w := range g.Edges[v] {
		if w == root {
			// Length-one cycles were collected up front.
			if len(s.stack) > 1 {
				cycle := make([]int64, len(s.stack), len(s.stack)+1)
				copy(cycle, s.stack)
				s.cycles = append(s.cycles, append(cycle, root))
			}
			found = true
		} else if !s.blocked[w] {
			if s.circuit(w, root, g) {
				found = true
			}
		}
	}
	if found {
		s.unblock(v)
	} else {
		for w := range g.Edges[v] {
			if s.blockList[w] == nil {
				s.blockList[w] = map[int64]bool{}
			}
			s.blockList[w][v] = true
		}
	}
	s.stack = s.stack[:len(s.stack)-1]
	return found
}
