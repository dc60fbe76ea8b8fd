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

// StronglyConnectedComponents computes the strongly connected components of
// the graph spanned by nodes and successors, using Tarjan's algorithm.
// Successors returns the targets of directed edges out of a node. The order
// within a component is arbitrary; components are toposorted with successors
// first, so on a tree the order runs from the leaves towards the root. That
// is the order summary-based bottom-up algorithms want.
func StronglyConnectedComponents[T comparable](nodes []T, successors func(T) []T) [][]T {
	tj := &tarjan[T]{
		successors: successors,
		index:      make(map[T]int, len(nodes)),
		lowlink:    make(map[T]int, len(nodes)),
		onStack:    make(map[T]bool, len(nodes)),
	}
	for _, v := range nodes {
		if _, seen := tj.index[v]; !seen {
			tj.visit(v)
		}
	}
	return tj.sccs
}

// ComponentOf maps every node to the index of its component in sccs. Nodes
// in a component of size one with no self-edge are the non-recursive ones.
func ComponentOf[T comparable](sccs [][]T) map[T]int {
	res := make(map[T]int)
	for i, scc := range sccs {
		for _, v := range scc {
			res[v] = i
		}
	}
	return res
}

type tarjan[T comparable] struct {
	successors func(T) []T
	index      map[T]int
	lowlink    map[T]int
	onStack    map[T]bool
	stack      []T
	nextIndex  int
	sccs       [][]T
}

func (tj *tarjan[T]) visit(v T) {
	tj.index[v] = tj.nextIndex
	tj.lowlink[v] = tj.nextIndex
	tj.nextIndex++
	tj.stack = append(tj.stack, v)
	tj.onStack[v] = true
	for _, w := range tj.successors(v) {
		if _, seen := tj.index[w]; !seen {
			tj.visit(w)
			if tj.lowlink[w] < tj.lowlink[v] {
				tj.lowlink[v] = tj.lowlink[w]
			}
		} else if tj.onStack[w] {
			if tj.index[w] < tj.lowlink[v] {
				tj.lowlink[v] = tj.index[w]
			}
		}
	}
	if tj.lowlink[v] == tj.index[v] {
		var scc []T
		for {
			w := tj.stack[len(tj.stack)-1]
			tj.stack = tj.stack[:len(tj.stack)-1]
			tj.onStack[w] = false
			scc = append(scc, w)
			if w == v {
				break
			}
		}
		tj.sccs = append(tj.sccs, scc)
	}
}
