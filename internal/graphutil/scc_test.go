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
	"fmt"
	"math/rand"
	"sort"
	"testing"
)

type intGraph map[int][]int

func (m intGraph) nodes() []int {
	ks := make([]int, 0, len(m))
	for k := range m {
		ks = append(ks, k)
	}
	sort.Ints(ks)
	return ks
}

func (m intGraph) succ(k int) []int { return m[k] }

// reaches reports whether y is reachable from x in m.
func (m intGraph) reaches(x, y int) bool {
	visited := map[int]bool{}
	var visit func(int)
	visit = func(n int) {
		if visited[n] {
			return
		}
		visited[n] = true
		for _, nn := range m[n] {
			visit(nn)
		}
	}
	visit(x)
	return visited[y]
}

// checkComponents verifies the components partition the graph, are strongly
// connected, and come out toposorted with successors first.
func checkComponents(m intGraph, sccs [][]int) error {
	covered := map[int]bool{}
	for i, scc := range sccs {
		for _, x := range scc {
			if covered[x] {
				return fmt.Errorf("repeated node %v\nin: %v", x, m)
			}
			covered[x] = true
			for _, y := range scc {
				// Mutual reachability makes it strongly connected (though
				// not necessarily maximal, which the partition check covers).
				if x != y && !m.reaches(x, y) {
					return fmt.Errorf("component nodes %v and %v not mutually reachable\nin: %v", x, y, m)
				}
			}
			for j := i + 1; j < len(sccs); j++ {
				for _, y := range sccs[j] {
					if m.reaches(x, y) {
						return fmt.Errorf("node %v ordered before its reachable successor %v\nin: %v", x, y, m)
					}
				}
			}
		}
	}
	for n := range m {
		if !covered[n] {
			return fmt.Errorf("missing node %v\nin: %v", n, m)
		}
	}
	return nil
}

func TestStronglyConnectedComponents(t *testing.T) {
	check := func(m intGraph) {
		t.Helper()
		sccs := StronglyConnectedComponents(m.nodes(), m.succ)
		if err := checkComponents(m, sccs); err != nil {
			t.Fatalf("bad components: %v", err)
		}
	}
	check(intGraph{0: {0}})
	check(intGraph{0: {}})
	check(intGraph{0: {0, 1}, 1: {}})
	check(intGraph{0: {1, 2}, 1: {3}, 2: {1}, 3: {}})
	check(intGraph{0: {1, 2}, 1: {3}, 2: {1, 0}, 3: {}})
	check(intGraph{0: {3, 1}, 1: {0}, 2: {1}, 3: {3}})
	for i := 0; i < 100; i++ {
		check(randomGraph(10, 68348438+int64(i)))
	}
	for i := 0; i < 10; i++ {
		check(randomGraph(50, 184618+int64(i)))
	}
	for i := 0; i < 3; i++ {
		check(randomGraph(100, 4875934+int64(i)))
	}
}

func TestComponentOf(t *testing.T) {
	m := intGraph{0: {1}, 1: {2}, 2: {1, 3}, 3: {}}
	sccs := StronglyConnectedComponents(m.nodes(), m.succ)
	idx := ComponentOf(sccs)
	if len(idx) != 4 {
		t.Fatalf("ComponentOf covers %d nodes, want 4", len(idx))
	}
	if idx[1] != idx[2] {
		t.Errorf("1 and 2 are mutually reachable but in components %d and %d", idx[1], idx[2])
	}
	for _, pair := range [][2]int{{0, 1}, {1, 3}, {0, 3}} {
		if idx[pair[0]] == idx[pair[1]] {
			t.Errorf("%d and %d are not mutually reachable but share component %d", pair[0], pair[1], idx[pair[0]])
		}
	}
}

func randomGraph(size int, seed int64) intGraph {
	m := intGraph{}
	r := rand.New(rand.NewSource(seed))
	for i := 0; i < size; i++ {
		m[i] = []int{}
		for j := 0; j < 3; j++ {
			if r.Float32() < 0.7 {
				m[i] = append(m[i], int(r.Int63()%int64(size)))
			}
		}
	}
	return m
}
