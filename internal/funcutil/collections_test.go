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

package funcutil

import (
	"strconv"
	"testing"

	"golang.org/x/exp/slices"
)

func TestMerge(t *testing.T) {
	a := map[string]int{"x": 1, "y": 2}
	b := map[string]int{"y": 10, "z": 3}
	Merge(a, b, func(x, y int) int { return x + y })
	want := map[string]int{"x": 1, "y": 12, "z": 3}
	for k, v := range want {
		if a[k] != v {
			t.Errorf("a[%q] = %d, want %d", k, a[k], v)
		}
	}
	if len(a) != len(want) {
		t.Errorf("len(a) = %d, want %d", len(a), len(want))
	}
}

func TestUnion(t *testing.T) {
	a := map[int]bool{1: true, 2: false}
	b := map[int]bool{2: true, 3: true}
	Union(a, b)
	if !a[1] || !a[2] || !a[3] {
		t.Errorf("Union = %v, want 1, 2, 3 present", a)
	}
}

func TestMapAndIter(t *testing.T) {
	in := []int{3, 1, 2}
	got := Map(in, strconv.Itoa)
	if !slices.Equal(got, []string{"3", "1", "2"}) {
		t.Errorf("Map = %v, want input order preserved", got)
	}

	sum := 0
	Iter(in, func(x int) { sum += x })
	if sum != 6 {
		t.Errorf("Iter sum = %d, want 6", sum)
	}
}

func TestMapParallelKeepsOrder(t *testing.T) {
	// the problem runner relies on results lining up with their inputs
	in := make([]int, 100)
	for i := range in {
		in[i] = i
	}
	for _, routines := range []int{0, 1, 4} {
		got := MapParallel(in, func(x int) int { return 2 * x }, routines)
		for i, x := range got {
			if x != 2*i {
				t.Fatalf("MapParallel(routines=%d)[%d] = %d, want %d", routines, i, x, 2*i)
			}
		}
	}
}

func TestExistsContains(t *testing.T) {
	a := []string{"fwd", "bwd"}
	if !Exists(a, func(s string) bool { return len(s) == 3 }) {
		t.Errorf("Exists missed a matching element")
	}
	if Exists(nil, func(s string) bool { return true }) {
		t.Errorf("Exists on empty slice = true")
	}
	if !Contains(a, "bwd") || Contains(a, "mid") {
		t.Errorf("Contains(%v): bwd=%v mid=%v", a, Contains(a, "bwd"), Contains(a, "mid"))
	}
}

func TestSortedKeys(t *testing.T) {
	m := map[int]string{3: "c", 1: "a", 2: "b"}
	if got := SortedKeys(m); !slices.Equal(got, []int{1, 2, 3}) {
		t.Errorf("SortedKeys = %v, want [1 2 3]", got)
	}
}

func TestSetToOrderedSlice(t *testing.T) {
	set := map[int]bool{4: true, 2: true, 9: false}
	if got := SetToOrderedSlice(set); !slices.Equal(got, []int{2, 4}) {
		t.Errorf("SetToOrderedSlice = %v, want [2 4] without the false element", got)
	}
}

func TestReverse(t *testing.T) {
	a := []int{1, 2, 3, 4}
	Reverse(a)
	if !slices.Equal(a, []int{4, 3, 2, 1}) {
		t.Errorf("Reverse = %v", a)
	}
	var empty []int
	Reverse(empty)
}
