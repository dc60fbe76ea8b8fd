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

package ssaform

import (
	"sort"
	"testing"
)

type cfg map[string][]string

func (g cfg) succ(b string) []string { return g[b] }

func sorted(xs []string) []string {
	ys := append([]string{}, xs...)
	sort.Strings(ys)
	return ys
}

func equalSets(xs, ys []string) bool {
	xs, ys = sorted(xs), sorted(ys)
	if len(xs) != len(ys) {
		return false
	}
	for i := range xs {
		if xs[i] != ys[i] {
			return false
		}
	}
	return true
}

func TestDiamond(t *testing.T) {
	g := cfg{
		"entry": {"then", "else"},
		"then":  {"join"},
		"else":  {"join"},
		"join":  {},
	}
	d := New("entry", g.succ)

	for _, b := range []string{"then", "else", "join"} {
		want := "entry"
		if got, ok := d.Idom(b); !ok || got != want {
			t.Errorf("Idom(%s) = %v %v, want %v", b, got, ok, want)
		}
	}
	if _, ok := d.Idom("entry"); ok {
		t.Errorf("entry should have no immediate dominator")
	}
	if !d.Dominates("entry", "join") || d.Dominates("then", "join") {
		t.Errorf("dominance of join wrong")
	}
	if !equalSets(d.Frontier("then"), []string{"join"}) {
		t.Errorf("Frontier(then) = %v, want [join]", d.Frontier("then"))
	}
	if got := d.PhiBlocks([]string{"then"}); !equalSets(got, []string{"join"}) {
		t.Errorf("PhiBlocks({then}) = %v, want [join]", got)
	}
	if got := d.PhiBlocks([]string{"entry"}); len(got) != 0 {
		t.Errorf("PhiBlocks({entry}) = %v, want none", got)
	}
}

func TestLoop(t *testing.T) {
	g := cfg{
		"entry": {"head"},
		"head":  {"body", "exit"},
		"body":  {"head"},
		"exit":  {},
	}
	d := New("entry", g.succ)

	if got, _ := d.Idom("body"); got != "head" {
		t.Errorf("Idom(body) = %v, want head", got)
	}
	if got, _ := d.Idom("exit"); got != "head" {
		t.Errorf("Idom(exit) = %v, want head", got)
	}
	// The loop header sits in its own frontier and in the body's.
	if !equalSets(d.Frontier("body"), []string{"head"}) {
		t.Errorf("Frontier(body) = %v, want [head]", d.Frontier("body"))
	}
	if !equalSets(d.Frontier("head"), []string{"head"}) {
		t.Errorf("Frontier(head) = %v, want [head]", d.Frontier("head"))
	}
	if got := d.PhiBlocks([]string{"body"}); !equalSets(got, []string{"head"}) {
		t.Errorf("PhiBlocks({body}) = %v, want [head]", got)
	}
}

func TestIteratedFrontier(t *testing.T) {
	// The phi placed at join1 is itself a definition whose frontier holds
	// join2, so a single def in "a" needs phis at both joins.
	g := cfg{
		"entry": {"a", "b", "c"},
		"a":     {"join1"},
		"b":     {"join1"},
		"join1": {"join2"},
		"c":     {"join2"},
		"join2": {},
	}
	d := New("entry", g.succ)
	if got := d.PhiBlocks([]string{"a"}); !equalSets(got, []string{"join1", "join2"}) {
		t.Errorf("PhiBlocks({a}) = %v, want [join1 join2]", got)
	}
	if got := d.PhiBlocks([]string{"c"}); !equalSets(got, []string{"join2"}) {
		t.Errorf("PhiBlocks({c}) = %v, want [join2]", got)
	}
}

func TestSelfLoop(t *testing.T) {
	g := cfg{
		"entry": {"spin"},
		"spin":  {"spin", "out"},
		"out":   {},
	}
	d := New("entry", g.succ)
	if got, _ := d.Idom("spin"); got != "entry" {
		t.Errorf("Idom(spin) = %v, want entry", got)
	}
	if !equalSets(d.Frontier("spin"), []string{"spin"}) {
		t.Errorf("Frontier(spin) = %v, want [spin]", d.Frontier("spin"))
	}
}

func TestUnreachable(t *testing.T) {
	g := cfg{
		"entry":  {"mid"},
		"mid":    {},
		"island": {"mid"},
	}
	d := New("entry", g.succ)
	if d.Reachable("island") {
		t.Errorf("island should be unreachable")
	}
	if _, ok := d.Idom("island"); ok {
		t.Errorf("unreachable block has an idom")
	}
	if d.Dominates("island", "mid") || d.Dominates("entry", "island") {
		t.Errorf("unreachable blocks must not take part in dominance")
	}
	if got := d.PhiBlocks([]string{"island"}); len(got) != 0 {
		t.Errorf("PhiBlocks over unreachable defs = %v, want none", got)
	}
	// The edge island -> mid must not make mid a merge point.
	if got := d.PhiBlocks([]string{"entry"}); len(got) != 0 {
		t.Errorf("PhiBlocks({entry}) = %v, want none", got)
	}
}

func TestBlocksOrder(t *testing.T) {
	g := cfg{
		"entry": {"a"},
		"a":     {"b"},
		"b":     {},
	}
	d := New("entry", g.succ)
	blocks := d.Blocks()
	if len(blocks) != 3 || blocks[0] != "entry" || blocks[2] != "b" {
		t.Errorf("Blocks() = %v, want reverse postorder from entry", blocks)
	}
	if len(d.Children("entry")) != 1 || d.Children("entry")[0] != "a" {
		t.Errorf("Children(entry) = %v, want [a]", d.Children("entry"))
	}
}
