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
	"testing"

	"github.com/seep-analysis/seep/analysis/program"
)

func TestPathGraphContraction(t *testing.T) {
	b := program.NewBuilder()
	str := program.NewType("string")
	f := b.NewCallable("t.f", pos(1))
	src := b.NewExpr(f.Entry(), "src", str, pos(2))
	hops := make([]program.Node, 3)
	prev := program.Node(src)
	for i := range hops {
		h := b.NewExpr(f.Entry(), "h", str, pos(3+i))
		b.AddLocalStep(prev, h, true)
		hops[i] = h
		prev = h
	}
	snk := b.NewExpr(f.Entry(), "snk", str, pos(7))
	b.AddLocalStep(prev, snk, true)
	prog := finish(t, b)

	res := solve(t, prog, ProblemSpec{Name: "chain", Sources: isNode(src), Sinks: isNode(snk)})
	if !res.HasFlow() {
		t.Fatalf("five-node chain lost")
	}
	// every hop is explored and kept, none of them is worth reporting
	if res.Stats.Kept != 5 || res.Stats.States != 5 {
		t.Errorf("Stats = %+v, want 5 states, all kept", res.Stats)
	}
	if res.Stats.CandidateNodes != 5 || res.Stats.Fronts != 5 {
		t.Errorf("Stats = %+v, want 5 candidates with one front each", res.Stats)
	}
	if got := len(res.Graph.Nodes); got != 2 {
		t.Errorf("graph has %d waypoints, want the two endpoints", got)
	}
	paths := res.FlowPaths(0)
	if len(paths) != 1 || len(paths[0]) != 2 {
		t.Errorf("FlowPaths(0) = %v, want one direct src-snk path", paths)
	}
}

func TestPathGraphWaypoints(t *testing.T) {
	b := program.NewBuilder()
	str := program.NewType("string")
	box := program.NewType("Box")
	data := b.FieldContent(box, "data", str)
	f := b.NewCallable("t.f", pos(1))
	src := b.NewExpr(f.Entry(), "src", str, pos(2))
	obj := b.NewExpr(f.Entry(), "obj", box, pos(3))
	out := b.NewExpr(f.Entry(), "out", str, pos(4))
	snk := b.NewExpr(f.Entry(), "snk", str, pos(5))
	b.AddStore(src, data, obj)
	b.AddRead(obj, data, out)
	b.AddLocalStep(out, snk, true)
	prog := finish(t, b)

	res := solve(t, prog, ProblemSpec{Name: "waypoints", Sources: isNode(src), Sinks: isNode(snk)})
	paths := res.FlowPaths(0)
	if len(paths) != 1 {
		t.Fatalf("FlowPaths(0) returned %d paths, want 1", len(paths))
	}
	p := paths[0]
	wantNodes := []program.Node{src, obj, out, snk}
	if len(p) != len(wantNodes) {
		t.Fatalf("path has %d waypoints, want %d: %v", len(p), len(wantNodes), p)
	}
	for i, wp := range p {
		if wp.Node != wantNodes[i] {
			t.Errorf("waypoint %d is %v, want %v", i, wp.Node, wantNodes[i])
		}
	}
	if got, want := p[1].String(), "obj.data"; got != want {
		t.Errorf("holder waypoint renders %q, want %q", got, want)
	}
	if !p[0].Path.IsEmpty() || !p[2].Path.IsEmpty() || !p[3].Path.IsEmpty() {
		t.Errorf("value waypoints carry contents: %v", p)
	}
}

func TestPathsCap(t *testing.T) {
	b := program.NewBuilder()
	str := program.NewType("string")
	f := b.NewCallable("t.f", pos(1))
	src := b.NewExpr(f.Entry(), "src", str, pos(2))
	mid := b.NewExpr(f.Entry(), "mid", str, pos(3))
	snk1 := b.NewExpr(f.Entry(), "snk1", str, pos(4))
	snk2 := b.NewExpr(f.Entry(), "snk2", str, pos(5))
	b.AddLocalStep(src, mid, true)
	b.AddLocalStep(mid, snk1, true)
	b.AddLocalStep(mid, snk2, true)
	prog := finish(t, b)

	res := solve(t, prog, ProblemSpec{Name: "cap", Sources: isNode(src), Sinks: oneOf(snk1, snk2)})
	if got := len(res.FlowPaths(0)); got != 2 {
		t.Errorf("FlowPaths(0) returned %d paths, want 2", got)
	}
	if got := len(res.FlowPaths(1)); got != 1 {
		t.Errorf("FlowPaths(1) returned %d paths, want the cap to hold", got)
	}
	if got := len(res.Graph.Sources); got != 1 {
		t.Errorf("graph indexes %d sources, want 1", got)
	}
	if got := len(res.Graph.Sinks); got != 2 {
		t.Errorf("graph indexes %d sinks, want 2", got)
	}
}

func TestSourceSinkQueries(t *testing.T) {
	b := program.NewBuilder()
	str := program.NewType("string")
	f := b.NewCallable("t.f", pos(1))
	s1 := b.NewExpr(f.Entry(), "s1", str, pos(2))
	s2 := b.NewExpr(f.Entry(), "s2", str, pos(3))
	k1 := b.NewExpr(f.Entry(), "k1", str, pos(4))
	k2 := b.NewExpr(f.Entry(), "k2", str, pos(5))
	mid := b.NewExpr(f.Entry(), "mid", str, pos(6))
	b.AddLocalStep(s1, mid, true)
	b.AddLocalStep(s2, mid, true)
	b.AddLocalStep(mid, k1, true)
	b.AddLocalStep(mid, k2, true)
	prog := finish(t, b)

	res := solve(t, prog, ProblemSpec{Name: "queries", Sources: oneOf(s1, s2), Sinks: oneOf(k1, k2)})
	pairs := res.SourceSinkPairs()
	want := []SourceSinkPair{
		{Source: s1, Sink: k1},
		{Source: s1, Sink: k2},
		{Source: s2, Sink: k1},
		{Source: s2, Sink: k2},
	}
	if len(pairs) != len(want) {
		t.Fatalf("SourceSinkPairs() = %v, want all four pairings", pairs)
	}
	for i := range want {
		if pairs[i] != want[i] {
			t.Errorf("pair %d = %v, want %v (sorted by source then sink)", i, pairs[i], want[i])
		}
	}
	if !res.HasFlowTo(k1) || !res.HasFlowTo(k2) {
		t.Errorf("HasFlowTo misses a reported sink")
	}
	if res.HasFlowTo(mid) {
		t.Errorf("HasFlowTo(mid) = true for a non-sink")
	}
	if !res.HasFlowPath(s2, k1) {
		t.Errorf("HasFlowPath(s2, k1) = false, want true")
	}
	if res.HasFlowPath(k1, s2) {
		t.Errorf("HasFlowPath holds with the endpoints swapped")
	}
}
