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
	"testing"

	"github.com/seep-analysis/seep/analysis/config"
	"github.com/seep-analysis/seep/analysis/program"
)

func pos(line int) program.Position { return program.Position{File: "flow.x", Line: line, Col: 1} }

func quietConfig() *config.Config {
	cfg := config.NewDefault()
	cfg.LogLevel = int(config.ErrLevel)
	return cfg
}

func finish(t *testing.T, b *program.Builder) *program.Program {
	t.Helper()
	prog, err := b.Finish()
	if err != nil {
		t.Fatalf("Finish() returned %v", err)
	}
	return prog
}

func testState(t *testing.T, prog *program.Program) *AnalyzerState {
	t.Helper()
	s, err := NewInitializedAnalyzerState(prog, quietConfig())
	if err != nil {
		t.Fatalf("NewInitializedAnalyzerState returned %v", err)
	}
	return s
}

func solve(t *testing.T, prog *program.Program, p Problem) *FlowResult {
	t.Helper()
	res, err := testState(t, prog).Solve(p)
	if err != nil {
		t.Fatalf("Solve(%s) returned %v", p.Tag(), err)
	}
	return res
}

func isNode(want program.Node) func(program.Node) bool {
	return func(n program.Node) bool { return n == want }
}

func oneOf(nodes ...program.Node) func(program.Node) bool {
	return func(n program.Node) bool {
		for _, m := range nodes {
			if n == m {
				return true
			}
		}
		return false
	}
}

// waypointAt returns the path-graph node holding the given program node, or
// nil when no waypoint tracks it.
func waypointAt(g *PathGraph, n program.Node) *PathNode {
	for _, pn := range g.Nodes {
		if pn.Node == n {
			return pn
		}
	}
	return nil
}

func TestSolveDirectFlow(t *testing.T) {
	b := program.NewBuilder()
	str := program.NewType("string")
	f := b.NewCallable("t.f", pos(1))
	src := b.NewExpr(f.Entry(), "src", str, pos(2))
	mid := b.NewExpr(f.Entry(), "mid", str, pos(3))
	snk := b.NewExpr(f.Entry(), "snk", str, pos(4))
	b.AddLocalStep(src, mid, true)
	b.AddLocalStep(mid, snk, true)
	prog := finish(t, b)

	res := solve(t, prog, ProblemSpec{Name: "direct", Sources: isNode(src), Sinks: isNode(snk)})
	if !res.HasFlow() {
		t.Fatalf("no flow reported for a two-step local chain")
	}
	pairs := res.SourceSinkPairs()
	if len(pairs) != 1 || pairs[0].Source != src || pairs[0].Sink != snk {
		t.Fatalf("SourceSinkPairs() = %v, want exactly (src, snk)", pairs)
	}
	paths := res.FlowPaths(0)
	if len(paths) != 1 {
		t.Fatalf("FlowPaths(0) returned %d paths, want 1", len(paths))
	}
	p := paths[0]
	// mid only forwards the value, so it is contracted out of the report
	if len(p) != 2 {
		t.Fatalf("path has %d waypoints, want source and sink only: %v", len(p), p)
	}
	if p[0].Node != src || !p[0].Source {
		t.Errorf("path starts at %v (source=%v), want src", p[0].Node, p[0].Source)
	}
	if p[1].Node != snk || !p[1].Sink {
		t.Errorf("path ends at %v (sink=%v), want snk", p[1].Node, p[1].Sink)
	}
	if !p[0].Path.IsEmpty() || !p[1].Path.IsEmpty() {
		t.Errorf("endpoints carry access paths %v and %v, want both empty", p[0].Path, p[1].Path)
	}
}

func TestSolveStoreRead(t *testing.T) {
	tests := []struct {
		name     string
		readSame bool
		wantFlow bool
	}{
		{"read matches the store", true, true},
		{"read of an unstored content", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := program.NewBuilder()
			str := program.NewType("string")
			box := program.NewType("Box")
			data := b.FieldContent(box, "data", str)
			other := b.FieldContent(box, "other", str)

			f := b.NewCallable("t.f", pos(1))
			src := b.NewExpr(f.Entry(), "src", str, pos(2))
			obj := b.NewExpr(f.Entry(), "obj", box, pos(3))
			out := b.NewExpr(f.Entry(), "out", str, pos(4))
			snk := b.NewExpr(f.Entry(), "snk", str, pos(5))
			b.AddStore(src, data, obj)
			rd := data
			if !tt.readSame {
				rd = other
			}
			b.AddRead(obj, rd, out)
			b.AddLocalStep(out, snk, true)
			prog := finish(t, b)

			res := solve(t, prog, ProblemSpec{Name: "fields", Sources: isNode(src), Sinks: isNode(snk)})
			if res.HasFlow() != tt.wantFlow {
				t.Fatalf("HasFlow() = %v, want %v", res.HasFlow(), tt.wantFlow)
			}
			if !tt.wantFlow {
				if got := len(res.Graph.Nodes); got != 0 {
					t.Errorf("mismatched read kept %d waypoints, want none", got)
				}
				return
			}
			pn := waypointAt(res.Graph, obj)
			if pn == nil {
				t.Fatalf("no waypoint tracks the holder object")
			}
			if pn.Path.Head() != data {
				t.Errorf("holder waypoint tracks %v, want .data", pn.Path)
			}
		})
	}
}

func TestSolveBarriers(t *testing.T) {
	tests := []struct {
		name  string
		apply func(p *ProblemSpec, src, mid, snk program.Node)
		want  bool
	}{
		{
			"no barriers",
			func(p *ProblemSpec, src, mid, snk program.Node) {},
			true,
		},
		{
			"barrier on the middle",
			func(p *ProblemSpec, src, mid, snk program.Node) { p.Barriers = isNode(mid) },
			false,
		},
		{
			"barrier-in on the middle",
			func(p *ProblemSpec, src, mid, snk program.Node) { p.BarriersIn = isNode(mid) },
			false,
		},
		{
			"barrier-out on the middle",
			func(p *ProblemSpec, src, mid, snk program.Node) { p.BarriersOut = isNode(mid) },
			false,
		},
		{
			// a sanitizer that is itself the source does not erase the source
			"barrier-in on the source",
			func(p *ProblemSpec, src, mid, snk program.Node) { p.BarriersIn = isNode(src) },
			true,
		},
		{
			"barrier-out on the sink",
			func(p *ProblemSpec, src, mid, snk program.Node) { p.BarriersOut = isNode(snk) },
			true,
		},
		{
			// flow must still be able to enter a sink for it to trigger
			"barrier-in on the sink",
			func(p *ProblemSpec, src, mid, snk program.Node) { p.BarriersIn = isNode(snk) },
			false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := program.NewBuilder()
			str := program.NewType("string")
			f := b.NewCallable("t.f", pos(1))
			src := b.NewExpr(f.Entry(), "src", str, pos(2))
			mid := b.NewExpr(f.Entry(), "mid", str, pos(3))
			snk := b.NewExpr(f.Entry(), "snk", str, pos(4))
			b.AddLocalStep(src, mid, true)
			b.AddLocalStep(mid, snk, true)
			prog := finish(t, b)

			p := ProblemSpec{Name: "barriers", Sources: isNode(src), Sinks: isNode(snk)}
			tt.apply(&p, src, mid, snk)
			res := solve(t, prog, p)
			if res.HasFlow() != tt.want {
				t.Errorf("HasFlow() = %v, want %v", res.HasFlow(), tt.want)
			}
		})
	}
}

func TestSolveTaintSteps(t *testing.T) {
	t.Run("taint moves emptiness", func(t *testing.T) {
		b := program.NewBuilder()
		str := program.NewType("string")
		f := b.NewCallable("t.f", pos(1))
		src := b.NewExpr(f.Entry(), "src", str, pos(2))
		drv := b.NewExpr(f.Entry(), "drv", str, pos(3))
		snk := b.NewExpr(f.Entry(), "snk", str, pos(4))
		b.AddLocalStep(src, drv, false)
		b.AddLocalStep(drv, snk, true)
		prog := finish(t, b)

		res := solve(t, prog, ProblemSpec{Name: "taint", Sources: isNode(src), Sinks: isNode(snk)})
		if !res.HasFlow() {
			t.Fatalf("value-deriving step did not propagate")
		}
		// the derivation is an event, so drv stays in the report
		paths := res.FlowPaths(0)
		if len(paths) != 1 || len(paths[0]) != 3 {
			t.Fatalf("FlowPaths(0) = %v, want one src-drv-snk path", paths)
		}
		if paths[0][1].Node != drv {
			t.Errorf("middle waypoint is %v, want drv", paths[0][1].Node)
		}
	})

	t.Run("taint drops tracked contents", func(t *testing.T) {
		b := program.NewBuilder()
		str := program.NewType("string")
		box := program.NewType("Box")
		data := b.FieldContent(box, "data", str)
		f := b.NewCallable("t.f", pos(1))
		src := b.NewExpr(f.Entry(), "src", str, pos(2))
		obj := b.NewExpr(f.Entry(), "obj", box, pos(3))
		w := b.NewExpr(f.Entry(), "w", box, pos(4))
		snk1 := b.NewExpr(f.Entry(), "snk1", box, pos(5))
		v := b.NewExpr(f.Entry(), "v", str, pos(6))
		snk2 := b.NewExpr(f.Entry(), "snk2", str, pos(7))
		b.AddStore(src, data, obj)
		b.AddLocalStep(obj, w, false)
		b.AddLocalStep(w, snk1, true)
		b.AddRead(obj, data, v)
		b.AddLocalStep(v, snk2, true)
		prog := finish(t, b)

		res := solve(t, prog, ProblemSpec{Name: "taint", Sources: isNode(src), Sinks: oneOf(snk1, snk2)})
		// the read recovers the stored value, the derivation of the whole
		// holder does not taint its field
		if !res.HasFlowTo(snk2) {
			t.Errorf("read of the stored field did not reach its sink")
		}
		if res.HasFlowTo(snk1) {
			t.Errorf("holder derivation leaked a tracked field")
		}
	})
}

func TestSolveAdditionalSteps(t *testing.T) {
	b := program.NewBuilder()
	str := program.NewType("string")
	f := b.NewCallable("t.f", pos(1))
	src := b.NewExpr(f.Entry(), "src", str, pos(2))
	g := b.NewCallable("t.g", pos(10))
	dst := b.NewExpr(g.Entry(), "dst", str, pos(11))
	snk := b.NewExpr(g.Entry(), "snk", str, pos(12))
	b.AddLocalStep(dst, snk, true)
	prog := finish(t, b)

	base := ProblemSpec{Name: "extra", Sources: isNode(src), Sinks: isNode(snk)}
	if res := solve(t, prog, base); res.HasFlow() {
		t.Fatalf("disconnected callables flow without the extra step")
	}

	withStep := base
	withStep.AdditionalSteps = func(from, to program.Node) bool { return from == src && to == dst }
	res := solve(t, prog, withStep)
	if !res.HasFlow() {
		t.Fatalf("problem-declared step did not connect the callables")
	}
	if !res.HasFlowPath(src, snk) {
		t.Errorf("flow reported but not from src to snk: %v", res.SourceSinkPairs())
	}
}

func TestSolveJumpSteps(t *testing.T) {
	b := program.NewBuilder()
	str := program.NewType("string")
	box := program.NewType("Box")
	data := b.FieldContent(box, "data", str)

	f := b.NewCallable("t.writer", pos(1))
	src := b.NewExpr(f.Entry(), "src", str, pos(2))
	fbox := b.NewExpr(f.Entry(), "shared", box, pos(3))
	b.AddStore(src, data, fbox)

	g := b.NewCallable("t.reader", pos(10))
	gbox := b.NewExpr(g.Entry(), "shared", box, pos(11))
	out := b.NewExpr(g.Entry(), "out", str, pos(12))
	snk := b.NewExpr(g.Entry(), "snk", str, pos(13))
	b.AddJumpStep(fbox, gbox)
	b.AddRead(gbox, data, out)
	b.AddLocalStep(out, snk, true)
	prog := finish(t, b)

	res := solve(t, prog, ProblemSpec{Name: "jump", Sources: isNode(src), Sinks: isNode(snk)})
	if !res.HasFlow() {
		t.Fatalf("store did not cross the jump step to the reader")
	}
	pn := waypointAt(res.Graph, gbox)
	if pn == nil || pn.Path.Head() != data {
		t.Errorf("reader-side holder does not track .data: %v", pn)
	}
}

func TestSolveCollapsedPaths(t *testing.T) {
	build := func(t *testing.T) (*program.Program, program.Node, program.Node, program.Node) {
		t.Helper()
		b := program.NewBuilder()
		str := program.NewType("string")
		inner := program.NewType("Inner")
		outer := program.NewType("Outer")
		fc := b.FieldContent(inner, "f", str)
		gc := b.FieldContent(outer, "g", inner)

		fn := b.NewCallable("t.f", pos(1))
		src := b.NewExpr(fn.Entry(), "src", str, pos(2))
		a := b.NewExpr(fn.Entry(), "a", inner, pos(3))
		bx := b.NewExpr(fn.Entry(), "b", outer, pos(4))
		c := b.NewExpr(fn.Entry(), "c", inner, pos(5))
		d := b.NewExpr(fn.Entry(), "d", str, pos(6))
		snk := b.NewExpr(fn.Entry(), "snk", str, pos(7))
		b.AddStore(src, fc, a)
		b.AddStore(a, gc, bx)
		b.AddRead(bx, gc, c)
		b.AddRead(c, fc, d)
		b.AddLocalStep(d, snk, true)
		return finish(t, b), src, bx, snk
	}

	t.Run("within the bound", func(t *testing.T) {
		prog, src, bx, snk := build(t)
		res := solve(t, prog, ProblemSpec{Name: "deep", Sources: isNode(src), Sinks: isNode(snk)})
		if !res.HasFlow() {
			t.Fatalf("two-level store/read chain lost under the default bound")
		}
		pn := waypointAt(res.Graph, bx)
		if pn == nil {
			t.Fatalf("no waypoint tracks the outer holder")
		}
		if pn.Path.Len() != 2 || pn.Path.HasUnknownTail() {
			t.Errorf("outer holder tracks %v, want the exact two-level path", pn.Path)
		}
		if sn := waypointAt(res.Graph, snk); !sn.Path.IsEmpty() {
			t.Errorf("sink path is %v, want empty after both reads", sn.Path)
		}
	})

	t.Run("beyond the bound", func(t *testing.T) {
		prog, src, bx, snk := build(t)
		res := solve(t, prog, ProblemSpec{Name: "deep", Sources: isNode(src), Sinks: isNode(snk), PathBound: 1})
		if !res.HasFlow() {
			t.Fatalf("collapse lost a flow the exact bound keeps")
		}
		pn := waypointAt(res.Graph, bx)
		if pn == nil {
			t.Fatalf("no waypoint tracks the outer holder")
		}
		if !pn.Path.HasUnknownTail() || pn.Path.Len() != 1 {
			t.Errorf("outer holder tracks %v, want one known content and an unknown tail", pn.Path)
		}
		// popping past the collapse point cannot recover exactness
		if sn := waypointAt(res.Graph, snk); sn.Path.IsEmpty() || !sn.Path.HasUnknownTail() {
			t.Errorf("sink path is %v, want the unknown remainder", sn.Path)
		}
	})
}

func TestSolveBranchLimit(t *testing.T) {
	buildFanOut := func(t *testing.T, readField bool) (*program.Program, program.Node, program.Node) {
		t.Helper()
		b := program.NewBuilder()
		str := program.NewType("string")
		box := program.NewType("Box")
		data := b.FieldContent(box, "data", str)

		argType := str
		if readField {
			argType = box
		}
		var targets []*program.Callable
		for i := 0; i < 3; i++ {
			g := b.NewCallable(fmt.Sprintf("t.get%d", i), pos(10+i))
			prm := b.NewParam(g, "x", argType, pos(10+i))
			if readField {
				v := b.NewExpr(g.Entry(), "v", str, pos(10+i))
				b.AddRead(prm, data, v)
				b.AddReturn(g, v)
			} else {
				b.AddReturn(g, prm)
			}
			targets = append(targets, g)
		}

		m := b.NewCallable("t.main", pos(20))
		src := b.NewExpr(m.Entry(), "src", str, pos(21))
		arg := program.Node(src)
		if readField {
			obj := b.NewExpr(m.Entry(), "obj", box, pos(22))
			b.AddStore(src, data, obj)
			arg = obj
		}
		call := b.NewCall(m.Entry(), "dispatch", str, pos(23))
		b.AddArg(call, arg)
		for _, g := range targets {
			b.AddTarget(call, g)
		}
		snk := b.NewExpr(m.Entry(), "snk", str, pos(24))
		b.AddLocalStep(call.Out(), snk, true)
		return finish(t, b), src, snk
	}

	t.Run("field flow over the fan-out limit", func(t *testing.T) {
		prog, src, snk := buildFanOut(t, true)
		res := solve(t, prog, ProblemSpec{Name: "fanout", Sources: isNode(src), Sinks: isNode(snk)})
		if res.HasFlow() {
			t.Errorf("field flow crossed a call with more targets than the limit")
		}
	})

	t.Run("raised limit admits the fan-out", func(t *testing.T) {
		prog, src, snk := buildFanOut(t, true)
		res := solve(t, prog, ProblemSpec{Name: "fanout", Sources: isNode(src), Sinks: isNode(snk), BranchLimit: 3})
		if !res.HasFlow() {
			t.Errorf("field flow lost under a limit covering every target")
		}
	})

	t.Run("plain value flow ignores the limit", func(t *testing.T) {
		prog, src, snk := buildFanOut(t, false)
		res := solve(t, prog, ProblemSpec{Name: "fanout", Sources: isNode(src), Sinks: isNode(snk)})
		if !res.HasFlow() {
			t.Errorf("identity fan-out blocked, but the limit only guards tracked contents")
		}
	})
}

func TestSolveFieldFlowDisabled(t *testing.T) {
	t.Run("store and read are inert", func(t *testing.T) {
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

		res := solve(t, prog, ProblemSpec{Name: "nofields", Sources: isNode(src), Sinks: isNode(snk), DisableFieldFlow: true})
		if res.HasFlow() {
			t.Errorf("store/read flow survived with field flow disabled")
		}
	})

	t.Run("value flow is unaffected", func(t *testing.T) {
		b := program.NewBuilder()
		str := program.NewType("string")
		f := b.NewCallable("t.f", pos(1))
		src := b.NewExpr(f.Entry(), "src", str, pos(2))
		snk := b.NewExpr(f.Entry(), "snk", str, pos(3))
		b.AddLocalStep(src, snk, true)
		prog := finish(t, b)

		res := solve(t, prog, ProblemSpec{Name: "nofields", Sources: isNode(src), Sinks: isNode(snk), DisableFieldFlow: true})
		if !res.HasFlow() {
			t.Errorf("plain value flow lost with field flow disabled")
		}
	})
}

func TestSolveEmptyEndpoints(t *testing.T) {
	b := program.NewBuilder()
	str := program.NewType("string")
	f := b.NewCallable("t.f", pos(1))
	src := b.NewExpr(f.Entry(), "src", str, pos(2))
	snk := b.NewExpr(f.Entry(), "snk", str, pos(3))
	b.AddLocalStep(src, snk, true)
	prog := finish(t, b)

	tests := []struct {
		name string
		p    ProblemSpec
	}{
		{"no sources", ProblemSpec{Name: "empty", Sinks: isNode(snk)}},
		{"no sinks", ProblemSpec{Name: "empty", Sources: isNode(src)}},
		{"zero problem", ProblemSpec{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := solve(t, prog, tt.p)
			if res.HasFlow() {
				t.Errorf("flow reported without both endpoints")
			}
			if len(res.Graph.Nodes) != 0 {
				t.Errorf("empty problem kept %d waypoints", len(res.Graph.Nodes))
			}
			if got := res.FlowPaths(0); len(got) != 0 {
				t.Errorf("empty problem rendered %d paths", len(got))
			}
		})
	}
}

func TestSolveSourceIsSink(t *testing.T) {
	b := program.NewBuilder()
	str := program.NewType("string")
	f := b.NewCallable("t.f", pos(1))
	n := b.NewExpr(f.Entry(), "n", str, pos(2))
	prog := finish(t, b)

	res := solve(t, prog, ProblemSpec{Name: "self", Sources: isNode(n), Sinks: isNode(n)})
	if !res.HasFlowPath(n, n) {
		t.Fatalf("node matching both predicates is not its own flow")
	}
	paths := res.FlowPaths(0)
	if len(paths) != 1 || len(paths[0]) != 1 {
		t.Fatalf("FlowPaths(0) = %v, want one single-waypoint path", paths)
	}
	wp := paths[0][0]
	if !wp.Source || !wp.Sink {
		t.Errorf("waypoint flags are source=%v sink=%v, want both set", wp.Source, wp.Sink)
	}
}

func TestSolvePartialFlows(t *testing.T) {
	b := program.NewBuilder()
	str := program.NewType("string")
	f := b.NewCallable("t.f", pos(1))
	src := b.NewExpr(f.Entry(), "src", str, pos(2))
	n1 := b.NewExpr(f.Entry(), "n1", str, pos(3))
	n2 := b.NewExpr(f.Entry(), "n2", str, pos(4))
	b.AddLocalStep(src, n1, true)
	b.AddLocalStep(n1, n2, true)
	prog := finish(t, b)

	res := solve(t, prog, ProblemSpec{Name: "explore", Sources: isNode(src), Exploration: 2})
	if res.HasFlow() {
		t.Fatalf("flow reported with no sinks declared")
	}
	for _, n := range []program.Node{src, n1, n2} {
		if !res.HasPartialFlow(src, n) {
			t.Errorf("exploration missed %v", n)
		}
	}
	var at2 *PartialFlow
	for i := range res.Partials {
		if res.Partials[i].Node == n2 {
			at2 = &res.Partials[i]
		}
	}
	if at2 == nil || at2.Dist != 2 {
		t.Errorf("distance to the chain end = %v, want 2", at2)
	}

	short := solve(t, prog, ProblemSpec{Name: "explore", Sources: isNode(src), Exploration: 1})
	if short.HasPartialFlow(src, n2) {
		t.Errorf("exploration crossed its distance bound")
	}
	if !short.HasPartialFlow(src, n1) {
		t.Errorf("exploration stopped short of its bound")
	}
}
