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

// viaEdges collects every flow-through edge of the rendered graph.
func viaEdges(g *PathGraph) []PathEdge {
	var out []PathEdge
	for _, pn := range g.Nodes {
		for _, e := range pn.Out {
			if e.Via != nil {
				out = append(out, e)
			}
		}
	}
	return out
}

func TestSolveFlowThrough(t *testing.T) {
	b := program.NewBuilder()
	str := program.NewType("string")
	id := b.NewCallable("t.id", pos(1))
	x := b.NewParam(id, "x", str, pos(1))
	b.AddReturn(id, x)

	m := b.NewCallable("t.main", pos(10))
	src1 := b.NewExpr(m.Entry(), "src1", str, pos(11))
	call1 := b.NewCall(m.Entry(), "id", str, pos(12))
	b.AddArg(call1, src1)
	b.AddTarget(call1, id)
	snk1 := b.NewExpr(m.Entry(), "snk1", str, pos(13))
	b.AddLocalStep(call1.Out(), snk1, true)

	src2 := b.NewExpr(m.Entry(), "src2", str, pos(14))
	call2 := b.NewCall(m.Entry(), "id", str, pos(15))
	b.AddArg(call2, src2)
	b.AddTarget(call2, id)
	snk2 := b.NewExpr(m.Entry(), "snk2", str, pos(16))
	b.AddLocalStep(call2.Out(), snk2, true)
	prog := finish(t, b)

	res := solve(t, prog, ProblemSpec{Name: "through",
		Sources: oneOf(src1, src2), Sinks: oneOf(snk1, snk2)})

	if !res.HasFlowPath(src1, snk1) || !res.HasFlowPath(src2, snk2) {
		t.Fatalf("flow through the callee lost: pairs = %v", res.SourceSinkPairs())
	}
	// the callee is walked once; each call site still keeps its own pairing
	if res.HasFlowPath(src1, snk2) || res.HasFlowPath(src2, snk1) {
		t.Errorf("summaries crossed call sites: pairs = %v", res.SourceSinkPairs())
	}

	if len(res.Summaries) != 1 {
		t.Fatalf("derived %d summaries, want the one identity fact: %v", len(res.Summaries), res.Summaries)
	}
	s := res.Summaries[0]
	if s.Callee != id || s.Param != 0 || s.Kind != program.ValueReturn() {
		t.Errorf("summary = %v, want the value return of t.id's parameter 0", s)
	}
	if !s.Entry.IsEmpty() || !s.Exit.IsEmpty() || !s.Preserves {
		t.Errorf("summary = %v, want a preserving empty-to-empty fact", s)
	}
	if got, want := s.String(), "t.id: param 0 => return"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}

	// an identity traversal needs no synthesized node on its edges
	if via := viaEdges(res.Graph); len(via) != 0 {
		t.Errorf("identity flow-through carries %d annotated edges, want none", len(via))
	}
}

func TestSolveSummaryReadThrough(t *testing.T) {
	b := program.NewBuilder()
	str := program.NewType("string")
	box := program.NewType("Box")
	data := b.FieldContent(box, "data", str)

	get := b.NewCallable("t.get", pos(1))
	prm := b.NewParam(get, "b", box, pos(1))
	v := b.NewExpr(get.Entry(), "v", str, pos(2))
	b.AddRead(prm, data, v)
	b.AddReturn(get, v)

	m := b.NewCallable("t.main", pos(10))
	src := b.NewExpr(m.Entry(), "src", str, pos(11))
	obj := b.NewExpr(m.Entry(), "obj", box, pos(12))
	b.AddStore(src, data, obj)
	call := b.NewCall(m.Entry(), "get", str, pos(13))
	b.AddArg(call, obj)
	b.AddTarget(call, get)
	snk := b.NewExpr(m.Entry(), "snk", str, pos(14))
	b.AddLocalStep(call.Out(), snk, true)
	prog := finish(t, b)

	res := solve(t, prog, ProblemSpec{Name: "getter", Sources: isNode(src), Sinks: isNode(snk)})
	if !res.HasFlow() {
		t.Fatalf("stored field did not flow through the getter")
	}

	if len(res.Summaries) != 1 {
		t.Fatalf("derived %d summaries, want 1: %v", len(res.Summaries), res.Summaries)
	}
	s := res.Summaries[0]
	if s.Callee != get || s.Read() != data || s.Store() != nil || !s.Preserves {
		t.Errorf("summary = %v, want a preserving read of .data", s)
	}
	if got, want := s.String(), "t.get: param 0.data => return"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}

	via := viaEdges(res.Graph)
	if len(via) != 1 {
		t.Fatalf("graph has %d annotated edges, want the getter's read: %v", len(via), via)
	}
	sn := via[0].Via
	if sn.Kind() != ReadStoreNode || sn.Read() != data || sn.Store() != nil {
		t.Errorf("summary node = %v, want a read-store popping .data", sn)
	}
	if sn.Call() != call || sn.Callee() != get {
		t.Errorf("summary node points at %v in %v, want the getter call", sn.Callee(), sn.Call())
	}
	if got, want := sn.String(), "[read-store t.get reads data]"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestSolveSummaryStoreThrough(t *testing.T) {
	b := program.NewBuilder()
	str := program.NewType("string")
	box := program.NewType("Box")
	data := b.FieldContent(box, "data", str)

	wrap := b.NewCallable("t.wrap", pos(1))
	prm := b.NewParam(wrap, "s", str, pos(1))
	holder := b.NewExpr(wrap.Entry(), "holder", box, pos(2))
	b.AddStore(prm, data, holder)
	b.AddReturn(wrap, holder)

	m := b.NewCallable("t.main", pos(10))
	src := b.NewExpr(m.Entry(), "src", str, pos(11))
	call := b.NewCall(m.Entry(), "wrap", box, pos(12))
	b.AddArg(call, src)
	b.AddTarget(call, wrap)
	out := b.NewExpr(m.Entry(), "out", str, pos(13))
	snk := b.NewExpr(m.Entry(), "snk", str, pos(14))
	b.AddRead(call.Out(), data, out)
	b.AddLocalStep(out, snk, true)
	prog := finish(t, b)

	res := solve(t, prog, ProblemSpec{Name: "wrapper", Sources: isNode(src), Sinks: isNode(snk)})
	if !res.HasFlow() {
		t.Fatalf("value wrapped in the callee was not readable at the caller")
	}
	var found *Summary
	for i := range res.Summaries {
		if res.Summaries[i].Callee == wrap {
			found = &res.Summaries[i]
		}
	}
	if found == nil {
		t.Fatalf("no summary derived for the wrapper: %v", res.Summaries)
	}
	if found.Read() != nil || found.Store() != data || !found.Preserves {
		t.Errorf("summary = %v, want a preserving store into .data", found)
	}
	via := viaEdges(res.Graph)
	if len(via) != 1 || via[0].Via.Kind() != ReadStoreNode || via[0].Via.Store() != data {
		t.Errorf("annotated edges = %v, want one read-store pushing .data", via)
	}
}

func TestSolveRecursion(t *testing.T) {
	b := program.NewBuilder()
	str := program.NewType("string")
	rec := b.NewCallable("t.rec", pos(1))
	x := b.NewParam(rec, "x", str, pos(1))
	b.AddReturn(rec, x)
	inner := b.NewCall(rec.Entry(), "rec", str, pos(2))
	b.AddArg(inner, x)
	b.AddTarget(inner, rec)
	b.AddReturn(rec, inner.Out())

	m := b.NewCallable("t.main", pos(10))
	src := b.NewExpr(m.Entry(), "src", str, pos(11))
	call := b.NewCall(m.Entry(), "rec", str, pos(12))
	b.AddArg(call, src)
	b.AddTarget(call, rec)
	snk := b.NewExpr(m.Entry(), "snk", str, pos(13))
	b.AddLocalStep(call.Out(), snk, true)
	prog := finish(t, b)

	res := solve(t, prog, ProblemSpec{Name: "recursion", Sources: isNode(src), Sinks: isNode(snk)})
	if !res.HasFlowPath(src, snk) {
		t.Fatalf("flow through the self-recursive identity lost")
	}
	// the recursive entry collapses onto the outer one
	if len(res.Summaries) != 1 {
		t.Errorf("derived %d summaries, want 1: %v", len(res.Summaries), res.Summaries)
	}
}

func TestSummaryKind(t *testing.T) {
	c := &program.Content{}
	tests := []struct {
		name      string
		read      *program.Content
		store     *program.Content
		preserves bool
		want      SummaryNodeKind
		ok        bool
	}{
		{"plain taint", nil, nil, false, 0, false},
		{"identity", nil, nil, true, 0, false},
		{"preserving read", c, nil, true, ReadStoreNode, true},
		{"preserving store", nil, c, true, ReadStoreNode, true},
		{"preserving read and store", c, c, true, ReadStoreNode, true},
		{"tainting read", c, nil, false, ReadTaintNode, true},
		{"tainting store", nil, c, false, TaintStoreNode, true},
		{"read then taint then store", c, c, false, ReadTaintStoreNode, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := summaryKind(tt.read, tt.store, tt.preserves)
			if got != tt.want || ok != tt.ok {
				t.Errorf("summaryKind() = (%v, %v), want (%v, %v)", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestSummaryNodeKindString(t *testing.T) {
	tests := []struct {
		kind SummaryNodeKind
		want string
	}{
		{ReadStoreNode, "read-store"},
		{ReadTaintNode, "read-taint"},
		{TaintStoreNode, "taint-store"},
		{ReadTaintStoreNode, "read-taint-store"},
		{SummaryNodeKind(0), "through"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestSummarizeInterning(t *testing.T) {
	b := program.NewBuilder()
	str := program.NewType("string")
	box := program.NewType("Box")
	data := b.FieldContent(box, "data", str)
	f := b.NewCallable("t.callee", pos(1))
	m := b.NewCallable("t.main", pos(10))
	call := b.NewCall(m.Entry(), "callee", str, pos(11))
	b.AddTarget(call, f)
	finish(t, b)

	aps := newAPTable(3)
	empty := aps.Empty(str)
	entry := aps.Push(data, empty)
	tbl := newSummaryNodeTable()

	if sn := tbl.summarize(call, f, empty, empty, true); sn != nil {
		t.Errorf("identity summarize returned %v, want nil", sn)
	}
	if sn := tbl.summarize(call, f, empty, empty, false); sn != nil {
		t.Errorf("bare taint summarize returned %v, want nil", sn)
	}
	first := tbl.summarize(call, f, entry, empty, true)
	if first == nil || first.Kind() != ReadStoreNode {
		t.Fatalf("read summarize returned %v, want a read-store node", first)
	}
	if again := tbl.summarize(call, f, entry, empty, true); again != first {
		t.Errorf("equal effects produced distinct nodes")
	}
	if other := tbl.summarize(call, f, entry, empty, false); other == first {
		t.Errorf("tainted effect shares the preserving node")
	}
}

func TestSummaryString(t *testing.T) {
	b := program.NewBuilder()
	str := program.NewType("string")
	box := program.NewType("Box")
	data := b.FieldContent(box, "data", str)
	f := b.NewCallable("t.f", pos(1))
	finish(t, b)

	aps := newAPTable(3)
	empty := aps.Empty(str)
	dataPath := aps.Push(data, empty)

	tests := []struct {
		name string
		s    Summary
		want string
	}{
		{
			"identity",
			Summary{Callee: f, Param: 0, Entry: empty, Kind: program.ValueReturn(), Exit: empty, Preserves: true},
			"t.f: param 0 => return",
		},
		{
			"tainting",
			Summary{Callee: f, Param: 1, Entry: empty, Kind: program.ValueReturn(), Exit: empty, Preserves: false},
			"t.f: param 1 ~> return",
		},
		{
			"store into a field of the result",
			Summary{Callee: f, Param: 0, Entry: empty, Kind: program.ValueReturn(), Exit: dataPath, Preserves: true},
			"t.f: param 0 => return.data",
		},
		{
			"update of a by-reference parameter",
			Summary{Callee: f, Param: 0, Entry: dataPath, Kind: program.ParamUpdateReturn(1), Exit: empty, Preserves: true},
			"t.f: param 0.data => update of parameter 1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.s.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}
