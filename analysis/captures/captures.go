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

// Package captures models flow through variables captured by closures, as
// if every captured variable were a field on the closure value.
//
// For each site where a closure capturing v is created, Synthesize inserts
// a pre-closure read of v, a store of that read into the closure value
// under v's capture content, and a read-back from the closure value's
// post-update state that acts as a fresh definition of v (observing side
// effects of invoking the closure). Inside closure bodies, accesses to v
// go through the body's closure qualifier: uses read the capture content
// off the qualifier, writes store into the qualifier's post-update, and a
// capture-update return position carries the final qualifier state back to
// call sites. In v's defining callable, reads are wired to their reaching
// definitions SSA-style, with phi nodes placed on the iterated dominance
// frontier of the definition blocks.
package captures

import (
	"errors"
	"fmt"
	"sort"

	"github.com/seep-analysis/seep/analysis/program"
	"github.com/seep-analysis/seep/analysis/ssaform"
)

// Synthesize adds the capture-flow facts to the builder's program. Call it
// once, after all front-end facts are recorded and before Finish.
func Synthesize(b *program.Builder) error {
	s := &synthesizer{
		b:       b,
		prog:    b.Program(),
		writers: map[*program.Callable]bool{},
		doms:    map[*program.Callable]*ssaform.DomTree[*program.BasicBlock]{},
	}
	s.preparePostUpdates()
	for _, v := range s.prog.CapturedVariables() {
		s.synthesizeVariable(v)
	}
	s.wireWriters()
	return errors.Join(s.errs...)
}

type synthesizer struct {
	b       *program.Builder
	prog    *program.Program
	writers map[*program.Callable]bool
	doms    map[*program.Callable]*ssaform.DomTree[*program.BasicBlock]
	errs    []error
}

func (s *synthesizer) errf(format string, args ...any) {
	s.errs = append(s.errs, fmt.Errorf(format, args...))
}

// preparePostUpdates creates the post-update node of every invoked closure
// value, the node capture-update returns land on.
func (s *synthesizer) preparePostUpdates() {
	for _, f := range s.prog.Callables() {
		for _, c := range f.Calls() {
			if c.CalleeValue() == nil {
				continue
			}
			for _, target := range c.Callees() {
				if target.IsClosure() {
					s.b.PostUpdate(c.CalleeValue())
					break
				}
			}
		}
	}
}

// An ssaEvent is a definition or use of a captured variable in its defining
// callable, anchored at the position of a node within its block. Uses sort
// before definitions anchored at the same node.
type ssaEvent struct {
	node  program.Node
	idx   int
	seq   int
	isDef bool
}

func (s *synthesizer) synthesizeVariable(v *program.CapturedVariable) {
	definer := v.DefinedIn()
	content := s.b.CaptureContent(v)
	events := map[*program.BasicBlock][]ssaEvent{}

	record := func(n program.Node, anchor program.Node, isDef bool) {
		blk := anchor.Block()
		idx := -2
		if blk == nil {
			blk = anchor.Callable().Entry()
		} else {
			idx = positionIn(blk, anchor)
		}
		seq := 0
		if isDef {
			seq = 1
		}
		events[blk] = append(events[blk], ssaEvent{node: n, idx: idx, seq: seq, isDef: isDef})
	}

	for _, site := range s.prog.Closures() {
		if !capturesVar(site, v) {
			continue
		}
		cl := site.Node
		g := cl.Callable()
		read := s.b.NewSynthetic(cl.Block(), fmt.Sprintf("capture %s", v.Name()), v.Type(), cl.Position())
		s.b.AddStore(read, content, cl)
		post := s.b.PostUpdate(cl)
		readback := s.b.NewSynthetic(cl.Block(), fmt.Sprintf("readback %s", v.Name()), v.Type(), cl.Position())
		s.b.AddRead(post, content, readback)
		if g == definer {
			record(read, cl, false)
			record(readback, cl, true)
		} else {
			s.throughQualifier(g, content, read, readback, v)
		}
	}

	for _, u := range s.prog.CaptureUses(v) {
		if f := u.Callable(); f == definer {
			record(u, u, false)
		} else if qual := s.qualifierOf(f, v); qual != nil {
			s.b.AddRead(qual, content, u)
		}
	}
	for _, d := range s.prog.CaptureDefs(v) {
		if f := d.Callable(); f == definer {
			record(d, d, true)
		} else if qual := s.qualifierOf(f, v); qual != nil {
			s.b.AddStore(d, content, s.b.PostUpdate(qual))
			s.writers[f] = true
		}
	}

	s.wireDefiningScope(definer, v, events)
}

// throughQualifier routes a nested closure site's pre-closure read and
// read-back through the enclosing body's qualifier: the read pulls v's
// current value off the qualifier, and the read-back pushes the observed
// state outward into the qualifier's post-update.
func (s *synthesizer) throughQualifier(g *program.Callable, content *program.Content, read, readback program.Node, v *program.CapturedVariable) {
	qual := s.qualifierOf(g, v)
	if qual == nil {
		return
	}
	s.b.AddRead(qual, content, read)
	s.b.AddStore(readback, content, s.b.PostUpdate(qual))
	s.writers[g] = true
}

func (s *synthesizer) qualifierOf(f *program.Callable, v *program.CapturedVariable) *program.CaptureThisNode {
	if qual := f.CaptureThis(); qual != nil {
		return qual
	}
	s.errf("access to captured %s in %s, which has no closure qualifier", v.Name(), f.Name())
	return nil
}

// wireDefiningScope connects every use of v in its defining callable to the
// reaching definition, inserting phi nodes where definitions merge.
func (s *synthesizer) wireDefiningScope(f *program.Callable, v *program.CapturedVariable, events map[*program.BasicBlock][]ssaEvent) {
	if len(events) == 0 {
		return
	}
	for _, evs := range events {
		sort.SliceStable(evs, func(i, j int) bool {
			if evs[i].idx != evs[j].idx {
				return evs[i].idx < evs[j].idx
			}
			return evs[i].seq < evs[j].seq
		})
	}

	dom := s.doms[f]
	if dom == nil {
		dom = ssaform.New(f.Entry(), func(b *program.BasicBlock) []*program.BasicBlock { return b.Succs() })
		s.doms[f] = dom
	}

	var defBlocks []*program.BasicBlock
	for blk, evs := range events {
		for _, ev := range evs {
			if ev.isDef {
				defBlocks = append(defBlocks, blk)
				break
			}
		}
	}
	phis := map[*program.BasicBlock]program.Node{}
	for _, pb := range dom.PhiBlocks(defBlocks) {
		phis[pb] = s.b.NewSynthetic(pb, fmt.Sprintf("phi %s", v.Name()), v.Type(), f.Position())
	}

	var visit func(blk *program.BasicBlock, reaching program.Node)
	visit = func(blk *program.BasicBlock, reaching program.Node) {
		if phi := phis[blk]; phi != nil {
			reaching = phi
		}
		for _, ev := range events[blk] {
			if ev.isDef {
				reaching = ev.node
			} else if reaching != nil {
				s.b.AddLocalStep(reaching, ev.node, true)
			}
		}
		if reaching != nil {
			for _, succ := range blk.Succs() {
				if phi := phis[succ]; phi != nil {
					s.b.AddLocalStep(reaching, phi, true)
				}
			}
		}
		for _, child := range dom.Children(blk) {
			visit(child, reaching)
		}
	}
	visit(f.Entry(), nil)
}

// wireWriters gives every closure body that writes captured state a
// capture-update return fed from its qualifier's post-update, so the
// written contents surface at call sites.
func (s *synthesizer) wireWriters() {
	for _, f := range s.prog.Callables() {
		if !s.writers[f] {
			continue
		}
		ret := s.b.ReturnNodeFor(f, program.CaptureUpdateReturn())
		s.b.AddLocalStep(s.b.PostUpdate(f.CaptureThis()), ret, true)
	}
}

func capturesVar(site *program.ClosureSite, v *program.CapturedVariable) bool {
	for _, w := range site.Captured {
		if w == v {
			return true
		}
	}
	return false
}

func positionIn(blk *program.BasicBlock, n program.Node) int {
	for i, m := range blk.Nodes() {
		if m == n {
			return i
		}
	}
	return len(blk.Nodes())
}
