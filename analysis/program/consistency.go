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

package program

import "fmt"

// checkConsistency verifies the obligations front ends must meet when
// populating a program. Violations do not crash the engine later; they make
// it silently miss flow, which is why they are surfaced here.
func checkConsistency(p *Program) []error {
	var errs []error
	report := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	for _, f := range p.callables {
		if len(f.blocks) == 0 {
			report("callable %s has no blocks", f.Name())
		}
		for i, prm := range f.params {
			if prm.Callable() != f {
				report("parameter %d of %s belongs to %s", i, f.Name(), prm.Callable().Name())
			}
			if prm.Index() != i {
				report("parameter %s of %s has index %d at position %d", prm.Name(), f.Name(), prm.Index(), i)
			}
		}
		for kind, r := range f.returns {
			if kind.IsParamUpdate() && f.Param(kind.Param()) == nil {
				report("%s return of %s names a missing parameter", kind.String(), f.Name())
			}
			if kind.IsCaptureUpdate() && f.captureThis == nil {
				report("%s return on non-closure %s", kind.String(), f.Name())
			}
			if r.Callable() != f {
				report("%s return of %s belongs to %s", kind.String(), f.Name(), r.Callable().Name())
			}
		}
		for _, c := range f.calls {
			checkCall(c, report)
		}
	}

	for _, n := range p.nodes {
		if n.Callable() == nil {
			report("node %s has no enclosing callable", n.String())
		}
		if n.String() == "" {
			report("node %d has no string form", n.ID())
		}
	}

	checkSteps(p, report)
	checkPostUpdates(p, report)
	checkClosures(p, report)
	return errs
}

func checkCall(c *CallSite, report func(string, ...any)) {
	for i, a := range c.args {
		if a.Call() != c || a.Index() != i {
			report("argument %d of %s is misindexed", i, c.String())
		}
		if a.Callable() != c.caller {
			report("argument %d of %s belongs to %s", i, c.String(), a.Callable().Name())
		}
	}
	if c.out == nil || c.out.Call() != c {
		report("call %s has no result node", c.String())
	}
	if c.callee != nil && c.callee.Callable() != c.caller {
		report("callee value of %s belongs to %s", c.String(), c.callee.Callable().Name())
	}
	for _, target := range c.targets {
		if target == nil {
			report("call %s has a nil target", c.String())
		}
	}
}

func checkSteps(p *Program, report func(string, ...any)) {
	for _, steps := range p.localSteps {
		for _, s := range steps {
			if s.From.Callable() != s.To.Callable() {
				report("local step crosses callables: %s -> %s", s.From.String(), s.To.String())
			}
		}
	}
	for _, steps := range p.stores {
		for _, s := range steps {
			if !s.To.Type().Compatible(s.Content.Container()) {
				report("store into %s content %s of incompatible type %s",
					s.To.String(), s.Content.String(), s.To.Type().Name())
			}
		}
	}
	for _, steps := range p.reads {
		for _, s := range steps {
			if !s.From.Type().Compatible(s.Content.Container()) {
				report("read of %s content %s from incompatible type %s",
					s.From.String(), s.Content.String(), s.From.Type().Name())
			}
		}
	}
}

func checkPostUpdates(p *Program, report func(string, ...any)) {
	for preID, post := range p.postUpdates {
		if post.Pre().ID() != preID {
			report("post-update node %s indexed under the wrong pre node", post.String())
		}
		if post.Pre().Callable() != post.Callable() {
			report("post-update %s crosses callables", post.String())
		}
		if _, nested := post.Pre().(*PostUpdateNode); nested {
			report("post-update of post-update node %s", post.Pre().String())
		}
	}
}

// nestedIn reports whether f is g or lexically nested in g.
func nestedIn(f, g *Callable) bool {
	for ; f != nil; f = f.parent {
		if f == g {
			return true
		}
	}
	return false
}

func checkClosures(p *Program, report func(string, ...any)) {
	for _, site := range p.closures {
		if site.Fn == nil || site.Node.Fn() != site.Fn {
			report("closure site %s disagrees about its callable", site.Node.String())
			continue
		}
		if site.Fn.parent == nil {
			report("closure callable %s has no lexical parent", site.Fn.Name())
		}
		if site.Fn.captureThis == nil {
			report("closure callable %s has no capture qualifier", site.Fn.Name())
		}
		for _, v := range site.Captured {
			if !nestedIn(site.Node.Callable(), v.DefinedIn()) {
				report("closure %s captures %s outside its lexical scope", site.Fn.Name(), v.Name())
			}
		}
	}
	for v, defs := range p.captureDefs {
		for _, d := range defs {
			if !nestedIn(d.Callable(), v.DefinedIn()) {
				report("definition of captured %s in unrelated callable %s", v.Name(), d.Callable().Name())
			}
		}
	}
	for v, uses := range p.captureUses {
		for _, u := range uses {
			if !nestedIn(u.Callable(), v.DefinedIn()) {
				report("use of captured %s in unrelated callable %s", v.Name(), u.Callable().Name())
			}
		}
	}
}
