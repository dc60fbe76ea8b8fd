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

package gofront

import (
	"golang.org/x/tools/go/ssa"

	"github.com/seep-analysis/seep/analysis/program"
)

// A globalAccess collects the per-function access nodes of one package-level
// variable. Each function touching the global gets one proxy node standing
// for the global's value; stores anchor on the proxy and loads on its
// post-update like any other object. Writes are connected to every other
// accessor with jump steps, since flow through a global does not follow the
// call structure.
type globalAccess struct {
	g       *ssa.Global
	proxies map[*program.Callable]program.Node
	order   []*program.Callable
	writers map[*program.Callable]bool
}

func (x *extractor) globalNode(t *fnTranslator, g *ssa.Global) program.Node {
	acc := x.globals[g]
	if acc == nil {
		acc = &globalAccess{
			g:       g,
			proxies: map[*program.Callable]program.Node{},
			writers: map[*program.Callable]bool{},
		}
		x.globals[g] = acc
		x.globalOrder = append(x.globalOrder, g)
	}
	if n := acc.proxies[t.f]; n != nil {
		return n
	}
	n := x.b.NewSynthetic(t.f.Entry(), "global "+g.Name(), typeOf(g.Type()), x.position(g.Pos()))
	acc.proxies[t.f] = n
	acc.order = append(acc.order, t.f)
	x.desc[n] = globalIdentifier(g)
	return n
}

func (x *extractor) markGlobalWrite(t *fnTranslator, g *ssa.Global) {
	if acc := x.globals[g]; acc != nil {
		acc.writers[t.f] = true
	}
}

// wireGlobals connects every writing access of each global to every other
// access with a jump step. Within one function writer and reader share the
// proxy, so no step is needed.
func (x *extractor) wireGlobals() {
	for _, g := range x.globalOrder {
		acc := x.globals[g]
		for _, wf := range acc.order {
			if !acc.writers[wf] {
				continue
			}
			from := acc.proxies[wf]
			post := x.b.Program().PostUpdate(from)
			for _, rf := range acc.order {
				if rf == wf {
					continue
				}
				x.b.AddJumpStep(from, acc.proxies[rf])
				if post != nil {
					x.b.AddJumpStep(post, acc.proxies[rf])
				}
			}
		}
	}
}
