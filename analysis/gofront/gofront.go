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
	"fmt"
	"go/token"
	"sort"

	"golang.org/x/tools/go/callgraph"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"

	"github.com/seep-analysis/seep/analysis"
	"github.com/seep-analysis/seep/analysis/captures"
	"github.com/seep-analysis/seep/analysis/config"
	"github.com/seep-analysis/seep/analysis/program"
)

// Facts is the extracted data-flow fact base of a Go program: the sealed
// program together with the code identifiers its nodes answer to.
type Facts struct {
	Program *program.Program

	desc map[program.Node]config.CodeIdentifier
	fns  map[*ssa.Function]*program.Callable
}

// Describe returns the code identifier of a node, or the zero identifier
// for nodes that no configuration entry can select.
func (f *Facts) Describe(n program.Node) config.CodeIdentifier {
	return f.desc[n]
}

// CallableFor returns the callable built for an SSA function, or nil if the
// function was outside the analyzed packages.
func (f *Facts) CallableFor(fn *ssa.Function) *program.Callable {
	return f.fns[fn]
}

type extractor struct {
	b    *program.Builder
	cfg  *config.Config
	log  *config.LogGroup
	fset *token.FileSet
	cg   *callgraph.Graph

	roots []*ssa.Function
	order []*ssa.Function
	fns   map[*ssa.Function]*program.Callable
	desc  map[program.Node]config.CodeIdentifier

	globals     map[*ssa.Global]*globalAccess
	globalOrder []*ssa.Global

	freeVars        map[*ssa.FreeVar]*program.CapturedVariable
	capturedAllocs  map[*ssa.Alloc]*program.CapturedVariable
	valueCaps       map[ssa.Value]*program.CapturedVariable
	byValueVars     map[*program.CapturedVariable]bool
	closureBindings map[*ssa.MakeClosure][]*program.CapturedVariable

	paramUpdated map[*program.Callable]map[int]bool
}

// ExtractFacts translates the functions of a built SSA program that match
// the configuration's pkg-filter into a fact base for the flow engine.
// Calls whose every target falls outside the filter are approximated as
// passing their arguments through to their result.
func ExtractFacts(ssaProg *ssa.Program, cfg *config.Config) (*Facts, error) {
	if ssaProg == nil {
		return nil, fmt.Errorf("fact extraction needs a built program")
	}
	x := &extractor{
		b:               program.NewBuilder(),
		cfg:             cfg,
		log:             config.NewLogGroup(cfg),
		fset:            ssaProg.Fset,
		fns:             map[*ssa.Function]*program.Callable{},
		desc:            map[program.Node]config.CodeIdentifier{},
		globals:         map[*ssa.Global]*globalAccess{},
		freeVars:        map[*ssa.FreeVar]*program.CapturedVariable{},
		capturedAllocs:  map[*ssa.Alloc]*program.CapturedVariable{},
		valueCaps:       map[ssa.Value]*program.CapturedVariable{},
		byValueVars:     map[*program.CapturedVariable]bool{},
		closureBindings: map[*ssa.MakeClosure][]*program.CapturedVariable{},
		paramUpdated:    map[*program.Callable]map[int]bool{},
	}

	for fn := range ssautil.AllFunctions(ssaProg) {
		if fn.Parent() == nil && x.inScope(fn) {
			x.roots = append(x.roots, fn)
		}
	}
	sort.Slice(x.roots, func(i, j int) bool { return x.roots[i].String() < x.roots[j].String() })
	if len(x.roots) == 0 {
		return nil, fmt.Errorf("no function bodies match pkg-filter %q", cfg.PkgFilter)
	}
	x.log.Debugf("extracting facts from %d top-level functions\n", len(x.roots))

	mode, err := analysis.CallgraphMode(cfg.Callgraph)
	if err != nil {
		return nil, err
	}
	x.cg, err = mode.ComputeCallgraph(ssaProg)
	if err != nil {
		return nil, fmt.Errorf("computing call graph: %w", err)
	}

	for _, fn := range x.roots {
		x.declareTree(fn)
	}
	for _, fn := range x.order {
		x.discoverCaptures(fn)
	}
	for _, fn := range x.order {
		newFnTranslator(x, fn).translate()
	}

	x.wireGlobals()
	x.wireParamUpdates()
	if err := captures.Synthesize(x.b); err != nil {
		return nil, fmt.Errorf("closure capture synthesis: %w", err)
	}

	prog, err := x.b.Finish()
	if err != nil {
		return nil, fmt.Errorf("extracted facts are inconsistent: %w", err)
	}
	x.log.Infof("extracted %d callables, %d nodes, %d steps\n",
		len(prog.Callables()), prog.NodeCount(), prog.StepCount())
	return &Facts{Program: prog, desc: x.desc, fns: x.fns}, nil
}

// inScope reports whether a function's body is translated. Functions
// without bodies are never in scope; their callers fall back to the
// argument pass-through approximation.
func (x *extractor) inScope(fn *ssa.Function) bool {
	if fn.Blocks == nil {
		return false
	}
	path := packagePath(fn)
	return path != "" && x.cfg.MatchPkgFilter(path)
}

// declareTree declares a function and its syntactic children, parents
// first, so closure callables can name their enclosing callable.
func (x *extractor) declareTree(fn *ssa.Function) {
	x.declare(fn)
	x.order = append(x.order, fn)
	for _, anon := range fn.AnonFuncs {
		x.declareTree(anon)
	}
}

func (x *extractor) declare(fn *ssa.Function) {
	pos := x.position(fn.Pos())
	var f *program.Callable
	if parent := x.fns[fn.Parent()]; parent != nil {
		f = x.b.NewClosureCallable(fn.String(), parent, pos)
	} else {
		f = x.b.NewCallable(fn.String(), pos)
	}
	x.fns[fn] = f
	for i := 1; i < len(fn.Blocks); i++ {
		x.b.NewBlock(f)
	}
	for _, sb := range fn.Blocks {
		for _, succ := range sb.Succs {
			x.b.AddBlockEdge(f.Blocks()[sb.Index], f.Blocks()[succ.Index])
		}
	}
	for _, p := range fn.Params {
		x.b.NewParam(f, p.Name(), typeOf(p.Type()), x.position(p.Pos()))
	}
}

// discoverCaptures resolves the closure bindings of a function before any
// body is translated, so loads and stores on a captured location are
// recognized wherever they appear, including before the closure is made.
func (x *extractor) discoverCaptures(fn *ssa.Function) {
	for _, blk := range fn.Blocks {
		for _, instr := range blk.Instrs {
			mc, ok := instr.(*ssa.MakeClosure)
			if !ok {
				continue
			}
			bodyFn, _ := mc.Fn.(*ssa.Function)
			body := x.fns[bodyFn]
			if body == nil || body.Parent() == nil {
				continue
			}
			vars := make([]*program.CapturedVariable, len(mc.Bindings))
			for i, bind := range mc.Bindings {
				vars[i] = x.captureVarOf(fn, bind)
				x.freeVars[bodyFn.FreeVars[i]] = vars[i]
			}
			x.closureBindings[mc] = vars
		}
	}
}

// captureVarOf returns the captured variable a binding denotes. Bindings of
// a local's address share one variable per alloc; bindings of an outer free
// variable reuse the outer variable; anything else is captured by value and
// gets its definition recorded at each closure site.
func (x *extractor) captureVarOf(fn *ssa.Function, bind ssa.Value) *program.CapturedVariable {
	if al, ok := bind.(*ssa.Alloc); ok {
		if v := x.capturedAllocs[al]; v != nil {
			return v
		}
		v := x.b.NewCapturedVariable(allocName(al), x.fns[al.Parent()], typeOf(derefType(al.Type())))
		x.capturedAllocs[al] = v
		return v
	}
	if fv, ok := bind.(*ssa.FreeVar); ok {
		if v := x.freeVars[fv]; v != nil {
			return v
		}
		v := x.b.NewCapturedVariable(fv.Name(), x.fns[fn], typeOf(fv.Type()))
		x.freeVars[fv] = v
		return v
	}
	if v := x.valueCaps[bind]; v != nil {
		return v
	}
	v := x.b.NewCapturedVariable(bind.Name(), x.fns[fn], typeOf(bind.Type()))
	x.valueCaps[bind] = v
	x.byValueVars[v] = true
	return v
}

// callTargets resolves a call instruction to its in-scope targets through
// the class-hierarchy call graph. The result is name-sorted for
// deterministic site construction.
func (x *extractor) callTargets(fn *ssa.Function, instr ssa.CallInstruction) []*program.Callable {
	node := x.cg.Nodes[fn]
	if node == nil {
		return nil
	}
	var out []*program.Callable
	seen := map[*program.Callable]bool{}
	for _, e := range node.Out {
		if e.Site != instr {
			continue
		}
		if c := x.fns[e.Callee.Func]; c != nil && !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

func (x *extractor) noteParamUpdate(f *program.Callable, i int) {
	m := x.paramUpdated[f]
	if m == nil {
		m = map[int]bool{}
		x.paramUpdated[f] = m
	}
	m[i] = true
}

// wireParamUpdates creates the post-update node of every argument whose
// callee writes through the matching parameter, so updates flowing out of a
// call have somewhere to land.
func (x *extractor) wireParamUpdates() {
	for _, f := range x.b.Program().Callables() {
		for _, c := range f.Calls() {
			for _, target := range c.Callees() {
				updated := x.paramUpdated[target]
				if len(updated) == 0 {
					continue
				}
				idxs := make([]int, 0, len(updated))
				for i := range updated {
					idxs = append(idxs, i)
				}
				sort.Ints(idxs)
				for _, i := range idxs {
					if arg := c.Arg(i); arg != nil {
						x.b.PostUpdate(arg)
					}
				}
			}
		}
	}
}

func (x *extractor) position(p token.Pos) program.Position {
	if p == token.NoPos {
		return program.Position{}
	}
	pos := x.fset.Position(p)
	return program.Position{File: pos.Filename, Line: pos.Line, Col: pos.Column}
}

func allocName(al *ssa.Alloc) string {
	if al.Comment != "" {
		return al.Comment
	}
	return al.Name()
}
