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
	"sync"

	"github.com/seep-analysis/seep/analysis/config"
	"github.com/seep-analysis/seep/analysis/program"
	"github.com/seep-analysis/seep/internal/graphutil"
)

// AnalyzerState holds the information shared by every analysis run against
// one program: the sealed program facts, the configuration, the logger, and
// derived call-graph structure. Different initialization steps populate the
// fields of this structure; Solve only reads them.
type AnalyzerState struct {
	// Program is the sealed fact store produced by program.Builder.Finish.
	Program *program.Program

	// Config is the user configuration for the analyses.
	Config *config.Config

	// Logger is used for all analysis output.
	Logger *config.LogGroup

	// components are the strongly connected components of the call graph,
	// callees first. componentOf indexes them by callable.
	components  [][]*program.Callable
	componentOf map[*program.Callable]int

	// active tracks the problems currently being solved, for re-entrancy
	// detection.
	active map[string]bool

	errors     map[string][]error
	errorMutex sync.Mutex
}

// NewAnalyzerState returns an analyzer state for the program, running the
// given initialization steps in parallel. Steps report failures through
// AddError; the first stored error is returned.
func NewAnalyzerState(p *program.Program, cfg *config.Config, logger *config.LogGroup,
	steps []func(*AnalyzerState)) (*AnalyzerState, error) {
	if p == nil {
		return nil, fmt.Errorf("nil program")
	}
	if !p.IsFrozen() {
		return nil, fmt.Errorf("program must be sealed by Builder.Finish before analysis")
	}
	state := &AnalyzerState{
		Program:     p,
		Config:      cfg,
		Logger:      logger,
		componentOf: map[*program.Callable]int{},
		active:      map[string]bool{},
		errors:      map[string][]error{},
	}

	wg := &sync.WaitGroup{}
	for _, step := range steps {
		step := step
		wg.Add(1)
		go func() {
			defer wg.Done()
			step(state)
		}()
	}
	wg.Wait()
	if errs := state.CheckError(); len(errs) > 0 {
		return nil, fmt.Errorf("failed to build analyzer state: %w", errs[0])
	}
	return state, nil
}

// NewInitializedAnalyzerState runs NewAnalyzerState with the steps commonly
// used by analyses: call-graph component computation and recursion
// diagnostics.
func NewInitializedAnalyzerState(p *program.Program, cfg *config.Config) (*AnalyzerState, error) {
	logger := config.NewLogGroup(cfg)
	return NewAnalyzerState(p, cfg, logger, []func(*AnalyzerState){
		func(s *AnalyzerState) { s.PopulateCallGraphInfo() },
	})
}

// PopulateCallGraphInfo computes the strongly connected components of the
// call graph and logs recursion diagnostics. Recursive components are worth
// surfacing because flow-through summaries inside them converge by
// iteration rather than in one pass.
func (s *AnalyzerState) PopulateCallGraphInfo() {
	succs := func(f *program.Callable) []*program.Callable {
		var out []*program.Callable
		seen := map[*program.Callable]bool{}
		for _, c := range f.Calls() {
			for _, g := range c.Callees() {
				if !seen[g] {
					seen[g] = true
					out = append(out, g)
				}
			}
		}
		return out
	}
	s.components = graphutil.StronglyConnectedComponents(s.Program.Callables(), succs)
	s.componentOf = graphutil.ComponentOf(s.components)

	recursive := 0
	for _, comp := range s.components {
		if len(comp) > 1 || s.callsItself(comp[0]) {
			recursive++
		}
	}
	s.Logger.Debugf("call graph: %d callables, %d components, %d recursive\n",
		len(s.Program.Callables()), len(s.components), recursive)
	if recursive > 0 && s.Config != nil && s.Config.Verbose() {
		s.reportRecursion()
	}
}

func (s *AnalyzerState) callsItself(f *program.Callable) bool {
	for _, c := range f.Calls() {
		for _, g := range c.Callees() {
			if g == f {
				return true
			}
		}
	}
	return false
}

// reportRecursion lists every elementary call cycle at debug level.
func (s *AnalyzerState) reportRecursion() {
	cg := graphutil.NewCallGraph(s.Program)
	for _, cycle := range graphutil.FindAllElementaryCycles(cg) {
		names := make([]string, 0, len(cycle))
		for _, id := range cycle {
			names = append(names, cg.IDMap[id].Fn.Name())
		}
		s.Logger.Debugf("recursive cycle: %v\n", names)
	}
}

// IsRecursive reports whether f takes part in a call cycle.
func (s *AnalyzerState) IsRecursive(f *program.Callable) bool {
	i, ok := s.componentOf[f]
	if !ok {
		return false
	}
	return len(s.components[i]) > 1 || s.callsItself(f)
}

// Components returns the strongly connected components of the call graph,
// callees first.
func (s *AnalyzerState) Components() [][]*program.Callable { return s.components }

// AddError adds an error with key and error e to the state.
func (s *AnalyzerState) AddError(key string, e error) {
	s.errorMutex.Lock()
	defer s.errorMutex.Unlock()
	if e != nil {
		s.errors[key] = append(s.errors[key], e)
	}
}

// CheckError returns and deletes the errors stored under the first key
// encountered, nil when the state has no errors.
func (s *AnalyzerState) CheckError() []error {
	s.errorMutex.Lock()
	defer s.errorMutex.Unlock()
	for k, errs := range s.errors {
		delete(s.errors, k)
		return errs
	}
	return nil
}

// HasErrors reports whether the state has stored errors, without consuming
// them.
func (s *AnalyzerState) HasErrors() bool {
	s.errorMutex.Lock()
	defer s.errorMutex.Unlock()
	for _, errs := range s.errors {
		if len(errs) > 0 {
			return true
		}
	}
	return false
}

// beginSolve registers a problem as being solved. It fails when the same
// tag is already active, which catches configurations whose predicates
// depend on another solve of the same evaluation.
func (s *AnalyzerState) beginSolve(tag string) error {
	s.errorMutex.Lock()
	defer s.errorMutex.Unlock()
	if s.active[tag] {
		return fmt.Errorf("problem %q is already being solved: "+
			"a configuration's predicates may not depend on flow results of the same evaluation", tag)
	}
	s.active[tag] = true
	return nil
}

func (s *AnalyzerState) endSolve(tag string) {
	s.errorMutex.Lock()
	defer s.errorMutex.Unlock()
	delete(s.active, tag)
}
