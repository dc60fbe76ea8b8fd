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

package taint

import (
	"github.com/seep-analysis/seep/analysis/config"
	"github.com/seep-analysis/seep/analysis/dataflow"
	"github.com/seep-analysis/seep/analysis/program"
)

// A Describer maps program nodes to the code identifiers that configuration
// entries match against. Front ends provide one alongside the programs they
// build; nodes the front end has nothing to say about map to the zero
// identifier, which matches no non-empty configuration entry.
type Describer func(n program.Node) config.CodeIdentifier

// NewProblem builds the engine problem for one taint specification. Every
// node of the program is classified against the spec once here, so the
// problem's predicates are pure map lookups, as the engine requires.
func NewProblem(s *dataflow.AnalyzerState, ts config.TaintSpec, describe Describer) dataflow.ProblemSpec {
	sources := map[program.Node]bool{}
	sinks := map[program.Node]bool{}
	barriers := map[program.Node]bool{}
	barriersIn := map[program.Node]bool{}
	barriersOut := map[program.Node]bool{}

	for _, n := range s.Program.Nodes() {
		cid := describe(n)
		if ts.IsSource(cid) {
			sources[n] = true
		}
		if ts.IsSink(cid) {
			sinks[n] = true
		}
		if ts.IsSanitizer(cid) {
			barriers[n] = true
		}
		if ts.IsSanitizerIn(cid) {
			barriersIn[n] = true
		}
		if ts.IsSanitizerOut(cid) {
			barriersOut[n] = true
		}
	}
	s.Logger.Debugf("problem %q: %d sources, %d sinks, %d sanitizers\n",
		ts.Tag, len(sources), len(sinks), len(barriers)+len(barriersIn)+len(barriersOut))

	p := dataflow.ProblemSpec{
		Name:        ts.Tag,
		Sources:     func(n program.Node) bool { return sources[n] },
		Sinks:       func(n program.Node) bool { return sinks[n] },
		Exploration: s.Config.Exploration(ts),
		PathBound:   s.Config.MaxAccessPathLength,
	}
	if len(barriers) > 0 {
		p.Barriers = func(n program.Node) bool { return barriers[n] }
	}
	if len(barriersIn) > 0 {
		p.BarriersIn = func(n program.Node) bool { return barriersIn[n] }
	}
	if len(barriersOut) > 0 {
		p.BarriersOut = func(n program.Node) bool { return barriersOut[n] }
	}
	if limit := s.Config.BranchLimit(ts); limit == 0 {
		p.DisableFieldFlow = true
	} else {
		p.BranchLimit = limit
	}
	return p
}
