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
	"fmt"
	"runtime"
	"sort"

	"github.com/seep-analysis/seep/analysis/dataflow"
	"github.com/seep-analysis/seep/analysis/program"
	"github.com/seep-analysis/seep/internal/funcutil"
)

// Flows collects the source-to-sink pairs found by the analysis, indexed by
// sink. Pairs from different problems accumulate in one Flows value.
type Flows struct {
	sinkSources map[program.Node]map[program.Node]bool
}

// NewFlows returns an empty flow collection.
func NewFlows() *Flows {
	return &Flows{sinkSources: map[program.Node]map[program.Node]bool{}}
}

// Add records that source reaches sink.
func (f *Flows) Add(source, sink program.Node) {
	set := f.sinkSources[sink]
	if set == nil {
		set = map[program.Node]bool{}
		f.sinkSources[sink] = set
	}
	set[source] = true
}

// Merge adds every pair of other into f.
func (f *Flows) Merge(other *Flows) {
	for sink, sources := range other.sinkSources {
		for source := range sources {
			f.Add(source, sink)
		}
	}
}

// IsEmpty reports whether no flow was recorded.
func (f *Flows) IsEmpty() bool { return len(f.sinkSources) == 0 }

// Count returns the number of recorded source-to-sink pairs.
func (f *Flows) Count() int {
	n := 0
	for _, sources := range f.sinkSources {
		n += len(sources)
	}
	return n
}

// Sinks returns the reached sinks, ordered by node id.
func (f *Flows) Sinks() []program.Node {
	out := make([]program.Node, 0, len(f.sinkSources))
	for sink := range f.sinkSources {
		out = append(out, sink)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Sources returns the sources reaching the given sink, ordered by node id.
func (f *Flows) Sources(sink program.Node) []program.Node {
	out := make([]program.Node, 0, len(f.sinkSources[sink]))
	for source := range f.sinkSources[sink] {
		out = append(out, source)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// AnalysisResult is the outcome of running every taint-tracking problem of a
// configuration.
type AnalysisResult struct {
	// TaintFlows contains all the data flows from the sources to the sinks
	// detected during the analysis.
	TaintFlows *Flows

	// State is the analyzer state at the end of the analysis, for chaining
	// another analysis.
	State *dataflow.AnalyzerState

	// Results holds the engine result of each problem, in configuration
	// order, for callers that need paths, summaries or partial flows.
	Results []*dataflow.FlowResult
}

// Analyze runs every taint-tracking problem of the state's configuration
// over the state's program. Problems are independent, so they run in
// parallel; the results are reported through the state's logger and, when
// report-paths is set, written as trace files in the reports directory.
//
// describe is the front end's node description function; it must accept
// every node of the program.
func Analyze(state *dataflow.AnalyzerState, describe Describer) (AnalysisResult, error) {
	if describe == nil {
		return AnalysisResult{}, fmt.Errorf("taint analysis needs a node describer")
	}
	specs := state.Config.TaintTrackingProblems
	result := AnalysisResult{TaintFlows: NewFlows(), State: state}
	if len(specs) == 0 {
		state.Logger.Warnf("no taint-tracking problems in the configuration, nothing to do\n")
		return result, nil
	}

	numRoutines := runtime.NumCPU() - 1
	if numRoutines <= 0 {
		numRoutines = 1
	}

	problems := make([]dataflow.ProblemSpec, 0, len(specs))
	for i, ts := range specs {
		p := NewProblem(state, ts, describe)
		if p.Name == "" {
			p.Name = fmt.Sprintf("taint-%d", i)
		}
		problems = append(problems, p)
	}

	type outcome struct {
		res *dataflow.FlowResult
		err error
	}
	outcomes := funcutil.MapParallel(problems, func(p dataflow.ProblemSpec) outcome {
		res, err := state.Solve(p)
		return outcome{res: res, err: err}
	}, numRoutines)

	alarms := 0
	for _, out := range outcomes {
		if out.err != nil {
			return result, fmt.Errorf("taint analysis failed: %w", out.err)
		}
		result.Results = append(result.Results, out.res)
		for _, pair := range out.res.SourceSinkPairs() {
			result.TaintFlows.Add(pair.Source, pair.Sink)
		}
		reportFlows(state, out.res, &alarms)
	}
	return result, nil
}
