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
	"github.com/seep-analysis/seep/analysis/program"
)

// FlowStats summarizes how much work a solve did, stage by stage.
type FlowStats struct {
	// CandidateNodes is the number of nodes surviving stage 1.
	CandidateNodes int
	// Fronts is the number of (node, front) tuples surviving stage 2.
	Fronts int
	// States is the number of full states stage 3 explored.
	States int
	// Kept is the number of states on some source-to-sink trajectory.
	Kept int
}

// FlowResult is the outcome of solving one problem: the rendered path
// graph, the flow-through summaries derived along the way, the partial
// flows when exploration was enabled, and work statistics. A problem with
// no sources or no sinks yields an empty result, not an error.
type FlowResult struct {
	Tag       string
	Graph     *PathGraph
	Summaries []Summary
	Partials  []PartialFlow
	Stats     FlowStats
}

// HasFlow reports whether any source reaches any sink.
func (r *FlowResult) HasFlow() bool { return len(r.Graph.Pairs) > 0 }

// HasFlowTo reports whether any source reaches the given sink node.
func (r *FlowResult) HasFlowTo(sink program.Node) bool {
	for _, p := range r.Graph.Pairs {
		if p.Sink == sink {
			return true
		}
	}
	return false
}

// HasFlowPath reports whether flow from the given source reaches the given
// sink.
func (r *FlowResult) HasFlowPath(source, sink program.Node) bool {
	for _, p := range r.Graph.Pairs {
		if p.Source == source && p.Sink == sink {
			return true
		}
	}
	return false
}

// FlowPaths returns up to max source-to-sink waypoint paths, with a
// default cap when max is not positive.
func (r *FlowResult) FlowPaths(max int) [][]*PathNode { return r.Graph.Paths(max) }

// SourceSinkPairs returns the reported endpoint pairs.
func (r *FlowResult) SourceSinkPairs() []SourceSinkPair { return r.Graph.Pairs }

// HasPartialFlow reports whether the bounded exploration reached n from
// source. Partial flows are only collected when the problem sets an
// exploration limit.
func (r *FlowResult) HasPartialFlow(source, n program.Node) bool {
	for _, pf := range r.Partials {
		if pf.Source == source && pf.Node == n {
			return true
		}
	}
	return false
}
