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
	"github.com/seep-analysis/seep/analysis/config"
	"github.com/seep-analysis/seep/analysis/program"
)

// A Problem is the closed, client-declared surface that parameterizes one
// analysis: which nodes are sources and sinks, which nodes extinguish flow,
// which extra taint edges exist, and the field-flow and exploration limits.
// The predicates must be pure functions of the node; in particular they must
// not depend on the flow results of another Problem in the same evaluation
// (Solve rejects such re-entrant use). Distinct Problems never interact.
type Problem interface {
	// Tag returns a short name identifying the problem in logs and errors.
	Tag() string

	// IsSource reports whether n seeds the analysis.
	IsSource(n program.Node) bool

	// IsSink reports whether flow reaching n is reported.
	IsSink(n program.Node) bool

	// IsBarrier reports whether n extinguishes all flow through it.
	IsBarrier(n program.Node) bool

	// IsBarrierIn reports whether flow may not enter n.
	IsBarrierIn(n program.Node) bool

	// IsBarrierOut reports whether flow may not leave n.
	IsBarrierOut(n program.Node) bool

	// IsAdditionalStep reports a taint-only edge from one node to another,
	// beyond the program's value-preserving step relation.
	IsAdditionalStep(from, to program.Node) bool

	// FieldFlowBranchLimit bounds the call fan-in/fan-out an access-path
	// carrying state may cross. 0 disables field-sensitive flow entirely.
	FieldFlowBranchLimit() int

	// ExplorationLimit bounds partial-flow exploration; 0 disables the mode.
	ExplorationLimit() int

	// AccessPathBound is the maximum tracked access path length.
	AccessPathBound() int
}

// ProblemSpec implements Problem from optional function fields. The zero
// value is a valid problem with no sources, no sinks, and the default
// limits.
type ProblemSpec struct {
	// Name tags the problem in logs and reports.
	Name string

	// Sources and Sinks declare the endpoints. A nil field matches nothing.
	Sources func(program.Node) bool
	Sinks   func(program.Node) bool

	// Barriers remove nodes from the graph; BarriersIn and BarriersOut
	// block flow entering or leaving a node.
	Barriers    func(program.Node) bool
	BarriersIn  func(program.Node) bool
	BarriersOut func(program.Node) bool

	// AdditionalSteps declares taint-only edges beyond the program facts.
	AdditionalSteps func(from, to program.Node) bool

	// BranchLimit is the field-flow branch limit; 0 means the default.
	// Set DisableFieldFlow to turn field sensitivity off entirely.
	BranchLimit      int
	DisableFieldFlow bool

	// Exploration enables bounded partial-flow diagnostics when positive.
	Exploration int

	// PathBound overrides the access path length bound; 0 means the
	// default.
	PathBound int
}

// Tag returns the problem's name, or a placeholder when unnamed.
func (p ProblemSpec) Tag() string {
	if p.Name == "" {
		return "unnamed-problem"
	}
	return p.Name
}

// IsSource reports whether n matches the Sources field.
func (p ProblemSpec) IsSource(n program.Node) bool { return p.Sources != nil && p.Sources(n) }

// IsSink reports whether n matches the Sinks field.
func (p ProblemSpec) IsSink(n program.Node) bool { return p.Sinks != nil && p.Sinks(n) }

// IsBarrier reports whether n matches the Barriers field.
func (p ProblemSpec) IsBarrier(n program.Node) bool { return p.Barriers != nil && p.Barriers(n) }

// IsBarrierIn reports whether n matches the BarriersIn field.
func (p ProblemSpec) IsBarrierIn(n program.Node) bool { return p.BarriersIn != nil && p.BarriersIn(n) }

// IsBarrierOut reports whether n matches the BarriersOut field.
func (p ProblemSpec) IsBarrierOut(n program.Node) bool {
	return p.BarriersOut != nil && p.BarriersOut(n)
}

// IsAdditionalStep reports whether (from, to) matches the AdditionalSteps
// field.
func (p ProblemSpec) IsAdditionalStep(from, to program.Node) bool {
	return p.AdditionalSteps != nil && p.AdditionalSteps(from, to)
}

// FieldFlowBranchLimit returns the effective branch limit.
func (p ProblemSpec) FieldFlowBranchLimit() int {
	if p.DisableFieldFlow {
		return 0
	}
	if p.BranchLimit > 0 {
		return p.BranchLimit
	}
	return config.DefaultFieldFlowBranchLimit
}

// ExplorationLimit returns the partial-flow exploration bound.
func (p ProblemSpec) ExplorationLimit() int { return p.Exploration }

// AccessPathBound returns the effective access path length bound.
func (p ProblemSpec) AccessPathBound() int {
	if p.PathBound > 0 {
		return p.PathBound
	}
	return config.DefaultMaxAccessPathLength
}

// fullBarrier reports whether n is excluded from the graph entirely: a
// barrier node, a barrier-in node that is not a source, or a barrier-out
// node that is not a sink. The last two are dead for flow purposes even
// though only one direction is blocked.
func fullBarrier(p Problem, n program.Node) bool {
	return p.IsBarrier(n) ||
		(p.IsBarrierIn(n) && !p.IsSource(n)) ||
		(p.IsBarrierOut(n) && !p.IsSink(n))
}

// edgeAllowed reports whether flow may move from a to b under the problem's
// directional barriers.
func edgeAllowed(p Problem, a, b program.Node) bool {
	return !p.IsBarrierOut(a) && !p.IsBarrierIn(b)
}
