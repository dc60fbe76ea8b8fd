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

package analysis

import (
	"fmt"

	"golang.org/x/tools/go/callgraph"
	"golang.org/x/tools/go/callgraph/cha"
	"golang.org/x/tools/go/callgraph/rta"
	"golang.org/x/tools/go/callgraph/static"
	"golang.org/x/tools/go/callgraph/vta"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"
)

// CallgraphAnalysisMode selects the algorithm resolving call targets when
// facts are extracted from a program.
type CallgraphAnalysisMode uint64

const (
	// ClassHierarchyAnalysis is a coarse over-approximation (fast). It is
	// the default: it needs no main package, which matters for analyzing
	// libraries.
	ClassHierarchyAnalysis CallgraphAnalysisMode = iota

	// StaticAnalysis resolves only static calls (under-approximating, fast)
	StaticAnalysis

	// RapidTypeAnalysis prunes targets to types instantiated from the main
	// and init entry points.
	// See "Fast Analysis of C++ Virtual Function Calls", D.Bacon & P. Sweeney, OOPSLA'96
	RapidTypeAnalysis

	// VariableTypeAnalysis refines a static call graph with variable type
	// propagation from the entry points.
	VariableTypeAnalysis
)

// CallgraphMode maps the configuration's callgraph option to a mode. The
// empty string selects class hierarchy analysis.
func CallgraphMode(name string) (CallgraphAnalysisMode, error) {
	switch name {
	case "", "cha":
		return ClassHierarchyAnalysis, nil
	case "static":
		return StaticAnalysis, nil
	case "rta":
		return RapidTypeAnalysis, nil
	case "vta":
		return VariableTypeAnalysis, nil
	default:
		return ClassHierarchyAnalysis, fmt.Errorf("unknown callgraph mode %q (want cha, static, rta or vta)", name)
	}
}

// ComputeCallgraph computes the call graph of prog using the provided mode.
func (mode CallgraphAnalysisMode) ComputeCallgraph(prog *ssa.Program) (*callgraph.Graph, error) {
	switch mode {
	case StaticAnalysis:
		return static.CallGraph(prog), nil
	case ClassHierarchyAnalysis:
		// See "Optimization of Object-Oriented Programs Using Static Class
		// Hierarchy Analysis", J. Dean, D. Grove, and C. Chambers, ECOOP'95.
		return cha.CallGraph(prog), nil
	case VariableTypeAnalysis:
		roots := make(map[*ssa.Function]bool)
		mains := ssautil.MainPackages(prog.AllPackages())
		for _, m := range mains {
			// Look at all init and main functions in main packages
			roots[m.Func("init")] = true
			roots[m.Func("main")] = true
		}
		cg := static.CallGraph(prog)
		return vta.CallGraph(roots, cg), nil
	case RapidTypeAnalysis:
		var roots []*ssa.Function
		mains := ssautil.MainPackages(prog.AllPackages())
		for _, m := range mains {
			// Start at all init and main functions in main packages
			roots = append(roots, m.Func("init"), m.Func("main"))
		}
		if len(roots) == 0 {
			return nil, fmt.Errorf("rapid type analysis needs a main package")
		}
		return rta.Analyze(roots, true).CallGraph, nil
	default:
		return nil, fmt.Errorf("unsupported callgraph analysis mode %d", mode)
	}
}
