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

// Package dataflow implements the interprocedural data-flow and
// taint-tracking engine.
//
// The engine answers, for a client-declared Problem (sources, sinks,
// barriers, additional taint steps), whether data from a source can reach a
// sink through the value, field-store/read, closure-capture and call edges
// of a sealed program.Program. It is field sensitive up to a bounded access
// path, call-context sensitive for one call level, and derives reusable
// flow-through summaries for callables so bodies are not re-explored per
// call site.
//
// The computation is staged. Two coarse node-level passes (forward from the
// sources, backward from the sinks) prune the graph to candidate nodes; two
// front-refined passes repeat the pruning with the head of the access path;
// only then does the full pass materialize access paths, call contexts and
// summary contexts, restricted to the survivors. The staging is a deliberate
// precision/performance trade-off: each pass is a cheap over-approximation
// that keeps the expensive one from visiting nodes that cannot lie on a
// source-to-sink path.
//
// Typical use:
//
//	state, err := dataflow.NewInitializedAnalyzerState(prog, cfg)
//	res, err := dataflow.Solve(state, problem)
//	for _, pair := range res.SourceSinkPairs() { ... }
//
// Several independent Problems may be solved against the same state,
// concurrently if desired; Problems never interact.
package dataflow
