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

/*
Package taint is the user-facing taint analysis layer. It turns the
taint-tracking problems declared in a configuration file into engine
problems, runs them with the dataflow package, and reports the flows found.
The main entry point is the [Analyze] function, which returns an
[AnalysisResult] containing all the taint flows discovered together with the
per-problem engine results.

Configurations identify code elements by [config.CodeIdentifier]; front ends
describe the nodes of the programs they build through a [Describer], and the
two are matched here, once per problem, before any engine run. Each problem
of a configuration is solved independently; problems never interact.
*/
package taint
