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

// Package gofront extracts data-flow facts from the SSA form of a Go
// program. [ExtractFacts] walks every function within the configured
// package filter and translates its instructions into the fact relations
// of [program.Builder]: value steps for assignments and operators,
// store/read steps for field, element and channel accesses, call sites
// with their viable targets resolved by the configured call-graph
// construction, jump steps through package-level variables, and capture
// facts for closures.
//
// The resulting [Facts] value carries the sealed program together with a
// code-identifier description of each node, which the taint layer uses to
// match configuration entries against sources and sinks. Flow through
// functions outside the filter is approximated by tainting call results
// with their arguments.
package gofront
