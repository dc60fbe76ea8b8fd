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
Package program holds the abstract program facts the data-flow engine
consumes: nodes grouped by callable, contents (fields, elements, capture
slots), the local/jump/store/read step relations, and call resolution.

Front ends populate a program through a [Builder] and seal it with
[Builder.Finish]; a finished program is immutable and safe for concurrent
reads. The step relations are independent of any analysis configuration:
sources, sinks and barriers are layered on top by the engine, never baked
into the facts.

The relations mirror the narrow provider surface the engine needs:

  - local steps, value-preserving or taint-only, within one callable
  - jump steps, crossing callables and discarding calling context
  - store and read steps keyed by a [Content]
  - viable callables and parameter/argument pairing per call site
  - return positions linking returns inside a callable to call results
    and argument post-updates at its call sites

[Builder.Finish] verifies the consistency obligations a front end must
meet (single enclosing callable, usable positions and string forms, capture
accesses nested in the capturing callable tree, closures with bodies) and
reports violations as errors rather than tolerating them silently.
*/
package program
