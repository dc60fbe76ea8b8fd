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
	"strings"

	"github.com/seep-analysis/seep/analysis/program"
)

// An AccessPath records which nested part of a value is tracked: the
// sequence of contents that must be read off the value to reach the tainted
// data, terminated by the type of the tracked value. Paths are bounded; a
// push beyond the bound collapses the path to "this head content followed by
// an unknown tail", and popping an unknown tail yields the unknown-any path,
// which may stand for any path including the empty one.
//
// Access paths are interned per analysis run, so equality is pointer
// equality.
type AccessPath struct {
	head        *program.Content
	tail        *AccessPath
	restUnknown bool
	length      int
	typ         program.Type
}

// Head returns the first content of the path, nil for the empty and
// unknown-any paths.
func (ap *AccessPath) Head() *program.Content { return ap.head }

// Len returns the number of known contents on the path.
func (ap *AccessPath) Len() int { return ap.length }

// Type returns the type of the tracked value.
func (ap *AccessPath) Type() program.Type { return ap.typ }

// IsEmpty reports whether the path tracks the value itself.
func (ap *AccessPath) IsEmpty() bool { return ap.head == nil && !ap.restUnknown }

// HasUnknownTail reports whether the path was collapsed at the bound.
func (ap *AccessPath) HasUnknownTail() bool { return ap.restUnknown }

// MaybeEmpty reports whether the path may track the value itself: it is
// empty, or it is the unknown-any path. Taint steps and sinks apply only to
// maybe-empty paths.
func (ap *AccessPath) MaybeEmpty() bool { return ap.head == nil }

func (ap *AccessPath) String() string {
	if ap == nil {
		return "<nil>"
	}
	var b strings.Builder
	for cur := ap; cur != nil; cur = cur.tail {
		if cur.head != nil {
			b.WriteString(".")
			b.WriteString(cur.head.String())
		}
		if cur.restUnknown {
			b.WriteString(".*")
			break
		}
	}
	return b.String()
}

// Front returns the two-level abstraction of the path: its head content and
// whether it is non-empty. The candidate stages work on fronts only.
func (ap *AccessPath) Front() Front {
	if ap.IsEmpty() {
		return Front{}
	}
	return Front{head: ap.head, nonEmpty: true}
}

// A Front abstracts an access path to its head content and an emptiness
// flag. A nil head with the non-empty flag set stands for a non-empty path
// whose head is unknown.
type Front struct {
	head     *program.Content
	nonEmpty bool
}

// Head returns the front's head content, nil when empty or unknown.
func (f Front) Head() *program.Content { return f.head }

// NonEmpty reports whether the abstracted path has at least one content.
func (f Front) NonEmpty() bool { return f.nonEmpty }

func (f Front) String() string {
	switch {
	case !f.nonEmpty:
		return "()"
	case f.head == nil:
		return ".*"
	default:
		return "." + f.head.String()
	}
}

type apKey struct {
	head        *program.Content
	tail        *AccessPath
	restUnknown bool
	typ         program.Type
}

// apTable interns the access paths of one analysis run under a fixed length
// bound.
type apTable struct {
	bound int
	paths map[apKey]*AccessPath
}

func newAPTable(bound int) *apTable {
	return &apTable{bound: bound, paths: map[apKey]*AccessPath{}}
}

func (t *apTable) intern(head *program.Content, tail *AccessPath, restUnknown bool, length int, typ program.Type) *AccessPath {
	k := apKey{head: head, tail: tail, restUnknown: restUnknown, typ: typ}
	if ap := t.paths[k]; ap != nil {
		return ap
	}
	ap := &AccessPath{head: head, tail: tail, restUnknown: restUnknown, length: length, typ: typ}
	t.paths[k] = ap
	return ap
}

// Empty returns the empty path tracking a value of the given type.
func (t *apTable) Empty(typ program.Type) *AccessPath {
	return t.intern(nil, nil, false, 0, typ)
}

// UnknownAny returns the path standing for any path, including the empty
// one. It arises from popping a collapsed tail.
func (t *apTable) UnknownAny() *AccessPath {
	return t.intern(nil, nil, true, 0, program.UnknownType)
}

// Push prepends c to ap. Beyond the bound, or on top of an unknown tail, the
// result collapses to c followed by an unknown tail; pushing further onto a
// collapsed path keeps it collapsed, so degradation is idempotent.
func (t *apTable) Push(c *program.Content, ap *AccessPath) *AccessPath {
	if ap.restUnknown || ap.length+1 > t.bound {
		return t.intern(c, nil, true, 1, c.Container())
	}
	return t.intern(c, ap, false, ap.length+1, c.Container())
}

// Pop removes c from the front of ap. The boolean is false when ap cannot
// start with c. Popping a collapsed or unknown-any path yields unknown-any.
func (t *apTable) Pop(c *program.Content, ap *AccessPath) (*AccessPath, bool) {
	switch {
	case ap.head == c && ap.head != nil:
		if ap.restUnknown {
			return t.UnknownAny(), true
		}
		return ap.tail, true
	case ap.head == nil && ap.restUnknown:
		return t.UnknownAny(), true
	default:
		return nil, false
	}
}
