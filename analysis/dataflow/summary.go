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
	"fmt"

	"github.com/seep-analysis/seep/analysis/program"
)

// Summary records one flow-through fact about a callable: a value entering
// at the parameter in position Param with access path Entry can reach the
// return position Kind with access path Exit. Summaries are derived once
// per callee and applied at every call site that reaches a matching entry,
// so deep call graphs never re-walk a callee body per call.
type Summary struct {
	Callee *program.Callable

	// Param is the entry parameter index, -1 when the entry is the
	// closure's capture qualifier.
	Param int

	Entry *AccessPath
	Kind  program.ReturnKind
	Exit  *AccessPath

	// Preserves reports whether the value itself survives the traversal.
	// When false, only taintedness carries through.
	Preserves bool
}

// Read returns the content the callee pops off the entering value, nil when
// the entry path is empty.
func (s Summary) Read() *program.Content { return s.Entry.Head() }

// Store returns the content the callee pushes onto the exiting value, nil
// when the exit path is empty.
func (s Summary) Store() *program.Content { return s.Exit.Head() }

func (s Summary) String() string {
	arrow := "=>"
	if !s.Preserves {
		arrow = "~>"
	}
	return fmt.Sprintf("%s: param %d%v %s %v%v", s.Callee.Name(), s.Param, s.Entry, arrow, s.Kind, s.Exit)
}

// paramIndex returns the parameter position of an entry node, -1 for the
// capture qualifier.
func paramIndex(n program.Node) int {
	if p, ok := n.(*program.ParamNode); ok {
		return p.Index()
	}
	return -1
}

// SummaryNodeKind classifies the synthesized node standing in for a call in
// a flow path when the flow goes through the callee rather than around it.
// The callee's effect is modeled as read-then-flow-then-store: it may pop
// one content off the entering value, may lose the value to a taint step,
// and may push one content onto the exiting value. Four kinds cover the
// combinations; value-preserving traversals that neither read nor store
// need no node at all.
type SummaryNodeKind uint8

const (
	// ReadStoreNode is a value-preserving traversal that pops and/or
	// pushes a content. Either content may be absent.
	ReadStoreNode SummaryNodeKind = iota + 1
	// ReadTaintNode pops a content, then loses the value to a taint step.
	ReadTaintNode
	// TaintStoreNode taints, then pushes a content onto the result.
	TaintStoreNode
	// ReadTaintStoreNode pops a content, taints, then pushes a content.
	ReadTaintStoreNode
)

func (k SummaryNodeKind) String() string {
	switch k {
	case ReadStoreNode:
		return "read-store"
	case ReadTaintNode:
		return "read-taint"
	case TaintStoreNode:
		return "taint-store"
	case ReadTaintStoreNode:
		return "read-taint-store"
	}
	return "through"
}

// SummaryNode is the synthesized node attached to a flow-through edge. It
// carries the originating call and the popped and pushed contents as
// immutable data, and is interned by value, so equal summarized effects at
// a call share one node.
type SummaryNode struct {
	kind   SummaryNodeKind
	call   *program.CallSite
	callee *program.Callable
	read   *program.Content
	store  *program.Content
}

// Kind returns the read/taint/store shape of the summarized effect.
func (sn *SummaryNode) Kind() SummaryNodeKind { return sn.kind }

// Call returns the call site the flow goes through.
func (sn *SummaryNode) Call() *program.CallSite { return sn.call }

// Callee returns the summarized callable.
func (sn *SummaryNode) Callee() *program.Callable { return sn.callee }

// Read returns the popped content, nil when the summary does not read.
func (sn *SummaryNode) Read() *program.Content { return sn.read }

// Store returns the pushed content, nil when the summary does not store.
func (sn *SummaryNode) Store() *program.Content { return sn.store }

func (sn *SummaryNode) String() string {
	out := fmt.Sprintf("[%s %s", sn.kind, sn.callee.Name())
	if sn.read != nil {
		out += fmt.Sprintf(" reads %s", sn.read.Name())
	}
	if sn.store != nil {
		out += fmt.Sprintf(" stores %s", sn.store.Name())
	}
	return out + "]"
}

type summaryNodeKey struct {
	kind   SummaryNodeKind
	call   *program.CallSite
	callee *program.Callable
	read   *program.Content
	store  *program.Content
}

type summaryNodeTable struct {
	nodes map[summaryNodeKey]*SummaryNode
}

func newSummaryNodeTable() *summaryNodeTable {
	return &summaryNodeTable{nodes: map[summaryNodeKey]*SummaryNode{}}
}

// summarize returns the node for a flow-through at call with the given
// entry and exit paths, or nil when the traversal needs no annotation: an
// identity flow, or a bare taint step through the callee.
func (t *summaryNodeTable) summarize(call *program.CallSite, callee *program.Callable, entry, exit *AccessPath, preserves bool) *SummaryNode {
	if preserves && entry == exit {
		return nil
	}
	kind, ok := summaryKind(entry.Head(), exit.Head(), preserves)
	if !ok {
		return nil
	}
	key := summaryNodeKey{kind: kind, call: call, callee: callee, read: entry.Head(), store: exit.Head()}
	if sn, ok := t.nodes[key]; ok {
		return sn
	}
	sn := &SummaryNode{kind: key.kind, call: key.call, callee: key.callee, read: key.read, store: key.store}
	t.nodes[key] = sn
	return sn
}

func summaryKind(read, store *program.Content, preserves bool) (SummaryNodeKind, bool) {
	switch {
	case preserves && (read != nil || store != nil):
		return ReadStoreNode, true
	case read != nil && store != nil:
		return ReadTaintStoreNode, true
	case read != nil:
		return ReadTaintNode, true
	case store != nil:
		return TaintStoreNode, true
	}
	return 0, false
}
