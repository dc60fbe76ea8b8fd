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

type ctxKind uint8

const (
	ctxAny ctxKind = iota
	ctxSpecific
	ctxSome
	ctxReturn
)

// A CallContext disambiguates which call produced interprocedural flow, for
// one call level. Flow that entered a callable under a specific context may
// only return to that call; flow entered under "some call" is known to have
// entered from a call without recording which one. The zero value is the
// unconstrained context.
type CallContext struct {
	kind ctxKind
	call *program.CallSite
}

// AnyContext returns the unconstrained call context.
func AnyContext() CallContext { return CallContext{} }

// SpecificContext returns the context of flow that entered through c.
func SpecificContext(c *program.CallSite) CallContext {
	return CallContext{kind: ctxSpecific, call: c}
}

// SomeContext returns the context of flow that entered through an unrecorded
// call.
func SomeContext() CallContext { return CallContext{kind: ctxSome} }

// ReturnContext returns the context of flow that returned out of c.
func ReturnContext(c *program.CallSite) CallContext {
	return CallContext{kind: ctxReturn, call: c}
}

// IsSpecific reports whether the context pins flow to a single call.
func (cc CallContext) IsSpecific() bool { return cc.kind == ctxSpecific }

// Call returns the call the context refers to, nil for the any and some
// contexts.
func (cc CallContext) Call() *program.CallSite { return cc.call }

func (cc CallContext) String() string {
	switch cc.kind {
	case ctxSpecific:
		return fmt.Sprintf("call %s", cc.call.String())
	case ctxSome:
		return "some call"
	case ctxReturn:
		return fmt.Sprintf("return from %s", cc.call.String())
	default:
		return "any"
	}
}

// A SummaryContext records that flow entered the enclosing callable through
// a parameter-like node with a given access path. It is the key under which
// flow-through summaries are derived and reused. A nil SummaryContext means
// the flow is not parameter-rooted. The tainted flag is set once the tracked
// value passes a non-value-preserving step inside the callable, so derived
// summaries report value preservation exactly.
type SummaryContext struct {
	param   program.Node
	entry   *AccessPath
	tainted bool
}

// Param returns the parameter-like entry node: a *program.ParamNode or the
// callable's closure qualifier.
func (sc *SummaryContext) Param() program.Node { return sc.param }

// Entry returns the access path the flow carried at entry.
func (sc *SummaryContext) Entry() *AccessPath { return sc.entry }

// Tainted reports whether the tracked value is a taint derivative of the
// entry value rather than the value itself.
func (sc *SummaryContext) Tainted() bool { return sc.tainted }

func (sc *SummaryContext) String() string {
	if sc == nil {
		return "no summary ctx"
	}
	mode := "value"
	if sc.tainted {
		mode = "taint"
	}
	return fmt.Sprintf("via %s%s (%s)", sc.param.String(), sc.entry.String(), mode)
}

type scKey struct {
	param   program.Node
	entry   *AccessPath
	tainted bool
}

// scTable interns the summary contexts of one analysis run.
type scTable struct {
	ctxs map[scKey]*SummaryContext
}

func newSCTable() *scTable {
	return &scTable{ctxs: map[scKey]*SummaryContext{}}
}

func (t *scTable) get(param program.Node, entry *AccessPath, tainted bool) *SummaryContext {
	k := scKey{param: param, entry: entry, tainted: tainted}
	if sc := t.ctxs[k]; sc != nil {
		return sc
	}
	sc := &SummaryContext{param: param, entry: entry, tainted: tainted}
	t.ctxs[k] = sc
	return sc
}

// asTainted returns sc with the tainted flag set, nil for nil.
func (t *scTable) asTainted(sc *SummaryContext) *SummaryContext {
	if sc == nil || sc.tainted {
		return sc
	}
	return t.get(sc.param, sc.entry, true)
}
