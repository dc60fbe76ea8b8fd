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

package gofront

import (
	"go/types"

	"golang.org/x/tools/go/ssa"

	"github.com/seep-analysis/seep/analysis/config"
	"github.com/seep-analysis/seep/analysis/program"
)

// doCall translates a call, go, or defer instruction into a call site.
// Deferred and spawned calls are modeled at the instruction's point; the
// staging is flow-insensitive across calls, so the deferral itself does not
// change what can flow.
func (t *fnTranslator) doCall(instr ssa.CallInstruction) {
	cc := instr.Common()
	if blt, ok := cc.Value.(*ssa.Builtin); ok && !cc.IsInvoke() {
		t.doBuiltin(blt, cc, instr)
		return
	}

	resType := program.UnknownType
	resVal, _ := instr.(ssa.Value)
	if resVal != nil {
		resType = typeOf(resVal.Type())
	}
	c := t.b.NewCall(t.block(instr.Block()), callLabel(cc), resType, t.x.position(instr.Pos()))
	if resVal != nil {
		t.vals[resVal] = c.Out()
	}

	// interface method calls pass the receiver as the leading argument,
	// matching the receiver parameter of every concrete target
	argVals := cc.Args
	if cc.IsInvoke() {
		argVals = append([]ssa.Value{cc.Value}, cc.Args...)
	}
	cid := calleeIdentifier(cc)
	for _, av := range argVals {
		// the argument node carries the call's position, so reports point
		// at the call rather than at the operand's definition
		from := t.nodeFor(av)
		arg := t.b.NewArg(c, from.Type(), c.Position())
		t.b.AddLocalStep(from, arg, true)
		t.describeNode(arg, cid, LabelArg)
	}
	t.describeNode(c.Out(), cid, LabelResult)

	if !cc.IsInvoke() {
		// closure and function-value calls record the invoked value; updates
		// of captured variables land on its post-update state
		if _, static := cc.Value.(*ssa.Function); !static {
			t.b.SetCalleeValue(c, t.nodeFor(cc.Value))
		}
	}

	targets := t.x.callTargets(t.fn, instr)
	for _, target := range targets {
		t.b.AddTarget(c, target)
	}
	if len(targets) == 0 {
		// the callee is outside the analyzed packages: approximate it as
		// passing every argument through to the result
		for _, a := range c.Args() {
			t.b.AddLocalStep(a, c.Out(), false)
		}
	}
}

// describeNode records the code identifier a node answers to, with the
// given role label. Dynamic calls have no identifier and stay undescribed.
func (t *fnTranslator) describeNode(n program.Node, cid config.CodeIdentifier, label string) {
	if cid.Package == "" && cid.Method == "" && cid.Receiver == "" {
		return
	}
	cid.Label = label
	t.x.desc[n] = cid
}

// doBuiltin translates calls to the language builtins that move values.
// append returns its first argument with the added values stored as
// elements; copy writes the source elements into the destination. The
// remaining builtins at most derive a value from their operands.
func (t *fnTranslator) doBuiltin(blt *ssa.Builtin, cc *ssa.CallCommon, instr ssa.CallInstruction) {
	v, _ := instr.(ssa.Value)
	switch blt.Name() {
	case "append":
		if v == nil {
			return
		}
		n := t.defineAt(v, instr)
		t.b.AddLocalStep(t.nodeFor(cc.Args[0]), n, true)
		elem := t.elemContentOf(v.Type())
		for _, a := range cc.Args[1:] {
			if types.Identical(a.Type(), v.Type()) {
				// spread form: the appended slice's elements carry over
				t.b.AddLocalStep(t.nodeFor(a), n, true)
				continue
			}
			t.b.AddStore(t.nodeFor(a), elem, n)
		}
	case "copy":
		if len(cc.Args) == 2 {
			dst := t.nodeFor(cc.Args[0])
			t.b.AddLocalStep(t.nodeFor(cc.Args[1]), t.b.PostUpdate(dst), false)
		}
	default:
		if v == nil {
			return
		}
		n := t.defineAt(v, instr)
		for _, a := range cc.Args {
			t.b.AddLocalStep(t.nodeFor(a), n, false)
		}
	}
}

func callLabel(cc *ssa.CallCommon) string {
	if cc.IsInvoke() {
		return "invoke " + cc.Method.Name()
	}
	if fn := cc.StaticCallee(); fn != nil {
		return "call " + fn.String()
	}
	return "call " + cc.Value.Name()
}
