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
	"fmt"
	"go/token"
	"go/types"

	"golang.org/x/tools/go/ssa"

	"github.com/seep-analysis/seep/analysis/program"
)

// A fnTranslator translates the instructions of one SSA function into fact
// relations on its callable. Values are mapped to nodes on demand, so
// operand references across blocks resolve regardless of visit order.
type fnTranslator struct {
	x      *extractor
	b      *program.Builder
	fn     *ssa.Function
	f      *program.Callable
	blocks []*program.BasicBlock

	vals map[ssa.Value]program.Node

	// addrs tracks field and element addresses: loads and stores through
	// them become content reads and stores on the base value
	addrs map[ssa.Value]addrInfo

	capObjs map[*program.CapturedVariable]program.Node
}

// addrInfo is the object access an address value stands for. index is the
// indexing operand of element addresses, nil for fields.
type addrInfo struct {
	base    ssa.Value
	content *program.Content
	index   ssa.Value
}

func newFnTranslator(x *extractor, fn *ssa.Function) *fnTranslator {
	f := x.fns[fn]
	return &fnTranslator{
		x:       x,
		b:       x.b,
		fn:      fn,
		f:       f,
		blocks:  f.Blocks(),
		vals:    map[ssa.Value]program.Node{},
		capObjs: map[*program.CapturedVariable]program.Node{},
		addrs:   map[ssa.Value]addrInfo{},
	}
}

func (t *fnTranslator) block(sb *ssa.BasicBlock) *program.BasicBlock {
	return t.blocks[sb.Index]
}

// translate walks the function in dominance preorder, so defining
// instructions are visited before their dominated uses.
func (t *fnTranslator) translate() {
	for i, p := range t.fn.Params {
		t.vals[p] = t.f.Param(i)
	}
	for _, sb := range t.fn.DomPreorder() {
		for _, instr := range sb.Instrs {
			t.doInstr(instr)
		}
	}
}

func (t *fnTranslator) doInstr(instr ssa.Instruction) {
	switch v := instr.(type) {
	case *ssa.Alloc:
		t.nodeFor(v)
	case *ssa.UnOp:
		t.doUnOp(v)
	case *ssa.BinOp:
		n := t.defineAt(v, v)
		t.b.AddLocalStep(t.nodeFor(v.X), n, false)
		t.b.AddLocalStep(t.nodeFor(v.Y), n, false)
	case *ssa.ChangeType:
		t.copyStep(v, v.X)
	case *ssa.ChangeInterface:
		t.copyStep(v, v.X)
	case *ssa.MakeInterface:
		t.copyStep(v, v.X)
	case *ssa.SliceToArrayPointer:
		t.copyStep(v, v.X)
	case *ssa.Slice:
		t.copyStep(v, v.X)
	case *ssa.TypeAssert:
		t.copyStep(v, v.X)
	case *ssa.Extract:
		t.copyStep(v, v.Tuple)
	case *ssa.Range:
		t.copyStep(v, v.X)
	case *ssa.Convert:
		n := t.defineAt(v, v)
		t.b.AddLocalStep(t.nodeFor(v.X), n, false)
	case *ssa.MultiConvert:
		n := t.defineAt(v, v)
		t.b.AddLocalStep(t.nodeFor(v.X), n, false)
	case *ssa.Next:
		n := t.defineAt(v, v)
		t.b.AddLocalStep(t.nodeFor(v.Iter), n, false)
	case *ssa.Phi:
		n := t.defineAt(v, v)
		for _, edge := range v.Edges {
			t.b.AddLocalStep(t.nodeFor(edge), n, true)
		}
	case *ssa.Field:
		t.doField(v)
	case *ssa.FieldAddr:
		name, ftyp := fieldOf(v.X.Type(), v.Field)
		t.addrs[v] = addrInfo{base: v.X, content: t.b.FieldContent(program.UnknownType, name, ftyp)}
	case *ssa.IndexAddr:
		t.addrs[v] = addrInfo{base: v.X, content: t.elemContentOf(v.X.Type()), index: v.Index}
	case *ssa.Index:
		n := t.defineAt(v, v)
		t.b.AddRead(t.b.PostUpdate(t.nodeFor(v.X)), t.elemContentOf(v.X.Type()), n)
		t.b.AddLocalStep(t.nodeFor(v.Index), n, false)
	case *ssa.Lookup:
		n := t.defineAt(v, v)
		t.b.AddRead(t.b.PostUpdate(t.nodeFor(v.X)), t.elemContentOf(v.X.Type()), n)
		t.b.AddLocalStep(t.nodeFor(v.Index), n, false)
	case *ssa.MapUpdate:
		m := t.nodeFor(v.Map)
		t.b.AddStore(t.nodeFor(v.Value), t.elemContentOf(v.Map.Type()), m)
		t.b.AddLocalStep(t.nodeFor(v.Key), m, false)
	case *ssa.Store:
		t.doStore(v)
	case *ssa.Send:
		t.b.AddStore(t.nodeFor(v.X), t.elemContentOf(v.Chan.Type()), t.nodeFor(v.Chan))
	case *ssa.Select:
		t.doSelect(v)
	case *ssa.MakeClosure:
		t.doMakeClosure(v)
	case *ssa.Return:
		for _, res := range v.Results {
			t.b.AddReturn(t.f, t.nodeFor(res))
		}
	case *ssa.Call:
		t.doCall(v)
	case *ssa.Go:
		t.doCall(v)
	case *ssa.Defer:
		t.doCall(v)
	case *ssa.MakeChan, *ssa.MakeMap, *ssa.MakeSlice:
		t.nodeFor(v.(ssa.Value))
	case *ssa.If, *ssa.Jump, *ssa.RunDefers, *ssa.Panic, *ssa.DebugRef:
		// no value flow
	}
}

// copyStep gives the instruction's value a value-preserving step from its
// operand: conversions that keep the underlying value, slicing, tuple
// extraction.
func (t *fnTranslator) copyStep(v ssa.Value, from ssa.Value) {
	n := t.defineAt(v, v.(ssa.Instruction))
	t.b.AddLocalStep(t.nodeFor(from), n, true)
}

func (t *fnTranslator) doUnOp(instr *ssa.UnOp) {
	switch instr.Op {
	case token.MUL:
		t.doLoad(instr)
	case token.ARROW:
		ch := t.nodeFor(instr.X)
		n := t.defineAt(instr, instr)
		t.b.AddRead(t.b.PostUpdate(ch), t.elemContentOf(instr.X.Type()), n)
	default:
		n := t.defineAt(instr, instr)
		t.b.AddLocalStep(t.nodeFor(instr.X), n, false)
	}
}

// doLoad translates a pointer dereference. Loads through a field or element
// address read the content off the base object's post-update state; loads
// of a captured variable become capture uses; anything else reads the
// current (possibly updated) value of the pointed-to object.
func (t *fnTranslator) doLoad(instr *ssa.UnOp) {
	if ai, ok := t.addrs[instr.X]; ok {
		base := t.nodeFor(ai.base)
		n := t.defineAt(instr, instr)
		t.b.AddRead(t.b.PostUpdate(base), ai.content, n)
		if ai.index != nil {
			t.b.AddLocalStep(t.nodeFor(ai.index), n, false)
		}
		if ai.content.Kind() == program.FieldKind {
			t.x.desc[n] = fieldIdentifier(ai.base.Type(), ai.content.Name())
		}
		return
	}
	if cv := t.capturedVarOf(instr.X); cv != nil {
		n := t.defineAt(instr, instr)
		t.b.AddCaptureUse(cv, n)
		return
	}
	base := t.nodeFor(instr.X)
	n := t.defineAt(instr, instr)
	t.b.AddLocalStep(t.b.PostUpdate(base), n, true)
}

func (t *fnTranslator) doStore(instr *ssa.Store) {
	val := t.nodeFor(instr.Val)
	if ai, ok := t.addrs[instr.Addr]; ok {
		base := t.nodeFor(ai.base)
		t.b.AddStore(val, ai.content, base)
		t.noteParamStore(base)
		if g, ok := ai.base.(*ssa.Global); ok {
			t.x.markGlobalWrite(t, g)
		}
		return
	}
	if g, ok := instr.Addr.(*ssa.Global); ok {
		proxy := t.x.globalNode(t, g)
		t.b.AddLocalStep(val, proxy, true)
		t.x.markGlobalWrite(t, g)
		return
	}
	if cv := t.capturedVarOf(instr.Addr); cv != nil {
		t.captureDef(cv, val, instr)
		return
	}
	base := t.nodeFor(instr.Addr)
	t.b.AddLocalStep(val, base, true)
	t.noteParamStore(base)
}

func (t *fnTranslator) doField(instr *ssa.Field) {
	name, ftyp := fieldOf(instr.X.Type(), instr.Field)
	c := t.b.FieldContent(program.UnknownType, name, ftyp)
	base := t.nodeFor(instr.X)
	n := t.defineAt(instr, instr)
	t.b.AddRead(t.b.PostUpdate(base), c, n)
	t.x.desc[n] = fieldIdentifier(instr.X.Type(), name)
}

func (t *fnTranslator) doSelect(instr *ssa.Select) {
	n := t.defineAt(instr, instr)
	for _, st := range instr.States {
		switch st.Dir {
		case types.RecvOnly:
			ch := t.nodeFor(st.Chan)
			t.b.AddRead(t.b.PostUpdate(ch), t.elemContentOf(st.Chan.Type()), n)
		case types.SendOnly:
			t.b.AddStore(t.nodeFor(st.Send), t.elemContentOf(st.Chan.Type()), t.nodeFor(st.Chan))
		}
	}
}

func (t *fnTranslator) doMakeClosure(instr *ssa.MakeClosure) {
	fn, _ := instr.Fn.(*ssa.Function)
	body := t.x.fns[fn]
	if body == nil || body.Parent() == nil {
		// bound method value or out-of-scope body: opaque function value
		// tainted by its bindings
		n := t.defineAt(instr, instr)
		for _, bind := range instr.Bindings {
			t.b.AddLocalStep(t.nodeFor(bind), n, false)
		}
		return
	}
	cl := t.b.NewClosure(t.block(instr.Block()), body, typeOf(instr.Type()), t.x.position(instr.Pos()))
	t.vals[instr] = cl
	vars := t.x.closureBindings[instr]
	for i, bind := range instr.Bindings {
		v := vars[i]
		t.b.BindCapture(cl, v)
		if t.x.byValueVars[v] {
			t.captureDef(v, t.nodeFor(bind), instr)
		}
	}
}

// captureDef records a definition of a captured variable through a relay
// node anchored at the defining instruction, so reaching-definition wiring
// sees the write where it happens rather than where the value was computed.
func (t *fnTranslator) captureDef(v *program.CapturedVariable, val program.Node, instr ssa.Instruction) {
	s := t.b.NewSynthetic(t.block(instr.Block()), "set "+v.Name(), v.Type(), t.x.position(instr.Pos()))
	t.b.AddLocalStep(val, s, true)
	t.b.AddCaptureDef(v, s)
}

// capturedVarOf resolves an address value to the captured variable it
// denotes: a free variable of this function, or an alloc bound by some
// closure.
func (t *fnTranslator) capturedVarOf(addr ssa.Value) *program.CapturedVariable {
	switch a := addr.(type) {
	case *ssa.FreeVar:
		return t.x.freeVars[a]
	case *ssa.Alloc:
		return t.x.capturedAllocs[a]
	}
	return nil
}

// captureObject returns the per-function node standing for the captured
// variable's whole object, for accesses that need a value rather than a
// load or store: field accesses through the variable and escapes of its
// address. The node is registered as a use and a definition, so it receives
// the reaching value and passes it on.
func (t *fnTranslator) captureObject(v *program.CapturedVariable) program.Node {
	if n := t.capObjs[v]; n != nil {
		return n
	}
	n := t.b.NewSynthetic(t.f.Entry(), "captured "+v.Name(), v.Type(), t.f.Position())
	t.b.AddCaptureUse(v, n)
	t.b.AddCaptureDef(v, n)
	t.capObjs[v] = n
	return n
}

func (t *fnTranslator) noteParamStore(base program.Node) {
	p, ok := base.(*program.ParamNode)
	if !ok || p.Callable() != t.f {
		return
	}
	t.b.EnsureParamUpdateReturn(t.f, p.Index())
	t.x.noteParamUpdate(t.f, p.Index())
}

// nodeFor returns the node carrying the value, creating it on first use.
// Address values recorded in addrs get alias semantics when they escape as
// plain values: the node reads the addressed content, and writes that land
// on its post-update are stored back to the base.
func (t *fnTranslator) nodeFor(v ssa.Value) program.Node {
	if n, ok := t.vals[v]; ok {
		return n
	}
	if ai, ok := t.addrs[v]; ok {
		base := t.nodeFor(ai.base)
		n := t.defineAt(v, v.(ssa.Instruction))
		t.b.AddRead(t.b.PostUpdate(base), ai.content, n)
		t.b.AddStore(t.b.PostUpdate(n), ai.content, base)
		return n
	}
	if cv := t.capturedVarOf(v); cv != nil {
		n := t.captureObject(cv)
		t.vals[v] = n
		return n
	}
	var n program.Node
	switch v := v.(type) {
	case *ssa.Global:
		n = t.x.globalNode(t, v)
	case *ssa.FreeVar:
		n = t.b.NewSynthetic(t.f.Entry(), "free "+v.Name(), typeOf(v.Type()), t.x.position(v.Pos()))
	case *ssa.Const:
		n = t.b.NewExpr(t.f.Entry(), "const "+v.Name(), typeOf(v.Type()), program.Position{})
	case *ssa.Function:
		n = t.b.NewExpr(t.f.Entry(), "func "+v.String(), typeOf(v.Type()), t.x.position(v.Pos()))
	case *ssa.Builtin:
		n = t.b.NewExpr(t.f.Entry(), v.Name(), program.UnknownType, program.Position{})
	default:
		if instr, ok := v.(ssa.Instruction); ok {
			return t.defineAt(v, instr)
		}
		n = t.b.NewExpr(t.f.Entry(), valueLabel(v), typeOf(v.Type()), t.x.position(v.Pos()))
	}
	t.vals[v] = n
	return n
}

// defineAt returns the node of an instruction-defined value, placing it in
// the defining instruction's block.
func (t *fnTranslator) defineAt(v ssa.Value, instr ssa.Instruction) program.Node {
	if n, ok := t.vals[v]; ok {
		return n
	}
	n := t.b.NewExpr(t.block(instr.Block()), valueLabel(v), typeOf(v.Type()), t.x.position(v.Pos()))
	t.vals[v] = n
	return n
}

func (t *fnTranslator) elemContentOf(typ types.Type) *program.Content {
	return t.b.ElementContent(program.UnknownType, elemTypeOf(typ))
}

func valueLabel(v ssa.Value) string {
	if name := v.Name(); name != "" {
		return name
	}
	return fmt.Sprintf("value %T", v)
}

func fieldOf(typ types.Type, i int) (string, program.Type) {
	if st, ok := derefType(typ).Underlying().(*types.Struct); ok && i < st.NumFields() {
		f := st.Field(i)
		return f.Name(), typeOf(f.Type())
	}
	return fmt.Sprintf("#%d", i), program.UnknownType
}

func elemTypeOf(typ types.Type) program.Type {
	switch u := typ.Underlying().(type) {
	case *types.Chan:
		return typeOf(u.Elem())
	case *types.Slice:
		return typeOf(u.Elem())
	case *types.Array:
		return typeOf(u.Elem())
	case *types.Map:
		return typeOf(u.Elem())
	case *types.Pointer:
		return elemTypeOf(u.Elem())
	}
	return program.UnknownType
}

func typeOf(t types.Type) program.Type {
	if t == nil {
		return program.UnknownType
	}
	return program.NewType(t.String())
}
