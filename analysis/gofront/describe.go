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
)

// Labels attached to the code identifiers of extracted nodes. A
// configuration entry with an empty label matches any of them; setting the
// label pins an identifier to one node role, e.g. `label: result` for a
// source that is a call result, or `label: arg` for a sink that consumes
// its arguments.
const (
	// LabelResult marks the result node of a call.
	LabelResult = "result"

	// LabelArg marks an argument node of a call.
	LabelArg = "arg"

	// LabelFieldRead marks the result of a struct field read.
	LabelFieldRead = "field-read"

	// LabelGlobal marks the per-function access node of a package-level
	// variable.
	LabelGlobal = "global"
)

// calleeIdentifier describes the callee of a call instruction: package,
// method and receiver for static targets, interface package and method for
// invoke-mode calls.
func calleeIdentifier(cc *ssa.CallCommon) config.CodeIdentifier {
	if cc.IsInvoke() {
		cid := config.CodeIdentifier{Method: cc.Method.Name()}
		if pkg := cc.Method.Pkg(); pkg != nil {
			cid.Package = pkg.Path()
		}
		if named, ok := cc.Value.Type().(*types.Named); ok {
			cid.Receiver = named.Obj().Name()
		}
		return cid
	}
	if fn := cc.StaticCallee(); fn != nil {
		return functionIdentifier(fn)
	}
	// dynamic call through a function value: only the signature is known
	return config.CodeIdentifier{}
}

// functionIdentifier describes a function: its package path, name, and the
// receiver type name for methods.
func functionIdentifier(fn *ssa.Function) config.CodeIdentifier {
	cid := config.CodeIdentifier{Method: fn.Name()}
	if path := packagePath(fn); path != "" {
		cid.Package = path
	}
	if recv := fn.Signature.Recv(); recv != nil {
		cid.Receiver = receiverName(recv.Type())
	}
	return cid
}

// fieldIdentifier describes a read of the named field from a value of the
// given type.
func fieldIdentifier(container types.Type, field string) config.CodeIdentifier {
	cid := config.CodeIdentifier{Field: field, Label: LabelFieldRead}
	if named, ok := derefType(container).(*types.Named); ok {
		cid.Type = named.Obj().Name()
		if pkg := named.Obj().Pkg(); pkg != nil {
			cid.Package = pkg.Path()
		}
	}
	return cid
}

// globalIdentifier describes a package-level variable.
func globalIdentifier(g *ssa.Global) config.CodeIdentifier {
	cid := config.CodeIdentifier{Method: g.Name(), Label: LabelGlobal}
	if pkg := g.Pkg; pkg != nil {
		cid.Package = pkg.Pkg.Path()
	}
	return cid
}

func receiverName(t types.Type) string {
	if named, ok := derefType(t).(*types.Named); ok {
		return named.Obj().Name()
	}
	return ""
}

func derefType(t types.Type) types.Type {
	if ptr, ok := t.Underlying().(*types.Pointer); ok {
		return ptr.Elem()
	}
	return t
}

// packagePath resolves the package a function belongs to, chasing the
// lexical parent chain for anonymous functions. Synthetic wrappers without
// a package yield the empty string and stay out of scope.
func packagePath(fn *ssa.Function) string {
	for f := fn; f != nil; f = f.Parent() {
		if f.Pkg != nil {
			return f.Pkg.Pkg.Path()
		}
	}
	if obj := fn.Object(); obj != nil && obj.Pkg() != nil {
		return obj.Pkg().Path()
	}
	return ""
}
