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

package program

import "fmt"

// ContentKind classifies the symbolic storage locations values can be
// stored into and read from.
type ContentKind int

const (
	// FieldKind is a named field of a composite value
	FieldKind ContentKind = iota

	// ElementKind is a collection element at an unknown index
	ElementKind

	// CaptureKind is the slot of a captured variable on a closure value
	CaptureKind
)

func (k ContentKind) String() string {
	switch k {
	case FieldKind:
		return "field"
	case ElementKind:
		return "element"
	case CaptureKind:
		return "capture"
	default:
		return "unknown"
	}
}

// A Content is a symbolic storage location class: a field, an indexed or
// unknown collection element, or a captured-variable slot. Contents are
// interned by the program, so equal contents are pointer-equal.
type Content struct {
	id        uint32
	kind      ContentKind
	name      string
	container Type
	typ       Type
	captured  *CapturedVariable
}

// Kind returns the content's kind
func (c *Content) Kind() ContentKind { return c.kind }

// Name returns the field or captured-variable name, "[]" for elements
func (c *Content) Name() string { return c.name }

// Container returns the declared type of the value holding the content
func (c *Content) Container() Type { return c.container }

// Type returns the declared type of the content itself
func (c *Content) Type() Type { return c.typ }

// Captured returns the captured variable of a capture slot, nil for
// other kinds
func (c *Content) Captured() *CapturedVariable { return c.captured }

func (c *Content) String() string {
	switch c.kind {
	case ElementKind:
		return "[]"
	case CaptureKind:
		return fmt.Sprintf("<%s>", c.name)
	default:
		return c.name
	}
}

// A CapturedVariable is a variable of some callable referenced by closures
// nested inside it.
type CapturedVariable struct {
	id        uint32
	name      string
	definedIn *Callable
	typ       Type
}

// Name returns the variable's source name
func (v *CapturedVariable) Name() string { return v.name }

// DefinedIn returns the callable declaring the variable
func (v *CapturedVariable) DefinedIn() *Callable { return v.definedIn }

// Type returns the variable's type
func (v *CapturedVariable) Type() Type { return v.typ }

func (v *CapturedVariable) String() string {
	return fmt.Sprintf("captured %s of %s", v.name, v.definedIn.Name())
}

// contentKey indexes the program's content interning table.
type contentKey struct {
	kind      ContentKind
	name      string
	container string
	typ       string
	captured  *CapturedVariable
}

func keyOf(kind ContentKind, name string, container, typ Type, captured *CapturedVariable) contentKey {
	return contentKey{
		kind:      kind,
		name:      name,
		container: container.Name(),
		typ:       typ.Name(),
		captured:  captured,
	}
}
