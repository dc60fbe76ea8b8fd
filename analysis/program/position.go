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

// Position is a source location, front-end agnostic. The zero value is the
// unknown position.
type Position struct {
	File string
	Line int
	Col  int
}

// Valid reports whether the position carries any location information.
func (p Position) Valid() bool {
	return p.File != "" || p.Line > 0
}

func (p Position) String() string {
	if !p.Valid() {
		return "-"
	}
	if p.Col > 0 {
		return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Col)
	}
	return fmt.Sprintf("%s:%d", p.File, p.Line)
}

// Type is a symbolic value type. Front ends that do not track types use
// UnknownType, which is compatible with everything.
type Type struct {
	name string
}

// UnknownType is the type of values the front end did not type.
var UnknownType = Type{}

// NewType returns the symbolic type with the given name. Types with equal
// names are equal.
func NewType(name string) Type {
	return Type{name: name}
}

// Name returns the type's name, empty for the unknown type.
func (t Type) Name() string { return t.name }

// IsUnknown reports whether t is the unknown type.
func (t Type) IsUnknown() bool { return t.name == "" }

// Compatible reports whether values of type t may appear where values of
// type o are expected. The unknown type is compatible with everything;
// otherwise compatibility is name equality.
func (t Type) Compatible(o Type) bool {
	return t.IsUnknown() || o.IsUnknown() || t.name == o.name
}

func (t Type) String() string {
	if t.IsUnknown() {
		return "?"
	}
	return t.name
}
