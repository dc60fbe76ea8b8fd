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

package config

import "regexp"

// A CodeIdentifier identifies a code element that is a source, sink,
// sanitizer, etc. A code identifier can be identified from its package,
// method, receiver, field or type, or any combination of those. Fields left
// empty match anything.
type CodeIdentifier struct {
	Package  string `yaml:"package"`
	Method   string `yaml:"method"`
	Receiver string `yaml:"receiver"`
	Field    string `yaml:"field"`
	Type     string `yaml:"type"`

	// Label is a front-end defined label on synthesized nodes; it is matched
	// against the Label of a code identifier built by a front end.
	Label string `yaml:"label"`

	// computed from the string fields, not part of the yaml config
	computedRegexs *codeIdentifierRegex
}

type codeIdentifierRegex struct {
	packageRegex  *regexp.Regexp
	methodRegex   *regexp.Regexp
	receiverRegex *regexp.Regexp
	fieldRegex    *regexp.Regexp
	typeRegex     *regexp.Regexp
	labelRegex    *regexp.Regexp
}

// compileRegexes compiles the strings in the code identifier into regexes.
// It compiles all identifiers into regexes or none: if any field fails to
// compile, matching falls back to string equality for the whole identifier.
func compileRegexes(cid CodeIdentifier) CodeIdentifier {
	packageRegex, err := regexp.Compile(cid.Package)
	if err != nil {
		return cid
	}
	methodRegex, err := regexp.Compile(cid.Method)
	if err != nil {
		return cid
	}
	receiverRegex, err := regexp.Compile(cid.Receiver)
	if err != nil {
		return cid
	}
	fieldRegex, err := regexp.Compile(cid.Field)
	if err != nil {
		return cid
	}
	typeRegex, err := regexp.Compile(cid.Type)
	if err != nil {
		return cid
	}
	labelRegex, err := regexp.Compile(cid.Label)
	if err != nil {
		return cid
	}
	cid.computedRegexs = &codeIdentifierRegex{
		packageRegex,
		methodRegex,
		receiverRegex,
		fieldRegex,
		typeRegex,
		labelRegex,
	}
	return cid
}

// equalOnNonEmptyFields returns true if each of the receiver's fields is
// either matched by the corresponding argument's field, or the argument's
// field is empty.
func (cid *CodeIdentifier) equalOnNonEmptyFields(cidRef CodeIdentifier) bool {
	if cidRef.computedRegexs != nil {
		return (cidRef.computedRegexs.packageRegex.MatchString(cid.Package) || cidRef.Package == "") &&
			(cidRef.computedRegexs.methodRegex.MatchString(cid.Method) || cidRef.Method == "") &&
			(cidRef.computedRegexs.receiverRegex.MatchString(cid.Receiver) || cidRef.Receiver == "") &&
			(cidRef.computedRegexs.fieldRegex.MatchString(cid.Field) || cidRef.Field == "") &&
			(cidRef.computedRegexs.typeRegex.MatchString(cid.Type) || cidRef.Type == "") &&
			(cidRef.computedRegexs.labelRegex.MatchString(cid.Label) || cidRef.Label == "")
	}
	return (cid.Package == cidRef.Package || cidRef.Package == "") &&
		(cid.Method == cidRef.Method || cidRef.Method == "") &&
		(cid.Receiver == cidRef.Receiver || cidRef.Receiver == "") &&
		(cid.Field == cidRef.Field || cidRef.Field == "") &&
		(cid.Type == cidRef.Type || cidRef.Type == "") &&
		(cid.Label == cidRef.Label || cidRef.Label == "")
}

// ExistsCid is true if there is some x in a such that f(x) is true.
// O(len(a))
func ExistsCid(a []CodeIdentifier, f func(identifier CodeIdentifier) bool) bool {
	for _, x := range a {
		if f(x) {
			return true
		}
	}
	return false
}
