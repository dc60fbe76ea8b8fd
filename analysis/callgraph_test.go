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

package analysis

import (
	"path/filepath"
	"testing"

	"golang.org/x/tools/go/ssa"
)

func TestCallgraphMode(t *testing.T) {
	tests := []struct {
		name    string
		want    CallgraphAnalysisMode
		wantErr bool
	}{
		{name: "", want: ClassHierarchyAnalysis},
		{name: "cha", want: ClassHierarchyAnalysis},
		{name: "static", want: StaticAnalysis},
		{name: "rta", want: RapidTypeAnalysis},
		{name: "vta", want: VariableTypeAnalysis},
		{name: "pointer", wantErr: true},
	}
	for _, tt := range tests {
		got, err := CallgraphMode(tt.name)
		if tt.wantErr {
			if err == nil {
				t.Errorf("CallgraphMode(%q): expected an error", tt.name)
			}
			continue
		}
		if err != nil {
			t.Errorf("CallgraphMode(%q): %v", tt.name, err)
			continue
		}
		if got != tt.want {
			t.Errorf("CallgraphMode(%q) = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestComputeCallgraph(t *testing.T) {
	files := []string{filepath.Join("gofront", "testdata", "direct", "main.go")}
	loaded, err := LoadProgram(nil, "", ssa.BuilderMode(0), files)
	if err != nil {
		t.Fatalf("error loading packages: %s", err)
	}
	modes := []CallgraphAnalysisMode{
		ClassHierarchyAnalysis,
		StaticAnalysis,
		RapidTypeAnalysis,
		VariableTypeAnalysis,
	}
	for _, mode := range modes {
		cg, err := mode.ComputeCallgraph(loaded.Program)
		if err != nil {
			t.Errorf("mode %d: %v", mode, err)
			continue
		}
		if cg == nil || len(cg.Nodes) == 0 {
			t.Errorf("mode %d: empty call graph", mode)
		}
	}
}
