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
	"golang.org/x/tools/go/ssa/ssautil"
)

func TestLoadProgram(t *testing.T) {
	files := []string{filepath.Join("gofront", "testdata", "direct", "main.go")}
	loaded, err := LoadProgram(nil, "", ssa.BuilderMode(0), files)
	if err != nil {
		t.Fatalf("error loading packages: %s", err)
	}
	if loaded.Program == nil {
		t.Fatal("nil ssa program")
	}
	if len(loaded.Packages) == 0 {
		t.Fatal("no packages loaded")
	}
	foundMain := false
	for _, pkg := range loaded.Packages {
		if pkg.Name == "main" {
			foundMain = true
		}
	}
	if !foundMain {
		t.Error("main package not among loaded packages")
	}

	pkgs := AllPackages(ssautil.AllFunctions(loaded.Program))
	if len(pkgs) == 0 {
		t.Error("no ssa packages for the loaded functions")
	}
}

func TestLoadProgramMissingFile(t *testing.T) {
	files := []string{filepath.Join("testdata", "does-not-exist.go")}
	if _, err := LoadProgram(nil, "", ssa.BuilderMode(0), files); err == nil {
		t.Error("expected an error loading a missing file")
	}
}
