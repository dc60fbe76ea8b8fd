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

// Package analysistest provides utilities for loading the annotated test
// programs under testdata directories and reading the flows they expect.
package analysistest

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"golang.org/x/tools/go/ssa"

	"github.com/seep-analysis/seep/analysis"
	"github.com/seep-analysis/seep/analysis/config"
	"github.com/seep-analysis/seep/internal/funcutil"
)

// LoadTest loads the program in the directory dir, looking for a main.go and a config.yaml. If additional files
// are specified as extraFiles, the program will be loaded using those files too.
func LoadTest(t *testing.T, dir string, extraFiles []string) (*ssa.Program, *config.Config) {
	cfg, err := config.Load(filepath.Join(dir, "config.yaml"))
	if err != nil {
		t.Fatalf("error loading config: %v", err)
	}
	files := []string{filepath.Join(dir, "./main.go")}
	for _, extraFile := range extraFiles {
		files = append(files, filepath.Join(dir, extraFile))
	}

	loaded, err := analysis.LoadProgram(nil, "", ssa.BuilderMode(0), files)
	if err != nil {
		t.Fatalf("error loading packages: %v", err)
	}
	return loaded.Program, cfg
}

// Match annotations of the form "@Source(id1, id2, id3)"
var SourceRegex = regexp.MustCompile(`//.*@Source\(((?:\s*\w\s*,?)+)\)`)
var SinkRegex = regexp.MustCompile(`//.*@Sink\(((?:\s*\w\s*,?)+)\)`)

// LPos is a line-level position, the granularity at which expected flows
// are matched against reported ones.
type LPos struct {
	Filename string
	Line     int
}

func (p LPos) String() string {
	return fmt.Sprintf("%s:%d", p.Filename, p.Line)
}

// GetExpectedSourceToSink analyzes the files in dir and looks for comments @Source(id) and @Sink(id) to construct
// expected flows from sources to sink in the form of a map from sink positions to all the source position that
// reach that sink.
func GetExpectedSourceToSink(reldir string, dir string) map[LPos]map[LPos]bool {
	var err error
	d := make(map[string]*ast.Package)
	sink2source := map[LPos]map[LPos]bool{}
	sourceIds := map[string]token.Position{}
	fset := token.NewFileSet() // positions are relative to fset

	err = filepath.Walk(dir, func(walked string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			d0, err := parser.ParseDir(fset, walked, nil, parser.ParseComments)
			funcutil.Merge(d, d0, func(x *ast.Package, _ *ast.Package) *ast.Package { return x })
			return err
		}
		return nil
	})
	if err != nil {
		fmt.Println(err)
		return nil
	}

	// Get all the source positions with their identifiers
	for _, f := range d {
		for _, f := range f.Files {
			for _, c := range f.Comments {
				for _, c1 := range c.List {
					pos := fset.Position(c1.Pos())
					// Match a "@Source(id1, id2, id3)"
					a := SourceRegex.FindStringSubmatch(c1.Text)
					if len(a) > 1 {
						for _, ident := range strings.Split(a[1], ",") {
							sourceIdent := strings.TrimSpace(ident)
							sourceIds[sourceIdent] = pos
						}
					}
				}
			}
		}
	}

	for _, f := range d {
		for _, f := range f.Files {
			for _, c := range f.Comments {
				for _, c1 := range c.List {
					sinkPos := fset.Position(c1.Pos())
					// Match a "@Sink(id1, id2, id3)"
					a := SinkRegex.FindStringSubmatch(c1.Text)
					if len(a) > 1 {
						for _, ident := range strings.Split(a[1], ",") {
							sourceIdent := strings.TrimSpace(ident)
							if sourcePos, ok := sourceIds[sourceIdent]; ok {
								relSink := relPos(sinkPos, reldir)
								if _, ok := sink2source[relSink]; !ok {
									sink2source[relSink] = make(map[LPos]bool)
								}
								sink2source[relSink][relPos(sourcePos, reldir)] = true
							}
						}
					}
				}
			}
		}
	}
	return sink2source
}

// RemoveColumn drops the column of a position.
func RemoveColumn(pos token.Position) LPos {
	return LPos{Line: pos.Line, Filename: pos.Filename}
}

// relPos drops the column of the position and prepends reldir to the filename of the position
func relPos(pos token.Position, reldir string) LPos {
	return LPos{Line: pos.Line, Filename: path.Join(reldir, filepath.Base(pos.Filename))}
}
