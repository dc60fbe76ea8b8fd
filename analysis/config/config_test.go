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

import (
	"path/filepath"
	"testing"
)

func checkEqualOnNonEmptyFields(t *testing.T, cid1 CodeIdentifier, cid2 CodeIdentifier) {
	t.Helper()
	cid2c := compileRegexes(cid2)
	if !cid1.equalOnNonEmptyFields(cid2c) {
		t.Errorf("%v should be equal modulo empty fields to %v", cid1, cid2)
	}
}

func checkNotEqualOnNonEmptyFields(t *testing.T, cid1 CodeIdentifier, cid2 CodeIdentifier) {
	t.Helper()
	cid2c := compileRegexes(cid2)
	if cid1.equalOnNonEmptyFields(cid2c) {
		t.Errorf("%v should not be equal modulo empty fields to %v", cid1, cid2)
	}
}

func TestCodeIdentifierSelfEquals(t *testing.T) {
	cid := CodeIdentifier{Package: "a", Method: "b"}
	checkEqualOnNonEmptyFields(t, cid, cid)
}

func TestCodeIdentifierEmptyMatchesAny(t *testing.T) {
	cid1 := CodeIdentifier{Package: "a", Method: "b", Receiver: "r", Field: "f", Type: "t"}
	cid2 := CodeIdentifier{Package: "de", Method: "x23", Receiver: "ff", Field: "m", Type: "qq"}
	cidEmpty := CodeIdentifier{}
	checkEqualOnNonEmptyFields(t, cid1, cidEmpty)
	checkEqualOnNonEmptyFields(t, cid2, cidEmpty)
}

func TestCodeIdentifierPartialMatch(t *testing.T) {
	cid1 := CodeIdentifier{Package: "a", Method: "b"}
	cid2 := CodeIdentifier{Package: "a"}
	checkEqualOnNonEmptyFields(t, cid1, cid2)
	checkNotEqualOnNonEmptyFields(t, cid2, cid1)
}

func TestCodeIdentifierRegexMatch(t *testing.T) {
	ref := CodeIdentifier{Package: "net/.*", Method: "(Get|Post)"}
	checkEqualOnNonEmptyFields(t, CodeIdentifier{Package: "net/http", Method: "Get"}, ref)
	checkEqualOnNonEmptyFields(t, CodeIdentifier{Package: "net/url", Method: "Post"}, ref)
	checkNotEqualOnNonEmptyFields(t, CodeIdentifier{Package: "os", Method: "Get"}, ref)
}

func TestNewDefault(t *testing.T) {
	cfg := NewDefault()
	if cfg.FieldFlowBranchLimit != DefaultFieldFlowBranchLimit {
		t.Errorf("default branch limit is %d, expected %d", cfg.FieldFlowBranchLimit, DefaultFieldFlowBranchLimit)
	}
	if cfg.MaxAccessPathLength != DefaultMaxAccessPathLength {
		t.Errorf("default access path length is %d, expected %d", cfg.MaxAccessPathLength, DefaultMaxAccessPathLength)
	}
	if cfg.LogLevel != int(InfoLevel) {
		t.Errorf("default log level is %d, expected %d", cfg.LogLevel, int(InfoLevel))
	}
}

func TestLoadConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("testdata", "config.yaml"))
	if err != nil {
		t.Fatalf("could not load config: %v", err)
	}
	if cfg.LogLevel != int(DebugLevel) {
		t.Errorf("expected log level %d, got %d", int(DebugLevel), cfg.LogLevel)
	}
	if cfg.FieldFlowBranchLimit != 3 {
		t.Errorf("expected branch limit 3, got %d", cfg.FieldFlowBranchLimit)
	}
	if cfg.MaxAccessPathLength != 4 {
		t.Errorf("expected access path length 4, got %d", cfg.MaxAccessPathLength)
	}
	if len(cfg.TaintTrackingProblems) != 2 {
		t.Fatalf("expected 2 taint problems, got %d", len(cfg.TaintTrackingProblems))
	}

	spec := cfg.TaintTrackingProblems[0]
	if spec.Tag != "sql-injection" {
		t.Errorf("expected tag sql-injection, got %q", spec.Tag)
	}
	if !spec.IsSource(CodeIdentifier{Package: "net/http", Method: "FormValue"}) {
		t.Errorf("expected FormValue to be a source")
	}
	if !spec.IsSink(CodeIdentifier{Package: "database/sql", Method: "Query"}) ||
		!spec.IsSink(CodeIdentifier{Package: "database/sql", Method: "Exec"}) {
		t.Errorf("expected Query and Exec to be sinks")
	}
	if spec.IsSink(CodeIdentifier{Package: "database/sql", Method: "Ping"}) {
		t.Errorf("Ping should not be a sink")
	}
	if !spec.IsSanitizer(CodeIdentifier{Package: "example.com/webapp/sanitize", Method: "Clean"}) {
		t.Errorf("expected Clean to be a sanitizer")
	}
	// The filter suppresses matches in the testonly package.
	if spec.IsSource(CodeIdentifier{Package: "example.com/webapp/testonly", Method: "FormValue"}) {
		t.Errorf("filtered package should not match as source")
	}

	if got := cfg.BranchLimit(cfg.TaintTrackingProblems[1]); got != 0 {
		t.Errorf("unsafe-disable-field-flow should force limit 0, got %d", got)
	}
	if got := cfg.BranchLimit(spec); got != 3 {
		t.Errorf("expected inherited branch limit 3, got %d", got)
	}
}

func TestLoadConfigExplicitZeroBranchLimit(t *testing.T) {
	cfg, err := Load(filepath.Join("testdata", "explicit_zero.yaml"))
	if err != nil {
		t.Fatalf("could not load config: %v", err)
	}
	if cfg.FieldFlowBranchLimit != 0 {
		t.Errorf("explicit 0 must not be replaced by the default, got %d", cfg.FieldFlowBranchLimit)
	}
}

func TestMatchPkgFilter(t *testing.T) {
	cfg, err := Load(filepath.Join("testdata", "config.yaml"))
	if err != nil {
		t.Fatalf("could not load config: %v", err)
	}
	if !cfg.MatchPkgFilter("example.com/webapp/server") {
		t.Errorf("expected filter to match subpackage")
	}
	if cfg.MatchPkgFilter("example.com/other") {
		t.Errorf("filter should not match unrelated package")
	}
}
