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
	"fmt"
	"os"
	"path"
	"regexp"
	"strings"

	"github.com/seep-analysis/seep/internal/funcutil"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultFieldFlowBranchLimit bounds the call-graph fan-in/fan-out a
	// cross-call edge may have before access-path flow is dropped on it.
	DefaultFieldFlowBranchLimit = 2

	// DefaultMaxAccessPathLength bounds the number of content dereferences
	// tracked per access path before the tail collapses to unknown.
	DefaultMaxAccessPathLength = 5
)

// Config holds the user-declared analysis problems together with the options
// shared by every problem. If some field is not defined in the config file,
// it will be empty/zero in the struct. Private fields are not populated from
// a yaml file, but computed after initialization.
type Config struct {
	Options `yaml:"options"`

	sourceFile string

	// if the PkgFilter is specified
	pkgFilterRegex *regexp.Regexp

	// TaintTrackingProblems lists the taint tracking specifications
	TaintTrackingProblems []TaintSpec `yaml:"taint-tracking-problems"`
}

// TaintSpec contains the code identifiers that define one taint tracking
// problem. Each spec is analyzed independently of the others.
type TaintSpec struct {
	// Tag names the problem in logs and reports
	Tag string `yaml:"tag"`

	// Sources is the list of sources of tainted data
	Sources []CodeIdentifier `yaml:"sources"`

	// Sinks is the list of sinks that tainted data must not reach
	Sinks []CodeIdentifier `yaml:"sinks"`

	// Sanitizers is the list of sanitizers: values they produce stop flow
	// entirely
	Sanitizers []CodeIdentifier `yaml:"sanitizers"`

	// SanitizersIn stop flow into the values they identify but leave those
	// values usable as sources
	SanitizersIn []CodeIdentifier `yaml:"sanitizers-in"`

	// SanitizersOut stop flow out of the values they identify but leave
	// those values usable as sinks
	SanitizersOut []CodeIdentifier `yaml:"sanitizers-out"`

	// Filters are code identifiers whose matches are removed from source and
	// sink matching, used to suppress known-benign reports
	Filters []CodeIdentifier `yaml:"filters"`

	// FieldFlowBranchLimit overrides the global option when positive
	FieldFlowBranchLimit int `yaml:"field-flow-branch-limit"`

	// UnsafeDisableFieldFlow forces the branch limit to 0, turning off
	// store/read tracking for this problem
	UnsafeDisableFieldFlow bool `yaml:"unsafe-disable-field-flow"`

	// ExplorationLimit overrides the global option when positive
	ExplorationLimit int `yaml:"exploration-limit"`
}

// Options are the analysis options shared by every problem of a config.
type Options struct {
	// ReportsDir is the directory where all the reports will be stored. If the
	// yaml config file this config struct has been loaded from does not specify
	// a ReportsDir but sets ReportPaths to true, then ReportsDir will be
	// created next to the config file.
	ReportsDir string `yaml:"reports-dir"`

	// PkgFilter restricts fact extraction to the packages matching the prefix
	// or regex
	PkgFilter string `yaml:"pkg-filter"`

	// Callgraph selects the call-graph construction used to resolve call
	// targets during fact extraction: cha (default), static, rta or vta
	Callgraph string `yaml:"callgraph"`

	// ReportPaths specifies whether the taint flows should be reported in
	// separate files. For each taint flow, a new file named taint-*.json is
	// generated with the trace from source to sink
	ReportPaths bool `yaml:"report-paths"`

	// FieldFlowBranchLimit bounds call-graph branching for field-sensitive
	// flow. 0 disables field sensitivity entirely. Default is 2.
	FieldFlowBranchLimit int `yaml:"field-flow-branch-limit"`

	// MaxAccessPathLength bounds the length of tracked access paths.
	// Default is 5.
	MaxAccessPathLength int `yaml:"max-access-path-length"`

	// ExplorationLimit bounds the partial-flow exploration used for
	// diagnostics. 0 (the default) disables partial-flow mode.
	ExplorationLimit int `yaml:"exploration-limit"`

	// MaxAlarms sets a limit for the number of alarms reported by an analysis.
	// If MaxAlarms > 0, then at most MaxAlarms will be reported. Otherwise it
	// is ignored.
	MaxAlarms int `yaml:"max-alarms"`

	// LogLevel controls the verbosity of the tool
	LogLevel int `yaml:"log-level"`

	// SilenceWarn suppresses warnings
	SilenceWarn bool `yaml:"silence-warn"`
}

// NewDefault returns an empty default config.
func NewDefault() *Config {
	return &Config{
		sourceFile:            "",
		TaintTrackingProblems: nil,
		Options: Options{
			ReportsDir:           "",
			PkgFilter:            "",
			Callgraph:            "",
			ReportPaths:          false,
			FieldFlowBranchLimit: DefaultFieldFlowBranchLimit,
			MaxAccessPathLength:  DefaultMaxAccessPathLength,
			ExplorationLimit:     0,
			MaxAlarms:            0,
			LogLevel:             int(InfoLevel),
			SilenceWarn:          false,
		},
	}
}

// Load reads a configuration from a yaml file.
func Load(filename string) (*Config, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("could not read config file: %w", err)
	}
	cfg, err := LoadFromBytes(b)
	if err != nil {
		return nil, err
	}
	cfg.sourceFile = filename
	if cfg.ReportPaths {
		if err := setReportsDir(cfg, filename); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// LoadFromBytes builds a configuration from raw yaml contents. Report
// directories are not created; callers that need them use Load.
// Unmarshalling starts from NewDefault, so absent fields keep their default
// while an explicit 0 (e.g. for field-flow-branch-limit) is preserved.
func LoadFromBytes(b []byte) (*Config, error) {
	cfg := NewDefault()
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("could not unmarshal config file: %w", err)
	}

	if cfg.LogLevel == 0 {
		cfg.LogLevel = int(InfoLevel)
	}
	if cfg.MaxAccessPathLength <= 0 {
		cfg.MaxAccessPathLength = DefaultMaxAccessPathLength
	}
	if cfg.FieldFlowBranchLimit < 0 {
		return nil, fmt.Errorf("field-flow-branch-limit must be >= 0, got %d", cfg.FieldFlowBranchLimit)
	}

	if cfg.PkgFilter != "" {
		r, err := regexp.Compile(cfg.PkgFilter)
		if err == nil {
			cfg.pkgFilterRegex = r
		}
	}

	for i := range cfg.TaintTrackingProblems {
		tSpec := &cfg.TaintTrackingProblems[i]
		tSpec.Sanitizers = funcutil.Map(tSpec.Sanitizers, compileRegexes)
		tSpec.SanitizersIn = funcutil.Map(tSpec.SanitizersIn, compileRegexes)
		tSpec.SanitizersOut = funcutil.Map(tSpec.SanitizersOut, compileRegexes)
		tSpec.Sinks = funcutil.Map(tSpec.Sinks, compileRegexes)
		tSpec.Sources = funcutil.Map(tSpec.Sources, compileRegexes)
		tSpec.Filters = funcutil.Map(tSpec.Filters, compileRegexes)
	}

	return cfg, nil
}

func setReportsDir(c *Config, filename string) error {
	if c.ReportsDir == "" {
		tmpdir, err := os.MkdirTemp(path.Dir(filename), "*-report")
		if err != nil {
			return fmt.Errorf("could not create temp dir for reports: %w", err)
		}
		c.ReportsDir = tmpdir
		return nil
	}
	if err := os.Mkdir(c.ReportsDir, 0750); err != nil && !os.IsExist(err) {
		return fmt.Errorf("could not create directory %s: %w", c.ReportsDir, err)
	}
	return nil
}

// RelPath returns filename path relative to the config source file.
func (c Config) RelPath(filename string) string {
	return path.Join(path.Dir(c.sourceFile), filename)
}

// MatchPkgFilter returns true if the package name pkgname matches the package
// filter set in the config file. If no package filter has been set in the
// config file, the regex will match anything and return true. This function
// safely considers the case where a filter has been specified by the user but
// could not be compiled to a regex; the fallback is a prefix check.
func (c Config) MatchPkgFilter(pkgname string) bool {
	if c.pkgFilterRegex != nil {
		return c.pkgFilterRegex.MatchString(pkgname)
	}
	if c.PkgFilter != "" {
		return strings.HasPrefix(pkgname, c.PkgFilter)
	}
	return true
}

// Verbose returns true if the configuration verbosity setting is larger than
// Info (i.e. Debug or Trace).
func (c Config) Verbose() bool {
	return c.LogLevel >= int(DebugLevel)
}

// BranchLimit returns the effective field-flow branch limit for the spec,
// falling back to the config-wide option.
func (c Config) BranchLimit(ts TaintSpec) int {
	if ts.UnsafeDisableFieldFlow {
		return 0
	}
	if ts.FieldFlowBranchLimit > 0 {
		return ts.FieldFlowBranchLimit
	}
	return c.FieldFlowBranchLimit
}

// Exploration returns the effective exploration limit for the spec, falling
// back to the config-wide option. 0 means partial-flow mode is off.
func (c Config) Exploration(ts TaintSpec) int {
	if ts.ExplorationLimit > 0 {
		return ts.ExplorationLimit
	}
	return c.ExplorationLimit
}

// Below are functions used to query the configuration on specific facts

func (c Config) isSomeTaintSpecCid(cid CodeIdentifier, f func(t TaintSpec, cid CodeIdentifier) bool) bool {
	for _, x := range c.TaintTrackingProblems {
		if f(x, cid) {
			return true
		}
	}
	return false
}

// IsSomeSource returns true if the code identifier matches any source in the config.
func (c Config) IsSomeSource(cid CodeIdentifier) bool {
	return c.isSomeTaintSpecCid(cid, func(t TaintSpec, cid2 CodeIdentifier) bool { return t.IsSource(cid2) })
}

// IsSomeSink returns true if the code identifier matches any sink in the config.
func (c Config) IsSomeSink(cid CodeIdentifier) bool {
	return c.isSomeTaintSpecCid(cid, func(t TaintSpec, cid2 CodeIdentifier) bool { return t.IsSink(cid2) })
}

// IsSource returns true if the code identifier matches a source specification
// of the problem, and is not filtered.
func (ts TaintSpec) IsSource(cid CodeIdentifier) bool {
	return ExistsCid(ts.Sources, cid.equalOnNonEmptyFields) && !ts.isFiltered(cid)
}

// IsSink returns true if the code identifier matches a sink specification of
// the problem, and is not filtered.
func (ts TaintSpec) IsSink(cid CodeIdentifier) bool {
	return ExistsCid(ts.Sinks, cid.equalOnNonEmptyFields) && !ts.isFiltered(cid)
}

// IsSanitizer returns true if the code identifier matches a sanitizer
// specification of the problem.
func (ts TaintSpec) IsSanitizer(cid CodeIdentifier) bool {
	return ExistsCid(ts.Sanitizers, cid.equalOnNonEmptyFields)
}

// IsSanitizerIn returns true if the code identifier matches a sanitizer-in
// specification of the problem.
func (ts TaintSpec) IsSanitizerIn(cid CodeIdentifier) bool {
	return ExistsCid(ts.SanitizersIn, cid.equalOnNonEmptyFields)
}

// IsSanitizerOut returns true if the code identifier matches a sanitizer-out
// specification of the problem.
func (ts TaintSpec) IsSanitizerOut(cid CodeIdentifier) bool {
	return ExistsCid(ts.SanitizersOut, cid.equalOnNonEmptyFields)
}

func (ts TaintSpec) isFiltered(cid CodeIdentifier) bool {
	return ExistsCid(ts.Filters, cid.equalOnNonEmptyFields)
}
