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

package taint

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/seep-analysis/seep/analysis/dataflow"
	"github.com/seep-analysis/seep/internal/formatutil"
)

// flowReport is the shape of one taint-*.json report file: a single
// source-to-sink trace with positions.
type flowReport struct {
	Problem string        `json:"problem"`
	Source  reportPoint   `json:"source"`
	Sink    reportPoint   `json:"sink"`
	Trace   []reportPoint `json:"trace"`
}

type reportPoint struct {
	Node     string `json:"node"`
	Path     string `json:"path,omitempty"`
	Position string `json:"position"`
}

func point(pn *dataflow.PathNode) reportPoint {
	p := reportPoint{
		Node:     formatutil.SanitizeRepr(pn.Node),
		Position: pn.Node.Position().String(),
	}
	if !pn.Path.IsEmpty() {
		p.Path = pn.Path.String()
	}
	return p
}

// reportFlows logs every path of one problem's result and, when report-paths
// is set, writes each path as a json trace file in the reports directory.
// alarms counts reports across problems so max-alarms caps the whole run.
func reportFlows(s *dataflow.AnalyzerState, res *dataflow.FlowResult, alarms *int) {
	if !res.HasFlow() {
		s.Logger.Infof("%s: no taint flows.\n", res.Tag)
		return
	}
	paths := res.FlowPaths(s.Config.MaxAlarms)
	for _, path := range paths {
		if s.Config.MaxAlarms > 0 && *alarms >= s.Config.MaxAlarms {
			s.Logger.Warnf("max-alarms reached (%d), suppressing the remaining reports\n", s.Config.MaxAlarms)
			return
		}
		*alarms++
		src, sink := path[0], path[len(path)-1]
		s.Logger.Warnf(" 💀 %s: sink reached at %s\n", res.Tag, formatutil.Red(sink.Node.Position()))
		s.Logger.Warnf("    flow from %s to %s\n",
			formatutil.Green(formatutil.SanitizeRepr(src.Node)),
			formatutil.Red(formatutil.SanitizeRepr(sink.Node)))
		for _, pn := range path {
			s.Logger.Infof("    TRACE: %s %s\n", pn.Node.Position(), formatutil.SanitizeRepr(pn))
		}
		if s.Config.ReportPaths {
			writeFlowReport(s, res.Tag, path)
		}
	}
}

func writeFlowReport(s *dataflow.AnalyzerState, tag string, path []*dataflow.PathNode) {
	report := flowReport{
		Problem: tag,
		Source:  point(path[0]),
		Sink:    point(path[len(path)-1]),
	}
	for _, pn := range path {
		report.Trace = append(report.Trace, point(pn))
	}
	tmp, err := os.CreateTemp(s.Config.ReportsDir, "taint-*.json")
	if err != nil {
		s.AddError("report", fmt.Errorf("could not create report file: %w", err))
		return
	}
	defer tmp.Close()
	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		s.AddError("report", fmt.Errorf("could not write report %s: %w", tmp.Name(), err))
		return
	}
	s.Logger.Infof("report in %s\n", tmp.Name())
}
