// Copyright (c) 2024, The OTNS Authors.
// All rights reserved.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions are met:
// 1. Redistributions of source code must retain the above copyright
//    notice, this list of conditions and the following disclaimer.
// 2. Redistributions in binary form must reproduce the above copyright
//    notice, this list of conditions and the following disclaimer in the
//    documentation and/or other materials provided with the distribution.
// 3. Neither the name of the copyright holder nor the
//    names of its contributors may be used to endorse or promote products
//    derived from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS "AS IS"
// AND ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT LIMITED TO, THE
// IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE
// ARE DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR CONTRIBUTORS BE
// LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL, SPECIAL, EXEMPLARY, OR
// CONSEQUENTIAL DAMAGES (INCLUDING, BUT NOT LIMITED TO, PROCUREMENT OF
// SUBSTITUTE GOODS OR SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY, WHETHER IN
// CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING NEGLIGENCE OR OTHERWISE)
// ARISING IN ANY WAY OUT OF THE USE OF THIS SOFTWARE, EVEN IF ADVISED OF THE
// POSSIBILITY OF SUCH DAMAGE.

package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/exp/slices"

	"github.com/otns-qos/qosns/logger"
)

// ComparisonFileName is the default name of the combined report of several runs.
const ComparisonFileName = "qos_comparison_all_speeds.csv"

const overallClass = "Overall"

var reportFilePattern = regexp.MustCompile(`^qos_([^_]+)_(\d+)node_speed([0-9.eE+-]+)_(\d+)client\.txt$`)

// ReportFileInfo holds the run parameters encoded in a report file name, see FileName.
type ReportFileInfo struct {
	Routing  string
	Nodes    int
	SpeedMps float64
	Clients  int
}

// ParseFileName is the inverse of FileName. The routing label comes back in lower case.
func ParseFileName(name string) (ReportFileInfo, error) {
	m := reportFilePattern.FindStringSubmatch(filepath.Base(name))
	if m == nil {
		return ReportFileInfo{}, errors.Errorf("not a report file name: %s", name)
	}
	info := ReportFileInfo{Routing: m[1]}
	var err error
	if info.Nodes, err = strconv.Atoi(m[2]); err != nil {
		return info, errors.Wrapf(err, "bad node count in %s", name)
	}
	if info.SpeedMps, err = strconv.ParseFloat(m[3], 64); err != nil {
		return info, errors.Wrapf(err, "bad speed in %s", name)
	}
	if info.Clients, err = strconv.Atoi(m[4]); err != nil {
		return info, errors.Wrapf(err, "bad client count in %s", name)
	}
	return info, nil
}

// FindReportFiles returns the report files of the given routing label in dir, or of all routing
// labels if routing is empty.
func FindReportFiles(dir string, routing string) ([]string, error) {
	label := "*"
	if len(routing) > 0 {
		label = strings.ToLower(routing)
	}
	files, err := filepath.Glob(filepath.Join(dir, fmt.Sprintf("qos_%s_*node_speed*_*client.txt", label)))
	if err != nil {
		return nil, errors.Wrapf(err, "bad report directory %s", dir)
	}
	res := files[:0]
	for _, f := range files {
		if _, err := ParseFileName(f); err == nil {
			res = append(res, f)
		}
	}
	slices.Sort(res)
	return res, nil
}

// ComparisonRow is one rollup row of a report, tagged with the node speed of its run.
type ComparisonRow struct {
	SpeedMps       float64
	Class          string
	ThroughputKbps float64
	DelayMs        float64
	JitterMs       float64
	LossPercent    float64

	fields []string
}

// Comparison holds the rollup rows of several runs, ordered by speed and class.
type Comparison struct {
	Rows    []ComparisonRow
	Skipped []string // files without usable rollup rows
}

// Compare reads the rollup rows of the given report files. Files that can not be read, or that
// have no rollup rows, are skipped. It fails only if no rows are found at all.
func Compare(files []string) (*Comparison, error) {
	c := &Comparison{}
	for _, fn := range files {
		rows, err := readRollupRows(fn)
		if err == nil && len(rows) == 0 {
			err = errors.Errorf("no Average rows")
		}
		if err != nil {
			logger.Warnf("skipping %s: %v", fn, err)
			c.Skipped = append(c.Skipped, fn)
			continue
		}
		logger.Debugf("read %d rollup rows from %s", len(rows), fn)
		c.Rows = append(c.Rows, rows...)
	}
	if len(c.Rows) == 0 {
		return c, errors.Errorf("no rollup rows in %d report files", len(files))
	}

	slices.SortStableFunc(c.Rows, func(a, b ComparisonRow) int {
		switch {
		case a.SpeedMps < b.SpeedMps:
			return -1
		case a.SpeedMps > b.SpeedMps:
			return 1
		}
		return strings.Compare(a.Class, b.Class)
	})
	return c, nil
}

func readRollupRows(fn string) ([]ComparisonRow, error) {
	info, err := ParseFileName(fn)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, "bad CSV in %s", fn)
	}
	if len(records) == 0 {
		return nil, nil
	}

	col := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		col[name] = i
	}
	for _, name := range CsvHeader {
		if _, ok := col[name]; !ok {
			return nil, errors.Errorf("column %s missing in %s", name, fn)
		}
	}

	var rows []ComparisonRow
	for _, rec := range records[1:] {
		if rec[col["FlowID"]] != averageFlowId {
			continue
		}
		row := ComparisonRow{
			SpeedMps: info.SpeedMps,
			Class:    rec[col["TrafficType"]],
			fields:   append([]string(nil), rec...),
		}
		row.fields[col["Speed"]] = FormatFloat(info.SpeedMps)
		for name, dst := range map[string]*float64{
			"Throughput(kbps)": &row.ThroughputKbps,
			"Delay(ms)":        &row.DelayMs,
			"Jitter(ms)":       &row.JitterMs,
			"Loss(%)":          &row.LossPercent,
		} {
			if *dst, err = strconv.ParseFloat(rec[col[name]], 64); err != nil {
				return nil, errors.Wrapf(err, "bad %s value in %s", name, fn)
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Emit writes the combined report: the report header, then all rollup rows with the speed taken
// from the file name.
func (c *Comparison) Emit(sink RowSink) error {
	var firstErr error
	if err := sink.WriteRow(CsvHeader); err != nil {
		firstErr = err
	}
	for _, r := range c.Rows {
		if err := sink.WriteRow(r.fields); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := sink.Flush(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Classes returns "Overall" first, then the other classes in row order.
func (c *Comparison) Classes() []string {
	var classes []string
	for _, r := range c.Rows {
		if r.Class != overallClass && !slices.Contains(classes, r.Class) {
			classes = append(classes, r.Class)
		}
	}
	if slices.ContainsFunc(c.Rows, func(r ComparisonRow) bool { return r.Class == overallClass }) {
		classes = append([]string{overallClass}, classes...)
	}
	return classes
}

// MetricExtremes gives the speeds at which a metric of a class was lowest and highest. On ties the
// lowest speed wins.
type MetricExtremes struct {
	Metric   string
	MinSpeed float64
	MinValue float64
	MaxSpeed float64
	MaxValue float64
}

var comparedMetrics = []struct {
	name  string
	value func(r *ComparisonRow) float64
}{
	{"Throughput(kbps)", func(r *ComparisonRow) float64 { return r.ThroughputKbps }},
	{"Delay(ms)", func(r *ComparisonRow) float64 { return r.DelayMs }},
	{"Jitter(ms)", func(r *ComparisonRow) float64 { return r.JitterMs }},
	{"Loss(%)", func(r *ComparisonRow) float64 { return r.LossPercent }},
}

// Extremes returns the extremes of each metric for one class, or nil if the class has no rows.
func (c *Comparison) Extremes(class string) []MetricExtremes {
	var res []MetricExtremes
	for _, m := range comparedMetrics {
		var ex *MetricExtremes
		for i := range c.Rows {
			r := &c.Rows[i]
			if r.Class != class {
				continue
			}
			v := m.value(r)
			if ex == nil {
				ex = &MetricExtremes{Metric: m.name, MinSpeed: r.SpeedMps, MinValue: v, MaxSpeed: r.SpeedMps, MaxValue: v}
				continue
			}
			if v < ex.MinValue {
				ex.MinSpeed, ex.MinValue = r.SpeedMps, v
			}
			if v > ex.MaxValue {
				ex.MaxSpeed, ex.MaxValue = r.SpeedMps, v
			}
		}
		if ex == nil {
			return nil
		}
		res = append(res, *ex)
	}
	return res
}

// WriteSpeedAnalysis writes, per class, at which speeds each metric was best and worst.
func WriteSpeedAnalysis(w io.Writer, c *Comparison) {
	_, _ = fmt.Fprintf(w, "\n=== QoS vs NODE SPEED ===\n")
	for _, class := range c.Classes() {
		_, _ = fmt.Fprintf(w, "\n%s:\n", class)
		for _, ex := range c.Extremes(class) {
			maxStr := fmt.Sprintf("highest at %s m/s (%.2f)", FormatFloat(ex.MaxSpeed), ex.MaxValue)
			minStr := fmt.Sprintf("lowest at %s m/s (%.2f)", FormatFloat(ex.MinSpeed), ex.MinValue)
			if ex.Metric == "Throughput(kbps)" {
				_, _ = fmt.Fprintf(w, "   - %s: %s, %s\n", ex.Metric, maxStr, minStr)
			} else {
				_, _ = fmt.Fprintf(w, "   - %s: %s, %s\n", ex.Metric, minStr, maxStr)
			}
		}
	}
}
