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

package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/otns-qos/qosns/logger"
	"github.com/otns-qos/qosns/report"
)

var args struct {
	Dir      string
	Routing  string
	Output   string
	LogLevel string
}

func parseArgs() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  Combines the rollup rows of the reports of runs at different node speeds.\n")
		flag.PrintDefaults()
	}
	flag.StringVar(&args.Dir, "dir", "tmp", "directory with the qos_<routing>_<n>node_speed<s>_<c>client.txt reports")
	flag.StringVar(&args.Routing, "routing", "DSR", "routing label of the reports to compare; empty for all")
	flag.StringVar(&args.Output, "o", "", "combined CSV file (default <dir>/"+report.ComparisonFileName+")")
	flag.StringVar(&args.LogLevel, "log", "warn", "set logging level")
	flag.Parse()

	if flag.NArg() > 0 {
		flag.Usage()
		os.Exit(1)
	}
	if len(args.Output) == 0 {
		args.Output = filepath.Join(args.Dir, report.ComparisonFileName)
	}
}

func main() {
	parseArgs()
	level, err := logger.ParseLevelString(args.LogLevel)
	logger.FatalIfError(err)
	logger.SetLevel(level)

	files, err := report.FindReportFiles(args.Dir, args.Routing)
	logger.FatalIfError(err)
	fmt.Printf("Found %d report files in %s\n", len(files), args.Dir)

	cmp, err := report.Compare(files)
	logger.FatalfIfError(err, "nothing to compare: %v", err)

	sink, err := report.NewFileSink(args.Output)
	logger.FatalIfError(err)
	err = cmp.Emit(sink)
	if cerr := sink.Close(); err == nil {
		err = cerr
	}
	logger.FatalfIfError(err, "writing %s failed: %v", args.Output, err)

	report.WriteSpeedAnalysis(os.Stdout, cmp)
	fmt.Printf("\nSaved combined results to: %s\n", args.Output)
}
