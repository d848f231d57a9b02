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
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/otns-qos/qosns/cli"
	"github.com/otns-qos/qosns/logger"
	"github.com/otns-qos/qosns/progctx"
	"github.com/otns-qos/qosns/simulation"
)

var args struct {
	ReplayFile string
	ConfigFile string
	OutputDir  string
	Id         int
	LogLevel   string
}

func parseArgs() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <events.bin | trace.log>\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  Replays a prior run from its binary event log or trace log and reports its QoS.\n")
		flag.PrintDefaults()
	}
	flag.StringVar(&args.ConfigFile, "config", "", "YAML scenario file of the run, for the report labels")
	flag.StringVar(&args.OutputDir, "out", "tmp/replay", "output directory of the replayed reports")
	flag.IntVar(&args.Id, "id", 0, "simulation id, prefix of the output files")
	flag.StringVar(&args.LogLevel, "log", "warn", "set logging level")
	flag.Parse()

	if len(flag.Args()) != 1 {
		flag.Usage()
		os.Exit(1)
	}

	args.ReplayFile = flag.Arg(0)
}

func main() {
	parseArgs()
	checkReplayFile(args.ReplayFile)
	level, err := logger.ParseLevelString(args.LogLevel)
	logger.FatalIfError(err)
	logger.SetLevel(level)

	cfg := simulation.DefaultConfig()
	if len(args.ConfigFile) > 0 {
		logger.FatalIfError(simulation.LoadConfigFile(args.ConfigFile, cfg))
	}
	cfg.LoadEnv()
	cfg.OutputDir = args.OutputDir
	cfg.Id = args.Id
	cfg.TraceLog = false
	cfg.EventLog = false

	ctx := progctx.New(context.Background())
	sim, err := simulation.NewSimulation(ctx, cfg, nil)
	logger.FatalIfError(err)

	if strings.HasSuffix(args.ReplayFile, ".bin") {
		evts, err := simulation.ReadEventLogFile(args.ReplayFile)
		logger.FatalIfError(err)
		logger.Infof("replaying %d events from %s", len(evts), args.ReplayFile)
		sim.PostEvents(evts)
		sim.Dispatcher().Drain()
	} else {
		go sim.Run()
		<-sim.Started
		rt := cli.NewCmdRunner(ctx, sim)
		f, err := os.Open(args.ReplayFile)
		logger.FatalIfError(err)
		err = rt.RunScript(f, os.Stdout)
		_ = f.Close()
		if err != nil && ctx.Err() == nil {
			logger.Errorf("replay stopped: %v", err)
		}
		ctx.Cancel("replay done")
		ctx.Wait()
	}

	// a log without end of run is reported up to its last event.
	sim.Stop()
	sim.Dispatcher().Stop()
}

func checkReplayFile(filename string) {
	f, err := os.Open(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: could not open replay file: %v\n", err)
		os.Exit(1)
	}
	_ = f.Close()
}
