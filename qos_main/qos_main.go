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

package qos_main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"

	"github.com/pkg/errors"
	"github.com/simonlingoogle/go-simplelogger"

	"github.com/otns-qos/qosns/cli"
	"github.com/otns-qos/qosns/dispatcher"
	"github.com/otns-qos/qosns/logger"
	"github.com/otns-qos/qosns/progctx"
	"github.com/otns-qos/qosns/simulation"
)

type MainArgs struct {
	NumNodes    int
	NumClients  int
	SpeedMps    float64
	TotalTime   float64
	Routing     string
	Id          int
	Seed        int
	ConfigFile  string
	EnvFile     string
	LogLevel    string
	OutputDir   string
	ScriptFile  string
	NatsUrl     string
	Trace       bool
	EventLog    bool
	Yaml        bool
	Interactive bool
	NoReport    bool

	set map[string]bool // flags given on the command line
}

func parseArgs(progName string, arguments []string) (*MainArgs, error) {
	def := simulation.DefaultConfig()
	args := &MainArgs{set: map[string]bool{}}

	fs := flag.NewFlagSet(progName, flag.ContinueOnError)
	fs.IntVar(&args.NumNodes, "nodes", def.NumNodes, "number of nodes, including the sink node 0")
	fs.IntVar(&args.NumClients, "clients", def.NumClients, "number of client nodes sending a flow to the sink")
	fs.Float64Var(&args.SpeedMps, "speed", def.SpeedMps, "node speed in m/s")
	fs.Float64Var(&args.TotalTime, "time", def.TotalTimeSec, "total run time in seconds")
	fs.StringVar(&args.Routing, "routing", def.Routing, "routing protocol label used in the report")
	fs.IntVar(&args.Id, "id", def.Id, "simulation id, prefix of the output files")
	fs.IntVar(&args.Seed, "seed", def.Seed, "random stream index of the link model")
	fs.StringVar(&args.ConfigFile, "config", "", "YAML scenario file")
	fs.StringVar(&args.EnvFile, "env", "", "environment file with QOSNS_* settings (default .env, if present)")
	fs.StringVar(&args.LogLevel, "log", def.LogLevel, "set logging level: trace, debug, info, note, warn, error.")
	fs.StringVar(&args.OutputDir, "out", def.OutputDir, "output directory of reports and logs")
	fs.StringVar(&args.ScriptFile, "script", "", "run the CLI commands of a script or trace log, instead of the scenario")
	fs.StringVar(&args.NatsUrl, "nats", "", "NATS server URL to publish the report rows to")
	fs.BoolVar(&args.Trace, "trace", def.TraceLog, "write a trace log of all events")
	fs.BoolVar(&args.EventLog, "events", def.EventLog, "write a binary event log for qosns-replay")
	fs.BoolVar(&args.Yaml, "yaml", def.Report.Yaml, "also write the report as YAML")
	fs.BoolVar(&args.Interactive, "interactive", false, "run the interactive console instead of the scenario")
	fs.BoolVar(&args.NoReport, "no-report", false, "do not write report files")

	if err := fs.Parse(arguments); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, errors.Errorf("unexpected arguments: %v", fs.Args())
	}
	fs.Visit(func(f *flag.Flag) {
		args.set[f.Name] = true
	})
	return args, nil
}

// buildConfig merges the configuration sources: defaults, then the scenario file, then the
// environment, then the flags given on the command line.
func buildConfig(args *MainArgs) (*simulation.Config, error) {
	cfg := simulation.DefaultConfig()
	if len(args.ConfigFile) > 0 {
		if err := simulation.LoadConfigFile(args.ConfigFile, cfg); err != nil {
			return nil, err
		}
	}
	if len(args.EnvFile) > 0 {
		cfg.LoadEnv(args.EnvFile)
	} else {
		cfg.LoadEnv()
	}

	set := args.set
	if set["nodes"] {
		cfg.NumNodes = args.NumNodes
	}
	if set["clients"] {
		cfg.NumClients = args.NumClients
	}
	if set["speed"] {
		cfg.SpeedMps = args.SpeedMps
	}
	if set["time"] {
		cfg.TotalTimeSec = args.TotalTime
	}
	if set["routing"] {
		cfg.Routing = args.Routing
	}
	if set["id"] {
		cfg.Id = args.Id
	}
	if set["seed"] {
		cfg.Seed = args.Seed
	}
	if set["log"] {
		cfg.LogLevel = args.LogLevel
	}
	if set["out"] {
		cfg.OutputDir = args.OutputDir
	}
	if set["nats"] {
		cfg.Report.NatsUrl = args.NatsUrl
	}
	if set["trace"] {
		cfg.TraceLog = args.Trace
	}
	if set["events"] {
		cfg.EventLog = args.EventLog
	}
	if set["yaml"] {
		cfg.Report.Yaml = args.Yaml
	}
	if args.NoReport {
		cfg.Report.Csv = false
		cfg.Report.Json = false
		cfg.Report.Yaml = false
	}
	return cfg, cfg.Validate()
}

// Main runs the program: the standard scenario, a script, or the interactive console.
func Main(ctx *progctx.ProgCtx, cliOptions *cli.CliOptions) error {
	args, err := parseArgs(os.Args[0], os.Args[1:])
	if err != nil {
		return err
	}
	return run(ctx, args, cliOptions, os.Stdout)
}

func run(ctx *progctx.ProgCtx, args *MainArgs, cliOptions *cli.CliOptions, stdout io.Writer) error {
	cfg, err := buildConfig(args)
	if err != nil {
		return err
	}
	level, err := logger.ParseLevelString(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger.SetLevel(level)

	ctx.HandleSignals(syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	sim, err := simulation.NewSimulation(ctx, cfg, nil)
	if err != nil {
		return err
	}
	sim.SetOutput(stdout)
	rt := cli.NewCmdRunner(ctx, sim)
	go sim.Run()
	<-sim.Started

	var runErr error
	switch {
	case len(args.ScriptFile) > 0:
		runErr = runScript(rt, args.ScriptFile, stdout)
		if !args.Interactive {
			ctx.Cancel("script done")
		}
	case !args.Interactive:
		sim.PrintSetup(stdout)
		runScenario(ctx, sim)
	}

	if args.Interactive && ctx.Err() == nil {
		if cliOptions == nil {
			cliOptions = cli.DefaultCliOptions()
		}
		cliOptions.AutoComplete = rt.AutoCompleter()
		cliOptions.HistoryFile = filepath.Join(cfg.OutputDir, "qosns_history.txt")
		ctx.Defer(func() {
			_ = os.Stdin.Close()
		})
		cli.RunConsole(ctx, rt, cliOptions)
	}

	simplelogger.Debugf("waiting for simulation to stop gracefully ...")
	ctx.Wait()
	return runErr
}

func runScript(rt *cli.CmdRunner, fileName string, output io.Writer) error {
	f, err := os.Open(fileName)
	if err != nil {
		return errors.Wrapf(err, "could not open script %s", fileName)
	}
	defer f.Close()
	return rt.RunScript(f, output)
}

// runScenario generates the traffic of the configured scenario and runs it to the end of the run.
func runScenario(ctx *progctx.ProgCtx, sim *simulation.Simulation) {
	started := make(chan struct{})
	if !sim.PostAsync(func() {
		defer close(started)
		sim.StartTraffic()
	}) {
		return
	}
	select {
	case <-started:
	case <-ctx.Done():
		return
	}

	if runToEnd(ctx, sim) {
		ctx.Cancel(fmt.Sprintf("run %s complete", sim.RunId()))
	}
}

// runToEnd delivers all queued events. It returns false if the program exits first.
func runToEnd(ctx *progctx.ProgCtx, sim *simulation.Simulation) bool {
	select {
	case <-sim.Go(dispatcher.GoEver):
		return true
	case <-ctx.Done():
		return false
	}
}
