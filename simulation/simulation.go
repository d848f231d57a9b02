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

package simulation

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/otns-qos/qosns/dispatcher"
	"github.com/otns-qos/qosns/event"
	"github.com/otns-qos/qosns/kpi"
	"github.com/otns-qos/qosns/logger"
	"github.com/otns-qos/qosns/progctx"
	"github.com/otns-qos/qosns/report"
	"github.com/otns-qos/qosns/traffic"
	. "github.com/otns-qos/qosns/types"
	"github.com/otns-qos/qosns/visualize"
	visualize_multi "github.com/otns-qos/qosns/visualize/multi"
	visualize_statslog "github.com/otns-qos/qosns/visualize/statslog"
)

var CommandInterruptedError = errors.Errorf("command interrupted due to simulation exit")

type Simulation struct {
	Started     chan struct{}
	ctx         *progctx.ProgCtx
	cfg         *Config
	runId       string
	engine      *Engine
	d           *dispatcher.Dispatcher
	vis         visualize.Visualizer
	traceLog    *logger.TraceLogger
	eventLog    *EventLog
	generator   *traffic.Generator
	out         io.Writer
	stopped     bool
	interrupted bool
	reportFile  string
}

func NewSimulation(ctx *progctx.ProgCtx, cfg *Config, dispatcherCfg *dispatcher.Config) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	if err := os.MkdirAll(cfg.OutputDir, 0775); err != nil {
		return nil, errors.Wrapf(err, "creating output directory %s failed", cfg.OutputDir)
	}
	if err := removeRunFiles(cfg.OutputDir, cfg.Id); err != nil {
		logger.Warnf("old output files not removed: %v", err)
	}

	s := &Simulation{
		Started: make(chan struct{}),
		ctx:     ctx,
		cfg:     cfg,
		runId:   uuid.NewString(),
		out:     os.Stdout,
	}
	s.engine = NewEngine(cfg.RunInfo(s.runId))
	s.engine.SetEndHandler(s.onEndOfRun)

	if dispatcherCfg == nil {
		dispatcherCfg = dispatcher.DefaultConfig()
	}
	dispatcherCfg.SimulationId = cfg.Id
	dispatcherCfg.WinWidthUs = SecondsToUs(cfg.StatsWinSec)
	s.d = dispatcher.NewDispatcher(ctx, dispatcherCfg, s)

	vis := visualize_multi.NewMultiVisualizer(visualize.NewNopVisualizer())
	if cfg.StatsLog {
		vis.AddVisualizer(visualize_statslog.NewStatslogVisualizer(cfg.OutputDir, cfg.Id))
	}
	s.SetVisualizer(vis)

	if cfg.TraceLog {
		s.traceLog = logger.NewTraceLogger(cfg.OutputDir, cfg.RunName())
	}
	if cfg.EventLog {
		el, err := NewEventLog(GetEventLogFileName(cfg.OutputDir, cfg.Id))
		if err != nil {
			return nil, err
		}
		s.eventLog = el
	}
	logger.Debugf("simulation created: run %s, cfg=%+v", s.runId, *cfg)
	return s, nil
}

// Run runs the dispatcher in the current goroutine, until the program context is done. On exit, a
// run that has not ended yet is aggregated immediately.
func (s *Simulation) Run() {
	s.ctx.WaitAdd("simulation", 1)
	defer s.ctx.WaitDone("simulation")
	defer logger.Debugf("simulation exit.")
	defer s.d.Stop()
	defer s.Stop()

	close(s.Started)
	s.d.Run()
}

// Stop is the hard stop of the simulation: a run that has not ended is aggregated with the current
// virtual time as total run duration.
func (s *Simulation) Stop() {
	if s.stopped {
		return
	}
	s.stopped = true

	if !s.engine.IsEnded() {
		s.interrupted = true
		totalSec := UsToSeconds(s.d.CurTime)
		if totalSec <= 0 {
			totalSec = s.cfg.TotalTimeSec
		}
		logger.Notef("simulation stopped before end of run, aggregating at %.6fs", totalSec)
		s.engine.EndOfRun(totalSec)
	}
	if s.traceLog != nil {
		s.traceLog.Close()
	}
	if s.eventLog != nil {
		s.eventLog.Close()
	}
	s.ctx.Cancel("simulation-stop")
}

func (s *Simulation) IsStopped() bool {
	return s.stopped
}

// HandleEvent is called by the dispatcher for each event, in virtual-time order.
func (s *Simulation) HandleEvent(evt *event.Event) {
	if s.traceLog != nil {
		s.traceLog.Writef("%s", traceLine(evt))
	}
	if s.eventLog != nil {
		s.eventLog.Write(evt)
	}
	s.engine.HandleEvent(evt)
}

func (s *Simulation) onEndOfRun(k *kpi.Kpi) {
	if s.interrupted && k.HasValidFlows() {
		k.Status = kpi.StatusInterrupted
	}
	if err := s.writeReport(k); err != nil {
		logger.Errorf("writing report failed: %v", err)
	}
}

func (s *Simulation) writeReport(k *kpi.Kpi) error {
	rc := &s.cfg.Report
	if rc.Console {
		report.WriteSummary(s.out, k)
	}

	var sinks []report.RowSink
	s.reportFile = ""
	if rc.Csv {
		fn := rc.FileName
		if len(fn) == 0 {
			fn = report.FileName(s.cfg.Routing, s.cfg.NumNodes, s.cfg.SpeedMps, s.cfg.NumClients)
		}
		fileSink, err := report.NewFileSink(filepath.Join(s.cfg.OutputDir, fn))
		if err != nil {
			return err
		}
		s.reportFile = fileSink.Path()
		sinks = append(sinks, fileSink)
	}
	if len(rc.NatsUrl) > 0 {
		natsSink, err := report.NewNatsSink(rc.NatsUrl, rc.NatsSubject, k.Run.RunId)
		if err != nil {
			logger.Warnf("report not published: %v", err)
		} else {
			sinks = append(sinks, natsSink)
		}
	}

	var firstErr error
	if len(sinks) > 0 {
		ms := report.NewMultiSink(sinks...)
		firstErr = report.Emit(ms, k)
		if err := ms.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if rc.Json {
		if err := k.SaveFile(kpi.DefaultFileName(s.cfg.OutputDir, s.cfg.RunName())); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if rc.Yaml {
		if err := s.saveYaml(k); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if len(s.reportFile) > 0 && rc.Console {
		_, _ = fmt.Fprintf(s.out, "\nSaved detailed results to: %s\n", s.reportFile)
	}
	return firstErr
}

func (s *Simulation) saveYaml(k *kpi.Kpi) error {
	fn := fmt.Sprintf("%s/%d_kpi.yaml", s.cfg.OutputDir, s.cfg.Id)
	f, err := os.Create(fn)
	if err != nil {
		return errors.Wrapf(err, "could not create KPI YAML file %s", fn)
	}
	defer f.Close()
	return report.WriteYaml(f, k)
}

// StartTraffic generates the traffic of the standard scenario and queues it, followed by the end of
// the run at the configured total time. It must run in the dispatcher goroutine, or before Run.
func (s *Simulation) StartTraffic() {
	flows := traffic.ScenarioFlows(s.cfg.NumClients, s.cfg.TotalTimeSec, s.cfg.Voip, s.cfg.Video)
	link := traffic.NewLinkModelStream(s.cfg.Link, s.cfg.SpeedMps, s.cfg.Seed)
	s.StartTrafficWith(flows, link)
}

// StartTrafficWith is StartTraffic for a custom set of flows and link model.
func (s *Simulation) StartTrafficWith(flows []traffic.FlowSpec, link *traffic.LinkModel) {
	s.generator = traffic.NewGenerator(flows, link, s.d, traffic.SinkStartSec, s.cfg.TotalTimeSec)
	s.generator.Run(s.cfg.TotalTimeSec)
	s.d.PostEvent(event.NewEndOfRunEvent(SecondsToUs(s.cfg.TotalTimeSec)))
	logger.Infof("traffic of %d flows queued: %d events", len(flows), s.d.PendingEvents())
}

// PostEvents queues recorded events, e.g. read from an event log, for replay.
func (s *Simulation) PostEvents(evts []*event.Event) {
	for _, evt := range evts {
		s.d.PostEvent(evt)
	}
}

// PrintSetup writes the description of the standard scenario.
func (s *Simulation) PrintSetup(w io.Writer) {
	cfg := s.cfg
	_, _ = fmt.Fprintf(w, "\n=== MANET %s MULTIFLOW (VoIP + Video) ===\n", cfg.Routing)
	_, _ = fmt.Fprintf(w, "Nodes: %d, Clients: %d, Speed: %s m/s\n", cfg.NumNodes, cfg.NumClients,
		report.FormatFloat(cfg.SpeedMps))
	for _, f := range traffic.ScenarioFlows(cfg.NumClients, cfg.TotalTimeSec, cfg.Voip, cfg.Video) {
		_, _ = fmt.Fprintf(w, "Flow %d: %s (Node %d -> Node %d)\n", f.FlowId, f.Profile, f.SrcNode, f.DstNode)
	}
	_, _ = fmt.Fprintf(w, "\nNetwork Topology:\n")
	_, _ = fmt.Fprintf(w, "   - Node %d: Sink (receiver)\n", SinkNodeId)
	if cfg.NumClients > 0 {
		_, _ = fmt.Fprintf(w, "   - Nodes 1-%d: Senders (clients)\n", cfg.NumClients)
	}
	if cfg.NumNodes > cfg.NumClients+1 {
		_, _ = fmt.Fprintf(w, "   - Nodes %d-%d: Relay nodes (routing only)\n", cfg.NumClients+1, cfg.NumNodes-1)
	}
	_, _ = fmt.Fprintln(w)
}

// Reset discards all flow state and queued events, and starts a new run.
func (s *Simulation) Reset() {
	s.d.ClearEvents()
	s.engine.Reset()
	s.runId = uuid.NewString()
	s.engine.SetRunInfo(s.cfg.RunInfo(s.runId))
	s.interrupted = false
	logger.Infof("simulation reset, new run %s", s.runId)
}

func (s *Simulation) SetVisualizer(vis visualize.Visualizer) {
	logger.AssertNotNil(vis)
	s.vis = vis
	s.d.SetVisualizer(vis)
	vis.Init()
}

// SetOutput sets the writer for the console summary.
func (s *Simulation) SetOutput(w io.Writer) {
	s.out = w
}

func (s *Simulation) PostAsync(f func()) bool {
	return s.d.PostAsync(f)
}

// Go runs the simulation for duration of virtual time.
func (s *Simulation) Go(duration time.Duration) <-chan struct{} {
	return s.d.Go(duration)
}

func (s *Simulation) Dispatcher() *dispatcher.Dispatcher {
	return s.d
}

func (s *Simulation) Engine() *Engine {
	return s.engine
}

func (s *Simulation) Generator() *traffic.Generator {
	return s.generator
}

func (s *Simulation) RunId() string {
	return s.runId
}

// ReportFile returns the path of the last written CSV report, if any.
func (s *Simulation) ReportFile() string {
	return s.reportFile
}

func (s *Simulation) EventLogFile() string {
	if s.eventLog == nil {
		return ""
	}
	return s.eventLog.FileName()
}

func (s *Simulation) TraceLogFile() string {
	if s.traceLog == nil {
		return ""
	}
	return s.traceLog.FileName()
}
