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
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otns-qos/qosns/dispatcher"
	"github.com/otns-qos/qosns/event"
	"github.com/otns-qos/qosns/kpi"
	"github.com/otns-qos/qosns/logger"
	"github.com/otns-qos/qosns/progctx"
	. "github.com/otns-qos/qosns/types"
	visualize_statslog "github.com/otns-qos/qosns/visualize/statslog"
)

func newTestConfig(t *testing.T) *Config {
	cfg := DefaultConfig()
	cfg.NumNodes = 4
	cfg.NumClients = 2
	cfg.TotalTimeSec = 20
	cfg.OutputDir = t.TempDir()
	cfg.TraceLog = true
	cfg.Report.Yaml = true
	return cfg
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.NumClients = cfg.NumNodes
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.NumClients = -1
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.TotalTimeSec = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.SpeedMps = -1
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Routing = ""
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.LogLevel = "loud"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.NumClients = 0
	assert.NoError(t, cfg.Validate())
}

func TestConfigApplyEnv(t *testing.T) {
	t.Setenv(EnvLogLevel, "debug")
	t.Setenv(EnvOutputDir, "/tmp/qosns-env")
	t.Setenv(EnvNatsUrl, "nats://localhost:4222")

	cfg := DefaultConfig()
	cfg.ApplyEnv()
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/tmp/qosns-env", cfg.OutputDir)
	assert.Equal(t, "nats://localhost:4222", cfg.Report.NatsUrl)
}

func TestConfigLoadEnvFile(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte(EnvOutputDir+"=from-env-file\n"), 0644))
	t.Setenv(EnvOutputDir, "")
	require.NoError(t, os.Unsetenv(EnvOutputDir))

	cfg := DefaultConfig()
	cfg.LoadEnv(envFile)
	assert.Equal(t, "from-env-file", cfg.OutputDir)
}

func TestLoadConfigFile(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "scenario.yaml")
	yamlText := `
routing: AODV
nodes: 30
clients: 12
speed: 10
voip:
  rate_kbps: 32
report:
  yaml: true
`
	require.NoError(t, os.WriteFile(fn, []byte(yamlText), 0644))

	cfg := DefaultConfig()
	require.NoError(t, LoadConfigFile(fn, cfg))
	assert.Equal(t, "AODV", cfg.Routing)
	assert.Equal(t, 30, cfg.NumNodes)
	assert.Equal(t, 12, cfg.NumClients)
	assert.Equal(t, 10.0, cfg.SpeedMps)
	assert.Equal(t, DefaultTotalTimeSec, cfg.TotalTimeSec)
	assert.True(t, cfg.Report.Yaml)
	assert.True(t, cfg.Report.Csv)

	assert.Error(t, LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"), cfg))
}

func TestNewSimulationInvalidConfig(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.NumClients = cfg.NumNodes
	_, err := NewSimulation(progctx.New(context.Background()), cfg, nil)
	assert.Error(t, err)
}

func TestSimulationScenarioRun(t *testing.T) {
	cfg := newTestConfig(t)
	ctx := progctx.New(context.Background())
	sim, err := NewSimulation(ctx, cfg, nil)
	require.NoError(t, err)
	var out bytes.Buffer
	sim.SetOutput(&out)

	sim.StartTraffic()
	require.NotNil(t, sim.Generator())
	sim.Dispatcher().Drain()

	require.True(t, sim.Engine().IsEnded())
	k := sim.Engine().Result()
	require.NotNil(t, k)
	assert.Equal(t, kpi.StatusOk, k.Status)
	assert.Equal(t, sim.RunId(), k.Run.RunId)
	require.Len(t, k.Flows, 2)
	assert.Equal(t, TrafficClassVoip, k.Flows[0].Class)
	assert.Equal(t, TrafficClassVideo, k.Flows[1].Class)
	assert.Equal(t, sim.Generator().Counters.Sent, k.Overall.TxPackets)
	assert.Equal(t, sim.Generator().Counters.Delivered, k.Overall.RxPackets)

	assert.Contains(t, out.String(), "=== QoS ANALYSIS RESULTS ===")
	assert.Contains(t, out.String(), "Saved detailed results to: ")

	assert.Equal(t, filepath.Join(cfg.OutputDir, "qos_dsr_4node_speed5_2client.txt"), sim.ReportFile())
	csvData, err := os.ReadFile(sim.ReportFile())
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(csvData)), "\n")
	assert.Len(t, lines, 1+2+1+2)

	jsonData, err := os.ReadFile(kpi.DefaultFileName(cfg.OutputDir, cfg.RunName()))
	require.NoError(t, err)
	var saved kpi.Kpi
	require.NoError(t, json.Unmarshal(jsonData, &saved))
	assert.Equal(t, k.Overall.TxPackets, saved.Overall.TxPackets)
	assert.FileExists(t, filepath.Join(cfg.OutputDir, "0_kpi.yaml"))

	sim.Stop()
	sim.Dispatcher().Stop()
	assert.True(t, sim.IsStopped())
	assert.Equal(t, kpi.StatusOk, sim.Engine().Result().Status)
	assert.FileExists(t, visualize_statslog.GetStatsLogFileName(cfg.OutputDir, cfg.Id))

	traceData, err := os.ReadFile(sim.TraceLogFile())
	require.NoError(t, err)
	assert.Contains(t, string(traceData), "class 1 VoIP")
	assert.Contains(t, string(traceData), "send 1 ")
	assert.Contains(t, string(traceData), "end 20.000000")
}

func TestSimulationHardStop(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Report.Csv = false
	ctx := progctx.New(context.Background())
	sim, err := NewSimulation(ctx, cfg, nil)
	require.NoError(t, err)
	var out bytes.Buffer
	sim.SetOutput(&out)

	d := sim.Dispatcher()
	d.PostEvent(event.NewSendEvent(1, 1, 100, 1_000_000))
	d.PostEvent(event.NewRecvEvent(1, 1, 100, 1_020_000, ""))
	d.PostEvent(event.NewSendEvent(1, 2, 100, 3_000_000))
	d.RunUntil(2_000_000)
	require.False(t, sim.Engine().IsEnded())

	sim.Stop()
	assert.Error(t, ctx.Err())
	k := sim.Engine().Result()
	require.NotNil(t, k)
	assert.Equal(t, kpi.StatusInterrupted, k.Status)
	assert.Equal(t, 2.0, k.Run.TotalTimeSec)
	require.Len(t, k.Flows, 1)
	assert.Equal(t, uint64(1), k.Flows[0].TxPackets)
	assert.Contains(t, out.String(), "Flow 1 [Unknown]")
	assert.NotContains(t, out.String(), "Saved detailed results")
}

func TestSimulationRunLoop(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Report.Console = false
	ctx := progctx.New(context.Background())
	sim, err := NewSimulation(ctx, cfg, nil)
	require.NoError(t, err)

	go sim.Run()
	<-sim.Started
	sim.PostAsync(sim.StartTraffic)
	select {
	case <-sim.Go(dispatcher.GoEver):
	case <-time.After(10 * time.Second):
		t.Fatal("simulation did not complete")
	}
	ctx.Cancel("test done")
	ctx.Wait()

	assert.True(t, sim.IsStopped())
	require.NotNil(t, sim.Engine().Result())
	assert.Equal(t, kpi.StatusOk, sim.Engine().Result().Status)
	assert.Equal(t, SecondsToUs(cfg.TotalTimeSec), sim.Dispatcher().CurTime)
}

func TestSimulationReset(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Report.Console = false
	sim, err := NewSimulation(progctx.New(context.Background()), cfg, nil)
	require.NoError(t, err)

	sim.StartTraffic()
	sim.Dispatcher().RunUntil(SecondsToUs(12))
	firstRunId := sim.RunId()
	require.NotEmpty(t, sim.Engine().Flows())

	sim.Reset()
	assert.NotEqual(t, firstRunId, sim.RunId())
	assert.Equal(t, sim.RunId(), sim.Engine().RunInfo().RunId)
	assert.Equal(t, 0, sim.Dispatcher().PendingEvents())
	assert.Empty(t, sim.Engine().Flows())
}

func TestPrintSetup(t *testing.T) {
	cfg := newTestConfig(t)
	sim, err := NewSimulation(progctx.New(context.Background()), cfg, nil)
	require.NoError(t, err)

	var out bytes.Buffer
	sim.PrintSetup(&out)
	s := out.String()
	assert.Contains(t, s, "=== MANET DSR MULTIFLOW (VoIP + Video) ===")
	assert.Contains(t, s, "Nodes: 4, Clients: 2, Speed: 5 m/s")
	assert.Contains(t, s, "Flow 1: VoIP @ 64kbps (Node 1 -> Node 0)")
	assert.Contains(t, s, "Flow 2: Video @ 512kbps (Node 2 -> Node 0)")
	assert.Contains(t, s, "Nodes 1-2: Senders (clients)")
	assert.Contains(t, s, "Nodes 3-3: Relay nodes (routing only)")
}

func TestTraceLine(t *testing.T) {
	assert.Equal(t, "send 1 2 160 1.500000", traceLine(event.NewSendEvent(1, 2, 160, 1_500_000)))
	assert.Equal(t, `recv 1 2 160 1.520000 "10.1.1.2"`, traceLine(event.NewRecvEvent(1, 2, 160, 1_520_000, "10.1.1.2")))
	assert.Equal(t, "recv 1 2 160 1.520000", traceLine(event.NewRecvEvent(1, 2, 160, 1_520_000, "")))
	assert.Equal(t, "class 3 Video", traceLine(event.NewTrafficClassEvent(3, TrafficClassVideo, 0)))
	assert.Equal(t, `class 3 "Best Effort"`, traceLine(event.NewTrafficClassEvent(3, "Best Effort", 0)))
	assert.Equal(t, `class 3 ""`, traceLine(event.NewTrafficClassEvent(3, "", 0)))
	assert.Equal(t, "end 50.000000", traceLine(event.NewEndOfRunEvent(50_000_000)))
}

func TestRemoveRunFiles(t *testing.T) {
	dir := t.TempDir()
	for _, fn := range []string{"3_trace.log", "3_stats.csv", "4_trace.log"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, fn), []byte("x"), 0644))
	}
	require.NoError(t, removeRunFiles(dir, 3))
	assert.NoFileExists(t, filepath.Join(dir, "3_trace.log"))
	assert.NoFileExists(t, filepath.Join(dir, "3_stats.csv"))
	assert.FileExists(t, filepath.Join(dir, "4_trace.log"))
}

func init() {
	logger.SetLevel(logger.WarnLevel)
}
