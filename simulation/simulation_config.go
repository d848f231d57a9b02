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
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/otns-qos/qosns/kpi"
	"github.com/otns-qos/qosns/logger"
	"github.com/otns-qos/qosns/traffic"
)

const (
	DefaultRouting      = "DSR"
	DefaultNumNodes     = 20
	DefaultNumClients   = 10
	DefaultSpeedMps     = 5.0
	DefaultTotalTimeSec = 50.0
	DefaultOutputDir    = "tmp"
	DefaultNatsSubject  = "qosns.report"
	DefaultStatsWinSec  = 1.0
)

// Environment variables that override the configuration; they may also be set in a .env file.
const (
	EnvLogLevel  = "QOSNS_LOG"
	EnvOutputDir = "QOSNS_OUTPUT_DIR"
	EnvNatsUrl   = "QOSNS_NATS_URL"
)

type ReportConfig struct {
	Console     bool   `yaml:"console"`
	Csv         bool   `yaml:"csv"`
	Json        bool   `yaml:"json"`
	Yaml        bool   `yaml:"yaml"`
	FileName    string `yaml:"file_name"` // overrides the conventional CSV report file name
	NatsUrl     string `yaml:"nats_url"`
	NatsSubject string `yaml:"nats_subject"`
}

type Config struct {
	Id           int                `yaml:"id"`
	Routing      string             `yaml:"routing"`
	NumNodes     int                `yaml:"nodes"`
	NumClients   int                `yaml:"clients"`
	SpeedMps     float64            `yaml:"speed"`
	TotalTimeSec float64            `yaml:"total_time"`
	OutputDir    string             `yaml:"output_dir"`
	LogLevel     string             `yaml:"log_level"`
	Seed         int                `yaml:"seed"`
	TraceLog     bool               `yaml:"trace_log"`
	EventLog     bool               `yaml:"event_log"`
	StatsLog     bool               `yaml:"stats_log"`
	StatsWinSec  float64            `yaml:"stats_window"`
	Link         traffic.LinkConfig `yaml:"link"`
	Voip         traffic.Profile    `yaml:"voip"`
	Video        traffic.Profile    `yaml:"video"`
	Report       ReportConfig       `yaml:"report"`
}

func DefaultConfig() *Config {
	return &Config{
		Id:           0,
		Routing:      DefaultRouting,
		NumNodes:     DefaultNumNodes,
		NumClients:   DefaultNumClients,
		SpeedMps:     DefaultSpeedMps,
		TotalTimeSec: DefaultTotalTimeSec,
		OutputDir:    DefaultOutputDir,
		LogLevel:     logger.DefaultLevelString,
		StatsLog:     true,
		StatsWinSec:  DefaultStatsWinSec,
		Link:         traffic.DefaultLinkConfig(),
		Voip:         traffic.VoipProfile,
		Video:        traffic.VideoProfile,
		Report: ReportConfig{
			Console:     true,
			Csv:         true,
			Json:        true,
			NatsSubject: DefaultNatsSubject,
		},
	}
}

// LoadConfigFile reads a YAML scenario file into cfg. Keys not present in the file keep their value.
func LoadConfigFile(fn string, cfg *Config) error {
	data, err := os.ReadFile(fn)
	if err != nil {
		return errors.Wrapf(err, "failed to read config file %s", fn)
	}
	if err = yaml.Unmarshal(data, cfg); err != nil {
		return errors.Wrapf(err, "failed to unmarshal config YAML %s", fn)
	}
	return nil
}

// LoadEnv loads the given .env files (default ".env", if present) into the environment and applies
// the QOSNS_* overrides to cfg.
func (cfg *Config) LoadEnv(envFiles ...string) {
	if err := godotenv.Load(envFiles...); err != nil {
		logger.Debugf("no .env file loaded: %v", err)
	}
	cfg.ApplyEnv()
}

func (cfg *Config) ApplyEnv() {
	cfg.LogLevel = getEnv(EnvLogLevel, cfg.LogLevel)
	cfg.OutputDir = getEnv(EnvOutputDir, cfg.OutputDir)
	cfg.Report.NatsUrl = getEnv(EnvNatsUrl, cfg.Report.NatsUrl)
}

// Validate checks the configuration before a run is started. A run needs at least one relay-or-sink
// node besides the clients: node 0 is the sink.
func (cfg *Config) Validate() error {
	if cfg.NumClients >= cfg.NumNodes {
		return errors.Errorf("numClients (%d) must be less than nNodes (%d): node 0 is reserved as sink",
			cfg.NumClients, cfg.NumNodes)
	}
	if cfg.NumClients < 0 {
		return errors.Errorf("numClients (%d) must not be negative", cfg.NumClients)
	}
	if cfg.TotalTimeSec <= 0 {
		return errors.Errorf("total time (%v) must be positive", cfg.TotalTimeSec)
	}
	if cfg.SpeedMps < 0 {
		return errors.Errorf("node speed (%v) must not be negative", cfg.SpeedMps)
	}
	if len(cfg.Routing) == 0 {
		return errors.Errorf("routing label must not be empty")
	}
	if _, err := logger.ParseLevelString(cfg.LogLevel); err != nil {
		return err
	}
	return nil
}

// RunInfo returns the run description used for the KPIs.
func (cfg *Config) RunInfo(runId string) kpi.RunInfo {
	return kpi.RunInfo{
		RunId:        runId,
		Routing:      cfg.Routing,
		SpeedMps:     cfg.SpeedMps,
		Nodes:        cfg.NumNodes,
		Clients:      cfg.NumClients,
		TotalTimeSec: cfg.TotalTimeSec,
	}
}

func (cfg *Config) RunName() string {
	return strconv.Itoa(cfg.Id)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
