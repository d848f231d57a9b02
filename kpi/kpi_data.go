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

package kpi

import (
	"github.com/otns-qos/qosns/flowstats"
	. "github.com/otns-qos/qosns/types"
)

const (
	StatusOk          = "ok"
	StatusNoValidFlow = "no valid flows"
	StatusInterrupted = "interrupted"
)

// RunInfo describes the run a KPI set belongs to. All fields are supplied by the caller.
type RunInfo struct {
	RunId        string  `json:"run_id" yaml:"run_id"`
	Routing      string  `json:"routing" yaml:"routing"`
	SpeedMps     float64 `json:"speed_mps" yaml:"speed_mps"`
	Nodes        int     `json:"nodes" yaml:"nodes"`
	Clients      int     `json:"clients" yaml:"clients"`
	TotalTimeSec float64 `json:"total_time_sec" yaml:"total_time_sec"`
}

type KpiFlow struct {
	FlowId         FlowId       `json:"flow" yaml:"flow"`
	Class          TrafficClass `json:"class" yaml:"class"`
	TxPackets      uint64       `json:"tx" yaml:"tx"`
	RxPackets      uint64       `json:"rx" yaml:"rx"`
	TxBytes        uint64       `json:"tx_bytes" yaml:"tx_bytes"`
	RxBytes        uint64       `json:"rx_bytes" yaml:"rx_bytes"`
	DurationSec    float64      `json:"duration_sec" yaml:"duration_sec"`
	ThroughputKbps float64      `json:"throughput_kbps" yaml:"throughput_kbps"`
	DelayMs        float64      `json:"avg_delay_ms" yaml:"avg_delay_ms"`
	JitterMs       float64      `json:"avg_jitter_ms" yaml:"avg_jitter_ms"`
	LossPercent    float64      `json:"loss_percent" yaml:"loss_percent"`
	DelaySamples   uint64       `json:"delay_samples" yaml:"delay_samples"`
	JitterSamples  uint64       `json:"jitter_samples" yaml:"jitter_samples"`
}

// KpiExcludedFlow is a flow that received nothing; it has no throughput, delay or jitter.
type KpiExcludedFlow struct {
	FlowId    FlowId       `json:"flow" yaml:"flow"`
	Class     TrafficClass `json:"class" yaml:"class"`
	TxPackets uint64       `json:"tx" yaml:"tx"`
}

type KpiRollup struct {
	Class          TrafficClass `json:"class" yaml:"class"`
	NumFlows       int          `json:"flows" yaml:"flows"`
	ThroughputKbps float64      `json:"avg_throughput_kbps" yaml:"avg_throughput_kbps"`
	DelayMs        float64      `json:"avg_delay_ms" yaml:"avg_delay_ms"`
	JitterMs       float64      `json:"avg_jitter_ms" yaml:"avg_jitter_ms"`
	LossPercent    float64      `json:"avg_loss_percent" yaml:"avg_loss_percent"`
}

type KpiOverall struct {
	NumFlows       int     `json:"flows" yaml:"flows"`
	ThroughputKbps float64 `json:"avg_throughput_kbps" yaml:"avg_throughput_kbps"`
	DelayMs        float64 `json:"avg_delay_ms" yaml:"avg_delay_ms"`
	JitterMs       float64 `json:"avg_jitter_ms" yaml:"avg_jitter_ms"`
	LossPercent    float64 `json:"avg_loss_percent" yaml:"avg_loss_percent"`
	TxPackets      uint64  `json:"tx" yaml:"tx"`
	RxPackets      uint64  `json:"rx" yaml:"rx"`
	PdrPercent     float64 `json:"pdr_percent" yaml:"pdr_percent"`
}

type Kpi struct {
	FileTime  string              `json:"created,omitempty" yaml:"created,omitempty"`
	Status    string              `json:"status" yaml:"status"`
	Run       RunInfo             `json:"run" yaml:"run"`
	Flows     []KpiFlow           `json:"flows" yaml:"flows"`
	Excluded  []KpiExcludedFlow   `json:"excluded_flows" yaml:"excluded_flows"`
	Classes   []KpiRollup         `json:"classes" yaml:"classes"`
	Overall   KpiOverall          `json:"overall" yaml:"overall"`
	Pending   int                 `json:"pending_at_end" yaml:"pending_at_end"`
	Anomalies flowstats.Anomalies `json:"anomalies" yaml:"anomalies"`
}

// HasValidFlows returns true if at least one flow received a packet.
func (k *Kpi) HasValidFlows() bool {
	return len(k.Flows) > 0
}
