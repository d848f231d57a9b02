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

package traffic

import (
	"fmt"

	. "github.com/otns-qos/qosns/types"
)

type Profile struct {
	Class      TrafficClass `yaml:"class"`
	RateKbps   float64      `yaml:"rate_kbps"`
	PacketSize uint32       `yaml:"packet_size"`
}

var (
	VoipProfile  = Profile{Class: TrafficClassVoip, RateKbps: 64, PacketSize: 160}
	VideoProfile = Profile{Class: TrafficClassVideo, RateKbps: 512, PacketSize: 1024}
)

// IntervalSec returns the constant packet interval that yields the profile's bit rate.
func (p Profile) IntervalSec() float64 {
	if p.RateKbps <= 0 {
		return 0
	}
	return float64(p.PacketSize) * 8.0 / (p.RateKbps * 1000.0)
}

func (p Profile) String() string {
	return fmt.Sprintf("%s @ %gkbps", p.Class, p.RateKbps)
}

// FlowSpec describes one client flow: a constant bit-rate sender active in [StartSec, StopSec).
type FlowSpec struct {
	FlowId   FlowId
	SrcNode  NodeId
	DstNode  NodeId
	Profile  Profile
	StartSec float64
	StopSec  float64
}

const (
	ClientStartSec   = 10.0 // start time of the first client; each next one starts 1s later
	ClientStopMargin = 5.0  // clients stop this long before the end of the run
	SinkStartSec     = 5.0
)

// ScenarioFlows creates the flows of the standard scenario: client i+1 sends to the sink node 0,
// the first half of the clients send VoIP and the others Video.
func ScenarioFlows(numClients int, totalTimeSec float64, voip Profile, video Profile) []FlowSpec {
	flows := make([]FlowSpec, 0, numClients)
	for i := 0; i < numClients; i++ {
		p := video
		if i < numClients/2 {
			p = voip
		}
		flows = append(flows, FlowSpec{
			FlowId:   FlowId(i + 1),
			SrcNode:  NodeId(i + 1),
			DstNode:  SinkNodeId,
			Profile:  p,
			StartSec: ClientStartSec + float64(i),
			StopSec:  totalTimeSec - ClientStopMargin,
		})
	}
	return flows
}

// NodeAddr returns the IPv4 address of a node in the scenario's 10.1.1.0/24 network.
func NodeAddr(id NodeId) string {
	return fmt.Sprintf("10.1.1.%d", id+1)
}
