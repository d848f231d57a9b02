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

package visualize_multi

import (
	. "github.com/otns-qos/qosns/types"
	"github.com/otns-qos/qosns/visualize"
)

type MultiVisualizer struct {
	vs []visualize.Visualizer
}

// NewMultiVisualizer creates a new Visualizer that multiplexes to multiple Visualizers.
func NewMultiVisualizer(vs ...visualize.Visualizer) *MultiVisualizer {
	return &MultiVisualizer{vs: vs}
}

func (mv *MultiVisualizer) AddVisualizer(vs ...visualize.Visualizer) {
	mv.vs = append(mv.vs, vs...)
}

func (mv *MultiVisualizer) Init() {
	for _, v := range mv.vs {
		v.Init()
	}
}

func (mv *MultiVisualizer) Stop() {
	for _, v := range mv.vs {
		v.Stop()
	}
}

func (mv *MultiVisualizer) AdvanceTime(ts uint64) {
	for _, v := range mv.vs {
		v.AdvanceTime(ts)
	}
}

func (mv *MultiVisualizer) SetTrafficClass(flowId FlowId, class TrafficClass) {
	for _, v := range mv.vs {
		v.SetTrafficClass(flowId, class)
	}
}

func (mv *MultiVisualizer) OnSend(flowId FlowId, packetId PacketId, sizeBytes uint32, ts uint64) {
	for _, v := range mv.vs {
		v.OnSend(flowId, packetId, sizeBytes, ts)
	}
}

func (mv *MultiVisualizer) OnReceive(flowId FlowId, packetId PacketId, sizeBytes uint32, ts uint64) {
	for _, v := range mv.vs {
		v.OnReceive(flowId, packetId, sizeBytes, ts)
	}
}

func (mv *MultiVisualizer) UpdateTimeWindowStats(info *visualize.TimeWindowStatsInfo) {
	for _, v := range mv.vs {
		v.UpdateTimeWindowStats(info)
	}
}
