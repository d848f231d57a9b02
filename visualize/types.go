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

package visualize

import (
	. "github.com/otns-qos/qosns/types"
)

// Visualizer observes the progress of a run. All calls are made from the dispatcher goroutine.
type Visualizer interface {
	Init()
	Stop()

	AdvanceTime(ts uint64)
	SetTrafficClass(flowId FlowId, class TrafficClass)
	OnSend(flowId FlowId, packetId PacketId, sizeBytes uint32, ts uint64)
	OnReceive(flowId FlowId, packetId PacketId, sizeBytes uint32, ts uint64)
	UpdateTimeWindowStats(info *TimeWindowStatsInfo)
}

// TimeWindowStatsInfo holds per-flow traffic counters of one time window [WinStartUs, WinStartUs+WinWidthUs).
type TimeWindowStatsInfo struct {
	WinStartUs uint64
	WinWidthUs uint64
	TxPackets  map[FlowId]uint64
	RxPackets  map[FlowId]uint64
	RxBytes    map[FlowId]uint64
}

// NumActiveFlows returns the number of flows that sent or received in the window.
func (ws *TimeWindowStatsInfo) NumActiveFlows() int {
	active := make(map[FlowId]struct{}, len(ws.TxPackets))
	for id, n := range ws.TxPackets {
		if n > 0 {
			active[id] = struct{}{}
		}
	}
	for id, n := range ws.RxPackets {
		if n > 0 {
			active[id] = struct{}{}
		}
	}
	return len(active)
}

// RxKbps returns the receive throughput of all flows in the window.
func (ws *TimeWindowStatsInfo) RxKbps() float64 {
	if ws.WinWidthUs == 0 {
		return 0
	}
	var total uint64
	for _, b := range ws.RxBytes {
		total += b
	}
	return float64(total) * 8.0 / UsToSeconds(ws.WinWidthUs) / 1000.0
}

func sum(m map[FlowId]uint64) uint64 {
	var s uint64
	for _, v := range m {
		s += v
	}
	return s
}

func (ws *TimeWindowStatsInfo) TotalTx() uint64 {
	return sum(ws.TxPackets)
}

func (ws *TimeWindowStatsInfo) TotalRx() uint64 {
	return sum(ws.RxPackets)
}
