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

package dispatcher

import (
	. "github.com/otns-qos/qosns/types"
	"github.com/otns-qos/qosns/visualize"
)

type TimeWindowStats struct {
	WinStartUs uint64
	WinWidthUs uint64
	TxPackets  map[FlowId]uint64
	RxPackets  map[FlowId]uint64
	RxBytes    map[FlowId]uint64
	finalized  bool
}

func newTimeWindowStats(startUs uint64, widthUs uint64) TimeWindowStats {
	return TimeWindowStats{
		WinStartUs: startUs,
		WinWidthUs: widthUs,
		TxPackets:  make(map[FlowId]uint64),
		RxPackets:  make(map[FlowId]uint64),
		RxBytes:    make(map[FlowId]uint64),
	}
}

func (ws *TimeWindowStats) enabled() bool {
	return ws.WinWidthUs > 0
}

func (ws *TimeWindowStats) countTx(flowId FlowId) {
	ws.TxPackets[flowId]++
}

func (ws *TimeWindowStats) countRx(flowId FlowId, sizeBytes uint32) {
	ws.RxPackets[flowId]++
	ws.RxBytes[flowId] += uint64(sizeBytes)
}

func (ws *TimeWindowStats) clear() {
	ws.TxPackets = make(map[FlowId]uint64)
	ws.RxPackets = make(map[FlowId]uint64)
	ws.RxBytes = make(map[FlowId]uint64)
}

// updateTimeWindowStats concludes the current time window if the virtual time moved past it, and
// reports empty windows for the ones in which no event happened.
func (d *Dispatcher) updateTimeWindowStats() {
	ws := &d.timeWinStats
	if !ws.enabled() || ws.finalized {
		return
	}
	for d.CurTime >= ws.WinStartUs+ws.WinWidthUs {
		d.visSendTimeWindowStats(ws, ws.WinWidthUs)
		ws.clear()
		ws.WinStartUs += ws.WinWidthUs
	}
}

// finalizeTimeWindowStats reports the last, possibly partial, time window. No further windows are
// reported after it.
func (d *Dispatcher) finalizeTimeWindowStats() {
	ws := &d.timeWinStats
	if !ws.enabled() || ws.finalized {
		return
	}
	ws.finalized = true
	if d.CurTime > ws.WinStartUs {
		d.visSendTimeWindowStats(ws, d.CurTime-ws.WinStartUs)
	}
}

func (d *Dispatcher) visSendTimeWindowStats(stats *TimeWindowStats, widthUs uint64) {
	statsInfo := &visualize.TimeWindowStatsInfo{
		WinStartUs: stats.WinStartUs,
		WinWidthUs: widthUs,
		TxPackets:  stats.TxPackets,
		RxPackets:  stats.RxPackets,
		RxBytes:    stats.RxBytes,
	}
	d.vis.UpdateTimeWindowStats(statsInfo)
}
