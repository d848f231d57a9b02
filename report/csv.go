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

package report

import (
	"strconv"

	"github.com/otns-qos/qosns/kpi"
)

const averageFlowId = "Average"

var CsvHeader = []string{"Routing", "Speed", "TrafficType", "FlowID", "TxPackets", "RxPackets",
	"Throughput(kbps)", "Delay(ms)", "Jitter(ms)", "Loss(%)"}

// Rows returns the structured report: the header, one row per contributing flow, then the overall
// row and one row per traffic class. Rollup rows have no packet counts. The loss column of the
// overall row holds 100 - PDR.
func Rows(k *kpi.Kpi) [][]string {
	routing := k.Run.Routing
	speed := FormatFloat(k.Run.SpeedMps)

	rows := [][]string{CsvHeader}
	for _, f := range k.Flows {
		rows = append(rows, []string{routing, speed, f.Class, strconv.Itoa(f.FlowId),
			strconv.FormatUint(f.TxPackets, 10), strconv.FormatUint(f.RxPackets, 10),
			FormatFloat(f.ThroughputKbps), FormatFloat(f.DelayMs), FormatFloat(f.JitterMs),
			FormatFloat(f.LossPercent)})
	}
	if !k.HasValidFlows() {
		return rows
	}

	ov := k.Overall
	rows = append(rows, []string{routing, speed, "Overall", averageFlowId, "", "",
		FormatFloat(ov.ThroughputKbps), FormatFloat(ov.DelayMs), FormatFloat(ov.JitterMs),
		FormatFloat(100.0 - ov.PdrPercent)})
	for _, c := range k.Classes {
		rows = append(rows, []string{routing, speed, c.Class, averageFlowId, "", "",
			FormatFloat(c.ThroughputKbps), FormatFloat(c.DelayMs), FormatFloat(c.JitterMs),
			FormatFloat(c.LossPercent)})
	}
	return rows
}

// Emit writes all report rows, in order, to the sink and returns the first error. Rows are still
// offered after a failed write. The sink is not closed.
func Emit(sink RowSink, k *kpi.Kpi) error {
	var firstErr error
	for _, row := range Rows(k) {
		if err := sink.WriteRow(row); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := sink.Flush(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
