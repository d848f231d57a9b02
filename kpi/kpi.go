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
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"

	"github.com/otns-qos/qosns/flowstats"
	"github.com/otns-qos/qosns/logger"
	. "github.com/otns-qos/qosns/types"
)

// FlowSource is the read-only view of the flow state that the KPIs are computed from.
type FlowSource interface {
	Snapshot() []flowstats.FlowRecord
	Anomalies() flowstats.Anomalies
	NumPending() int
}

// Calculate computes all KPIs of a run from the final flow state. It does not modify the source,
// so calling it twice on the same state gives the same result.
func Calculate(src FlowSource, run RunInfo) *Kpi {
	k := &Kpi{
		Status:    StatusOk,
		Run:       run,
		Flows:     []KpiFlow{},
		Excluded:  []KpiExcludedFlow{},
		Classes:   []KpiRollup{},
		Pending:   src.NumPending(),
		Anomalies: src.Anomalies(),
	}

	// flows, ordered by id
	totalUs := SecondsToUs(run.TotalTimeSec)
	for _, f := range src.Snapshot() {
		k.Overall.TxPackets += f.SentPackets
		k.Overall.RxPackets += f.ReceivedPackets
		if f.ReceivedPackets == 0 {
			k.Excluded = append(k.Excluded, KpiExcludedFlow{
				FlowId:    f.FlowId,
				Class:     f.TrafficClass,
				TxPackets: f.SentPackets,
			})
			continue
		}
		k.Flows = append(k.Flows, calculateFlow(&f, totalUs))
	}

	if k.Overall.TxPackets > 0 {
		k.Overall.PdrPercent = 100.0 * float64(k.Overall.RxPackets) / float64(k.Overall.TxPackets)
	}

	if len(k.Flows) == 0 {
		k.Status = StatusNoValidFlow
		return k
	}

	k.Overall.NumFlows = len(k.Flows)
	k.Overall.ThroughputKbps, k.Overall.DelayMs, k.Overall.JitterMs, k.Overall.LossPercent = means(k.Flows)

	// classes appear in order of their lowest flow id
	var classOrder []TrafficClass
	classFlows := make(map[TrafficClass][]KpiFlow)
	for _, f := range k.Flows {
		if _, ok := classFlows[f.Class]; !ok {
			classOrder = append(classOrder, f.Class)
		}
		classFlows[f.Class] = append(classFlows[f.Class], f)
	}
	for _, c := range classOrder {
		r := KpiRollup{
			Class:    c,
			NumFlows: len(classFlows[c]),
		}
		r.ThroughputKbps, r.DelayMs, r.JitterMs, r.LossPercent = means(classFlows[c])
		k.Classes = append(k.Classes, r)
	}
	return k
}

func calculateFlow(f *flowstats.FlowRecord, totalUs uint64) KpiFlow {
	kf := KpiFlow{
		FlowId:        f.FlowId,
		Class:         f.TrafficClass,
		TxPackets:     f.SentPackets,
		RxPackets:     f.ReceivedPackets,
		TxBytes:       f.SentBytes,
		RxBytes:       f.ReceivedBytes,
		DelaySamples:  f.DelaySamples,
		JitterSamples: f.JitterSamples,
	}

	durationUs := int64(f.LastReceiveTime) - int64(f.FirstSendTime)
	if !f.HasSent || durationUs <= 0 {
		durationUs = int64(totalUs)
	}
	kf.DurationSec = UsToSeconds(uint64(durationUs))
	if kf.DurationSec > 0 {
		kf.ThroughputKbps = float64(f.ReceivedBytes) * 8.0 / kf.DurationSec / 1000.0
	}

	if f.DelaySamples > 0 {
		kf.DelayMs = UsToMs(f.DelaySumUs) / float64(f.DelaySamples)
	}
	if f.JitterSamples > 0 {
		kf.JitterMs = UsToMs(f.JitterSumUs) / float64(f.JitterSamples)
	}
	if f.SentPackets > 0 {
		// may go negative on duplicate delivery; reported as is.
		kf.LossPercent = (float64(f.SentPackets) - float64(f.ReceivedPackets)) * 100.0 / float64(f.SentPackets)
	}
	return kf
}

func means(flows []KpiFlow) (thpt, delay, jitter, loss float64) {
	n := len(flows)
	t, d, j, l := make([]float64, n), make([]float64, n), make([]float64, n), make([]float64, n)
	for i, f := range flows {
		t[i], d[i], j[i], l[i] = f.ThroughputKbps, f.DelayMs, f.JitterMs, f.LossPercent
	}
	return stat.Mean(t, nil), stat.Mean(d, nil), stat.Mean(j, nil), stat.Mean(l, nil)
}

// SaveFile writes the KPIs as indented JSON, stamped with the current wall-clock time.
func (k *Kpi) SaveFile(fn string) error {
	kc := *k
	kc.FileTime = time.Now().Format(time.RFC3339)
	data, err := json.MarshalIndent(&kc, "", "    ")
	if err != nil {
		return errors.Wrap(err, "could not marshal KPI JSON data")
	}

	if err = os.WriteFile(fn, data, 0644); err != nil {
		return errors.Wrapf(err, "could not write KPI JSON file %s", fn)
	}
	logger.Debugf("KPI file written: %s", fn)
	return nil
}

func DefaultFileName(outputDir string, runName string) string {
	return fmt.Sprintf("%s/%s_kpi.json", outputDir, runName)
}
