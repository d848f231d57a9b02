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

package flowstats

import (
	"golang.org/x/exp/slices"

	"github.com/otns-qos/qosns/logger"
	. "github.com/otns-qos/qosns/types"
)

// FlowRecord holds the accumulated statistics of a single flow. Delay and jitter sums are kept in us.
type FlowRecord struct {
	FlowId          FlowId       `yaml:"flow"`
	TrafficClass    TrafficClass `yaml:"class"`
	SentPackets     uint64       `yaml:"tx_packets"`
	ReceivedPackets uint64       `yaml:"rx_packets"`
	SentBytes       uint64       `yaml:"tx_bytes"`
	ReceivedBytes   uint64       `yaml:"rx_bytes"`
	FirstSendTime   uint64       `yaml:"first_tx_us"`
	LastReceiveTime uint64       `yaml:"last_rx_us"`
	DelaySumUs      int64        `yaml:"delay_sum_us"`
	DelaySamples    uint64       `yaml:"delay_samples"`
	JitterSumUs     int64        `yaml:"jitter_sum_us"`
	JitterSamples   uint64       `yaml:"jitter_samples"`
	LastDelayUs     int64        `yaml:"last_delay_us"`
	HasSent         bool         `yaml:"-"`

	classSet bool
}

// Anomalies counts input irregularities. None of them stops the run; they are reported so that
// instrumentation bugs stay visible.
type Anomalies struct {
	UnmatchedReceives  uint64 `json:"unmatched_rx" yaml:"unmatched_rx"`
	NegativeDelays     uint64 `json:"negative_delays" yaml:"negative_delays"`
	DuplicatePacketIds uint64 `json:"duplicate_packet_ids" yaml:"duplicate_packet_ids"`
	ClassRelabels      uint64 `json:"class_relabels" yaml:"class_relabels"`
}

// Registry owns all per-flow state of one run, and the pending-send index used to match
// receives to sends.
type Registry struct {
	flows     map[FlowId]*FlowRecord
	pending   *PendingIndex
	anomalies Anomalies
}

func NewRegistry() *Registry {
	return &Registry{
		flows:   make(map[FlowId]*FlowRecord),
		pending: NewPendingIndex(),
	}
}

func (r *Registry) getOrCreate(flowId FlowId) *FlowRecord {
	f, ok := r.flows[flowId]
	if !ok {
		f = &FlowRecord{
			FlowId:       flowId,
			TrafficClass: TrafficClassUnknown,
		}
		r.flows[flowId] = f
	}
	return f
}

// RecordSend accounts a transmitted packet and remembers its send time for delay calculation.
func (r *Registry) RecordSend(flowId FlowId, packetId PacketId, sizeBytes uint32, timestamp uint64) {
	f := r.getOrCreate(flowId)
	if !f.HasSent {
		f.HasSent = true
		f.FirstSendTime = timestamp
	}
	f.SentPackets++
	f.SentBytes += uint64(sizeBytes)

	if r.pending.Insert(packetId, timestamp) {
		r.anomalies.DuplicatePacketIds++
		logger.Debugf("flow %d: packet id %d sent again, previous send time replaced", flowId, packetId)
	}
}

// RecordReceive accounts a received packet. If the matching send is known, a delay sample (and
// from the second sample on, a jitter sample) is added; the returned delay is in us.
func (r *Registry) RecordReceive(flowId FlowId, packetId PacketId, sizeBytes uint32, timestamp uint64) (delayUs int64, matched bool) {
	f := r.getOrCreate(flowId)
	f.ReceivedPackets++
	f.ReceivedBytes += uint64(sizeBytes)
	f.LastReceiveTime = timestamp

	sendTime, ok := r.pending.TakeAndRemove(packetId)
	if !ok {
		r.anomalies.UnmatchedReceives++
		logger.Debugf("flow %d: receive of packet id %d without matching send", flowId, packetId)
		return 0, false
	}

	delayUs = int64(timestamp) - int64(sendTime)
	if delayUs < 0 {
		r.anomalies.NegativeDelays++
		logger.Debugf("flow %d: negative delay %dus for packet id %d, counted as 0", flowId, delayUs, packetId)
		delayUs = 0
	}

	f.DelaySumUs += delayUs
	f.DelaySamples++
	if f.DelaySamples > 1 {
		jitter := delayUs - f.LastDelayUs
		if jitter < 0 {
			jitter = -jitter
		}
		f.JitterSumUs += jitter
		f.JitterSamples++
	}
	f.LastDelayUs = delayUs
	return delayUs, true
}

// RegisterTrafficClass sets the traffic class of a flow. The class can only be set once; later
// calls are ignored and return false.
func (r *Registry) RegisterTrafficClass(flowId FlowId, label TrafficClass) bool {
	f := r.getOrCreate(flowId)
	if f.classSet {
		if f.TrafficClass != label {
			r.anomalies.ClassRelabels++
			logger.Debugf("flow %d: traffic class already set to %s, ignoring %s", flowId, f.TrafficClass, label)
		}
		return false
	}
	if len(label) == 0 {
		label = TrafficClassUnknown
	}
	f.TrafficClass = label
	f.classSet = true
	return true
}

// Flow returns a copy of the record of the given flow, or nil if the flow is unknown.
func (r *Registry) Flow(flowId FlowId) *FlowRecord {
	f, ok := r.flows[flowId]
	if !ok {
		return nil
	}
	fc := *f
	return &fc
}

// FlowIds returns the ids of all known flows, sorted ascending.
func (r *Registry) FlowIds() []FlowId {
	ids := make([]FlowId, 0, len(r.flows))
	for id := range r.flows {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Snapshot returns copies of all flow records, ordered by flow id.
func (r *Registry) Snapshot() []FlowRecord {
	ids := r.FlowIds()
	res := make([]FlowRecord, 0, len(ids))
	for _, id := range ids {
		res = append(res, *r.flows[id])
	}
	return res
}

func (r *Registry) NumFlows() int {
	return len(r.flows)
}

// NumPending returns the number of sent packets that have not (yet) been received.
func (r *Registry) NumPending() int {
	return r.pending.Len()
}

func (r *Registry) Anomalies() Anomalies {
	return r.anomalies
}

// Reset drops all state, so the registry can be reused for a next run.
func (r *Registry) Reset() {
	r.flows = make(map[FlowId]*FlowRecord)
	r.pending.Clear()
	r.anomalies = Anomalies{}
}
