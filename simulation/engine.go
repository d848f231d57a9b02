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
	"github.com/otns-qos/qosns/event"
	"github.com/otns-qos/qosns/flowstats"
	"github.com/otns-qos/qosns/kpi"
	"github.com/otns-qos/qosns/logger"
	. "github.com/otns-qos/qosns/types"
)

// Engine is the QoS accounting engine of one run. It is driven by a single event source and is not
// safe for concurrent use.
type Engine struct {
	reg       *flowstats.Registry
	run       kpi.RunInfo
	result    *kpi.Kpi
	ended     bool
	ignored   uint64
	endHandle func(k *kpi.Kpi)
}

func NewEngine(run kpi.RunInfo) *Engine {
	return &Engine{
		reg: flowstats.NewRegistry(),
		run: run,
	}
}

// SetEndHandler sets a function called with the KPIs each time a run ends.
func (e *Engine) SetEndHandler(f func(k *kpi.Kpi)) {
	e.endHandle = f
}

func (e *Engine) accepts(flowId FlowId, what string) bool {
	if e.ended {
		e.ignored++
		logger.Warnf("%s for flow %d after end of run ignored", what, flowId)
		return false
	}
	if !ValidFlowId(flowId) {
		e.ignored++
		logger.Warnf("%s for invalid flow id %d ignored", what, flowId)
		return false
	}
	return true
}

func (e *Engine) OnSend(flowId FlowId, packetId PacketId, sizeBytes uint32, ts uint64) {
	if e.accepts(flowId, "send") {
		e.reg.RecordSend(flowId, packetId, sizeBytes, ts)
	}
}

// OnReceive accounts a received packet. The source address is not used for the statistics.
func (e *Engine) OnReceive(flowId FlowId, packetId PacketId, sizeBytes uint32, ts uint64, srcAddr string) {
	if e.accepts(flowId, "receive") {
		e.reg.RecordReceive(flowId, packetId, sizeBytes, ts)
	}
}

func (e *Engine) SetTrafficClass(flowId FlowId, label TrafficClass) {
	if e.accepts(flowId, "traffic class") {
		e.reg.RegisterTrafficClass(flowId, label)
	}
}

// EndOfRun closes the run and computes its KPIs. Later events are ignored until Reset.
func (e *Engine) EndOfRun(totalSec float64) *kpi.Kpi {
	e.ended = true
	e.run.TotalTimeSec = totalSec
	e.result = kpi.Calculate(e.reg, e.run)
	logger.Infof("run ended at %.6fs: %d flows, %d contributing, status '%s'", totalSec, e.reg.NumFlows(),
		len(e.result.Flows), e.result.Status)
	if e.endHandle != nil {
		e.endHandle(e.result)
	}
	return e.result
}

// Reset drops all flow state, so the engine can be used for a next run.
func (e *Engine) Reset() {
	e.reg.Reset()
	e.result = nil
	e.ended = false
	e.ignored = 0
}

// HandleEvent feeds one event into the engine.
func (e *Engine) HandleEvent(evt *event.Event) {
	switch evt.Type {
	case event.EventTypeSend:
		e.OnSend(evt.FlowId, evt.PacketId, evt.SizeBytes, evt.Timestamp)
	case event.EventTypeRecv:
		e.OnReceive(evt.FlowId, evt.PacketId, evt.SizeBytes, evt.Timestamp, evt.SrcAddr)
	case event.EventTypeTrafficClass:
		e.SetTrafficClass(evt.FlowId, evt.Label)
	case event.EventTypeEndOfRun:
		e.EndOfRun(UsToSeconds(evt.Timestamp))
	default:
		logger.Warnf("unknown event type %d ignored", evt.Type)
	}
}

func (e *Engine) IsEnded() bool {
	return e.ended
}

// Result returns the KPIs of the ended run, or nil.
func (e *Engine) Result() *kpi.Kpi {
	return e.result
}

// Flows returns a snapshot of all flow records.
func (e *Engine) Flows() []flowstats.FlowRecord {
	return e.reg.Snapshot()
}

func (e *Engine) NumPending() int {
	return e.reg.NumPending()
}

// NumIgnored returns the number of events ignored since the last Reset.
func (e *Engine) NumIgnored() uint64 {
	return e.ignored
}

func (e *Engine) RunInfo() kpi.RunInfo {
	return e.run
}

func (e *Engine) SetRunInfo(run kpi.RunInfo) {
	e.run = run
}
