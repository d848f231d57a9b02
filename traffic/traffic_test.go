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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otns-qos/qosns/event"
	. "github.com/otns-qos/qosns/types"
)

type fixedRand struct {
	u01  []float64
	i    int
	hops int
}

func (fr *fixedRand) RandU01() float64 {
	v := fr.u01[fr.i%len(fr.u01)]
	fr.i++
	return v
}

func (fr *fixedRand) RandInt(i, j int) int {
	if fr.hops < i {
		return i
	}
	if fr.hops > j {
		return j
	}
	return fr.hops
}

type eventCollector struct {
	events []*event.Event
}

func (ec *eventCollector) PostEvent(evt *event.Event) {
	ec.events = append(ec.events, evt)
}

func TestProfileInterval(t *testing.T) {
	assert.InDelta(t, 0.02, VoipProfile.IntervalSec(), 1e-12)
	assert.InDelta(t, 0.016, VideoProfile.IntervalSec(), 1e-12)
	assert.Equal(t, 0.0, Profile{RateKbps: 0, PacketSize: 100}.IntervalSec())
	assert.Equal(t, "VoIP @ 64kbps", VoipProfile.String())
}

func TestScenarioFlows(t *testing.T) {
	flows := ScenarioFlows(10, 50, VoipProfile, VideoProfile)
	require.Len(t, flows, 10)
	for i, f := range flows {
		assert.Equal(t, FlowId(i+1), f.FlowId)
		assert.Equal(t, NodeId(i+1), f.SrcNode)
		assert.Equal(t, SinkNodeId, f.DstNode)
		assert.Equal(t, 10.0+float64(i), f.StartSec)
		assert.Equal(t, 45.0, f.StopSec)
		if i < 5 {
			assert.Equal(t, TrafficClassVoip, f.Profile.Class)
		} else {
			assert.Equal(t, TrafficClassVideo, f.Profile.Class)
		}
	}

	// odd client count: the extra client sends Video
	flows = ScenarioFlows(3, 50, VoipProfile, VideoProfile)
	assert.Equal(t, TrafficClassVoip, flows[0].Profile.Class)
	assert.Equal(t, TrafficClassVideo, flows[1].Profile.Class)
	assert.Equal(t, "10.1.1.1", NodeAddr(SinkNodeId))
	assert.Equal(t, "10.1.1.4", NodeAddr(3))
}

func TestLinkModel(t *testing.T) {
	cfg := DefaultLinkConfig()
	lm := NewLinkModel(cfg, 5, &fixedRand{u01: []float64{0.5}, hops: 2})
	assert.InDelta(t, 0.07, lm.LossProbability(), 1e-12)

	delay, lost := lm.Transmit()
	assert.False(t, lost)
	assert.InDelta(t, (2*2.0+0.5*5.0)/1000, delay, 1e-12)

	lm = NewLinkModel(cfg, 5, &fixedRand{u01: []float64{0.01}})
	_, lost = lm.Transmit()
	assert.True(t, lost)

	// loss grows with speed, up to the max
	lm = NewLinkModel(cfg, 500, &fixedRand{u01: []float64{0.5}})
	assert.Equal(t, cfg.MaxLoss, lm.LossProbability())
	cfg.LossPerMps = -1
	lm = NewLinkModel(cfg, 5, &fixedRand{u01: []float64{0.5}})
	assert.Equal(t, 0.0, lm.LossProbability())
}

func TestGenerator(t *testing.T) {
	ec := &eventCollector{}
	flows := []FlowSpec{
		{FlowId: 1, SrcNode: 1, Profile: VoipProfile, StartSec: 10, StopSec: 11},
		{FlowId: 2, SrcNode: 2, Profile: VideoProfile, StartSec: 10.5, StopSec: 11},
	}
	lm := NewLinkModel(DefaultLinkConfig(), 0, &fixedRand{u01: []float64{0.5}, hops: 1})
	g := NewGenerator(flows, lm, ec, SinkStartSec, 20)
	g.Run(20)

	require.NotEmpty(t, ec.events)
	assert.Equal(t, event.EventTypeTrafficClass, ec.events[0].Type)
	assert.Equal(t, TrafficClassVoip, ec.events[0].Label)
	assert.Equal(t, event.EventTypeTrafficClass, ec.events[1].Type)
	assert.Equal(t, TrafficClassVideo, ec.events[1].Label)

	var sends, recvs [3]int
	var lastTs uint64
	sendTimes := map[PacketId]uint64{}
	for _, evt := range ec.events[2:] {
		assert.GreaterOrEqual(t, evt.Timestamp, lastTs)
		lastTs = evt.Timestamp
		switch evt.Type {
		case event.EventTypeSend:
			sends[evt.FlowId]++
			sendTimes[evt.PacketId] = evt.Timestamp
		case event.EventTypeRecv:
			recvs[evt.FlowId]++
			assert.Equal(t, uint64(4500), evt.Timestamp-sendTimes[evt.PacketId])
			assert.Equal(t, NodeAddr(NodeId(evt.FlowId)), evt.SrcAddr)
		}
	}

	assert.InDelta(t, 50, sends[1], 1)
	assert.InDelta(t, 32, sends[2], 1)
	assert.Equal(t, sends, recvs)
	assert.Equal(t, uint64(sends[1]+sends[2]), g.Counters.Sent)
	assert.Equal(t, g.Counters.Sent, g.Counters.Delivered)
	assert.Equal(t, uint64(0), g.Counters.Lost)
}

func TestGeneratorSinkWindow(t *testing.T) {
	ec := &eventCollector{}
	flows := []FlowSpec{
		{FlowId: 1, SrcNode: 1, Profile: VoipProfile, StartSec: 1, StopSec: 3},
	}
	lm := NewLinkModel(DefaultLinkConfig(), 0, &fixedRand{u01: []float64{0.5}, hops: 1})
	g := NewGenerator(flows, lm, ec, 2, 10)
	g.Run(10)

	assert.InDelta(t, 100, g.Counters.Sent, 1)
	assert.InDelta(t, 50, g.Counters.Dropped, 1)
	assert.Equal(t, g.Counters.Sent, g.Counters.Delivered+g.Counters.Dropped)
}

func TestGeneratorLoss(t *testing.T) {
	ec := &eventCollector{}
	flows := []FlowSpec{
		{FlowId: 1, SrcNode: 1, Profile: VoipProfile, StartSec: 0, StopSec: 1},
	}
	// every other packet is lost
	lm := NewLinkModel(DefaultLinkConfig(), 0, &fixedRand{u01: []float64{0.5, 0.5, 0.0}, hops: 1})
	g := NewGenerator(flows, lm, ec, 0, 10)
	g.Run(10)

	assert.Greater(t, g.Counters.Lost, uint64(0))
	assert.Equal(t, g.Counters.Sent, g.Counters.Lost+g.Counters.Delivered)
}
